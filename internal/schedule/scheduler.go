// Package schedule arms an unattended end-of-day send: once the local
// cutoff time passes, an eligible day record is submitted without user
// action. The scheduler is a small state machine over a cancellable
// timer; all time flows through the Clock interface so tests drive it
// with virtual time.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/lumastack/routelog/internal/day"
)

// DefaultCutoff is the local time of day after which an eligible
// record is sent automatically.
const DefaultCutoff = "22:00"

// State is the scheduler's lifecycle position.
type State int

const (
	// StateIdle means nothing is armed: the record is ineligible or was
	// already sent.
	StateIdle State = iota
	// StateScheduled means a timer is pending for the next cutoff.
	StateScheduled
	// StateSending means an automatic send is in progress.
	StateSending
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateSending:
		return "sending"
	default:
		return "idle"
	}
}

// TimeOfDay is a wall-clock cutoff within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid cutoff %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid cutoff %q: out of range", s)
	}
	return t, nil
}

// next returns the first occurrence of the cutoff strictly after now.
func (t TimeOfDay) next(now time.Time) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// passed reports whether the cutoff occurred at or before now today.
func (t TimeOfDay) passed(now time.Time) bool {
	at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	return !now.Before(at)
}

// Sender performs the actual delivery. Satisfied by sync.Engine.Submit
// wrapped by the CLI; the scheduler does not care about the result body,
// only success or failure.
type Sender interface {
	Send(ctx context.Context, rec day.Record) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, rec day.Record) error

func (f SenderFunc) Send(ctx context.Context, rec day.Record) error { return f(ctx, rec) }

// Scheduler arms an automatic send for one active day record.
//
// Update must be called with the current record after every mutation;
// the scheduler re-evaluates eligibility and re-arms or disarms its
// timer. A record for a date other than today is never armed.
type Scheduler struct {
	clock  Clock
	cutoff TimeOfDay
	sender Sender
	log    *slog.Logger

	mu    gosync.Mutex
	state State
	rec   day.Record
	timer Timer
	// gen invalidates timer callbacks armed before the latest Update or
	// Stop; a stale callback observing a newer gen does nothing.
	gen uint64
}

// NewScheduler builds a Scheduler. A nil clock selects wall time; a nil
// logger selects slog.Default().
func NewScheduler(clock Clock, cutoff TimeOfDay, sender Sender, log *slog.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{clock: clock, cutoff: cutoff, sender: sender, log: log}
}

// State returns the current lifecycle position.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update re-evaluates the record and arms, re-arms, or disarms the
// automatic send. Safe to call on every edit.
func (s *Scheduler) Update(ctx context.Context, rec day.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rec = rec
	if s.state == StateSending {
		// The in-flight attempt re-reads s.rec when it completes.
		return
	}
	s.disarmLocked()

	if !s.eligibleLocked() {
		s.state = StateIdle
		return
	}
	s.armLocked(ctx)
}

// Stop cancels any pending timer and returns the scheduler to idle. An
// in-flight send is not aborted but its outcome no longer re-arms.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
	s.state = StateIdle
}

func (s *Scheduler) eligibleLocked() bool {
	now := s.clock.Now()
	if s.rec.Date != now.Format(day.DateLayout) {
		return false
	}
	return !s.rec.Sent && s.rec.HasDataToSend()
}

func (s *Scheduler) disarmLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) armLocked(ctx context.Context) {
	now := s.clock.Now()
	gen := s.gen
	fire := func() { s.fire(ctx, gen) }

	var wait time.Duration
	if !s.cutoff.passed(now) {
		wait = s.cutoff.next(now).Sub(now)
	}
	s.state = StateScheduled
	s.timer = s.clock.AfterFunc(wait, fire)
	s.log.Debug("auto-send armed", "date", s.rec.Date, "in", wait)
}

func (s *Scheduler) fire(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateScheduled {
		s.mu.Unlock()
		return
	}
	s.state = StateSending
	rec := s.rec
	s.mu.Unlock()

	s.log.Info("auto-send firing", "date", rec.Date)
	err := s.sender.Send(ctx, rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// Stopped or re-targeted while the send ran.
		return
	}
	if err != nil {
		s.log.Warn("auto-send failed, rescheduling", "date", rec.Date, "error", err)
		s.rescheduleLocked(ctx)
		return
	}
	s.rec.Sent = true
	s.state = StateIdle
	s.log.Info("auto-send delivered", "date", rec.Date)
}

// rescheduleLocked arms the next cutoff occurrence after a failed
// attempt. The cutoff has necessarily passed, so this lands tomorrow;
// sooner retries are the offline queue's job.
func (s *Scheduler) rescheduleLocked(ctx context.Context) {
	s.gen++
	gen := s.gen
	now := s.clock.Now()
	wait := s.cutoff.next(now).Sub(now)
	s.state = StateScheduled
	s.timer = s.clock.AfterFunc(wait, func() { s.fire(ctx, gen) })
	s.log.Debug("auto-send rescheduled", "date", s.rec.Date, "in", wait)
}
