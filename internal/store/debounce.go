package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lumastack/routelog/internal/day"
)

// DefaultDebounce is the coalescing window for rapid successive edits.
const DefaultDebounce = 200 * time.Millisecond

// Debouncer coalesces SaveDay calls per date: a save scheduled during
// the window supersedes any prior pending save for the same key, so a
// burst of edits lands as one write. Timers are cancellable; call Stop
// (or Flush) before discarding the Debouncer to avoid stale writes.
type Debouncer struct {
	store *Store
	delay time.Duration
	log   *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingSave
	stopped bool
}

type pendingSave struct {
	timer *time.Timer
	rec   day.Record
}

// NewDebouncer wraps the store with a per-date write coalescer.
// A non-positive delay falls back to DefaultDebounce; a nil logger
// falls back to slog.Default().
func NewDebouncer(s *Store, delay time.Duration, log *slog.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	return &Debouncer{
		store:   s,
		delay:   delay,
		log:     log,
		pending: make(map[string]*pendingSave),
	}
}

// Save schedules rec for persistence after the debounce window. A
// pending save for the same date is superseded: its timer is reset and
// its record replaced by rec.
func (d *Debouncer) Save(rec day.Record) {
	if rec.Date == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if p, ok := d.pending[rec.Date]; ok {
		p.rec = rec
		p.timer.Reset(d.delay)
		return
	}

	p := &pendingSave{rec: rec}
	date := rec.Date
	p.timer = time.AfterFunc(d.delay, func() { d.fire(date) })
	d.pending[date] = p
}

// fire writes the pending record for date, if still pending.
func (d *Debouncer) fire(date string) {
	d.mu.Lock()
	p, ok := d.pending[date]
	if ok {
		delete(d.pending, date)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	// Best effort: the debouncer has no caller to report to. Explicit
	// Flush is the strict path.
	if err := d.store.SaveDay(context.Background(), p.rec); err != nil {
		d.log.Warn("debounced save failed", "date", date, "error", err)
	}
}

// Flush writes all pending records immediately, cancelling their timers.
// Returns the first write error encountered.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.mu.Lock()
	drained := make([]*pendingSave, 0, len(d.pending))
	for date, p := range d.pending {
		p.timer.Stop()
		drained = append(drained, p)
		delete(d.pending, date)
	}
	d.mu.Unlock()

	var firstErr error
	for _, p := range drained {
		if err := d.store.SaveDay(ctx, p.rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stop cancels all pending writes without persisting them and rejects
// further saves.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for date, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, date)
	}
}
