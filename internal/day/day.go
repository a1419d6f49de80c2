// Package day contains the core data types for the routelog application:
// the day record, its stops, and the user settings the defaults are built
// from. This package has no I/O; persistence lives in internal/store and
// network delivery in internal/sync.
package day

import (
	"strings"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a single stop.
type Status string

const (
	// StatusPending means the visit has not happened yet.
	StatusPending Status = "pending"
	// StatusDone means the visit was completed.
	StatusDone Status = "done"
	// StatusDeclined means the visit was refused; DeclineReason says why.
	StatusDeclined Status = "declined"
)

// Stop is one visit point in a day record.
type Stop struct {
	ID            string `json:"id"`
	Address       string `json:"address"`
	Org           string `json:"org"`
	TID           string `json:"tid"`
	Reason        string `json:"reason"`
	Status        Status `json:"status"`
	DeclineReason string `json:"declineReason"`
	RequestNumber string `json:"requestNumber"`
}

// Record is one calendar day of work: an ordered stop sequence plus the
// computed travel distance and the send status.
//
// Invariants maintained by this package:
//   - Stops always holds at least three entries; the first and last are
//     the fixed office endpoints and are never deleted or reordered.
//   - Any mutation to stops or distance through the mutation helpers
//     flips Sent back to false, making the day eligible for re-send.
type Record struct {
	Date       string  `json:"date"`
	Stops      []Stop  `json:"stops"`
	DistanceKm float64 `json:"distanceKm"`
	Sent       bool    `json:"sent"`
}

// MinStops is the smallest legal stop count: office start, one middle
// stop, office end.
const MinStops = 3

// DateLayout is the canonical record date format.
const DateLayout = "2006-01-02"

// Office stop reasons used for the fixed first/last stops.
const (
	ReasonPrepare  = "Подготовка оборудования"
	ReasonHandover = "Сдача оборудования"
)

// NewStop returns an empty pending stop with a fresh ID.
func NewStop() Stop {
	return Stop{
		ID:     uuid.NewString(),
		Status: StatusPending,
	}
}

// NewDefaultRecord builds the default record for a date: the two office
// endpoints from settings plus one empty middle stop.
func NewDefaultRecord(date string, s Settings) Record {
	start := NewStop()
	start.Address = s.StartAddress
	start.Reason = ReasonPrepare
	start.Status = StatusDone

	finish := NewStop()
	finish.Address = s.EndAddress
	finish.Reason = ReasonHandover
	finish.Status = StatusDone

	return Record{
		Date:       date,
		DistanceKm: 0,
		Sent:       false,
		Stops:      []Stop{start, NewStop(), finish},
	}
}

// MiddleStops returns the stops between the office endpoints.
// Returns nil when the record is structurally short.
func (r Record) MiddleStops() []Stop {
	if len(r.Stops) < MinStops {
		return nil
	}
	return r.Stops[1 : len(r.Stops)-1]
}

// HasDataToSend reports whether the record carries anything worth
// submitting: at least one middle stop with a non-empty address or
// request number. Office endpoints never count.
func (r Record) HasDataToSend() bool {
	if len(r.Stops) < MinStops {
		return false
	}
	for _, s := range r.MiddleStops() {
		if strings.TrimSpace(s.Address) != "" || strings.TrimSpace(s.RequestNumber) != "" {
			return true
		}
	}
	return false
}
