package day

import "github.com/google/uuid"

// Mutation helpers. Every successful mutation flips Sent back to false:
// a previously sent day that changes becomes dirty and is eligible for
// re-send. Callers that bypass these helpers own that invariant
// themselves.

// AddMiddleStop inserts a fresh empty stop just before the office end
// stop and returns its ID.
func (r *Record) AddMiddleStop() string {
	stop := NewStop()
	last := len(r.Stops) - 1
	r.Stops = append(r.Stops[:last:last], stop, r.Stops[last])
	r.Sent = false
	return stop.ID
}

// UpdateStop applies patch to the stop with the given ID.
// Returns false when no such stop exists; the record is untouched.
func (r *Record) UpdateStop(id string, patch func(*Stop)) bool {
	for i := range r.Stops {
		if r.Stops[i].ID == id {
			patch(&r.Stops[i])
			r.Sent = false
			return true
		}
	}
	return false
}

// RemoveStop deletes a middle stop by ID. Office endpoints and the last
// remaining middle stop cannot be removed. Returns false when nothing
// was removed.
func (r *Record) RemoveStop(id string) bool {
	if len(r.Stops) <= MinStops {
		return false
	}
	last := len(r.Stops) - 1
	if id == r.Stops[0].ID || id == r.Stops[last].ID {
		return false
	}
	for i := 1; i < last; i++ {
		if r.Stops[i].ID == id {
			r.Stops = append(r.Stops[:i], r.Stops[i+1:]...)
			r.Sent = false
			return true
		}
	}
	return false
}

// MoveStop reorders a middle stop from index from to index to. Moves
// touching the office endpoints are rejected. Indexes are positions in
// the full stop slice.
func (r *Record) MoveStop(from, to int) bool {
	last := len(r.Stops) - 1
	if from <= 0 || from >= last || to <= 0 || to >= last || from == to {
		return false
	}
	moved := r.Stops[from]
	rest := append(r.Stops[:from:from], r.Stops[from+1:]...)
	r.Stops = append(rest[:to:to], append([]Stop{moved}, rest[to:]...)...)
	r.Sent = false
	return true
}

// DuplicateStop inserts a copy of the stop with the given ID (fresh ID)
// immediately after it. The office end stop cannot be duplicated.
// Returns the new stop's ID, or "" when nothing was duplicated.
func (r *Record) DuplicateStop(id string) string {
	last := len(r.Stops) - 1
	for i := 0; i < last; i++ {
		if r.Stops[i].ID == id {
			dup := r.Stops[i]
			dup.ID = uuid.NewString()
			r.Stops = append(r.Stops[:i+1:i+1], append([]Stop{dup}, r.Stops[i+1:]...)...)
			r.Sent = false
			return dup.ID
		}
	}
	return ""
}

// SetDistance records a computed travel distance. Negative input is
// clamped to zero.
func (r *Record) SetDistance(km float64) {
	if km < 0 {
		km = 0
	}
	r.DistanceKm = km
	r.Sent = false
}

// Reset replaces the record with a fresh default for its date, keeping
// the date key. When sent is true the reset record is marked as already
// delivered (used after a confirmed successful send).
func (r *Record) Reset(s Settings, sent bool) {
	next := NewDefaultRecord(r.Date, s)
	next.Sent = sent
	*r = next
}
