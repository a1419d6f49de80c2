package day

import "strings"

// OfficePolicy controls whether office stop addresses are refreshed from
// current settings on every load, or only written once at record
// creation. Refreshing on every load keeps today's record in step with a
// settings change; refreshing only at creation preserves historical
// records as they were driven.
type OfficePolicy string

const (
	// OfficeOnCreate sets office addresses only when the record is first
	// created. The default.
	OfficeOnCreate OfficePolicy = "create"
	// OfficeAlways overwrites office addresses from current settings on
	// every load.
	OfficeAlways OfficePolicy = "always"
)

// ParseOfficePolicy maps a config string to a policy, defaulting to
// OfficeOnCreate for anything unrecognized.
func ParseOfficePolicy(s string) OfficePolicy {
	if OfficePolicy(strings.ToLower(strings.TrimSpace(s))) == OfficeAlways {
		return OfficeAlways
	}
	return OfficeOnCreate
}

// NormalizeStatus coerces a stored status value to one of the three
// canonical states. Free-form strings from older exports are matched by
// substring in either language; anything else falls back to the
// positional default.
func NormalizeStatus(value string, fallback Status) Status {
	switch Status(value) {
	case StatusPending, StatusDone, StatusDeclined:
		return Status(value)
	}
	low := strings.ToLower(value)
	if strings.Contains(low, "decline") || strings.Contains(low, "отказ") {
		return StatusDeclined
	}
	if strings.Contains(low, "done") || strings.Contains(low, "выполн") {
		return StatusDone
	}
	return fallback
}

// Hydrate repairs a stored record into a structurally valid one for the
// given date:
//
//   - stops missing or shorter than the office pair are rebuilt from the
//     settings defaults;
//   - exactly two stops (office pair with no middle) gain one empty
//     middle stop;
//   - every stop gets an ID, a normalized status, and no nil-ish text;
//   - office endpoints are forced to status done, get the default office
//     reasons when empty, and have their addresses refreshed from
//     settings when policy is OfficeAlways.
//
// Hydrate never fails; garbage in produces a usable default out.
func Hydrate(stored Record, date string, s Settings, policy OfficePolicy) Record {
	base := NewDefaultRecord(date, s)

	rec := Record{
		Date:       date,
		DistanceKm: stored.DistanceKm,
		Sent:       stored.Sent,
	}
	if rec.DistanceKm < 0 {
		rec.DistanceKm = 0
	}

	if len(stored.Stops) < 2 {
		rec.Stops = base.Stops
		return rec
	}

	stops := make([]Stop, len(stored.Stops))
	last := len(stored.Stops) - 1
	for i, st := range stored.Stops {
		edge := i == 0 || i == last
		fallback := StatusPending
		if edge {
			fallback = StatusDone
		}
		if st.ID == "" {
			st.ID = NewStop().ID
		}
		st.Status = NormalizeStatus(string(st.Status), fallback)
		stops[i] = st
	}

	if len(stops) == 2 {
		stops = []Stop{stops[0], NewStop(), stops[1]}
	}

	lastIdx := len(stops) - 1
	stops[0].Status = StatusDone
	stops[lastIdx].Status = StatusDone
	if stops[0].Reason == "" {
		stops[0].Reason = ReasonPrepare
	}
	if stops[lastIdx].Reason == "" {
		stops[lastIdx].Reason = ReasonHandover
	}
	if policy == OfficeAlways {
		stops[0].Address = s.StartAddress
		stops[lastIdx].Address = s.EndAddress
	}

	rec.Stops = stops
	return rec
}
