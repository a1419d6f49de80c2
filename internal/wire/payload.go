// Package wire defines the submitted JSON shapes and the pure logic
// that prepares a delivery: payload normalization from a day record,
// payload validation, and the ordered candidate list of network
// operations the delivery engine will attempt.
//
// Nothing in this package performs I/O.
package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lumastack/routelog/internal/day"
)

// Status display labels on the wire. Unrecognized internal statuses
// pass through as their own string.
const (
	LabelDone     = "Выполнена"
	LabelDeclined = "Отказ"
	LabelPending  = "В процессе"
)

// StatusLabel translates an internal stop status into its wire label.
func StatusLabel(s day.Status) string {
	switch s {
	case day.StatusDone:
		return LabelDone
	case day.StatusDeclined:
		return LabelDeclined
	case day.StatusPending:
		return LabelPending
	default:
		return string(s)
	}
}

// StopPayload is one stop as submitted to the backend.
type StopPayload struct {
	ID            string `json:"id"`
	Address       string `json:"address"`
	Org           string `json:"org"`
	TID           string `json:"tid"`
	Reason        string `json:"reason"`
	Status        string `json:"status"`
	RejectReason  string `json:"rejectReason"`
	RequestNumber string `json:"requestNumber"`
}

// UnmarshalJSON accepts the legacy declineReason field name as a
// synonym for rejectReason when decoding payloads written by older
// clients (merge-fallback reads and remote day fetches).
func (p *StopPayload) UnmarshalJSON(data []byte) error {
	type plain StopPayload
	aux := struct {
		plain
		DeclineReason string `json:"declineReason"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = StopPayload(aux.plain)
	if p.RejectReason == "" {
		p.RejectReason = aux.DeclineReason
	}
	return nil
}

// Payload is the canonical submitted day report.
type Payload struct {
	Date       string        `json:"date" validate:"required,datetime=2006-01-02"`
	DistanceKm float64       `json:"distanceKm"`
	Sent       bool          `json:"sent"`
	Stops      []StopPayload `json:"stops" validate:"required,min=3,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// BuildPayload normalizes a day record into its wire form: all text
// fields trimmed, distance coerced to a non-negative finite number,
// statuses translated to display labels, decline reasons mapped to the
// rejectReason wire field. The result is validated before return.
func BuildPayload(rec day.Record) (Payload, error) {
	p := Payload{
		Date:       strings.TrimSpace(rec.Date),
		DistanceKm: coerceDistance(rec.DistanceKm),
		Sent:       rec.Sent,
		Stops:      make([]StopPayload, len(rec.Stops)),
	}
	for i, s := range rec.Stops {
		p.Stops[i] = StopPayload{
			ID:            strings.TrimSpace(s.ID),
			Address:       strings.TrimSpace(s.Address),
			Org:           strings.TrimSpace(s.Org),
			TID:           strings.TrimSpace(s.TID),
			Reason:        strings.TrimSpace(s.Reason),
			Status:        StatusLabel(s.Status),
			RejectReason:  strings.TrimSpace(s.DeclineReason),
			RequestNumber: strings.TrimSpace(s.RequestNumber),
		}
	}

	if err := validate.Struct(p); err != nil {
		return Payload{}, fmt.Errorf("payload for %q: %w", rec.Date, err)
	}
	return p, nil
}

func coerceDistance(km float64) float64 {
	if math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
		return 0
	}
	return km
}

// Document is the whole remote document shape used by the merge
// fallback: every submitted day keyed by date.
type Document struct {
	Days map[string]Payload `json:"days"`
}

// Upsert replaces the payload stored under date, creating the days
// container when absent. Other dates are untouched (last-write-wins per
// date, no field-level merge).
func (d *Document) Upsert(date string, p Payload) {
	if d.Days == nil {
		d.Days = make(map[string]Payload)
	}
	d.Days[date] = p
}
