package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lumastack/routelog/internal/day"
)

// LoadDay returns the stored record for date, creating and persisting a
// structurally-repaired default when the row is absent or its JSON is
// corrupt. The returned record is always hydrated: at least three stops,
// office endpoints in place, statuses normalized. A hydration that
// changed the record is written back, so repairs are durable and stop
// IDs are stable across loads.
func (s *Store) LoadDay(ctx context.Context, date string) (day.Record, error) {
	settings, err := s.LoadSettings(ctx)
	if err != nil {
		return day.Record{}, err
	}

	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT record FROM days WHERE date = ?`, date).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec := day.NewDefaultRecord(date, settings)
		if err := s.SaveDay(ctx, rec); err != nil {
			return day.Record{}, err
		}
		return rec, nil
	case err != nil:
		return day.Record{}, fmt.Errorf("load day %s: %w", date, err)
	}

	var stored day.Record
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		// Corrupt storage self-heals: rebuild the default and overwrite.
		rec := day.NewDefaultRecord(date, settings)
		if err := s.SaveDay(ctx, rec); err != nil {
			return day.Record{}, err
		}
		return rec, nil
	}

	rec := day.Hydrate(stored, date, settings, s.opts.OfficePolicy)

	// Persist the repair, otherwise filled-in IDs and inserted stops are
	// re-synthesized differently on every load and the stored row stays
	// malformed forever.
	if repaired, err := json.Marshal(rec); err == nil && string(repaired) != raw {
		if err := s.SaveDay(ctx, rec); err != nil {
			return day.Record{}, err
		}
	}
	return rec, nil
}

// SaveDay upserts the record into the day map, keyed by date. The only
// validation is that the date key is present.
func (s *Store) SaveDay(ctx context.Context, rec day.Record) error {
	if rec.Date == "" {
		return fmt.Errorf("save day: record has no date")
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("save day %s: %w", rec.Date, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO days (date, record) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET record = excluded.record
	`, rec.Date, string(body))
	if err != nil {
		return fmt.Errorf("save day %s: %w", rec.Date, err)
	}
	return nil
}

// RemoveDay deletes the record for date. Removing an absent date is a
// no-op.
func (s *Store) RemoveDay(ctx context.Context, date string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM days WHERE date = ?`, date); err != nil {
		return fmt.Errorf("remove day %s: %w", date, err)
	}
	return nil
}

// LoadAll returns the whole date-to-record map. Rows with corrupt JSON
// are skipped rather than failing the bulk read.
func (s *Store) LoadAll(ctx context.Context) (map[string]day.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, record FROM days ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("load all days: %w", err)
	}
	defer rows.Close()

	all := make(map[string]day.Record)
	for rows.Next() {
		var date, raw string
		if err := rows.Scan(&date, &raw); err != nil {
			return nil, fmt.Errorf("load all days: %w", err)
		}
		var rec day.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		rec.Date = date
		all[date] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load all days: %w", err)
	}
	return all, nil
}

// SaveAll replaces the whole day map in one transaction. Used by
// import/backup flows.
func (s *Store) SaveAll(ctx context.Context, all map[string]day.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save all days: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM days`); err != nil {
		return fmt.Errorf("save all days: clear: %w", err)
	}
	for date, rec := range all {
		rec.Date = date
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("save all days: marshal %s: %w", date, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO days (date, record) VALUES (?, ?)`, date, string(body)); err != nil {
			return fmt.Errorf("save all days: insert %s: %w", date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save all days: commit: %w", err)
	}
	return nil
}

// AddressHistory returns distinct non-empty stop addresses across all
// stored days, NFC-normalized, sorted, capped at limit (0 means no cap).
// Feeds address suggestions when editing stops.
func (s *Store) AddressHistory(ctx context.Context, limit int) ([]string, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, rec := range all {
		for _, stop := range rec.Stops {
			addr := normalizeAddress(stop.Address)
			if addr == "" {
				continue
			}
			seen[addr] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
