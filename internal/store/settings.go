package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lumastack/routelog/internal/day"
)

// LoadSettings returns the stored settings overlaid on the defaults.
// A missing or corrupt row yields the defaults; this read never fails
// on bad content.
func (s *Store) LoadSettings(ctx context.Context) (day.Settings, error) {
	defaults := day.DefaultSettings()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM settings WHERE id = 1`).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return defaults, nil
	case err != nil:
		return day.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	var stored day.Settings
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return defaults, nil
	}
	return defaults.Merge(stored), nil
}

// SaveSettings persists the settings blob.
func (s *Store) SaveSettings(ctx context.Context, settings day.Settings) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, body) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body
	`, string(body))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
