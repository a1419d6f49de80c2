package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lumastack/routelog/internal/geo"
)

// CachedCoord looks up a previously geocoded address. The address is
// normalized before lookup so formatting variants share an entry.
func (s *Store) CachedCoord(ctx context.Context, address string) (geo.Coord, bool, error) {
	key := normalizeAddress(address)
	if key == "" {
		return geo.Coord{}, false, nil
	}

	var c geo.Coord
	err := s.db.QueryRowContext(ctx, `SELECT lat, lon FROM geocache WHERE address = ?`, key).
		Scan(&c.Lat, &c.Lon)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return geo.Coord{}, false, nil
	case err != nil:
		return geo.Coord{}, false, fmt.Errorf("geocache get: %w", err)
	}
	return c, true, nil
}

// PutCoord stores a geocoding result, overwriting any prior entry for
// the same normalized address.
func (s *Store) PutCoord(ctx context.Context, address string, c geo.Coord) error {
	key := normalizeAddress(address)
	if key == "" {
		return fmt.Errorf("geocache put: empty address")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocache (address, lat, lon) VALUES (?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET lat = excluded.lat, lon = excluded.lon
	`, key, c.Lat, c.Lon)
	if err != nil {
		return fmt.Errorf("geocache put: %w", err)
	}
	return nil
}
