// Package geo resolves stop addresses to coordinates and computes the
// driving distance for a day's route. OpenRouteService is preferred when
// an API key is configured; Nominatim (geocoding) and OSRM (routing) are
// the keyless fallbacks. Geocoding results are cached through the Cache
// interface so repeat addresses cost no network round trip.
package geo

import (
	"context"
	"errors"
)

// Coord is a WGS84 coordinate pair.
type Coord struct {
	Lat float64
	Lon float64
}

// Cache persists geocoding results keyed by address.
// Implemented by internal/store.
type Cache interface {
	CachedCoord(ctx context.Context, address string) (Coord, bool, error)
	PutCoord(ctx context.Context, address string, c Coord) error
}

// Errors reported by geocoding and routing.
var (
	// ErrMissingAddress means a stop has no address to geocode.
	ErrMissingAddress = errors.New("stop has no address")
	// ErrAddressNotFound means no provider could resolve the address.
	ErrAddressNotFound = errors.New("address not found")
	// ErrRouteNotFound means no provider returned a route distance.
	ErrRouteNotFound = errors.New("route not found")
)

// Config holds provider endpoints and credentials.
type Config struct {
	// ORSKey enables OpenRouteService for both geocoding and routing.
	// Optional; without it the free fallbacks are used.
	ORSKey string
	// OSRMURL is the OSRM routing endpoint. Defaults to the public demo
	// server.
	OSRMURL string
	// NominatimURL is the Nominatim geocoding endpoint. Defaults to the
	// public instance.
	NominatimURL string
	// CountryBias restricts ORS geocoding to one country code.
	// Defaults to "RU".
	CountryBias string
}

func (c Config) withDefaults() Config {
	if c.OSRMURL == "" {
		c.OSRMURL = "https://router.project-osrm.org"
	}
	if c.NominatimURL == "" {
		c.NominatimURL = "https://nominatim.openstreetmap.org"
	}
	if c.CountryBias == "" {
		c.CountryBias = "RU"
	}
	return c
}
