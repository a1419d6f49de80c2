package geo

import (
	"context"
	"fmt"

	"github.com/lumastack/routelog/internal/day"
)

// ComputeDay geocodes every stop of the record in order and returns the
// driving distance in kilometers. Every stop must carry an address;
// a blank one aborts with ErrMissingAddress so a half-filled day never
// produces a misleading number.
func (c *Client) ComputeDay(ctx context.Context, rec day.Record) (float64, error) {
	coords := make([]Coord, 0, len(rec.Stops))
	for i, stop := range rec.Stops {
		coord, err := c.Geocode(ctx, stop.Address)
		if err != nil {
			return 0, fmt.Errorf("stop %d: %w", i+1, err)
		}
		coords = append(coords, coord)
	}
	return c.RouteKm(ctx, coords)
}
