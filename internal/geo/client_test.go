package geo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumastack/routelog/internal/day"
	"github.com/lumastack/routelog/internal/geo"
	"github.com/lumastack/routelog/internal/testutil"
)

// mapCache is an in-memory geo.Cache.
type mapCache struct {
	coords map[string]geo.Coord
}

func newMapCache() *mapCache { return &mapCache{coords: make(map[string]geo.Coord)} }

func (m *mapCache) CachedCoord(_ context.Context, address string) (geo.Coord, bool, error) {
	c, ok := m.coords[address]
	return c, ok, nil
}

func (m *mapCache) PutCoord(_ context.Context, address string, c geo.Coord) error {
	m.coords[address] = c
	return nil
}

const (
	nominatimURL = "https://nominatim.test"
	osrmURL      = "https://osrm.test"
)

func testClient(tr *testutil.ScriptedTransport, cache geo.Cache, orsKey string) *geo.Client {
	return geo.New(tr.Client(), geo.Config{
		ORSKey:       orsKey,
		OSRMURL:      osrmURL,
		NominatimURL: nominatimURL,
	}, cache, nil)
}

func TestGeocode_CacheHitSkipsNetwork(t *testing.T) {
	cache := newMapCache()
	cache.coords["Ялта, ул. Московская 14"] = geo.Coord{Lat: 44.5, Lon: 34.16}
	tr := testutil.NewScriptedTransport() // no rules: any request would fail

	c := testClient(tr, cache, "")
	got, err := c.Geocode(context.Background(), "  Ялта, ул. Московская 14 ")
	require.NoError(t, err)
	assert.Equal(t, geo.Coord{Lat: 44.5, Lon: 34.16}, got)
	assert.Empty(t, tr.Calls())
}

func TestGeocode_NominatimWithoutKey(t *testing.T) {
	cache := newMapCache()
	tr := testutil.NewScriptedTransport(
		testutil.Rule{URLPrefix: nominatimURL + "/search", Status: 200,
			Body: `[{"lat":"44.4952","lon":"34.1663"}]`},
	)

	c := testClient(tr, cache, "")
	got, err := c.Geocode(context.Background(), "Ялта")
	require.NoError(t, err)
	assert.Equal(t, geo.Coord{Lat: 44.4952, Lon: 34.1663}, got)

	// The result was written through to the cache.
	cached, ok, err := cache.CachedCoord(context.Background(), "Ялта")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, got, cached)
}

func TestGeocode_ORSFailureFallsBackToNominatim(t *testing.T) {
	tr := testutil.NewScriptedTransport(
		testutil.Rule{URLPrefix: "https://api.openrouteservice.org/geocode/search", Status: 500},
		testutil.Rule{URLPrefix: nominatimURL + "/search", Status: 200,
			Body: `[{"lat":"44.4952","lon":"34.1663"}]`},
	)

	c := testClient(tr, nil, "ors-key")
	got, err := c.Geocode(context.Background(), "Ялта")
	require.NoError(t, err)
	assert.Equal(t, geo.Coord{Lat: 44.4952, Lon: 34.1663}, got)
	require.Len(t, tr.Calls(), 2, "ORS attempted first, then Nominatim")
}

func TestGeocode_NotFound(t *testing.T) {
	tr := testutil.NewScriptedTransport(
		testutil.Rule{URLPrefix: nominatimURL + "/search", Status: 200, Body: `[]`},
	)

	c := testClient(tr, nil, "")
	_, err := c.Geocode(context.Background(), "несуществующий адрес")
	require.ErrorIs(t, err, geo.ErrAddressNotFound)
}

func TestGeocode_MissingAddress(t *testing.T) {
	c := testClient(testutil.NewScriptedTransport(), nil, "")
	_, err := c.Geocode(context.Background(), "   ")
	require.ErrorIs(t, err, geo.ErrMissingAddress)
}

func TestRouteKm_OSRM(t *testing.T) {
	tr := testutil.NewScriptedTransport(
		testutil.Rule{URLPrefix: osrmURL + "/route/v1/driving/", Status: 200,
			Body: `{"routes":[{"distance":37400}]}`},
	)

	c := testClient(tr, nil, "")
	km, err := c.RouteKm(context.Background(), []geo.Coord{
		{Lat: 44.67, Lon: 34.41},
		{Lat: 44.5, Lon: 34.16},
	})
	require.NoError(t, err)
	assert.InDelta(t, 37.4, km, 0.001)
}

func TestRouteKm_SinglePointIsZero(t *testing.T) {
	tr := testutil.NewScriptedTransport()
	c := testClient(tr, nil, "")

	km, err := c.RouteKm(context.Background(), []geo.Coord{{Lat: 44.5, Lon: 34.16}})
	require.NoError(t, err)
	assert.Zero(t, km)
	assert.Empty(t, tr.Calls())
}

func TestComputeDay(t *testing.T) {
	cache := newMapCache()
	cache.coords["Алушта, ул. Снежковой 17Б"] = geo.Coord{Lat: 44.67, Lon: 34.41}
	cache.coords["Ялта, ул. Московская 14"] = geo.Coord{Lat: 44.5, Lon: 34.16}
	tr := testutil.NewScriptedTransport(
		testutil.Rule{URLPrefix: osrmURL + "/route/v1/driving/", Status: 200,
			Body: `{"routes":[{"distance":74800}]}`},
	)

	rec := day.NewDefaultRecord("2024-03-01", day.DefaultSettings())
	rec.Stops[1].Address = "Ялта, ул. Московская 14"

	c := testClient(tr, cache, "")
	km, err := c.ComputeDay(context.Background(), rec)
	require.NoError(t, err)
	assert.InDelta(t, 74.8, km, 0.001)
	require.Len(t, tr.Calls(), 1, "all addresses served from cache, one routing call")
}

func TestComputeDay_BlankAddressAborts(t *testing.T) {
	rec := day.NewDefaultRecord("2024-03-01", day.DefaultSettings())
	// Middle stop left blank.

	c := testClient(testutil.NewScriptedTransport(), nil, "")
	_, err := c.ComputeDay(context.Background(), rec)
	require.ErrorIs(t, err, geo.ErrMissingAddress)
	assert.Contains(t, err.Error(), "stop 2")
}
