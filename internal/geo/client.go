package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const orsBaseURL = "https://api.openrouteservice.org"

// Client geocodes addresses and computes route distances.
type Client struct {
	http  *http.Client
	cfg   Config
	cache Cache
	log   *slog.Logger
}

// New builds a Client. httpClient may be nil (http.DefaultClient is
// used); cache may be nil to disable caching.
func New(httpClient *http.Client, cfg Config, cache Cache, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{http: httpClient, cfg: cfg.withDefaults(), cache: cache, log: log}
}

// CanonicalAddress normalizes an address for lookup: trimmed and NFC so
// composed/decomposed Cyrillic spellings compare equal.
func CanonicalAddress(addr string) string {
	return norm.NFC.String(strings.TrimSpace(addr))
}

// Geocode resolves an address to a coordinate, consulting the cache
// first. An ORS failure falls through to Nominatim; only when both miss
// is ErrAddressNotFound returned.
func (c *Client) Geocode(ctx context.Context, address string) (Coord, error) {
	addr := CanonicalAddress(address)
	if addr == "" {
		return Coord{}, ErrMissingAddress
	}

	if c.cache != nil {
		if coord, ok, err := c.cache.CachedCoord(ctx, addr); err == nil && ok {
			return coord, nil
		}
	}

	var coord *Coord
	if c.cfg.ORSKey != "" {
		if got, err := c.geocodeORS(ctx, addr); err == nil {
			coord = &got
		} else {
			c.log.Debug("ors geocode failed, falling back", "address", addr, "error", err)
		}
	}
	if coord == nil {
		got, err := c.geocodeNominatim(ctx, addr)
		if err != nil {
			return Coord{}, err
		}
		coord = &got
	}

	if c.cache != nil {
		if err := c.cache.PutCoord(ctx, addr, *coord); err != nil {
			c.log.Warn("geocache write failed", "address", addr, "error", err)
		}
	}
	return *coord, nil
}

func (c *Client) geocodeORS(ctx context.Context, addr string) (Coord, error) {
	q := url.Values{}
	q.Set("text", addr)
	q.Set("api_key", c.cfg.ORSKey)
	q.Set("size", "1")
	q.Set("boundary.country", c.cfg.CountryBias)

	var body struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"` // [lon, lat]
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := c.getJSON(ctx, orsBaseURL+"/geocode/search?"+q.Encode(), nil, &body); err != nil {
		return Coord{}, err
	}
	if len(body.Features) == 0 || len(body.Features[0].Geometry.Coordinates) < 2 {
		return Coord{}, fmt.Errorf("%w: %s", ErrAddressNotFound, addr)
	}
	coords := body.Features[0].Geometry.Coordinates
	return Coord{Lat: coords[1], Lon: coords[0]}, nil
}

func (c *Client) geocodeNominatim(ctx context.Context, addr string) (Coord, error) {
	q := url.Values{}
	q.Set("q", addr)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("addressdetails", "0")

	var body []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := c.getJSON(ctx, c.cfg.NominatimURL+"/search?"+q.Encode(), nil, &body); err != nil {
		return Coord{}, err
	}
	if len(body) == 0 {
		return Coord{}, fmt.Errorf("%w: %s", ErrAddressNotFound, addr)
	}
	lat, err1 := strconv.ParseFloat(body[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(body[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return Coord{}, fmt.Errorf("%w: %s", ErrAddressNotFound, addr)
	}
	return Coord{Lat: lat, Lon: lon}, nil
}

// RouteKm returns the driving distance in kilometers through the given
// coordinates in order. Fewer than two coordinates is zero distance.
func (c *Client) RouteKm(ctx context.Context, coords []Coord) (float64, error) {
	if len(coords) < 2 {
		return 0, nil
	}

	if c.cfg.ORSKey != "" {
		if km, err := c.routeORS(ctx, coords); err == nil {
			return km, nil
		} else {
			c.log.Debug("ors directions failed, falling back to osrm", "error", err)
		}
	}
	return c.routeOSRM(ctx, coords)
}

func (c *Client) routeORS(ctx context.Context, coords []Coord) (float64, error) {
	pairs := make([][2]float64, len(coords))
	for i, co := range coords {
		pairs[i] = [2]float64{co.Lon, co.Lat}
	}
	reqBody, err := json.Marshal(map[string]any{"coordinates": pairs})
	if err != nil {
		return 0, err
	}

	var body struct {
		Routes []struct {
			Summary struct {
				Distance float64 `json:"distance"` // meters
			} `json:"summary"`
		} `json:"routes"`
	}
	headers := map[string]string{
		"Authorization": c.cfg.ORSKey,
		"Content-Type":  "application/json",
	}
	if err := c.postJSON(ctx, orsBaseURL+"/v2/directions/driving-car", headers, reqBody, &body); err != nil {
		return 0, err
	}
	if len(body.Routes) == 0 {
		return 0, ErrRouteNotFound
	}
	return body.Routes[0].Summary.Distance / 1000, nil
}

func (c *Client) routeOSRM(ctx context.Context, coords []Coord) (float64, error) {
	parts := make([]string, len(coords))
	for i, co := range coords {
		parts[i] = fmt.Sprintf("%f,%f", co.Lon, co.Lat)
	}
	u := fmt.Sprintf("%s/route/v1/driving/%s?overview=false", c.cfg.OSRMURL, strings.Join(parts, ";"))

	var body struct {
		Routes []struct {
			Distance float64 `json:"distance"` // meters
		} `json:"routes"`
	}
	if err := c.getJSON(ctx, u, nil, &body); err != nil {
		return 0, err
	}
	if len(body.Routes) == 0 {
		return 0, ErrRouteNotFound
	}
	return body.Routes[0].Distance / 1000, nil
}

func (c *Client) getJSON(ctx context.Context, u string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, headers, out)
}

func (c *Client) postJSON(ctx context.Context, u string, headers map[string]string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	return c.doJSON(req, headers, out)
}

func (c *Client) doJSON(req *http.Request, headers map[string]string, out any) error {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s: unexpected status %d", req.URL.Host, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
