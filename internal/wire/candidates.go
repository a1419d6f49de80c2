package wire

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// DefaultOrigin is the reference deployment, used when no usable origin
// can be derived from configuration.
const DefaultOrigin = "https://api.lumastack.ru"

// Config is the delivery-relevant configuration.
type Config struct {
	// APIURL is the configured API base. Only its origin is used; any
	// path component is ignored. Malformed or relative values degrade
	// to SelfOrigin, then to DefaultOrigin.
	APIURL string
	// SelfOrigin is the origin the application itself is served from,
	// when known. Second preference after APIURL.
	SelfOrigin string
	// APIKey, when set, is attached to every candidate as the x-api-key
	// header. Absence is valid: the reference deployment allows
	// anonymous writes.
	APIKey string
}

// Candidate is one concrete network request the delivery engine may
// attempt. Candidates for one payload differ only in method, URL, and
// label; headers and body are identical.
type Candidate struct {
	Method  string
	URL     string
	Label   string
	Headers map[string]string
	Body    []byte
}

// ResolveOrigin derives the target origin: the origin part of APIURL,
// else SelfOrigin, else DefaultOrigin. Never fails.
func ResolveOrigin(cfg Config) string {
	if u, err := url.Parse(cfg.APIURL); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	if cfg.SelfOrigin != "" {
		return cfg.SelfOrigin
	}
	return DefaultOrigin
}

// BuildCandidates produces the ordered, deterministic delivery attempts
// for a payload. Pure: no I/O, and malformed config degrades to the
// default origin instead of failing.
//
// Order is significant and fixed:
//  1. POST {origin}/api/routes (canonical upsert)
//  2. POST {origin}/api/routes/ (trailing-slash variant, for strict
//     router matching)
//  3. POST {DefaultOrigin}/api/routes (hard fallback, only when the
//     resolved origin differs)
func BuildCandidates(cfg Config, p Payload) []Candidate {
	origin := ResolveOrigin(cfg)
	body, _ := json.Marshal(p)

	headers := map[string]string{"Content-Type": "application/json"}
	if cfg.APIKey != "" {
		headers["x-api-key"] = cfg.APIKey
	}

	candidates := []Candidate{
		{Method: http.MethodPost, URL: origin + "/api/routes", Label: "primary", Headers: headers, Body: body},
		{Method: http.MethodPost, URL: origin + "/api/routes/", Label: "primary-slash", Headers: headers, Body: body},
	}
	if origin != DefaultOrigin {
		candidates = append(candidates, Candidate{
			Method: http.MethodPost, URL: DefaultOrigin + "/api/routes", Label: "hard-fallback",
			Headers: headers, Body: body,
		})
	}
	return candidates
}

// ReadEndpoints returns the ordered fallback read endpoints for the
// merge strategy: the structured-data reader first, then the raw
// document.
func ReadEndpoints(cfg Config) []string {
	origin := ResolveOrigin(cfg)
	return []string{
		origin + "/api/data/routes.json",
		origin + "/routes.json",
	}
}

// WriteEndpoints returns the ordered fallback write endpoints for the
// merged document: the API-backed save endpoint first, then the
// static-file direct write.
func WriteEndpoints(cfg Config) []string {
	origin := ResolveOrigin(cfg)
	return []string{
		origin + "/api/save/routes.json",
		origin + "/routes.json",
	}
}
