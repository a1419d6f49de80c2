package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Call records one request the ScriptedTransport served.
type Call struct {
	Method string
	URL    string
	Body   []byte
}

// Rule matches requests by method and URL and scripts the response.
// Status 0 simulates a transport-level failure (no response at all).
type Rule struct {
	Method    string // empty matches any method
	URL       string // exact match; empty matches any URL
	URLPrefix string // prefix match, used when URL is empty
	Status    int
	Body      string
}

// ScriptedTransport is an http.RoundTripper driven by an ordered rule
// list. The first matching rule wins; an unmatched request fails the
// round trip, which keeps tests honest about every call they trigger.
type ScriptedTransport struct {
	mu    sync.Mutex
	rules []Rule
	calls []Call
}

// NewScriptedTransport builds a transport with the given rules.
func NewScriptedTransport(rules ...Rule) *ScriptedTransport {
	return &ScriptedTransport{rules: rules}
}

// Client wraps the transport in an *http.Client.
func (t *ScriptedTransport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Stub appends a rule.
func (t *ScriptedTransport) Stub(r Rule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules = append(t.rules, r)
}

// Calls returns a copy of every request served so far, in order.
func (t *ScriptedTransport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

// CallsTo returns how many served requests targeted the exact URL.
func (t *ScriptedTransport) CallsTo(url string) int {
	n := 0
	for _, c := range t.Calls() {
		if c.URL == url {
			n++
		}
	}
	return n
}

func (t *ScriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		body = b
	}

	t.mu.Lock()
	t.calls = append(t.calls, Call{Method: req.Method, URL: req.URL.String(), Body: body})
	rule, ok := t.matchLocked(req)
	t.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("scripted transport: no rule for %s %s", req.Method, req.URL)
	}
	if rule.Status == 0 {
		return nil, fmt.Errorf("scripted transport: connection refused for %s", req.URL)
	}
	return &http.Response{
		StatusCode: rule.Status,
		Status:     http.StatusText(rule.Status),
		Body:       io.NopCloser(bytes.NewReader([]byte(rule.Body))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    req,
	}, nil
}

func (t *ScriptedTransport) matchLocked(req *http.Request) (Rule, bool) {
	for _, r := range t.rules {
		if r.Method != "" && r.Method != req.Method {
			continue
		}
		u := req.URL.String()
		if r.URL != "" && r.URL != u {
			continue
		}
		if r.URL == "" && r.URLPrefix != "" && !strings.HasPrefix(u, r.URLPrefix) {
			continue
		}
		return r, true
	}
	return Rule{}, false
}
