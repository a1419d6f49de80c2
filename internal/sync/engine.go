// Package sync implements outbound delivery of day records to the
// remote store: the ordered-candidate delivery engine, the
// read-merge-write fallback, and the offline queue processor.
//
// The engine is a client of exactly one logical destination; there is
// no multi-device conflict resolution. Delivery is best-effort in
// enqueue order.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	gosync "sync"

	"github.com/lumastack/routelog/internal/day"
	"github.com/lumastack/routelog/internal/store"
	"github.com/lumastack/routelog/internal/wire"
)

// maxResponseBytes caps how much of a response body is read; remote
// documents for one technician are small.
const maxResponseBytes = 4 << 20

// Options configures the engine beyond its required collaborators.
type Options struct {
	// Client is the HTTP client used for every request. Defaults to
	// http.DefaultClient; tests inject a scripted transport.
	Client *http.Client
	// Probe reports device connectivity; when nil the device is assumed
	// online.
	Probe Probe
	// Logger receives per-attempt diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
	// OnQueued, when set, is invoked after a date is pushed onto the
	// offline queue.
	OnQueued func(date string)
}

// Engine delivers day records to the remote store and drains the
// offline queue. At most one delivery per date runs at a time.
type Engine struct {
	store    *store.Store
	cfg      wire.Config
	client   *http.Client
	probe    Probe
	log      *slog.Logger
	onQueued func(string)

	mu       gosync.Mutex
	inFlight map[string]bool
}

// New builds an Engine over the store and delivery configuration.
func New(st *store.Store, cfg wire.Config, opts Options) *Engine {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:    st,
		cfg:      cfg,
		client:   client,
		probe:    opts.Probe,
		log:      log,
		onQueued: opts.OnQueued,
		inFlight: make(map[string]bool),
	}
}

// SendDay normalizes the record and attempts delivery: each candidate
// strictly in order, then the merge fallback. Returns the remote
// acknowledgement body on the first accepted attempt.
//
// 401/403 from any candidate aborts immediately with ErrUnauthorized;
// later candidates are not tried, since continued fallback would hide a
// real access problem. Any other failure moves on to the next
// candidate.
func (e *Engine) SendDay(ctx context.Context, rec day.Record) (json.RawMessage, error) {
	payload, err := wire.BuildPayload(rec)
	if err != nil {
		return nil, err
	}
	return e.sendPayload(ctx, payload)
}

func (e *Engine) sendPayload(ctx context.Context, p wire.Payload) (json.RawMessage, error) {
	for _, c := range wire.BuildCandidates(e.cfg, p) {
		body, status, err := e.do(ctx, c.Method, c.URL, c.Headers, c.Body)
		if err != nil {
			e.log.Warn("delivery attempt failed",
				"url", c.URL, "label", c.Label, "status", 0, "error", err)
			continue
		}
		if isSuccess(status) {
			e.log.Debug("delivery accepted", "url", c.URL, "label", c.Label, "status", status)
			return body, nil
		}
		if isAuthStatus(status) {
			e.log.Warn("delivery rejected",
				"url", c.URL, "label", c.Label, "status", status)
			return nil, fmt.Errorf("%w: %s returned %d", ErrUnauthorized, c.URL, status)
		}
		e.log.Warn("delivery attempt failed",
			"url", c.URL, "label", c.Label, "status", status)
	}

	return e.mergePutFallback(ctx, p.Date, p)
}

// SubmitResult describes the outcome of Submit.
type SubmitResult struct {
	// Ack is the remote acknowledgement body on success.
	Ack json.RawMessage
	// Sent is true when delivery was confirmed and the record was
	// marked sent.
	Sent bool
	// Queued is true when the date was pushed onto the offline queue
	// for automatic retry.
	Queued bool
}

// Submit is the full send operation: deliver, then record the outcome.
// On success the record is marked sent, persisted, and removed from the
// offline queue. On an infrastructure-class failure the date is
// enqueued for automatic retry and the error is still returned so the
// caller can message the user. Authorization errors are returned
// without enqueueing.
//
// Only one Submit (or queue drain) per date runs at a time; a
// concurrent attempt returns ErrSendInFlight.
func (e *Engine) Submit(ctx context.Context, rec day.Record) (SubmitResult, error) {
	if !e.beginSend(rec.Date) {
		return SubmitResult{}, fmt.Errorf("%w: %s", ErrSendInFlight, rec.Date)
	}
	defer e.endSend(rec.Date)

	ack, err := e.SendDay(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return SubmitResult{}, err
		}
		if IsInfrastructure(err) {
			if qErr := e.store.Enqueue(ctx, rec.Date); qErr != nil {
				e.log.Error("failed to enqueue after delivery failure",
					"date", rec.Date, "error", qErr)
			} else {
				e.log.Info("date queued for retry", "date", rec.Date)
				if e.onQueued != nil {
					e.onQueued(rec.Date)
				}
			}
			return SubmitResult{Queued: true}, err
		}
		return SubmitResult{}, err
	}

	rec.Sent = true
	if err := e.store.SaveDay(ctx, rec); err != nil {
		return SubmitResult{Ack: ack}, fmt.Errorf("delivered but not recorded: %w", err)
	}
	if err := e.store.Dequeue(ctx, rec.Date); err != nil {
		e.log.Warn("dequeue after success failed", "date", rec.Date, "error", err)
	}
	return SubmitResult{Ack: ack, Sent: true}, nil
}

// FetchDay reads the remote document and returns the payload stored
// under date, if any. Used to inspect past days that may only exist
// remotely.
func (e *Engine) FetchDay(ctx context.Context, date string) (wire.Payload, bool) {
	doc := e.readRemoteDocument(ctx)
	p, ok := doc.Days[date]
	return p, ok
}

// beginSend marks date as having a delivery in flight.
// Returns false when one is already outstanding.
func (e *Engine) beginSend(date string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[date] {
		return false
	}
	e.inFlight[date] = true
	return true
}

func (e *Engine) endSend(date string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, date)
}

// apiHeaders returns the headers shared by fallback reads and writes.
func (e *Engine) apiHeaders() map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if e.cfg.APIKey != "" {
		headers["x-api-key"] = e.cfg.APIKey
	}
	return headers
}

// do executes one HTTP request and returns the body and status.
// A transport-level failure returns status 0 semantics via err.
func (e *Engine) do(ctx context.Context, method, url string, headers map[string]string, body []byte) (json.RawMessage, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, err
	}
	return b, resp.StatusCode, nil
}
