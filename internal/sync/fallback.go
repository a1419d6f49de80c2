package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lumastack/routelog/internal/wire"
)

// mergePutFallback is the last-resort delivery strategy for
// document-shaped backends: read the current remote document, upsert
// the payload under its date, write the whole merged document back.
// A blind overwrite would destroy other days' data, hence read first.
func (e *Engine) mergePutFallback(ctx context.Context, date string, p wire.Payload) (json.RawMessage, error) {
	doc := e.readRemoteDocument(ctx)
	doc.Upsert(date, p)

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("merge fallback: %w", err)
	}

	headers := e.apiHeaders()
	var last error
	for _, u := range wire.WriteEndpoints(e.cfg) {
		respBody, status, err := e.do(ctx, http.MethodPut, u, headers, body)
		if err != nil {
			e.log.Warn("fallback write failed", "url", u, "status", 0, "error", err)
			last = err
			continue
		}
		if isSuccess(status) {
			e.log.Debug("fallback write accepted", "url", u, "status", status)
			return respBody, nil
		}
		if isAuthStatus(status) {
			e.log.Warn("fallback write rejected", "url", u, "status", status)
			return nil, fmt.Errorf("%w: %s returned %d", ErrUnauthorized, u, status)
		}
		e.log.Warn("fallback write failed", "url", u, "status", status)
		last = &StatusError{Status: status, URL: u}
	}

	return nil, fmt.Errorf("%w: %v", ErrFallbackFailed, last)
}

// readRemoteDocument fetches the current remote state from the ordered
// read endpoints. Every failure degrades silently: an unreachable or
// absent document is treated as empty, never an error.
func (e *Engine) readRemoteDocument(ctx context.Context) wire.Document {
	for _, u := range wire.ReadEndpoints(e.cfg) {
		body, status, err := e.do(ctx, http.MethodGet, u, e.apiHeaders(), nil)
		if err != nil {
			e.log.Debug("fallback read failed", "url", u, "status", 0, "error", err)
			continue
		}
		if !isSuccess(status) {
			e.log.Debug("fallback read failed", "url", u, "status", status)
			continue
		}
		var doc wire.Document
		if err := json.Unmarshal(body, &doc); err != nil {
			e.log.Debug("fallback read returned non-JSON", "url", u, "error", err)
			continue
		}
		return doc
	}
	return wire.Document{}
}
