package sync

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the delivery engine. Callers classify
// with errors.Is to decide between surfacing, queueing, and retrying.
var (
	// ErrUnauthorized means the backend rejected the request with
	// 401/403. Fatal to the attempt and never queued: silent retries
	// would mask a credential problem the user must act on.
	ErrUnauthorized = errors.New("server rejected request (unauthorized)")

	// ErrFallbackFailed means every primary candidate and every merge
	// fallback endpoint was exhausted without an accepted write. The
	// date is eligible for the offline queue.
	ErrFallbackFailed = errors.New("merge fallback failed")

	// ErrSendInFlight means a delivery for this date is already
	// outstanding; the new attempt was not started.
	ErrSendInFlight = errors.New("send already in progress for this date")
)

// StatusError records a non-success HTTP response from one endpoint.
// Status 0 means no response at all (network error or timeout).
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: no response", e.URL)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Status)
}

// IsInfrastructure reports whether err is attributable to network or
// server unavailability (no response, or 5xx) rather than to request
// correctness or authorization. Fallback exhaustion counts: it is only
// reached after every endpoint failed.
func IsInfrastructure(err error) bool {
	if errors.Is(err, ErrFallbackFailed) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == 0 || (se.Status >= 500 && se.Status < 600)
	}
	return false
}

func isAuthStatus(status int) bool {
	return status == 401 || status == 403
}

func isSuccess(status int) bool {
	return (status >= 200 && status < 300) || status == 204
}
