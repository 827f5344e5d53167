package crawler

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies fetch failures so callers can decide whether a
// retry is worthwhile.
type FetchErrorKind string

const (
	// FetchBlocked means the origin refused us (HTTP 403).
	FetchBlocked FetchErrorKind = "blocked"
	// FetchNotFound means the page does not exist (HTTP 404).
	FetchNotFound FetchErrorKind = "not_found"
	// FetchRateLimited means the origin throttled us (HTTP 429).
	FetchRateLimited FetchErrorKind = "rate_limited"
	// FetchNetwork covers transport-level failures.
	FetchNetwork FetchErrorKind = "network"
	// FetchTimeout covers deadline expiry on the request.
	FetchTimeout FetchErrorKind = "timeout"
)

// FetchError is returned by Fetcher implementations for failures that carry
// an HTTP status or a distinguishable transport cause.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt. Blocked
// and not-found responses are permanent; rate limiting and transport
// failures are transient.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case FetchBlocked, FetchNotFound:
		return false
	default:
		return true
	}
}

// ErrRenderUnavailable indicates the headless renderer is disabled or failed
// to start. Callers fall back to the static fetch path.
var ErrRenderUnavailable = errors.New("headless renderer unavailable")

// AsFetchError unwraps err into a *FetchError when possible.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
