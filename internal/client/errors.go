package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAPIKeyMissing means no provider key is configured. No request is sent.
	ErrAPIKeyMissing = errors.New("API key is missing")
	// ErrUpstreamFailure matches every non-2xx provider response and an open circuit.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrMalformedResponse means a 2xx body lacked days[0].temp, conditions or humidity.
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrCircuitOpen is returned without calling upstream while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrRateLimited      = errors.New("rate limited")
)

// StatusError reports a non-2xx provider response. It matches ErrUpstreamFailure
// and, depending on the status, ErrInvalidAPIKey, ErrLocationNotFound or ErrRateLimited.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream failure: HTTP %d", e.StatusCode)
}

// Is reports whether target is one of the sentinels this status maps to.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUpstreamFailure:
		return true
	case ErrInvalidAPIKey:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrLocationNotFound:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusNotFound
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}
