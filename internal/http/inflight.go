package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kjstillabower/weather-lookup-service/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
)

// weatherRequests counts weather requests admitted by DrainMiddleware. Shutdown
// waits for it to reach zero before the listener is closed.
type weatherRequests struct {
	n atomic.Int64
}

// admit registers a request unless the process is shutting down. The count is
// raised before the flag is read, so a drain that starts after the flag is set
// always sees every request that got through.
func (c *weatherRequests) admit() bool {
	c.n.Add(1)
	if lifecycle.IsShuttingDown() {
		c.n.Add(-1)
		return false
	}
	return true
}

func (c *weatherRequests) done() {
	c.n.Add(-1)
}

func (c *weatherRequests) count() int64 {
	return c.n.Load()
}

func (c *weatherRequests) waitForZero(ctx context.Context, checkInterval time.Duration) error {
	if checkInterval <= 0 {
		checkInterval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for c.count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

var inFlight weatherRequests

// DrainMiddleware tracks in-flight weather requests and, once shutdown has begun,
// turns new ones away with 503 SHUTTING_DOWN while admitted ones finish.
func DrainMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !inFlight.admit() {
			observability.LoggerFromContext(r.Context()).Debug("request rejected during shutdown")
			w.Header().Set("Connection", "close")
			writeError(w, r, http.StatusServiceUnavailable, "SHUTTING_DOWN", "Service is shutting down")
			return
		}
		defer inFlight.done()
		next.ServeHTTP(w, r)
	})
}

// InFlightCount returns the number of weather requests currently being served.
func InFlightCount() int64 {
	return inFlight.count()
}

// WaitForInFlight blocks until admitted weather requests finish or ctx is done.
// Run it after lifecycle.SetShuttingDown and before closing the server.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return inFlight.waitForZero(ctx, checkInterval)
}
