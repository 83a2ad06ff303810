package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup-service/internal/observability"
)

// RouterOptions configures the middleware applied to the weather routes.
type RouterOptions struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter // nil disables rate limiting
	RequestTimeout time.Duration // 0 disables the per-request deadline
}

// NewRouter registers the service routes:
//
//	GET    /weather/getWeather?city=
//	DELETE /weather/clearCache?city=[&date=]
//	GET    /health
//	GET    /metrics
//
// The weather routes sit on the root router, not a subrouter, so a method
// mismatch is answered with 405 rather than 404.
func NewRouter(handler *Handler, opts RouterOptions) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(RecoveryMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	rateLimit := RateLimitMiddleware(opts.Limiter)
	timeout := TimeoutMiddleware(opts.RequestTimeout)
	weather := func(h http.HandlerFunc) http.Handler {
		return DrainMiddleware(rateLimit(timeout(h)))
	}
	router.Handle("/weather/getWeather", weather(handler.GetWeather)).Methods(http.MethodGet)
	router.Handle("/weather/clearCache", weather(handler.ClearCache)).Methods(http.MethodDelete)
	return router
}
