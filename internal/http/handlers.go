package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup-service/internal/client"
	"github.com/kjstillabower/weather-lookup-service/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
	"github.com/kjstillabower/weather-lookup-service/internal/service"
	"github.com/kjstillabower/weather-lookup-service/internal/validation"
)

// Plain-text bodies kept compatible with existing API consumers.
const (
	msgAPIKeyMissing  = "API key is missing."
	msgUpstreamFailed = "Error fetching weather data."
)

// HandlerConfig holds request validation bounds and health probe hooks.
type HandlerConfig struct {
	CityMinLength int
	CityMaxLength int
	// CachePing, when set, is called by /health to check cache reachability.
	CachePing func(ctx context.Context) error
	// BreakerState, when set, reports the upstream circuit breaker state ("closed", "half-open", "open").
	BreakerState func() string
	// APIKeyConfigured is reported by /health; a missing key does not fail the probe.
	APIKeyConfigured bool
	Version          string
	StartTime        time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService   *service.WeatherService
	cfg              HandlerConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(weatherService *service.WeatherService, cfg HandlerConfig, logger *zap.Logger) *Handler {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}
	return &Handler{
		weatherService: weatherService,
		cfg:            cfg,
		logger:         logger,
	}
}

// GetWeather handles GET /weather/getWeather?city={city}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(r.URL.Query().Get("city"), h.cfg.CityMinLength, h.cfg.CityMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	result, err := h.weatherService.GetWeather(r.Context(), city)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ClearCache handles DELETE /weather/clearCache?city={city}[&date={YYYY-MM-DD|today}].
// Without date the entry under the bare city name is removed; with date, the
// entry GetWeather wrote for that day.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city, err := validation.CacheCity(q.Get("city"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	if q.Has("date") {
		date, err := validation.ValidateDate(q.Get("date"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_DATE", err.Error())
			return
		}
		if date == "today" {
			date = h.weatherService.Today()
		}
		err = h.weatherService.ClearCacheForDate(r.Context(), city, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	} else if err := h.weatherService.ClearCache(r.Context(), city); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeText(w, http.StatusOK, fmt.Sprintf("Cache for '%s' has been cleared.", city))
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-lookup-service",
		"version":   h.cfg.Version,
		"checks":    result.checks,
		"uptime":    time.Since(h.cfg.StartTime).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down > cache unreachable > breaker open > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	checks := map[string]string{"apiKey": "missing"}
	if h.cfg.APIKeyConfigured {
		checks["apiKey"] = "configured"
	}

	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}

	result := healthResult{"healthy", http.StatusOK, "", checks}
	if h.cfg.CachePing != nil {
		if err := h.cfg.CachePing(ctx); err != nil {
			checks["cache"] = "unhealthy"
			observability.LoggerFromContext(ctx).Debug("cache ping failed", zap.Error(err))
			result = healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable", checks}
		} else {
			checks["cache"] = "healthy"
		}
	}
	if h.cfg.BreakerState != nil {
		state := h.cfg.BreakerState()
		checks["weatherApi"] = state
		if state == "open" && result.status == "healthy" {
			result = healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open", checks}
		}
	}
	return result
}

// writeJSON writes v as a JSON body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeText writes a plain-text body with the given status code.
func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps a lookup or eviction failure to its response:
// missing API key 500 text, upstream rejection 400 text, anything else 500 JSON.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context())
	switch {
	case errors.Is(err, client.ErrAPIKeyMissing):
		logger.Error("weather api key is not configured")
		writeText(w, http.StatusInternalServerError, msgAPIKeyMissing)
	case errors.Is(err, client.ErrUpstreamFailure):
		logger.Warn("upstream error", zap.Error(err), zap.String("category", string(client.CategorizeError(err))))
		writeText(w, http.StatusBadRequest, msgUpstreamFailed)
	case errors.Is(err, client.ErrMalformedResponse):
		logger.Error("malformed upstream response", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Unexpected weather data format")
	case errors.Is(err, service.ErrCache):
		logger.Error("cache failure", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Cache unavailable")
	default:
		logger.Error("weather lookup failed", zap.Error(err), zap.String("category", string(client.CategorizeError(err))))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Unable to fetch weather data")
	}
}
