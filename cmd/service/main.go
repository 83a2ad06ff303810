package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup-service/internal/cache"
	"github.com/kjstillabower/weather-lookup-service/internal/client"
	"github.com/kjstillabower/weather-lookup-service/internal/config"
	httphandler "github.com/kjstillabower/weather-lookup-service/internal/http"
	"github.com/kjstillabower/weather-lookup-service/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
	"github.com/kjstillabower/weather-lookup-service/internal/service"
)

const serviceName = "weather-lookup-service"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Never log the key itself.
	logger.Info("configuration loaded",
		zap.Bool("api_key_set", cfg.WeatherAPIKey != ""),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Bool("cache_fail_on_write_error", cfg.CacheFailOnWriteError))
	if cfg.WeatherAPIKey == "" {
		logger.Warn("WEATHER_API_KEY not set; cache misses will fail with 500")
	}

	weatherClient, breakerState, err := newWeatherClient(cfg, logger)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	backend, err := newCacheBackend(cfg)
	if err != nil {
		logger.Fatal("cache backend", zap.Error(err))
	}
	logger.Info("cache backend ready", zap.String("backend", cfg.CacheBackend))
	if backend.ping != nil {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := backend.ping(pingCtx); err != nil {
			logger.Warn("cache not reachable at startup", zap.String("backend", cfg.CacheBackend), zap.Error(err))
		}
		cancel()
	}

	weatherService := service.NewWeatherService(weatherClient, backend.cache, cfg.CacheTTL, cfg.CacheFailOnWriteError)
	if len(cfg.TrackedCities) > 0 {
		observability.SetTrackedCities(cfg.TrackedCities)
	}

	handler := httphandler.NewHandler(weatherService, httphandler.HandlerConfig{
		CityMinLength:    cfg.CityMinLength,
		CityMaxLength:    cfg.CityMaxLength,
		CachePing:        backend.ping,
		BreakerState:     breakerState,
		APIKeyConfigured: cfg.WeatherAPIKey != "",
		Version:          version,
		StartTime:        time.Now(),
	}, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered", zap.Int64("in_flight", httphandler.InFlightCount()))
	err = lifecycle.Shutdown(context.Background(), logger,
		// Drain while the listener is still open so /health reports shutting-down.
		lifecycle.Step{Name: "drain", Timeout: cfg.ShutdownInFlightTimeout, Run: func(ctx context.Context) error {
			return httphandler.WaitForInFlight(ctx, cfg.ShutdownInFlightCheckInterval)
		}},
		lifecycle.Step{Name: "http_server", Timeout: cfg.ShutdownTimeout, Run: srv.Shutdown},
		lifecycle.Step{Name: "cache", Run: func(context.Context) error { return backend.close() }},
		lifecycle.Step{Name: "telemetry", Run: func(context.Context) error { return observability.FlushTelemetry(logger) }},
	)
	if err != nil {
		logger.Warn("shutdown completed with errors", zap.Error(err), zap.Int64("remaining_in_flight", httphandler.InFlightCount()))
		return
	}
	logger.Info("shutdown complete")
}

// cacheBackend bundles the selected cache with its optional health probe and closer.
type cacheBackend struct {
	cache cache.Cache
	ping  func(ctx context.Context) error
	close func() error
}

func newCacheBackend(cfg *config.Config) (cacheBackend, error) {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		rc := cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Timeout:  cfg.RedisTimeout,
		})
		return cacheBackend{cache: rc, ping: rc.Ping, close: rc.Close}, nil
	case config.BackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return cacheBackend{}, fmt.Errorf("memcached: %w", err)
		}
		return cacheBackend{cache: mc, ping: mc.Ping, close: mc.Close}, nil
	case config.BackendInMemory:
		return cacheBackend{cache: cache.NewInMemoryCache(), close: func() error { return nil }}, nil
	default:
		return cacheBackend{}, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// newWeatherClient builds the Visual Crossing client, wrapped in a circuit breaker when enabled.
// The returned state func is nil when the breaker is disabled.
func newWeatherClient(cfg *config.Config, logger *zap.Logger) (client.WeatherClient, func() string, error) {
	vc, err := client.NewVisualCrossingClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.CircuitBreakerEnabled {
		return vc, nil, nil
	}

	const component = "weather_api"
	bc := client.NewBreakerClient(vc, client.BreakerConfig{
		Name:                component,
		ConsecutiveFailures: uint32(cfg.CircuitBreakerFailureThreshold),
		Interval:            cfg.CircuitBreakerInterval,
		Timeout:             cfg.CircuitBreakerTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.RecordCircuitBreakerTransition(name, from.String(), to.String())
			logger.Warn("circuit breaker state change",
				zap.String("component", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	observability.CircuitBreakerState.WithLabelValues(component).Set(0)
	logger.Info("circuit breaker enabled",
		zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
		zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	return bc, func() string { return bc.State().String() }, nil
}

// writeTimeout leaves room for the slowest lookup: the request deadline when set,
// otherwise the upstream timeout plus cache round trips.
func writeTimeout(cfg *config.Config) time.Duration {
	if cfg.RequestTimeout > 0 {
		return cfg.RequestTimeout + 5*time.Second
	}
	return cfg.WeatherAPITimeout + 5*time.Second
}
