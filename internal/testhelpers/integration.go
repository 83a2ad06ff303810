//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weather-lookup-service/internal/cache"
	"github.com/kjstillabower/weather-lookup-service/internal/client"
	"github.com/kjstillabower/weather-lookup-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	CacheBackend  string // "in_memory", "memcached" or "redis"
	MemcachedAddr string
	RedisAddr     string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultBaseURL
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	return IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        apiURL,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
		RedisAddr:     redisAddr,
	}
}

// SetupIntegrationCache returns the backend named by cfg.CacheBackend, falling back to
// the in-memory cache when the server is unreachable. The cleanup closes the connection.
func SetupIntegrationCache(t *testing.T, cfg IntegrationTestConfig) (cache.Cache, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil {
			if err = mc.Ping(ctx); err == nil {
				t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
				return mc, func() { _ = mc.Close() }
			}
			_ = mc.Close()
		}
		t.Logf("Memcached not available (%v), using in-memory cache", err)
	case "redis":
		rc := cache.NewRedisCache(cache.RedisOptions{Addr: cfg.RedisAddr, Timeout: 500 * time.Millisecond})
		err := rc.Ping(ctx)
		if err == nil {
			t.Logf("Using Redis cache at %s", cfg.RedisAddr)
			return rc, func() { _ = rc.Close() }
		}
		_ = rc.Close()
		t.Logf("Redis not available (%v), using in-memory cache", err)
	}
	return cache.NewInMemoryCache(), func() {}
}

// SetupIntegrationService creates a service wired to the real provider and the configured cache.
// Returns weather service, cache instance, and cleanup function.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, cache.Cache, func()) {
	t.Helper()
	weatherClient := SetupIntegrationClient(t, cfg)
	cacheSvc, cleanup := SetupIntegrationCache(t, cfg)
	return service.NewWeatherService(weatherClient, cacheSvc, service.DefaultTTL, true), cacheSvc, cleanup
}

// SetupIntegrationClient creates a weather client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) client.WeatherClient {
	t.Helper()
	c, err := client.NewVisualCrossingClient(cfg.APIKey, cfg.APIURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewVisualCrossingClient() error = %v", err)
	}
	return c
}

// EvictToday removes today's entry for city so runs against a shared cache still hit the miss path.
func EvictToday(t *testing.T, svc *service.WeatherService, city string) {
	t.Helper()
	if err := svc.ClearCacheForDate(context.Background(), city, svc.Today()); err != nil {
		t.Fatalf("evict %s: %v", city, err)
	}
}
