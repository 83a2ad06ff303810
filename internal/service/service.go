package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup-service/internal/cache"
	"github.com/kjstillabower/weather-lookup-service/internal/client"
	"github.com/kjstillabower/weather-lookup-service/internal/models"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
)

// DefaultTTL is how long a normalized result stays in the cache.
const DefaultTTL = 12 * time.Hour

// DateLayout is the format of WeatherQuery.Date.
const DateLayout = "2006-01-02"

// ErrCache wraps any cache read, write or delete failure, and undecodable cached entries.
var ErrCache = errors.New("cache failure")

// WeatherService serves today's weather for a city using the cache-aside pattern:
// read the cache, on a miss fetch upstream, write the normalized result back with a TTL.
type WeatherService struct {
	client           client.WeatherClient
	cache            cache.Cache
	ttl              time.Duration
	failOnWriteError bool
	now              func() time.Time
}

// NewWeatherService creates a WeatherService. A ttl <= 0 uses DefaultTTL.
// failOnWriteError selects whether a failed cache write fails the lookup
// (true) or is logged and the fetched result returned anyway (false).
func NewWeatherService(client client.WeatherClient, cache cache.Cache, ttl time.Duration, failOnWriteError bool) *WeatherService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &WeatherService{
		client:           client,
		cache:            cache,
		ttl:              ttl,
		failOnWriteError: failOnWriteError,
		now:              time.Now,
	}
}

// Today returns the current UTC date in DateLayout.
func (s *WeatherService) Today() string {
	return s.now().UTC().Format(DateLayout)
}

// GetWeather returns today's weather for city. Performs one cache read, and on a
// miss at most one upstream call and one cache write. Upstream and decode failures
// never write to the cache.
func (s *WeatherService) GetWeather(ctx context.Context, city string) (models.WeatherResult, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)
	query := models.WeatherQuery{City: city, Date: s.Today()}
	key := query.CacheKey()
	observability.RecordWeatherQuery(city)

	raw, ok, err := s.cacheGet(ctx, key)
	if err != nil {
		return models.WeatherResult{}, fmt.Errorf("%w: read %q: %w", ErrCache, key, err)
	}
	if ok {
		var cached models.WeatherResult
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("decode").Inc()
			return models.WeatherResult{}, fmt.Errorf("%w: decode %q: %w", ErrCache, key, err)
		}
		observability.CacheHitsTotal.Inc()
		logger.Debug("weather served", zap.String("city", city), zap.String("date", query.Date), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return cached, nil
	}

	observability.CacheMissesTotal.Inc()
	logger.Debug("cache miss, fetching upstream", zap.String("city", city), zap.String("date", query.Date))

	result, err := s.client.FetchDay(ctx, query)
	if err != nil {
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(client.CategorizeError(err))).Inc()
		return models.WeatherResult{}, fmt.Errorf("fetch weather for %s: %w", city, err)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return models.WeatherResult{}, fmt.Errorf("encode result: %w", err)
	}
	if err := s.cacheSet(ctx, key, string(encoded)); err != nil {
		if s.failOnWriteError {
			return models.WeatherResult{}, fmt.Errorf("%w: write %q: %w", ErrCache, key, err)
		}
		logger.Warn("cache set failed", zap.String("city", city), zap.Error(err))
	}

	logger.Debug("weather served", zap.String("city", city), zap.String("date", query.Date), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return result, nil
}

// ClearCache removes the entry stored under the bare city name. Lookups write
// under city+date, so this does not evict what GetWeather stored; use
// ClearCacheForDate for that. Removing an absent entry succeeds.
func (s *WeatherService) ClearCache(ctx context.Context, city string) error {
	return s.evict(ctx, city)
}

// ClearCacheForDate removes the entry GetWeather writes for city on date.
func (s *WeatherService) ClearCacheForDate(ctx context.Context, city, date string) error {
	return s.evict(ctx, models.WeatherQuery{City: city, Date: date}.CacheKey())
}

func (s *WeatherService) evict(ctx context.Context, key string) error {
	start := time.Now()
	err := s.cache.Delete(ctx, key)
	observeCacheOp("delete", start, err)
	if err != nil {
		return fmt.Errorf("%w: delete %q: %w", ErrCache, key, err)
	}
	observability.LoggerFromContext(ctx).Info("cache entry cleared", zap.String("key", key))
	return nil
}

func (s *WeatherService) cacheGet(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	raw, ok, err := s.cache.Get(ctx, key)
	observeCacheOp("get", start, err)
	return raw, ok, err
}

func (s *WeatherService) cacheSet(ctx context.Context, key, value string) error {
	start := time.Now()
	err := s.cache.Set(ctx, key, value, s.ttl)
	observeCacheOp("set", start, err)
	return err
}

func observeCacheOp(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
		observability.CacheErrorsTotal.WithLabelValues(op).Inc()
	}
	observability.CacheOperationDurationSeconds.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}
