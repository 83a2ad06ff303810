package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-lookup-service/internal/models"
)

// BreakerConfig configures NewBreakerClient.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32        // failures in a row that open the circuit
	Interval            time.Duration // closed-state count reset period; 0 never resets
	Timeout             time.Duration // open-state duration before a half-open probe
	OnStateChange       func(name string, from, to gobreaker.State)
}

// BreakerClient guards a WeatherClient with a circuit breaker. While open it
// fails fast with an error matching both ErrCircuitOpen and ErrUpstreamFailure.
type BreakerClient struct {
	cb   *gobreaker.CircuitBreaker
	next WeatherClient
}

// NewBreakerClient wraps next.
func NewBreakerClient(next WeatherClient, cfg BreakerConfig) *BreakerClient {
	if cfg.Name == "" {
		cfg.Name = "weather_api"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	threshold := cfg.ConsecutiveFailures
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful:  countsAsSuccess,
		OnStateChange: cfg.OnStateChange,
	}
	return &BreakerClient{
		cb:   gobreaker.NewCircuitBreaker(settings),
		next: next,
	}
}

// countsAsSuccess keeps local faults (no key, caller cancellation) and unknown
// locations from tripping the breaker.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, ErrAPIKeyMissing) ||
		errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, context.Canceled)
}

// FetchDay implements WeatherClient.
func (b *BreakerClient) FetchDay(ctx context.Context, query models.WeatherQuery) (models.WeatherResult, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.FetchDay(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return models.WeatherResult{}, fmt.Errorf("%w: %w: %v", ErrUpstreamFailure, ErrCircuitOpen, err)
		}
		return models.WeatherResult{}, err
	}
	res, ok := result.(models.WeatherResult)
	if !ok {
		return models.WeatherResult{}, fmt.Errorf("breaker %s: unexpected result type %T", b.cb.Name(), result)
	}
	return res, nil
}

// State returns the breaker state.
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}
