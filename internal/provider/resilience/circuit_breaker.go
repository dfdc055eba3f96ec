// Package resilience wraps outbound calls to the catalog service, the sync endpoint and the
// connectivity target with per-provider circuit breakers, timeouts and retries.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig holds the breaker policy for one provider.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is the number of trial requests let through while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically. Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// ReadyToTrip decides, from the closed-state counts, when to open.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called on every transition. NewClient logs transitions when nil.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// BreakerConfigFor returns the breaker policy for a named provider.
//
// The catalog service is called rarely, for whole snapshot downloads, so a short run of
// failures opens it for several minutes. Sync uploads are batched and retried by the
// worker, so they trip on a failure ratio over a rolling window. The connectivity target
// is checked once per operation without retries; it opens after two straight misses and
// half-opens quickly so a device that regains its link is noticed within seconds.
// Any other name gets the failure-ratio policy.
func BreakerConfigFor(name string) CircuitBreakerConfig {
	switch name {
	case ProviderCropCatalog:
		return CircuitBreakerConfig{
			Name:        name,
			MaxRequests: 1,
			Timeout:     5 * time.Minute,
			ReadyToTrip: TripAfterConsecutive(3),
		}
	case ProviderSyncUpload:
		return CircuitBreakerConfig{
			Name:        name,
			MaxRequests: 2,
			Interval:    10 * time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: TripOnFailureRatio(4, 0.5),
		}
	case ProviderConnectivity:
		return CircuitBreakerConfig{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     15 * time.Second,
			ReadyToTrip: TripAfterConsecutive(2),
		}
	default:
		return CircuitBreakerConfig{
			Name:        name,
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: TripOnFailureRatio(5, 0.5),
		}
	}
}

// TripAfterConsecutive opens the breaker after n failures in a row.
func TripAfterConsecutive(n uint32) func(gobreaker.Counts) bool {
	return func(c gobreaker.Counts) bool {
		return c.ConsecutiveFailures >= n
	}
}

// TripOnFailureRatio opens the breaker once at least minRequests were made and the share
// of failures reaches ratio.
func TripOnFailureRatio(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(c gobreaker.Counts) bool {
		if c.Requests < minRequests {
			return false
		}
		return float64(c.TotalFailures)/float64(c.Requests) >= ratio
	}
}

// NewCircuitBreaker creates a breaker from cfg. Requests abandoned by the caller
// (context canceled) do not count against the provider.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

func logStateChange(logger zerolog.Logger) func(string, gobreaker.State, gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		event := logger.Info()
		if to == gobreaker.StateOpen {
			event = logger.Warn()
		}
		event.Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
	}
}
