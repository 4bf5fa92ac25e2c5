package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [Failover] fails or has an
// open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FailoverConfig configures the per-entry circuit breaker created for each
// provider in a [Failover].
type FailoverConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// failoverEntry pairs a provider value with its dedicated breaker.
type failoverEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// Failover wraps a primary and zero or more fallback instances of the same
// provider type. When the primary fails, or its breaker is open, the next
// healthy fallback is tried in registration order.
//
// Failover is safe for concurrent use once assembled; AddFallback must not
// race with Execute.
type Failover[T any] struct {
	entries []failoverEntry[T]
	cfg     FailoverConfig
}

// NewFailover creates a [Failover] with primary as the first entry.
func NewFailover[T any](primary T, primaryName string, cfg FailoverConfig) *Failover[T] {
	cbCfg := cfg.CircuitBreaker
	cbCfg.Name = primaryName
	return &Failover[T]{
		entries: []failoverEntry[T]{{
			name:    primaryName,
			value:   primary,
			breaker: NewCircuitBreaker(cbCfg),
		}},
		cfg: cfg,
	}
}

// AddFallback appends a fallback provider, tried after the primary in the
// order added.
func (f *Failover[T]) AddFallback(name string, fallback T) {
	cbCfg := f.cfg.CircuitBreaker
	cbCfg.Name = name
	f.entries = append(f.entries, failoverEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Execute tries fn against each entry in order until one succeeds. Entries
// with open breakers are skipped. Returns [ErrAllFailed] wrapping the last
// error if every entry fails.
func (f *Failover[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i := range f.entries {
		entry := &f.entries[i]
		err := entry.breaker.Execute(func() error {
			return fn(entry.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult tries fn against each entry until one succeeds,
// returning the result. Package-level because Go does not support
// method-level type parameters.
func ExecuteWithResult[T any, R any](f *Failover[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range f.entries {
		entry := &f.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
