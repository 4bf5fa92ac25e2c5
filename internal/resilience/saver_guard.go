package resilience

import (
	"context"

	"github.com/manhtienmai/dailyfluent/internal/progress"
)

// GuardedSaver wraps a [progress.Saver] with a circuit breaker so that a
// flapping database does not get hammered by every debounced progress
// flush. Writes rejected by an open breaker are dropped; progress saving
// is fire-and-forget by contract.
type GuardedSaver struct {
	inner   progress.Saver
	breaker *CircuitBreaker
}

var _ progress.Saver = (*GuardedSaver)(nil)

// NewGuardedSaver wraps inner with a breaker configured by cfg.
func NewGuardedSaver(inner progress.Saver, cfg CircuitBreakerConfig) *GuardedSaver {
	if cfg.Name == "" {
		cfg.Name = "progress-saver"
	}
	return &GuardedSaver{
		inner:   inner,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Save implements [progress.Saver].
func (g *GuardedSaver) Save(ctx context.Context, rec progress.Record) error {
	return g.breaker.Execute(func() error {
		return g.inner.Save(ctx, rec)
	})
}

// State exposes the breaker state for readiness reporting.
func (g *GuardedSaver) State() State {
	return g.breaker.State()
}
