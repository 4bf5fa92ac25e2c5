// Package feedback generates short LLM-written explanations of the
// mistakes in a dictation attempt, shown after a segment is revealed.
// Feedback is strictly optional: every failure path degrades to "no
// feedback" and never disturbs the session.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/manhtienmai/dailyfluent/internal/align"
	"github.com/manhtienmai/dailyfluent/internal/resilience"
)

// ErrUnavailable is returned when feedback cannot be produced, whether
// because the provider failed or its circuit breaker is open.
var ErrUnavailable = errors.New("feedback: unavailable")

// defaultTimeout bounds one feedback completion.
const defaultTimeout = 15 * time.Second

// systemPrompt frames the model as a language tutor.
const systemPrompt = `You are an encouraging English tutor helping a learner practise dictation.
Given the reference sentence and the learner's mistakes, explain in at most
three short sentences what went wrong and how to hear it next time.
Address the learner directly. Do not repeat the full reference sentence.`

// Provider produces one completion. Implementations must be safe for
// concurrent use.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// GeneratorConfig configures a [Generator].
type GeneratorConfig struct {
	// Provider produces the completions.
	Provider Provider

	// Timeout bounds each completion. Defaults to 15s.
	Timeout time.Duration

	// Breaker tunes the circuit breaker guarding the provider.
	Breaker resilience.CircuitBreakerConfig
}

// Generator turns an alignment diff into a tutoring note.
//
// All methods are safe for concurrent use.
type Generator struct {
	provider Provider
	timeout  time.Duration
	breaker  *resilience.CircuitBreaker
}

// NewGenerator creates a generator guarded by a circuit breaker.
func NewGenerator(cfg GeneratorConfig) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	breakerCfg := cfg.Breaker
	if breakerCfg.Name == "" {
		breakerCfg.Name = "feedback"
	}
	return &Generator{
		provider: cfg.Provider,
		timeout:  timeout,
		breaker:  resilience.NewCircuitBreaker(breakerCfg),
	}
}

// Explain produces a tutoring note for one failed segment. Returns
// [ErrUnavailable] when the diff has no mistakes to explain or the
// provider cannot be reached.
func (g *Generator) Explain(ctx context.Context, reference string, items []align.Item) (string, error) {
	prompt := buildPrompt(reference, items)
	if prompt == "" {
		return "", ErrUnavailable
	}

	var note string
	err := g.breaker.Execute(func() error {
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		out, err := g.provider.Complete(cctx, systemPrompt, prompt)
		if err != nil {
			return err
		}
		note = strings.TrimSpace(out)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if note == "" {
		return "", ErrUnavailable
	}
	return note, nil
}

// buildPrompt summarises the diff for the model. Returns "" when there is
// nothing worth explaining.
func buildPrompt(reference string, items []align.Item) string {
	var missing, extra, near []string
	for _, it := range items {
		switch it.Kind {
		case align.Missing:
			missing = append(missing, it.Correct)
		case align.Extra:
			extra = append(extra, it.User)
		case align.Near:
			near = append(near, fmt.Sprintf("%s (heard as %q)", it.Correct, it.User))
		}
	}
	if len(missing) == 0 && len(extra) == 0 && len(near) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reference sentence: %q\n", reference)
	if len(missing) > 0 {
		fmt.Fprintf(&b, "Words the learner missed: %s\n", strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		fmt.Fprintf(&b, "Words the learner added that are not in the sentence: %s\n", strings.Join(extra, ", "))
	}
	if len(near) > 0 {
		fmt.Fprintf(&b, "Words the learner nearly got: %s\n", strings.Join(near, ", "))
	}
	return b.String()
}
