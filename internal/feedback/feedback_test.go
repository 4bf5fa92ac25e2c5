package feedback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/manhtienmai/dailyfluent/internal/align"
	"github.com/manhtienmai/dailyfluent/internal/resilience"
)

// fakeProvider returns a canned completion, recording the prompts it saw.
type fakeProvider struct {
	out     string
	err     error
	prompts []string
}

func (f *fakeProvider) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func mistakeItems() []align.Item {
	return []align.Item{
		{Kind: align.Exact, User: "the", Correct: "the"},
		{Kind: align.Missing, Correct: "quick"},
		{Kind: align.Near, User: "fok", Correct: "fox"},
		{Kind: align.Extra, User: "um"},
	}
}

func TestExplain(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{out: "  Listen for the word before fox.  "}
	g := NewGenerator(GeneratorConfig{Provider: p})

	note, err := g.Explain(context.Background(), "the quick fox", mistakeItems())
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if note != "Listen for the word before fox." {
		t.Errorf("note = %q, want trimmed completion", note)
	}

	if len(p.prompts) != 1 {
		t.Fatalf("provider called %d times, want 1", len(p.prompts))
	}
	prompt := p.prompts[0]
	for _, want := range []string{"quick", "um", "fok"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestExplainNothingToExplain(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{out: "great job"}
	g := NewGenerator(GeneratorConfig{Provider: p})

	items := []align.Item{{Kind: align.Exact, User: "hi", Correct: "hi"}}
	if _, err := g.Explain(context.Background(), "hi", items); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable for a clean diff", err)
	}
	if len(p.prompts) != 0 {
		t.Error("provider called for a diff with no mistakes")
	}
}

func TestExplainProviderFailureIsSoft(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{err: errors.New("rate limited")}
	g := NewGenerator(GeneratorConfig{Provider: p})

	_, err := g.Explain(context.Background(), "the quick fox", mistakeItems())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestExplainBreakerStopsHammering(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{err: errors.New("down")}
	g := NewGenerator(GeneratorConfig{
		Provider: p,
		Breaker: resilience.CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = g.Explain(ctx, "the quick fox", mistakeItems())
	}
	if len(p.prompts) != 2 {
		t.Errorf("provider called %d times, want 2 before the breaker opened", len(p.prompts))
	}
}
