package feedback

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// AnyLLM is a [Provider] backed by github.com/mozilla-ai/any-llm-go.
type AnyLLM struct {
	backend anyllmlib.Provider
	model   string
}

var _ Provider = (*AnyLLM)(nil)

// NewAnyLLM creates an [AnyLLM] for the given provider name, one of
// "openai", "anthropic", "gemini" or "ollama". Without an explicit API-key
// option the backend reads its usual environment variable
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY).
func NewAnyLLM(providerName, model string, opts ...anyllmlib.Option) (*AnyLLM, error) {
	if model == "" {
		return nil, fmt.Errorf("feedback: model must not be empty")
	}

	var (
		backend anyllmlib.Provider
		err     error
	)
	switch strings.ToLower(providerName) {
	case "openai":
		backend, err = anyllmoai.New(opts...)
	case "anthropic":
		backend, err = anthropic.New(opts...)
	case "gemini":
		backend, err = gemini.New(opts...)
	case "ollama":
		backend, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("feedback: unsupported provider %q; supported: openai, anthropic, gemini, ollama", providerName)
	}
	if err != nil {
		return nil, fmt.Errorf("feedback: create %q backend: %w", providerName, err)
	}

	return &AnyLLM{backend: backend, model: model}, nil
}

// Complete implements [Provider].
func (a *AnyLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := a.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: a.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: system},
			{Role: anyllmlib.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("feedback: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("feedback: empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}
