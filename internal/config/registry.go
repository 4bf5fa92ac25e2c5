package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/manhtienmai/dailyfluent/internal/feedback"
	"github.com/manhtienmai/dailyfluent/pkg/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	stt      map[string]func(STTConfig) (stt.Transcriber, error)
	feedback map[string]func(FeedbackConfig) (feedback.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:      make(map[string]func(STTConfig) (stt.Transcriber, error)),
		feedback: make(map[string]func(FeedbackConfig) (feedback.Provider, error)),
	}
}

// RegisterSTT registers a transcriber factory under name. Subsequent calls
// with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(STTConfig) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterFeedback registers a feedback provider factory under name.
func (r *Registry) RegisterFeedback(name string, factory func(FeedbackConfig) (feedback.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback[name] = factory
}

// CreateSTT instantiates a transcriber using the factory registered under
// name. Returns [ErrProviderNotRegistered] if none is registered.
func (r *Registry) CreateSTT(name string, cfg STTConfig) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, name)
	}
	return factory(cfg)
}

// CreateFeedback instantiates a feedback provider using the factory
// registered under cfg.Provider.
func (r *Registry) CreateFeedback(cfg FeedbackConfig) (feedback.Provider, error) {
	r.mu.RLock()
	factory, ok := r.feedback[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: feedback/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}
