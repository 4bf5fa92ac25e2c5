// Package mock provides an in-memory mock implementation of
// [stt.Transcriber] for use in unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/manhtienmai/dailyfluent/pkg/stt"
)

// Compile-time interface assertion.
var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber is a mock implementation of [stt.Transcriber].
// Set the exported Result/Err fields before use; inspect Calls after.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by every call to Transcribe.
	Result []stt.Span

	// Err, when non-nil, is returned instead of Result.
	Err error

	// Calls counts invocations of Transcribe.
	Calls int
}

// Transcribe implements [stt.Transcriber].
func (t *Transcriber) Transcribe(_ context.Context, _ []float32, _ int) ([]stt.Span, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls++
	if t.Err != nil {
		return nil, t.Err
	}
	out := make([]stt.Span, len(t.Result))
	copy(out, t.Result)
	return out, nil
}
