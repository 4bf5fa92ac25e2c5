package resilience

import (
	"context"

	"github.com/manhtienmai/dailyfluent/pkg/stt"
)

// TranscriberFailover implements [stt.Transcriber] with automatic failover
// across multiple transcription backends, e.g. a large whisper model with a
// smaller one as fallback. Each backend has its own circuit breaker.
type TranscriberFailover struct {
	group *Failover[stt.Transcriber]
}

var _ stt.Transcriber = (*TranscriberFailover)(nil)

// NewTranscriberFailover creates a failover with primary as the preferred
// backend.
func NewTranscriberFailover(primary stt.Transcriber, primaryName string, cfg FailoverConfig) *TranscriberFailover {
	return &TranscriberFailover{
		group: NewFailover(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription backend.
func (t *TranscriberFailover) AddFallback(name string, tr stt.Transcriber) {
	t.group.AddFallback(name, tr)
}

// Transcribe runs the audio through the first healthy backend.
func (t *TranscriberFailover) Transcribe(ctx context.Context, samples []float32, sampleRate int) ([]stt.Span, error) {
	return ExecuteWithResult(t.group, func(tr stt.Transcriber) ([]stt.Span, error) {
		return tr.Transcribe(ctx, samples, sampleRate)
	})
}
