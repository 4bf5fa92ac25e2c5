// Package stt defines the speech-to-text capability used by the exercise
// authoring flow.
//
// A [Transcriber] turns raw PCM audio into timestamped text spans. The
// dictation engine itself never transcribes anything — learners type their
// answers — but exercise authors upload a raw track and let the transcriber
// draft the segment list (timestamps plus reference text) for review.
//
// Implementations must be safe for concurrent use. The whisper subpackage
// provides a local whisper.cpp-backed implementation; the mock subpackage
// provides a scripted fake for tests.
package stt

import (
	"context"
	"time"
)

// Span is one contiguous stretch of transcribed speech.
type Span struct {
	// Start is the span's onset relative to the beginning of the audio.
	Start time.Duration

	// End is the span's offset relative to the beginning of the audio.
	End time.Duration

	// Text is the transcribed speech content, whitespace-trimmed.
	Text string
}

// Transcriber is the abstraction over any speech-to-text backend capable of
// whole-file transcription with per-span timestamps.
type Transcriber interface {
	// Transcribe runs recognition over mono float32 PCM samples at the
	// given sample rate and returns the recognised spans in chronological
	// order. Spans with empty text are omitted.
	//
	// The call may take a long time for large inputs; implementations must
	// honour ctx cancellation between processing units.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) ([]Span, error)
}
