package dictation

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/manhtienmai/dailyfluent/internal/playback"
	"github.com/manhtienmai/dailyfluent/internal/segment"
)

// ErrSegmentOutOfRange indicates a transcript playback request for a
// segment index outside the exercise.
var ErrSegmentOutOfRange = errors.New("dictation: segment index out of range")

// defaultSegmentGap is the pause inserted between segments during gapped
// sequential playback.
const defaultSegmentGap = 500 * time.Millisecond

// TranscriptConfig configures a [Transcript].
type TranscriptConfig struct {
	// Segments is the full, ordered exercise.
	Segments []segment.Segment

	// Player drives the shared media resource. The transcript must own the
	// resource exclusively while active; see [Transcript.Stop].
	Player Player

	// SegmentGap is the pause between segments in gapped playback.
	// Defaults to 500ms if zero.
	SegmentGap time.Duration

	// Rate is the playback-rate multiplier. Zero keeps the player's
	// current rate.
	Rate float64
}

// Transcript plays an exercise back without scoring: one segment at a time,
// all segments in sequence with a gap, or the whole track continuously.
//
// All methods are safe for concurrent use.
type Transcript struct {
	segments []segment.Segment
	player   Player
	gap      time.Duration
	rate     float64

	mu sync.Mutex
	// gen invalidates the sequential chain when playback is restarted or
	// stopped.
	gen      uint64
	chainIdx int
	timer    *time.Timer
}

// NewTranscript creates a transcript player over the given segments.
func NewTranscript(cfg TranscriptConfig) (*Transcript, error) {
	if len(cfg.Segments) == 0 {
		return nil, ErrNoSegments
	}
	gap := cfg.SegmentGap
	if gap <= 0 {
		gap = defaultSegmentGap
	}
	return &Transcript{
		segments: cfg.Segments,
		player:   cfg.Player,
		gap:      gap,
		rate:     cfg.Rate,
	}, nil
}

// PlaySegment plays the single segment at index i, bounded at its end.
func (t *Transcript) PlaySegment(i int) error {
	t.mu.Lock()
	if i < 0 || i >= len(t.segments) {
		t.mu.Unlock()
		return ErrSegmentOutOfRange
	}
	t.gen++
	t.cancelTimerLocked()
	seg := t.segments[i]
	t.mu.Unlock()

	t.player.Play(playback.Request{
		Target: seg.Start,
		End:    seg.End,
		Rate:   t.rate,
	})
	return nil
}

// PlayAll plays every segment in order, pausing for the configured gap
// between them.
func (t *Transcript) PlayAll() {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.chainIdx = 0
	t.cancelTimerLocked()
	t.mu.Unlock()

	t.playChain(gen, 0)
}

// PlayTrack plays continuously from the first segment's start to the
// natural end of the track, with no segment bounding.
func (t *Transcript) PlayTrack() {
	t.mu.Lock()
	t.gen++
	t.cancelTimerLocked()
	start := t.segments[0].Start
	t.mu.Unlock()

	t.player.Play(playback.Request{
		Target:     start,
		Continuous: true,
		Rate:       t.rate,
	})
}

// Stop halts playback and the sequential chain. Must be called before
// another mode takes over the media resource.
func (t *Transcript) Stop() {
	t.mu.Lock()
	t.gen++
	t.cancelTimerLocked()
	t.mu.Unlock()
	t.player.Stop()
}

// playChain plays segment i and arms the gap timer for the next one. Must
// be called without t.mu held.
func (t *Transcript) playChain(gen uint64, i int) {
	t.mu.Lock()
	if gen != t.gen || i >= len(t.segments) {
		t.mu.Unlock()
		return
	}
	t.chainIdx = i
	seg := t.segments[i]
	t.mu.Unlock()

	t.player.Play(playback.Request{
		Target: seg.Start,
		End:    seg.End,
		Rate:   t.rate,
		OnEnded: func() {
			t.advanceChain(gen, i+1)
		},
		OnError: func(err error) {
			slog.Warn("dictation: transcript playback failed, skipping segment",
				"order", seg.Order,
				"error", err,
			)
			t.advanceChain(gen, i+1)
		},
	})
}

// advanceChain schedules the next segment of the chain after the gap.
func (t *Transcript) advanceChain(gen uint64, next int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || next >= len(t.segments) {
		return
	}
	t.timer = time.AfterFunc(t.gap, func() {
		t.playChain(gen, next)
	})
}

// cancelTimerLocked stops a pending chain timer. Caller holds t.mu.
func (t *Transcript) cancelTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
