// Package dictation orchestrates a dictation exercise: segment-bounded
// playback, answer checking against the reference transcript, reveal after
// repeated failures, and progress through the segment list.
package dictation

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/manhtienmai/dailyfluent/internal/align"
	"github.com/manhtienmai/dailyfluent/internal/playback"
	"github.com/manhtienmai/dailyfluent/internal/segment"
)

// MaxAttempts is the number of failed checks on a segment before the
// reveal affordance becomes available.
const MaxAttempts = 3

var (
	// ErrNoSegments indicates the session was created without any segments.
	ErrNoSegments = errors.New("dictation: session has no segments")

	// ErrSessionDone indicates the session has advanced past its last
	// segment and only the summary remains.
	ErrSessionDone = errors.New("dictation: session is complete")

	// ErrAlreadyChecked indicates the current segment was already solved or
	// revealed and cannot be re-submitted.
	ErrAlreadyChecked = errors.New("dictation: segment already checked")

	// ErrRevealUnavailable indicates reveal was requested before reaching
	// the failed-attempt limit.
	ErrRevealUnavailable = errors.New("dictation: reveal not yet available")
)

// Outcome classifies one answer submission.
type Outcome int

const (
	// OutcomeNoAnswer means the submission was blank after trimming.
	// It does not consume an attempt.
	OutcomeNoAnswer Outcome = iota

	// OutcomeCorrect means the normalized answer matched the reference
	// verbatim.
	OutcomeCorrect

	// OutcomeNearCorrect means the answer was accepted with typos: the
	// alignment had no missing or extra words but at least one near match.
	OutcomeNearCorrect

	// OutcomeIncorrect means the answer was rejected and an attempt was
	// consumed.
	OutcomeIncorrect
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoAnswer:
		return "no_answer"
	case OutcomeCorrect:
		return "correct"
	case OutcomeNearCorrect:
		return "near_correct"
	case OutcomeIncorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

// CheckResult is the graded result of one answer submission.
type CheckResult struct {
	Outcome Outcome

	// Items is the word-level alignment diff. Empty for OutcomeNoAnswer.
	Items []align.Item

	// Score is the partial score (exact+near)/reference words, in [0,1].
	Score float64

	// Attempts is the failed-check count on the current segment after this
	// submission.
	Attempts int

	// RevealAvailable reports whether the reveal affordance is now open.
	RevealAvailable bool
}

// Summary is the read-only terminal view of a session.
type Summary struct {
	Correct int
	Total   int
	Done    bool
}

// Player is the playback capability the session drives. Satisfied by
// [playback.Controller].
type Player interface {
	Play(req playback.Request)
	Stop()
}

var _ Player = (*playback.Controller)(nil)

// ProgressSink receives fire-and-forget progress notifications. Failures in
// the sink must never surface back into the session.
type ProgressSink interface {
	Report(currentIndex, total int)
}

// Settings are the learner-facing playback options, read-only to the
// session.
type Settings struct {
	// AutoReplay replays the current segment after it ends.
	AutoReplay bool

	// ReplayGap is the delay before an automatic replay. Defaults to 1s
	// when AutoReplay is set and the gap is zero.
	ReplayGap time.Duration

	// PlaybackRate is the rate multiplier for segment playback. Zero keeps
	// the player's current rate.
	PlaybackRate float64
}

// Config configures a [Session].
type Config struct {
	// Segments is the full, ordered exercise loaded at session start.
	Segments []segment.Segment

	// Player drives the shared media resource.
	Player Player

	// Settings are the learner's playback options.
	Settings Settings

	// Progress, when non-nil, is notified with (index, total) after each
	// segment is presented.
	Progress ProgressSink

	// InitialIndex resumes the session at the given segment. Clamped into
	// range.
	InitialIndex int
}

// Session is a single-owner dictation run over one exercise.
//
// All methods are safe for concurrent use.
type Session struct {
	segments []segment.Segment
	player   Player
	settings Settings
	progress ProgressSink

	mu           sync.Mutex
	index        int
	attempts     int
	correctCount int
	checked      bool
	lastPlayErr  error
	// playGen invalidates pending auto-replay timers when the segment
	// changes or playback is re-issued.
	playGen     uint64
	replayTimer *time.Timer
}

// NewSession creates a session over the given segments, resuming at
// cfg.InitialIndex. It reports the initial position to the progress sink.
func NewSession(cfg Config) (*Session, error) {
	if len(cfg.Segments) == 0 {
		return nil, ErrNoSegments
	}
	idx := cfg.InitialIndex
	if idx < 0 {
		idx = 0
	}
	if idx > len(cfg.Segments) {
		idx = len(cfg.Segments)
	}
	s := &Session{
		segments: cfg.Segments,
		player:   cfg.Player,
		settings: cfg.Settings,
		progress: cfg.Progress,
		index:    idx,
	}
	s.notifyProgress()
	return s, nil
}

// Current returns the segment under the cursor. ok is false once the
// session is complete.
func (s *Session) Current() (seg segment.Segment, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.segments) {
		return segment.Segment{}, false
	}
	return s.segments[s.index], true
}

// Index returns the current 0-based segment index. Equals the segment count
// once the session is complete.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Attempts returns the failed-check count on the current segment.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Checked reports whether the current segment has been solved or revealed.
func (s *Session) Checked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked
}

// Check grades one answer against the current segment.
//
// A blank answer short-circuits before alignment and does not consume an
// attempt. A correct or near-correct answer marks the segment checked and
// increments the correct count. Anything else consumes an attempt; after
// [MaxAttempts] failures the reveal affordance opens.
func (s *Session) Check(answer string) (CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.segments) {
		return CheckResult{}, ErrSessionDone
	}
	if s.checked {
		return CheckResult{}, ErrAlreadyChecked
	}

	if strings.TrimSpace(answer) == "" {
		return CheckResult{
			Outcome:         OutcomeNoAnswer,
			Attempts:        s.attempts,
			RevealAvailable: s.attempts >= MaxAttempts,
		}, nil
	}

	reference := s.segments[s.index].Text
	items := align.Align(align.Words(answer), align.Words(reference))
	sum := align.Summarize(items)

	res := CheckResult{
		Items: items,
		Score: sum.Score(),
	}
	switch {
	case align.ExactCorrect(answer, reference):
		res.Outcome = OutcomeCorrect
	case sum.NearCorrect():
		res.Outcome = OutcomeNearCorrect
	default:
		res.Outcome = OutcomeIncorrect
	}

	if res.Outcome == OutcomeIncorrect {
		s.attempts++
	} else {
		s.correctCount++
		s.checked = true
	}
	res.Attempts = s.attempts
	res.RevealAvailable = !s.checked && s.attempts >= MaxAttempts
	return res, nil
}

// Reveal marks the current segment as checked without crediting it,
// returning the reference text. Only available after [MaxAttempts] failed
// checks.
func (s *Session) Reveal() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.segments) {
		return "", ErrSessionDone
	}
	if s.checked {
		return "", ErrAlreadyChecked
	}
	if s.attempts < MaxAttempts {
		return "", ErrRevealUnavailable
	}
	s.checked = true
	return s.segments[s.index].Text, nil
}

// Next advances to the following segment, resetting the attempt counter and
// checked flag. It returns false once the session has moved past the last
// segment; the summary is then the only remaining view.
func (s *Session) Next() bool {
	s.mu.Lock()
	if s.index >= len(s.segments) {
		s.mu.Unlock()
		return false
	}
	s.index++
	s.attempts = 0
	s.checked = false
	s.playGen++
	s.cancelReplayLocked()
	more := s.index < len(s.segments)
	s.mu.Unlock()

	s.notifyProgress()
	return more
}

// PlaySegment issues bounded playback of the current segment at the
// configured rate. With AutoReplay set, the segment replays after ReplayGap
// each time it ends, until superseded by navigation or another play.
func (s *Session) PlaySegment() error {
	s.mu.Lock()
	if s.index >= len(s.segments) {
		s.mu.Unlock()
		return ErrSessionDone
	}
	seg := s.segments[s.index]
	s.playGen++
	gen := s.playGen
	s.cancelReplayLocked()
	s.lastPlayErr = nil
	s.mu.Unlock()

	s.issuePlay(seg, gen)
	return nil
}

// issuePlay sends one playback request for seg under generation gen. Must
// be called without s.mu held; the callbacks re-acquire it.
func (s *Session) issuePlay(seg segment.Segment, gen uint64) {
	s.player.Play(playback.Request{
		Target: seg.Start,
		End:    seg.End,
		Rate:   s.settings.PlaybackRate,
		OnEnded: func() {
			s.scheduleReplay(seg, gen)
		},
		OnError: func(err error) {
			slog.Warn("dictation: segment playback failed",
				"order", seg.Order,
				"error", err,
			)
			s.mu.Lock()
			s.lastPlayErr = err
			s.mu.Unlock()
		},
	})
}

// scheduleReplay arms the auto-replay timer if the settings ask for it and
// the generation is still current.
func (s *Session) scheduleReplay(seg segment.Segment, gen uint64) {
	if !s.settings.AutoReplay {
		return
	}
	gap := s.settings.ReplayGap
	if gap <= 0 {
		gap = time.Second
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.playGen {
		return
	}
	s.replayTimer = time.AfterFunc(gap, func() {
		s.mu.Lock()
		stale := gen != s.playGen
		s.mu.Unlock()
		if stale {
			return
		}
		s.issuePlay(seg, gen)
	})
}

// cancelReplayLocked stops a pending auto-replay. Caller holds s.mu.
func (s *Session) cancelReplayLocked() {
	if s.replayTimer != nil {
		s.replayTimer.Stop()
		s.replayTimer = nil
	}
}

// Stop halts playback and any pending auto-replay without touching the
// grading state.
func (s *Session) Stop() {
	s.mu.Lock()
	s.playGen++
	s.cancelReplayLocked()
	s.mu.Unlock()
	s.player.Stop()
}

// LastPlaybackError returns the most recent soft playback failure for the
// current segment, or nil. Cleared on each PlaySegment.
func (s *Session) LastPlaybackError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPlayErr
}

// Summary returns the running (or, once done, final) score view.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		Correct: s.correctCount,
		Total:   len(s.segments),
		Done:    s.index >= len(s.segments),
	}
}

// notifyProgress reports the current position to the sink, if any. Must be
// called without s.mu held.
func (s *Session) notifyProgress() {
	if s.progress == nil {
		return
	}
	s.mu.Lock()
	idx, total := s.index, len(s.segments)
	s.mu.Unlock()
	s.progress.Report(idx, total)
}
