package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/manhtienmai/dailyfluent/internal/align"
	"github.com/manhtienmai/dailyfluent/internal/config"
	"github.com/manhtienmai/dailyfluent/internal/dictation"
	"github.com/manhtienmai/dailyfluent/internal/feedback"
	"github.com/manhtienmai/dailyfluent/internal/observe"
	"github.com/manhtienmai/dailyfluent/internal/playback"
	"github.com/manhtienmai/dailyfluent/internal/progress"
	"github.com/manhtienmai/dailyfluent/internal/segment"
	"github.com/manhtienmai/dailyfluent/pkg/media"
)

// ErrPracticeNotFound indicates an unknown practice-session ID.
var ErrPracticeNotFound = errors.New("server: practice session not found")

// ErrExerciseNotFound indicates an unknown exercise slug.
var ErrExerciseNotFound = errors.New("server: exercise not found")

// ErrNoMedia indicates a playback request before the browser attached its
// media bridge.
var ErrNoMedia = errors.New("server: no media bridge attached")

// ErrMediaAttached indicates a second bridge attach for the same practice.
var ErrMediaAttached = errors.New("server: media bridge already attached")

// MediaBridge is the attachable media surface a practice session plays
// through. Satisfied by [Bridge]; tests attach a wrapped media mock.
type MediaBridge interface {
	media.Player

	// Close tears the bridge down and releases its transport.
	Close()
}

var _ MediaBridge = (*Bridge)(nil)

// PracticeInfo is a snapshot of one practice session's state.
type PracticeInfo struct {
	ID           string
	UserID       string
	ExerciseSlug string
	StartedAt    time.Time
	Index        int
	Total        int
	Attempts     int
	Checked      bool
	Correct      int
	Done         bool
	MediaReady   bool
}

// practice bundles everything one learner run owns: the exercise, the
// two playback modes sharing one controller, and the progress reporter.
// The dictation and transcript modes own the media resource exclusively;
// starting playback in one mode stops the other.
type practice struct {
	id        string
	userID    string
	exercise  *segment.Exercise
	startedAt time.Time

	gate     *gatedPlayer
	dict     *dictation.Session
	trans    *dictation.Transcript
	reporter *progress.Reporter

	mu     sync.Mutex
	bridge MediaBridge
	ctrl   *playback.Controller

	// last check, kept for feedback generation.
	lastRef   string
	lastItems []align.Item
}

// ManagerConfig holds all dependencies for a [Manager].
type ManagerConfig struct {
	// Library is the loaded exercise set.
	Library *segment.Library

	// Store persists and resumes per-learner progress. Required.
	Store progress.Store

	// Saver receives debounced progress writes. When nil, Store is used
	// directly; pass a guarded saver to shield sessions from store outages.
	Saver progress.Saver

	// Feedback generates optional mistake explanations. May be nil.
	Feedback *feedback.Generator

	// Playback tunes the segment playback controller.
	Playback config.PlaybackConfig

	// Dictation supplies the learner-facing session defaults.
	Dictation config.DictationConfig

	// Metrics receives session gauges and grading counters. When nil,
	// [observe.DefaultMetrics] is used.
	Metrics *observe.Metrics
}

// Manager owns the lifecycle of all active practice sessions. All exported
// methods are safe for concurrent use.
type Manager struct {
	library  *segment.Library
	store    progress.Store
	saver    progress.Saver
	feedback *feedback.Generator
	metrics  *observe.Metrics

	mu       sync.Mutex
	playCfg  config.PlaybackConfig
	dictCfg  config.DictationConfig
	sessions map[string]*practice
	seq      uint64
}

// NewManager creates a Manager with the given dependencies.
func NewManager(cfg ManagerConfig) *Manager {
	saver := cfg.Saver
	if saver == nil {
		saver = cfg.Store
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Manager{
		library:  cfg.Library,
		store:    cfg.Store,
		saver:    saver,
		feedback: cfg.Feedback,
		playCfg:  cfg.Playback,
		dictCfg:  cfg.Dictation,
		metrics:  metrics,
		sessions: make(map[string]*practice),
	}
}

// Create starts a new practice session over the given exercise, resuming at
// the learner's stored position when one exists.
func (m *Manager) Create(ctx context.Context, userID, exerciseSlug string) (PracticeInfo, error) {
	ex := m.library.Get(exerciseSlug)
	if ex == nil {
		return PracticeInfo{}, fmt.Errorf("%w: %q", ErrExerciseNotFound, exerciseSlug)
	}

	initialIndex := 0
	rec, err := m.store.Get(ctx, userID, exerciseSlug)
	switch {
	case err == nil && !rec.Completed():
		initialIndex = rec.CurrentIndex
	case err != nil && !errors.Is(err, progress.ErrNotFound):
		slog.Warn("server: progress lookup failed, starting fresh",
			"user_id", userID, "exercise", exerciseSlug, "err", err)
	}

	m.mu.Lock()
	m.seq++
	id := fmt.Sprintf("practice-%s-%d", sanitizeSlug(exerciseSlug), m.seq)
	dictCfg := m.dictCfg
	m.mu.Unlock()

	p := &practice{
		id:        id,
		userID:    userID,
		exercise:  ex,
		startedAt: time.Now().UTC(),
		gate:      &gatedPlayer{},
	}

	p.reporter = progress.NewReporter(progress.ReporterConfig{
		Saver:        m.saver,
		UserID:       userID,
		ExerciseSlug: exerciseSlug,
		CorrectCount: func() int {
			p.mu.Lock()
			d := p.dict
			p.mu.Unlock()
			if d == nil {
				return 0
			}
			return d.Summary().Correct
		},
	})

	dict, err := dictation.NewSession(dictation.Config{
		Segments: ex.Segments,
		Player:   p.gate,
		Settings: dictation.Settings{
			AutoReplay:   dictCfg.AutoReplay,
			ReplayGap:    dictCfg.ReplayGap,
			PlaybackRate: dictCfg.PlaybackRate,
		},
		Progress:     p.reporter,
		InitialIndex: initialIndex,
	})
	if err != nil {
		return PracticeInfo{}, fmt.Errorf("server: create session: %w", err)
	}
	p.mu.Lock()
	p.dict = dict
	p.mu.Unlock()

	trans, err := dictation.NewTranscript(dictation.TranscriptConfig{
		Segments:   ex.Segments,
		Player:     p.gate,
		SegmentGap: dictCfg.SegmentGap,
		Rate:       dictCfg.PlaybackRate,
	})
	if err != nil {
		return PracticeInfo{}, fmt.Errorf("server: create transcript: %w", err)
	}
	p.trans = trans

	m.mu.Lock()
	m.sessions[id] = p
	m.mu.Unlock()
	m.metrics.ActiveSessions.Add(ctx, 1)

	slog.Info("practice started",
		"practice_id", id,
		"user_id", userID,
		"exercise", exerciseSlug,
		"segments", len(ex.Segments),
		"resume_index", initialIndex,
	)

	return m.info(p), nil
}

// Get returns a snapshot of the practice session's state.
func (m *Manager) Get(id string) (PracticeInfo, error) {
	p, err := m.lookup(id)
	if err != nil {
		return PracticeInfo{}, err
	}
	return m.info(p), nil
}

// AttachBridge hands the browser's media bridge to the practice session and
// builds the playback controller over it. Only one bridge may be attached
// at a time.
func (m *Manager) AttachBridge(ctx context.Context, id string, b MediaBridge) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.bridge != nil {
		p.mu.Unlock()
		return ErrMediaAttached
	}
	ctrl := playback.New(b, m.controllerOptions()...)
	p.bridge = b
	p.ctrl = ctrl
	p.mu.Unlock()

	p.gate.attach(ctrl)
	m.metrics.ActiveBridges.Add(ctx, 1)
	slog.Info("media bridge attached", "practice_id", id)
	return nil
}

// DetachBridge releases the practice session's media bridge after the
// websocket connection ends. Safe to call when no bridge is attached.
func (m *Manager) DetachBridge(ctx context.Context, id string) {
	p, err := m.lookup(id)
	if err != nil {
		return
	}

	p.gate.detach()
	p.dict.Stop()
	p.trans.Stop()

	p.mu.Lock()
	had := p.bridge != nil
	if p.ctrl != nil {
		p.ctrl.Stop()
	}
	p.bridge = nil
	p.ctrl = nil
	p.mu.Unlock()

	if had {
		m.metrics.ActiveBridges.Add(ctx, -1)
		slog.Info("media bridge detached", "practice_id", id)
	}
}

// Check grades an answer against the current segment.
func (m *Manager) Check(ctx context.Context, id, answer string) (dictation.CheckResult, error) {
	p, err := m.lookup(id)
	if err != nil {
		return dictation.CheckResult{}, err
	}

	start := time.Now()
	res, err := p.dict.Check(answer)
	if err != nil {
		return dictation.CheckResult{}, err
	}
	m.metrics.RecordCheck(ctx, res.Outcome.String(), time.Since(start).Seconds())

	if seg, ok := p.dict.Current(); ok {
		p.mu.Lock()
		p.lastRef = seg.Text
		p.lastItems = res.Items
		p.mu.Unlock()
	}
	return res, nil
}

// Reveal gives up on the current segment and returns its reference text.
func (m *Manager) Reveal(ctx context.Context, id string) (string, error) {
	p, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	text, err := p.dict.Reveal()
	if err != nil {
		return "", err
	}
	m.metrics.Reveals.Add(ctx, 1)
	return text, nil
}

// Next advances to the following segment. The returned info reflects the
// new position; Done is true when the exercise is finished.
func (m *Manager) Next(id string) (PracticeInfo, error) {
	p, err := m.lookup(id)
	if err != nil {
		return PracticeInfo{}, err
	}
	p.dict.Next()
	return m.info(p), nil
}

// PlaySegment plays the current dictation segment, taking the media
// resource away from transcript mode.
func (m *Manager) PlaySegment(id string) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !p.hasBridge() {
		return ErrNoMedia
	}
	p.trans.Stop()
	return p.dict.PlaySegment()
}

// TranscriptTarget selects what transcript mode should play.
type TranscriptTarget struct {
	// Segment plays the single segment at this index when non-nil.
	Segment *int

	// All plays every segment in sequence with gaps.
	All bool

	// Track plays the whole track continuously.
	Track bool
}

// PlayTranscript starts transcript-mode playback, taking the media resource
// away from dictation mode.
func (m *Manager) PlayTranscript(id string, target TranscriptTarget) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !p.hasBridge() {
		return ErrNoMedia
	}
	p.dict.Stop()

	switch {
	case target.Segment != nil:
		return p.trans.PlaySegment(*target.Segment)
	case target.All:
		p.trans.PlayAll()
		return nil
	case target.Track:
		p.trans.PlayTrack()
		return nil
	default:
		return fmt.Errorf("server: empty transcript playback target")
	}
}

// StopPlayback halts both playback modes.
func (m *Manager) StopPlayback(id string) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}
	p.dict.Stop()
	p.trans.Stop()
	return nil
}

// Explain generates an LLM explanation of the mistakes in the last check.
// Returns [feedback.ErrUnavailable] when no generator is configured, no
// check has happened yet, or the provider is unavailable.
func (m *Manager) Explain(ctx context.Context, id string) (string, error) {
	p, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	if m.feedback == nil {
		return "", feedback.ErrUnavailable
	}

	p.mu.Lock()
	ref, items := p.lastRef, p.lastItems
	p.mu.Unlock()
	if ref == "" {
		return "", feedback.ErrUnavailable
	}

	start := time.Now()
	text, err := m.feedback.Explain(ctx, ref, items)
	if err != nil {
		return "", err
	}
	m.metrics.FeedbackDuration.Record(ctx, time.Since(start).Seconds())
	return text, nil
}

// Close ends a practice session: stops playback, flushes pending progress,
// and releases the media bridge.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	p, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrPracticeNotFound, id)
	}

	p.dict.Stop()
	p.trans.Stop()
	p.reporter.Flush()

	p.mu.Lock()
	if p.ctrl != nil {
		p.ctrl.Stop()
	}
	bridge := p.bridge
	p.bridge = nil
	p.ctrl = nil
	p.mu.Unlock()

	if bridge != nil {
		bridge.Close()
		m.metrics.ActiveBridges.Add(ctx, -1)
	}
	m.metrics.ActiveSessions.Add(ctx, -1)

	slog.Info("practice closed", "practice_id", id, "user_id", p.userID)
	return nil
}

// CloseAll ends every active practice session. Used during shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil {
			slog.Warn("server: close practice", "practice_id", id, "err", err)
		}
	}
}

// Len returns the number of active practice sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) lookup(id string) (*practice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPracticeNotFound, id)
	}
	return p, nil
}

func (m *Manager) info(p *practice) PracticeInfo {
	sum := p.dict.Summary()
	return PracticeInfo{
		ID:           p.id,
		UserID:       p.userID,
		ExerciseSlug: p.exercise.Slug,
		StartedAt:    p.startedAt,
		Index:        p.dict.Index(),
		Total:        sum.Total,
		Attempts:     p.dict.Attempts(),
		Checked:      p.dict.Checked(),
		Correct:      sum.Correct,
		Done:         sum.Done,
		MediaReady:   p.hasBridge(),
	}
}

// UpdateDefaults swaps the dictation and playback defaults applied to new
// practice sessions and newly attached bridges. Running sessions keep the
// settings they were created with.
func (m *Manager) UpdateDefaults(d config.DictationConfig, p config.PlaybackConfig) {
	m.mu.Lock()
	m.dictCfg = d
	m.playCfg = p
	m.mu.Unlock()
	slog.Info("session defaults updated",
		"playback_rate", d.PlaybackRate, "auto_replay", d.AutoReplay)
}

func (m *Manager) controllerOptions() []playback.Option {
	m.mu.Lock()
	defer m.mu.Unlock()
	var opts []playback.Option
	if m.playCfg.SeekTolerance > 0 {
		opts = append(opts, playback.WithSeekTolerance(m.playCfg.SeekTolerance))
	}
	if m.playCfg.SeekPollInterval > 0 && m.playCfg.SeekPollMax > 0 {
		opts = append(opts, playback.WithSeekPoll(m.playCfg.SeekPollInterval, m.playCfg.SeekPollMax))
	}
	if m.playCfg.BoundInterval > 0 {
		opts = append(opts, playback.WithBoundInterval(m.playCfg.BoundInterval))
	}
	return opts
}

func (p *practice) hasBridge() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bridge != nil
}

// sanitizeSlug lowercases a slug and replaces spaces for use in practice IDs.
func sanitizeSlug(slug string) string {
	slug = strings.ToLower(slug)
	return strings.ReplaceAll(slug, " ", "-")
}

// gatedPlayer forwards playback requests to the controller once a media
// bridge is attached, and fails them cleanly before that.
type gatedPlayer struct {
	mu   sync.Mutex
	ctrl *playback.Controller
}

var _ dictation.Player = (*gatedPlayer)(nil)

func (g *gatedPlayer) attach(c *playback.Controller) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctrl = c
}

func (g *gatedPlayer) detach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctrl = nil
}

func (g *gatedPlayer) Play(req playback.Request) {
	g.mu.Lock()
	ctrl := g.ctrl
	g.mu.Unlock()
	if ctrl == nil {
		if req.OnError != nil {
			req.OnError(playback.ErrNotReady)
		}
		return
	}
	ctrl.Play(req)
}

func (g *gatedPlayer) Stop() {
	g.mu.Lock()
	ctrl := g.ctrl
	g.mu.Unlock()
	if ctrl != nil {
		ctrl.Stop()
	}
}
