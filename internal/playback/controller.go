// Package playback implements the segment-bounded playback controller: it
// drives a single shared [media.Player] so that exactly the requested
// sub-interval of the track plays, despite unreliable seek completion in
// the underlying media stack.
//
// The controller is an explicit state machine (Idle → Loading → Seeking →
// Playing → Ended/Paused) with a generation counter. Every request bumps
// the generation; every deferred callback — timers, media events, the play
// resolution — re-checks that its generation is still current before
// touching state. A newer request therefore supersedes an older one
// synchronously: the older request's pending timers are cancelled and its
// callbacks become no-ops, so at most one started/ended pair is ever in
// flight per controller.
//
// Seek confirmation races two paths: the player's seeked event and a
// bounded position-polling loop. Whichever confirms first wins. A confirmed
// seek that landed outside tolerance triggers a play-then-seek recovery
// (briefly play, pause, re-seek), bounded so the controller never stalls; a
// poll loop that exhausts its cap proceeds with whatever position was last
// set.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/manhtienmai/dailyfluent/pkg/media"
)

// ErrStartRejected is wrapped into the request's OnError callback when the
// player refuses to start playback (e.g. a user-gesture restriction). The
// controller stays retryable; a later request may succeed.
var ErrStartRejected = errors.New("playback: media refused to start")

// ErrNotReady is wrapped into OnError when the media resource never reported
// a decodable duration despite bounded reload attempts.
var ErrNotReady = errors.New("playback: media never became ready")

// State identifies the controller's current phase.
type State int

const (
	// Idle means no request is in flight.
	Idle State = iota

	// Loading means the controller is waiting for the media resource to
	// become ready (known duration, sufficient buffering).
	Loading

	// Seeking means a position set has been issued and the controller is
	// awaiting confirmation via event or poll.
	Seeking

	// Playing means playback is running and, for bounded requests, the
	// position is being watched against the segment end.
	Playing

	// Ended means the last request completed normally (boundary reached,
	// track ended).
	Ended

	// Paused means playback was paused externally mid-request.
	Paused
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Seeking:
		return "seeking"
	case Playing:
		return "playing"
	case Ended:
		return "ended"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Request describes one playback intent: play the track from Target and,
// unless Continuous is set, pause the instant the position reaches End.
type Request struct {
	// Target is the start position in seconds.
	Target float64

	// End is the clip boundary in seconds. Ignored when Continuous is true.
	End float64

	// Continuous disables the automatic pause at End; playback runs until
	// an external pause/stop or the natural end of the track.
	Continuous bool

	// Rate is the playback-rate multiplier applied before starting.
	// Zero leaves the player's current rate untouched.
	Rate float64

	// OnStarted is invoked exactly once when playback has actually begun.
	// May be nil. Invoked from an internal goroutine; must not block.
	OnStarted func()

	// OnEnded is invoked exactly once when the request finishes: boundary
	// reached, natural track end, or external pause. It never fires for a
	// superseded or stopped request, and always after OnStarted. May be
	// nil; must not block.
	OnEnded func()

	// OnError is invoked instead of OnStarted/OnEnded when the request
	// fails ([ErrStartRejected], [ErrNotReady]). May be nil; must not block.
	OnError func(error)
}

// Option configures a [Controller] during construction.
type Option func(*Controller)

// WithSeekTolerance sets the acceptance tolerance, in seconds, between the
// confirmed position and the requested target. Default: 0.5.
func WithSeekTolerance(seconds float64) Option {
	return func(c *Controller) { c.tolerance = seconds }
}

// WithSeekPoll sets the position-polling interval and iteration cap used
// while awaiting seek confirmation. Defaults: 50ms, 20 iterations.
func WithSeekPoll(interval time.Duration, maxPolls int) Option {
	return func(c *Controller) {
		c.pollInterval = interval
		c.pollMax = maxPolls
	}
}

// WithReadyRetry sets the backoff between forced reloads while waiting for
// the media resource to become ready, and the attempt cap. Defaults:
// 200ms, 5 attempts.
func WithReadyRetry(backoff time.Duration, maxAttempts int) Option {
	return func(c *Controller) {
		c.readyBackoff = backoff
		c.readyMax = maxAttempts
	}
}

// WithBoundInterval sets the polling interval used to watch the playback
// position against the segment end. Default: 50ms.
func WithBoundInterval(d time.Duration) Option {
	return func(c *Controller) { c.boundInterval = d }
}

// WithSeekRecoveryMax caps the play-then-seek recovery attempts for seeks
// that confirm outside tolerance. Default: 2.
func WithSeekRecoveryMax(n int) Option {
	return func(c *Controller) { c.recoveryMax = n }
}

// request is the per-generation bookkeeping for one in-flight [Request].
type request struct {
	gen uint64
	Request

	started         bool
	deliveringStart bool
	polls           int
	readyTries      int
	recoveries      int
	awaitingReady   bool
	playIssued      bool
	timer           *time.Timer
}

// Controller owns one [media.Player] and serialises playback intents
// against it. All exported methods are safe for concurrent use.
type Controller struct {
	player media.Player

	tolerance     float64
	pollInterval  time.Duration
	pollMax       int
	readyBackoff  time.Duration
	readyMax      int
	recoveryMax   int
	boundInterval time.Duration
	playTimeout   time.Duration

	mu    sync.Mutex
	gen   uint64
	state State
	cur   *request
}

// New creates a Controller for the given player and registers itself as the
// player's event callback. The player must not have another consumer
// registering event callbacks while the controller is in use.
func New(player media.Player, opts ...Option) *Controller {
	c := &Controller{
		player:        player,
		tolerance:     0.5,
		pollInterval:  50 * time.Millisecond,
		pollMax:       20,
		readyBackoff:  200 * time.Millisecond,
		readyMax:      5,
		recoveryMax:   2,
		boundInterval: 50 * time.Millisecond,
		playTimeout:   5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	player.OnEvent(c.handleEvent)
	return c
}

// State returns the controller's current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Play accepts a new playback request, superseding any request currently in
// flight: the prior request's pending timers are cancelled synchronously
// and its callbacks will never fire.
func (c *Controller) Play(req Request) {
	c.mu.Lock()
	c.supersedeLocked()
	c.gen++
	r := &request{gen: c.gen, Request: req}
	c.cur = r
	c.state = Loading
	gen := r.gen
	c.mu.Unlock()

	c.ensureReady(gen)
}

// Stop cancels the in-flight request (its callbacks never fire) and pauses
// the player. The controller returns to Idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.supersedeLocked()
	c.gen++
	c.state = Idle
	c.mu.Unlock()

	c.player.Pause()
}

// supersedeLocked detaches the current request and cancels its pending
// timer. Callers must hold c.mu.
func (c *Controller) supersedeLocked() {
	if c.cur == nil {
		return
	}
	if c.cur.timer != nil {
		c.cur.timer.Stop()
	}
	c.cur = nil
}

// currentLocked returns the in-flight request iff its generation matches.
// Callers must hold c.mu.
func (c *Controller) currentLocked(gen uint64) *request {
	if c.cur != nil && c.cur.gen == gen {
		return c.cur
	}
	return nil
}

// mediaReady reports whether the player has a decodable duration and enough
// buffered data to start a seek.
func (c *Controller) mediaReady() bool {
	d := c.player.Duration()
	if d <= 0 || math.IsNaN(d) {
		return false
	}
	return c.player.ReadyState() >= media.HaveFutureData
}

// ensureReady advances a Loading request: seek immediately when the media
// is ready, otherwise force a reload and retry after backoff, bounded by
// the ready-attempt cap.
func (c *Controller) ensureReady(gen uint64) {
	ready := c.mediaReady()

	c.mu.Lock()
	r := c.currentLocked(gen)
	if r == nil || c.state != Loading {
		c.mu.Unlock()
		return
	}

	if ready {
		r.awaitingReady = false
		c.state = Seeking
		c.mu.Unlock()
		c.beginSeek(gen)
		return
	}

	if r.readyTries >= c.readyMax {
		c.failLocked(r, fmt.Errorf("%w after %d reloads", ErrNotReady, r.readyTries))
		return
	}
	r.readyTries++
	r.awaitingReady = true
	r.timer = time.AfterFunc(c.readyBackoff, func() { c.ensureReady(gen) })
	c.mu.Unlock()

	slog.Debug("playback: media not ready, forcing reload", "attempt", r.readyTries)
	c.player.Reload()
}

// beginSeek issues the position set and arms the confirmation poll. The
// seeked event and the poll loop race; [Controller.handleEvent] and
// [Controller.pollSeek] each check they are first.
func (c *Controller) beginSeek(gen uint64) {
	c.mu.Lock()
	r := c.currentLocked(gen)
	if r == nil || c.state != Seeking {
		c.mu.Unlock()
		return
	}
	target := r.Target
	r.polls = 0
	r.timer = time.AfterFunc(c.pollInterval, func() { c.pollSeek(gen) })
	c.mu.Unlock()

	c.player.SetPosition(target)
}

// pollSeek is the bounded polling half of the seek-confirmation race.
func (c *Controller) pollSeek(gen uint64) {
	pos := c.player.Position()

	c.mu.Lock()
	r := c.currentLocked(gen)
	if r == nil || c.state != Seeking || r.playIssued {
		c.mu.Unlock()
		return
	}

	if math.Abs(pos-r.Target) < c.tolerance {
		c.mu.Unlock()
		c.startPlayback(gen)
		return
	}

	r.polls++
	if r.polls >= c.pollMax {
		// Confirmation never arrived. Proceed with whatever position was
		// last set rather than stalling the session.
		c.mu.Unlock()
		slog.Warn("playback: seek unconfirmed after poll cap, proceeding",
			"target", r.Target,
			"position", pos,
			"polls", r.polls,
		)
		c.startPlayback(gen)
		return
	}
	r.timer = time.AfterFunc(c.pollInterval, func() { c.pollSeek(gen) })
	c.mu.Unlock()
}

// confirmSeek handles a seek confirmed at the given position (via event or
// poll): within tolerance playback starts, outside tolerance the
// play-then-seek recovery runs, bounded by the recovery cap.
func (c *Controller) confirmSeek(gen uint64, pos float64) {
	c.mu.Lock()
	r := c.currentLocked(gen)
	if r == nil || c.state != Seeking || r.playIssued {
		c.mu.Unlock()
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}

	if math.Abs(pos-r.Target) < c.tolerance || r.recoveries >= c.recoveryMax {
		c.mu.Unlock()
		if math.Abs(pos-r.Target) >= c.tolerance {
			slog.Warn("playback: seek still off target after recoveries, proceeding",
				"target", r.Target, "position", pos)
		}
		c.startPlayback(gen)
		return
	}

	r.recoveries++
	target := r.Target
	attempt := r.recoveries
	c.mu.Unlock()

	slog.Debug("playback: seek landed off target, play-then-seek recovery",
		"target", target, "position", pos, "attempt", attempt)

	// Briefly kick playback to unstick the element, pause, and re-seek.
	// Errors here are irrelevant; the retry proceeds regardless. The kick
	// runs off the caller's goroutine: confirmSeek is reached from player
	// event callbacks, and a blocking Play there would stall the event
	// loop that must deliver its own result. beginSeek re-checks the
	// generation, so a round superseded during the kick goes no further.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.playTimeout)
		_ = c.player.Play(ctx)
		cancel()
		c.player.Pause()
		c.beginSeek(gen)
	}()
}

// startPlayback applies the rate and resolves the play call off the lock.
func (c *Controller) startPlayback(gen uint64) {
	c.mu.Lock()
	r := c.currentLocked(gen)
	if r == nil || c.state != Seeking || r.playIssued {
		c.mu.Unlock()
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.playIssued = true
	rate := r.Rate
	c.mu.Unlock()

	if rate > 0 {
		c.player.SetRate(rate)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.playTimeout)
		defer cancel()
		err := c.player.Play(ctx)
		c.onPlayResolved(gen, err)
	}()
}

// onPlayResolved completes the transition to Playing (or reports the soft
// start failure) once the player's play call resolves.
func (c *Controller) onPlayResolved(gen uint64, err error) {
	c.mu.Lock()
	r := c.currentLocked(gen)
	if r == nil {
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.failLocked(r, fmt.Errorf("%w: %v", ErrStartRejected, err))
		return
	}

	if r.started {
		c.mu.Unlock()
		return
	}
	r.started = true
	r.deliveringStart = true
	c.state = Playing
	onStarted := r.OnStarted
	c.mu.Unlock()

	if onStarted != nil {
		onStarted()
	}

	c.mu.Lock()
	r = c.currentLocked(gen)
	if r == nil {
		c.mu.Unlock()
		return
	}
	r.deliveringStart = false
	if !r.Continuous {
		r.timer = time.AfterFunc(c.boundInterval, func() { c.pollBound(gen) })
	}
	c.mu.Unlock()
}

// pollBound watches the playback position against the clip boundary for
// bounded requests.
func (c *Controller) pollBound(gen uint64) {
	pos := c.player.Position()

	c.mu.Lock()
	r := c.currentLocked(gen)
	if r == nil || c.state != Playing || r.deliveringStart {
		c.mu.Unlock()
		return
	}

	if pos >= r.End {
		c.finishLocked(r, true)
		return
	}
	r.timer = time.AfterFunc(c.boundInterval, func() { c.pollBound(gen) })
	c.mu.Unlock()
}

// finishLocked completes the current request as Ended, pausing the player
// when pause is set. Callers must hold c.mu; it is released before the
// player call and the callback fire.
func (c *Controller) finishLocked(r *request, pause bool) {
	if r.timer != nil {
		r.timer.Stop()
	}
	c.cur = nil
	c.state = Ended
	onEnded := r.OnEnded
	c.mu.Unlock()

	if pause {
		c.player.Pause()
	}
	if onEnded != nil {
		onEnded()
	}
}

// failLocked aborts the current request and reports err via OnError.
// Callers must hold c.mu; it is released before the callback fires.
func (c *Controller) failLocked(r *request, err error) {
	if r.timer != nil {
		r.timer.Stop()
	}
	c.cur = nil
	c.state = Idle
	onError := r.OnError
	c.mu.Unlock()

	slog.Warn("playback: request failed", "err", err)
	if onError != nil {
		onError(err)
	}
}

// handleEvent is the player's event callback. Every branch validates the
// controller phase before acting; events belonging to a superseded request
// fall through harmlessly.
func (c *Controller) handleEvent(ev media.Event) {
	c.mu.Lock()
	r := c.cur
	if r == nil {
		c.mu.Unlock()
		return
	}
	gen := r.gen

	switch ev.Type {
	case media.EventMetadataLoaded:
		if c.state == Loading && r.awaitingReady {
			if r.timer != nil {
				r.timer.Stop()
			}
			r.awaitingReady = false
			c.mu.Unlock()
			c.ensureReady(gen)
			return
		}

	case media.EventSeeked:
		if c.state == Seeking && !r.playIssued {
			c.mu.Unlock()
			c.confirmSeek(gen, ev.Position)
			return
		}

	case media.EventTimeUpdate:
		if c.state == Playing && !r.Continuous && !r.deliveringStart && ev.Position >= r.End {
			c.finishLocked(r, true)
			return
		}

	case media.EventEnded:
		if c.state == Playing && !r.deliveringStart {
			c.finishLocked(r, false)
			return
		}

	case media.EventPaused:
		// A pause the controller did not initiate ends the request.
		if c.state == Playing && !r.deliveringStart {
			if r.timer != nil {
				r.timer.Stop()
			}
			c.cur = nil
			c.state = Paused
			onEnded := r.OnEnded
			c.mu.Unlock()
			if onEnded != nil {
				onEnded()
			}
			return
		}
	}

	c.mu.Unlock()
}
