// Package mock provides an in-memory mock implementation of the
// [media.Player] interface for use in unit tests.
//
// The mock is safe for concurrent use. It records seek targets and play
// attempts so that tests can assert on them, and it exposes exported fields
// controlling seek behaviour, readiness, and play() refusal. Tests drive
// time manually via [Player.Tick], which advances the position while
// "playing" and emits timeupdate events, mimicking a real media clock.
//
// Typical usage:
//
//	p := mock.NewPlayer(30.0)
//	ctrl := playback.New(p)
//	ctrl.Play(playback.Request{Target: 10, End: 13, OnEnded: done})
//	p.Tick(1.0) // advance one simulated second
package mock

import (
	"context"
	"sync"

	"github.com/manhtienmai/dailyfluent/pkg/media"
)

// SeekMode controls how the mock responds to [Player.SetPosition].
type SeekMode int

const (
	// SeekConfirm applies the seek and emits [media.EventSeeked]
	// synchronously. The default.
	SeekConfirm SeekMode = iota

	// SeekSilent applies the seek but never emits a seeked event, forcing
	// callers onto their polling path.
	SeekSilent

	// SeekDrift applies the seek offset by [Player.DriftBy] seconds and
	// emits a seeked event, simulating an inaccurate seek.
	SeekDrift

	// SeekIgnore leaves the position untouched and emits nothing,
	// simulating a dead seek that only a recovery can fix.
	SeekIgnore
)

// Player is a mock implementation of [media.Player].
// Set the exported behaviour fields before use; inspect the Seeks and
// PlayCalls fields after.
type Player struct {
	mu sync.Mutex

	// Mode controls seek behaviour. Defaults to [SeekConfirm].
	Mode SeekMode

	// DriftBy is the seek landing offset applied in [SeekDrift] mode.
	DriftBy float64

	// PlayError, when non-nil, is returned by every call to [Player.Play].
	PlayError error

	// ReadyAfterReloads is the number of [Player.Reload] calls required
	// before the player reports a usable duration and readiness. Zero
	// means ready immediately.
	ReadyAfterReloads int

	// Seeks records every target passed to [Player.SetPosition], in order.
	Seeks []float64

	// PlayCalls counts calls to [Player.Play], including refused ones.
	PlayCalls int

	// PauseCalls counts calls to [Player.Pause].
	PauseCalls int

	// ReloadCalls counts calls to [Player.Reload].
	ReloadCalls int

	// Rate holds the last value passed to [Player.SetRate]; 0 if never set.
	Rate float64

	duration float64
	position float64
	playing  bool
	cb       func(media.Event)
}

// Compile-time interface assertion.
var _ media.Player = (*Player)(nil)

// NewPlayer creates a ready mock player with the given track duration in
// seconds.
func NewPlayer(duration float64) *Player {
	return &Player{duration: duration}
}

// Position implements [media.Player].
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// SetPosition implements [media.Player]. Behaviour depends on [Player.Mode].
func (p *Player) SetPosition(seconds float64) {
	p.mu.Lock()
	p.Seeks = append(p.Seeks, seconds)
	var ev *media.Event
	switch p.Mode {
	case SeekConfirm:
		p.position = seconds
		ev = &media.Event{Type: media.EventSeeked, Position: p.position}
	case SeekSilent:
		p.position = seconds
	case SeekDrift:
		p.position = seconds + p.DriftBy
		ev = &media.Event{Type: media.EventSeeked, Position: p.position}
	case SeekIgnore:
	}
	cb := p.cb
	p.mu.Unlock()

	if ev != nil && cb != nil {
		cb(*ev)
	}
}

// Duration implements [media.Player]. Returns 0 while the player is still
// pending reloads (see ReadyAfterReloads).
func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ReadyAfterReloads > 0 {
		return 0
	}
	return p.duration
}

// ReadyState implements [media.Player].
func (p *Player) ReadyState() media.ReadyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ReadyAfterReloads > 0 {
		return media.HaveNothing
	}
	return media.HaveEnoughData
}

// Play implements [media.Player]. Returns PlayError if set; otherwise
// marks the player as playing and emits [media.EventPlaying].
func (p *Player) Play(_ context.Context) error {
	p.mu.Lock()
	p.PlayCalls++
	if p.PlayError != nil {
		err := p.PlayError
		p.mu.Unlock()
		return err
	}
	p.playing = true
	cb := p.cb
	ev := media.Event{Type: media.EventPlaying, Position: p.position}
	p.mu.Unlock()

	if cb != nil {
		cb(ev)
	}
	return nil
}

// Pause implements [media.Player]. Emits [media.EventPaused] if the player
// was playing.
func (p *Player) Pause() {
	p.mu.Lock()
	p.PauseCalls++
	wasPlaying := p.playing
	p.playing = false
	cb := p.cb
	ev := media.Event{Type: media.EventPaused, Position: p.position}
	p.mu.Unlock()

	if wasPlaying && cb != nil {
		cb(ev)
	}
}

// SetRate implements [media.Player].
func (p *Player) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Rate = rate
}

// Reload implements [media.Player]. Decrements ReadyAfterReloads and emits
// [media.EventReloaded], followed by [media.EventMetadataLoaded] once the
// player becomes ready.
func (p *Player) Reload() {
	p.mu.Lock()
	p.ReloadCalls++
	if p.ReadyAfterReloads > 0 {
		p.ReadyAfterReloads--
	}
	ready := p.ReadyAfterReloads == 0
	cb := p.cb
	pos := p.position
	p.mu.Unlock()

	if cb != nil {
		cb(media.Event{Type: media.EventReloaded, Position: pos})
		if ready {
			cb(media.Event{Type: media.EventMetadataLoaded, Position: pos})
		}
	}
}

// OnEvent implements [media.Player].
func (p *Player) OnEvent(cb func(media.Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb = cb
}

// Playing reports whether the mock is currently in the playing state.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Tick advances the simulated media clock by dt seconds. While playing the
// position advances and a timeupdate event is emitted; if the end of the
// track is reached, playback stops and [media.EventEnded] fires.
func (p *Player) Tick(dt float64) {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.position += dt
	ended := false
	if p.position >= p.duration {
		p.position = p.duration
		p.playing = false
		ended = true
	}
	cb := p.cb
	pos := p.position
	p.mu.Unlock()

	if cb == nil {
		return
	}
	if ended {
		cb(media.Event{Type: media.EventEnded, Position: pos})
		return
	}
	cb(media.Event{Type: media.EventTimeUpdate, Position: pos})
}
