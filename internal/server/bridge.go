package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/manhtienmai/dailyfluent/pkg/media"
)

// ErrBridgeClosed is returned by [Bridge.Play] when the websocket connection
// is gone before the browser reports a play result.
var ErrBridgeClosed = errors.New("server: media bridge closed")

// bridgeCommand is a server-to-browser control frame.
type bridgeCommand struct {
	// Cmd is one of "seek", "play", "pause", "rate", "reload".
	Cmd string `json:"cmd"`

	// Position is the seek target in seconds. Only set for "seek".
	Position float64 `json:"position,omitempty"`

	// Rate is the playback-rate multiplier. Only set for "rate".
	Rate float64 `json:"rate,omitempty"`

	// ID correlates a "play" command with its play_result event.
	ID uint64 `json:"id,omitempty"`
}

// bridgeEvent is a browser-to-server notification frame mirroring the
// HTMLMediaElement events the playback controller consumes.
type bridgeEvent struct {
	// Event is one of "timeupdate", "seeked", "playing", "paused", "ended",
	// "metadata", "reloaded", "state", "play_result".
	Event string `json:"event"`

	// Position carries the element's currentTime on frames that have one
	// (timeupdate, seeked, and friends). Frames without it, such as a
	// play_result, must leave the cached position untouched.
	Position   *float64 `json:"position,omitempty"`
	Duration   float64  `json:"duration,omitempty"`
	ReadyState int      `json:"ready_state,omitempty"`

	// ID and Error carry the outcome of a "play" command. An empty Error
	// means the element's play() promise resolved.
	ID    uint64 `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Bridge adapts a browser <audio> element, reached over a websocket, into a
// [media.Player]. The browser pushes element events as JSON frames; the
// bridge caches position, duration, and readiness so the playback
// controller's polling never blocks on the network.
//
// A Bridge is bound to one websocket connection. When the connection drops
// the bridge reports HaveNothing and pending Play calls fail.
type Bridge struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	position float64
	duration float64
	ready    media.ReadyState
	cb       func(media.Event)
	nextPlay uint64
	pending  map[uint64]chan error
	closed   bool

	done chan struct{}
}

var _ media.Player = (*Bridge)(nil)

// NewBridge wraps an accepted websocket connection and starts the receive
// loop. The caller should block on [Bridge.Done] and close the connection
// when it returns.
func NewBridge(conn *websocket.Conn) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		conn:    conn,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[uint64]chan error),
		done:    make(chan struct{}),
	}
	go b.receiveLoop()
	return b
}

// Done is closed when the websocket connection has ended and the bridge is
// no longer usable.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Close tears down the bridge and fails any in-flight Play call.
func (b *Bridge) Close() {
	b.cancel()
	b.conn.Close(websocket.StatusNormalClosure, "bridge closed")
}

// Position returns the last position reported by the browser.
func (b *Bridge) Position() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

// SetPosition asks the browser to seek. Confirmation arrives (unreliably)
// as a "seeked" event; callers poll [Bridge.Position] to be sure.
func (b *Bridge) SetPosition(seconds float64) {
	b.send(bridgeCommand{Cmd: "seek", Position: seconds})
}

// Duration returns the track length, or 0 while metadata has not loaded.
func (b *Bridge) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration
}

// ReadyState returns the element's last reported readiness level.
func (b *Bridge) ReadyState() media.ReadyState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return media.HaveNothing
	}
	return b.ready
}

// Play asks the browser to start playback and waits for the element's
// play() promise to settle. A non-nil return means the browser refused to
// start (autoplay restriction, no media) or the bridge went away.
func (b *Bridge) Play(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBridgeClosed
	}
	b.nextPlay++
	id := b.nextPlay
	ch := make(chan error, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	b.send(bridgeCommand{Cmd: "play", ID: id})

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return ctx.Err()
	case <-b.done:
		return ErrBridgeClosed
	}
}

// Pause asks the browser to pause without discarding position.
func (b *Bridge) Pause() {
	b.send(bridgeCommand{Cmd: "pause"})
}

// SetRate sets the element's playbackRate.
func (b *Bridge) SetRate(rate float64) {
	b.send(bridgeCommand{Cmd: "rate", Rate: rate})
}

// Reload asks the browser to reload the media resource.
func (b *Bridge) Reload() {
	b.send(bridgeCommand{Cmd: "reload"})
}

// OnEvent registers cb for asynchronous element notifications. Subsequent
// calls replace the previous registration.
func (b *Bridge) OnEvent(cb func(media.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cb = cb
}

// send marshals cmd and writes it as a text frame. Write failures close the
// bridge: a browser that cannot receive commands cannot play anything.
func (b *Bridge) send(cmd bridgeCommand) {
	data, err := json.Marshal(cmd)
	if err != nil {
		slog.Error("server: marshal bridge command", "cmd", cmd.Cmd, "err", err)
		return
	}
	if err := b.conn.Write(b.ctx, websocket.MessageText, data); err != nil {
		if b.ctx.Err() == nil {
			slog.Warn("server: bridge write failed", "cmd", cmd.Cmd, "err", err)
		}
		b.cancel()
	}
}

// receiveLoop reads event frames until the connection drops, then fails all
// pending play calls and closes done.
func (b *Bridge) receiveLoop() {
	defer b.shutdown()

	for {
		_, data, err := b.conn.Read(b.ctx)
		if err != nil {
			return
		}

		var ev bridgeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue // skip malformed frames
		}

		b.handleEvent(ev)
	}
}

// handleEvent updates the cached element state and forwards the event to
// the registered callback.
func (b *Bridge) handleEvent(ev bridgeEvent) {
	b.mu.Lock()
	if ev.Position != nil {
		b.position = *ev.Position
	}
	if ev.Duration > 0 {
		b.duration = ev.Duration
	}
	if ev.ReadyState > 0 || ev.Event == "state" {
		b.ready = media.ReadyState(ev.ReadyState)
	}

	if ev.Event == "play_result" {
		ch, ok := b.pending[ev.ID]
		if ok {
			delete(b.pending, ev.ID)
		}
		b.mu.Unlock()
		if ok {
			if ev.Error != "" {
				ch <- fmt.Errorf("server: browser refused play: %s", ev.Error)
			} else {
				ch <- nil
			}
		}
		return
	}

	cb := b.cb
	pos := b.position
	b.mu.Unlock()

	typ, ok := eventType(ev.Event)
	if !ok {
		return
	}
	if cb != nil {
		cb(media.Event{Type: typ, Position: pos})
	}
}

// shutdown fails pending play calls and marks the bridge unusable.
func (b *Bridge) shutdown() {
	b.mu.Lock()
	b.closed = true
	b.ready = media.HaveNothing
	pending := b.pending
	b.pending = make(map[uint64]chan error)
	b.mu.Unlock()

	for _, ch := range pending {
		ch <- ErrBridgeClosed
	}
	b.cancel()
	close(b.done)
}

// eventType maps a wire event name to its [media.EventType]. "state" and
// "play_result" frames are bridge-internal and map to nothing.
func eventType(name string) (media.EventType, bool) {
	switch name {
	case "metadata":
		return media.EventMetadataLoaded, true
	case "seeked":
		return media.EventSeeked, true
	case "timeupdate":
		return media.EventTimeUpdate, true
	case "paused":
		return media.EventPaused, true
	case "playing":
		return media.EventPlaying, true
	case "ended":
		return media.EventEnded, true
	case "reloaded":
		return media.EventReloaded, true
	default:
		return 0, false
	}
}
