package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/manhtienmai/dailyfluent/pkg/media"
)

// bridgeHarness runs a Bridge behind a real websocket pair: the server side
// wraps the accepted connection in a Bridge, the client side plays the role
// of the browser.
type bridgeHarness struct {
	srv    *httptest.Server
	client *websocket.Conn

	mu     sync.Mutex
	bridge *Bridge
}

func newBridgeHarness(t *testing.T) *bridgeHarness {
	t.Helper()
	h := &bridgeHarness{}

	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		b := NewBridge(conn)
		h.mu.Lock()
		h.bridge = b
		h.mu.Unlock()
		<-b.Done()
	}))
	t.Cleanup(h.srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, h.srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	h.client = conn
	t.Cleanup(func() { _ = conn.CloseNow() })

	waitFor(t, func() bool { return h.get() != nil }, "bridge never accepted")
	return h
}

func (h *bridgeHarness) get() *Bridge {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bridge
}

// sendEvent writes a browser event frame to the bridge.
func (h *bridgeHarness) sendEvent(t *testing.T, ev bridgeEvent) {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.client.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write event: %v", err)
	}
}

// readCommand reads the next command frame sent by the bridge.
func (h *bridgeHarness) readCommand(t *testing.T) bridgeCommand {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := h.client.Read(ctx)
	if err != nil {
		t.Fatalf("read command: %v", err)
	}
	var cmd bridgeCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		t.Fatalf("unmarshal command %q: %v", data, err)
	}
	return cmd
}

// at builds the optional position field of an event frame.
func at(seconds float64) *float64 {
	return &seconds
}

func TestBridgeCachesElementState(t *testing.T) {
	t.Parallel()
	h := newBridgeHarness(t)
	b := h.get()

	h.sendEvent(t, bridgeEvent{
		Event:      "state",
		Position:   at(1.5),
		Duration:   30,
		ReadyState: int(media.HaveEnoughData),
	})

	waitFor(t, func() bool { return b.Position() == 1.5 }, "position never updated")
	if got := b.Duration(); got != 30 {
		t.Errorf("Duration() = %v", got)
	}
	if got := b.ReadyState(); got != media.HaveEnoughData {
		t.Errorf("ReadyState() = %v", got)
	}
}

func TestBridgeKeepsPositionAcrossPositionlessFrames(t *testing.T) {
	t.Parallel()
	h := newBridgeHarness(t)
	b := h.get()

	h.sendEvent(t, bridgeEvent{Event: "timeupdate", Position: at(7.25)})
	waitFor(t, func() bool { return b.Position() == 7.25 }, "position never updated")

	// Frames that carry no currentTime, like a play result or a bare
	// readiness report, must not clobber the cached position.
	h.sendEvent(t, bridgeEvent{Event: "play_result", ID: 999})
	h.sendEvent(t, bridgeEvent{Event: "state", ReadyState: int(media.HaveEnoughData)})
	waitFor(t, func() bool { return b.ReadyState() == media.HaveEnoughData }, "state frame never processed")

	if got := b.Position(); got != 7.25 {
		t.Errorf("Position() = %v after positionless frames, want 7.25", got)
	}
}

func TestBridgeForwardsEvents(t *testing.T) {
	t.Parallel()
	h := newBridgeHarness(t)
	b := h.get()

	var mu sync.Mutex
	var events []media.Event
	b.OnEvent(func(ev media.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	h.sendEvent(t, bridgeEvent{Event: "seeked", Position: at(4.2)})
	h.sendEvent(t, bridgeEvent{Event: "ended", Position: at(30)})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, "events never forwarded")

	mu.Lock()
	defer mu.Unlock()
	if events[0].Type != media.EventSeeked || events[0].Position != 4.2 {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != media.EventEnded {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestBridgeSendsCommands(t *testing.T) {
	t.Parallel()
	h := newBridgeHarness(t)
	b := h.get()

	b.SetPosition(12.5)
	if cmd := h.readCommand(t); cmd.Cmd != "seek" || cmd.Position != 12.5 {
		t.Errorf("seek command = %+v", cmd)
	}

	b.SetRate(0.75)
	if cmd := h.readCommand(t); cmd.Cmd != "rate" || cmd.Rate != 0.75 {
		t.Errorf("rate command = %+v", cmd)
	}

	b.Pause()
	if cmd := h.readCommand(t); cmd.Cmd != "pause" {
		t.Errorf("pause command = %+v", cmd)
	}

	b.Reload()
	if cmd := h.readCommand(t); cmd.Cmd != "reload" {
		t.Errorf("reload command = %+v", cmd)
	}
}

func TestBridgePlayRoundtrip(t *testing.T) {
	t.Parallel()
	h := newBridgeHarness(t)
	b := h.get()

	errc := make(chan error, 1)
	go func() { errc <- b.Play(context.Background()) }()

	cmd := h.readCommand(t)
	if cmd.Cmd != "play" || cmd.ID == 0 {
		t.Fatalf("play command = %+v", cmd)
	}
	h.sendEvent(t, bridgeEvent{Event: "play_result", ID: cmd.ID})

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Play: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play never resolved")
	}
}

func TestBridgePlayRefused(t *testing.T) {
	t.Parallel()
	h := newBridgeHarness(t)
	b := h.get()

	errc := make(chan error, 1)
	go func() { errc <- b.Play(context.Background()) }()

	cmd := h.readCommand(t)
	h.sendEvent(t, bridgeEvent{Event: "play_result", ID: cmd.ID, Error: "NotAllowedError"})

	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("Play succeeded despite refusal")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play never resolved")
	}
}

func TestBridgeConnectionLoss(t *testing.T) {
	t.Parallel()
	h := newBridgeHarness(t)
	b := h.get()

	h.sendEvent(t, bridgeEvent{Event: "state", ReadyState: int(media.HaveEnoughData)})
	waitFor(t, func() bool { return b.ReadyState() == media.HaveEnoughData }, "state never applied")

	errc := make(chan error, 1)
	go func() { errc <- b.Play(context.Background()) }()
	h.readCommand(t) // drain the play command, never answer it

	_ = h.client.CloseNow()

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed after connection loss")
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrBridgeClosed) {
			t.Errorf("pending Play err = %v, want ErrBridgeClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending Play never failed")
	}

	if got := b.ReadyState(); got != media.HaveNothing {
		t.Errorf("ReadyState after loss = %v", got)
	}
	if err := b.Play(context.Background()); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("Play after loss err = %v", err)
	}
}
