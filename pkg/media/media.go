// Package media defines the playback capability consumed by the segment
// playback controller.
//
// The central abstraction is [Player] — a single seekable audio track with
// the observable surface of a browser media element: readable/settable
// position, duration that is unknown until metadata loads, a buffered
// readiness level, play/pause, and asynchronous event notifications.
//
// This package lives under pkg/ because external code is expected to
// implement [Player]: the server's websocket bridge adapts a browser
// `<audio>` element, and pkg/media/mock provides a scriptable fake for
// tests. Implementations must be safe for concurrent use.
package media

import "context"

// ReadyState is the buffered-readiness level of a [Player], following the
// HTMLMediaElement readyState ladder.
type ReadyState int

const (
	// HaveNothing means no information about the track is available.
	HaveNothing ReadyState = iota

	// HaveMetadata means duration and dimensions are known but no frame
	// data is buffered.
	HaveMetadata

	// HaveCurrentData means data for the current position is available but
	// not enough to advance.
	HaveCurrentData

	// HaveFutureData means enough data is buffered to start playing.
	HaveFutureData

	// HaveEnoughData means playback can proceed uninterrupted at the
	// current download rate.
	HaveEnoughData
)

// String returns the human-readable name of the readiness level.
func (s ReadyState) String() string {
	switch s {
	case HaveNothing:
		return "have-nothing"
	case HaveMetadata:
		return "have-metadata"
	case HaveCurrentData:
		return "have-current-data"
	case HaveFutureData:
		return "have-future-data"
	case HaveEnoughData:
		return "have-enough-data"
	default:
		return "unknown"
	}
}

// EventType classifies asynchronous notifications emitted by a [Player].
type EventType int

const (
	// EventMetadataLoaded fires when the track's duration becomes known.
	EventMetadataLoaded EventType = iota

	// EventSeeked fires when a seek initiated via [Player.SetPosition]
	// completes. Browsers deliver this unreliably; callers must not depend
	// on it arriving.
	EventSeeked

	// EventTimeUpdate fires periodically while the position advances.
	EventTimeUpdate

	// EventPaused fires when playback stops for any reason other than
	// reaching the end of the track.
	EventPaused

	// EventPlaying fires when playback actually starts after a play request.
	EventPlaying

	// EventEnded fires when the natural end of the track is reached.
	EventEnded

	// EventReloaded fires after a forced reload of the underlying resource
	// completes and the element is resetting its state.
	EventReloaded
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventMetadataLoaded:
		return "metadata-loaded"
	case EventSeeked:
		return "seeked"
	case EventTimeUpdate:
		return "timeupdate"
	case EventPaused:
		return "paused"
	case EventPlaying:
		return "playing"
	case EventEnded:
		return "ended"
	case EventReloaded:
		return "reloaded"
	default:
		return "unknown"
	}
}

// Event is a single asynchronous notification from a [Player].
type Event struct {
	// Type classifies the notification.
	Type EventType

	// Position is the playback position in seconds at the time the event
	// was observed.
	Position float64
}

// Player is a single seekable, playable audio track shared by every mode of
// a practice session.
//
// All methods must be safe for concurrent use. Event callbacks are invoked
// on an internal goroutine; registered callbacks must not block.
type Player interface {
	// Position returns the current playback position in seconds.
	Position() float64

	// SetPosition requests a seek to the given position in seconds.
	// Completion is signalled (unreliably) via [EventSeeked]; callers that
	// need confirmation must also poll [Player.Position].
	SetPosition(seconds float64)

	// Duration returns the track length in seconds, or 0 / NaN while
	// metadata has not loaded yet.
	Duration() float64

	// ReadyState reports the buffered-readiness level of the track.
	ReadyState() ReadyState

	// Play starts playback. The call resolves like a browser play()
	// promise: a nil return means playback has begun, a non-nil error
	// means the platform refused to start (e.g. a user-gesture
	// restriction). A refusal leaves the player in a state where a later
	// Play may succeed.
	Play(ctx context.Context) error

	// Pause stops playback without discarding position.
	Pause()

	// SetRate sets the playback-rate multiplier (1.0 = normal speed).
	SetRate(rate float64)

	// Reload forces the underlying resource to be reloaded, discarding any
	// stalled buffering state. Completion is signalled via
	// [EventReloaded] followed by [EventMetadataLoaded].
	Reload()

	// OnEvent registers cb as the callback for asynchronous notifications.
	// Only one callback may be registered at a time; subsequent calls
	// replace the previous registration.
	OnEvent(cb func(Event))
}
