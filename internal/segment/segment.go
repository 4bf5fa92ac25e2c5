// Package segment defines the dictation exercise data model: an exercise is
// one audio track split into ordered, timestamped segments, each carrying
// its reference transcript. Exercises are loaded fully at session start and
// never mutated afterwards.
package segment

import (
	"errors"
	"fmt"
)

// ErrMalformed indicates a segment whose time bounds are unusable
// (negative start, or end not after start). Malformed segments are rejected
// at load time; they are fatal to the segment only, never to the exercise.
var ErrMalformed = errors.New("segment: malformed time bounds")

// Segment is one scored sub-clip of an exercise track. Immutable after load.
type Segment struct {
	// Start is the sub-clip start in seconds from the beginning of the track.
	Start float64 `json:"start_time"`

	// End is the sub-clip end in seconds. Must be strictly greater than Start.
	End float64 `json:"end_time"`

	// Text is the reference transcript the learner's answer is scored against.
	Text string `json:"correct_text"`

	// Hint is optional free-text help shown alongside the masked answer.
	Hint string `json:"hint,omitempty"`

	// Order is the position of this segment within the exercise.
	Order int `json:"order"`
}

// Validate checks the segment's time-bound invariant: 0 ≤ Start < End.
func (s Segment) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("%w: negative start %v", ErrMalformed, s.Start)
	}
	if s.End <= s.Start {
		return fmt.Errorf("%w: end %v not after start %v", ErrMalformed, s.End, s.Start)
	}
	return nil
}

// Duration returns the sub-clip length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Exercise is one dictation exercise: a single audio track plus its ordered
// segment list.
type Exercise struct {
	// Slug is the stable identifier used in URLs and progress records.
	Slug string `json:"slug"`

	// Title is the human-readable exercise name.
	Title string `json:"title"`

	// AudioURL locates the exercise's audio track.
	AudioURL string `json:"audio_url"`

	// Level is an optional difficulty label (e.g. "TOEIC 600").
	Level string `json:"level,omitempty"`

	// Segments is the ordered segment list. Sorted by Order at load time.
	Segments []Segment `json:"segments"`
}
