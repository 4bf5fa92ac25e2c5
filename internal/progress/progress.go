// Package progress persists and reports a learner's position within a
// dictation exercise, powering resume across sessions.
package progress

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no saved progress exists for the requested
// learner/exercise pair.
var ErrNotFound = errors.New("progress: not found")

// Record is one learner's saved position in one exercise.
type Record struct {
	// UserID identifies the learner.
	UserID string

	// ExerciseSlug identifies the exercise.
	ExerciseSlug string

	// CurrentIndex is the 0-based segment the learner is on. Equal to
	// TotalSegments once the exercise is complete.
	CurrentIndex int

	// TotalSegments is the segment count at save time.
	TotalSegments int

	// CorrectCount is the learner's cumulative correct segments.
	CorrectCount int

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time
}

// Completed reports whether the record represents a finished exercise.
func (r Record) Completed() bool {
	return r.TotalSegments > 0 && r.CurrentIndex >= r.TotalSegments
}

// Store persists progress records. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save upserts the record keyed by (UserID, ExerciseSlug).
	Save(ctx context.Context, rec Record) error

	// Get returns the saved record, or [ErrNotFound].
	Get(ctx context.Context, userID, exerciseSlug string) (Record, error)

	// ListByUser returns all of a learner's records, most recent first.
	ListByUser(ctx context.Context, userID string) ([]Record, error)
}
