package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultDebounce is the quiet period rapid navigation must observe before
// a position is written.
const defaultDebounce = 400 * time.Millisecond

// defaultSaveTimeout bounds each background store write.
const defaultSaveTimeout = 5 * time.Second

// Saver is the write side of a [Store]. Satisfied by [PostgresStore] and
// [MemoryStore].
type Saver interface {
	Save(ctx context.Context, rec Record) error
}

// ReporterConfig configures a [Reporter].
type ReporterConfig struct {
	// Saver receives the debounced writes.
	Saver Saver

	// UserID and ExerciseSlug key the records being written.
	UserID       string
	ExerciseSlug string

	// Debounce is the quiet period before a write. Defaults to 400ms.
	Debounce time.Duration

	// CorrectCount, when non-nil, is sampled at write time to include the
	// learner's running score in the record.
	CorrectCount func() int
}

// Reporter forwards session position updates to a [Saver], debounced so
// rapid segment navigation collapses to a single write. Writes happen in a
// background goroutine; failures are logged and dropped, never surfaced to
// the session.
//
// All methods are safe for concurrent use.
type Reporter struct {
	saver        Saver
	userID       string
	exerciseSlug string
	debounce     time.Duration
	correctCount func() int

	mu      sync.Mutex
	pending Record
	dirty   bool
	timer   *time.Timer
}

// NewReporter creates a debounced reporter.
func NewReporter(cfg ReporterConfig) *Reporter {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Reporter{
		saver:        cfg.Saver,
		userID:       cfg.UserID,
		exerciseSlug: cfg.ExerciseSlug,
		debounce:     debounce,
		correctCount: cfg.CorrectCount,
	}
}

// Report records the latest position and (re)arms the debounce timer. Only
// the last position reported within a quiet period is written.
func (r *Reporter) Report(currentIndex, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = Record{
		UserID:        r.userID,
		ExerciseSlug:  r.exerciseSlug,
		CurrentIndex:  currentIndex,
		TotalSegments: total,
	}
	r.dirty = true

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.flush)
}

// Flush writes any pending position immediately, cancelling the debounce
// timer. Intended for session teardown.
func (r *Reporter) Flush() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
	r.flush()
}

// flush performs the actual write if a position is pending.
func (r *Reporter) flush() {
	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return
	}
	rec := r.pending
	r.dirty = false
	r.mu.Unlock()

	if r.correctCount != nil {
		rec.CorrectCount = r.correctCount()
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSaveTimeout)
	defer cancel()
	if err := r.saver.Save(ctx, rec); err != nil {
		slog.Warn("progress: save failed",
			"user_id", rec.UserID,
			"exercise", rec.ExerciseSlug,
			"error", err,
		)
	}
}
