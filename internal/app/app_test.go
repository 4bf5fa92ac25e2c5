package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/manhtienmai/dailyfluent/internal/config"
	"github.com/manhtienmai/dailyfluent/internal/progress"
	"github.com/manhtienmai/dailyfluent/internal/segment"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{ListenAddr: "127.0.0.1:0"},
		Exercises: config.ExercisesConfig{Dir: "testdata"},
		Dictation: config.DictationConfig{PlaybackRate: 1.0},
	}
}

func testLibrary() *segment.Library {
	return segment.NewLibrary(&segment.Exercise{
		Slug:  "airport-announcement",
		Title: "Airport Announcement",
		Segments: []segment.Segment{
			{Start: 0, End: 4, Text: "Flight two oh one is now boarding.", Order: 1},
			{Start: 4.5, End: 8, Text: "Please proceed to gate twelve.", Order: 2},
		},
	})
}

func TestNewWiresSubsystems(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(),
		WithLibrary(testLibrary()),
		WithStore(progress.NewMemoryStore()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	info, err := a.Manager().Create(context.Background(), "learner-1", "airport-announcement")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.Total != 2 {
		t.Errorf("Total = %d", info.Total)
	}
}

func TestNewLoadsLibraryFromDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exercise := `{
  "slug": "gate-change",
  "title": "Gate Change",
  "audio_url": "/audio/gate-change.mp3",
  "segments": [
    {"start_time": 0, "end_time": 3, "correct_text": "Attention please.", "order": 1}
  ]
}`
	if err := os.WriteFile(filepath.Join(dir, "gate-change.json"), []byte(exercise), 0o644); err != nil {
		t.Fatalf("write exercise: %v", err)
	}

	cfg := testConfig()
	cfg.Exercises.Dir = dir

	a, err := New(context.Background(), cfg, WithStore(progress.NewMemoryStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if _, err := a.Manager().Create(context.Background(), "learner-1", "gate-change"); err != nil {
		t.Errorf("Create from loaded library: %v", err)
	}
}

func TestNewFailsOnMissingExerciseDir(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Exercises.Dir = filepath.Join(t.TempDir(), "nope")

	if _, err := New(context.Background(), cfg, WithStore(progress.NewMemoryStore())); err == nil {
		t.Fatal("New succeeded with a missing exercise directory")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(),
		WithLibrary(testLibrary()),
		WithStore(progress.NewMemoryStore()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give the listener a moment, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run never returned after cancel")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(),
		WithLibrary(testLibrary()),
		WithStore(progress.NewMemoryStore()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
