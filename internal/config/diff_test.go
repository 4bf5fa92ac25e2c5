package config_test

import (
	"testing"
	"time"

	"github.com/manhtienmai/dailyfluent/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Exercises: config.ExercisesConfig{Dir: "/var/lib/dailyfluent/exercises"},
		Playback: config.PlaybackConfig{
			SeekTolerance:    0.5,
			SeekPollInterval: 50 * time.Millisecond,
			SeekPollMax:      20,
		},
		Dictation: config.DictationConfig{
			AutoReplay:   true,
			ReplayGap:    time.Second,
			PlaybackRate: 1.0,
		},
	}
}

func TestDiffNoChanges(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	d := config.Diff(cfg, cfg)
	if !d.Empty() {
		t.Errorf("identical configs produced diff %+v", d)
	}
}

func TestDiffLogLevelChanged(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	updated := baseConfig()
	updated.Server.LogLevel = config.LogDebug

	d := config.Diff(old, updated)
	if !d.LogLevelChanged {
		t.Error("LogLevelChanged = false")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q", d.NewLogLevel)
	}
	if d.DictationChanged || d.PlaybackChanged {
		t.Errorf("unrelated sections flagged: %+v", d)
	}
}

func TestDiffDictationChanged(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	updated := baseConfig()
	updated.Dictation.PlaybackRate = 0.75
	updated.Dictation.AutoReplay = false

	d := config.Diff(old, updated)
	if !d.DictationChanged {
		t.Fatal("DictationChanged = false")
	}
	if d.NewDictation.PlaybackRate != 0.75 {
		t.Errorf("NewDictation.PlaybackRate = %v", d.NewDictation.PlaybackRate)
	}
	if d.NewDictation.AutoReplay {
		t.Error("NewDictation.AutoReplay = true")
	}
	if d.Empty() {
		t.Error("Empty() = true for a dictation change")
	}
}

func TestDiffPlaybackChanged(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	updated := baseConfig()
	updated.Playback.SeekPollMax = 40

	d := config.Diff(old, updated)
	if !d.PlaybackChanged {
		t.Fatal("PlaybackChanged = false")
	}
	if d.NewPlayback.SeekPollMax != 40 {
		t.Errorf("NewPlayback.SeekPollMax = %d", d.NewPlayback.SeekPollMax)
	}
}

func TestDiffIgnoresRestartOnlySections(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	updated := baseConfig()
	updated.Server.ListenAddr = ":9090"
	updated.Exercises.Dir = "/srv/exercises"
	updated.Storage.PostgresDSN = "postgres://other/db"

	if d := config.Diff(old, updated); !d.Empty() {
		t.Errorf("restart-only changes produced diff %+v", d)
	}
}
