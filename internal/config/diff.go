package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; network,
// storage, and model-path changes require a restart.
type ConfigDiff struct {
	// DictationChanged is true when any learner-facing session default
	// (auto replay, replay gap, playback rate, segment gap) changed.
	DictationChanged bool
	NewDictation     DictationConfig

	// PlaybackChanged is true when a playback controller knob changed.
	// Applies to sessions created after the reload.
	PlaybackChanged bool
	NewPlayback     PlaybackConfig

	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// Empty reports whether the diff carries no applicable change.
func (d ConfigDiff) Empty() bool {
	return !d.DictationChanged && !d.PlaybackChanged && !d.LogLevelChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Dictation != new.Dictation {
		d.DictationChanged = true
		d.NewDictation = new.Dictation
	}

	if old.Playback != new.Playback {
		d.PlaybackChanged = true
		d.NewPlayback = new.Playback
	}

	return d
}
