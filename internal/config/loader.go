package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidFeedbackProviders lists known feedback provider names. Used by
// [Validate] to warn about unrecognised names.
var ValidFeedbackProviders = []string{"openai", "anthropic", "gemini", "ollama"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Exercises
	if cfg.Exercises.Dir == "" {
		errs = append(errs, errors.New("exercises.dir is required"))
	}

	// Playback
	if cfg.Playback.SeekTolerance < 0 {
		errs = append(errs, fmt.Errorf("playback.seek_tolerance %.2f must not be negative", cfg.Playback.SeekTolerance))
	}
	if cfg.Playback.SeekPollMax < 0 {
		errs = append(errs, fmt.Errorf("playback.seek_poll_max %d must not be negative", cfg.Playback.SeekPollMax))
	}

	// Dictation
	if rate := cfg.Dictation.PlaybackRate; rate != 0 && (rate < 0.25 || rate > 4.0) {
		errs = append(errs, fmt.Errorf("dictation.playback_rate %.2f is out of range [0.25, 4.0]", rate))
	}
	if cfg.Dictation.ReplayGap < 0 {
		errs = append(errs, fmt.Errorf("dictation.replay_gap %v must not be negative", cfg.Dictation.ReplayGap))
	}

	// STT
	if cfg.STT.FallbackModelPath != "" && cfg.STT.ModelPath == "" {
		errs = append(errs, errors.New("stt.fallback_model_path is set but stt.model_path is not"))
	}
	if cfg.STT.ModelPath == "" {
		slog.Warn("stt.model_path is empty; exercise drafting will be unavailable")
	}

	// Feedback
	if name := cfg.Feedback.Provider; name != "" {
		if !slices.Contains(ValidFeedbackProviders, name) {
			slog.Warn("unknown feedback provider name — may be a typo",
				"name", name,
				"known", ValidFeedbackProviders,
			)
		}
		if cfg.Feedback.Model == "" {
			errs = append(errs, errors.New("feedback.model is required when feedback.provider is set"))
		}
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; progress will not survive restarts")
	}

	return errors.Join(errs...)
}
