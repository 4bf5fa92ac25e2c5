// Command dailyfluent is the main entry point for the DailyFluent dictation
// practice server. With -draft it instead transcribes a WAV file into a
// draft exercise for author review and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/manhtienmai/dailyfluent/internal/app"
	"github.com/manhtienmai/dailyfluent/internal/config"
	"github.com/manhtienmai/dailyfluent/internal/feedback"
	"github.com/manhtienmai/dailyfluent/internal/observe"
	"github.com/manhtienmai/dailyfluent/internal/resilience"
	"github.com/manhtienmai/dailyfluent/internal/segment"
	"github.com/manhtienmai/dailyfluent/pkg/audio"
	"github.com/manhtienmai/dailyfluent/pkg/stt"
	"github.com/manhtienmai/dailyfluent/pkg/stt/whisper"
)

// whisperSampleRate is the only sample rate whisper.cpp accepts; draft input
// is converted to it before transcription.
const whisperSampleRate = 16000

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	draftPath := flag.String("draft", "", "WAV file to transcribe into a draft exercise (skips the server)")
	draftSlug := flag.String("slug", "", "slug for the drafted exercise (draft mode)")
	draftTitle := flag.String("title", "", "title for the drafted exercise (draft mode)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "dailyfluent: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "dailyfluent: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can adjust it without
	// replacing the handler.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Draft mode ────────────────────────────────────────────────────────────
	if *draftPath != "" {
		return runDraft(cfg, *draftPath, *draftSlug, *draftTitle)
	}

	slog.Info("dailyfluent starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Environment:    os.Getenv("DAILYFLUENT_ENV"),
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Feedback provider ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	gen, err := buildFeedback(cfg, reg)
	if err != nil {
		slog.Error("failed to build feedback provider", "err", err)
		return 1
	}

	appOpts := []app.Option{app.WithFeedback(gen)}
	if cfg.STT.ModelPath != "" {
		tr, err := reg.CreateSTT("whisper", cfg.STT)
		if err != nil {
			slog.Error("failed to load transcription model", "err", err)
			return 1
		}
		appOpts = append(appOpts, app.WithTranscriber(tr))
		slog.Info("provider created", "kind", "stt", "name", "whisper", "model", cfg.STT.ModelPath)
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, appOpts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.Empty() {
			slog.Info("config changed but no hot-reloadable field differs — restart to apply")
			return
		}
		if diff.LogLevelChanged {
			level.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level updated", "level", diff.NewLogLevel)
		}
		if diff.DictationChanged || diff.PlaybackChanged {
			application.Manager().UpdateDefaults(new.Dictation, new.Playback)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Draft mode ────────────────────────────────────────────────────────────────

// runDraft transcribes a WAV file into a draft exercise and prints it as
// JSON on stdout, ready for an author to fix up and drop into the exercise
// directory.
func runDraft(cfg *config.Config, wavPath, slug, title string) int {
	if cfg.STT.ModelPath == "" {
		fmt.Fprintln(os.Stderr, "dailyfluent: draft mode needs stt.model_path in the config")
		return 1
	}

	f, err := os.Open(wavPath)
	if err != nil {
		slog.Error("failed to open audio file", "path", wavPath, "err", err)
		return 1
	}
	defer f.Close()

	clip, err := audio.DecodeWAV(f)
	if err != nil {
		slog.Error("failed to decode audio file", "path", wavPath, "err", err)
		return 1
	}
	samples := audio.Float32Mono(clip, whisperSampleRate)
	slog.Info("audio decoded",
		"duration_s", fmt.Sprintf("%.1f", clip.Duration()),
		"sample_rate", clip.SampleRate,
		"channels", clip.Channels,
	)

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	tr, err := reg.CreateSTT("whisper", cfg.STT)
	if err != nil {
		slog.Error("failed to load transcription model", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	segs, err := segment.Draft(ctx, tr, samples, whisperSampleRate)
	if err != nil {
		slog.Error("draft transcription failed", "err", err)
		return 1
	}

	if slug == "" {
		slug = "draft"
	}
	if title == "" {
		title = "Draft exercise"
	}
	exercise := segment.Exercise{
		Slug:     slug,
		Title:    title,
		AudioURL: wavPath,
		Segments: segs,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exercise); err != nil {
		slog.Error("failed to encode draft exercise", "err", err)
		return 1
	}
	slog.Info("draft ready", "segments", len(segs))
	return 0
}

// buildTranscriber loads the primary whisper model, wrapped in a failover
// chain when a fallback model is configured.
func buildTranscriber(cfg config.STTConfig) (stt.Transcriber, error) {
	var opts []whisper.Option
	if cfg.Language != "" {
		opts = append(opts, whisper.WithLanguage(cfg.Language))
	}

	primary, err := whisper.New(cfg.ModelPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", cfg.ModelPath, err)
	}
	if cfg.FallbackModelPath == "" {
		return primary, nil
	}

	fallback, err := whisper.New(cfg.FallbackModelPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("load fallback model %q: %w", cfg.FallbackModelPath, err)
	}
	fo := resilience.NewTranscriberFailover(primary, "whisper-primary", resilience.FailoverConfig{})
	fo.AddFallback("whisper-fallback", fallback)
	return fo, nil
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the built-in STT and feedback factories
// into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("whisper", func(cfg config.STTConfig) (stt.Transcriber, error) {
		return buildTranscriber(cfg)
	})

	// openai, anthropic and gemini share the same pattern: optional APIKey
	// falling back to the provider's usual environment variable.
	for _, providerName := range []string{"openai", "anthropic", "gemini"} {
		reg.RegisterFeedback(providerName, func(cfg config.FeedbackConfig) (feedback.Provider, error) {
			var opts []anyllmlib.Option
			if cfg.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
			}
			p, err := feedback.NewAnyLLM(providerName, cfg.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// ollama is a local server; the APIKey field carries its base URL when set.
	reg.RegisterFeedback("ollama", func(cfg config.FeedbackConfig) (feedback.Provider, error) {
		var opts []anyllmlib.Option
		if cfg.APIKey != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.APIKey))
		}
		p, err := feedback.NewAnyLLM("ollama", cfg.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// buildFeedback instantiates the configured feedback generator, or returns
// nil when feedback is disabled.
func buildFeedback(cfg *config.Config, reg *config.Registry) (*feedback.Generator, error) {
	name := cfg.Feedback.Provider
	if name == "" {
		slog.Info("feedback disabled — no provider configured")
		return nil, nil
	}

	p, err := reg.CreateFeedback(cfg.Feedback)
	if err != nil {
		return nil, fmt.Errorf("create feedback provider %q: %w", name, err)
	}
	slog.Info("provider created", "kind", "feedback", "name", name, "model", cfg.Feedback.Model)
	return feedback.NewGenerator(feedback.GeneratorConfig{Provider: p}), nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       DailyFluent — startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Listen addr", cfg.Server.ListenAddr)
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	} else {
		printRow("TLS", "(disabled)")
	}
	if cfg.Storage.PostgresDSN != "" {
		printRow("Storage", "postgres")
	} else {
		printRow("Storage", "memory")
	}
	printRow("Exercises dir", cfg.Exercises.Dir)
	printProvider("Feedback", cfg.Feedback.Provider, cfg.Feedback.Model)
	printProvider("STT", sttName(cfg.STT), "")
	fmt.Println("╚═══════════════════════════════════════╝")
}

func sttName(cfg config.STTConfig) string {
	if cfg.ModelPath == "" {
		return ""
	}
	return "whisper"
}

func printRow(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-13s   : %-19s ║\n", kind, value)
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printRow(kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
