// Package app wires all dailyfluent subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithLibrary, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/manhtienmai/dailyfluent/internal/config"
	"github.com/manhtienmai/dailyfluent/internal/feedback"
	"github.com/manhtienmai/dailyfluent/internal/health"
	"github.com/manhtienmai/dailyfluent/internal/progress"
	"github.com/manhtienmai/dailyfluent/internal/resilience"
	"github.com/manhtienmai/dailyfluent/internal/segment"
	"github.com/manhtienmai/dailyfluent/internal/server"
	"github.com/manhtienmai/dailyfluent/pkg/stt"
)

// shutdownTimeout bounds the HTTP server drain during Run teardown.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes: exercise library, progress store,
// practice session manager, and the HTTP server.
type App struct {
	cfg *config.Config

	library     *segment.Library
	store       progress.Store
	guard       *resilience.GuardedSaver
	feedback    *feedback.Generator
	transcriber stt.Transcriber
	manager     *server.Manager
	srv         *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for [New]. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a progress store instead of creating one from config.
func WithStore(s progress.Store) Option {
	return func(a *App) { a.store = s }
}

// WithLibrary injects an exercise library instead of loading from disk.
func WithLibrary(l *segment.Library) Option {
	return func(a *App) { a.library = l }
}

// WithFeedback injects a feedback generator. When absent and the config
// names no provider, the feedback endpoint reports unavailable.
func WithFeedback(g *feedback.Generator) Option {
	return func(a *App) { a.feedback = g }
}

// WithTranscriber injects the transcriber backing the exercise drafting
// endpoint. When absent, drafting reports unavailable.
func WithTranscriber(t stt.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// New creates an App by wiring all subsystems together. The feedback
// provider, when configured, comes from main via the config registry.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if err := a.initLibrary(); err != nil {
		return nil, fmt.Errorf("app: init library: %w", err)
	}
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.guard = resilience.NewGuardedSaver(a.store, resilience.CircuitBreakerConfig{
		Name: "progress-store",
	})

	a.manager = server.NewManager(server.ManagerConfig{
		Library:   a.library,
		Store:     a.store,
		Saver:     a.guard,
		Feedback:  a.feedback,
		Playback:  cfg.Playback,
		Dictation: cfg.Dictation,
	})

	srv := server.New(server.ServerConfig{
		Manager:     a.manager,
		Library:     a.library,
		Health:      health.New(a.healthCheckers()...),
		Transcriber: a.transcriber,
	})

	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initLibrary loads the exercise set from disk unless one was injected.
func (a *App) initLibrary() error {
	if a.library != nil {
		return nil
	}
	lib, err := segment.LoadDir(a.cfg.Exercises.Dir)
	if err != nil {
		return err
	}
	a.library = lib
	slog.Info("exercise library loaded", "dir", a.cfg.Exercises.Dir, "exercises", lib.Len())
	return nil
}

// initStore connects the PostgreSQL progress store, or falls back to the
// in-memory store when no DSN is configured.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		slog.Warn("storage.postgres_dsn not set; progress is kept in memory and lost on restart")
		a.store = progress.NewMemoryStore()
		return nil
	}

	store, err := progress.NewPostgresStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// healthCheckers builds the /readyz checks: exercise library presence,
// store reachability, and the progress circuit breaker.
func (a *App) healthCheckers() []health.Checker {
	checkers := []health.Checker{
		{
			Name: "exercises",
			Check: func(context.Context) error {
				if a.library.Len() == 0 {
					return errors.New("no exercises loaded")
				}
				return nil
			},
		},
		{
			Name: "progress-breaker",
			Check: func(context.Context) error {
				if s := a.guard.State(); s == resilience.StateOpen {
					return fmt.Errorf("circuit breaker %s", s)
				}
				return nil
			},
		},
	}

	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := a.store.(pinger); ok {
		checkers = append(checkers, health.Checker{Name: "database", Check: p.Ping})
	}

	return checkers
}

// Manager returns the practice session manager. Exposed for tests.
func (a *App) Manager() *server.Manager {
	return a.manager
}

// Run serves HTTP until ctx is cancelled, then drains connections and
// closes every active practice session. Returns nil on clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.srv.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.srv.Shutdown(drainCtx); err != nil {
			slog.Warn("http server drain error", "err", err)
		}
		a.manager.CloseAll(drainCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.manager.CloseAll(ctx)

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
