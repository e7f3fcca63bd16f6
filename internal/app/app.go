// Package app wires all Airwave subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates the resume store, the
// station catalogue and the playback service, Run restores saved playback
// and drives the service loop, and Shutdown tears everything down in order.
//
// Discord-facing collaborators arrive through [Providers] so tests can run
// the whole application against mocks. Subsystems that are not injected via
// an Option are created from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/airwave/internal/config"
	"github.com/MrWong99/airwave/internal/health"
	"github.com/MrWong99/airwave/internal/observe"
	"github.com/MrWong99/airwave/internal/radio"
	"github.com/MrWong99/airwave/internal/resilience"
	"github.com/MrWong99/airwave/internal/resume"
	"github.com/MrWong99/airwave/internal/stations"
	"github.com/MrWong99/airwave/pkg/audio"
	"github.com/MrWong99/airwave/pkg/icy"
	"github.com/MrWong99/airwave/pkg/stream"
)

// Providers holds the collaborators that talk to the outside world. Platform
// is required; the rest fall back to production implementations or are
// disabled when nil.
type Providers struct {
	// Platform joins voice channels.
	Platform audio.Platform

	// Messenger renders now-playing messages. Nil disables them.
	Messenger radio.Messenger

	// Locator validates voice channels. Nil accepts any channel.
	Locator radio.Locator

	// Pipeline decodes streams. Nil uses ffmpeg.
	Pipeline stream.Pipeline

	// Titles fetches ICY titles. Nil uses an ICY HTTP client.
	Titles radio.TitleFetcher
}

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	catalog *stations.Catalog
	store   resume.Store
	metrics *observe.Metrics
	service *radio.Service

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithResumeStore injects a resume store instead of opening the configured
// backend. The caller keeps ownership; Shutdown does not close it.
func WithResumeStore(s resume.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metrics instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Platform == nil {
		return nil, errors.New("app: a voice platform is required")
	}
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.catalog = stations.NewCatalog(stationList(cfg.Stations))

	if a.store == nil {
		store, err := openStore(ctx, cfg.Resume)
		if err != nil {
			return nil, fmt.Errorf("app: open resume store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	pipeline := providers.Pipeline
	if pipeline == nil {
		pipeline = stream.NewDecoder(stream.WithFFmpegPath(cfg.Playback.FFmpegPath))
	}
	titles := providers.Titles
	if titles == nil {
		titles = icy.NewClient(icy.WithUserAgent(cfg.Metadata.UserAgent))
	}

	a.service = radio.New(radio.Config{
		Platform:             providers.Platform,
		Pipeline:             pipeline,
		Locator:              providers.Locator,
		Store:                a.store,
		Messenger:            providers.Messenger,
		Titles:               titles,
		Breakers:             resilience.NewSet(resilience.Config{Name: "icy"}),
		Metrics:              a.metrics,
		MaxRetries:           cfg.Playback.MaxRetries,
		RetryDelay:           cfg.Playback.RetryDelay,
		ConnectTimeout:       cfg.Playback.ConnectTimeout,
		PollInterval:         cfg.Metadata.Interval,
		FetchTimeout:         cfg.Metadata.Timeout,
		MaxConcurrentFetches: cfg.Metadata.MaxConcurrent,
	})

	slog.Info("app initialised",
		"stations", len(a.catalog.List()),
		"resume_backend", cfg.Resume.Backend,
	)
	return a, nil
}

// openStore opens the configured resume backend.
func openStore(ctx context.Context, rc config.ResumeConfig) (resume.Store, error) {
	switch rc.Backend {
	case config.ResumePostgres:
		return resume.OpenPostgres(ctx, rc.PostgresDSN)
	case config.ResumeSQLite:
		return resume.OpenSQLite(ctx, rc.SQLitePath)
	case config.ResumeMemory:
		return resume.NewMemoryStore(nil), nil
	case config.ResumeFile, "":
		return resume.NewFileStore(rc.Path), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", rc.Backend)
	}
}

func stationList(cfgs []config.StationConfig) []stations.Station {
	list := make([]stations.Station, 0, len(cfgs))
	for _, s := range cfgs {
		list = append(list, stations.Station{Name: s.Name, URL: s.URL, Description: s.Description})
	}
	return list
}

// Service returns the playback service.
func (a *App) Service() *radio.Service {
	return a.service
}

// Catalog returns the station catalogue.
func (a *App) Catalog() *stations.Catalog {
	return a.catalog
}

// Checkers returns the readiness checks owned by the app.
func (a *App) Checkers() []health.Checker {
	return []health.Checker{
		{
			Name: "resume_store",
			Check: func(ctx context.Context) error {
				_, err := a.store.Load(ctx)
				return err
			},
		},
	}
}

// ApplyDiff applies the hot-reloadable parts of a config change.
func (a *App) ApplyDiff(d config.ConfigDiff) {
	if d.StationsChanged {
		a.catalog.Replace(stationList(d.Stations))
		slog.Info("stations reloaded", "count", len(a.catalog.List()))
	}
	if d.MetadataIntervalChanged {
		a.service.SetPollInterval(d.NewMetadataInterval)
		slog.Info("metadata interval changed", "interval", d.NewMetadataInterval)
	}
}

// Run restores saved playback and runs the service until ctx is cancelled.
// A resume store that cannot be read is logged and playback starts empty.
func (a *App) Run(ctx context.Context) error {
	n, err := a.service.Load(ctx)
	if err != nil {
		slog.Warn("could not load resume state", "err", err)
	} else if n > 0 {
		slog.Info("resuming playback", "guilds", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.service.Run(gctx)
	})
	g.Go(func() error {
		a.service.ResumeAll(gctx)
		return nil
	})
	return g.Wait()
}

// Shutdown saves playback state, stops every stream and closes the resume
// store. It respects the context deadline: if ctx expires before all closers
// finish, remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.service.Close(ctx); err != nil {
			slog.Warn("radio service close error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = errors.Join(shutdownErr, ctx.Err())
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
