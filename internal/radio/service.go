// Package radio supervises one always-on internet radio stream per Discord
// guild.
//
// A [Service] owns the per-guild playback state. It joins voice channels,
// starts decode pipelines, relaunches failed streams a bounded number of
// times, polls in-band ICY metadata for the current track title, keeps a
// now-playing message in sync and persists everything needed to resume after
// a restart. Guilds are independent: work for one guild never waits on
// another.
//
// Pipeline terminations arrive on decoder goroutines. They are handed to the
// [Service.Run] loop over a channel and then processed under the guild's
// operation lock, the same lock every play and stop intent takes.
package radio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/airwave/internal/observe"
	"github.com/MrWong99/airwave/internal/resilience"
	"github.com/MrWong99/airwave/internal/resume"
	"github.com/MrWong99/airwave/pkg/audio"
	"github.com/MrWong99/airwave/pkg/stream"
)

// Defaults used when the matching [Config] field is zero.
const (
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 5 * time.Second
	DefaultConnectTimeout = 60 * time.Second
	DefaultPollInterval   = 30 * time.Second
	DefaultFetchTimeout   = 5 * time.Second
	DefaultMaxConcurrent  = 8
)

// saveTimeout bounds a single resume store write.
const saveTimeout = 10 * time.Second

// Locator resolves a voice channel. It returns an error when the channel does
// not exist in the guild or is not a voice channel.
type Locator interface {
	VoiceChannel(guildID, channelID string) (name string, err error)
}

// TitleFetcher reads the current track title of a stream. ok is false when
// the stream carries no title. *icy.Client implements it.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, url string) (title string, ok bool, err error)
}

// Config holds the dependencies and tunables of a [Service].
type Config struct {
	// Platform joins voice channels. Required.
	Platform audio.Platform

	// Pipeline decodes streams into PCM frames. Required.
	Pipeline stream.Pipeline

	// Locator validates voice channels. When nil every channel is accepted.
	Locator Locator

	// Store persists resumable state. When nil nothing is persisted.
	Store resume.Store

	// Messenger renders the now-playing message. When nil no message is sent.
	Messenger Messenger

	// Titles fetches ICY titles for the poller. When nil polling is disabled.
	Titles TitleFetcher

	// Breakers guards metadata fetches per stream host. When nil a set with
	// default settings is created.
	Breakers *resilience.Set

	// Metrics records playback metrics. When nil [observe.DefaultMetrics] is used.
	Metrics *observe.Metrics

	MaxRetries           int
	RetryDelay           time.Duration
	ConnectTimeout       time.Duration
	PollInterval         time.Duration
	FetchTimeout         time.Duration
	MaxConcurrentFetches int
}

// termination is a pipeline end handed from a watcher goroutine to Run.
type termination struct {
	guildID string
	gen     uint64
	err     error
}

// Service is the per-guild radio supervisor. All exported methods are safe
// for concurrent use.
type Service struct {
	cfg     Config
	metrics *observe.Metrics
	guilds  *registry

	terminations chan termination
	interval     chan time.Duration
	polling      atomic.Bool

	// ctx bounds every pipeline and scheduled retry. Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	wg      sync.WaitGroup
	running atomic.Bool
	runDone chan struct{}

	saveMu    sync.Mutex
	closing   atomic.Bool
	closeOnce sync.Once
}

// New creates a [Service]. Call [Service.Run] to start processing pipeline
// terminations and metadata polls, and [Service.Close] on shutdown.
func New(cfg Config) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = DefaultMaxConcurrent
	}
	if cfg.Breakers == nil {
		cfg.Breakers = resilience.NewSet(resilience.Config{Name: "icy"})
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:          cfg,
		metrics:      m,
		guilds:       newRegistry(),
		terminations: make(chan termination, 64),
		interval:     make(chan time.Duration, 1),
		ctx:          ctx,
		cancel:       cancel,
		runDone:      make(chan struct{}),
	}
}

// Run processes pipeline terminations and runs the metadata poller until ctx
// is cancelled or [Service.Close] is called. It must be called at most once.
func (s *Service) Run(ctx context.Context) error {
	s.running.Store(true)
	defer close(s.runDone)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.ctx.Done():
			return nil
		case t := <-s.terminations:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handleTermination(t)
			}()
		case d := <-s.interval:
			ticker.Reset(d)
		case <-ticker.C:
			if s.cfg.Titles == nil || !s.polling.CompareAndSwap(false, true) {
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.polling.Store(false)
				s.PollOnce(s.ctx)
			}()
		}
	}
}

// SetPollInterval changes the metadata poll interval of a running service.
func (s *Service) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case s.interval <- d:
			return
		default:
		}
		// Replace a pending value that Run has not picked up yet.
		select {
		case <-s.interval:
		default:
		}
	}
}

// State returns a copy of the guild's state.
func (s *Service) State(guildID string) (State, bool) {
	g, ok := s.guilds.get(guildID)
	if !ok {
		return State{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot(), true
}

// States returns a copy of every guild's state ordered by guild ID.
func (s *Service) States() []State {
	gs := s.guilds.all()
	out := make([]State, 0, len(gs))
	for _, g := range gs {
		g.mu.Lock()
		out = append(out, g.snapshot())
		g.mu.Unlock()
	}
	return out
}

// Close persists the resumable state one last time, then stops every
// pipeline and retry and disconnects from voice without changing the stored
// intent. Further calls are no-ops.
func (s *Service) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.saveNow(ctx)
		s.closing.Store(true)
		s.cancel()

		for _, g := range s.guilds.all() {
			g.mu.Lock()
			g.cancelRetry()
			h, conn := g.handle, g.conn
			g.handle, g.conn = nil, nil
			g.pipelineGen++
			g.mu.Unlock()
			if h != nil {
				h.Stop()
			}
			if conn != nil {
				_ = conn.Disconnect()
			}
		}

		if s.running.Load() {
			select {
			case <-s.runDone:
			case <-ctx.Done():
			}
		}
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
	})
	return err
}

// watch hands the end of h to the Run loop.
func (s *Service) watch(guildID string, gen uint64, h stream.Handle) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-h.Done():
		case <-s.ctx.Done():
			// Close stops every registered pipeline.
			<-h.Done()
		}
		s.metrics.ActiveStreams.Add(context.WithoutCancel(s.ctx), -1)
		if s.ctx.Err() != nil {
			return
		}
		select {
		case s.terminations <- termination{guildID: guildID, gen: gen, err: h.Err()}:
		case <-s.ctx.Done():
		}
	}()
}
