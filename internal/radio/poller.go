package radio

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/airwave/internal/observe"
	"github.com/MrWong99/airwave/internal/resilience"
)

// pollTarget is what one poll needs to know about a guild.
type pollTarget struct {
	g   *guild
	url string
}

// PollOnce runs one metadata cycle over every guild that is currently
// playing. Fetches run concurrently and a failure for one guild never affects
// another. PollOnce returns when every fetch has finished.
func (s *Service) PollOnce(ctx context.Context) {
	if s.cfg.Titles == nil {
		return
	}

	var targets []pollTarget
	for _, g := range s.guilds.all() {
		g.mu.Lock()
		if g.phase == PhasePlaying && g.handle != nil && g.streamURL != "" {
			targets = append(targets, pollTarget{g: g, url: g.streamURL})
		}
		g.mu.Unlock()
	}
	if len(targets) == 0 {
		return
	}

	var eg errgroup.Group
	eg.SetLimit(s.cfg.MaxConcurrentFetches)
	for _, t := range targets {
		eg.Go(func() error {
			s.pollGuild(ctx, t)
			return nil
		})
	}
	_ = eg.Wait()
}

// pollGuild fetches the title for one guild and edits the now-playing message
// when it changed.
func (s *Service) pollGuild(ctx context.Context, t pollTarget) {
	ctx, span := observe.StartGuildSpan(ctx, "radio.poll", t.g.id)
	defer span.End()
	log := observe.GuildLogger(ctx, t.g.id)

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	var (
		title string
		found bool
	)
	start := time.Now()
	err := s.cfg.Breakers.Get(hostOf(t.url)).Do(fetchCtx, func(ctx context.Context) error {
		var err error
		title, found, err = s.cfg.Titles.FetchTitle(ctx, t.url)
		return err
	})
	if errors.Is(err, resilience.ErrOpen) {
		log.Debug("metadata fetch skipped, circuit open", "url", t.url)
		return
	}
	s.metrics.RecordMetadataFetch(ctx, observe.StatusOf(err), time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug("metadata fetch failed", "err", &MetadataError{GuildID: t.g.id, URL: t.url, Err: err})
		return
	}

	var next *string
	if found {
		next = &title
	}

	g := t.g
	g.mu.Lock()
	if g.phase != PhasePlaying || g.streamURL != t.url || sameTitle(g.title, next) {
		g.mu.Unlock()
		return
	}
	g.title = next
	g.mu.Unlock()

	log.Debug("track changed", "title", title, "known", found)
	s.edit(ctx, g)
}

func sameTitle(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// hostOf returns the breaker key for a stream URL.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
