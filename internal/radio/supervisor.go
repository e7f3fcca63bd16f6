package radio

import (
	"time"

	"github.com/MrWong99/airwave/internal/observe"
)

// Termination reasons recorded on the pipeline termination counter.
const (
	reasonStopped = "stopped"
	reasonError   = "error"
	reasonClean   = "clean"
	reasonStale   = "stale"
)

// handleTermination decides what happens after a pipeline ends. It runs once
// per started pipeline.
func (s *Service) handleTermination(t termination) {
	if s.ctx.Err() != nil {
		return
	}
	g, ok := s.guilds.get(t.guildID)
	if !ok {
		return
	}
	ctx := s.ctx
	log := observe.GuildLogger(ctx, g.id)

	g.op.Lock()
	defer g.op.Unlock()

	g.mu.Lock()
	if t.gen != g.pipelineGen {
		g.mu.Unlock()
		s.metrics.RecordTermination(ctx, reasonStale)
		log.Debug("ignoring termination of replaced pipeline", "gen", t.gen)
		return
	}
	g.handle = nil
	shouldPlay := g.phase.ShouldPlay()
	url := g.streamURL
	g.mu.Unlock()

	// A terminated pipeline is never visibly playing, even if a retry follows.
	s.cleanup(ctx, g)

	switch {
	case !shouldPlay:
		g.mu.Lock()
		g.retryCount = 0
		g.mu.Unlock()
		s.metrics.RecordTermination(ctx, reasonStopped)
		log.Info("stream stopped")
		s.save()

	case t.err != nil:
		s.metrics.RecordTermination(ctx, reasonError)
		log.Warn("stream failed", "err", &PipelineError{GuildID: g.id, URL: url, Err: t.err})
		s.afterFailure(g)

	default:
		// The decoder exiting cleanly looks the same as an external stop.
		g.mu.Lock()
		g.phase = PhaseStopped
		g.retryCount = 0
		g.mu.Unlock()
		s.metrics.RecordTermination(ctx, reasonClean)
		log.Info("stream ended")
		s.save()
	}
}

// afterFailure counts a failure and either schedules a relaunch or gives up.
// g.op must be held.
func (s *Service) afterFailure(g *guild) {
	log := observe.GuildLogger(s.ctx, g.id)

	g.mu.Lock()
	if !g.phase.ShouldPlay() {
		// Stopped while the failure was being handled.
		g.mu.Unlock()
		return
	}
	g.retryCount++
	attempt := g.retryCount
	if attempt > s.cfg.MaxRetries {
		g.phase = PhaseGivenUp
		g.cancelRetry()
		g.mu.Unlock()

		s.metrics.PlaybackGiveUps.Add(s.ctx, 1)
		log.Error("giving up on stream", "attempts", attempt-1, "max_retries", s.cfg.MaxRetries)
		s.save()
		return
	}

	g.phase = PhaseReconnecting
	g.cancelRetry()
	gen := g.retryGen
	g.retryTimer = time.AfterFunc(s.cfg.RetryDelay, func() { s.retry(g, gen) })
	g.mu.Unlock()

	s.metrics.PlaybackRetries.Add(s.ctx, 1)
	log.Info("scheduling relaunch", "attempt", attempt, "max_retries", s.cfg.MaxRetries, "delay", s.cfg.RetryDelay)
	s.save()
}

// retry relaunches the guild's last stream unless the intent changed since
// the relaunch was scheduled.
func (s *Service) retry(g *guild, gen uint64) {
	if s.ctx.Err() != nil {
		return
	}
	g.op.Lock()
	defer g.op.Unlock()

	g.mu.Lock()
	if g.retryGen != gen || g.phase != PhaseReconnecting {
		g.mu.Unlock()
		return
	}
	g.retryTimer = nil
	req := g.request(false)
	seen := g.intentGen
	g.mu.Unlock()

	if _, err := s.launch(s.ctx, g, req, true, seen); err != nil {
		observe.GuildLogger(s.ctx, g.id).Warn("relaunch failed", "err", err)
	}
}

// recoverLocked restarts recovery for a guild whose transport went away
// while it should be playing. The retry budget starts over since the cause
// is infrastructural. g.op must be held.
func (s *Service) recoverLocked(g *guild, cause string) {
	g.mu.Lock()
	old := g.handle
	g.handle = nil
	g.pipelineGen++
	g.retryCount = 0
	g.mu.Unlock()
	if old != nil {
		old.Stop()
	}

	observe.GuildLogger(s.ctx, g.id).Warn("recovering playback", "cause", cause)
	s.cleanup(s.ctx, g)
	s.afterFailure(g)
}
