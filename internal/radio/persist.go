package radio

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/airwave/internal/observe"
	"github.com/MrWong99/airwave/internal/resume"
)

// snapshot collects the resumable entries: every guild that should play and
// has both a stream and a voice channel.
func (s *Service) snapshot() map[string]resume.Entry {
	out := make(map[string]resume.Entry)
	for _, g := range s.guilds.all() {
		g.mu.Lock()
		if g.phase.ShouldPlay() && g.streamURL != "" && g.voiceChannelID != "" {
			out[g.id] = resume.Entry{
				VoiceChannelID: g.voiceChannelID,
				TextChannelID:  g.textChannelID,
				StreamURL:      g.streamURL,
				StreamName:     g.streamName,
				RequesterID:    g.requesterID,
			}
		}
		g.mu.Unlock()
	}
	return out
}

// save persists the snapshot and logs failures. It is a no-op once Close has
// written the final snapshot.
func (s *Service) save() {
	if s.closing.Load() {
		return
	}
	if err := s.saveNow(s.ctx); err != nil {
		slog.Error("failed to persist resume state", "err", err)
	}
}

// saveNow writes the snapshot. Writes are serialized so the newest snapshot
// always lands last.
func (s *Service) saveNow(ctx context.Context) error {
	if s.cfg.Store == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.cfg.Store.Save(ctx, s.snapshot()); err != nil {
		s.metrics.RecordPersistenceError(ctx, "save")
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Load hydrates guild state from the resume store. Every valid entry becomes
// a guild that should play and is marked as resuming. Invalid entries are
// skipped. It returns the number of hydrated guilds.
func (s *Service) Load(ctx context.Context) (int, error) {
	if s.cfg.Store == nil {
		return 0, nil
	}
	entries, err := s.cfg.Store.Load(ctx)
	if err != nil {
		s.metrics.RecordPersistenceError(ctx, "load")
		return 0, &PersistenceError{Op: "load", Err: err}
	}

	n := 0
	for id, e := range entries {
		if id == "" || !e.Valid() {
			slog.Warn("skipping incomplete resume entry", observe.GuildIDKey, id)
			continue
		}
		g := s.guilds.getOrCreate(id)
		g.mu.Lock()
		g.phase = PhaseStarting
		g.streamURL = e.StreamURL
		g.streamName = e.StreamName
		g.requesterID = e.RequesterID
		g.voiceChannelID = e.VoiceChannelID
		g.textChannelID = e.TextChannelID
		g.retryCount = 0
		g.resuming = true
		g.title = nil
		g.messageID, g.messageChannel = "", ""
		g.conn, g.handle = nil, nil
		g.mu.Unlock()
		n++
	}
	slog.Info("loaded resume state", "guilds", n)
	return n, nil
}

// ResumeAll launches every guild hydrated by [Service.Load] that has not
// been launched yet. Launches run concurrently; ResumeAll returns once each
// has finished. Failures are logged and not retried.
func (s *Service) ResumeAll(ctx context.Context) {
	var pending []*guild
	for _, g := range s.guilds.all() {
		g.mu.Lock()
		if g.resuming {
			pending = append(pending, g)
		}
		g.mu.Unlock()
	}

	var eg errgroup.Group
	for _, g := range pending {
		eg.Go(func() error {
			g.op.Lock()
			defer g.op.Unlock()

			g.mu.Lock()
			if !g.resuming || g.phase != PhaseStarting {
				g.mu.Unlock()
				return nil
			}
			req := g.request(false)
			seen := g.intentGen
			g.mu.Unlock()

			if _, err := s.launch(ctx, g, req, false, seen); err != nil {
				observe.GuildLogger(ctx, g.id).Warn("resume failed", "err", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
}
