package radio

import (
	"context"
	"sync"

	"github.com/MrWong99/airwave/internal/observe"
)

// HandleVoiceDisconnect processes the bot leaving voice in a guild, whether
// it was kicked, the channel was deleted or Leave was called. The
// connection handle is dropped immediately. A guild that should still be
// playing starts recovery with a fresh retry budget.
func (s *Service) HandleVoiceDisconnect(ctx context.Context, guildID string) {
	g, ok := s.guilds.get(guildID)
	if !ok {
		return
	}

	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.voiceGen++
	g.mu.Unlock()
	if conn != nil {
		_ = conn.Disconnect()
	}

	g.op.Lock()
	defer g.op.Unlock()

	g.mu.Lock()
	phase := g.phase
	g.mu.Unlock()

	switch phase {
	case PhasePlaying:
		s.recoverLocked(g, "voice disconnected")
	case PhaseStarting, PhaseReconnecting:
		// An in-flight launch sees voiceGen move and fails; a scheduled
		// relaunch reconnects.
	default:
		g.mu.Lock()
		g.retryCount = 0
		g.mu.Unlock()
		observe.GuildLogger(ctx, g.id).Debug("voice disconnected")
		s.cleanup(ctx, g)
		s.save()
	}
}

// HandleVoiceMove records that the bot was moved to channelID.
func (s *Service) HandleVoiceMove(ctx context.Context, guildID, channelID string) {
	g, ok := s.guilds.get(guildID)
	if !ok || channelID == "" {
		return
	}
	g.mu.Lock()
	if g.voiceChannelID == channelID {
		g.mu.Unlock()
		return
	}
	g.voiceChannelID = channelID
	shouldPlay := g.phase.ShouldPlay()
	g.mu.Unlock()

	observe.GuildLogger(ctx, guildID).Info("moved to another voice channel", "channel_id", channelID)
	if shouldPlay {
		s.save()
	}
}

// HandleGatewayReconnect checks every guild after the gateway session was
// re-established. A guild that should be playing but has lost its voice
// connection or pipeline is recovered as if its pipeline had failed, with a
// fresh retry budget.
func (s *Service) HandleGatewayReconnect(ctx context.Context) {
	var wg sync.WaitGroup
	for _, g := range s.guilds.all() {
		g.mu.Lock()
		stale := g.phase == PhasePlaying && (g.conn == nil || g.handle == nil)
		g.mu.Unlock()
		if !stale {
			continue
		}
		wg.Go(func() {
			g.op.Lock()
			defer g.op.Unlock()

			g.mu.Lock()
			stale := g.phase == PhasePlaying && (g.conn == nil || g.handle == nil)
			g.mu.Unlock()
			if stale {
				s.recoverLocked(g, "gateway reconnected")
			}
		})
	}
	wg.Wait()
	observe.Logger(ctx).Debug("post-reconnect check finished")
}
