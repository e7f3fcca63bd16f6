package radio

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/airwave/internal/observe"
	"github.com/MrWong99/airwave/internal/stations"
)

// Status texts returned by the control surface.
const (
	msgNeedVoice      = "You need to be in a voice channel."
	msgStopped        = "⏹️ Playback stopped."
	msgIdleConnected  = "Nothing was playing, but I am connected."
	msgNotInVoice     = "Not currently connected to voice."
	msgNotConnected   = "Not connected."
	msgNothingPlaying = "Not currently playing anything."
	msgPlayFailed     = "An error occurred connecting or playing: %v"
)

// Resolver turns raw user input into a station. *stations.Catalog
// implements it.
type Resolver interface {
	Resolve(raw string) (stations.Station, error)
}

// PlayIntent is an unresolved play command.
type PlayIntent struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	Input          string
	RequesterID    string
}

// Play resolves intent.Input against r and starts the stream. The returned
// text is meant for the requester in both the success and the error case.
func (s *Service) Play(ctx context.Context, r Resolver, intent PlayIntent) (string, error) {
	if intent.VoiceChannelID == "" {
		return msgNeedVoice, &LocationError{GuildID: intent.GuildID, Err: errors.New("requester is not in a voice channel")}
	}

	st, err := r.Resolve(intent.Input)
	if err != nil {
		return err.Error(), err
	}

	status, err := s.EnsurePlaying(ctx, PlayRequest{
		GuildID:        intent.GuildID,
		VoiceChannelID: intent.VoiceChannelID,
		TextChannelID:  intent.TextChannelID,
		StreamURL:      st.URL,
		StreamName:     st.Name,
		RequesterID:    intent.RequesterID,
		Manual:         true,
	})
	switch {
	case errors.Is(err, ErrSuperseded):
		return msgStopped, err
	case err != nil:
		return fmt.Sprintf(msgPlayFailed, err), err
	}
	return status, nil
}

// Stop clears the guild's intent to play and stops its pipeline. The voice
// connection stays up.
func (s *Service) Stop(ctx context.Context, guildID string) string {
	g, ok := s.guilds.get(guildID)
	if !ok {
		return msgNotInVoice
	}

	wasActive, connected := s.stopIntent(ctx, g, false)
	switch {
	case wasActive:
		return msgStopped
	case connected:
		return msgIdleConnected
	default:
		return msgNotInVoice
	}
}

// Leave stops playback and disconnects from voice.
func (s *Service) Leave(ctx context.Context, guildID string) string {
	g, ok := s.guilds.get(guildID)
	if !ok {
		return msgNotConnected
	}

	g.mu.Lock()
	channelID := g.voiceChannelID
	if g.conn != nil {
		channelID = g.conn.ChannelID()
	}
	g.mu.Unlock()

	if _, connected := s.stopIntent(ctx, g, true); !connected {
		return msgNotConnected
	}

	name := channelID
	if s.cfg.Locator != nil {
		if n, err := s.cfg.Locator.VoiceChannel(guildID, channelID); err == nil && n != "" {
			name = n
		}
	}
	return fmt.Sprintf("Left `%s`.", name)
}

// stopIntent applies a stop. The phase flips before the operation lock is
// taken so an in-flight launch or pending retry observes it. It reports
// whether the guild was meant to be playing and whether it had a voice
// connection.
func (s *Service) stopIntent(ctx context.Context, g *guild, disconnect bool) (wasActive, connected bool) {
	g.mu.Lock()
	wasActive = g.phase.ShouldPlay()
	g.phase = PhaseStopped
	g.retryCount = 0
	g.resuming = false
	g.cancelRetry()
	g.intentGen++
	intent := g.intentGen
	g.mu.Unlock()

	g.op.Lock()
	defer g.op.Unlock()

	g.mu.Lock()
	connected = g.conn != nil
	var (
		h    = g.handle
		conn = g.conn
	)
	if g.intentGen != intent {
		// A newer play intent already took over.
		g.mu.Unlock()
		return wasActive, connected
	}
	// The handle stays registered so its termination reaches the supervisor,
	// which sees the cleared intent and finalizes.
	if disconnect {
		g.conn = nil
		g.voiceGen++
	}
	g.mu.Unlock()

	if h != nil {
		h.Stop()
	}
	if disconnect && conn != nil {
		if err := conn.Disconnect(); err != nil {
			observe.GuildLogger(ctx, g.id).Warn("voice disconnect failed", "err", err)
		}
	}

	s.cleanup(ctx, g)
	s.save()
	observe.GuildLogger(ctx, g.id).Info("playback stopped", "disconnect", disconnect)
	return wasActive, connected
}

// Status reports whether the guild is playing, what and the current title.
func (s *Service) Status(guildID string) (playing bool, streamName string, title *string) {
	st, ok := s.State(guildID)
	if !ok || st.Phase != PhasePlaying {
		return false, "", nil
	}
	return true, st.StreamName, st.Title
}

// NowPlaying re-sends the now-playing message. The returned text is empty
// when a message was sent.
func (s *Service) NowPlaying(ctx context.Context, guildID string) string {
	g, ok := s.guilds.get(guildID)
	if !ok {
		return msgNothingPlaying
	}
	g.mu.Lock()
	playing := g.phase == PhasePlaying
	g.mu.Unlock()
	if !playing {
		return msgNothingPlaying
	}
	s.refresh(ctx, g, true)
	return ""
}

// Refresh edits the guild's now-playing message in place, recreating it when
// it has vanished.
func (s *Service) Refresh(ctx context.Context, guildID string) {
	if g, ok := s.guilds.get(guildID); ok {
		s.refresh(ctx, g, false)
	}
}
