package radio

import (
	"context"
	"errors"

	"github.com/MrWong99/airwave/internal/observe"
)

// NowPlaying is the content of a now-playing message. It is derived only
// from the guild's state.
type NowPlaying struct {
	GuildID     string
	ChannelID   string
	StreamName  string
	StreamURL   string
	RequesterID string

	// Title is the current track, nil when unknown.
	Title *string
}

// Messenger sends, edits and deletes now-playing messages. Implementations
// return [ErrMessageNotFound] when the target message is gone and must
// attach a stop control to every message they send.
type Messenger interface {
	SendNowPlaying(ctx context.Context, np NowPlaying) (messageID string, err error)
	EditNowPlaying(ctx context.Context, channelID, messageID string, np NowPlaying) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

const (
	opSend   = "send"
	opEdit   = "edit"
	opDelete = "delete"
)

func (g *guild) nowPlaying() NowPlaying {
	np := NowPlaying{
		GuildID:     g.id,
		ChannelID:   g.textChannelID,
		StreamName:  g.streamName,
		StreamURL:   g.streamURL,
		RequesterID: g.requesterID,
	}
	if g.title != nil {
		t := *g.title
		np.Title = &t
	}
	return np
}

// refresh brings the now-playing message in line with the guild's state.
// With forceNew a fresh message replaces any existing one; otherwise the
// existing message is edited and only recreated when it has disappeared.
func (s *Service) refresh(ctx context.Context, g *guild, forceNew bool) {
	if s.cfg.Messenger == nil {
		return
	}
	g.display.Lock()
	defer g.display.Unlock()

	g.mu.Lock()
	if !g.phase.ShouldPlay() {
		g.mu.Unlock()
		s.cleanupLocked(ctx, g)
		return
	}
	np := g.nowPlaying()
	msgID, msgChannel := g.messageID, g.messageChannel
	g.mu.Unlock()

	if np.ChannelID == "" {
		return
	}
	log := observe.GuildLogger(ctx, g.id)

	if !forceNew && msgID != "" && msgChannel == np.ChannelID {
		err := s.cfg.Messenger.EditNowPlaying(ctx, msgChannel, msgID, np)
		s.metrics.RecordDisplayUpdate(ctx, opEdit, observe.StatusOf(err))
		if err == nil {
			return
		}
		if !errors.Is(err, ErrMessageNotFound) {
			log.Warn("failed to edit now-playing message", "message_id", msgID, "err", err)
			return
		}
		log.Debug("now-playing message vanished, sending a new one", "message_id", msgID)
	}

	s.cleanupLocked(ctx, g)

	id, err := s.cfg.Messenger.SendNowPlaying(ctx, np)
	s.metrics.RecordDisplayUpdate(ctx, opSend, observe.StatusOf(err))
	if err != nil {
		log.Warn("failed to send now-playing message", "channel_id", np.ChannelID, "err", err)
		return
	}
	g.mu.Lock()
	g.messageID, g.messageChannel = id, np.ChannelID
	g.mu.Unlock()
}

// edit updates the existing now-playing message in place. It never creates
// a message; a vanished message is forgotten.
func (s *Service) edit(ctx context.Context, g *guild) {
	if s.cfg.Messenger == nil {
		return
	}
	g.display.Lock()
	defer g.display.Unlock()

	g.mu.Lock()
	np := g.nowPlaying()
	msgID, msgChannel := g.messageID, g.messageChannel
	shouldPlay := g.phase.ShouldPlay()
	g.mu.Unlock()
	if !shouldPlay || msgID == "" {
		return
	}

	err := s.cfg.Messenger.EditNowPlaying(ctx, msgChannel, msgID, np)
	s.metrics.RecordDisplayUpdate(ctx, opEdit, observe.StatusOf(err))
	switch {
	case err == nil:
	case errors.Is(err, ErrMessageNotFound):
		g.mu.Lock()
		if g.messageID == msgID {
			g.messageID, g.messageChannel = "", ""
		}
		g.mu.Unlock()
	default:
		observe.GuildLogger(ctx, g.id).Warn("failed to edit now-playing message", "message_id", msgID, "err", err)
	}
}

// cleanup deletes the now-playing message, if any.
func (s *Service) cleanup(ctx context.Context, g *guild) {
	if s.cfg.Messenger == nil {
		g.mu.Lock()
		g.messageID, g.messageChannel = "", ""
		g.mu.Unlock()
		return
	}
	g.display.Lock()
	defer g.display.Unlock()
	s.cleanupLocked(ctx, g)
}

// cleanupLocked clears the message reference before deleting so a second
// cleanup never targets the same message. g.display must be held.
func (s *Service) cleanupLocked(ctx context.Context, g *guild) {
	g.mu.Lock()
	msgID, channelID := g.messageID, g.messageChannel
	g.messageID, g.messageChannel = "", ""
	g.mu.Unlock()
	if msgID == "" {
		return
	}

	err := s.cfg.Messenger.DeleteMessage(ctx, channelID, msgID)
	s.metrics.RecordDisplayUpdate(ctx, opDelete, observe.StatusOf(err))
	if err != nil && !errors.Is(err, ErrMessageNotFound) {
		observe.GuildLogger(ctx, g.id).Warn("failed to delete now-playing message", "message_id", msgID, "err", err)
	}
}
