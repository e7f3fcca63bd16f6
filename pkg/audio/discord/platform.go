// Package discord provides an [audio.Platform] implementation backed by
// Discord voice channels via the bwmarrin/discordgo library. It bridges
// Airwave's PCM [audio.AudioFrame] pipeline with Discord's Opus-based voice
// transport.
//
// The platform requires an active *discordgo.Session owned by the bot layer.
// Each call to [Platform.Connect] joins the given voice channel self-deafened
// and returns a [Connection] that encodes outbound PCM to Opus.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/airwave/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

// Compile-time interface assertion.
var _ audio.Platform = (*Platform)(nil)

// DefaultBitrate is the Opus bitrate used when no explicit bitrate is set.
const DefaultBitrate = 96000

// Platform implements [audio.Platform] using discordgo voice connections.
//
// Platform is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
	bitrate int

	// join performs the blocking voice handshake. Defaults to
	// session.ChannelVoiceJoin; overridden in tests.
	join func(guildID, channelID string) (*discordgo.VoiceConnection, error)
}

// Option configures a [Platform].
type Option func(*Platform)

// WithBitrate sets the Opus encoder bitrate in bits per second.
func WithBitrate(bps int) Option {
	return func(p *Platform) {
		if bps > 0 {
			p.bitrate = bps
		}
	}
}

// New creates a new Discord Platform for the given session.
func New(session *discordgo.Session, opts ...Option) *Platform {
	p := &Platform{
		session: session,
		bitrate: DefaultBitrate,
	}
	p.join = func(guildID, channelID string) (*discordgo.VoiceConnection, error) {
		// mute=false (we send audio), deaf=true (we never listen).
		return p.session.ChannelVoiceJoin(guildID, channelID, false, true)
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// Connect joins the voice channel identified by channelID and returns an active
// [audio.Connection]. The supplied ctx governs the connection-setup phase only;
// once the Connection is returned it lives until [Connection.Disconnect] is called.
//
// If ctx expires before the handshake finishes, Connect returns ctx.Err() and
// the late voice connection, if any, is torn down in the background.
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	res := make(chan joinResult, 1)
	go func() {
		vc, err := p.join(guildID, channelID)
		res <- joinResult{vc: vc, err: err}
	}()

	select {
	case r := <-res:
		if r.err != nil {
			return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, r.err)
		}
		return newConnection(r.vc, guildID, channelID, p.bitrate)
	case <-ctx.Done():
		go func() {
			r := <-res
			if r.vc != nil {
				if err := r.vc.Disconnect(); err != nil {
					slog.Warn("discord: disconnect after cancelled join", "guild_id", guildID, "error", err)
				}
			}
		}()
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, ctx.Err())
	}
}
