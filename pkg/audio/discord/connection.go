package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/airwave/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

// Compile-time interface assertion.
var _ audio.Connection = (*Connection)(nil)

const outputChannelBuffer = 64

// Connection wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Connection] interface. Outgoing PCM frames are re-chunked into exact
// 20 ms Opus frames, encoded and written to the voice connection.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc      *discordgo.VoiceConnection
	guildID string
	bitrate int

	output chan audio.AudioFrame

	done      chan struct{}
	closeOnce sync.Once

	// disconnectVC is called during Disconnect to tear down the voice connection.
	// Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error

	// changeChannel performs the channel switch. Defaults to vc.ChangeChannel;
	// overridden in tests.
	changeChannel func(channelID string) error
}

// newConnection initialises a Connection for an already-joined voice channel
// and starts the send loop.
func newConnection(vc *discordgo.VoiceConnection, guildID, channelID string, bitrate int) (*Connection, error) {
	if vc == nil {
		return nil, fmt.Errorf("discord: nil voice connection for guild %q", guildID)
	}
	c := &Connection{
		vc:           vc,
		guildID:      guildID,
		bitrate:      bitrate,
		output:       make(chan audio.AudioFrame, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
		changeChannel: func(id string) error {
			return vc.ChangeChannel(id, false, true)
		},
	}
	vc.Lock()
	if vc.ChannelID == "" {
		vc.ChannelID = channelID
	}
	vc.Unlock()
	go c.sendLoop()
	return c, nil
}

// GuildID returns the guild this connection belongs to.
func (c *Connection) GuildID() string { return c.guildID }

// ChannelID returns the voice channel the connection currently occupies.
// discordgo keeps vc.ChannelID current when a member drags the bot, so this
// also reflects moves that did not go through [Connection.Move].
func (c *Connection) ChannelID() string {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.ChannelID
}

// OutputStream returns the write-only channel for outbound audio.
func (c *Connection) OutputStream() chan<- audio.AudioFrame {
	return c.output
}

// Move switches the voice session to channelID. The voice handshake keeps
// running in the background if ctx expires first.
func (c *Connection) Move(ctx context.Context, channelID string) error {
	select {
	case <-c.done:
		return fmt.Errorf("discord: move to %q: connection closed", channelID)
	default:
	}

	errCh := make(chan error, 1)
	go func() { errCh <- c.changeChannel(channelID) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("discord: move to %q: %w", channelID, err)
		}
		c.vc.Lock()
		c.vc.ChannelID = channelID
		c.vc.Unlock()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("discord: move to %q: %w", channelID, ctx.Err())
	}
}

// Disconnect cleanly tears down the voice connection and stops the send loop.
// It is safe to call more than once; subsequent calls return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// sendLoop reads PCM AudioFrames from the output channel, extracts exact
// Opus frame-sized chunks, encodes them and sends the packets via the voice
// connection.
func (c *Connection) sendLoop() {
	enc, err := newOpusEncoder(c.bitrate)
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "guild_id", c.guildID, "error", err)
		return
	}

	speakingSet := false
	var buf []byte

	for {
		select {
		case <-c.done:
			if speakingSet {
				c.setSpeaking(false)
			}
			return
		case frame, ok := <-c.output:
			if !ok {
				return
			}

			if !speakingSet {
				c.setSpeaking(true)
				speakingSet = true
			}

			buf = append(buf, frame.Data...)

			for len(buf) >= audio.FrameBytes {
				opus, eErr := enc.encode(buf[:audio.FrameBytes])
				buf = buf[audio.FrameBytes:]
				if eErr != nil {
					slog.Warn("discord: opus encode error", "guild_id", c.guildID, "error", eErr)
					continue
				}

				select {
				case c.vc.OpusSend <- opus:
				case <-c.done:
					return
				}
			}
		}
	}
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Connection) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Debug("discord: speaking notification error", "speaking", b, "error", err)
	}
}
