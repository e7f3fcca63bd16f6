// Package audio defines the interfaces and types for voice platform connectivity
// within Airwave.
//
// The two primary abstractions are:
//
//   - [Platform]: joins a voice channel in a guild and returns a [Connection].
//   - [Connection]: an active voice session in exactly one guild, exposing a
//     single outbound PCM stream and channel-move support.
//
// Implementations of these interfaces are provided by platform-specific adapter
// packages (e.g., audio/discord). The interfaces are intentionally narrow so the
// playback supervisor stays decoupled from the Discord SDK.
//
// This package lives under pkg/ because external code is expected to implement
// [Platform] and [Connection].
package audio

import (
	"context"
)

// Connection represents an active voice session in a single guild.
//
// A Connection is obtained by calling [Platform.Connect] and remains valid
// until [Connection.Disconnect] is called or the platform reports that the
// voice session was lost.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// GuildID returns the guild this connection belongs to.
	GuildID() string

	// ChannelID returns the voice channel the connection is currently in,
	// including after a member moved the bot.
	ChannelID() string

	// OutputStream returns the write-only channel for outbound audio.
	// Frames must be 48 kHz stereo PCM (little-endian int16) and exactly one
	// 20 ms Opus frame long.
	//
	// Ownership: the channel is owned by the platform. Writers must stop
	// writing once Disconnect has been called; pending frames are dropped.
	OutputStream() chan<- AudioFrame

	// Move switches the connection to another voice channel of the same guild.
	Move(ctx context.Context, channelID string) error

	// Disconnect tears down the voice session. It is safe to call Disconnect
	// more than once; subsequent calls are no-ops and return nil.
	Disconnect() error
}

// Platform is the entry point for a voice provider.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins the voice channel channelID in guild guildID and returns an
	// active [Connection]. ctx bounds the connection attempt only; once
	// connected, the Connection lives until [Connection.Disconnect].
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}
