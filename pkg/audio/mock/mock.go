// Package mock provides in-memory mock implementations of the [audio.Platform]
// and [audio.Connection] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	platform := &mock.Platform{}
//	conn, err := platform.Connect(ctx, "guild-1", "voice-42")
//	// platform.Connections()[0] is the *mock.Connection that was handed out.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/airwave/pkg/audio"
)

// ─── Connection ───────────────────────────────────────────────────────────────

// Connection is a mock implementation of [audio.Connection].
// Set the exported fields before use; inspect the Call* fields after.
type Connection struct {
	mu sync.Mutex

	// Guild and Channel are returned by GuildID and ChannelID. Move updates
	// Channel on success.
	Guild   string
	Channel string

	// Output is returned by [Connection.OutputStream]. A buffered channel is
	// created lazily when nil.
	Output chan audio.AudioFrame

	// MoveError is returned by [Connection.Move].
	MoveError error

	// DisconnectError is returned by [Connection.Disconnect].
	DisconnectError error

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int

	// MoveCalls records the channel IDs passed to Move, in order.
	MoveCalls []string
}

// GuildID implements [audio.Connection].
func (c *Connection) GuildID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Guild
}

// ChannelID implements [audio.Connection].
func (c *Connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Channel
}

// OutputStream implements [audio.Connection].
func (c *Connection) OutputStream() chan<- audio.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Output == nil {
		c.Output = make(chan audio.AudioFrame, 256)
	}
	return c.Output
}

// Move implements [audio.Connection].
func (c *Connection) Move(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MoveCalls = append(c.MoveCalls, channelID)
	if c.MoveError != nil {
		return c.MoveError
	}
	c.Channel = channelID
	return nil
}

// SetChannel changes Channel without recording a Move, as when a member
// drags the bot to another channel.
func (c *Connection) SetChannel(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Channel = channelID
}

// Moves returns the channel IDs passed to Move, in order.
func (c *Connection) Moves() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.MoveCalls...)
}

// Disconnect implements [audio.Connection].
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountDisconnect++
	return c.DisconnectError
}

// Disconnects returns how many times Disconnect was called.
func (c *Connection) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCountDisconnect
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// ConnectCall records the arguments of a single [Platform.Connect] invocation.
type ConnectCall struct {
	GuildID   string
	ChannelID string
}

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectFunc, when set, fully replaces the default behaviour.
	ConnectFunc func(ctx context.Context, guildID, channelID string) (audio.Connection, error)

	// ConnectError is returned by Connect when ConnectFunc is nil.
	ConnectError error

	// ConnectCalls records the arguments of every Connect call.
	ConnectCalls []ConnectCall

	conns []*Connection
}

// Connect implements [audio.Platform]. Without ConnectFunc it returns a fresh
// [*Connection] for the requested channel, or ConnectError when set.
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{GuildID: guildID, ChannelID: channelID})
	fn := p.ConnectFunc
	err := p.ConnectError
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, guildID, channelID)
	}
	if err != nil {
		return nil, err
	}
	conn := &Connection{Guild: guildID, Channel: channelID}
	p.mu.Lock()
	p.conns = append(p.conns, conn)
	p.mu.Unlock()
	return conn, nil
}

// SetConnectError changes ConnectError under the lock.
func (p *Platform) SetConnectError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectError = err
}

// CallCountConnect returns the number of Connect calls.
func (p *Platform) CallCountConnect() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ConnectCalls)
}

// Connections returns the connections handed out by the default behaviour.
func (p *Platform) Connections() []*Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Connection, len(p.conns))
	copy(out, p.conns)
	return out
}

var (
	_ audio.Connection = (*Connection)(nil)
	_ audio.Platform   = (*Platform)(nil)
)
