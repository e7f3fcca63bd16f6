// Package discord provides the Discord bot layer for Airwave. It owns the
// discordgo.Session lifecycle, routes interactions to registered handlers,
// forwards the bot's own voice and gateway events to the playback service
// and renders now-playing messages.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/airwave/pkg/audio"
	discordaudio "github.com/MrWong99/airwave/pkg/audio/discord"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token without the "Bot " prefix.
	Token string

	// GuildID registers commands in one guild only. Empty registers them
	// globally.
	GuildID string

	// DJRoleID restricts playback control. See [PermissionChecker.IsDJ].
	DJRoleID string

	// Bitrate is the Opus bitrate for voice connections. Zero keeps the
	// adapter default.
	Bitrate int
}

// VoiceEvents receives the gateway events that matter for playback.
// *radio.Service implements it.
type VoiceEvents interface {
	HandleVoiceDisconnect(ctx context.Context, guildID string)
	HandleVoiceMove(ctx context.Context, guildID, channelID string)
	HandleGatewayReconnect(ctx context.Context)
}

// Bot owns the Discord gateway connection and routes interactions
// to registered command handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	platform  *discordaudio.Platform
	router    *CommandRouter
	perms     *PermissionChecker
	locator   *ChannelLocator
	messenger *NowPlayingMessenger
	guildID   string
	commands  []*discordgo.ApplicationCommand
	events    VoiceEvents

	// ctx is handed to handlers and lives until Close.
	ctx    context.Context
	cancel context.CancelFunc

	readies atomic.Int64

	// pending holds guilds announced by the first Ready whose GUILD_CREATE
	// has not arrived yet. guildsReady is closed once it drains.
	pendingMu   sync.Mutex
	pending     map[string]struct{}
	guildsReady chan struct{}
	guildsOnce  sync.Once

	closeOnce sync.Once
}

// New creates a Bot, registers its gateway handlers and connects to Discord.
func New(_ context.Context, cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		session:     session,
		platform:    discordaudio.New(session, discordaudio.WithBitrate(cfg.Bitrate)),
		router:      NewCommandRouter(),
		perms:       NewPermissionChecker(cfg.DJRoleID),
		locator:     NewChannelLocator(session.State),
		messenger:   NewNowPlayingMessenger(session, ""),
		guildID:     cfg.GuildID,
		ctx:         ctx,
		cancel:      cancel,
		guildsReady: make(chan struct{}),
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(b.ctx, s, i)
	})
	session.AddHandler(func(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		b.onVoiceStateUpdate(selfID(s), v)
	})
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.onReady(s.State, r)
	})
	session.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		if g.Guild != nil {
			b.guildAvailable(g.ID)
		}
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		b.onResumed()
	})

	if err := session.Open(); err != nil {
		cancel()
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	if u := session.State.User; u != nil {
		b.messenger.footer = u.Username + " Radio"
	}
	return b, nil
}

func selfID(s *discordgo.Session) string {
	if s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}

// SetVoiceEvents installs the receiver of voice and reconnect events. Events
// arriving earlier are dropped.
func (b *Bot) SetVoiceEvents(ev VoiceEvents) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = ev
}

func (b *Bot) voiceEvents() VoiceEvents {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.events
}

// onVoiceStateUpdate forwards changes of the bot's own voice state.
func (b *Bot) onVoiceStateUpdate(self string, v *discordgo.VoiceStateUpdate) {
	if v == nil || v.VoiceState == nil || self == "" || v.UserID != self {
		return
	}
	ev := b.voiceEvents()
	if ev == nil {
		return
	}
	if v.ChannelID == "" {
		slog.Info("discord: bot left voice", "guild_id", v.GuildID)
		ev.HandleVoiceDisconnect(b.ctx, v.GuildID)
		return
	}
	if v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID == v.ChannelID {
		return
	}
	ev.HandleVoiceMove(b.ctx, v.GuildID, v.ChannelID)
}

// onReady tracks the guilds of the first Ready and runs the post-reconnect
// check on every later one.
func (b *Bot) onReady(st *discordgo.State, r *discordgo.Ready) {
	n := b.readies.Add(1)
	if n == 1 {
		b.trackGuilds(st, r)
		slog.Info("discord: gateway ready", "guilds", len(r.Guilds))
		return
	}
	slog.Info("discord: gateway ready again", "count", n)
	if ev := b.voiceEvents(); ev != nil {
		ev.HandleGatewayReconnect(b.ctx)
	}
}

func (b *Bot) trackGuilds(st *discordgo.State, r *discordgo.Ready) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.pending = make(map[string]struct{}, len(r.Guilds))
	for _, g := range r.Guilds {
		// The state may already hold the full guild if its GUILD_CREATE
		// handler ran first.
		if st != nil {
			if known, err := st.Guild(g.ID); err == nil && !known.Unavailable {
				continue
			}
		}
		b.pending[g.ID] = struct{}{}
	}
	if len(b.pending) == 0 {
		b.guildsOnce.Do(func() { close(b.guildsReady) })
	}
}

func (b *Bot) guildAvailable(guildID string) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if b.pending == nil {
		return
	}
	delete(b.pending, guildID)
	if len(b.pending) == 0 {
		b.guildsOnce.Do(func() { close(b.guildsReady) })
	}
}

// WaitGuilds blocks until every guild announced at login is available in the
// state cache, so channel lookups during resume see real data.
func (b *Bot) WaitGuilds(ctx context.Context) error {
	select {
	case <-b.guildsReady:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("discord: waiting for guilds: %w", ctx.Err())
	}
}

func (b *Bot) onResumed() {
	slog.Info("discord: gateway session resumed")
	if ev := b.voiceEvents(); ev != nil {
		ev.HandleGatewayReconnect(b.ctx)
	}
}

// Platform returns the audio.Platform for voice channel connections.
func (b *Bot) Platform() audio.Platform {
	return b.platform
}

// GuildID returns the command registration guild, empty for global.
func (b *Bot) GuildID() string {
	return b.guildID
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Permissions returns the permission checker.
func (b *Bot) Permissions() *PermissionChecker {
	return b.perms
}

// Locator returns the channel locator backed by the gateway state.
func (b *Bot) Locator() *ChannelLocator {
	return b.locator
}

// Messenger returns the now-playing message renderer.
func (b *Bot) Messenger() *NowPlayingMessenger {
	return b.messenger
}

// CheckGateway reports whether the gateway connection is up. It is meant
// for readiness probes.
func (b *Bot) CheckGateway(_ context.Context) error {
	b.mu.RLock()
	s := b.session
	b.mu.RUnlock()
	if s == nil {
		return errors.New("discord: no session")
	}
	s.RLock()
	ready := s.DataReady
	s.RUnlock()
	if !ready {
		return errors.New("discord: gateway not ready")
	}
	return nil
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord: commands registered", "count", len(registered), "guild_id", b.guildID)
	}

	<-ctx.Done()
	return nil
}

// Close disconnects from Discord. Guild-scoped commands are removed; global
// commands stay registered because Discord propagates them slowly.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.cancel()

		b.mu.Lock()
		defer b.mu.Unlock()

		if b.guildID != "" && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord: bot closed")
	})
	return closeErr
}
