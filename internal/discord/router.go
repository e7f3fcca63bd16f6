package discord

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc handles a slash command, autocomplete request or button press.
// ctx lives as long as the bot.
type HandlerFunc func(ctx context.Context, r Responder, i *discordgo.InteractionCreate)

type commandEntry struct {
	command *discordgo.ApplicationCommand
	handler HandlerFunc
}

// CommandRouter dispatches Discord interactions to registered handlers.
type CommandRouter struct {
	mu           sync.RWMutex
	commands     map[string]commandEntry // command name → entry
	autocomplete map[string]HandlerFunc  // command name → handler
	components   map[string]HandlerFunc  // custom_id → handler
}

// NewCommandRouter creates an empty router.
func NewCommandRouter() *CommandRouter {
	return &CommandRouter{
		commands:     make(map[string]commandEntry),
		autocomplete: make(map[string]HandlerFunc),
		components:   make(map[string]HandlerFunc),
	}
}

// RegisterCommand registers cmd and its handler under cmd.Name.
func (r *CommandRouter) RegisterCommand(cmd *discordgo.ApplicationCommand, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd.Name] = commandEntry{command: cmd, handler: handler}
}

// RegisterAutocomplete registers an autocomplete handler for a command.
func (r *CommandRouter) RegisterAutocomplete(name string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autocomplete[name] = handler
}

// RegisterComponent registers a handler for a button custom_id.
func (r *CommandRouter) RegisterComponent(customID string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[customID] = handler
}

// ApplicationCommands returns the command definitions sorted by name, ready
// for bulk registration.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]*discordgo.ApplicationCommand, 0, len(r.commands))
	for _, entry := range r.commands {
		cmds = append(cmds, entry.command)
	}
	slices.SortFunc(cmds, func(a, b *discordgo.ApplicationCommand) int {
		return strings.Compare(a.Name, b.Name)
	})
	return cmds
}

// Handle dispatches an interaction to the appropriate handler.
func (r *CommandRouter) Handle(ctx context.Context, resp Responder, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		r.mu.RLock()
		entry, ok := r.commands[name]
		r.mu.RUnlock()
		if !ok {
			slog.Warn("discord: unknown command", "name", name)
			RespondEphemeral(resp, i, "Unknown command.")
			return
		}
		entry.handler(ctx, resp, i)

	case discordgo.InteractionApplicationCommandAutocomplete:
		name := i.ApplicationCommandData().Name
		r.mu.RLock()
		handler, ok := r.autocomplete[name]
		r.mu.RUnlock()
		if !ok {
			slog.Debug("discord: no autocomplete handler", "name", name)
			RespondChoices(resp, i, nil)
			return
		}
		handler(ctx, resp, i)

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		r.mu.RLock()
		handler, ok := r.components[customID]
		r.mu.RUnlock()
		if !ok {
			slog.Warn("discord: unknown component", "custom_id", customID)
			RespondEphemeral(resp, i, "Unknown component.")
			return
		}
		handler(ctx, resp, i)

	default:
		slog.Warn("discord: unhandled interaction type", "type", i.Type)
	}
}

// InteractionUserID extracts the user ID from an interaction, handling both
// guild (Member) and DM (User) contexts.
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
