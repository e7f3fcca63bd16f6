// Package commands implements the Airwave slash commands and the stop button
// on now-playing messages.
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/airwave/internal/discord"
	"github.com/MrWong99/airwave/internal/radio"
	"github.com/MrWong99/airwave/internal/stations"
)

// Discord limits.
const (
	maxChoices        = 25
	maxChoiceLength   = 100
	maxEmbedDescLimit = 4096
)

const (
	msgGuildOnly = "This command only works in a server."
	msgNotDJ     = "You need the DJ role to control playback."
	msgRefreshed = "Now-playing message refreshed."
)

// Player is the playback control surface. *radio.Service implements it.
type Player interface {
	Play(ctx context.Context, r radio.Resolver, intent radio.PlayIntent) (string, error)
	Stop(ctx context.Context, guildID string) string
	Leave(ctx context.Context, guildID string) string
	NowPlaying(ctx context.Context, guildID string) string
}

// VoiceLookup finds the voice channel a member is connected to.
type VoiceLookup interface {
	UserVoiceChannel(guildID, userID string) string
}

// RadioCommands holds the dependencies for the playback commands.
type RadioCommands struct {
	player  Player
	catalog *stations.Catalog
	perms   *discord.PermissionChecker
	voice   VoiceLookup
}

// NewRadioCommands creates a RadioCommands.
func NewRadioCommands(player Player, catalog *stations.Catalog, perms *discord.PermissionChecker, voice VoiceLookup) *RadioCommands {
	return &RadioCommands{
		player:  player,
		catalog: catalog,
		perms:   perms,
		voice:   voice,
	}
}

// Register registers every command, the /play autocomplete and the stop
// button with router.
func (rc *RadioCommands) Register(router *discord.CommandRouter) {
	defs := rc.Definitions()
	handlers := map[string]discord.HandlerFunc{
		"play":     rc.handlePlay,
		"stop":     rc.handleStop,
		"leave":    rc.handleLeave,
		"now":      rc.handleNow,
		"stations": rc.handleStations,
	}
	for _, def := range defs {
		router.RegisterCommand(def, handlers[def.Name])
	}
	router.RegisterAutocomplete("play", rc.autocompletePlay)
	router.RegisterComponent(discord.StopButtonID, rc.handleStopButton)
}

// Definitions returns the ApplicationCommand definitions for Discord.
func (rc *RadioCommands) Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a station or stream URL in your voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "station",
					Description:  "Station name or http(s) stream URL",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		{Name: "stop", Description: "Stop playback and stay in the voice channel"},
		{Name: "leave", Description: "Stop playback and leave the voice channel"},
		{Name: "now", Description: "Show the now-playing message again"},
		{Name: "stations", Description: "List the predefined stations"},
	}
}

func (rc *RadioCommands) handlePlay(ctx context.Context, r discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.allowed(r, i) {
		return
	}

	userID := discord.InteractionUserID(i)
	intent := radio.PlayIntent{
		GuildID:        i.GuildID,
		VoiceChannelID: rc.voice.UserVoiceChannel(i.GuildID, userID),
		TextChannelID:  i.ChannelID,
		Input:          optionString(i.ApplicationCommandData().Options, "station"),
		RequesterID:    userID,
	}
	if intent.VoiceChannelID == "" {
		text, _ := rc.player.Play(ctx, rc.catalog, intent)
		discord.RespondEphemeral(r, i, text)
		return
	}

	// Joining voice and starting the decoder can exceed the 3 second
	// interaction deadline.
	discord.DeferReply(r, i, false)
	text, err := rc.player.Play(ctx, rc.catalog, intent)
	discord.FollowUp(r, i, text, err != nil)
}

func (rc *RadioCommands) handleStop(ctx context.Context, r discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.allowed(r, i) {
		return
	}
	discord.RespondPublic(r, i, rc.player.Stop(ctx, i.GuildID))
}

func (rc *RadioCommands) handleStopButton(ctx context.Context, r discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.allowed(r, i) {
		return
	}
	discord.RespondEphemeral(r, i, rc.player.Stop(ctx, i.GuildID))
}

func (rc *RadioCommands) handleLeave(ctx context.Context, r discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.allowed(r, i) {
		return
	}
	discord.RespondPublic(r, i, rc.player.Leave(ctx, i.GuildID))
}

func (rc *RadioCommands) handleNow(ctx context.Context, r discord.Responder, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		discord.RespondEphemeral(r, i, msgGuildOnly)
		return
	}
	text := rc.player.NowPlaying(ctx, i.GuildID)
	if text == "" {
		text = msgRefreshed
	}
	discord.RespondEphemeral(r, i, text)
}

func (rc *RadioCommands) handleStations(_ context.Context, r discord.Responder, i *discordgo.InteractionCreate) {
	list := rc.catalog.List()
	if len(list) == 0 {
		discord.RespondEphemeral(r, i, "No stations are configured. Use `/play <url>` to play a stream directly.")
		return
	}
	discord.RespondEmbed(r, i, stationsEmbed(list))
}

func (rc *RadioCommands) autocompletePlay(_ context.Context, r discord.Responder, i *discordgo.InteractionCreate) {
	prefix := optionString(i.ApplicationCommandData().Options, "station")
	matches := rc.catalog.Complete(prefix, maxChoices)

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(matches))
	for _, s := range matches {
		if len(s.Name) > maxChoiceLength {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: s.Name, Value: s.Name})
	}
	discord.RespondChoices(r, i, choices)
}

// allowed rejects interactions outside a guild or from non-DJs and answers
// them.
func (rc *RadioCommands) allowed(r discord.Responder, i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" {
		discord.RespondEphemeral(r, i, msgGuildOnly)
		return false
	}
	if !rc.perms.IsDJ(i) {
		discord.RespondEphemeral(r, i, msgNotDJ)
		return false
	}
	return true
}

func stationsEmbed(list []stations.Station) *discordgo.MessageEmbed {
	var b strings.Builder
	shown := 0
	for _, s := range list {
		line := fmt.Sprintf("**%s**", s.Name)
		if s.Description != "" {
			line += " - " + s.Description
		}
		line += "\n"
		if b.Len()+len(line) > maxEmbedDescLimit-64 {
			break
		}
		b.WriteString(line)
		shown++
	}
	embed := &discordgo.MessageEmbed{
		Title:       "📻 Stations",
		Description: b.String(),
		Color:       0x3498DB,
	}
	if shown < len(list) {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Showing %d of %d stations", shown, len(list))}
	}
	return embed
}

// optionString returns the string value of the named option, or "".
func optionString(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionString {
			return o.StringValue()
		}
	}
	return ""
}
