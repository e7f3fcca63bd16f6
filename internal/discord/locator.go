package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/airwave/internal/radio"
)

// ChannelLocator answers channel questions from the gateway state cache.
type ChannelLocator struct {
	state *discordgo.State
}

var _ radio.Locator = (*ChannelLocator)(nil)

// NewChannelLocator returns a locator reading from state.
func NewChannelLocator(state *discordgo.State) *ChannelLocator {
	return &ChannelLocator{state: state}
}

// VoiceChannel returns the name of channelID if it is a voice or stage
// channel of guildID.
func (l *ChannelLocator) VoiceChannel(guildID, channelID string) (string, error) {
	ch, err := l.state.Channel(channelID)
	if err != nil {
		return "", fmt.Errorf("discord: lookup channel %s: %w", channelID, err)
	}
	if ch.GuildID != guildID {
		return "", fmt.Errorf("discord: channel %s is not part of guild %s", channelID, guildID)
	}
	switch ch.Type {
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return ch.Name, nil
	default:
		return "", fmt.Errorf("discord: channel %s is not a voice channel", channelID)
	}
}

// UserVoiceChannel returns the voice channel userID is connected to in
// guildID, or "" when the user is not in voice.
func (l *ChannelLocator) UserVoiceChannel(guildID, userID string) string {
	vs, err := l.state.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}
