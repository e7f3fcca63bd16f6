package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/airwave/internal/radio"
)

// StopButtonID is the custom_id of the stop button on now-playing messages.
const StopButtonID = "airwave:stop"

// embedColorGreen is the sidebar color of a now-playing embed.
const embedColorGreen = 0x2ECC71

// MessageSession is the subset of *discordgo.Session used for channel
// messages.
type MessageSession interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// NowPlayingMessenger renders now-playing embeds into text channels. It
// implements radio.Messenger.
type NowPlayingMessenger struct {
	session MessageSession
	footer  string
	now     func() time.Time
}

var _ radio.Messenger = (*NowPlayingMessenger)(nil)

// NewNowPlayingMessenger returns a messenger posting through session. footer
// is shown under every embed, e.g. "Airwave Radio".
func NewNowPlayingMessenger(session MessageSession, footer string) *NowPlayingMessenger {
	return &NowPlayingMessenger{session: session, footer: footer, now: time.Now}
}

// SendNowPlaying posts a new now-playing message with a stop button.
func (m *NowPlayingMessenger) SendNowPlaying(ctx context.Context, np radio.NowPlaying) (string, error) {
	msg, err := m.session.ChannelMessageSendComplex(np.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{m.embed(np)},
		Components: stopControls(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: send now playing to %s: %w", np.ChannelID, translate(err))
	}
	return msg.ID, nil
}

// EditNowPlaying replaces the embed of an existing message.
func (m *NowPlayingMessenger) EditNowPlaying(ctx context.Context, channelID, messageID string, np radio.NowPlaying) error {
	edit := discordgo.NewMessageEdit(channelID, messageID).SetEmbed(m.embed(np))
	if _, err := m.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: edit now playing %s: %w", messageID, translate(err))
	}
	return nil
}

// DeleteMessage removes a message.
func (m *NowPlayingMessenger) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := m.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: delete message %s: %w", messageID, translate(err))
	}
	return nil
}

func (m *NowPlayingMessenger) embed(np radio.NowPlaying) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Stream", Value: fmt.Sprintf("`%s`", np.StreamName)},
	}
	if np.Title != nil && *np.Title != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Current Track",
			Value: "```" + strings.ReplaceAll(*np.Title, "`", "'") + "```",
		})
	}
	requester := "Unknown"
	if np.RequesterID != "" {
		requester = "<@" + np.RequesterID + ">"
	}
	fields = append(fields,
		&discordgo.MessageEmbedField{Name: "Requested By", Value: requester},
		&discordgo.MessageEmbedField{Name: "Playback Position", Value: "🔵 **LIVE**"},
	)

	embed := &discordgo.MessageEmbed{
		Title:     "▶️ Now Playing",
		Color:     embedColorGreen,
		Fields:    fields,
		Timestamp: m.now().UTC().Format(time.RFC3339),
	}
	if m.footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: m.footer}
	}
	return embed
}

func stopControls() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "⏹️ Stop",
					Style:    discordgo.DangerButton,
					CustomID: StopButtonID,
				},
			},
		},
	}
}

// translate maps Discord's "unknown message" failures to
// radio.ErrMessageNotFound and keeps everything else as is.
func translate(err error) error {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		if rest.Message.Code == discordgo.ErrCodeUnknownMessage {
			return radio.ErrMessageNotFound
		}
		return err
	}
	if rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return radio.ErrMessageNotFound
	}
	return err
}
