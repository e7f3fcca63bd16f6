package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func newTestState(t *testing.T) *discordgo.State {
	t.Helper()
	st := discordgo.NewState()
	guild := &discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", UserID: "listener", ChannelID: "voice-1"},
		},
	}
	if err := st.GuildAdd(guild); err != nil {
		t.Fatalf("GuildAdd: %v", err)
	}
	if err := st.GuildAdd(&discordgo.Guild{ID: "g2"}); err != nil {
		t.Fatalf("GuildAdd: %v", err)
	}
	for _, ch := range []*discordgo.Channel{
		{ID: "voice-1", GuildID: "g1", Name: "Lounge", Type: discordgo.ChannelTypeGuildVoice},
		{ID: "stage-1", GuildID: "g1", Name: "Stage", Type: discordgo.ChannelTypeGuildStageVoice},
		{ID: "text-1", GuildID: "g1", Name: "general", Type: discordgo.ChannelTypeGuildText},
		{ID: "voice-2", GuildID: "g2", Name: "Elsewhere", Type: discordgo.ChannelTypeGuildVoice},
	} {
		if err := st.ChannelAdd(ch); err != nil {
			t.Fatalf("ChannelAdd(%s): %v", ch.ID, err)
		}
	}
	return st
}

func TestChannelLocator_VoiceChannel(t *testing.T) {
	t.Parallel()

	loc := NewChannelLocator(newTestState(t))

	tests := []struct {
		name      string
		channelID string
		want      string
		wantErr   bool
	}{
		{name: "voice channel", channelID: "voice-1", want: "Lounge"},
		{name: "stage channel", channelID: "stage-1", want: "Stage"},
		{name: "text channel", channelID: "text-1", wantErr: true},
		{name: "other guild", channelID: "voice-2", wantErr: true},
		{name: "deleted channel", channelID: "gone", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := loc.VoiceChannel("g1", tt.channelID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("name = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChannelLocator_UserVoiceChannel(t *testing.T) {
	t.Parallel()

	loc := NewChannelLocator(newTestState(t))

	if got := loc.UserVoiceChannel("g1", "listener"); got != "voice-1" {
		t.Errorf("listener = %q, want voice-1", got)
	}
	if got := loc.UserVoiceChannel("g1", "stranger"); got != "" {
		t.Errorf("stranger = %q, want empty", got)
	}
	if got := loc.UserVoiceChannel("missing", "listener"); got != "" {
		t.Errorf("unknown guild = %q, want empty", got)
	}
}
