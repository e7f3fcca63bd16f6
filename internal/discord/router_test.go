package discord

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/airwave/internal/discord/mock"
)

func commandInteraction(name string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{Name: name},
		},
	}
}

func TestCommandRouter_Dispatch(t *testing.T) {
	t.Parallel()

	router := NewCommandRouter()
	var called string
	handler := func(name string) HandlerFunc {
		return func(_ context.Context, _ Responder, _ *discordgo.InteractionCreate) { called = name }
	}
	router.RegisterCommand(&discordgo.ApplicationCommand{Name: "stop"}, handler("stop"))
	router.RegisterCommand(&discordgo.ApplicationCommand{Name: "play"}, handler("play"))
	router.RegisterAutocomplete("play", handler("play-complete"))
	router.RegisterComponent("airwave:stop", handler("button"))

	t.Run("command", func(t *testing.T) {
		router.Handle(t.Context(), &mock.InteractionResponder{}, commandInteraction("play"))
		if called != "play" {
			t.Errorf("called = %q, want play", called)
		}
	})

	t.Run("autocomplete", func(t *testing.T) {
		i := commandInteraction("play")
		i.Type = discordgo.InteractionApplicationCommandAutocomplete
		router.Handle(t.Context(), &mock.InteractionResponder{}, i)
		if called != "play-complete" {
			t.Errorf("called = %q, want play-complete", called)
		}
	})

	t.Run("component", func(t *testing.T) {
		i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionMessageComponent,
			Data: discordgo.MessageComponentInteractionData{CustomID: "airwave:stop"},
		}}
		router.Handle(t.Context(), &mock.InteractionResponder{}, i)
		if called != "button" {
			t.Errorf("called = %q, want button", called)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		resp := &mock.InteractionResponder{}
		router.Handle(t.Context(), resp, commandInteraction("dance"))
		last := resp.LastResponse()
		if last == nil || last.Data.Content != "Unknown command." {
			t.Fatalf("response = %+v, want Unknown command.", last)
		}
		if last.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
			t.Error("unknown command response should be ephemeral")
		}
	})

	t.Run("autocomplete without handler answers empty", func(t *testing.T) {
		resp := &mock.InteractionResponder{}
		i := commandInteraction("stop")
		i.Type = discordgo.InteractionApplicationCommandAutocomplete
		router.Handle(t.Context(), resp, i)
		last := resp.LastResponse()
		if last == nil || last.Type != discordgo.InteractionApplicationCommandAutocompleteResult {
			t.Fatalf("response = %+v, want autocomplete result", last)
		}
		if len(last.Data.Choices) != 0 {
			t.Errorf("choices = %v, want none", last.Data.Choices)
		}
	})
}

func TestCommandRouter_ApplicationCommandsSorted(t *testing.T) {
	t.Parallel()

	router := NewCommandRouter()
	noop := func(context.Context, Responder, *discordgo.InteractionCreate) {}
	for _, name := range []string{"stop", "leave", "play"} {
		router.RegisterCommand(&discordgo.ApplicationCommand{Name: name}, noop)
	}

	cmds := router.ApplicationCommands()
	var names []string
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	want := []string{"leave", "play", "stop"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestInteractionUserID(t *testing.T) {
	t.Parallel()

	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "member-1"}},
	}}
	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "user-1"},
	}}
	if got := InteractionUserID(guild); got != "member-1" {
		t.Errorf("guild interaction = %q, want member-1", got)
	}
	if got := InteractionUserID(dm); got != "user-1" {
		t.Errorf("dm interaction = %q, want user-1", got)
	}
	if got := InteractionUserID(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}); got != "" {
		t.Errorf("empty interaction = %q, want empty", got)
	}
}
