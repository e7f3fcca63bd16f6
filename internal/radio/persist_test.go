package radio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrWong99/airwave/internal/resume"
	"github.com/MrWong99/airwave/pkg/audio"
	audiomock "github.com/MrWong99/airwave/pkg/audio/mock"
)

func TestSnapshot_OnlyResumableGuilds(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.play(t, "playing", "voice-1", streamA)
	h.play(t, "stopped", "voice-1", streamA)
	h.svc.Stop(context.Background(), "stopped")

	snap := h.svc.snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot = %v, want only the playing guild", snap)
	}
	want := resume.Entry{
		VoiceChannelID: "voice-1",
		TextChannelID:  "text-1",
		StreamURL:      streamA,
		StreamName:     "Test FM",
		RequesterID:    "user-1",
	}
	if got := snap["playing"]; got != want {
		t.Errorf("entry = %+v, want %+v", got, want)
	}
}

func TestLoad_HydratesResumingState(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) {
		c.Store = resume.NewMemoryStore(map[string]resume.Entry{
			"g1":  {VoiceChannelID: "voice-1", TextChannelID: "text-1", StreamURL: streamA, StreamName: "Test FM"},
			"bad": {TextChannelID: "text-1"},
		})
	})

	n, err := h.svc.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 1 {
		t.Errorf("hydrated = %d, want 1", n)
	}
	st := h.state(t, "g1")
	if !st.ShouldPlay() || !st.Resuming || st.RetryCount != 0 || st.Connected || st.Title != nil {
		t.Errorf("state = %+v", st)
	}
	if _, ok := h.svc.State("bad"); ok {
		t.Error("incomplete entry was hydrated")
	}
}

func TestResumeAll_OneLaunchPerGuild(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) {
		c.Store = resume.NewMemoryStore(map[string]resume.Entry{
			"g1": {VoiceChannelID: "voice-1", TextChannelID: "text-1", StreamURL: streamA, StreamName: "Test FM"},
		})
	})

	var mu sync.Mutex
	var calls []audiomock.ConnectCall
	h.platform.ConnectFunc = func(_ context.Context, guildID, channelID string) (audio.Connection, error) {
		mu.Lock()
		calls = append(calls, audiomock.ConnectCall{GuildID: guildID, ChannelID: channelID})
		mu.Unlock()
		return &audiomock.Connection{Guild: guildID, Channel: channelID}, nil
	}

	if _, err := h.svc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	h.svc.ResumeAll(context.Background())
	h.svc.ResumeAll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0] != (audiomock.ConnectCall{GuildID: "g1", ChannelID: "voice-1"}) {
		t.Errorf("connect calls = %+v, want one for g1/voice-1", calls)
	}
	st := h.state(t, "g1")
	if st.Resuming {
		t.Error("Resuming still true after the launch")
	}
	if st.Phase != PhasePlaying {
		t.Errorf("Phase = %v, want playing", st.Phase)
	}
}

func TestResumeAll_StopWhileResumingWins(t *testing.T) {
	t.Parallel()
	loc := newGatedLocator(t)
	loc.armed.Store(true)
	h := newHarness(t, func(c *Config) {
		c.Locator = loc
		c.Store = resume.NewMemoryStore(map[string]resume.Entry{
			"g1": {VoiceChannelID: "voice-1", TextChannelID: "text-1", StreamURL: streamA, StreamName: "Test FM"},
		})
	})
	if _, err := h.svc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	resumed := make(chan struct{})
	go func() {
		defer close(resumed)
		h.svc.ResumeAll(context.Background())
	}()
	loc.waitEntered(t)

	stopped := make(chan string, 1)
	go func() { stopped <- h.svc.Stop(context.Background(), "g1") }()
	waitFor(t, "stop applied", func() bool {
		return h.state(t, "g1").Phase == PhaseStopped
	})
	loc.release()
	<-resumed
	<-stopped

	st := h.state(t, "g1")
	if st.ShouldPlay() || st.Resuming {
		t.Errorf("state = %+v, want stopped", st)
	}
	if got := h.platform.CallCountConnect(); got != 0 {
		t.Errorf("Connect calls = %d, want 0", got)
	}
	if got := len(h.pipeline.Starts()); got != 0 {
		t.Errorf("pipeline starts = %d, want 0", got)
	}
}

func TestResumeAll_FailureClearsResuming(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) {
		c.Store = resume.NewMemoryStore(map[string]resume.Entry{
			"g1": {VoiceChannelID: "voice-1", StreamURL: streamA},
			"g2": {VoiceChannelID: "voice-gone", StreamURL: streamA},
		})
	})
	h.pipeline.SetStartError(errors.New("ffmpeg exploded"))

	if _, err := h.svc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	h.svc.ResumeAll(context.Background())

	for _, id := range []string{"g1", "g2"} {
		st := h.state(t, id)
		if st.Resuming || st.ShouldPlay() {
			t.Errorf("%s: state = %+v", id, st)
		}
	}
	if got := len(h.pipeline.Starts()); got != 1 {
		t.Errorf("pipeline starts = %d, want 1 (no retries after resume failure)", got)
	}
}

func TestSave_PersistenceErrorIsNotFatal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.store.SetSaveErr(errors.New("disk full"))

	h.play(t, "g1", "voice-1", streamA)
	if st := h.state(t, "g1"); st.Phase != PhasePlaying {
		t.Errorf("Phase = %v, want playing", st.Phase)
	}

	err := h.svc.saveNow(context.Background())
	var pErr *PersistenceError
	if !errors.As(err, &pErr) || pErr.Op != "save" {
		t.Errorf("saveNow = %v, want *PersistenceError(save)", err)
	}
}

func TestClose_KeepsIntentForResume(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.play(t, "g1", "voice-1", streamA)

	if err := h.svc.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	saved, _ := h.store.Load(context.Background())
	if _, ok := saved["g1"]; !ok {
		t.Fatalf("saved = %v, want g1 kept for resume", saved)
	}
	if got := h.platform.Connections()[0].Disconnects(); got != 1 {
		t.Errorf("Disconnect calls = %d, want 1", got)
	}
	if got := h.pipeline.Last().StopCalls(); got != 1 {
		t.Errorf("pipeline Stop calls = %d, want 1", got)
	}

	// The pipeline stop must not be mistaken for a user stop.
	saved, _ = h.store.Load(context.Background())
	if _, ok := saved["g1"]; !ok {
		t.Error("resume entry removed after Close")
	}
}
