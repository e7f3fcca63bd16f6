package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/airwave/internal/resume"
	audiomock "github.com/MrWong99/airwave/pkg/audio/mock"
	streammock "github.com/MrWong99/airwave/pkg/stream/mock"
)

// ─── fakes ────────────────────────────────────────────────────────────────────

type sentMessage struct {
	ID string
	NP NowPlaying
}

// fakeMessenger records now-playing operations and keeps the set of live
// messages.
type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	live    map[string]NowPlaying
	sends   []sentMessage
	edits   []sentMessage
	deletes []string

	editErr error
	sendErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{live: make(map[string]NowPlaying)}
}

func (m *fakeMessenger) SendNowPlaying(_ context.Context, np NowPlaying) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.nextID++
	id := fmt.Sprintf("msg-%d", m.nextID)
	m.live[id] = np
	m.sends = append(m.sends, sentMessage{ID: id, NP: np})
	return id, nil
}

func (m *fakeMessenger) EditNowPlaying(_ context.Context, _, messageID string, np NowPlaying) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, sentMessage{ID: messageID, NP: np})
	if m.editErr != nil {
		return m.editErr
	}
	if _, ok := m.live[messageID]; !ok {
		return ErrMessageNotFound
	}
	m.live[messageID] = np
	return nil
}

func (m *fakeMessenger) DeleteMessage(_ context.Context, _, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, messageID)
	if _, ok := m.live[messageID]; !ok {
		return ErrMessageNotFound
	}
	delete(m.live, messageID)
	return nil
}

func (m *fakeMessenger) Sends() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sends...)
}

func (m *fakeMessenger) Edits() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.edits...)
}

func (m *fakeMessenger) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

func (m *fakeMessenger) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Forget drops a message as if a moderator deleted it.
func (m *fakeMessenger) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, id)
}

// fakeTitles returns scripted ICY results per URL.
type fakeTitles struct {
	mu    sync.Mutex
	fn    map[string]func(ctx context.Context) (string, bool, error)
	calls map[string]int
}

func newFakeTitles() *fakeTitles {
	return &fakeTitles{
		fn:    make(map[string]func(context.Context) (string, bool, error)),
		calls: make(map[string]int),
	}
}

func (f *fakeTitles) Set(url string, fn func(ctx context.Context) (string, bool, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn[url] = fn
}

func (f *fakeTitles) FetchTitle(ctx context.Context, url string) (string, bool, error) {
	f.mu.Lock()
	fn := f.fn[url]
	f.calls[url]++
	f.mu.Unlock()
	if fn == nil {
		return "", false, nil
	}
	return fn(ctx)
}

func (f *fakeTitles) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func titleIs(t string) func(context.Context) (string, bool, error) {
	return func(context.Context) (string, bool, error) { return t, true, nil }
}

// fakeLocator knows a fixed set of voice channels.
type fakeLocator map[string]string

func (l fakeLocator) VoiceChannel(_, channelID string) (string, error) {
	name, ok := l[channelID]
	if !ok {
		return "", errors.New("unknown channel")
	}
	return name, nil
}

// gatedLocator accepts every channel. Once armed, lookups block until
// release is called.
type gatedLocator struct {
	armed   atomic.Bool
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newGatedLocator(t *testing.T) *gatedLocator {
	l := &gatedLocator{
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	t.Cleanup(l.release)
	return l
}

func (l *gatedLocator) VoiceChannel(_, _ string) (string, error) {
	if l.armed.Load() {
		select {
		case l.entered <- struct{}{}:
		default:
		}
		<-l.gate
	}
	return "Lounge", nil
}

func (l *gatedLocator) release() { l.once.Do(func() { close(l.gate) }) }

// waitEntered blocks until a lookup is held at the gate.
func (l *gatedLocator) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-l.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("no channel lookup reached the gate")
	}
}

// ─── harness ──────────────────────────────────────────────────────────────────

type harness struct {
	svc       *Service
	platform  *audiomock.Platform
	pipeline  *streammock.Pipeline
	store     *resume.MemoryStore
	messenger *fakeMessenger
	titles    *fakeTitles
}

// newHarness builds a running Service with fast retries. mutate may adjust
// the config before construction.
func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		platform:  &audiomock.Platform{},
		pipeline:  &streammock.Pipeline{},
		store:     resume.NewMemoryStore(nil),
		messenger: newFakeMessenger(),
		titles:    newFakeTitles(),
	}
	cfg := Config{
		Platform:     h.platform,
		Pipeline:     h.pipeline,
		Locator:      fakeLocator{"voice-1": "Lounge", "voice-2": "Stage"},
		Store:        h.store,
		Messenger:    h.messenger,
		Titles:       h.titles,
		MaxRetries:   3,
		RetryDelay:   10 * time.Millisecond,
		PollInterval: time.Hour,
		FetchTimeout: 50 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.svc = New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = h.svc.Close(context.Background())
	})
	return h
}

func (h *harness) play(t *testing.T, guildID, voiceID, url string) {
	t.Helper()
	_, err := h.svc.EnsurePlaying(context.Background(), PlayRequest{
		GuildID:        guildID,
		VoiceChannelID: voiceID,
		TextChannelID:  "text-1",
		StreamURL:      url,
		StreamName:     "Test FM",
		RequesterID:    "user-1",
		Manual:         true,
	})
	if err != nil {
		t.Fatalf("EnsurePlaying: %v", err)
	}
}

func (h *harness) state(t *testing.T, guildID string) State {
	t.Helper()
	st, ok := h.svc.State(guildID)
	if !ok {
		t.Fatalf("no state for guild %s", guildID)
	}
	return st
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// setRetryCount seeds the retry counter as if earlier failures had happened.
func (h *harness) setRetryCount(guildID string, n int) {
	g, _ := h.svc.guilds.get(guildID)
	g.mu.Lock()
	g.retryCount = n
	g.mu.Unlock()
}

func strPtr(s string) *string { return &s }
