package radio

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/airwave/pkg/audio"
	"github.com/MrWong99/airwave/pkg/stream"
)

// Phase is the lifecycle position of a guild's radio.
type Phase int

const (
	// PhaseStopped means nothing should play. This is the zero value.
	PhaseStopped Phase = iota

	// PhaseStarting means a launch (manual, retry or resume) is in progress.
	PhaseStarting

	// PhasePlaying means a pipeline is running.
	PhasePlaying

	// PhaseReconnecting means the pipeline failed and a relaunch is scheduled.
	PhaseReconnecting

	// PhaseGivenUp means the retry budget is exhausted. Only a new manual play
	// leaves this phase.
	PhaseGivenUp
)

// String returns the phase name used in logs and on the dashboard.
func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "stopped"
	case PhaseStarting:
		return "starting"
	case PhasePlaying:
		return "playing"
	case PhaseReconnecting:
		return "reconnecting"
	case PhaseGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

// ShouldPlay reports whether the phase carries the intent to play.
func (p Phase) ShouldPlay() bool {
	return p == PhaseStarting || p == PhasePlaying || p == PhaseReconnecting
}

// State is a copy of one guild's playback state at a point in time.
type State struct {
	GuildID        string
	Phase          Phase
	StreamURL      string
	StreamName     string
	RequesterID    string
	VoiceChannelID string
	TextChannelID  string

	// RetryCount is the number of consecutive failures since the last
	// successful start.
	RetryCount int

	// Title is the last parsed track title. nil means no title is known.
	Title *string

	// NowPlayingMessageID is the live status message, if any.
	NowPlayingMessageID string

	// Resuming is true for state loaded from the resume store whose first
	// launch attempt has not finished yet.
	Resuming bool

	// Connected reports whether a voice connection is attached.
	Connected bool
}

// ShouldPlay reports the playback intent.
func (s State) ShouldPlay() bool { return s.Phase.ShouldPlay() }

// guild is the mutable record behind [State].
//
// Lock order: op, then display, then mu. mu is never held across I/O.
type guild struct {
	id string

	// op serializes launches, stops and termination handling.
	op sync.Mutex

	// display serializes operations on the now-playing message.
	display sync.Mutex

	mu             sync.Mutex
	phase          Phase
	streamURL      string
	streamName     string
	requesterID    string
	voiceChannelID string
	textChannelID  string
	retryCount     int
	title          *string
	messageID      string
	messageChannel string
	resuming       bool

	conn   audio.Connection
	handle stream.Handle

	// pipelineGen identifies the running pipeline; terminations carrying an
	// older value are ignored.
	pipelineGen uint64

	// intentGen is bumped by every play and stop intent so that a launch can
	// detect a stop that arrived while it was connecting.
	intentGen uint64

	// voiceGen is bumped whenever the voice connection is dropped so that a
	// launch can reject a connection torn down while it was joining.
	voiceGen uint64

	retryGen   uint64
	retryTimer *time.Timer
}

// snapshot returns a copy of g. g.mu must be held.
func (g *guild) snapshot() State {
	st := State{
		GuildID:             g.id,
		Phase:               g.phase,
		StreamURL:           g.streamURL,
		StreamName:          g.streamName,
		RequesterID:         g.requesterID,
		VoiceChannelID:      g.voiceChannelID,
		TextChannelID:       g.textChannelID,
		RetryCount:          g.retryCount,
		NowPlayingMessageID: g.messageID,
		Resuming:            g.resuming,
		Connected:           g.conn != nil,
	}
	if g.title != nil {
		t := *g.title
		st.Title = &t
	}
	return st
}

// request rebuilds the parameters of the last play intent. g.mu must be held.
func (g *guild) request(manual bool) PlayRequest {
	return PlayRequest{
		GuildID:        g.id,
		VoiceChannelID: g.voiceChannelID,
		TextChannelID:  g.textChannelID,
		StreamURL:      g.streamURL,
		StreamName:     g.streamName,
		RequesterID:    g.requesterID,
		Manual:         manual,
	}
}

// cancelRetry drops any scheduled relaunch. g.mu must be held.
func (g *guild) cancelRetry() {
	g.retryGen++
	if g.retryTimer != nil {
		g.retryTimer.Stop()
		g.retryTimer = nil
	}
}

// registry owns every guild record. Records are created on demand and never
// removed; a stopped guild is a record in [PhaseStopped].
type registry struct {
	mu     sync.RWMutex
	guilds map[string]*guild
}

func newRegistry() *registry {
	return &registry{guilds: make(map[string]*guild)}
}

func (r *registry) get(id string) (*guild, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guilds[id]
	return g, ok
}

func (r *registry) getOrCreate(id string) *guild {
	r.mu.RLock()
	g, ok := r.guilds[id]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.guilds[id]; ok {
		return g
	}
	g = &guild{id: id}
	r.guilds[id] = g
	return g
}

// all returns every record ordered by guild ID.
func (r *registry) all() []*guild {
	r.mu.RLock()
	out := make([]*guild, 0, len(r.guilds))
	for _, g := range r.guilds {
		out = append(out, g)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *guild) int { return strings.Compare(a.id, b.id) })
	return out
}
