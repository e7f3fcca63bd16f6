package radio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/airwave/internal/observe"
	"github.com/MrWong99/airwave/pkg/audio"
)

// PlayRequest is a resolved play intent for one guild.
type PlayRequest struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	StreamURL      string
	StreamName     string
	RequesterID    string

	// Manual is true for user intents and false for retries and resumes.
	Manual bool
}

// EnsurePlaying makes the guild play req.StreamURL in req.VoiceChannelID,
// joining or moving the voice connection as needed. It returns the status
// text for the requester.
//
// Failures are reported synchronously and never retried here: the intent is
// cleared and the error is one of [*LocationError], [*TransportError],
// [*PipelineError] or [ErrSuperseded].
func (s *Service) EnsurePlaying(ctx context.Context, req PlayRequest) (string, error) {
	g := s.guilds.getOrCreate(req.GuildID)
	g.op.Lock()
	defer g.op.Unlock()
	return s.launch(ctx, g, req, false, 0)
}

// launch performs one launch attempt. A failed relaunch scheduled by the
// supervisor counts against the retry budget instead of clearing the
// intent. g.op must be held.
//
// For retries and resumes, seen is the intentGen the caller observed. The
// attempt is abandoned with [ErrSuperseded] if a stop arrived since.
func (s *Service) launch(ctx context.Context, g *guild, req PlayRequest, relaunch bool, seen uint64) (status string, err error) {
	ctx, span := observe.StartGuildSpan(ctx, "radio.launch", g.id,
		attribute.String("stream.url", req.StreamURL),
		attribute.Bool("manual", req.Manual),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.RecordPlaybackStart(ctx, req.Manual, observe.StatusOf(err))
	}()
	log := observe.GuildLogger(ctx, g.id)

	locErr := s.locate(req.GuildID, req.VoiceChannelID)

	g.mu.Lock()
	if !req.Manual && (g.intentGen != seen || !g.phase.ShouldPlay()) {
		g.resuming = false
		g.mu.Unlock()
		log.Info("launch superseded before connecting")
		return "", ErrSuperseded
	}
	if locErr != nil {
		if !relaunch && !req.Manual {
			g.phase = PhaseStopped
			g.resuming = false
		}
		g.mu.Unlock()
		log.Warn("voice channel unavailable", "channel_id", req.VoiceChannelID, "err", locErr)
		switch {
		case relaunch:
			s.afterFailure(g)
		case !req.Manual:
			s.save()
		}
		return "", locErr
	}
	g.cancelRetry()
	g.streamURL = req.StreamURL
	g.streamName = req.StreamName
	g.requesterID = req.RequesterID
	g.voiceChannelID = req.VoiceChannelID
	g.textChannelID = req.TextChannelID
	g.phase = PhaseStarting
	g.resuming = !req.Manual
	g.intentGen++
	intent := g.intentGen
	conn := g.conn
	voiceGen := g.voiceGen
	g.mu.Unlock()

	conn, err = s.connect(ctx, g.id, conn, req.VoiceChannelID)
	if err != nil {
		return "", s.launchFailed(g, intent, relaunch, err)
	}

	g.mu.Lock()
	if g.voiceGen != voiceGen {
		// The voice session went away while connecting; conn is dead.
		current := g.intentGen == intent
		if !current {
			g.resuming = false
		}
		g.mu.Unlock()
		_ = conn.Disconnect()
		if !current {
			return "", ErrSuperseded
		}
		return "", s.launchFailed(g, intent, relaunch,
			&TransportError{GuildID: g.id, ChannelID: req.VoiceChannelID, Err: errVoiceLost})
	}
	g.conn = conn
	if g.intentGen != intent {
		g.resuming = false
		g.mu.Unlock()
		log.Info("launch superseded while connecting")
		return "", ErrSuperseded
	}
	old := g.handle
	g.handle = nil
	g.pipelineGen++
	g.mu.Unlock()
	if old != nil {
		old.Stop()
	}

	h, err := s.cfg.Pipeline.Start(s.ctx, req.StreamURL, conn.OutputStream())
	if err != nil {
		return "", s.launchFailed(g, intent, relaunch, &PipelineError{GuildID: g.id, URL: req.StreamURL, Err: err})
	}

	g.mu.Lock()
	// Close cancels s.ctx before it collects the registered pipelines.
	if g.intentGen != intent || s.ctx.Err() != nil {
		g.pipelineGen++
		g.resuming = false
		g.mu.Unlock()
		h.Stop()
		log.Info("launch superseded while starting pipeline")
		return "", ErrSuperseded
	}
	g.pipelineGen++
	gen := g.pipelineGen
	g.handle = h
	g.phase = PhasePlaying
	g.retryCount = 0
	g.resuming = false
	g.title = nil
	g.mu.Unlock()

	s.metrics.ActiveStreams.Add(ctx, 1)
	s.watch(g.id, gen, h)
	s.save()
	s.refresh(ctx, g, true)

	log.Info("stream started", "stream", req.StreamName, "url", req.StreamURL, "manual", req.Manual)
	return fmt.Sprintf("▶️ Now playing: `%s`", req.StreamName), nil
}

// launchFailed handles a failed launch and returns err. The intent is
// cleared, or for a relaunch the failure is counted, unless a newer intent
// has taken over.
func (s *Service) launchFailed(g *guild, intent uint64, relaunch bool, err error) error {
	observe.GuildLogger(s.ctx, g.id).Warn("launch failed", "err", err, "relaunch", relaunch)

	g.mu.Lock()
	current := g.intentGen == intent
	old := g.handle
	if current {
		if !relaunch {
			g.phase = PhaseStopped
		}
		g.handle = nil
		g.pipelineGen++
	} else {
		old = nil
	}
	g.resuming = false
	g.mu.Unlock()
	if old != nil {
		old.Stop()
	}
	s.cleanup(s.ctx, g)

	if current && relaunch {
		s.afterFailure(g)
		return err
	}
	s.save()
	return err
}

func (s *Service) locate(guildID, channelID string) error {
	if channelID == "" {
		return &LocationError{GuildID: guildID, ChannelID: channelID, Err: errors.New("no voice channel")}
	}
	if s.cfg.Locator == nil {
		return nil
	}
	if _, err := s.cfg.Locator.VoiceChannel(guildID, channelID); err != nil {
		return &LocationError{GuildID: guildID, ChannelID: channelID, Err: err}
	}
	return nil
}

// connect returns a connection in channelID, reusing or moving conn when
// possible.
func (s *Service) connect(ctx context.Context, guildID string, conn audio.Connection, channelID string) (audio.Connection, error) {
	if conn != nil && conn.ChannelID() == channelID {
		return conn, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	start := time.Now()
	defer func() {
		s.metrics.ConnectDuration.Record(ctx, time.Since(start).Seconds())
	}()

	if conn != nil {
		if err := conn.Move(ctx, channelID); err != nil {
			return nil, &TransportError{GuildID: guildID, ChannelID: channelID, Err: err}
		}
		return conn, nil
	}

	conn, err := s.cfg.Platform.Connect(ctx, guildID, channelID)
	if err != nil {
		return nil, &TransportError{GuildID: guildID, ChannelID: channelID, Err: err}
	}
	return conn, nil
}
