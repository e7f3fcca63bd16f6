package radio

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation needs a voice connection
	// and the guild has none.
	ErrNotConnected = errors.New("radio: not connected to voice")

	// ErrSuperseded is returned by a launch that was overtaken by a later
	// stop or leave while it was connecting.
	ErrSuperseded = errors.New("radio: playback was stopped while starting")

	// ErrMessageNotFound is returned by a [Messenger] when the now-playing
	// message no longer exists.
	ErrMessageNotFound = errors.New("radio: message not found")

	errVoiceLost = errors.New("voice connection lost while joining")
)

// LocationError reports a voice channel that does not exist or cannot be
// used. It is never retried.
type LocationError struct {
	GuildID   string
	ChannelID string
	Err       error
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("voice channel %s unavailable: %v", e.ChannelID, e.Err)
}

func (e *LocationError) Unwrap() error { return e.Err }

// TransportError reports a failed voice connect or move.
type TransportError struct {
	GuildID   string
	ChannelID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("could not join voice channel %s: %v", e.ChannelID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PipelineError reports a decoder failure, either at start or mid-stream.
type PipelineError struct {
	GuildID string
	URL     string
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("stream %s failed: %v", e.URL, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// PersistenceError reports a resume store failure. It is only logged.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("radio: resume %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MetadataError reports a failed ICY metadata fetch. It is only logged.
type MetadataError struct {
	GuildID string
	URL     string
	Err     error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("radio: metadata %s: %v", e.URL, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }
