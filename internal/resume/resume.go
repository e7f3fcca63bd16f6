// Package resume persists the playback intent of every guild so that streams
// can be restarted automatically after a process restart.
//
// Only guilds that should be playing are stored. The snapshot is written as a
// whole: entries missing from the map passed to [Store.Save] are removed.
package resume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Entry is the durable part of a guild's playback state.
type Entry struct {
	VoiceChannelID string `json:"voice_channel_id"`
	TextChannelID  string `json:"text_channel_id"`
	StreamURL      string `json:"stream_url"`
	StreamName     string `json:"stream_name"`
	RequesterID    string `json:"requester_id"`
}

// Valid reports whether the entry carries enough to restart playback.
func (e Entry) Valid() bool {
	return e.VoiceChannelID != "" && e.StreamURL != ""
}

// UnmarshalJSON accepts Discord snowflakes both as JSON strings and as bare
// numbers, which older state files contain.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		VoiceChannelID snowflake `json:"voice_channel_id"`
		TextChannelID  snowflake `json:"text_channel_id"`
		StreamURL      string    `json:"stream_url"`
		StreamName     string    `json:"stream_name"`
		RequesterID    snowflake `json:"requester_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry{
		VoiceChannelID: string(raw.VoiceChannelID),
		TextChannelID:  string(raw.TextChannelID),
		StreamURL:      raw.StreamURL,
		StreamName:     raw.StreamName,
		RequesterID:    string(raw.RequesterID),
	}
	return nil
}

// snowflake is an ID that may be encoded as a JSON string, number or null.
type snowflake string

func (s *snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = snowflake(str)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("resume: invalid id %s: %w", data, err)
		}
		if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
			return fmt.Errorf("resume: invalid id %s: %w", data, err)
		}
		*s = snowflake(n.String())
		return nil
	}
}

// Store loads and saves resume snapshots keyed by guild ID.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the last saved snapshot. A store that was never written
	// returns an empty map and no error.
	Load(ctx context.Context) (map[string]Entry, error)

	// Save replaces the stored snapshot with entries.
	Save(ctx context.Context, entries map[string]Entry) error

	// Close releases the store's resources.
	Close() error
}
