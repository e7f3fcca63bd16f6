package resume

import (
	"encoding/json"
	"testing"
)

func TestEntry_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Entry
		wantErr bool
	}{
		{
			name:  "string ids",
			input: `{"voice_channel_id":"111","text_channel_id":"222","stream_url":"http://a","stream_name":"A","requester_id":"333"}`,
			want:  Entry{VoiceChannelID: "111", TextChannelID: "222", StreamURL: "http://a", StreamName: "A", RequesterID: "333"},
		},
		{
			name:  "numeric ids",
			input: `{"voice_channel_id":123456789012345678,"text_channel_id":42,"stream_url":"http://a","stream_name":"A","requester_id":7}`,
			want:  Entry{VoiceChannelID: "123456789012345678", TextChannelID: "42", StreamURL: "http://a", StreamName: "A", RequesterID: "7"},
		},
		{
			name:  "null requester",
			input: `{"voice_channel_id":"1","stream_url":"http://a","requester_id":null}`,
			want:  Entry{VoiceChannelID: "1", StreamURL: "http://a"},
		},
		{
			name:    "fractional id",
			input:   `{"voice_channel_id":1.5,"stream_url":"http://a"}`,
			wantErr: true,
		},
		{
			name:    "bool id",
			input:   `{"voice_channel_id":true}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got Entry
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEntry_Valid(t *testing.T) {
	t.Parallel()

	if (Entry{}).Valid() {
		t.Error("empty entry should be invalid")
	}
	if (Entry{VoiceChannelID: "1"}).Valid() {
		t.Error("entry without URL should be invalid")
	}
	if !(Entry{VoiceChannelID: "1", StreamURL: "http://a"}).Valid() {
		t.Error("entry with channel and URL should be valid")
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	seed := map[string]Entry{"g1": {VoiceChannelID: "v", StreamURL: "http://a"}}
	s := NewMemoryStore(seed)
	seed["g2"] = Entry{}

	got, err := s.Load(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Load: want 1 entry (seed must be copied), got %d", len(got))
	}

	if err := s.Save(t.Context(), nil); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Load(t.Context())
	if got == nil || len(got) != 0 {
		t.Errorf("Load after empty save = %v, want empty non-nil map", got)
	}
	if s.Saves() != 1 {
		t.Errorf("Saves = %d, want 1", s.Saves())
	}
}
