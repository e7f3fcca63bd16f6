package resume

import (
	"path/filepath"
	"testing"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "resume.db")
	s, err := OpenSQLite(t.Context(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.Load(t.Context())
	if err != nil || len(got) != 0 {
		t.Fatalf("Load of fresh db = %v, %v", got, err)
	}

	entries := map[string]Entry{
		"1": {VoiceChannelID: "v1", StreamURL: "http://a", StreamName: "A", RequesterID: "u"},
		"2": {VoiceChannelID: "v2", StreamURL: "http://b"},
	}
	if err := s.Save(t.Context(), entries); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(t.Context(), map[string]Entry{"2": entries["2"]}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err = s.Load(t.Context())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got["2"] != entries["2"] {
		t.Errorf("Load = %+v, want only guild 2", got)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "resume.db")
	s, err := OpenSQLite(t.Context(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	want := Entry{VoiceChannelID: "v", StreamURL: "http://x"}
	if err := s.Save(t.Context(), map[string]Entry{"g": want}); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = OpenSQLite(t.Context(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	got, err := s.Load(t.Context())
	if err != nil || got["g"] != want {
		t.Errorf("Load after reopen = %+v, %v", got, err)
	}
}
