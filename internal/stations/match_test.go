package stations_test

import (
	"testing"

	"github.com/MrWong99/airwave/internal/stations"
)

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	names := []string{"Jazz-FM", "Rock Antenne", "Classic Radio"}
	m := stations.NewMatcher()

	tests := []struct {
		input   string
		want    string
		matched bool
	}{
		{input: "jaz fm", want: "Jazz-FM", matched: true},
		{input: "rok antene", want: "Rock Antenne", matched: true},
		{input: "klassik radio", want: "Classic Radio", matched: true},
		{input: "qqqq", want: "qqqq", matched: false},
		{input: "", want: "", matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, score, ok := m.Match(tt.input, names)
			if ok != tt.matched {
				t.Fatalf("Match(%q) matched=%v, want %v", tt.input, ok, tt.matched)
			}
			if got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if !ok && score != 0 {
				t.Errorf("Match(%q) score = %f, want 0 when unmatched", tt.input, score)
			}
		})
	}
}

func TestMatcher_NoNames(t *testing.T) {
	t.Parallel()

	got, _, ok := stations.NewMatcher().Match("anything", nil)
	if ok || got != "anything" {
		t.Errorf("Match with no names = (%q, %v), want (anything, false)", got, ok)
	}
}

func TestMatcher_Thresholds(t *testing.T) {
	t.Parallel()

	strict := stations.NewMatcher(stations.WithPhoneticThreshold(1.0), stations.WithFuzzyThreshold(1.0))
	if _, _, ok := strict.Match("jaz fm", []string{"Jazz-FM"}); ok {
		t.Error("threshold 1.0 should reject inexact input")
	}
}
