package stations_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/MrWong99/airwave/internal/stations"
)

func testCatalog() *stations.Catalog {
	return stations.NewCatalog([]stations.Station{
		{Name: "Jazz-FM", URL: "http://jazz.example/stream", Description: "Smooth jazz"},
		{Name: "Rock Antenne", URL: "https://rock.example/live.mp3"},
		{Name: "classic-radio", URL: "http://classic.example/"},
		{Name: "", URL: "http://nameless.example"},
		{Name: "No URL"},
		{Name: "jazz-fm", URL: "http://dup.example"},
	})
}

func TestCatalog_ReplaceAndList(t *testing.T) {
	t.Parallel()

	c := testCatalog()
	list := c.List()
	if len(list) != 3 {
		t.Fatalf("List: want 3 stations, got %d: %+v", len(list), list)
	}
	want := []string{"classic-radio", "Jazz-FM", "Rock Antenne"}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("List[%d] = %q, want %q", i, list[i].Name, name)
		}
	}
	if s, _ := c.Lookup("JAZZ-fm"); s.URL != "http://jazz.example/stream" {
		t.Errorf("duplicate name replaced first entry: %+v", s)
	}

	c.Replace(nil)
	if len(c.List()) != 0 {
		t.Error("Replace(nil) should empty the catalogue")
	}
}

func TestCatalog_Resolve(t *testing.T) {
	t.Parallel()

	c := testCatalog()

	tests := []struct {
		name     string
		input    string
		wantName string
		wantURL  string
		wantErr  bool
	}{
		{name: "exact name", input: "Jazz-FM", wantName: "Jazz-FM", wantURL: "http://jazz.example/stream"},
		{name: "case insensitive", input: "  rock antenne ", wantName: "Rock Antenne", wantURL: "https://rock.example/live.mp3"},
		{name: "http url", input: "http://other.example/s", wantName: "http://other.example/s", wantURL: "http://other.example/s"},
		{name: "angle brackets stripped", input: "<https://other.example/s>", wantName: "https://other.example/s", wantURL: "https://other.example/s"},
		{name: "bare word", input: "nonsense", wantErr: true},
		{name: "ftp url", input: "ftp://files.example/a.mp3", wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := c.Resolve(tt.input)
			if tt.wantErr {
				var unknown *stations.UnknownStationError
				if !errors.As(err, &unknown) {
					t.Fatalf("Resolve(%q) err = %v, want *UnknownStationError", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.input, err)
			}
			if s.Name != tt.wantName || s.URL != tt.wantURL {
				t.Errorf("Resolve(%q) = %+v, want name=%q url=%q", tt.input, s, tt.wantName, tt.wantURL)
			}
		})
	}
}

func TestCatalog_ResolveSuggestion(t *testing.T) {
	t.Parallel()

	c := testCatalog()
	_, err := c.Resolve("jaz fm")
	var unknown *stations.UnknownStationError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want *UnknownStationError", err)
	}
	if unknown.Suggestion != "Jazz-FM" {
		t.Errorf("Suggestion = %q, want %q", unknown.Suggestion, "Jazz-FM")
	}

	_, err = c.Resolve("xyzzy")
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want *UnknownStationError", err)
	}
	if unknown.Suggestion != "" {
		t.Errorf("Suggestion = %q, want none", unknown.Suggestion)
	}
}

func TestCatalog_Complete(t *testing.T) {
	t.Parallel()

	c := testCatalog()

	got := c.Complete("", 2)
	if len(got) != 2 {
		t.Fatalf("Complete(\"\", 2): want 2, got %d", len(got))
	}

	got = c.Complete("an", 25)
	if len(got) != 1 || got[0].Name != "Rock Antenne" {
		t.Errorf("Complete(an) = %+v, want [Rock Antenne]", got)
	}

	got = c.Complete("JA", 25)
	if len(got) != 1 || got[0].Name != "Jazz-FM" {
		t.Errorf("Complete(JA) = %+v, want [Jazz-FM]", got)
	}
}

func TestCatalog_ConcurrentReplace(t *testing.T) {
	t.Parallel()

	c := testCatalog()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			if i%2 == 0 {
				c.Replace([]stations.Station{{Name: "x", URL: "http://x"}})
				return
			}
			_, _ = c.Resolve("x")
			_ = c.Complete("x", 5)
		})
	}
	wg.Wait()
}
