// Package stations holds the catalogue of predefined radio stations and turns
// raw user input into a playable stream.
//
// Input is resolved in order: exact (case-insensitive) station name, then
// http(s) URL. Anything else is rejected with an [UnknownStationError] that
// may carry a "did you mean" suggestion found by phonetic matching.
package stations

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Station is one predefined stream.
type Station struct {
	Name        string
	URL         string
	Description string
}

// UnknownStationError is returned by [Catalog.Resolve] for input that is
// neither a known station nor a URL.
type UnknownStationError struct {
	Input      string
	Suggestion string
}

func (e *UnknownStationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%q is not a valid URL or station name; did you mean %q?", e.Input, e.Suggestion)
	}
	return fmt.Sprintf("%q is not a valid URL or station name", e.Input)
}

// Catalog is the set of predefined stations. It can be replaced atomically on
// config reload.
//
// Catalog is safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	stations []Station
	byName   map[string]Station
	matcher  *Matcher
}

// NewCatalog returns a catalogue holding stations.
func NewCatalog(stations []Station) *Catalog {
	c := &Catalog{matcher: NewMatcher()}
	c.Replace(stations)
	return c
}

// Replace swaps the whole station list. Entries without a name or URL are
// ignored; the first entry wins on duplicate names.
func (c *Catalog) Replace(stations []Station) {
	list := make([]Station, 0, len(stations))
	byName := make(map[string]Station, len(stations))
	for _, s := range stations {
		s.Name = strings.TrimSpace(s.Name)
		s.URL = strings.TrimSpace(s.URL)
		if s.Name == "" || s.URL == "" {
			continue
		}
		key := strings.ToLower(s.Name)
		if _, dup := byName[key]; dup {
			continue
		}
		byName[key] = s
		list = append(list, s)
	}
	slices.SortFunc(list, func(a, b Station) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stations = list
	c.byName = byName
}

// List returns all stations sorted by name.
func (c *Catalog) List() []Station {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.stations)
}

// Lookup finds a station by name, ignoring case.
func (c *Catalog) Lookup(name string) (Station, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Resolve turns raw user input into a station. Surrounding whitespace and
// angle brackets (Discord's link-embed suppression) are stripped.
func (c *Catalog) Resolve(raw string) (Station, error) {
	in := strings.Trim(strings.TrimSpace(raw), "<>")
	if in == "" {
		return Station{}, &UnknownStationError{Input: raw}
	}
	if s, ok := c.Lookup(in); ok {
		return s, nil
	}
	if IsStreamURL(in) {
		return Station{Name: in, URL: in}, nil
	}

	names := c.names()
	suggestion, _, _ := c.matcher.Match(in, names)
	if !slices.Contains(names, suggestion) {
		suggestion = ""
	}
	return Station{}, &UnknownStationError{Input: in, Suggestion: suggestion}
}

// Complete returns up to limit stations whose name contains prefix, with
// prefix matches first. An empty prefix lists the first limit stations.
func (c *Catalog) Complete(prefix string, limit int) []Station {
	p := strings.ToLower(strings.TrimSpace(prefix))
	c.mu.RLock()
	defer c.mu.RUnlock()

	var head, tail []Station
	for _, s := range c.stations {
		name := strings.ToLower(s.Name)
		switch {
		case strings.HasPrefix(name, p):
			head = append(head, s)
		case strings.Contains(name, p):
			tail = append(tail, s)
		}
	}
	out := append(head, tail...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (c *Catalog) names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.stations))
	for i, s := range c.stations {
		names[i] = s.Name
	}
	return names
}

// IsStreamURL reports whether s looks like an http or https URL.
func IsStreamURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
