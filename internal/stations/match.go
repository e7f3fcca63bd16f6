package stations

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// MatchOption configures a [Matcher].
type MatchOption func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a station
// whose Double Metaphone codes overlap the input. Default: 0.70.
func WithPhoneticThreshold(threshold float64) MatchOption {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score used when no station
// sounds like the input. Default: 0.85.
func WithFuzzyThreshold(threshold float64) MatchOption {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher suggests the station name closest to a misspelt input.
//
// Candidates whose Double Metaphone codes overlap the input's are ranked by
// Jaro-Winkler similarity; if none qualifies, every name is tried again with
// the stricter fuzzy threshold. Hyphens and underscores count as word breaks,
// so "radio one" matches "radio-one".
//
// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a Matcher with default thresholds.
func NewMatcher(opts ...MatchOption) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the best name for input. When matched is false, best equals
// input and score is 0.
func (m *Matcher) Match(input string, names []string) (best string, score float64, matched bool) {
	in := tokens(input)
	if len(names) == 0 || len(in) == 0 {
		return input, 0, false
	}
	inCodes := metaphoneCodes(in)

	var (
		bestName     string
		bestScore    float64
		bestPhonetic bool
	)
	for _, name := range names {
		nt := tokens(name)
		if len(nt) == 0 {
			continue
		}
		s := similarity(in, nt)

		if sharesCode(inCodes, metaphoneCodes(nt)) {
			if s >= m.phoneticThreshold && (!bestPhonetic || s > bestScore) {
				bestName, bestScore, bestPhonetic = name, s, true
			}
			continue
		}
		if !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore {
			bestName, bestScore = name, s
		}
	}

	if bestName == "" {
		return input, 0, false
	}
	return bestName, bestScore, true
}

// tokens lower-cases s and splits it on spaces, hyphens and underscores.
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
}

func metaphoneCodes(words []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(words)*2)
	for _, w := range words {
		p, s := matchr.DoubleMetaphone(w)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func sharesCode(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the best of the joined-string score and the best single
// word-pair score.
func similarity(a, b []string) float64 {
	score := matchr.JaroWinkler(strings.Join(a, ""), strings.Join(b, ""), false)
	if len(a) > 1 || len(b) > 1 {
		if s := matchr.JaroWinkler(strings.Join(a, " "), strings.Join(b, " "), false); s > score {
			score = s
		}
	}
	for _, x := range a {
		for _, y := range b {
			if s := matchr.JaroWinkler(x, y, false); s > score {
				score = s
			}
		}
	}
	return score
}
