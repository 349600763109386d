package correct

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// minConfidence is the acceptance bar for a suggestion. Below it the caller
// shows only the manual picker.
const minConfidence = 0.5

// Suggestion is the best catalog candidate for one invalid value.
type Suggestion struct {
	Name string
	// Confidence is the normalized similarity in [0,1]. Advisory only: a
	// suggestion is never auto-applied, it just pre-fills the recommended
	// choice.
	Confidence float64
}

// Suggest scores invalidName against every candidate and returns the best
// one when it clears the acceptance bar. Candidates are compared on
// case-folded, whitespace-collapsed, diacritic-stripped forms; on a tie the
// earliest candidate wins, keeping output stable for a stable catalog.
func Suggest(invalidName string, candidates []string) (Suggestion, bool) {
	key := normalizeValue(invalidName)
	if key == "" {
		return Suggestion{}, false
	}

	best := Suggestion{}
	for _, c := range candidates {
		score := levenshtein.Similarity(key, normalizeValue(c), nil)
		if score > best.Confidence {
			best = Suggestion{Name: c, Confidence: score}
		}
	}
	if best.Confidence < minConfidence {
		return Suggestion{}, false
	}
	return best, true
}

// normalizeValue lowers, collapses inner whitespace and strips diacritics so
// "Café  Crew" and "cafe crew" compare equal.
func normalizeValue(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")

	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
