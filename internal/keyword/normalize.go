// Package keyword turns raw page metadata into a deduplicated, ordered set of
// keyword candidates.
package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/FranksOps/keyrank/internal/model"
)

// MinKeyLength is the minimum rune length of an accepted comparison key.
const MinKeyLength = 2

// DefaultStopTerms are common English function words that never stand alone
// as keywords.
var DefaultStopTerms = []string{
	"a", "about", "after", "all", "also", "an", "and", "any", "are", "as", "at",
	"be", "been", "but", "by", "can", "could", "do", "does", "for", "from",
	"had", "has", "have", "he", "her", "his", "how", "i", "if", "in", "into",
	"is", "it", "its", "just", "me", "more", "most", "my", "no", "not", "of",
	"on", "or", "our", "out", "over", "she", "so", "some", "than", "that",
	"the", "their", "them", "then", "there", "these", "they", "this", "to",
	"up", "us", "was", "we", "were", "what", "when", "where", "which", "who",
	"why", "will", "with", "would", "you", "your",
}

// Normalizer canonicalizes raw keyword strings and filters stop terms.
// It is safe for concurrent use once constructed.
type Normalizer struct {
	stop map[string]struct{}
}

// NewNormalizer builds a Normalizer with the default stop terms plus any
// site-specific excluded tokens (e.g. generic place names).
func NewNormalizer(exclude ...string) *Normalizer {
	return NewNormalizerWithStopTerms(DefaultStopTerms, exclude...)
}

// NewNormalizerWithStopTerms builds a Normalizer from an explicit stop list.
func NewNormalizerWithStopTerms(stopTerms []string, exclude ...string) *Normalizer {
	n := &Normalizer{stop: make(map[string]struct{}, len(stopTerms)+len(exclude))}
	for _, list := range [][]string{stopTerms, exclude} {
		for _, term := range list {
			if key := canonicalKey(term); key != "" {
				n.stop[key] = struct{}{}
			}
		}
	}
	return n
}

// Normalize returns the candidate for raw and whether it was accepted. Empty
// keys, keys shorter than MinKeyLength and stop terms are rejected.
func (n *Normalizer) Normalize(raw string) (model.Candidate, bool) {
	display := collapseSpace(raw)
	key := canonicalKey(display)
	if key == "" || utf8.RuneCountInString(key) < MinKeyLength || n.IsStopTerm(key) {
		return model.Candidate{}, false
	}
	return model.Candidate{Display: display, Key: key}, true
}

// IsStopTerm reports whether the canonical form of term is a stop term.
func (n *Normalizer) IsStopTerm(term string) bool {
	_, ok := n.stop[canonicalKey(term)]
	return ok
}

// MeaningfulTokens counts the tokens of key that are not stop terms and are at
// least MinKeyLength runes long.
func (n *Normalizer) MeaningfulTokens(key string) int {
	count := 0
	for _, tok := range strings.Fields(key) {
		if utf8.RuneCountInString(tok) < MinKeyLength {
			continue
		}
		if _, stop := n.stop[tok]; stop {
			continue
		}
		count++
	}
	return count
}

// canonicalKey applies NFKC, lowercases, drops punctuation and collapses
// whitespace. A single pass is not always a fixed point (NFKC can expand to
// punctuation, and dropping punctuation can expose composable runes), so the
// pass repeats until the key stops changing.
func canonicalKey(s string) string {
	key := canonicalPass(s)
	for i := 0; i < 3; i++ {
		next := canonicalPass(key)
		if next == key {
			break
		}
		key = next
	}
	return key
}

func canonicalPass(s string) string {
	s = cases.Lower(language.Und).String(norm.NFKC.String(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return collapseSpace(b.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
