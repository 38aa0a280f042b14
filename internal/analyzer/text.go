package analyzer

import (
	"sort"
	"strings"
	"unicode"
)

// Sentence holds the original and lowercase versions of a sentence together.
type Sentence struct {
	Original string
	Lower    string
}

// NGram is a run of consecutive words found in a text.
type NGram struct {
	// Text is the first-seen spelling of the n-gram.
	Text  string
	Count int
	// First orders n-grams by first appearance.
	First int
}

// SplitSentences splits text into sentences using '.', '!', '?' and line
// breaks as delimiters, preserving the delimiter at the end of each sentence.
func SplitSentences(text string) []Sentence {
	if len(text) == 0 {
		return nil
	}

	// Estimate sentence count: roughly 1 sentence per 50 chars average
	estimated := len(text) / 50
	if estimated < 1 {
		estimated = 1
	}

	sentences := make([]Sentence, 0, estimated)
	start := 0

	for i, r := range text {
		if i < start {
			continue
		}
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			end := i + 1
			for end < len(text) && unicode.IsSpace(rune(text[end])) {
				end++
			}
			if orig := strings.TrimSpace(text[start:end]); orig != "" {
				sentences = append(sentences, Sentence{Original: orig, Lower: strings.ToLower(orig)})
			}
			start = end
		}
	}

	// Capture any trailing text
	if start < len(text) {
		if orig := strings.TrimSpace(text[start:]); orig != "" {
			sentences = append(sentences, Sentence{Original: orig, Lower: strings.ToLower(orig)})
		}
	}

	return sentences
}

// Clauses splits text into clauses of word tokens. Sentence delimiters and
// any punctuation other than a word-internal apostrophe or hyphen end a clause,
// so phrases never span "Acme | Law" or "cars, trucks".
func Clauses(text string) [][]string {
	var clauses [][]string

	for _, s := range SplitSentences(text) {
		var (
			current []string
			word    strings.Builder
		)
		flushWord := func() {
			if word.Len() > 0 {
				current = append(current, word.String())
				word.Reset()
			}
		}
		flushClause := func() {
			flushWord()
			if len(current) > 0 {
				clauses = append(clauses, current)
				current = nil
			}
		}

		runes := []rune(s.Original)
		for i, r := range runes {
			switch {
			case unicode.IsLetter(r) || unicode.IsDigit(r):
				word.WriteRune(r)
			case isJoiner(r) && word.Len() > 0 && i+1 < len(runes) && isWordRune(runes[i+1]):
				word.WriteRune(r)
			case unicode.IsSpace(r):
				flushWord()
			default:
				flushClause()
			}
		}
		flushClause()
	}

	return clauses
}

// CountNGrams counts every n-gram of minN..maxN words inside clause
// boundaries. keep filters n-grams before counting (nil keeps all). Matching is
// case-insensitive. The result is ordered by descending count, then by first
// appearance.
func CountNGrams(text string, minN, maxN int, keep func(words []string) bool) []NGram {
	if minN < 1 {
		minN = 1
	}
	if maxN < minN {
		maxN = minN
	}

	byKey := make(map[string]*NGram)
	order := 0

	for _, clause := range Clauses(text) {
		for n := minN; n <= maxN; n++ {
			for i := 0; i+n <= len(clause); i++ {
				words := clause[i : i+n]
				if keep != nil && !keep(words) {
					continue
				}
				gram := strings.Join(words, " ")
				key := strings.ToLower(gram)
				if g, ok := byKey[key]; ok {
					g.Count++
					continue
				}
				byKey[key] = &NGram{Text: gram, Count: 1, First: order}
				order++
			}
		}
	}

	out := make([]NGram, 0, len(byKey))
	for _, g := range byKey {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].First < out[j].First
	})
	return out
}

func isJoiner(r rune) bool {
	return r == '\'' || r == '-' || r == '’'
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
