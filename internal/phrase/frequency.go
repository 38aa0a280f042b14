package phrase

import (
	"context"

	"github.com/FranksOps/keyrank/internal/analyzer"
	"github.com/FranksOps/keyrank/internal/keyword"
)

// Frequency ranks the two and three word n-grams of a text by how often they
// occur. N-grams that start or end with a stop term are skipped.
type Frequency struct {
	normalizer *keyword.Normalizer
	max        int
}

// NewFrequency creates a Frequency extractor returning at most maxPhrases phrases.
func NewFrequency(normalizer *keyword.Normalizer, maxPhrases int) *Frequency {
	return &Frequency{normalizer: normalizer, max: maxPhrases}
}

// Extract implements Extractor.
func (f *Frequency) Extract(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grams := analyzer.CountNGrams(text, 2, 3, func(words []string) bool {
		return !f.normalizer.IsStopTerm(words[0]) && !f.normalizer.IsStopTerm(words[len(words)-1])
	})

	list := newPhraseList(f.max)
	for _, g := range grams {
		list.add(g.Text)
		if list.full() {
			break
		}
	}
	return list.out, nil
}
