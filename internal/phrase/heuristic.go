package phrase

import (
	"context"
	"strings"

	"github.com/FranksOps/keyrank/internal/analyzer"
	"github.com/FranksOps/keyrank/internal/keyword"
)

const (
	minChunkWords = 2
	maxChunkWords = 4
)

// breakWords end a noun chunk even though they are not stop terms. They are
// the verbs and adverbs that most often sit between noun groups in marketing
// copy.
var breakWords = map[string]struct{}{
	"help": {}, "helps": {}, "helping": {}, "win": {}, "get": {}, "gets": {},
	"make": {}, "makes": {}, "offer": {}, "offers": {}, "offering": {},
	"provide": {}, "provides": {}, "providing": {}, "call": {}, "contact": {},
	"learn": {}, "find": {}, "see": {}, "let": {}, "need": {}, "needs": {},
	"want": {}, "serve": {}, "serves": {}, "serving": {}, "specialize": {},
	"specializes": {}, "now": {}, "today": {}, "here": {}, "very": {},
}

// Heuristic chunks text into runs of two to four consecutive content words
// inside a clause. It needs no external service.
type Heuristic struct {
	normalizer *keyword.Normalizer
	max        int
}

// NewHeuristic creates a Heuristic extractor returning at most maxPhrases phrases.
func NewHeuristic(normalizer *keyword.Normalizer, maxPhrases int) *Heuristic {
	return &Heuristic{normalizer: normalizer, max: maxPhrases}
}

// Extract implements Extractor. Runs longer than four words are split into
// consecutive chunks.
func (h *Heuristic) Extract(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list := newPhraseList(h.max)
	for _, clause := range analyzer.Clauses(text) {
		var run []string
		for _, word := range clause {
			if h.isBoundary(word) {
				h.emit(list, run)
				run = run[:0]
				continue
			}
			run = append(run, word)
		}
		h.emit(list, run)
		if list.full() {
			break
		}
	}
	return list.out, nil
}

func (h *Heuristic) isBoundary(word string) bool {
	if h.normalizer.IsStopTerm(word) {
		return true
	}
	_, brk := breakWords[strings.ToLower(word)]
	return brk
}

func (h *Heuristic) emit(list *phraseList, run []string) {
	for len(run) >= minChunkWords {
		n := len(run)
		if n > maxChunkWords {
			n = maxChunkWords
		}
		list.add(strings.Join(run[:n], " "))
		run = run[n:]
	}
}
