package keyword

import (
	"context"
	"log/slog"
	"strings"

	"github.com/FranksOps/keyrank/internal/model"
)

// Delimiters separates keyword tokens in titles, meta keywords and extractor
// output. Every rune in the set splits on its own.
const Delimiters = "|,"

// PhraseExtractor returns multi-word noun phrases found in text.
type PhraseExtractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// CandidateSet is an insertion-ordered set of candidates keyed by Candidate.Key.
// The zero value is not usable; call NewCandidateSet.
type CandidateSet struct {
	items []model.Candidate
	index map[string]int
}

// NewCandidateSet returns an empty set.
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{index: make(map[string]int)}
}

// Add inserts c unless its key is already present. It reports whether c was added.
func (s *CandidateSet) Add(c model.Candidate) bool {
	if _, exists := s.index[c.Key]; exists {
		return false
	}
	s.index[c.Key] = len(s.items)
	s.items = append(s.items, c)
	return true
}

// Contains reports whether a candidate with the given key is present.
func (s *CandidateSet) Contains(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Len returns the number of candidates.
func (s *CandidateSet) Len() int {
	return len(s.items)
}

// Items returns a copy of the candidates in insertion order.
func (s *CandidateSet) Items() []model.Candidate {
	out := make([]model.Candidate, len(s.items))
	copy(out, s.items)
	return out
}

// Truncate keeps only the first n candidates. n <= 0 is a no-op.
func (s *CandidateSet) Truncate(n int) {
	if n <= 0 || n >= len(s.items) {
		return
	}
	for _, c := range s.items[n:] {
		delete(s.index, c.Key)
	}
	s.items = s.items[:n]
}

// ExtractionDegraded records that phrase extraction did not contribute to a
// candidate set. It is a reported condition, not an error.
type ExtractionDegraded struct {
	Reason string
}

func (d ExtractionDegraded) String() string {
	return "phrase extraction degraded: " + d.Reason
}

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	Normalizer *Normalizer
	// Extractor is optional; without it only title and meta keywords are used.
	Extractor PhraseExtractor
	// MaxCandidates caps the set size, keeping the earliest entries (0 = unlimited).
	MaxCandidates int
	Logger        *slog.Logger
}

// Collector merges candidates from the title, the meta keywords field and
// phrase extraction into one CandidateSet.
type Collector struct {
	normalizer    *Normalizer
	extractor     PhraseExtractor
	maxCandidates int
	logger        *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Normalizer == nil {
		cfg.Normalizer = NewNormalizer()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Collector{
		normalizer:    cfg.Normalizer,
		extractor:     cfg.Extractor,
		maxCandidates: cfg.MaxCandidates,
		logger:        cfg.Logger,
	}
}

// Collect builds the candidate set for meta. Sources are visited in priority
// order (title, meta keywords, phrases) so earlier sources win duplicates.
// The returned ExtractionDegraded is nil when phrase extraction ran cleanly.
func (c *Collector) Collect(ctx context.Context, meta model.PageMetadata) (*CandidateSet, *ExtractionDegraded) {
	set := NewCandidateSet()

	for _, tok := range SplitDelimited(meta.Title) {
		c.insert(set, tok, 0)
	}
	for _, tok := range SplitDelimited(meta.RawKeywords) {
		c.insert(set, tok, 0)
	}

	degraded := c.collectPhrases(ctx, set, combinedText(meta))

	set.Truncate(c.maxCandidates)
	return set, degraded
}

func (c *Collector) collectPhrases(ctx context.Context, set *CandidateSet, text string) *ExtractionDegraded {
	if c.extractor == nil {
		return &ExtractionDegraded{Reason: "no phrase extractor configured"}
	}
	if text == "" {
		return nil
	}

	phrases, err := c.extractor.Extract(ctx, text)
	if err != nil {
		c.logger.Warn("phrase extraction failed, continuing with title and meta keywords", "err", err)
		return &ExtractionDegraded{Reason: err.Error()}
	}

	for _, phrase := range phrases {
		for _, piece := range SplitDelimited(phrase) {
			c.insert(set, piece, 2)
		}
	}
	return nil
}

// insert normalizes raw and adds it when it carries at least minTokens
// meaningful tokens. Title and meta keyword tokens pass 0 and are kept
// whenever the Normalizer accepts them.
func (c *Collector) insert(set *CandidateSet, raw string, minTokens int) {
	cand, ok := c.normalizer.Normalize(raw)
	if !ok {
		return
	}
	if minTokens > 0 && c.normalizer.MeaningfulTokens(cand.Key) < minTokens {
		return
	}
	if set.Add(cand) {
		c.logger.Debug("candidate added", "keyword", cand.Display)
	}
}

// SplitDelimited splits s on every rune in Delimiters and drops empty parts.
func SplitDelimited(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(Delimiters, r)
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func combinedText(meta model.PageMetadata) string {
	title := strings.TrimSpace(meta.Title)
	desc := strings.TrimSpace(meta.Description)
	switch {
	case title == "":
		return desc
	case desc == "":
		return title
	default:
		return title + " " + desc
	}
}
