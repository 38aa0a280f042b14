// Package phrase provides the strategies used to find multi-word keyword
// phrases in page text.
package phrase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FranksOps/keyrank/internal/keyword"
)

// Strategy names a phrase extraction strategy.
type Strategy string

const (
	StrategyNone      Strategy = "none"
	StrategyHeuristic Strategy = "heuristic"
	StrategyFrequency Strategy = "frequency"
	StrategyOpenAI    Strategy = "openai"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{StrategyNone, StrategyHeuristic, StrategyFrequency, StrategyOpenAI}

// DefaultMaxPhrases caps the phrases returned by one Extract call.
const DefaultMaxPhrases = 10

// Extractor returns multi-word phrases found in text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// Config selects and configures a strategy.
type Config struct {
	Strategy   Strategy
	MaxPhrases int
	OpenAI     OpenAIConfig
}

// ParseStrategy parses a strategy name. The empty string selects heuristic.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategyHeuristic, nil
	}
	for _, st := range Strategies {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("phrase: unknown strategy %q", s)
}

// New builds the extractor for cfg.Strategy. StrategyNone yields a nil
// Extractor, which callers treat as "no phrase extraction".
func New(cfg Config, normalizer *keyword.Normalizer, logger *slog.Logger) (Extractor, error) {
	if normalizer == nil {
		normalizer = keyword.NewNormalizer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPhrases <= 0 {
		cfg.MaxPhrases = DefaultMaxPhrases
	}

	switch cfg.Strategy {
	case StrategyNone:
		return nil, nil
	case StrategyHeuristic, "":
		return NewHeuristic(normalizer, cfg.MaxPhrases), nil
	case StrategyFrequency:
		return NewFrequency(normalizer, cfg.MaxPhrases), nil
	case StrategyOpenAI:
		cfg.OpenAI.MaxPhrases = cfg.MaxPhrases
		ext, err := NewOpenAI(cfg.OpenAI, logger)
		if err != nil {
			return nil, err
		}
		return ext, nil
	default:
		return nil, fmt.Errorf("phrase: unknown strategy %q", cfg.Strategy)
	}
}

// phraseList collects phrases in first-seen order, ignoring case duplicates,
// up to a limit.
type phraseList struct {
	limit int
	seen  map[string]struct{}
	out   []string
}

func newPhraseList(limit int) *phraseList {
	return &phraseList{limit: limit, seen: make(map[string]struct{})}
}

func (p *phraseList) add(phrase string) {
	if p.full() {
		return
	}
	key := strings.ToLower(phrase)
	if _, dup := p.seen[key]; dup {
		return
	}
	p.seen[key] = struct{}{}
	p.out = append(p.out, phrase)
}

func (p *phraseList) full() bool {
	return p.limit > 0 && len(p.out) >= p.limit
}
