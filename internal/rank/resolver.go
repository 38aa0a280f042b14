package rank

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/keyrank/internal/metrics"
	"github.com/FranksOps/keyrank/internal/model"
	"github.com/FranksOps/keyrank/internal/serp"
)

// DefaultWindow is the number of top results inspected per keyword.
const DefaultWindow = 20

// ReasonTimeout is the LookupFailed reason recorded when the deadline passes
// before a keyword is resolved.
const ReasonTimeout = "timeout"

// Resolver finds the 1-based position of a domain in a keyword's results.
// It is safe for concurrent use if the provider is.
type Resolver struct {
	provider serp.Provider
	window   int
	logger   *slog.Logger
}

// NewResolver creates a Resolver. window <= 0 selects DefaultWindow.
func NewResolver(provider serp.Provider, window int, logger *slog.Logger) *Resolver {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: provider, window: window, logger: logger}
}

// Window returns the number of results inspected per keyword.
func (r *Resolver) Window() int {
	return r.window
}

// Resolve looks up keyword and reports where domain first appears. Provider
// failures are captured in the result; Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, keyword, domain string) model.RankResult {
	start := time.Now()
	res := r.resolve(ctx, keyword, domain)
	metrics.RecordRankLookup(res, time.Since(start))

	pos := 0
	if res.Position != nil {
		pos = *res.Position
	}
	r.logger.Debug("rank resolved",
		"keyword", keyword,
		"status", res.Status,
		"position", pos,
		"err", res.Error,
	)
	return res
}

func (r *Resolver) resolve(ctx context.Context, keyword, domain string) model.RankResult {
	if err := ctx.Err(); err != nil {
		return model.LookupFailed(keyword, ReasonTimeout)
	}

	results, err := r.provider.Search(ctx, keyword, r.window)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return model.LookupFailed(keyword, ReasonTimeout)
		}
		r.logger.Warn("rank lookup failed", "keyword", keyword, "err", err)
		return model.LookupFailed(keyword, err.Error())
	}

	if len(results) > r.window {
		results = results[:r.window]
	}
	matches := serp.URLs(results)

	needle := strings.ToLower(domain)
	for i, id := range matches {
		if strings.Contains(strings.ToLower(id), needle) {
			return model.Found(keyword, i+1, matches)
		}
	}
	return model.NotFound(keyword, matches)
}
