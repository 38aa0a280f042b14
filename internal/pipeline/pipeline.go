// Package pipeline drives one page analysis: metadata fetch, candidate
// collection and concurrent rank resolution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/keyrank/internal/keyword"
	"github.com/FranksOps/keyrank/internal/metrics"
	"github.com/FranksOps/keyrank/internal/model"
	"github.com/FranksOps/keyrank/internal/rank"
)

// Defaults for Config.
const (
	DefaultConcurrency = 5
	DefaultTimeout     = 2 * time.Minute
	saveTimeout        = 10 * time.Second
)

// ErrPageFetchFailed is returned when the page metadata cannot be retrieved.
var ErrPageFetchFailed = errors.New("page fetch failed")

// MetadataFetcher retrieves the raw SEO metadata of a page.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, url string) (model.PageMetadata, error)
}

// Resolver reports the rank of a domain for one keyword. It must not fail;
// lookup errors belong in the returned result.
type Resolver interface {
	Resolve(ctx context.Context, keyword, domain string) model.RankResult
}

// Store archives finished reports.
type Store interface {
	SaveReport(ctx context.Context, report *model.Report) error
}

// Config wires the collaborators of a Pipeline.
type Config struct {
	Fetcher   MetadataFetcher
	Collector *keyword.Collector
	Resolver  Resolver
	// Store is optional.
	Store Store
	// Concurrency bounds in-flight rank lookups (default 5).
	Concurrency int
	// Timeout bounds the rank phase (default 2m).
	Timeout time.Duration
	Logger  *slog.Logger
}

// Pipeline orchestrates page analyses. It holds no per-analysis state and is
// safe for concurrent use.
type Pipeline struct {
	fetcher     MetadataFetcher
	collector   *keyword.Collector
	resolver    Resolver
	store       Store
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// New validates cfg and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("pipeline: fetcher is nil")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("pipeline: resolver is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Collector == nil {
		cfg.Collector = keyword.NewCollector(keyword.CollectorConfig{Logger: cfg.Logger})
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Pipeline{
		fetcher:     cfg.Fetcher,
		collector:   cfg.Collector,
		resolver:    cfg.Resolver,
		store:       cfg.Store,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}, nil
}

// Analyze runs the full analysis for url. It fails only with
// ErrPageFetchFailed or rank.ErrInvalidURL; everything after candidate
// collection is best-effort and surfaces in the report instead.
func (p *Pipeline) Analyze(ctx context.Context, url string) (*model.Report, error) {
	start := time.Now()
	log := p.logger.With("url", url)

	meta, err := p.fetcher.FetchMetadata(ctx, url)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("page_fetch_failed").Inc()
		log.Warn("page fetch failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrPageFetchFailed, err)
	}

	domain, err := rank.ExtractDomain(url)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("invalid_url").Inc()
		return nil, fmt.Errorf("%w: %q", err, url)
	}

	set, degraded := p.collector.Collect(ctx, meta)
	candidates := set.Items()
	log.Debug("candidates collected", "domain", domain, "count", len(candidates))

	report := &model.Report{
		ID:         uuid.New().String(),
		SourceURL:  url,
		Domain:     domain,
		Metadata:   meta,
		Candidates: candidates,
		Rankings:   p.resolveAll(ctx, candidates, domain),
		StartedAt:  start.UTC(),
	}
	if degraded != nil {
		report.Degraded = append(report.Degraded, degraded.String())
	}
	report.Duration = time.Since(start)

	summary := report.Summarize()
	outcome := "ok"
	if summary.LookupFailed > 0 || degraded != nil {
		outcome = "partial"
	}
	metrics.AnalysesTotal.WithLabelValues(outcome).Inc()

	log.Info("analysis complete",
		"domain", domain,
		"candidates", len(candidates),
		"found", summary.Found,
		"not_found", summary.NotFound,
		"lookup_failed", summary.LookupFailed,
		"duration", report.Duration,
	)

	p.save(ctx, report)
	return report, nil
}

// resolveAll resolves every candidate with at most p.concurrency lookups in
// flight. Each worker writes only its own slot, so the result order matches
// the candidate order whatever the completion order. The rank phase ends at
// the deadline even when a provider ignores ctx: a lookup still running then
// is abandoned and its slot reported as a timeout.
func (p *Pipeline) resolveAll(ctx context.Context, candidates []model.Candidate, domain string) []model.RankResult {
	rankings := make([]model.RankResult, len(candidates))
	if len(candidates) == 0 {
		return rankings
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rankings[i] = p.resolveOne(ctx, c.Display, domain)
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range rankings {
		if r.Status == "" {
			rankings[i] = model.LookupFailed(candidates[i].Display, rank.ReasonTimeout)
		}
	}
	return rankings
}

// resolveOne runs a single lookup but returns no later than ctx's deadline.
// A result that arrives after the deadline is discarded.
func (p *Pipeline) resolveOne(ctx context.Context, keyword, domain string) model.RankResult {
	done := make(chan model.RankResult, 1)
	go func() {
		done <- p.resolver.Resolve(ctx, keyword, domain)
	}()

	select {
	case r := <-done:
		if ctx.Err() != nil && r.Status != model.StatusLookupFailed {
			return model.LookupFailed(keyword, rank.ReasonTimeout)
		}
		return r
	case <-ctx.Done():
		p.logger.Debug("rank lookup abandoned at deadline", "keyword", keyword)
		return model.LookupFailed(keyword, rank.ReasonTimeout)
	}
}

func (p *Pipeline) save(ctx context.Context, report *model.Report) {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if err := p.store.SaveReport(ctx, report); err != nil {
		p.logger.Error("failed to save report", "id", report.ID, "url", report.SourceURL, "err", err)
	}
}
