package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/FranksOps/keyrank/internal/metrics"
	"github.com/FranksOps/keyrank/pkg/ratelimit"
)

// customSearchPageSize is the API's maximum page size.
const customSearchPageSize = 10

// customSearchMaxStart is the highest start index the API accepts.
const customSearchMaxStart = 91

// CustomSearchConfig configures the Programmable Search Engine provider.
type CustomSearchConfig struct {
	APIKey string
	// EngineID is the search engine identifier (cx).
	EngineID string
	Language string
	// Endpoint overrides the API base URL.
	Endpoint string
	Limiter  *ratelimit.Limiter
	Logger   *slog.Logger
}

// CustomSearch queries the Custom Search JSON API, paging through results ten
// at a time.
type CustomSearch struct {
	svc      *customsearch.Service
	engineID string
	language string
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

// NewCustomSearch creates a Custom Search provider.
func NewCustomSearch(ctx context.Context, cfg CustomSearchConfig) (*CustomSearch, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("serp: custom search API key is required")
	}
	if cfg.EngineID == "" {
		return nil, errors.New("serp: custom search engine id is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("serp: create custom search service: %w", err)
	}

	return &CustomSearch{
		svc:      svc,
		engineID: cfg.EngineID,
		language: cfg.Language,
		limiter:  cfg.Limiter,
		logger:   cfg.Logger,
	}, nil
}

// Search implements Provider.
func (c *CustomSearch) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	results, err := c.search(ctx, query, limit)
	metrics.RecordSearch("customsearch", err)
	return results, err
}

func (c *CustomSearch) search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative: %d", limit)
	}

	results := make([]Result, 0, limit)
	for start := 1; len(results) < limit && start <= customSearchMaxStart; start += customSearchPageSize {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &SearchError{Provider: "customsearch", Query: query, Reason: "rate limiter", Err: err}
		}

		call := c.svc.Cse.List().
			Q(query).
			Cx(c.engineID).
			Num(int64(min(customSearchPageSize, limit-len(results)))).
			Start(int64(start)).
			Context(ctx)
		if c.language != "" {
			call = call.Hl(c.language)
		}

		page, err := call.Do()
		if err != nil {
			return nil, c.wrapError(ctx, query, err)
		}

		for _, item := range page.Items {
			results = append(results, Result{URL: item.Link, Title: item.Title})
		}
		if len(page.Items) < customSearchPageSize {
			break
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}
	c.logger.Debug("custom search results", "query", query, "count", len(results))
	return results, nil
}

func (c *CustomSearch) wrapError(ctx context.Context, query string, err error) error {
	se := &SearchError{Provider: "customsearch", Query: query, Reason: "request", Err: err}
	if ctx.Err() != nil {
		se.Reason = "timeout"
		return se
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests:
			se.Reason, se.Err = "quota exceeded", fmt.Errorf("%w: %s", ErrRateLimited, gerr.Message)
		case http.StatusForbidden:
			se.Reason = "forbidden"
		default:
			se.Reason = fmt.Sprintf("status %d", gerr.Code)
		}
	}
	return se
}
