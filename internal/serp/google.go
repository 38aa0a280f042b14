package serp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"github.com/FranksOps/keyrank/internal/metrics"
	"github.com/FranksOps/keyrank/internal/scraper"
	"github.com/FranksOps/keyrank/pkg/ratelimit"
)

// DefaultGoogleBaseURL is the Google web search origin.
const DefaultGoogleBaseURL = "https://www.google.com"

// maxGoogleNum is the largest page size the results page honours.
const maxGoogleNum = 100

// GoogleConfig configures GoogleScrape.
type GoogleConfig struct {
	// BaseURL overrides the search origin (default DefaultGoogleBaseURL).
	BaseURL string
	// Language sets the hl parameter, e.g. "en".
	Language string
	// Limiter paces queries; nil means unlimited.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// pageFetcher is the part of *scraper.Fetcher GoogleScrape needs.
type pageFetcher interface {
	Fetch(ctx context.Context, targetURL string, opts ...scraper.RequestOption) (*scraper.Response, error)
}

// GoogleScrape fetches and parses Google's HTML results page.
type GoogleScrape struct {
	fetcher  pageFetcher
	baseURL  string
	language string
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

// NewGoogleScrape creates a scraping provider that sends requests through fetcher.
func NewGoogleScrape(fetcher *scraper.Fetcher, cfg GoogleConfig) *GoogleScrape {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GoogleScrape{
		fetcher:  fetcher,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		language: cfg.Language,
		limiter:  cfg.Limiter,
		logger:   cfg.Logger,
	}
}

// Search implements Provider.
func (g *GoogleScrape) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	results, err := g.search(ctx, query, limit)
	metrics.RecordSearch("google", err)
	return results, err
}

func (g *GoogleScrape) search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative: %d", limit)
	}
	if limit == 0 {
		return []Result{}, nil
	}
	fail := func(reason string, err error) error {
		return &SearchError{Provider: "google", Query: query, Reason: reason, Err: err}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fail("rate limiter", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("num", strconv.Itoa(min(limit, maxGoogleNum)))
	if g.language != "" {
		params.Set("hl", g.language)
	}
	target := g.baseURL + "/search?" + params.Encode()

	res, err := g.fetcher.Fetch(ctx, target,
		scraper.WithCookie(&http.Cookie{Name: "CONSENT", Value: "YES+"}),
	)
	if err == nil && res.Error != "" {
		err = errors.New(res.Error)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, fail("timeout", ctx.Err())
		}
		return nil, fail("network", err)
	}

	switch {
	case res.DetectedBot:
		g.logger.Warn("search engine served a challenge", "query", query, "source", res.DetectionSrc)
		return nil, fail(res.DetectionSrc, ErrBlocked)
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, fail("status 429", ErrRateLimited)
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, fail("status "+strconv.Itoa(res.StatusCode), nil)
	}

	results, err := ParseGoogleResults(res.Body, limit)
	if err != nil {
		return nil, fail("parse", err)
	}
	g.logger.Debug("search results parsed", "query", query, "count", len(results))
	return results, nil
}

// ParseGoogleResults extracts organic result links from a results page in
// document order. Redirect links of the form /url?q=<target> are unwrapped;
// links back to Google itself are skipped.
func ParseGoogleResults(body []byte, limit int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	scope := doc.Find("#search")
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}

	var results []Result
	seen := make(map[string]struct{})
	scope.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link, ok := resultLink(s.AttrOr("href", ""))
		if !ok {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}

		title := strings.TrimSpace(s.Find("h3").First().Text())
		results = append(results, Result{URL: link, Title: title})
		return limit <= 0 || len(results) < limit
	})
	return results, nil
}

func resultLink(href string) (string, bool) {
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return "", false
		}
		q := u.Query()
		href = q.Get("q")
		if href == "" {
			href = q.Get("url")
		}
	}

	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	if isGoogleHost(u.Hostname()) {
		return "", false
	}
	return u.String(), true
}

// isGoogleHost reports whether host belongs to Google itself: any subdomain
// of a google.<public suffix> registrable domain or of a Google CDN.
func isGoogleHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, base := range []string{"googleusercontent.com", "gstatic.com"} {
		if host == base || strings.HasSuffix(host, "."+base) {
			return true
		}
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	return site == "google."+suffix
}
