package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/keyrank/internal/bypass"
	"github.com/FranksOps/keyrank/internal/fingerprint"
	"github.com/FranksOps/keyrank/internal/metrics"
	"github.com/FranksOps/keyrank/pkg/httpclient"
	"github.com/FranksOps/keyrank/pkg/proxy"
	"github.com/FranksOps/keyrank/pkg/ratelimit"
	"github.com/FranksOps/keyrank/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// DefaultMaxBodyBytes caps how much of a response body is kept.
const DefaultMaxBodyBytes = 8 << 20

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout time.Duration
	// MaxRedirects bounds redirect following (0 = 10, negative = do not follow).
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
	MaxBodyBytes int64
}

// Response is the outcome of a single fetch. Error is non-empty when the
// fetch failed before a complete response was read.
type Response struct {
	ID           string
	URL          string
	FinalURL     string
	Method       string
	StatusCode   int
	Headers      map[string][]string
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string // e.g. "Cloudflare", "Akamai", "PerimeterX", "DataDome", "Google"
	CreatedAt    time.Time
	Error        string
}

// RequestOption customizes an outgoing request.
type RequestOption func(req *http.Request)

// WithHeader sets a request header, overriding the fetcher defaults.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// WithCookie attaches a cookie to the request.
func WithCookie(c *http.Cookie) RequestOption {
	return func(req *http.Request) {
		req.AddCookie(c)
	}
}

// Fetcher performs single URL fetches using the configured bypass strategies.
// It is safe for concurrent use.
type Fetcher struct {
	config    FetchConfig
	client    *httpclient.Client
	transport http.RoundTripper
}

// NewFetcher initializes a new Fetcher with the given configuration.
// By holding a single client across requests, cookie jars (if configured) persist for the lifetime of the Fetcher.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 10
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.ForBrowser(string(cfg.Fingerprint))
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// The proxy function reads the per-request proxy from the request context so
	// a single transport can rotate proxies without being rebuilt.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if val := req.Context().Value(proxyKey); val != nil {
			if u, ok := val.(*url.URL); ok {
				return u, nil
			}
		}
		if req.URL.Hostname() == "127.0.0.1" || req.URL.Hostname() == "localhost" {
			return nil, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{
		config:    cfg,
		client:    client,
		transport: transport,
	}, nil
}

// Fetch executes a GET request to the target URL, tracking the duration and
// capturing the outcome into a Response. Transport failures are reported in
// Response.Error; the returned error is reserved for future use and is
// currently always nil.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string, opts ...RequestOption) (*Response, error) {
	start := time.Now()
	result := &Response{
		ID:        uuid.New().String(),
		URL:       targetURL,
		Method:    http.MethodGet,
		CreatedAt: start.UTC(),
	}

	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			result.Error = fmt.Sprintf("rate limiter failed: %v", err)
			result.Duration = time.Since(start)
			return result, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		result.Duration = time.Since(start)
		return result, nil
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	req.Header.Set("User-Agent", f.config.UAPool.GetSequential())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Duration = time.Since(start)
		return result, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		result.Error = fmt.Sprintf("failed to read body: %v", err)
	}

	result.StatusCode = resp.StatusCode
	result.Headers = resp.Header
	result.Body = body
	result.FinalURL = targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}
	result.Duration = time.Since(start)

	result.DetectedBot, result.DetectionSrc = bypass.Analyze(&bypass.Response{
		StatusCode: result.StatusCode,
		Headers:    result.Headers,
		Body:       result.Body,
		FinalURL:   result.FinalURL,
	}, bypass.DefaultDetectors())

	// A challenged proxy is burned for the target just like an unreachable one.
	if activeProxy != nil {
		if result.DetectedBot {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		} else {
			_ = f.config.ProxyPool.MarkSuccess(activeProxy)
		}
	}

	return result, nil
}
