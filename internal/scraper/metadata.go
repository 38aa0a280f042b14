package scraper

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
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/keyrank/internal/metrics"
	"github.com/FranksOps/keyrank/internal/model"
)

// ErrDisallowed is wrapped by FetchError when robots.txt forbids the page.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// FetchError reports why page metadata could not be retrieved.
type FetchError struct {
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	msg := "fetch " + e.URL + ": " + e.Reason
	if e.StatusCode != 0 {
		msg += " (status " + strconv.Itoa(e.StatusCode) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MetadataConfig configures a MetadataFetcher.
type MetadataConfig struct {
	// RespectRobots checks robots.txt before fetching the page.
	RespectRobots bool
	// RobotsUserAgent is matched against robots.txt groups (default "*").
	RobotsUserAgent string
	Logger          *slog.Logger
}

// MetadataFetcher retrieves a page and extracts its title, meta description
// and meta keywords.
type MetadataFetcher struct {
	fetcher *Fetcher
	get     func(ctx context.Context, targetURL string, opts ...RequestOption) (*Response, error)
	auditor *RobotsTxtAuditor
	ua      string
	logger  *slog.Logger
}

// NewMetadataFetcher wraps fetcher.
func NewMetadataFetcher(fetcher *Fetcher, cfg MetadataConfig) *MetadataFetcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RobotsUserAgent == "" {
		cfg.RobotsUserAgent = "*"
	}

	m := &MetadataFetcher{
		fetcher: fetcher,
		get:     fetcher.Fetch,
		ua:      cfg.RobotsUserAgent,
		logger:  cfg.Logger,
	}
	if cfg.RespectRobots {
		m.auditor = NewRobotsTxtAuditor(fetcher, cfg.Logger)
	}
	return m
}

// FetchMetadata fetches rawURL and parses its metadata. A missing scheme
// defaults to https. Every failure is returned as a *FetchError.
func (m *MetadataFetcher) FetchMetadata(ctx context.Context, rawURL string) (model.PageMetadata, error) {
	target, host, err := normalizeTarget(rawURL)
	if err != nil {
		return model.PageMetadata{}, &FetchError{URL: rawURL, Reason: "invalid url", Err: err}
	}

	if m.auditor != nil {
		allowed, err := m.auditor.IsAllowed(ctx, target, m.ua)
		if err == nil && !allowed {
			m.logger.Info("robots.txt disallows page", "url", target)
			return model.PageMetadata{}, &FetchError{URL: target, Reason: "blocked", Err: ErrDisallowed}
		}
	}

	res, err := m.get(ctx, target)
	if err == nil && res.Error != "" {
		err = errors.New(res.Error)
	}
	if err != nil {
		var elapsed time.Duration
		if res != nil {
			elapsed = res.Duration
		}
		metrics.RecordPageFetch(host, "error", "", elapsed)
		if ctx.Err() != nil {
			return model.PageMetadata{}, &FetchError{URL: target, Reason: "timeout", Err: ctx.Err()}
		}
		return model.PageMetadata{}, &FetchError{URL: target, Reason: "network error", Err: err}
	}

	metrics.RecordPageFetch(host, strconv.Itoa(res.StatusCode), res.DetectionSrc, res.Duration)

	if res.DetectedBot {
		m.logger.Warn("bot challenge on page fetch", "url", target, "source", res.DetectionSrc)
		return model.PageMetadata{}, &FetchError{
			URL:        target,
			StatusCode: res.StatusCode,
			Reason:     "bot challenge (" + res.DetectionSrc + ")",
		}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return model.PageMetadata{}, &FetchError{
			URL:        target,
			StatusCode: res.StatusCode,
			Reason:     http.StatusText(res.StatusCode),
		}
	}

	meta, err := ParseMetadata(res.Body)
	if err != nil {
		return model.PageMetadata{}, &FetchError{URL: target, StatusCode: res.StatusCode, Reason: "parse html", Err: err}
	}

	m.logger.Debug("page metadata fetched",
		"url", target,
		"status", res.StatusCode,
		"duration", res.Duration,
		"has_description", meta.Description != "",
		"has_keywords", meta.RawKeywords != "",
	)
	return meta, nil
}

// ParseMetadata extracts the document title, meta description and meta
// keywords from an HTML body. Meta names match case-insensitively and the
// Open Graph title and description are used when the standard tags are absent.
func ParseMetadata(body []byte) (model.PageMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return model.PageMetadata{}, fmt.Errorf("parse document: %w", err)
	}

	metaContent := func(attr, name string) string {
		var content string
		doc.Find("meta[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !strings.EqualFold(strings.TrimSpace(s.AttrOr(attr, "")), name) {
				return true
			}
			content = strings.TrimSpace(s.AttrOr("content", ""))
			return content == ""
		})
		return content
	}

	meta := model.PageMetadata{
		Title:       collapse(doc.Find("head title").First().Text()),
		Description: collapse(metaContent("name", "description")),
		RawKeywords: collapse(metaContent("name", "keywords")),
	}
	if meta.Title == "" {
		meta.Title = collapse(doc.Find("title").First().Text())
	}
	if meta.Title == "" {
		meta.Title = collapse(metaContent("property", "og:title"))
	}
	if meta.Description == "" {
		meta.Description = collapse(metaContent("property", "og:description"))
	}
	return meta, nil
}

func normalizeTarget(rawURL string) (string, string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", "", errors.New("empty url")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", "", errors.New("missing host")
	}
	return u.String(), u.Hostname(), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
