// Package serp queries search engines for the ordered results of a keyword.
package serp

import (
	"context"
	"errors"
)

// Result is one organic search result.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Provider abstracts a search engine that returns ordered results for a
// query. Implementations may use scraping, official APIs, or other
// mechanisms. The limit parameter caps the number of results returned.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

var (
	// ErrRateLimited indicates the engine throttled the request.
	ErrRateLimited = errors.New("rate limited")
	// ErrBlocked indicates an anti-automation challenge page was served.
	ErrBlocked = errors.New("blocked by bot challenge")
)

// SearchError describes a failed provider query.
type SearchError struct {
	Provider string
	Query    string
	Reason   string
	Err      error
}

func (e *SearchError) Error() string {
	msg := e.Provider + " search " + `"` + e.Query + `"` + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// URLs returns the result identifiers in order.
func URLs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.URL
	}
	return out
}
