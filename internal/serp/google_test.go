package serp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FranksOps/keyrank/internal/fingerprint"
	"github.com/FranksOps/keyrank/internal/scraper"
)

const googlePage = `<html><body>
<a href="https://www.google.com/preferences">Settings</a>
<div id="search">
  <div class="g"><a href="/url?q=https://other.com/a&amp;sa=U"><h3>Other</h3></a></div>
  <div class="g"><a href="https://example.com/b"><h3>Example B</h3></a></div>
  <div class="g"><a href="https://example.com/b">duplicate</a></div>
  <div class="g"><a href="https://maps.google.com/x">Maps</a></div>
  <div class="g"><a href="/search?q=related">Related</a></div>
  <div class="g"><a href="https://third.com/c"><h3>Third</h3></a></div>
</div>
</body></html>`

func newTestFetcher(t *testing.T) *scraper.Fetcher {
	t.Helper()
	f, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return f
}

func TestParseGoogleResults(t *testing.T) {
	results, err := ParseGoogleResults([]byte(googlePage), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"https://other.com/a", "https://example.com/b", "https://third.com/c"}
	got := URLs(results)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if results[1].Title != "Example B" {
		t.Errorf("expected title 'Example B', got %q", results[1].Title)
	}
}

func TestParseGoogleResults_Limit(t *testing.T) {
	results, _ := ParseGoogleResults([]byte(googlePage), 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestGoogleScrape_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != "car accident lawyer" {
			t.Errorf("unexpected query %q", q)
		}
		if n := r.URL.Query().Get("num"); n != "20" {
			t.Errorf("expected num=20, got %q", n)
		}
		if r.URL.Query().Get("hl") != "en" {
			t.Errorf("expected hl=en")
		}
		_, _ = w.Write([]byte(googlePage))
	}))
	defer ts.Close()

	g := NewGoogleScrape(newTestFetcher(t), GoogleConfig{BaseURL: ts.URL, Language: "en"})
	results, err := g.Search(context.Background(), "car accident lawyer", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestGoogleScrape_Blocked(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("Our systems have detected unusual traffic from your computer network."))
	}))
	defer ts.Close()

	g := NewGoogleScrape(newTestFetcher(t), GoogleConfig{BaseURL: ts.URL})
	_, err := g.Search(context.Background(), "x", 10)

	var se *SearchError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SearchError, got %v", err)
	}
	if !errors.Is(err, ErrBlocked) {
		t.Errorf("expected ErrBlocked, got %v", err)
	}
}

func TestGoogleScrape_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	g := NewGoogleScrape(newTestFetcher(t), GoogleConfig{BaseURL: ts.URL})
	_, err := g.Search(context.Background(), "x", 10)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestIsGoogleHost(t *testing.T) {
	tests := map[string]bool{
		"www.google.com":            true,
		"maps.google.com":           true,
		"google.co.uk":              true,
		"www.google.com.au":         true,
		"WWW.GOOGLE.DE.":            true,
		"lh3.googleusercontent.com": true,
		"www.gstatic.com":           true,
		"google.example.org":        false,
		"shop.google.example.com":   false,
		"mygoogle.com":              false,
		"example.com":               false,
		"127.0.0.1":                 false,
	}
	for host, want := range tests {
		if got := isGoogleHost(host); got != want {
			t.Errorf("isGoogleHost(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestParseGoogleResults_KeepsSitesNamedGoogle(t *testing.T) {
	page := `<div id="search">
  <div class="g"><a href="https://support.google.com/websearch"><h3>Help</h3></a></div>
  <div class="g"><a href="https://google.example.org/about"><h3>Google Fan Club</h3></a></div>
</div>`
	results, err := ParseGoogleResults([]byte(page), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := URLs(results)
	if len(got) != 1 || got[0] != "https://google.example.org/about" {
		t.Errorf("expected only the non-Google site, got %v", got)
	}
}

type failingFetcher struct {
	err error
}

func (f failingFetcher) Fetch(ctx context.Context, targetURL string, opts ...scraper.RequestOption) (*scraper.Response, error) {
	return nil, f.err
}

func TestGoogleScrape_FetchErrorIsNetworkFailure(t *testing.T) {
	g := NewGoogleScrape(newTestFetcher(t), GoogleConfig{})
	g.fetcher = failingFetcher{err: errors.New("dial tcp: connection refused")}

	_, err := g.Search(context.Background(), "x", 10)
	var se *SearchError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SearchError, got %v", err)
	}
	if se.Reason != "network" {
		t.Errorf("expected reason network, got %q", se.Reason)
	}
}

func TestGoogleScrape_NegativeLimit(t *testing.T) {
	g := NewGoogleScrape(newTestFetcher(t), GoogleConfig{})
	if _, err := g.Search(context.Background(), "x", -1); err == nil {
		t.Error("expected error for negative limit")
	}
}
