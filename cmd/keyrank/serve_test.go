package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/keyrank/internal/model"
	"github.com/FranksOps/keyrank/internal/pipeline"
	"github.com/FranksOps/keyrank/internal/rank"
	"github.com/FranksOps/keyrank/internal/storage/jsonbackend"
)

type stubAnalyzer struct {
	err error
	got []string
}

func (s *stubAnalyzer) Analyze(ctx context.Context, url string) (*model.Report, error) {
	s.got = append(s.got, url)
	if s.err != nil {
		return nil, s.err
	}
	return &model.Report{
		ID:        "r1",
		SourceURL: url,
		Domain:    "example.com",
		Metadata:  model.PageMetadata{Title: "Example <b>Widgets</b>"},
		Rankings:  []model.RankResult{model.Found("Example Widgets", 4, nil)},
		StartedAt: time.Now().UTC(),
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Form(t *testing.T) {
	t.Parallel()
	s := newServer(&stubAnalyzer{}, nil, testLogger())

	rec := do(t, s, http.MethodGet, "/", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `<form method="post" action="/">`) {
		t.Error("expected the submission form")
	}

	if rec := do(t, s, http.MethodGet, "/nope", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestServer_FormSubmit(t *testing.T) {
	t.Parallel()
	a := &stubAnalyzer{}
	s := newServer(a, nil, testLogger())

	form := url.Values{"url": {" https://example.com/ "}}.Encode()
	rec := do(t, s, http.MethodPost, "/", "application/x-www-form-urlencoded", form)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Keyword Rankings") || !strings.Contains(body, "Example Widgets") {
		t.Errorf("expected rendered report:\n%s", body)
	}
	if strings.Contains(body, "<b>Widgets</b>") {
		t.Error("page title was not escaped")
	}
	if len(a.got) != 1 || a.got[0] != "https://example.com/" {
		t.Errorf("unexpected analyzed urls %v", a.got)
	}
}

func TestServer_FormSubmitEmpty(t *testing.T) {
	t.Parallel()
	a := &stubAnalyzer{}
	s := newServer(a, nil, testLogger())

	rec := do(t, s, http.MethodPost, "/", "application/x-www-form-urlencoded", "url=")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if len(a.got) != 0 {
		t.Error("analyzer must not run without a url")
	}
}

func TestServer_FormSubmitFetchFailure(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("%w: %w", pipeline.ErrPageFetchFailed, fmt.Errorf("status 503"))
	s := newServer(&stubAnalyzer{err: err}, nil, testLogger())

	rec := do(t, s, http.MethodPost, "/", "application/x-www-form-urlencoded", "url=example.com")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "page fetch failed") {
		t.Error("expected error message on the page")
	}
}

func TestServer_APIAnalyze(t *testing.T) {
	t.Parallel()
	s := newServer(&stubAnalyzer{}, nil, testLogger())

	rec := do(t, s, http.MethodPost, "/api/analyze", "application/json", `{"url":"example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var body struct {
		Domain  string        `json:"domain"`
		Summary model.Summary `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Domain != "example.com" || body.Summary.BestPosition != 4 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestServer_APIAnalyzeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"bad json", nil, `{`, http.StatusBadRequest},
		{"missing url", nil, `{}`, http.StatusBadRequest},
		{"invalid url", fmt.Errorf("%w: %q", rank.ErrInvalidURL, "x"), `{"url":"x"}`, http.StatusBadRequest},
		{"fetch failed", pipeline.ErrPageFetchFailed, `{"url":"x"}`, http.StatusBadGateway},
		{"canceled", context.Canceled, `{"url":"x"}`, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(&stubAnalyzer{err: tt.err}, nil, testLogger())
			rec := do(t, s, http.MethodPost, "/api/analyze", "application/json", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			var e map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e["error"] == "" {
				t.Errorf("expected json error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestServer_Health(t *testing.T) {
	t.Parallel()
	s := newServer(&stubAnalyzer{}, nil, testLogger())

	rec := do(t, s, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusOK {
		t.Errorf("expected metrics endpoint, got %d", rec.Code)
	}
}

func TestServer_Reports(t *testing.T) {
	t.Parallel()

	if rec := do(t, newServer(&stubAnalyzer{}, nil, testLogger()), http.MethodGet, "/api/reports", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without storage, got %d", rec.Code)
	}

	store, err := jsonbackend.New(filepath.Join(t.TempDir(), "reports.ndjson"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	for _, domain := range []string{"example.com", "other.com"} {
		r := &model.Report{ID: domain, SourceURL: "https://" + domain, Domain: domain, StartedAt: time.Now().UTC()}
		if err := store.SaveReport(context.Background(), r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	s := newServer(&stubAnalyzer{}, store, testLogger())
	rec := do(t, s, http.MethodGet, "/api/reports?domain=example.com", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Reports []model.Report `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.Reports) != 1 || body.Reports[0].Domain != "example.com" {
		t.Errorf("unexpected reports %+v", body.Reports)
	}

	if rec := do(t, s, http.MethodGet, "/api/reports?since=yesterday", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad since, got %d", rec.Code)
	}
}
