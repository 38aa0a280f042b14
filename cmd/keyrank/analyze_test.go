package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FranksOps/keyrank/internal/model"
)

// newSites starts a page server and a results page server that lists
// the page server first.
func newSites(t *testing.T, pageStatus int) (page, search *httptest.Server) {
	t.Helper()

	page = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(pageStatus)
		_, _ = w.Write([]byte(`<html><head><title>Acme Widgets</title></head><body></body></html>`))
	}))
	t.Cleanup(page.Close)

	search = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><div id="search">` +
			`<a href="` + page.URL + `/widgets"><h3>Acme</h3></a>` +
			`<a href="https://competitor.test/"><h3>Other</h3></a>` +
			`</div></body></html>`))
	}))
	t.Cleanup(search.Close)

	t.Setenv("KEYRANK_SEARCH_BASE_URL", search.URL)
	return page, search
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeCmd_JSON(t *testing.T) {
	page, _ := newSites(t, http.StatusOK)

	out, err := runRoot(t, "analyze", "--fingerprint", "go", "--rps", "0",
		"--log-level", "error", "--format", "json", page.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rep model.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("invalid json output: %v\n%s", err, out)
	}
	if len(rep.Rankings) != 1 {
		t.Fatalf("expected 1 ranking, got %+v", rep.Rankings)
	}
	r := rep.Rankings[0]
	if r.Keyword != "Acme Widgets" || r.Status != model.StatusFound || r.Position == nil || *r.Position != 1 {
		t.Errorf("unexpected ranking %+v", r)
	}
}

func TestAnalyzeCmd_OutputFile(t *testing.T) {
	page, _ := newSites(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "reports", "acme.md")

	out, err := runRoot(t, "analyze", "--fingerprint", "go", "--rps", "0",
		"--log-level", "error", "--format", "md", "-o", path, page.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "# keyrank report") {
		t.Errorf("unexpected report:\n%s", data)
	}
}

func TestAnalyzeCmd_ArchivesReport(t *testing.T) {
	page, _ := newSites(t, http.StatusOK)
	dsn := filepath.Join(t.TempDir(), "reports.ndjson")

	if _, err := runRoot(t, "analyze", "--fingerprint", "go", "--rps", "0",
		"--log-level", "error", "--storage", "json", "--dsn", dsn, page.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := runRoot(t, "history", "--storage", "json", "--dsn", dsn)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "kw=1 found=1 failed=0 best=#1") {
		t.Errorf("unexpected history:\n%s", out)
	}
}

func TestAnalyzeCmd_PageFetchFailed(t *testing.T) {
	page, _ := newSites(t, http.StatusInternalServerError)

	_, err := runRoot(t, "analyze", "--fingerprint", "go", "--log-level", "error", page.URL)
	if err == nil {
		t.Fatal("expected error for a failing page")
	}
	if !strings.Contains(err.Error(), "page fetch failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAnalyzeCmd_BadFormat(t *testing.T) {
	_, err := runRoot(t, "analyze", "--format", "pdf", "example.com")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}
