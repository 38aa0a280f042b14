package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/keyrank/internal/metrics"
	"github.com/FranksOps/keyrank/internal/model"
	"github.com/FranksOps/keyrank/internal/pipeline"
	"github.com/FranksOps/keyrank/internal/rank"
	"github.com/FranksOps/keyrank/internal/report"
	"github.com/FranksOps/keyrank/internal/storage"
)

const maxRequestBody = 64 << 10

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis form and JSON API over HTTP",
		Long: `Serve starts a web server with:

  GET  /              URL submission form
  POST /              analyze the submitted url and render an HTML report
  POST /api/analyze   analyze {"url": "..."} and return the JSON report
  GET  /api/reports   archived reports (requires --storage)
  GET  /healthz       liveness probe
  GET  /metrics       Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addAnalysisFlags(cmd)
	cmd.Flags().String("addr", ":8080", "HTTP listen address")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	httpServer := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           newServer(a.pipeline, a.store, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "err", err)
		}
	}()

	logger.Info("keyrank listening", "addr", cfg.Serve.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// analyzer is the part of the pipeline the server needs.
type analyzer interface {
	Analyze(ctx context.Context, url string) (*model.Report, error)
}

// server exposes the pipeline over HTTP.
type server struct {
	analyzer analyzer
	store    storage.Backend
	logger   *slog.Logger
	mux      *http.ServeMux
}

// newServer wires handlers onto a mux. store may be nil.
func newServer(a analyzer, store storage.Backend, logger *slog.Logger) *server {
	s := &server{
		analyzer: a,
		store:    store,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleForm)
	s.mux.HandleFunc("POST /{$}", s.handleFormSubmit)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /api/reports", s.handleReports)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *server) handleForm(w http.ResponseWriter, _ *http.Request) {
	s.renderPage(w, http.StatusOK, report.Page{ShowForm: true})
}

func (s *server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	target := strings.TrimSpace(r.FormValue("url"))
	page := report.Page{ShowForm: true, URL: target}

	if target == "" {
		page.Error = "Please enter a URL."
		s.renderPage(w, http.StatusBadRequest, page)
		return
	}

	rep, err := s.analyzer.Analyze(r.Context(), target)
	if err != nil {
		status, msg := analyzeError(err)
		page.Error = msg
		s.renderPage(w, status, page)
		return
	}
	page.Report = rep
	s.renderPage(w, http.StatusOK, page)
}

type analyzeRequest struct {
	URL string `json:"url"`
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload: "+err.Error())
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	rep, err := s.analyzer.Analyze(r.Context(), req.URL)
	if err != nil {
		status, msg := analyzeError(err)
		writeError(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := report.WriteJSON(w, rep); err != nil {
		s.logger.Error("write report", "err", err)
	}
}

func (s *server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errNoStorage.Error())
		return
	}
	q := r.URL.Query()
	filter := storage.Filter{
		URL:    q.Get("url"),
		Domain: q.Get("domain"),
		Limit:  20,
	}
	if v := q.Get("since"); v != "" {
		t, err := parseSince(v, time.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Since = &t
	}

	reports, err := s.store.QueryReports(r.Context(), filter)
	if err != nil {
		s.logger.Error("query reports", "err", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := report.WriteHistoryJSON(w, reports); err != nil {
		s.logger.Error("write history", "err", err)
	}
}

func (s *server) renderPage(w http.ResponseWriter, status int, page report.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := report.WriteHTMLPage(w, page); err != nil {
		s.logger.Error("render page", "err", err)
	}
}

// analyzeError maps an Analyze failure to a status code and message.
func analyzeError(err error) (int, string) {
	switch {
	case errors.Is(err, rank.ErrInvalidURL):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pipeline.ErrPageFetchFailed):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "analysis canceled"
	}
	return http.StatusInternalServerError, err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
