package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FranksOps/keyrank/internal/model"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyrank_analyses_total",
			Help: "Total number of page analyses by outcome",
		},
		[]string{"outcome"},
	)

	PageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyrank_page_fetches_total",
			Help: "Total number of page metadata fetches",
		},
		[]string{"domain", "status", "detection_src"},
	)

	PageFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyrank_page_fetch_duration_seconds",
			Help:    "Duration of page metadata fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	RankLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyrank_rank_lookups_total",
			Help: "Total number of keyword rank lookups by status",
		},
		[]string{"status"},
	)

	RankLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keyrank_rank_lookup_duration_seconds",
			Help:    "Duration of keyword rank lookups in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyrank_search_requests_total",
			Help: "Total number of search provider requests",
		},
		[]string{"provider", "outcome"},
	)

	PhraseExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyrank_phrase_extractions_total",
			Help: "Total number of phrase extraction attempts",
		},
		[]string{"outcome"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyrank_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)
)

// RecordPageFetch updates the page fetch metrics. status is the HTTP status
// code as text, or "error" when no response was received.
func RecordPageFetch(domain, status, detectionSrc string, d time.Duration) {
	PageFetchesTotal.WithLabelValues(domain, status, detectionSrc).Inc()
	PageFetchDuration.WithLabelValues(domain).Observe(d.Seconds())
}

// RecordRankLookup updates the rank lookup metrics for one resolved keyword.
func RecordRankLookup(res model.RankResult, d time.Duration) {
	RankLookupsTotal.WithLabelValues(string(res.Status)).Inc()
	RankLookupDuration.Observe(d.Seconds())
}

// RecordSearch counts one provider request.
func RecordSearch(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SearchRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// Handler exposes the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "port", port, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
