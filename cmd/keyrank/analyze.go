package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FranksOps/keyrank/internal/metrics"
	"github.com/FranksOps/keyrank/internal/report"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Analyze a page and report its rank for each keyword candidate",
		Long: `Analyze fetches the page at <url>, builds keyword candidates from its
title, meta keywords and description phrases, and looks up the position of
the page's domain in the search results for each candidate.

A missing scheme defaults to https. Lookups that fail or time out are
reported as "lookup failed" without aborting the analysis.

Examples:
  # Text report on stdout
  keyrank analyze https://www.example.com/

  # Inspect the top 50 results with at most two lookups in flight
  keyrank analyze --window 50 --concurrency 2 example.com

  # Markdown report written to a file, archived in SQLite
  keyrank analyze --format markdown -o reports/example.md \
    --storage sqlite --dsn keyrank.db example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyzeCmd,
	}

	addAnalysisFlags(cmd)
	cmd.Flags().StringP("format", "f", "text", "Report format (text, json, html, markdown)")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().Int("metrics-port", 0, "Expose Prometheus metrics on this port while running (0 disables)")

	return cmd
}

// addAnalysisFlags registers the flags shared by analyze and serve. Their
// names are keys of config.FlagKeys.
func addAnalysisFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.DurationP("timeout", "t", 0, "Time budget for all rank lookups (default 2m)")
	f.Duration("fetch-timeout", 0, "Timeout for each HTTP request (default 30s)")
	f.String("fingerprint", "", "TLS fingerprint (chrome, firefox, safari, go, random)")
	f.String("proxy-file", "", "File with one proxy URL per line")
	f.Bool("respect-robots", false, "Skip pages disallowed by robots.txt")
	f.String("provider", "", "Search provider (google, customsearch)")
	f.IntP("window", "w", 0, "Number of search results inspected per keyword (default 20)")
	f.Int("concurrency", 0, "Maximum rank lookups in flight (default 5)")
	f.Float64("rps", 0, "Search requests per second (0 = unlimited)")
	f.String("language", "", "Search interface language, e.g. en")
	f.String("phrases", "", "Phrase extraction strategy (none, heuristic, frequency, openai)")
	f.Int("max-phrases", 0, "Maximum phrases taken from the description")
	f.Int("max-candidates", 0, "Maximum keyword candidates (0 = unlimited)")
	f.StringSlice("exclude", nil, "Extra terms never used as keywords")
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	formatName, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Port > 0 {
		srv := metrics.Start(cfg.Metrics.Port)
		defer func() { _ = srv.Stop(context.Background()) }()
		logger.Info("metrics listening", "port", cfg.Metrics.Port)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.pipeline.Analyze(ctx, args[0])
	if err != nil {
		return err
	}

	if output == "" {
		return report.Write(cmd.OutOrStdout(), format, rep)
	}
	return writeFile(output, func(w io.Writer) error {
		return report.Write(w, format, rep)
	})
}

// writeFile creates path, including missing parent directories, and fills it
// with write.
func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
