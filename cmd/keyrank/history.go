package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/keyrank/internal/report"
	"github.com/FranksOps/keyrank/internal/storage"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived analysis reports",
		Long: `History lists reports saved by earlier analyze or serve runs, newest
first, followed by aggregate counts.

Examples:
  keyrank history --storage sqlite --dsn keyrank.db
  keyrank history --storage json --dsn reports.ndjson --domain example.com --since 168h
  keyrank history --storage sqlite --dsn keyrank.db --since 2026-01-01 --format json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("url", "", "Only reports for this exact URL")
	cmd.Flags().String("domain", "", "Only reports for this domain")
	cmd.Flags().String("since", "", "Only reports started after this time (duration like 24h, or YYYY-MM-DD)")
	cmd.Flags().IntP("limit", "n", 20, "Maximum reports listed (0 = all)")
	cmd.Flags().Int("offset", 0, "Skip this many reports")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	filter, err := historyFilter(cmd, time.Now())
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported history format %q", format)
	}

	store, err := openStorage(cmd.Context(), cfg.Storage)
	if err != nil {
		return err
	}
	if store == nil {
		return errNoStorage
	}
	defer store.Close()

	reports, err := store.QueryReports(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if format == "json" {
		return report.WriteHistoryJSON(cmd.OutOrStdout(), reports)
	}
	return report.WriteHistoryText(cmd.OutOrStdout(), reports)
}

func historyFilter(cmd *cobra.Command, now time.Time) (storage.Filter, error) {
	var f storage.Filter
	var err error

	if f.URL, err = cmd.Flags().GetString("url"); err != nil {
		return f, err
	}
	if f.Domain, err = cmd.Flags().GetString("domain"); err != nil {
		return f, err
	}
	if f.Limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return f, err
	}
	if f.Offset, err = cmd.Flags().GetInt("offset"); err != nil {
		return f, err
	}

	since, err := cmd.Flags().GetString("since")
	if err != nil {
		return f, err
	}
	if since != "" {
		t, err := parseSince(since, now)
		if err != nil {
			return f, err
		}
		f.Since = &t
	}
	return f, nil
}

// parseSince accepts a look-back duration, a date or an RFC 3339 timestamp.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --since %q: want a duration (24h), a date (2006-01-02) or RFC 3339", s)
}
