package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyrank",
		Short: "Find the search rank of a page for its own keywords",
		Long: `keyrank reads the title, meta description and meta keywords of a page,
derives candidate keywords from them, and looks up where the page's domain
appears in search results for each candidate.

Settings come from built-in defaults, an optional YAML file (--config),
KEYRANK_* environment variables (e.g. KEYRANK_SEARCH_WINDOW=50) and flags,
in increasing order of precedence.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file path (YAML)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	cmd.PersistentFlags().String("storage", "none", "Report archive backend (none, sqlite, postgres, json, csv)")
	cmd.PersistentFlags().String("dsn", "", "Report archive location (file path or postgres DSN)")

	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
