// Package main provides the entry point for the websentry CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for websentry.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "websentry",
		Short: "Browser-based website crawler with change tracking",
		Long: `websentry crawls websites through a real headless browser, so pages are
captured after JavaScript rendering. Every page is stored as a structured
record (title, headings, links, media, DOM skeleton, downloadable files)
in SQLite, and successive visits are diffed into a typed change log.

Crawls can rotate proxies and browser fingerprints per page, and can run
with an authenticated session.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .websentry.yaml in current or home directory)")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewChangesCmd())
	cmd.AddCommand(NewProxiesCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
