package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/websentry/websentry/internal/database"
	"github.com/websentry/websentry/internal/report"
	"github.com/websentry/websentry/internal/urlkey"
)

// NewChangesCmd creates the changes command.
// This command inspects the change history recorded for a tracked URL.
func NewChangesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes [url]",
		Short: "Show recorded changes for a tracked URL",
		Long: `Changes displays the snapshot history and detected differences for a
URL that has been crawled more than once.

Each re-visit is diffed against the previous capture: title, description
and body text changes, header count shifts, and added or removed links,
images and downloadable files. This command renders that history as a
report.

Examples:
  # Show the change report for a page
  websentry changes https://example.com/pricing

  # List the snapshot history for a page
  websentry changes --list https://example.com/pricing

  # Only include changes detected since a date
  websentry changes --since "2025-01-01" https://example.com/pricing

  # Output the report in JSON or Markdown
  websentry changes --json https://example.com/pricing
  websentry changes --markdown https://example.com/pricing

  # List all tracked URLs in the database
  websentry changes --list-urls`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChangesCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List snapshot history for the specified URL")
	cmd.Flags().BoolP("list-urls", "L", false,
		"List all tracked URLs in the database")

	// Filter flags
	cmd.Flags().StringP("since", "s", "",
		"Only include changes detected since this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output the report in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the report in Markdown format")

	return cmd
}

// runChangesCmd executes the changes command.
func runChangesCmd(cmd *cobra.Command, args []string) error {
	// Handle --list-urls flag first (requires database but no URL)
	listURLs, err := cmd.Flags().GetBool("list-urls")
	if err != nil {
		return err
	}

	// Validate arguments before opening database (unless --list-urls)
	var pageURL string
	if !listURLs {
		if len(args) == 0 {
			return errors.New("a URL is required (use --list-urls to see tracked URLs)")
		}

		pageURL, err = urlkey.Canonicalize(args[0])
		if err != nil {
			return fmt.Errorf("invalid URL: %w", err)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.Scraper.BaseDir, database.Options{
		CreateIfNotExists: false,
		EnableWAL:         true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listURLs {
		return listTrackedURLs(ctx, cmd, db)
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listSnapshotHistory(ctx, cmd, db, pageURL)
	}

	return writeChangeReport(ctx, cmd, db, pageURL)
}

// listTrackedURLs lists all URLs that have snapshots in the database.
func listTrackedURLs(ctx context.Context, cmd *cobra.Command, db *database.ScrapeDB) error {
	urls, err := db.ListTrackedURLs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tracked URLs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(urls) == 0 {
		fmt.Fprintln(out, "No tracked URLs found in the database.")
		fmt.Fprintln(out, "\nUse 'websentry crawl <url>' to crawl a website.")
		return nil
	}

	fmt.Fprintf(out, "Tracked URLs (%d):\n", len(urls))
	for _, site := range groupBySite(urls) {
		fmt.Fprintf(out, "\n%s:\n", site.domain)
		for _, u := range site.urls {
			fmt.Fprintf(out, "  • %s\n", u)
		}
	}
	fmt.Fprintln(out, "\nUse 'websentry changes <url>' to see the change history for a page.")

	return nil
}

// site is one registrable domain with its tracked URLs.
type site struct {
	domain string
	urls   []string
}

// groupBySite groups tracked URLs by registrable domain, preserving the
// listing order of both domains and URLs.
func groupBySite(urls []string) []site {
	index := make(map[string]int)
	var sites []site
	for _, u := range urls {
		host, err := urlkey.Host(u)
		if err != nil {
			host = u
		}
		domain := urlkey.RegistrableDomain(host)
		i, ok := index[domain]
		if !ok {
			i = len(sites)
			index[domain] = i
			sites = append(sites, site{domain: domain})
		}
		sites[i].urls = append(sites[i].urls, u)
	}
	return sites
}

// listSnapshotHistory lists all snapshots recorded for a URL.
func listSnapshotHistory(ctx context.Context, cmd *cobra.Command, db *database.ScrapeDB, pageURL string) error {
	snapshots, err := db.ListSnapshots(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(snapshots) == 0 {
		fmt.Fprintf(out, "No snapshots found for %s\n", pageURL)
		fmt.Fprintln(out, "\nUse 'websentry crawl' to capture this page.")
		return nil
	}

	fmt.Fprintf(out, "Snapshot history for %s (%d captures):\n\n", pageURL, len(snapshots))
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %-7s  %-7s  %s\n",
		"ID", "Date", "Headers", "Links", "Media", "Title")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 75))

	for _, snap := range snapshots {
		title := snap.Title
		if len(title) > 30 {
			title = title[:27] + "..."
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-8d  %-7d  %-7d  %s\n",
			snap.ID,
			snap.TakenAt.Format("2006-01-02 15:04:05"),
			snap.HeaderCount,
			snap.LinkCount,
			snap.MediaCount,
			title,
		)
	}

	fmt.Fprintln(out, "\nUse 'websentry changes <url>' to see the detected differences.")

	return nil
}

// writeChangeReport assembles and renders the change report for a URL.
func writeChangeReport(ctx context.Context, cmd *cobra.Command, db *database.ScrapeDB, pageURL string) error {
	var since time.Time
	sinceDate, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}
	if sinceDate != "" {
		since, err = time.Parse("2006-01-02", sinceDate)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
	}

	snapshots, err := db.ListSnapshots(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return fmt.Errorf("no snapshots found for %s", pageURL)
	}

	changes, err := db.ListChanges(ctx, pageURL, since)
	if err != nil {
		return fmt.Errorf("failed to list changes: %w", err)
	}

	changeReport := report.NewChangeReport(pageURL, snapshots, changes)

	writer, err := selectWriter(cmd)
	if err != nil {
		return err
	}
	if _, err := writer.Write(changeReport); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// selectWriter picks the report writer matching the output format flags.
func selectWriter(cmd *cobra.Command) (report.Writer, error) {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return report.NewVersionedJSONWriter(out, getVersion(), report.WithPrettyPrint()), nil
	case markdownOutput:
		return report.NewMarkdownWriter(out), nil
	default:
		return report.NewTextWriter(out, report.WithVerbose(getVerboseFlag(cmd))), nil
	}
}
