package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	weblog "github.com/websentry/websentry/internal/log"
	"github.com/websentry/websentry/internal/proxy"
)

// NewProxiesCmd creates the proxies command group.
func NewProxiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxies",
		Short: "Manage and test the proxy rotation pool",
	}

	cmd.AddCommand(newProxiesTestCmd())

	return cmd
}

// newProxiesTestCmd creates the proxies test subcommand.
func newProxiesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Probe every proxy in the pool and report reachability",
		Long: `Test fetches the configured test URL through each proxy in the pool
and reports whether the probe succeeded, with round-trip latency.

Credentials embedded in proxy URIs are masked in the output.

Examples:
  # Test the proxies from the configured file
  websentry proxies test

  # Test a specific proxy list
  websentry proxies test --proxy-file proxies.txt

  # Probe against a different URL
  websentry proxies test --test-url https://httpbin.org/ip`,
		RunE: runProxiesTestCmd,
	}

	cmd.Flags().String("proxy-file", "", "Proxy list file, one URI per line (overrides config)")
	cmd.Flags().String("test-url", "", "URL to fetch through each proxy (overrides config)")

	return cmd
}

// runProxiesTestCmd executes the proxies test subcommand.
func runProxiesTestCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	filePath := cfg.Proxy.FilePath
	if cmd.Flags().Changed("proxy-file") {
		filePath, err = cmd.Flags().GetString("proxy-file")
		if err != nil {
			return err
		}
	}
	if filePath == "" {
		return errors.New("no proxy file configured (use --proxy-file or set proxy.file_path)")
	}

	testURL := cfg.Proxy.TestURL
	if cmd.Flags().Changed("test-url") {
		testURL, err = cmd.Flags().GetString("test-url")
		if err != nil {
			return err
		}
	}

	proxies, err := proxy.LoadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to load proxy file: %w", err)
	}

	logger := weblog.NewLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	tester := proxy.NewTester(testURL,
		proxy.WithTestTimeout(cfg.Proxy.TestTimeout.Std()),
		proxy.WithTestConcurrency(cfg.Proxy.TestConcurrency),
		proxy.WithTestLogger(logger),
	)

	results, err := tester.TestAll(cmd.Context(), proxies)
	if err != nil {
		return fmt.Errorf("proxy test failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Testing %d proxies against %s\n\n", len(proxies), testURL)
	fmt.Fprintf(out, "  %-8s  %-10s  %s\n", "Status", "Latency", "Proxy")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	working := 0
	for _, result := range results {
		masked := weblog.MaskProxyURI(result.Proxy)
		if result.OK {
			working++
			fmt.Fprintf(out, "  %-8s  %-10s  %s\n", "OK", result.Latency.Round(time.Millisecond), masked)
		} else {
			fmt.Fprintf(out, "  %-8s  %-10s  %s (%s)\n", "FAILED", "-", masked, result.Error)
		}
	}

	fmt.Fprintf(out, "\n%d/%d proxies working\n", working, len(results))

	if working == 0 {
		return errors.New("no working proxies found")
	}
	return nil
}
