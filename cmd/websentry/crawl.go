package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/websentry/websentry/internal/auth"
	"github.com/websentry/websentry/internal/browser"
	"github.com/websentry/websentry/internal/config"
	"github.com/websentry/websentry/internal/crawler"
	"github.com/websentry/websentry/internal/database"
	"github.com/websentry/websentry/internal/download"
	"github.com/websentry/websentry/internal/fingerprint"
	weblog "github.com/websentry/websentry/internal/log"
	"github.com/websentry/websentry/internal/proxy"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a website and record every rendered page",
		Long: `Crawl renders pages of a website in a headless browser, following
internal links breadth-first up to the configured depth and page limits.

Every visited page is stored as a structured record: title, description,
full text, headings, links, media, JSON-LD blocks, a DOM skeleton and
downloadable files. A snapshot is taken per visit, and re-visits are
diffed against the previous capture into a typed change log.

Examples:
  # Crawl a site with defaults
  websentry crawl https://example.com

  # Bound the crawl and run four workers
  websentry crawl --max-pages 50 --max-depth 2 --workers 4 https://example.com

  # Rotate proxies from a file
  websentry crawl --proxy-file proxies.txt https://example.com

  # Use a custom configuration file
  websentry crawl -c myconfig.yaml https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("max-pages", "p", 0, "Maximum number of pages to store (overrides config)")
	cmd.Flags().IntP("max-depth", "d", -1, "Maximum link depth from the seed (overrides config)")
	cmd.Flags().IntP("workers", "w", 0, "Number of concurrent workers (overrides config)")
	cmd.Flags().StringP("base-dir", "b", "", "Base directory for database, screenshots and downloads")
	cmd.Flags().String("proxy-file", "", "Proxy list file, one URI per line (enables proxy rotation)")
	cmd.Flags().Bool("no-headless", false, "Run the browser with a visible window")
	cmd.Flags().Bool("no-downloads", false, "Skip downloading file assets")
	cmd.Flags().Bool("no-fingerprints", false, "Disable per-page fingerprint rotation")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyCrawlFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := weblog.NewCrawlLogger(cfg.Scraper.BaseDir, getVerboseFlag(cmd))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog() //nolint:errcheck // best-effort log flush on exit

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	db, err := database.Open(cfg.Scraper.BaseDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "path", db.Path())

	driver := browser.NewRodDriver(
		browser.WithHeadless(cfg.Features.HeadlessBrowser),
		browser.WithRodLogger(logger),
	)
	defer driver.Close()

	opts, err := buildCrawlOptions(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Features.UseAuthentication {
		manager := auth.NewSessionManager(driver, logger, cfg)
		state, authenticated := manager.Establish(ctx, args[0])
		if authenticated {
			opts = append(opts, crawler.WithSession(state))
		}
	}

	scheduler := crawler.NewScheduler(cfg, driver, db, logger, opts...)

	// First SIGINT asks workers to finish their current page; a second
	// one cancels outright.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, stopping after current pages...")
		scheduler.Stop()
		<-sigCh
		cancel()
	}()

	stored, err := scheduler.Run(ctx, args[0])
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Crawl complete: %d pages stored in %s\n",
		stored, cfg.Scraper.BaseDir)
	return nil
}

// buildCrawlOptions assembles the scheduler options the enabled features
// call for.
func buildCrawlOptions(cfg *config.Config, logger *slog.Logger) ([]crawler.Option, error) {
	var opts []crawler.Option

	if cfg.Features.UseProxies {
		pool, err := buildProxyPool(cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, crawler.WithProxyPool(pool))
	}

	if cfg.Features.UseFingerprinting {
		if err := fingerprint.ValidateLocales(); err != nil {
			return nil, fmt.Errorf("fingerprint locale pool: %w", err)
		}
		opts = append(opts, crawler.WithFingerprints(fingerprint.NewGenerator()))
	}

	if cfg.Features.DownloadFileAssets {
		opts = append(opts, crawler.WithDownloader(download.NewDownloader(logger, download.Options{
			MaxBytes:    cfg.MaxFileSizeBytes(),
			ChunkSize:   cfg.FileDownload.ChunkSize,
			Timeout:     cfg.FileDownload.Timeout.Std(),
			MaxRetries:  cfg.FileDownload.MaxRetries,
			Concurrency: cfg.Scraper.Concurrency,
		})))
	}

	return opts, nil
}

// buildProxyPool loads the configured proxy list. A proxy file that does not
// exist yet is not fatal: the crawl proceeds over direct connections with an
// empty pool. A malformed entry in an existing file still aborts.
func buildProxyPool(cfg *config.Config, logger *slog.Logger) (*proxy.Pool, error) {
	proxies, err := proxy.LoadFile(cfg.Proxy.FilePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("proxy file not found, crawling without proxies",
			"path", cfg.Proxy.FilePath)
		proxies = nil
	case err != nil:
		return nil, fmt.Errorf("failed to load proxy file: %w", err)
	}

	pool := proxy.NewPool(proxies,
		proxy.WithLogger(logger),
		proxy.WithSkipFailed(cfg.Proxy.SkipFailedProxies),
	)
	if pool.Len() > 0 {
		logger.Info("proxy rotation enabled", "proxies", pool.Len())
	}
	return pool, nil
}

// applyCrawlFlags overrides config values with explicitly set flags.
func applyCrawlFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("max-pages") {
		v, err := cmd.Flags().GetInt("max-pages")
		if err != nil {
			return err
		}
		cfg.Scraper.MaxPages = v
	}
	if cmd.Flags().Changed("max-depth") {
		v, err := cmd.Flags().GetInt("max-depth")
		if err != nil {
			return err
		}
		cfg.Scraper.MaxDepth = v
	}
	if cmd.Flags().Changed("workers") {
		v, err := cmd.Flags().GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Scraper.Concurrency = v
	}
	if cmd.Flags().Changed("base-dir") {
		v, err := cmd.Flags().GetString("base-dir")
		if err != nil {
			return err
		}
		cfg.Scraper.BaseDir = v
	}
	if cmd.Flags().Changed("proxy-file") {
		v, err := cmd.Flags().GetString("proxy-file")
		if err != nil {
			return err
		}
		cfg.Features.UseProxies = true
		cfg.Proxy.FilePath = v
	}
	if cmd.Flags().Changed("no-headless") {
		cfg.Features.HeadlessBrowser = false
	}
	if cmd.Flags().Changed("no-downloads") {
		cfg.Features.DownloadFileAssets = false
	}
	if cmd.Flags().Changed("no-fingerprints") {
		cfg.Features.UseFingerprinting = false
	}
	return nil
}

// loadConfig resolves and loads the configuration file. An explicitly given
// path must exist; otherwise a missing file just means defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			path = ""
		}
	}

	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return config.NewConfig(), nil
	}
	return config.Load(found)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}
