package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/websentry/websentry/internal/browser"
	"github.com/websentry/websentry/internal/config"
	"github.com/websentry/websentry/internal/database"
	"github.com/websentry/websentry/internal/diff"
	"github.com/websentry/websentry/internal/download"
	"github.com/websentry/websentry/internal/extract"
	"github.com/websentry/websentry/internal/fingerprint"
	"github.com/websentry/websentry/internal/model"
	"github.com/websentry/websentry/internal/proxy"
	"github.com/websentry/websentry/internal/urlkey"
)

const (
	// pausePollInterval is how often paused workers re-check the flags.
	pausePollInterval = 1 * time.Second

	// screenshotFileName is the capture written into each page folder.
	screenshotFileName = "screenshot.png"
)

// Scheduler drives a crawl: it owns the frontier, the visited set and the
// page counter, and runs a pool of workers that each visit one URL at a
// time through an isolated browser context.
//
// Design decision: one mutex guards frontier, visited set and counter
// together. A worker pops a URL and claims a page-budget slot in the same
// critical section, which is what makes the no-duplicate and page-cap
// guarantees hold without a second coordination round.
type Scheduler struct {
	cfg        *config.Config
	driver     browser.Driver
	db         *database.ScrapeDB
	pool       *proxy.Pool
	generator  *fingerprint.Generator
	downloader *download.Downloader
	engine     *diff.Engine
	logger     *slog.Logger

	// sessionState and authenticated come from the auth flow, read-only
	// for the duration of the crawl.
	sessionState  []byte
	authenticated bool

	mu       sync.Mutex
	frontier frontier
	visited  map[string]bool

	// scraped counts claimed page-budget slots; stored counts pages that
	// actually made it through persist. An abandoned URL consumes a slot
	// but is never stored.
	scraped int
	stored  int

	shouldStop atomic.Bool
	isPaused   atomic.Bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithProxyPool routes page loads through proxies from the pool.
func WithProxyPool(pool *proxy.Pool) Option {
	return func(s *Scheduler) {
		s.pool = pool
	}
}

// WithFingerprints applies a fresh fingerprint to every navigation attempt.
func WithFingerprints(g *fingerprint.Generator) Option {
	return func(s *Scheduler) {
		s.generator = g
	}
}

// WithDownloader enables file-asset downloads.
func WithDownloader(d *download.Downloader) Option {
	return func(s *Scheduler) {
		s.downloader = d
	}
}

// WithSession runs the crawl with an authenticated session blob.
func WithSession(state []byte) Option {
	return func(s *Scheduler) {
		s.sessionState = state
		s.authenticated = state != nil
	}
}

// NewScheduler creates a scheduler over the given driver and store.
func NewScheduler(cfg *config.Config, driver browser.Driver, db *database.ScrapeDB,
	logger *slog.Logger, opts ...Option,
) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		driver:  driver,
		db:      db,
		engine:  diff.NewEngine(),
		logger:  logger,
		visited: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stop asks every worker to exit at its next loop-head poll.
func (s *Scheduler) Stop() {
	s.shouldStop.Store(true)
}

// Pause blocks workers at their loop head until Resume or Stop.
func (s *Scheduler) Pause() {
	s.isPaused.Store(true)
}

// Resume releases paused workers.
func (s *Scheduler) Resume() {
	s.isPaused.Store(false)
}

// Run crawls from seedURL until the frontier drains, the page cap is
// reached, or Stop is called. It returns the number of pages stored.
func (s *Scheduler) Run(ctx context.Context, seedURL string) (int, error) {
	seed, err := urlkey.Canonicalize(seedURL)
	if err != nil {
		return 0, fmt.Errorf("invalid seed URL: %w", err)
	}

	extractor, err := extract.NewExtractor(seed, s.cfg.FileDownload.Extensions)
	if err != nil {
		return 0, fmt.Errorf("failed to build extractor: %w", err)
	}

	s.mu.Lock()
	s.frontier.push(entry{url: seed, depth: 0})
	s.visited[seed] = true
	s.mu.Unlock()

	s.logger.Info("crawl starting",
		slog.String("seed", seed),
		slog.Int("workers", s.cfg.Scraper.Concurrency),
		slog.Int("max_pages", s.cfg.Scraper.MaxPages),
		slog.Int("max_depth", s.cfg.Scraper.MaxDepth))

	g, gctx := errgroup.WithContext(ctx)
	for i := range s.cfg.Scraper.Concurrency {
		g.Go(func() error {
			s.runWorker(gctx, i, extractor)
			return nil
		})
	}
	err = g.Wait()

	s.mu.Lock()
	stored := s.stored
	s.mu.Unlock()
	s.logger.Info("crawl finished", slog.Int("pages", stored))
	return stored, err
}

// runWorker is the per-worker loop: poll control flags, claim work under
// the lock, visit, politeness-sleep, repeat.
func (s *Scheduler) runWorker(ctx context.Context, id int, extractor *extract.Extractor) {
	logger := s.logger.With(slog.Int("worker", id))
	for {
		if s.shouldStop.Load() || ctx.Err() != nil {
			return
		}
		for s.isPaused.Load() {
			if s.shouldStop.Load() || ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(pausePollInterval):
			}
		}

		s.mu.Lock()
		if s.scraped >= s.cfg.Scraper.MaxPages {
			s.mu.Unlock()
			return
		}
		e, ok := s.frontier.pop()
		if !ok {
			s.mu.Unlock()
			return
		}
		s.scraped++
		s.mu.Unlock()

		s.visit(ctx, logger, extractor, e)

		s.sleep(ctx, s.cfg.Delays.PostPageMin, s.cfg.Delays.PostPageMax)
	}
}

// visit runs the full pipeline for one URL: navigate with retries, scroll,
// extract, screenshot, download, persist, diff, discover. Failures are
// logged and the URL abandoned; a visit never takes the worker down.
func (s *Scheduler) visit(ctx context.Context, logger *slog.Logger, extractor *extract.Extractor, e entry) {
	logger.Info("visiting", slog.String("url", e.url), slog.Int("depth", e.depth))

	bctx, page, proxyUsed, fp, err := s.navigate(ctx, logger, e.url)
	if err != nil {
		logger.Error("abandoning url",
			slog.String("url", e.url), slog.String("error", err.Error()))
		return
	}
	defer bctx.Close()
	defer page.Close()

	if err := page.SmartScroll(ctx, s.cfg.Scraper.SmartScrollIterations,
		secondsToDuration(s.cfg.Delays.ScrollMin), secondsToDuration(s.cfg.Delays.ScrollMax)); err != nil {
		logger.Debug("smart scroll interrupted", slog.String("error", err.Error()))
	}

	html, err := page.HTML()
	if err != nil {
		logger.Error("failed to read page content",
			slog.String("url", e.url), slog.String("error", err.Error()))
		return
	}

	base := page.URL()
	if base == "" {
		base = e.url
	}
	extraction, err := extractor.Extract(base, html)
	if err != nil {
		logger.Error("extraction failed",
			slog.String("url", e.url), slog.String("error", err.Error()))
		return
	}

	pageDir := pageFolder(s.cfg.Scraper.BaseDir, e.url)
	if err := os.MkdirAll(pageDir, 0750); err != nil {
		logger.Error("failed to create page folder",
			slog.String("path", pageDir), slog.String("error", err.Error()))
		return
	}

	s.screenshot(logger, page, pageDir)

	var files []model.FileAsset
	if s.downloader != nil && len(extraction.FileLinks) > 0 {
		files, err = s.downloader.DownloadAll(ctx, pageDir, extraction.FileLinks)
		if err != nil {
			logger.Error("file downloads failed",
				slog.String("url", e.url), slog.String("error", err.Error()))
		}
	}

	record := &model.PageRecord{
		URL:            e.url,
		Title:          extraction.Title,
		Description:    extraction.Description,
		FullText:       extraction.BodyText,
		Depth:          e.depth,
		CapturedAt:     time.Now(),
		FolderPath:     pageDir,
		ProxyUsed:      proxyUsed,
		Fingerprint:    fp,
		Authenticated:  s.authenticated,
		Headings:       extraction.Headings,
		Links:          extraction.Links,
		Media:          extraction.Media,
		StructuredData: extraction.StructuredData,
		Skeleton:       extraction.Skeleton,
		Files:          files,
	}

	if err := s.persist(ctx, logger, record); err != nil {
		logger.Error("failed to persist page",
			slog.String("url", e.url), slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	s.stored++
	s.mu.Unlock()

	s.discover(logger, extraction.Links, e.depth)
}

// navigate acquires a proxy and fingerprint, opens a context and a page,
// and loads the URL with the typed-error retry policy. On success the
// caller owns the returned context and page; fpJSON is the fingerprint the
// successful attempt was made with.
func (s *Scheduler) navigate(ctx context.Context, logger *slog.Logger, url string) (_ browser.Context, _ browser.Page, proxyUsed, fpJSON string, _ error) {
	maxAttempts := s.cfg.Scraper.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, nil, "", "", ctx.Err()
		}

		proxyUsed = s.nextProxy()
		fpJSON = ""
		opts := browser.ContextOptions{
			SessionState: s.sessionState,
			Visible:      !s.cfg.Features.HeadlessBrowser,
		}
		if proxyUsed != model.ProxyDirect {
			opts.ProxyURI = proxyUsed
		}
		if s.generator != nil {
			fp := s.generator.Generate()
			opts.Fingerprint = &fp
			fpJSON = fp.JSON()
		}

		bctx, err := s.driver.NewContext(ctx, opts)
		if err != nil {
			lastErr = err
			s.waitRetry(ctx)
			continue
		}
		page, err := bctx.NewPage(ctx)
		if err != nil {
			bctx.Close()
			lastErr = err
			s.waitRetry(ctx)
			continue
		}

		err = page.Navigate(ctx, url, s.cfg.Timeouts.PageGoto.Std())
		if err == nil {
			return bctx, page, proxyUsed, fpJSON, nil
		}
		lastErr = err
		page.Close()
		bctx.Close()

		if s.proxyTainted(err, proxyUsed) {
			logger.Warn("proxy failed, rotating",
				slog.String("url", url),
				slog.String("error", err.Error()))
			s.pool.MarkFailed(proxyUsed)
			continue
		}
		logger.Warn("navigation failed, retrying",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		s.waitRetry(ctx)
	}
	return nil, nil, "", "", fmt.Errorf("navigation failed after %d attempts: %w", maxAttempts, lastErr)
}

// proxyTainted reports whether a navigation failure should be charged to
// the proxy. Proxy-kind errors always are; timeout and transport errors are
// only when the attempt actually went through a proxy.
func (s *Scheduler) proxyTainted(err error, proxyUsed string) bool {
	if s.pool == nil || proxyUsed == model.ProxyDirect {
		return false
	}
	var navErr *browser.NavigationError
	if !errors.As(err, &navErr) {
		return false
	}
	switch navErr.Kind {
	case browser.KindProxy, browser.KindTimeout, browser.KindTransport:
		return true
	default:
		return false
	}
}

// nextProxy returns the next pool proxy, or Direct when proxies are off or
// exhausted.
func (s *Scheduler) nextProxy() string {
	if s.pool == nil {
		return model.ProxyDirect
	}
	p, ok := s.pool.Next()
	if !ok {
		return model.ProxyDirect
	}
	return p
}

// persist stores the record, handling the re-visit path: a duplicate URL
// gets diffed against the stored capture, a snapshot either way.
func (s *Scheduler) persist(ctx context.Context, logger *slog.Logger, record *model.PageRecord) error {
	pageID, err := s.db.StorePage(ctx, record)
	if err == nil {
		snap := model.NewSnapshot(record)
		if _, err := s.db.InsertSnapshot(ctx, snap); err != nil {
			return err
		}
		logger.Info("first scrape recorded",
			slog.String("url", record.URL), slog.Int64("page_id", pageID))
		return nil
	}
	if !errors.Is(err, database.ErrDuplicate) {
		return err
	}

	// Re-visit: diff against what is stored, snapshot the new capture,
	// then refresh the page row so the next visit compares against it.
	prev, err := s.db.GetPageByURL(ctx, record.URL)
	if err != nil {
		return err
	}
	record.ID = pageID
	record.Depth = prev.Depth

	changes := s.engine.Compare(prev, record)

	prevSnap, err := s.db.PreviousSnapshot(ctx, record.URL, 0)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}

	snap := model.NewSnapshot(record)
	if _, err := s.db.InsertSnapshot(ctx, snap); err != nil {
		return err
	}

	for i := range changes {
		if prevSnap != nil {
			changes[i].PreviousSnapshotID = prevSnap.ID
		}
		changes[i].CurrentSnapshotID = snap.ID
		if _, err := s.db.InsertChange(ctx, &changes[i]); err != nil {
			return err
		}
	}
	if len(changes) > 0 {
		logger.Info("changes detected",
			slog.String("url", record.URL), slog.Int("count", len(changes)))
	}

	return s.db.RefreshPage(ctx, pageID, record)
}

// discover admits unvisited internal links to the frontier, bounded by the
// depth limit. Visited-set membership and the append happen in one critical
// section so no URL is admitted twice.
func (s *Scheduler) discover(logger *slog.Logger, links []model.Link, depth int) {
	if depth >= s.cfg.Scraper.MaxDepth {
		return
	}

	added := 0
	s.mu.Lock()
	for _, l := range links {
		if l.Type != model.LinkInternal || s.visited[l.URL] {
			continue
		}
		s.visited[l.URL] = true
		s.frontier.push(entry{url: l.URL, depth: depth + 1})
		added++
	}
	s.mu.Unlock()

	if added > 0 {
		logger.Debug("links discovered", slog.Int("added", added), slog.Int("depth", depth+1))
	}
}

// screenshot tries a full-page capture, falls back to the viewport, and
// drops the screenshot silently when both fail.
func (s *Scheduler) screenshot(logger *slog.Logger, page browser.Page, pageDir string) {
	shot, err := page.Screenshot(true)
	if err != nil {
		shot, err = page.Screenshot(false)
	}
	if err != nil {
		logger.Debug("screenshot failed", slog.String("error", err.Error()))
		return
	}
	path := filepath.Join(pageDir, screenshotFileName)
	if err := os.WriteFile(path, shot, 0600); err != nil {
		logger.Debug("failed to write screenshot",
			slog.String("path", path), slog.String("error", err.Error()))
	}
}

// waitRetry sleeps the configured retry wait, abandoning early on cancel.
func (s *Scheduler) waitRetry(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.cfg.Delays.RetryWait.Std()):
	}
}

// sleep pauses a random duration in [minSec, maxSec] seconds.
func (s *Scheduler) sleep(ctx context.Context, minSec, maxSec float64) {
	if maxSec <= 0 {
		return
	}
	d := secondsToDuration(minSec + rand.Float64()*(maxSec-minSec))
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
