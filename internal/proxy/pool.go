package proxy

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
)

// Pool rotates through a fixed list of proxies round-robin, skipping proxies
// that have been marked failed. When every proxy has failed (or the pool is
// empty) it falls back to a direct connection.
//
// Failure flags live only for the lifetime of the pool; a new crawl run
// starts with a clean slate.
type Pool struct {
	// proxies is the ordered list of proxy URIs, fixed at construction.
	proxies []string

	// cursor is the index of the next proxy to consider.
	cursor int

	// failed holds proxies excluded from rotation.
	failed map[string]bool

	// keepFailed keeps failed proxies in rotation. Maps the
	// skip_failed_proxies=false configuration.
	keepFailed bool

	// warnedExhausted ensures the all-proxies-failed fallback is logged
	// only once per pool.
	warnedExhausted bool

	logger *slog.Logger

	// mutex serializes Next and MarkFailed. The pool has its own lock,
	// separate from the scheduler's, so proxy churn never blocks frontier
	// operations.
	mutex sync.Mutex
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets a custom logger for the pool.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithSkipFailed controls whether failed proxies leave the rotation.
// The default is true; passing false keeps them in rotation, which suits
// proxy lists that recover on their own.
func WithSkipFailed(skip bool) Option {
	return func(p *Pool) {
		p.keepFailed = !skip
	}
}

// NewPool creates a pool over the given proxy URIs.
// An empty list is valid: Next then always returns ("", false).
func NewPool(proxies []string, opts ...Option) *Pool {
	p := &Pool{
		proxies: append([]string(nil), proxies...),
		failed:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Next returns the next non-failed proxy in round-robin order.
// The second return value is false when no proxy is available, meaning the
// caller should connect directly. The exhaustion fallback is logged once.
func (p *Pool) Next() (string, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return "", false
	}

	for i := range p.proxies {
		idx := (p.cursor + i) % len(p.proxies)
		candidate := p.proxies[idx]
		if p.failed[candidate] && !p.keepFailed {
			continue
		}
		p.cursor = (idx + 1) % len(p.proxies)
		return candidate, true
	}

	if !p.warnedExhausted {
		p.warnedExhausted = true
		p.logger.Warn("all proxies failed, falling back to direct connection",
			"total", len(p.proxies),
		)
	}
	return "", false
}

// MarkFailed excludes a proxy from rotation for the rest of the run.
// Marking an unknown proxy is a no-op on rotation but harmless.
func (p *Pool) MarkFailed(proxy string) {
	if proxy == "" {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.failed[proxy] {
		p.failed[proxy] = true
		p.logger.Debug("proxy marked failed", "proxy", proxy)
	}
}

// Len returns the total number of proxies in the pool.
func (p *Pool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.proxies)
}

// FailedCount returns the number of proxies currently marked failed.
func (p *Pool) FailedCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.failed)
}

// LoadFile reads a proxy list file: one proxy URI per line, lines starting
// with '#' are comments, blank lines are skipped. Each URI must carry an
// http or https scheme, a host and a port; userinfo is optional.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided proxy list path is intentional
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()

	var proxies []string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := validateURI(line); err != nil {
			return nil, fmt.Errorf("proxy file %s line %d: %w", path, lineNo, err)
		}
		proxies = append(proxies, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}

	return proxies, nil
}

// validateURI checks that a proxy URI has a supported scheme, host and port.
func validateURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProxyURI, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidProxyURI, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidProxyURI)
	}
	if u.Port() == "" {
		return fmt.Errorf("%w: missing port", ErrInvalidProxyURI)
	}
	return nil
}
