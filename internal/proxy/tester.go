package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// TestResult is the outcome of probing one proxy.
type TestResult struct {
	// Proxy is the probed proxy URI.
	Proxy string

	// OK reports whether the probe fetched the test URL successfully.
	OK bool

	// Latency is the round-trip time for successful probes.
	Latency time.Duration

	// Error holds the failure reason for unsuccessful probes.
	Error string
}

// Tester probes proxies against a known-good test URL.
// It backs the `websentry proxies test` command and can pre-filter a pool
// before a crawl starts.
type Tester struct {
	// testURL is fetched through each proxy to judge health.
	testURL string

	// timeout bounds each individual probe.
	timeout time.Duration

	// concurrency is the number of probes in flight at once.
	concurrency int

	logger *slog.Logger
}

// TesterOption configures a Tester.
type TesterOption func(*Tester)

// WithTestTimeout sets the per-probe timeout.
func WithTestTimeout(d time.Duration) TesterOption {
	return func(t *Tester) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithTestConcurrency sets the number of concurrent probes.
func WithTestConcurrency(n int) TesterOption {
	return func(t *Tester) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithTestLogger sets a custom logger for the tester.
func WithTestLogger(logger *slog.Logger) TesterOption {
	return func(t *Tester) {
		t.logger = logger
	}
}

// NewTester creates a proxy tester for the given test URL.
func NewTester(testURL string, opts ...TesterOption) *Tester {
	t := &Tester{
		testURL:     testURL,
		timeout:     10 * time.Second,
		concurrency: 5,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// TestAll probes every proxy concurrently and returns one result per proxy
// in the input order. Probe failures are recorded in the results, not
// returned as an error; the error return reflects context cancellation only.
//
// Design decision: we use errgroup.SetLimit rather than a hand-rolled worker
// pool because the probes are independent and errgroup handles the
// concurrency limit and cancellation correctly.
func (t *Tester) TestAll(ctx context.Context, proxies []string) ([]TestResult, error) {
	results := make([]TestResult, len(proxies))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for i, p := range proxies {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = t.testOne(ctx, p)
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// testOne fetches the test URL through a single proxy.
func (t *Tester) testOne(ctx context.Context, proxyURI string) TestResult {
	result := TestResult{Proxy: proxyURI}

	proxyURL, err := url.Parse(proxyURI)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		Timeout:   t.timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.testURL, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		result.Error = err.Error()
		t.logger.Debug("proxy probe failed", "proxy", proxyURI, "error", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		result.Error = resp.Status
		return result
	}

	result.OK = true
	result.Latency = time.Since(start)
	return result
}
