package browser

import (
	"context"
	"time"

	"github.com/websentry/websentry/internal/fingerprint"
)

// ContextOptions configures one isolated browsing context.
// A context bundles a proxy, a fingerprint and optional session state; the
// scheduler builds a fresh one per page visit so identities never bleed
// between URLs.
type ContextOptions struct {
	// ProxyURI routes all context traffic through this proxy.
	// Empty means a direct connection.
	ProxyURI string

	// Fingerprint is applied to every page opened in the context.
	// Nil leaves the browser defaults untouched.
	Fingerprint *fingerprint.Fingerprint

	// SessionState is a serialized session blob (cookies) restored into
	// the context before any navigation. Nil starts a clean session.
	SessionState []byte

	// Visible opens a windowed browser instead of a headless one.
	// Used by the manual login flow.
	Visible bool
}

// Driver creates isolated browsing contexts.
// It is the only seam between the crawler and the real browser, which keeps
// the scheduler testable with a fake.
type Driver interface {
	// NewContext opens an isolated context configured by opts.
	NewContext(ctx context.Context, opts ContextOptions) (Context, error)

	// Close releases all driver resources.
	Close() error
}

// Context is one isolated browsing context.
type Context interface {
	// NewPage opens a page in the context.
	NewPage(ctx context.Context) (Page, error)

	// StorageState serializes the context's session (cookies) so it can
	// be persisted and restored into later contexts.
	StorageState() ([]byte, error)

	// Close closes the context and everything in it.
	Close() error
}

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and waits for the document to be ready, bounded
	// by timeout. Failures are returned as *NavigationError so callers
	// can match the Kind exhaustively.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitIdle waits until network activity settles, up to timeout.
	// A timeout here is not an error: the page is simply as loaded as it
	// is going to get.
	WaitIdle(timeout time.Duration)

	// SmartScroll scrolls to the bottom repeatedly, pausing a random
	// duration in [minDelay, maxDelay] between steps, until the document
	// height stops growing or iterations are exhausted.
	SmartScroll(ctx context.Context, iterations int, minDelay, maxDelay time.Duration) error

	// HTML returns the current serialized DOM.
	HTML() (string, error)

	// URL returns the page's current URL, which may differ from the
	// navigated one after redirects.
	URL() string

	// Screenshot captures the page as PNG. fullPage captures the whole
	// scrollable area rather than just the viewport.
	Screenshot(fullPage bool) ([]byte, error)

	// Click clicks the first element matching selector.
	Click(selector string) error

	// TypeSlowly focuses the element matching selector and types text
	// with small randomized per-character delays.
	TypeSlowly(selector, text string) error

	// WaitVisible waits up to timeout for an element matching selector
	// to become visible. Returns false on timeout without error.
	WaitVisible(selector string, timeout time.Duration) bool

	// Visible reports whether an element matching selector is currently
	// present and visible.
	Visible(selector string) bool

	// Close closes the tab.
	Close() error
}
