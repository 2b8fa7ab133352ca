package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/websentry/websentry/internal/browser"
	"github.com/websentry/websentry/internal/config"
)

const (
	// StateFileName is the session blob written under the base directory.
	StateFileName = "auth_state.json"

	// ErrorScreenshotName is the screenshot written on login failure.
	ErrorScreenshotName = "login_error.png"

	// successWait bounds how long the success indicator gets to appear.
	successWait = 10 * time.Second

	// postSubmitWait is the fallback settle time after clicking submit
	// when the network never goes idle.
	postSubmitWait = 5 * time.Second

	// manualLoginWait is how long a manual login window stays open.
	manualLoginWait = 60 * time.Second
)

// SessionManager establishes and persists an authenticated browser session.
//
// Establish tries a saved session first, then the configured login flow.
// Every failure degrades to an unauthenticated crawl with a warning rather
// than aborting the run.
type SessionManager struct {
	driver   browser.Driver
	cfg      config.Auth
	timeouts config.Timeouts
	delays   config.Delays
	baseDir  string
	logger   *slog.Logger

	// settleWait is the fallback pause after submit; a field so tests can
	// shorten it.
	settleWait time.Duration
}

// NewSessionManager creates a session manager rooted at the crawl base
// directory.
func NewSessionManager(driver browser.Driver, logger *slog.Logger, cfg *config.Config) *SessionManager {
	return &SessionManager{
		driver:   driver,
		cfg:      cfg.Auth,
		timeouts: cfg.Timeouts,
		delays:   cfg.Delays,
		baseDir:  cfg.Scraper.BaseDir,
		logger:   logger,

		settleWait: postSubmitWait,
	}
}

// StatePath returns the path of the persisted session blob.
func (m *SessionManager) StatePath() string {
	return filepath.Join(m.baseDir, StateFileName)
}

// Establish returns a session blob for the crawl and whether it is
// authenticated. A saved session is reused when it still passes the test
// navigation; otherwise the manual or credentialed login flow runs. On
// failure the returned state is nil and authenticated is false.
func (m *SessionManager) Establish(ctx context.Context, seedURL string) (state []byte, authenticated bool) {
	if saved, ok := m.LoadSaved(ctx, seedURL); ok {
		m.logger.Info("reusing saved session", slog.String("path", m.StatePath()))
		return saved, true
	}

	var err error
	if m.cfg.ManualLoginMode {
		state, err = m.ManualLogin(ctx)
	} else {
		state, err = m.Login(ctx)
	}
	if err != nil {
		m.logger.Warn("login failed, continuing unauthenticated",
			slog.String("error", err.Error()))
		return nil, false
	}

	if err := m.Save(state); err != nil {
		m.logger.Warn("failed to persist session state",
			slog.String("error", err.Error()))
	}
	return state, true
}

// LoadSaved loads the persisted session blob and validates it with a test
// navigation to seedURL. The session is valid iff the browser does not end
// up on the login URL. Invalid or unreadable blobs are discarded.
func (m *SessionManager) LoadSaved(ctx context.Context, seedURL string) ([]byte, bool) {
	blob, err := os.ReadFile(m.StatePath())
	if err != nil {
		return nil, false
	}

	bctx, err := m.driver.NewContext(ctx, browser.ContextOptions{SessionState: blob})
	if err != nil {
		m.logger.Debug("session test context failed", slog.String("error", err.Error()))
		return nil, false
	}
	defer bctx.Close()

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, false
	}
	defer page.Close()

	if err := page.Navigate(ctx, seedURL, m.timeouts.SessionTest.Std()); err != nil {
		m.logger.Debug("session test navigation failed", slog.String("error", err.Error()))
		return nil, false
	}
	if sameURL(page.URL(), m.cfg.LoginURL) {
		m.logger.Info("saved session expired, discarding")
		return nil, false
	}
	return blob, true
}

// Login runs the credentialed flow: open the login page, type the
// credentials with per-character jitter, submit, then decide success by the
// configured indicator or by URL change plus absence of error elements.
func (m *SessionManager) Login(ctx context.Context) ([]byte, error) {
	bctx, err := m.driver.NewContext(ctx, browser.ContextOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open login context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}
	defer page.Close()

	if err := page.Navigate(ctx, m.cfg.LoginURL, m.timeouts.LoginPage.Std()); err != nil {
		return nil, fmt.Errorf("failed to load login page: %w", err)
	}

	if err := page.TypeSlowly(m.cfg.UsernameSelector, m.cfg.Username); err != nil {
		return nil, m.failWithScreenshot(page, fmt.Errorf("failed to type username: %w", err))
	}
	if err := page.TypeSlowly(m.cfg.PasswordSelector, m.cfg.Password); err != nil {
		return nil, m.failWithScreenshot(page, fmt.Errorf("failed to type password: %w", err))
	}
	if err := page.Click(m.cfg.SubmitSelector); err != nil {
		return nil, m.failWithScreenshot(page, fmt.Errorf("failed to click submit: %w", err))
	}

	page.WaitIdle(m.timeouts.NetworkIdle.Std())
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.settleWait):
	}

	if !m.loginSucceeded(page) {
		return nil, m.failWithScreenshot(page, ErrLoginFailed)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.delays.PostLoginWait.Std()):
	}

	state, err := bctx.StorageState()
	if err != nil {
		return nil, fmt.Errorf("failed to capture session state: %w", err)
	}
	m.logger.Info("login succeeded", slog.String("login_url", m.cfg.LoginURL))
	return state, nil
}

// ManualLogin opens a visible browser at the login URL, waits for the
// operator to log in by hand, then captures whatever session resulted.
func (m *SessionManager) ManualLogin(ctx context.Context) ([]byte, error) {
	bctx, err := m.driver.NewContext(ctx, browser.ContextOptions{Visible: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open visible context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}
	defer page.Close()

	if err := page.Navigate(ctx, m.cfg.LoginURL, m.timeouts.LoginPage.Std()); err != nil {
		return nil, fmt.Errorf("failed to load login page: %w", err)
	}

	m.logger.Info("waiting for manual login",
		slog.String("login_url", m.cfg.LoginURL),
		slog.Duration("window", manualLoginWait))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(manualLoginWait):
	}

	state, err := bctx.StorageState()
	if err != nil {
		return nil, fmt.Errorf("failed to capture session state: %w", err)
	}
	return state, nil
}

// Save persists the session blob next to the database.
func (m *SessionManager) Save(state []byte) error {
	if err := os.MkdirAll(m.baseDir, 0750); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}
	if err := os.WriteFile(m.StatePath(), state, 0600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	return nil
}

// loginSucceeded applies the success criteria: a configured success
// indicator must appear; without one, the page must have navigated away
// from the login URL with no visible error element.
func (m *SessionManager) loginSucceeded(page browser.Page) bool {
	if m.cfg.SuccessIndicator != "" {
		return page.WaitVisible(m.cfg.SuccessIndicator, successWait)
	}
	if sameURL(page.URL(), m.cfg.LoginURL) {
		return false
	}
	for _, sel := range m.cfg.ErrorSelectors {
		if page.Visible(sel) {
			return false
		}
	}
	return true
}

// failWithScreenshot captures the page for post-mortem before returning err.
func (m *SessionManager) failWithScreenshot(page browser.Page, err error) error {
	shot, shotErr := page.Screenshot(false)
	if shotErr != nil {
		return err
	}
	path := filepath.Join(m.baseDir, ErrorScreenshotName)
	if writeErr := os.WriteFile(path, shot, 0600); writeErr == nil {
		m.logger.Info("login failure screenshot saved", slog.String("path", path))
	}
	return err
}

// sameURL compares URLs ignoring a trailing slash.
func sameURL(a, b string) bool {
	trim := func(s string) string {
		if len(s) > 0 && s[len(s)-1] == '/' {
			return s[:len(s)-1]
		}
		return s
	}
	return trim(a) == trim(b)
}
