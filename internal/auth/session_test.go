package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/websentry/websentry/internal/browser"
	"github.com/websentry/websentry/internal/config"
)

// fakeDriver scripts browser behavior for session tests.
type fakeDriver struct {
	// landURL is where navigations "end up", regardless of target.
	landURL string

	// state is what StorageState returns.
	state []byte

	// successVisible controls WaitVisible on the success indicator.
	successVisible bool

	// errorVisible controls Visible on error selectors.
	errorVisible bool

	// typeErr fails TypeSlowly when set.
	typeErr error

	// lastOpts records the options of the last context.
	lastOpts browser.ContextOptions
}

func (d *fakeDriver) NewContext(_ context.Context, opts browser.ContextOptions) (browser.Context, error) {
	d.lastOpts = opts
	return &fakeContext{driver: d}, nil
}

func (d *fakeDriver) Close() error { return nil }

type fakeContext struct{ driver *fakeDriver }

func (c *fakeContext) NewPage(context.Context) (browser.Page, error) {
	return &fakePage{driver: c.driver}, nil
}
func (c *fakeContext) StorageState() ([]byte, error) { return c.driver.state, nil }
func (c *fakeContext) Close() error                  { return nil }

type fakePage struct {
	driver *fakeDriver
	url    string
}

func (p *fakePage) Navigate(_ context.Context, url string, _ time.Duration) error {
	if p.driver.landURL != "" {
		p.url = p.driver.landURL
	} else {
		p.url = url
	}
	return nil
}

func (p *fakePage) WaitIdle(time.Duration) {}
func (p *fakePage) SmartScroll(context.Context, int, time.Duration, time.Duration) error {
	return nil
}
func (p *fakePage) HTML() (string, error)          { return "", nil }
func (p *fakePage) URL() string                    { return p.url }
func (p *fakePage) Screenshot(bool) ([]byte, error) { return []byte("png"), nil }
func (p *fakePage) Click(string) error             { return nil }
func (p *fakePage) TypeSlowly(string, string) error { return p.driver.typeErr }
func (p *fakePage) WaitVisible(string, time.Duration) bool {
	return p.driver.successVisible
}
func (p *fakePage) Visible(string) bool { return p.driver.errorVisible }
func (p *fakePage) Close() error        { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Scraper.BaseDir = t.TempDir()
	cfg.Auth.LoginURL = "https://acme.example.com/login"
	cfg.Auth.Username = "crawler"
	cfg.Auth.Password = "secret"
	cfg.Auth.UsernameSelector = "#user"
	cfg.Auth.PasswordSelector = "#pass"
	cfg.Auth.SubmitSelector = "#submit"
	// Keep the fixed waits short for tests.
	cfg.Timeouts.NetworkIdle = config.Duration(time.Millisecond)
	cfg.Delays.PostLoginWait = config.Duration(time.Millisecond)
	return cfg
}

func newManager(t *testing.T, driver *fakeDriver, cfg *config.Config) *SessionManager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewSessionManager(driver, logger, cfg)
	m.settleWait = time.Millisecond
	return m
}

func TestLoadSaved(t *testing.T) {
	t.Parallel()

	t.Run("no saved state", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, &fakeDriver{}, testConfig(t))
		if _, ok := m.LoadSaved(t.Context(), "https://acme.example.com"); ok {
			t.Error("LoadSaved() = true with no state file")
		}
	})

	t.Run("valid session is reused", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		m := newManager(t, &fakeDriver{}, cfg)
		if err := m.Save([]byte(`{"cookies":[]}`)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		blob, ok := m.LoadSaved(t.Context(), "https://acme.example.com")
		if !ok {
			t.Fatal("LoadSaved() = false, want reuse")
		}
		if string(blob) != `{"cookies":[]}` {
			t.Errorf("blob = %s", blob)
		}
	})

	t.Run("session landing on login URL is discarded", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		driver := &fakeDriver{landURL: cfg.Auth.LoginURL + "/"}
		m := newManager(t, driver, cfg)
		if err := m.Save([]byte(`{}`)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		if _, ok := m.LoadSaved(t.Context(), "https://acme.example.com"); ok {
			t.Error("LoadSaved() = true for expired session")
		}
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("success via indicator", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Auth.SuccessIndicator = "#avatar"
		driver := &fakeDriver{successVisible: true, state: []byte(`{"cookies":["s"]}`)}
		m := newManager(t, driver, cfg)

		state, err := m.Login(t.Context())
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if string(state) != `{"cookies":["s"]}` {
			t.Errorf("state = %s", state)
		}
	})

	t.Run("success via URL change without indicator", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		driver := &fakeDriver{landURL: "https://acme.example.com/dashboard", state: []byte(`{}`)}
		m := newManager(t, driver, cfg)

		if _, err := m.Login(t.Context()); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
	})

	t.Run("failure writes screenshot", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Auth.SuccessIndicator = "#avatar"
		driver := &fakeDriver{successVisible: false}
		m := newManager(t, driver, cfg)

		_, err := m.Login(t.Context())
		if !errors.Is(err, ErrLoginFailed) {
			t.Fatalf("Login() error = %v, want ErrLoginFailed", err)
		}
		if _, statErr := os.Stat(filepath.Join(cfg.Scraper.BaseDir, ErrorScreenshotName)); statErr != nil {
			t.Errorf("missing failure screenshot: %v", statErr)
		}
	})

	t.Run("visible error element fails login", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Auth.ErrorSelectors = []string{".error-banner"}
		driver := &fakeDriver{landURL: "https://acme.example.com/dashboard", errorVisible: true}
		m := newManager(t, driver, cfg)

		if _, err := m.Login(t.Context()); !errors.Is(err, ErrLoginFailed) {
			t.Fatalf("Login() error = %v, want ErrLoginFailed", err)
		}
	})
}

func TestEstablish(t *testing.T) {
	t.Parallel()

	t.Run("login failure degrades to unauthenticated", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Auth.SuccessIndicator = "#avatar"
		m := newManager(t, &fakeDriver{successVisible: false}, cfg)

		state, authenticated := m.Establish(t.Context(), "https://acme.example.com")
		if authenticated || state != nil {
			t.Errorf("Establish() = (%v, %v), want unauthenticated", state, authenticated)
		}
	})

	t.Run("successful login persists state", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Auth.SuccessIndicator = "#avatar"
		driver := &fakeDriver{successVisible: true, state: []byte(`{"cookies":[]}`)}
		m := newManager(t, driver, cfg)

		_, authenticated := m.Establish(t.Context(), "https://acme.example.com")
		if !authenticated {
			t.Fatal("Establish() authenticated = false")
		}
		if _, err := os.Stat(m.StatePath()); err != nil {
			t.Errorf("state not persisted: %v", err)
		}
	})
}
