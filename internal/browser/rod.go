package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/websentry/websentry/internal/fingerprint"
)

// RodDriver implements Driver on top of go-rod.
//
// Design decision: each context is its own Chromium process rather than an
// incognito context inside a shared one because:
//  1. The proxy is a launch flag, so per-context proxies need per-context
//     processes anyway
//  2. A crashed renderer takes down one URL visit, not the whole run
//  3. Fingerprint overrides can never leak between contexts
type RodDriver struct {
	// headless is the default for contexts that don't ask to be visible.
	headless bool

	logger *slog.Logger
}

// RodOption configures a RodDriver.
type RodOption func(*RodDriver)

// WithHeadless sets whether contexts run headless by default.
func WithHeadless(headless bool) RodOption {
	return func(d *RodDriver) {
		d.headless = headless
	}
}

// WithRodLogger sets a custom logger for the driver.
func WithRodLogger(logger *slog.Logger) RodOption {
	return func(d *RodDriver) {
		d.logger = logger
	}
}

// NewRodDriver creates a rod-backed browser driver.
func NewRodDriver(opts ...RodOption) *RodDriver {
	d := &RodDriver{headless: true}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// NewContext launches a browser process configured by opts.
func (d *RodDriver) NewContext(ctx context.Context, opts ContextOptions) (Context, error) {
	l := launcher.New().
		Headless(d.headless && !opts.Visible).
		Set("disable-blink-features", "AutomationControlled")

	var proxyUser *url.Userinfo
	if opts.ProxyURI != "" {
		u, err := url.Parse(opts.ProxyURI)
		if err != nil {
			return nil, fmt.Errorf("parse proxy URI: %w", err)
		}
		proxyUser = u.User
		// The launch flag carries no credentials; those go through the
		// CDP auth handler below.
		u.User = nil
		l = l.Proxy(u.String())
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	if proxyUser != nil {
		pass, _ := proxyUser.Password()
		go func() {
			if err := b.HandleAuth(proxyUser.Username(), pass)(); err != nil {
				d.logger.Debug("proxy auth handler exited", "error", err)
			}
		}()
	}

	bc := &rodContext{
		browser:     b,
		launcher:    l,
		fingerprint: opts.Fingerprint,
	}

	if len(opts.SessionState) > 0 {
		if err := bc.restoreState(opts.SessionState); err != nil {
			_ = bc.Close()
			return nil, fmt.Errorf("restore session state: %w", err)
		}
	}

	return bc, nil
}

// Close implements Driver. Contexts own their processes, so there is
// nothing shared to release.
func (d *RodDriver) Close() error {
	return nil
}

// sessionState is the serialized session blob written to auth_state.json.
type sessionState struct {
	Cookies []*proto.NetworkCookie `json:"cookies"`
	Origins []string               `json:"origins"`
}

// rodContext is one browser process with its session and fingerprint.
type rodContext struct {
	browser     *rod.Browser
	launcher    *launcher.Launcher
	fingerprint *fingerprint.Fingerprint
}

// NewPage opens a tab and applies the context's fingerprint to it.
func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	p, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	p = p.Context(ctx)

	if c.fingerprint != nil {
		if err := applyFingerprint(p, c.fingerprint); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("apply fingerprint: %w", err)
		}
	}

	return &rodPage{page: p}, nil
}

// StorageState serializes the context's cookies.
func (c *rodContext) StorageState() ([]byte, error) {
	cookies, err := c.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}

	origins := make(map[string]bool)
	for _, ck := range cookies {
		origins[ck.Domain] = true
	}
	state := sessionState{Cookies: cookies}
	for o := range origins {
		state.Origins = append(state.Origins, o)
	}

	return json.Marshal(state)
}

// restoreState loads a serialized session blob into the context.
func (c *rodContext) restoreState(data []byte) error {
	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode session state: %w", err)
	}

	params := make([]*proto.NetworkCookieParam, 0, len(state.Cookies))
	for _, ck := range state.Cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
			SameSite: ck.SameSite,
			Expires:  ck.Expires,
		})
	}
	return c.browser.SetCookies(params)
}

// Close shuts down the browser process.
func (c *rodContext) Close() error {
	err := c.browser.Close()
	c.launcher.Kill()
	return err
}

// applyFingerprint applies identity overrides to a page via CDP.
func applyFingerprint(p *rod.Page, fp *fingerprint.Fingerprint) error {
	if err := (proto.NetworkSetUserAgentOverride{
		UserAgent:      fp.UserAgent,
		AcceptLanguage: fp.Locale,
	}).Call(p); err != nil {
		return err
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             fp.Viewport.Width,
		Height:            fp.Viewport.Height,
		DeviceScaleFactor: fp.DeviceScale,
		Mobile:            false,
		ScreenWidth:       &fp.Screen.Width,
		ScreenHeight:      &fp.Screen.Height,
	}).Call(p); err != nil {
		return err
	}

	if err := (proto.EmulationSetTimezoneOverride{
		TimezoneID: fp.Timezone,
	}).Call(p); err != nil {
		return err
	}

	if err := (proto.EmulationSetGeolocationOverride{
		Latitude:  &fp.Geolocation.Latitude,
		Longitude: &fp.Geolocation.Longitude,
	}).Call(p); err != nil {
		return err
	}

	return (proto.EmulationSetTouchEmulationEnabled{
		Enabled: fp.HasTouch,
	}).Call(p)
}

// rodPage adapts a rod page to the Page interface.
type rodPage struct {
	page *rod.Page
}

// Navigate loads url and waits for the load event, bounded by timeout.
func (p *rodPage) Navigate(ctx context.Context, target string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pg := p.page.Context(navCtx)
	if err := pg.Navigate(target); err != nil {
		return Classify(target, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return Classify(target, err)
	}
	return nil
}

// WaitIdle waits for network activity to settle, swallowing timeouts.
func (p *rodPage) WaitIdle(timeout time.Duration) {
	_ = p.page.WaitIdle(timeout)
}

// smartScrollJS scrolls to the bottom and reports the document height.
const smartScrollJS = `() => {
	const h = document.scrollingElement ? document.scrollingElement.scrollHeight : document.body.scrollHeight;
	window.scrollTo(0, h);
	return h;
}`

// SmartScroll scrolls to the bottom until the height stops growing or the
// iteration budget is exhausted.
func (p *rodPage) SmartScroll(ctx context.Context, iterations int, minDelay, maxDelay time.Duration) error {
	lastHeight := -1
	for i := 0; i < iterations; i++ {
		res, err := p.page.Eval(smartScrollJS)
		if err != nil {
			return fmt.Errorf("scroll page: %w", err)
		}
		height := res.Value.Int()
		if height == lastHeight {
			return nil
		}
		lastHeight = height

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(randomDelay(minDelay, maxDelay)):
		}
	}
	return nil
}

// HTML returns the serialized DOM.
func (p *rodPage) HTML() (string, error) {
	return p.page.HTML()
}

// URL returns the page's current URL.
func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Screenshot captures the page as PNG.
func (p *rodPage) Screenshot(fullPage bool) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	}
	return p.page.Screenshot(fullPage, req)
}

// Click clicks the first element matching selector.
func (p *rodPage) Click(selector string) error {
	el, err := p.page.Element(selector)
	if err != nil {
		return fmt.Errorf("find %q: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// TypeSlowly types text into the element with randomized per-character
// delays, imitating human input.
func (p *rodPage) TypeSlowly(selector, text string) error {
	el, err := p.page.Element(selector)
	if err != nil {
		return fmt.Errorf("find %q: %w", selector, err)
	}
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return fmt.Errorf("type into %q: %w", selector, err)
		}
		time.Sleep(randomDelay(30*time.Millisecond, 120*time.Millisecond))
	}
	return nil
}

// WaitVisible waits up to timeout for the element to appear and be visible.
func (p *rodPage) WaitVisible(selector string, timeout time.Duration) bool {
	el, err := p.page.Timeout(timeout).Element(selector)
	if err != nil {
		return false
	}
	visible, err := el.Visible()
	return err == nil && visible
}

// Visible reports whether the element is currently present and visible.
func (p *rodPage) Visible(selector string) bool {
	el, err := p.page.Timeout(time.Second).Element(selector)
	if err != nil {
		return false
	}
	visible, err := el.Visible()
	return err == nil && visible
}

// Close closes the tab.
func (p *rodPage) Close() error {
	return p.page.Close()
}

// randomDelay returns a uniform duration in [min, max].
func randomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min))) //nolint:gosec // politeness jitter, not crypto
}
