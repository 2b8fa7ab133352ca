package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Timeouts mirror what a full browser needs: page loads through a proxy can
// take tens of seconds, and network-idle detection needs its own budget.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "websentry"

	// DefaultMaxPages bounds the total pages stored per run. Prevents
	// runaway crawling on large or infinitely-generating sites.
	DefaultMaxPages = 50

	// DefaultMaxDepth bounds link distance from the seed. Depth 0 means
	// only the seed page.
	DefaultMaxDepth = 3

	// DefaultConcurrency is the worker count. Each worker owns a full
	// browser context, so this is deliberately modest.
	DefaultConcurrency = 3

	// DefaultSmartScrollIterations bounds the scroll-to-bottom loop that
	// coaxes lazy-loaded content onto the page.
	DefaultSmartScrollIterations = 5

	// DefaultMaxRetries is the per-URL navigation retry budget.
	DefaultMaxRetries = 3

	// DefaultPageGotoTimeout is the hard navigation timeout.
	DefaultPageGotoTimeout = 45 * time.Second

	// DefaultLoginPageTimeout bounds loading the login page.
	DefaultLoginPageTimeout = 30 * time.Second

	// DefaultNetworkIdleTimeout bounds waiting for network idle after
	// navigation or login submission.
	DefaultNetworkIdleTimeout = 15 * time.Second

	// DefaultSessionTestTimeout bounds the saved-session validation load.
	DefaultSessionTestTimeout = 15 * time.Second

	// DefaultRetryWait is the pause before retrying a non-proxy
	// navigation failure.
	DefaultRetryWait = 2 * time.Second

	// DefaultPostLoginWait lets the post-login redirect settle.
	DefaultPostLoginWait = 3 * time.Second

	// DefaultMaxFileSizeMB caps individual file downloads.
	DefaultMaxFileSizeMB = 50

	// DefaultChunkSize is the streaming read size for downloads.
	DefaultChunkSize = 64 * 1024

	// DefaultDownloadTimeout bounds each file download in total.
	DefaultDownloadTimeout = 60 * time.Second

	// DefaultDownloadRetries is the per-file retry budget.
	DefaultDownloadRetries = 2

	// DefaultProxyTestTimeout bounds each proxy health probe.
	DefaultProxyTestTimeout = 10 * time.Second

	// DefaultProxyTestConcurrency is the number of probes in flight.
	DefaultProxyTestConcurrency = 5
)

// DefaultFileExtensions is the downloadable-extension allowlist.
// A link is a file candidate iff its URL path ends with one of these.
var DefaultFileExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".tar", ".gz", ".csv", ".txt", ".rtf",
	".jpg", ".jpeg", ".png", ".gif", ".svg",
	".mp3", ".mp4", ".avi", ".mov",
}

// Config is the complete, immutable configuration for a crawl run.
// It is populated from the YAML config file and CLI flags, validated once,
// and passed down by dependency injection; components never read global
// state or re-resolve options at call time.
type Config struct {
	// Features toggles optional subsystems.
	Features Features `yaml:"features"`

	// Scraper holds the crawl scheduler settings.
	Scraper Scraper `yaml:"scraper"`

	// Proxy holds the proxy pool settings.
	Proxy Proxy `yaml:"proxy"`

	// Auth holds the login workflow settings.
	Auth Auth `yaml:"auth"`

	// FileDownload holds the file downloader settings.
	FileDownload FileDownload `yaml:"file_download"`

	// Timeouts holds the hard deadlines for browser operations.
	Timeouts Timeouts `yaml:"timeouts"`

	// Delays holds the politeness delay ranges.
	Delays Delays `yaml:"delays"`
}

// Features toggles optional subsystems on or off.
type Features struct {
	// UseProxies enables the proxy rotation layer.
	UseProxies bool `yaml:"use_proxies"`

	// UseAuthentication enables the login workflow before crawling.
	UseAuthentication bool `yaml:"use_authentication"`

	// DownloadFileAssets enables the file downloader.
	DownloadFileAssets bool `yaml:"download_file_assets"`

	// HeadlessBrowser runs the browser without a visible window.
	HeadlessBrowser bool `yaml:"headless_browser"`

	// UseFingerprinting randomizes the browser identity per context.
	// When disabled every context uses the browser defaults.
	UseFingerprinting bool `yaml:"use_fingerprinting"`
}

// Scraper holds the crawl scheduler settings.
type Scraper struct {
	// MaxPages bounds the total pages stored in one run.
	MaxPages int `yaml:"max_pages"`

	// MaxDepth bounds link distance from the seed.
	MaxDepth int `yaml:"max_depth"`

	// Concurrency is the worker count.
	Concurrency int `yaml:"concurrent_limit"`

	// BaseDir is the root of the on-disk layout: database, logs,
	// per-page folders. Defaults to the XDG data directory.
	BaseDir string `yaml:"base_dir"`

	// SmartScrollIterations bounds the scroll loop per page.
	SmartScrollIterations int `yaml:"smart_scroll_iterations"`

	// MaxRetries is the per-URL navigation retry budget.
	MaxRetries int `yaml:"max_retries"`
}

// Proxy holds the proxy pool settings.
type Proxy struct {
	// FilePath is the proxy list file (one URI per line, # comments).
	FilePath string `yaml:"file_path"`

	// RotationStrategy selects the rotation policy. Only "round-robin"
	// is supported.
	RotationStrategy string `yaml:"rotation_strategy"`

	// SkipFailedProxies excludes failed proxies from rotation.
	SkipFailedProxies bool `yaml:"skip_failed_proxies"`

	// TestURL is fetched through each proxy by the health tester.
	TestURL string `yaml:"test_url"`

	// TestTimeout bounds each health probe.
	TestTimeout Duration `yaml:"test_timeout"`

	// TestConcurrency is the number of probes in flight at once.
	TestConcurrency int `yaml:"concurrent_tests"`
}

// Auth holds the login workflow settings.
type Auth struct {
	// LoginURL is the page carrying the login form.
	LoginURL string `yaml:"login_url"`

	// Username and Password are the credentials typed into the form.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// UsernameSelector and PasswordSelector locate the form fields.
	UsernameSelector string `yaml:"username_selector"`
	PasswordSelector string `yaml:"password_selector"`

	// SubmitSelector locates the submit control.
	SubmitSelector string `yaml:"submit_selector"`

	// SuccessIndicator, when set, is a selector whose appearance within
	// 10 seconds confirms login success.
	SuccessIndicator string `yaml:"success_indicator"`

	// ErrorSelectors are selectors whose visibility after submit marks a
	// failed login.
	ErrorSelectors []string `yaml:"error_selectors"`

	// ManualLoginMode opens a visible browser and waits for the operator
	// to log in by hand.
	ManualLoginMode bool `yaml:"manual_login_mode"`
}

// FileDownload holds the file downloader settings.
type FileDownload struct {
	// MaxFileSizeMB caps each downloaded file.
	MaxFileSizeMB int `yaml:"max_file_size_mb"`

	// ChunkSize is the streaming read size in bytes.
	ChunkSize int `yaml:"chunk_size"`

	// Timeout bounds each file download in total.
	Timeout Duration `yaml:"download_timeout"`

	// MaxRetries is the per-file retry budget.
	MaxRetries int `yaml:"max_retries"`

	// Extensions is the downloadable-extension allowlist.
	Extensions []string `yaml:"extensions"`
}

// Timeouts holds the hard deadlines for browser operations.
type Timeouts struct {
	PageGoto    Duration `yaml:"page_goto"`
	LoginPage   Duration `yaml:"login_page"`
	NetworkIdle Duration `yaml:"network_idle"`
	SessionTest Duration `yaml:"session_test"`
}

// Delays holds politeness delay ranges in seconds.
// Min/max pairs are sampled uniformly per use.
type Delays struct {
	// ScrollMin/ScrollMax bound the pause between smart-scroll steps.
	ScrollMin float64 `yaml:"scroll_min"`
	ScrollMax float64 `yaml:"scroll_max"`

	// PostPageMin/PostPageMax bound the pause after finishing a page.
	PostPageMin float64 `yaml:"post_page_min"`
	PostPageMax float64 `yaml:"post_page_max"`

	// RetryWait is the pause before retrying a non-proxy navigation error.
	RetryWait Duration `yaml:"retry_wait"`

	// PostLoginWait lets the post-login redirect settle.
	PostLoginWait Duration `yaml:"post_login_wait"`
}

// NewConfig creates a Config with default values.
//
// Design decision: a constructor rather than zero values because most
// defaults are non-zero (timeouts, caps, allowlist), and the constructor
// doubles as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Features: Features{
			DownloadFileAssets: true,
			HeadlessBrowser:    true,
			UseFingerprinting:  true,
		},
		Scraper: Scraper{
			MaxPages:              DefaultMaxPages,
			MaxDepth:              DefaultMaxDepth,
			Concurrency:           DefaultConcurrency,
			BaseDir:               XDGDataDir(),
			SmartScrollIterations: DefaultSmartScrollIterations,
			MaxRetries:            DefaultMaxRetries,
		},
		Proxy: Proxy{
			RotationStrategy:  "round-robin",
			SkipFailedProxies: true,
			TestURL:           "https://example.com",
			TestTimeout:       Duration(DefaultProxyTestTimeout),
			TestConcurrency:   DefaultProxyTestConcurrency,
		},
		FileDownload: FileDownload{
			MaxFileSizeMB: DefaultMaxFileSizeMB,
			ChunkSize:     DefaultChunkSize,
			Timeout:       Duration(DefaultDownloadTimeout),
			MaxRetries:    DefaultDownloadRetries,
			Extensions:    append([]string(nil), DefaultFileExtensions...),
		},
		Timeouts: Timeouts{
			PageGoto:    Duration(DefaultPageGotoTimeout),
			LoginPage:   Duration(DefaultLoginPageTimeout),
			NetworkIdle: Duration(DefaultNetworkIdleTimeout),
			SessionTest: Duration(DefaultSessionTestTimeout),
		},
		Delays: Delays{
			ScrollMin:     1.0,
			ScrollMax:     1.5,
			PostPageMin:   0.5,
			PostPageMax:   1.5,
			RetryWait:     Duration(DefaultRetryWait),
			PostLoginWait: Duration(DefaultPostLoginWait),
		},
	}
}

// XDGDataDir returns the XDG data directory for websentry.
// On Linux: ~/.local/share/websentry.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for websentry.
// On Linux: ~/.config/websentry.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// MaxFileSizeBytes returns the download size cap in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.FileDownload.MaxFileSizeMB) * 1024 * 1024
}

// Validate checks the configuration and returns the first problem found as
// a sentinel error. Called once after flag parsing, before any crawling.
func (c *Config) Validate() error {
	if c.Scraper.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Scraper.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.Scraper.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Scraper.BaseDir == "" {
		return ErrMissingBaseDir
	}
	if c.Proxy.RotationStrategy != "" && c.Proxy.RotationStrategy != "round-robin" {
		return ErrUnsupportedRotation
	}
	if c.Features.UseProxies && c.Proxy.FilePath == "" {
		return ErrMissingProxyFile
	}
	if c.Features.UseAuthentication && !c.Auth.ManualLoginMode {
		if c.Auth.LoginURL == "" || c.Auth.Username == "" || c.Auth.Password == "" {
			return ErrIncompleteAuth
		}
	}
	if c.FileDownload.MaxFileSizeMB <= 0 {
		return ErrInvalidMaxFileSize
	}
	if c.Delays.ScrollMin < 0 || c.Delays.ScrollMax < c.Delays.ScrollMin {
		return ErrInvalidDelayRange
	}
	if c.Delays.PostPageMin < 0 || c.Delays.PostPageMax < c.Delays.PostPageMin {
		return ErrInvalidDelayRange
	}
	return nil
}
