package config

import "errors"

// Configuration validation errors, returned by Config.Validate().
//
// Design decision: package-level sentinel errors rather than error instances
// created inside Validate(), so callers can use errors.Is() while the
// messages stay human-readable.
var (
	// ErrInvalidMaxPages is returned when the page cap is not positive.
	ErrInvalidMaxPages = errors.New("invalid max_pages: must be positive")

	// ErrInvalidMaxDepth is returned when the depth bound is negative.
	// Depth 0 is valid and means "seed page only".
	ErrInvalidMaxDepth = errors.New("invalid max_depth: must be non-negative")

	// ErrInvalidConcurrency is returned when the worker count is not
	// positive. Zero workers would mean no crawling at all.
	ErrInvalidConcurrency = errors.New("invalid concurrent_limit: must be positive")

	// ErrMissingBaseDir is returned when no base directory is configured.
	ErrMissingBaseDir = errors.New("base_dir is required")

	// ErrUnsupportedRotation is returned for rotation strategies other
	// than round-robin, the only one implemented.
	ErrUnsupportedRotation = errors.New("unsupported proxy rotation strategy: only round-robin is available")

	// ErrMissingProxyFile is returned when proxies are enabled without a
	// proxy list file.
	ErrMissingProxyFile = errors.New("use_proxies is enabled but proxy.file_path is empty")

	// ErrIncompleteAuth is returned when credentialed login is enabled
	// without URL, username or password.
	ErrIncompleteAuth = errors.New("use_authentication requires login_url, username and password (or manual_login_mode)")

	// ErrInvalidMaxFileSize is returned when the download cap is not positive.
	ErrInvalidMaxFileSize = errors.New("invalid max_file_size_mb: must be positive")

	// ErrInvalidDelayRange is returned when a delay range is negative or
	// inverted (max below min).
	ErrInvalidDelayRange = errors.New("invalid delay range: min must be non-negative and max >= min")
)
