package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".websentry.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Load reads a YAML configuration file over the defaults: missing keys keep
// their default values, present keys override them. If the file does not
// exist, ErrConfigNotFound is returned; callers decide whether that is fatal
// based on whether the path was explicitly given.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	// An explicit empty base_dir in the file means "use the default",
	// not "no base dir".
	if cfg.Scraper.BaseDir == "" {
		cfg.Scraper.BaseDir = XDGDataDir()
	}

	return cfg, nil
}

// FindConfigFile searches for the configuration file in order:
//  1. the explicit path, if given
//  2. .websentry.yaml in the current directory
//  3. .websentry.yaml in the user's home directory
//
// Returns the path if found, or empty string.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// WriteDefault writes a commented default configuration file at path.
// It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, []byte(defaultYAML), 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// defaultYAML is the template written by `websentry init`. Values match
// NewConfig so an untouched file behaves identically to no file.
const defaultYAML = `# websentry configuration
features:
  use_proxies: false
  use_authentication: false
  download_file_assets: true
  headless_browser: true
  use_fingerprinting: true

scraper:
  max_pages: 50
  max_depth: 3
  concurrent_limit: 3
  # base_dir defaults to the XDG data directory when empty
  base_dir: ""
  smart_scroll_iterations: 5
  max_retries: 3

proxy:
  file_path: ""
  rotation_strategy: round-robin
  skip_failed_proxies: true
  test_url: https://example.com
  test_timeout: 10s
  concurrent_tests: 5

auth:
  login_url: ""
  username: ""
  password: ""
  username_selector: 'input[name="username"]'
  password_selector: 'input[name="password"]'
  submit_selector: 'button[type="submit"]'
  success_indicator: ""
  error_selectors: [".error", ".alert-danger"]
  manual_login_mode: false

file_download:
  max_file_size_mb: 50
  chunk_size: 65536
  download_timeout: 60s
  max_retries: 2
  extensions: [".pdf", ".doc", ".docx", ".xls", ".xlsx", ".zip", ".csv", ".jpg", ".png", ".mp4"]

timeouts:
  page_goto: 45s
  login_page: 30s
  network_idle: 15s
  session_test: 15s

delays:
  scroll_min: 1.0
  scroll_max: 1.5
  post_page_min: 0.5
  post_page_max: 1.5
  retry_wait: 2s
  post_login_wait: 3s
`
