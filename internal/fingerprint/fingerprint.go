// Package fingerprint produces randomized but internally consistent browser
// identities. Each crawled page gets a fresh fingerprint so that repeated
// visits do not present an identical client, and the serialized bundle is
// stored on the page record so identity diversity can be audited later.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"golang.org/x/text/language"
)

// Viewport is a browser viewport size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Geolocation is a latitude/longitude pair reported to the page.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fingerprint is the bundle of identity parameters applied to one browser
// context. Every field is sampled independently from a fixed pool; Mobile is
// always false because the crawler emulates desktop clients only.
type Fingerprint struct {
	Viewport         Viewport    `json:"viewport"`
	UserAgent        string      `json:"user_agent"`
	Timezone         string      `json:"timezone"`
	Geolocation      Geolocation `json:"geolocation"`
	Locale           string      `json:"locale"`
	Screen           Viewport    `json:"screen"`
	DeviceScale      float64     `json:"device_scale_factor"`
	HasTouch         bool        `json:"has_touch"`
	Mobile           bool        `json:"is_mobile"`
}

// JSON returns the fingerprint serialized for storage on a page record.
func (f Fingerprint) JSON() string {
	data, err := json.Marshal(f)
	if err != nil {
		// Fingerprint contains only plain values; Marshal cannot fail.
		return "{}"
	}
	return string(data)
}

// Sampling pools. Values mirror common real-world desktop configurations so
// the sampled identity is plausible, not just random.
var (
	viewports = []Viewport{
		{1920, 1080}, {1366, 768}, {1536, 864}, {1440, 900}, {1280, 720},
	}

	screens = []Viewport{
		{1920, 1080}, {2560, 1440}, {1366, 768}, {1680, 1050}, {3840, 2160},
	}

	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	}

	timezones = []string{
		"America/New_York", "America/Chicago", "America/Los_Angeles",
		"Europe/London", "Europe/Berlin", "Europe/Paris",
		"Asia/Tokyo", "Australia/Sydney",
	}

	geolocations = []Geolocation{
		{40.7128, -74.0060},  // New York
		{41.8781, -87.6298},  // Chicago
		{34.0522, -118.2437}, // Los Angeles
		{51.5074, -0.1278},   // London
		{52.5200, 13.4050},   // Berlin
		{48.8566, 2.3522},    // Paris
		{35.6762, 139.6503},  // Tokyo
		{-33.8688, 151.2093}, // Sydney
	}

	locales = []string{
		"en-US", "en-GB", "de-DE", "fr-FR", "ja-JP", "en-AU",
	}

	deviceScales = []float64{1.0, 1.25, 1.5, 2.0}
)

// Generator samples fingerprints from the fixed pools.
//
// Design decision: the random source is injected rather than using the
// package-level rand functions because:
//  1. Tests can seed it for deterministic output
//  2. Each crawl run can carry its own source without global state
type Generator struct {
	rng *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand sets the random source used for sampling.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		g.rng = rng
	}
}

// NewGenerator creates a fingerprint generator.
// Without options it uses an unseeded private source.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // identity sampling, not crypto
	}
	return g
}

// Generate samples a new fingerprint. Every pool is sampled independently
// and uniformly; Mobile is always false.
func (g *Generator) Generate() Fingerprint {
	return Fingerprint{
		Viewport:    viewports[g.rng.IntN(len(viewports))],
		UserAgent:   userAgents[g.rng.IntN(len(userAgents))],
		Timezone:    timezones[g.rng.IntN(len(timezones))],
		Geolocation: geolocations[g.rng.IntN(len(geolocations))],
		Locale:      locales[g.rng.IntN(len(locales))],
		Screen:      screens[g.rng.IntN(len(screens))],
		DeviceScale: deviceScales[g.rng.IntN(len(deviceScales))],
		HasTouch:    g.rng.IntN(2) == 1,
		Mobile:      false,
	}
}

// ValidateLocales checks that every locale in the pool is a well-formed
// BCP 47 tag. It runs once at startup so a bad pool edit fails loudly
// instead of producing a context Chromium silently rejects.
func ValidateLocales() error {
	for _, l := range locales {
		if _, err := language.Parse(l); err != nil {
			return fmt.Errorf("invalid locale %q in pool: %w", l, err)
		}
	}
	return nil
}
