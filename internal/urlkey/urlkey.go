// Package urlkey normalizes URLs into the canonical form used for crawl
// identity. Two URLs name the same crawl target iff their canonical forms are
// equal; the visited set, the pages table and the snapshot history are all
// keyed on this form.
package urlkey

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrUnsupportedScheme is returned for URLs that are not http or https.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// Canonicalize returns the canonical form of a URL: lowercased scheme and
// host, default port stripped, original path without a trailing slash, and no
// query or fragment.
//
// Canonicalize is idempotent: applying it to its own output returns the same
// string.
func Canonicalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	host := strings.ToLower(u.Host)
	// Strip default ports so http://example.com:80/ and http://example.com/
	// are the same target.
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	if host == "" {
		return "", fmt.Errorf("parse URL %q: missing host", raw)
	}

	path := u.EscapedPath()
	path = strings.TrimSuffix(path, "/")

	return scheme + "://" + host + path, nil
}

// Host returns the lowercased host (without port) of a URL.
func Host(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	return strings.ToLower(u.Hostname()), nil
}

// SameHost reports whether two URLs share a host. This is the rule that
// classifies a link as internal to the crawl.
func SameHost(a, b string) bool {
	ha, err := Host(a)
	if err != nil {
		return false
	}
	hb, err := Host(b)
	if err != nil {
		return false
	}
	return ha == hb
}

// RegistrableDomain returns the effective registrable domain of a host
// (e.g. "example.co.uk" for "www.example.co.uk"). Used by reporting to
// group URLs that belong to the same site across subdomains.
func RegistrableDomain(host string) string {
	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(host))
	if err != nil {
		return strings.ToLower(host)
	}
	return domain
}
