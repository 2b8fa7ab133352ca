package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a navigation failure. The scheduler's retry policy
// switches on it exhaustively: proxy-tainted failures evict the proxy and
// retry with a new one, the rest wait and retry as-is.
type Kind int

const (
	// KindOther covers failures with no network signature, such as an
	// invalid URL or a crashed renderer.
	KindOther Kind = iota

	// KindProxy covers failures that implicate the proxy itself:
	// tunnel establishment, SOCKS negotiation, proxy auth.
	KindProxy

	// KindTimeout covers deadline expiry during navigation.
	KindTimeout

	// KindTransport covers connection-level failures: refused, reset,
	// unreachable, DNS.
	KindTransport
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindProxy:
		return "proxy"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	default:
		return "other"
	}
}

// NavigationError is a classified navigation failure.
// The single place that inspects raw browser error text is Classify; above
// this boundary only the Kind is consulted.
type NavigationError struct {
	// Kind is the failure class.
	Kind Kind

	// URL is the navigation target.
	URL string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %s: %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Chromium net error fragments, grouped by what they implicate.
var (
	proxyErrFragments = []string{
		"ERR_PROXY_CONNECTION_FAILED",
		"ERR_TUNNEL_CONNECTION_FAILED",
		"ERR_NO_SUPPORTED_PROXIES",
		"ERR_SOCKS_CONNECTION_FAILED",
		"ERR_PROXY_AUTH",
	}

	transportErrFragments = []string{
		"ERR_CONNECTION_REFUSED",
		"ERR_CONNECTION_RESET",
		"ERR_CONNECTION_CLOSED",
		"ERR_CONNECTION_TIMED_OUT",
		"ERR_TIMED_OUT",
		"ERR_ADDRESS_UNREACHABLE",
		"ERR_NAME_NOT_RESOLVED",
		"ERR_INTERNET_DISCONNECTED",
		"connection refused",
		"connection reset",
	}
)

// Classify wraps a raw navigation failure into a NavigationError.
// This is the only place raw browser error text is inspected; everything
// above works with the typed Kind.
func Classify(url string, err error) *NavigationError {
	if err == nil {
		return nil
	}

	kind := KindOther
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case matchesAny(err, proxyErrFragments):
		kind = KindProxy
	case matchesAny(err, transportErrFragments):
		kind = KindTransport
	}

	return &NavigationError{Kind: kind, URL: url, Err: err}
}

func matchesAny(err error, fragments []string) bool {
	msg := err.Error()
	for _, f := range fragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}
