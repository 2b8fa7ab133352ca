package proxy

import "errors"

// Package-level sentinel errors, checked with errors.Is.
var (
	// ErrInvalidProxyURI is returned when a proxy list entry is not a
	// usable http(s) URI with host and port.
	ErrInvalidProxyURI = errors.New("invalid proxy URI")
)
