package urlkey

import (
	"errors"
	"testing"
)

// TestCanonicalize tests URL normalization rules.
func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips trailing slash", "https://example.com/", "https://example.com"},
		{"strips trailing slash on path", "https://example.com/docs/", "https://example.com/docs"},
		{"strips query", "https://example.com/p?a=1&b=2", "https://example.com/p"},
		{"strips fragment", "https://example.com/p#section", "https://example.com/p"},
		{"strips default http port", "http://example.com:80/p", "http://example.com/p"},
		{"strips default https port", "https://example.com:443", "https://example.com"},
		{"keeps non-default port", "https://example.com:8443/p", "https://example.com:8443/p"},
		{"keeps path case", "https://example.com/CaseSensitive", "https://example.com/CaseSensitive"},
		{"bare host", "https://example.com", "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Canonicalize(tt.in)
			if err != nil {
				t.Fatalf("Canonicalize(%q) returned error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		inputs := []string{
			"HTTPS://Example.COM/Path/?q=1#frag",
			"http://example.com:80/",
			"https://sub.example.co.uk/a/b/",
		}
		for _, in := range inputs {
			once, err := Canonicalize(in)
			if err != nil {
				t.Fatalf("first pass failed for %q: %v", in, err)
			}
			twice, err := Canonicalize(once)
			if err != nil {
				t.Fatalf("second pass failed for %q: %v", once, err)
			}
			if once != twice {
				t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
			}
		}
	})

	t.Run("rejects non-http schemes", func(t *testing.T) {
		t.Parallel()

		for _, in := range []string{"ftp://example.com/file", "mailto:a@example.com", "javascript:void(0)"} {
			if _, err := Canonicalize(in); !errors.Is(err, ErrUnsupportedScheme) {
				t.Errorf("Canonicalize(%q): expected ErrUnsupportedScheme, got %v", in, err)
			}
		}
	})

	t.Run("rejects missing host", func(t *testing.T) {
		t.Parallel()

		if _, err := Canonicalize("https:///path-only"); err == nil {
			t.Error("expected error for URL without host")
		}
	})
}

// TestSameHost tests the internal/external classification rule.
func TestSameHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"https://example.com/a", "https://example.com/b", true},
		{"https://EXAMPLE.com/a", "https://example.COM/b", true},
		{"https://example.com", "https://www.example.com", false},
		{"https://example.com", "https://other.example", false},
		{"://bad", "https://example.com", false},
	}

	for _, tt := range tests {
		if got := SameHost(tt.a, tt.b); got != tt.want {
			t.Errorf("SameHost(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

// TestRegistrableDomain tests public-suffix based grouping.
func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want string
	}{
		{"www.example.com", "example.com"},
		{"a.b.example.co.uk", "example.co.uk"},
		{"example.com", "example.com"},
		{"localhost", "localhost"},
	}

	for _, tt := range tests {
		if got := RegistrableDomain(tt.host); got != tt.want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}
