package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// pageFolder maps a canonical URL to its on-disk folder:
// <base>/<host>/<path-seg>/... with each segment sanitized. The site root
// maps to the bare host folder.
func pageFolder(baseDir, canonicalURL string) string {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return filepath.Join(baseDir, sanitizeSegment(canonicalURL))
	}

	parts := []string{baseDir, sanitizeSegment(u.Hostname())}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "" {
			continue
		}
		parts = append(parts, sanitizeSegment(seg))
	}
	return filepath.Join(parts...)
}

// sanitizeSegment replaces characters that are unsafe in directory names.
func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
