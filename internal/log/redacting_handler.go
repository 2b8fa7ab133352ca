package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// MaskValue is the string used to replace redacted values.
const MaskValue = "***REDACTED***"

// sensitiveKeys contains attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"cookie":        true,
	"set-cookie":    true,
	"authorization": true,
	"session":       true,
	"session_state": true,
	"storage_state": true,
	"credential":    true,
	"credentials":   true,
}

// sensitiveKeywords are substrings that mark a key as sensitive even when it
// is not an exact match, e.g. "login_password" or "auth_token".
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "cookie", "credential", "auth",
}

// RedactingHandler wraps an slog.Handler and masks credential-bearing
// attributes before passing records on.
//
// Design decision: we use a handler wrapper rather than a custom logger
// because:
//  1. It integrates seamlessly with standard slog APIs
//  2. It works with any underlying handler (text, JSON, multi-writer)
//  3. Components receive a plain *slog.Logger and need no special care
type RedactingHandler struct {
	// handler is the underlying slog handler that receives masked records.
	handler slog.Handler
}

// NewRedactingHandler creates a RedactingHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewRedactingHandler(handler slog.Handler) *RedactingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactingHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it to the underlying handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs returns a new handler with the given attributes added, masked.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &RedactingHandler{handler: h.handler.WithAttrs(redacted)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{handler: h.handler.WithGroup(name)}
}

// redactAttr masks a single attribute, recursively handling groups.
func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			redacted[i] = h.redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	keyLower := strings.ToLower(a.Key)
	if sensitiveKeys[keyLower] || containsSensitiveKeyword(keyLower) {
		return slog.String(a.Key, MaskValue)
	}

	// Proxy URIs may embed userinfo. Mask just the credentials so the
	// proxy host stays diagnosable.
	if a.Value.Kind() == slog.KindString {
		if v := a.Value.String(); strings.Contains(v, "@") && strings.Contains(v, "://") {
			return slog.String(a.Key, MaskProxyURI(v))
		}
	}

	return a
}

// containsSensitiveKeyword reports whether the key contains any sensitive
// keyword. The bare "key" keyword is deliberately excluded: it causes false
// positives such as "urlkey" or "primary_key".
func containsSensitiveKeyword(key string) bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

// MaskProxyURI replaces the userinfo portion of a proxy URI with the mask
// value. Non-URI strings are returned unchanged.
func MaskProxyURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User(MaskValue)
	return u.String()
}

// NewLogger creates a logger writing redacted text output to w.
// verbose selects Debug level, otherwise Info.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactingHandler(handler))
}

// NewCrawlLogger creates the crawl run logger, teeing redacted text output
// to stderr and to <base>/logs/scraper.log. The returned close function
// flushes and closes the log file; it is safe to call even if the caller
// aborts early.
func NewCrawlLogger(baseDir string, verbose bool) (*slog.Logger, func() error, error) {
	logDir := filepath.Join(baseDir, "logs")
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(filepath.Join(logDir, "scraper.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, err
	}

	logger := NewLogger(io.MultiWriter(os.Stderr, f), verbose)
	return logger, f.Close, nil
}
