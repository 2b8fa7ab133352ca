package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/websentry/websentry/internal/model"
)

// retryBackoff is the pause between download attempts.
const retryBackoff = 1 * time.Second

// downloadsDirName is the per-page subdirectory holding downloaded files.
const downloadsDirName = "downloads"

// Options configures a Downloader.
type Options struct {
	// MaxBytes is the per-file size cap. Files larger than this are
	// rejected before or during transfer.
	MaxBytes int64

	// ChunkSize is the streaming copy buffer size in bytes.
	ChunkSize int

	// Timeout bounds each download attempt.
	Timeout time.Duration

	// MaxRetries is how many extra attempts a failed download gets.
	MaxRetries int

	// Concurrency bounds parallel downloads per page.
	Concurrency int
}

// Downloader fetches file assets discovered on a page.
type Downloader struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
}

// NewDownloader creates a downloader. The attempt timeout is applied per
// request through the context, not on the client, so retries get a fresh
// window each.
func NewDownloader(logger *slog.Logger, opts Options) *Downloader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 64 * 1024
	}
	return &Downloader{
		client: &http.Client{},
		opts:   opts,
		logger: logger,
	}
}

// DownloadAll fetches every link into <pageDir>/downloads and returns one
// FileAsset per link, success and failure alike, in discovery order.
func (d *Downloader) DownloadAll(ctx context.Context, pageDir string, links []string) ([]model.FileAsset, error) {
	if len(links) == 0 {
		return nil, nil
	}

	dir := filepath.Join(pageDir, downloadsDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create downloads directory: %w", err)
	}

	names := newNameRegistry()
	assets := make([]model.FileAsset, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for i, link := range links {
		g.Go(func() error {
			assets[i] = d.download(gctx, dir, names.reserve(fileName(i, link)), link)
			return nil
		})
	}
	// Workers never return errors; failures are recorded on the asset.
	_ = g.Wait()

	return assets, nil
}

// download fetches one file with retries. Oversize files fail permanently;
// HTTP >=400, timeouts and transport errors are retried with backoff.
func (d *Downloader) download(ctx context.Context, dir, name, link string) model.FileAsset {
	asset := model.FileAsset{
		URL:       link,
		Name:      name,
		Extension: strings.ToLower(path.Ext(name)),
		Status:    model.DownloadFailed,
	}

	var lastErr error
	for attempt := 0; attempt <= d.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			d.logger.Debug("retrying download",
				slog.String("url", link), slog.Int("attempt", attempt+1))
			select {
			case <-ctx.Done():
				asset.Error = ctx.Err().Error()
				return asset
			case <-time.After(retryBackoff):
			}
		}

		size, mime, err := d.fetch(ctx, filepath.Join(dir, name), link)
		if err == nil {
			asset.Status = model.DownloadSuccess
			asset.SizeBytes = size
			asset.MimeType = mime
			asset.LocalPath = filepath.Join(downloadsDirName, name)
			asset.DownloadedAt = time.Now()
			asset.Error = ""
			return asset
		}
		lastErr = err
		if errorsIsTooLarge(err) {
			break
		}
	}

	asset.Error = lastErr.Error()
	d.logger.Warn("download failed",
		slog.String("url", link), slog.String("error", lastErr.Error()))
	return asset
}

// fetch performs a single attempt: request, size pre-check, capped stream
// to disk. A partial file left by a mid-stream failure is removed.
func (d *Downloader) fetch(ctx context.Context, dst, link string) (int64, string, error) {
	attemptCtx := ctx
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, link, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return 0, "", fmt.Errorf("%w: status %d", ErrDownloadRejected, resp.StatusCode)
	}
	if d.opts.MaxBytes > 0 && resp.ContentLength > d.opts.MaxBytes {
		return 0, "", fmt.Errorf("%w: %d bytes declared, cap %d",
			ErrFileTooLarge, resp.ContentLength, d.opts.MaxBytes)
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, "", err
	}

	written, err := d.copyCapped(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return 0, "", err
	}

	return written, resp.Header.Get("Content-Type"), nil
}

// copyCapped streams in chunks and enforces the size cap as bytes arrive,
// catching servers that omit or understate Content-Length.
func (d *Downloader) copyCapped(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, d.opts.ChunkSize)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			written += int64(n)
			if d.opts.MaxBytes > 0 && written > d.opts.MaxBytes {
				return written, fmt.Errorf("%w: exceeded %d bytes mid-stream",
					ErrFileTooLarge, d.opts.MaxBytes)
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// fileName derives a safe local name from the URL path. Characters outside
// [A-Za-z0-9._-] are replaced; an empty or unusable result falls back to
// file_<i> with the original extension.
func fileName(i int, link string) string {
	base := ""
	ext := ""
	if u, err := url.Parse(link); err == nil {
		base = path.Base(u.Path)
		ext = path.Ext(u.Path)
	}
	sanitized := sanitize(base)
	if sanitized == "" || sanitized == "." || strings.Trim(sanitized, "._-") == "" {
		return fmt.Sprintf("file_%d%s", i, sanitize(ext))
	}
	return sanitized
}

// sanitize replaces characters outside the safe filename set.
func sanitize(s string) string {
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

// nameRegistry hands out unique filenames within one page directory.
type nameRegistry struct {
	mu   sync.Mutex
	used map[string]bool
}

func newNameRegistry() *nameRegistry {
	return &nameRegistry{used: make(map[string]bool)}
}

// reserve returns name, or name with _1, _2, ... inserted before the
// extension until unused.
func (r *nameRegistry) reserve(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.used[name] {
		r.used[name] = true
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !r.used[candidate] {
			r.used[candidate] = true
			return candidate
		}
	}
}
