package download

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/websentry/websentry/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDownloader(opts Options) *Downloader {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = 1 << 20
	}
	return NewDownloader(testLogger(), opts)
}

func TestDownloaderDownloadAll(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/report.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "pdf-bytes")
	})
	mux.HandleFunc("/missing.zip", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	d := testDownloader(Options{Concurrency: 2})

	assets, err := d.DownloadAll(t.Context(), dir,
		[]string{srv.URL + "/report.pdf", srv.URL + "/missing.zip"})
	if err != nil {
		t.Fatalf("DownloadAll() error = %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("len(assets) = %d, want 2", len(assets))
	}

	got := assets[0]
	if got.Status != model.DownloadSuccess {
		t.Fatalf("assets[0].Status = %v, want success: %s", got.Status, got.Error)
	}
	if got.Name != "report.pdf" || got.Extension != ".pdf" {
		t.Errorf("assets[0] name/ext = %q/%q", got.Name, got.Extension)
	}
	if got.SizeBytes != int64(len("pdf-bytes")) {
		t.Errorf("assets[0].SizeBytes = %d", got.SizeBytes)
	}
	if got.MimeType != "application/pdf" {
		t.Errorf("assets[0].MimeType = %q", got.MimeType)
	}
	data, err := os.ReadFile(filepath.Join(dir, got.LocalPath))
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "pdf-bytes" {
		t.Errorf("file content = %q", data)
	}

	failed := assets[1]
	if failed.Status != model.DownloadFailed {
		t.Errorf("assets[1].Status = %v, want failed", failed.Status)
	}
	if !strings.Contains(failed.Error, "404") {
		t.Errorf("assets[1].Error = %q, want status recorded", failed.Error)
	}
}

func TestDownloaderDeclaredSizeCap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "2048")
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	d := testDownloader(Options{MaxBytes: 1024})
	assets, err := d.DownloadAll(t.Context(), t.TempDir(), []string{srv.URL + "/big.bin"})
	if err != nil {
		t.Fatalf("DownloadAll() error = %v", err)
	}
	if assets[0].Status != model.DownloadFailed {
		t.Fatalf("Status = %v, want failed", assets[0].Status)
	}
	if !strings.Contains(assets[0].Error, "size cap") {
		t.Errorf("Error = %q, want size cap failure", assets[0].Error)
	}
}

func TestDownloaderMidStreamCapRemovesPartial(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// No Content-Length: force chunked transfer past the cap.
		fl := w.(http.Flusher)
		for range 8 {
			w.Write(make([]byte, 512))
			fl.Flush()
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := testDownloader(Options{MaxBytes: 1024, ChunkSize: 256})
	assets, err := d.DownloadAll(t.Context(), dir, []string{srv.URL + "/stream.bin"})
	if err != nil {
		t.Fatalf("DownloadAll() error = %v", err)
	}
	if assets[0].Status != model.DownloadFailed {
		t.Fatalf("Status = %v, want failed", assets[0].Status)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "downloads"))
	if err != nil {
		t.Fatalf("read downloads dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("partial file left behind: %v", entries)
	}
}

func TestDownloaderRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	d := testDownloader(Options{MaxRetries: 3})
	assets, err := d.DownloadAll(t.Context(), t.TempDir(), []string{srv.URL + "/flaky.csv"})
	if err != nil {
		t.Fatalf("DownloadAll() error = %v", err)
	}
	if assets[0].Status != model.DownloadSuccess {
		t.Fatalf("Status = %v after retries: %s", assets[0].Status, assets[0].Error)
	}
	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		i    int
		link string
		want string
	}{
		{
			name: "clean name survives",
			link: "https://example.com/docs/report-2024.pdf",
			want: "report-2024.pdf",
		},
		{
			name: "unsafe characters replaced",
			link: "https://example.com/files/q1%20plan.xlsx",
			want: "q1_plan.xlsx",
		},
		{
			name: "empty path falls back to indexed name",
			i:    4,
			link: "https://example.com/",
			want: "file_4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := fileName(tt.i, tt.link); got != tt.want {
				t.Errorf("fileName(%d, %q) = %q, want %q", tt.i, tt.link, got, tt.want)
			}
		})
	}
}

func TestNameRegistryCollisionSuffixes(t *testing.T) {
	t.Parallel()

	r := newNameRegistry()
	if got := r.reserve("manual.pdf"); got != "manual.pdf" {
		t.Fatalf("first reserve = %q", got)
	}
	if got := r.reserve("manual.pdf"); got != "manual_1.pdf" {
		t.Errorf("second reserve = %q, want manual_1.pdf", got)
	}
	if got := r.reserve("manual.pdf"); got != "manual_2.pdf" {
		t.Errorf("third reserve = %q, want manual_2.pdf", got)
	}
}

func TestErrorsIsTooLarge(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("fetch: %w", ErrFileTooLarge)
	if !errorsIsTooLarge(wrapped) {
		t.Error("wrapped ErrFileTooLarge not recognized")
	}
	if errorsIsTooLarge(errors.New("other")) {
		t.Error("unrelated error recognized as too large")
	}
}
