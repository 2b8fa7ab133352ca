package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the database file created under the crawl base directory.
const DBFileName = "scraped_data.db"

// ScrapeDB provides SQLite-based storage for page records, snapshots and
// the change log.
//
// Design decision: one database file per base directory rather than one per
// crawled site. Snapshot history and change queries span sites, and a single
// file keeps backup/restore trivial.
type ScrapeDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ScrapeDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. Recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ScrapeDB under the given base directory.
// If CreateIfNotExists is false and the database doesn't exist, an error is
// returned instead of creating an empty one.
func Open(baseDir string, opts Options) (*ScrapeDB, error) {
	dbPath := filepath.Join(baseDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(baseDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw refuses to create a
	// new file, mode=rwc allows it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; the workers serialize through this
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScrapeDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *ScrapeDB) Close() error {
	return sdb.db.Close()
}

// Path returns the database file path.
func (sdb *ScrapeDB) Path() string {
	return sdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (sdb *ScrapeDB) createTables() error {
	schema := `
	-- Pages store one row per unique canonical URL
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		title TEXT,
		description TEXT,
		full_text TEXT,
		depth INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		folder_path TEXT,
		proxy_used TEXT,
		fingerprint TEXT,
		authenticated INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS headers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL REFERENCES pages(id),
		header_type TEXT NOT NULL,
		header_text TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL REFERENCES pages(id),
		link_type TEXT NOT NULL,
		url TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS media (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL REFERENCES pages(id),
		src TEXT NOT NULL,
		alt TEXT
	);

	CREATE TABLE IF NOT EXISTS structured_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL REFERENCES pages(id),
		json_data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS html_structure (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL REFERENCES pages(id),
		tag_name TEXT NOT NULL,
		selector TEXT,
		text_content TEXT,
		attributes TEXT,
		parent_selector TEXT
	);

	CREATE TABLE IF NOT EXISTS file_assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL REFERENCES pages(id),
		file_url TEXT NOT NULL,
		file_name TEXT,
		file_extension TEXT,
		file_size_bytes INTEGER,
		local_path TEXT,
		download_status TEXT NOT NULL,
		download_timestamp DATETIME,
		mime_type TEXT,
		error TEXT
	);

	-- Snapshots reference both URL and page id: history survives page
	-- deletion through the URL while the id keeps joins cheap
	CREATE TABLE IF NOT EXISTS page_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		snapshot_timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		page_id INTEGER REFERENCES pages(id),
		content_hash TEXT NOT NULL,
		title TEXT,
		description TEXT,
		full_text_hash TEXT,
		header_count INTEGER NOT NULL DEFAULT 0,
		link_count INTEGER NOT NULL DEFAULT 0,
		media_count INTEGER NOT NULL DEFAULT 0,
		file_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_url ON page_snapshots(url);
	CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON page_snapshots(snapshot_timestamp);

	CREATE TABLE IF NOT EXISTS change_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		change_timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		previous_snapshot_id INTEGER REFERENCES page_snapshots(id),
		current_snapshot_id INTEGER REFERENCES page_snapshots(id),
		change_type TEXT NOT NULL,
		change_category TEXT,
		change_summary TEXT,
		change_details TEXT,
		severity TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_changes_url ON change_log(url);
	CREATE INDEX IF NOT EXISTS idx_changes_timestamp ON change_log(change_timestamp);

	CREATE TABLE IF NOT EXISTS content_diffs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		change_log_id INTEGER NOT NULL REFERENCES change_log(id),
		field_name TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		diff_html TEXT,
		similarity_score REAL
	);

	CREATE TABLE IF NOT EXISTS link_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		change_log_id INTEGER NOT NULL REFERENCES change_log(id),
		link_url TEXT NOT NULL,
		link_type TEXT,
		change_action TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS media_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		change_log_id INTEGER NOT NULL REFERENCES change_log(id),
		media_src TEXT NOT NULL,
		media_alt TEXT,
		change_action TEXT NOT NULL
	);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // how this package writes timestamps
	time.RFC3339,              // full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on
// configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// formatTimestamp renders a timestamp the way this package stores them.
// RFC3339Nano keeps sub-second ordering for snapshots taken in quick
// succession.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
