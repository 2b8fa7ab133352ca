package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/websentry/websentry/internal/model"
)

// StorePage inserts a page record and all of its child rows in a single
// transaction. If a page with the same canonical URL already exists, no row
// is written: the existing id is returned together with ErrDuplicate so the
// caller can diff against it.
func (sdb *ScrapeDB) StorePage(ctx context.Context, record *model.PageRecord) (int64, error) {
	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	// One writer connection makes check-then-insert race-free, and keeps
	// the duplicate path free of driver-specific error inspection.
	var existingID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM pages WHERE url = ?`, record.URL).Scan(&existingID)
	switch {
	case err == nil:
		return existingID, fmt.Errorf("page %s: %w", record.URL, ErrDuplicate)
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("failed to check existing page: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
	INSERT INTO pages (url, title, description, full_text, depth, timestamp,
		folder_path, proxy_used, fingerprint, authenticated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.URL,
		record.Title,
		record.Description,
		record.FullText,
		record.Depth,
		formatTimestamp(record.CapturedAt),
		record.FolderPath,
		record.ProxyUsed,
		record.Fingerprint,
		record.Authenticated,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert page: %w", err)
	}
	pageID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read page id: %w", err)
	}

	if err := insertChildren(ctx, tx, pageID, record); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit page: %w", err)
	}
	record.ID = pageID
	return pageID, nil
}

// RefreshPage replaces a stored page's content and child rows with a newer
// capture, keeping the row id. Called after a re-visit has been diffed so
// the next visit compares against the latest content.
func (sdb *ScrapeDB) RefreshPage(ctx context.Context, pageID int64, record *model.PageRecord) error {
	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	_, err = tx.ExecContext(ctx, `
	UPDATE pages SET title = ?, description = ?, full_text = ?, timestamp = ?,
		proxy_used = ?, fingerprint = ?, authenticated = ?
	WHERE id = ?`,
		record.Title,
		record.Description,
		record.FullText,
		formatTimestamp(record.CapturedAt),
		record.ProxyUsed,
		record.Fingerprint,
		record.Authenticated,
		pageID,
	)
	if err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}

	for _, table := range []string{"headers", "links", "media", "structured_data", "html_structure", "file_assets"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE page_id = ?`, pageID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := insertChildren(ctx, tx, pageID, record); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit page refresh: %w", err)
	}
	return nil
}

// insertChildren writes a record's child collections inside tx.
func insertChildren(ctx context.Context, tx *sql.Tx, pageID int64, record *model.PageRecord) error {
	for _, h := range record.Headings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO headers (page_id, header_type, header_text) VALUES (?, ?, ?)`,
			pageID, h.Type, h.Text); err != nil {
			return fmt.Errorf("failed to insert header: %w", err)
		}
	}
	for _, l := range record.Links {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO links (page_id, link_type, url) VALUES (?, ?, ?)`,
			pageID, string(l.Type), l.URL); err != nil {
			return fmt.Errorf("failed to insert link: %w", err)
		}
	}
	for _, m := range record.Media {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO media (page_id, src, alt) VALUES (?, ?, ?)`,
			pageID, m.Src, m.Alt); err != nil {
			return fmt.Errorf("failed to insert media: %w", err)
		}
	}
	for _, blob := range record.StructuredData {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO structured_data (page_id, json_data) VALUES (?, ?)`,
			pageID, blob); err != nil {
			return fmt.Errorf("failed to insert structured data: %w", err)
		}
	}
	for _, n := range record.Skeleton {
		var attrs []byte
		if len(n.Attributes) > 0 {
			var err error
			attrs, err = json.Marshal(n.Attributes)
			if err != nil {
				return fmt.Errorf("failed to serialize attributes: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO html_structure (page_id, tag_name, selector, text_content, attributes, parent_selector)
		VALUES (?, ?, ?, ?, ?, ?)`,
			pageID, n.Tag, n.Selector, n.Text, string(attrs), n.ParentSelector); err != nil {
			return fmt.Errorf("failed to insert skeleton node: %w", err)
		}
	}
	for _, f := range record.Files {
		var downloadedAt any
		if !f.DownloadedAt.IsZero() {
			downloadedAt = formatTimestamp(f.DownloadedAt)
		}
		var localPath any
		if f.LocalPath != "" {
			localPath = f.LocalPath
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO file_assets (page_id, file_url, file_name, file_extension,
			file_size_bytes, local_path, download_status, download_timestamp, mime_type, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			pageID, f.URL, f.Name, f.Extension, f.SizeBytes, localPath,
			string(f.Status), downloadedAt, f.MimeType, f.Error); err != nil {
			return fmt.Errorf("failed to insert file asset: %w", err)
		}
	}
	return nil
}

// GetPageByURL retrieves a page record and its child collections by
// canonical URL. Returns ErrNotFound when no page matches.
func (sdb *ScrapeDB) GetPageByURL(ctx context.Context, url string) (*model.PageRecord, error) {
	var record model.PageRecord
	var timestamp string
	err := sdb.db.QueryRowContext(ctx, `
	SELECT id, url, title, description, full_text, depth, timestamp,
		folder_path, proxy_used, fingerprint, authenticated
	FROM pages WHERE url = ?`, url).Scan(
		&record.ID,
		&record.URL,
		&record.Title,
		&record.Description,
		&record.FullText,
		&record.Depth,
		&timestamp,
		&record.FolderPath,
		&record.ProxyUsed,
		&record.Fingerprint,
		&record.Authenticated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	record.CapturedAt = parseTimestamp(timestamp)

	if err := sdb.loadChildren(ctx, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// PageCount returns the number of stored pages.
func (sdb *ScrapeDB) PageCount(ctx context.Context) (int, error) {
	var count int
	if err := sdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

// loadChildren populates a record's child collections.
func (sdb *ScrapeDB) loadChildren(ctx context.Context, record *model.PageRecord) error {
	rows, err := sdb.db.QueryContext(ctx,
		`SELECT header_type, header_text FROM headers WHERE page_id = ? ORDER BY id`, record.ID)
	if err != nil {
		return fmt.Errorf("failed to query headers: %w", err)
	}
	for rows.Next() {
		var h model.Heading
		if err := rows.Scan(&h.Type, &h.Text); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan header: %w", err)
		}
		record.Headings = append(record.Headings, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = sdb.db.QueryContext(ctx,
		`SELECT link_type, url FROM links WHERE page_id = ? ORDER BY id`, record.ID)
	if err != nil {
		return fmt.Errorf("failed to query links: %w", err)
	}
	for rows.Next() {
		var l model.Link
		if err := rows.Scan(&l.Type, &l.URL); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan link: %w", err)
		}
		record.Links = append(record.Links, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = sdb.db.QueryContext(ctx,
		`SELECT src, alt FROM media WHERE page_id = ? ORDER BY id`, record.ID)
	if err != nil {
		return fmt.Errorf("failed to query media: %w", err)
	}
	for rows.Next() {
		var m model.Media
		if err := rows.Scan(&m.Src, &m.Alt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan media: %w", err)
		}
		record.Media = append(record.Media, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = sdb.db.QueryContext(ctx,
		`SELECT json_data FROM structured_data WHERE page_id = ? ORDER BY id`, record.ID)
	if err != nil {
		return fmt.Errorf("failed to query structured data: %w", err)
	}
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan structured data: %w", err)
		}
		record.StructuredData = append(record.StructuredData, blob)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = sdb.db.QueryContext(ctx, `
	SELECT file_url, file_name, file_extension, file_size_bytes,
		COALESCE(local_path, ''), download_status, COALESCE(download_timestamp, ''),
		mime_type, error
	FROM file_assets WHERE page_id = ? ORDER BY id`, record.ID)
	if err != nil {
		return fmt.Errorf("failed to query file assets: %w", err)
	}
	for rows.Next() {
		var f model.FileAsset
		var downloadedAt string
		if err := rows.Scan(&f.URL, &f.Name, &f.Extension, &f.SizeBytes,
			&f.LocalPath, &f.Status, &downloadedAt, &f.MimeType, &f.Error); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan file asset: %w", err)
		}
		if downloadedAt != "" {
			f.DownloadedAt = parseTimestamp(downloadedAt)
		}
		record.Files = append(record.Files, f)
	}
	rows.Close()
	return rows.Err()
}
