package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/websentry/websentry/internal/model"
)

// InsertSnapshot stores a snapshot and fills in its ID.
func (sdb *ScrapeDB) InsertSnapshot(ctx context.Context, snap *model.Snapshot) (int64, error) {
	result, err := sdb.db.ExecContext(ctx, `
	INSERT INTO page_snapshots (url, snapshot_timestamp, page_id, content_hash,
		title, description, full_text_hash, header_count, link_count, media_count, file_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.URL,
		formatTimestamp(snap.TakenAt),
		snap.PageID,
		snap.ContentHash,
		snap.Title,
		snap.Description,
		snap.FullTextHash,
		snap.HeaderCount,
		snap.LinkCount,
		snap.MediaCount,
		snap.FileCount,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot id: %w", err)
	}
	snap.ID = id
	return id, nil
}

// PreviousSnapshot returns the most recent snapshot of url taken before the
// snapshot with id beforeID, or ErrNotFound when url has no earlier snapshot.
// Pass beforeID 0 to get the latest snapshot.
func (sdb *ScrapeDB) PreviousSnapshot(ctx context.Context, url string, beforeID int64) (*model.Snapshot, error) {
	query := `
	SELECT id, url, snapshot_timestamp, page_id, content_hash, title,
		description, full_text_hash, header_count, link_count, media_count, file_count
	FROM page_snapshots
	WHERE url = ?`
	args := []any{url}
	if beforeID > 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT 1`

	snap, err := scanSnapshot(sdb.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no earlier snapshot for %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get previous snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns all snapshots of url in insertion order.
func (sdb *ScrapeDB) ListSnapshots(ctx context.Context, url string) ([]model.Snapshot, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT id, url, snapshot_timestamp, page_id, content_hash, title,
		description, full_text_hash, header_count, link_count, media_count, file_count
	FROM page_snapshots
	WHERE url = ?
	ORDER BY id`, url)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// ListTrackedURLs returns every URL that has at least one snapshot,
// alphabetically.
func (sdb *ScrapeDB) ListTrackedURLs(ctx context.Context) ([]string, error) {
	rows, err := sdb.db.QueryContext(ctx,
		`SELECT DISTINCT url FROM page_snapshots ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(s scanner) (*model.Snapshot, error) {
	var snap model.Snapshot
	var takenAt string
	err := s.Scan(
		&snap.ID,
		&snap.URL,
		&takenAt,
		&snap.PageID,
		&snap.ContentHash,
		&snap.Title,
		&snap.Description,
		&snap.FullTextHash,
		&snap.HeaderCount,
		&snap.LinkCount,
		&snap.MediaCount,
		&snap.FileCount,
	)
	if err != nil {
		return nil, err
	}
	snap.TakenAt = parseTimestamp(takenAt)
	return &snap, nil
}
