package database

import (
	"context"
	"fmt"
	"time"

	"github.com/websentry/websentry/internal/model"
)

// InsertChange stores a change-log entry and its typed child rows in one
// transaction, and fills in the change's ID.
func (sdb *ScrapeDB) InsertChange(ctx context.Context, change *model.Change) (int64, error) {
	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	result, err := tx.ExecContext(ctx, `
	INSERT INTO change_log (url, change_timestamp, previous_snapshot_id,
		current_snapshot_id, change_type, change_category, change_summary,
		change_details, severity)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		change.URL,
		formatTimestamp(change.ChangedAt),
		change.PreviousSnapshotID,
		change.CurrentSnapshotID,
		string(change.Type),
		change.Category,
		change.Summary,
		change.Details,
		change.Severity.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert change: %w", err)
	}
	changeID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read change id: %w", err)
	}

	for _, d := range change.ContentDiffs {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO content_diffs (change_log_id, field_name, old_value, new_value, diff_html, similarity_score)
		VALUES (?, ?, ?, ?, ?, ?)`,
			changeID, d.Field, d.OldValue, d.NewValue, d.DiffHTML, d.Similarity); err != nil {
			return 0, fmt.Errorf("failed to insert content diff: %w", err)
		}
	}
	for _, l := range change.LinkChanges {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO link_changes (change_log_id, link_url, link_type, change_action)
		VALUES (?, ?, ?, ?)`,
			changeID, l.URL, string(l.Type), string(l.Action)); err != nil {
			return 0, fmt.Errorf("failed to insert link change: %w", err)
		}
	}
	for _, m := range change.MediaChanges {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO media_changes (change_log_id, media_src, media_alt, change_action)
		VALUES (?, ?, ?, ?)`,
			changeID, m.Src, m.Alt, string(m.Action)); err != nil {
			return 0, fmt.Errorf("failed to insert media change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit change: %w", err)
	}
	change.ID = changeID
	return changeID, nil
}

// ListChanges returns change-log entries for url in insertion order,
// including their typed child rows. A non-zero since filters out entries
// detected before it.
func (sdb *ScrapeDB) ListChanges(ctx context.Context, url string, since time.Time) ([]model.Change, error) {
	query := `
	SELECT id, url, change_timestamp, previous_snapshot_id, current_snapshot_id,
		change_type, change_category, change_summary, change_details, severity
	FROM change_log
	WHERE url = ?`
	args := []any{url}
	if !since.IsZero() {
		query += ` AND change_timestamp >= ?`
		args = append(args, formatTimestamp(since))
	}
	query += ` ORDER BY id`

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	defer rows.Close()

	var changes []model.Change
	for rows.Next() {
		var c model.Change
		var changedAt, severity string
		if err := rows.Scan(&c.ID, &c.URL, &changedAt, &c.PreviousSnapshotID,
			&c.CurrentSnapshotID, &c.Type, &c.Category, &c.Summary,
			&c.Details, &severity); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		c.ChangedAt = parseTimestamp(changedAt)
		c.Severity = model.ParseSeverity(severity)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range changes {
		if err := sdb.loadChangeChildren(ctx, &changes[i]); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

// loadChangeChildren populates a change's typed child rows.
func (sdb *ScrapeDB) loadChangeChildren(ctx context.Context, change *model.Change) error {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT field_name, old_value, new_value, diff_html, similarity_score
	FROM content_diffs WHERE change_log_id = ? ORDER BY id`, change.ID)
	if err != nil {
		return fmt.Errorf("failed to query content diffs: %w", err)
	}
	for rows.Next() {
		var d model.ContentDiff
		if err := rows.Scan(&d.Field, &d.OldValue, &d.NewValue, &d.DiffHTML, &d.Similarity); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan content diff: %w", err)
		}
		change.ContentDiffs = append(change.ContentDiffs, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = sdb.db.QueryContext(ctx, `
	SELECT link_url, link_type, change_action
	FROM link_changes WHERE change_log_id = ? ORDER BY id`, change.ID)
	if err != nil {
		return fmt.Errorf("failed to query link changes: %w", err)
	}
	for rows.Next() {
		var l model.LinkChange
		if err := rows.Scan(&l.URL, &l.Type, &l.Action); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan link change: %w", err)
		}
		change.LinkChanges = append(change.LinkChanges, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = sdb.db.QueryContext(ctx, `
	SELECT media_src, media_alt, change_action
	FROM media_changes WHERE change_log_id = ? ORDER BY id`, change.ID)
	if err != nil {
		return fmt.Errorf("failed to query media changes: %w", err)
	}
	for rows.Next() {
		var m model.MediaChange
		if err := rows.Scan(&m.Src, &m.Alt, &m.Action); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan media change: %w", err)
		}
		change.MediaChanges = append(change.MediaChanges, m)
	}
	rows.Close()
	return rows.Err()
}
