package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Snapshot is a content-addressed summary of a page at capture time.
// Snapshots are append-only: every successful visit to a URL adds exactly
// one, and the diff engine compares consecutive snapshots of the same URL.
//
// Design decision: snapshots carry the URL and timestamp themselves rather
// than relying only on the page foreign key, so change history survives even
// if page rows are deleted by external tooling.
type Snapshot struct {
	// ID is the database identifier, zero until stored.
	ID int64 `json:"id"`

	// URL is the canonical URL the snapshot belongs to.
	URL string `json:"url"`

	// TakenAt is the snapshot timestamp. Strictly increasing per URL.
	TakenAt time.Time `json:"taken_at"`

	// PageID references the page record the snapshot was built from.
	PageID int64 `json:"page_id"`

	// ContentHash is the SHA-256 of "title|description".
	ContentHash string `json:"content_hash"`

	// Title and Description are kept verbatim so content diffs can be
	// rendered without re-reading the page row.
	Title       string `json:"title"`
	Description string `json:"description"`

	// FullTextHash is the SHA-256 of the page's full visible text.
	FullTextHash string `json:"full_text_hash"`

	// Counts of the page's child collections at capture time.
	HeaderCount int `json:"header_count"`
	LinkCount   int `json:"link_count"`
	MediaCount  int `json:"media_count"`
	FileCount   int `json:"file_count"`
}

// NewSnapshot builds a snapshot from a page record.
// The snapshot's ID is zero until it is inserted.
func NewSnapshot(page *PageRecord) *Snapshot {
	return &Snapshot{
		URL:          page.URL,
		TakenAt:      page.CapturedAt,
		PageID:       page.ID,
		ContentHash:  HashContent(page.Title, page.Description),
		Title:        page.Title,
		Description:  page.Description,
		FullTextHash: HashText(page.FullText),
		HeaderCount:  len(page.Headings),
		LinkCount:    len(page.Links),
		MediaCount:   len(page.Media),
		FileCount:    len(page.Files),
	}
}

// HashContent returns the SHA-256 hex digest of "title|description".
// The separator prevents (title="a", desc="bc") and (title="ab", desc="c")
// from colliding.
func HashContent(title, description string) string {
	sum := sha256.Sum256([]byte(title + "|" + description))
	return hex.EncodeToString(sum[:])
}

// HashText returns the SHA-256 hex digest of the given text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
