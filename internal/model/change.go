package model

import "time"

// ChangeType is the class of a detected change.
type ChangeType string

const (
	// ChangeContent covers title, description and full-text changes.
	ChangeContent ChangeType = "content"

	// ChangeStructure covers structural signals such as header counts.
	ChangeStructure ChangeType = "structure"

	// ChangeLinks covers added or removed links.
	ChangeLinks ChangeType = "links"

	// ChangeMedia covers added or removed images.
	ChangeMedia ChangeType = "media"

	// ChangeFiles covers added or removed downloadable files.
	ChangeFiles ChangeType = "files"
)

// ChangeAction describes the direction of a set difference.
type ChangeAction string

const (
	// ActionAdded marks items present now but not in the previous snapshot.
	ActionAdded ChangeAction = "added"

	// ActionRemoved marks items present before but gone now.
	ActionRemoved ChangeAction = "removed"
)

// Severity ranks how significant a change is.
//
// Design decision: we use iota-based constants rather than string constants
// for efficiency in comparisons and sorting. String() provides the canonical
// lowercase form stored in the database.
type Severity int

const (
	// SeverityLow marks routine changes: descriptions, added links,
	// media churn.
	SeverityLow Severity = iota

	// SeverityMedium marks changes worth attention: titles, removed
	// links, moderately rewritten body text, added files.
	SeverityMedium

	// SeverityHigh marks substantial changes: heavily rewritten body
	// text, removed files.
	SeverityHigh
)

// String returns the canonical lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a stored severity string back to a Severity.
// Unknown values map to SeverityLow.
func ParseSeverity(s string) Severity {
	switch s {
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	default:
		return SeverityLow
	}
}

// Change is one typed difference between two snapshots of the same URL.
// A comparison of two page revisions yields zero or more changes; each is
// stored as a change_log row with its typed child rows.
type Change struct {
	// ID is the database identifier, zero until stored.
	ID int64 `json:"id"`

	// URL is the canonical URL the change belongs to.
	URL string `json:"url"`

	// ChangedAt is when the change was detected.
	ChangedAt time.Time `json:"changed_at"`

	// PreviousSnapshotID and CurrentSnapshotID reference the two snapshots
	// that were compared. Both belong to the same URL.
	PreviousSnapshotID int64 `json:"previous_snapshot_id"`
	CurrentSnapshotID  int64 `json:"current_snapshot_id"`

	// Type is the change class.
	Type ChangeType `json:"type"`

	// Category refines the type: "title", "description", "full_text",
	// "header_count", "links_added", "links_removed", and so on.
	Category string `json:"category"`

	// Summary is a one-line human-readable description.
	Summary string `json:"summary"`

	// Details is a JSON blob with category-specific data, such as sample
	// items and full counts for set differences.
	Details string `json:"details,omitempty"`

	// Severity ranks the change.
	Severity Severity `json:"severity"`

	// ContentDiffs holds the field-level diffs for content changes.
	ContentDiffs []ContentDiff `json:"content_diffs,omitempty"`

	// LinkChanges holds per-link rows for link changes.
	LinkChanges []LinkChange `json:"link_changes,omitempty"`

	// MediaChanges holds per-image rows for media changes.
	MediaChanges []MediaChange `json:"media_changes,omitempty"`
}

// ContentDiff is a field-level diff attached to a content change.
type ContentDiff struct {
	// Field is the compared field: "title", "description" or "full_text".
	Field string `json:"field"`

	// OldValue and NewValue are the compared values. For full text both
	// sides are truncated before comparison.
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`

	// DiffHTML is a rendered side-by-side HTML diff.
	DiffHTML string `json:"diff_html,omitempty"`

	// Similarity is the LCS similarity of the two values, in [0,1].
	Similarity float64 `json:"similarity"`
}

// LinkChange is one added or removed link attached to a links change.
type LinkChange struct {
	URL    string       `json:"url"`
	Type   LinkType     `json:"type"`
	Action ChangeAction `json:"action"`
}

// MediaChange is one added or removed image attached to a media change.
type MediaChange struct {
	Src    string       `json:"src"`
	Alt    string       `json:"alt,omitempty"`
	Action ChangeAction `json:"action"`
}
