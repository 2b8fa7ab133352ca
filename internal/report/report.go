package report

import (
	"time"

	"github.com/websentry/websentry/internal/model"
)

// ChangeReport aggregates the change history of a tracked URL for output.
// It is built from the stored snapshots and change log rows of one URL.
type ChangeReport struct {
	// URL is the canonical URL the report covers.
	URL string `json:"url"`

	// GeneratedAt is when the report was assembled.
	GeneratedAt time.Time `json:"generated_at"`

	// SnapshotCount is the number of captures recorded for the URL.
	SnapshotCount int `json:"snapshot_count"`

	// FirstCaptured and LastCaptured bound the observation window.
	// Both are zero when no snapshots exist.
	FirstCaptured time.Time `json:"first_captured,omitzero"`
	LastCaptured  time.Time `json:"last_captured,omitzero"`

	// Changes is the change log, oldest first.
	Changes []model.Change `json:"changes,omitempty"`

	// HighCount, MediumCount and LowCount summarize change severities.
	HighCount   int `json:"high_count"`
	MediumCount int `json:"medium_count"`
	LowCount    int `json:"low_count"`
}

// NewChangeReport builds a ChangeReport from stored snapshots and changes.
func NewChangeReport(url string, snapshots []model.Snapshot, changes []model.Change) *ChangeReport {
	r := &ChangeReport{
		URL:           url,
		GeneratedAt:   time.Now(),
		SnapshotCount: len(snapshots),
		Changes:       changes,
	}

	if len(snapshots) > 0 {
		r.FirstCaptured = snapshots[0].TakenAt
		r.LastCaptured = snapshots[len(snapshots)-1].TakenAt
	}

	for _, c := range changes {
		switch c.Severity {
		case model.SeverityHigh:
			r.HighCount++
		case model.SeverityMedium:
			r.MediumCount++
		default:
			r.LowCount++
		}
	}

	return r
}

// TotalChanges returns the number of recorded changes.
func (r *ChangeReport) TotalChanges() int {
	return len(r.Changes)
}

// HasChanges reports whether any change was recorded.
func (r *ChangeReport) HasChanges() bool {
	return len(r.Changes) > 0
}

// ChangesBySeverity returns the changes of the given severity, in log order.
func (r *ChangeReport) ChangesBySeverity(severity model.Severity) []model.Change {
	var out []model.Change
	for _, c := range r.Changes {
		if c.Severity == severity {
			out = append(out, c)
		}
	}
	return out
}
