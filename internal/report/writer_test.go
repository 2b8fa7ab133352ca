package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/websentry/websentry/internal/model"
)

// sampleReport builds a report with one change per severity level.
func sampleReport() *ChangeReport {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	snapshots := []model.Snapshot{
		{ID: 1, URL: "https://example.com/", TakenAt: base},
		{ID: 2, URL: "https://example.com/", TakenAt: base.Add(24 * time.Hour)},
	}

	changes := []model.Change{
		{
			URL:       "https://example.com/",
			ChangedAt: base.Add(24 * time.Hour),
			Type:      model.ChangeContent,
			Category:  "title",
			Summary:   "title changed",
			Severity:  model.SeverityMedium,
			ContentDiffs: []model.ContentDiff{
				{Field: "title", OldValue: "Old Title", NewValue: "New Title", Similarity: 0.5},
			},
		},
		{
			URL:       "https://example.com/",
			ChangedAt: base.Add(24 * time.Hour),
			Type:      model.ChangeLinks,
			Category:  "links_added",
			Summary:   "2 links added",
			Severity:  model.SeverityLow,
			LinkChanges: []model.LinkChange{
				{URL: "https://example.com/new", Type: model.LinkInternal, Action: model.ActionAdded},
				{URL: "https://other.example/page", Type: model.LinkExternal, Action: model.ActionAdded},
			},
		},
		{
			URL:       "https://example.com/",
			ChangedAt: base.Add(24 * time.Hour),
			Type:      model.ChangeFiles,
			Category:  "files_removed",
			Summary:   "1 file removed",
			Severity:  model.SeverityHigh,
		},
	}

	return NewChangeReport("https://example.com/", snapshots, changes)
}

func TestNewChangeReport(t *testing.T) {
	t.Parallel()

	report := sampleReport()

	if report.SnapshotCount != 2 {
		t.Errorf("SnapshotCount = %d, want 2", report.SnapshotCount)
	}
	if report.HighCount != 1 || report.MediumCount != 1 || report.LowCount != 1 {
		t.Errorf("severity counts = %d/%d/%d, want 1/1/1",
			report.HighCount, report.MediumCount, report.LowCount)
	}
	if report.TotalChanges() != 3 {
		t.Errorf("TotalChanges() = %d, want 3", report.TotalChanges())
	}
	if !report.HasChanges() {
		t.Error("HasChanges() = false, want true")
	}
	if report.FirstCaptured.After(report.LastCaptured) {
		t.Error("FirstCaptured is after LastCaptured")
	}

	high := report.ChangesBySeverity(model.SeverityHigh)
	if len(high) != 1 || high[0].Category != "files_removed" {
		t.Errorf("unexpected high severity changes: %+v", high)
	}
}

func TestNewChangeReportEmpty(t *testing.T) {
	t.Parallel()

	report := NewChangeReport("https://example.com/", nil, nil)

	if report.HasChanges() {
		t.Error("HasChanges() = true for empty report")
	}
	if !report.FirstCaptured.IsZero() {
		t.Error("FirstCaptured should be zero without snapshots")
	}
}

func TestTextWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewTextWriter(&buf)

	n, err := w.Write(sampleReport())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != buf.Len() {
		t.Errorf("Write() returned %d bytes, buffer has %d", n, buf.Len())
	}

	out := buf.String()
	for _, want := range []string{
		"WEBSENTRY CHANGE REPORT",
		"https://example.com/",
		"HIGH:   1",
		"MEDIUM: 1",
		"LOW:    1",
		"TOTAL:  3 changes",
		"[!!] HIGH",
		"1 file removed",
		"[+] https://example.com/new",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	// Field values only appear in verbose mode.
	if strings.Contains(out, "Old Title") {
		t.Error("non-verbose output includes field values")
	}
}

func TestTextWriterVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewTextWriter(&buf, WithVerbose(true))

	if _, err := w.Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Old Title") || !strings.Contains(out, "New Title") {
		t.Error("verbose output missing field values")
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewJSONWriter(&buf)

	if _, err := w.Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var decoded ChangeReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.URL != "https://example.com/" {
		t.Errorf("URL = %q", decoded.URL)
	}
	if len(decoded.Changes) != 3 {
		t.Errorf("len(Changes) = %d, want 3", len(decoded.Changes))
	}
}

func TestJSONWriterPrettyPrint(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewJSONWriter(&buf, WithPrettyPrint())

	if _, err := w.Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("pretty printed output has no indentation")
	}
}

func TestVersionedJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewVersionedJSONWriter(&buf, "1.2.3")

	if _, err := w.Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var wrapped VersionedReport
	if err := json.Unmarshal(buf.Bytes(), &wrapped); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if wrapped.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", wrapped.Version)
	}
	if wrapped.Report == nil || wrapped.Report.TotalChanges() != 3 {
		t.Error("wrapped report missing or incomplete")
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewMarkdownWriter(&buf)

	if _, err := w.Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# Websentry Change Report",
		"| Severity | Count |",
		"### 🟠 High",
		"1 file removed",
		"https://example.com/new",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMarkdownWriterNoChanges(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewMarkdownWriter(&buf)

	if _, err := w.Write(NewChangeReport("https://example.com/", nil, nil)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if !strings.Contains(buf.String(), "No changes recorded.") {
		t.Error("empty report missing no-changes notice")
	}
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, jsonBuf bytes.Buffer
	mw := NewMultiWriter(NewTextWriter(&text), NewJSONWriter(&jsonBuf))

	n, err := mw.Write(sampleReport())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != text.Len()+jsonBuf.Len() {
		t.Errorf("total bytes = %d, want %d", n, text.Len()+jsonBuf.Len())
	}
	if text.Len() == 0 || jsonBuf.Len() == 0 {
		t.Error("one of the writers received no output")
	}
}
