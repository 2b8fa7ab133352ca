package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/websentry/websentry/internal/model"
)

// TextWriter outputs human-readable change reports.
// This format is designed for terminal display with clear section
// formatting and severity markers.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type TextWriter struct {
	baseWriter

	// showEmpty controls whether severity sections with no changes
	// are shown.
	showEmpty bool

	// verbose enables field-level diff values in the output.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with old and new field values.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the change report in human-readable format.
func (w *TextWriter) Write(report *ChangeReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeChanges(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with tracking information.
func (w *TextWriter) writeHeader(sb *strings.Builder, report *ChangeReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       WEBSENTRY CHANGE REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("URL:            %s\n", report.URL))
	sb.WriteString(fmt.Sprintf("Generated:      %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Snapshots:      %d\n", report.SnapshotCount))

	if !report.FirstCaptured.IsZero() {
		sb.WriteString(fmt.Sprintf("First Captured: %s\n", report.FirstCaptured.Format("2006-01-02 15:04:05")))
		sb.WriteString(fmt.Sprintf("Last Captured:  %s\n", report.LastCaptured.Format("2006-01-02 15:04:05")))
	}

	sb.WriteString("\n")
}

// writeSummary writes the severity summary section.
func (w *TextWriter) writeSummary(sb *strings.Builder, report *ChangeReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SEVERITY SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  HIGH:   %d\n", report.HighCount))
	sb.WriteString(fmt.Sprintf("  MEDIUM: %d\n", report.MediumCount))
	sb.WriteString(fmt.Sprintf("  LOW:    %d\n", report.LowCount))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  TOTAL:  %d changes\n", report.TotalChanges()))
	sb.WriteString("\n")
}

// writeChanges writes all changes grouped by severity, high first.
func (w *TextWriter) writeChanges(sb *strings.Builder, report *ChangeReport) {
	if !report.HasChanges() && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CHANGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	severities := []model.Severity{
		model.SeverityHigh,
		model.SeverityMedium,
		model.SeverityLow,
	}

	for _, severity := range severities {
		changes := report.ChangesBySeverity(severity)
		if len(changes) == 0 && !w.showEmpty {
			continue
		}

		w.writeChangesForSeverity(sb, severity, changes)
	}
}

// writeChangesForSeverity writes changes of a specific severity level.
func (w *TextWriter) writeChangesForSeverity(sb *strings.Builder, severity model.Severity, changes []model.Change) {
	indicator := w.getSeverityIndicator(severity)
	sb.WriteString(fmt.Sprintf("[%s] %s\n", indicator, strings.ToUpper(severity.String())))

	if len(changes) == 0 {
		sb.WriteString("  No changes\n\n")
		return
	}

	for _, change := range changes {
		sb.WriteString(fmt.Sprintf("  * %s\n", change.Summary))
		sb.WriteString(fmt.Sprintf("    Detected: %s\n", change.ChangedAt.Format("2006-01-02 15:04:05")))
		sb.WriteString(fmt.Sprintf("    Category: %s/%s\n", change.Type, change.Category))

		for _, lc := range change.LinkChanges {
			sb.WriteString(fmt.Sprintf("    [%s] %s\n", actionMarker(lc.Action), lc.URL))
		}
		for _, mc := range change.MediaChanges {
			sb.WriteString(fmt.Sprintf("    [%s] %s\n", actionMarker(mc.Action), mc.Src))
		}

		if w.verbose {
			for _, diff := range change.ContentDiffs {
				sb.WriteString(fmt.Sprintf("    Old %s: %s\n", diff.Field, diff.OldValue))
				sb.WriteString(fmt.Sprintf("    New %s: %s\n", diff.Field, diff.NewValue))
				sb.WriteString(fmt.Sprintf("    Similarity: %.2f\n", diff.Similarity))
			}
		}
	}
	sb.WriteString("\n")
}

// getSeverityIndicator returns a visual indicator for the severity level.
func (w *TextWriter) getSeverityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	default:
		return "?"
	}
}

// actionMarker returns "+" for additions and "-" for removals.
func actionMarker(action model.ChangeAction) string {
	if action == model.ActionAdded {
		return "+"
	}
	return "-"
}

// writeFooter writes the report footer.
func (w *TextWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by websentry\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
