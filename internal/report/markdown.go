package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/websentry/websentry/internal/model"
)

// MarkdownWriter outputs change reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the change report in Markdown format.
func (w *MarkdownWriter) Write(report *ChangeReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeChanges(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with tracking information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *ChangeReport) {
	md.H1("Websentry Change Report")
	md.PlainText("")

	rows := [][]string{
		{"URL", "`" + report.URL + "`"},
		{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Snapshots", strconv.Itoa(report.SnapshotCount)},
	}
	if !report.FirstCaptured.IsZero() {
		rows = append(rows,
			[]string{"First Captured", report.FirstCaptured.Format("2006-01-02 15:04:05")},
			[]string{"Last Captured", report.LastCaptured.Format("2006-01-02 15:04:05")},
		)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *ChangeReport) {
	md.H2("Severity Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🟠 High", strconv.Itoa(report.HighCount)},
			{"🟡 Medium", strconv.Itoa(report.MediumCount)},
			{"🔵 Low", strconv.Itoa(report.LowCount)},
			{"**Total**", "**" + strconv.Itoa(report.TotalChanges()) + "**"},
		},
	})
	md.PlainText("")

	if report.HasChanges() {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *ChangeReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Change Severity Distribution"),
		piechart.WithShowData(true),
	)

	if report.HighCount > 0 {
		chart.LabelAndIntValue("High", uint64(report.HighCount))
	}
	if report.MediumCount > 0 {
		chart.LabelAndIntValue("Medium", uint64(report.MediumCount))
	}
	if report.LowCount > 0 {
		chart.LabelAndIntValue("Low", uint64(report.LowCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *ChangeReport) {
	switch {
	case report.HighCount > 0:
		md.Warningf(
			"Substantial content changes detected. %d high severity change(s) should be reviewed.",
			report.HighCount,
		)
	case report.MediumCount > 0:
		md.Importantf(
			"Notable changes found. %d change(s) may be worth attention.",
			report.MediumCount,
		)
	case report.TotalChanges() > 0:
		md.Note("Only low severity changes detected.")
	default:
		md.Tip("No changes detected between captures.")
	}
	md.PlainText("")
}

// writeChanges writes all changes grouped by severity.
func (w *MarkdownWriter) writeChanges(md *markdown.Markdown, report *ChangeReport) {
	md.H2("Changes")
	md.PlainText("")

	if !report.HasChanges() {
		md.PlainText("No changes recorded.")
		md.PlainText("")
		return
	}

	severities := []struct {
		level  model.Severity
		header string
	}{
		{model.SeverityHigh, "### 🟠 High"},
		{model.SeverityMedium, "### 🟡 Medium"},
		{model.SeverityLow, "### 🔵 Low"},
	}

	for _, sev := range severities {
		changes := report.ChangesBySeverity(sev.level)
		if len(changes) == 0 {
			continue
		}

		md.PlainText(sev.header)
		md.PlainText("")
		w.writeChangesTable(md, changes)
	}
}

// writeChangesTable writes a table of changes with details.
func (w *MarkdownWriter) writeChangesTable(md *markdown.Markdown, changes []model.Change) {
	headers := []string{"Detected", "Category", "Summary"}

	rows := make([][]string, len(changes))
	for i, c := range changes {
		rows[i] = []string{
			c.ChangedAt.Format("2006-01-02 15:04"),
			string(c.Type) + "/" + c.Category,
			truncateString(c.Summary, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: headers,
		Rows:   rows,
	})
	md.PlainText("")

	// Expandable sample lists for set differences
	for _, c := range changes {
		if samples := changeSamples(c); samples != "" {
			md.Details(c.Summary, samples)
		}
	}
	md.PlainText("")
}

// changeSamples renders the per-item rows of a change as a bullet list.
func changeSamples(c model.Change) string {
	var sb strings.Builder
	for _, lc := range c.LinkChanges {
		sb.WriteString("- `" + lc.URL + "`\n")
	}
	for _, mc := range c.MediaChanges {
		sb.WriteString("- `" + mc.Src + "`\n")
	}
	return sb.String()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by websentry*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
