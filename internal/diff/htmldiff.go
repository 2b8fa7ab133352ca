package diff

import (
	"html"
	"strings"
)

// contextLines is how many unchanged lines are kept around each change in
// the rendered diff.
const contextLines = 3

// lineOp is one row of the line-level diff.
type lineOp struct {
	kind string // "equal", "removed", "added"
	old  string
	new  string
}

// SideBySideHTML renders a side-by-side HTML table diff of two texts.
// Unchanged regions are collapsed to contextLines lines around each change;
// collapsed runs appear as a single ellipsis row. Cell content is escaped.
func SideBySideHTML(oldText, newText string) string {
	ops := diffLines(splitLines(oldText), splitLines(newText))
	visible := markVisible(ops)

	var b strings.Builder
	b.WriteString(`<table class="diff">`)
	b.WriteString(`<tr><th>Before</th><th>After</th></tr>`)

	skipping := false
	for i, op := range ops {
		if !visible[i] {
			if !skipping {
				b.WriteString(`<tr class="skip"><td>&hellip;</td><td>&hellip;</td></tr>`)
				skipping = true
			}
			continue
		}
		skipping = false

		switch op.kind {
		case "equal":
			cell := html.EscapeString(op.old)
			b.WriteString(`<tr><td>` + cell + `</td><td>` + cell + `</td></tr>`)
		case "removed":
			b.WriteString(`<tr class="removed"><td>` + html.EscapeString(op.old) + `</td><td></td></tr>`)
		case "added":
			b.WriteString(`<tr class="added"><td></td><td>` + html.EscapeString(op.new) + `</td></tr>`)
		}
	}
	b.WriteString(`</table>`)
	return b.String()
}

// splitLines splits on newlines without producing a trailing empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// diffLines produces an edit script from an LCS over lines: equal lines are
// kept, the rest become removed/added rows.
func diffLines(oldLines, newLines []string) []lineOp {
	// LCS backtrack table. Line counts here are small (diffed texts are
	// truncated upstream), so the quadratic table is fine.
	m, n := len(oldLines), len(newLines)
	table := make([][]int, m+1)
	for i := range table {
		table[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if oldLines[i-1] == newLines[j-1] {
				table[i][j] = table[i-1][j-1] + 1
			} else {
				table[i][j] = max(table[i-1][j], table[i][j-1])
			}
		}
	}

	var ops []lineOp
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && oldLines[i-1] == newLines[j-1]:
			ops = append(ops, lineOp{kind: "equal", old: oldLines[i-1], new: newLines[j-1]})
			i--
			j--
		case j > 0 && (i == 0 || table[i][j-1] >= table[i-1][j]):
			ops = append(ops, lineOp{kind: "added", new: newLines[j-1]})
			j--
		default:
			ops = append(ops, lineOp{kind: "removed", old: oldLines[i-1]})
			i--
		}
	}

	// Reverse into forward order.
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops
}

// markVisible flags every changed row plus contextLines of surrounding
// equal rows.
func markVisible(ops []lineOp) []bool {
	visible := make([]bool, len(ops))
	for i, op := range ops {
		if op.kind == "equal" {
			continue
		}
		lo := max(0, i-contextLines)
		hi := min(len(ops)-1, i+contextLines)
		for j := lo; j <= hi; j++ {
			visible[j] = true
		}
	}
	return visible
}
