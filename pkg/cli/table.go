package cli

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// ansiEscape matches ANSI escape sequences for stripping when calculating visual width.
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// visualWidth returns the display width of s, excluding ANSI escape codes
// and counting Unicode runes (not bytes) for correct multi-byte character width.
func visualWidth(s string) int {
	return utf8.RuneCountInString(ansiEscape.ReplaceAllString(s, ""))
}

// terminalColumns returns the terminal column count for stdout.
// COLUMNS overrides the detected width, matching how audit/status output
// is piped through `| cat` in CI where no tty is attached.
func terminalColumns() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 0 {
			return n
		}
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 0
	}
	return w
}

// Table renders column-aligned output for cognitctl's listing commands
// (`audit list`, `status`, cluster candidate dumps). Headers and
// the dash divider are written lazily on Flush, so a table with no rows
// produces no header either — a bare "no events found" message reads
// better than an empty header band.
//
// When stdout is a terminal (or COLUMNS is set), output is constrained to
// the terminal width, word-wrapping any column that would otherwise force
// a line overflow.
type Table struct {
	headers []string
	rows    [][]string
	prefix  string
	footer  string

	// MaxRows caps the number of rows printed by Flush. Older rows are
	// dropped and a summary line reports how many were omitted. Zero
	// means unbounded. Used by `audit list` so a large `--limit` doesn't
	// flood a terminal with history nobody asked to scroll through.
	MaxRows int
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// NewAuditTable returns a Table preconfigured for audit.Event listings,
// matching the column set `cognitctl audit list` prints.
func NewAuditTable() *Table {
	return NewTable("TIMESTAMP", "CALL", "FUNCTION", "STAGE", "CLUSTER", "STATUS")
}

// NewClusterTable returns a Table preconfigured for edge cluster candidate
// listings, matching what the cluster selector considered for the active
// requirements.
func NewClusterTable() *Table {
	return NewTable("ENDPOINT", "NAME", "LATENCY_MS", "SELECTED")
}

// WithPrefix sets a string prepended to every line (headers, divider, rows).
// Useful for indenting sub-tables within larger output.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row appends a row to the table.
func (t *Table) Row(values ...string) {
	t.rows = append(t.rows, values)
}

// Footer sets a line printed after all rows, below the last row with no
// divider — used for a pass/fail tally under an audit listing.
func (t *Table) Footer(line string) {
	t.footer = line
}

// Flush writes all buffered output. If no rows were added, nothing is printed.
func (t *Table) Flush() {
	if len(t.rows) == 0 {
		return
	}

	rows := t.rows
	omitted := 0
	if t.MaxRows > 0 && len(rows) > t.MaxRows {
		omitted = len(rows) - t.MaxRows
		rows = rows[omitted:]
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visualWidth(h)
	}
	for _, row := range rows {
		for i, v := range row {
			if i < len(widths) {
				if vl := visualWidth(v); vl > widths[i] {
					widths[i] = vl
				}
			}
		}
	}

	if tw := terminalColumns(); tw > 0 {
		widths = capWidths(widths, t.headers, tw, visualWidth(t.prefix))
	}

	t.printRow(t.headers, widths)

	dividers := make([]string, len(t.headers))
	for i := range t.headers {
		dividers[i] = strings.Repeat("-", widths[i])
	}
	t.printRow(dividers, widths)

	for _, row := range rows {
		t.printRow(row, widths)
	}

	if omitted > 0 {
		fmt.Fprintf(os.Stdout, "%s%s\n", t.prefix, Dim(fmt.Sprintf("... %d earlier row(s) omitted", omitted)))
	}
	if t.footer != "" {
		fmt.Fprintln(os.Stdout, t.prefix+t.footer)
	}
}

// capWidths reduces column widths so the total line length fits within
// termWidth. Columns are never shrunk below their header width.
// prefixLen is the visual length of the per-row prefix string.
func capWidths(widths []int, headers []string, termWidth, prefixLen int) []int {
	result := make([]int, len(widths))
	copy(result, widths)

	minWidths := make([]int, len(headers))
	for i, h := range headers {
		minWidths[i] = visualWidth(h)
	}

	const colGap = 2

	for {
		lineWidth := prefixLen
		for _, w := range result {
			lineWidth += w
		}
		if len(result) > 1 {
			lineWidth += colGap * (len(result) - 1)
		}
		if lineWidth <= termWidth {
			break
		}

		maxW, maxI := -1, -1
		for i, w := range result {
			if w > minWidths[i] && w > maxW {
				maxW = w
				maxI = i
			}
		}
		if maxI < 0 {
			break
		}

		excess := lineWidth - termWidth
		available := result[maxI] - minWidths[maxI]
		if excess > available {
			excess = available
		}
		result[maxI] -= excess
	}

	return result
}

// wrapCell splits s into lines no wider than width visual characters.
// If s fits within width, it is returned unchanged (ANSI codes preserved).
// Otherwise ANSI codes are stripped and the plain text is word-wrapped,
// hard-breaking any single word that exceeds width on its own.
func wrapCell(s string, width int) []string {
	if width <= 0 || visualWidth(s) <= width {
		return []string{s}
	}

	plain := ansiEscape.ReplaceAllString(s, "")

	var lines []string
	var cur []rune
	curLen := 0

	flush := func() {
		lines = append(lines, string(cur))
		cur = cur[:0]
		curLen = 0
	}

	for _, word := range strings.Fields(plain) {
		wRunes := []rune(word)
		wLen := len(wRunes)

		if curLen == 0 {
			for len(wRunes) > 0 {
				take := len(wRunes)
				if take > width {
					take = width
				}
				cur = append(cur, wRunes[:take]...)
				curLen += take
				wRunes = wRunes[take:]
				if len(wRunes) > 0 {
					flush()
				}
			}
		} else if curLen+1+wLen <= width {
			cur = append(cur, ' ')
			cur = append(cur, wRunes...)
			curLen += 1 + wLen
		} else {
			flush()
			for len(wRunes) > 0 {
				take := len(wRunes)
				if take > width {
					take = width
				}
				cur = append(cur, wRunes[:take]...)
				curLen += take
				wRunes = wRunes[take:]
				if len(wRunes) > 0 {
					flush()
				}
			}
		}
	}
	if curLen > 0 {
		flush()
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// printRow prints a logical row. If any cell exceeds its column width after
// word-wrapping, the row spans multiple physical output lines.
func (t *Table) printRow(row []string, widths []int) {
	allLines := make([][]string, len(widths))
	maxLines := 1
	for i := range widths {
		val := ""
		if i < len(row) {
			val = row[i]
		}
		wrapped := wrapCell(val, widths[i])
		allLines[i] = wrapped
		if len(wrapped) > maxLines {
			maxLines = len(wrapped)
		}
	}

	for l := 0; l < maxLines; l++ {
		parts := make([]string, len(widths))
		for i := range widths {
			val := ""
			if l < len(allLines[i]) {
				val = allLines[i][l]
			}
			pad := widths[i] - visualWidth(val)
			if pad < 0 {
				pad = 0
			}
			parts[i] = val + strings.Repeat(" ", pad)
		}
		fmt.Fprintln(os.Stdout, t.prefix+strings.TrimRight(strings.Join(parts, "  "), " "))
	}
}
