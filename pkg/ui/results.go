package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/apirisk/apirisk/pkg/strutil"
)

// RiskFormatter formats detected risks for terminal display.
type RiskFormatter struct {
	verbose bool
}

// NewRiskFormatter creates a new risk formatter
func NewRiskFormatter(verbose bool) *RiskFormatter {
	return &RiskFormatter{verbose: verbose}
}

// FormatRisk formats a single detected risk in nuclei-style
// Output: [severity] [category] rule-id METHOD /path - title
func (rf *RiskFormatter) FormatRisk(severity, category, source, route, title string) string {
	var parts []string

	sevStyle := SeverityStyle(severity)
	parts = append(parts, BracketStyle.Render("[")+sevStyle.Render(strings.ToLower(severity))+BracketStyle.Render("]"))
	parts = append(parts, BracketStyle.Render("[")+CategoryStyle.Render(category)+BracketStyle.Render("]"))
	parts = append(parts, SourceStyle.Render(source))

	if route == "" {
		route = "N/A"
	}
	parts = append(parts, StatValueStyle.Render(route))

	line := strings.Join(parts, " ")
	if title != "" {
		line += " " + SubtitleStyle.Render("- "+strutil.Truncate(title, 80))
	}
	return line
}

// FormatComponentRisk formats an aggregated component risk line
// Output: [band] component score (confidence)
func (rf *RiskFormatter) FormatComponentRisk(band, component string, score, confidence float64) string {
	parts := []string{
		BracketStyle.Render("[") + BandStyle(band).Render(band) + BracketStyle.Render("]"),
		StatValueStyle.Render(component),
		ScoreStyle(score).Render(fmt.Sprintf("%.1f", score)),
		StatLabelStyle.Render(fmt.Sprintf("(confidence %.2f)", confidence)),
	}
	return strings.Join(parts, " ")
}

// severityOrder fixes display order for severity tallies.
var severityOrder = []string{"critical", "high", "medium", "low"}

// FormatSeverityCounts renders a tally like "1 critical, 2 high, 4 low",
// highest severity first, zero counts omitted.
func FormatSeverityCounts(counts map[string]int) string {
	var parts []string
	for _, sev := range severityOrder {
		if n := counts[sev]; n > 0 {
			parts = append(parts, SeverityStyle(sev).Render(fmt.Sprintf("%d %s", n, sev)))
		}
	}
	if len(parts) == 0 {
		return OkStyle.Render("no risks")
	}
	return strings.Join(parts, StatLabelStyle.Render(", "))
}

// Table renders rows as aligned plain-text columns. Styling is left to
// the caller via pre-rendered cell values; widths are computed on the
// unstyled text so piped output lines up.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render writes the aligned table to w.
func (t *Table) Render(w io.Writer) {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string) {
		var sb strings.Builder
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			sb.WriteString(padRight(cell, widths[i]))
			if i < len(widths)-1 {
				sb.WriteString("  ")
			}
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}

	writeRow(t.Headers)
	underline := make([]string, len(t.Headers))
	for i := range underline {
		underline[i] = strings.Repeat("-", widths[i])
	}
	writeRow(underline)
	for _, row := range t.Rows {
		writeRow(row)
	}
}

// SortRowsBy sorts table rows by the named column, stable.
func (t *Table) SortRowsBy(column string) {
	idx := -1
	for i, h := range t.Headers {
		if h == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i][idx] < t.Rows[j][idx]
	})
}

// padRight pads s with spaces to width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
