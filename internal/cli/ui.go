// internal/cli/ui.go
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/90n9/talepick/internal/validation"
	"github.com/fatih/color"
)

var (
	Brand  = color.New(color.FgHiCyan, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Warn   = color.New(color.FgYellow)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed, color.Bold)
)

func severityColor(s validation.Severity) *color.Color {
	switch s {
	case validation.SeverityHigh:
		return Bad
	case validation.SeverityMedium:
		return Warn
	default:
		return Subtle
	}
}

// table prints an aligned table. Widths are measured on the plain cells so
// colour codes do not skew them.
func table(w io.Writer, headers []string, rows [][]string, paint func(row, col int, cell string) string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var head, sep strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&head, "%-*s  ", widths[i], h)
		sep.WriteString(strings.Repeat("─", widths[i]) + "  ")
	}
	Subtle.Fprintln(w, strings.TrimRight(head.String(), " "))
	Subtle.Fprintln(w, strings.TrimRight(sep.String(), " "))

	for r, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			pad := strings.Repeat(" ", widths[i]-len(cell))
			if paint != nil {
				cell = paint(r, i, cell)
			}
			line.WriteString(cell + pad + "  ")
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}
