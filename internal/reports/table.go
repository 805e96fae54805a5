package reports

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const minColumnWidth = 3

// RenderTable writes columns and rows as a pipe-delimited table with aligned cells.
// Widths are measured in terminal cells so brand names with wide runes stay aligned.
func RenderTable(w io.Writer, columns []string, rows [][]string) error {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = max(minColumnWidth, runewidth.StringWidth(c))
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	var b strings.Builder
	writeRow(&b, columns, widths)
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	writeRow(&b, sep, widths)
	for _, row := range rows {
		writeRow(&b, row, widths)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	b.WriteString("|")
	for i, n := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		b.WriteString(" ")
		b.WriteString(runewidth.FillRight(cell, n))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

// Render writes a titled report, or its error, to w.
func Render(w io.Writer, r Report) error {
	if _, err := fmt.Fprintf(w, "\n## %s\n\n", r.Title); err != nil {
		return err
	}
	if r.Error != "" {
		_, err := fmt.Fprintf(w, "query failed: %s\n", r.Error)
		return err
	}
	if len(r.Rows) == 0 {
		_, err := io.WriteString(w, "(no rows)\n")
		return err
	}
	return RenderTable(w, r.Columns, r.Rows)
}
