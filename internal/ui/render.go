package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/psulink/internal/protocol"
)

// Table is a left-aligned listing with a bold heading row.
type Table struct {
	Headers []string
	Rows    [][]string
}

// AddRow appends one row. Missing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// widths returns the widest cell of each column.
func (t *Table) widths() []int {
	w := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		w[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i >= len(w) {
				w = append(w, 0)
			}
			if n := lipgloss.Width(cell); n > w[i] {
				w[i] = n
			}
		}
	}
	return w
}

// Render returns the table with two spaces between columns.
func (t *Table) Render() string {
	widths := t.widths()
	var lines []string

	line := func(style lipgloss.Style, cells []string) string {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = style.Width(widths[i]).Render(cell)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	if len(t.Headers) > 0 {
		lines = append(lines, line(TableHeaderStyle, t.Headers))
	}
	for _, row := range t.Rows {
		lines = append(lines, line(TableCellStyle, row))
	}
	return strings.Join(lines, "\n")
}

// RenderTable renders headers and rows as a Table.
func RenderTable(headers []string, rows [][]string) string {
	t := &Table{Headers: headers, Rows: rows}
	return t.Render()
}

// RenderFrame renders "label  F1 B1 ..." for a wire frame.
func RenderFrame(label string, frame []byte) string {
	return HeaderParamKeyStyle.Render(label) + "  " + FrameBytesStyle.Render(protocol.FormatHex(frame))
}

// RenderValue renders a decoded reading as "NAME  value", or the decode
// error in red.
func RenderValue(name string, v protocol.Value, err error) string {
	text := ""
	if v != nil {
		text = v.String()
	}
	return RenderField(name, text, err)
}

// RenderField renders one named value. An empty text with no error means
// the frame carried nothing to decode.
func RenderField(name, text string, err error) string {
	key := ValueKeyStyle.Render(name)
	switch {
	case err != nil:
		return key + " " + ErrorMessageStyle.Render(err.Error())
	case text == "":
		return key + " " + HeaderParamKeyStyle.Render("(not decoded)")
	default:
		return key + " " + ResultValueStyle.Render(text)
	}
}
