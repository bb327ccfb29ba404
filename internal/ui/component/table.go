package component

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/metapool/internal/ui/style"
)

// TableColumn represents a column configuration
type TableColumn struct {
	Header string
	Width  int // 0 - по ширине содержимого
	Align  lipgloss.Position
}

// TableRow represents a row of data
type TableRow struct {
	Data  []string
	Style *lipgloss.Style
}

// Table renders rows as a bordered grid.
type Table struct {
	columns []TableColumn
	rows    []TableRow

	headerStyle lipgloss.Style
	rowStyle    lipgloss.Style
	borderStyle lipgloss.Style

	showBorder  bool
	showHeaders bool
}

// NewTable creates a new table component
func NewTable() *Table {
	palette := style.DefaultPalette()

	return &Table{
		headerStyle: lipgloss.NewStyle().
			Foreground(palette.Secondary).
			Bold(true).
			Padding(0, 1),

		rowStyle: lipgloss.NewStyle().
			Foreground(palette.Text).
			Padding(0, 1),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted),

		showBorder:  true,
		showHeaders: true,
	}
}

// AddColumn adds a column to the table
func (t *Table) AddColumn(header string, width int, align lipgloss.Position) *Table {
	t.columns = append(t.columns, TableColumn{
		Header: header,
		Width:  width,
		Align:  align,
	})
	return t
}

// AddRow adds a row to the table
func (t *Table) AddRow(data ...string) *Table {
	t.rows = append(t.rows, TableRow{Data: data})
	return t
}

// AddStyledRow adds a row rendered with s instead of the default row style.
func (t *Table) AddStyledRow(s lipgloss.Style, data ...string) *Table {
	t.rows = append(t.rows, TableRow{Data: data, Style: &s})
	return t
}

// SetShowBorder enables/disables table border
func (t *Table) SetShowBorder(show bool) *Table {
	t.showBorder = show
	return t
}

// SetShowHeaders enables/disables column headers
func (t *Table) SetShowHeaders(show bool) *Table {
	t.showHeaders = show
	return t
}

func (t *Table) RowCount() int {
	return len(t.rows)
}

// View renders the table
func (t *Table) View() string {
	if len(t.columns) == 0 {
		return "No columns defined"
	}

	widths := t.columnWidths()
	var content strings.Builder

	if t.showHeaders {
		for i, col := range t.columns {
			content.WriteString(renderCell(col.Header, widths[i], col.Align, t.headerStyle))
			if i < len(t.columns)-1 {
				content.WriteString("│")
			}
		}
		content.WriteString("\n")

		for i := range t.columns {
			content.WriteString(strings.Repeat("─", widths[i]))
			if i < len(t.columns)-1 {
				content.WriteString("┼")
			}
		}
		if len(t.rows) > 0 {
			content.WriteString("\n")
		}
	}

	for rowIndex, row := range t.rows {
		rowStyle := t.rowStyle
		if row.Style != nil {
			rowStyle = row.Style.Padding(0, 1)
		}
		for i, col := range t.columns {
			cellData := ""
			if i < len(row.Data) {
				cellData = row.Data[i]
			}
			content.WriteString(renderCell(cellData, widths[i], col.Align, rowStyle))
			if i < len(t.columns)-1 {
				content.WriteString("│")
			}
		}
		if rowIndex < len(t.rows)-1 {
			content.WriteString("\n")
		}
	}

	result := content.String()
	if t.showBorder {
		result = t.borderStyle.Render(result)
	}
	return result
}

// columnWidths возвращает ширину колонок с учетом отступов ячеек
func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.columns))
	for i, col := range t.columns {
		if col.Width > 0 {
			widths[i] = col.Width
			continue
		}
		w := lipgloss.Width(col.Header)
		for _, row := range t.rows {
			if i < len(row.Data) {
				w = max(w, lipgloss.Width(row.Data[i]))
			}
		}
		widths[i] = w + 2
	}
	return widths
}

// renderCell renders a single table cell
func renderCell(content string, width int, align lipgloss.Position, style lipgloss.Style) string {
	// ширина включает отступ 1 с каждой стороны
	inner := width - 2
	if inner > 0 && lipgloss.Width(content) > inner {
		if inner > 3 {
			content = content[:inner-3] + "..."
		} else {
			content = content[:inner]
		}
	}
	return style.Width(width).Align(align).Render(content)
}
