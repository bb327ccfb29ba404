package component

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestTableView(t *testing.T) {
	table := NewTable().
		AddColumn("VALIDATOR", 0, lipgloss.Left).
		AddColumn("BALANCE", 0, lipgloss.Right).
		AddRow("alpha", "1.5").
		AddStyledRow(lipgloss.NewStyle().Bold(true), "beta", "1000")

	view := table.View()
	assert.Equal(t, 2, table.RowCount())
	for _, want := range []string{"VALIDATOR", "BALANCE", "alpha", "beta", "1000", "┼"} {
		assert.Contains(t, view, want)
	}

	lines := strings.Split(view, "\n")
	// рамка сверху и снизу, заголовок, разделитель, две строки
	assert.Len(t, lines, 6)
	for _, line := range lines[1:] {
		assert.Equal(t, lipgloss.Width(lines[0]), lipgloss.Width(line))
	}
}

func TestTableTruncatesFixedWidth(t *testing.T) {
	view := NewTable().
		SetShowBorder(false).
		AddColumn("KEY", 10, lipgloss.Left).
		AddRow("ABCDEFGHIJKLMNOP").
		View()

	assert.Contains(t, view, "ABCDE...")
	assert.NotContains(t, view, "ABCDEFGHIJ")
}

func TestTableWithoutColumns(t *testing.T) {
	assert.Equal(t, "No columns defined", NewTable().View())
}
