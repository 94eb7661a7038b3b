package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/omecollection/pkg/collection"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// LeafListModel - Interactive leaf browser
// =============================================================================

// LeafListModel is the bubbletea model for browsing the leaves of a
// collection. The selected leaf's flat record is shown below the list.
type LeafListModel struct {
	Name    string
	Leaves  []collection.Leaf
	Records []collection.Record
	Cursor  int
	Height  int
	Offset  int
}

// NewLeafListModel creates a browser over the leaves of c.
func NewLeafListModel(c *collection.OMECollection) LeafListModel {
	return LeafListModel{
		Name:    c.Name,
		Leaves:  c.Leaves(),
		Records: c.Flatten(),
		Height:  15,
	}
}

func (m LeafListModel) Init() tea.Cmd {
	return nil
}

func (m LeafListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Leaves)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor, m.Offset = 0, 0
		case "end", "G":
			if n := len(m.Leaves); n > 0 {
				m.Cursor = n - 1
				m.Offset = max(0, n-m.Height)
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height/2 - 4
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m LeafListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Name))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  g/G first/last  q quit"))
	b.WriteString("\n\n")

	if len(m.Leaves) == 0 {
		b.WriteString(listDimStyle.Render("  (no images)"))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Leaves))
	for i := m.Offset; i < end; i++ {
		l := m.Leaves[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		kind := " "
		if l.Node.IsLabel() {
			kind = iconLabel
		}
		line := fmt.Sprintf("%s%s %s", cursor, kind, l.Path)
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(recordDetail(m.Records[m.Cursor]).Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Leaves))))

	return b.String()
}

// recordDetail renders one record as a two-column key/value table.
func recordDetail(rec collection.Record) *table.Table {
	rows := make([][]string, 0, len(rec))
	rows = append(rows, []string{collection.KeyPath, rec.Path()})
	for _, k := range slices.Sorted(maps.Keys(rec)) {
		if k == collection.KeyPath {
			continue
		}
		rows = append(rows, []string{k, formatValue(rec[k])})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return styleCell.Foreground(colorGray)
			}
			return styleCell.Foreground(colorWhite)
		})
}
