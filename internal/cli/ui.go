package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/matzehuels/omecollection/pkg/collection"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings, labels
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - collections
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCollection = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	styleLabel      = lipgloss.NewStyle().Foreground(colorYellow)
	styleHeader     = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleCell       = lipgloss.NewStyle().Padding(0, 1)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconLabel   = "◆"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+msg)
}

// printError prints an error message.
func printError(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+msg)
}

// printWarning prints a warning message.
func printWarning(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+msg)
}

// printFile prints a file output line.
func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(w io.Writer, key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Fprintln(w, keyStyle.Render(key)+" "+StyleValue.Render(value))
}

// =============================================================================
// Collection Tree
// =============================================================================

// collectionTree renders c as an indented tree: collections in blue with a
// trailing slash, labels marked, references pointing at their target.
func collectionTree(c *collection.OMECollection) *tree.Tree {
	t := tree.Root(StyleTitle.Render(c.Name) + " " + StyleDim.Render("v"+c.Version))
	addNodes(t, c.Nodes)
	return t
}

func addNodes(t *tree.Tree, nodes []collection.Node) {
	t.Enumerator(tree.RoundedEnumerator).EnumeratorStyle(StyleDim)
	for _, n := range nodes {
		switch n := n.(type) {
		case *collection.CollectionNode:
			if n.IsReference() {
				t.Child(styleCollection.Render(n.Name+"/") + " " + StyleDim.Render(iconArrow+" "+n.Path))
				continue
			}
			sub := tree.Root(styleCollection.Render(n.Name + "/"))
			addNodes(sub, n.Nodes)
			t.Child(sub)
		case *collection.MultiscaleNode:
			t.Child(leafLine(n))
		}
	}
}

func leafLine(n *collection.MultiscaleNode) string {
	var b strings.Builder
	if n.IsLabel() {
		b.WriteString(styleLabel.Render(iconLabel+" "+n.Name))
	} else {
		b.WriteString(StyleValue.Render(n.Name))
	}
	if a := n.Attributes; a != nil {
		b.WriteString(" " + StyleNumber.Render("#"+strconv.FormatInt(a.ImageID, 10)))
		if a.Category != "" {
			b.WriteString(" " + StyleDim.Render(string(a.Category)+"/"+string(a.Origin)))
		}
		if refs := a.References(); len(refs) > 0 {
			b.WriteString(" " + StyleDim.Render(iconArrow+" "+strings.Join(refs, ", ")))
		}
	}
	return b.String()
}

// =============================================================================
// Record Table
// =============================================================================

// recordColumns are the fixed columns of the record table. Any other keys
// are summarized in the last column.
var recordColumns = []string{"Path", "Image", "Category", "Origin", "Source", "Other"}

// recordTable renders flat records one per row.
func recordTable(records []collection.Record) *table.Table {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, recordRow(rec))
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(recordColumns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader.Padding(0, 1)
			}
			if col == 1 {
				return styleCell.Foreground(colorCyan)
			}
			return styleCell
		})
}

func recordRow(rec collection.Record) []string {
	id, idKey, _ := rec.ImageID()
	source := rec["label.source"]
	if s, ok := rec["source"]; ok {
		source = s
	}

	var other []string
	for _, k := range slices.Sorted(maps.Keys(rec)) {
		switch k {
		case collection.KeyPath, idKey, "category", "origin", "source", "label.source":
			continue
		}
		other = append(other, k+"="+formatValue(rec[k]))
	}

	return []string{
		rec.Path(),
		strconv.FormatInt(id, 10),
		formatValue(rec["category"]),
		formatValue(rec["origin"]),
		formatValue(source),
		strings.Join(other, " "),
	}
}

// formatValue renders a record value for display.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		return strings.Join(x, ", ")
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}
