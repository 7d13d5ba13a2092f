package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Output is where the Print helpers write. Commands whose stdout carries
// machine-readable data point it at stderr.
var Output io.Writer = os.Stdout

var quietMode bool

// SetQuietMode suppresses PrintInfo, PrintDim and PrintSuccess.
func SetQuietMode(quiet bool) {
	quietMode = quiet
}

// Println prints an empty line.
func Println() {
	fmt.Fprintln(Output)
}

// PrintSuccess prints a success message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintSuccess(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(Output, SuccessStyle.Render("✓ "+msg))
}

// PrintError prints an error message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(Output, ErrorStyle.Render("✗ "+msg))
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(Output, WarningStyle.Render("⚠ "+msg))
}

// PrintInfo prints an informational message.
func PrintInfo(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(Output, InfoStyle.Render(msg))
}

// PrintDim prints a dimmed message.
func PrintDim(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(Output, DimStyle.Render(msg))
}

// PrintLink prints a labelled URL.
//
// Parameters:
//   - label: The link label
//   - url: The URL
func PrintLink(label, url string) {
	fmt.Fprintf(Output, "%s %s\n", DimStyle.Render(label+":"), LinkStyle.Render(url))
}

// OpenBrowser opens a URL in the default browser.
//
// Parameters:
//   - url: The URL to open
//
// Returns:
//   - error: Any error that occurred
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// Table represents a table with dynamic column widths for formatted output.
type Table struct {
	// Headers contains the column header names.
	Headers []string

	// Rows contains all data rows.
	Rows [][]string

	// MaxWidths specifies maximum width per column index (truncates with ellipsis).
	MaxWidths map[int]int
}

// NewTable creates a new table with the specified headers.
//
// Parameters:
//   - headers: Column header names
//
// Returns:
//   - *Table: A new table instance
func NewTable(headers ...string) *Table {
	return &Table{
		Headers:   headers,
		MaxWidths: make(map[int]int),
	}
}

// AddRow adds a data row to the table.
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// SetMaxWidth sets the maximum display width for a column.
func (t *Table) SetMaxWidth(col, width int) {
	t.MaxWidths[col] = width
}

// cell returns a row value truncated to its column's maximum width.
func (t *Table) cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	val := row[col]
	if max, ok := t.MaxWidths[col]; ok {
		val = ansi.Truncate(val, max, "...")
	}
	return val
}

// calculateColumnWidths computes the display width of each column.
func (t *Table) calculateColumnWidths() []int {
	widths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		widths[i] = ansi.StringWidth(header)
	}
	for _, row := range t.Rows {
		for i := range widths {
			if w := ansi.StringWidth(t.cell(row, i)); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

// padRight pads s to the given display width.
func padRight(s string, width int) string {
	if w := ansi.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// Render prints the table to Output.
func (t *Table) Render() {
	t.RenderTo(Output)
}

// RenderTo prints the table to w. Headers are styled with
// TableHeaderStyle, cells with TableCellStyle.
func (t *Table) RenderTo(w io.Writer) {
	if len(t.Headers) == 0 {
		return
	}

	widths := t.calculateColumnWidths()
	colGap := "  "

	var headerCells []string
	for i, header := range t.Headers {
		headerCells = append(headerCells, TableHeaderStyle.Render(padRight(header, widths[i])))
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(headerCells, colGap), " "))

	totalWidth := len(colGap) * (len(widths) - 1)
	for _, width := range widths {
		totalWidth += width
	}
	fmt.Fprintln(w, DimStyle.Render(strings.Repeat("─", totalWidth)))

	for _, row := range t.Rows {
		var cells []string
		for i := range t.Headers {
			cells = append(cells, TableCellStyle.Render(padRight(t.cell(row, i), widths[i])))
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, colGap), " "))
	}
}
