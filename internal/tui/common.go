// Package tui provides the interactive notebook picker.
//
// The picker only launches when both stdin and stdout are terminals. Scripts
// and piped invocations must pass a notebook id instead.
package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// --- TTY gate ---

// IsInteractive returns true if the picker can be shown.
//
// Returns:
//   - bool: true if stdin and stdout are terminals
func IsInteractive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// --- Brand colors (mirrors internal/ui/styles.go) ---

var (
	blue    = lipgloss.Color("#4B5BFF")
	red     = lipgloss.Color("#EF4444")
	gray    = lipgloss.Color("#6B7280")
	dimGray = lipgloss.Color("#9CA3AF")
	white   = lipgloss.Color("#E5E7EB")
)

// --- Shared TUI styles ---

var (
	// titleStyle renders the picker header.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(blue)

	// selectedStyle highlights the currently selected list item.
	selectedStyle = lipgloss.NewStyle().
			Foreground(blue).
			Bold(true)

	// normalStyle renders unselected list items.
	normalStyle = lipgloss.NewStyle().
			Foreground(white)

	// dimStyle renders low-priority text.
	dimStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	// errorStyle renders failed/error indicators.
	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Bold(true)

	// helpStyle renders the bottom key hint bar.
	helpStyle = lipgloss.NewStyle().
			Foreground(gray)

	// separatorStyle renders horizontal rules.
	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#374151"))

	// filterPromptStyle renders the filter prompt.
	filterPromptStyle = lipgloss.NewStyle().
				Foreground(blue).
				Bold(true)
)

// separator returns a horizontal line of the given width.
func separator(width int) string {
	return separatorStyle.Render(strings.Repeat("─", width))
}

// helpKeyRender renders a key hint such as "enter select".
func helpKeyRender(key, desc string) string {
	return lipgloss.NewStyle().Foreground(blue).Bold(true).Render(key) +
		" " + helpStyle.Render(desc)
}

// --- Shared spinner factory ---

// newSpinner creates a consistently styled braille spinner.
func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(blue)
	return s
}

// scrollWindow returns the visible [start, end) range of a list of n items
// that keeps cursor in view.
//
// Parameters:
//   - cursor: the selected index
//   - n: the number of items
//   - height: the number of visible rows
//
// Returns:
//   - int: first visible index
//   - int: one past the last visible index
func scrollWindow(cursor, n, height int) (int, int) {
	if n <= height {
		return 0, n
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > n {
		start = n - height
	}
	return start, start + height
}

// truncate shortens a string to maxLen runes, adding "…" if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
