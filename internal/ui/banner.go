package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// tagline is the product tagline.
const tagline = "Record your terminal into Fiberplane notebooks"

// PrintVersion prints the version banner.
//
// Parameters:
//   - version: The CLI version string to display
//   - commit: The commit the binary was built from
func PrintVersion(version, commit string) {
	name := lipgloss.NewStyle().Foreground(Blue).Bold(true).Render("fp")
	info := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	fmt.Fprintf(Output, "%s %s\n", name, version)
	if commit != "" {
		fmt.Fprintln(Output, info.Render("commit: "+commit))
	}
}

// GetHelpText returns the curated help shown by `fp --help`.
func GetHelpText() string {
	blue := lipgloss.NewStyle().Foreground(Blue).Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	return fmt.Sprintf(`%s

%s
  %s                    Log in with your browser
  %s                         Record an interactive shell into a notebook
  %s  Run one command and store its output as a cell

%s
  %s                  Show the active profile
  %s                  Remove the stored token`,
		dim.Render(tagline+"."),
		blue.Render("Getting Started:"),
		blue.Render("fp auth login"),
		blue.Render("fp shell"),
		blue.Render("fp run -- <command> <args...>"),
		blue.Render("More:"),
		blue.Render("fp auth status"),
		blue.Render("fp auth logout"),
	)
}
