// Package ui provides terminal UI components using Charm libraries.
//
// This package contains the styling and message helpers shared by the fp
// commands. Everything here is for output outside a recording: while a
// shell is recorded the terminal belongs to the child.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Brand colors for Fiberplane.
var (
	// Primary brand color
	Blue = lipgloss.Color("#4B5BFF")

	// Secondary colors
	Teal    = lipgloss.Color("#14B8A6")
	Red     = lipgloss.Color("#EF4444")
	Amber   = lipgloss.Color("#F59E0B")
	Green   = lipgloss.Color("#22C55E")
	Gray    = lipgloss.Color("#6B7280")
	DimGray = lipgloss.Color("#9CA3AF")
)

// Text styles.
var (
	// TitleStyle for main headings
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Blue)

	// SubtitleStyle for secondary headings
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// AccentStyle for numbers and markers in lists
	AccentStyle = lipgloss.NewStyle().
			Foreground(Teal)

	// SuccessStyle for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	// WarningStyle for warning messages
	WarningStyle = lipgloss.NewStyle().
			Foreground(Amber)

	// InfoStyle for informational messages
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	// DimStyle for less important text
	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// LinkStyle for URLs
	LinkStyle = lipgloss.NewStyle().
			Foreground(Blue).
			Underline(true)

	// RecordingStyle for the recording notice
	RecordingStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)
)

// Table styles.
var (
	// TableHeaderStyle for table headers
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(DimGray).
				Bold(true)

	// TableCellStyle for table cells
	TableCellStyle = lipgloss.NewStyle()
)

// SpinnerStyle for spinner frames.
var SpinnerStyle = lipgloss.NewStyle().
	Foreground(Teal)
