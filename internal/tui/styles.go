// Package tui implements the Bubble Tea cart view for storefront.
package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/hay-kot/storefront/internal/styles"
)

// Styles used for rendering the TUI.
var (
	// Title style for the view header.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorBlue).
			PaddingLeft(1)

	// Selected checkbox style.
	checkedStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGreen)

	// Unselected checkbox style.
	uncheckedStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray)

	// Cursor row style.
	cursorStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue).
			Bold(true)

	// Normal row style (no color, uses terminal default).
	normalStyle = lipgloss.NewStyle()

	// Left accent bar on the cursor row.
	cursorBarStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue)

	quantityStyle = lipgloss.NewStyle().
			Foreground(styles.ColorYellow)

	// Status line styles.
	statusStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			Italic(true).
			PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.ColorRed).
			PaddingLeft(1)

	footerStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			MarginTop(1)
)

// Modal styles.
var (
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.ColorBlue).
			Padding(1, 2)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorWhite)

	modalHelpStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			MarginTop(1)

	modalButtonStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(styles.ColorBgHL).
				Foreground(lipgloss.Color("#a9b1d6"))

	modalButtonSelectedStyle = lipgloss.NewStyle().
					Padding(0, 1).
					Background(styles.ColorBlue).
					Foreground(styles.ColorBgDark).
					Bold(true)
)

// Icons and symbols.
const (
	iconChecked   = "◉"
	iconUnchecked = "○"
	iconCursor    = "┃"
)
