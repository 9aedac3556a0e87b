// Package styles provides shared lipgloss styles for CLI and TUI components.
package styles

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Tokyo Night color palette.
var (
	ColorGreen  = lipgloss.Color("#9ece6a")
	ColorYellow = lipgloss.Color("#e0af68")
	ColorBlue   = lipgloss.Color("#7aa2f7")
	ColorRed    = lipgloss.Color("#f7768e")
	ColorGray   = lipgloss.Color("#565f89")
	ColorWhite  = lipgloss.Color("#c0caf5")
	ColorBgDark = lipgloss.Color("#1a1b26")
	ColorBgHL   = lipgloss.Color("#3b4261")
)

// Banner ASCII art for the header.
const Banner = `
 ╔═╗╦ ╦╔═╗╔═╗
 ╚═╗╠═╣║ ║╠═╝
 ╚═╝╩ ╩╚═╝╩  `

// BannerStyle styles the ASCII art banner.
var BannerStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// HeaderStyle styles table headers.
var HeaderStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// MutedStyle styles secondary text.
var MutedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// PriceStyle styles money amounts.
var PriceStyle = lipgloss.NewStyle().
	Foreground(ColorWhite)

// TotalStyle styles the selected total.
var TotalStyle = lipgloss.NewStyle().
	Foreground(ColorGreen).
	Bold(true)

// DividerStyle styles horizontal dividers.
var DividerStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// StatusStyles maps order statuses to colors.
var StatusStyles = map[string]lipgloss.Style{
	"PENDING":    lipgloss.NewStyle().Foreground(ColorYellow),
	"PROCESSING": lipgloss.NewStyle().Foreground(ColorBlue),
	"SHIPPED":    lipgloss.NewStyle().Foreground(ColorBlue).Bold(true),
	"DELIVERED":  lipgloss.NewStyle().Foreground(ColorGreen),
	"CANCELLED":  lipgloss.NewStyle().Foreground(ColorRed),
}

// Status renders an order status in its color.
func Status(status string) string {
	if st, ok := StatusStyles[status]; ok {
		return st.Render(status)
	}
	return status
}

// FormTheme returns the huh theme used for interactive forms.
func FormTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Base = t.Focused.Base.BorderForeground(ColorBlue)
	t.Focused.Title = t.Focused.Title.Foreground(ColorBlue).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(ColorGray)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(ColorRed)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorRed)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorBlue)
	t.Focused.TextInput.Prompt = t.Focused.TextInput.Prompt.Foreground(ColorBlue)
	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(ColorYellow)
	t.Focused.TextInput.Placeholder = t.Focused.TextInput.Placeholder.Foreground(ColorGray)
	t.Focused.FocusedButton = t.Focused.FocusedButton.Foreground(ColorBgDark).Background(ColorBlue)
	t.Focused.BlurredButton = t.Focused.BlurredButton.Foreground(ColorWhite).Background(ColorBgHL)

	t.Blurred = t.Focused
	t.Blurred.Base = t.Blurred.Base.BorderStyle(lipgloss.HiddenBorder())

	return t
}
