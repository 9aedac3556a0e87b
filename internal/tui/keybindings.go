package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap defines the cart view keybindings.
type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Toggle     key.Binding
	Increment  key.Binding
	Decrement  key.Binding
	Remove     key.Binding
	SelectAll  key.Binding
	SelectNone key.Binding
	Clear      key.Binding
	Refresh    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "x"),
			key.WithHelp("space", "select"),
		),
		Increment: key.NewBinding(
			key.WithKeys("+", "=", "l", "right"),
			key.WithHelp("+", "more"),
		),
		Decrement: key.NewBinding(
			key.WithKeys("-", "h", "left"),
			key.WithHelp("-", "less"),
		),
		Remove: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "remove"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "select all"),
		),
		SelectNone: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "select none"),
		),
		Clear: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "clear cart"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Increment, k.Decrement, k.Remove, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle},
		{k.Increment, k.Decrement, k.Remove},
		{k.SelectAll, k.SelectNone, k.Clear},
		{k.Refresh, k.Help, k.Quit},
	}
}
