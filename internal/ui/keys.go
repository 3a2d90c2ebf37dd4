package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the dashboard.
type keyMap struct {
	NextScript  key.Binding
	PrevScript  key.Binding
	MoreColumns key.Binding
	FewerColumn key.Binding
	CycleTheme  key.Binding
	Reload      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		NextScript: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "next script"),
		),
		PrevScript: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("shift+tab", "previous script"),
		),
		MoreColumns: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "more columns"),
		),
		FewerColumn: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "fewer columns"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "cycle theme"),
		),
		Reload: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear cache and reload"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextScript, k.Reload, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextScript, k.PrevScript},
		{k.MoreColumns, k.FewerColumn},
		{k.CycleTheme, k.Reload},
		{k.Help, k.Quit},
	}
}
