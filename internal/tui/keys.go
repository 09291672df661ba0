package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	ZoomIn  key.Binding
	ZoomOut key.Binding
	Reload  key.Binding
	More    key.Binding
	Query   key.Binding
	Attrs   key.Binding
	Inspect key.Binding
	Export  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
		Left:    key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "left")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "right")),
		ZoomIn:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
		Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		More:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "more data")),
		Query:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sql")),
		Attrs:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "attrs")),
		Inspect: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "inspect")),
		Export:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export svg")),
		Help:    key.NewBinding(key.WithKeys("h", "?"), key.WithHelp("h", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ZoomIn, k.ZoomOut, k.Reload, k.More, k.Query, k.Attrs, k.Inspect, k.Export, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.ZoomIn, k.ZoomOut},
		{k.Reload, k.More, k.Query},
		{k.Attrs, k.Inspect, k.Export},
		{k.Help, k.Quit},
	}
}
