package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit       key.Binding
	Help       key.Binding
	TabNext    key.Binding
	TabPrev    key.Binding
	Enter      key.Binding
	Back       key.Binding
	Use        key.Binding
	Remove     key.Binding
	TestSingle key.Binding
	TestBatch  key.Binding
	PrevColl   key.Binding
	NextColl   key.Binding
	AllPages   key.Binding
	Refresh    key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	TabNext: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next tab"),
	),
	TabPrev: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev tab"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Use: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "use gateway"),
	),
	Remove: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "remove"),
	),
	TestSingle: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "test"),
	),
	TestBatch: key.NewBinding(
		key.WithKeys("T"),
		key.WithHelp("T", "test all"),
	),
	PrevColl: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "prev collection"),
	),
	NextColl: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next collection"),
	),
	AllPages: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "load all pages"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

// ShortHelp returns a compact list for the help bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TabNext, k.Use, k.TestSingle, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns grouped bindings for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.TabNext, k.TabPrev, k.Enter, k.Back},
		{k.Use, k.Remove, k.TestSingle, k.TestBatch},
		{k.PrevColl, k.NextColl, k.AllPages, k.Refresh},
		{k.Help, k.Quit},
	}
}
