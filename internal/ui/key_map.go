package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	tune      key.Binding
	apply     key.Binding
	defaults  key.Binding
	next      key.Binding
	prev      key.Binding
	commit    key.Binding
	back      key.Binding
	dismiss   key.Binding
	restart   key.Binding
	open      key.Binding
	quit      key.Binding
	forceQuit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		tune:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tune parameters")),
		apply:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "apply & reprocess")),
		defaults:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "defaults")),
		next:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		prev:      key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
		commit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "set")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		dismiss:   key.NewBinding(key.WithKeys("enter", "esc"), key.WithHelp("enter", "ok")),
		restart:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new analysis")),
		open:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open processed video")),
		quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		forceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.tune, k.apply, k.defaults},
		{k.next, k.prev, k.commit, k.back},
		{k.restart, k.open, k.quit},
	}
}
