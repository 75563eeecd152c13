package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// theme names the colours of the SportTrack.ai page the TUI mirrors.
type theme struct {
	brand   string // headings, drop zone border
	success string // completed analysis, idle apply button
	danger  string // transient errors
	caution string // alerts and fallback notes
	muted   string // help, labels, progress captions
}

var defaultTheme = theme{brand: "#7D56F4", success: "#04B575", danger: "#FF0000", caution: "#FFA500", muted: "#626262"}

var styles = newPalette(defaultTheme)

// Palette is the TUI stylesheet.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style
	alert lipgloss.Style
	zone  lipgloss.Style
}

func newPalette(t theme) *Palette {
	return &Palette{
		title: NewBold(t.brand).MarginBottom(1),
		ok:    NewBold(t.success),
		err:   NewBold(t.danger),
		warn:  NewStyle(t.caution),
		help:  NewEm(t.muted),
		label: NewStyle(t.muted).Width(labelWidth),
		alert: NewBold(t.caution).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(t.caution)).Padding(1, 2),
		zone:  lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color(t.brand)).Padding(0, 1),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
