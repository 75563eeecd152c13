package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/sporttrack/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSnapshot MsgKind = iota
	MsgSessionClosed
	MsgCycleDone
	MsgPanelToggled
	MsgApplyDone
	MsgBrowserOpened
)

type cycleDone struct {
	result *tasks.CycleResult
	err    error
}

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(snap tasks.Snapshot) Msg {
	return Msg{kind: MsgSnapshot, data: snap}
}

// sessionClosedMsg is the constructor for [MsgSessionClosed]
func sessionClosedMsg() Msg {
	return Msg{kind: MsgSessionClosed}
}

// cycleDoneMsg is the constructor for [MsgCycleDone]
func cycleDoneMsg(result *tasks.CycleResult, err error) Msg {
	return Msg{kind: MsgCycleDone, data: cycleDone{result, err}}
}

// panelToggledMsg is the constructor for [MsgPanelToggled]
func panelToggledMsg(open bool) Msg {
	return Msg{kind: MsgPanelToggled, data: open}
}

// applyDoneMsg is the constructor for [MsgApplyDone]
func applyDoneMsg(err error) Msg {
	return Msg{kind: MsgApplyDone, data: err}
}

// browserOpenedMsg is the constructor for [MsgBrowserOpened]
func browserOpenedMsg(err error) Msg {
	return Msg{kind: MsgBrowserOpened, data: err}
}
