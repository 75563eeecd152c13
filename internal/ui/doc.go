// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI renders one [tasks.Session] and mirrors the browser widget it replaces:
//  1. Drop zone: a file picker; choosing a file starts an upload cycle
//  2. Progress: the upload and analysis bars
//  3. Results: metrics, recommendations and the media URLs
//  4. Parameter panel: one text input per detection parameter, applied with "Apply & Reprocess"
//
// Which sections are drawn is decided by the session's view-model, never by the Model itself.
// Snapshots flow from [tasks.Session.Subscribe] into Update through a command that waits on the channel,
// so cycles and panel requests run off the render loop. Blocking alerts take over the screen until dismissed.
//
// Keyboard help is rendered via charmbracelet/bubbles/help.
package ui
