package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/shared"
	"github.com/desertthunder/sporttrack/internal/tasks"
)

const (
	labelWidth     = 26
	barWidth       = 50
	snapshotBuffer = 32
)

// parameterLabels are the panel captions, keyed by parameter name.
var parameterLabels = map[string]string{
	models.ParamMinDetectionConfidence:      "Min Detection Confidence",
	models.ParamMinTrackingConfidence:       "Min Tracking Confidence",
	models.ParamModelComplexity:             "Model Complexity",
	models.ParamLandmarkVisibilityThreshold: "Landmark Visibility",
	models.ParamConfidentLandmarksThreshold: "Confident Landmarks",
	models.ParamStabilityRatio:              "Stability Ratio",
}

// ModelOpts configures a [Model].
type ModelOpts struct {
	Dir     string // Starting directory of the file picker; defaults to the working directory
	File    string // Uploaded as soon as the program starts
	BaseURL string // Resolves media URLs for display and the browser
	Logger  *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	session *tasks.Session
	orch    *tasks.Orchestrator
	panel   *tasks.Panel
	baseURL string
	file    string
	logger  *log.Logger

	snapshots   <-chan tasks.Snapshot
	unsubscribe func()
	snap        tasks.Snapshot

	picker   filepicker.Model
	upload   progress.Model
	analysis progress.Model
	inputs   []textinput.Model
	focused  int // Index of the focused parameter input, -1 when none

	result *tasks.CycleResult
	width  int
	height int
	help   help.Model
	keys   keyMap
}

// NewModel creates a TUI over the orchestrator's session.
func NewModel(ctx context.Context, orch *tasks.Orchestrator, panel *tasks.Panel, opts ModelOpts) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	session := orch.Session()
	snapshots, unsubscribe := session.Subscribe(snapshotBuffer)

	picker := filepicker.New()
	picker.AutoHeight = true
	if opts.Dir != "" {
		picker.CurrentDirectory = opts.Dir
	}

	inputs := make([]textinput.Model, len(models.ParameterNames))
	for i := range inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 12
		in.Width = 12
		inputs[i] = in
	}

	m := &Model{
		ctx:         ctx,
		session:     session,
		orch:        orch,
		panel:       panel,
		baseURL:     opts.BaseURL,
		file:        opts.File,
		logger:      logger,
		snapshots:   snapshots,
		unsubscribe: unsubscribe,
		picker:      picker,
		upload:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
		analysis:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
		inputs:      inputs,
		focused:     -1,
		help:        help.New(),
		keys:        newKeyMap(),
	}
	m.applySnapshot(session.Snapshot())
	return m
}

// Init starts reading the picker directory and listening for snapshots.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.picker.Init(), m.waitForSnapshot()}
	if m.file != "" {
		cmds = append(cmds, m.startCycle(m.file))
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w := min(barWidth, max(10, msg.Width-4))
		m.upload.Width = w
		m.analysis.Width = w
		m.help.Width = msg.Width
		return m.updatePicker(msg)

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updatePicker(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSnapshot:
		m.applySnapshot(msg.data.(tasks.Snapshot))
		return m, m.waitForSnapshot()

	case MsgSessionClosed:
		return m, nil

	case MsgCycleDone:
		done := msg.data.(cycleDone)
		if done.err == nil {
			m.result = done.result
		} else if !errors.Is(done.err, shared.ErrCycleCancelled) {
			m.logger.Debug("cycle ended with error", "error", done.err)
		}
		m.applySnapshot(m.session.Snapshot())
		return m, nil

	case MsgPanelToggled:
		if open, _ := msg.data.(bool); !open {
			m.blur(false)
		}
		m.applySnapshot(m.session.Snapshot())
		return m, nil

	case MsgApplyDone:
		if err, _ := msg.data.(error); err != nil {
			m.logger.Debug("apply failed", "error", err)
		}
		m.applySnapshot(m.session.Snapshot())
		return m, nil

	case MsgBrowserOpened:
		if err, _ := msg.data.(error); err != nil {
			m.session.ShowError(fmt.Sprintf("Could not open browser: %v", err))
		}
		return m, nil
	}
	return m, nil
}

// applySnapshot adopts snap and refreshes every input that is not being edited.
func (m *Model) applySnapshot(snap tasks.Snapshot) {
	m.snap = snap
	for i, name := range models.ParameterNames {
		if i == m.focused {
			continue
		}
		m.inputs[i].SetValue(snap.View.Echoes[name])
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.forceQuit) {
		return m, m.quit()
	}

	v := m.snap.View
	if v.Alert != "" {
		if key.Matches(msg, m.keys.dismiss) {
			m.panel.DismissAlert()
			m.applySnapshot(m.session.Snapshot())
		}
		return m, nil
	}

	if m.focused >= 0 {
		return m.handleInputKeys(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.tune) && v.ResultsVisible:
		return m, m.toggle()
	case key.Matches(msg, m.keys.apply) && v.PanelVisible && !v.ApplyButton.Disabled:
		return m, m.apply()
	case key.Matches(msg, m.keys.defaults) && v.PanelVisible:
		m.panel.ResetParameters()
		m.applySnapshot(m.session.Snapshot())
		return m, nil
	case key.Matches(msg, m.keys.next) && v.PanelVisible:
		return m, m.focus(0)
	case key.Matches(msg, m.keys.prev) && v.PanelVisible:
		return m, m.focus(len(m.inputs) - 1)
	case key.Matches(msg, m.keys.restart) && (v.ResultsVisible || v.ProgressVisible):
		m.session.ResetAnalysis()
		m.result = nil
		m.applySnapshot(m.session.Snapshot())
		return m, m.picker.Init()
	case key.Matches(msg, m.keys.open) && v.ResultsVisible:
		return m, m.openProcessed()
	}

	if v.DropZoneVisible {
		return m.updatePicker(msg)
	}
	return m, nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.inputs)
	switch {
	case key.Matches(msg, m.keys.next):
		m.commit()
		return m, m.focus((m.focused + 1) % n)
	case key.Matches(msg, m.keys.prev):
		m.commit()
		return m, m.focus((m.focused - 1 + n) % n)
	case key.Matches(msg, m.keys.commit):
		m.commit()
		m.blur(false)
		return m, nil
	case key.Matches(msg, m.keys.back):
		m.blur(true)
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

func (m *Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if !m.snap.View.DropZoneVisible {
		return m, cmd
	}
	if ok, path := m.picker.DidSelectFile(msg); ok {
		return m, tea.Batch(cmd, m.startCycle(path))
	}
	return m, cmd
}

func (m *Model) focus(i int) tea.Cmd {
	if m.focused >= 0 {
		m.inputs[m.focused].Blur()
	}
	m.focused = i
	return m.inputs[i].Focus()
}

// blur leaves the focused input. revert restores the control's current value.
func (m *Model) blur(revert bool) {
	if m.focused < 0 {
		return
	}
	m.inputs[m.focused].Blur()
	if revert {
		m.inputs[m.focused].SetValue(m.snap.View.Echoes[models.ParameterNames[m.focused]])
	}
	m.focused = -1
	m.applySnapshot(m.session.Snapshot())
}

// commit writes the focused input into its control. Rejected input is reported and reverted.
func (m *Model) commit() {
	if m.focused < 0 {
		return
	}
	name := models.ParameterNames[m.focused]
	if err := m.panel.SetControl(name, strings.TrimSpace(m.inputs[m.focused].Value())); err != nil {
		m.session.ShowError(fmt.Sprintf("%s: %v", parameterLabels[name], err))
	}
	snap := m.session.Snapshot()
	m.inputs[m.focused].SetValue(snap.View.Echoes[name])
	m.snap = snap
}

func (m *Model) startCycle(path string) tea.Cmd {
	file, err := models.OpenVideoFile(path)
	if err != nil {
		m.logger.Warn("cannot open file", "path", path, "error", err)
		m.session.ShowError(tasks.InvalidFileMessage)
		return nil
	}

	m.result = nil
	m.session.SelectFile(file.Path)
	return func() tea.Msg {
		result, err := m.orch.HandleVideoUpload(m.ctx, file)
		return cycleDoneMsg(result, err)
	}
}

func (m *Model) toggle() tea.Cmd {
	return func() tea.Msg {
		return panelToggledMsg(m.panel.ToggleParameterTuning(m.ctx))
	}
}

func (m *Model) apply() tea.Cmd {
	m.commit()
	m.blur(false)
	return func() tea.Msg {
		return applyDoneMsg(m.panel.ApplyParameters(m.ctx))
	}
}

func (m *Model) openProcessed() tea.Cmd {
	target := m.resolve(m.snap.View.ProcessedSrc)
	return func() tea.Msg {
		return browserOpenedMsg(shared.OpenBrowser(target))
	}
}

func (m *Model) quit() tea.Cmd {
	m.session.Cancel()
	m.unsubscribe()
	return tea.Quit
}

func (m *Model) waitForSnapshot() tea.Cmd {
	ch := m.snapshots
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return sessionClosedMsg()
		}
		return snapshotMsg(snap)
	}
}

func (m *Model) resolve(ref string) string {
	if m.baseURL == "" || ref == "" {
		return ref
	}
	u, err := shared.ResolveURL(m.baseURL, ref)
	if err != nil {
		return ref
	}
	return u
}

// View renders the sections the session's view-model marks visible.
func (m *Model) View() string {
	v := m.snap.View
	if v.Alert != "" {
		return m.renderAlert(v.Alert)
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("SportTrack.ai Pose Analysis"))
	b.WriteString("\n")

	for _, e := range v.Errors {
		b.WriteString(styles.err.Render("✗ " + e.Text))
		b.WriteString("\n\n")
	}

	if v.DropZoneVisible {
		b.WriteString(m.renderDropZone())
	}
	if v.ProgressVisible {
		b.WriteString(m.renderProgress())
	}
	if v.ResultsVisible {
		b.WriteString(m.renderResults())
	}
	if v.PanelVisible {
		b.WriteString(m.renderPanel())
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *Model) renderAlert(text string) string {
	box := styles.alert.Render(text)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.dismiss})
	return fmt.Sprintf("%s\n\n%s", box, helpView)
}

func (m *Model) renderDropZone() string {
	caption := "Choose a video to analyse (MP4, AVI, MOV or MKV)"
	if f := m.snap.View.FileInput; f != "" {
		caption = "Selected: " + f
	}
	return styles.zone.Render(caption+"\n\n"+m.picker.View()) + "\n"
}

func (m *Model) renderProgress() string {
	v := m.snap.View
	var b strings.Builder
	for _, bar := range []struct {
		model progress.Model
		state tasks.ProgressBar
	}{{m.upload, v.Upload}, {m.analysis, v.Analysis}} {
		fill := float64(bar.state.Width(100)) / 100
		b.WriteString(bar.model.ViewAs(fill))
		b.WriteString("\n")
		b.WriteString(styles.help.Render(bar.state.Label))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m *Model) renderResults() string {
	v := m.snap.View
	var b strings.Builder

	b.WriteString(styles.ok.Render("✓ Analysis Complete"))
	if m.result != nil && m.result.Fallback {
		b.WriteString(" " + styles.warn.Render("(analysis unavailable, showing placeholder values)"))
	}
	b.WriteString("\n\n")

	if info := v.UploadInfo; info != nil && info.Duration > 0 {
		b.WriteString(fmt.Sprintf("%s%ss, %d frames at %s fps\n",
			styles.label.Render("Video"), models.FormatNumber(info.Duration), info.FrameCount, models.FormatNumber(info.FPS)))
	}

	for _, row := range [][2]string{
		{"Detection Confidence", v.Metrics.DetectionConfidence},
		{"Poses Detected", v.Metrics.PosesDetected},
		{"Detection Rate", v.Metrics.DetectionRate},
		{"Technique Score", v.Metrics.TechniqueScore},
	} {
		b.WriteString(styles.label.Render(row[0]) + row[1] + "\n")
	}

	if len(v.Recommendations) > 0 {
		b.WriteString("\nRecommendations\n")
		for _, rec := range v.Recommendations {
			b.WriteString("  • " + rec + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.label.Render("Original") + m.resolve(v.OriginalSrc) + "\n")
	processed := m.resolve(v.ProcessedSrc)
	if v.ProcessedReloads > 0 {
		processed += styles.help.Render(fmt.Sprintf(" (reloaded %d×)", v.ProcessedReloads))
	}
	b.WriteString(styles.label.Render("Processed") + processed + "\n")
	return b.String()
}

func (m *Model) renderPanel() string {
	v := m.snap.View
	var b strings.Builder

	b.WriteString("\n" + styles.title.Render("Detection Parameters"))
	b.WriteString("\n")
	for i, name := range models.ParameterNames {
		marker := "  "
		if i == m.focused {
			marker = "› "
		}
		b.WriteString(marker + styles.label.Render(parameterLabels[name]) + m.inputs[i].View() + "\n")
	}

	button := "[ " + v.ApplyButton.Label + " ]"
	switch {
	case v.ApplyButton.Disabled:
		button = styles.help.Render(button)
	case v.ApplyButton.Label == tasks.ApplySuccessLabel:
		button = styles.ok.Render(button)
	}
	b.WriteString("\n" + button + "\n")
	return b.String()
}

func (m *Model) renderHelp() string {
	v := m.snap.View
	var keys []key.Binding

	switch {
	case m.focused >= 0:
		keys = []key.Binding{m.keys.next, m.keys.prev, m.keys.commit, m.keys.back}
	case v.PanelVisible:
		tune := key.NewBinding(key.WithKeys("t"), key.WithHelp("t", strings.ToLower(v.ToggleLabel)))
		keys = []key.Binding{m.keys.next, m.keys.apply, m.keys.defaults, tune, m.keys.restart, m.keys.quit}
	case v.ResultsVisible:
		tune := key.NewBinding(key.WithKeys("t"), key.WithHelp("t", strings.ToLower(v.ToggleLabel)))
		keys = []key.Binding{tune, m.keys.open, m.keys.restart, m.keys.quit}
	case v.ProgressVisible:
		keys = []key.Binding{m.keys.restart, m.keys.quit}
	default:
		pick := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "analyse"))
		keys = []key.Binding{pick, m.keys.quit}
	}
	return m.help.ShortHelpView(keys)
}
