package ui

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/tasks"
	tu "github.com/desertthunder/sporttrack/internal/testing"
)

func newTestModel(t *testing.T, svc *tu.MockAnalysisService) *Model {
	t.Helper()
	logger := log.New(io.Discard)

	session := tasks.NewSession(tasks.Timings{}, logger)
	t.Cleanup(session.Close)

	orch := tasks.NewOrchestrator(session, svc, tasks.OrchestratorOpts{Driver: tasks.NewSimulationDriver(0), Logger: logger})
	panel := tasks.NewPanel(session, svc, nil, logger)
	return NewModel(context.Background(), orch, panel, ModelOpts{Dir: t.TempDir(), BaseURL: "http://127.0.0.1:5000", Logger: logger})
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds its message back into the model when it is one of ours.
func run(t *testing.T, m *Model, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if ours, ok := msg.(Msg); ok {
		m.Update(ours)
	}
	return msg
}

func press(m *Model, msg tea.KeyMsg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

func analysed(t *testing.T, svc *tu.MockAnalysisService) *Model {
	t.Helper()
	m := newTestModel(t, svc)
	file := tu.WriteVideo(t, "jump.mp4", "video/mp4")
	run(t, m, m.startCycle(file.Path))

	if !m.snap.View.ResultsVisible {
		t.Fatalf("expected results after a cycle, got %+v", m.snap.View)
	}
	return m
}

func TestModel(t *testing.T) {
	t.Run("Starts On The Drop Zone", func(t *testing.T) {
		m := newTestModel(t, &tu.MockAnalysisService{})

		view := m.View()
		if !strings.Contains(view, "Choose a video to analyse") {
			t.Errorf("expected drop zone, got:\n%s", view)
		}
		if strings.Contains(view, "Technique Score") {
			t.Error("results should be hidden")
		}
	})

	t.Run("Upload Cycle Renders Results", func(t *testing.T) {
		m := analysed(t, &tu.MockAnalysisService{})

		if m.result == nil || m.result.Upload.VideoID != "vid-1" {
			t.Fatalf("expected the cycle result, got %+v", m.result)
		}

		view := m.View()
		for _, want := range []string{
			"91%", "270/300", "64%",
			"Keep your knees soft on landing",
			"http://127.0.0.1:5000/static/processed/vid-1.mp4",
		} {
			if !strings.Contains(view, want) {
				t.Errorf("results missing %q, got:\n%s", want, view)
			}
		}
		if strings.Contains(view, "Choose a video") {
			t.Error("drop zone should be hidden")
		}
	})

	t.Run("Missing File Shows Error", func(t *testing.T) {
		m := newTestModel(t, &tu.MockAnalysisService{})

		if cmd := m.startCycle(filepath.Join(t.TempDir(), "gone.mp4")); cmd != nil {
			t.Fatal("expected no cycle for a missing file")
		}
		m.applySnapshot(m.session.Snapshot())

		if !strings.Contains(m.View(), tasks.InvalidFileMessage) {
			t.Errorf("expected %q, got:\n%s", tasks.InvalidFileMessage, m.View())
		}
	})

	t.Run("Unsupported File Is Rejected", func(t *testing.T) {
		svc := &tu.MockAnalysisService{}
		m := newTestModel(t, svc)
		file := tu.WriteVideo(t, "notes.txt", "text/plain")

		run(t, m, m.startCycle(file.Path))

		if svc.CallCount("Upload") != 0 {
			t.Error("expected no upload")
		}
		if !m.snap.View.DropZoneVisible || !strings.Contains(m.View(), tasks.InvalidFileMessage) {
			t.Errorf("expected drop zone with error, got:\n%s", m.View())
		}
	})

	t.Run("Tune Opens Panel", func(t *testing.T) {
		svc := &tu.MockAnalysisService{GetParametersFunc: func(ctx context.Context) (*models.Parameters, error) {
			p := models.DefaultParameters()
			p.ModelComplexity = 2
			return &p, nil
		}}
		m := analysed(t, svc)

		run(t, m, press(m, runes("t")))

		if !m.snap.View.PanelVisible || m.snap.View.ToggleLabel != tasks.ToggleCloseLabel {
			t.Fatalf("expected open panel, got %+v", m.snap.View)
		}
		if got := m.inputs[2].Value(); got != "2" {
			t.Errorf("expected loaded model complexity 2, got %q", got)
		}
		if !strings.Contains(m.View(), tasks.ApplyLabel) {
			t.Error("expected the apply button")
		}
	})

	t.Run("Edit Parameter", func(t *testing.T) {
		m := analysed(t, &tu.MockAnalysisService{})
		run(t, m, press(m, runes("t")))

		press(m, tea.KeyMsg{Type: tea.KeyTab})
		if m.focused != 0 {
			t.Fatalf("expected first input focused, got %d", m.focused)
		}

		m.inputs[0].SetValue("0.8")
		press(m, tea.KeyMsg{Type: tea.KeyEnter})

		if m.focused != -1 {
			t.Error("expected enter to leave the input")
		}
		if got := m.panel.Controls().MinDetectionConfidence; got != 0.8 {
			t.Errorf("expected 0.8, got %v", got)
		}
	})

	t.Run("Invalid Parameter Reverts", func(t *testing.T) {
		m := analysed(t, &tu.MockAnalysisService{})
		run(t, m, press(m, runes("t")))

		press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
		m.inputs[5].SetValue("lots")
		press(m, tea.KeyMsg{Type: tea.KeyTab})

		if m.focused != 0 {
			t.Errorf("expected focus to wrap to 0, got %d", m.focused)
		}
		if got := m.inputs[5].Value(); got != "0.4" {
			t.Errorf("expected reverted value 0.4, got %q", got)
		}
		if len(m.snap.View.Errors) != 1 || !strings.Contains(m.snap.View.Errors[0].Text, "Stability Ratio") {
			t.Errorf("expected one error naming the control, got %+v", m.snap.View.Errors)
		}
	})

	t.Run("Escape Discards Edit", func(t *testing.T) {
		m := analysed(t, &tu.MockAnalysisService{})
		run(t, m, press(m, runes("t")))

		press(m, tea.KeyMsg{Type: tea.KeyTab})
		m.inputs[0].SetValue("0.9")
		press(m, tea.KeyMsg{Type: tea.KeyEsc})

		if got := m.inputs[0].Value(); got != "0.4" {
			t.Errorf("expected 0.4 after escape, got %q", got)
		}
		if got := m.panel.Controls().MinDetectionConfidence; got != 0.4 {
			t.Errorf("control should be unchanged, got %v", got)
		}
	})

	t.Run("Apply Reprocesses", func(t *testing.T) {
		svc := &tu.MockAnalysisService{}
		m := analysed(t, svc)
		run(t, m, press(m, runes("t")))

		run(t, m, press(m, runes("a")))

		if svc.CallCount("Reprocess:vid-1") != 1 {
			t.Errorf("expected one reprocess, got %v", svc.Calls())
		}
		if m.snap.View.ProcessedReloads != 1 {
			t.Errorf("expected the processed video to reload, got %d", m.snap.View.ProcessedReloads)
		}
	})

	t.Run("Apply Without Video Alerts", func(t *testing.T) {
		svc := &tu.MockAnalysisService{}
		m := newTestModel(t, svc)
		m.panel.ToggleParameterTuning(context.Background())
		m.applySnapshot(m.session.Snapshot())

		run(t, m, press(m, runes("a")))

		if m.snap.View.Alert != tasks.NoVideoAlert {
			t.Fatalf("expected alert, got %q", m.snap.View.Alert)
		}
		if !strings.Contains(m.View(), tasks.NoVideoAlert) {
			t.Errorf("expected alert view, got:\n%s", m.View())
		}

		if cmd := press(m, runes("n")); cmd != nil {
			t.Error("other keys should be ignored while alerted")
		}
		press(m, tea.KeyMsg{Type: tea.KeyEnter})
		if m.snap.View.Alert != "" {
			t.Error("expected enter to dismiss the alert")
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		m := analysed(t, &tu.MockAnalysisService{})
		run(t, m, press(m, runes("t")))
		_ = m.panel.SetControl(models.ParamModelComplexity, "0")

		press(m, runes("d"))

		if m.panel.Controls() != models.DefaultParameters() {
			t.Errorf("expected defaults, got %+v", m.panel.Controls())
		}
		if got := m.inputs[2].Value(); got != "1" {
			t.Errorf("expected input to show 1, got %q", got)
		}
	})

	t.Run("New Analysis", func(t *testing.T) {
		m := analysed(t, &tu.MockAnalysisService{})

		if cmd := press(m, runes("n")); cmd == nil {
			t.Error("expected the picker to reload")
		}

		if !m.snap.View.DropZoneVisible || m.snap.View.ResultsVisible {
			t.Errorf("expected drop zone, got %+v", m.snap.View)
		}
		if m.session.VideoID() != "" || m.result != nil {
			t.Error("expected the video to be forgotten")
		}
	})

	t.Run("Snapshots Arrive Through Subscription", func(t *testing.T) {
		m := newTestModel(t, &tu.MockAnalysisService{})
		wait := m.waitForSnapshot()

		m.session.UpdateUploadProgress(40, "Uploading... 40%")
		msg := wait()

		m.Update(msg)
		if m.snap.View.Upload.Percent != 40 {
			t.Errorf("expected upload at 40%%, got %+v", m.snap.View.Upload)
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m := newTestModel(t, &tu.MockAnalysisService{})

		cmd := press(m, runes("q"))
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected quit")
		}
		if msg := m.waitForSnapshot()(); msg.(Msg).kind != MsgSessionClosed {
			t.Error("expected the subscription to be closed")
		}
	})
}
