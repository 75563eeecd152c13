package shared

import (
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		in   string
		want log.Level
	}{
		{in: "debug", want: log.DebugLevel},
		{in: " WARN ", want: log.WarnLevel},
		{in: "warning", want: log.WarnLevel},
		{in: "error", want: log.ErrorLevel},
		{in: "", want: log.InfoLevel},
		{in: "verbose", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	tc := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{name: "relative path", base: "http://127.0.0.1:5000", ref: "/static/uploads/a.mp4", want: "http://127.0.0.1:5000/static/uploads/a.mp4"},
		{name: "absolute ref wins", base: "http://127.0.0.1:5000", ref: "https://cdn.example.com/b.mp4", want: "https://cdn.example.com/b.mp4"},
		{name: "query preserved", base: "http://host/", ref: "/p.mp4?t=1", want: "http://host/p.mp4?t=1"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.base, tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveURL() = %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("invalid base", func(t *testing.T) {
		if _, err := ResolveURL("http://[::1", "/x"); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestOpenBrowser(t *testing.T) {
	origRuntime, origStart := getRuntime, startCommand
	t.Cleanup(func() { getRuntime, startCommand = origRuntime, origStart })

	var started []string
	startCommand = func(cmd *exec.Cmd) error {
		started = cmd.Args
		return nil
	}

	t.Run("linux uses xdg-open", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		if err := OpenBrowser("http://x/y.mp4"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filepath.Base(started[0]) != "xdg-open" || started[1] != "http://x/y.mp4" {
			t.Errorf("unexpected command %v", started)
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		if err := OpenBrowser("http://x"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})

	t.Run("start failure is wrapped", func(t *testing.T) {
		getRuntime = func() string { return "darwin" }
		startCommand = func(cmd *exec.Cmd) error { return errors.New("boom") }
		if err := OpenBrowser("http://x"); err == nil {
			t.Error("expected error when command fails to start")
		}
	})
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("hello")
}
