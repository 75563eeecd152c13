package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/sporttrack/internal/shared"
	"github.com/desertthunder/sporttrack/internal/ui"
)

// TUI launches the interactive terminal UI: drop zone, progress, results and the parameter panel.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	logger := r.logger
	if path := r.config.Log.File; path != "" {
		// Log lines written to the terminal would corrupt rendering
		fileLogger, err := shared.NewFileLogger(path)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		shared.SetLogLevel(fileLogger, r.logger.GetLevel())
		logger = fileLogger
	}

	w, err := r.newWidget(cmd.String("progress"), logger)
	if err != nil {
		return err
	}
	defer w.close()

	model := ui.NewModel(ctx, w.orch, w.panel, ui.ModelOpts{
		Dir:     cmd.String("dir"),
		File:    cmd.StringArg("file"),
		BaseURL: r.config.Server.BaseURL,
		Logger:  logger,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
