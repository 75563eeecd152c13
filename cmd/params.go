package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/repositories"
	"github.com/desertthunder/sporttrack/internal/shared"
	"github.com/desertthunder/sporttrack/internal/tasks"
)

// parseAssignments splits name=value arguments.
func parseAssignments(args []string) ([][2]string, error) {
	assignments := make([][2]string, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q is not name=value", shared.ErrInvalidArgument, arg)
		}
		assignments = append(assignments, [2]string{strings.TrimSpace(name), strings.TrimSpace(value)})
	}
	return assignments, nil
}

func (r *Runner) printParameters(params models.Parameters) {
	for _, name := range models.ParameterNames {
		value, _ := params.Get(name)
		r.writePlain("%-32s %s\n", name, value)
	}
}

// ParamsShow prints the backend's current detection parameters.
func (r *Runner) ParamsShow(ctx context.Context, cmd *cli.Command) error {
	params, err := r.svc.GetParameters(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(params, true)
	}

	r.printParameters(*params)
	return nil
}

// ParamsReset sends the built-in defaults to the backend.
func (r *Runner) ParamsReset(ctx context.Context, cmd *cli.Command) error {
	defaults := models.DefaultParameters()
	if err := r.svc.UpdateParameters(ctx, defaults); err != nil {
		return err
	}

	r.logger.Info("parameters reset to defaults")
	r.writePlain("✓ Parameters reset to defaults\n")
	r.printParameters(defaults)
	return nil
}

// ParamsSet edits the current parameters and sends them back without reprocessing.
func (r *Runner) ParamsSet(ctx context.Context, cmd *cli.Command) error {
	assignments, err := parseAssignments(cmd.Args().Slice())
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		return fmt.Errorf("%w: at least one name=value pair is required", shared.ErrMissingArgument)
	}

	w, err := r.newWidget("", r.logger)
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.panel.LoadCurrentParameters(ctx); err != nil {
		return err
	}
	if err := setControls(w.panel, assignments); err != nil {
		return err
	}

	params := w.panel.Controls()
	if err := r.svc.UpdateParameters(ctx, params); err != nil {
		return err
	}

	r.writePlain("✓ Parameters updated\n")
	r.printParameters(params)
	return nil
}

func setControls(panel *tasks.Panel, assignments [][2]string) error {
	for _, a := range assignments {
		if err := panel.SetControl(a[0], a[1]); err != nil {
			return err
		}
	}
	return nil
}

// ParamsApply edits the parameters and reprocesses a video, as the panel's "Apply & Reprocess" does.
//
// Without --video the most recent journaled upload is reprocessed.
func (r *Runner) ParamsApply(ctx context.Context, cmd *cli.Command) error {
	assignments, err := parseAssignments(cmd.Args().Slice())
	if err != nil {
		return err
	}

	w, err := r.newWidget("", r.logger)
	if err != nil {
		return err
	}
	defer w.close()

	videoID := cmd.String("video")
	if videoID == "" {
		videoID, err = latestVideo(w.journal)
		if err != nil {
			return err
		}
	}
	if videoID != "" {
		w.session.Resume(videoID)
	}

	if err := w.panel.LoadCurrentParameters(ctx); err != nil {
		r.logger.Warn("using default parameters", "error", err)
	}
	if err := setControls(w.panel, assignments); err != nil {
		return err
	}

	if err := w.panel.ApplyParameters(ctx); err != nil {
		if alert := w.session.Snapshot().View.Alert; alert != "" {
			fmt.Fprintf(r.progress, "✗ %s\n", alert)
		}
		return err
	}

	view := w.session.Snapshot().View
	r.writePlain("✓ %s\n", tasks.ApplySuccessLabel)
	r.writePlain("Video: %s\n", videoID)
	r.writePlain("Processed: %s\n", view.ProcessedSrc)
	r.printParameters(view.Controls)
	return nil
}

// latestVideo returns the video id of the newest journaled upload, or "" without a journal.
func latestVideo(journal *repositories.CycleJournal) (string, error) {
	if journal == nil {
		return "", nil
	}

	records, err := journal.Repository().List(map[string]any{"status": models.CycleCompleted, "limit": 1})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	return records[0].VideoID(), nil
}

