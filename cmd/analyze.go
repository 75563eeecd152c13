package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/desertthunder/sporttrack/internal/formatter"
	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/shared"
	"github.com/desertthunder/sporttrack/internal/tasks"
)

const barTemplate pb.ProgressBarTemplate = `{{ string . "stage" }} {{ bar . "[" "=" ">" " " "]" }} {{ percent . }} {{ string . "label" }}`

// cycleView draws session snapshots as two sequential progress bars, or as status lines when
// the writer is not a terminal.
type cycleView struct {
	w        io.Writer
	bars     bool
	upload   *pb.ProgressBar
	analysis *pb.ProgressBar
	last     map[string]string
}

func newCycleView(w io.Writer, bars bool) *cycleView {
	return &cycleView{w: w, bars: bars, last: map[string]string{}}
}

func (c *cycleView) render(v tasks.ViewModel) {
	if !v.ProgressVisible {
		return
	}

	c.show("upload", &c.upload, v.Upload)
	if v.Upload.Percent >= 100 {
		if c.upload != nil && !c.upload.IsFinished() {
			c.upload.Finish()
		}
		c.show("analysis", &c.analysis, v.Analysis)
	}
}

func (c *cycleView) show(stage string, bar **pb.ProgressBar, p tasks.ProgressBar) {
	if !c.bars {
		if c.last[stage] != p.Label {
			c.last[stage] = p.Label
			fmt.Fprintf(c.w, "%-8s %3d%%  %s\n", stage, p.Width(100), p.Label)
		}
		return
	}

	if *bar == nil {
		*bar = barTemplate.New(100).SetWriter(c.w).Set("stage", fmt.Sprintf("%-8s", stage)).Start()
	}
	(*bar).Set("label", p.Label).SetCurrent(int64(p.Width(100)))
}

func (c *cycleView) finish() {
	for _, bar := range []*pb.ProgressBar{c.upload, c.analysis} {
		if bar != nil && !bar.IsFinished() {
			bar.Finish()
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Analyze runs one upload cycle for a file and prints the report.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: a video file is required", shared.ErrMissingArgument)
	}

	output := cmd.String("output")
	format := cmd.String("format")
	if format == "" && output != "" {
		format = formatter.FormatFromPath(output)
	}
	format, err := formatter.ParseFormat(format)
	if err != nil {
		return err
	}

	file, err := models.OpenVideoFile(path)
	if err != nil {
		return err
	}

	logger := shared.WithLogger(r.logger, "file", file.Name)
	w, err := r.newWidget(cmd.String("progress"), logger)
	if err != nil {
		return err
	}
	defer w.close()

	quiet := cmd.Bool("quiet")
	view := newCycleView(r.progress, isTerminal(r.progress))
	snapshots, unsubscribe := w.session.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range snapshots {
			if !quiet {
				view.render(snap.View)
			}
		}
	}()

	result, err := w.orch.HandleVideoUpload(ctx, file)
	unsubscribe()
	<-done
	view.finish()

	if err != nil {
		if errs := w.session.Snapshot().View.Errors; len(errs) > 0 {
			fmt.Fprintf(r.progress, "✗ %s\n", errs[0].Text)
		}
		return err
	}

	report := formatter.FromCycle(result, r.config.Server.BaseURL)
	if result.Fallback {
		logger.Warn("analysis unavailable, report shows placeholder values", "video_id", result.Upload.VideoID)
	}

	if output != "" {
		if err := formatter.WriteExport(output, format, report); err != nil {
			return err
		}
		r.writePlain("✓ Report written to %s\n", output)
	} else {
		data, err := formatter.Export(format, report)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if cmd.Bool("open") {
		if err := r.openBrowser(report.ProcessedURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			fmt.Fprintf(r.progress, "⚠ Could not open browser automatically. Processed video: %s\n", report.ProcessedURL)
		}
	}

	return nil
}

// Validate reports whether each file would be accepted for upload.
func (r *Runner) Validate(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one file is required", shared.ErrMissingArgument)
	}

	rejected := 0
	for _, path := range paths {
		file, err := models.OpenVideoFile(path)
		if err != nil {
			rejected++
			r.writePlain("✗ %s: %v\n", path, err)
			continue
		}

		v := file.Validate()
		r.logger.Debug("file validation", v.KeyVals()...)
		if !v.Valid() {
			rejected++
			r.writePlain("✗ %s: %s\n", file.Name, tasks.InvalidFileMessage)
			continue
		}
		r.writePlain("✓ %s (%s, %s)\n", file.Name, file.Type, humanize.IBytes(uint64(file.Size)))
	}

	if rejected > 0 {
		return fmt.Errorf("%w: %d of %d files rejected", shared.ErrInvalidInput, rejected, len(paths))
	}
	return nil
}
