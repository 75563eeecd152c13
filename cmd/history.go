package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/sporttrack/internal/formatter"
	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/repositories"
	"github.com/desertthunder/sporttrack/internal/shared"
)

type historyEntry struct {
	Number         int     `json:"number"`
	Status         string  `json:"status"`
	FileName       string  `json:"file_name"`
	VideoID        string  `json:"video_id,omitempty"`
	TechniqueScore float64 `json:"technique_score"`
	Fallback       bool    `json:"fallback"`
	Reprocessed    int     `json:"reprocessed"`
	Message        string  `json:"message,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func newHistoryEntry(rec *models.CycleRecord) historyEntry {
	return historyEntry{
		Number:         rec.Sequence(),
		Status:         string(rec.Status()),
		FileName:       rec.FileName(),
		VideoID:        rec.VideoID(),
		TechniqueScore: rec.Analysis().TechniqueScore,
		Fallback:       rec.Fallback(),
		Reprocessed:    rec.ReprocessCount(),
		Message:        rec.Message(),
		CreatedAt:      rec.CreatedAt().Format("2006-01-02 15:04"),
	}
}

// requireJournal opens the journal, failing when database.path is unset.
func (r *Runner) requireJournal() (*repositories.CycleRepository, func(), error) {
	journal, closeJournal, err := r.openJournal()
	if err != nil {
		return nil, closeJournal, err
	}
	if journal == nil {
		return nil, closeJournal, fmt.Errorf("%w: database.path is not set, the cycle journal is disabled", shared.ErrMissingConfig)
	}
	return journal.Repository(), closeJournal, nil
}

// HistoryList prints journaled upload cycles, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, closeJournal, err := r.requireJournal()
	defer closeJournal()
	if err != nil {
		return err
	}

	records, err := repo.List(map[string]any{"status": cmd.String("status"), "limit": int(cmd.Int("limit"))})
	if err != nil {
		return err
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, newHistoryEntry(rec))
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		r.writePlain("No analyses recorded yet.\n")
		return nil
	}

	r.writePlain("%-5s %-10s %-28s %-14s %-6s %s\n", "#", "STATUS", "FILE", "VIDEO", "SCORE", "DATE")
	for _, e := range entries {
		score := "-"
		if e.Status == string(models.CycleCompleted) {
			score = models.Percent(e.TechniqueScore)
			if e.Fallback {
				score += "*"
			}
		}
		r.writePlain("%-5d %-10s %-28s %-14s %-6s %s\n", e.Number, e.Status, truncate(e.FileName, 28), truncate(e.VideoID, 14), score, e.CreatedAt)
	}
	return nil
}

// HistoryExport renders one journaled analysis, or every completed one when no number is given.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	output := cmd.String("output")
	format := cmd.String("format")
	if format == "" && output != "" {
		format = formatter.FormatFromPath(output)
	}
	format, err := formatter.ParseFormat(format)
	if err != nil {
		return err
	}

	repo, closeJournal, err := r.requireJournal()
	defer closeJournal()
	if err != nil {
		return err
	}

	var records []*models.CycleRecord
	if n := int(cmd.IntArg("number")); n > 0 {
		rec, err := repo.GetBySequence(n)
		if err != nil {
			return err
		}
		if rec.Status() != models.CycleCompleted {
			return fmt.Errorf("%w: analysis #%d is %s", shared.ErrInvalidArgument, n, rec.Status())
		}
		records = append(records, rec)
	} else {
		records, err = repo.List(map[string]any{"status": models.CycleCompleted})
		if err != nil {
			return err
		}
	}

	reports := make([]formatter.Report, 0, len(records))
	for _, rec := range records {
		reports = append(reports, formatter.FromRecord(rec, r.config.Server.BaseURL))
	}

	if output != "" {
		if err := formatter.WriteExport(output, format, reports...); err != nil {
			return err
		}
		r.logger.Info("history exported", "reports", len(reports), "path", output)
		r.writePlain("✓ %d report(s) written to %s\n", len(reports), output)
		return nil
	}

	data, err := formatter.Export(format, reports...)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// HistoryDelete soft-deletes a journaled analysis by its number.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	n := int(cmd.IntArg("number"))
	if n <= 0 {
		return fmt.Errorf("%w: an analysis number is required", shared.ErrMissingArgument)
	}

	repo, closeJournal, err := r.requireJournal()
	defer closeJournal()
	if err != nil {
		return err
	}

	rec, err := repo.GetBySequence(n)
	if err != nil {
		return err
	}
	if err := repo.Delete(rec.ID()); err != nil {
		return err
	}

	r.writePlain("✓ Deleted analysis #%d (%s)\n", n, rec.FileName())
	return nil
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
