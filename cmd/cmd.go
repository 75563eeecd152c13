// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/sporttrack/internal/formatter"
	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/shared"
)

var formatUsage = "Report format (" + strings.Join(formatter.Formats, ", ") + "); defaults to the --output extension"

// analyzeCommand runs one upload cycle without the TUI
func analyzeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "analyze",
		Aliases: []string{"analyse", "upload"},
		Usage:   "Upload a video, follow its analysis and print the report",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   formatUsage,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
			&cli.StringFlag{
				Name:  "progress",
				Usage: "Progress driver: " + shared.ProgressPoll + ", " + shared.ProgressStream + " or " + shared.ProgressSimulate + " (overrides analysis.progress)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the processed video in the browser",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide progress bars",
			},
		},
		Action: r.Analyze,
	}
}

// validateCommand checks files against the accepted video types
func validateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check whether files would be accepted for upload",
		ArgsUsage: "<file...>",
		Action:    r.Validate,
	}
}

// paramsCommand handles detection parameter operations
func paramsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "params",
		Aliases: []string{"parameters"},
		Usage:   "Show and tune the pose-detection parameters",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the backend's current parameters",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ParamsShow,
			},
			{
				Name:   "reset",
				Usage:  "Send the built-in defaults to the backend",
				Action: r.ParamsReset,
			},
			{
				Name:      "set",
				Usage:     "Change parameters without reprocessing",
				ArgsUsage: "<name=value...>",
				Action:    r.ParamsSet,
			},
			{
				Name:      "apply",
				Usage:     "Change parameters and reprocess a video",
				ArgsUsage: "[name=value...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "video",
						Usage: "Video id to reprocess; defaults to the latest journaled upload",
					},
				},
				Action: r.ParamsApply,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive upload widget",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Starting directory of the file picker",
			},
			&cli.StringFlag{
				Name:  "progress",
				Usage: "Progress driver (overrides analysis.progress)",
			},
		},
		Action: r.TUI,
	}
}

// historyCommand handles the cycle journal
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List journaled upload cycles",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of cycles to list",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only list cycles with this status (" + strings.Join(cycleStatuses(), ", ") + ")",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.HistoryList,
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export the report of a journaled cycle",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "number"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   formatUsage,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to a file instead of stdout",
					},
				},
				Action: r.HistoryExport,
			},
			{
				Name:  "delete",
				Usage: "Remove a cycle from the history",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "number"},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}

func cycleStatuses() []string {
	return []string{
		string(models.CycleRunning), string(models.CycleCompleted), string(models.CycleFailed), string(models.CycleCancelled),
	}
}

// healthCommand checks the backend
func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check that the analysis backend is reachable",
		Action: r.Health,
	}
}

// apiCommand handles direct backend calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the analysis backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints the raw response",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with a JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON body to send",
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the journal database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml populated with the defaults",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the journal database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Database file (overrides database.path)",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// devServerCommand runs the stub backend
func devServerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "dev-server",
		Aliases: []string{"serve"},
		Usage:   "Run a local stub of the analysis backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides dev_server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides dev_server.port)",
			},
			&cli.StringFlag{
				Name:  "media-dir",
				Usage: "Where uploads are stored (overrides dev_server.media_dir)",
			},
		},
		Action: r.DevServer,
	}
}
