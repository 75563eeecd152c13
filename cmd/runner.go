package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/sporttrack/internal/repositories"
	"github.com/desertthunder/sporttrack/internal/services"
	"github.com/desertthunder/sporttrack/internal/shared"
	"github.com/desertthunder/sporttrack/internal/tasks"
)

// Backend is what commands need from the analysis backend: the typed operations and
// the progress stream used by the "stream" driver.
type Backend interface {
	services.AnalysisService
	tasks.ProgressStreamer
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	svc         Backend
	api         *services.APIService
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	progress    io.Writer
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is loaded from --config before any command runs; a nil Service is built from it.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Service     Backend
	API         *services.APIService
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer // Reports and listings
	Progress    io.Writer // Progress bars and status lines
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Progress == nil {
		opts.Progress = os.Stderr
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		svc:         opts.Service,
		api:         opts.API,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		progress:    opts.Progress,
		openBrowser: opts.OpenBrowser,
	}
}

// Before loads the configuration, applies the log level and connects the backend client.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.config == nil {
		if err := shared.LoadDotEnv(cmd.String("env-file")); err != nil {
			return ctx, err
		}

		config, err := r.loadConfig()
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("debug") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	if r.svc == nil {
		client := r.httpClient
		if t := r.config.Server.Timeout; t > 0 {
			client = &http.Client{Transport: r.httpClient.Transport, Timeout: t}
		}
		svc := services.NewSportTrackService(r.config.Server.BaseURL, client)
		r.svc = svc
		if r.api == nil {
			r.api = svc.API()
		}
	}
	if r.api == nil {
		r.api = services.NewAPIService(r.config.Server.BaseURL, r.httpClient)
	}

	return ctx, nil
}

// loadConfig reads r.configPath, falling back to the embedded defaults when the file does not exist.
// SPORTTRACK_* environment variables override both.
func (r *Runner) loadConfig() (*shared.Config, error) {
	config := shared.DefaultConfig()

	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		} else {
			loaded, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", r.configPath, err)
			}
			config = loaded
		}
	}

	if config.ApplyEnv() {
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}
	return config, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		analyzeCommand, validateCommand, paramsCommand, tuiCommand, historyCommand,
		healthCommand, apiCommand, setupCommand, devServerCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openJournal opens the cycle journal when database.path is set.
//
// The returned close func is never nil.
func (r *Runner) openJournal() (*repositories.CycleJournal, func(), error) {
	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open journal: %w", err)
	}
	if db == nil {
		return nil, func() {}, nil
	}

	r.logger.Debug("journal opened", "path", r.config.Database.Path)
	return repositories.NewCycleJournal(db), func() { db.Close() }, nil
}

// widget is one session with its orchestrator and parameter panel.
type widget struct {
	session *tasks.Session
	orch    *tasks.Orchestrator
	panel   *tasks.Panel
	journal *repositories.CycleJournal
	close   func()
}

// newWidget wires a session to the backend. progress overrides analysis.progress when set.
func (r *Runner) newWidget(progress string, logger *log.Logger) (*widget, error) {
	if progress == "" {
		progress = r.config.Analysis.Progress
	}

	timings := tasks.TimingsFromConfig(r.config)
	driver, err := tasks.NewProgressDriver(progress, r.svc, timings, shared.WithLogger(logger, "component", "progress"))
	if err != nil {
		return nil, err
	}

	journal, closeJournal, err := r.openJournal()
	if err != nil {
		return nil, err
	}

	session := tasks.NewSession(timings, logger)
	opts := tasks.OrchestratorOpts{Driver: driver, ProbeMedia: r.config.Analysis.ProbeMedia, Logger: logger}
	var reprocessed tasks.ReprocessJournal
	if journal != nil {
		opts.Journal = journal
		reprocessed = journal
	}

	return &widget{
		session: session,
		orch:    tasks.NewOrchestrator(session, r.svc, opts),
		panel:   tasks.NewPanel(session, r.svc, reprocessed, shared.WithLogger(logger, "component", "panel")),
		journal: journal,
		close: func() {
			session.Close()
			closeJournal()
		},
	}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
