package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Progress driver names accepted by [AnalysisConfig].
const (
	ProgressPoll     = "poll"
	ProgressSimulate = "simulate"
	ProgressStream   = "stream"
)

// Environment variables read by [Config.ApplyEnv].
const (
	EnvBaseURL  = "SPORTTRACK_BASE_URL"
	EnvDatabase = "SPORTTRACK_DATABASE"
	EnvLogLevel = "SPORTTRACK_LOG_LEVEL"
	EnvProgress = "SPORTTRACK_PROGRESS"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Analysis  AnalysisConfig  `toml:"analysis"`
	Database  DatabaseConfig  `toml:"database"`
	Log       LogConfig       `toml:"log"`
	DevServer DevServerConfig `toml:"dev_server"`
}

// ServerConfig points the client at the analysis backend.
type ServerConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

// AnalysisConfig contains the presentation timings and the progress driver selection.
type AnalysisConfig struct {
	Progress          string        `toml:"progress"`
	PollInterval      time.Duration `toml:"poll_interval"`
	UploadStepDelay   time.Duration `toml:"upload_step_delay"`
	RenderDelay       time.Duration `toml:"render_delay"`
	ReloadDelay       time.Duration `toml:"reload_delay"`
	ErrorDismissDelay time.Duration `toml:"error_dismiss_delay"`
	FeedbackDelay     time.Duration `toml:"feedback_delay"`
	SimulationScale   float64       `toml:"simulation_scale"`
	ProbeMedia        bool          `toml:"probe_media"`
}

// DatabaseConfig contains database connection settings.
//
// An empty Path disables the cycle journal.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DevServerConfig contains settings for the local stub backend.
type DevServerConfig struct {
	Host      string        `toml:"host"`
	Port      int           `toml:"port"`
	MediaDir  string        `toml:"media_dir"`
	StepDelay time.Duration `toml:"step_delay"`
}

// Addr returns the host:port listen address.
func (d DevServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports the first invalid setting, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: server.base_url %q is not an absolute URL", ErrInvalidConfig, c.Server.BaseURL)
	}

	switch c.Analysis.Progress {
	case ProgressPoll, ProgressSimulate, ProgressStream:
	default:
		return fmt.Errorf("%w: analysis.progress must be %q, %q or %q, got %q", ErrInvalidConfig, ProgressPoll, ProgressSimulate, ProgressStream, c.Analysis.Progress)
	}

	if c.Analysis.PollInterval <= 0 {
		return fmt.Errorf("%w: analysis.poll_interval must be positive", ErrInvalidConfig)
	}
	if c.Analysis.SimulationScale < 0 {
		return fmt.Errorf("%w: analysis.simulation_scale must not be negative", ErrInvalidConfig)
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("%w: server.timeout must not be negative", ErrInvalidConfig)
	}

	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidArgument, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotEnv exports the KEY=value pairs in path. Variables already set in the environment win,
// and a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from SPORTTRACK_* environment variables and reports whether any
// were set.
func (c *Config) ApplyEnv() bool {
	applied := false
	for env, field := range map[string]*string{
		EnvBaseURL:  &c.Server.BaseURL,
		EnvDatabase: &c.Database.Path,
		EnvLogLevel: &c.Log.Level,
		EnvProgress: &c.Analysis.Progress,
	} {
		if v, ok := os.LookupEnv(env); ok {
			*field = v
			applied = true
		}
	}
	return applied
}
