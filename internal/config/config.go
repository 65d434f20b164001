// Package config loads devpanel configuration from YAML with
// DEVPANEL_* environment overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP API listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SupervisorConfig holds process supervision settings.
type SupervisorConfig struct {
	AutoRestart        bool `yaml:"auto_restart"`
	MaxRestartAttempts int  `yaml:"max_restart_attempts"`
}

// LogsConfig holds log aggregation settings. The poll interval is
// plain milliseconds in YAML; PollInterval converts it.
type LogsConfig struct {
	Dir            string `yaml:"dir"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	RetentionDays  int    `yaml:"retention_days"`
}

// PollInterval returns the tail poll interval as a duration.
func (c *LogsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LoggerConfig holds daemon logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level daemon configuration.
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Supervisor  SupervisorConfig `yaml:"supervisor"`
	Logs        LogsConfig       `yaml:"logs"`
	Logger      LoggerConfig     `yaml:"logger"`
	ProjectRoot string           `yaml:"project_root"`
	DataDir     string           `yaml:"data_dir"`
}

// DBPath returns the SQLite database location under the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "devpanel.db")
}

// StatePath returns the supervisor state snapshot location.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.json")
}

// Addr returns the host:port pair the API server binds.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// detectProjectRoot resolves the workspace root. Running from inside the
// panel subdirectory itself counts as running from the workspace.
func detectProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if filepath.Base(cwd) == "panel" {
		return filepath.Dir(cwd)
	}
	return cwd
}

// Defaults returns a Config with sensible defaults rooted at the
// detected project root.
func Defaults() *Config {
	root := detectProjectRoot()
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9000,
		},
		Supervisor: SupervisorConfig{
			AutoRestart:        true,
			MaxRestartAttempts: 5,
		},
		Logs: LogsConfig{
			Dir:            filepath.Join(root, "panel", "logs"),
			PollIntervalMs: 500,
			RetentionDays:  30,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
		ProjectRoot: root,
		DataDir:     filepath.Join(root, "panel", "data"),
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error; defaults plus overrides are returned instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps DEVPANEL_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEVPANEL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DEVPANEL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("DEVPANEL_PROJECT_ROOT"); v != "" {
		cfg.ProjectRoot = v
	}
	if v := os.Getenv("DEVPANEL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DEVPANEL_LOGS_DIR"); v != "" {
		cfg.Logs.Dir = v
	}
	if v := os.Getenv("DEVPANEL_LOGS_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Logs.PollIntervalMs = n
		}
	}
	if v := os.Getenv("DEVPANEL_LOGS_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Logs.RetentionDays = n
		}
	}
	if v := os.Getenv("DEVPANEL_AUTO_RESTART"); v == "false" {
		cfg.Supervisor.AutoRestart = false
	} else if v == "true" {
		cfg.Supervisor.AutoRestart = true
	}
	if v := os.Getenv("DEVPANEL_MAX_RESTART_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Supervisor.MaxRestartAttempts = n
		}
	}
	if v := os.Getenv("DEVPANEL_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("DEVPANEL_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
}

// Validate rejects configs the daemon cannot run with.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 1-65535", cfg.Server.Port)
	}
	if cfg.Supervisor.MaxRestartAttempts < 0 {
		return fmt.Errorf("invalid max_restart_attempts %d: must be >= 0", cfg.Supervisor.MaxRestartAttempts)
	}
	if cfg.Logs.PollIntervalMs <= 0 {
		return fmt.Errorf("invalid logs poll_interval_ms %d: must be positive", cfg.Logs.PollIntervalMs)
	}
	if cfg.Logs.RetentionDays < 1 {
		return fmt.Errorf("invalid retention_days %d: must be >= 1", cfg.Logs.RetentionDays)
	}
	return nil
}
