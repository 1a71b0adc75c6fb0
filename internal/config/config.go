// Package config holds the server configuration and its file loader.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/simulation"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// ServerConfig holds configuration for the scheduler server.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`                 // Client listen address (default "127.0.0.1:65432")
	AdminAddr      string        `yaml:"admin_addr"`           // Operator HTTP API address; empty disables it
	LogLevel       string        `yaml:"log_level"`            // Log level: debug, info, warn, error
	LogFormat      string        `yaml:"log_format"`           // Log format: text, json
	LogFile        string        `yaml:"log_file"`             // Optional file that receives a copy of the log
	DBPath         string        `yaml:"db_path"`              // SQLite history path; empty disables history, ":memory:" for testing
	TextDir        string        `yaml:"text_dir"`             // Pool of *.txt files handed out on trigger
	WriteTimeout   time.Duration `yaml:"write_timeout"`        // Per-frame write deadline for client connections
	Console        bool          `yaml:"console"`              // Read operator commands from stdin
	ProcessCommand []string      `yaml:"process_command"`      // Child command for process mode; defaults to this binary
	MaxSimTicks    int           `yaml:"max_simulation_ticks"` // Longest run accepted by POST /simulations

	// Defaults applied to new sessions before they send SET_CONFIG.
	DefaultSession model.SessionConfig `yaml:"default_session"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           "127.0.0.1:65432",
		AdminAddr:      "127.0.0.1:8080",
		LogLevel:       "info",
		LogFormat:      "text",
		LogFile:        "server_processing.log",
		TextDir:        "text_files",
		WriteTimeout:   10 * time.Second,
		Console:        true,
		MaxSimTicks:    simulation.DefaultMaxTicks,
		DefaultSession: model.DefaultSessionConfig(),
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file keep
// their default values.
func Load(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c ServerConfig) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, &model.ConfigError{Field: "addr", Message: "listen address is required"})
	}
	if c.TextDir == "" {
		errs = append(errs, &model.ConfigError{Field: "text_dir", Message: "text directory is required"})
	}
	if c.MaxSimTicks < 1 {
		errs = append(errs, &model.ConfigError{Field: "max_simulation_ticks", Message: "must be >= 1"})
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, &model.ConfigError{Field: "write_timeout", Message: "must not be negative"})
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, &model.ConfigError{Field: "log_format", Message: fmt.Sprintf("unknown format %q", c.LogFormat)})
	}
	if err := c.DefaultSession.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("default_session: %w", err))
	}
	return errors.Join(errs...)
}
