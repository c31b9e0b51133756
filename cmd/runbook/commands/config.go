package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/runbook/runbook/pkg/launcher"
	"github.com/runbook/runbook/pkg/telemetry"
	"github.com/runbook/runbook/pkg/transports/ssh"
)

// RuntimeConfig is the operator-facing configuration file for the runbook
// CLI. Everything has a default; a missing config file is fine.
type RuntimeConfig struct {
	// StateDir holds the state file, logs, and history database.
	StateDir string `yaml:"state_dir"`

	// LogDir overrides where per-task log artifacts land.
	LogDir string `yaml:"log_dir"`

	// HistoryDB overrides the attempt journal location. "off" disables it.
	HistoryDB string `yaml:"history_db"`

	// PolicyDir holds .rego admission policies; missing means no gate.
	PolicyDir string `yaml:"policy_dir"`

	// Launcher carries tool and transport settings.
	Launcher launcher.Config `yaml:"launcher"`

	// Telemetry carries logging, metrics, and tracing settings.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// DefaultRuntimeConfig returns the configuration used when no file is given.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		StateDir:  ".runbook",
		PolicyDir: "policies",
		Launcher: launcher.Config{
			SSH: ssh.DefaultConfig(),
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// LoadRuntimeConfig reads the config file at path, or returns defaults when
// path is empty.
func LoadRuntimeConfig(path string) (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.StateDir == "" {
		cfg.StateDir = ".runbook"
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid telemetry config: %w", err)
	}
	return cfg, nil
}

// StatePath is the location of the outcome state file.
func (c RuntimeConfig) StatePath() string {
	return filepath.Join(c.StateDir, "state.json")
}

// LogPath is the directory for per-task log artifacts.
func (c RuntimeConfig) LogPath() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(c.StateDir, "logs")
}

// HistoryPath is the attempt journal database, empty when disabled.
func (c RuntimeConfig) HistoryPath() string {
	switch c.HistoryDB {
	case "off", "disabled":
		return ""
	case "":
		return filepath.Join(c.StateDir, "history.db")
	}
	return c.HistoryDB
}
