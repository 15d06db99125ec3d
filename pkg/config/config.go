// pkg/config/config.go - configuration settings for the PV agent.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const ConfigPath = `C:\ProgramData\PVAgent\Config.yaml`

// PolicyRegistryPath holds administrator overrides pushed by group policy or MDM.
const PolicyRegistryPath = `SOFTWARE\Policies\PVAgent`

// State backends.
const (
	BackendRegistry = "registry"
	BackendBadger   = "badger"
)

// Configuration holds the configurable options for the agent in YAML format
type Configuration struct {
	DriverRoot   string `yaml:"DriverRoot"`   // Directory holding <bundle>\<arch>\<bundle>.inf
	StateBackend string `yaml:"StateBackend"` // "registry" or "badger"
	StatePath    string `yaml:"StatePath"`    // Registry key or badger directory
	LogDir       string `yaml:"LogDir"`
	LogLevel     string `yaml:"LogLevel"`
	KeepLogRuns  int    `yaml:"KeepLogRuns"`
	Debug        bool   `yaml:"Debug"`

	CleanupPasses           int  `yaml:"CleanupPasses"`
	MSIAttempts             int  `yaml:"MSIAttempts"`
	MSIRetryIntervalSeconds int  `yaml:"MSIRetryIntervalSeconds"`
	ForceDeviceRemoval      bool `yaml:"ForceDeviceRemoval"`

	RebootDelaySeconds int  `yaml:"RebootDelaySeconds"`
	SkipRebootGate     bool `yaml:"SkipRebootGate"` // Continue past the reboot gate in the same run
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	// Use ProgramW6432 environment variable to force 64-bit Program Files path
	programFiles := os.Getenv("ProgramW6432")
	if programFiles == "" {
		programFiles = `C:\Program Files`
	}
	return &Configuration{
		DriverRoot:              filepath.Join(programFiles, "PVAgent", "Drivers"),
		StateBackend:            BackendRegistry,
		StatePath:               `SOFTWARE\PVAgent\State`,
		LogDir:                  `C:\ProgramData\PVAgent\logs`,
		LogLevel:                "INFO",
		KeepLogRuns:             10,
		CleanupPasses:           2,
		MSIAttempts:             5,
		MSIRetryIntervalSeconds: 10,
		RebootDelaySeconds:      30,
	}
}

// LoadConfig reads the YAML file at path on top of the defaults and then
// applies any policy overrides. A missing file is not an error.
func LoadConfig(path string) (*Configuration, error) {
	if path == "" {
		path = ConfigPath
	}
	cfg := GetDefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading configuration file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing configuration file %s: %w", path, err)
		}
	}

	if err := applyPolicy(cfg); err != nil {
		return nil, fmt.Errorf("applying policy overrides: %w", err)
	}
	if cfg.StateBackend == BackendBadger && cfg.StatePath == GetDefaultConfig().StatePath {
		cfg.StatePath = `C:\ProgramData\PVAgent\state`
	}
	return cfg, cfg.Validate()
}

// SaveConfig writes cfg as YAML to path, creating the parent directory.
func SaveConfig(cfg *Configuration, path string) error {
	if path == "" {
		path = ConfigPath
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serializing configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating configuration directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the agent cannot run with.
func (c *Configuration) Validate() error {
	var problems []string
	if c.CleanupPasses < 1 {
		problems = append(problems, fmt.Sprintf("CleanupPasses must be at least 1 (got %d)", c.CleanupPasses))
	}
	if c.MSIAttempts < 1 {
		problems = append(problems, fmt.Sprintf("MSIAttempts must be at least 1 (got %d)", c.MSIAttempts))
	}
	if c.MSIRetryIntervalSeconds < 0 {
		problems = append(problems, "MSIRetryIntervalSeconds must not be negative")
	}
	if c.RebootDelaySeconds < 0 {
		problems = append(problems, "RebootDelaySeconds must not be negative")
	}
	switch c.StateBackend {
	case BackendRegistry, BackendBadger:
	default:
		problems = append(problems, fmt.Sprintf("unknown StateBackend %q", c.StateBackend))
	}
	if strings.TrimSpace(c.StatePath) == "" {
		problems = append(problems, "StatePath is empty")
	}
	if strings.TrimSpace(c.DriverRoot) == "" {
		problems = append(problems, "DriverRoot is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
