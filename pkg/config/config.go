// Package config handles configuration for wdclient.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the driver address used when none is configured.
const DefaultEndpoint = "http://localhost:4444"

// Config represents the workspace configuration (wdclient.yaml).
type Config struct {
	// Driver connection
	Endpoint       string                 `yaml:"endpoint"`       // WebDriver base URL
	Capabilities   map[string]interface{} `yaml:"capabilities"`   // alwaysMatch capabilities
	RequestTimeout time.Duration          `yaml:"requestTimeout"` // per HTTP round trip, 0 = none

	// Session timeouts applied after the session starts
	Timeouts Timeouts `yaml:"timeouts"`

	// Execution settings
	Env      map[string]string `yaml:"env"`      // Variables substituted into flows
	Parallel int               `yaml:"parallel"` // Concurrent sessions for `run`
	Reports  string            `yaml:"reports"`  // Base directory for run reports

	Log Log `yaml:"log"`
}

// Timeouts are W3C session timeouts. Nil fields keep the driver defaults.
type Timeouts struct {
	Script   *time.Duration `yaml:"script"`
	PageLoad *time.Duration `yaml:"pageLoad"`
	Implicit *time.Duration `yaml:"implicit"`
}

// Log configures the log file.
type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"` // default: wdclient.log in the run's report directory
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// LoadFromDir looks for wdclient.yaml or wdclient.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try wdclient.yaml first
	configPath := filepath.Join(dir, "wdclient.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try wdclient.yml
	configPath = filepath.Join(dir, "wdclient.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}

// Validate checks values that would otherwise fail late, at connect time.
func (c *Config) Validate() error {
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("endpoint %q is not an absolute URL", c.Endpoint)
		}
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must not be negative")
	}
	if c.Parallel < 0 {
		return fmt.Errorf("parallel must not be negative")
	}
	for name, d := range map[string]*time.Duration{
		"script":   c.Timeouts.Script,
		"pageLoad": c.Timeouts.PageLoad,
		"implicit": c.Timeouts.Implicit,
	} {
		if d != nil && *d < 0 {
			return fmt.Errorf("timeouts.%s must not be negative", name)
		}
	}
	return nil
}

// EndpointOrDefault returns the configured endpoint or DefaultEndpoint.
func (c *Config) EndpointOrDefault() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// ReportsDir returns the base directory for run reports.
func (c *Config) ReportsDir() string {
	if c.Reports != "" {
		return c.Reports
	}
	return GetReportsDir()
}

// LogFile returns the configured log path or the default under the home dir.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(GetLogsDir(), "wdclient.log")
}
