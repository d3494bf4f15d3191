package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/wdclient/pkg/config"
	"github.com/devicelab-dev/wdclient/pkg/logger"
	"github.com/devicelab-dev/wdclient/pkg/webdriver"
)

const defaultEndpointHint = config.DefaultEndpoint

// loadWorkspace loads the config named by --config, or wdclient.yaml from
// the working directory, and applies the --endpoint override.
func loadWorkspace(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if ep := c.String("endpoint"); ep != "" {
		cfg.Endpoint = ep
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// initLogging opens the rotated log file. Failure is reported but not fatal.
func initLogging(c *cli.Context, cfg *config.Config, path string) {
	opts := logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	if c.Bool("verbose") {
		opts.Level = "debug"
	}
	if err := logger.Init(path, opts); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: Failed to initialize logger: %v\n", err)
	}
}

// sessionTimeouts converts configured durations to W3C milliseconds.
func sessionTimeouts(t config.Timeouts) webdriver.Timeouts {
	ms := func(d *time.Duration) *int64 {
		if d == nil {
			return nil
		}
		v := d.Milliseconds()
		return &v
	}
	return webdriver.Timeouts{
		Script:   ms(t.Script),
		PageLoad: ms(t.PageLoad),
		Implicit: ms(t.Implicit),
	}
}

// parseEnvVars parses KEY=VALUE pairs; entries without "=" are ignored.
func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// mergeEnv returns base overridden by override.
func mergeEnv(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
