// Package cli provides the command-line interface for wdclient.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "endpoint",
		Aliases: []string{"u"},
		Usage:   "WebDriver endpoint URL (default: config file or " + defaultEndpointHint + ")",
		EnvVars: []string{"WEBDRIVER_URL"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to wdclient.yaml (default: ./wdclient.yaml if present)",
		EnvVars: []string{"WDCLIENT_CONFIG"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable debug logging",
		EnvVars: []string{"WDCLIENT_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "wdclient",
		Usage:   "Drive browsers through a W3C WebDriver endpoint",
		Version: Version,
		Description: `wdclient talks to any W3C WebDriver endpoint (chromedriver,
geckodriver, Selenium Grid) and runs YAML browser flows.

Examples:
  wdclient status
  wdclient --endpoint http://localhost:9515 run login.yaml
  wdclient run flows/ --parallel 4 -e USER=test`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			statusCommand,
			runCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
