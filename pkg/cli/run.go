package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/wdclient/pkg/config"
	"github.com/devicelab-dev/wdclient/pkg/executor"
	"github.com/devicelab-dev/wdclient/pkg/logger"
	"github.com/devicelab-dev/wdclient/pkg/validator"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run YAML browser flows, each in its own WebDriver session",
	ArgsUsage: "<flow-file-or-folder>...",
	Description: `Run one or more flow files against the WebDriver endpoint.

Reports are generated in the output directory:
  - Default: <reports>/<timestamp>/ ("reports:" in the config, else
    <home>/reports; home is $WDCLIENT_HOME or the working directory)
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  wdclient run login.yaml
  wdclient run flows/ --include-tags smoke
  wdclient run flows/ --parallel 4 -e USER=test -e PASS=secret`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Flow variables (KEY=VALUE)",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: <home>/reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Run up to N flows concurrently in separate sessions",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining flows after the first failure",
		},
	},
	Action: runFlows,
}

func runFlows(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one flow file or folder is required")
	}

	cfg, err := loadWorkspace(c)
	if err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(c.String("output"), cfg.ReportsDir(), c.Bool("flatten"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logPath := cfg.LogFile()
	if cfg.Log.File == "" {
		logPath = filepath.Join(outputDir, "wdclient.log")
	}
	initLogging(c, cfg, logPath)
	defer logger.Close()
	logger.Debug("Output directory: %s", outputDir)

	validation := validator.New(c.StringSlice("include-tags"), c.StringSlice("exclude-tags")).Validate(c.Args().Slice()...)
	if !validation.IsValid() {
		err := fmt.Errorf("flow validation failed: %w", errors.Join(validation.Errors...))
		logger.Error("%v", err)
		return err
	}
	flows := validation.Flows
	if len(flows) == 0 {
		return fmt.Errorf("no flows matched")
	}
	logger.Info("Running %d flow(s) against %s", len(flows), cfg.EndpointOrDefault())
	for _, f := range flows {
		logger.Debug("Flow %s: %d step(s)", f.SourcePath, len(f.Steps))
	}
	for _, e := range c.StringSlice("env") {
		if !strings.Contains(e, "=") {
			logger.Warn("Ignoring --env %q: expected KEY=VALUE", e)
			fmt.Fprintf(c.App.ErrWriter, "Warning: ignoring --env %q: expected KEY=VALUE\n", e)
		}
	}

	parallel := cfg.Parallel
	if c.IsSet("parallel") {
		parallel = c.Int("parallel")
	}

	ctx, stop := signal.NotifyContext(contextOf(c), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newProgress(c.App.Writer, parallel > 1)
	runner := executor.New(runnerConfig(cfg, c, outputDir, parallel, p))

	start := time.Now()
	suite, err := runner.Run(ctx, flows)
	if err != nil {
		return err
	}

	p.summary(suite, time.Since(start))
	fmt.Fprintf(c.App.Writer, "\nReport: %s\n", filepath.Join(outputDir, "report.json"))

	if !suite.Success() {
		return fmt.Errorf("%d of %d flow(s) failed", suite.TotalFlows-suite.PassedFlows, suite.TotalFlows)
	}
	return nil
}

func runnerConfig(cfg *config.Config, c *cli.Context, outputDir string, parallel int, p *progress) executor.RunnerConfig {
	return executor.RunnerConfig{
		Endpoint:       cfg.EndpointOrDefault(),
		Capabilities:   cfg.Capabilities,
		Timeouts:       sessionTimeouts(cfg.Timeouts),
		RequestTimeout: cfg.RequestTimeout,
		Env:            mergeEnv(cfg.Env, parseEnvVars(c.StringSlice("env"))),
		OutputDir:      outputDir,
		Parallelism:    parallel,
		StopOnFail:     c.Bool("stop-on-fail"),
		OnFlowStart:    p.flowStart,
		OnStepComplete: p.stepComplete,
		OnFlowEnd:      p.flowEnd,
	}
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: <reports>/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output, reports string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = reports
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
