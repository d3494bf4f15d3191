package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/wdclient/pkg/logger"
	"github.com/devicelab-dev/wdclient/pkg/webdriver"
)

const maxStatusChecks = 8

var statusCommand = &cli.Command{
	Name:      "status",
	Usage:     "Check whether WebDriver endpoints are ready for new sessions",
	ArgsUsage: "[endpoint]...",
	Description: `Query GET /status on each endpoint concurrently. Without arguments the
configured endpoint is checked. Exits non-zero when any endpoint is not ready.

Examples:
  wdclient status
  wdclient status http://localhost:9515 http://localhost:4444`,
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout per endpoint",
			Value: 5 * time.Second,
		},
	},
	Action: runStatus,
}

type endpointStatus struct {
	Endpoint string
	Status   webdriver.Status
	Err      error
	Elapsed  time.Duration
}

func runStatus(c *cli.Context) error {
	cfg, err := loadWorkspace(c)
	if err != nil {
		return err
	}

	endpoints := c.Args().Slice()
	if len(endpoints) == 0 {
		endpoints = []string{cfg.EndpointOrDefault()}
	}

	results := checkEndpoints(c.Context, endpoints, c.Duration("timeout"))

	out := c.App.Writer
	notReady := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			notReady++
			fmt.Fprintf(out, "%s✗%s %s %s%v%s\n", color(colorRed), color(colorReset), r.Endpoint, color(colorGray), r.Err, color(colorReset))
		case !r.Status.Ready:
			notReady++
			fmt.Fprintf(out, "%s✗%s %s not ready: %s\n", color(colorYellow), color(colorReset), r.Endpoint, r.Status.Message)
		default:
			fmt.Fprintf(out, "%s✓%s %s ready %s(%s)%s %s\n", color(colorGreen), color(colorReset), r.Endpoint,
				color(colorGray), formatDuration(r.Elapsed), color(colorReset), r.Status.Message)
		}
	}

	if notReady > 0 {
		return fmt.Errorf("%d of %d endpoint(s) not ready", notReady, len(results))
	}
	return nil
}

// checkEndpoints queries every endpoint concurrently. Results keep the
// order of endpoints.
func checkEndpoints(ctx context.Context, endpoints []string, timeout time.Duration) []endpointStatus {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.L().Named("status")
	results := make([]endpointStatus, len(endpoints))

	var g errgroup.Group
	g.SetLimit(maxStatusChecks)
	for i, ep := range endpoints {
		g.Go(func() error {
			start := time.Now()
			st, err := webdriver.GetStatus(ctx, ep,
				webdriver.WithTimeout(timeout),
				webdriver.WithLogger(logger.L().Named("webdriver")))
			results[i] = endpointStatus{Endpoint: ep, Status: st, Err: err, Elapsed: time.Since(start)}
			log.Debug("status checked", zap.String("endpoint", ep), zap.Bool("ready", st.Ready), zap.Error(err))
			return nil
		})
	}
	_ = g.Wait()
	return results
}
