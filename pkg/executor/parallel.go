package executor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/wdclient/pkg/flow"
)

// parallel runs flows in independent sessions, at most Parallelism at a
// time. Flows are started in file order; results keep that order.
func (s *suiteRun) parallel(ctx context.Context, flows []*flow.Flow) {
	var g errgroup.Group
	g.SetLimit(s.runner.config.Parallelism)

	for i, f := range flows {
		g.Go(func() error {
			// Each goroutine owns slot i of the results.
			s.suite.Flows[i] = s.executeFlow(ctx, i, f)
			return nil
		})
	}
	_ = g.Wait()
}
