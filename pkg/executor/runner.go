// Package executor runs flows against WebDriver sessions and reports results.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devicelab-dev/wdclient/pkg/core"
	"github.com/devicelab-dev/wdclient/pkg/flow"
	"github.com/devicelab-dev/wdclient/pkg/logger"
	"github.com/devicelab-dev/wdclient/pkg/report"
	"github.com/devicelab-dev/wdclient/pkg/webdriver"
)

const closeTimeout = 10 * time.Second

// RunnerConfig configures the flow runner.
type RunnerConfig struct {
	Endpoint       string                 // WebDriver endpoint URL
	Capabilities   map[string]interface{} // Base capabilities; flow capabilities override keys
	Timeouts       webdriver.Timeouts     // Applied to every session when any field is set
	RequestTimeout time.Duration          // Per-request bound, 0 = none
	HTTPClient     *http.Client           // Optional transport
	Env            map[string]string      // Variables for ${NAME} expansion

	OutputDir   string // Report directory, "" disables report files
	Parallelism int    // Max concurrent sessions (<= 1 = sequential)
	StopOnFail  bool   // Skip flows not yet started after the first failure

	// Live progress callbacks. With Parallelism > 1 they are called from
	// several goroutines.
	OnFlowStart    func(flowIdx, totalFlows int, name, file string)
	OnStepComplete func(flowIdx int, step core.StepResult)
	OnFlowEnd      func(flowIdx int, result core.FlowResult)
}

// Runner orchestrates flow execution. Every flow runs in its own session.
type Runner struct {
	config RunnerConfig
	logger *zap.Logger
}

// New creates a new Runner.
func New(cfg RunnerConfig) *Runner {
	return &Runner{
		config: cfg,
		logger: logger.L().Named("executor"),
	}
}

// Run executes all flows and returns the suite result. The error is non-nil
// only when the run could not start; flow failures are reported in the result.
func (r *Runner) Run(ctx context.Context, flows []*flow.Flow) (*core.SuiteResult, error) {
	suite := &core.SuiteResult{
		RunID:     uuid.NewString(),
		Endpoint:  r.config.Endpoint,
		StartTime: time.Now(),
		Flows:     make([]core.FlowResult, len(flows)),
	}
	log := r.logger.With(zap.String("run_id", suite.RunID))

	var writer *report.Writer
	if r.config.OutputDir != "" {
		w, err := report.NewWriter(r.config.OutputDir, suite.RunID, r.config.Endpoint, flows)
		if err != nil {
			return nil, err
		}
		writer = w
	}

	log.Info("run started", zap.Int("flows", len(flows)), zap.Int("parallel", r.config.Parallelism))

	run := &suiteRun{runner: r, suite: suite, writer: writer, log: log, total: len(flows)}
	if r.config.Parallelism > 1 {
		run.parallel(ctx, flows)
	} else {
		run.sequential(ctx, flows)
	}

	suite.Duration = time.Since(suite.StartTime)
	suite.ComputeSummary()
	if writer != nil {
		if err := writer.End(); err != nil {
			log.Warn("finalize report", zap.Error(err))
		}
	}
	log.Info("run finished",
		zap.Int("passed", suite.PassedFlows),
		zap.Int("failed", suite.FailedFlows),
		zap.Int("skipped", suite.SkippedFlows),
		zap.Duration("duration", suite.Duration))
	return suite, nil
}

// suiteRun holds the state shared by the flows of one Run call.
type suiteRun struct {
	runner  *Runner
	suite   *core.SuiteResult
	writer  *report.Writer
	log     *zap.Logger
	total   int
	stopped atomic.Bool
}

func (s *suiteRun) sequential(ctx context.Context, flows []*flow.Flow) {
	for i, f := range flows {
		s.suite.Flows[i] = s.executeFlow(ctx, i, f)
	}
}

// executeFlow runs flow i, or records it as skipped when the run was
// cancelled or stopped.
func (s *suiteRun) executeFlow(ctx context.Context, i int, f *flow.Flow) core.FlowResult {
	var result core.FlowResult
	switch {
	case ctx.Err() != nil:
		result = skippedFlow(s.suite.RunID, f, "run cancelled")
	case s.stopped.Load():
		result = skippedFlow(s.suite.RunID, f, "run stopped after failure")
	default:
		result = s.runFlow(ctx, i, f)
		if !result.Status.IsSuccess() && s.runner.config.StopOnFail {
			s.stopped.Store(true)
		}
	}

	if s.writer != nil {
		if err := s.writer.FlowFinished(i, result); err != nil {
			s.log.Warn("write flow report", zap.Int("flow", i), zap.Error(err))
		}
	}
	if cb := s.runner.config.OnFlowEnd; cb != nil {
		cb(i, result)
	}
	return result
}

// runFlow opens a session, runs the steps and closes the session.
func (s *suiteRun) runFlow(ctx context.Context, i int, f *flow.Flow) core.FlowResult {
	cfg := s.runner.config
	name := flowName(f)
	log := s.log.With(zap.String("flow", name))

	if cb := cfg.OnFlowStart; cb != nil {
		cb(i, s.total, name, filepath.Base(f.SourcePath))
	}

	if f.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(f.Config.Timeout)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	client, err := s.connect(ctx, f, log)
	if err != nil {
		log.Error("session not started", zap.Error(err))
		result := newFlowResult(s.suite.RunID, f)
		result.StartTime = start
		result.Duration = time.Since(start)
		result.Status = core.StatusErrored
		result.Error = fmt.Sprintf("start session: %v", err)
		result.Steps = skippedSteps(f.Steps, 0)
		result.ComputeSummary()
		return result
	}
	defer s.closeSession(ctx, client, log)

	if s.writer != nil {
		if err := s.writer.FlowStarted(i, client.Session().ID()); err != nil {
			log.Warn("write report index", zap.Error(err))
		}
	}

	fr := NewFlowRunner(client, f, FlowRunnerConfig{
		RunID:  s.suite.RunID,
		Env:    cfg.Env,
		Logger: log,
		OnStepComplete: func(step core.StepResult) {
			if cb := cfg.OnStepComplete; cb != nil {
				cb(i, step)
			}
		},
	})
	return fr.Run(ctx)
}

func (s *suiteRun) connect(ctx context.Context, f *flow.Flow, log *zap.Logger) (*webdriver.Client, error) {
	cfg := s.runner.config

	caps := webdriver.Capabilities{}
	for k, v := range cfg.Capabilities {
		caps[k] = v
	}
	for k, v := range f.Config.Capabilities {
		caps[k] = v
	}

	opts := []webdriver.Option{
		webdriver.WithLogger(logger.L().Named("webdriver")),
		webdriver.WithTimeout(cfg.RequestTimeout),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, webdriver.WithHTTPClient(cfg.HTTPClient))
	}

	client, err := webdriver.Connect(ctx, cfg.Endpoint, caps, opts...)
	if err != nil {
		return nil, err
	}
	log.Info("session started", zap.String("session_id", client.Session().ID()))

	t := cfg.Timeouts
	if t.Script != nil || t.PageLoad != nil || t.Implicit != nil {
		if err := client.SetTimeouts(ctx, t); err != nil {
			s.closeSession(ctx, client, log)
			return nil, fmt.Errorf("set timeouts: %w", err)
		}
	}
	return client, nil
}

// closeSession deletes the session unless a step already ended it. It runs
// even when ctx is done so sessions are not leaked on the driver.
func (s *suiteRun) closeSession(ctx context.Context, client *webdriver.Client, log *zap.Logger) {
	if client.Session().IsClosed() {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := client.Close(closeCtx); err != nil && !errors.Is(err, webdriver.ErrInvalidSessionID) {
		log.Warn("close session", zap.Error(err))
	}
}

func flowName(f *flow.Flow) string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	return filepath.Base(f.SourcePath)
}

func newFlowResult(runID string, f *flow.Flow) core.FlowResult {
	return core.FlowResult{
		RunID:    runID,
		Name:     flowName(f),
		FilePath: f.SourcePath,
		Tags:     f.Config.Tags,
	}
}

func skippedFlow(runID string, f *flow.Flow, reason string) core.FlowResult {
	result := newFlowResult(runID, f)
	result.StartTime = time.Now()
	result.Status = core.StatusSkipped
	result.Error = reason
	result.Steps = skippedSteps(f.Steps, 0)
	result.ComputeSummary()
	return result
}
