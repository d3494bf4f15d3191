package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/wdclient/pkg/core"
	"github.com/devicelab-dev/wdclient/pkg/flow"
	"github.com/devicelab-dev/wdclient/pkg/logger"
	"github.com/devicelab-dev/wdclient/pkg/webdriver"
)

// FlowRunnerConfig configures a FlowRunner.
type FlowRunnerConfig struct {
	RunID          string
	Env            map[string]string // Base variables, overridden by the flow's env
	Logger         *zap.Logger
	OnStepComplete func(core.StepResult)
}

// FlowRunner executes the steps of one flow in an existing session.
type FlowRunner struct {
	client *webdriver.Client
	flow   *flow.Flow
	vars   *variables
	config FlowRunnerConfig
	logger *zap.Logger
}

// NewFlowRunner creates a runner for f on client.
func NewFlowRunner(client *webdriver.Client, f *flow.Flow, cfg FlowRunnerConfig) *FlowRunner {
	log := cfg.Logger
	if log == nil {
		log = logger.L().Named("executor")
	}
	vars := newVariables()
	vars.setAll(cfg.Env)
	vars.setAll(f.Config.Env)

	return &FlowRunner{
		client: client,
		flow:   f,
		vars:   vars,
		config: cfg,
		logger: log.With(zap.String("session_id", client.Session().ID())),
	}
}

// Run executes the flow. The first failing step that is not optional stops
// the flow; the steps after it are skipped. Failing optional steps are
// recorded as warned.
func (fr *FlowRunner) Run(ctx context.Context) (result core.FlowResult) {
	result = newFlowResult(fr.config.RunID, fr.flow)
	result.SessionID = fr.client.Session().ID()
	result.StartTime = time.Now()

	defer func() {
		result.Duration = time.Since(result.StartTime)
		result.ComputeSummary()
		fr.logger.Info("flow finished",
			zap.Stringer("status", result.Status),
			zap.Duration("duration", result.Duration))
	}()

	if u := fr.flow.Config.URL; u != "" {
		if err := fr.client.Goto(ctx, fr.vars.expand(u)); err != nil {
			result.Status = core.StatusErrored
			result.Error = "open flow url: " + err.Error()
			result.Steps = skippedSteps(fr.flow.Steps, 0)
			return result
		}
	}

	for i, step := range fr.flow.Steps {
		if err := ctx.Err(); err != nil {
			result.Steps = append(result.Steps, skippedSteps(fr.flow.Steps[i:], i)...)
			if result.Error == "" {
				result.Error = "flow interrupted: " + err.Error()
			}
			break
		}

		sr := fr.runStep(ctx, i, step)
		result.Steps = append(result.Steps, sr)
		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(sr)
		}

		if sr.Status == core.StatusFailed || sr.Status == core.StatusErrored {
			result.Error = sr.Error
			result.Steps = append(result.Steps, skippedSteps(fr.flow.Steps[i+1:], i+1)...)
			break
		}
	}

	result.Status = result.AggregateStatus()
	if result.Status.IsSuccess() && result.Error != "" {
		// Interrupted before all steps ran.
		result.Status = core.StatusErrored
	}
	return result
}

func (fr *FlowRunner) runStep(ctx context.Context, i int, step flow.Step) core.StepResult {
	sr := core.StepResult{
		Index:       i,
		Command:     string(step.Type()),
		Description: step.Describe(),
		Label:       step.Label(),
		Optional:    step.IsOptional(),
		StartTime:   time.Now(),
	}

	output, err := fr.executeStep(ctx, step)
	sr.Duration = time.Since(sr.StartTime)
	sr.Context = fr.client.Session().Context().String()
	sr.Output = output

	switch {
	case err == nil:
		sr.Status = core.StatusPassed
	case step.IsOptional():
		sr.Status = core.StatusWarned
	default:
		sr.Status = core.StatusFor(err)
	}
	if err != nil {
		sr.Error = err.Error()
		sr.Category = core.Categorize(err)
	}

	fields := []zap.Field{
		zap.Int("step", i),
		zap.String("command", sr.Command),
		zap.Stringer("status", sr.Status),
		zap.Duration("duration", sr.Duration),
	}
	if err != nil {
		fr.logger.Warn(sr.Description, append(fields, zap.Error(err))...)
	} else {
		fr.logger.Debug(sr.Description, fields...)
	}
	return sr
}

// stepContext bounds a step by its timeout, when set.
func stepContext(ctx context.Context, step flow.Step) (context.Context, context.CancelFunc) {
	if ms := step.Timeout(); ms > 0 {
		return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
	}
	return ctx, func() {}
}

func skippedSteps(steps []flow.Step, offset int) []core.StepResult {
	out := make([]core.StepResult, 0, len(steps))
	for i, step := range steps {
		out = append(out, core.StepResult{
			Index:       offset + i,
			Command:     string(step.Type()),
			Description: step.Describe(),
			Label:       step.Label(),
			Optional:    step.IsOptional(),
			Status:      core.StatusSkipped,
		})
	}
	return out
}
