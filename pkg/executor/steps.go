package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/wdclient/pkg/core"
	"github.com/devicelab-dev/wdclient/pkg/flow"
	"github.com/devicelab-dev/wdclient/pkg/webdriver"
)

const (
	defaultWaitTimeout  = 10 * time.Second
	defaultWaitInterval = 100 * time.Millisecond
)

// executeStep dispatches a step to its handler. The returned value, if any,
// is recorded as the step output.
func (fr *FlowRunner) executeStep(ctx context.Context, step flow.Step) (interface{}, error) {
	if _, ok := step.(*flow.WaitForStep); !ok {
		var cancel context.CancelFunc
		ctx, cancel = stepContext(ctx, step)
		defer cancel()
	}

	c := fr.client
	switch s := step.(type) {
	// Navigation
	case *flow.GotoStep:
		return nil, fr.gotoURL(ctx, s)
	case *flow.BackStep:
		return nil, c.Back(ctx)
	case *flow.ForwardStep:
		return nil, c.Forward(ctx)
	case *flow.RefreshStep:
		return nil, c.Refresh(ctx)

	// Interaction
	case *flow.ClickStep:
		return nil, fr.click(ctx, s)
	case *flow.InputTextStep:
		return nil, fr.inputText(ctx, s)
	case *flow.ExecuteStep:
		return fr.execute(ctx, s)
	case *flow.WaitForStep:
		return nil, fr.waitFor(ctx, s)

	// Assertions
	case *flow.AssertVisibleStep:
		return nil, fr.assertVisible(ctx, s)
	case *flow.AssertNotVisibleStep:
		return nil, fr.assertNotVisible(ctx, s)
	case *flow.AssertTextStep:
		return fr.assertText(ctx, s)

	// Windows and frames
	case *flow.NewWindowStep:
		return fr.newWindow(ctx, s)
	case *flow.SwitchToWindowStep:
		return fr.switchToWindow(ctx, s)
	case *flow.CloseWindowStep:
		return c.CloseWindow(ctx)
	case *flow.EnterFrameStep:
		return nil, fr.enterFrame(ctx, s)
	case *flow.EnterParentFrameStep:
		return nil, c.EnterParentFrame(ctx)
	}
	return nil, core.ErrUnsupportedStep.WithMessage(fmt.Sprintf("step %q is not supported", step.Type()))
}

func (fr *FlowRunner) gotoURL(ctx context.Context, s *flow.GotoStep) error {
	u, err := resolveURL(fr.vars.expand(fr.flow.Config.URL), fr.vars.expand(s.URL))
	if err != nil {
		return core.ErrInvalidStep.WithMessage(err.Error())
	}
	return fr.client.Goto(ctx, u)
}

func (fr *FlowRunner) find(ctx context.Context, sel flow.Selector) (*webdriver.Element, error) {
	loc, err := locatorFor(sel, fr.vars)
	if err != nil {
		return nil, core.ErrInvalidStep.WithMessage(err.Error())
	}
	return fr.client.Find(ctx, loc)
}

func (fr *FlowRunner) click(ctx context.Context, s *flow.ClickStep) error {
	el, err := fr.find(ctx, s.Selector)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

func (fr *FlowRunner) inputText(ctx context.Context, s *flow.InputTextStep) error {
	var (
		el  *webdriver.Element
		err error
	)
	if s.Selector.IsEmpty() {
		el, err = fr.client.ActiveElement(ctx)
	} else {
		el, err = fr.find(ctx, s.Selector)
	}
	if err != nil {
		return err
	}
	if s.Clear {
		if err := el.Clear(ctx); err != nil {
			return err
		}
	}
	return el.SendKeys(ctx, fr.vars.expand(s.Text))
}

func (fr *FlowRunner) execute(ctx context.Context, s *flow.ExecuteStep) (interface{}, error) {
	args := fr.vars.expandArgs(s.Args)
	run := fr.client.Execute
	if s.Async {
		run = fr.client.ExecuteAsync
	}
	raw, err := run(ctx, s.Script, args...)
	if err != nil {
		return nil, err
	}
	value, str := decodeScriptResult(raw)
	if s.Output != "" {
		fr.vars.set(s.Output, str)
	}
	return value, nil
}

// waitFor polls until the selector matches. The step timeout bounds the
// wait; without one the default applies.
func (fr *FlowRunner) waitFor(ctx context.Context, s *flow.WaitForStep) error {
	loc, err := locatorFor(s.Selector, fr.vars)
	if err != nil {
		return core.ErrInvalidStep.WithMessage(err.Error())
	}
	timeout := defaultWaitTimeout
	if s.TimeoutMs > 0 {
		timeout = time.Duration(s.TimeoutMs) * time.Millisecond
	}
	interval := defaultWaitInterval
	if s.IntervalMs > 0 {
		interval = time.Duration(s.IntervalMs) * time.Millisecond
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err = fr.client.WaitFor(waitCtx, loc, interval)
	if err != nil && ctx.Err() == nil && (errors.Is(err, webdriver.ErrNoSuchElement) || waitCtx.Err() != nil) {
		return core.ErrWaitTimeout.WithMessage(fmt.Sprintf("%s not found within %s", loc, timeout)).WithCause(err)
	}
	return err
}

func (fr *FlowRunner) assertVisible(ctx context.Context, s *flow.AssertVisibleStep) error {
	el, err := fr.find(ctx, s.Selector)
	if errors.Is(err, webdriver.ErrNoSuchElement) {
		return core.ErrElementNotVisible.WithMessage(s.Selector.Describe() + " not found").WithCause(err)
	}
	if err != nil {
		return err
	}
	shown, err := el.IsDisplayed(ctx)
	if err != nil {
		return err
	}
	if !shown {
		return core.ErrElementNotVisible.WithMessage(s.Selector.Describe() + " is not displayed")
	}
	return nil
}

func (fr *FlowRunner) assertNotVisible(ctx context.Context, s *flow.AssertNotVisibleStep) error {
	loc, err := locatorFor(s.Selector, fr.vars)
	if err != nil {
		return core.ErrInvalidStep.WithMessage(err.Error())
	}
	elems, err := fr.client.FindAll(ctx, loc)
	if err != nil {
		return err
	}
	for _, el := range elems {
		shown, err := el.IsDisplayed(ctx)
		if err != nil {
			return err
		}
		if shown {
			return core.ErrElementVisible.WithMessage(s.Selector.Describe() + " is displayed")
		}
	}
	return nil
}

func (fr *FlowRunner) assertText(ctx context.Context, s *flow.AssertTextStep) (interface{}, error) {
	el, err := fr.find(ctx, s.Selector)
	if err != nil {
		return nil, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return nil, err
	}
	if s.Equals != nil {
		if want := fr.vars.expand(*s.Equals); text != want {
			return text, core.ErrTextMismatch.WithMessage(fmt.Sprintf("text is %q, want %q", text, want))
		}
	}
	if s.Contains != "" {
		if want := fr.vars.expand(s.Contains); !strings.Contains(text, want) {
			return text, core.ErrTextMismatch.WithMessage(fmt.Sprintf("text %q does not contain %q", text, want))
		}
	}
	return text, nil
}

func (fr *FlowRunner) newWindow(ctx context.Context, s *flow.NewWindowStep) (interface{}, error) {
	resp, err := fr.client.NewWindow(ctx, s.Tab)
	if err != nil {
		return nil, err
	}
	if s.Switch {
		if err := fr.client.SwitchToWindow(ctx, resp.Handle); err != nil {
			return nil, err
		}
	}
	return resp.Handle, nil
}

func (fr *FlowRunner) switchToWindow(ctx context.Context, s *flow.SwitchToWindowStep) (interface{}, error) {
	handle := fr.vars.expand(s.Handle)
	if s.Index != nil {
		handles, err := fr.client.Windows(ctx)
		if err != nil {
			return nil, err
		}
		if *s.Index < 0 || *s.Index >= len(handles) {
			return nil, core.ErrNoSuchWindowIndex.WithMessage(
				fmt.Sprintf("window index %d out of range, %d windows open", *s.Index, len(handles)))
		}
		handle = handles[*s.Index]
	}
	if err := fr.client.SwitchToWindow(ctx, handle); err != nil {
		return nil, err
	}
	return handle, nil
}

func (fr *FlowRunner) enterFrame(ctx context.Context, s *flow.EnterFrameStep) error {
	if s.Index != nil {
		return fr.client.EnterFrame(ctx, s.Index)
	}
	el, err := fr.find(ctx, s.Selector)
	if err != nil {
		return err
	}
	return el.EnterFrame(ctx)
}
