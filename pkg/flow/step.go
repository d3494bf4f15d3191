package flow

import (
	"fmt"
	"strconv"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Navigation
	StepGoto    StepType = "goto"
	StepBack    StepType = "back"
	StepForward StepType = "forward"
	StepRefresh StepType = "refresh"

	// Interaction
	StepClick     StepType = "click"
	StepInputText StepType = "inputText"
	StepExecute   StepType = "execute"
	StepWaitFor   StepType = "waitFor"

	// Assertions
	StepAssertVisible    StepType = "assertVisible"
	StepAssertNotVisible StepType = "assertNotVisible"
	StepAssertText       StepType = "assertText"

	// Windows and frames
	StepNewWindow        StepType = "newWindow"
	StepSwitchToWindow   StepType = "switchToWindow"
	StepCloseWindow      StepType = "closeWindow"
	StepEnterFrame       StepType = "enterFrame"
	StepEnterParentFrame StepType = "enterParentFrame"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Timeout() int
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Timeout returns the step timeout in milliseconds, 0 when unset.
func (b *BaseStep) Timeout() int { return b.TimeoutMs }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// ============================================
// Navigation
// ============================================

// GotoStep navigates the current window to URL.
type GotoStep struct {
	BaseStep `yaml:",inline"`
	URL      string `yaml:"url"`
}

// Describe returns a human-readable description.
func (s *GotoStep) Describe() string { return "goto " + s.URL }

// BackStep navigates back in history.
type BackStep struct {
	BaseStep `yaml:",inline"`
}

// ForwardStep navigates forward in history.
type ForwardStep struct {
	BaseStep `yaml:",inline"`
}

// RefreshStep reloads the page.
type RefreshStep struct {
	BaseStep `yaml:",inline"`
}

// ============================================
// Interaction
// ============================================

// ClickStep clicks an element.
type ClickStep struct {
	BaseStep `yaml:",inline"`
	Selector `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *ClickStep) Describe() string { return "click " + s.Selector.Describe() }

// InputTextStep types text into an element, or into the focused element when
// no selector is given.
type InputTextStep struct {
	BaseStep `yaml:",inline"`
	Selector `yaml:",inline"`
	Text     string `yaml:"text"`
	Clear    bool   `yaml:"clear"` // clear the field first
}

// Describe returns a human-readable description.
func (s *InputTextStep) Describe() string {
	if s.Selector.IsEmpty() {
		return fmt.Sprintf("inputText %q", s.Text)
	}
	return fmt.Sprintf("inputText %q into %s", s.Text, s.Selector.Describe())
}

// ExecuteStep runs a script in the current browsing context. When Output is
// set the result is stored in that flow variable.
type ExecuteStep struct {
	BaseStep `yaml:",inline"`
	Script   string        `yaml:"script"`
	Args     []interface{} `yaml:"args"`
	Async    bool          `yaml:"async"`
	Output   string        `yaml:"output"`
}

// Describe returns a human-readable description.
func (s *ExecuteStep) Describe() string {
	script := s.Script
	if len(script) > 40 {
		script = script[:40] + "..."
	}
	return "execute " + strconv.Quote(script)
}

// WaitForStep polls until an element matches. The base timeout bounds the wait.
type WaitForStep struct {
	BaseStep   `yaml:",inline"`
	Selector   `yaml:",inline"`
	IntervalMs int `yaml:"interval"`
}

// Describe returns a human-readable description.
func (s *WaitForStep) Describe() string { return "waitFor " + s.Selector.Describe() }

// ============================================
// Assertions
// ============================================

// AssertVisibleStep asserts an element exists and is displayed.
type AssertVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *AssertVisibleStep) Describe() string { return "assertVisible " + s.Selector.Describe() }

// AssertNotVisibleStep asserts no displayed element matches.
type AssertNotVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *AssertNotVisibleStep) Describe() string {
	return "assertNotVisible " + s.Selector.Describe()
}

// AssertTextStep asserts an element's text. Equals and Contains may be
// combined; at least one is required.
type AssertTextStep struct {
	BaseStep `yaml:",inline"`
	Selector `yaml:",inline"`
	Equals   *string `yaml:"equals"`
	Contains string  `yaml:"contains"`
}

// Describe returns a human-readable description.
func (s *AssertTextStep) Describe() string {
	if s.Equals != nil {
		return fmt.Sprintf("assertText %s == %q", s.Selector.Describe(), *s.Equals)
	}
	return fmt.Sprintf("assertText %s contains %q", s.Selector.Describe(), s.Contains)
}

// ============================================
// Windows and frames
// ============================================

// NewWindowStep opens a window or tab. It switches to it only when Switch is set.
type NewWindowStep struct {
	BaseStep `yaml:",inline"`
	Tab      bool `yaml:"tab"`
	Switch   bool `yaml:"switch"`
}

// SwitchToWindowStep selects a window by handle or by its index in the
// driver's handle list.
type SwitchToWindowStep struct {
	BaseStep `yaml:",inline"`
	Handle   string `yaml:"handle"`
	Index    *int   `yaml:"index"`
}

// Describe returns a human-readable description.
func (s *SwitchToWindowStep) Describe() string {
	if s.Index != nil {
		return fmt.Sprintf("switchToWindow #%d", *s.Index)
	}
	return "switchToWindow " + s.Handle
}

// CloseWindowStep closes the current window.
type CloseWindowStep struct {
	BaseStep `yaml:",inline"`
}

// EnterFrameStep switches into a child frame, found by selector or by index.
type EnterFrameStep struct {
	BaseStep `yaml:",inline"`
	Selector `yaml:",inline"`
	Index    *int `yaml:"index"`
}

// Describe returns a human-readable description.
func (s *EnterFrameStep) Describe() string {
	if s.Index != nil {
		return fmt.Sprintf("enterFrame #%d", *s.Index)
	}
	return "enterFrame " + s.Selector.Describe()
}

// EnterParentFrameStep switches to the parent frame.
type EnterParentFrameStep struct {
	BaseStep `yaml:",inline"`
}
