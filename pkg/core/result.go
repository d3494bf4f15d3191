// Package core provides the execution model types for flow runs.
package core

import (
	"time"
)

// StepResult captures the outcome of executing a single step.
type StepResult struct {
	Index       int           `json:"index"`   // 0-based position in flow
	Command     string        `json:"command"` // Step type: click, assertText, etc.
	Description string        `json:"description"`
	Label       string        `json:"label,omitempty"`
	Optional    bool          `json:"optional,omitempty"`
	Status      StepStatus    `json:"status"`
	Category    ErrorCategory `json:"errorCategory,omitempty"`
	StartTime   time.Time     `json:"startTime"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`

	// Browsing context the step finished in, e.g. "<window>/index:0".
	Context string `json:"context,omitempty"`
	// Value produced by the step, such as a script result.
	Output interface{} `json:"output,omitempty"`
}

// FlowResult captures the outcome of executing a flow in one session.
type FlowResult struct {
	RunID     string   `json:"runId"`
	Name      string   `json:"name"`
	FilePath  string   `json:"filePath"`
	Tags      []string `json:"tags,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`

	Status    StepStatus    `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`

	Steps []StepResult `json:"steps"`

	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	WarnedSteps  int `json:"warnedSteps"`
}

// ComputeSummary calculates step counts from the Steps slice.
func (f *FlowResult) ComputeSummary() {
	f.TotalSteps = len(f.Steps)
	f.PassedSteps, f.FailedSteps, f.SkippedSteps, f.WarnedSteps = 0, 0, 0, 0

	for _, step := range f.Steps {
		switch step.Status {
		case StatusPassed:
			f.PassedSteps++
		case StatusFailed, StatusErrored:
			f.FailedSteps++
		case StatusSkipped:
			f.SkippedSteps++
		case StatusWarned:
			f.WarnedSteps++
		}
	}
}

// AggregateStatus determines the flow status from step results. The first
// blocking failure decides between failed and errored.
func (f *FlowResult) AggregateStatus() StepStatus {
	warned := false
	for _, step := range f.Steps {
		switch step.Status {
		case StatusFailed, StatusErrored:
			return step.Status
		case StatusWarned:
			warned = true
		}
	}
	if warned {
		return StatusWarned
	}
	return StatusPassed
}

// SuiteResult captures the outcome of a run over several flows.
type SuiteResult struct {
	RunID     string        `json:"runId"`
	Endpoint  string        `json:"endpoint"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Flows []FlowResult `json:"flows"`

	TotalFlows   int `json:"totalFlows"`
	PassedFlows  int `json:"passedFlows"`
	FailedFlows  int `json:"failedFlows"`
	SkippedFlows int `json:"skippedFlows"`
}

// ComputeSummary calculates flow counts from the Flows slice.
func (s *SuiteResult) ComputeSummary() {
	s.TotalFlows = len(s.Flows)
	s.PassedFlows, s.FailedFlows, s.SkippedFlows = 0, 0, 0

	for _, flow := range s.Flows {
		switch flow.Status {
		case StatusPassed, StatusWarned:
			s.PassedFlows++
		case StatusFailed, StatusErrored:
			s.FailedFlows++
		case StatusSkipped:
			s.SkippedFlows++
		}
	}
}

// Success returns true if all flows passed (including warned).
func (s *SuiteResult) Success() bool {
	for _, flow := range s.Flows {
		if !flow.Status.IsSuccess() {
			return false
		}
	}
	return len(s.Flows) > 0
}
