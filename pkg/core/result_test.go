package core

import "testing"

func TestFlowResult_ComputeSummary(t *testing.T) {
	f := &FlowResult{Steps: []StepResult{
		{Status: StatusPassed},
		{Status: StatusWarned},
		{Status: StatusPassed},
		{Status: StatusErrored},
		{Status: StatusSkipped},
		{Status: StatusSkipped},
	}}
	f.ComputeSummary()

	if f.TotalSteps != 6 || f.PassedSteps != 2 || f.WarnedSteps != 1 || f.FailedSteps != 1 || f.SkippedSteps != 2 {
		t.Errorf("unexpected summary %+v", f)
	}
}

func TestFlowResult_AggregateStatus(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepStatus
		want  StepStatus
	}{
		{"empty", nil, StatusPassed},
		{"all passed", []StepStatus{StatusPassed, StatusPassed}, StatusPassed},
		{"warned", []StepStatus{StatusPassed, StatusWarned}, StatusWarned},
		{"failed", []StepStatus{StatusWarned, StatusFailed, StatusSkipped}, StatusFailed},
		{"errored first", []StepStatus{StatusErrored, StatusFailed}, StatusErrored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &FlowResult{}
			for _, s := range tt.steps {
				f.Steps = append(f.Steps, StepResult{Status: s})
			}
			if got := f.AggregateStatus(); got != tt.want {
				t.Errorf("AggregateStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSuiteResult(t *testing.T) {
	s := &SuiteResult{Flows: []FlowResult{
		{Status: StatusPassed},
		{Status: StatusWarned},
		{Status: StatusErrored},
		{Status: StatusSkipped},
	}}
	s.ComputeSummary()
	if s.TotalFlows != 4 || s.PassedFlows != 2 || s.FailedFlows != 1 || s.SkippedFlows != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.Success() {
		t.Error("Success() = true with an errored flow")
	}

	ok := &SuiteResult{Flows: []FlowResult{{Status: StatusPassed}, {Status: StatusWarned}}}
	if !ok.Success() {
		t.Error("Success() = false for passing flows")
	}
	if (&SuiteResult{}).Success() {
		t.Error("Success() = true for an empty suite")
	}
}
