package core

import (
	"encoding/json"
	"testing"
)

func TestStepStatus_String(t *testing.T) {
	tests := []struct {
		status   StepStatus
		expected string
	}{
		{StatusPending, "pending"},
		{StatusRunning, "running"},
		{StatusPassed, "passed"},
		{StatusFailed, "failed"},
		{StatusErrored, "errored"},
		{StatusSkipped, "skipped"},
		{StatusWarned, "warned"},
		{StepStatus(99), "unknown"},
		{StepStatus(-1), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("StepStatus(%d).String() = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestStepStatus_IsTerminal(t *testing.T) {
	for _, s := range []StepStatus{StatusPassed, StatusFailed, StatusErrored, StatusSkipped, StatusWarned} {
		if !s.IsTerminal() {
			t.Errorf("StepStatus(%s).IsTerminal() = false, want true", s)
		}
	}
	for _, s := range []StepStatus{StatusPending, StatusRunning, StepStatus(42)} {
		if s.IsTerminal() {
			t.Errorf("StepStatus(%s).IsTerminal() = true, want false", s)
		}
	}
}

func TestStepStatus_IsSuccess(t *testing.T) {
	for _, s := range []StepStatus{StatusPassed, StatusWarned} {
		if !s.IsSuccess() {
			t.Errorf("StepStatus(%s).IsSuccess() = false, want true", s)
		}
	}
	for _, s := range []StepStatus{StatusPending, StatusRunning, StatusFailed, StatusErrored, StatusSkipped} {
		if s.IsSuccess() {
			t.Errorf("StepStatus(%s).IsSuccess() = true, want false", s)
		}
	}
}

func TestStepStatus_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]StepStatus{"status": StatusWarned})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"status":"warned"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var decoded struct {
		Status StepStatus `json:"status"`
	}
	if err := json.Unmarshal([]byte(`{"status":"errored"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Status != StatusErrored {
		t.Errorf("decoded %s, want errored", decoded.Status)
	}
	if err := json.Unmarshal([]byte(`{"status":"exploded"}`), &decoded); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := map[ErrorCategory]string{
		ErrCategoryNone:       "none",
		ErrCategoryAssertion:  "assertion",
		ErrCategoryTimeout:    "timeout",
		ErrCategoryConnection: "connection",
		ErrCategorySession:    "session",
		ErrCategoryScript:     "script",
		ErrCategoryProtocol:   "protocol",
		ErrCategoryConfig:     "config",
		ErrorCategory(50):     "unknown",
	}
	for c, want := range tests {
		if got := c.String(); got != want {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", c, got, want)
		}
	}
}
