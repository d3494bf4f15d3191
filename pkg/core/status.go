package core

import "fmt"

// StepStatus represents the execution status of a step or flow.
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion failed: the page was not in the expected state
	StatusErrored                   // Protocol, transport or session failure
	StatusSkipped                   // Not run because an earlier step failed
	StatusWarned                    // Optional step failed (non-blocking)
)

var statusNames = [...]string{"pending", "running", "passed", "failed", "errored", "skipped", "warned"}

// String returns the string representation of StepStatus.
func (s StepStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText encodes the status by name in reports.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *StepStatus) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = StepStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// IsTerminal returns true if the status is a final state.
func (s StepStatus) IsTerminal() bool {
	return s >= StatusPassed && int(s) < len(statusNames)
}

// IsSuccess returns true if the status indicates success (passed or warned).
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies a failure for reporting.
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota
	ErrCategoryAssertion                // Element missing, hidden, or with the wrong text
	ErrCategoryTimeout                  // A wait or the flow timeout expired
	ErrCategoryConnection               // Driver unreachable
	ErrCategorySession                  // Session, window or frame no longer valid
	ErrCategoryScript                   // Script raised an error
	ErrCategoryProtocol                 // Any other driver error
	ErrCategoryConfig                   // Invalid step or configuration
)

var categoryNames = [...]string{"none", "assertion", "timeout", "connection", "session", "script", "protocol", "config"}

// String returns the string representation of ErrorCategory.
func (c ErrorCategory) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// MarshalText encodes the category by name in reports.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *ErrorCategory) UnmarshalText(text []byte) error {
	for i, name := range categoryNames {
		if name == string(text) {
			*c = ErrorCategory(i)
			return nil
		}
	}
	return fmt.Errorf("unknown error category %q", text)
}
