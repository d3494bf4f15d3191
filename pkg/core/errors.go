package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/devicelab-dev/wdclient/pkg/webdriver"
)

// ExecutionError is a step failure detected by the runner rather than
// reported by the driver.
type ExecutionError struct {
	Category ErrorCategory
	Code     string // Machine-readable code: text_mismatch, wait_timeout, etc.
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches on Code so that copies made by WithMessage still match.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	return ok && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := *e
	c.Cause = cause
	return &c
}

// WithMessage returns a copy of the error with a custom message.
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := *e
	c.Message = msg
	return &c
}

// Predefined errors.
var (
	ErrElementNotVisible = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_visible",
		Message:  "element not visible",
	}
	ErrElementVisible = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_visible",
		Message:  "element is visible",
	}
	ErrTextMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "text_mismatch",
		Message:  "text does not match expected value",
	}
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}
	ErrNoSuchWindowIndex = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "window_index_out_of_range",
		Message:  "window index out of range",
	}
	ErrInvalidStep = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_step",
		Message:  "step is invalid",
	}
	ErrUnsupportedStep = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "unsupported_step",
		Message:  "step is not supported",
	}
)

// Categorize classifies err for reporting.
func Categorize(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}

	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCategoryTimeout
	}

	switch webdriver.KindOf(err) {
	case webdriver.KindNoSuchElement, webdriver.KindStaleElementReference,
		webdriver.KindElementNotInteractable, webdriver.KindElementClickIntercepted:
		return ErrCategoryAssertion
	case webdriver.KindTimeout:
		return ErrCategoryTimeout
	case webdriver.KindConnection:
		return ErrCategoryConnection
	case webdriver.KindInvalidSessionID, webdriver.KindSessionNotCreated,
		webdriver.KindNoSuchWindow, webdriver.KindNoSuchFrame:
		return ErrCategorySession
	case webdriver.KindScript:
		return ErrCategoryScript
	case webdriver.KindInvalidSelector:
		return ErrCategoryConfig
	}
	return ErrCategoryProtocol
}

// StatusFor maps a step error to its status. Assertion failures are failed;
// everything else means the step could not be carried out and is errored.
func StatusFor(err error) StepStatus {
	switch Categorize(err) {
	case ErrCategoryNone:
		return StatusPassed
	case ErrCategoryAssertion, ErrCategoryTimeout:
		return StatusFailed
	}
	return StatusErrored
}
