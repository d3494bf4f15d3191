package webdriver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a command failure.
type ErrorKind string

// Error kinds.
const (
	KindNoSuchElement           ErrorKind = "no_such_element"
	KindStaleElementReference   ErrorKind = "stale_element_reference"
	KindNoSuchWindow            ErrorKind = "no_such_window"
	KindNoSuchFrame             ErrorKind = "no_such_frame"
	KindInvalidSessionID        ErrorKind = "invalid_session_id"
	KindSessionNotCreated       ErrorKind = "session_not_created"
	KindScript                  ErrorKind = "script_error"
	KindSerialization           ErrorKind = "serialization"
	KindConnection              ErrorKind = "connection"
	KindInvalidSelector         ErrorKind = "invalid_selector"
	KindElementNotInteractable  ErrorKind = "element_not_interactable"
	KindElementClickIntercepted ErrorKind = "element_click_intercepted"
	KindTimeout                 ErrorKind = "timeout"
	KindUnknownCommand          ErrorKind = "unknown_command"
	KindUnsupportedOperation    ErrorKind = "unsupported_operation"
	KindUnknown                 ErrorKind = "unknown"
)

// W3C error codes as sent by the driver in the "error" field.
const (
	CodeNoSuchElement           = "no such element"
	CodeStaleElementReference   = "stale element reference"
	CodeNoSuchWindow            = "no such window"
	CodeNoSuchFrame             = "no such frame"
	CodeInvalidSessionID        = "invalid session id"
	CodeSessionNotCreated       = "session not created"
	CodeJavascriptError         = "javascript error"
	CodeScriptTimeout           = "script timeout"
	CodeInvalidArgument         = "invalid argument"
	CodeInvalidSelector         = "invalid selector"
	CodeElementNotInteractable  = "element not interactable"
	CodeElementClickIntercepted = "element click intercepted"
	CodeTimeout                 = "timeout"
	CodeUnknownCommand          = "unknown command"
	CodeUnknownMethod           = "unknown method"
	CodeUnsupportedOperation    = "unsupported operation"
	CodeUnknownError            = "unknown error"
)

var codeKinds = map[string]ErrorKind{
	CodeNoSuchElement:           KindNoSuchElement,
	CodeStaleElementReference:   KindStaleElementReference,
	CodeNoSuchWindow:            KindNoSuchWindow,
	CodeNoSuchFrame:             KindNoSuchFrame,
	CodeInvalidSessionID:        KindInvalidSessionID,
	CodeSessionNotCreated:       KindSessionNotCreated,
	CodeJavascriptError:         KindScript,
	CodeScriptTimeout:           KindScript,
	CodeInvalidArgument:         KindSerialization,
	CodeInvalidSelector:         KindInvalidSelector,
	CodeElementNotInteractable:  KindElementNotInteractable,
	CodeElementClickIntercepted: KindElementClickIntercepted,
	CodeTimeout:                 KindTimeout,
	CodeUnknownCommand:          KindUnknownCommand,
	CodeUnknownMethod:           KindUnknownCommand,
	CodeUnsupportedOperation:    KindUnsupportedOperation,
}

// CmdError is the error returned by every WebDriver operation.
type CmdError struct {
	Kind       ErrorKind
	Code       string // W3C error code, or the raw code for unrecognized errors
	Message    string
	Stacktrace string
	Status     int   // HTTP status, 0 when no response was received
	Cause      error // Underlying transport or decoding error
}

// Error implements the error interface.
func (e *CmdError) Error() string {
	msg := e.Code
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CmdError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *CmdError of the same kind. This lets the
// predefined errors below act as sentinels for errors.Is.
func (e *CmdError) Is(target error) bool {
	t, ok := target.(*CmdError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithCause returns a copy of the error with the given cause.
func (e *CmdError) WithCause(cause error) *CmdError {
	c := *e
	c.Cause = cause
	return &c
}

// WithMessage returns a copy of the error with a custom message.
func (e *CmdError) WithMessage(msg string) *CmdError {
	c := *e
	c.Message = msg
	return &c
}

// Predefined errors, usable with errors.Is.
var (
	ErrNoSuchElement = &CmdError{
		Kind:    KindNoSuchElement,
		Code:    CodeNoSuchElement,
		Message: "no element matched the locator",
	}
	ErrStaleElementReference = &CmdError{
		Kind:    KindStaleElementReference,
		Code:    CodeStaleElementReference,
		Message: "element is no longer attached to the current browsing context",
	}
	ErrNoSuchWindow = &CmdError{
		Kind:    KindNoSuchWindow,
		Code:    CodeNoSuchWindow,
		Message: "no such window",
	}
	ErrNoSuchFrame = &CmdError{
		Kind:    KindNoSuchFrame,
		Code:    CodeNoSuchFrame,
		Message: "no such frame",
	}
	ErrInvalidSessionID = &CmdError{
		Kind:    KindInvalidSessionID,
		Code:    CodeInvalidSessionID,
		Message: "session is closed",
	}
	ErrSessionNotCreated = &CmdError{
		Kind:    KindSessionNotCreated,
		Code:    CodeSessionNotCreated,
		Message: "session could not be created",
	}
	ErrScript = &CmdError{
		Kind:    KindScript,
		Code:    CodeJavascriptError,
		Message: "script execution failed",
	}
	ErrSerialization = &CmdError{
		Kind:    KindSerialization,
		Message: "malformed JSON",
	}
	ErrConnection = &CmdError{
		Kind:    KindConnection,
		Message: "could not reach driver endpoint",
	}
	ErrUnknown = &CmdError{
		Kind:    KindUnknown,
		Code:    CodeUnknownError,
		Message: "unknown WebDriver error",
	}
)

// IsKind reports whether err is a *CmdError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *CmdError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" when err is not a *CmdError.
func KindOf(err error) ErrorKind {
	var ce *CmdError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// errorEnvelope is the W3C error response body.
type errorEnvelope struct {
	Value *struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		Stacktrace string `json:"stacktrace"`
	} `json:"value"`
}

// MapError converts an error response into a *CmdError. It never fails:
// bodies that are not a W3C error envelope become KindUnknown errors that
// carry the raw body as their message.
func MapError(status int, body []byte) *CmdError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Value == nil || env.Value.Error == "" {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &CmdError{
			Kind:    KindUnknown,
			Code:    fmt.Sprintf("http %d", status),
			Message: msg,
			Status:  status,
		}
	}

	kind, ok := codeKinds[env.Value.Error]
	if !ok {
		kind = KindUnknown
	}
	return &CmdError{
		Kind:       kind,
		Code:       env.Value.Error,
		Message:    env.Value.Message,
		Stacktrace: env.Value.Stacktrace,
		Status:     status,
	}
}

func connectionError(cause error) *CmdError {
	return ErrConnection.WithCause(cause)
}

func serializationError(msg string, cause error) *CmdError {
	e := ErrSerialization.WithMessage(msg)
	e.Cause = cause
	return e
}
