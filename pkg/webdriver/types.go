// Package webdriver implements a client for the W3C WebDriver protocol.
//
// A Client drives one remote browser session through a driver endpoint such
// as geckodriver or chromedriver. Element handles returned by Find are bound
// to the browsing context (window and frame) that was current when they were
// resolved and fail with a stale element error once that context changes.
package webdriver

import "encoding/json"

// w3cElementKey is the W3C web element identifier key.
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// legacyElementKey is the JSON Wire Protocol element key, accepted on read.
const legacyElementKey = "ELEMENT"

// Capabilities requested when creating a session.
type Capabilities map[string]interface{}

// SessionRequest for creating a session.
type SessionRequest struct {
	Capabilities struct {
		AlwaysMatch Capabilities `json:"alwaysMatch"`
	} `json:"capabilities"`
}

// sessionValue is the value of a new session response.
type sessionValue struct {
	SessionID    string       `json:"sessionId"`
	Capabilities Capabilities `json:"capabilities"`
}

// Status is the driver readiness state.
type Status struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// FindRequest for locating elements.
type FindRequest struct {
	Using string `json:"using"`
	Value string `json:"value"`
}

// ExecuteRequest for script execution.
type ExecuteRequest struct {
	Script string        `json:"script"`
	Args   []interface{} `json:"args"`
}

// NavigateRequest for loading a URL.
type NavigateRequest struct {
	URL string `json:"url"`
}

// SwitchWindowRequest for switching the current top-level browsing context.
type SwitchWindowRequest struct {
	Handle string `json:"handle"`
}

// NewWindowRequest for creating a window or tab.
type NewWindowRequest struct {
	Type string `json:"type"` // "tab" or "window"
}

// NewWindowResponse describes a freshly created top-level browsing context.
type NewWindowResponse struct {
	Handle string `json:"handle"`
	Type   string `json:"type"`
}

// SwitchFrameRequest for switching frames. ID is null, a number or a web
// element reference.
type SwitchFrameRequest struct {
	ID interface{} `json:"id"`
}

// SendKeysRequest for typing into an element.
type SendKeysRequest struct {
	Text string `json:"text"`
}

// Rect represents the position and size of an element or window.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// WindowRectRequest for resizing or moving a window. Nil fields are left
// unchanged by the driver.
type WindowRectRequest struct {
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

// Timeouts are the session timeouts in milliseconds.
type Timeouts struct {
	Script   *int64 `json:"script,omitempty"`
	PageLoad *int64 `json:"pageLoad,omitempty"`
	Implicit *int64 `json:"implicit,omitempty"`
}

// ElementRef is the W3C web element reference: a single key mapping to the
// element's opaque id.
type ElementRef struct {
	ID string
}

// MarshalJSON emits {"element-6066-11e4-a52e-4f735466cecf": id}.
func (r ElementRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{w3cElementKey: r.ID})
}

// UnmarshalJSON accepts the W3C key and the legacy "ELEMENT" key.
func (r *ElementRef) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return serializationError("element reference is not an object", err)
	}
	id := extractElementID(m)
	if id == "" {
		return serializationError("object is not a web element reference", nil)
	}
	r.ID = id
	return nil
}

// ParseElementRef decodes a web element reference from raw JSON, such as a
// script result.
func ParseElementRef(raw json.RawMessage) (ElementRef, error) {
	var ref ElementRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return ElementRef{}, err
	}
	if ref.ID == "" {
		return ElementRef{}, serializationError("value is not a web element reference", nil)
	}
	return ref, nil
}

func extractElementID(value map[string]interface{}) string {
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	if id, ok := value[legacyElementKey].(string); ok {
		return id
	}
	return ""
}
