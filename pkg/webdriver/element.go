package webdriver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
)

// Element is a handle to a remote DOM node. It is valid only in the browsing
// context it was resolved in and only while the node stays attached.
type Element struct {
	session *Session
	id      string
	context BrowsingContext
}

// ID returns the opaque remote element id.
func (e *Element) ID() string {
	return e.id
}

// Context returns the browsing context the element was resolved in.
func (e *Element) Context() BrowsingContext {
	return e.context
}

// Ref returns the web element reference for e.
func (e *Element) Ref() ElementRef {
	return ElementRef{ID: e.id}
}

// MarshalJSON serializes e as a web element reference so elements can be
// passed directly as script arguments.
func (e *Element) MarshalJSON() ([]byte, error) {
	return e.Ref().MarshalJSON()
}

// String implements fmt.Stringer.
func (e *Element) String() string {
	return fmt.Sprintf("element(%s in %s)", e.id, e.context)
}

func (e *Element) exec(ctx context.Context, cmd Command, params Params, body interface{}) (json.RawMessage, error) {
	return e.session.execElement(ctx, e, cmd, params, body)
}

// Click clicks the element.
func (e *Element) Click(ctx context.Context) error {
	_, err := e.exec(ctx, cmdClick, nil, nil)
	return err
}

// Clear clears an editable element.
func (e *Element) Clear(ctx context.Context) error {
	_, err := e.exec(ctx, cmdClear, nil, nil)
	return err
}

// SendKeys types text into the element.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	_, err := e.exec(ctx, cmdSendKeys, nil, SendKeysRequest{Text: text})
	return err
}

// Text returns the element's rendered text.
func (e *Element) Text(ctx context.Context) (string, error) {
	return e.getString(ctx, cmdGetText, nil)
}

// TagName returns the element's tag name.
func (e *Element) TagName(ctx context.Context) (string, error) {
	return e.getString(ctx, cmdGetTagName, nil)
}

// Attribute returns an attribute value. ok is false when the attribute is
// not present.
func (e *Element) Attribute(ctx context.Context, name string) (value string, ok bool, err error) {
	return e.getOptionalString(ctx, cmdGetAttribute, name)
}

// Property returns a DOM property as raw JSON.
func (e *Element) Property(ctx context.Context, name string) (json.RawMessage, error) {
	return e.exec(ctx, cmdGetProperty, Params{"name": name}, nil)
}

// CSSValue returns the computed value of a CSS property.
func (e *Element) CSSValue(ctx context.Context, name string) (string, error) {
	return e.getString(ctx, cmdGetCSSValue, Params{"name": name})
}

// Rect returns the element's position and size.
func (e *Element) Rect(ctx context.Context) (Rect, error) {
	raw, err := e.exec(ctx, cmdGetRect, nil, nil)
	if err != nil {
		return Rect{}, err
	}
	var r Rect
	if err := decode(cmdGetRect, raw, &r); err != nil {
		return Rect{}, err
	}
	return r, nil
}

// IsDisplayed reports whether the element is visible.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	return e.getBool(ctx, cmdIsDisplayed)
}

// IsEnabled reports whether the element is enabled.
func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	return e.getBool(ctx, cmdIsEnabled)
}

// IsSelected reports whether a checkbox, radio or option is selected.
func (e *Element) IsSelected(ctx context.Context) (bool, error) {
	return e.getBool(ctx, cmdIsSelected)
}

// Find locates the first descendant matching l.
func (e *Element) Find(ctx context.Context, l Locator) (*Element, error) {
	raw, err := e.exec(ctx, cmdFindFromElement, nil, l.request())
	if err != nil {
		return nil, err
	}
	return e.session.elementFromRaw(cmdFindFromElement, raw, e.context)
}

// FindAll locates all descendants matching l, in document order.
func (e *Element) FindAll(ctx context.Context, l Locator) ([]*Element, error) {
	raw, err := e.exec(ctx, cmdFindAllFromElem, nil, l.request())
	if err != nil {
		return nil, err
	}
	return e.session.elementsFromRaw(cmdFindAllFromElem, raw, e.context)
}

// EnterFrame switches the session into the frame this element represents.
// Elements resolved before the switch become stale.
func (e *Element) EnterFrame(ctx context.Context) error {
	return e.session.switchToElementFrame(ctx, e)
}

// Follow navigates to the element's href, resolved against the current URL.
func (e *Element) Follow(ctx context.Context) error {
	href, ok, err := e.Attribute(ctx, "href")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoSuchElement.WithMessage("element " + e.id + " has no href attribute")
	}

	raw, err := e.session.exec(ctx, cmdGetCurrentURL, nil, nil)
	if err != nil {
		return err
	}
	var current string
	if err := decode(cmdGetCurrentURL, raw, &current); err != nil {
		return err
	}
	base, err := url.Parse(current)
	if err != nil {
		return serializationError("current url is not a valid URL", err)
	}
	target, err := base.Parse(href)
	if err != nil {
		return serializationError("href is not a valid URL", err)
	}

	return e.session.navigate(ctx, cmdNavigateTo, NavigateRequest{URL: target.String()})
}

// Screenshot returns a PNG of the element.
func (e *Element) Screenshot(ctx context.Context) ([]byte, error) {
	s, err := e.getString(ctx, cmdElementScreenshot, nil)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, serializationError("screenshot is not base64", err)
	}
	return data, nil
}

func (e *Element) getString(ctx context.Context, cmd Command, params Params) (string, error) {
	raw, err := e.exec(ctx, cmd, params, nil)
	if err != nil {
		return "", err
	}
	var s string
	if err := decode(cmd, raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

func (e *Element) getOptionalString(ctx context.Context, cmd Command, name string) (string, bool, error) {
	raw, err := e.exec(ctx, cmd, Params{"name": name}, nil)
	if err != nil {
		return "", false, err
	}
	var s *string
	if err := decode(cmd, raw, &s); err != nil {
		return "", false, err
	}
	if s == nil {
		return "", false, nil
	}
	return *s, true, nil
}

func (e *Element) getBool(ctx context.Context, cmd Command) (bool, error) {
	raw, err := e.exec(ctx, cmd, nil, nil)
	if err != nil {
		return false, err
	}
	var b bool
	if err := decode(cmd, raw, &b); err != nil {
		return false, err
	}
	return b, nil
}

func (s *Session) elementFromRaw(cmd Command, raw json.RawMessage, bc BrowsingContext) (*Element, error) {
	var ref ElementRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, serializationError("unexpected value for "+cmd.Name, err)
	}
	return &Element{session: s, id: ref.ID, context: bc}, nil
}

func (s *Session) elementsFromRaw(cmd Command, raw json.RawMessage, bc BrowsingContext) ([]*Element, error) {
	var refs []ElementRef
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, serializationError("unexpected value for "+cmd.Name, err)
	}
	elems := make([]*Element, len(refs))
	for i, ref := range refs {
		elems[i] = &Element{session: s, id: ref.ID, context: bc}
	}
	return elems, nil
}
