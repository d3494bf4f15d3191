package webdriver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// Client is the user-facing handle to a WebDriver session. Clients are cheap
// to copy by pointer; all copies share one Session.
type Client struct {
	session *Session
}

// Connect creates a new session against endpoint and wraps it in a Client.
func Connect(ctx context.Context, endpoint string, caps Capabilities, opts ...Option) (*Client, error) {
	s, err := NewSession(ctx, endpoint, caps, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{session: s}, nil
}

// NewClient wraps an existing session.
func NewClient(s *Session) *Client {
	return &Client{session: s}
}

// Session returns the underlying session.
func (c *Client) Session() *Session {
	return c.session
}

// Close ends the session.
func (c *Client) Close(ctx context.Context) error {
	return c.session.Close(ctx)
}

// Navigation

// Goto navigates the current top-level context to rawURL. Like every
// navigation command it leaves the client at the window's top level.
func (c *Client) Goto(ctx context.Context, rawURL string) error {
	return c.session.navigate(ctx, cmdNavigateTo, NavigateRequest{URL: rawURL})
}

// CurrentURL returns the URL of the current top-level context.
func (c *Client) CurrentURL(ctx context.Context) (string, error) {
	return c.getString(ctx, cmdGetCurrentURL)
}

// Back navigates back in history.
func (c *Client) Back(ctx context.Context) error {
	return c.session.navigate(ctx, cmdBack, nil)
}

// Forward navigates forward in history.
func (c *Client) Forward(ctx context.Context) error {
	return c.session.navigate(ctx, cmdForward, nil)
}

// Refresh reloads the current page.
func (c *Client) Refresh(ctx context.Context) error {
	return c.session.navigate(ctx, cmdRefresh, nil)
}

// Title returns the document title.
func (c *Client) Title(ctx context.Context) (string, error) {
	return c.getString(ctx, cmdGetTitle)
}

// Source returns the serialized DOM of the current context.
func (c *Client) Source(ctx context.Context) (string, error) {
	return c.getString(ctx, cmdGetSource)
}

// Screenshot returns a PNG of the current top-level context.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	s, err := c.getString(ctx, cmdScreenshot)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, serializationError("screenshot is not base64", err)
	}
	return data, nil
}

// Element lookup

// Find returns the first element matching l in the current browsing context.
// No match is a NoSuchElement error.
func (c *Client) Find(ctx context.Context, l Locator) (*Element, error) {
	raw, bc, err := c.session.execCapture(ctx, cmdFindElement, l.request())
	if err != nil {
		return nil, err
	}
	return c.session.elementFromRaw(cmdFindElement, raw, bc)
}

// FindAll returns every element matching l in document order. No match is
// an empty slice, not an error.
func (c *Client) FindAll(ctx context.Context, l Locator) ([]*Element, error) {
	raw, bc, err := c.session.execCapture(ctx, cmdFindElements, l.request())
	if err != nil {
		return nil, err
	}
	return c.session.elementsFromRaw(cmdFindElements, raw, bc)
}

// ActiveElement returns the focused element.
func (c *Client) ActiveElement(ctx context.Context) (*Element, error) {
	raw, bc, err := c.session.execCapture(ctx, cmdGetActiveElement, nil)
	if err != nil {
		return nil, err
	}
	return c.session.elementFromRaw(cmdGetActiveElement, raw, bc)
}

// WaitFor polls Find every interval until an element matches or ctx is done.
// Only NoSuchElement is retried; any other error is returned immediately.
func (c *Client) WaitFor(ctx context.Context, l Locator, interval time.Duration) (*Element, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		elem, err := c.Find(ctx, l)
		if err == nil {
			return elem, nil
		}
		if !errors.Is(err, ErrNoSuchElement) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-ticker.C:
		}
	}
}

// Scripts

// Execute runs a synchronous script in the current browsing context and
// returns its result as raw JSON. Elements among args are passed as web
// element references.
func (c *Client) Execute(ctx context.Context, script string, args ...interface{}) (json.RawMessage, error) {
	return c.execute(ctx, cmdExecuteSync, script, args)
}

// ExecuteAsync runs an asynchronous script; the script signals completion by
// calling the callback passed as its last argument.
func (c *Client) ExecuteAsync(ctx context.Context, script string, args ...interface{}) (json.RawMessage, error) {
	return c.execute(ctx, cmdExecuteAsync, script, args)
}

func (c *Client) execute(ctx context.Context, cmd Command, script string, args []interface{}) (json.RawMessage, error) {
	if args == nil {
		args = []interface{}{}
	}
	for _, a := range args {
		if e, ok := a.(*Element); ok && e.session != c.session {
			return nil, ErrStaleElementReference.WithMessage("script argument " + e.id + " belongs to another session")
		}
	}
	return c.session.exec(ctx, cmd, nil, ExecuteRequest{Script: script, Args: args})
}

// ElementFromResult turns a script result holding a web element reference
// into an Element bound to the current browsing context.
func (c *Client) ElementFromResult(raw json.RawMessage) (*Element, error) {
	ref, err := ParseElementRef(raw)
	if err != nil {
		return nil, err
	}
	return &Element{session: c.session, id: ref.ID, context: c.session.Context()}, nil
}

// Windows and tabs

// Window returns the current window handle. It fails after the current
// window was closed until another window is selected.
func (c *Client) Window(ctx context.Context) (string, error) {
	return c.getString(ctx, cmdGetWindowHandle)
}

// Windows returns the handles of all open top-level contexts, in driver order.
func (c *Client) Windows(ctx context.Context) ([]string, error) {
	raw, err := c.session.exec(ctx, cmdGetWindowHandles, nil, nil)
	if err != nil {
		return nil, err
	}
	var handles []string
	if err := decode(cmdGetWindowHandles, raw, &handles); err != nil {
		return nil, err
	}
	return handles, nil
}

// NewWindow opens a new window, or a tab when asTab is set. The current
// window does not change.
func (c *Client) NewWindow(ctx context.Context, asTab bool) (NewWindowResponse, error) {
	typ := "window"
	if asTab {
		typ = "tab"
	}
	raw, err := c.session.exec(ctx, cmdNewWindow, nil, NewWindowRequest{Type: typ})
	if err != nil {
		return NewWindowResponse{}, err
	}
	var resp NewWindowResponse
	if err := decode(cmdNewWindow, raw, &resp); err != nil {
		return NewWindowResponse{}, err
	}
	return resp, nil
}

// SwitchToWindow selects handle as the current top-level context.
func (c *Client) SwitchToWindow(ctx context.Context, handle string) error {
	return c.session.switchToWindow(ctx, handle)
}

// CloseWindow closes the current window and returns the remaining handles.
// Closing the last window ends the session; calling it again then fails
// with a NoSuchWindow error.
func (c *Client) CloseWindow(ctx context.Context) ([]string, error) {
	return c.session.closeWindow(ctx)
}

// WindowRect returns the current window's position and size.
func (c *Client) WindowRect(ctx context.Context) (Rect, error) {
	raw, err := c.session.exec(ctx, cmdGetWindowRect, nil, nil)
	if err != nil {
		return Rect{}, err
	}
	var r Rect
	if err := decode(cmdGetWindowRect, raw, &r); err != nil {
		return Rect{}, err
	}
	return r, nil
}

// SetWindowRect moves and resizes the current window.
func (c *Client) SetWindowRect(ctx context.Context, req WindowRectRequest) (Rect, error) {
	raw, err := c.session.exec(ctx, cmdSetWindowRect, nil, req)
	if err != nil {
		return Rect{}, err
	}
	var r Rect
	if err := decode(cmdSetWindowRect, raw, &r); err != nil {
		return Rect{}, err
	}
	return r, nil
}

// MaximizeWindow maximizes the current window.
func (c *Client) MaximizeWindow(ctx context.Context) (Rect, error) {
	raw, err := c.session.exec(ctx, cmdMaximizeWindow, nil, nil)
	if err != nil {
		return Rect{}, err
	}
	var r Rect
	if err := decode(cmdMaximizeWindow, raw, &r); err != nil {
		return Rect{}, err
	}
	return r, nil
}

// Frames

// EnterFrame switches into the frame at index of the current context, or to
// the top-level context of the current window when index is nil.
func (c *Client) EnterFrame(ctx context.Context, index *int) error {
	if index == nil {
		return c.session.switchToFrame(ctx, nil, "")
	}
	return c.session.switchToFrame(ctx, *index, "index:"+strconv.Itoa(*index))
}

// EnterParentFrame switches to the parent of the current frame. At the top
// level it leaves the context unchanged.
func (c *Client) EnterParentFrame(ctx context.Context) error {
	return c.session.switchToParentFrame(ctx)
}

// Session configuration

// Timeouts returns the session timeouts.
func (c *Client) Timeouts(ctx context.Context) (Timeouts, error) {
	raw, err := c.session.exec(ctx, cmdGetTimeouts, nil, nil)
	if err != nil {
		return Timeouts{}, err
	}
	var t Timeouts
	if err := decode(cmdGetTimeouts, raw, &t); err != nil {
		return Timeouts{}, err
	}
	return t, nil
}

// SetTimeouts updates the session timeouts. Nil fields are unchanged.
func (c *Client) SetTimeouts(ctx context.Context, t Timeouts) error {
	_, err := c.session.exec(ctx, cmdSetTimeouts, nil, t)
	return err
}

func (c *Client) getString(ctx context.Context, cmd Command) (string, error) {
	raw, err := c.session.exec(ctx, cmd, nil, nil)
	if err != nil {
		return "", err
	}
	var s string
	if err := decode(cmd, raw, &s); err != nil {
		return "", err
	}
	return s, nil
}
