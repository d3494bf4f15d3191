package webdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sessionState int

const (
	stateNone sessionState = iota
	stateActive
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	default:
		return "none"
	}
}

// BrowsingContext identifies a top-level window and the frame path inside it.
// Two contexts are the same when their keys are equal.
type BrowsingContext struct {
	Window string
	Frames []string
}

// Key returns a comparable identity for the context.
func (c BrowsingContext) Key() string {
	if len(c.Frames) == 0 {
		return c.Window
	}
	return c.Window + "/" + strings.Join(c.Frames, "/")
}

// Depth is the number of contexts on the stack; a top-level window is 1.
func (c BrowsingContext) Depth() int {
	return 1 + len(c.Frames)
}

// String implements fmt.Stringer.
func (c BrowsingContext) String() string {
	if c.Window == "" {
		return "<no window>"
	}
	return c.Key()
}

// Option configures a Session.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *zap.Logger
	timeout    time.Duration
}

// WithHTTPClient sets the HTTP client used for the transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger for command tracing.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout bounds every request. Zero means no timeout beyond the context.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	} else if o.timeout > 0 {
		c := *o.httpClient
		c.Timeout = o.timeout
		o.httpClient = &c
	}
	return o
}

// Session is one WebDriver session. It owns the transport, the remote session
// id and the current browsing context. Commands are serialized: the current
// context must not change while a command is in flight.
type Session struct {
	mu sync.Mutex

	d       *dispatcher
	logger  *zap.Logger
	id      string
	traceID string
	caps    Capabilities
	state   sessionState
	reason  string // why the session closed

	window string   // current top-level handle, "" after it was closed
	frames []string // frame path below window
}

// NewSession performs the new session handshake against endpoint.
func NewSession(ctx context.Context, endpoint string, caps Capabilities, opts ...Option) (*Session, error) {
	o := buildOptions(opts)
	traceID := uuid.NewString()
	logger := o.logger.With(zap.String("trace_id", traceID))

	s := &Session{
		d:       newDispatcher(endpoint, o.httpClient, logger),
		logger:  logger,
		traceID: traceID,
	}

	if caps == nil {
		caps = Capabilities{}
	}
	var req SessionRequest
	req.Capabilities.AlwaysMatch = caps

	raw, err := s.d.send(ctx, cmdNewSession, nil, req)
	if err != nil {
		return nil, err
	}

	var value sessionValue
	if err := decode(cmdNewSession, raw, &value); err != nil {
		return nil, err
	}
	if value.SessionID == "" {
		return nil, ErrSessionNotCreated.WithMessage("no session id in response")
	}

	s.id = value.SessionID
	s.caps = value.Capabilities
	s.state = stateActive
	s.logger = logger.With(zap.String("session_id", s.id))
	s.d.logger = s.logger

	// Anchor the browsing context to the initial window.
	if raw, err := s.d.send(ctx, cmdGetWindowHandle, Params{"sessionId": s.id}, nil); err == nil {
		var handle string
		if decode(cmdGetWindowHandle, raw, &handle) == nil {
			s.window = handle
		}
	} else {
		s.logger.Warn("could not read initial window handle", zap.Error(err))
	}

	s.logger.Info("session started")
	return s, nil
}

// ID returns the remote session id.
func (s *Session) ID() string {
	return s.id
}

// TraceID returns the client-side id attached to this session's log entries.
func (s *Session) TraceID() string {
	return s.traceID
}

// Capabilities returns the capabilities reported by the driver.
func (s *Session) Capabilities() Capabilities {
	return s.caps
}

// IsClosed reports whether the session has ended.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateClosed
}

// Context returns the current browsing context.
func (s *Session) Context() BrowsingContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Session) currentLocked() BrowsingContext {
	frames := make([]string, len(s.frames))
	copy(frames, s.frames)
	return BrowsingContext{Window: s.window, Frames: frames}
}

// exec issues a session-scoped command.
func (s *Session) exec(ctx context.Context, cmd Command, params Params, body interface{}) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execLocked(ctx, cmd, params, body)
}

// execCapture issues a session-scoped command and returns the browsing
// context it ran in.
func (s *Session) execCapture(ctx context.Context, cmd Command, body interface{}) (json.RawMessage, BrowsingContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bc := s.currentLocked()
	raw, err := s.execLocked(ctx, cmd, nil, body)
	return raw, bc, err
}

// execElement issues a command scoped to an element. The element must have
// been resolved in the current browsing context: element ids are not portable
// between contexts and the driver may otherwise resolve them against the
// wrong document.
func (s *Session) execElement(ctx context.Context, e *Element, cmd Command, params Params, body interface{}) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateActive {
		return nil, s.closedErrorLocked(cmd)
	}
	if cur := s.currentLocked(); cur.Key() != e.context.Key() {
		return nil, ErrStaleElementReference.WithMessage(fmt.Sprintf(
			"element %s was resolved in browsing context %s, current context is %s",
			e.id, e.context, cur))
	}

	if params == nil {
		params = Params{}
	}
	params["elementId"] = e.id
	return s.execLocked(ctx, cmd, params, body)
}

func (s *Session) execLocked(ctx context.Context, cmd Command, params Params, body interface{}) (json.RawMessage, error) {
	if s.state != stateActive {
		return nil, s.closedErrorLocked(cmd)
	}
	if params == nil {
		params = Params{}
	}
	params["sessionId"] = s.id

	raw, err := s.d.send(ctx, cmd, params, body)
	if IsKind(err, KindInvalidSessionID) {
		s.markClosedLocked("driver reported invalid session id")
	}
	return raw, err
}

func (s *Session) closedErrorLocked(cmd Command) error {
	reason := s.reason
	if reason == "" {
		reason = "session " + s.state.String()
	}
	if cmd == cmdCloseWindow {
		return ErrNoSuchWindow.WithMessage("no window to close: " + reason).WithCause(ErrInvalidSessionID)
	}
	return ErrInvalidSessionID.WithMessage(fmt.Sprintf("%s: %s", cmd.Name, reason))
}

func (s *Session) markClosedLocked(reason string) {
	if s.state == stateClosed {
		return
	}
	s.state = stateClosed
	s.reason = reason
	s.window = ""
	s.frames = nil
	s.logger.Info("session ended", zap.String("reason", reason))
}

// switchToFrame switches into a frame of the current context. id is nil for
// the top-level context, an index, or an element reference; key identifies
// the frame in the context stack.
func (s *Session) switchToFrame(ctx context.Context, id interface{}, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.execLocked(ctx, cmdSwitchToFrame, nil, SwitchFrameRequest{ID: id}); err != nil {
		return err
	}
	if id == nil {
		s.frames = nil
	} else {
		s.frames = append(s.frames, key)
	}
	return nil
}

// switchToElementFrame enters the frame represented by e.
func (s *Session) switchToElementFrame(ctx context.Context, e *Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateActive {
		return s.closedErrorLocked(cmdSwitchToFrame)
	}
	if cur := s.currentLocked(); cur.Key() != e.context.Key() {
		return ErrStaleElementReference.WithMessage(fmt.Sprintf(
			"frame element %s was resolved in browsing context %s, current context is %s",
			e.id, e.context, cur))
	}
	if _, err := s.execLocked(ctx, cmdSwitchToFrame, nil, SwitchFrameRequest{ID: ElementRef{ID: e.id}}); err != nil {
		return err
	}
	s.frames = append(s.frames, "element:"+e.id)
	return nil
}

// switchToParentFrame pops one frame. At the top level it is a no-op on the
// client side but the command is still sent.
func (s *Session) switchToParentFrame(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.execLocked(ctx, cmdSwitchToParent, nil, nil); err != nil {
		return err
	}
	if n := len(s.frames); n > 0 {
		s.frames = s.frames[:n-1]
	}
	return nil
}

// navigate issues a top-level navigation command. The driver moves back to
// the top-level context of the current window, so the frame stack is cleared.
func (s *Session) navigate(ctx context.Context, cmd Command, body interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.execLocked(ctx, cmd, nil, body); err != nil {
		return err
	}
	s.frames = nil
	return nil
}

// switchToWindow makes handle the current top-level context and resets the
// frame stack.
func (s *Session) switchToWindow(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.execLocked(ctx, cmdSwitchToWindow, nil, SwitchWindowRequest{Handle: handle}); err != nil {
		return err
	}
	s.window = handle
	s.frames = nil
	return nil
}

// closeWindow closes the current window and returns the remaining handles.
// Closing the last window ends the session.
func (s *Session) closeWindow(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.execLocked(ctx, cmdCloseWindow, nil, nil)
	if err != nil {
		return nil, err
	}

	// The window is gone even if the reply is unreadable.
	s.window = ""
	s.frames = nil

	var remaining []string
	if err := decode(cmdCloseWindow, raw, &remaining); err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		s.markClosedLocked("last window was closed")
	}
	return remaining, nil
}

// Close deletes the session. Closing an already closed session fails with an
// invalid session id error.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.execLocked(ctx, cmdDeleteSession, nil, nil)
	if err != nil {
		if IsKind(err, KindConnection) {
			// Server-side state is unknown; leave the session open so the
			// caller can retry.
			return err
		}
		if s.state == stateActive {
			s.markClosedLocked("delete session failed")
		}
		return err
	}
	s.markClosedLocked("session deleted")
	return nil
}

// GetStatus queries driver readiness. It does not need a session.
func GetStatus(ctx context.Context, endpoint string, opts ...Option) (Status, error) {
	o := buildOptions(opts)
	d := newDispatcher(endpoint, o.httpClient, o.logger)
	raw, err := d.send(ctx, cmdStatus, nil, nil)
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := decode(cmdStatus, raw, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}
