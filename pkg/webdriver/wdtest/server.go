// Package wdtest provides an in-process fake W3C WebDriver endpoint for tests.
//
// The fake keeps real protocol semantics where clients are likely to get them
// wrong: element ids are registered per document, so they are not portable
// between frames or across navigations; removed nodes report stale element
// errors; new windows do not become current; closing the last window deletes
// the session. Page content comes from templates registered with AddPage.
package wdtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// ScriptFunc implements a script registered with HandleScript.
type ScriptFunc func(sc *ScriptContext) (interface{}, error)

// Server is a fake driver endpoint.
type Server struct {
	mu       sync.Mutex
	ts       *httptest.Server
	mux      *http.ServeMux
	pages    map[string]Page
	scripts  map[string]ScriptFunc
	sessions map[string]*session
	owners   map[string]*document // element id -> document it was issued in
	clicks   map[string]int
	requests []string
}

// NewServer starts a fake driver endpoint.
func NewServer() *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		pages:    map[string]Page{},
		scripts:  map[string]ScriptFunc{},
		sessions: map[string]*session{},
		owners:   map[string]*document{},
		clicks:   map[string]int{},
	}
	s.routes()
	s.ts = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// URL returns the endpoint base URL.
func (s *Server) URL() string {
	return s.ts.URL
}

// PageURL returns an absolute URL for a page path on this server.
func (s *Server) PageURL(path string) string {
	return s.ts.URL + path
}

// Close shuts the endpoint down.
func (s *Server) Close() {
	s.ts.Close()
}

// AddPage registers a page template served at path.
func (s *Server) AddPage(path string, p Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = p
}

// HandleScript registers the behavior of a script, matched verbatim.
// Unregistered scripts validate their arguments and return null.
func (s *Server) HandleScript(script string, fn ScriptFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[script] = fn
}

// Clicks returns how many times the element with DOM id domID was clicked.
func (s *Server) Clicks(domID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks[domID]
}

// Requests returns "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// wdError is a W3C error response.
type wdError struct {
	status int
	code   string
	msg    string
}

func errorf(status int, code, format string, args ...interface{}) *wdError {
	return &wdError{status: status, code: code, msg: fmt.Sprintf(format, args...)}
}

func noSuchElement(format string, args ...interface{}) *wdError {
	return errorf(http.StatusNotFound, "no such element", format, args...)
}

func invalidArgument(format string, args ...interface{}) *wdError {
	return errorf(http.StatusBadRequest, "invalid argument", format, args...)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, e *wdError) {
	writeJSON(w, e.status, map[string]interface{}{
		"value": map[string]interface{}{
			"error":      e.code,
			"message":    e.msg,
			"stacktrace": "",
		},
	})
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	if _, pattern := s.mux.Handler(r); pattern == "" {
		writeError(w, errorf(http.StatusNotFound, "unknown command", "%s %s", r.Method, r.URL.Path))
		return
	}
	s.mux.ServeHTTP(w, r)
}

// sessionHandler runs fn with the server locked and the session resolved.
type sessionHandler func(sess *session, r *http.Request) (interface{}, *wdError)

func (s *Server) handle(pattern string, fn sessionHandler) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		sess, ok := s.sessions[r.PathValue("sid")]
		if !ok {
			writeError(w, errorf(http.StatusNotFound, "invalid session id", "session %s does not exist", r.PathValue("sid")))
			return
		}
		value, werr := fn(sess, r)
		if werr != nil {
			writeError(w, werr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"value": value})
	})
}

// handleWindow is handle for commands that need an open current window.
func (s *Server) handleWindow(pattern string, fn sessionHandler) {
	s.handle(pattern, func(sess *session, r *http.Request) (interface{}, *wdError) {
		if sess.current == nil {
			return nil, errorf(http.StatusNotFound, "no such window", "current browsing context is no longer open")
		}
		return fn(sess, r)
	})
}

// handleElement resolves {eid} in the current browsing context.
func (s *Server) handleElement(pattern string, fn func(sess *session, n *Node, r *http.Request) (interface{}, *wdError)) {
	s.handleWindow(pattern, func(sess *session, r *http.Request) (interface{}, *wdError) {
		n, werr := sess.resolve(r.PathValue("eid"))
		if werr != nil {
			return nil, werr
		}
		return fn(sess, n, r)
	})
}

func decodeBody(r *http.Request, v interface{}) *wdError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalidArgument("malformed body: %v", err)
	}
	return nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"value": map[string]interface{}{"ready": true, "message": "fake driver ready"},
		})
	})
	s.mux.HandleFunc("POST /session", s.newSession)
	s.handle("DELETE /session/{sid}", func(sess *session, r *http.Request) (interface{}, *wdError) {
		delete(s.sessions, sess.id)
		return nil, nil
	})

	s.handle("GET /session/{sid}/timeouts", func(sess *session, r *http.Request) (interface{}, *wdError) {
		return sess.timeouts, nil
	})
	s.handle("POST /session/{sid}/timeouts", func(sess *session, r *http.Request) (interface{}, *wdError) {
		var req map[string]int64
		if werr := decodeBody(r, &req); werr != nil {
			return nil, werr
		}
		for k, v := range req {
			switch k {
			case "script", "pageLoad", "implicit":
				sess.timeouts[k] = v
			default:
				return nil, invalidArgument("unknown timeout %q", k)
			}
		}
		return nil, nil
	})

	s.routeNavigation()
	s.routeWindows()
	s.routeElements()
	s.routeScripts()
}

func (s *Server) routeNavigation() {
	s.handleWindow("POST /session/{sid}/url", func(sess *session, r *http.Request) (interface{}, *wdError) {
		var req struct {
			URL string `json:"url"`
		}
		if werr := decodeBody(r, &req); werr != nil {
			return nil, werr
		}
		u, err := url.Parse(req.URL)
		if err != nil || !u.IsAbs() {
			return nil, invalidArgument("%q is not an absolute URL", req.URL)
		}
		sess.navigateTop(req.URL)
		return nil, nil
	})
	s.handleWindow("GET /session/{sid}/url", func(sess *session, r *http.Request) (interface{}, *wdError) {
		return sess.current.doc().url, nil
	})
	s.handleWindow("GET /session/{sid}/title", func(sess *session, r *http.Request) (interface{}, *wdError) {
		return sess.current.doc().title, nil
	})
	s.handleWindow("POST /session/{sid}/back", func(sess *session, r *http.Request) (interface{}, *wdError) {
		if sess.current.pos > 0 {
			sess.current.pos--
		}
		sess.stack = nil
		return nil, nil
	})
	s.handleWindow("POST /session/{sid}/forward", func(sess *session, r *http.Request) (interface{}, *wdError) {
		if sess.current.pos < len(sess.current.history)-1 {
			sess.current.pos++
		}
		sess.stack = nil
		return nil, nil
	})
	s.handleWindow("POST /session/{sid}/refresh", func(sess *session, r *http.Request) (interface{}, *wdError) {
		w := sess.current
		w.history[w.pos] = s.load(w.doc().url, w, nil, nil)
		sess.stack = nil
		return nil, nil
	})
	s.handleWindow("GET /session/{sid}/source", func(sess *session, r *http.Request) (interface{}, *wdError) {
		var b strings.Builder
		sess.doc().body.render(&b)
		return b.String(), nil
	})
	s.handleWindow("GET /session/{sid}/screenshot", func(sess *session, r *http.Request) (interface{}, *wdError) {
		return base64.StdEncoding.EncodeToString([]byte("\x89PNG fake " + sess.current.doc().url)), nil
	})
}

func (s *Server) routeWindows() {
	s.handleWindow("GET /session/{sid}/window", func(sess *session, r *http.Request) (interface{}, *wdError) {
		return sess.current.handle, nil
	})
	s.handle("GET /session/{sid}/window/handles", func(sess *session, r *http.Request) (interface{}, *wdError) {
		handles := make([]string, 0, len(sess.windows))
		for _, w := range sess.windows {
			handles = append(handles, w.handle)
		}
		return handles, nil
	})
	s.handle("POST /session/{sid}/window/new", func(sess *session, r *http.Request) (interface{}, *wdError) {
		var req struct {
			Type string `json:"type"`
		}
		if werr := decodeBody(r, &req); werr != nil {
			return nil, werr
		}
		typ := req.Type
		if typ != "tab" {
			typ = "window"
		}
		w := s.newWindow(sess)
		return map[string]string{"handle": w.handle, "type": typ}, nil
	})
	s.handle("POST /session/{sid}/window", func(sess *session, r *http.Request) (interface{}, *wdError) {
		var req struct {
			Handle string `json:"handle"`
		}
		if werr := decodeBody(r, &req); werr != nil {
			return nil, werr
		}
		for _, w := range sess.windows {
			if w.handle == req.Handle {
				sess.current = w
				sess.stack = nil
				return nil, nil
			}
		}
		return nil, errorf(http.StatusNotFound, "no such window", "window %s not found", req.Handle)
	})
	s.handleWindow("DELETE /session/{sid}/window", func(sess *session, r *http.Request) (interface{}, *wdError) {
		closing := sess.current
		remaining := make([]string, 0, len(sess.windows))
		kept := sess.windows[:0]
		for _, w := range sess.windows {
			if w != closing {
				kept = append(kept, w)
				remaining = append(remaining, w.handle)
			}
		}
		sess.windows = kept
		sess.current = nil
		sess.stack = nil
		if len(sess.windows) == 0 {
			delete(s.sessions, sess.id)
		}
		return remaining, nil
	})
	s.handleWindow("GET /session/{sid}/window/rect", func(sess *session, r *http.Request) (interface{}, *wdError) {
		return sess.current.rect, nil
	})
	s.handleWindow("POST /session/{sid}/window/rect", func(sess *session, r *http.Request) (interface{}, *wdError) {
		var req map[string]*float64
		if werr := decodeBody(r, &req); werr != nil {
			return nil, werr
		}
		for k, v := range req {
			if v == nil {
				continue
			}
			sess.current.rect[k] = *v
		}
		return sess.current.rect, nil
	})
	s.handleWindow("POST /session/{sid}/window/maximize", func(sess *session, r *http.Request) (interface{}, *wdError) {
		sess.current.rect = map[string]float64{"x": 0, "y": 0, "width": 1920, "height": 1080}
		return sess.current.rect, nil
	})
	s.handleWindow("POST /session/{sid}/frame", func(sess *session, r *http.Request) (interface{}, *wdError) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		if werr := decodeBody(r, &req); werr != nil {
			return nil, werr
		}
		return nil, sess.switchFrame(req.ID)
	})
	s.handleWindow("POST /session/{sid}/frame/parent", func(sess *session, r *http.Request) (interface{}, *wdError) {
		if n := len(sess.stack); n > 0 {
			sess.stack = sess.stack[:n-1]
		}
		return nil, nil
	})
}

func (s *Server) routeElements() {
	find := func(root *Node, doc *document, r *http.Request, all bool) (interface{}, *wdError) {
		var req struct {
			Using string `json:"using"`
			Value string `json:"value"`
		}
		if werr := decodeBody(r, &req); werr != nil {
			return nil, werr
		}
		match, err := compileLocator(req.Using, req.Value)
		if err != nil {
			return nil, errorf(http.StatusBadRequest, "invalid selector", "%v", err)
		}
		nodes := root.descendants(match)
		if all {
			refs := make([]map[string]string, 0, len(nodes))
			for _, n := range nodes {
				refs = append(refs, doc.ref(n))
			}
			return refs, nil
		}
		if len(nodes) == 0 {
			return nil, noSuchElement("no element matches %s=%q", req.Using, req.Value)
		}
		return doc.ref(nodes[0]), nil
	}

	s.handleWindow("POST /session/{sid}/element", func(sess *session, r *http.Request) (interface{}, *wdError) {
		return find(sess.doc().body, sess.doc(), r, false)
	})
	s.handleWindow("POST /session/{sid}/elements", func(sess *session, r *http.Request) (interface{}, *wdError) {
		return find(sess.doc().body, sess.doc(), r, true)
	})
	s.handleWindow("GET /session/{sid}/element/active", func(sess *session, r *http.Request) (interface{}, *wdError) {
		doc := sess.doc()
		if doc.focus != nil && !doc.focus.detached {
			return doc.ref(doc.focus), nil
		}
		return doc.ref(doc.body), nil
	})
	s.handleElement("POST /session/{sid}/element/{eid}/element", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		return find(n, sess.doc(), r, false)
	})
	s.handleElement("POST /session/{sid}/element/{eid}/elements", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		return find(n, sess.doc(), r, true)
	})

	s.handleElement("POST /session/{sid}/element/{eid}/click", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		if _, disabled := n.Attrs["disabled"]; disabled {
			return nil, errorf(http.StatusBadRequest, "element not interactable", "element is disabled")
		}
		if id := n.ID(); id != "" {
			s.clicks[id]++
		}
		sess.doc().focus = n
		if n.Tag == "a" && n.Attrs["href"] != "" {
			sess.followLink(n)
		}
		return nil, nil
	})
	s.handleElement("POST /session/{sid}/element/{eid}/clear", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		delete(n.Attrs, "value")
		return nil, nil
	})
	s.handleElement("POST /session/{sid}/element/{eid}/value", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		var req struct {
			Text *string `json:"text"`
		}
		if werr := decodeBody(r, &req); werr != nil {
			return nil, werr
		}
		if req.Text == nil {
			return nil, invalidArgument("missing text")
		}
		n.Attrs["value"] += *req.Text
		sess.doc().focus = n
		return nil, nil
	})
	s.handleElement("GET /session/{sid}/element/{eid}/text", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		return n.textContent(), nil
	})
	s.handleElement("GET /session/{sid}/element/{eid}/name", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		return n.Tag, nil
	})
	s.handleElement("GET /session/{sid}/element/{eid}/attribute/{name}", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		if v, ok := n.Attrs[r.PathValue("name")]; ok {
			return v, nil
		}
		return nil, nil
	})
	s.handleElement("GET /session/{sid}/element/{eid}/property/{name}", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		switch name := r.PathValue("name"); name {
		case "tagName":
			return strings.ToUpper(n.Tag), nil
		case "textContent":
			return n.textContent(), nil
		default:
			if v, ok := n.Attrs[name]; ok {
				return v, nil
			}
		}
		return nil, nil
	})
	s.handleElement("GET /session/{sid}/element/{eid}/css/{name}", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		if r.PathValue("name") == "display" {
			if _, hidden := n.Attrs["hidden"]; hidden {
				return "none", nil
			}
			return "block", nil
		}
		return "", nil
	})
	s.handleElement("GET /session/{sid}/element/{eid}/rect", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		return map[string]float64{"x": 8, "y": 8, "width": 100, "height": 20}, nil
	})
	s.handleElement("GET /session/{sid}/element/{eid}/displayed", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		_, hidden := n.Attrs["hidden"]
		return !hidden, nil
	})
	s.handleElement("GET /session/{sid}/element/{eid}/enabled", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		_, disabled := n.Attrs["disabled"]
		return !disabled, nil
	})
	s.handleElement("GET /session/{sid}/element/{eid}/selected", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		_, checked := n.Attrs["checked"]
		_, selected := n.Attrs["selected"]
		return checked || selected, nil
	})
	s.handleElement("GET /session/{sid}/element/{eid}/screenshot", func(sess *session, n *Node, r *http.Request) (interface{}, *wdError) {
		return base64.StdEncoding.EncodeToString([]byte("\x89PNG fake " + n.Tag)), nil
	})
}

func (s *Server) routeScripts() {
	exec := func(sess *session, r *http.Request) (interface{}, *wdError) {
		var req struct {
			Script *string        `json:"script"`
			Args   *[]interface{} `json:"args"`
		}
		if werr := decodeBody(r, &req); werr != nil {
			return nil, werr
		}
		if req.Script == nil || req.Args == nil {
			return nil, invalidArgument("script and args are required")
		}

		doc := sess.doc()
		args := make([]interface{}, len(*req.Args))
		for i, a := range *req.Args {
			v, werr := sess.deserialize(a)
			if werr != nil {
				return nil, werr
			}
			args[i] = v
		}

		fn, ok := s.scripts[*req.Script]
		if !ok {
			return nil, nil
		}
		result, err := fn(&ScriptContext{Args: args, doc: doc})
		if err != nil {
			return nil, errorf(http.StatusInternalServerError, "javascript error", "%v", err)
		}
		return serialize(doc, result), nil
	}
	s.handleWindow("POST /session/{sid}/execute/sync", exec)
	s.handleWindow("POST /session/{sid}/execute/async", exec)
}

// ScriptContext is passed to registered scripts.
type ScriptContext struct {
	// Args holds the script arguments with element references replaced by
	// their *Node.
	Args []interface{}
	doc  *document
}

// Element returns argument i as a node, or nil.
func (sc *ScriptContext) Element(i int) *Node {
	if i < 0 || i >= len(sc.Args) {
		return nil
	}
	n, _ := sc.Args[i].(*Node)
	return n
}

// GetElementByID finds an attached node by DOM id in the current document.
func (sc *ScriptContext) GetElementByID(id string) *Node {
	nodes := sc.doc.body.descendants(func(n *Node) bool { return n.ID() == id })
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Body returns the document body.
func (sc *ScriptContext) Body() *Node {
	return sc.doc.body
}

func (s *Server) newSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var req struct {
		Capabilities struct {
			AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
		} `json:"capabilities"`
	}
	if werr := decodeBody(r, &req); werr != nil {
		writeError(w, werr)
		return
	}
	if req.Capabilities.AlwaysMatch["browserName"] == "unsupported" {
		writeError(w, errorf(http.StatusInternalServerError, "session not created", "browser is not supported"))
		return
	}

	sess := &session{
		srv:      s,
		id:       uuid.NewString(),
		timeouts: map[string]int64{"script": 30000, "pageLoad": 300000, "implicit": 0},
	}
	sess.current = s.newWindow(sess)
	s.sessions[sess.id] = sess

	caps := map[string]interface{}{"browserName": "fake", "browserVersion": "1.0"}
	for k, v := range req.Capabilities.AlwaysMatch {
		caps[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"value": map[string]interface{}{"sessionId": sess.id, "capabilities": caps},
	})
}

func (s *Server) newWindow(sess *session) *window {
	w := &window{
		handle: uuid.NewString(),
		rect:   map[string]float64{"x": 0, "y": 0, "width": 1280, "height": 720},
	}
	w.history = []*document{s.load("about:blank", w, nil, nil)}
	sess.windows = append(sess.windows, w)
	return w
}

// load instantiates the page registered for rawURL's path.
func (s *Server) load(rawURL string, w *window, parent *document, iframe *Node) *document {
	var page Page
	if u, err := url.Parse(rawURL); err == nil {
		page = s.pages[u.Path]
	}
	return &document{
		srv:    s,
		url:    rawURL,
		title:  page.Title,
		body:   page.instantiate(),
		window: w,
		parent: parent,
		iframe: iframe,
		ids:    map[*Node]string{},
		nodes:  map[string]*Node{},
		frames: map[*Node]*document{},
	}
}

type window struct {
	handle  string
	history []*document
	pos     int
	rect    map[string]float64
}

func (w *window) doc() *document {
	return w.history[w.pos]
}

type document struct {
	srv    *Server
	url    string
	title  string
	body   *Node
	focus  *Node
	window *window
	parent *document // nil for top-level documents
	iframe *Node     // the iframe in parent hosting this document
	ids    map[*Node]string
	nodes  map[string]*Node
	frames map[*Node]*document
}

// ref returns the web element reference for n, issuing an id on first use.
func (d *document) ref(n *Node) map[string]string {
	id, ok := d.ids[n]
	if !ok {
		id = uuid.NewString()
		d.ids[n] = id
		d.nodes[id] = n
		d.srv.owners[id] = d
	}
	return map[string]string{w3cElementKey: id}
}

func (d *document) frameDoc(iframe *Node) *document {
	fd, ok := d.frames[iframe]
	if !ok {
		src := iframe.Attrs["src"]
		if base, err := url.Parse(d.url); err == nil {
			if u, err := base.Parse(src); err == nil {
				src = u.String()
			}
		}
		fd = d.srv.load(src, d.window, d, iframe)
		d.frames[iframe] = fd
	}
	return fd
}

type session struct {
	srv      *Server
	id       string
	windows  []*window
	current  *window
	stack    []*document // frame documents below the current window's document
	timeouts map[string]int64
}

// doc returns the document of the current browsing context.
func (sess *session) doc() *document {
	if n := len(sess.stack); n > 0 {
		return sess.stack[n-1]
	}
	return sess.current.doc()
}

// resolve maps an element id to a node of the current browsing context.
func (sess *session) resolve(id string) (*Node, *wdError) {
	doc := sess.doc()
	if n, ok := doc.nodes[id]; ok {
		if n.detached {
			return nil, errorf(http.StatusNotFound, "stale element reference", "element %s is no longer attached to the DOM", id)
		}
		return n, nil
	}
	if owner, ok := sess.srv.owners[id]; ok && owner.parent == nil && owner.window == sess.current && owner != doc && doc.parent == nil {
		return nil, errorf(http.StatusNotFound, "stale element reference", "element %s belongs to a document that is no longer active", id)
	}
	return nil, noSuchElement("element %s is not known in the current browsing context", id)
}

// deserialize replaces web element references in a script argument.
func (sess *session) deserialize(v interface{}) (interface{}, *wdError) {
	switch t := v.(type) {
	case map[string]interface{}:
		if raw, ok := t[w3cElementKey]; ok {
			id, ok := raw.(string)
			if !ok {
				return nil, invalidArgument("element reference must be a string")
			}
			return sess.resolve(id)
		}
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			d, werr := sess.deserialize(e)
			if werr != nil {
				return nil, werr
			}
			out[k] = d
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			d, werr := sess.deserialize(e)
			if werr != nil {
				return nil, werr
			}
			out[i] = d
		}
		return out, nil
	}
	return v, nil
}

// serialize converts nodes in a script result into element references.
func serialize(doc *document, v interface{}) interface{} {
	switch t := v.(type) {
	case *Node:
		return doc.ref(t)
	case []*Node:
		out := make([]interface{}, len(t))
		for i, n := range t {
			out[i] = doc.ref(n)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = serialize(doc, e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = serialize(doc, e)
		}
		return out
	}
	return v
}

func (sess *session) navigateTop(rawURL string) {
	w := sess.current
	w.history = append(w.history[:w.pos+1], sess.srv.load(rawURL, w, nil, nil))
	w.pos = len(w.history) - 1
	sess.stack = nil
}

func (sess *session) followLink(a *Node) {
	doc := sess.doc()
	target := a.Attrs["href"]
	if base, err := url.Parse(doc.url); err == nil {
		if u, err := base.Parse(target); err == nil {
			target = u.String()
		}
	}
	if doc.parent == nil {
		sess.navigateTop(target)
		return
	}
	nd := sess.srv.load(target, doc.window, doc.parent, doc.iframe)
	doc.parent.frames[doc.iframe] = nd
	sess.stack[len(sess.stack)-1] = nd
}

// switchFrame handles the switch to frame command.
func (sess *session) switchFrame(raw json.RawMessage) *wdError {
	var id interface{}
	if err := json.Unmarshal(raw, &id); err != nil {
		return invalidArgument("malformed frame id")
	}
	doc := sess.doc()
	switch t := id.(type) {
	case nil:
		sess.stack = nil
		return nil
	case float64:
		iframes := doc.body.descendants(func(n *Node) bool { return n.Tag == "iframe" })
		idx := int(t)
		if float64(idx) != t || idx < 0 || idx >= len(iframes) {
			return errorf(http.StatusNotFound, "no such frame", "no frame at index %v", t)
		}
		sess.stack = append(sess.stack, doc.frameDoc(iframes[idx]))
		return nil
	case map[string]interface{}:
		eid, _ := t[w3cElementKey].(string)
		if eid == "" {
			return invalidArgument("frame id must be null, a number or an element reference")
		}
		n, werr := sess.resolve(eid)
		if werr != nil {
			return werr
		}
		if n.Tag != "iframe" && n.Tag != "frame" {
			return errorf(http.StatusNotFound, "no such frame", "element %s is not a frame", eid)
		}
		sess.stack = append(sess.stack, doc.frameDoc(n))
		return nil
	}
	return invalidArgument("frame id must be null, a number or an element reference")
}
