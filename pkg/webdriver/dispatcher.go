package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Command is a WebDriver endpoint. Path may contain {placeholders} that are
// filled from the params passed to send.
type Command struct {
	Name   string
	Method string
	Path   string
}

// Commands used by the client.
var (
	cmdNewSession        = Command{"new session", http.MethodPost, "/session"}
	cmdDeleteSession     = Command{"delete session", http.MethodDelete, "/session/{sessionId}"}
	cmdStatus            = Command{"status", http.MethodGet, "/status"}
	cmdGetTimeouts       = Command{"get timeouts", http.MethodGet, "/session/{sessionId}/timeouts"}
	cmdSetTimeouts       = Command{"set timeouts", http.MethodPost, "/session/{sessionId}/timeouts"}
	cmdNavigateTo        = Command{"navigate to", http.MethodPost, "/session/{sessionId}/url"}
	cmdGetCurrentURL     = Command{"get current url", http.MethodGet, "/session/{sessionId}/url"}
	cmdBack              = Command{"back", http.MethodPost, "/session/{sessionId}/back"}
	cmdForward           = Command{"forward", http.MethodPost, "/session/{sessionId}/forward"}
	cmdRefresh           = Command{"refresh", http.MethodPost, "/session/{sessionId}/refresh"}
	cmdGetTitle          = Command{"get title", http.MethodGet, "/session/{sessionId}/title"}
	cmdGetWindowHandle   = Command{"get window handle", http.MethodGet, "/session/{sessionId}/window"}
	cmdCloseWindow       = Command{"close window", http.MethodDelete, "/session/{sessionId}/window"}
	cmdSwitchToWindow    = Command{"switch to window", http.MethodPost, "/session/{sessionId}/window"}
	cmdGetWindowHandles  = Command{"get window handles", http.MethodGet, "/session/{sessionId}/window/handles"}
	cmdNewWindow         = Command{"new window", http.MethodPost, "/session/{sessionId}/window/new"}
	cmdSwitchToFrame     = Command{"switch to frame", http.MethodPost, "/session/{sessionId}/frame"}
	cmdSwitchToParent    = Command{"switch to parent frame", http.MethodPost, "/session/{sessionId}/frame/parent"}
	cmdGetWindowRect     = Command{"get window rect", http.MethodGet, "/session/{sessionId}/window/rect"}
	cmdSetWindowRect     = Command{"set window rect", http.MethodPost, "/session/{sessionId}/window/rect"}
	cmdMaximizeWindow    = Command{"maximize window", http.MethodPost, "/session/{sessionId}/window/maximize"}
	cmdGetActiveElement  = Command{"get active element", http.MethodGet, "/session/{sessionId}/element/active"}
	cmdFindElement       = Command{"find element", http.MethodPost, "/session/{sessionId}/element"}
	cmdFindElements      = Command{"find elements", http.MethodPost, "/session/{sessionId}/elements"}
	cmdFindFromElement   = Command{"find element from element", http.MethodPost, "/session/{sessionId}/element/{elementId}/element"}
	cmdFindAllFromElem   = Command{"find elements from element", http.MethodPost, "/session/{sessionId}/element/{elementId}/elements"}
	cmdIsSelected        = Command{"is element selected", http.MethodGet, "/session/{sessionId}/element/{elementId}/selected"}
	cmdIsDisplayed       = Command{"is element displayed", http.MethodGet, "/session/{sessionId}/element/{elementId}/displayed"}
	cmdGetAttribute      = Command{"get element attribute", http.MethodGet, "/session/{sessionId}/element/{elementId}/attribute/{name}"}
	cmdGetProperty       = Command{"get element property", http.MethodGet, "/session/{sessionId}/element/{elementId}/property/{name}"}
	cmdGetCSSValue       = Command{"get element css value", http.MethodGet, "/session/{sessionId}/element/{elementId}/css/{name}"}
	cmdGetText           = Command{"get element text", http.MethodGet, "/session/{sessionId}/element/{elementId}/text"}
	cmdGetTagName        = Command{"get element tag name", http.MethodGet, "/session/{sessionId}/element/{elementId}/name"}
	cmdGetRect           = Command{"get element rect", http.MethodGet, "/session/{sessionId}/element/{elementId}/rect"}
	cmdIsEnabled         = Command{"is element enabled", http.MethodGet, "/session/{sessionId}/element/{elementId}/enabled"}
	cmdClick             = Command{"element click", http.MethodPost, "/session/{sessionId}/element/{elementId}/click"}
	cmdClear             = Command{"element clear", http.MethodPost, "/session/{sessionId}/element/{elementId}/clear"}
	cmdSendKeys          = Command{"element send keys", http.MethodPost, "/session/{sessionId}/element/{elementId}/value"}
	cmdElementScreenshot = Command{"take element screenshot", http.MethodGet, "/session/{sessionId}/element/{elementId}/screenshot"}
	cmdGetSource         = Command{"get page source", http.MethodGet, "/session/{sessionId}/source"}
	cmdExecuteSync       = Command{"execute script", http.MethodPost, "/session/{sessionId}/execute/sync"}
	cmdExecuteAsync      = Command{"execute async script", http.MethodPost, "/session/{sessionId}/execute/async"}
	cmdScreenshot        = Command{"take screenshot", http.MethodGet, "/session/{sessionId}/screenshot"}
)

// Params fill the placeholders of a Command path.
type Params map[string]string

// expand substitutes path placeholders. Values are path-escaped.
func (c Command) expand(params Params) (string, error) {
	path := c.Path
	for {
		start := strings.IndexByte(path, '{')
		if start < 0 {
			return path, nil
		}
		end := strings.IndexByte(path[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("command %q: unterminated placeholder", c.Name)
		}
		key := path[start+1 : start+end]
		val, ok := params[key]
		if !ok || val == "" {
			return "", fmt.Errorf("command %q: missing path parameter %q", c.Name, key)
		}
		path = path[:start] + url.PathEscape(val) + path[start+end+1:]
	}
}

// dispatcher owns the HTTP transport to the driver endpoint.
type dispatcher struct {
	http    *http.Client
	baseURL string
	logger  *zap.Logger
}

func newDispatcher(endpoint string, httpClient *http.Client, logger *zap.Logger) *dispatcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dispatcher{
		http:    httpClient,
		baseURL: strings.TrimSuffix(endpoint, "/"),
		logger:  logger,
	}
}

// responseEnvelope is the W3C success response body.
type responseEnvelope struct {
	Value json.RawMessage `json:"value"`
}

// send performs one round trip and returns the "value" field of a successful
// response. It never retries: a failed command may already have changed
// browser state.
func (d *dispatcher) send(ctx context.Context, cmd Command, params Params, body interface{}) (json.RawMessage, error) {
	path, err := cmd.expand(params)
	if err != nil {
		return nil, serializationError(err.Error(), nil)
	}

	var reqBody io.Reader
	if body == nil && cmd.Method == http.MethodPost {
		body = struct{}{}
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, serializationError("marshal request for "+cmd.Name, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cmd.Method, d.baseURL+path, reqBody)
	if err != nil {
		return nil, connectionError(fmt.Errorf("create request: %w", err))
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := d.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		d.logger.Debug("command failed",
			zap.String("command", cmd.Name),
			zap.String("method", cmd.Method),
			zap.String("path", path),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, connectionError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectionError(fmt.Errorf("read response: %w", err))
	}

	d.logger.Debug("command",
		zap.String("command", cmd.Name),
		zap.String("method", cmd.Method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, MapError(resp.StatusCode, respBody)
	}

	var env responseEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, serializationError("parse response for "+cmd.Name, err)
	}
	if env.Value == nil {
		return nil, serializationError("response for "+cmd.Name+" has no value field", nil)
	}
	return env.Value, nil
}

// decode unmarshals a response value into v.
func decode(cmd Command, raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return serializationError("unexpected value for "+cmd.Name, err)
	}
	return nil
}
