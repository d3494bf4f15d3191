package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/wdclient/pkg/core"
	"github.com/devicelab-dev/wdclient/pkg/flow"
	"github.com/devicelab-dev/wdclient/pkg/report"
	"github.com/devicelab-dev/wdclient/pkg/webdriver"
	"github.com/devicelab-dev/wdclient/pkg/webdriver/wdtest"
)

const readValueScript = "return document.getElementById('q').value;"

func newFixtureServer(t *testing.T) *wdtest.Server {
	t.Helper()
	srv := wdtest.NewServer()
	t.Cleanup(srv.Close)

	srv.AddPage("/index.html", wdtest.Page{
		Title: "Home",
		Body: []*wdtest.Node{
			wdtest.El("h1", map[string]string{"id": "title"}, "Welcome home"),
			wdtest.Link("next", "next.html", "Next page"),
			wdtest.Input("q"),
			wdtest.Button("go", "Go"),
			wdtest.El("span", map[string]string{"id": "spinner", "hidden": ""}, "loading"),
			wdtest.IFrame("frame", "frame.html"),
		},
	})
	srv.AddPage("/next.html", wdtest.Page{
		Title: "Next",
		Body:  []*wdtest.Node{wdtest.El("p", map[string]string{"id": "msg"}, "You reached the next page")},
	})
	srv.AddPage("/frame.html", wdtest.Page{
		Title: "Frame",
		Body:  []*wdtest.Node{wdtest.Button("inner", "Inner button")},
	})
	srv.HandleScript("return 'hello';", func(sc *wdtest.ScriptContext) (interface{}, error) {
		return "hello", nil
	})
	srv.HandleScript(readValueScript, func(sc *wdtest.ScriptContext) (interface{}, error) {
		n := sc.GetElementByID("q")
		if n == nil {
			return nil, errors.New("no input")
		}
		return n.Attrs["value"], nil
	})
	return srv
}

// parseFlow parses steps with a config document that opens index.html.
func parseFlow(t *testing.T, srv *wdtest.Server, name, steps string) *flow.Flow {
	t.Helper()
	src := fmt.Sprintf("name: %s\nurl: %s\n---\n%s", name, srv.PageURL("/index.html"), steps)
	f, err := flow.Parse([]byte(src), name+".yaml")
	require.NoError(t, err)
	return f
}

func run(t *testing.T, srv *wdtest.Server, cfg RunnerConfig, flows ...*flow.Flow) *core.SuiteResult {
	t.Helper()
	cfg.Endpoint = srv.URL()
	suite, err := New(cfg).Run(context.Background(), flows)
	require.NoError(t, err)
	require.Len(t, suite.Flows, len(flows))
	return suite
}

func statuses(steps []core.StepResult) []core.StepStatus {
	out := make([]core.StepStatus, len(steps))
	for i, s := range steps {
		out[i] = s.Status
	}
	return out
}

func TestRunner_AllStepsPass(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "navigate", `
- assertVisible: "#title"
- assertText:
    id: title
    equals: Welcome home
- click:
    linkText: Next page
- assertText:
    css: "#msg"
    contains: next page
- back
- assertNotVisible:
    id: spinner
- goto: next.html
- assertVisible:
    xpath: //p[@id='msg']
`)

	suite := run(t, srv, RunnerConfig{}, f)
	res := suite.Flows[0]

	assert.Equal(t, core.StatusPassed, res.Status, "error: %s", res.Error)
	assert.Equal(t, 8, res.PassedSteps)
	assert.NotEmpty(t, res.SessionID)
	assert.NotEmpty(t, suite.RunID)
	assert.Equal(t, suite.RunID, res.RunID)
	assert.True(t, suite.Success())
	assert.Equal(t, 1, srv.Clicks("next"))
	assert.Zero(t, srv.SessionCount(), "session should be deleted after the flow")
}

func TestRunner_FailureStopsFlow(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "mismatch", `
- assertText:
    id: title
    equals: Goodbye
- click: "#go"
- refresh
`)

	res := run(t, srv, RunnerConfig{}, f).Flows[0]

	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, []core.StepStatus{core.StatusFailed, core.StatusSkipped, core.StatusSkipped}, statuses(res.Steps))
	assert.Equal(t, core.ErrCategoryAssertion, res.Steps[0].Category)
	assert.Contains(t, res.Error, `text is "Welcome home", want "Goodbye"`)
	assert.Equal(t, "Welcome home", res.Steps[0].Output)
	assert.Zero(t, srv.Clicks("go"))
	assert.Zero(t, srv.SessionCount())
}

func TestRunner_MissingElementFails(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "missing", `
- click: "#does-not-exist"
`)

	res := run(t, srv, RunnerConfig{}, f).Flows[0]

	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, core.ErrCategoryAssertion, res.Steps[0].Category)
	assert.Contains(t, res.Error, "no such element")
}

func TestRunner_InvalidSelectorIsErrored(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "bad-selector", `
- click: "div > p"
`)

	res := run(t, srv, RunnerConfig{}, f).Flows[0]

	assert.Equal(t, core.StatusErrored, res.Status)
	assert.Equal(t, core.ErrCategoryConfig, res.Steps[0].Category)
}

func TestRunner_OptionalStepWarns(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "optional", `
- click:
    id: cookie-banner
    optional: true
- click: "#go"
`)

	res := run(t, srv, RunnerConfig{}, f).Flows[0]

	assert.Equal(t, core.StatusWarned, res.Status)
	assert.Equal(t, []core.StepStatus{core.StatusWarned, core.StatusPassed}, statuses(res.Steps))
	assert.Empty(t, res.Error)
	assert.Equal(t, 1, srv.Clicks("go"))
}

func TestRunner_WaitForTimeout(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "wait", `
- waitFor:
    id: title
- waitFor:
    css: ".never"
    timeout: 150
    interval: 20
`)

	res := run(t, srv, RunnerConfig{}, f).Flows[0]

	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, core.StatusPassed, res.Steps[0].Status)
	assert.Equal(t, core.ErrCategoryTimeout, res.Steps[1].Category)
	assert.Contains(t, res.Error, "not found within 150ms")
}

func TestRunner_VariablesAndScriptOutput(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "vars", `
- execute:
    script: return 'hello';
    output: greeting
- inputText:
    id: q
    text: ${greeting} ${WHO}
- execute:
    script: "return document.getElementById('q').value;"
    output: typed
- assertText:
    id: title
    contains: ${HOME_WORD}
`)

	res := run(t, srv, RunnerConfig{Env: map[string]string{"WHO": "world", "HOME_WORD": "home"}}, f).Flows[0]

	require.Equal(t, core.StatusPassed, res.Status, "error: %s", res.Error)
	assert.Equal(t, "hello", res.Steps[0].Output)
	assert.Equal(t, "hello world", res.Steps[2].Output)
}

func TestRunner_FlowEnvOverridesRunEnv(t *testing.T) {
	srv := newFixtureServer(t)
	src := fmt.Sprintf(`url: %s
env:
  WORD: Welcome
---
- assertText:
    id: title
    contains: ${WORD}
`, srv.PageURL("/index.html"))
	f, err := flow.Parse([]byte(src), "env.yaml")
	require.NoError(t, err)

	res := run(t, srv, RunnerConfig{Env: map[string]string{"WORD": "Goodbye"}}, f).Flows[0]
	assert.Equal(t, core.StatusPassed, res.Status, "error: %s", res.Error)
	assert.Equal(t, "env.yaml", res.Name)
}

func TestRunner_WindowsAndFrames(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "windows", `
- enterFrame: "#frame"
- click: "#inner"
- enterParentFrame
- click: "#go"
- newWindow:
    tab: true
    switch: true
- goto: next.html
- assertVisible: "#msg"
- closeWindow
- switchToWindow: 0
- enterFrame: 0
- assertVisible: "#inner"
`)

	res := run(t, srv, RunnerConfig{}, f).Flows[0]

	require.Equal(t, core.StatusPassed, res.Status, "error: %s", res.Error)
	assert.Equal(t, 1, srv.Clicks("inner"))
	assert.Equal(t, 1, srv.Clicks("go"))

	handle, ok := res.Steps[8].Output.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(res.Steps[0].Context, handle+"/element:"), res.Steps[0].Context)
	assert.Equal(t, handle, res.Steps[2].Context)
	assert.Equal(t, handle+"/index:0", res.Steps[10].Context)
	assert.Equal(t, "<no window>", res.Steps[7].Context)
}

func TestRunner_GotoLeavesFrame(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "goto-frame", `
- enterFrame: "#frame"
- goto: index.html
- click: "#go"
`)

	res := run(t, srv, RunnerConfig{}, f).Flows[0]

	require.Equal(t, core.StatusPassed, res.Status, "error: %s", res.Error)
	assert.Equal(t, 1, srv.Clicks("go"))
	assert.Contains(t, res.Steps[0].Context, "/element:")
	assert.NotContains(t, res.Steps[1].Context, "/")
}

func TestRunner_SwitchToWindowIndexOutOfRange(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "switch", `
- switchToWindow: 3
`)

	res := run(t, srv, RunnerConfig{}, f).Flows[0]

	assert.Equal(t, core.StatusErrored, res.Status)
	assert.Contains(t, res.Error, "window index 3 out of range, 1 windows open")
}

func TestRunner_ClosingLastWindowEndsSession(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "close-last", `
- closeWindow
`)

	res := run(t, srv, RunnerConfig{}, f).Flows[0]

	assert.Equal(t, core.StatusPassed, res.Status, "error: %s", res.Error)
	assert.Zero(t, srv.SessionCount())
}

func TestRunner_StepAfterSessionEndedIsErrored(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "after-close", `
- closeWindow
- refresh
`)

	res := run(t, srv, RunnerConfig{}, f).Flows[0]

	assert.Equal(t, core.StatusErrored, res.Status)
	assert.Equal(t, core.ErrCategorySession, res.Steps[1].Category)
}

func TestRunner_SessionNotCreated(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "unsupported", `
- refresh
- back
`)
	f.Config.Capabilities = map[string]interface{}{"browserName": "unsupported"}

	res := run(t, srv, RunnerConfig{Capabilities: map[string]interface{}{"browserName": "fake"}}, f).Flows[0]

	assert.Equal(t, core.StatusErrored, res.Status)
	assert.Contains(t, res.Error, "start session")
	assert.Equal(t, []core.StepStatus{core.StatusSkipped, core.StatusSkipped}, statuses(res.Steps))
}

func TestRunner_SessionTimeouts(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "timeouts", "- refresh\n")
	script := int64(5000)

	res := run(t, srv, RunnerConfig{Timeouts: webdriver.Timeouts{Script: &script}}, f).Flows[0]
	require.Equal(t, core.StatusPassed, res.Status)
	assert.Contains(t, srv.Requests(), "POST /session/"+res.SessionID+"/timeouts")
}

func TestRunner_StopOnFail(t *testing.T) {
	srv := newFixtureServer(t)
	failing := parseFlow(t, srv, "first", `
- assertVisible: "#spinner"
`)
	second := parseFlow(t, srv, "second", "- refresh\n")

	suite := run(t, srv, RunnerConfig{StopOnFail: true}, failing, second)

	assert.Equal(t, core.StatusFailed, suite.Flows[0].Status)
	assert.Equal(t, core.StatusSkipped, suite.Flows[1].Status)
	assert.Equal(t, 1, suite.FailedFlows)
	assert.Equal(t, 1, suite.SkippedFlows)
	assert.False(t, suite.Success())
}

func TestRunner_CancelledRunSkipsFlows(t *testing.T) {
	srv := newFixtureServer(t)
	f := parseFlow(t, srv, "cancelled", "- refresh\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	suite, err := New(RunnerConfig{Endpoint: srv.URL()}).Run(ctx, []*flow.Flow{f})
	require.NoError(t, err)

	assert.Equal(t, core.StatusSkipped, suite.Flows[0].Status)
	assert.Equal(t, "run cancelled", suite.Flows[0].Error)
	assert.Zero(t, len(srv.Requests()))
}

func TestRunner_Parallel(t *testing.T) {
	srv := newFixtureServer(t)
	var flows []*flow.Flow
	for i := 0; i < 6; i++ {
		flows = append(flows, parseFlow(t, srv, fmt.Sprintf("flow-%d", i), `
- click: "#go"
- inputText:
    id: q
    text: parallel
- assertText:
    id: title
    equals: Welcome home
`))
	}

	var (
		mu      sync.Mutex
		started []int
		steps   int
	)
	cfg := RunnerConfig{
		Parallelism: 3,
		OnFlowStart: func(flowIdx, total int, name, file string) {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, flowIdx)
			assert.Equal(t, 6, total)
		},
		OnStepComplete: func(flowIdx int, step core.StepResult) {
			mu.Lock()
			defer mu.Unlock()
			steps++
		},
	}
	suite := run(t, srv, cfg, flows...)

	assert.Equal(t, 6, suite.PassedFlows)
	assert.Len(t, started, 6)
	assert.Equal(t, 18, steps)
	assert.Equal(t, 6, srv.Clicks("go"))
	assert.Zero(t, srv.SessionCount())

	sessions := map[string]bool{}
	for i, res := range suite.Flows {
		assert.Equal(t, fmt.Sprintf("flow-%d", i), res.Name)
		sessions[res.SessionID] = true
	}
	assert.Len(t, sessions, 6, "every flow runs in its own session")
}

func TestRunner_WritesReport(t *testing.T) {
	srv := newFixtureServer(t)
	dir := filepath.Join(t.TempDir(), "report")
	ok := parseFlow(t, srv, "ok", "- refresh\n")
	bad := parseFlow(t, srv, "bad", `- assertVisible: "#spinner"`+"\n")

	suite := run(t, srv, RunnerConfig{OutputDir: dir}, ok, bad)

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var idx report.Index
	require.NoError(t, json.Unmarshal(data, &idx))

	assert.Equal(t, suite.RunID, idx.RunID)
	assert.Equal(t, core.StatusFailed, idx.Status)
	assert.Equal(t, 1, idx.Summary.Passed)
	assert.Equal(t, 1, idx.Summary.Failed)
	assert.Equal(t, suite.Flows[1].SessionID, idx.Flows[1].SessionID)

	data, err = os.ReadFile(filepath.Join(dir, "flows", "flow-001.json"))
	require.NoError(t, err)
	var detail core.FlowResult
	require.NoError(t, json.Unmarshal(data, &detail))
	assert.Equal(t, "bad", detail.Name)
	assert.Equal(t, core.StatusFailed, detail.Status)
	require.Len(t, detail.Steps, 1)
	assert.Equal(t, core.ErrCategoryAssertion, detail.Steps[0].Category)
}
