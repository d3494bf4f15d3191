package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/devicelab-dev/wdclient/pkg/core"
	"github.com/devicelab-dev/wdclient/pkg/flow"
)

func readIndex(t *testing.T, dir string) Index {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatalf("read report.json: %v", err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		t.Fatalf("decode report.json: %v", err)
	}
	return idx
}

func testFlows() []*flow.Flow {
	return []*flow.Flow{
		{SourcePath: "flows/login.yaml", Config: flow.Config{Name: "Login"}, Steps: make([]flow.Step, 3)},
		{SourcePath: "flows/search.yaml", Steps: make([]flow.Step, 1)},
	}
}

func TestNewWriter_Skeleton(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewWriter(dir, "run-1", "http://localhost:4444", testFlows()); err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	idx := readIndex(t, dir)
	if idx.Version != Version || idx.RunID != "run-1" || idx.Status != core.StatusRunning {
		t.Errorf("unexpected index header %+v", idx)
	}
	if len(idx.Flows) != 2 {
		t.Fatalf("expected 2 flows, got %d", len(idx.Flows))
	}
	if idx.Flows[0].Name != "Login" || idx.Flows[1].Name != "search.yaml" {
		t.Errorf("unexpected names %q, %q", idx.Flows[0].Name, idx.Flows[1].Name)
	}
	if idx.Flows[1].DataFile != "flows/flow-001.json" {
		t.Errorf("unexpected data file %q", idx.Flows[1].DataFile)
	}
	if idx.Summary.Pending != 2 || idx.Summary.Total != 2 {
		t.Errorf("unexpected summary %+v", idx.Summary)
	}
}

func TestWriter_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "run-2", "http://localhost:4444", testFlows())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	if err := w.FlowStarted(0, "sess-a"); err != nil {
		t.Fatalf("FlowStarted() error = %v", err)
	}
	if idx := readIndex(t, dir); idx.Summary.Running != 1 || idx.Flows[0].SessionID != "sess-a" {
		t.Errorf("unexpected index after start %+v", idx.Summary)
	}

	result := core.FlowResult{
		Name:      "Login",
		SessionID: "sess-a",
		Status:    core.StatusFailed,
		Duration:  1500 * time.Millisecond,
		Error:     "text mismatch",
		Steps:     []core.StepResult{{Index: 0, Command: "goto", Status: core.StatusPassed}},
	}
	if err := w.FlowFinished(0, result); err != nil {
		t.Fatalf("FlowFinished() error = %v", err)
	}
	if err := w.FlowFinished(1, core.FlowResult{Status: core.StatusPassed}); err != nil {
		t.Fatalf("FlowFinished() error = %v", err)
	}
	if err := w.End(); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	idx := readIndex(t, dir)
	if idx.Status != core.StatusFailed {
		t.Errorf("run status = %s, want failed", idx.Status)
	}
	if idx.EndTime == nil {
		t.Error("end time not set")
	}
	if idx.Flows[0].Duration == nil || *idx.Flows[0].Duration != 1500 {
		t.Errorf("unexpected duration %v", idx.Flows[0].Duration)
	}
	if idx.Summary.Passed != 1 || idx.Summary.Failed != 1 {
		t.Errorf("unexpected summary %+v", idx.Summary)
	}

	data, err := os.ReadFile(filepath.Join(dir, "flows", "flow-000.json"))
	if err != nil {
		t.Fatalf("read flow file: %v", err)
	}
	var detail core.FlowResult
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("decode flow file: %v", err)
	}
	if detail.Error != "text mismatch" || len(detail.Steps) != 1 || detail.Steps[0].Command != "goto" {
		t.Errorf("unexpected flow detail %+v", detail)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestWriter_EndWithPendingFlowsIsRunning(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "run-3", "", testFlows())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if err := w.FlowFinished(0, core.FlowResult{Status: core.StatusPassed}); err != nil {
		t.Fatal(err)
	}
	if err := w.End(); err != nil {
		t.Fatal(err)
	}
	if got := w.Index().Status; got != core.StatusRunning {
		t.Errorf("status = %s, want running", got)
	}
}

func TestWriter_ConcurrentUpdates(t *testing.T) {
	flows := make([]*flow.Flow, 8)
	for i := range flows {
		flows[i] = &flow.Flow{SourcePath: "f.yaml"}
	}
	w, err := NewWriter(t.TempDir(), "run-4", "", flows)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := range flows {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = w.FlowStarted(i, "s")
			_ = w.FlowFinished(i, core.FlowResult{Status: core.StatusPassed})
		}(i)
	}
	wg.Wait()
	if err := w.End(); err != nil {
		t.Fatal(err)
	}

	idx := w.Index()
	if idx.Status != core.StatusPassed || idx.Summary.Passed != 8 {
		t.Errorf("unexpected final index %+v", idx.Summary)
	}
}
