package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/wdclient/pkg/core"
	"github.com/devicelab-dev/wdclient/pkg/flow"
)

// Writer provides thread-safe updates to a report directory. Flows running
// in parallel sessions report through the same Writer.
type Writer struct {
	mu    sync.Mutex
	dir   string
	index *Index
}

// NewWriter creates the report directory and writes the initial index with
// every flow pending.
func NewWriter(dir, runID, endpoint string, flows []*flow.Flow) (*Writer, error) {
	if err := os.MkdirAll(filepath.Join(dir, "flows"), 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	now := time.Now()
	index := &Index{
		Version:     Version,
		RunID:       runID,
		Endpoint:    endpoint,
		Status:      core.StatusRunning,
		StartTime:   now,
		LastUpdated: now,
		Flows:       make([]FlowEntry, len(flows)),
	}
	for i, f := range flows {
		name := f.Config.Name
		if name == "" {
			name = filepath.Base(f.SourcePath)
		}
		index.Flows[i] = FlowEntry{
			Index:      i,
			Name:       name,
			SourceFile: f.SourcePath,
			DataFile:   filepath.ToSlash(filepath.Join("flows", fmt.Sprintf("flow-%03d.json", i))),
			Status:     core.StatusPending,
			Steps:      len(f.Steps),
		}
	}

	w := &Writer{dir: dir, index: index}
	if err := w.flushLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

// FlowStarted marks flow i as running in the given session.
func (w *Writer) FlowStarted(i int, sessionID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := &w.index.Flows[i]
	e.Status = core.StatusRunning
	e.SessionID = sessionID
	return w.flushLocked()
}

// FlowFinished writes the flow's detail file and updates its index entry.
func (w *Writer) FlowFinished(i int, result core.FlowResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := &w.index.Flows[i]
	if err := atomicWriteJSON(filepath.Join(w.dir, filepath.FromSlash(e.DataFile)), result); err != nil {
		return err
	}

	ms := result.Duration.Milliseconds()
	e.Status = result.Status
	e.Duration = &ms
	e.Error = result.Error
	if result.SessionID != "" {
		e.SessionID = result.SessionID
	}
	return w.flushLocked()
}

// End marks the run as complete.
func (w *Writer) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = w.runStatusLocked()
	return w.flushLocked()
}

// Index returns a copy of the current index.
func (w *Writer) Index() Index {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := *w.index
	idx.Flows = append([]FlowEntry(nil), w.index.Flows...)
	return idx
}

func (w *Writer) flushLocked() error {
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.summaryLocked()
	return atomicWriteJSON(filepath.Join(w.dir, "report.json"), w.index)
}

func (w *Writer) summaryLocked() Summary {
	var s Summary
	for _, f := range w.index.Flows {
		s.Total++
		switch f.Status {
		case core.StatusPassed, core.StatusWarned:
			s.Passed++
		case core.StatusFailed, core.StatusErrored:
			s.Failed++
		case core.StatusSkipped:
			s.Skipped++
		case core.StatusRunning:
			s.Running++
		default:
			s.Pending++
		}
	}
	return s
}

func (w *Writer) runStatusLocked() core.StepStatus {
	status := core.StatusPassed
	for _, f := range w.index.Flows {
		switch {
		case !f.Status.IsTerminal():
			return core.StatusRunning
		case f.Status == core.StatusFailed || f.Status == core.StatusErrored:
			status = core.StatusFailed
		}
	}
	return status
}

// atomicWriteJSON writes v to path through a temp file and rename, so pollers
// never read a partial file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
