// Package report writes JSON run reports that are updated while flows run.
//
// Layout:
//   - report.json: run index, rewritten atomically on every flow transition
//   - flows/flow-NNN.json: per-flow step results, written when the flow ends
//
// Consumers poll report.json and fetch a flow file once its entry is terminal.
package report

import (
	"time"

	"github.com/devicelab-dev/wdclient/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Index is the main report file.
type Index struct {
	Version     string          `json:"version"`
	RunID       string          `json:"runId"`
	Endpoint    string          `json:"endpoint"`
	UpdateSeq   uint64          `json:"updateSeq"`
	Status      core.StepStatus `json:"status"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     *time.Time      `json:"endTime,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Summary     Summary         `json:"summary"`
	Flows       []FlowEntry     `json:"flows"`
}

// Summary contains aggregated flow counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// FlowEntry is the index entry for a flow.
type FlowEntry struct {
	Index      int             `json:"index"`
	Name       string          `json:"name"`
	SourceFile string          `json:"sourceFile"`
	DataFile   string          `json:"dataFile"`
	Status     core.StepStatus `json:"status"`
	SessionID  string          `json:"sessionId,omitempty"`
	Duration   *int64          `json:"duration,omitempty"` // milliseconds
	Steps      int             `json:"steps"`
	Error      string          `json:"error,omitempty"`
}
