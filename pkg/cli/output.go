package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/wdclient/pkg/core"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold
const slowThreshold = 5 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// progress prints live run output. In parallel mode step lines from
// different sessions would interleave, so only flow results are printed.
type progress struct {
	mu       sync.Mutex
	w        io.Writer
	parallel bool
}

func newProgress(w io.Writer, parallel bool) *progress {
	return &progress{w: w, parallel: parallel}
}

func (p *progress) flowStart(flowIdx, totalFlows int, name, file string) {
	if p.parallel {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), flowIdx+1, totalFlows, color(colorReset),
		color(colorBold), name, color(colorReset), file)
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p *progress) stepComplete(_ int, step core.StepResult) {
	if p.parallel {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	desc := step.Description
	if step.Label != "" {
		desc = step.Label
	}
	dur := formatDuration(step.Duration)

	switch step.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if step.Duration >= slowThreshold {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		fmt.Fprintf(p.w, "    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), desc, durColor, dur, color(colorReset))
	case core.StatusWarned:
		fmt.Fprintf(p.w, "    %s⚠%s %s (%s)\n", color(colorYellow), color(colorReset), desc, dur)
		if step.Error != "" {
			fmt.Fprintf(p.w, "      %s╰─ optional:%s %s\n", color(colorGray), color(colorReset), step.Error)
		}
	default:
		fmt.Fprintf(p.w, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), desc, dur)
		if step.Error != "" {
			fmt.Fprintf(p.w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), step.Error)
		}
	}
}

func (p *progress) flowEnd(_ int, result core.FlowResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case result.Status == core.StatusSkipped:
		fmt.Fprintf(p.w, "%s- %s%s %s%s%s\n",
			color(colorCyan), color(colorReset), result.Name, color(colorGray), result.Error, color(colorReset))
	case result.Status.IsSuccess():
		fmt.Fprintf(p.w, "%s✓ %s%s %s%s%s\n",
			color(colorGreen), color(colorReset), result.Name, color(colorGray), formatDuration(result.Duration), color(colorReset))
	default:
		fmt.Fprintf(p.w, "%s✗ %s%s %s%s%s\n",
			color(colorRed), color(colorReset), result.Name, color(colorGray), formatDuration(result.Duration), color(colorReset))
		if p.parallel && result.Error != "" {
			fmt.Fprintf(p.w, "  %s╰─%s %s\n", color(colorGray), color(colorReset), result.Error)
		}
	}
}

func (p *progress) summary(suite *core.SuiteResult, wall time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	totalSteps, passedSteps, failedSteps, skippedSteps := 0, 0, 0, 0
	for _, fr := range suite.Flows {
		totalSteps += fr.TotalSteps
		passedSteps += fr.PassedSteps + fr.WarnedSteps
		failedSteps += fr.FailedSteps
		skippedSteps += fr.SkippedSteps
	}

	fmt.Fprintln(p.w)
	if passedSteps > 0 {
		fmt.Fprintf(p.w, "  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(wall))
	}
	if failedSteps > 0 {
		fmt.Fprintf(p.w, "  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Fprintf(p.w, "  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Fprintln(p.w)

	tableWidth := 92
	fmt.Fprintln(p.w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(p.w, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Flow", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(p.w, strings.Repeat("─", tableWidth))

	for _, fr := range suite.Flows {
		status, statusColor := "✓ PASS", color(colorGreen)
		switch {
		case fr.Status == core.StatusSkipped:
			status, statusColor = "- SKIP", color(colorCyan)
		case !fr.Status.IsSuccess():
			status, statusColor = "✗ FAIL", color(colorRed)
		}

		name := fr.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		fmt.Fprintf(p.w, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			fr.TotalSteps, fr.PassedSteps+fr.WarnedSteps, fr.FailedSteps, fr.SkippedSteps,
			formatDuration(fr.Duration))
	}

	fmt.Fprintln(p.w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", suite.PassedFlows, suite.TotalFlows)
	statusColor := color(colorGreen)
	if suite.FailedFlows > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(p.w, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(wall))
	fmt.Fprintln(p.w, strings.Repeat("═", tableWidth))
}

// formatDuration shows milliseconds below one second, seconds below one
// minute and minutes with seconds otherwise.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
