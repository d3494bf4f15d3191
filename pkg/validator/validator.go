// Package validator validates flow files before execution.
// It parses all files upfront and reports every error, not just the first.
package validator

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/devicelab-dev/wdclient/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    int // 1-based, 0 for file-level errors
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s: step %d: %s", e.File, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Flows holds the valid flows that pass the tag filters, in file order.
	Flows []*flow.Flow
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates files and directories. A file is parsed and checked
// once even when several paths reach it.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	seen := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("cannot access: %v", err),
			})
			continue
		}

		files := []string{path}
		if info.IsDir() {
			files, err = collectFlowFiles(path)
			if err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    path,
					Message: fmt.Sprintf("failed to scan directory: %v", err),
				})
				continue
			}
		}

		for _, file := range files {
			abs, err := filepath.Abs(file)
			if err != nil {
				abs = file
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			v.validateFile(file, result)
		}
	}

	return result
}

// collectFlowFiles finds all .yaml/.yml files in a directory, skipping the
// workspace config.
func collectFlowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		base := filepath.Base(path)
		if (ext == ".yaml" || ext == ".yml") && base != "wdclient.yaml" && base != "wdclient.yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func (v *Validator) validateFile(filePath string, result *Result) {
	f, err := flow.ParseFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	if !flow.ShouldIncludeFlow(f, v.includeTags, v.excludeTags) {
		return
	}

	errs := checkFlow(f)
	if len(errs) > 0 {
		result.Errors = append(result.Errors, errs...)
		return
	}
	result.Flows = append(result.Flows, f)
}

var varName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkFlow reports problems the parser accepts but the driver would reject
// at run time.
func checkFlow(f *flow.Flow) []error {
	var errs []error
	fail := func(step int, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{File: f.SourcePath, Step: step, Message: fmt.Sprintf(format, args...)})
	}

	base := f.Config.URL
	if base != "" && !isAbsoluteURL(base) {
		fail(0, "url %q must be absolute", base)
		base = ""
	}
	if f.Config.Timeout < 0 {
		fail(0, "timeout must not be negative")
	}
	if len(f.Steps) == 0 {
		fail(0, "flow has no steps")
	}

	for i, step := range f.Steps {
		n := i + 1
		if step.Timeout() < 0 {
			fail(n, "timeout must not be negative")
		}
		switch s := step.(type) {
		case *flow.GotoStep:
			if base == "" && !isAbsoluteURL(s.URL) && !strings.Contains(s.URL, "${") {
				fail(n, "relative url %q needs a flow url to resolve against", s.URL)
			}
		case *flow.ExecuteStep:
			if s.Output != "" && !varName.MatchString(s.Output) {
				fail(n, "output %q is not a valid variable name", s.Output)
			}
		case *flow.SwitchToWindowStep:
			if s.Index != nil && *s.Index < 0 {
				fail(n, "window index must not be negative")
			}
		case *flow.EnterFrameStep:
			if s.Index != nil && *s.Index < 0 {
				fail(n, "frame index must not be negative")
			}
		case *flow.WaitForStep:
			if s.IntervalMs < 0 {
				fail(n, "interval must not be negative")
			}
		}
	}
	return errs
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs()
}
