package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single YAML flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses YAML flow content. An optional config document may precede
// the steps, separated by "---".
func Parse(data []byte, sourcePath string) (*Flow, error) {
	parts := splitYAMLDocuments(string(data))

	flow := &Flow{
		SourcePath: sourcePath,
	}

	if len(parts) == 0 {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    1,
			Message: "empty flow file",
		}
	}

	if len(parts) == 1 {
		if err := parseSteps(parts[0], flow); err != nil {
			return nil, err
		}
	} else {
		if err := parseConfig(parts[0], flow); err != nil {
			return nil, err
		}
		if err := parseSteps(parts[1], flow); err != nil {
			return nil, err
		}
	}

	return flow, nil
}

// splitYAMLDocuments splits content on "---" lines outside block scalars.
func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inMultiline := false
	multilineIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inMultiline {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inMultiline = true
				if i+1 < len(lines) {
					next := lines[i+1]
					multilineIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < multilineIndent {
				inMultiline = false
			}
		}

		if !inMultiline && trimmed == "---" && strings.TrimLeft(line, " \t") == "---" {
			if strings.TrimSpace(current.String()) != "" {
				parts = append(parts, current.String())
			}
			// Pad the next document so YAML line numbers match the file.
			current.Reset()
			current.WriteString(strings.Repeat("\n", i+1))
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if current.Len() > 0 {
		s := strings.TrimSpace(current.String())
		if s != "" {
			parts = append(parts, current.String())
		}
	}

	return parts
}

func parseConfig(content string, flow *Flow) error {
	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid config: %v", err),
		}
	}
	flow.Config = config
	return nil
}

func parseSteps(content string, flow *Flow) error {
	var rawSteps []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &rawSteps); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid steps: %v", err),
		}
	}

	for _, node := range rawSteps {
		step, err := parseStep(&node, flow.SourcePath)
		if err != nil {
			return err
		}
		flow.Steps = append(flow.Steps, step)
	}

	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Handle scalar nodes like "- back" (no colon, no params)
	if node.Kind == yaml.ScalarNode {
		stepType := node.Value
		if !isStepType(stepType) {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown step type: %s", stepType),
			}
		}
		emptyNode := &yaml.Node{Kind: yaml.MappingNode, Line: node.Line}
		return decodeStep(StepType(stepType), emptyNode, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping or command name",
		}
	}
	if len(node.Content) != 2 {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must have exactly one command",
		}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: fmt.Sprintf("unknown step type: %s", node.Content[0].Value),
		}
	}

	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepGoto, StepBack, StepForward, StepRefresh,
		StepClick, StepInputText, StepExecute, StepWaitFor,
		StepAssertVisible, StepAssertNotVisible, StepAssertText,
		StepNewWindow, StepSwitchToWindow, StepCloseWindow,
		StepEnterFrame, StepEnterParentFrame:
		return true
	}
	return false
}

// isNull reports whether a value node is absent, as in "- back:".
func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

//nolint:gocyclo
func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	fail := func(msg string) error {
		return &ParseError{Path: sourcePath, Line: valueNode.Line, Message: fmt.Sprintf("%s: %s", stepType, msg)}
	}
	decode := func(v interface{}) error {
		if isNull(valueNode) {
			return nil
		}
		if err := valueNode.Decode(v); err != nil {
			return wrapParseError(sourcePath, valueNode.Line, err)
		}
		return nil
	}
	// selectorStep decodes a step whose scalar form is a css selector.
	selectorStep := func(v interface{}, sel *Selector) error {
		if valueNode.Kind == yaml.ScalarNode && !isNull(valueNode) {
			sel.CSS = valueNode.Value
		} else if err := decode(v); err != nil {
			return err
		}
		if err := sel.Validate(); err != nil {
			return fail(err.Error())
		}
		return nil
	}

	switch stepType {
	case StepGoto:
		var s GotoStep
		if valueNode.Kind == yaml.ScalarNode {
			s.URL = valueNode.Value
		} else if err := decode(&s); err != nil {
			return nil, err
		}
		if s.URL == "" {
			return nil, fail("url is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepBack:
		var s BackStep
		if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepForward:
		var s ForwardStep
		if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepRefresh:
		var s RefreshStep
		if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepClick:
		var s ClickStep
		if err := selectorStep(&s, &s.Selector); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepInputText:
		var s InputTextStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Text = valueNode.Value
		} else {
			if err := decode(&s); err != nil {
				return nil, err
			}
			if !s.Selector.IsEmpty() {
				if err := s.Selector.Validate(); err != nil {
					return nil, fail(err.Error())
				}
			}
		}
		if s.Text == "" {
			return nil, fail("text is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepExecute:
		var s ExecuteStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Script = valueNode.Value
		} else if err := decode(&s); err != nil {
			return nil, err
		}
		if s.Script == "" {
			return nil, fail("script is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepWaitFor:
		var s WaitForStep
		if err := selectorStep(&s, &s.Selector); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertVisible:
		var s AssertVisibleStep
		if err := selectorStep(&s, &s.Selector); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertNotVisible:
		var s AssertNotVisibleStep
		if err := selectorStep(&s, &s.Selector); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertText:
		var s AssertTextStep
		if valueNode.Kind != yaml.MappingNode {
			return nil, fail("expected a mapping with a selector and equals or contains")
		}
		if err := selectorStep(&s, &s.Selector); err != nil {
			return nil, err
		}
		if s.Equals == nil && s.Contains == "" {
			return nil, fail("one of equals or contains is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepNewWindow:
		var s NewWindowStep
		if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepSwitchToWindow:
		var s SwitchToWindowStep
		if valueNode.Kind == yaml.ScalarNode {
			if idx, err := strconv.Atoi(valueNode.Value); err == nil {
				s.Index = &idx
			} else {
				s.Handle = valueNode.Value
			}
		} else if err := decode(&s); err != nil {
			return nil, err
		}
		if s.Handle == "" && s.Index == nil {
			return nil, fail("handle or index is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepCloseWindow:
		var s CloseWindowStep
		if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepEnterFrame:
		var s EnterFrameStep
		if valueNode.Kind == yaml.ScalarNode && !isNull(valueNode) {
			if idx, err := strconv.Atoi(valueNode.Value); err == nil {
				s.Index = &idx
			} else {
				s.CSS = valueNode.Value
			}
		} else {
			if err := decode(&s); err != nil {
				return nil, err
			}
			if s.Index == nil {
				if err := s.Selector.Validate(); err != nil {
					return nil, fail(err.Error())
				}
			} else if !s.Selector.IsEmpty() {
				return nil, fail("index and selector are mutually exclusive")
			}
		}
		s.StepType = stepType
		return &s, nil

	case StepEnterParentFrame:
		var s EnterParentFrameStep
		if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil
	}

	return nil, fail("unsupported step type")
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// ParseDirectory parses all YAML files in a directory.
func ParseDirectory(dir string, includeTags, excludeTags []string) ([]*Flow, error) {
	var flows []*Flow

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		// Workspace config, not a flow
		if base := filepath.Base(path); base == "wdclient.yaml" || base == "wdclient.yml" {
			return nil
		}

		flow, parseErr := ParseFile(path)
		if parseErr != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", path, parseErr)
			return nil
		}

		if ShouldIncludeFlow(flow, includeTags, excludeTags) {
			flows = append(flows, flow)
		}
		return nil
	})

	return flows, err
}

// ShouldIncludeFlow checks if a flow matches tag filters.
func ShouldIncludeFlow(flow *Flow, includeTags, excludeTags []string) bool {
	if len(includeTags) > 0 {
		hasTag := false
		for _, tag := range flow.Config.Tags {
			for _, include := range includeTags {
				if tag == include {
					hasTag = true
					break
				}
			}
		}
		if !hasTag {
			return false
		}
	}

	for _, tag := range flow.Config.Tags {
		for _, exclude := range excludeTags {
			if tag == exclude {
				return false
			}
		}
	}

	return true
}
