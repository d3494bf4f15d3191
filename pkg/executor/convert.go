package executor

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/devicelab-dev/wdclient/pkg/flow"
	"github.com/devicelab-dev/wdclient/pkg/webdriver"
	"github.com/dop251/goja"
)

// variables holds flow variables for ${...} expansion. A plain ${NAME} is
// looked up directly, falling back to the process environment; anything else
// is evaluated as a JavaScript expression with the flow variables in scope.
// Unknown names and expressions that fail to evaluate are left as written.
type variables struct {
	values map[string]string
	vm     *goja.Runtime
}

func newVariables() *variables {
	return &variables{values: map[string]string{}, vm: goja.New()}
}

func (v *variables) set(name, value string) {
	v.values[name] = value
	if isIdentifier(name) {
		_ = v.vm.Set(name, value)
	}
}

func (v *variables) setAll(m map[string]string) {
	for k, val := range m {
		v.set(k, val)
	}
}

func (v *variables) lookup(name string) (string, bool) {
	if val, ok := v.values[name]; ok {
		return val, true
	}
	return os.LookupEnv(name)
}

func (v *variables) expand(s string) string {
	result := s
	start := 0
	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			return result
		}
		idx += start

		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			switch result[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			return result
		}

		value, ok := v.eval(result[idx+2 : end-1])
		if !ok {
			start = end
			continue
		}
		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}
}

func (v *variables) eval(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if isIdentifier(expr) {
		return v.lookup(expr)
	}
	if expr == "" {
		return "", false
	}
	res, err := v.vm.RunString(expr)
	if err != nil {
		return "", false
	}
	exported := res.Export()
	if exported == nil {
		return "", true
	}
	return fmt.Sprintf("%v", exported), true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// expandArgs expands strings in script arguments, recursing into lists and
// maps decoded from YAML.
func (v *variables) expandArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = v.expandValue(a)
	}
	return out
}

func (v *variables) expandValue(a interface{}) interface{} {
	switch t := a.(type) {
	case string:
		return v.expand(t)
	case []interface{}:
		return v.expandArgs(t)
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = v.expandValue(val)
		}
		return m
	}
	return a
}

// locatorFor converts a flow selector to a WebDriver locator.
func locatorFor(sel flow.Selector, vars *variables) (webdriver.Locator, error) {
	if err := sel.Validate(); err != nil {
		return webdriver.Locator{}, err
	}
	switch {
	case sel.CSS != "":
		return webdriver.ByCSS(vars.expand(sel.CSS)), nil
	case sel.XPath != "":
		return webdriver.ByXPath(vars.expand(sel.XPath)), nil
	case sel.LinkText != "":
		return webdriver.ByLinkText(vars.expand(sel.LinkText)), nil
	default:
		return webdriver.ByID(vars.expand(sel.ID)), nil
	}
}

// resolveURL resolves a relative step URL against the flow's base URL.
func resolveURL(base, ref string) (string, error) {
	if base == "" {
		return ref, nil
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	if r.IsAbs() {
		return ref, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse flow url %q: %w", base, err)
	}
	return b.ResolveReference(r).String(), nil
}

// decodeScriptResult turns a script result into a report value and the
// string stored in an output variable.
func decodeScriptResult(raw json.RawMessage) (interface{}, string) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw), string(raw)
	}
	switch t := value.(type) {
	case nil:
		return nil, ""
	case string:
		return t, t
	}
	return value, string(raw)
}
