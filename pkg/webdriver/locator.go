package webdriver

import (
	"fmt"
	"strings"
)

// Locator strategies defined by W3C WebDriver.
const (
	StrategyCSS             = "css selector"
	StrategyLinkText        = "link text"
	StrategyPartialLinkText = "partial link text"
	StrategyTagName         = "tag name"
	StrategyXPath           = "xpath"
)

// Locator is an immutable element query: a strategy and its value.
type Locator struct {
	strategy string
	value    string
}

// ByCSS locates elements matching a CSS selector.
func ByCSS(selector string) Locator {
	return Locator{strategy: StrategyCSS, value: selector}
}

// ByLinkText locates anchors whose visible text equals text.
func ByLinkText(text string) Locator {
	return Locator{strategy: StrategyLinkText, value: text}
}

// ByPartialLinkText locates anchors whose visible text contains text.
func ByPartialLinkText(text string) Locator {
	return Locator{strategy: StrategyPartialLinkText, value: text}
}

// ByXPath locates elements matching an XPath expression.
func ByXPath(expr string) Locator {
	return Locator{strategy: StrategyXPath, value: expr}
}

// ByTagName locates elements by tag name.
func ByTagName(name string) Locator {
	return Locator{strategy: StrategyTagName, value: name}
}

// ByID locates the element with the given id attribute. W3C has no id
// strategy, so this is sent as a CSS attribute selector.
func ByID(id string) Locator {
	return Locator{strategy: StrategyCSS, value: `[id="` + cssEscapeString(id) + `"]`}
}

// Strategy returns the W3C strategy name.
func (l Locator) Strategy() string { return l.strategy }

// Value returns the query value.
func (l Locator) Value() string { return l.value }

// IsZero reports whether l was never initialized.
func (l Locator) IsZero() bool { return l.strategy == "" }

// String returns a readable form such as `css selector="#main"`.
func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.strategy, l.value)
}

func (l Locator) request() FindRequest {
	return FindRequest{Using: l.strategy, Value: l.value}
}

func cssEscapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(s)
}
