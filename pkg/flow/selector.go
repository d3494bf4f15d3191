package flow

import (
	"fmt"
	"strings"
)

// Selector represents element selection criteria. Exactly one strategy is
// set. Pure data structure - executor decides how to use it.
type Selector struct {
	CSS      string `yaml:"css"`
	XPath    string `yaml:"xpath"`
	LinkText string `yaml:"linkText"`
	ID       string `yaml:"id"`
}

// IsEmpty returns true if no strategy is set.
func (s *Selector) IsEmpty() bool {
	return s.CSS == "" && s.XPath == "" && s.LinkText == "" && s.ID == ""
}

// Validate checks that exactly one strategy is set.
func (s *Selector) Validate() error {
	n := 0
	for _, v := range []string{s.CSS, s.XPath, s.LinkText, s.ID} {
		if v != "" {
			n++
		}
	}
	switch n {
	case 0:
		return fmt.Errorf("selector requires one of css, xpath, linkText or id")
	case 1:
		return nil
	}
	return fmt.Errorf("selector %s sets more than one strategy", s.Describe())
}

// Describe returns a human-readable description like css="a.next".
func (s *Selector) Describe() string {
	var parts []string
	if s.CSS != "" {
		parts = append(parts, fmt.Sprintf("css=%q", s.CSS))
	}
	if s.XPath != "" {
		parts = append(parts, fmt.Sprintf("xpath=%q", s.XPath))
	}
	if s.LinkText != "" {
		parts = append(parts, fmt.Sprintf("linkText=%q", s.LinkText))
	}
	if s.ID != "" {
		parts = append(parts, fmt.Sprintf("id=%q", s.ID))
	}
	return strings.Join(parts, " ")
}
