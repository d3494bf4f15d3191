package wdtest

import (
	"fmt"
	"regexp"
	"strings"
)

// matcher decides whether a node matches a locator.
type matcher func(*Node) bool

// compileLocator supports the subset of CSS and XPath used by tests:
//
//	css:   tag, *, #id, .class, [attr], [attr="v"] and compounds like a#id.cls
//	xpath: //tag, //*, //tag[@attr='v'], //tag[text()='v']
func compileLocator(using, value string) (matcher, error) {
	switch using {
	case "css selector":
		return compileCSS(value)
	case "xpath":
		return compileXPath(value)
	case "link text":
		return func(n *Node) bool { return n.Tag == "a" && n.textContent() == value }, nil
	case "partial link text":
		return func(n *Node) bool { return n.Tag == "a" && strings.Contains(n.textContent(), value) }, nil
	case "tag name":
		return func(n *Node) bool { return n.Tag == value }, nil
	}
	return nil, fmt.Errorf("unsupported locator strategy %q", using)
}

var cssTagRe = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9-]*|\*)`)

func compileCSS(sel string) (matcher, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil, fmt.Errorf("empty selector")
	}

	var preds []matcher
	if m := cssTagRe.FindString(sel); m != "" {
		if m != "*" {
			tag := m
			preds = append(preds, func(n *Node) bool { return n.Tag == tag })
		}
		sel = sel[len(m):]
	}

	for sel != "" {
		switch sel[0] {
		case '#', '.':
			end := 1
			for end < len(sel) && isIdentChar(sel[end]) {
				end++
			}
			name := sel[1:end]
			if name == "" {
				return nil, fmt.Errorf("invalid selector near %q", sel)
			}
			if sel[0] == '#' {
				preds = append(preds, func(n *Node) bool { return n.ID() == name })
			} else {
				preds = append(preds, func(n *Node) bool { return n.hasClass(name) })
			}
			sel = sel[end:]
		case '[':
			pred, rest, err := parseAttrSelector(sel)
			if err != nil {
				return nil, err
			}
			preds = append(preds, pred)
			sel = rest
		default:
			return nil, fmt.Errorf("unsupported selector syntax near %q", sel)
		}
	}

	return func(n *Node) bool {
		for _, p := range preds {
			if !p(n) {
				return false
			}
		}
		return true
	}, nil
}

// parseAttrSelector parses [attr] or [attr="value"] with backslash escapes.
func parseAttrSelector(sel string) (matcher, string, error) {
	i := 1
	for i < len(sel) && isIdentChar(sel[i]) {
		i++
	}
	attr := sel[1:i]
	if attr == "" || i >= len(sel) {
		return nil, "", fmt.Errorf("invalid attribute selector %q", sel)
	}
	if sel[i] == ']' {
		return func(n *Node) bool { _, ok := n.Attrs[attr]; return ok }, sel[i+1:], nil
	}
	if sel[i] != '=' || i+1 >= len(sel) {
		return nil, "", fmt.Errorf("invalid attribute selector %q", sel)
	}
	quote := sel[i+1]
	if quote != '"' && quote != '\'' {
		return nil, "", fmt.Errorf("attribute value must be quoted in %q", sel)
	}
	var val strings.Builder
	j := i + 2
	for ; j < len(sel); j++ {
		c := sel[j]
		if c == '\\' && j+1 < len(sel) {
			j++
			val.WriteByte(sel[j])
			continue
		}
		if c == quote {
			break
		}
		val.WriteByte(c)
	}
	if j+1 >= len(sel) || sel[j+1] != ']' {
		return nil, "", fmt.Errorf("unterminated attribute selector %q", sel)
	}
	want := val.String()
	return func(n *Node) bool {
		v, ok := n.Attrs[attr]
		return ok && v == want
	}, sel[j+2:], nil
}

func isIdentChar(c byte) bool {
	return c == '-' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

var xpathRe = regexp.MustCompile(`^//([a-zA-Z][a-zA-Z0-9-]*|\*)(?:\[(?:@([a-zA-Z][a-zA-Z0-9-]*)|(text\(\)))\s*=\s*'([^']*)'\])?$`)

func compileXPath(expr string) (matcher, error) {
	m := xpathRe.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return nil, fmt.Errorf("unsupported xpath %q", expr)
	}
	tag, attr, isText, want := m[1], m[2], m[3] != "", m[4]
	return func(n *Node) bool {
		if tag != "*" && n.Tag != tag {
			return false
		}
		switch {
		case attr != "":
			v, ok := n.Attrs[attr]
			return ok && v == want
		case isText:
			return n.Text == want
		}
		return true
	}, nil
}
