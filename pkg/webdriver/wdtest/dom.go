package wdtest

import (
	"fmt"
	"sort"
	"strings"
)

// Node is an element in a fake page. Pages are templates: every navigation
// loads a fresh copy, so mutations never leak between loads.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []*Node

	parent   *Node
	detached bool
}

// El builds a node.
func El(tag string, attrs map[string]string, text string, children ...*Node) *Node {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &Node{Tag: tag, Attrs: attrs, Text: text, Children: children}
}

// Link builds an anchor.
func Link(id, href, text string) *Node {
	return El("a", map[string]string{"id": id, "href": href}, text)
}

// Button builds a button.
func Button(id, text string) *Node {
	return El("button", map[string]string{"id": id}, text)
}

// Input builds a text input.
func Input(id string) *Node {
	return El("input", map[string]string{"id": id, "type": "text"}, "")
}

// IFrame builds an iframe that loads the page registered at src.
func IFrame(id, src string) *Node {
	return El("iframe", map[string]string{"id": id, "src": src}, "")
}

// Page is a document template.
type Page struct {
	Title string
	Body  []*Node
}

func (p Page) instantiate() *Node {
	body := &Node{Tag: "body", Attrs: map[string]string{}}
	for _, c := range p.Body {
		body.Children = append(body.Children, c.clone(body))
	}
	return body
}

func (n *Node) clone(parent *Node) *Node {
	c := &Node{
		Tag:    n.Tag,
		Attrs:  make(map[string]string, len(n.Attrs)),
		Text:   n.Text,
		parent: parent,
	}
	for k, v := range n.Attrs {
		c.Attrs[k] = v
	}
	for _, child := range n.Children {
		c.Children = append(c.Children, child.clone(c))
	}
	return c
}

// ID returns the id attribute.
func (n *Node) ID() string {
	return n.Attrs["id"]
}

// Remove detaches n and its subtree from the document.
func (n *Node) Remove() {
	if n.parent != nil {
		siblings := n.parent.Children
		for i, c := range siblings {
			if c == n {
				n.parent.Children = append(siblings[:i:i], siblings[i+1:]...)
				break
			}
		}
		n.parent = nil
	}
	n.walk(func(d *Node) bool {
		d.detached = true
		return true
	})
}

// walk visits n and its descendants in document order until fn returns false.
func (n *Node) walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

// descendants returns the nodes below n matching pred, in document order.
func (n *Node) descendants(pred func(*Node) bool) []*Node {
	var out []*Node
	for _, c := range n.Children {
		c.walk(func(d *Node) bool {
			if pred(d) {
				out = append(out, d)
			}
			return true
		})
	}
	return out
}

func (n *Node) textContent() string {
	var b strings.Builder
	n.walk(func(d *Node) bool {
		if d.Text != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(d.Text)
		}
		return true
	})
	return b.String()
}

func (n *Node) render(b *strings.Builder) {
	b.WriteString("<" + n.Tag)
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%q", k, n.Attrs[k])
	}
	b.WriteString(">")
	b.WriteString(n.Text)
	for _, c := range n.Children {
		c.render(b)
	}
	b.WriteString("</" + n.Tag + ">")
}

func (n *Node) hasClass(class string) bool {
	for _, c := range strings.Fields(n.Attrs["class"]) {
		if c == class {
			return true
		}
	}
	return false
}
