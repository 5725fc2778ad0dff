// Package surface models a rendered document surface: a tree of nodes with
// layout bounds and visual style, possibly containing isolated sub-roots.
package surface

import "strings"

// Rect is a layout box in the coordinate space of the owning root.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
}

func (r Rect) Width() float64  { return r.Right - r.Left }
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Style holds the visual properties the highlight treatment overrides.
type Style struct {
	Background string `json:"background,omitempty"`
	Foreground string `json:"foreground,omitempty"`
}

// Node is a single element of a rendering root.
type Node struct {
	Tag      string
	ID       string
	Lang     string
	Text     string
	Children []*Node
	Bounds   Rect
	Style    Style

	// Frame is set for nodes hosting an isolated sub-root (an iframe).
	Frame *Root
}

// TextContent returns own and descendant text in document order. Text inside
// frames does not belong to this node.
func (n *Node) TextContent() string {
	if n == nil {
		return ""
	}
	if len(n.Children) == 0 {
		return n.Text
	}
	var b strings.Builder
	n.text(&b)
	return b.String()
}

func (n *Node) text(b *strings.Builder) {
	b.WriteString(n.Text)
	for _, c := range n.Children {
		if c.Frame != nil {
			continue
		}
		c.text(b)
	}
}

// Append adds children and returns n for chaining.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Root is a rendering surface, either top-level or nested inside a frame node.
type Root struct {
	Name     string
	Lang     string
	Body     *Node
	Viewport Rect
}

// Walk visits nodes in document order. Returning false from fn skips the
// node's descendants. Frames are not entered.
func (r *Root) Walk(fn func(n *Node) bool) {
	if r == nil || r.Body == nil {
		return
	}
	walk(r.Body, fn)
}

func walk(n *Node, fn func(n *Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, fn)
	}
}

// Frames returns every nested root reachable from r, depth-first.
func (r *Root) Frames() []*Root {
	var out []*Root
	r.Walk(func(n *Node) bool {
		if n.Frame != nil {
			out = append(out, n.Frame)
			out = append(out, n.Frame.Frames()...)
		}
		return true
	})
	return out
}

// ElementByID finds a node by id within r only.
func (r *Root) ElementByID(id string) *Node {
	if id == "" {
		return nil
	}
	var found *Node
	r.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}
