package hah

import (
	"fmt"
	"strings"
)

// Kind identifies the construct a Node represents. The set is closed;
// rendering switches over it.
type Kind int

const (
	// KindTag is a markup element
	KindTag Kind = iota
	// KindVar echoes a host expression, optionally through a filter chain
	KindVar
	// KindCode is a host statement or block
	KindCode
	// KindRaw is text emitted verbatim
	KindRaw
	// KindSubDocument instantiates and inlines another document at execution time
	KindSubDocument
	// KindDocument is the root of a compiled source
	KindDocument
)

var kindNames = [...]string{
	KindTag:         "tag",
	KindVar:         "var",
	KindCode:        "code",
	KindRaw:         "raw",
	KindSubDocument: "subdocument",
	KindDocument:    "document",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Attribute is one entry of a node's ordered attribute list. An empty Key
// marks a positional entry: a precomputed fragment emitted as is.
type Attribute struct {
	Key   string
	Value string
	Expr  *Node // non-nil when the value is a host expression
}

// Positional reports whether the attribute has no key.
func (a Attribute) Positional() bool {
	return a.Key == ""
}

// Node is one element of the document tree.
//
// Name holds the tag name, the expression source or the import path
// depending on Kind. Value holds literal text: inline content for a tag,
// the statement for a code block, the captured text for a raw node.
// For KindVar nodes the attribute list is the filter chain.
type Node struct {
	Kind       Kind
	Name       string
	Value      string
	Level      int
	Attributes []Attribute
	Children   []*Node

	// Sibling is the node's index in its parent's Children
	Sibling int

	// SuppressAs names the attribute a KindVar node renders as when it is
	// only emitted for non-empty values
	SuppressAs string

	// LeaveOpen omits a code block's closing brace; the following
	// else/elseif block supplies it
	LeaveOpen bool

	parent *Node
}

// Parent returns the node this one is attached to, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// AddChild appends child, recording its parent and sibling position.
func (n *Node) AddChild(child *Node) {
	child.parent = n
	child.Sibling = len(n.Children)
	n.Children = append(n.Children, child)
}

// Top walks up to the root of the tree.
func (n *Node) Top() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// FindClosestLevel returns the nearest node on the path to the root whose
// level is below level. A document always answers itself.
func (n *Node) FindClosestLevel(level int) *Node {
	for n.Kind != KindDocument && n.parent != nil && n.Level >= level {
		n = n.parent
	}
	return n
}

// HasChildren reports whether the node has any children.
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// IsSingular reports whether the node has no children, or exactly one
// child that is itself singular. Singular chains render on one line.
func (n *Node) IsSingular() bool {
	switch len(n.Children) {
	case 0:
		return true
	case 1:
		return n.Children[0].IsSingular()
	default:
		return false
	}
}

// SiblingAt returns the sibling offset positions away, or nil.
func (n *Node) SiblingAt(offset int) *Node {
	if n.parent == nil {
		return nil
	}
	i := n.Sibling + offset
	if i < 0 || i >= len(n.parent.Children) {
		return nil
	}
	return n.parent.Children[i]
}

// Get returns the attribute stored under key.
func (n *Node) Get(key string) (Attribute, bool) {
	if key == "" {
		return Attribute{}, false
	}
	for _, a := range n.Attributes {
		if a.Key == key {
			return a, true
		}
	}
	return Attribute{}, false
}

// Set stores a literal attribute. Setting an existing key replaces its
// value without moving it.
func (n *Node) Set(key, value string) {
	n.put(Attribute{Key: key, Value: value})
}

// SetExpr stores an expression-valued attribute.
func (n *Node) SetExpr(key string, expr *Node) {
	n.put(Attribute{Key: key, Expr: expr})
}

// Append adds a positional attribute rendered from expr.
func (n *Node) Append(expr *Node) {
	n.Attributes = append(n.Attributes, Attribute{Expr: expr})
}

func (n *Node) put(attr Attribute) {
	if !attr.Positional() {
		for i := range n.Attributes {
			if n.Attributes[i].Key == attr.Key {
				n.Attributes[i] = attr
				return
			}
		}
	}
	n.Attributes = append(n.Attributes, attr)
}

// Walk calls fn for n and every descendant, depth first, in source order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Dump returns an indented outline of the subtree, one node per line.
func (n *Node) Dump() string {
	var b strings.Builder
	n.dump(&b, 0)
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, "%s@%d", n.Kind, n.Level)
	if n.Name != "" {
		fmt.Fprintf(b, " %s", n.Name)
	}
	for _, a := range n.Attributes {
		val := a.Value
		if a.Expr != nil {
			val = "{" + a.Expr.Name + "}"
		}
		if a.Positional() {
			fmt.Fprintf(b, " [%s]", val)
		} else {
			fmt.Fprintf(b, " %s=%q", a.Key, val)
		}
	}
	if n.Value != "" {
		fmt.Fprintf(b, " %q", n.Value)
	}
	if n.LeaveOpen {
		b.WriteString(" (open)")
	}
	b.WriteByte('\n')

	for _, child := range n.Children {
		child.dump(b, depth+1)
	}
}
