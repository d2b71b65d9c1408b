// node.go: Immutable configuration tree nodes for Dryad
//
// A Node is a named value with an ordered list of children and a map of
// attributes. Nodes never change after construction; every "mutation"
// returns a new node that shares the untouched children with the original.
// Structural sharing is what makes whole-tree snapshots cheap and lets the
// node model hand out consistent views without locking readers.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"github.com/agilira/go-errors"
)

// Node is a single node of a configuration tree. Instances are immutable;
// the With*/Add*/Remove* methods return modified copies. Node identity
// (pointer equality) is significant: the node model uses it to track nodes
// across structural updates.
type Node struct {
	name       string
	value      interface{}
	children   []*Node
	attributes map[string]interface{}
}

// NewNode creates a leaf node with a name and a value.
func NewNode(name string, value interface{}) *Node {
	return &Node{name: name, value: value}
}

// Name returns the node name. Names need not be unique among siblings.
func (n *Node) Name() string {
	return n.name
}

// Value returns the value stored in this node, or nil if it has none.
func (n *Node) Value() interface{} {
	return n.value
}

// Children returns the child nodes in order. The returned slice is a copy;
// modifying it does not affect the node.
func (n *Node) Children() []*Node {
	if len(n.children) == 0 {
		return nil
	}
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of children. If name is non-empty only
// children with that name are counted.
func (n *Node) ChildCount(name string) int {
	if name == "" {
		return len(n.children)
	}
	count := 0
	for _, c := range n.children {
		if c.name == name {
			count++
		}
	}
	return count
}

// ChildrenByName returns all children carrying the given name, in order.
func (n *Node) ChildrenByName(name string) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the child at the given index or nil if out of range.
func (n *Node) Child(index int) *Node {
	if index < 0 || index >= len(n.children) {
		return nil
	}
	return n.children[index]
}

// IndexOfChild returns the position of child among the children of n,
// or -1 if child is not a direct child. Comparison is by identity.
func (n *Node) IndexOfChild(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// Attributes returns a copy of the attribute map.
func (n *Node) Attributes() map[string]interface{} {
	if len(n.attributes) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(n.attributes))
	for k, v := range n.attributes {
		out[k] = v
	}
	return out
}

// Attribute looks up a single attribute value.
func (n *Node) Attribute(name string) (interface{}, bool) {
	v, ok := n.attributes[name]
	return v, ok
}

// AttributeNames returns the attribute names in unspecified order.
func (n *Node) AttributeNames() []string {
	if len(n.attributes) == 0 {
		return nil
	}
	out := make([]string, 0, len(n.attributes))
	for k := range n.attributes {
		out = append(out, k)
	}
	return out
}

// HasAttributes reports whether the node carries any attributes.
func (n *Node) HasAttributes() bool {
	return len(n.attributes) > 0
}

// IsDefined reports whether this node contains any data: a value,
// children, or attributes. Undefined nodes are pruned by the node model
// when the operation that emptied them completes.
func (n *Node) IsDefined() bool {
	return n.value != nil || len(n.children) > 0 || len(n.attributes) > 0
}

// Derived update methods. Each returns a new node sharing everything that
// was not touched. They are the only way node content "changes".

// WithValue returns a copy of this node with a different value.
func (n *Node) WithValue(value interface{}) *Node {
	c := *n
	c.value = value
	return &c
}

// WithName returns a copy of this node with a different name.
func (n *Node) WithName(name string) *Node {
	c := *n
	c.name = name
	return &c
}

// AddChild returns a copy of this node with child appended. A nil child
// is ignored and the receiver is returned unchanged.
func (n *Node) AddChild(child *Node) *Node {
	if child == nil {
		return n
	}
	c := *n
	c.children = make([]*Node, len(n.children), len(n.children)+1)
	copy(c.children, n.children)
	c.children = append(c.children, child)
	return &c
}

// AddChildren returns a copy of this node with all given children
// appended. Nil entries are skipped.
func (n *Node) AddChildren(children []*Node) *Node {
	if len(children) == 0 {
		return n
	}
	c := *n
	c.children = make([]*Node, len(n.children), len(n.children)+len(children))
	copy(c.children, n.children)
	for _, child := range children {
		if child != nil {
			c.children = append(c.children, child)
		}
	}
	return &c
}

// ReplaceChild returns a copy of this node with oldChild (matched by
// identity) replaced by newChild at the same position. If oldChild is not
// a child of n, the receiver is returned unchanged.
func (n *Node) ReplaceChild(oldChild, newChild *Node) *Node {
	idx := n.IndexOfChild(oldChild)
	if idx < 0 || newChild == nil {
		return n
	}
	c := *n
	c.children = make([]*Node, len(n.children))
	copy(c.children, n.children)
	c.children[idx] = newChild
	return &c
}

// RemoveChild returns a copy of this node without the given child
// (matched by identity). If child is not a child of n, the receiver is
// returned unchanged.
func (n *Node) RemoveChild(child *Node) *Node {
	idx := n.IndexOfChild(child)
	if idx < 0 {
		return n
	}
	c := *n
	c.children = make([]*Node, 0, len(n.children)-1)
	c.children = append(c.children, n.children[:idx]...)
	c.children = append(c.children, n.children[idx+1:]...)
	return &c
}

// ReplaceChildren returns a copy of this node with the child list replaced
// wholesale. The slice is copied; nil entries are skipped.
func (n *Node) ReplaceChildren(children []*Node) *Node {
	c := *n
	c.children = nil
	if len(children) > 0 {
		c.children = make([]*Node, 0, len(children))
		for _, child := range children {
			if child != nil {
				c.children = append(c.children, child)
			}
		}
	}
	return &c
}

// SetAttribute returns a copy of this node with the attribute set.
func (n *Node) SetAttribute(name string, value interface{}) *Node {
	c := *n
	c.attributes = make(map[string]interface{}, len(n.attributes)+1)
	for k, v := range n.attributes {
		c.attributes[k] = v
	}
	c.attributes[name] = value
	return &c
}

// SetAttributes returns a copy of this node with all given attributes set.
func (n *Node) SetAttributes(attrs map[string]interface{}) *Node {
	if len(attrs) == 0 {
		return n
	}
	c := *n
	c.attributes = make(map[string]interface{}, len(n.attributes)+len(attrs))
	for k, v := range n.attributes {
		c.attributes[k] = v
	}
	for k, v := range attrs {
		c.attributes[k] = v
	}
	return &c
}

// RemoveAttribute returns a copy of this node without the named attribute.
// If the attribute does not exist, the receiver is returned unchanged.
func (n *Node) RemoveAttribute(name string) *Node {
	if _, ok := n.attributes[name]; !ok {
		return n
	}
	c := *n
	c.attributes = make(map[string]interface{}, len(n.attributes)-1)
	for k, v := range n.attributes {
		if k != name {
			c.attributes[k] = v
		}
	}
	return &c
}

// NodeBuilder constructs Node instances. A builder can be reused: Create
// hands out the accumulated state and resets nothing, so subsequent
// mutations of the builder do not affect nodes already created.
type NodeBuilder struct {
	name       string
	value      interface{}
	children   []*Node
	attributes map[string]interface{}
}

// NewNodeBuilder creates a builder for a node with the given name.
func NewNodeBuilder(name string) *NodeBuilder {
	return &NodeBuilder{name: name}
}

// Name sets the node name.
func (b *NodeBuilder) Name(name string) *NodeBuilder {
	b.name = name
	return b
}

// Value sets the node value.
func (b *NodeBuilder) Value(value interface{}) *NodeBuilder {
	b.value = value
	return b
}

// AddChild appends a child node. Nil children are ignored.
func (b *NodeBuilder) AddChild(child *Node) *NodeBuilder {
	if child != nil {
		b.children = append(b.children, child)
	}
	return b
}

// AddChildren appends a list of child nodes. Nil entries are ignored.
func (b *NodeBuilder) AddChildren(children []*Node) *NodeBuilder {
	for _, c := range children {
		if c != nil {
			b.children = append(b.children, c)
		}
	}
	return b
}

// AddAttribute sets an attribute on the node under construction.
func (b *NodeBuilder) AddAttribute(name string, value interface{}) *NodeBuilder {
	if b.attributes == nil {
		b.attributes = make(map[string]interface{})
	}
	b.attributes[name] = value
	return b
}

// AddAttributes sets multiple attributes on the node under construction.
func (b *NodeBuilder) AddAttributes(attrs map[string]interface{}) *NodeBuilder {
	for k, v := range attrs {
		b.AddAttribute(k, v)
	}
	return b
}

// Create builds the node. The builder stays usable afterwards; the created
// node does not observe later builder changes.
func (b *NodeBuilder) Create() *Node {
	n := &Node{name: b.name, value: b.value}
	if len(b.children) > 0 {
		n.children = make([]*Node, len(b.children))
		copy(n.children, b.children)
	}
	if len(b.attributes) > 0 {
		n.attributes = make(map[string]interface{}, len(b.attributes))
		for k, v := range b.attributes {
			n.attributes[k] = v
		}
	}
	return n
}

// validateNewNodes rejects nil subtrees handed to the public model API.
func validateNewNodes(nodes []*Node) error {
	for _, n := range nodes {
		if n == nil {
			return errors.New(ErrCodeInvalidNode, "nil node not allowed")
		}
	}
	return nil
}
