// node_handler.go: Read access abstraction over configuration trees
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

// NodeHandler provides read access to a tree of nodes. The node model
// implements it on top of its current snapshot, so query code (expression
// engine, key iteration) never touches model internals directly and can be
// pointed at any tree, including detached tracked subtrees.
type NodeHandler interface {
	// RootNode returns the root of the tree this handler navigates.
	RootNode() *Node

	// Parent returns the parent of node, nil for the root. The error is
	// non-nil if node does not belong to the tree.
	Parent(node *Node) (*Node, error)
}

// nodeDepth returns the number of hops from the root to node. The root has
// depth 0. An error from Parent stops the walk with -1.
func nodeDepth(h NodeHandler, node *Node) int {
	depth := 0
	cur := node
	for cur != h.RootNode() {
		p, err := h.Parent(cur)
		if err != nil || p == nil {
			return -1
		}
		cur = p
		depth++
	}
	return depth
}

// visitNodes walks the subtree rooted at node depth-first, calling fn for
// every node. Traversal stops early when fn returns false.
func visitNodes(node *Node, fn func(*Node) bool) bool {
	if !fn(node) {
		return false
	}
	for _, c := range node.children {
		if !visitNodes(c, fn) {
			return false
		}
	}
	return true
}

// collectSubtree returns node and all its descendants in DFS order.
func collectSubtree(node *Node) []*Node {
	var out []*Node
	visitNodes(node, func(n *Node) bool {
		out = append(out, n)
		return true
	})
	return out
}
