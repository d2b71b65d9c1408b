// tree_data.go: Snapshot of the managed node structure
//
// A treeData instance represents one version of the configuration tree:
// the root node plus the bookkeeping that is not part of the nodes
// themselves. Structural updates never modify a snapshot; they produce a
// new one that the model publishes atomically.
//
// The parent mapping is the expensive part. Rebuilding it after every
// change would make small edits cost O(tree), so the mapping is kept
// constant and a replacement mapping records which nodes have been
// superseded. Parent lookups chase replacements in both directions.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"github.com/agilira/go-errors"
)

// treeData stores the current tree with its parent and replacement
// mappings, the node tracker and the reference tracker. Instances are
// immutable and safe for concurrent readers.
type treeData struct {
	// root is the root node of this version of the tree.
	root *Node

	// parentMapping associates each node with its parent. Keys are node
	// identities from the version of the tree the mapping was built for;
	// superseded nodes keep their entries and are bridged over via the
	// replacement mappings.
	parentMapping map[*Node]*Node

	// replacementMapping records nodes replaced during structural updates,
	// old node -> new node. Chains can form when a node is replaced again.
	replacementMapping map[*Node]*Node

	// inverseReplacementMapping is replacementMapping reversed, new -> old.
	inverseReplacementMapping map[*Node]*Node

	// tracker knows the nodes observed through selectors.
	tracker *NodeTracker

	// refs associates external reference objects with nodes.
	refs *referenceTracker
}

// newTreeData creates a snapshot from all its parts. The replacement
// inverse is derived here so callers only maintain the forward direction.
func newTreeData(root *Node, parents, replacements map[*Node]*Node, tracker *NodeTracker, refs *referenceTracker) *treeData {
	inverse := make(map[*Node]*Node, len(replacements))
	for oldNode, newNode := range replacements {
		inverse[newNode] = oldNode
	}
	if tracker == nil {
		tracker = NewNodeTracker()
	}
	if refs == nil {
		refs = newReferenceTracker()
	}
	return &treeData{
		root:                      root,
		parentMapping:             parents,
		replacementMapping:        replacements,
		inverseReplacementMapping: inverse,
		tracker:                   tracker,
		refs:                      refs,
	}
}

// treeDataForRoot builds a fresh snapshot for a root node, computing the
// full parent mapping. Used for initial trees and whenever a whole new
// tree is installed.
func treeDataForRoot(root *Node, tracker *NodeTracker, refs *referenceTracker) *treeData {
	parents := make(map[*Node]*Node)
	createParentMapping(root, parents)
	return newTreeData(root, parents, map[*Node]*Node{}, tracker, refs)
}

func createParentMapping(node *Node, parents map[*Node]*Node) {
	for _, c := range node.children {
		parents[c] = node
		createParentMapping(c, parents)
	}
}

// RootNode returns the root node of this snapshot.
func (td *treeData) RootNode() *Node {
	return td.root
}

// Parent returns the parent node of the given node. The result is nil for
// the root node. Nodes that are not part of this tree produce an error.
func (td *treeData) Parent(node *Node) (*Node, error) {
	if node == td.root {
		return nil, nil
	}
	org := chaseReplacements(node, td.inverseReplacementMapping)
	parent, ok := td.parentMapping[org]
	if !ok {
		return nil, errors.Wrap(ErrNodeNotFound, ErrCodeNodeNotFound, "cannot determine parent").
			WithContext("node", node.Name())
	}
	return chaseReplacements(parent, td.replacementMapping), nil
}

// copyParentMapping returns a mutable copy of the parent mapping for a
// transaction to update.
func (td *treeData) copyParentMapping() map[*Node]*Node {
	out := make(map[*Node]*Node, len(td.parentMapping))
	for k, v := range td.parentMapping {
		out[k] = v
	}
	return out
}

// copyReplacementMapping returns a mutable copy of the replacement mapping.
func (td *treeData) copyReplacementMapping() map[*Node]*Node {
	out := make(map[*Node]*Node, len(td.replacementMapping))
	for k, v := range td.replacementMapping {
		out[k] = v
	}
	return out
}

// withTracker returns a snapshot identical to this one except for the node
// tracker. Called when only the state of tracked nodes changes.
func (td *treeData) withTracker(tracker *NodeTracker) *treeData {
	c := *td
	c.tracker = tracker
	return &c
}

// withReferences returns a snapshot identical to this one except for the
// reference tracker.
func (td *treeData) withReferences(refs *referenceTracker) *treeData {
	c := *td
	c.refs = refs
	return &c
}

// chaseReplacements follows the given replacement mapping until it reaches
// a node that has not been replaced. The walk terminates because the
// mapping is acyclic: an entry is only ever added with a newly created
// node on the right-hand side.
func chaseReplacements(node *Node, mapping map[*Node]*Node) *Node {
	cur := node
	for {
		next, ok := mapping[cur]
		if !ok {
			return cur
		}
		cur = next
	}
}
