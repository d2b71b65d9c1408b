// model.go: In-memory node model with lock-free snapshot publication
//
// The model owns the current treeData snapshot behind an atomic pointer.
// Readers load the pointer and work on a consistent, immutable tree with
// zero coordination. Writers build the next snapshot through a transaction
// and publish it with compare-and-swap, retrying from the fresh snapshot
// when they lose a race. The pattern is the same copy-on-write scheme the
// stat cache in Argus uses, applied to a whole tree.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"sync/atomic"

	"github.com/agilira/go-errors"
)

// NodeModel manages a hierarchical node structure with atomic updates.
// All methods are safe for concurrent use.
type NodeModel struct {
	data   atomic.Pointer[treeData]
	engine *ExpressionEngine
}

// NewNodeModel creates a model for the given root node. A nil root starts
// the model with an empty unnamed root.
func NewNodeModel(root *Node, engine *ExpressionEngine) *NodeModel {
	if root == nil {
		root = &Node{}
	}
	if engine == nil {
		engine = NewExpressionEngine()
	}
	m := &NodeModel{engine: engine}
	m.data.Store(treeDataForRoot(root, nil, nil))
	return m
}

// Root returns the root node of the current snapshot.
func (m *NodeModel) Root() *Node {
	return m.data.Load().root
}

// snapshot returns the current treeData, the consistent view all reads of
// one logical operation should share.
func (m *NodeModel) snapshot() *treeData {
	return m.data.Load()
}

// Engine returns the expression engine the model resolves keys with.
func (m *NodeModel) Engine() *ExpressionEngine {
	return m.engine
}

// SetRoot replaces the whole tree. All tracked nodes become detached since
// their selectors cannot survive a wholesale exchange.
func (m *NodeModel) SetRoot(root *Node) {
	m.SetRootWithReferences(root, nil)
}

// SetRootWithReferences replaces the whole tree and seeds the reference
// tracker, associating external objects with nodes of the new tree.
func (m *NodeModel) SetRootWithReferences(root *Node, refs map[*Node]interface{}) {
	if root == nil {
		root = &Node{}
	}
	for {
		old := m.data.Load()
		tracker := old.tracker.detachAll()
		newRefs := newReferenceTracker().addReferences(refs)
		newData := treeDataForRoot(root, tracker, newRefs)
		if m.data.CompareAndSwap(old, newData) {
			return
		}
	}
}

// update runs fn against the current snapshot to build the next one and
// publishes it atomically, retrying on contention. fn must be free of side
// effects outside the transaction since it can run multiple times.
func (m *NodeModel) update(fn func(td *treeData, tx *modelTransaction) error) error {
	for {
		old := m.data.Load()
		tx := newTransaction(old, m.engine)
		if err := fn(old, tx); err != nil {
			return err
		}
		newData, err := tx.execute()
		if err != nil {
			return err
		}
		if newData == old || m.data.CompareAndSwap(old, newData) {
			return nil
		}
	}
}

// baseNode resolves the node all keys of an operation are relative to:
// the root, or a tracked node when a selector is given. Operations against
// detached tracked nodes are rejected; a detached subtree no longer
// belongs to this model's tree.
func (m *NodeModel) baseNode(td *treeData, sel *NodeSelector) (*Node, error) {
	if sel == nil {
		return td.root, nil
	}
	detached, err := td.tracker.isDetached(*sel)
	if err != nil {
		return nil, err
	}
	if detached {
		return nil, errors.New(ErrCodeDetachedNode, "tracked node is detached from the model").
			WithContext("selector", sel.String())
	}
	return td.tracker.trackedNode(*sel)
}

// AddProperty adds the given values under the key, creating intermediate
// nodes as needed. Multiple values become multiple sibling nodes.
func (m *NodeModel) AddProperty(key string, values []interface{}) error {
	return m.addPropertyAt(nil, key, values)
}

func (m *NodeModel) addPropertyAt(sel *NodeSelector, key string, values []interface{}) error {
	if len(values) == 0 {
		return nil
	}
	return m.update(func(td *treeData, tx *modelTransaction) error {
		base, err := m.baseNode(td, sel)
		if err != nil {
			return err
		}
		return addPropertyTx(tx, m.engine, base, key, values)
	})
}

// addPropertyTx queues the operations for one add on a transaction.
func addPropertyTx(tx *modelTransaction, engine *ExpressionEngine, base *Node, key string, values []interface{}) error {
	data, err := engine.prepareAdd(base, key)
	if err != nil {
		return err
	}

	if data.attribute {
		attrValue := values[0]
		if len(values) > 1 {
			attrValue = values
		}
		if len(data.pathNodes) == 0 {
			return tx.setAttribute(data.parent, data.newNodeName, attrValue)
		}
		chain := buildNodeChain(data.pathNodes, func(leaf *NodeBuilder) {
			leaf.AddAttribute(data.newNodeName, attrValue)
		})
		return tx.addChildren(data.parent, []*Node{chain})
	}

	leaves := make([]*Node, len(values))
	for i, v := range values {
		leaves[i] = NewNode(data.newNodeName, v)
	}
	if len(data.pathNodes) == 0 {
		return tx.addChildren(data.parent, leaves)
	}
	chain := buildNodeChain(data.pathNodes, func(leaf *NodeBuilder) {
		leaf.AddChildren(leaves)
	})
	return tx.addChildren(data.parent, []*Node{chain})
}

// buildNodeChain creates the nested chain of path nodes for an add
// operation, applying complete to the builder of the innermost node.
func buildNodeChain(pathNodes []string, complete func(*NodeBuilder)) *Node {
	leaf := NewNodeBuilder(pathNodes[len(pathNodes)-1])
	complete(leaf)
	node := leaf.Create()
	for i := len(pathNodes) - 2; i >= 0; i-- {
		node = NewNodeBuilder(pathNodes[i]).AddChild(node).Create()
	}
	return node
}

// AddNodes hangs fully built subtrees under the node the key points to,
// creating it if missing.
func (m *NodeModel) AddNodes(key string, nodes []*Node) error {
	return m.AddNodesWithReferences(key, nodes, nil)
}

// AddNodesWithReferences additionally attaches a reference object,
// obtained from refFactory, to every added subtree root.
func (m *NodeModel) AddNodesWithReferences(key string, nodes []*Node, refFactory func(*Node) interface{}) error {
	return m.addNodesAt(nil, key, nodes, refFactory)
}

func (m *NodeModel) addNodesAt(sel *NodeSelector, key string, nodes []*Node, refFactory func(*Node) interface{}) error {
	if len(nodes) == 0 {
		return nil
	}
	if err := validateNewNodes(nodes); err != nil {
		return err
	}
	return m.update(func(td *treeData, tx *modelTransaction) error {
		base, err := m.baseNode(td, sel)
		if err != nil {
			return err
		}

		var target *Node
		results := m.engine.Query(base, key)
		for _, r := range results {
			if r.IsAttribute() {
				return errors.New(ErrCodeInvalidKey, "cannot add nodes to an attribute").
					WithContext("key", key)
			}
			if target != nil {
				return errors.New(ErrCodeInvalidKey, "key for adding nodes must be unique").
					WithContext("key", key)
			}
			target = r.Node
		}

		if target != nil {
			if err := tx.addChildren(target, nodes); err != nil {
				return err
			}
		} else {
			data, err := m.engine.prepareAdd(base, key)
			if err != nil {
				return err
			}
			if data.attribute {
				return errors.New(ErrCodeInvalidKey, "cannot add nodes to an attribute").
					WithContext("key", key)
			}
			path := append(append([]string{}, data.pathNodes...), data.newNodeName)
			chain := buildNodeChain(path, func(leaf *NodeBuilder) {
				leaf.AddChildren(nodes)
			})
			if err := tx.addChildren(data.parent, []*Node{chain}); err != nil {
				return err
			}
		}

		if refFactory != nil {
			for _, n := range nodes {
				if ref := refFactory(n); ref != nil {
					tx.addReference(n, ref)
				}
			}
		}
		return nil
	})
}

// SetProperty assigns values to the key. Existing hits are updated in
// order; surplus values are added as new nodes; surplus hits are removed.
// An empty value slice removes every hit.
func (m *NodeModel) SetProperty(key string, values []interface{}) error {
	return m.setPropertyAt(nil, key, values)
}

func (m *NodeModel) setPropertyAt(sel *NodeSelector, key string, values []interface{}) error {
	return m.update(func(td *treeData, tx *modelTransaction) error {
		base, err := m.baseNode(td, sel)
		if err != nil {
			return err
		}

		results := m.engine.Query(base, key)
		vi := 0
		var surplus []QueryResult
		for _, r := range results {
			if vi >= len(values) {
				surplus = append(surplus, r)
				continue
			}
			if r.IsAttribute() {
				err = tx.setAttribute(r.ParentNode, r.AttributeName, values[vi])
			} else {
				err = tx.changeValue(r.Node, values[vi])
			}
			if err != nil {
				return err
			}
			vi++
		}

		if vi < len(values) {
			if err := addPropertyTx(tx, m.engine, base, key, values[vi:]); err != nil {
				return err
			}
		}
		for _, r := range surplus {
			if err := removeResultTx(tx, td, base, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClearProperty removes the value addressed by the key but keeps any
// structure below it. Nodes left without any data are removed entirely.
func (m *NodeModel) ClearProperty(key string) error {
	return m.clearPropertyAt(nil, key)
}

func (m *NodeModel) clearPropertyAt(sel *NodeSelector, key string) error {
	return m.update(func(td *treeData, tx *modelTransaction) error {
		base, err := m.baseNode(td, sel)
		if err != nil {
			return err
		}
		for _, r := range m.engine.Query(base, key) {
			if r.IsAttribute() {
				if err := tx.removeAttribute(r.ParentNode, r.AttributeName); err != nil {
					return err
				}
				continue
			}
			if len(r.Node.children) == 0 && !r.Node.HasAttributes() {
				if err := removeResultTx(tx, td, base, r); err != nil {
					return err
				}
				continue
			}
			if err := tx.changeValue(r.Node, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClearTree removes the whole subtrees the key points to. The removed
// subtree roots are returned so callers can release associated external
// state; see RemovedReferences for reference objects.
func (m *NodeModel) ClearTree(key string) ([]*Node, error) {
	return m.clearTreeAt(nil, key)
}

func (m *NodeModel) clearTreeAt(sel *NodeSelector, key string) ([]*Node, error) {
	var removed []*Node
	err := m.update(func(td *treeData, tx *modelTransaction) error {
		removed = removed[:0]
		base, err := m.baseNode(td, sel)
		if err != nil {
			return err
		}
		for _, r := range m.engine.Query(base, key) {
			if r.IsAttribute() {
				if err := tx.removeAttribute(r.ParentNode, r.AttributeName); err != nil {
					return err
				}
				continue
			}
			if err := removeResultTx(tx, td, base, r); err != nil {
				return err
			}
			removed = append(removed, r.Node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// removeResultTx queues the removal of a node hit. Removing the base node
// of the operation is expressed as clearing it in place, since a tree
// always has a root and a tracked node must stay attached.
func removeResultTx(tx *modelTransaction, td *treeData, base *Node, r QueryResult) error {
	if r.Node == base {
		if err := tx.changeValue(r.Node, nil); err != nil {
			return err
		}
		for _, c := range r.Node.children {
			if err := tx.removeChild(r.Node, c); err != nil {
				return err
			}
		}
		for _, a := range r.Node.AttributeNames() {
			if err := tx.removeAttribute(r.Node, a); err != nil {
				return err
			}
		}
		return nil
	}
	parent, err := td.Parent(r.Node)
	if err != nil {
		return err
	}
	return tx.removeChild(parent, r.Node)
}

// Clear removes all data from the model, keeping tracked nodes (which all
// become detached).
func (m *NodeModel) Clear() {
	for {
		old := m.data.Load()
		tracker := old.tracker.detachAll()
		newData := treeDataForRoot(&Node{name: old.root.name}, tracker, newReferenceTracker())
		if m.data.CompareAndSwap(old, newData) {
			return
		}
	}
}

// MergeRoot merges another root node into the current one: its children
// are appended, its attributes are set, and its value wins when the
// current root has none. Tracked nodes stay attached.
func (m *NodeModel) MergeRoot(other *Node) error {
	if other == nil {
		return errors.New(ErrCodeInvalidNode, "cannot merge a nil root")
	}
	return m.update(func(td *treeData, tx *modelTransaction) error {
		if len(other.children) > 0 {
			copies := make([]*Node, len(other.children))
			copy(copies, other.children)
			if err := tx.addChildren(td.root, copies); err != nil {
				return err
			}
		}
		for k, v := range other.attributes {
			if err := tx.setAttribute(td.root, k, v); err != nil {
				return err
			}
		}
		if td.root.value == nil && other.value != nil {
			if err := tx.changeValue(td.root, other.value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Tracked node management.

// TrackNode starts tracking the node the selector resolves to. Tracking is
// reference counted; every TrackNode needs a matching UntrackNode.
func (m *NodeModel) TrackNode(selector NodeSelector) error {
	for {
		old := m.data.Load()
		tracker, err := old.tracker.trackNode(selector, old.root, m.engine)
		if err != nil {
			return err
		}
		if m.data.CompareAndSwap(old, old.withTracker(tracker)) {
			return nil
		}
	}
}

// UntrackNode releases one observation of the selector.
func (m *NodeModel) UntrackNode(selector NodeSelector) error {
	for {
		old := m.data.Load()
		tracker, err := old.tracker.untrackNode(selector)
		if err != nil {
			return err
		}
		if m.data.CompareAndSwap(old, old.withTracker(tracker)) {
			return nil
		}
	}
}

// TrackedNode returns the current node of a tracked selector. For
// detached selectors this is the root of the preserved subtree.
func (m *NodeModel) TrackedNode(selector NodeSelector) (*Node, error) {
	return m.data.Load().tracker.trackedNode(selector)
}

// IsTrackedNodeDetached reports whether the tracked node has been cut off
// from the tree by a structural update.
func (m *NodeModel) IsTrackedNodeDetached(selector NodeSelector) (bool, error) {
	return m.data.Load().tracker.isDetached(selector)
}

// ReplaceTrackedNode swaps the subtree of a tracked node for a caller
// supplied one and detaches it from the model.
func (m *NodeModel) ReplaceTrackedNode(selector NodeSelector, node *Node) error {
	if node == nil {
		return errors.New(ErrCodeInvalidNode, "replacement node must not be nil")
	}
	for {
		old := m.data.Load()
		tracker, err := old.tracker.replaceAndDetach(selector, node)
		if err != nil {
			return err
		}
		if m.data.CompareAndSwap(old, old.withTracker(tracker)) {
			return nil
		}
	}
}

// Reference access.

// NodeReference returns the external reference object associated with a
// node, or nil.
func (m *NodeModel) NodeReference(node *Node) interface{} {
	return m.data.Load().refs.reference(node)
}

// RemovedReferences returns the reference objects whose nodes have been
// removed from the tree, in removal order.
func (m *NodeModel) RemovedReferences() []interface{} {
	return m.data.Load().refs.removedReferences()
}
