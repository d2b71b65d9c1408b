// node_tracker.go: Tracking nodes across structural updates
//
// A tracked node is a node a caller wants to keep hold of while the tree
// changes underneath it, typically because a sub-configuration is rooted
// there. Tracking works through selectors: a selector is a key (or chain
// of keys) that resolves to exactly one node. After every structural
// update the tracker re-resolves its selectors against the new tree; a
// selector that no longer resolves means its node was removed, and the
// tracked node becomes detached, carrying the last known state as an
// independent tree.
//
// The tracker is immutable. The snapshot owns one instance per version.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"strings"

	"github.com/agilira/go-errors"
)

// NodeSelector identifies a single node in the tree by a chain of keys.
// Each key is evaluated against the node the previous key resolved to; the
// whole selector fails unless every step yields exactly one node result.
type NodeSelector struct {
	keys []string
}

// Select creates a selector for a key evaluated against the root node.
func Select(key string) NodeSelector {
	return NodeSelector{keys: []string{key}}
}

// Sub returns a selector that evaluates key against the node this
// selector resolves to. Used for sub-configurations of sub-configurations.
func (s NodeSelector) Sub(key string) NodeSelector {
	keys := make([]string, len(s.keys)+1)
	copy(keys, s.keys)
	keys[len(s.keys)] = key
	return NodeSelector{keys: keys}
}

// String returns the canonical textual form of the selector. Two selectors
// with the same string are the same selector.
func (s NodeSelector) String() string {
	return strings.Join(s.keys, " -> ")
}

// resolve evaluates the selector against root. The result is nil when any
// step matches no node or more than one.
func (s NodeSelector) resolve(root *Node, engine *ExpressionEngine) *Node {
	cur := root
	for _, key := range s.keys {
		var match *Node
		for _, res := range engine.Query(cur, key) {
			if res.IsAttribute() {
				continue
			}
			if match != nil {
				return nil
			}
			match = res.Node
		}
		if match == nil {
			return nil
		}
		cur = match
	}
	return cur
}

// trackedNodeData is the full state of one tracked node.
type trackedNodeData struct {
	selector  NodeSelector
	node      *Node
	observers int
	detached  bool
}

func (d *trackedNodeData) withNode(node *Node) *trackedNodeData {
	c := *d
	c.node = node
	return &c
}

func (d *trackedNodeData) asDetached(node *Node) *trackedNodeData {
	c := *d
	if node != nil {
		c.node = node
	}
	c.detached = true
	return &c
}

func (d *trackedNodeData) observed() *trackedNodeData {
	c := *d
	c.observers++
	return &c
}

// NodeTracker manages the set of tracked nodes of a node model. All
// mutating methods return a new tracker, never touching the receiver.
type NodeTracker struct {
	entries map[string]*trackedNodeData
}

// NewNodeTracker creates a tracker that tracks nothing.
func NewNodeTracker() *NodeTracker {
	return &NodeTracker{entries: map[string]*trackedNodeData{}}
}

func (t *NodeTracker) copyEntries() map[string]*trackedNodeData {
	out := make(map[string]*trackedNodeData, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// trackNode starts tracking the node the selector resolves to against
// root. Tracking the same selector again bumps an observer count; the node
// stays tracked until every observer called untrackNode.
func (t *NodeTracker) trackNode(selector NodeSelector, root *Node, engine *ExpressionEngine) (*NodeTracker, error) {
	entries := t.copyEntries()
	key := selector.String()
	if existing, ok := entries[key]; ok {
		entries[key] = existing.observed()
		return &NodeTracker{entries: entries}, nil
	}
	node := selector.resolve(root, engine)
	if node == nil {
		return nil, errors.New(ErrCodeNodeNotFound, "selector does not resolve to a single node").
			WithContext("selector", key)
	}
	entries[key] = &trackedNodeData{selector: selector, node: node, observers: 1}
	return &NodeTracker{entries: entries}, nil
}

// untrackNode releases one observation of the selector. The last release
// removes the entry.
func (t *NodeTracker) untrackNode(selector NodeSelector) (*NodeTracker, error) {
	key := selector.String()
	existing, ok := t.entries[key]
	if !ok {
		return nil, errors.Wrap(ErrNotTracked, ErrCodeNotTracked, "cannot untrack").
			WithContext("selector", key)
	}
	entries := t.copyEntries()
	if existing.observers <= 1 {
		delete(entries, key)
	} else {
		c := *existing
		c.observers--
		entries[key] = &c
	}
	return &NodeTracker{entries: entries}, nil
}

// trackedNode returns the current node for the selector.
func (t *NodeTracker) trackedNode(selector NodeSelector) (*Node, error) {
	existing, ok := t.entries[selector.String()]
	if !ok {
		return nil, errors.Wrap(ErrNotTracked, ErrCodeNotTracked, "unknown tracked node").
			WithContext("selector", selector.String())
	}
	return existing.node, nil
}

// isDetached reports whether the tracked node has been cut off from the
// model's tree by a structural update.
func (t *NodeTracker) isDetached(selector NodeSelector) (bool, error) {
	existing, ok := t.entries[selector.String()]
	if !ok {
		return false, errors.Wrap(ErrNotTracked, ErrCodeNotTracked, "unknown tracked node").
			WithContext("selector", selector.String())
	}
	return existing.detached, nil
}

// update re-resolves all selectors against the new root after a structural
// change. Selectors that stop resolving have their nodes detached with the
// last known state; replaced nodes are bridged so a tracked node follows
// its replacement.
func (t *NodeTracker) update(newRoot *Node, engine *ExpressionEngine, replaced map[*Node]*Node) *NodeTracker {
	if len(t.entries) == 0 {
		return t
	}
	entries := make(map[string]*trackedNodeData, len(t.entries))
	for key, data := range t.entries {
		if data.detached {
			entries[key] = data
			continue
		}
		if node := data.selector.resolve(newRoot, engine); node != nil {
			entries[key] = data.withNode(node)
			continue
		}
		// The node fell out of the tree. Keep the freshest known state:
		// a replacement produced in the same transaction wins over the
		// node recorded before it.
		entries[key] = data.asDetached(chaseReplacements(data.node, replaced))
	}
	return &NodeTracker{entries: entries}
}

// replaceAndDetach installs a new root node for the tracked node and marks
// it detached. Used when a caller supplies its own subtree for a
// sub-configuration that should no longer follow the model.
func (t *NodeTracker) replaceAndDetach(selector NodeSelector, node *Node) (*NodeTracker, error) {
	key := selector.String()
	existing, ok := t.entries[key]
	if !ok {
		return nil, errors.Wrap(ErrNotTracked, ErrCodeNotTracked, "cannot detach").
			WithContext("selector", key)
	}
	entries := t.copyEntries()
	entries[key] = existing.asDetached(node)
	return &NodeTracker{entries: entries}, nil
}

// detachAll marks every tracked node as detached. Called when the model's
// whole tree is replaced, which invalidates all selectors at once.
func (t *NodeTracker) detachAll() *NodeTracker {
	if len(t.entries) == 0 {
		return t
	}
	entries := make(map[string]*trackedNodeData, len(t.entries))
	for key, data := range t.entries {
		if data.detached {
			entries[key] = data
		} else {
			entries[key] = data.asDetached(nil)
		}
	}
	return &NodeTracker{entries: entries}
}
