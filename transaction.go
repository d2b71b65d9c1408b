// transaction.go: Structural updates as transactions on a tree snapshot
//
// A transaction collects operations addressed at nodes of the current
// snapshot and then executes them in one pass. Execution runs bottom-up:
// targets are processed from the deepest tree level towards the root, and
// each changed node registers a replace-child operation with its parent,
// so the chain of fresh ancestors is built exactly once per transaction no
// matter how many operations were queued.
//
// Along the way the transaction maintains the incremental bookkeeping the
// next snapshot needs: parent entries for added subtrees, removal of
// entries for dropped subtrees, the old->new replacement records that let
// parent lookups bridge superseded nodes, and the updates for the node
// and reference trackers.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"github.com/agilira/go-errors"
)

// childReplacement is a queued swap of one child for another.
type childReplacement struct {
	old *Node
	new *Node
}

// nodeOps accumulates all operations addressed at one target node.
type nodeOps struct {
	replacedChildren []childReplacement
	removedChildren  []*Node
	addedChildren    []*Node
	valueChanged     bool
	newValue         interface{}
	attrsSet         map[string]interface{}
	attrsRemoved     []string
}

// apply folds the queued operations over the target, returning the
// resulting node. The target is returned unchanged (same identity) when
// no operation had an effect.
func (o *nodeOps) apply(target *Node) *Node {
	result := target
	for _, r := range o.replacedChildren {
		result = result.ReplaceChild(r.old, r.new)
	}
	for _, c := range o.removedChildren {
		result = result.RemoveChild(c)
	}
	if len(o.addedChildren) > 0 {
		result = result.AddChildren(o.addedChildren)
	}
	if o.valueChanged {
		result = result.WithValue(o.newValue)
	}
	if len(o.attrsSet) > 0 {
		result = result.SetAttributes(o.attrsSet)
	}
	for _, name := range o.attrsRemoved {
		result = result.RemoveAttribute(name)
	}
	return result
}

// modelTransaction performs one atomic structural update of a snapshot.
type modelTransaction struct {
	current *treeData
	engine  *ExpressionEngine

	// ops maps tree level -> target node -> queued operations. Levels let
	// execution walk strictly bottom-up.
	ops map[int]map[*Node]*nodeOps

	parentMapping map[*Node]*Node
	replacements  map[*Node]*Node

	// replacedThisTx and removedNodes feed the trackers after execution.
	replacedThisTx map[*Node]*Node
	removedNodes   []*Node

	// newRefs holds references attached to nodes created in this
	// transaction.
	newRefs map[*Node]interface{}
}

func newTransaction(current *treeData, engine *ExpressionEngine) *modelTransaction {
	return &modelTransaction{
		current:        current,
		engine:         engine,
		ops:            map[int]map[*Node]*nodeOps{},
		parentMapping:  current.copyParentMapping(),
		replacements:   current.copyReplacementMapping(),
		replacedThisTx: map[*Node]*Node{},
		newRefs:        map[*Node]interface{}{},
	}
}

// opsFor returns (creating on demand) the operation set for a target
// node, which must be part of the current tree.
func (tx *modelTransaction) opsFor(target *Node) (*nodeOps, error) {
	level := nodeDepth(tx.current, target)
	if level < 0 {
		return nil, errors.Wrap(ErrNodeNotFound, ErrCodeNodeNotFound, "transaction target outside model").
			WithContext("node", target.Name())
	}
	byTarget, ok := tx.ops[level]
	if !ok {
		byTarget = map[*Node]*nodeOps{}
		tx.ops[level] = byTarget
	}
	o, ok := byTarget[target]
	if !ok {
		o = &nodeOps{}
		byTarget[target] = o
	}
	return o, nil
}

func (tx *modelTransaction) addChildren(target *Node, children []*Node) error {
	if err := validateNewNodes(children); err != nil {
		return err
	}
	o, err := tx.opsFor(target)
	if err != nil {
		return err
	}
	o.addedChildren = append(o.addedChildren, children...)
	return nil
}

func (tx *modelTransaction) removeChild(target, child *Node) error {
	o, err := tx.opsFor(target)
	if err != nil {
		return err
	}
	o.removedChildren = append(o.removedChildren, child)
	return nil
}

func (tx *modelTransaction) changeValue(target *Node, value interface{}) error {
	o, err := tx.opsFor(target)
	if err != nil {
		return err
	}
	o.valueChanged = true
	o.newValue = value
	return nil
}

func (tx *modelTransaction) setAttribute(target *Node, name string, value interface{}) error {
	o, err := tx.opsFor(target)
	if err != nil {
		return err
	}
	if o.attrsSet == nil {
		o.attrsSet = map[string]interface{}{}
	}
	o.attrsSet[name] = value
	return nil
}

func (tx *modelTransaction) removeAttribute(target *Node, name string) error {
	o, err := tx.opsFor(target)
	if err != nil {
		return err
	}
	o.attrsRemoved = append(o.attrsRemoved, name)
	return nil
}

// addReference associates an external reference object with a node added
// in this transaction.
func (tx *modelTransaction) addReference(node *Node, ref interface{}) {
	tx.newRefs[node] = ref
}

// replaceChild registers the upward propagation of a changed node. The
// parent sits one level above the target, so its own processing has not
// happened yet by the time this runs.
func (tx *modelTransaction) replaceChild(parent *Node, old, new *Node) error {
	o, err := tx.opsFor(parent)
	if err != nil {
		return err
	}
	o.replacedChildren = append(o.replacedChildren, childReplacement{old: old, new: new})
	return nil
}

// execute runs all queued operations and produces the next snapshot.
// A transaction without effective changes returns the current snapshot.
func (tx *modelTransaction) execute() (*treeData, error) {
	if len(tx.ops) == 0 {
		return tx.current, nil
	}

	newRoot := tx.current.root

	// Processing a level registers replace-child operations one level up,
	// so the walk must visit every level down to the root even when no
	// operation was queued there directly.
	maxLevel := 0
	for lvl := range tx.ops {
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}

	for lvl := maxLevel; lvl >= 0; lvl-- {
		for target, o := range tx.ops[lvl] {
			result := o.apply(target)
			if result == target {
				continue
			}

			tx.recordAdded(o.addedChildren, result)
			tx.recordRemoved(o.removedChildren, target)

			tx.replacedThisTx[target] = result
			tx.replacements[target] = result

			if target == tx.current.root {
				newRoot = result
				continue
			}
			parent, err := tx.current.Parent(target)
			if err != nil {
				return nil, err
			}
			if err := tx.replaceChild(parent, target, result); err != nil {
				return nil, err
			}
		}
	}

	parents, replacements := tx.parentMapping, tx.replacements
	if len(replacements) > len(parents) {
		// The bridge maps have outgrown the tree; rebuilding the parent
		// mapping from scratch is cheaper than chasing ever longer
		// replacement chains.
		parents = make(map[*Node]*Node)
		createParentMapping(newRoot, parents)
		replacements = map[*Node]*Node{}
	}

	tracker := tx.current.tracker.update(newRoot, tx.engine, tx.replacedThisTx)
	refs := tx.current.refs.
		updateReferences(tx.replacedThisTx, tx.removedNodes).
		addReferences(tx.newRefs)

	return newTreeData(newRoot, parents, replacements, tracker, refs), nil
}

// recordAdded writes parent entries for freshly added subtrees. The new
// children hang off the result node; their descendants keep the structure
// they were built with.
func (tx *modelTransaction) recordAdded(added []*Node, result *Node) {
	for _, child := range added {
		tx.parentMapping[child] = result
		createParentMapping(child, tx.parentMapping)
	}
}

// recordRemoved collects removed subtrees for the trackers and drops
// their parent entries.
func (tx *modelTransaction) recordRemoved(removed []*Node, target *Node) {
	for _, child := range removed {
		if target.IndexOfChild(child) < 0 {
			continue
		}
		for _, n := range collectSubtree(child) {
			tx.removedNodes = append(tx.removedNodes, n)
			delete(tx.parentMapping, n)
		}
	}
}
