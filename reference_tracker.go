// reference_tracker.go: Associating external objects with tree nodes
//
// Some configuration sources need extra data stored alongside the node
// structure. We call such data "references": a node may stand for, say, an
// element of a backing document, and that element object must stay
// reachable from the node even while structural edits replace nodes left
// and right. Tracking references across replacements and removals is the
// job of this file.
//
// Instances are immutable; updates return new instances which the owning
// snapshot stores. Orphaned references, whose nodes were removed, are kept
// on a list because the owning source may need to clean them up.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

// referenceTracker manages a map from nodes to reference objects plus the
// references orphaned by node removals.
type referenceTracker struct {
	references  map[*Node]interface{}
	removedRefs []interface{}
}

func newReferenceTracker() *referenceTracker {
	return &referenceTracker{references: map[*Node]interface{}{}}
}

// addReferences returns a tracker that additionally manages the given
// references.
func (rt *referenceTracker) addReferences(refs map[*Node]interface{}) *referenceTracker {
	if len(refs) == 0 {
		return rt
	}
	newRefs := make(map[*Node]interface{}, len(rt.references)+len(refs))
	for k, v := range rt.references {
		newRefs[k] = v
	}
	for k, v := range refs {
		newRefs[k] = v
	}
	return &referenceTracker{references: newRefs, removedRefs: rt.removedRefs}
}

// reference returns the reference object for the node, or nil.
func (rt *referenceTracker) reference(node *Node) interface{} {
	return rt.references[node]
}

// removedReferences returns a copy of the orphaned reference list in
// removal order.
func (rt *referenceTracker) removedReferences() []interface{} {
	if len(rt.removedRefs) == 0 {
		return nil
	}
	out := make([]interface{}, len(rt.removedRefs))
	copy(out, rt.removedRefs)
	return out
}

// updateReferences is called at the end of a model transaction with the
// nodes replaced by others and the nodes removed. Copies are made lazily:
// when no managed node is affected, the tracker itself is returned.
func (rt *referenceTracker) updateReferences(replaced map[*Node]*Node, removed []*Node) *referenceTracker {
	if len(rt.references) == 0 {
		return rt
	}

	var newRefs map[*Node]interface{}
	var newRemoved []interface{}

	copyRefs := func() {
		if newRefs == nil {
			newRefs = make(map[*Node]interface{}, len(rt.references))
			for k, v := range rt.references {
				newRefs[k] = v
			}
			newRemoved = make([]interface{}, len(rt.removedRefs))
			copy(newRemoved, rt.removedRefs)
		}
	}

	for oldNode, newNode := range replaced {
		if ref, ok := rt.references[oldNode]; ok {
			copyRefs()
			newRefs[newNode] = ref
			delete(newRefs, oldNode)
		}
	}

	for _, node := range removed {
		if ref, ok := rt.references[node]; ok {
			copyRefs()
			delete(newRefs, node)
			newRemoved = append(newRemoved, ref)
		}
	}

	if newRefs == nil {
		return rt
	}
	return &referenceTracker{references: newRefs, removedRefs: newRemoved}
}
