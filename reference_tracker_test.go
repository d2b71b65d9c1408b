// reference_tracker_test.go - Tests for node reference bookkeeping
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"testing"
)

func TestReferenceTrackerAddAndLookup(t *testing.T) {
	n1 := NewNode("a", 1)
	n2 := NewNode("b", 2)
	rt := newReferenceTracker().addReferences(map[*Node]interface{}{
		n1: "ref-a",
		n2: "ref-b",
	})

	if got := rt.reference(n1); got != "ref-a" {
		t.Errorf("reference(n1) = %v, want ref-a", got)
	}
	if got := rt.reference(NewNode("c", 3)); got != nil {
		t.Errorf("reference for unmanaged node = %v, want nil", got)
	}
}

func TestReferenceTrackerFollowsReplacements(t *testing.T) {
	oldNode := NewNode("a", 1)
	newNode := oldNode.WithValue(2)
	rt := newReferenceTracker().addReferences(map[*Node]interface{}{oldNode: "ref"})

	updated := rt.updateReferences(map[*Node]*Node{oldNode: newNode}, nil)
	if got := updated.reference(newNode); got != "ref" {
		t.Errorf("Reference did not follow replacement, got %v", got)
	}
	if got := updated.reference(oldNode); got != nil {
		t.Error("Old node must no longer carry the reference")
	}
}

func TestReferenceTrackerRecordsRemovals(t *testing.T) {
	n1 := NewNode("a", 1)
	n2 := NewNode("b", 2)
	rt := newReferenceTracker().addReferences(map[*Node]interface{}{
		n1: "ref-a",
		n2: "ref-b",
	})

	updated := rt.updateReferences(nil, []*Node{n1})
	removed := updated.removedReferences()
	if len(removed) != 1 || removed[0] != "ref-a" {
		t.Errorf("removedReferences = %v, want [ref-a]", removed)
	}
	if updated.reference(n1) != nil {
		t.Error("Removed node must no longer carry a reference")
	}
	if updated.reference(n2) != "ref-b" {
		t.Error("Unaffected reference must survive")
	}

	// Removal order is preserved across updates.
	updated = updated.updateReferences(nil, []*Node{n2})
	removed = updated.removedReferences()
	if len(removed) != 2 || removed[0] != "ref-a" || removed[1] != "ref-b" {
		t.Errorf("removedReferences = %v, want [ref-a ref-b]", removed)
	}
}

func TestReferenceTrackerLazyCopy(t *testing.T) {
	n1 := NewNode("a", 1)
	rt := newReferenceTracker().addReferences(map[*Node]interface{}{n1: "ref"})

	unaffected := rt.updateReferences(
		map[*Node]*Node{NewNode("x", 0): NewNode("x", 1)},
		[]*Node{NewNode("y", 0)},
	)
	if unaffected != rt {
		t.Error("Update not touching managed nodes must return the same instance")
	}

	empty := newReferenceTracker()
	if empty.updateReferences(map[*Node]*Node{n1: NewNode("a", 2)}, nil) != empty {
		t.Error("Empty tracker must return itself")
	}
	if empty.addReferences(nil) != empty {
		t.Error("Adding no references must return the same instance")
	}
}
