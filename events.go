// events.go: Change notification for configuration updates
//
// Every mutating operation on a Configuration produces an Event that is
// delivered synchronously to registered listeners. Timestamps come from
// the cached time source so event fan-out stays off the hot path's
// syscall budget.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"sync"

	"github.com/agilira/go-timecache"
)

// EventType identifies the kind of change an Event describes.
type EventType int

const (
	// EventAddProperty signals a property added under a key.
	EventAddProperty EventType = iota
	// EventSetProperty signals a property value replaced.
	EventSetProperty
	// EventClearProperty signals a property value removed.
	EventClearProperty
	// EventClearTree signals an entire subtree removed.
	EventClearTree
	// EventClear signals the whole configuration wiped.
	EventClear
	// EventAddNodes signals structured nodes attached under a key.
	EventAddNodes
)

// String returns a readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EventAddProperty:
		return "add-property"
	case EventSetProperty:
		return "set-property"
	case EventClearProperty:
		return "clear-property"
	case EventClearTree:
		return "clear-tree"
	case EventClear:
		return "clear"
	case EventAddNodes:
		return "add-nodes"
	default:
		return "unknown"
	}
}

// Event describes a single configuration change.
type Event struct {
	Type      EventType
	Key       string
	Value     interface{}
	Before    bool
	Timestamp int64
}

// EventListener receives configuration change events.
type EventListener func(Event)

// ListenerHandle identifies a registered listener so it can be removed
// again. The zero handle is never issued.
type ListenerHandle int

type listenerReg struct {
	id ListenerHandle
	fn EventListener
}

// eventSource manages listener registration and event delivery. Each
// change fires twice, once with Before set and once after the update
// has been applied.
type eventSource struct {
	mu        sync.RWMutex
	nextID    ListenerHandle
	listeners []listenerReg
}

func (s *eventSource) addListener(l EventListener) ListenerHandle {
	if l == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.listeners = append(s.listeners, listenerReg{id: s.nextID, fn: l})
	return s.nextID
}

func (s *eventSource) removeListener(h ListenerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, reg := range s.listeners {
		if reg.id == h {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *eventSource) clearListeners() {
	s.mu.Lock()
	s.listeners = nil
	s.mu.Unlock()
}

func (s *eventSource) fire(t EventType, key string, value interface{}, before bool) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	ev := Event{
		Type:      t,
		Key:       key,
		Value:     value,
		Before:    before,
		Timestamp: timecache.CachedTimeNano(),
	}
	for _, reg := range listeners {
		reg.fn(ev)
	}
}
