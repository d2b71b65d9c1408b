// config.go: Hierarchical configuration facade
//
// Configuration is the user facing surface of the library. It wraps a
// NodeModel with key based access, list splitting, typed getters and
// change events. Sub configurations share the parent's model through a
// tracked node, so updates made through either view stay consistent.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"image/color"
	"net"
	"net/url"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
)

// Configuration provides hierarchical, key addressed access to a tree of
// configuration data. All operations are safe for concurrent use.
type Configuration struct {
	model     *NodeModel
	sel       *NodeSelector
	delimiter atomic.Pointer[ListDelimiterHandler]
	events    *eventSource
}

// New creates an empty Configuration with the default expression engine
// and list splitting disabled.
func New() *Configuration {
	return NewWithRoot(NewNode("", nil))
}

// NewWithRoot creates a Configuration over an existing node tree.
func NewWithRoot(root *Node) *Configuration {
	c := &Configuration{
		model:  NewNodeModel(root, NewExpressionEngine()),
		events: &eventSource{},
	}
	c.SetListDelimiterHandler(DisabledDelimiterHandler{})
	return c
}

// SetListDelimiterHandler changes how string values are split into
// lists. Passing nil disables splitting. The handler may be swapped
// while other goroutines use the configuration; in-flight operations
// finish with the handler they started with.
func (c *Configuration) SetListDelimiterHandler(h ListDelimiterHandler) {
	if h == nil {
		h = DisabledDelimiterHandler{}
	}
	c.delimiter.Store(&h)
}

// ListDelimiter returns the handler used to split list values.
func (c *Configuration) ListDelimiter() ListDelimiterHandler {
	return *c.delimiter.Load()
}

// Model exposes the underlying node model.
func (c *Configuration) Model() *NodeModel {
	return c.model
}

// Root returns the root node of this configuration's view. For a sub
// configuration this is the tracked subtree root.
func (c *Configuration) Root() *Node {
	if c.sel == nil {
		return c.model.Root()
	}
	node, err := c.model.TrackedNode(*c.sel)
	if err != nil {
		return nil
	}
	return node
}

// AddListener registers a change listener. Listeners run synchronously
// in the mutating goroutine, before and after each change. The returned
// handle removes the listener again via RemoveListener.
func (c *Configuration) AddListener(l EventListener) ListenerHandle {
	return c.events.addListener(l)
}

// RemoveListener deregisters the listener behind the handle. Unknown
// handles are ignored.
func (c *Configuration) RemoveListener(h ListenerHandle) {
	c.events.removeListener(h)
}

// ClearListeners removes all registered listeners.
func (c *Configuration) ClearListeners() {
	c.events.clearListeners()
}

// query runs the key against this configuration's view of the tree.
func (c *Configuration) query(key string) []QueryResult {
	root := c.Root()
	if root == nil {
		return nil
	}
	return c.model.Engine().Query(root, key)
}

// Property returns the first value stored under the key, or nil when the
// key does not exist. Attribute values are returned as stored.
func (c *Configuration) Property(key string) interface{} {
	for _, r := range c.query(key) {
		if v := r.Value(); v != nil {
			return v
		}
	}
	return nil
}

// Get returns the first value under the key or a coded error when the
// key resolves to nothing.
func (c *Configuration) Get(key string) (interface{}, error) {
	for _, r := range c.query(key) {
		if v := r.Value(); v != nil {
			return v, nil
		}
	}
	return nil, errors.New(ErrCodeKeyNotFound, "key not found").WithContext("key", key)
}

// Properties returns every value the key resolves to, in document order.
func (c *Configuration) Properties(key string) []interface{} {
	results := c.query(key)
	var out []interface{}
	for _, r := range results {
		if v := r.Value(); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// Contains reports whether the key resolves to at least one value.
func (c *Configuration) Contains(key string) bool {
	for _, r := range c.query(key) {
		if r.Value() != nil {
			return true
		}
	}
	return false
}

// MaxIndex returns the highest index addressable for the key, or -1 when
// the key matches nothing.
func (c *Configuration) MaxIndex(key string) int {
	return len(c.query(key)) - 1
}

// IsEmpty reports whether the configuration holds no values at all.
func (c *Configuration) IsEmpty() bool {
	root := c.Root()
	if root == nil {
		return true
	}
	empty := true
	visitNodes(root, func(n *Node) bool {
		if n.Value() != nil || n.HasAttributes() {
			empty = false
			return false
		}
		return true
	})
	return empty
}

// Size returns the number of distinct keys in the configuration.
func (c *Configuration) Size() int {
	return len(c.Keys())
}

// Keys returns every key that resolves to a value or attribute. Sibling
// nodes with the same name yield the key once.
func (c *Configuration) Keys() []string {
	root := c.Root()
	if root == nil {
		return nil
	}
	engine := c.model.Engine()
	var keys []string
	seen := make(map[string]struct{})
	add := func(k string) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	var walk func(node *Node, parentKey string, isRoot bool)
	walk = func(node *Node, parentKey string, isRoot bool) {
		key := parentKey
		if !isRoot {
			key = engine.NodeKey(node, parentKey, nil)
			if node.Value() != nil {
				add(key)
			}
		}
		for _, name := range node.AttributeNames() {
			add(engine.AttributeKey(key, name))
		}
		for _, child := range node.Children() {
			walk(child, key, false)
		}
	}
	walk(root, "", true)
	return keys
}

// Add appends values under the key without touching existing ones.
// String values are split through the list delimiter handler.
func (c *Configuration) Add(key string, value interface{}) error {
	c.events.fire(EventAddProperty, key, value, true)
	err := c.model.addPropertyAt(c.sel, key, splitValue(value, c.ListDelimiter()))
	if err != nil {
		return err
	}
	c.events.fire(EventAddProperty, key, value, false)
	return nil
}

// Set replaces all values under the key with the given one, creating the
// key when missing.
func (c *Configuration) Set(key string, value interface{}) error {
	c.events.fire(EventSetProperty, key, value, true)
	err := c.model.setPropertyAt(c.sel, key, splitValue(value, c.ListDelimiter()))
	if err != nil {
		return err
	}
	c.events.fire(EventSetProperty, key, value, false)
	return nil
}

// AddNodes attaches prebuilt node subtrees under the key.
func (c *Configuration) AddNodes(key string, nodes []*Node) error {
	c.events.fire(EventAddNodes, key, nodes, true)
	err := c.model.addNodesAt(c.sel, key, nodes, nil)
	if err != nil {
		return err
	}
	c.events.fire(EventAddNodes, key, nodes, false)
	return nil
}

// ClearKey removes the value stored under the key. Nodes left without
// value, children and attributes are removed entirely.
func (c *Configuration) ClearKey(key string) error {
	c.events.fire(EventClearProperty, key, nil, true)
	err := c.model.clearPropertyAt(c.sel, key)
	if err != nil {
		return err
	}
	c.events.fire(EventClearProperty, key, nil, false)
	return nil
}

// ClearTree removes the whole subtree the key points to and returns the
// removed subtree roots.
func (c *Configuration) ClearTree(key string) ([]*Node, error) {
	c.events.fire(EventClearTree, key, nil, true)
	removed, err := c.model.clearTreeAt(c.sel, key)
	if err != nil {
		return nil, err
	}
	c.events.fire(EventClearTree, key, nil, false)
	return removed, nil
}

// Clear wipes the configuration. On a sub configuration only the subtree
// is emptied; the node stays attached to the shared tree.
func (c *Configuration) Clear() {
	c.events.fire(EventClear, "", nil, true)
	if c.sel == nil {
		c.model.Clear()
	} else {
		_, _ = c.model.clearTreeAt(c.sel, "")
	}
	c.events.fire(EventClear, "", nil, false)
}

// Subtree returns a Configuration rooted at the single node the key
// resolves to. The sub configuration shares this configuration's model;
// changes made through it are visible here and vice versa. The subtree
// node is tracked, so it survives updates to unrelated parts of the
// tree. Callers release the tracking with Close on the returned value.
func (c *Configuration) Subtree(key string) (*Configuration, error) {
	var sel NodeSelector
	if c.sel == nil {
		sel = Select(key)
	} else {
		sel = c.sel.Sub(key)
	}
	if err := c.model.TrackNode(sel); err != nil {
		return nil, err
	}
	sub := &Configuration{
		model:  c.model,
		sel:    &sel,
		events: &eventSource{},
	}
	sub.SetListDelimiterHandler(c.ListDelimiter())
	return sub, nil
}

// Close releases the tracked node backing a sub configuration. It is a
// no-op on a root configuration.
func (c *Configuration) Close() error {
	if c.sel == nil {
		return nil
	}
	return c.model.UntrackNode(*c.sel)
}

// Detached reports whether a sub configuration's root has been removed
// from the underlying tree.
func (c *Configuration) Detached() bool {
	if c.sel == nil {
		return false
	}
	detached, err := c.model.IsTrackedNodeDetached(*c.sel)
	if err != nil {
		return true
	}
	return detached
}

// Typed getters. Each returns a conversion error when the stored value
// cannot be converted; the Default variants fall back instead.

// GetString returns the value under key as a string.
func (c *Configuration) GetString(key string) (string, error) {
	v, err := c.Get(key)
	if err != nil {
		return "", err
	}
	return ToString(v), nil
}

// GetStringDefault returns the value under key as a string or def when
// the key is missing.
func (c *Configuration) GetStringDefault(key, def string) string {
	v, err := c.Get(key)
	if err != nil {
		return def
	}
	return ToString(v)
}

// GetBool returns the value under key as a bool.
func (c *Configuration) GetBool(key string) (bool, error) {
	v, err := c.Get(key)
	if err != nil {
		return false, err
	}
	return ToBool(v)
}

// GetBoolDefault returns the value under key as a bool or def.
func (c *Configuration) GetBoolDefault(key string, def bool) bool {
	v, err := c.Get(key)
	if err != nil {
		return def
	}
	b, err := ToBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetInt returns the value under key as an int.
func (c *Configuration) GetInt(key string) (int, error) {
	v, err := c.Get(key)
	if err != nil {
		return 0, err
	}
	return ToInt(v)
}

// GetIntDefault returns the value under key as an int or def.
func (c *Configuration) GetIntDefault(key string, def int) int {
	v, err := c.Get(key)
	if err != nil {
		return def
	}
	n, err := ToInt(v)
	if err != nil {
		return def
	}
	return n
}

// GetInt64 returns the value under key as an int64.
func (c *Configuration) GetInt64(key string) (int64, error) {
	v, err := c.Get(key)
	if err != nil {
		return 0, err
	}
	return ToInt64(v)
}

// GetUint64 returns the value under key as a uint64.
func (c *Configuration) GetUint64(key string) (uint64, error) {
	v, err := c.Get(key)
	if err != nil {
		return 0, err
	}
	return ToUint64(v)
}

// GetFloat64 returns the value under key as a float64.
func (c *Configuration) GetFloat64(key string) (float64, error) {
	v, err := c.Get(key)
	if err != nil {
		return 0, err
	}
	return ToFloat64(v)
}

// GetDuration returns the value under key as a time.Duration.
func (c *Configuration) GetDuration(key string) (time.Duration, error) {
	v, err := c.Get(key)
	if err != nil {
		return 0, err
	}
	return ToDuration(v)
}

// GetDurationDefault returns the value under key as a duration or def.
func (c *Configuration) GetDurationDefault(key string, def time.Duration) time.Duration {
	v, err := c.Get(key)
	if err != nil {
		return def
	}
	d, err := ToDuration(v)
	if err != nil {
		return def
	}
	return d
}

// GetTime returns the value under key as a time.Time parsed with the
// given layout. An empty layout means RFC 3339.
func (c *Configuration) GetTime(key, layout string) (time.Time, error) {
	v, err := c.Get(key)
	if err != nil {
		return time.Time{}, err
	}
	return ToTime(v, layout)
}

// GetStringSlice returns all values under key as strings, splitting list
// values through the delimiter handler.
func (c *Configuration) GetStringSlice(key string) ([]string, error) {
	values := c.Properties(key)
	if len(values) == 0 {
		return nil, errors.New(ErrCodeKeyNotFound, "key not found").WithContext("key", key)
	}
	var out []string
	for _, v := range values {
		elems, err := ToStringSlice(v, c.ListDelimiter())
		if err != nil {
			return nil, err
		}
		out = append(out, elems...)
	}
	return out, nil
}

// GetIntSlice returns all values under key as ints.
func (c *Configuration) GetIntSlice(key string) ([]int, error) {
	values := c.Properties(key)
	if len(values) == 0 {
		return nil, errors.New(ErrCodeKeyNotFound, "key not found").WithContext("key", key)
	}
	var out []int
	for _, v := range values {
		elems, err := ToIntSlice(v, c.ListDelimiter())
		if err != nil {
			return nil, err
		}
		out = append(out, elems...)
	}
	return out, nil
}

// GetInt64Default returns the value under key as an int64 or def.
func (c *Configuration) GetInt64Default(key string, def int64) int64 {
	n, err := c.GetInt64(key)
	if err != nil {
		return def
	}
	return n
}

// GetUint64Default returns the value under key as a uint64 or def.
func (c *Configuration) GetUint64Default(key string, def uint64) uint64 {
	n, err := c.GetUint64(key)
	if err != nil {
		return def
	}
	return n
}

// GetFloat64Default returns the value under key as a float64 or def.
func (c *Configuration) GetFloat64Default(key string, def float64) float64 {
	f, err := c.GetFloat64(key)
	if err != nil {
		return def
	}
	return f
}

// GetTimeDefault returns the value under key as a time.Time or def.
func (c *Configuration) GetTimeDefault(key, layout string, def time.Time) time.Time {
	t, err := c.GetTime(key, layout)
	if err != nil {
		return def
	}
	return t
}

// GetBytes returns the value under key as a byte slice.
func (c *Configuration) GetBytes(key string) ([]byte, error) {
	v, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	return ToBytes(v)
}

// GetURL returns the value under key as a parsed URL.
func (c *Configuration) GetURL(key string) (*url.URL, error) {
	v, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	return ToURL(v)
}

// GetURLDefault returns the value under key as a URL or def.
func (c *Configuration) GetURLDefault(key string, def *url.URL) *url.URL {
	u, err := c.GetURL(key)
	if err != nil {
		return def
	}
	return u
}

// GetIP returns the value under key as an IP address.
func (c *Configuration) GetIP(key string) (net.IP, error) {
	v, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	return ToIP(v)
}

// GetIPDefault returns the value under key as an IP address or def.
func (c *Configuration) GetIPDefault(key string, def net.IP) net.IP {
	ip, err := c.GetIP(key)
	if err != nil {
		return def
	}
	return ip
}

// GetRegexp returns the value under key as a compiled regular expression.
func (c *Configuration) GetRegexp(key string) (*regexp.Regexp, error) {
	v, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	return ToRegexp(v)
}

// GetRGBA returns the value under key as an RGBA color.
func (c *Configuration) GetRGBA(key string) (color.RGBA, error) {
	v, err := c.Get(key)
	if err != nil {
		return color.RGBA{}, err
	}
	return ToRGBA(v)
}

// GetRGBADefault returns the value under key as a color or def.
func (c *Configuration) GetRGBADefault(key string, def color.RGBA) color.RGBA {
	col, err := c.GetRGBA(key)
	if err != nil {
		return def
	}
	return col
}

// GetStringSliceDefault returns the values under key as strings or def.
func (c *Configuration) GetStringSliceDefault(key string, def []string) []string {
	s, err := c.GetStringSlice(key)
	if err != nil {
		return def
	}
	return s
}
