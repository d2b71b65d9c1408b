// snapshot.go: Map and YAML import/export
//
// Bridges the node tree to the nested map shapes the rest of the Go
// world speaks. Attributes travel as keys with a leading '@' so a round
// trip through a map or a YAML document preserves them. Repeated sibling
// nodes become a slice.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"fmt"
	"sort"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// attrPrefix marks attribute entries in the map form of a tree.
const attrPrefix = "@"

// valueKey holds a node's own value when the node also has children or
// attributes and cannot collapse to a plain scalar.
const valueKey = "#value"

// ToMap exports the configuration as a nested map. Leaf nodes collapse
// to their value; nodes with structure become maps; same named siblings
// become a slice.
func (c *Configuration) ToMap() map[string]interface{} {
	root := c.Root()
	if root == nil {
		return map[string]interface{}{}
	}
	m, _ := nodeToMapValue(root)
	if mm, ok := m.(map[string]interface{}); ok {
		return mm
	}
	return map[string]interface{}{}
}

// nodeToMapValue converts one node to its map form. The bool reports
// whether the node collapsed to a scalar.
func nodeToMapValue(node *Node) (interface{}, bool) {
	if len(node.Children()) == 0 && !node.HasAttributes() {
		return node.Value(), true
	}

	m := make(map[string]interface{})
	for _, name := range node.AttributeNames() {
		if v, ok := node.Attribute(name); ok {
			m[attrPrefix+name] = v
		}
	}
	if node.Value() != nil {
		m[valueKey] = node.Value()
	}

	byName := make(map[string][]interface{})
	var order []string
	for _, child := range node.Children() {
		v, _ := nodeToMapValue(child)
		if _, seen := byName[child.Name()]; !seen {
			order = append(order, child.Name())
		}
		byName[child.Name()] = append(byName[child.Name()], v)
	}
	for _, name := range order {
		values := byName[name]
		if len(values) == 1 {
			m[name] = values[0]
		} else {
			m[name] = values
		}
	}
	return m, false
}

// FromMap replaces the configuration's contents with the tree described
// by the nested map. Keys starting with '@' become attributes.
func (c *Configuration) FromMap(data map[string]interface{}) error {
	root, err := mapToNode("", data)
	if err != nil {
		return err
	}
	if c.sel != nil {
		return errors.New(ErrCodeInvalidConfig, "FromMap is only supported on a root configuration")
	}
	c.model.SetRoot(root)
	return nil
}

// NewFromMap creates a Configuration from a nested map.
func NewFromMap(data map[string]interface{}) (*Configuration, error) {
	c := New()
	if err := c.FromMap(data); err != nil {
		return nil, err
	}
	return c, nil
}

// mapToNode builds the node for one map level. Map iteration order is
// not stable, so keys are sorted to keep the result deterministic.
func mapToNode(name string, data map[string]interface{}) (*Node, error) {
	b := NewNodeBuilder(name)
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := data[k]
		switch {
		case k == valueKey:
			b.Value(v)
		case len(k) > len(attrPrefix) && k[:len(attrPrefix)] == attrPrefix:
			b.AddAttribute(k[len(attrPrefix):], v)
		default:
			children, err := valueToNodes(k, v)
			if err != nil {
				return nil, err
			}
			b.AddChildren(children)
		}
	}
	return b.Create(), nil
}

// valueToNodes converts one map entry into child nodes. Slices fan out
// into same named siblings.
func valueToNodes(name string, value interface{}) ([]*Node, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		node, err := mapToNode(name, v)
		if err != nil {
			return nil, err
		}
		return []*Node{node}, nil
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(v))
		for k, val := range v {
			ks, ok := k.(string)
			if !ok {
				return nil, errors.New(ErrCodeInvalidConfig,
					fmt.Sprintf("map key %v under %q is not a string", k, name))
			}
			converted[ks] = val
		}
		return valueToNodes(name, converted)
	case []interface{}:
		var nodes []*Node
		for _, elem := range v {
			children, err := valueToNodes(name, elem)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, children...)
		}
		return nodes, nil
	default:
		return []*Node{NewNode(name, value)}, nil
	}
}

// DumpYAML renders the configuration tree as a YAML document.
func (c *Configuration) DumpYAML() ([]byte, error) {
	out, err := yaml.Marshal(c.ToMap())
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to marshal configuration to YAML")
	}
	return out, nil
}

// LoadYAML replaces the configuration's contents with the tree parsed
// from a YAML document.
func (c *Configuration) LoadYAML(data []byte) error {
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse YAML configuration")
	}
	return c.FromMap(m)
}

// NewFromYAML creates a Configuration from a YAML document.
func NewFromYAML(data []byte) (*Configuration, error) {
	c := New()
	if err := c.LoadYAML(data); err != nil {
		return nil, err
	}
	return c, nil
}
