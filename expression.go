// expression.go: Key syntax and node queries for Dryad
//
// The expression engine translates between textual configuration keys and
// nodes of the tree. The default syntax is the dotted form used all over
// configuration land:
//
//	tables.table(1).fields.field(0).name   child selection with indices
//	tables.table(0)[@type]                 attribute access
//	a..b                                   escaped delimiter, the node "a.b"
//
// An index of -1 in an add key forces a fresh sibling branch instead of
// descending into an existing one. All syntax symbols are configurable.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"strconv"
	"strings"

	"github.com/agilira/go-errors"
)

// ExpressionSymbols holds the tokens of the key syntax.
type ExpressionSymbols struct {
	Delimiter        string // separates key parts
	EscapedDelimiter string // stands for a literal delimiter inside a name
	IndexStart       string // opens a child index
	IndexEnd         string // closes a child index
	AttributeStart   string // opens an attribute name
	AttributeEnd     string // closes an attribute name
}

// DefaultSymbols returns the dotted default syntax.
func DefaultSymbols() ExpressionSymbols {
	return ExpressionSymbols{
		Delimiter:        ".",
		EscapedDelimiter: "..",
		IndexStart:       "(",
		IndexEnd:         ")",
		AttributeStart:   "[@",
		AttributeEnd:     "]",
	}
}

// QueryResult is one hit of a key query: either a node, or an attribute of
// a node. For attribute results Node is nil and ParentNode carries the
// node owning the attribute.
type QueryResult struct {
	Node          *Node
	ParentNode    *Node
	AttributeName string
}

// IsAttribute reports whether the result points to an attribute.
func (r QueryResult) IsAttribute() bool {
	return r.AttributeName != ""
}

// Value returns the value of the hit: the node value, or the attribute
// value for attribute results.
func (r QueryResult) Value() interface{} {
	if r.IsAttribute() {
		v, _ := r.ParentNode.Attribute(r.AttributeName)
		return v
	}
	return r.Node.Value()
}

// keyElement is one parsed part of a key.
type keyElement struct {
	name      string
	index     int
	hasIndex  bool
	attribute bool
}

// addData is the result of preparing an add operation: the deepest
// existing node the key descends to, the names of intermediate nodes that
// must be created below it, and the name of the new node or attribute.
type addData struct {
	parent      *Node
	pathNodes   []string
	newNodeName string
	attribute   bool
}

// ExpressionEngine evaluates keys against node trees.
type ExpressionEngine struct {
	symbols ExpressionSymbols
}

// NewExpressionEngine creates an engine with the default dotted syntax.
func NewExpressionEngine() *ExpressionEngine {
	return NewExpressionEngineWithSymbols(DefaultSymbols())
}

// NewExpressionEngineWithSymbols creates an engine with custom syntax
// symbols. Zero-value symbol fields fall back to the defaults.
func NewExpressionEngineWithSymbols(symbols ExpressionSymbols) *ExpressionEngine {
	def := DefaultSymbols()
	if symbols.Delimiter == "" {
		symbols.Delimiter = def.Delimiter
	}
	if symbols.EscapedDelimiter == "" {
		symbols.EscapedDelimiter = symbols.Delimiter + symbols.Delimiter
	}
	if symbols.IndexStart == "" || symbols.IndexEnd == "" {
		symbols.IndexStart, symbols.IndexEnd = def.IndexStart, def.IndexEnd
	}
	if symbols.AttributeStart == "" || symbols.AttributeEnd == "" {
		symbols.AttributeStart, symbols.AttributeEnd = def.AttributeStart, def.AttributeEnd
	}
	return &ExpressionEngine{symbols: symbols}
}

// parseKey splits a key into its elements. Empty parts produced by
// leading, trailing, or doubled-up delimiters are dropped, matching the
// tolerant behavior users expect from dotted keys.
func (e *ExpressionEngine) parseKey(key string) ([]keyElement, error) {
	var elements []keyElement
	var name strings.Builder
	sym := e.symbols

	flush := func(idx int, hasIdx bool) {
		if name.Len() == 0 && !hasIdx {
			return
		}
		elements = append(elements, keyElement{name: name.String(), index: idx, hasIndex: hasIdx})
		name.Reset()
	}

	i := 0
	for i < len(key) {
		rest := key[i:]
		switch {
		case strings.HasPrefix(rest, sym.EscapedDelimiter):
			name.WriteString(sym.Delimiter)
			i += len(sym.EscapedDelimiter)

		case strings.HasPrefix(rest, sym.AttributeStart):
			end := strings.Index(rest[len(sym.AttributeStart):], sym.AttributeEnd)
			if end < 0 {
				return nil, errors.New(ErrCodeInvalidKey, "unterminated attribute marker").
					WithContext("key", key)
			}
			attr := rest[len(sym.AttributeStart) : len(sym.AttributeStart)+end]
			if attr == "" {
				return nil, errors.New(ErrCodeInvalidKey, "empty attribute name").
					WithContext("key", key)
			}
			flush(0, false)
			elements = append(elements, keyElement{name: attr, attribute: true})
			i += len(sym.AttributeStart) + end + len(sym.AttributeEnd)
			if i != len(key) {
				return nil, errors.New(ErrCodeInvalidKey, "attribute must terminate the key").
					WithContext("key", key)
			}

		case strings.HasPrefix(rest, sym.IndexStart) && name.Len() > 0:
			end := strings.Index(rest[len(sym.IndexStart):], sym.IndexEnd)
			if end < 0 {
				return nil, errors.New(ErrCodeInvalidKey, "unterminated index").
					WithContext("key", key)
			}
			idxStr := rest[len(sym.IndexStart) : len(sym.IndexStart)+end]
			idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
			if err != nil {
				return nil, errors.Wrap(err, ErrCodeInvalidKey, "invalid index").
					WithContext("key", key).
					WithContext("index", idxStr)
			}
			flush(idx, true)
			i += len(sym.IndexStart) + end + len(sym.IndexEnd)

		case strings.HasPrefix(rest, sym.Delimiter):
			flush(0, false)
			i += len(sym.Delimiter)

		default:
			name.WriteByte(key[i])
			i++
		}
	}
	flush(0, false)
	return elements, nil
}

// Query finds all hits for the key below root. An empty key yields the
// root itself. For the final key part, both child nodes and attributes
// with the name match, mirroring how properties and attributes are
// addressed interchangeably when no attribute marker is given.
func (e *ExpressionEngine) Query(root *Node, key string) []QueryResult {
	elements, err := e.parseKey(key)
	if err != nil {
		return nil
	}
	if len(elements) == 0 {
		return []QueryResult{{Node: root}}
	}

	current := []*Node{root}
	for pos, elem := range elements {
		last := pos == len(elements)-1

		if elem.attribute {
			// Parser guarantees attributes are terminal.
			var results []QueryResult
			for _, n := range current {
				if _, ok := n.Attribute(elem.name); ok {
					results = append(results, QueryResult{ParentNode: n, AttributeName: elem.name})
				}
			}
			return results
		}

		var next []*Node
		for _, n := range current {
			matches := n.ChildrenByName(elem.name)
			if elem.hasIndex {
				if elem.index >= 0 && elem.index < len(matches) {
					next = append(next, matches[elem.index])
				}
			} else {
				next = append(next, matches...)
			}
		}

		if last {
			results := make([]QueryResult, 0, len(next))
			for _, n := range next {
				results = append(results, QueryResult{Node: n})
			}
			if !elem.hasIndex {
				for _, n := range current {
					if _, ok := n.Attribute(elem.name); ok {
						results = append(results, QueryResult{ParentNode: n, AttributeName: elem.name})
					}
				}
			}
			return results
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return nil
}

// NodeKey builds the key of a node given the key of its parent. The root
// node has the empty key. A nil handler means the node is known not to
// be the root.
func (e *ExpressionEngine) NodeKey(node *Node, parentKey string, h NodeHandler) string {
	if h != nil && node == h.RootNode() {
		return parentKey
	}
	name := e.escapeName(node.Name())
	if parentKey == "" {
		return name
	}
	return parentKey + e.symbols.Delimiter + name
}

// AttributeKey builds the key of an attribute given the key of its owner.
func (e *ExpressionEngine) AttributeKey(parentKey, attributeName string) string {
	return parentKey + e.symbols.AttributeStart + attributeName + e.symbols.AttributeEnd
}

// CanonicalKey builds a key that selects exactly this node by appending
// the index among its same-named siblings.
func (e *ExpressionEngine) CanonicalKey(node *Node, parentKey string, h NodeHandler) (string, error) {
	key := e.NodeKey(node, parentKey, h)
	if node == h.RootNode() {
		return key, nil
	}
	parent, err := h.Parent(node)
	if err != nil {
		return "", err
	}
	position := 0
	for _, sibling := range parent.ChildrenByName(node.Name()) {
		if sibling == node {
			break
		}
		position++
	}
	return key + e.symbols.IndexStart + strconv.Itoa(position) + e.symbols.IndexEnd, nil
}

// prepareAdd determines where the node or attribute named by an add key
// has to be created. The key is followed down existing children as far as
// it matches, always descending into the last child with a matching name;
// an explicit index selects a specific child, and an out-of-range index
// (the -1 convention) forces a new branch at that point.
func (e *ExpressionEngine) prepareAdd(root *Node, key string) (addData, error) {
	elements, err := e.parseKey(key)
	if err != nil {
		return addData{}, err
	}
	if len(elements) == 0 {
		return addData{}, errors.New(ErrCodeInvalidKey, "key for add operation must not be empty").
			WithContext("key", key)
	}

	last := elements[len(elements)-1]
	data := addData{newNodeName: last.name, attribute: last.attribute}
	nodePath := elements[:len(elements)-1]
	if !last.attribute && last.hasIndex {
		return addData{}, errors.New(ErrCodeInvalidKey, "add key must end with a plain node name").
			WithContext("key", key)
	}

	cur := root
	idx := 0
	for idx < len(nodePath) {
		elem := nodePath[idx]
		matches := cur.ChildrenByName(elem.name)
		if elem.hasIndex {
			if elem.index >= 0 && elem.index < len(matches) {
				cur = matches[elem.index]
				idx++
				continue
			}
			break
		}
		if len(matches) > 0 {
			cur = matches[len(matches)-1]
			idx++
			continue
		}
		break
	}

	data.parent = cur
	for _, elem := range nodePath[idx:] {
		if elem.attribute {
			return addData{}, errors.New(ErrCodeInvalidKey, "attribute marker inside key path").
				WithContext("key", key)
		}
		data.pathNodes = append(data.pathNodes, elem.name)
	}
	return data, nil
}

func (e *ExpressionEngine) escapeName(name string) string {
	return strings.ReplaceAll(name, e.symbols.Delimiter, e.symbols.EscapedDelimiter)
}
