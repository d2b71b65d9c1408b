// expression_test.go - Tests for dotted key parsing and evaluation
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"testing"
)

// tablesTree builds the classic sample tree used across the expression
// tests:
//
//	tables
//	  table (name=users)   fields: uid, uname
//	  table (name=docs)    fields: docid, title
func tablesTree() *Node {
	table := func(name string, fields ...string) *Node {
		b := NewNodeBuilder("table").
			AddChild(NewNode("name", name)).
			AddAttribute("type", "system")
		fieldsNode := NewNodeBuilder("fields")
		for _, f := range fields {
			fieldsNode.AddChild(NewNode("field", f))
		}
		return b.AddChild(fieldsNode.Create()).Create()
	}
	return NewNodeBuilder("").
		AddChild(NewNodeBuilder("tables").
			AddChild(table("users", "uid", "uname")).
			AddChild(table("docs", "docid", "title")).
			Create()).
		Create()
}

func TestQueryBasicKeys(t *testing.T) {
	root := tablesTree()
	engine := NewExpressionEngine()

	tests := []struct {
		key  string
		hits int
	}{
		{"tables", 1},
		{"tables.table", 2},
		{"tables.table.name", 2},
		{"tables.table(0).name", 1},
		{"tables.table(1).fields.field", 2},
		{"tables.table(5)", 0},
		{"tables.missing", 0},
		{"", 1},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			results := engine.Query(root, tc.key)
			if len(results) != tc.hits {
				t.Errorf("Query(%q) returned %d hits, want %d", tc.key, len(results), tc.hits)
			}
		})
	}
}

func TestQueryIndexSelectsAmongSiblings(t *testing.T) {
	root := tablesTree()
	engine := NewExpressionEngine()

	results := engine.Query(root, "tables.table(1).name")
	if len(results) != 1 {
		t.Fatalf("Expected exactly one hit, got %d", len(results))
	}
	if results[0].Value() != "docs" {
		t.Errorf("Expected value 'docs', got %v", results[0].Value())
	}
}

func TestQueryAttributeMarker(t *testing.T) {
	root := tablesTree()
	engine := NewExpressionEngine()

	results := engine.Query(root, "tables.table(0)[@type]")
	if len(results) != 1 {
		t.Fatalf("Expected one attribute hit, got %d", len(results))
	}
	if !results[0].IsAttribute() {
		t.Error("Expected an attribute result")
	}
	if results[0].Value() != "system" {
		t.Errorf("Expected attribute value 'system', got %v", results[0].Value())
	}
}

func TestQueryLastPartMatchesAttributesToo(t *testing.T) {
	root := NewNodeBuilder("").
		AddChild(NewNodeBuilder("conn").
			AddChild(NewNode("timeout", 30)).
			AddAttribute("timeout", 60).
			Create()).
		Create()
	engine := NewExpressionEngine()

	results := engine.Query(root, "conn.timeout")
	if len(results) != 2 {
		t.Fatalf("Expected node and attribute hit, got %d results", len(results))
	}
	if results[0].IsAttribute() || !results[1].IsAttribute() {
		t.Error("Expected node hit first, attribute hit second")
	}
}

func TestQueryEscapedDelimiter(t *testing.T) {
	root := NewNodeBuilder("").
		AddChild(NewNode("my.key", "dotted")).
		Create()
	engine := NewExpressionEngine()

	results := engine.Query(root, "my..key")
	if len(results) != 1 || results[0].Value() != "dotted" {
		t.Errorf("Escaped delimiter lookup failed: %v", results)
	}
}

func TestParseKeyErrors(t *testing.T) {
	engine := NewExpressionEngine()
	tests := []struct {
		name string
		key  string
	}{
		{"unterminated index", "tables.table(1"},
		{"non-numeric index", "tables.table(x)"},
		{"unterminated attribute", "conn[@timeout"},
		{"empty attribute", "conn[@]"},
		{"attribute not terminal", "conn[@timeout].more"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.parseKey(tc.key); err == nil {
				t.Errorf("parseKey(%q) expected error", tc.key)
			}
		})
	}
}

func TestNodeKeyAndAttributeKey(t *testing.T) {
	engine := NewExpressionEngine()
	node := NewNode("port", 8080)

	if key := engine.NodeKey(node, "server", nil); key != "server.port" {
		t.Errorf("NodeKey = %q, want 'server.port'", key)
	}
	if key := engine.NodeKey(node, "", nil); key != "port" {
		t.Errorf("NodeKey at top level = %q, want 'port'", key)
	}
	if key := engine.AttributeKey("server", "id"); key != "server[@id]" {
		t.Errorf("AttributeKey = %q, want 'server[@id]'", key)
	}

	dotted := NewNode("my.key", nil)
	if key := engine.NodeKey(dotted, "", nil); key != "my..key" {
		t.Errorf("NodeKey must escape delimiters, got %q", key)
	}
}

func TestCanonicalKeyAppendsSiblingIndex(t *testing.T) {
	root := tablesTree()
	engine := NewExpressionEngine()
	model := NewNodeModel(root, engine)

	second := engine.Query(root, "tables.table(1)")[0].Node
	key, err := engine.CanonicalKey(second, "tables", model.snapshot())
	if err != nil {
		t.Fatalf("CanonicalKey failed: %v", err)
	}
	if key != "tables.table(1)" {
		t.Errorf("CanonicalKey = %q, want 'tables.table(1)'", key)
	}
}

func TestPrepareAddDescendsExistingPath(t *testing.T) {
	root := tablesTree()
	engine := NewExpressionEngine()

	data, err := engine.prepareAdd(root, "tables.table(0).fields.field")
	if err != nil {
		t.Fatalf("prepareAdd failed: %v", err)
	}
	if data.attribute {
		t.Error("Expected a node add, got attribute")
	}
	if data.newNodeName != "field" {
		t.Errorf("New node name = %q, want 'field'", data.newNodeName)
	}
	if len(data.pathNodes) != 0 {
		t.Errorf("Expected no intermediate nodes, got %v", data.pathNodes)
	}
	if data.parent.Name() != "fields" {
		t.Errorf("Parent = %q, want 'fields'", data.parent.Name())
	}
}

func TestPrepareAddCreatesMissingPath(t *testing.T) {
	root := NewNode("", nil)
	engine := NewExpressionEngine()

	data, err := engine.prepareAdd(root, "a.b.c")
	if err != nil {
		t.Fatalf("prepareAdd failed: %v", err)
	}
	if data.parent != root {
		t.Error("Expected the root as deepest existing parent")
	}
	if len(data.pathNodes) != 2 || data.pathNodes[0] != "a" || data.pathNodes[1] != "b" {
		t.Errorf("Path nodes = %v, want [a b]", data.pathNodes)
	}
	if data.newNodeName != "c" {
		t.Errorf("New node name = %q, want 'c'", data.newNodeName)
	}
}

func TestPrepareAddNewBranchOnOutOfRangeIndex(t *testing.T) {
	root := tablesTree()
	engine := NewExpressionEngine()

	// The -1 convention forces a fresh "table" branch instead of
	// descending into an existing one.
	data, err := engine.prepareAdd(root, "tables.table(-1).name")
	if err != nil {
		t.Fatalf("prepareAdd failed: %v", err)
	}
	if data.parent.Name() != "tables" {
		t.Errorf("Parent = %q, want 'tables'", data.parent.Name())
	}
	if len(data.pathNodes) != 1 || data.pathNodes[0] != "table" {
		t.Errorf("Path nodes = %v, want [table]", data.pathNodes)
	}
	if data.newNodeName != "name" {
		t.Errorf("New node name = %q, want 'name'", data.newNodeName)
	}
}

func TestPrepareAddAttributeKey(t *testing.T) {
	root := tablesTree()
	engine := NewExpressionEngine()

	data, err := engine.prepareAdd(root, "tables.table(0)[@owner]")
	if err != nil {
		t.Fatalf("prepareAdd failed: %v", err)
	}
	if !data.attribute {
		t.Error("Expected an attribute add")
	}
	if data.newNodeName != "owner" {
		t.Errorf("Attribute name = %q, want 'owner'", data.newNodeName)
	}
}

func TestPrepareAddRejectsEmptyKey(t *testing.T) {
	engine := NewExpressionEngine()
	if _, err := engine.prepareAdd(NewNode("", nil), ""); err == nil {
		t.Error("Expected error for empty add key")
	}
}

// FuzzParseKey ensures the key scanner never panics and stays consistent
// on arbitrary input.
func FuzzParseKey(f *testing.F) {
	seeds := []string{
		"tables.table(0).name",
		"a..b",
		"conn[@timeout]",
		"x(",
		"[@]",
		"...",
		"a(999999999999999999999)",
		"nested(1)(2)",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	root := tablesTree()
	engine := NewExpressionEngine()
	f.Fuzz(func(t *testing.T, key string) {
		elements, err := engine.parseKey(key)
		if err != nil {
			return
		}
		for _, e := range elements {
			if e.attribute && e.hasIndex {
				t.Errorf("Element cannot be both attribute and indexed: %q", key)
			}
		}
		// Query must never panic on a parseable key.
		_ = engine.Query(root, key)
	})
}
