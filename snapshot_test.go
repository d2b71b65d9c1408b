// snapshot_test.go - Tests for map and YAML import/export
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"reflect"
	"strings"
	"testing"
)

func TestToMapShapes(t *testing.T) {
	cfg := New()
	if err := cfg.Set("server.port", 8080); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cfg.Set("server[@id]", "srv-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cfg.Add("list.item", "a"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := cfg.Add("list.item", "b"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	m := cfg.ToMap()
	server, ok := m["server"].(map[string]interface{})
	if !ok {
		t.Fatalf("server is not a map: %T", m["server"])
	}
	if server["port"] != 8080 {
		t.Errorf("server.port = %v, want 8080", server["port"])
	}
	if server["@id"] != "srv-1" {
		t.Errorf("server attribute = %v, want srv-1", server["@id"])
	}

	list, ok := m["list"].(map[string]interface{})
	if !ok {
		t.Fatalf("list is not a map: %T", m["list"])
	}
	items, ok := list["item"].([]interface{})
	if !ok || !reflect.DeepEqual(items, []interface{}{"a", "b"}) {
		t.Errorf("list.item = %v, want [a b]", list["item"])
	}
}

func TestFromMapRoundTrip(t *testing.T) {
	input := map[string]interface{}{
		"server": map[string]interface{}{
			"port": 8080,
			"@id":  "srv-1",
		},
		"names": []interface{}{"a", "b"},
	}
	cfg, err := NewFromMap(input)
	if err != nil {
		t.Fatalf("NewFromMap failed: %v", err)
	}

	if got := cfg.Property("server.port"); got != 8080 {
		t.Errorf("server.port = %v, want 8080", got)
	}
	if got := cfg.Property("server[@id]"); got != "srv-1" {
		t.Errorf("server[@id] = %v, want srv-1", got)
	}
	if cfg.MaxIndex("names") != 1 {
		t.Errorf("names fan-out failed, MaxIndex = %d", cfg.MaxIndex("names"))
	}

	// Export and re-import reproduces the same tree shape.
	cfg2, err := NewFromMap(cfg.ToMap())
	if err != nil {
		t.Fatalf("Re-import failed: %v", err)
	}
	if got := cfg2.Property("server.port"); got != 8080 {
		t.Errorf("Round trip lost server.port: %v", got)
	}
	if got := cfg2.Property("server[@id]"); got != "srv-1" {
		t.Errorf("Round trip lost the attribute: %v", got)
	}
}

func TestFromMapOnSubtreeIsRejected(t *testing.T) {
	cfg := New()
	if err := cfg.Set("a.b", 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	sub, err := cfg.Subtree("a")
	if err != nil {
		t.Fatalf("Subtree failed: %v", err)
	}
	defer func() { _ = sub.Close() }()

	if err := sub.FromMap(map[string]interface{}{"x": 1}); err == nil {
		t.Error("FromMap on a sub configuration expected error")
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	doc := []byte(`
server:
  port: 8080
  host: localhost
features:
  - alpha
  - beta
`)
	cfg, err := NewFromYAML(doc)
	if err != nil {
		t.Fatalf("NewFromYAML failed: %v", err)
	}

	if got, err := cfg.GetInt("server.port"); err != nil || got != 8080 {
		t.Errorf("server.port = %d, %v", got, err)
	}
	if got, err := cfg.GetString("server.host"); err != nil || got != "localhost" {
		t.Errorf("server.host = %q, %v", got, err)
	}
	if cfg.MaxIndex("features") != 1 {
		t.Errorf("features MaxIndex = %d, want 1", cfg.MaxIndex("features"))
	}

	out, err := cfg.DumpYAML()
	if err != nil {
		t.Fatalf("DumpYAML failed: %v", err)
	}
	if !strings.Contains(string(out), "port: 8080") {
		t.Errorf("Dumped YAML missing port: %s", out)
	}

	cfg2, err := NewFromYAML(out)
	if err != nil {
		t.Fatalf("Re-import of dumped YAML failed: %v", err)
	}
	if got, err := cfg2.GetInt("server.port"); err != nil || got != 8080 {
		t.Errorf("YAML round trip lost server.port: %d, %v", got, err)
	}
}

func TestLoadYAMLRejectsInvalidDocument(t *testing.T) {
	cfg := New()
	if err := cfg.LoadYAML([]byte("::\n  - not: [valid")); err == nil {
		t.Error("LoadYAML with broken document expected error")
	}
}
