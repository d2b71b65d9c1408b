// db_config_test.go - Tests for the SQLite settings store
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"path/filepath"
	"reflect"
	"testing"
)

func openTestDB(t *testing.T) *DBConfig {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return db
}

func TestDBConfigSetAndGet(t *testing.T) {
	db := openTestDB(t)

	if err := db.Set("server.port", 8080); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := db.Get("server.port")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "8080" {
		t.Errorf("Get = %q, want \"8080\"", got)
	}

	// Set replaces.
	if err := db.Set("server.port", 9090); err != nil {
		t.Fatalf("Second Set failed: %v", err)
	}
	if n, err := db.GetInt("server.port"); err != nil || n != 9090 {
		t.Errorf("GetInt after update = %d, %v", n, err)
	}
}

func TestDBConfigMissingKey(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Get("missing"); err == nil {
		t.Error("Get on missing key expected error")
	}
	if got := db.GetDefault("missing", "fallback"); got != "fallback" {
		t.Errorf("GetDefault = %q", got)
	}
	if db.Contains("missing") {
		t.Error("Contains(missing) must be false")
	}
}

func TestDBConfigTypedGetters(t *testing.T) {
	db := openTestDB(t)

	if err := db.Set("enabled", true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if b, err := db.GetBool("enabled"); err != nil || !b {
		t.Errorf("GetBool = %v, %v", b, err)
	}
}

func TestDBConfigClearAndKeys(t *testing.T) {
	db := openTestDB(t)

	for _, k := range []string{"app.name", "app.version", "other"} {
		if err := db.Set(k, "x"); err != nil {
			t.Fatalf("Set(%s) failed: %v", k, err)
		}
	}

	keys, err := db.Keys("app.")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"app.name", "app.version"}) {
		t.Errorf("Keys(app.) = %v", keys)
	}

	if err := db.Clear("app.name"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if db.Contains("app.name") {
		t.Error("Cleared key must be gone")
	}
	if err := db.Clear("never.existed"); err != nil {
		t.Errorf("Clearing a missing key must not fail: %v", err)
	}
}

func TestDBConfigSaveAndLoadConfiguration(t *testing.T) {
	db := openTestDB(t)

	cfg := New()
	if err := cfg.Set("server.port", 8080); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cfg.Set("server.host", "localhost"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := db.Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := db.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got, err := loaded.GetInt("server.port"); err != nil || got != 8080 {
		t.Errorf("Loaded server.port = %d, %v", got, err)
	}
	if got, err := loaded.GetString("server.host"); err != nil || got != "localhost" {
		t.Errorf("Loaded server.host = %q, %v", got, err)
	}
}

func TestDBConfigPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")

	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	if err := db.Set("key", "value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db2, err := OpenDB(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer func() { _ = db2.Close() }()
	if got, err := db2.Get("key"); err != nil || got != "value" {
		t.Errorf("Value did not survive reopen: %q, %v", got, err)
	}
}

func TestDBConfigUseAfterClose(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Second Close must be a no-op: %v", err)
	}
	if err := db.Set("k", "v"); err == nil {
		t.Error("Set after Close expected error")
	}
	if _, err := db.Get("k"); err == nil {
		t.Error("Get after Close expected error")
	}
}

func TestDBConfigNamedConfigurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.db")
	opts := DBOptions{
		Table:       "app_config",
		KeyColumn:   "cfg_key",
		ValueColumn: "cfg_value",
		NameColumn:  "cfg_name",
	}

	opts.Name = "staging"
	staging, err := OpenDBWithOptions(path, opts)
	if err != nil {
		t.Fatalf("OpenDBWithOptions(staging) failed: %v", err)
	}
	defer func() { _ = staging.Close() }()

	opts.Name = "production"
	production, err := OpenDBWithOptions(path, opts)
	if err != nil {
		t.Fatalf("OpenDBWithOptions(production) failed: %v", err)
	}
	defer func() { _ = production.Close() }()

	if err := staging.Set("server.port", 8080); err != nil {
		t.Fatalf("staging Set failed: %v", err)
	}
	if err := production.Set("server.port", 443); err != nil {
		t.Fatalf("production Set failed: %v", err)
	}

	// Same key, same table, independent values per configuration name.
	if n, err := staging.GetInt("server.port"); err != nil || n != 8080 {
		t.Errorf("staging port = %d, %v", n, err)
	}
	if n, err := production.GetInt("server.port"); err != nil || n != 443 {
		t.Errorf("production port = %d, %v", n, err)
	}

	// Keys and Clear stay scoped to their own configuration.
	if err := staging.Clear("server.port"); err != nil {
		t.Fatalf("staging Clear failed: %v", err)
	}
	if staging.Contains("server.port") {
		t.Error("staging still contains cleared key")
	}
	keys, err := production.Keys("")
	if err != nil {
		t.Fatalf("production Keys failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"server.port"}) {
		t.Errorf("production Keys = %v", keys)
	}
}
