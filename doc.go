// Package dryad provides hierarchical configuration management for Go
// applications, built around an immutable node tree with lock-free
// concurrent updates, expressive dotted-key addressing, and typed value
// access.
//
// # Philosophy: Configuration as an Immutable Tree
//
// Dryad treats configuration as a tree of named nodes rather than a flat
// map. Every update produces a new tree that shares untouched branches
// with its predecessor, so readers always see a consistent snapshot and
// never take a lock. Writers coordinate through a single atomic
// compare-and-swap on the tree snapshot.
//
// # Architecture Overview
//
// Dryad consists of five integrated subsystems:
//  1. Immutable node model: copy-on-write trees with structural sharing
//  2. Expression engine: dotted keys with indices and attributes
//  3. Tracking layer: stable handles to nodes across tree generations
//  4. Typed conversion: permissive, configuration-friendly coercions
//  5. Persistence: SQLite settings store and YAML import/export
//
// # Quick Start
//
// Create a configuration, store values under dotted keys and read them
// back with typed getters:
//
//	cfg := dryad.New()
//	if err := cfg.Set("server.port", 8080); err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Set("server.tls.enabled", "yes"); err != nil {
//		log.Fatal(err)
//	}
//
//	port, _ := cfg.GetInt("server.port")
//	tls := cfg.GetBoolDefault("server.tls.enabled", false)
//
// # Key Syntax
//
// Keys address nodes through dots, with optional indices and
// attributes:
//
//	tables.table(0).name        second part, first "table" child
//	tables.table(1).fields      index selects among same-named siblings
//	connection[@timeout]        attribute of the "connection" node
//	a..b                        a node literally named "a.b"
//
// # Sub Configurations
//
// Subtree returns a view rooted at an inner node that shares the
// parent's model. The view's root is tracked, so it stays valid while
// unrelated parts of the tree change, and reports detachment when its
// node is removed:
//
//	sub, err := cfg.Subtree("server")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sub.Close()
//	port, _ := sub.GetInt("port")
//
// # Multi-Source Overlays
//
// Overlay layers command line flags, environment variables and explicit
// overrides on top of a configuration tree, resolving each lookup by
// precedence:
//
//	ov := dryad.NewOverlay("myapp", cfg).
//		IntFlag("server-port", 8080, "Server port").
//		BoolFlag("debug", false, "Enable debug mode")
//	if err := ov.ParseArgs(); err != nil {
//		log.Fatal(err)
//	}
//	port := ov.GetInt("server-port")
//
// # Persistence
//
// DBConfig stores flat settings in SQLite and can snapshot or restore a
// whole Configuration; DumpYAML and LoadYAML bridge the tree to YAML
// documents.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package dryad
