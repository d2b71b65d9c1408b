// errors.go: Error codes for Dryad operations
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"github.com/agilira/go-errors"
)

// Error codes for Dryad operations
const (
	ErrCodeInvalidKey    = "DRYAD_INVALID_KEY"
	ErrCodeKeyNotFound   = "DRYAD_KEY_NOT_FOUND"
	ErrCodeConversion    = "DRYAD_CONVERSION_ERROR"
	ErrCodeInvalidNode   = "DRYAD_INVALID_NODE"
	ErrCodeNodeNotFound  = "DRYAD_NODE_NOT_FOUND"
	ErrCodeNotTracked    = "DRYAD_NODE_NOT_TRACKED"
	ErrCodeDetachedNode  = "DRYAD_DETACHED_NODE"
	ErrCodeInvalidConfig = "DRYAD_INVALID_CONFIG"
	ErrCodeStorageError  = "DRYAD_STORAGE_ERROR"
)

// Sentinel errors for conditions callers commonly branch on.
var (
	ErrKeyNotFound  = errors.New(ErrCodeKeyNotFound, "configuration key not found")
	ErrNodeNotFound = errors.New(ErrCodeNodeNotFound, "node is not part of this model")
	ErrNotTracked   = errors.New(ErrCodeNotTracked, "node selector is not tracked")
)
