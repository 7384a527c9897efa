// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Package skill provides parsing and validation for skill
// definitions: the manifests describing what a built skill does and
// the endpoint configuration it calls out to.
//
// Definitions are authored on disk as JSONC files (JSON extended
// with comments and trailing commas) and loaded by the king at
// startup. The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → Manifest
//  2. Validate: structural checks (required fields, known tokens)
//  3. LoadDir: all *.jsonc manifests of a directory, keyed by name
package skill
