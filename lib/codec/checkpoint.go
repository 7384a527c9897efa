// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/throne-labs/throne/lib/pipeline"
	"github.com/throne-labs/throne/lib/schema"
)

// checkpointVersion is bumped when the checkpoint layout changes
// incompatibly. Decoding tolerates added fields without a bump.
const checkpointVersion = 1

// ErrVersion means a checkpoint was written by an incompatible
// layout version.
var ErrVersion = errors.New("unsupported checkpoint version")

// Checkpoint is the king's durable state: everything needed to
// resume coordination after a restart. Open task rooms and in-flight
// streams are deliberately absent — they are ephemeral by contract
// and their agents re-establish them.
type Checkpoint struct {
	Version  int                   `cbor:"version"`
	SavedAt  string                `cbor:"saved_at"`
	Tasks    []schema.TaskRecord   `cbor:"tasks"`
	Runs     []pipeline.Run        `cbor:"runs"`
	Memories []schema.MemoryRecord `cbor:"memories"`
}

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: sorted map keys, smallest integer encoding, no
// indefinite-length items.
var encMode cbor.EncMode

// decMode is the CBOR decoder. Unknown fields are silently ignored
// for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// The protocol never uses non-string map keys, and any-typed
		// targets must decode to map[string]any to stay compatible
		// with encoding/json and the rest of the code.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes a checkpoint, stamping version and save time.
func Marshal(checkpoint Checkpoint) ([]byte, error) {
	checkpoint.Version = checkpointVersion
	if checkpoint.SavedAt == "" {
		checkpoint.SavedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return encMode.Marshal(checkpoint)
}

// Unmarshal decodes a checkpoint and verifies its version.
func Unmarshal(data []byte) (Checkpoint, error) {
	var checkpoint Checkpoint
	if err := decMode.Unmarshal(data, &checkpoint); err != nil {
		return Checkpoint{}, fmt.Errorf("decoding checkpoint: %w", err)
	}
	if checkpoint.Version != checkpointVersion {
		return Checkpoint{}, fmt.Errorf("%w: %d", ErrVersion, checkpoint.Version)
	}
	return checkpoint, nil
}

// Write persists a checkpoint to path atomically: encode, write to a
// temporary sibling, fsync, rename. A crash mid-write leaves the
// previous checkpoint intact.
func Write(path string, checkpoint Checkpoint) error {
	data, err := Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming checkpoint into place: %w", err)
	}
	return nil
}

// Read loads a checkpoint from path. A missing file is reported with
// os.ErrNotExist; callers treat that as a fresh start.
func Read(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("reading checkpoint: %w", err)
	}
	return Unmarshal(data)
}
