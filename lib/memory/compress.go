// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// compressThreshold is the minimum l2 content size, in bytes, worth
// compressing at rest. Summary tiers (l0/l1) stay plain: they are
// small and read on almost every query.
const compressThreshold = 1024

// zstdEncoder and zstdDecoder are reused across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("memory: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("memory: zstd decoder initialization failed: " + err.Error())
	}
}

// packContent returns the at-rest representation of tier content and
// whether it was compressed. Content that does not shrink is stored
// plain.
func packContent(content string) ([]byte, bool) {
	raw := []byte(content)
	if len(raw) < compressThreshold {
		return raw, false
	}
	compressed := zstdEncoder.EncodeAll(raw, nil)
	if len(compressed) >= len(raw) {
		return raw, false
	}
	return compressed, true
}

// unpackContent reverses packContent.
func unpackContent(stored []byte, compressed bool) (string, error) {
	if !compressed {
		return string(stored), nil
	}
	raw, err := zstdDecoder.DecodeAll(stored, nil)
	if err != nil {
		return "", fmt.Errorf("decompressing tier content: %w", err)
	}
	return string(raw), nil
}
