// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Message is implemented by every schema message: Validate reports
// whether required fields are present and enum tokens are known.
// Defaulting (payload objects, list limits) happens during
// unmarshaling, before validation.
type Message interface {
	Validate() error
}

// Decode unmarshals an event body into a schema message, applies its
// defaulting rules, and validates required fields. Missing required
// fields and unknown enum tokens are schema errors; unknown extra
// fields are silently ignored; absent defaulted fields decode to
// their defaults. This is the forward-compatibility contract every
// consumer boundary must apply.
func Decode[T any, P interface {
	*T
	Message
}](body []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(body, P(&msg)); err != nil {
		return msg, fmt.Errorf("malformed event body: %w", err)
	}
	if err := P(&msg).Validate(); err != nil {
		return msg, fmt.Errorf("invalid event body: %w", err)
	}
	return msg, nil
}

// EqualJSON reports whether two raw JSON values are structurally
// equal, ignoring key order and whitespace. State-machine consumers
// use it to recognize a redelivered update as idempotent by value.
// Two empty/absent values are equal.
func EqualJSON(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(bytes.TrimSpace(a)) == 0 && len(bytes.TrimSpace(b)) == 0
	}
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return bytes.Equal(a, b)
	}
	return reflect.DeepEqual(av, bv)
}
