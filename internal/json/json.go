// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package json provides the wire JSON codec used by every message type in
// this module. It is a thin wrapper over segmentio/encoding/json, a
// drop-in, allocation-lighter replacement for the standard library's
// encoding/json, so the hot marshal/unmarshal path on every frame does not
// pay the reflection cost of the stdlib implementation.
package json

import segjson "github.com/segmentio/encoding/json"

type RawMessage = segjson.RawMessage

func Marshal(v any) ([]byte, error) {
	return segjson.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return segjson.MarshalIndent(v, prefix, indent)
}

// Unmarshal matches JSON keys to struct fields case-sensitively.
func Unmarshal(data []byte, v any) error {
	_, err := segjson.Parse(data, v, segjson.DontMatchCaseInsensitiveStructFields)
	return err
}
