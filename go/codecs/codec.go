/*
Copyright 2024 The Vexel Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package codecs compiles the server's binary type descriptors into
// executable encode/decode strategies and caches them by type id. A
// Codec is immutable once built and shared by reference; composite
// codecs hold their children in descriptor order.
package codecs

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// Codec is a compiled encode/decode strategy for one wire type.
type Codec interface {
	// ID returns the 16-byte type id the codec was built for.
	ID() uuid.UUID

	// Name returns a human-readable type name for diagnostics.
	Name() string

	// Decode reads one value from r, which spans exactly the bytes the
	// value's length prefix declared. Implementations must consume all
	// of r; DecodeExact enforces it.
	Decode(r *wire.Reader) (any, error)

	// Encode appends the value's 4-byte length prefix and payload to w.
	Encode(w *wire.WriteBuffer, v any) error
}

// DecodeExact runs c over data and verifies the exact-consumption
// invariant: leftover bytes are a protocol violation.
func DecodeExact(c Codec, data []byte) (any, error) {
	r := wire.NewReader(data)
	v, err := c.Decode(r)
	if err != nil {
		return nil, err
	}
	if n := r.Len(); n != 0 {
		return nil, vexelerrors.New(vexelerrors.CodeBinaryProtocol,
			"codec %s left %d trailing bytes in a %d-byte value", c.Name(), n, len(data))
	}
	return v, nil
}

func decodeError(format string, args ...any) error {
	return vexelerrors.New(vexelerrors.CodeBinaryProtocol, format, args...)
}

// argumentError builds the client-side error for a value that cannot be
// encoded into a given field. The offending value is previewed, never
// echoed in full.
func argumentError(code vexelerrors.Code, field string, v any, reason string) error {
	return vexelerrors.New(code, "argument %s: cannot encode %s: %s", field, preview(v), reason)
}

const previewLimit = 40

func preview(v any) string {
	s := fmt.Sprintf("%T(%v)", v, v)
	if len(s) > previewLimit {
		s = s[:previewLimit] + "..."
	}
	return s
}

// NullCodec stands in for the all-zero type id: no input arguments and
// no output data.
type NullCodec struct{}

func (NullCodec) ID() uuid.UUID { return uuid.Nil }
func (NullCodec) Name() string  { return "null" }

func (NullCodec) Decode(r *wire.Reader) (any, error) {
	return nil, decodeError("cannot decode a value with the null codec")
}

// Encode accepts only the absence of arguments.
func (NullCodec) Encode(w *wire.WriteBuffer, v any) error {
	switch x := v.(type) {
	case nil:
	case []any:
		if len(x) != 0 {
			return argumentError(vexelerrors.CodeQueryArgument, "<positional>", v,
				"the statement takes no arguments")
		}
	case map[string]any:
		if len(x) != 0 {
			return argumentError(vexelerrors.CodeQueryArgument, "<named>", v,
				"the statement takes no arguments")
		}
	default:
		return argumentError(vexelerrors.CodeQueryArgument, "<arguments>", v,
			"the statement takes no arguments")
	}
	// No codec means no argument data: an empty byte string.
	w.WriteUint32(0)
	return nil
}
