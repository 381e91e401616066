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

// Package types implements the structured in-memory values decoded from
// the Vexel wire format: tuples, named tuples, objects, sparse objects,
// arrays, sets, links and ranges, with their equality and hashing
// contracts. Values are created per decode call and owned by the caller.
package types

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Hasher is implemented by container values with defined hash semantics.
type Hasher interface {
	Hash() uint64
}

// Equaler is implemented by container values whose equality differs from
// structural comparison.
type Equaler interface {
	Equal(other any) bool
}

// ValueEqual compares two decoded values, dispatching to the container's
// own equality where one is defined and falling back to deep structural
// comparison for scalars and plain slices.
func ValueEqual(a, b any) bool {
	if ea, ok := a.(Equaler); ok {
		return ea.Equal(b)
	}
	if eb, ok := b.(Equaler); ok {
		return eb.Equal(a)
	}
	return reflect.DeepEqual(a, b)
}

// ValueHash returns a 64-bit hash of a decoded value, consistent with
// ValueEqual for the container types.
func ValueHash(v any) uint64 {
	if h, ok := v.(Hasher); ok {
		return h.Hash()
	}
	d := xxhash.New()
	hashScalar(d, v)
	return d.Sum64()
}

func hashScalar(d *xxhash.Digest, v any) {
	switch x := v.(type) {
	case nil:
		d.WriteString("nil")
	case bool:
		if x {
			d.WriteString("b1")
		} else {
			d.WriteString("b0")
		}
	case int16:
		hashInt(d, int64(x))
	case int32:
		hashInt(d, int64(x))
	case int64:
		hashInt(d, x)
	case int:
		hashInt(d, int64(x))
	case float32:
		hashFloat(d, float64(x))
	case float64:
		hashFloat(d, x)
	case string:
		d.WriteString("s")
		d.WriteString(x)
	case []byte:
		d.WriteString("y")
		d.Write(x)
	default:
		// Scalars with no special representation hash through their
		// printed form, qualified by dynamic type.
		fmt.Fprintf(d, "%T:%v", v, v)
	}
}

// Integral and floating values that compare equal hash equally, so a
// tuple element decoded as int32 or int64 lands in the same bucket.
func hashInt(d *xxhash.Digest, v int64) {
	hashFloat(d, float64(v))
}

func hashFloat(d *xxhash.Digest, v float64) {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		fmt.Fprintf(d, "n%d", int64(v))
		return
	}
	fmt.Fprintf(d, "f%x", math.Float64bits(v))
}

// hashSequence is the element-sequence hash shared by Tuple and
// NamedTuple: for the same element sequence both produce the same value.
func hashSequence(elems []any) uint64 {
	d := xxhash.New()
	fmt.Fprintf(d, "t%d;", len(elems))
	for _, e := range elems {
		fmt.Fprintf(d, "%016x;", ValueHash(e))
	}
	return d.Sum64()
}

func sequenceEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ValueEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sortKey produces an ordering key used for multiset comparison of Sets.
func sortKey(v any) string {
	return fmt.Sprintf("%016x|%v", ValueHash(v), v)
}

func sortedCopy(elems []any) []any {
	out := make([]any, len(elems))
	copy(out, elems)
	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out
}
