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

package types

import (
	"fmt"
	"strings"
)

// Array is an ordered, positionally addressed collection.
type Array struct {
	elems []any
}

// NewArray builds an Array over the given elements. The slice is retained.
func NewArray(elems []any) *Array {
	return &Array{elems: elems}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.elems)
}

// Get returns the i-th element.
func (a *Array) Get(i int) any {
	return a.elems[i]
}

// Values returns the element slice. The caller must not modify it.
func (a *Array) Values() []any {
	return a.elems
}

// Equal compares element sequences in order.
func (a *Array) Equal(other any) bool {
	o, ok := other.(*Array)
	if !ok {
		return false
	}
	return sequenceEqual(a.elems, o.elems)
}

func (a *Array) String() string {
	return "[" + joinValues(a.elems) + "]"
}

// Set is the ordered collection of decoded rows for one query result.
// Order is preserved as received, but equality compares as a multiset:
// two sets with the same elements under any permutation are equal.
type Set struct {
	elems []any
}

// NewSet builds a Set over the given elements. The slice is retained.
func NewSet(elems []any) *Set {
	return &Set{elems: elems}
}

// Len returns the number of elements.
func (s *Set) Len() int {
	return len(s.elems)
}

// Get returns the i-th element in received order.
func (s *Set) Get(i int) any {
	return s.elems[i]
}

// Values returns the element slice in received order. The caller must
// not modify it.
func (s *Set) Values() []any {
	return s.elems
}

// Append adds an element. Used by the engine while rows stream in.
func (s *Set) Append(v any) {
	s.elems = append(s.elems, v)
}

// Equal compares as a multiset: lengths must match, then the sorted
// element sequences are compared pairwise.
func (s *Set) Equal(other any) bool {
	o, ok := other.(*Set)
	if !ok {
		return false
	}
	if len(s.elems) != len(o.elems) {
		return false
	}
	return sequenceEqual(sortedCopy(s.elems), sortedCopy(o.elems))
}

func (s *Set) String() string {
	return "{" + joinValues(s.elems) + "}"
}

func joinValues(elems []any) string {
	var sb strings.Builder
	for i, e := range elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", e)
	}
	return sb.String()
}
