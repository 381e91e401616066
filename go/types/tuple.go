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

// Tuple is an ordered, positionally addressed value. Tuples are
// structurally hashed: two tuples with equal element sequences are equal
// and hash alike.
type Tuple struct {
	elems []any
}

// NewTuple builds a Tuple over the given elements. The slice is retained.
func NewTuple(elems ...any) *Tuple {
	return &Tuple{elems: elems}
}

// Len returns the number of elements.
func (t *Tuple) Len() int {
	return len(t.elems)
}

// Get returns the i-th element.
func (t *Tuple) Get(i int) any {
	return t.elems[i]
}

// Values returns the element slice. The caller must not modify it.
func (t *Tuple) Values() []any {
	return t.elems
}

// Hash returns the element-sequence hash. A NamedTuple over the same
// sequence hashes to the same value.
func (t *Tuple) Hash() uint64 {
	return hashSequence(t.elems)
}

// Equal compares element sequences. A NamedTuple with the same element
// sequence compares equal, mirroring the name-blind equality of the
// positional tuple it extends.
func (t *Tuple) Equal(other any) bool {
	switch o := other.(type) {
	case *Tuple:
		return sequenceEqual(t.elems, o.elems)
	case *NamedTuple:
		return sequenceEqual(t.elems, o.elems)
	default:
		return false
	}
}

func (t *Tuple) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, e := range t.elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", e)
	}
	sb.WriteByte(')')
	return sb.String()
}

// NamedTuple is a Tuple whose elements are additionally addressable by
// name. Names do not participate in equality or hashing.
type NamedTuple struct {
	names map[string]int
	order []string
	elems []any
}

// NewNamedTuple builds a NamedTuple from parallel name and element
// slices, which are retained.
func NewNamedTuple(names []string, elems []any) (*NamedTuple, error) {
	if len(names) != len(elems) {
		return nil, fmt.Errorf("named tuple has %d names but %d elements", len(names), len(elems))
	}
	index := make(map[string]int, len(names))
	for i, name := range names {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("named tuple has duplicate field %q", name)
		}
		index[name] = i
	}
	return &NamedTuple{names: index, order: names, elems: elems}, nil
}

// Len returns the number of elements.
func (t *NamedTuple) Len() int {
	return len(t.elems)
}

// Index returns the i-th element.
func (t *NamedTuple) Index(i int) any {
	return t.elems[i]
}

// FieldName returns the name of the i-th element.
func (t *NamedTuple) FieldName(i int) string {
	return t.order[i]
}

// Get returns the element with the given name.
func (t *NamedTuple) Get(name string) (any, bool) {
	i, ok := t.names[name]
	if !ok {
		return nil, false
	}
	return t.elems[i], true
}

// Values returns the element slice. The caller must not modify it.
func (t *NamedTuple) Values() []any {
	return t.elems
}

// Hash returns the element-sequence hash, identical to the hash of a
// positional Tuple over the same elements.
func (t *NamedTuple) Hash() uint64 {
	return hashSequence(t.elems)
}

// Equal compares element sequences, ignoring names.
func (t *NamedTuple) Equal(other any) bool {
	switch o := other.(type) {
	case *NamedTuple:
		return sequenceEqual(t.elems, o.elems)
	case *Tuple:
		return sequenceEqual(t.elems, o.elems)
	default:
		return false
	}
}

func (t *NamedTuple) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, e := range t.elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s := %v", t.order[i], e)
	}
	sb.WriteByte(')')
	return sb.String()
}
