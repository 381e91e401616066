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

	"github.com/vexeldb/vexel-go/go/wire"
)

// ShapeField describes one field of an object shape.
type ShapeField struct {
	Name           string
	Cardinality    wire.Cardinality
	IsLink         bool
	IsLinkProperty bool
	IsImplicit     bool
}

// Shape is the field layout shared by every Object decoded with the same
// codec. It is built once per codec and holds the position lookup table.
type Shape struct {
	fields []ShapeField
	index  map[string]int
	idPos  int
}

// NewShape builds a Shape from its fields. The identity position is the
// field named "id", when present.
func NewShape(fields []ShapeField) *Shape {
	index := make(map[string]int, len(fields))
	idPos := -1
	for i, f := range fields {
		index[f.Name] = i
		if f.Name == "id" && !f.IsLinkProperty {
			idPos = i
		}
	}
	return &Shape{fields: fields, index: index, idPos: idPos}
}

// Len returns the number of fields.
func (s *Shape) Len() int {
	return len(s.fields)
}

// Field returns the i-th field descriptor.
func (s *Shape) Field(i int) ShapeField {
	return s.fields[i]
}

// Position returns the index of the named field.
func (s *Shape) Position(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Object is a decoded object value: named fields plus an identity field.
// Equality and hashing are defined only by the identity field's value,
// never by the remaining contents.
type Object struct {
	shape *Shape
	elems []any
}

// NewObject builds an Object over a shape and its field values.
func NewObject(shape *Shape, elems []any) (*Object, error) {
	if len(elems) != shape.Len() {
		return nil, fmt.Errorf("object has %d values for %d fields", len(elems), shape.Len())
	}
	return &Object{shape: shape, elems: elems}, nil
}

// Shape returns the object's field layout.
func (o *Object) Shape() *Shape {
	return o.shape
}

// ID returns the identity field's value, or nil when the shape carries
// no identity.
func (o *Object) ID() any {
	if o.shape.idPos < 0 {
		return nil
	}
	return o.elems[o.shape.idPos]
}

// Get returns the named field's value. Link property fields are
// addressed with their "@" prefix.
func (o *Object) Get(name string) (any, bool) {
	i, ok := o.shape.index[name]
	if !ok {
		return nil, false
	}
	return o.elems[i], true
}

// Field returns the i-th field's value.
func (o *Object) Field(i int) any {
	return o.elems[i]
}

// Link returns a view over the named link field, pairing this object
// with its target(s) without materializing anything new.
func (o *Object) Link(name string) (*Link, bool) {
	i, ok := o.shape.index[name]
	if !ok || !o.shape.fields[i].IsLink {
		return nil, false
	}
	target, ok := o.elems[i].(*Object)
	if !ok {
		return nil, false
	}
	return &Link{name: name, source: o, target: target}, true
}

// LinkSet returns a view over the named multi-link field.
func (o *Object) LinkSet(name string) (*LinkSet, bool) {
	i, ok := o.shape.index[name]
	if !ok || !o.shape.fields[i].IsLink {
		return nil, false
	}
	set, ok := o.elems[i].(*Set)
	if !ok {
		return nil, false
	}
	return &LinkSet{name: name, source: o, targets: set}, true
}

// Equal compares identity fields only. Two objects decoded from the same
// type with equal ids are equal even when their other fields differ.
func (o *Object) Equal(other any) bool {
	oo, ok := other.(*Object)
	if !ok {
		return false
	}
	id, oid := o.ID(), oo.ID()
	if id == nil || oid == nil {
		return o == oo
	}
	return ValueEqual(id, oid)
}

// Hash hashes the identity field's value. Objects decoded without an
// identity field fall back to the field-sequence hash.
func (o *Object) Hash() uint64 {
	id := o.ID()
	if id == nil {
		return hashSequence(o.elems)
	}
	return ValueHash(id)
}

func (o *Object) String() string {
	var sb strings.Builder
	sb.WriteString("Object{")
	first := true
	for i, f := range o.shape.fields {
		if f.IsImplicit {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%s: %v", f.Name, o.elems[i])
	}
	sb.WriteByte('}')
	return sb.String()
}

// SparseObject is a partial object used for free-form input and session
// state encoding: only a subset of the shape's fields carry values,
// addressed through the shape's position lookup table.
type SparseObject struct {
	shape   *Shape
	elems   []any
	present []bool
}

// NewSparseObject builds a SparseObject with no fields set.
func NewSparseObject(shape *Shape) *SparseObject {
	return &SparseObject{
		shape:   shape,
		elems:   make([]any, shape.Len()),
		present: make([]bool, shape.Len()),
	}
}

// Shape returns the sparse object's field layout.
func (o *SparseObject) Shape() *Shape {
	return o.shape
}

// Set assigns the named field.
func (o *SparseObject) Set(name string, v any) error {
	i, ok := o.shape.index[name]
	if !ok {
		return fmt.Errorf("no field %q in sparse shape", name)
	}
	o.elems[i] = v
	o.present[i] = true
	return nil
}

// Get returns the named field's value and whether it is set.
func (o *SparseObject) Get(name string) (any, bool) {
	i, ok := o.shape.index[name]
	if !ok || !o.present[i] {
		return nil, false
	}
	return o.elems[i], true
}

// Has reports whether the i-th field is set.
func (o *SparseObject) Has(i int) bool {
	return o.present[i]
}

// Field returns the i-th field's value.
func (o *SparseObject) Field(i int) any {
	return o.elems[i]
}

// Len returns the number of fields that are set.
func (o *SparseObject) Len() int {
	n := 0
	for _, p := range o.present {
		if p {
			n++
		}
	}
	return n
}
