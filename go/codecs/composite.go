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

package codecs

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/vexeldb/vexel-go/go/types"
	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// nullLength is the length sentinel marking an absent value.
const nullLength = int32(-1)

// decodeChild slices exactly length bytes off r and decodes them with c,
// enforcing the exact-consumption invariant.
func decodeChild(c Codec, r *wire.Reader, length int32) (any, error) {
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	return DecodeExact(c, data)
}

// tupleCodec decodes positional tuples. Each element is framed as a
// 4-byte reserved word plus a 4-byte length.
type tupleCodec struct {
	id     uuid.UUID
	fields []Codec
}

func (c *tupleCodec) ID() uuid.UUID { return c.id }
func (c *tupleCodec) Name() string  { return "tuple" }

func (c *tupleCodec) Decode(r *wire.Reader) (any, error) {
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if int(count) != len(c.fields) {
		return nil, decodeError("tuple has %d elements, codec expects %d", count, len(c.fields))
	}
	elems := make([]any, count)
	for i := range elems {
		if _, err := r.ReadInt32(); err != nil { // reserved
			return nil, err
		}
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length == nullLength {
			return nil, decodeError("unexpected null element in tuple position %d", i)
		}
		elems[i], err = decodeChild(c.fields[i], r, length)
		if err != nil {
			return nil, err
		}
	}
	return types.NewTuple(elems...), nil
}

func (c *tupleCodec) Encode(w *wire.WriteBuffer, v any) error {
	var elems []any
	switch x := v.(type) {
	case *types.Tuple:
		elems = x.Values()
	case []any:
		elems = x
	default:
		return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v, "expected a tuple")
	}
	if len(elems) != len(c.fields) {
		return vexelerrors.New(vexelerrors.CodeQueryArgument,
			"expected %d positional arguments, got %d", len(c.fields), len(elems))
	}
	w.BeginBlock()
	w.WriteInt32(int32(len(elems)))
	for i, e := range elems {
		w.WriteInt32(0)
		if e == nil {
			return argumentError(vexelerrors.CodeInvalidArgument,
				strconv.Itoa(i), e, "tuple elements cannot be null")
		}
		if err := c.fields[i].Encode(w, e); err != nil {
			return err
		}
	}
	w.EndBlock()
	return nil
}

// namedTupleCodec decodes named tuples, which share the tuple element
// framing and add a name table.
type namedTupleCodec struct {
	id     uuid.UUID
	names  []string
	fields []Codec
}

func (c *namedTupleCodec) ID() uuid.UUID { return c.id }
func (c *namedTupleCodec) Name() string  { return "namedtuple" }

func (c *namedTupleCodec) Decode(r *wire.Reader) (any, error) {
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if int(count) != len(c.fields) {
		return nil, decodeError("named tuple has %d elements, codec expects %d", count, len(c.fields))
	}
	elems := make([]any, count)
	for i := range elems {
		if _, err := r.ReadInt32(); err != nil { // reserved
			return nil, err
		}
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length == nullLength {
			return nil, decodeError("unexpected null element in named tuple field %q", c.names[i])
		}
		elems[i], err = decodeChild(c.fields[i], r, length)
		if err != nil {
			return nil, err
		}
	}
	return types.NewNamedTuple(c.names, elems)
}

func (c *namedTupleCodec) Encode(w *wire.WriteBuffer, v any) error {
	var lookup func(name string, i int) (any, bool)
	switch x := v.(type) {
	case *types.NamedTuple:
		lookup = func(name string, _ int) (any, bool) { return x.Get(name) }
	case map[string]any:
		lookup = func(name string, _ int) (any, bool) { e, ok := x[name]; return e, ok }
	default:
		return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v, "expected a named tuple")
	}
	w.BeginBlock()
	w.WriteInt32(int32(len(c.fields)))
	for i, name := range c.names {
		w.WriteInt32(0)
		e, ok := lookup(name, i)
		if !ok || e == nil {
			return argumentError(vexelerrors.CodeMissingArgument, name, e,
				"named tuple fields cannot be omitted")
		}
		if err := c.fields[i].Encode(w, e); err != nil {
			return err
		}
	}
	w.EndBlock()
	return nil
}

// objectCodec decodes result objects and encodes named (or numbered
// positional) query arguments, which the server describes as an object
// shape.
type objectCodec struct {
	id     uuid.UUID
	shape  *types.Shape
	fields []Codec
}

func (c *objectCodec) ID() uuid.UUID { return c.id }
func (c *objectCodec) Name() string  { return "object" }

func (c *objectCodec) Decode(r *wire.Reader) (any, error) {
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if int(count) != len(c.fields) {
		return nil, decodeError("object has %d fields, codec expects %d", count, len(c.fields))
	}
	elems := make([]any, count)
	for i := range elems {
		if _, err := r.ReadInt32(); err != nil { // reserved
			return nil, err
		}
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length == nullLength {
			elems[i] = nil
			continue
		}
		elems[i], err = decodeChild(c.fields[i], r, length)
		if err != nil {
			return nil, err
		}
	}
	return types.NewObject(c.shape, elems)
}

// Encode writes query arguments. Named arguments arrive as a map;
// positional arguments arrive as a slice and bind to the shape's
// numbered fields.
func (c *objectCodec) Encode(w *wire.WriteBuffer, v any) error {
	var lookup func(name string) (any, bool)
	argc := 0
	switch x := v.(type) {
	case map[string]any:
		lookup = func(name string) (any, bool) { e, ok := x[name]; return e, ok }
		argc = len(x)
	case []any:
		lookup = func(name string) (any, bool) {
			i, err := strconv.Atoi(name)
			if err != nil || i < 0 || i >= len(x) {
				return nil, false
			}
			return x[i], true
		}
		argc = len(x)
	case nil:
		lookup = func(string) (any, bool) { return nil, false }
	default:
		return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v,
			"expected named or positional arguments")
	}

	if argc > len(c.fields) {
		return vexelerrors.New(vexelerrors.CodeUnknownArgument,
			"got %d arguments, the statement declares %d", argc, len(c.fields))
	}

	w.BeginBlock()
	w.WriteInt32(int32(len(c.fields)))
	for i, codec := range c.fields {
		field := c.shape.Field(i)
		w.WriteInt32(0)
		e, ok := lookup(field.Name)
		if !ok || e == nil {
			if field.Cardinality == wire.CardinalityAtMostOne {
				w.WriteInt32(nullLength)
				continue
			}
			return argumentError(vexelerrors.CodeMissingArgument, field.Name, e,
				"required argument is missing")
		}
		if err := codec.Encode(w, e); err != nil {
			return err
		}
	}
	w.EndBlock()
	return nil
}

// inputShapeCodec handles sparse objects: free-form input such as session
// state, where only a subset of fields is present and each present field
// is addressed by its position in the shape.
type inputShapeCodec struct {
	id     uuid.UUID
	shape  *types.Shape
	fields []Codec
}

func (c *inputShapeCodec) ID() uuid.UUID { return c.id }
func (c *inputShapeCodec) Name() string  { return "input_shape" }

func (c *inputShapeCodec) Decode(r *wire.Reader) (any, error) {
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	obj := types.NewSparseObject(c.shape)
	for i := int32(0); i < count; i++ {
		pos, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if int(pos) >= len(c.fields) || pos < 0 {
			return nil, decodeError("sparse object field position %d out of range", pos)
		}
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length == nullLength {
			continue
		}
		v, err := decodeChild(c.fields[pos], r, length)
		if err != nil {
			return nil, err
		}
		if err := obj.Set(c.shape.Field(int(pos)).Name, v); err != nil {
			return nil, decodeError("%s", err)
		}
	}
	return obj, nil
}

func (c *inputShapeCodec) Encode(w *wire.WriteBuffer, v any) error {
	present := make(map[int]any)
	switch x := v.(type) {
	case *types.SparseObject:
		for i := 0; i < c.shape.Len(); i++ {
			if x.Has(i) {
				present[i] = x.Field(i)
			}
		}
	case map[string]any:
		for name, e := range x {
			i, ok := c.shape.Position(name)
			if !ok {
				return vexelerrors.New(vexelerrors.CodeUnknownArgument,
					"no field %q in sparse shape", name)
			}
			present[i] = e
		}
	default:
		return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v, "expected a sparse object")
	}

	w.BeginBlock()
	w.WriteInt32(int32(len(present)))
	for i := 0; i < c.shape.Len(); i++ {
		e, ok := present[i]
		if !ok {
			continue
		}
		w.WriteInt32(int32(i))
		if e == nil {
			w.WriteInt32(nullLength)
			continue
		}
		if err := c.fields[i].Encode(w, e); err != nil {
			return err
		}
	}
	w.EndBlock()
	return nil
}

// arrayCodec frames elements with a bare 4-byte length each, preceded by
// a dimension header. Only zero- or one-dimensional arrays exist on the
// wire.
type arrayCodec struct {
	id   uuid.UUID
	elem Codec
}

func (c *arrayCodec) ID() uuid.UUID { return c.id }
func (c *arrayCodec) Name() string  { return "array<" + c.elem.Name() + ">" }

func decodeElementHeader(r *wire.Reader, kind string) (int32, error) {
	ndims, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	if _, err := r.ReadInt32(); err != nil { // reserved
		return 0, err
	}
	if _, err := r.ReadInt32(); err != nil { // reserved
		return 0, err
	}
	switch ndims {
	case 0:
		return 0, nil
	case 1:
		upper, err := r.ReadInt32()
		if err != nil {
			return 0, err
		}
		lower, err := r.ReadInt32()
		if err != nil {
			return 0, err
		}
		n := upper - lower + 1
		if n < 0 {
			return 0, decodeError("%s bounds [%d, %d] are inverted", kind, lower, upper)
		}
		return n, nil
	default:
		return 0, decodeError("%s has %d dimensions, expected at most 1", kind, ndims)
	}
}

func (c *arrayCodec) Decode(r *wire.Reader) (any, error) {
	n, err := decodeElementHeader(r, "array")
	if err != nil {
		return nil, err
	}
	elems := make([]any, n)
	for i := range elems {
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length == nullLength {
			return nil, decodeError("unexpected null element in array index %d", i)
		}
		elems[i], err = decodeChild(c.elem, r, length)
		if err != nil {
			return nil, err
		}
	}
	return types.NewArray(elems), nil
}

func (c *arrayCodec) Encode(w *wire.WriteBuffer, v any) error {
	var elems []any
	switch x := v.(type) {
	case *types.Array:
		elems = x.Values()
	case []any:
		elems = x
	default:
		return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v, "expected an array")
	}
	w.BeginBlock()
	if len(elems) == 0 {
		w.WriteInt32(0)
		w.WriteInt32(0)
		w.WriteInt32(0)
	} else {
		w.WriteInt32(1)
		w.WriteInt32(0)
		w.WriteInt32(0)
		w.WriteInt32(int32(len(elems))) // upper
		w.WriteInt32(1)                 // lower
	}
	for i, e := range elems {
		if e == nil {
			return argumentError(vexelerrors.CodeInvalidArgument,
				strconv.Itoa(i), e, "array elements cannot be null")
		}
		if err := c.elem.Encode(w, e); err != nil {
			return err
		}
	}
	w.EndBlock()
	return nil
}

// setCodec decodes result sets. Sets of arrays wrap each element in a
// tuple-style envelope so that array framing stays unambiguous.
type setCodec struct {
	id   uuid.UUID
	elem Codec
}

func (c *setCodec) ID() uuid.UUID { return c.id }
func (c *setCodec) Name() string  { return "set<" + c.elem.Name() + ">" }

func (c *setCodec) Decode(r *wire.Reader) (any, error) {
	n, err := decodeElementHeader(r, "set")
	if err != nil {
		return nil, err
	}
	_, envelope := c.elem.(*arrayCodec)
	elems := make([]any, n)
	for i := range elems {
		if envelope {
			count, err := r.ReadInt32()
			if err != nil {
				return nil, err
			}
			if count != 1 {
				return nil, decodeError("set envelope has %d elements, expected 1", count)
			}
			if _, err := r.ReadInt32(); err != nil { // reserved
				return nil, err
			}
		}
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length == nullLength {
			return nil, decodeError("unexpected null element in set index %d", i)
		}
		elems[i], err = decodeChild(c.elem, r, length)
		if err != nil {
			return nil, err
		}
	}
	return types.NewSet(elems), nil
}

// Sets are a result-only construct.
func (c *setCodec) Encode(w *wire.WriteBuffer, v any) error {
	return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v,
		"sets cannot be encoded as arguments")
}

// enumCodec carries enum values as their member strings.
type enumCodec struct {
	id      uuid.UUID
	members map[string]struct{}
}

func (c *enumCodec) ID() uuid.UUID { return c.id }
func (c *enumCodec) Name() string  { return "enum" }

func (c *enumCodec) Decode(r *wire.Reader) (any, error) {
	return string(r.Rest()), nil
}

func (c *enumCodec) Encode(w *wire.WriteBuffer, v any) error {
	s, ok := v.(string)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v, "expected an enum member string")
	}
	if _, ok := c.members[s]; !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v,
			fmt.Sprintf("%q is not a member of the enum", s))
	}
	w.WriteString(s)
	return nil
}

// Range flag bits.
const (
	rangeEmpty    = 0x01
	rangeIncLower = 0x02
	rangeIncUpper = 0x04
	rangeInfLower = 0x08
	rangeInfUpper = 0x10
)

type rangeCodec struct {
	id    uuid.UUID
	value Codec
}

func (c *rangeCodec) ID() uuid.UUID { return c.id }
func (c *rangeCodec) Name() string  { return "range<" + c.value.Name() + ">" }

func (c *rangeCodec) Decode(r *wire.Reader) (any, error) {
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	out := types.Range{
		Empty:    flags&rangeEmpty != 0,
		IncLower: flags&rangeIncLower != 0,
		IncUpper: flags&rangeIncUpper != 0,
	}
	if out.Empty {
		return out, nil
	}
	if flags&rangeInfLower == 0 {
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		out.Lower, err = decodeChild(c.value, r, length)
		if err != nil {
			return nil, err
		}
	}
	if flags&rangeInfUpper == 0 {
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		out.Upper, err = decodeChild(c.value, r, length)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *rangeCodec) Encode(w *wire.WriteBuffer, v any) error {
	var rng types.Range
	switch x := v.(type) {
	case types.Range:
		rng = x
	case *types.Range:
		rng = *x
	default:
		return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v, "expected a range")
	}

	var flags uint8
	if rng.Empty {
		flags |= rangeEmpty
	}
	if rng.IncLower {
		flags |= rangeIncLower
	}
	if rng.IncUpper {
		flags |= rangeIncUpper
	}
	if rng.Lower == nil {
		flags |= rangeInfLower
	}
	if rng.Upper == nil {
		flags |= rangeInfUpper
	}

	w.BeginBlock()
	w.WriteUint8(flags)
	if !rng.Empty {
		if rng.Lower != nil {
			if err := c.value.Encode(w, rng.Lower); err != nil {
				return err
			}
		}
		if rng.Upper != nil {
			if err := c.value.Encode(w, rng.Upper); err != nil {
				return err
			}
		}
	}
	w.EndBlock()
	return nil
}

type multiRangeCodec struct {
	id    uuid.UUID
	inner *rangeCodec
}

func (c *multiRangeCodec) ID() uuid.UUID { return c.id }
func (c *multiRangeCodec) Name() string  { return "multi" + c.inner.Name() }

func (c *multiRangeCodec) Decode(r *wire.Reader) (any, error) {
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	ranges := make([]types.Range, count)
	for i := range ranges {
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		v, err := decodeChild(c.inner, r, length)
		if err != nil {
			return nil, err
		}
		ranges[i] = v.(types.Range)
	}
	return types.NewMultiRange(ranges), nil
}

func (c *multiRangeCodec) Encode(w *wire.WriteBuffer, v any) error {
	var ranges []types.Range
	switch x := v.(type) {
	case *types.MultiRange:
		ranges = make([]types.Range, x.Len())
		for i := range ranges {
			ranges[i] = x.Get(i)
		}
	case []types.Range:
		ranges = x
	default:
		return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v, "expected a multirange")
	}
	w.BeginBlock()
	w.WriteInt32(int32(len(ranges)))
	for i := range ranges {
		if err := c.inner.Encode(w, ranges[i]); err != nil {
			return err
		}
	}
	w.EndBlock()
	return nil
}
