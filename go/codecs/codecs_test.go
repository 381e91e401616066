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
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexeldb/vexel-go/go/types"
	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// roundTrip encodes v, strips the value's length prefix, and decodes the
// payload, asserting the prefix matched the payload exactly.
func roundTrip(t *testing.T, c Codec, v any) any {
	t.Helper()
	w := wire.NewWriteBuffer()
	require.NoError(t, c.Encode(w, v))
	data := w.Unwrap()
	require.GreaterOrEqual(t, len(data), 4)

	r := wire.NewReader(data)
	payload, err := r.ReadLenBytes()
	require.NoError(t, err)
	require.Equal(t, 0, r.Len(), "encode produced bytes beyond its own prefix")

	got, err := DecodeExact(c, payload)
	require.NoError(t, err)
	return got
}

func baseCodec(t *testing.T, id uuid.UUID) Codec {
	t.Helper()
	c, ok := baseScalarCodecs[id]
	require.True(t, ok)
	return c
}

func TestScalarRoundTrips(t *testing.T) {
	tcases := []struct {
		id   uuid.UUID
		in   any
		want any
	}{
		{IDString, "hello", "hello"},
		{IDString, "", ""},
		{IDBytes, []byte{1, 2, 3}, []byte{1, 2, 3}},
		{IDInt16, int16(-5), int16(-5)},
		{IDInt32, int32(1 << 20), int32(1 << 20)},
		{IDInt64, int64(-1 << 40), int64(-1 << 40)},
		{IDInt64, int(42), int64(42)},
		{IDFloat32, float32(1.5), float32(1.5)},
		{IDFloat64, 2.25, 2.25},
		{IDBool, true, true},
		{IDBool, false, false},
		{IDUUID, uuid.MustParse("a5ea6360-75bd-4c20-b69c-8f3f419e8e2f"),
			uuid.MustParse("a5ea6360-75bd-4c20-b69c-8f3f419e8e2f")},
		{IDMemory, types.Memory(1 << 30), types.Memory(1 << 30)},
	}
	for _, tc := range tcases {
		c := baseCodec(t, tc.id)
		got := roundTrip(t, c, tc.in)
		assert.Equal(t, tc.want, got, "%s(%v)", c.Name(), tc.in)
	}
}

func TestDatetimeEncoding(t *testing.T) {
	c := baseCodec(t, IDDateTime)
	when := time.Date(2000, 1, 1, 0, 0, 1, 0, time.UTC)

	w := wire.NewWriteBuffer()
	require.NoError(t, c.Encode(w, when))
	data := w.Unwrap()
	// One second past the 2000-01-01 epoch, in microseconds.
	assert.Equal(t, []byte{0, 0, 0, 8, 0, 0, 0, 0, 0, 0x0f, 0x42, 0x40}, data)

	got := roundTrip(t, c, when)
	assert.True(t, when.Equal(got.(time.Time)))
}

func TestDurationRejectsCalendarParts(t *testing.T) {
	c := baseCodec(t, IDDuration)
	got := roundTrip(t, c, 90*time.Second)
	assert.Equal(t, 90*time.Second, got)

	// Wire payload with non-zero days must not decode to a duration.
	w := wire.NewWriteBuffer()
	w.WriteInt64(0).WriteInt32(3).WriteInt32(0)
	_, err := DecodeExact(c, w.Unwrap())
	require.Error(t, err)
}

func TestDecimalRoundTrip(t *testing.T) {
	c := baseCodec(t, IDDecimal)
	d := types.Decimal{Digits: []uint16{123, 4500}, Weight: 0, Scale: 2}
	got := roundTrip(t, c, d)
	assert.Equal(t, d, got)
	assert.Equal(t, "123.45", got.(types.Decimal).String())
}

func TestJSONFormatByte(t *testing.T) {
	c := baseCodec(t, IDJSON)
	got := roundTrip(t, c, `{"a": 1}`)
	assert.Equal(t, []byte(`{"a": 1}`), got)

	// Unknown format bytes are rejected.
	_, err := DecodeExact(c, []byte{2, '{', '}'})
	require.Error(t, err)
}

func TestDecodeExactTrailingBytes(t *testing.T) {
	c := baseCodec(t, IDInt32)
	_, err := DecodeExact(c, []byte{0, 0, 0, 1, 0xff})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeBinaryProtocol, vexelerrors.CodeOf(err))
}

// descriptor helpers

func descBase(w *wire.WriteBuffer, id uuid.UUID) {
	w.WriteUint8(descBaseScalar).WriteUUID(id)
}

func testID(n byte) uuid.UUID {
	var id uuid.UUID
	id[0] = 0x7e
	id[15] = n
	return id
}

func TestBuildTupleCodec(t *testing.T) {
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	descBase(w, IDString)
	tupleID := testID(1)
	w.WriteUint8(descTuple).WriteUUID(tupleID).
		WriteUint16(2).WriteUint16(0).WriteUint16(1)

	reg := NewRegistry()
	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)
	assert.Equal(t, tupleID, c.ID())
	assert.True(t, reg.HasCodec(tupleID))
	assert.True(t, reg.HasCodec(IDInt64))

	got := roundTrip(t, c, types.NewTuple(int64(7), "seven"))
	tup, ok := got.(*types.Tuple)
	require.True(t, ok)
	assert.Equal(t, int64(7), tup.Get(0))
	assert.Equal(t, "seven", tup.Get(1))
}

func TestBuildNamedTupleCodec(t *testing.T) {
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	ntID := testID(2)
	w.WriteUint8(descNamedTuple).WriteUUID(ntID).
		WriteUint16(1).WriteString("n").WriteUint16(0)

	reg := NewRegistry()
	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)

	got := roundTrip(t, c, map[string]any{"n": int64(9)})
	nt, ok := got.(*types.NamedTuple)
	require.True(t, ok)
	v, ok := nt.Get("n")
	require.True(t, ok)
	assert.Equal(t, int64(9), v)
}

func buildArgsCodec(t *testing.T, reg *Registry) Codec {
	t.Helper()
	w := wire.NewWriteBuffer()
	descBase(w, IDString)
	descBase(w, IDInt64)
	w.WriteUint8(descObject).WriteUUID(testID(3)).WriteUint16(2)
	// Field 0: required "name".
	w.WriteUint32(0).WriteUint8(uint8(wire.CardinalityOne)).
		WriteString("name").WriteUint16(0)
	// Field 1: optional "limit".
	w.WriteUint32(0).WriteUint8(uint8(wire.CardinalityAtMostOne)).
		WriteString("limit").WriteUint16(1)

	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)
	return c
}

func TestObjectArgumentEncoding(t *testing.T) {
	c := buildArgsCodec(t, NewRegistry())

	w := wire.NewWriteBuffer()
	require.NoError(t, c.Encode(w, map[string]any{"name": "ada", "limit": int64(5)}))

	// Optional argument omitted: encoded as an explicit null.
	w.Reset()
	require.NoError(t, c.Encode(w, map[string]any{"name": "ada"}))
	r := wire.NewReader(w.Unwrap())
	payload, err := r.ReadLenBytes()
	require.NoError(t, err)
	pr := wire.NewReader(payload)
	count, err := pr.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(2), count)
	_, err = pr.ReadInt32() // reserved
	require.NoError(t, err)
	nameLen, err := pr.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(3), nameLen)
	_, err = pr.ReadBytes(3)
	require.NoError(t, err)
	_, err = pr.ReadInt32() // reserved
	require.NoError(t, err)
	limitLen, err := pr.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), limitLen)
}

func TestObjectArgumentErrors(t *testing.T) {
	c := buildArgsCodec(t, NewRegistry())
	w := wire.NewWriteBuffer()

	// Required argument missing: named by field, not offset.
	err := c.Encode(w, map[string]any{"limit": int64(5)})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeMissingArgument, vexelerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "name")

	// Too many arguments.
	w.Reset()
	err = c.Encode(w, map[string]any{"name": "x", "limit": int64(1), "extra": 2})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeUnknownArgument, vexelerrors.CodeOf(err))

	// Wrong type reports field name and a value preview.
	w.Reset()
	err = c.Encode(w, map[string]any{"name": 42})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeInvalidArgument, vexelerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "42")
}

func TestPositionalArguments(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	w.WriteUint8(descObject).WriteUUID(testID(4)).WriteUint16(1)
	w.WriteUint32(0).WriteUint8(uint8(wire.CardinalityOne)).
		WriteString("0").WriteUint16(0)
	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)

	buf := wire.NewWriteBuffer()
	require.NoError(t, c.Encode(buf, []any{int64(11)}))

	buf.Reset()
	err = c.Encode(buf, []any{})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeMissingArgument, vexelerrors.CodeOf(err))
}

func TestObjectDecodeCountMismatch(t *testing.T) {
	c := buildArgsCodec(t, NewRegistry())

	w := wire.NewWriteBuffer()
	w.WriteInt32(3) // codec expects 2 fields
	_, err := DecodeExact(c, w.Unwrap())
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeBinaryProtocol, vexelerrors.CodeOf(err))
}

func TestBuildArrayCodec(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	w.WriteUint8(descArray).WriteUUID(testID(5)).
		WriteUint16(0). // element node
		WriteUint16(1). // ndims
		WriteInt32(-1)

	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)

	got := roundTrip(t, c, types.NewArray([]any{int64(1), int64(2), int64(3)}))
	arr, ok := got.(*types.Array)
	require.True(t, ok)
	require.Equal(t, 3, arr.Len())
	assert.Equal(t, int64(2), arr.Get(1))

	// Empty arrays survive the zero-dimension encoding.
	got = roundTrip(t, c, types.NewArray(nil))
	arr, ok = got.(*types.Array)
	require.True(t, ok)
	assert.Equal(t, 0, arr.Len())
}

func TestBuildEnumCodec(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	w.WriteUint8(descEnum).WriteUUID(testID(6)).
		WriteUint16(2).WriteString("red").WriteString("blue")

	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)

	assert.Equal(t, "red", roundTrip(t, c, "red"))

	buf := wire.NewWriteBuffer()
	err = c.Encode(buf, "green")
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeInvalidArgument, vexelerrors.CodeOf(err))
}

func TestBuildRangeCodec(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	w.WriteUint8(descRange).WriteUUID(testID(7)).WriteUint16(0)

	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)

	rng := types.Range{Lower: int64(1), Upper: int64(10), IncLower: true}
	got := roundTrip(t, c, rng)
	assert.True(t, rng.Equal(got))

	empty := types.Range{Empty: true}
	got = roundTrip(t, c, empty)
	assert.True(t, empty.Equal(got))
}

func TestAnnotationNodesAreSkipped(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	w.WriteUint8(0xff).WriteString("std::int64") // type name annotation
	codec, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)
	assert.Equal(t, IDInt64, codec.ID())
}

func TestUnknownDescriptorTag(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	w.WriteUint8(0x42).WriteUUID(testID(8))
	_, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeTypeSpecNotFound, vexelerrors.CodeOf(err))
}

func TestForwardReferenceRejected(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	w.WriteUint8(descTuple).WriteUUID(testID(9)).
		WriteUint16(1).WriteUint16(3) // references a node not yet seen
	_, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.Error(t, err)
}

func TestRegistryReusesFirstInstance(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	desc := append([]byte(nil), w.Unwrap()...)

	c1, err := reg.BuildCodec(desc, wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)
	c2, err := reg.BuildCodec(desc, wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	got, err := reg.GetCodec(IDInt64)
	require.NoError(t, err)
	assert.Same(t, c1, got)
}

func TestRegistryNullID(t *testing.T) {
	reg := NewRegistry()
	assert.True(t, reg.HasCodec(NullID))
	c, err := reg.GetCodec(NullID)
	require.NoError(t, err)
	assert.IsType(t, NullCodec{}, c)

	_, err = reg.GetCodec(testID(10))
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeTypeSpecNotFound, vexelerrors.CodeOf(err))
}

func TestNullCodec(t *testing.T) {
	var c NullCodec
	w := wire.NewWriteBuffer()
	require.NoError(t, c.Encode(w, nil))
	assert.Equal(t, []byte{0, 0, 0, 0}, w.Unwrap())

	w.Reset()
	err := c.Encode(w, []any{1})
	require.Error(t, err)

	_, err = DecodeExact(c, nil)
	require.Error(t, err)
}

type centsOverride struct{}

func (centsOverride) DecodeValue(v any) (any, error) {
	return v.(int64) * 100, nil
}

func (centsOverride) EncodeValue(v any) (any, error) {
	n, ok := v.(int64)
	if !ok || n%100 != 0 {
		return nil, errors.New("not a whole amount")
	}
	return n / 100, nil
}

func TestScalarOverride(t *testing.T) {
	reg := NewRegistry()
	reg.SetScalarOverride(IDInt64, centsOverride{})

	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)

	got := roundTrip(t, c, int64(500))
	assert.Equal(t, int64(500), got)

	buf := wire.NewWriteBuffer()
	err = c.Encode(buf, int64(5))
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeInvalidArgument, vexelerrors.CodeOf(err))
}

func TestTupleElementCountMismatch(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	w.WriteUint8(descTuple).WriteUUID(testID(11)).
		WriteUint16(1).WriteUint16(0)
	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)

	// A payload declaring two elements against a one-element codec.
	buf := wire.NewWriteBuffer()
	buf.WriteInt32(2)
	_, err = DecodeExact(c, buf.Unwrap())
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeBinaryProtocol, vexelerrors.CodeOf(err))
}

func TestBuildSetCodec(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	w.WriteUint8(descSet).WriteUUID(testID(12)).WriteUint16(0)

	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)
	assert.Equal(t, "set<std::int64>", c.Name())

	elem := baseCodec(t, IDInt64)
	p := wire.NewWriteBuffer()
	p.WriteInt32(1).WriteInt32(0).WriteInt32(0). // ndims, reserved
		WriteInt32(2).WriteInt32(1) // upper, lower
	require.NoError(t, elem.Encode(p, int64(4)))
	require.NoError(t, elem.Encode(p, int64(5)))

	got, err := DecodeExact(c, p.Unwrap())
	require.NoError(t, err)
	set, ok := got.(*types.Set)
	require.True(t, ok)
	assert.Equal(t, []any{int64(4), int64(5)}, set.Values())

	// Zero dimensions means an empty set.
	p.Reset()
	p.WriteInt32(0).WriteInt32(0).WriteInt32(0)
	got, err = DecodeExact(c, p.Unwrap())
	require.NoError(t, err)
	assert.Equal(t, 0, got.(*types.Set).Len())

	// Sets only travel server to client.
	err = c.Encode(wire.NewWriteBuffer(), set)
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeInvalidArgument, vexelerrors.CodeOf(err))
}

func TestSetOfArrayEnvelope(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	w.WriteUint8(descArray).WriteUUID(testID(13)).
		WriteUint16(0).WriteUint16(1).WriteInt32(-1)
	w.WriteUint8(descSet).WriteUUID(testID(14)).WriteUint16(1)

	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)
	arr, err := reg.GetCodec(testID(13))
	require.NoError(t, err)

	// Two array elements, each wrapped in a single-element envelope:
	// a count, a reserved word, then the array's own framing.
	p := wire.NewWriteBuffer()
	p.WriteInt32(1).WriteInt32(0).WriteInt32(0).
		WriteInt32(2).WriteInt32(1)
	p.WriteInt32(1).WriteInt32(0)
	require.NoError(t, arr.Encode(p, types.NewArray([]any{int64(1), int64(2)})))
	p.WriteInt32(1).WriteInt32(0)
	require.NoError(t, arr.Encode(p, types.NewArray([]any{int64(3)})))

	got, err := DecodeExact(c, p.Unwrap())
	require.NoError(t, err)
	set, ok := got.(*types.Set)
	require.True(t, ok)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, []any{int64(1), int64(2)}, set.Get(0).(*types.Array).Values())
	assert.Equal(t, []any{int64(3)}, set.Get(1).(*types.Array).Values())

	// An envelope holding anything but one element is malformed.
	p.Reset()
	p.WriteInt32(1).WriteInt32(0).WriteInt32(0).
		WriteInt32(1).WriteInt32(1)
	p.WriteInt32(2).WriteInt32(0)
	require.NoError(t, arr.Encode(p, types.NewArray([]any{int64(1)})))
	_, err = DecodeExact(c, p.Unwrap())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "envelope")
}

func buildSessionCodec(t *testing.T, reg *Registry) Codec {
	t.Helper()
	w := wire.NewWriteBuffer()
	descBase(w, IDString)
	descBase(w, IDInt64)
	w.WriteUint8(descInputShape).WriteUUID(testID(15)).WriteUint16(2)
	w.WriteUint32(0).WriteUint8(uint8(wire.CardinalityAtMostOne)).
		WriteString("module").WriteUint16(0)
	w.WriteUint32(0).WriteUint8(uint8(wire.CardinalityAtMostOne)).
		WriteString("query_timeout").WriteUint16(1)

	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)
	return c
}

func TestBuildInputShapeCodec(t *testing.T) {
	c := buildSessionCodec(t, NewRegistry())

	got := roundTrip(t, c, map[string]any{"query_timeout": int64(30)})
	sparse, ok := got.(*types.SparseObject)
	require.True(t, ok)
	v, ok := sparse.Get("query_timeout")
	require.True(t, ok)
	assert.Equal(t, int64(30), v)
	_, ok = sparse.Get("module")
	assert.False(t, ok)

	// Names outside the shape are rejected up front.
	err := c.Encode(wire.NewWriteBuffer(), map[string]any{"colour": "red"})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeUnknownArgument, vexelerrors.CodeOf(err))
}

func TestInputShapeDecodeEdgeCases(t *testing.T) {
	c := buildSessionCodec(t, NewRegistry())

	// A null field is present on the wire but stays unset on the object.
	p := wire.NewWriteBuffer()
	p.WriteInt32(1).WriteInt32(0).WriteInt32(-1)
	got, err := DecodeExact(c, p.Unwrap())
	require.NoError(t, err)
	sparse, ok := got.(*types.SparseObject)
	require.True(t, ok)
	assert.False(t, sparse.Has(0))
	assert.False(t, sparse.Has(1))

	// Field positions beyond the shape are rejected.
	p.Reset()
	p.WriteInt32(1).WriteInt32(7).WriteInt32(-1)
	_, err = DecodeExact(c, p.Unwrap())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestBuildMultiRangeCodec(t *testing.T) {
	reg := NewRegistry()
	w := wire.NewWriteBuffer()
	descBase(w, IDInt64)
	w.WriteUint8(descMultiRange).WriteUUID(testID(16)).WriteUint16(0)

	c, err := reg.BuildCodec(w.Unwrap(), wire.ProtocolVersion{Major: 1})
	require.NoError(t, err)
	assert.Equal(t, "multirange<std::int64>", c.Name())

	ranges := []types.Range{
		{Lower: int64(1), Upper: int64(5), IncLower: true},
		{Lower: int64(10), IncLower: true}, // unbounded above
	}
	got := roundTrip(t, c, ranges)
	mr, ok := got.(*types.MultiRange)
	require.True(t, ok)
	require.Equal(t, 2, mr.Len())
	assert.True(t, ranges[0].Equal(mr.Get(0)))
	assert.True(t, ranges[1].Equal(mr.Get(1)))
	assert.True(t, types.NewMultiRange(ranges).Equal(mr))

	got = roundTrip(t, c, []types.Range{})
	assert.Equal(t, 0, got.(*types.MultiRange).Len())
}
