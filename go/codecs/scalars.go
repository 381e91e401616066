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
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/vexeldb/vexel-go/go/types"
	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// Well-known base scalar type ids. These are fixed for every server and
// identify the built-in binary layouts.
var (
	IDUUID             = mkBaseID(0x00)
	IDString           = mkBaseID(0x01)
	IDBytes            = mkBaseID(0x02)
	IDInt16            = mkBaseID(0x03)
	IDInt32            = mkBaseID(0x04)
	IDInt64            = mkBaseID(0x05)
	IDFloat32          = mkBaseID(0x06)
	IDFloat64          = mkBaseID(0x07)
	IDDecimal          = mkBaseID(0x08)
	IDBool             = mkBaseID(0x09)
	IDDateTime         = mkBaseID(0x0a)
	IDLocalDateTime    = mkBaseID(0x0b)
	IDLocalDate        = mkBaseID(0x0c)
	IDLocalTime        = mkBaseID(0x0d)
	IDDuration         = mkBaseID(0x0e)
	IDJSON             = mkBaseID(0x0f)
	IDBigInt           = mkBaseID(0x10)
	IDRelativeDuration = mkBaseID(0x11)
	IDDateDuration     = mkBaseID(0x12)
	IDMemory           = mkBaseID(0x30)
)

// mkBaseID builds the id 00000000-0000-0000-0000-000000000100+n.
func mkBaseID(n byte) uuid.UUID {
	var id uuid.UUID
	id[14] = 0x01
	id[15] = n
	return id
}

// epoch2000 is the zero point of the wire's timestamp encodings.
var epoch2000 = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// scalarDecode/scalarEncode are the leaf strategies a scalarCodec binds.
type scalarDecode func(r *wire.Reader) (any, error)
type scalarEncode func(w *wire.WriteBuffer, field string, v any) error

type scalarCodec struct {
	id     uuid.UUID
	name   string
	decode scalarDecode
	encode scalarEncode
}

func (c *scalarCodec) ID() uuid.UUID { return c.id }
func (c *scalarCodec) Name() string  { return c.name }

func (c *scalarCodec) Decode(r *wire.Reader) (any, error) {
	return c.decode(r)
}

func (c *scalarCodec) Encode(w *wire.WriteBuffer, v any) error {
	return c.encode(w, c.name, v)
}

// ScalarOverride wraps a base scalar codec with application-level value
// transforms, the pluggable override point for custom scalar mappings.
type ScalarOverride interface {
	// DecodeValue maps the codec's native decoded value to the
	// application value.
	DecodeValue(v any) (any, error)

	// EncodeValue maps an application value back to the codec's native
	// input value.
	EncodeValue(v any) (any, error)
}

// overrideCodec applies a ScalarOverride around a leaf codec.
type overrideCodec struct {
	base     Codec
	override ScalarOverride
}

func (c *overrideCodec) ID() uuid.UUID { return c.base.ID() }
func (c *overrideCodec) Name() string  { return c.base.Name() }

func (c *overrideCodec) Decode(r *wire.Reader) (any, error) {
	v, err := c.base.Decode(r)
	if err != nil {
		return nil, err
	}
	return c.override.DecodeValue(v)
}

func (c *overrideCodec) Encode(w *wire.WriteBuffer, v any) error {
	native, err := c.override.EncodeValue(v)
	if err != nil {
		return argumentError(vexelerrors.CodeInvalidArgument, c.Name(), v, err.Error())
	}
	return c.base.Encode(w, native)
}

// namedScalarCodec renames a base scalar for a user-declared scalar type
// that shares its layout.
type namedScalarCodec struct {
	Codec
	id   uuid.UUID
	name string
}

func (c *namedScalarCodec) ID() uuid.UUID { return c.id }
func (c *namedScalarCodec) Name() string  { return c.name }

var baseScalarCodecs = map[uuid.UUID]*scalarCodec{
	IDUUID:             {IDUUID, "std::uuid", decodeUUID, encodeUUID},
	IDString:           {IDString, "std::str", decodeString, encodeString},
	IDBytes:            {IDBytes, "std::bytes", decodeBytes, encodeBytes},
	IDInt16:            {IDInt16, "std::int16", decodeInt16, encodeInt16},
	IDInt32:            {IDInt32, "std::int32", decodeInt32, encodeInt32},
	IDInt64:            {IDInt64, "std::int64", decodeInt64, encodeInt64},
	IDFloat32:          {IDFloat32, "std::float32", decodeFloat32, encodeFloat32},
	IDFloat64:          {IDFloat64, "std::float64", decodeFloat64, encodeFloat64},
	IDDecimal:          {IDDecimal, "std::decimal", decodeDecimal, encodeDecimal},
	IDBool:             {IDBool, "std::bool", decodeBool, encodeBool},
	IDDateTime:         {IDDateTime, "std::datetime", decodeDateTime, encodeDateTime},
	IDLocalDateTime:    {IDLocalDateTime, "cal::local_datetime", decodeLocalDateTime, encodeLocalDateTime},
	IDLocalDate:        {IDLocalDate, "cal::local_date", decodeLocalDate, encodeLocalDate},
	IDLocalTime:        {IDLocalTime, "cal::local_time", decodeLocalTime, encodeLocalTime},
	IDDuration:         {IDDuration, "std::duration", decodeDuration, encodeDuration},
	IDJSON:             {IDJSON, "std::json", decodeJSON, encodeJSON},
	IDBigInt:           {IDBigInt, "std::bigint", decodeBigInt, encodeBigInt},
	IDRelativeDuration: {IDRelativeDuration, "cal::relative_duration", decodeRelDuration, encodeRelDuration},
	IDDateDuration:     {IDDateDuration, "cal::date_duration", decodeDateDuration, encodeDateDuration},
	IDMemory:           {IDMemory, "cfg::memory", decodeMemory, encodeMemory},
}

func decodeUUID(r *wire.Reader) (any, error) {
	return r.ReadUUID()
}

func encodeUUID(w *wire.WriteBuffer, field string, v any) error {
	var id uuid.UUID
	switch x := v.(type) {
	case uuid.UUID:
		id = x
	case string:
		parsed, err := uuid.Parse(x)
		if err != nil {
			return argumentError(vexelerrors.CodeInvalidArgument, field, v, err.Error())
		}
		id = parsed
	default:
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected uuid")
	}
	w.WriteUint32(16)
	w.WriteUUID(id)
	return nil
}

func decodeString(r *wire.Reader) (any, error) {
	return string(r.Rest()), nil
}

func encodeString(w *wire.WriteBuffer, field string, v any) error {
	s, ok := v.(string)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected str")
	}
	w.WriteString(s)
	return nil
}

func decodeBytes(r *wire.Reader) (any, error) {
	b := r.Rest()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func encodeBytes(w *wire.WriteBuffer, field string, v any) error {
	b, ok := v.([]byte)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected bytes")
	}
	w.WriteLenBytes(b)
	return nil
}

func decodeInt16(r *wire.Reader) (any, error) {
	v, err := r.ReadInt16()
	return v, err
}

func encodeInt16(w *wire.WriteBuffer, field string, v any) error {
	n, ok := toInt64(v)
	if !ok || n < math.MinInt16 || n > math.MaxInt16 {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected int16")
	}
	w.WriteUint32(2)
	w.WriteUint16(uint16(int16(n)))
	return nil
}

func decodeInt32(r *wire.Reader) (any, error) {
	v, err := r.ReadInt32()
	return v, err
}

func encodeInt32(w *wire.WriteBuffer, field string, v any) error {
	n, ok := toInt64(v)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected int32")
	}
	w.WriteUint32(4)
	w.WriteInt32(int32(n))
	return nil
}

func decodeInt64(r *wire.Reader) (any, error) {
	v, err := r.ReadInt64()
	return v, err
}

func encodeInt64(w *wire.WriteBuffer, field string, v any) error {
	n, ok := toInt64(v)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected int64")
	}
	w.WriteUint32(8)
	w.WriteInt64(n)
	return nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

func decodeFloat32(r *wire.Reader) (any, error) {
	bits, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return math.Float32frombits(bits), nil
}

func encodeFloat32(w *wire.WriteBuffer, field string, v any) error {
	var f float32
	switch x := v.(type) {
	case float32:
		f = x
	case float64:
		f = float32(x)
	default:
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected float32")
	}
	w.WriteUint32(4)
	w.WriteUint32(math.Float32bits(f))
	return nil
}

func decodeFloat64(r *wire.Reader) (any, error) {
	bits, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	return math.Float64frombits(bits), nil
}

func encodeFloat64(w *wire.WriteBuffer, field string, v any) error {
	var f float64
	switch x := v.(type) {
	case float32:
		f = float64(x)
	case float64:
		f = x
	default:
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected float64")
	}
	w.WriteUint32(8)
	w.WriteUint64(math.Float64bits(f))
	return nil
}

func decodeBool(r *wire.Reader) (any, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return nil, decodeError("invalid bool byte 0x%02x", b)
	}
}

func encodeBool(w *wire.WriteBuffer, field string, v any) error {
	b, ok := v.(bool)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected bool")
	}
	w.WriteUint32(1)
	if b {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
	return nil
}

func decodeDateTime(r *wire.Reader) (any, error) {
	us, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	return epoch2000.Add(time.Duration(us) * time.Microsecond), nil
}

func encodeDateTime(w *wire.WriteBuffer, field string, v any) error {
	t, ok := v.(time.Time)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected datetime")
	}
	w.WriteUint32(8)
	w.WriteInt64(t.Sub(epoch2000).Microseconds())
	return nil
}

func decodeLocalDateTime(r *wire.Reader) (any, error) {
	us, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	return types.LocalDateTime{Time: epoch2000.Add(time.Duration(us) * time.Microsecond)}, nil
}

func encodeLocalDateTime(w *wire.WriteBuffer, field string, v any) error {
	t, ok := v.(types.LocalDateTime)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected local_datetime")
	}
	w.WriteUint32(8)
	w.WriteInt64(t.Sub(epoch2000).Microseconds())
	return nil
}

func decodeLocalDate(r *wire.Reader) (any, error) {
	days, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	d := epoch2000.AddDate(0, 0, int(days))
	return types.LocalDate{Year: d.Year(), Month: d.Month(), Day: d.Day()}, nil
}

func encodeLocalDate(w *wire.WriteBuffer, field string, v any) error {
	d, ok := v.(types.LocalDate)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected local_date")
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	w.WriteUint32(4)
	w.WriteInt32(int32(t.Sub(epoch2000).Hours() / 24))
	return nil
}

func decodeLocalTime(r *wire.Reader) (any, error) {
	us, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	return types.LocalTime{Offset: time.Duration(us) * time.Microsecond}, nil
}

func encodeLocalTime(w *wire.WriteBuffer, field string, v any) error {
	t, ok := v.(types.LocalTime)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected local_time")
	}
	w.WriteUint32(8)
	w.WriteInt64(t.Offset.Microseconds())
	return nil
}

// Duration is wired as microseconds plus days and months components that
// must both be zero for the non-calendar std::duration.
func decodeDuration(r *wire.Reader) (any, error) {
	us, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	days, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	months, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if days != 0 || months != 0 {
		return nil, decodeError("duration has non-zero days/months components")
	}
	return time.Duration(us) * time.Microsecond, nil
}

func encodeDuration(w *wire.WriteBuffer, field string, v any) error {
	d, ok := v.(time.Duration)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected duration")
	}
	w.WriteUint32(16)
	w.WriteInt64(d.Microseconds())
	w.WriteInt32(0)
	w.WriteInt32(0)
	return nil
}

func decodeRelDuration(r *wire.Reader) (any, error) {
	us, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	days, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	months, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	return types.RelativeDuration{Months: months, Days: days, Microseconds: us}, nil
}

func encodeRelDuration(w *wire.WriteBuffer, field string, v any) error {
	d, ok := v.(types.RelativeDuration)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected relative_duration")
	}
	w.WriteUint32(16)
	w.WriteInt64(d.Microseconds)
	w.WriteInt32(d.Days)
	w.WriteInt32(d.Months)
	return nil
}

func decodeDateDuration(r *wire.Reader) (any, error) {
	us, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	days, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	months, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if us != 0 {
		return nil, decodeError("date_duration has a non-zero time component")
	}
	return types.DateDuration{Months: months, Days: days}, nil
}

func encodeDateDuration(w *wire.WriteBuffer, field string, v any) error {
	d, ok := v.(types.DateDuration)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected date_duration")
	}
	w.WriteUint32(16)
	w.WriteInt64(0)
	w.WriteInt32(d.Days)
	w.WriteInt32(d.Months)
	return nil
}

func decodeJSON(r *wire.Reader) (any, error) {
	format, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if format != 1 {
		return nil, decodeError("unsupported json wire format %d", format)
	}
	b := r.Rest()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func encodeJSON(w *wire.WriteBuffer, field string, v any) error {
	b, ok := v.([]byte)
	if !ok {
		if s, sok := v.(string); sok {
			b, ok = []byte(s), true
		}
	}
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected json bytes")
	}
	w.WriteUint32(uint32(len(b) + 1))
	w.WriteUint8(1)
	w.WriteRaw(b)
	return nil
}

func decodeMemory(r *wire.Reader) (any, error) {
	n, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	return types.Memory(n), nil
}

func encodeMemory(w *wire.WriteBuffer, field string, v any) error {
	m, ok := v.(types.Memory)
	if !ok {
		if n, nok := toInt64(v); nok {
			m, ok = types.Memory(n), true
		}
	}
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected memory")
	}
	w.WriteUint32(8)
	w.WriteInt64(int64(m))
	return nil
}

const (
	numericPos = 0x0000
	numericNeg = 0x4000
)

func decodeDecimal(r *wire.Reader) (any, error) {
	ndigits, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	weight, err := r.ReadInt16()
	if err != nil {
		return nil, err
	}
	sign, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	if sign != numericPos && sign != numericNeg {
		return nil, decodeError("invalid decimal sign word 0x%04x", sign)
	}
	scale, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	digits := make([]uint16, ndigits)
	for i := range digits {
		d, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		if d > 9999 {
			return nil, decodeError("decimal digit %d out of base-10000 range", d)
		}
		digits[i] = d
	}
	return types.Decimal{
		Digits:   digits,
		Weight:   weight,
		Negative: sign == numericNeg,
		Scale:    scale,
	}, nil
}

func encodeDecimal(w *wire.WriteBuffer, field string, v any) error {
	d, ok := v.(types.Decimal)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected decimal")
	}
	w.WriteUint32(uint32(8 + 2*len(d.Digits)))
	w.WriteUint16(uint16(len(d.Digits)))
	w.WriteUint16(uint16(d.Weight))
	if d.Negative {
		w.WriteUint16(numericNeg)
	} else {
		w.WriteUint16(numericPos)
	}
	w.WriteUint16(d.Scale)
	for _, digit := range d.Digits {
		w.WriteUint16(digit)
	}
	return nil
}

// BigInt uses the decimal digit layout with a zero scale.
func decodeBigInt(r *wire.Reader) (any, error) {
	ndigits, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	weight, err := r.ReadInt16()
	if err != nil {
		return nil, err
	}
	sign, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	if sign != numericPos && sign != numericNeg {
		return nil, decodeError("invalid bigint sign word 0x%04x", sign)
	}
	if _, err := r.ReadUint16(); err != nil { // reserved scale word
		return nil, err
	}

	base := big.NewInt(10000)
	result := new(big.Int)
	digit := new(big.Int)
	for i := 0; i < int(ndigits); i++ {
		d, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		result.Mul(result, base)
		result.Add(result, digit.SetInt64(int64(d)))
	}
	// Trailing base-10000 zeroes implied by the weight.
	for i := int(weight) - int(ndigits) + 1; i > 0; i-- {
		result.Mul(result, base)
	}
	if sign == numericNeg {
		result.Neg(result)
	}
	return result, nil
}

func encodeBigInt(w *wire.WriteBuffer, field string, v any) error {
	n, ok := v.(*big.Int)
	if !ok {
		return argumentError(vexelerrors.CodeInvalidArgument, field, v, "expected bigint")
	}

	sign := uint16(numericPos)
	abs := new(big.Int).Abs(n)
	if n.Sign() < 0 {
		sign = numericNeg
	}

	var digits []uint16
	base := big.NewInt(10000)
	mod := new(big.Int)
	for abs.Sign() != 0 {
		abs.DivMod(abs, base, mod)
		digits = append(digits, uint16(mod.Int64()))
	}

	// Strip trailing zero digits into the weight.
	trailing := 0
	for trailing < len(digits) && digits[trailing] == 0 {
		trailing++
	}
	digits = digits[trailing:]

	w.WriteUint32(uint32(8 + 2*len(digits)))
	w.WriteUint16(uint16(len(digits)))
	w.WriteUint16(uint16(int16(len(digits) + trailing - 1)))
	w.WriteUint16(sign)
	w.WriteUint16(0)
	for i := len(digits) - 1; i >= 0; i-- {
		w.WriteUint16(digits[i])
	}
	return nil
}
