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
	"github.com/google/uuid"

	"github.com/vexeldb/vexel-go/go/types"
	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// Type descriptor tags. A descriptor block is a linear sequence of
// numbered nodes; composite nodes reference earlier nodes by index.
const (
	descSet        = 0
	descObject     = 1
	descBaseScalar = 2
	descScalar     = 3
	descTuple      = 4
	descNamedTuple = 5
	descArray      = 6
	descEnum       = 7
	descInputShape = 8
	descRange      = 9
	descMultiRange = 12

	// Tags 0x80..0xfe annotate the preceding node with a type name and
	// carry no codec of their own.
	descAnnotationLow = 0x80
)

// Object shape field flag bits.
const (
	fieldImplicit     = 1 << 0
	fieldLinkProperty = 1 << 1
	fieldLink         = 1 << 2
)

func descriptorError(format string, args ...any) error {
	return vexelerrors.New(vexelerrors.CodeTypeSpecNotFound, format, args...)
}

// buildCodec compiles a descriptor block into a codec tree, reusing
// registry entries for ids already built and inserting every new node.
func buildCodec(reg *Registry, desc []byte, _ wire.ProtocolVersion) (Codec, error) {
	r := wire.NewReader(desc)
	var built []Codec

	childAt := func(pos uint16, where string) (Codec, error) {
		if int(pos) >= len(built) {
			return nil, descriptorError(
				"%s references descriptor %d, only %d seen", where, pos, len(built))
		}
		return built[pos], nil
	}

	for r.Len() > 0 {
		tag, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}

		if tag >= descAnnotationLow {
			// Type name annotation: a bare string, no node.
			if _, err := r.ReadString(); err != nil {
				return nil, err
			}
			continue
		}

		id, err := r.ReadUUID()
		if err != nil {
			return nil, err
		}

		var codec Codec
		switch tag {
		case descSet:
			pos, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			elem, err := childAt(pos, "set")
			if err != nil {
				return nil, err
			}
			codec = &setCodec{id: id, elem: elem}

		case descObject, descInputShape:
			count, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			fields := make([]types.ShapeField, count)
			children := make([]Codec, count)
			for i := range fields {
				flags, err := r.ReadUint32()
				if err != nil {
					return nil, err
				}
				card, err := r.ReadUint8()
				if err != nil {
					return nil, err
				}
				name, err := r.ReadString()
				if err != nil {
					return nil, err
				}
				pos, err := r.ReadUint16()
				if err != nil {
					return nil, err
				}
				children[i], err = childAt(pos, "shape field "+name)
				if err != nil {
					return nil, err
				}
				fields[i] = types.ShapeField{
					Name:           name,
					Cardinality:    wire.Cardinality(card),
					IsImplicit:     flags&fieldImplicit != 0,
					IsLinkProperty: flags&fieldLinkProperty != 0,
					IsLink:         flags&fieldLink != 0,
				}
			}
			shape := types.NewShape(fields)
			if tag == descObject {
				codec = &objectCodec{id: id, shape: shape, fields: children}
			} else {
				codec = &inputShapeCodec{id: id, shape: shape, fields: children}
			}

		case descBaseScalar:
			base, ok := baseScalarCodecs[id]
			if !ok {
				return nil, descriptorError("no base scalar with id %s", id)
			}
			codec = reg.maybeOverride(base)

		case descScalar:
			pos, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			base, err := childAt(pos, "scalar")
			if err != nil {
				return nil, err
			}
			codec = reg.maybeOverrideID(id, &namedScalarCodec{Codec: base, id: id, name: base.Name()})

		case descTuple:
			count, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			children := make([]Codec, count)
			for i := range children {
				pos, err := r.ReadUint16()
				if err != nil {
					return nil, err
				}
				children[i], err = childAt(pos, "tuple element")
				if err != nil {
					return nil, err
				}
			}
			codec = &tupleCodec{id: id, fields: children}

		case descNamedTuple:
			count, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			names := make([]string, count)
			children := make([]Codec, count)
			for i := range children {
				names[i], err = r.ReadString()
				if err != nil {
					return nil, err
				}
				pos, err := r.ReadUint16()
				if err != nil {
					return nil, err
				}
				children[i], err = childAt(pos, "named tuple field "+names[i])
				if err != nil {
					return nil, err
				}
			}
			codec = &namedTupleCodec{id: id, names: names, fields: children}

		case descArray:
			pos, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			elem, err := childAt(pos, "array")
			if err != nil {
				return nil, err
			}
			ndims, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			for i := uint16(0); i < ndims; i++ {
				if _, err := r.ReadInt32(); err != nil {
					return nil, err
				}
			}
			codec = &arrayCodec{id: id, elem: elem}

		case descEnum:
			count, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			members := make(map[string]struct{}, count)
			for i := uint16(0); i < count; i++ {
				m, err := r.ReadString()
				if err != nil {
					return nil, err
				}
				members[m] = struct{}{}
			}
			codec = &enumCodec{id: id, members: members}

		case descRange:
			pos, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			value, err := childAt(pos, "range")
			if err != nil {
				return nil, err
			}
			codec = &rangeCodec{id: id, value: value}

		case descMultiRange:
			pos, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			value, err := childAt(pos, "multirange")
			if err != nil {
				return nil, err
			}
			codec = &multiRangeCodec{id: id, inner: &rangeCodec{id: id, value: value}}

		default:
			return nil, descriptorError("unknown type descriptor tag 0x%02x", tag)
		}

		// Codecs are pure functions of their descriptor: an id already
		// in the registry denotes the same structure, so reuse it.
		if existing, ok := reg.lookup(codec.ID()); ok {
			codec = existing
		} else {
			reg.insert(codec)
		}
		built = append(built, codec)
	}

	if len(built) == 0 {
		return nil, descriptorError("empty type descriptor block")
	}
	return built[len(built)-1], nil
}

// NullID is the all-zero type id denoting "no codec".
var NullID = uuid.Nil
