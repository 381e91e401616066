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
	"sync"

	"github.com/google/uuid"

	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// Registry caches compiled codecs by type id for the lifetime of one
// connection. Entries are never evicted: a type id denotes an immutable
// structural type for as long as the issuing server process lives, so
// the registry is sized by the server's live type universe, not by query
// volume. Within a connection the registry is touched only by the single
// in-flight request; the mutex exists for the shared internal registry,
// which multiple connections populate with state descriptors.
type Registry struct {
	mu        sync.RWMutex
	codecs    map[uuid.UUID]Codec
	overrides map[uuid.UUID]ScalarOverride
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		codecs:    make(map[uuid.UUID]Codec),
		overrides: make(map[uuid.UUID]ScalarOverride),
	}
}

// HasCodec reports whether a codec for the type id is already built.
func (r *Registry) HasCodec(id uuid.UUID) bool {
	if id == NullID {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.codecs[id]
	return ok
}

// GetCodec returns the codec compiled for the type id.
func (r *Registry) GetCodec(id uuid.UUID) (Codec, error) {
	if id == NullID {
		return NullCodec{}, nil
	}
	r.mu.RLock()
	c, ok := r.codecs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, vexelerrors.New(vexelerrors.CodeTypeSpecNotFound,
			"no codec compiled for type id %s", id)
	}
	return c, nil
}

// BuildCodec compiles a raw descriptor block, inserting every node codec
// into the registry, and returns the root codec. Building the same id
// twice is wasted work but harmless: codecs are pure functions of their
// descriptor, and the first instance wins.
func (r *Registry) BuildCodec(desc []byte, version wire.ProtocolVersion) (Codec, error) {
	return buildCodec(r, desc, version)
}

// SetScalarOverride installs application-level transforms around the
// scalar with the given type id. It affects codecs built afterwards.
func (r *Registry) SetScalarOverride(id uuid.UUID, o ScalarOverride) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[id] = o
}

func (r *Registry) lookup(id uuid.UUID) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[id]
	return c, ok
}

func (r *Registry) insert(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.ID()] = c
}

func (r *Registry) maybeOverride(c Codec) Codec {
	return r.maybeOverrideID(c.ID(), c)
}

func (r *Registry) maybeOverrideID(id uuid.UUID, c Codec) Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if o, ok := r.overrides[id]; ok {
		return &overrideCodec{base: c, override: o}
	}
	return c
}

var (
	internalRegistry     *Registry
	internalRegistryOnce sync.Once
)

// InternalRegistry returns the process-wide registry for
// protocol-internal types such as session state descriptors. It is
// shared across connections; the state machine only ever touches it
// from the single in-flight request of the connection being served, and
// state descriptor ids are identical across connections to one server.
func InternalRegistry() *Registry {
	internalRegistryOnce.Do(func() {
		internalRegistry = NewRegistry()
	})
	return internalRegistry
}
