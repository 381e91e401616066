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

// Package cache holds the query codec cache: a bounded LRU memoizing the
// prepare step of a statement, so repeated executions can go straight to
// the optimistic execute fast path.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vexeldb/vexel-go/go/codecs"
	"github.com/vexeldb/vexel-go/go/wire"
)

// DefaultQueryCacheSize bounds the cache when no size is given.
const DefaultQueryCacheSize = 1000

// QueryKey identifies one prepared statement variant. Two executions
// share a cache entry only when the text and every execution option
// match.
type QueryKey struct {
	Query           string
	OutputFormat    wire.OutputFormat
	ImplicitLimit   uint64
	InlineTypenames bool
	InlineTypeids   bool
	ExpectOne       bool
}

// QueryEntry is the memoized outcome of preparing a statement: its
// cardinality class, the compiled argument and result codecs, and the
// capabilities the server reported for it. Entries go stale exactly when
// the server's compiled plan changes; staleness is detected by a type id
// mismatch during execute, never assumed.
type QueryEntry struct {
	Cardinality  wire.Cardinality
	In           codecs.Codec
	Out          codecs.Codec
	Capabilities wire.Capability
}

// NoResult reports whether the statement has no meaningful cardinality,
// such as a bare command or a multi-statement script.
func (e QueryEntry) NoResult() bool {
	return e.Cardinality == wire.CardinalityNoResult
}

// QueryCache is a bounded, least-recently-used cache of QueryEntry
// values. It is owned by the long-lived connection or pool wrapper and
// outlives individual queries. Get and Set are logically atomic per
// call.
type QueryCache struct {
	entries *lru.Cache[QueryKey, QueryEntry]
}

// NewQueryCache builds a cache bounded to size entries; size <= 0 means
// DefaultQueryCacheSize.
func NewQueryCache(size int) *QueryCache {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	// lru.New only fails on a non-positive size.
	entries, err := lru.New[QueryKey, QueryEntry](size)
	if err != nil {
		panic(err)
	}
	return &QueryCache{entries: entries}
}

// Get returns the entry memoized for the key, marking it recently used.
func (c *QueryCache) Get(key QueryKey) (QueryEntry, bool) {
	return c.entries.Get(key)
}

// Set memoizes an entry, evicting the least recently used one when the
// cache is full.
func (c *QueryCache) Set(key QueryKey, entry QueryEntry) {
	c.entries.Add(key, entry)
}

// Len returns the number of live entries.
func (c *QueryCache) Len() int {
	return c.entries.Len()
}
