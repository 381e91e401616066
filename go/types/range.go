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

import "fmt"

// Range is an interval over an orderable scalar type. A nil bound is
// unbounded on that side; Empty ranges have no bounds at all.
type Range struct {
	Lower any
	Upper any

	IncLower bool
	IncUpper bool
	Empty    bool
}

// Equal compares bounds, inclusivity and emptiness.
func (r Range) Equal(other any) bool {
	o, ok := other.(Range)
	if !ok {
		if p, pok := other.(*Range); pok {
			o, ok = *p, true
		}
		if !ok {
			return false
		}
	}
	if r.Empty || o.Empty {
		return r.Empty == o.Empty
	}
	return r.IncLower == o.IncLower &&
		r.IncUpper == o.IncUpper &&
		ValueEqual(r.Lower, o.Lower) &&
		ValueEqual(r.Upper, o.Upper)
}

func (r Range) String() string {
	if r.Empty {
		return "range(empty)"
	}
	return fmt.Sprintf("range(%v, %v, inc_lower=%v, inc_upper=%v)",
		r.Lower, r.Upper, r.IncLower, r.IncUpper)
}

// MultiRange is an ordered sequence of disjoint ranges.
type MultiRange struct {
	ranges []Range
}

// NewMultiRange builds a MultiRange over the given ranges, which are
// retained in order.
func NewMultiRange(ranges []Range) *MultiRange {
	return &MultiRange{ranges: ranges}
}

// Len returns the number of ranges.
func (m *MultiRange) Len() int {
	return len(m.ranges)
}

// Get returns the i-th range.
func (m *MultiRange) Get(i int) Range {
	return m.ranges[i]
}

// Equal compares range sequences in order.
func (m *MultiRange) Equal(other any) bool {
	o, ok := other.(*MultiRange)
	if !ok {
		return false
	}
	if len(m.ranges) != len(o.ranges) {
		return false
	}
	for i := range m.ranges {
		if !m.ranges[i].Equal(o.ranges[i]) {
			return false
		}
	}
	return true
}
