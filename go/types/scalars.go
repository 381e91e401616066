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
	"time"
)

// LocalDateTime is a calendar timestamp without a timezone.
type LocalDateTime struct {
	// Time holds the civil reading in UTC; the zone carries no meaning.
	time.Time
}

// LocalDate is a calendar date without a timezone.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

func (d LocalDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// LocalTime is a wall-clock time of day, stored as the offset from
// midnight.
type LocalTime struct {
	Offset time.Duration
}

func (t LocalTime) String() string {
	us := t.Offset.Microseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%06d",
		us/3_600_000_000, us/60_000_000%60, us/1_000_000%60, us%1_000_000)
}

// RelativeDuration is a calendar-aware duration: months and days do not
// reduce to a fixed number of microseconds.
type RelativeDuration struct {
	Months       int32
	Days         int32
	Microseconds int64
}

// DateDuration is a whole-day calendar duration.
type DateDuration struct {
	Months int32
	Days   int32
}

// Memory is an amount of memory in bytes.
type Memory int64

func (m Memory) String() string {
	const (
		kib = 1024
		mib = kib * 1024
		gib = mib * 1024
	)
	switch {
	case m >= gib && m%gib == 0:
		return fmt.Sprintf("%dGiB", int64(m)/gib)
	case m >= mib && m%mib == 0:
		return fmt.Sprintf("%dMiB", int64(m)/mib)
	case m >= kib && m%kib == 0:
		return fmt.Sprintf("%dKiB", int64(m)/kib)
	default:
		return fmt.Sprintf("%dB", int64(m))
	}
}

// Decimal is an arbitrary-precision decimal in the wire's base-10000
// digit representation. It round-trips exactly; String renders the
// conventional decimal form.
type Decimal struct {
	Digits   []uint16 // base-10000, most significant first
	Weight   int16    // position of the first digit relative to the point
	Negative bool
	Scale    uint16 // digits after the decimal point
}

func (d Decimal) String() string {
	var sb strings.Builder
	if d.Negative {
		sb.WriteByte('-')
	}

	digitAt := func(i int) uint16 {
		if i < 0 || i >= len(d.Digits) {
			return 0
		}
		return d.Digits[i]
	}

	if d.Weight < 0 {
		sb.WriteByte('0')
	} else {
		for i := 0; i <= int(d.Weight); i++ {
			if i == 0 {
				fmt.Fprintf(&sb, "%d", digitAt(i))
			} else {
				fmt.Fprintf(&sb, "%04d", digitAt(i))
			}
		}
	}

	if d.Scale > 0 {
		sb.WriteByte('.')
		frac := make([]byte, 0, int(d.Scale))
		for i := int(d.Weight) + 1; len(frac) < int(d.Scale); i++ {
			frac = append(frac, fmt.Sprintf("%04d", digitAt(i))...)
		}
		sb.Write(frac[:d.Scale])
	}
	return sb.String()
}

// Equal compares the wire representations.
func (d Decimal) Equal(other any) bool {
	o, ok := other.(Decimal)
	if !ok {
		return false
	}
	if d.Negative != o.Negative || d.Weight != o.Weight || d.Scale != o.Scale {
		return false
	}
	if len(d.Digits) != len(o.Digits) {
		return false
	}
	for i := range d.Digits {
		if d.Digits[i] != o.Digits[i] {
			return false
		}
	}
	return true
}
