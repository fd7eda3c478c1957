// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mstime provides leap-second-aware sample-time arithmetic
// and the default time/sample-rate tolerances used when merging
// time-series segments.
//
// A Time is a signed count of nanoseconds since the Unix epoch. The
// package never calls into the OS clock or a calendar library: all
// conversions are pure functions of their arguments plus the
// process-wide leap-second table installed with SetLeapSeconds.
package mstime

import "sync"

// NSTMODULUS is the number of nanoseconds in one second.
const NSTMODULUS = 1_000_000_000

// Time is nanoseconds since the Unix epoch.
type Time int64

// Error is the sentinel Time value returned when a computation
// cannot produce a valid result.
const Error Time = 1<<63 - 1 // math.MaxInt64, kept local to avoid an import

// Valid reports whether t is a real instant and not the Error
// sentinel.
func (t Time) Valid() bool {
	return t != Error
}

var leapMu sync.RWMutex
var leapSeconds []Time // sorted ascending

// SetLeapSeconds installs the process-wide table of leap-second
// instants (as Time values), replacing any previous table. It is
// expected to be called once, before ingestion begins, per the
// concurrency model: this is process-wide mutable state and is not
// safe to mutate concurrently with Add/sample_time calls that might
// be racing a table update.
func SetLeapSeconds(instants []Time) {
	cp := make([]Time, len(instants))
	copy(cp, instants)
	leapMu.Lock()
	leapSeconds = cp
	leapMu.Unlock()
}

// leapsIn returns the number of registered leap seconds whose instant
// falls inside (start, end-1s], where end is the time of the
// interval's last sample. A leap second exactly at start is not yet
// "spanned"; one at exactly end-1s is, and one later than that is not.
func leapsIn(start, end Time) int {
	if end <= start {
		return 0
	}
	lo, hi := start, end-NSTMODULUS
	leapMu.RLock()
	defer leapMu.RUnlock()
	n := 0
	for _, l := range leapSeconds {
		if l > lo && l <= hi {
			n++
		}
	}
	return n
}

// PeriodNS returns the nanosecond period implied by rate: rate is
// interpreted as Hz when positive, as seconds-per-sample when
// negative, and as "no period" (0) when zero.
func PeriodNS(rate float64) int64 {
	switch {
	case rate > 0:
		return int64(NSTMODULUS / rate)
	case rate < 0:
		return int64(NSTMODULUS * -rate)
	default:
		return 0
	}
}

// SampleTime adds offset samples' worth of time to start, at the
// given sample rate (Hz if positive, seconds-per-sample if negative),
// subtracting one leap second for each registered leap second
// strictly spanned by the resulting interval. It returns Error if
// rate is zero and offset is non-zero, since no time can be computed
// without a period.
func SampleTime(start Time, offset int64, rate float64) Time {
	if offset == 0 {
		return start
	}
	period := PeriodNS(rate)
	if period == 0 {
		return Error
	}
	delta := offset * period
	end := start + Time(delta)
	end -= Time(leapsIn(start, end)) * NSTMODULUS
	return end
}

// DefaultTimeTolerance returns the default time tolerance for the
// given sample rate: half of one sample period.
func DefaultTimeTolerance(rate float64) int64 {
	p := PeriodNS(rate)
	return p / 2
}

// DefaultRateTolerance reports whether r1 and r2 are close enough to
// be considered the same sample rate: their relative difference must
// be under 1e-4.
func DefaultRateTolerance(r1, r2 float64) bool {
	a1, a2 := abs(r1), abs(r2)
	m := a1
	if a2 > m {
		m = a2
	}
	if m == 0 {
		return r1 == r2
	}
	return abs(r1-r2)/m < 1e-4
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Tolerance bundles the pluggable time and sample-rate comparators a
// caller may supply to override the package defaults per call to
// trace.List.Add.
type Tolerance struct {
	// Time, if non-nil, returns the maximum allowed |Δt| in
	// nanoseconds for two boundaries at the given sample rate to
	// be considered contiguous. Defaults to DefaultTimeTolerance.
	Time func(rate float64) int64
	// Rate, if non-nil, reports whether two sample rates are
	// close enough to be considered equal. Defaults to
	// DefaultRateTolerance.
	Rate func(r1, r2 float64) bool
}

// TimeTol returns the effective time tolerance in nanoseconds for
// rate, honoring an overriding closure if set.
func (t Tolerance) TimeTol(rate float64) int64 {
	if t.Time != nil {
		return t.Time(rate)
	}
	return DefaultTimeTolerance(rate)
}

// RateTol reports whether r1 and r2 are equal within tolerance,
// honoring an overriding closure if set.
func (t Tolerance) RateTol(r1, r2 float64) bool {
	if t.Rate != nil {
		return t.Rate(r1, r2)
	}
	return DefaultRateTolerance(r1, r2)
}
