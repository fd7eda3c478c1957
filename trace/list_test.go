// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"errors"
	"testing"

	"github.com/earthscope-oss/mseedtrace/mstime"
	"github.com/earthscope-oss/mseedtrace/record"
)

const secondNS = mstime.NSTMODULUS

func rec(sid string, start int64, rate float64, n int) record.Descriptor {
	return record.Descriptor{
		SID:         sid,
		StartTime:   mstime.Time(start),
		SampRate:    rate,
		SampleCnt:   n,
		SampleType:  record.I32,
		NumSamples:  n,
		DataSamples: i32Bytes(n),
	}
}

func i32Bytes(n int) []byte {
	b := make([]byte, n*4)
	for i := 0; i < n; i++ {
		b[4*i] = byte(i)
	}
	return b
}

func mustAdd(t *testing.T, l *List, r record.Descriptor, opts AddOptions) *Segment {
	t.Helper()
	seg, err := l.Add(r, opts)
	if err != nil {
		t.Fatalf("Add(%+v) failed: %v", r, err)
	}
	return seg
}

// TestSkipListOrdering checks that IDs visited via First/Next always
// come out in ascending (SID, keyVersion) order, regardless of
// insertion order.
func TestSkipListOrdering(t *testing.T) {
	l := NewList()
	sids := []string{"FDSN:XX_STA3__B_H_Z", "FDSN:XX_STA1__B_H_Z", "FDSN:XX_STA2__B_H_Z"}
	for _, s := range sids {
		mustAdd(t, l, rec(s, 0, 100, 10), AddOptions{AutoHeal: true})
	}
	var got []string
	for id := l.First(); id != nil; id = id.Next() {
		got = append(got, id.SID)
	}
	want := []string{"FDSN:XX_STA1__B_H_Z", "FDSN:XX_STA2__B_H_Z", "FDSN:XX_STA3__B_H_Z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("skip list order = %v, want %v", got, want)
		}
	}
}

// TestSegmentOrdering checks that within one ID, segments always come
// out ordered by (starttime, -endtime), even when records arrive out
// of time order with gaps too large to merge.
func TestSegmentOrdering(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	mustAdd(t, l, rec("X", 100*secondNS, 1, 5), opts)
	mustAdd(t, l, rec("X", 0, 1, 5), opts)
	mustAdd(t, l, rec("X", 200*secondNS, 1, 5), opts)

	id := l.Find("X", false, 0)
	if id == nil {
		t.Fatal("ID not found")
	}
	var starts []mstime.Time
	for seg := id.First; seg != nil; seg = seg.Next {
		starts = append(starts, seg.Start)
	}
	for i := 1; i < len(starts); i++ {
		if starts[i-1] > starts[i] {
			t.Fatalf("segments out of order: %v", starts)
		}
	}
	if len(starts) != 3 {
		t.Fatalf("got %d segments, want 3 (gaps too large to merge)", len(starts))
	}
}

// TestCoverageInvariant checks that a covered segment's sample count
// always agrees with the span between Start and End.
func TestCoverageInvariant(t *testing.T) {
	l := NewList()
	mustAdd(t, l, rec("X", 0, 100, 50), AddOptions{AutoHeal: true})
	id := l.Find("X", false, 0)
	seg := id.First
	wantEnd := mstime.SampleTime(seg.Start, int64(seg.SampleCnt-1), seg.SampRate)
	if seg.End != wantEnd {
		t.Fatalf("End = %d, want %d", seg.End, wantEnd)
	}
}

// TestMergeIdempotence checks that re-adding the exact same record
// twice must not change the list (besides bookkeeping).
func TestMergeIdempotence(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	r := rec("X", 0, 100, 50)
	mustAdd(t, l, r, opts)
	before := l.Stats()
	mustAdd(t, l, r, opts)
	after := l.Stats()
	if before.NumSegments != after.NumSegments {
		t.Fatalf("NumSegments changed from %d to %d on re-add", before.NumSegments, after.NumSegments)
	}
}

// TestAutoHealCommutativity checks that adding A then B then the
// bridging record C produces the same single healed segment as adding
// B then A then C.
func TestAutoHealCommutativity(t *testing.T) {
	rate := 100.0
	period := mstime.PeriodNS(rate)
	a := rec("X", 0, rate, 100)
	b := rec("X", 200*period, rate, 100)
	bridgeStart := mstime.SampleTime(a.StartTime, int64(a.SampleCnt), rate)
	c := rec("X", int64(bridgeStart), rate, 100)

	run := func(order []record.Descriptor) Stats {
		l := NewList()
		opts := AddOptions{AutoHeal: true}
		for _, r := range order {
			mustAdd(t, l, r, opts)
		}
		return l.Stats()
	}

	s1 := run([]record.Descriptor{a, b, c})
	s2 := run([]record.Descriptor{b, a, c})
	if s1.NumSegments != 1 || s2.NumSegments != 1 {
		t.Fatalf("expected healing to 1 segment, got %d and %d", s1.NumSegments, s2.NumSegments)
	}
	if s1.TotalSamples != s2.TotalSamples {
		t.Fatalf("sample totals differ by insertion order: %d vs %d", s1.TotalSamples, s2.TotalSamples)
	}
}

// TestAddGapCreatesNewSegment covers the fast "after-all" path.
func TestAddGapCreatesNewSegment(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	mustAdd(t, l, rec("X", 0, 100, 10), opts)
	mustAdd(t, l, rec("X", 1000*secondNS, 100, 10), opts)
	id := l.Find("X", false, 0)
	if id.NumSegments != 2 {
		t.Fatalf("NumSegments = %d, want 2", id.NumSegments)
	}
}

// TestAddFitsAtEnd covers the fast "fit-at-end" extension path.
func TestAddFitsAtEnd(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	mustAdd(t, l, rec("X", 0, 100, 10), opts)
	period := mstime.PeriodNS(100)
	next := mstime.SampleTime(0, 10, 100)
	mustAdd(t, l, rec("X", int64(next), 100, 10), opts)
	id := l.Find("X", false, 0)
	if id.NumSegments != 1 {
		t.Fatalf("NumSegments = %d, want 1", id.NumSegments)
	}
	if id.First.NumSamples != 20 {
		t.Fatalf("NumSamples = %d, want 20", id.First.NumSamples)
	}
	_ = period
}

// TestAddFitsAtStart covers the fast "fit-at-start" prepend path.
func TestAddFitsAtStart(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	mustAdd(t, l, rec("X", 1000*secondNS, 100, 10), opts)
	earlier := rec("X", 0, 100, 10)
	earlier.StartTime = mstime.SampleTime(1000*secondNS, -10, 100)
	mustAdd(t, l, earlier, opts)
	id := l.Find("X", false, 0)
	if id.NumSegments != 1 {
		t.Fatalf("NumSegments = %d, want 1", id.NumSegments)
	}
	if id.First.Start != earlier.StartTime {
		t.Fatalf("Start = %d, want %d", id.First.Start, earlier.StartTime)
	}
}

// TestSplitByPublicationVersion: with SplitVersion set, two records
// with the same SID but different PubVersion land in distinct IDs.
func TestSplitByPublicationVersion(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true, SplitVersion: true}
	r1 := rec("X", 0, 100, 10)
	r1.PubVersion = 1
	r2 := rec("X", 0, 100, 10)
	r2.PubVersion = 2
	mustAdd(t, l, r1, opts)
	mustAdd(t, l, r2, opts)
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 distinct IDs under split-by-version", l.Len())
	}
}

// TestNoSplitTracksMaxPubVersion: without SplitVersion, records merge
// into one ID whose PubVersion tracks the maximum seen.
func TestNoSplitTracksMaxPubVersion(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	r1 := rec("X", 0, 100, 10)
	r1.PubVersion = 1
	r2 := rec("X", 1000*secondNS, 100, 10)
	r2.PubVersion = 3
	mustAdd(t, l, r1, opts)
	mustAdd(t, l, r2, opts)
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	id := l.Find("X", false, 0)
	if id.PubVersion != 3 {
		t.Fatalf("PubVersion = %d, want 3", id.PubVersion)
	}
}

// TestSampleTypeMismatch: merging samples of a different type into an
// existing segment fails with ErrSampleTypeMismatch.
func TestSampleTypeMismatch(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	mustAdd(t, l, rec("X", 0, 100, 10), opts)
	next := rec("X", int64(mstime.SampleTime(0, 10, 100)), 100, 10)
	next.SampleType = record.F32
	next.DataSamples = make([]byte, 10*4)
	if _, err := l.Add(next, opts); err == nil {
		t.Fatal("expected sample type mismatch error")
	}
}

// TestScenarioOutOfOrderThenHeal exercises an end-to-end narrative:
// records for two channels arrive interleaved and out of time order,
// some requiring autoheal, and the resulting list must show exactly
// the right segment structure.
func TestScenarioOutOfOrderThenHeal(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	rate := 50.0

	za := rec("FDSN:XX_AAA__B_H_Z", 0, rate, 100)
	zc := rec("FDSN:XX_AAA__B_H_Z", int64(mstime.SampleTime(0, 200, rate)), rate, 100)
	zb := rec("FDSN:XX_AAA__B_H_Z", int64(mstime.SampleTime(0, 100, rate)), rate, 100)

	ha := rec("FDSN:XX_AAA__B_H_N", 0, rate, 50)

	mustAdd(t, l, za, opts)
	mustAdd(t, l, zc, opts)
	mustAdd(t, l, ha, opts)
	mustAdd(t, l, zb, opts) // bridges za and zc

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
	zid := l.Find("FDSN:XX_AAA__B_H_Z", false, 0)
	if zid.NumSegments != 1 {
		t.Fatalf("Z channel NumSegments = %d, want 1 after healing bridge", zid.NumSegments)
	}
	if zid.First.NumSamples != 300 {
		t.Fatalf("Z channel NumSamples = %d, want 300", zid.First.NumSamples)
	}
	hid := l.Find("FDSN:XX_AAA__B_H_N", false, 0)
	if hid.NumSegments != 1 || hid.First.NumSamples != 50 {
		t.Fatalf("N channel unexpectedly disturbed: %+v", hid.First)
	}
}

// TestMergeRejectsNonAdjacentBridge checks that a record whose time
// range exactly matches the gap on both sides of a *non-adjacent* pair
// of segments (there's a third segment sitting between them) is
// rejected with ErrInvariant rather than silently absorbed, which
// would drop the segment in between.
func TestMergeRejectsNonAdjacentBridge(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	rate := 100.0
	period := int64(mstime.PeriodNS(rate))

	a := rec("X", 0, rate, 2)             // [0, period]
	c := rec("X", 1_000_000_000, rate, 2) // [1e9, 1e9+period], far from a and b
	b := rec("X", 2_000_000_000, rate, 2) // [2e9, 2e9+period]
	mustAdd(t, l, a, opts)
	mustAdd(t, l, c, opts)
	mustAdd(t, l, b, opts)

	id := l.Find("X", false, 0)
	if id.NumSegments != 3 {
		t.Fatalf("NumSegments = %d, want 3 before the bridge attempt", id.NumSegments)
	}

	// bridge spans exactly from a's end to b's start, stepping right
	// over c without ever coming near it.
	bridgeStart := mstime.SampleTime(a.StartTime, int64(a.SampleCnt), rate)
	bridgeEnd := mstime.SampleTime(b.StartTime, -1, rate)
	bridgeSamples := (int64(bridgeEnd)-int64(bridgeStart))/period + 1
	bridge := rec("X", int64(bridgeStart), rate, int(bridgeSamples))

	if _, err := l.Add(bridge, opts); !errors.Is(err, ErrInvariant) {
		t.Fatalf("Add(bridge) error = %v, want ErrInvariant", err)
	}
}
