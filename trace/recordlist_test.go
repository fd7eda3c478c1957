// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"testing"

	"github.com/earthscope-oss/mseedtrace/mstime"
	"github.com/earthscope-oss/mseedtrace/record"
)

func recWithFlags(sid string, start int64, rate float64, n int, flags record.Flag) record.Descriptor {
	r := rec(sid, start, rate, n)
	r.Flags = flags
	return r
}

// TestRecordListAppendOnAdd: Add with FlagRecordList set grows the
// segment's record list by one entry per merged record, in arrival
// order, regardless of which fast path the merge took.
func TestRecordListAppendOnAdd(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}

	r1 := recWithFlags("X", 0, 100, 10, record.FlagRecordList)
	seg := mustAdd(t, l, r1, opts)
	if got := len(seg.records().Entries); got != 1 {
		t.Fatalf("after first record: len(Entries) = %d, want 1", got)
	}

	next := mstime.SampleTime(0, 10, 100)
	r2 := recWithFlags("X", int64(next), 100, 10, record.FlagRecordList)
	seg2 := mustAdd(t, l, r2, opts)
	if seg2 != seg {
		t.Fatalf("expected r2 to extend the same segment")
	}
	if got := len(seg.records().Entries); got != 2 {
		t.Fatalf("after second record: len(Entries) = %d, want 2", got)
	}
	if seg.records().Entries[1].Whence != WhenceEnd {
		t.Fatalf("second entry Whence = %v, want WhenceEnd", seg.records().Entries[1].Whence)
	}
}

// TestRecordListAbsorbOnHeal: when a bridging record causes tryHeal to
// absorb one segment into another, the absorbed segment's record-list
// entries move over in order rather than being dropped.
func TestRecordListAbsorbOnHeal(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	rate := 100.0

	a := recWithFlags("X", 0, rate, 10, record.FlagRecordList)
	bridgeStart := mstime.SampleTime(0, 20, rate)
	c := recWithFlags("X", int64(bridgeStart), rate, 10, record.FlagRecordList)
	bStart := mstime.SampleTime(0, 10, rate)
	b := recWithFlags("X", int64(bStart), rate, 10, record.FlagRecordList)

	mustAdd(t, l, a, opts)
	mustAdd(t, l, c, opts)
	mustAdd(t, l, b, opts) // bridges a and c

	id := l.Find("X", false, 0)
	if id.NumSegments != 1 {
		t.Fatalf("NumSegments = %d, want 1 after healing", id.NumSegments)
	}
	if got := len(id.First.records().Entries); got != 3 {
		t.Fatalf("len(Entries) = %d, want 3 after absorb", got)
	}
}

// TestRecordListUnpack: Unpack resolves each entry's Locator back to
// its original record bytes and reparses it.
func TestRecordListUnpack(t *testing.T) {
	l := NewList()
	opts := AddOptions{AutoHeal: true}
	r := recWithFlags("X", 0, 100, 10, record.FlagRecordList)

	tmpl := record.Template{
		SID:        r.SID,
		PubVersion: r.PubVersion,
		StartTime:  r.StartTime,
		SampRate:   r.SampRate,
		SampleType: r.SampleType,
		Encoding:   record.EncodingI32,
		Samples:    r.DataSamples,
		NumSamples: r.NumSamples,
		Flags:      record.FlagRecordList,
	}
	buf := packOne(t, tmpl)
	parsed, _, err := record.ParseRecord(buf)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	opts.Locator = BufferLocator{Buf: buf}

	seg := mustAdd(t, l, parsed, opts)
	descs, err := seg.records().Unpack(seg.SampleType)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("Unpack returned %d descriptors, want 1", len(descs))
	}
	if descs[0].SID != "X" || descs[0].NumSamples != 10 {
		t.Fatalf("unpacked descriptor = %+v, want SID=X NumSamples=10", descs[0])
	}
}

// TestRecordListUnpackTypeMismatch: Unpack rejects an entry whose
// decoded sample type disagrees with the segment it's attached to.
func TestRecordListUnpackTypeMismatch(t *testing.T) {
	rl := &RecordList{}
	r := recWithFlags("X", 0, 100, 10, record.FlagRecordList)
	tmpl := record.Template{
		SID:        r.SID,
		StartTime:  r.StartTime,
		SampRate:   r.SampRate,
		SampleType: record.I32,
		Encoding:   record.EncodingI32,
		Samples:    r.DataSamples,
		NumSamples: r.NumSamples,
	}
	buf := packOne(t, tmpl)
	parsed, _, err := record.ParseRecord(buf)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	endtime := parsed.EndTime()
	rl.append(parsed, endtime, BufferLocator{Buf: buf}, WhenceNewList)

	if _, err := rl.Unpack(record.F32); err == nil {
		t.Fatal("expected a sample type mismatch error")
	}
}

// packOne packs tmpl into a record stream and returns the single
// record it must have produced, failing the test if it produced zero
// or more than one (the templates used in this file always fit in
// one 512-byte record).
func packOne(t *testing.T, tmpl record.Template) []byte {
	t.Helper()
	var bufs [][]byte
	_, _, err := record.PackBatch(tmpl, 512, func(b []byte) error {
		bufs = append(bufs, append([]byte(nil), b...))
		return nil
	})
	if err != nil {
		t.Fatalf("PackBatch: %v", err)
	}
	if len(bufs) != 1 {
		t.Fatalf("PackBatch produced %d records, want 1", len(bufs))
	}
	return bufs[0]
}
