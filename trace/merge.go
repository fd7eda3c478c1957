// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"fmt"
	"time"

	"github.com/earthscope-oss/mseedtrace/mstime"
	"github.com/earthscope-oss/mseedtrace/record"
)

// AddOptions controls how Add merges one record into a List.
type AddOptions struct {
	// SplitVersion, when true, keeps distinct publication versions
	// of the same SID as distinct IDs instead of merging them
	// together.
	SplitVersion bool

	// AutoHeal, when true, lets a record that exactly bridges two
	// existing segments merge them into one.
	AutoHeal bool

	// Tolerance overrides the default time/rate tolerance
	// functions. The zero value uses mstime.DefaultTimeTolerance
	// and mstime.DefaultRateTolerance.
	Tolerance mstime.Tolerance

	// Locator, when non-nil, is attached to the record-list entry
	// created for this record (only meaningful alongside
	// record.FlagRecordList). A nil Locator with FlagRecordList set
	// falls back to a BufferLocator over rec.DataSamples, the decoded
	// samples rather than the encoded record bytes, so RecordList.Unpack
	// cannot reparse such an entry; a caller that wants the entry to
	// resolve to its source record must supply Locator.
	Locator Locator

	// Now overrides time.Now for FlagPPUpdateTime stamping; tests
	// set this to get a deterministic clock.
	Now func() time.Time
}

func (o AddOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// AddDefault adds rec to l with AutoHeal enabled and default
// tolerances — the common case, equivalent to Add(rec, AddOptions{AutoHeal: true}).
func (l *List) AddDefault(rec record.Descriptor) (*Segment, error) {
	return l.Add(rec, AddOptions{AutoHeal: true})
}

// Add merges one parsed record into the list, creating a new ID or
// Segment if needed. It returns the Segment the
// record ended up contributing to.
func (l *List) Add(rec record.Descriptor, opts AddOptions) (*Segment, error) {
	endtime := rec.EndTime()
	if rec.Covered() && !endtime.Valid() {
		return nil, ErrTimeCompute
	}

	keyVersion := 0
	if opts.SplitVersion {
		keyVersion = rec.PubVersion
	}

	id, prev := l.findID(rec.SID, keyVersion)
	if id == nil {
		seg, err := segmentFromRecord(rec, endtime)
		if err != nil {
			return nil, err
		}
		id = l.insertID(rec.SID, keyVersion, prev)
		id.PubVersion = rec.PubVersion
		id.insertSegment(seg, nil)
		id.refreshBounds()
		l.log.Debugw("new channel", "sid", rec.SID, "keyVersion", keyVersion, "start", rec.StartTime, "flags", rec.Flags)
		l.maintainRecordList(seg, rec, endtime, opts, WhenceNewList)
		if rec.Flags&record.FlagPPUpdateTime != 0 {
			seg.touch(opts.now())
		}
		return seg, nil
	}

	if rec.PubVersion > id.PubVersion {
		id.PubVersion = rec.PubVersion
	}

	seg, whence, err := l.mergeIntoID(id, rec, endtime, opts)
	if err != nil {
		return nil, err
	}
	id.refreshBounds()
	l.maintainRecordList(seg, rec, endtime, opts, whence)
	if rec.Flags&record.FlagPPUpdateTime != 0 {
		seg.touch(opts.now())
	}
	return seg, nil
}

// mergeIntoID finds where rec belongs among id's existing segments
// and applies the append/prepend/insert/heal operation, returning the
// segment rec ended up in and the Whence to record for it.
func (l *List) mergeIntoID(id *ID, rec record.Descriptor, endtime mstime.Time, opts AddOptions) (*Segment, Whence, error) {
	nsperiod := mstime.PeriodNS(rec.SampRate)
	timeTol := opts.Tolerance.TimeTol(rec.SampRate)
	last, first := id.Last, id.First

	fits := func(segEnd, recStart mstime.Time, segRate float64) bool {
		gap := int64(recStart) - int64(segEnd) - nsperiod
		return absInt64(gap) <= timeTol && opts.Tolerance.RateTol(segRate, rec.SampRate)
	}

	// Fast case 1: fit-at-end against the last segment.
	if last.covered() && rec.Covered() && fits(last.End, rec.StartTime, last.SampRate) {
		if err := last.Append(rec, endtime); err != nil {
			return nil, 0, err
		}
		id.bubbleSort(last)
		if opts.AutoHeal {
			l.tryHeal(id, last)
		}
		return last, WhenceEnd, nil
	}

	// Fast case 2: after-all, no scan needed.
	if last.covered() && rec.StartTime > last.End {
		seg, err := l.insertNewSegment(id, rec, endtime, last)
		return seg, WhenceNewList, err
	}

	// Fast case 3: fit-at-start against the first segment.
	if first.covered() && rec.Covered() {
		gap := int64(first.Start) - int64(endtime) - nsperiod
		if absInt64(gap) <= timeTol && opts.Tolerance.RateTol(first.SampRate, rec.SampRate) {
			if err := first.Prepend(rec); err != nil {
				return nil, 0, err
			}
			id.bubbleSort(first)
			if opts.AutoHeal {
				l.tryHeal(id, first)
			}
			return first, WhenceStart, nil
		}
	}

	// Fast case 4: before-all, no scan needed.
	if first.covered() && endtime < first.Start {
		seg, err := l.insertNewSegment(id, rec, endtime, nil)
		return seg, WhenceNewList, err
	}

	// General scan: the record overlaps the existing span, targets
	// a header-only neighbor, or needs a position in the interior.
	return l.scanAndApply(id, rec, endtime, nsperiod, timeTol, opts)
}

// scanAndApply walks id's segment list end to end looking for an
// exact-time idempotence match, a segment to append onto, a segment
// to prepend onto, or (failing all three) the predecessor a brand new
// segment should be spliced after.
func (l *List) scanAndApply(id *ID, rec record.Descriptor, endtime mstime.Time, nsperiod, timeTol int64, opts AddOptions) (*Segment, Whence, error) {
	var segbefore, segafter, followseg *Segment

	for seg := id.First; seg != nil; seg = seg.Next {
		if seg.Start == rec.StartTime && seg.End == endtime {
			// Exact time match: idempotent re-add. Treat as an
			// append-of-nothing onto the matching segment.
			return seg, WhenceEnd, nil
		}
		if seg.Start < rec.StartTime {
			followseg = seg
		}
		if !seg.covered() {
			continue
		}
		if segbefore == nil && rec.Covered() {
			gap := int64(rec.StartTime) - int64(seg.End) - nsperiod
			if absInt64(gap) <= timeTol && opts.Tolerance.RateTol(seg.SampRate, rec.SampRate) {
				segbefore = seg
			}
		}
		if segafter == nil && rec.Covered() {
			gap := int64(seg.Start) - int64(endtime) - nsperiod
			if absInt64(gap) <= timeTol && opts.Tolerance.RateTol(seg.SampRate, rec.SampRate) {
				segafter = seg
			}
		}
		if segbefore != nil && segafter != nil {
			break
		}
	}

	switch {
	case segbefore != nil:
		if err := segbefore.Append(rec, endtime); err != nil {
			return nil, 0, err
		}
		id.bubbleSort(segbefore)
		if opts.AutoHeal && segafter != nil && segafter != segbefore {
			// rec is only a valid bridge between segbefore and segafter
			// if nothing else sits between them; a third segment there
			// would have its samples silently skipped by Absorb.
			if segbefore.Next != segafter {
				return nil, 0, fmt.Errorf("%w: segbefore and segafter are not adjacent", ErrInvariant)
			}
			if err := segbefore.Absorb(segafter); err != nil {
				return nil, 0, err
			}
			id.removeSegment(segafter)
		} else if opts.AutoHeal {
			l.tryHeal(id, segbefore)
		}
		return segbefore, WhenceEnd, nil

	case segafter != nil:
		if err := segafter.Prepend(rec); err != nil {
			return nil, 0, err
		}
		id.bubbleSort(segafter)
		if opts.AutoHeal {
			l.tryHeal(id, segafter)
		}
		return segafter, WhenceStart, nil

	default:
		seg, err := l.insertNewSegment(id, rec, endtime, followseg)
		return seg, WhenceNewList, err
	}
}

// insertNewSegment splices a brand new segment, built from rec, into
// id's segment list immediately after after (nil meaning "at the
// head").
func (l *List) insertNewSegment(id *ID, rec record.Descriptor, endtime mstime.Time, after *Segment) (*Segment, error) {
	seg, err := segmentFromRecord(rec, endtime)
	if err != nil {
		return nil, err
	}
	id.insertSegment(seg, after)
	id.bubbleSort(seg)
	return seg, nil
}

// tryHeal checks whether seg can now be merged with its neighbor on
// either side (a bridging record can close a gap that neither of its
// own endpoints touched before this Add), absorbing the neighbor into
// seg if so. This implements the "heal" half of autoheal for the case
// where the fast append/prepend path already consumed the new record
// but left a closeable gap next to it.
func (l *List) tryHeal(id *ID, seg *Segment) {
	if n := seg.Next; n != nil && seg.covered() && n.covered() {
		gap := int64(n.Start) - int64(seg.End) - mstime.PeriodNS(seg.SampRate)
		if gap == 0 && seg.SampRate == n.SampRate {
			if seg.Absorb(n) == nil {
				id.removeSegment(n)
				l.log.Debugw("healed bridging gap", "sid", id.SID, "at", seg.End)
			}
		}
	}
	if p := seg.Prev; p != nil && seg.covered() && p.covered() {
		gap := int64(seg.Start) - int64(p.End) - mstime.PeriodNS(p.SampRate)
		if gap == 0 && seg.SampRate == p.SampRate {
			if p.Absorb(seg) == nil {
				id.removeSegment(seg)
				l.log.Debugw("healed bridging gap", "sid", id.SID, "at", p.End)
			}
		}
	}
}

// maintainRecordList appends a record-list entry to seg when the
// caller requested FlagRecordList, using opts.Locator or falling back
// to a BufferLocator over the record's own decoded samples.
func (l *List) maintainRecordList(seg *Segment, rec record.Descriptor, endtime mstime.Time, opts AddOptions, whence Whence) {
	if rec.Flags&record.FlagRecordList == 0 {
		return
	}
	loc := opts.Locator
	if loc == nil {
		loc = BufferLocator{Buf: rec.DataSamples}
	}
	seg.records().append(rec, endtime, loc, whence)
}

func absInt64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
