// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import "github.com/earthscope-oss/mseedtrace/mstime"

// ID is a per-source-identifier entry. Its segments form a doubly
// linked, time-ordered list; its forward pointers (next) make it a
// node of the enclosing List's skip list.
type ID struct {
	SID        string
	PubVersion int // max over all contributing records

	Earliest, Latest mstime.Time
	NumSegments      int
	First, Last      *Segment

	// keyVersion is the ordering key actually used by the skip
	// list: 0 unless the caller asked to split by publication
	// version, in which case it is frozen to the version of the
	// record that created this ID. It is deliberately distinct
	// from PubVersion, which keeps tracking the maximum version
	// seen even when keyVersion is pinned at 0.
	keyVersion int

	height int
	next   []*ID
}

// insertSegment splices seg into the ID's segment list immediately
// after after (or at the head if after is nil), and updates
// NumSegments/First/Last. It does not sort seg into time order; the
// caller (the merge engine) is responsible for placing seg where it
// belongs before calling this, or for calling bubbleSort afterward.
func (id *ID) insertSegment(seg, after *Segment) {
	if after == nil {
		seg.Next = id.First
		seg.Prev = nil
		if id.First != nil {
			id.First.Prev = seg
		}
		id.First = seg
		if id.Last == nil {
			id.Last = seg
		}
	} else {
		seg.Next = after.Next
		seg.Prev = after
		if after.Next != nil {
			after.Next.Prev = seg
		} else {
			id.Last = seg
		}
		after.Next = seg
	}
	id.NumSegments++
}

// removeSegment unlinks seg from the ID's segment list.
func (id *ID) removeSegment(seg *Segment) {
	if seg.Prev != nil {
		seg.Prev.Next = seg.Next
	} else {
		id.First = seg.Next
	}
	if seg.Next != nil {
		seg.Next.Prev = seg.Prev
	} else {
		id.Last = seg.Prev
	}
	seg.Prev, seg.Next = nil, nil
	id.NumSegments--
}

// segLess orders segments by (starttime, -endtime), the ordering
// invariant every segment list maintains.
func segLess(a, b *Segment) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End > b.End
}

// bubbleSort moves seg left or right through the segment list until
// it is back in (starttime, -endtime) order. Only a handful of swaps
// are expected, since seg only just moved.
func (id *ID) bubbleSort(seg *Segment) {
	for seg.Prev != nil && segLess(seg, seg.Prev) {
		id.swapWithPrev(seg)
	}
	for seg.Next != nil && segLess(seg.Next, seg) {
		id.swapWithPrev(seg.Next)
	}
}

// swapWithPrev exchanges seg and seg.Prev in the list.
func (id *ID) swapWithPrev(seg *Segment) {
	p := seg.Prev
	pp := p.Prev
	n := seg.Next

	p.Prev = seg
	p.Next = n
	seg.Prev = pp
	seg.Next = p
	if n != nil {
		n.Prev = p
	} else {
		id.Last = p
	}
	if pp != nil {
		pp.Next = seg
	} else {
		id.First = seg
	}
}

// refreshBounds recomputes Earliest/Latest from the current First/Last
// segments.
func (id *ID) refreshBounds() {
	if id.First == nil {
		return
	}
	id.Earliest = id.First.Start
	id.Latest = id.Last.End
}
