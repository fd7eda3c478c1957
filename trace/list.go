// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trace implements the TraceList engine: an in-memory,
// continuously merged representation of arbitrarily many channels,
// each carrying one or more contiguous time segments of decoded
// samples, built incrementally from a stream of parsed records and
// emitted back out as a stream of records.
package trace

import (
	"github.com/earthscope-oss/mseedtrace/internal/rand64"
	"github.com/earthscope-oss/mseedtrace/mstime"
	"go.uber.org/zap"
)

// List is a TraceList: a skip-list index of IDs, each owning a
// doubly linked list of time-ordered Segments. The
// zero value is not usable; construct one with NewList.
//
// Every public method on a List requires exclusive access to the
// whole structure: two goroutines must never call methods on the same
// List concurrently. Distinct Lists are fully
// independent.
type List struct {
	head  *ID
	count int
	rng   *rand64.Source
	log   *zap.SugaredLogger
}

// NewList returns an empty TraceList, seeded deterministically so
// that two Lists built from the same sequence of Add calls produce
// bit-identical skip-list structure. It logs nowhere until SetLogger
// is called.
func NewList() *List {
	return &List{head: newSkipListHead(), rng: newRNG(), log: zap.NewNop().Sugar()}
}

// SetLogger attaches a structured logger that Add, Pack, and Packer
// use to report merge and packing decisions (new IDs, healed gaps,
// retired segments) at debug level. A nil logger restores the no-op
// default.
func (l *List) SetLogger(log *zap.SugaredLogger) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	l.log = log
}

// Len returns the number of distinct IDs currently in the list.
func (l *List) Len() int {
	return l.count
}

// Stats is a read-only snapshot of a List's aggregate state, useful
// for diagnostics and tests.
type Stats struct {
	NumIDs       int
	NumSegments  int
	TotalSamples int
	Earliest     mstime.Time
	Latest       mstime.Time
}

// Stats computes a Stats snapshot by walking every ID and segment.
func (l *List) Stats() Stats {
	var s Stats
	s.Earliest, s.Latest = mstime.Error, mstime.Error
	for id := l.First(); id != nil; id = id.Next() {
		s.NumIDs++
		s.NumSegments += id.NumSegments
		for seg := id.First; seg != nil; seg = seg.Next {
			s.TotalSamples += seg.NumSamples
		}
		if s.Earliest == mstime.Error || id.Earliest < s.Earliest {
			s.Earliest = id.Earliest
		}
		if s.Latest == mstime.Error || id.Latest > s.Latest {
			s.Latest = id.Latest
		}
	}
	return s
}

// Find looks up the ID for sid. When splitVersion is false, all
// publication versions of sid share one ID and version is ignored;
// when true, version selects among the IDs split by publication
// version. It returns nil if no such ID exists.
func (l *List) Find(sid string, splitVersion bool, version int) *ID {
	key := 0
	if splitVersion {
		key = version
	}
	id, _ := l.findID(sid, key)
	return id
}
