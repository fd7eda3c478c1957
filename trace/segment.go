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

// Segment is one contiguous run of decoded samples for one source
// identifier. Segments belonging to one ID form a
// doubly linked, time-ordered list; Prev/Next are nil at the ends of
// that list.
type Segment struct {
	Start, End mstime.Time
	SampRate   float64 // Hz if positive, -seconds/sample if negative
	SampleCnt  int     // samples claimed by contributing headers
	NumSamples int     // samples actually decoded and present in Samples
	SampleType record.SampleType

	Samples []byte // decoded sample buffer; len == NumSamples*samplesize

	// Records is non-nil only when the caller requested
	// FlagRecordList; it preserves the origin of every
	// contribution to this segment.
	Records *RecordList

	// Private is an opaque, caller-owned slot. The engine itself
	// only ever writes a time.Time here, and only when
	// FlagPPUpdateTime is set (see idleFor).
	Private any

	Prev, Next *Segment
}

func samplesize(t record.SampleType) (int, error) {
	n := record.SampleSize(t)
	if n == 0 {
		return 0, fmt.Errorf("%w: sample type %v", ErrUnknownSampleType, t)
	}
	return n, nil
}

// covered reports whether s has real time coverage: a positive
// sample count and non-zero sample rate.
func (s *Segment) covered() bool {
	return s.SampleCnt > 0 && s.SampRate != 0
}

// segmentFromRecord creates a new Segment from rec: decoded samples are copied when rec has any,
// otherwise the segment is header-only.
func segmentFromRecord(rec record.Descriptor, endtime mstime.Time) (*Segment, error) {
	if rec.NumSamples > 0 {
		if _, err := samplesize(rec.SampleType); err != nil {
			return nil, err
		}
	}
	buf := append([]byte(nil), rec.DataSamples...)
	return &Segment{
		Start:      rec.StartTime,
		End:        endtime,
		SampRate:   rec.SampRate,
		SampleCnt:  rec.SampleCnt,
		NumSamples: rec.NumSamples,
		SampleType: rec.SampleType,
		Samples:    buf,
	}, nil
}

// Append enlarges s's buffer and appends rec's samples to the end,
// extending End and SampleCnt.
func (s *Segment) Append(rec record.Descriptor, endtime mstime.Time) error {
	if rec.NumSamples > 0 {
		if err := s.checkType(rec.SampleType); err != nil {
			return err
		}
		s.Samples = append(s.Samples, rec.DataSamples...)
		s.NumSamples += rec.NumSamples
	}
	s.SampleCnt += rec.SampleCnt
	s.End = endtime
	return nil
}

// Prepend shifts s's existing samples forward and copies rec's
// samples to the front, moving Start backward.
func (s *Segment) Prepend(rec record.Descriptor) error {
	if rec.NumSamples > 0 {
		if err := s.checkType(rec.SampleType); err != nil {
			return err
		}
		buf := make([]byte, len(rec.DataSamples)+len(s.Samples))
		copy(buf, rec.DataSamples)
		copy(buf[len(rec.DataSamples):], s.Samples)
		s.Samples = buf
		s.NumSamples += rec.NumSamples
	}
	s.SampleCnt += rec.SampleCnt
	s.Start = rec.StartTime
	return nil
}

// Absorb appends other's samples and record list onto s, then
// advances s.End to other.End. other is consumed: the caller must
// unlink and discard it after Absorb returns.
func (s *Segment) Absorb(other *Segment) error {
	if other.NumSamples > 0 {
		if err := s.checkType(other.SampleType); err != nil {
			return err
		}
		s.Samples = append(s.Samples, other.Samples...)
		s.NumSamples += other.NumSamples
	}
	s.SampleCnt += other.SampleCnt
	s.End = other.End
	if other.Records != nil {
		s.records().absorb(other.Records)
	}
	return nil
}

func (s *Segment) checkType(t record.SampleType) error {
	if s.NumSamples > 0 && s.SampleType != t {
		return fmt.Errorf("%w: segment has %v, record has %v", ErrSampleTypeMismatch, s.SampleType, t)
	}
	s.SampleType = t
	return nil
}

func (s *Segment) records() *RecordList {
	if s.Records == nil {
		s.Records = &RecordList{}
	}
	return s.Records
}

// touch stamps s.Private with the current time, as requested by
// FlagPPUpdateTime. now is injected by the
// caller (normally time.Now) so tests can control it.
func (s *Segment) touch(now time.Time) {
	s.Private = now
}

// idleFor reports how long it has been since s was last touched, or
// false if s has never been stamped.
func (s *Segment) idleFor(now time.Time) (time.Duration, bool) {
	t, ok := s.Private.(time.Time)
	if !ok {
		return 0, false
	}
	return now.Sub(t), true
}
