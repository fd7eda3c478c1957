// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"fmt"

	"github.com/earthscope-oss/mseedtrace/mstime"
	"github.com/earthscope-oss/mseedtrace/record"
)

// packerState names the phase of Packer's resumable state machine.
type packerState int

const (
	packerIdle packerState = iota
	packerInSegment
	packerFinishedSegment
	packerDone
)

// Packer is the generator form of List.Pack: instead of draining
// every segment in one call, it yields one record at a time across
// the whole list, so a caller can interleave packing with its own
// I/O loop and stop early. The List must not be mutated by any other
// means while a Packer over it is in use.
type Packer struct {
	l    *List
	opts PackOptions

	state packerState
	id    *ID
	seg   *Segment
	inner *record.Packer

	drainN         int // samples the current segment is being drained by
	innerPacked    int // inner.Free() as of the previous Next call
	recordsCreated int
	samplesPacked  int
	err            error
}

// NewPacker begins a generator-style pack over l.
func (l *List) NewPacker(opts PackOptions) *Packer {
	return &Packer{l: l, opts: opts, state: packerIdle, id: l.First()}
}

// Next produces the next record, or ok=false when the list has been
// fully drained or packing failed (the error is then returned, and
// every later call returns it again).
// Matches pack_next's {1,0,Err} tri-state.
func (p *Packer) Next() ([]byte, bool, error) {
	for {
		switch p.state {
		case packerIdle:
			if !p.advanceToNextSegment() {
				p.state = packerDone
				return nil, false, p.err
			}

		case packerInSegment:
			buf, ok, err := p.inner.Next()
			if err != nil {
				p.fail(err)
				return nil, false, p.err
			}
			if !ok {
				p.state = packerFinishedSegment
				continue
			}
			free := p.inner.Free()
			p.recordsCreated++
			p.samplesPacked += free - p.innerPacked
			p.innerPacked = free
			return buf, true, nil

		case packerFinishedSegment:
			p.truncateOrRetire()
			if p.seg == nil {
				p.id = p.id.Next()
			}
			p.state = packerIdle

		case packerDone:
			return nil, false, p.err
		}
	}
}

// Close releases the packer's resources, reporting the cumulative
// records created and samples packed over the packer's lifetime
// (pack_free).
func (p *Packer) Close() (recordsCreated, samplesPacked int) {
	return p.recordsCreated, p.samplesPacked
}

func (p *Packer) fail(err error) {
	p.err = err
	p.state = packerDone
}

// advanceToNextSegment walks forward from p.id looking for a segment
// with a nonempty drainable tail, initializing the inner packer over
// it. It returns false once there is nothing left to pack.
func (p *Packer) advanceToNextSegment() bool {
	for p.id != nil {
		if p.seg == nil {
			p.seg = p.id.First
		}
		for p.seg != nil {
			if n := p.segmentDrainable(p.seg); n > 0 {
				if err := p.initInner(p.seg, n); err != nil {
					p.fail(err)
					return false
				}
				p.state = packerInSegment
				return true
			}
			p.seg = p.seg.Next
		}
		p.id = p.id.Next()
		p.seg = nil
	}
	return false
}

func (p *Packer) segmentDrainable(seg *Segment) int {
	if seg.NumSamples == 0 {
		return 0
	}
	size, err := samplesize(seg.SampleType)
	if err != nil {
		return 0
	}
	perRecord := record.MaxSamplesPerRecord(p.opts.MaxRecordLen, len(p.id.SID), size)
	return drainable(seg, perRecord, p.opts.Flush || p.opts.idleExpired(seg))
}

func (p *Packer) initInner(seg *Segment, n int) error {
	size, err := samplesize(seg.SampleType)
	if err != nil {
		return err
	}
	enc := p.opts.encodingFor(seg.SampleType)
	encSize, _, encErr := record.EncodingSizeType(enc)
	if encErr != nil {
		return fmt.Errorf("%w: %v", ErrCodec, encErr)
	}
	if encSize != size {
		return fmt.Errorf("%w: encoding %d does not match segment sample type %s", ErrCodec, enc, seg.SampleType)
	}
	tmpl := record.Template{
		SID:        p.id.SID,
		PubVersion: p.id.PubVersion,
		StartTime:  seg.Start,
		SampRate:   seg.SampRate,
		SampleType: seg.SampleType,
		Encoding:   enc,
		Samples:    seg.Samples[:n*size],
		NumSamples: n,
	}
	inner, err := record.PackInit(tmpl, p.opts.MaxRecordLen)
	if err != nil {
		return err
	}
	p.inner = inner
	p.drainN = n
	p.innerPacked = 0
	return nil
}

// truncateOrRetire applies the same post-drain bookkeeping as the
// batch packer (trace.List.Pack) to the segment just finished.
func (p *Packer) truncateOrRetire() {
	seg := p.seg
	next := seg.Next // removeSegment clears seg.Next
	n := p.drainN
	size, _ := samplesize(seg.SampleType)
	if n >= seg.NumSamples {
		p.id.removeSegment(seg)
		p.l.removeIDIfEmpty(p.id)
		p.l.log.Debugw("retired drained segment", "sid", p.id.SID, "records", p.recordsCreated)
	} else {
		seg.Start = mstime.SampleTime(seg.Start, int64(n), seg.SampRate)
		seg.Samples = append([]byte(nil), seg.Samples[n*size:]...)
		seg.NumSamples -= n
		seg.SampleCnt -= n
	}
	p.id.refreshBounds()
	p.seg = next
	p.inner = nil
}
