// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/earthscope-oss/mseedtrace/mstime"
)

// Template is the ephemeral, read-only description the engine builds
// from a Segment before handing it to the record packer. It is not
// retained by the codec past the packing call.
type Template struct {
	SID        string
	PubVersion int
	StartTime  mstime.Time
	SampRate   float64
	SampleType SampleType
	Encoding   Encoding
	Samples    []byte // decoded samples, NumSamples*SampleSize(SampleType) bytes
	NumSamples int
	Flags      Flag
}

// MaxSamplesPerRecord returns how many samples of sampleSize bytes
// fit in one record no larger than maxLen, given a SID of sidLen
// bytes and no extra headers. Callers that need to plan how many
// samples to hand to PackBatch/PackInit before building a Template
// (trace's rolling packer) should use this instead of
// re-deriving the header overhead.
func MaxSamplesPerRecord(maxLen, sidLen, sampleSize int) int {
	avail := maxLen - fixedHeaderSize - sidLen
	if avail <= 0 || sampleSize <= 0 {
		return 0
	}
	return avail / sampleSize
}

func maxSamplesPerRecord(maxLen, sidLen, sampleSize int) int {
	return MaxSamplesPerRecord(maxLen, sidLen, sampleSize)
}

func encodeOne(tmpl Template, offset, n int) ([]byte, error) {
	size, typ, err := EncodingSizeType(tmpl.Encoding)
	if err != nil {
		return nil, err
	}
	if typ != tmpl.SampleType {
		return nil, fmt.Errorf("record: encoding %d does not match sample type %s", tmpl.Encoding, tmpl.SampleType)
	}
	if len(tmpl.SID) > 255 {
		return nil, fmt.Errorf("record: SID too long (%d bytes)", len(tmpl.SID))
	}

	e := &encoder{order: binary.LittleEndian}
	e.bytes(magic[:])
	e.u8(uint8(len(tmpl.SID)))
	e.bytes([]byte(tmpl.SID))
	e.u8(uint8(tmpl.PubVersion))
	startTime := mstime.SampleTime(tmpl.StartTime, int64(offset), tmpl.SampRate)
	e.i64(int64(startTime))
	e.u64(math.Float64bits(tmpl.SampRate))
	e.u32(uint32(n)) // samplecnt == numsamples for a freshly packed record
	e.u8(uint8(tmpl.SampleType))
	e.u8(uint8(tmpl.Encoding))
	e.u32(uint32(n))
	e.u32(uint32(tmpl.Flags))
	e.u16(0) // no extra headers in the reference codec
	start := offset * size
	e.bytes(tmpl.Samples[start : start+n*size])
	return e.buf, nil
}

// PackBatch packs all of tmpl's samples into records no larger than
// maxLen, invoking emit once per record in order. It is the one-shot
// counterpart to the resumable Packer below.
func PackBatch(tmpl Template, maxLen int, emit func([]byte) error) (recordsCreated, samplesPacked int, err error) {
	size := SampleSize(tmpl.SampleType)
	perRecord := maxSamplesPerRecord(maxLen, len(tmpl.SID), size)
	if perRecord == 0 && tmpl.NumSamples > 0 {
		return 0, 0, fmt.Errorf("record: maxLen %d too small for one sample of %s", maxLen, tmpl.SampleType)
	}
	offset := 0
	for offset < tmpl.NumSamples {
		n := perRecord
		if offset+n > tmpl.NumSamples {
			n = tmpl.NumSamples - offset
		}
		buf, err := encodeOne(tmpl, offset, n)
		if err != nil {
			return recordsCreated, samplesPacked, err
		}
		if err := emit(buf); err != nil {
			return recordsCreated, samplesPacked, err
		}
		recordsCreated++
		samplesPacked += n
		offset += n
	}
	return recordsCreated, samplesPacked, nil
}

// Packer is the inner, resumable record-packer state: construct with
// PackInit, then call Next repeatedly until it reports no more
// records. Unlike the engine's own Packer (trace.Packer), this one
// only ever packs a single segment's Template; trace.Packer composes
// a sequence of these, one per segment.
type Packer struct {
	tmpl      Template
	perRecord int
	offset    int
	packed    int
}

// PackInit begins packing tmpl into records no larger than maxLen.
func PackInit(tmpl Template, maxLen int) (*Packer, error) {
	size := SampleSize(tmpl.SampleType)
	perRecord := maxSamplesPerRecord(maxLen, len(tmpl.SID), size)
	if perRecord == 0 && tmpl.NumSamples > 0 {
		return nil, fmt.Errorf("record: maxLen %d too small for one sample of %s", maxLen, tmpl.SampleType)
	}
	return &Packer{tmpl: tmpl, perRecord: perRecord}, nil
}

// Next produces the next record, matching pack_next's {1,0,Err}
// tri-state: ok=true with a non-nil rec means a record was produced;
// ok=false with a nil error means the template is exhausted.
func (p *Packer) Next() (rec []byte, ok bool, err error) {
	if p.offset >= p.tmpl.NumSamples {
		return nil, false, nil
	}
	n := p.perRecord
	if p.offset+n > p.tmpl.NumSamples {
		n = p.tmpl.NumSamples - p.offset
	}
	buf, err := encodeOne(p.tmpl, p.offset, n)
	if err != nil {
		return nil, false, err
	}
	p.offset += n
	p.packed += n
	return buf, true, nil
}

// Free tears down the inner packer state, reporting the cumulative
// number of samples packed (pack_free's samples_out).
func (p *Packer) Free() int {
	return p.packed
}
