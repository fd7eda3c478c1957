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

// PackOptions controls List.Pack and List.NewPacker.
type PackOptions struct {
	// MaxRecordLen bounds the encoded size of every record
	// produced, matching record.PackBatch's maxLen.
	MaxRecordLen int

	// Flush forces every segment's entire remaining buffer out as
	// records, including a final short one, instead of holding back
	// a partial tail for a future call (record.FlagFlushData).
	Flush bool

	// Encoding selects the wire encoding for integer-sample
	// segments. Segments whose sample type forces an encoding
	// (record.ForcedEncoding) ignore this.
	Encoding record.Encoding

	// IdleTimeout, when nonzero, forces a segment's entire
	// remaining buffer out (as Flush would) once it has gone this
	// long without being touched via FlagPPUpdateTime, even though
	// Flush itself is false. A segment that was never touched is
	// never considered idle. Zero disables idle-driven flushing.
	IdleTimeout time.Duration

	// Now overrides time.Now when checking IdleTimeout; tests set
	// this to get a deterministic clock.
	Now func() time.Time
}

func (o PackOptions) encodingFor(t record.SampleType) record.Encoding {
	if enc, forced := record.ForcedEncoding(t); forced {
		return enc
	}
	return o.Encoding
}

func (o PackOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// idleExpired reports whether seg has gone idle long enough, per
// opts.IdleTimeout, to force its entire remaining buffer out.
func (o PackOptions) idleExpired(seg *Segment) bool {
	if o.IdleTimeout <= 0 {
		return false
	}
	idle, touched := seg.idleFor(o.now())
	return touched && idle >= o.IdleTimeout
}

// drainable returns how many leading samples of seg should be packed
// this call: the whole buffer if opts.Flush or seg has gone idle past
// opts.IdleTimeout, otherwise only the largest multiple of perRecord
// samples so a partial tail is held back for a later call.
func drainable(seg *Segment, perRecord int, forceFull bool) int {
	if forceFull || perRecord == 0 {
		return seg.NumSamples
	}
	return (seg.NumSamples / perRecord) * perRecord
}

// Pack drains every segment in l into records no larger than
// opts.MaxRecordLen, invoking emit once per record in creation order.
// A segment whose entire buffer is packed is retired from the list
// rather than kept around as a phantom zero-length segment. A
// segment with a held-back partial tail survives with its Start
// advanced past the packed samples and NumSamples/SampleCnt reduced
// to match.
func (l *List) Pack(opts PackOptions, emit func([]byte) error) (recordsCreated, samplesPacked int, err error) {
	for id := l.First(); id != nil; id = id.Next() {
		seg := id.First
		for seg != nil {
			next := seg.Next
			n, created, err := l.packSegment(id, seg, opts, emit)
			if err != nil {
				return recordsCreated, samplesPacked, err
			}
			recordsCreated += created
			samplesPacked += n
			seg = next
		}
	}
	return recordsCreated, samplesPacked, nil
}

func (l *List) packSegment(id *ID, seg *Segment, opts PackOptions, emit func([]byte) error) (samplesPacked, recordsCreated int, err error) {
	if seg.NumSamples == 0 {
		return 0, 0, nil
	}
	size, err := samplesize(seg.SampleType)
	if err != nil {
		return 0, 0, err
	}
	enc := opts.encodingFor(seg.SampleType)
	encSize, _, encErr := record.EncodingSizeType(enc)
	if encErr != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrCodec, encErr)
	}
	if encSize != size {
		return 0, 0, fmt.Errorf("%w: encoding %d does not match segment sample type %s", ErrCodec, enc, seg.SampleType)
	}

	perRecord := record.MaxSamplesPerRecord(opts.MaxRecordLen, len(id.SID), size)
	if perRecord == 0 {
		return 0, 0, fmt.Errorf("%w: MaxRecordLen %d too small for one sample of %s", ErrCodec, opts.MaxRecordLen, seg.SampleType)
	}

	n := drainable(seg, perRecord, opts.Flush || opts.idleExpired(seg))
	if n == 0 {
		return 0, 0, nil
	}

	tmpl := record.Template{
		SID:        id.SID,
		PubVersion: id.PubVersion,
		StartTime:  seg.Start,
		SampRate:   seg.SampRate,
		SampleType: seg.SampleType,
		Encoding:   enc,
		Samples:    seg.Samples[:n*size],
		NumSamples: n,
	}
	created, packed, err := record.PackBatch(tmpl, opts.MaxRecordLen, emit)
	if err != nil {
		return packed, created, err
	}

	if n >= seg.NumSamples {
		id.removeSegment(seg)
		l.removeIDIfEmpty(id)
		l.log.Debugw("retired drained segment", "sid", id.SID, "records", created)
	} else {
		seg.Start = mstime.SampleTime(seg.Start, int64(n), seg.SampRate)
		seg.Samples = append([]byte(nil), seg.Samples[n*size:]...)
		seg.NumSamples -= n
		seg.SampleCnt -= n
	}
	id.refreshBounds()
	return packed, created, nil
}
