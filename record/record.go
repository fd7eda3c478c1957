// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record is the external collaborator of the TraceList
// engine: the physical record codec. It defines Descriptor, the
// read-only projection of a parsed record that the engine consumes,
// and a small reference implementation of the parse/pack/decode
// interface.
//
// The reference codec is deliberately simple — a fixed header
// followed by raw little-endian samples, with one case per
// SampleType — so that the engine can be exercised end to end without
// a Steim1/2 implementation. Swap in a real miniSEED codec by
// implementing the same functions against your own wire format; the
// trace package never looks inside a Descriptor's DataSamples beyond
// its declared SampleType and NumSamples.
package record

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/earthscope-oss/mseedtrace/mstime"
)

// SampleType identifies the decoded representation of a segment's
// samples. Mixing sample types within one segment is forbidden.
type SampleType uint8

const (
	I32 SampleType = iota
	F32
	F64
	Text
)

func (t SampleType) String() string {
	switch t {
	case I32:
		return "i32"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("SampleType(%d)", uint8(t))
	}
}

// SampleSize returns the on-the-wire size in bytes of one sample of
// type t, or 0 for an unknown type; the caller should treat 0 as an
// unknown-sample-type error condition.
func SampleSize(t SampleType) int {
	switch t {
	case I32, F32:
		return 4
	case F64:
		return 8
	case Text:
		return 1
	default:
		return 0
	}
}

// Encoding identifies the on-the-wire sample encoding. This reference
// codec supports only uncompressed encodings; a real miniSEED codec
// would add Steim1/Steim2/etc. here and reject them in DecodeSamples
// only if unimplemented.
type Encoding uint8

const (
	EncodingI32  Encoding = iota // raw little-endian int32
	EncodingF32                  // raw little-endian float32
	EncodingF64                  // raw little-endian float64
	EncodingText                 // raw bytes
)

// EncodingSizeType returns the sample size and SampleType implied by
// an encoding.
func EncodingSizeType(e Encoding) (size int, typ SampleType, err error) {
	switch e {
	case EncodingI32:
		return 4, I32, nil
	case EncodingF32:
		return 4, F32, nil
	case EncodingF64:
		return 8, F64, nil
	case EncodingText:
		return 1, Text, nil
	default:
		return 0, 0, fmt.Errorf("record: unknown encoding %d", e)
	}
}

// ForcedEncoding returns the encoding the batch packer must use for a
// given sample type. Integer samples report ok=false, meaning
// the caller's chosen encoding is honored instead.
func ForcedEncoding(t SampleType) (enc Encoding, forced bool) {
	switch t {
	case F32:
		return EncodingF32, true
	case F64:
		return EncodingF64, true
	case Text:
		return EncodingText, true
	default:
		return 0, false
	}
}

// Flag bits recognized at the record boundary.
//
//go:generate bitstringer -type=Flag -strip=Flag
type Flag uint32

const (
	FlagUnpackData Flag = 1 << iota
	FlagRecordList
	FlagSplitIsVersion
	FlagPPUpdateTime
	FlagFlushData
	FlagMaintainList
	FlagPackVer2
)

// Descriptor is a read-only projection of one parsed record. It is
// not retained by the engine after a call returns: any state the
// engine needs is copied into a Segment or a record-list entry.
type Descriptor struct {
	SID         string
	PubVersion  int
	StartTime   mstime.Time
	SampRate    float64 // Hz if positive, -seconds/sample if negative
	SampleCnt   int     // samples claimed by the header
	SampleType  SampleType
	Encoding    Encoding
	NumSamples  int    // samples actually decoded and present in DataSamples
	DataSamples []byte // decoded samples, NumSamples * SampleSize(SampleType) bytes
	RecLen      int    // encoded length in bytes, as parsed
	Extra       []byte // opaque extra headers, copied verbatim
	Flags       Flag
}

// EndTime returns the time of the last sample this descriptor
// declares, computed the same way the engine computes segment end
// times. A descriptor without time coverage (see Covered) yields
// StartTime.
func (d Descriptor) EndTime() mstime.Time {
	if !d.Covered() {
		// Header-only / samprate==0 records carry no numeric time
		// invariant; treat them
		// as spanning a single instant at their start time.
		return d.StartTime
	}
	return mstime.SampleTime(d.StartTime, int64(d.SampleCnt-1), d.SampRate)
}

// Covered reports whether this descriptor has real time coverage: a
// positive sample count and a non-zero sample rate.
func (d Descriptor) Covered() bool {
	return d.SampleCnt > 0 && d.SampRate != 0
}

// magic identifies this reference codec's wire format. It is not
// related to any real miniSEED magic number.
var magic = [4]byte{'M', 'S', 'T', 'R'}

const fixedHeaderSize = 4 /*magic*/ + 1 /*sidlen*/ + 1 /*pubversion*/ + 8 /*starttime*/ +
	8 /*samprate*/ + 4 /*samplecnt*/ + 1 /*sampletype*/ + 1 /*encoding*/ + 4 /*numsamples*/ +
	4 /*flags*/ + 2 /*extralen*/

// ParseRecord decodes one encoded record from buf, returning the
// Descriptor and the number of bytes consumed. It is the decode half
// of this package's record codec, paired with PackBatch/PackInit.
func ParseRecord(buf []byte) (Descriptor, int, error) {
	if len(buf) < fixedHeaderSize {
		return Descriptor{}, 0, fmt.Errorf("record: short buffer (%d bytes)", len(buf))
	}
	bd := &decoder{buf, binary.LittleEndian}
	var m [4]byte
	bd.bytes(m[:])
	if m != magic {
		return Descriptor{}, 0, fmt.Errorf("record: bad magic %q", m[:])
	}
	sidLen := int(bd.u8())
	if len(bd.buf) < sidLen {
		return Descriptor{}, 0, fmt.Errorf("record: truncated SID")
	}
	sid := string(bd.rawBytes(sidLen))
	pubVersion := int(bd.u8())
	startTime := mstime.Time(bd.i64())
	sampRate := math.Float64frombits(bd.u64())
	sampleCnt := int(bd.u32())
	sampleType := SampleType(bd.u8())
	encoding := Encoding(bd.u8())
	numSamples := int(bd.u32())
	flags := Flag(bd.u32())
	extraLen := int(bd.u16())
	if len(bd.buf) < extraLen {
		return Descriptor{}, 0, fmt.Errorf("record: truncated extra headers")
	}
	extra := append([]byte(nil), bd.rawBytes(extraLen)...)

	size, typ, err := EncodingSizeType(encoding)
	if err != nil {
		return Descriptor{}, 0, err
	}
	if typ != sampleType {
		return Descriptor{}, 0, fmt.Errorf("record: encoding %d does not match declared sample type %s", encoding, sampleType)
	}
	payload := numSamples * size
	if len(bd.buf) < payload {
		return Descriptor{}, 0, fmt.Errorf("record: truncated sample payload (want %d, have %d)", payload, len(bd.buf))
	}
	data := append([]byte(nil), bd.rawBytes(payload)...)

	consumed := len(buf) - len(bd.buf)
	d := Descriptor{
		SID:         sid,
		PubVersion:  pubVersion,
		StartTime:   startTime,
		SampRate:    sampRate,
		SampleCnt:   sampleCnt,
		SampleType:  sampleType,
		Encoding:    encoding,
		NumSamples:  numSamples,
		DataSamples: data,
		RecLen:      consumed,
		Extra:       extra,
		Flags:       flags,
	}
	return d, consumed, nil
}

// DataBounds returns the byte offset and size of the sample payload
// within an encoded record previously produced by PackBatch/
// PackInit or accepted by ParseRecord, for callers that want to keep a reference to the
// payload without re-decoding it (used by trace's record-list index).
func DataBounds(buf []byte) (offset, size int, err error) {
	if len(buf) < fixedHeaderSize {
		return 0, 0, fmt.Errorf("record: short buffer (%d bytes)", len(buf))
	}
	bd := &decoder{buf, binary.LittleEndian}
	bd.skip(4 + 1)
	sidLen := int(buf[4])
	bd.skip(sidLen)
	bd.skip(1 + 8 + 8 + 4)
	bd.skip(1) // sampletype
	encoding := Encoding(bd.u8())
	numSamples := int(bd.u32())
	bd.skip(4) // flags
	extraLen := int(bd.u16())
	bd.skip(extraLen)
	size2, _, err := EncodingSizeType(encoding)
	if err != nil {
		return 0, 0, err
	}
	off := len(buf) - len(bd.buf)
	return off, numSamples * size2, nil
}

// DecodeSamples copies count decoded samples of the given encoding
// out of bytes into out, returning the number of samples decoded.
// This reference codec stores samples already decoded, so this is a
// bounds-checked copy; a real Steim1/2 implementation would do actual
// bit-unpacking here.
func DecodeSamples(bytes []byte, encoding Encoding, count int, out []byte) (int, error) {
	size, _, err := EncodingSizeType(encoding)
	if err != nil {
		return 0, err
	}
	n := count * size
	if len(bytes) < n {
		return 0, fmt.Errorf("record: want %d decoded bytes, have %d", n, len(bytes))
	}
	if len(out) < n {
		return 0, fmt.Errorf("record: output buffer too small (%d < %d)", len(out), n)
	}
	copy(out, bytes[:n])
	return count, nil
}
