// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import "encoding/binary"

// decoder is a cursor over an encoded record: each accessor consumes
// bytes from the front of buf and advances it.
type decoder struct {
	buf   []byte
	order binary.ByteOrder
}

func (b *decoder) skip(n int) {
	b.buf = b.buf[n:]
}

func (b *decoder) bytes(x []byte) {
	copy(x, b.buf)
	b.buf = b.buf[len(x):]
}

func (b *decoder) rawBytes(n int) []byte {
	x := b.buf[:n]
	b.buf = b.buf[n:]
	return x
}

func (b *decoder) u8() uint8 {
	x := b.buf[0]
	b.buf = b.buf[1:]
	return x
}

func (b *decoder) u16() uint16 {
	x := b.order.Uint16(b.buf)
	b.buf = b.buf[2:]
	return x
}

func (b *decoder) u32() uint32 {
	x := b.order.Uint32(b.buf)
	b.buf = b.buf[4:]
	return x
}

func (b *decoder) u64() uint64 {
	x := b.order.Uint64(b.buf)
	b.buf = b.buf[8:]
	return x
}

func (b *decoder) i64() int64 {
	return int64(b.u64())
}

// encoder is the mirror-image cursor used by encodeOne, appending to
// buf rather than consuming from it.
type encoder struct {
	buf   []byte
	order binary.ByteOrder
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) u16(v uint16) {
	var b [2]byte
	e.order.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u32(v uint32) {
	var b [4]byte
	e.order.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u64(v uint64) {
	var b [8]byte
	e.order.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) i64(v int64) {
	e.u64(uint64(v))
}

func (e *encoder) bytes(v []byte) {
	e.buf = append(e.buf, v...)
}
