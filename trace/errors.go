// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import "errors"

// Error kinds surfaced at the engine boundary. Errors the engine
// raises itself are one of these or wrap one with
// fmt.Errorf("...: %w", ...), so callers can distinguish kinds with
// errors.Is regardless of the human-readable message attached. Errors
// from record.PackBatch, record.PackInit, the inner record.Packer, and
// a Pack emit callback are returned as they come, without a wrapper.
var (
	// ErrAllocation reports an out-of-memory condition while
	// growing a buffer or allocating a node. The reference
	// implementation has no allocator override and grows every
	// buffer with append, so nothing in this package returns it;
	// kept distinct for callers migrating from the C library.
	ErrAllocation = errors.New("trace: allocation failed")

	// ErrSampleTypeMismatch reports an attempt to merge samples of
	// different types into one segment.
	ErrSampleTypeMismatch = errors.New("trace: sample type mismatch")

	// ErrUnknownSampleType reports that samplesize() returned 0
	// for a declared sample type.
	ErrUnknownSampleType = errors.New("trace: unknown sample type")

	// ErrTimeCompute reports that a record's end time could not
	// be computed.
	ErrTimeCompute = errors.New("trace: could not compute end time")

	// ErrInvariant reports an internal invariant violation, such as a
	// merge that would bridge two segments no longer adjacent in the
	// list (a third segment sits between them, and absorbing past it
	// would silently drop its samples).
	ErrInvariant = errors.New("trace: invariant violated")

	// ErrCodec reports that the upstream parser/packer/decoder
	// failed.
	ErrCodec = errors.New("trace: codec error")

	// ErrIO reports that a file seek/read failed while unpacking a
	// record list.
	ErrIO = errors.New("trace: I/O error")
)
