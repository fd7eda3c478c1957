// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"fmt"
	"os"
	"sync"

	"github.com/earthscope-oss/mseedtrace/mstime"
	"github.com/earthscope-oss/mseedtrace/record"
)

// Locator resolves a record-list entry back to the bytes of its
// source record.
// Implementations must be safe to call after the record that created
// them has gone out of scope.
type Locator interface {
	// ReadAt returns the encoded record bytes this Locator refers
	// to. The returned slice is only valid until the next call
	// through the same Locator.
	ReadAt() ([]byte, error)
}

// BufferLocator locates a record that is still resident in memory.
type BufferLocator struct {
	Buf []byte
}

func (l BufferLocator) ReadAt() ([]byte, error) { return l.Buf, nil }

// FileLocator locates a record by offset and length within an
// already-open file.
type FileLocator struct {
	File   *os.File
	Offset int64
	Length int
}

func (l FileLocator) ReadAt() ([]byte, error) {
	buf := make([]byte, l.Length)
	n, err := l.File.ReadAt(buf, l.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return buf[:n], nil
}

// NamedFileLocator locates a record by filename and offset, opening
// (and caching) the file handle lazily, for records whose file isn't
// already open. Cache is optional: callers normally share one
// *FileHandleCache across every NamedFileLocator produced by one Unpack
// (or similar bounded-lifetime) call, then Close it when done, so
// handles opened to satisfy that call don't outlive it. A nil Cache falls back to
// opening (and immediately closing) the file on every ReadAt, which
// is correct but forgoes the sharing a real cache provides.
type NamedFileLocator struct {
	Filename string
	Offset   int64
	Length   int
	Cache    *FileHandleCache
}

func (l NamedFileLocator) ReadAt() ([]byte, error) {
	if l.Cache == nil {
		f, err := os.Open(l.Filename)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		defer f.Close()
		buf := make([]byte, l.Length)
		n, err := f.ReadAt(buf, l.Offset)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		return buf[:n], nil
	}
	f, err := l.Cache.open(l.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	buf := make([]byte, l.Length)
	n, err := f.ReadAt(buf, l.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return buf[:n], nil
}

// FileHandleCache keeps an unbounded-but-scoped set of open file
// handles so that many NamedFileLocators referring to the same
// backing file within one bounded operation don't each open it.
// Construct one with NewFileHandleCache per operation (e.g. one
// RecordList.Unpack call over many entries) and Close it when that
// operation returns; the cache is not meant to outlive its caller.
type FileHandleCache struct {
	mu    sync.Mutex
	files map[string]*os.File
}

// NewFileHandleCache returns an empty, ready-to-use handle cache.
func NewFileHandleCache() *FileHandleCache {
	return &FileHandleCache{files: make(map[string]*os.File)}
}

func (c *FileHandleCache) open(name string) (*os.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.files[name]; ok {
		return f, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	c.files[name] = f
	return f, nil
}

// Close closes every file handle this cache has opened, returning the
// first error encountered, if any. The cache is empty and reusable
// afterward.
func (c *FileHandleCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for name, f := range c.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.files, name)
	}
	return first
}

// Whence describes where a new record-list entry was appended
// relative to the rest of the segment's samples.
type Whence int

const (
	WhenceNewList Whence = iota // the entry that created the record list
	WhenceEnd                   // appended to the end of the segment
	WhenceStart                 // prepended to the start of the segment
)

// RecordEntry is one back-reference in a segment's record list: the
// time span one contributing record covered, and how to find its
// bytes again.
type RecordEntry struct {
	Start, End mstime.Time
	Locator    Locator
	Whence     Whence
}

// RecordList is the ordered list of RecordEntry values contributing to
// one Segment, maintained only when the caller requests
// record.FlagRecordList. Entries are stored oldest-appended-first
// regardless of Whence; consumers that need time order should sort by
// Start.
type RecordList struct {
	Entries []RecordEntry
}

// append adds one entry recording that rec (spanning [rec.StartTime,
// endtime]) contributed to the owning segment via loc, positioned by
// whence.
func (rl *RecordList) append(rec record.Descriptor, endtime mstime.Time, loc Locator, whence Whence) {
	rl.Entries = append(rl.Entries, RecordEntry{
		Start:   rec.StartTime,
		End:     endtime,
		Locator: loc,
		Whence:  whence,
	})
}

// absorb appends other's entries onto rl, preserving their relative
// order.
func (rl *RecordList) absorb(other *RecordList) {
	rl.Entries = append(rl.Entries, other.Entries...)
}

// Unpack resolves every entry in rl back to its source record bytes
// and parses each one, failing with ErrCodec if an entry does not
// parse and with ErrSampleTypeMismatch if any entry's declared sample
// type disagrees with the segment's.
func (rl *RecordList) Unpack(segType record.SampleType) ([]record.Descriptor, error) {
	out := make([]record.Descriptor, 0, len(rl.Entries))
	for i, e := range rl.Entries {
		buf, err := e.Locator.ReadAt()
		if err != nil {
			return nil, fmt.Errorf("record list entry %d: %w", i, err)
		}
		d, _, err := record.ParseRecord(buf)
		if err != nil {
			return nil, fmt.Errorf("record list entry %d: %w: %v", i, ErrCodec, err)
		}
		if d.NumSamples > 0 && d.SampleType != segType {
			return nil, fmt.Errorf("record list entry %d: %w: entry has %v, segment has %v", i, ErrSampleTypeMismatch, d.SampleType, segType)
		}
		out = append(out, d)
	}
	return out, nil
}
