// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import "github.com/earthscope-oss/mseedtrace/internal/rand64"

// maxHeight bounds the skip list's forward-pointer array.
const maxHeight = 16

// seed is the fixed RNG seed every List starts from, so that two
// Lists fed the same sequence of Add calls build bit-for-bit
// identical skip-list structure.
const seed = 1

// cmpKey orders (sid, keyVersion) against an existing node: negative
// if the key sorts before n, zero if equal, positive if after.
func cmpKey(sid string, keyVersion int, n *ID) int {
	if sid != n.SID {
		if sid < n.SID {
			return -1
		}
		return 1
	}
	if keyVersion != n.keyVersion {
		if keyVersion < n.keyVersion {
			return -1
		}
		return 1
	}
	return 0
}

// findID searches the skip list for (sid, keyVersion). It always
// returns a full predecessor array (one entry per level up to
// maxHeight), which insertID can use directly without re-searching.
func (l *List) findID(sid string, keyVersion int) (found *ID, prev [maxHeight]*ID) {
	x := l.head
	for lvl := maxHeight - 1; lvl >= 0; lvl-- {
		for x.next[lvl] != nil && cmpKey(sid, keyVersion, x.next[lvl]) > 0 {
			x = x.next[lvl]
		}
		prev[lvl] = x
	}
	if cand := prev[0].next[0]; cand != nil && cmpKey(sid, keyVersion, cand) == 0 {
		return cand, prev
	}
	return nil, prev
}

// insertID splices a brand new ID for (sid, keyVersion) into the skip
// list at a randomly chosen height, using prev as computed by a prior
// findID call for the same key.
func (l *List) insertID(sid string, keyVersion int, prev [maxHeight]*ID) *ID {
	h := l.rng.Height(maxHeight)
	node := &ID{SID: sid, keyVersion: keyVersion, height: h, next: make([]*ID, h)}
	for lvl := 0; lvl < h; lvl++ {
		node.next[lvl] = prev[lvl].next[lvl]
		prev[lvl].next[lvl] = node
	}
	l.count++
	return node
}

// removeID unlinks node from the skip list, repointing every
// predecessor at every level below node's height.
func (l *List) removeID(node *ID, prev [maxHeight]*ID) {
	for lvl := 0; lvl < node.height; lvl++ {
		if prev[lvl].next[lvl] == node {
			prev[lvl].next[lvl] = node.next[lvl]
		}
	}
	l.count--
}

// removeIDIfEmpty drops id from the skip list once its last segment
// has been removed (by Pack fully draining it, or any other caller
// that empties an ID down to zero segments).
func (l *List) removeIDIfEmpty(id *ID) {
	if id.NumSegments > 0 {
		return
	}
	_, prev := l.findID(id.SID, id.keyVersion)
	l.removeID(id, prev)
}

// First returns the ID with the smallest (sid, keyVersion), or nil if
// the list is empty. Walking via ID.Next repeatedly (level 0) visits
// every ID in ascending order.
func (l *List) First() *ID {
	return l.head.next[0]
}

// Next returns the ID immediately after id in (sid, keyVersion)
// order, or nil if id is the last.
func (id *ID) Next() *ID {
	return id.next[0]
}

func newSkipListHead() *ID {
	return &ID{height: maxHeight, next: make([]*ID, maxHeight)}
}

func newRNG() *rand64.Source {
	return rand64.NewSource(seed)
}
