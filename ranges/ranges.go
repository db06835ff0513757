// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ranges provides a static interval index over half-open
// byte ranges, generalized from a disjoint-range point lookup (as in
// perfsession.Ranges) to multi-valued overlap queries: several
// entries may cover the same byte.
package ranges

import "sort"

// IntervalIndex maps half-open ranges [lo, hi) to values of type T.
// It is built once via NewIntervalIndex and is immutable afterward.
type IntervalIndex[T any] struct {
	ents    []entry[T]
	maxHiAt []uint64 // maxHiAt[i] = max(hi) over ents[:i+1], sorted by lo
}

type entry[T any] struct {
	lo, hi uint64
	val    T
}

// Entry pairs a range with its value, the input shape for
// NewIntervalIndex.
type Entry[T any] struct {
	Lo, Hi uint64
	Val    T
}

// NewIntervalIndex builds an index over entries. Order among entries
// with equal ranges is preserved (spec.md §4.3: "ties among equal
// ranges are returned in insertion order").
func NewIntervalIndex[T any](entries []Entry[T]) *IntervalIndex[T] {
	ents := make([]entry[T], len(entries))
	for i, e := range entries {
		ents[i] = entry[T]{e.Lo, e.Hi, e.Val}
	}
	sort.SliceStable(ents, func(i, j int) bool { return ents[i].lo < ents[j].lo })

	maxHi := make([]uint64, len(ents))
	running := uint64(0)
	for i, e := range ents {
		if e.hi > running {
			running = e.hi
		}
		maxHi[i] = running
	}
	return &IntervalIndex[T]{ents: ents, maxHiAt: maxHi}
}

// Find returns every value whose range intersects [lo, hi), in
// insertion order among ties, sorted by range start.
func (idx *IntervalIndex[T]) Find(lo, hi uint64) []T {
	if len(idx.ents) == 0 || lo >= hi {
		return nil
	}

	// Entries are sorted by lo; maxHiAt lets us skip the prefix
	// that can't possibly reach hi. Find the first index whose
	// running max-hi exceeds lo — before that, nothing overlaps.
	start := sort.Search(len(idx.maxHiAt), func(i int) bool {
		return idx.maxHiAt[i] > lo
	})

	var out []T
	for i := start; i < len(idx.ents); i++ {
		e := idx.ents[i]
		if e.lo >= hi {
			break
		}
		if e.lo < hi && lo < e.hi {
			out = append(out, e.val)
		}
	}
	return out
}

// Len returns the number of entries in the index.
func (idx *IntervalIndex[T]) Len() int {
	return len(idx.ents)
}
