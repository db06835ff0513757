// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usage

import (
	"sort"

	"github.com/arborfield/heapviz/trace"
)

// Gap is a maximal contiguous address range with no live allocation,
// within the span of addresses the counter has ever seen touched.
type Gap struct {
	Start, End uint64
}

// Size returns End - Start.
func (g Gap) Size() uint64 {
	return g.End - g.Start
}

// DistinctBlockCounter incrementally tracks the live allocation set
// and answers merged-region queries over it. It holds a live map
// keyed by start address for O(1) insert/delete, plus a sorted
// merged-span cache that's lazily rebuilt on the next query after any
// Push (design note: two structures — the map never needs re-sorting,
// and the merged spans are thrown away and rebuilt rather than
// patched, since deletion from a sorted interval structure is the
// expensive case).
type DistinctBlockCounter struct {
	live map[uint64]uint64 // address -> size

	touchedLo, touchedHi uint64
	touched              bool

	merged []Gap // reused as "merged live spans" before the gap pass
	dirty  bool
}

// NewDistinctBlockCounter returns an empty counter.
func NewDistinctBlockCounter() *DistinctBlockCounter {
	return &DistinctBlockCounter{live: make(map[uint64]uint64)}
}

// Push applies ev to the live set.
func (c *DistinctBlockCounter) Push(ev trace.Event) {
	switch ev.Kind {
	case trace.EventAlloc:
		c.live[ev.Address] = ev.Size
		lo, hi := ev.Address, ev.Address+ev.Size
		if !c.touched || lo < c.touchedLo {
			c.touchedLo = lo
		}
		if !c.touched || hi > c.touchedHi {
			c.touchedHi = hi
		}
		c.touched = true
	case trace.EventFree:
		delete(c.live, ev.Address)
	}
	c.dirty = true
}

// rebuild recomputes the merged live spans from the live map. Called
// lazily so a run of several Pushes between queries costs one rebuild
// instead of one per push.
func (c *DistinctBlockCounter) rebuild() {
	if !c.dirty {
		return
	}
	spans := make([]Gap, 0, len(c.live))
	for addr, size := range c.live {
		spans = append(spans, Gap{addr, addr + size})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	merged := spans[:0]
	for _, s := range spans {
		if n := len(merged); n > 0 && s.Start <= merged[n-1].End {
			if s.End > merged[n-1].End {
				merged[n-1].End = s.End
			}
		} else {
			merged = append(merged, s)
		}
	}
	c.merged = merged
	c.dirty = false
}

// DistinctBlocks returns the number of maximal merged live regions.
func (c *DistinctBlockCounter) DistinctBlocks() int {
	c.rebuild()
	return len(c.merged)
}

// FreeGaps returns the maximal free regions between merged live
// blocks, bounded by the span of addresses ever touched by an
// allocation (not the pool's full declared range: a byte this pool
// never allocated into is neither live nor a "free gap", it's simply
// outside anything the counter has observed).
func (c *DistinctBlockCounter) FreeGaps() []Gap {
	c.rebuild()
	if !c.touched {
		return nil
	}
	var gaps []Gap
	cur := c.touchedLo
	for _, m := range c.merged {
		if m.Start > cur {
			gaps = append(gaps, Gap{cur, m.Start})
		}
		if m.End > cur {
			cur = m.End
		}
	}
	if cur < c.touchedHi {
		gaps = append(gaps, Gap{cur, c.touchedHi})
	}
	return gaps
}

// LargestFreeGap returns the size of the largest free gap, or 0 if
// there are none.
func (c *DistinctBlockCounter) LargestFreeGap() uint64 {
	var max uint64
	for _, g := range c.FreeGaps() {
		if s := g.Size(); s > max {
			max = s
		}
	}
	return max
}
