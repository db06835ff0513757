// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package canvas

import (
	"sort"

	"github.com/arborfield/heapviz/ranges"
	"github.com/arborfield/heapviz/trace"
)

// snapshot is one cached stride boundary: the cell state after
// applying events [0, base·stride), plus the pending suffix of
// events up to the next boundary (or the end of the trace for the
// last snapshot).
type snapshot struct {
	cells   []cell
	pending []trace.Event
}

// SnapshotCache builds, once, a sequence of canvases at fixed
// operation-index strides so a query at an arbitrary op_index only
// has to replay the stride's worth of events since the nearest
// boundary rather than the whole trace.
type SnapshotCache struct {
	windowLo, windowHi uint64
	blockSize          uint64
	stride             int
	snapshots          []snapshot
	lastOp             uint64
	hasEvents          bool
}

// NewSnapshotCache builds the cache for one pool's full event stream
// and overlap index.
func NewSnapshotCache(idx *ranges.IntervalIndex[trace.Event], events []trace.Event, windowLo, windowHi, blockSize uint64, stride int) *SnapshotCache {
	if stride <= 0 {
		stride = 1000
	}
	c := &SnapshotCache{windowLo: windowLo, windowHi: windowHi, blockSize: blockSize, stride: stride}
	if len(events) > 0 {
		c.hasEvents = true
		c.lastOp = events[len(events)-1].OpIndex
	}

	n := len(events)
	for base := 0; base <= n; base += stride {
		cutoff := uint64(0)
		if base > 0 {
			cutoff = events[base-1].OpIndex
		}
		var cells []cell
		if base == 0 {
			cells = newCells(windowLo, windowHi, blockSize)
		} else {
			cells = renderCells(idx, windowLo, windowHi, blockSize, cutoff)
		}
		end := base + stride
		if end > n {
			end = n
		}
		c.snapshots = append(c.snapshots, snapshot{cells: cells, pending: events[base:end]})
		if base == n {
			break
		}
	}
	return c
}

// At returns the canvas as of op_index n (clamped to [0, lastOp]).
func (c *SnapshotCache) At(n uint64) *Canvas {
	if !c.hasEvents {
		return toCanvas(c.windowLo, c.windowHi, c.blockSize, newCells(c.windowLo, c.windowHi, c.blockSize))
	}
	if n > c.lastOp {
		n = c.lastOp
	}
	k := int(n) / c.stride
	if k >= len(c.snapshots) {
		k = len(c.snapshots) - 1
	}
	snap := c.snapshots[k]
	offset := int(n) - k*c.stride

	cells := make([]cell, len(snap.cells))
	copy(cells, snap.cells)

	limit := offset + 1
	if limit > len(snap.pending) {
		limit = len(snap.pending)
	}
	applyPending(cells, snap.pending[:limit], c.windowLo, c.blockSize)
	return toCanvas(c.windowLo, c.windowHi, c.blockSize, cells)
}

// applyPending folds this window's pending events onto the base
// snapshot's cells. Every pending event has a strictly higher
// op_index than anything already folded into the base, so a cell
// touched by more than one of them must still see them newest-first
// with the same early-exit-on-Allocated rule renderCells uses for a
// cold render — not one sequential oldest-first pass per event, which
// can leave a PartiallyAllocated or Free cell attributed to a
// different owning event than a cold Render of the same op_index
// would pick (see DESIGN.md).
func applyPending(cells []cell, pending []trace.Event, windowLo, blockSize uint64) {
	if blockSize == 0 || len(cells) == 0 || len(pending) == 0 {
		return
	}
	byCell := make([][]trace.Event, len(cells))
	for _, ev := range pending {
		lo, hi := cellIndexRange(ev, windowLo, blockSize, len(cells))
		for i := lo; i < hi; i++ {
			byCell[i] = append(byCell[i], ev)
		}
	}
	for i, evs := range byCell {
		if len(evs) == 0 {
			continue
		}
		c := &cells[i]
		if c.touched && c.remaining == 0 {
			continue // already Allocated in the base; spec.md §4.9 leaves it alone
		}
		sort.Slice(evs, func(a, b int) bool { return evs[a].OpIndex > evs[b].OpIndex })
		for _, ev := range evs {
			c.apply(ev)
			if c.remaining == 0 {
				break
			}
		}
	}
}

// cellIndexRange returns a half-open [start, end) cell-index range
// that contains every cell ev's byte range overlaps, given numCells
// evenly spaced cells starting at windowLo. The range can include
// cells ev does not overlap (one past an aligned end, or every cell
// when ev lies wholly below windowLo); cell.apply ignores those.
func cellIndexRange(ev trace.Event, windowLo, blockSize uint64, numCells int) (int, int) {
	lo, hi := ev.Address, ev.End()
	start := int64(0)
	if lo > windowLo {
		start = int64((lo - windowLo) / blockSize)
	}
	end := int64(numCells)
	if hi > windowLo {
		end = int64((hi-windowLo)/blockSize) + 1
	}
	if start < 0 {
		start = 0
	}
	if end > int64(numCells) {
		end = int64(numCells)
	}
	return int(start), int(end)
}
