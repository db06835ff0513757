// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package canvas renders a byte-range window into fixed-width display
// cells (the "canvas"), and caches those renders at operation-index
// strides so a query at an arbitrary op_index only has to replay the
// events since the nearest cached stride boundary.
package canvas

import (
	"sort"

	"github.com/arborfield/heapviz/ranges"
	"github.com/arborfield/heapviz/scale"
	"github.com/arborfield/heapviz/trace"
)

// fillScale maps a cell's allocated fraction to the [0,1] output
// range consumers use for display (e.g. a fill color or bar height),
// the same role scale.OutputScale plays mapping a pixel weight into a
// color range in cmd/memheat/draw.go.
var fillScale = scale.NewOutputScale(0, 1)

// StatusKind is the four-way classification of a display cell.
type StatusKind int

const (
	Unused StatusKind = iota
	Allocated
	PartiallyAllocated
	Free
)

func (k StatusKind) String() string {
	switch k {
	case Unused:
		return "unused"
	case Allocated:
		return "allocated"
	case PartiallyAllocated:
		return "partial"
	case Free:
		return "free"
	default:
		return "invalid"
	}
}

// BlockStatus is the rendered state of one display cell.
type BlockStatus struct {
	Kind StatusKind
	// Address is the cell's own base address; always valid.
	Address uint64
	// ParentAddr and Size describe the allocation (live or most
	// recently freed) that currently governs this cell's status.
	// Both are 0 for Unused.
	ParentAddr uint64
	Size       uint64
	Stack      trace.StackID
	// FillRatio is the fraction of the cell currently allocated,
	// in [0,1]. 1 for Allocated, 0 for Free and Unused.
	FillRatio float64
}

// Canvas is a rendered window: windowLo..windowHi divided into cells
// of BlockSize bytes each.
type Canvas struct {
	WindowLo, WindowHi uint64
	BlockSize          uint64
	Cells              []BlockStatus
}

// NewEventIndex builds the overlap index Render and the snapshot
// cache query against. Built once per pool at engine construction.
func NewEventIndex(events []trace.Event) *ranges.IntervalIndex[trace.Event] {
	entries := make([]ranges.Entry[trace.Event], len(events))
	for i, ev := range events {
		entries[i] = ranges.Entry[trace.Event]{Lo: ev.Address, Hi: ev.End(), Val: ev}
	}
	return ranges.NewIntervalIndex(entries)
}

// cell is the mutable accumulator behind one BlockStatus, tracking
// enough state (remaining_bytes, touched, owning event) that it can
// be derived to a BlockStatus at any point and, separately, updated
// incrementally by a snapshot overlay (see snapshot.go).
type cell struct {
	lo, hi    uint64
	remaining uint64
	touched   bool
	owner     trace.Event
}

func newCells(windowLo, windowHi, blockSize uint64) []cell {
	if blockSize == 0 || windowHi <= windowLo {
		return nil
	}
	n := int((windowHi - windowLo + blockSize - 1) / blockSize)
	cells := make([]cell, n)
	for i := range cells {
		lo := windowLo + uint64(i)*blockSize
		hi := lo + blockSize
		if hi > windowHi {
			hi = windowHi
		}
		cells[i] = cell{lo: lo, hi: hi, remaining: hi - lo}
	}
	return cells
}

// apply folds one event into the cell's running state. It is a no-op
// if the event doesn't overlap the cell's byte range.
func (c *cell) apply(ev trace.Event) {
	ov := overlapBytes(ev, c.lo, c.hi)
	if ov == 0 {
		return
	}
	c.touched = true
	c.owner = ev
	width := c.hi - c.lo
	switch ev.Kind {
	case trace.EventAlloc:
		if ov > c.remaining {
			c.remaining = 0
		} else {
			c.remaining -= ov
		}
	case trace.EventFree:
		c.remaining += ov
		if c.remaining > width {
			c.remaining = width
		}
	}
}

func (c cell) status() BlockStatus {
	if !c.touched {
		return BlockStatus{Kind: Unused, Address: c.lo, Stack: trace.NoStack}
	}
	width := c.hi - c.lo
	bs := BlockStatus{Address: c.lo, ParentAddr: c.owner.Address, Size: c.owner.Size, Stack: c.owner.Stack}
	switch {
	case c.remaining == 0:
		bs.Kind = Allocated
		bs.FillRatio, _ = fillScale.Of(1)
	case c.remaining == width:
		bs.Kind = Free
		bs.FillRatio, _ = fillScale.Of(0)
	default:
		bs.Kind = PartiallyAllocated
		bs.FillRatio, _ = fillScale.Of(float64(width-c.remaining) / float64(width))
	}
	return bs
}

func overlapBytes(ev trace.Event, lo, hi uint64) uint64 {
	start := ev.Address
	if lo > start {
		start = lo
	}
	end := ev.End()
	if hi < end {
		end = hi
	}
	if end <= start {
		return 0
	}
	return end - start
}

// Render divides [windowLo, windowHi) into block-size cells and, for
// each, applies every event with OpIndex <= cutoff that overlaps the
// cell's byte range, newest-first, stopping early once the cell
// becomes fully Allocated.
func Render(idx *ranges.IntervalIndex[trace.Event], windowLo, windowHi, blockSize uint64, cutoff uint64) *Canvas {
	return toCanvas(windowLo, windowHi, blockSize, renderCells(idx, windowLo, windowHi, blockSize, cutoff))
}

// renderCells is Render without the final projection to BlockStatus,
// for callers (the snapshot cache) that want the raw accumulator to
// seed further incremental overlay rather than a read-only Canvas.
func renderCells(idx *ranges.IntervalIndex[trace.Event], windowLo, windowHi, blockSize uint64, cutoff uint64) []cell {
	cells := newCells(windowLo, windowHi, blockSize)
	for i := range cells {
		c := &cells[i]
		evs := idx.Find(c.lo, c.hi)
		filtered := evs[:0]
		for _, ev := range evs {
			if ev.OpIndex <= cutoff {
				filtered = append(filtered, ev)
			}
		}
		sort.Slice(filtered, func(a, b int) bool { return filtered[a].OpIndex > filtered[b].OpIndex })
		for _, ev := range filtered {
			c.apply(ev)
			if c.remaining == 0 {
				break
			}
		}
	}
	return cells
}

func toCanvas(windowLo, windowHi, blockSize uint64, cells []cell) *Canvas {
	out := &Canvas{WindowLo: windowLo, WindowHi: windowHi, BlockSize: blockSize, Cells: make([]BlockStatus, len(cells))}
	for i, c := range cells {
		out.Cells[i] = c.status()
	}
	return out
}

// Truncated is one run-length-encoded cell for map_at_truncated: runs
// of identical adjacent cells longer than a threshold collapse to a
// single entry plus a repeat count.
type Truncated struct {
	ParentAddr int64 // -1 when the run's cells are Unused
	Status     StatusKind
	Count      int
}

// CollapseRuns run-length-encodes cells with identical adjacent
// (Kind, ParentAddr): a run longer than truncateAfter collapses to a
// single Truncated entry carrying the run length; shorter runs are
// left as one Truncated(Count: 1) per cell, so a reader that ignores
// Count entirely still reconstructs the original cells exactly for
// anything under the threshold.
func CollapseRuns(cells []BlockStatus, truncateAfter int) []Truncated {
	var out []Truncated
	i := 0
	for i < len(cells) {
		parent := int64(-1)
		if cells[i].Kind != Unused {
			parent = int64(cells[i].ParentAddr)
		}
		j := i + 1
		for j < len(cells) {
			p := int64(-1)
			if cells[j].Kind != Unused {
				p = int64(cells[j].ParentAddr)
			}
			if cells[j].Kind != cells[i].Kind || p != parent {
				break
			}
			j++
		}
		runLen := j - i
		if runLen > truncateAfter {
			out = append(out, Truncated{ParentAddr: parent, Status: cells[i].Kind, Count: runLen})
		} else {
			for k := i; k < j; k++ {
				out = append(out, Truncated{ParentAddr: parent, Status: cells[i].Kind, Count: 1})
			}
		}
		i = j
	}
	return out
}
