// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usage

import (
	"reflect"
	"testing"

	"github.com/arborfield/heapviz/trace"
)

func TestDistinctBlockCounterMergesAdjacent(t *testing.T) {
	c := NewDistinctBlockCounter()
	c.Push(trace.Event{Kind: trace.EventAlloc, Address: 0x100, Size: 0x10})
	c.Push(trace.Event{Kind: trace.EventAlloc, Address: 0x110, Size: 0x10})
	if got := c.DistinctBlocks(); got != 1 {
		t.Fatalf("DistinctBlocks() = %d, want 1 (adjacent spans should merge)", got)
	}
}

func TestDistinctBlockCounterFreeGapsBoundedByTouchedRange(t *testing.T) {
	c := NewDistinctBlockCounter()
	c.Push(trace.Event{Kind: trace.EventAlloc, Address: 0, Size: 0x100})
	c.Push(trace.Event{Kind: trace.EventAlloc, Address: 0x110, Size: 0x10})
	c.Push(trace.Event{Kind: trace.EventFree, Address: 0, Size: 0x100})

	// The freed block [0, 0x100) stays inside the touched range
	// [0, 0x120), so it merges with [0x100, 0x110) into one gap; nothing
	// above 0x120 is reported.
	want := []Gap{{0, 0x110}}
	if got := c.FreeGaps(); !reflect.DeepEqual(got, want) {
		t.Fatalf("FreeGaps() = %+v, want %+v", got, want)
	}
	if got := c.LargestFreeGap(); got != 0x110 {
		t.Fatalf("LargestFreeGap() = %#x, want 0x110", got)
	}
}

func TestDistinctBlockCounterEmpty(t *testing.T) {
	c := NewDistinctBlockCounter()
	if got := c.DistinctBlocks(); got != 0 {
		t.Fatalf("DistinctBlocks() = %d, want 0", got)
	}
	if got := c.FreeGaps(); got != nil {
		t.Fatalf("FreeGaps() = %v, want nil", got)
	}
	if got := c.LargestFreeGap(); got != 0 {
		t.Fatalf("LargestFreeGap() = %d, want 0", got)
	}
}
