// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usage

import (
	"testing"

	"github.com/arborfield/heapviz/trace"
)

func TestBuildStatsTracksBytesLiveAndMax(t *testing.T) {
	events := []trace.Event{
		{Kind: trace.EventAlloc, Address: 0x100, Size: 10, OpIndex: 0, WallClockUS: 0},
		{Kind: trace.EventAlloc, Address: 0x200, Size: 20, OpIndex: 1, WallClockUS: 10},
		{Kind: trace.EventFree, Address: 0x100, Size: 10, OpIndex: 2, WallClockUS: 20},
	}
	st := BuildStats(events)
	if len(st.Samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(st.Samples))
	}
	if st.Samples[0].BytesLive != 10 {
		t.Errorf("sample 0 bytes_live = %d, want 10", st.Samples[0].BytesLive)
	}
	if st.Samples[1].BytesLive != 30 {
		t.Errorf("sample 1 bytes_live = %d, want 30", st.Samples[1].BytesLive)
	}
	if st.Samples[2].BytesLive != 20 {
		t.Errorf("sample 2 bytes_live = %d, want 20", st.Samples[2].BytesLive)
	}
	if st.MaxUsage != 30 {
		t.Errorf("MaxUsage = %d, want 30", st.MaxUsage)
	}
	if st.MaxDistinctBlocks != 2 {
		t.Errorf("MaxDistinctBlocks = %d, want 2", st.MaxDistinctBlocks)
	}
}

func TestBuildStatsFragmentationZeroWithNoFreeSpace(t *testing.T) {
	events := []trace.Event{
		{Kind: trace.EventAlloc, Address: 0x100, Size: 10, OpIndex: 0},
	}
	st := BuildStats(events)
	if st.Samples[0].FreeFragmentation != 0 {
		t.Errorf("FreeFragmentation = %v, want 0 with no free gaps yet", st.Samples[0].FreeFragmentation)
	}
}
