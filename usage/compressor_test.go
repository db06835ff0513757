// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usage

import (
	"testing"

	"github.com/arborfield/heapviz/trace"
)

func TestCompressLiveSet(t *testing.T) {
	events := []trace.Event{
		{Kind: trace.EventAlloc, Address: 0x100, Size: 0x10, OpIndex: 0},
		{Kind: trace.EventAlloc, Address: 0x200, Size: 0x10, OpIndex: 1},
		{Kind: trace.EventFree, Address: 0x100, Size: 0x10, OpIndex: 2},
	}
	live := Compress(events)
	if len(live) != 1 || live[0].Address != 0x200 {
		t.Fatalf("got %+v, want a single live block at 0x200", live)
	}
}

func TestCompressPanicsOnUnmatchedFree(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an unmatched free")
		}
	}()
	Compress([]trace.Event{
		{Kind: trace.EventFree, Address: 0x100, OpIndex: 0},
	})
}
