// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package usage turns a parsed event stream into the statistics and
// live-allocation views the rest of the analysis pipeline consumes:
// compression to the live set, the incremental distinct-block count,
// per-event usage samples, and time-bucketed aggregates of those
// samples.
package usage

import (
	"fmt"

	"github.com/arborfield/heapviz/trace"
)

// Compress reduces an ordered slice of events to the set of
// allocations still live at the slice's end. An alloc appends to the
// live set; a free removes the first live allocation at the same
// address. A free with no matching live allocation is a fatal logic
// error: unlike the parser (which tolerates this for robustness and
// substitutes size 0), compression assumes the slice it's given is
// already internally consistent.
func Compress(events []trace.Event) []trace.Event {
	var live []trace.Event
	for _, ev := range events {
		switch ev.Kind {
		case trace.EventAlloc:
			live = append(live, ev)
		case trace.EventFree:
			i := indexOfAddress(live, ev.Address)
			if i < 0 {
				panic(fmt.Sprintf("usage: inconsistent trace: free at %#x op %d has no matching live allocation", ev.Address, ev.OpIndex))
			}
			live = append(live[:i], live[i+1:]...)
		}
	}
	return live
}

func indexOfAddress(live []trace.Event, addr uint64) int {
	for i, e := range live {
		if e.Address == addr {
			return i
		}
	}
	return -1
}
