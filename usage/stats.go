// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usage

import "github.com/arborfield/heapviz/trace"

// Sample is the per-event usage snapshot produced by BuildStats.
type Sample struct {
	BytesLive         int64
	DistinctBlocks    int
	LargestFreeGap    uint64
	FreeGapCount      int
	FreeFragmentation float64
	OpIndex           uint64
	WallClockUS       int64
}

// Stats is the result of a full BuildStats pass: the per-event
// samples plus the running maxima spec.md §4.6 asks the engine to
// expose (for axis scaling without a second pass over the data).
type Stats struct {
	Samples          []Sample
	MaxUsage         int64
	MaxDistinctBlocks int
	MaxFreeBlocks    int
}

// BuildStats makes one linear pass over events, maintaining running
// bytes_live and an incremental DistinctBlockCounter, and emits one
// Sample per event.
func BuildStats(events []trace.Event) Stats {
	var st Stats
	st.Samples = make([]Sample, 0, len(events))

	counter := NewDistinctBlockCounter()
	var bytesLive int64

	for _, ev := range events {
		switch ev.Kind {
		case trace.EventAlloc:
			bytesLive += int64(ev.Size)
		case trace.EventFree:
			bytesLive -= int64(ev.Size)
		}
		counter.Push(ev)

		gaps := counter.FreeGaps()
		var totalFree uint64
		var largest uint64
		for _, g := range gaps {
			s := g.Size()
			totalFree += s
			if s > largest {
				largest = s
			}
		}

		frag := 0.0
		if totalFree > 0 {
			frag = 1 - float64(largest)/float64(totalFree)
		}

		distinct := counter.DistinctBlocks()
		sample := Sample{
			BytesLive:         bytesLive,
			DistinctBlocks:    distinct,
			LargestFreeGap:    largest,
			FreeGapCount:      len(gaps),
			FreeFragmentation: frag,
			OpIndex:           ev.OpIndex,
			WallClockUS:       ev.WallClockUS,
		}
		st.Samples = append(st.Samples, sample)

		if bytesLive > st.MaxUsage {
			st.MaxUsage = bytesLive
		}
		if distinct > st.MaxDistinctBlocks {
			st.MaxDistinctBlocks = distinct
		}
		if len(gaps) > st.MaxFreeBlocks {
			st.MaxFreeBlocks = len(gaps)
		}
	}
	return st
}
