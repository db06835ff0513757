// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

// Partition splits events into one slice per pool and re-stamps
// OpIndex densely within each resulting slice, so per-pool op
// indices remain contiguous (spec.md §4.10). If pools is empty, a
// single synthetic pool covering the minimum/maximum address touched
// by events is synthesized, per spec.md §6.
func Partition(events []Event, pools []Pool) (map[Pool][]Event, []Pool) {
	if len(pools) == 0 {
		pools = syntheticPools(events)
	}

	out := make(map[Pool][]Event, len(pools))
	for _, p := range pools {
		out[p] = nil
	}

	for _, ev := range events {
		for _, p := range pools {
			if p.Contains(ev.Address, ev.Size) {
				out[p] = append(out[p], ev)
				break
			}
		}
	}

	for p, evs := range out {
		for i := range evs {
			evs[i].OpIndex = uint64(i)
		}
		out[p] = evs
	}

	return out, pools
}

// defaultSyntheticSize is the window an empty trace gets when there's
// no pool declaration and no event address to derive a range from
// (spec: an empty trace still reports map_at(0) as all Unused, which
// needs at least one cell to paint). Matches the pool size spec.md's
// own end-to-end scenarios assume, [0, 0x400).
const defaultSyntheticSize = 0x400

func syntheticPools(events []Event) []Pool {
	if len(events) == 0 {
		return []Pool{{Name: "default", Start: 0, Size: defaultSyntheticSize}}
	}
	lo, hi := events[0].Address, events[0].End()
	for _, ev := range events[1:] {
		if ev.Address < lo {
			lo = ev.Address
		}
		if ev.End() > hi {
			hi = ev.End()
		}
	}
	// One byte past the highest event end, so that event still passes
	// Contains' strict upper-bound check.
	return []Pool{{Name: "default", Start: lo, Size: hi - lo + 1}}
}
