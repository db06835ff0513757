// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func parseAll(t *testing.T, log string) []Event {
	t.Helper()
	p := NewParser(strings.NewReader(log), nil)
	it := p.Events()
	var evs []Event
	for it.Next() {
		evs = append(evs, it.Event)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return evs
}

func TestParseAllocFree(t *testing.T) {
	const log = `00000001: 00000000 |V|X|000|   1 us   0.500 s    < 0:0x0> + 100 10
00000002: 00000000 |V|X|000|   1 us   0.700 s    < 0:0x0> + 110 10
00000003: 00000000 |V|X|000|   1 us   0.900 s    < 0:0x0> - 100`

	evs := parseAll(t, log)
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3", len(evs))
	}
	if evs[0].Kind != EventAlloc || evs[0].Address != 0x100 || evs[0].Size != 0x10 {
		t.Errorf("event 0 = %+v", evs[0])
	}
	if evs[0].WallClockUS != 500000 {
		t.Errorf("event 0 wallclock = %d, want 500000", evs[0].WallClockUS)
	}
	if evs[2].Kind != EventFree || evs[2].Address != 0x100 || evs[2].Size != 0x10 {
		t.Errorf("event 2 = %+v (free size should be recovered from the matching alloc)", evs[2])
	}
	for i, ev := range evs {
		if ev.OpIndex != uint64(i) {
			t.Errorf("event %d has OpIndex %d, want %d", i, ev.OpIndex, i)
		}
	}
}

func TestFreeWithNoMatchingAlloc(t *testing.T) {
	const log = `00000001: 00000000 |V|X|000|   1 us   0.100 s    < 0:0x0> - 100`
	evs := parseAll(t, log)
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	if evs[0].Size != 0 {
		t.Errorf("unmatched free size = %d, want 0", evs[0].Size)
	}
}

func TestStackFrameBeforeFirstRecordIsFatal(t *testing.T) {
	const log = `00000001: 00000000 |V|X|000|   1 us   0.100 s    < 0:0x100> ^ 100 [2a]`
	p := NewParser(strings.NewReader(log), nil)
	it := p.Events()
	if it.Next() {
		t.Fatalf("expected no events, got %+v", it.Event)
	}
	var perr *ParseError
	if err := it.Err(); err == nil {
		t.Fatal("expected a ParseError, got nil")
	} else if !asParseError(err, &perr) {
		t.Fatalf("expected a *ParseError, got %T: %v", err, err)
	}
}

func asParseError(err error, target **ParseError) bool {
	if pe, ok := err.(*ParseError); ok {
		*target = pe
		return true
	}
	return false
}

func TestStackFrameAttachesToMatchingPending(t *testing.T) {
	const log = `00000001: 00000000 |V|X|000|   1 us   0.100 s    < 0:0x100> + 100 10
00000002: 00000000 |V|X|000|   1 us   0.100 s    < 0:0x100> ^ 100 [2a]
00000003: 00000000 |V|X|000|   1 us   0.100 s    < 0:0x200> ^ 200 [2b]
00000004: 00000000 |V|X|000|   1 us   0.200 s    < 0:0x0> - 100`

	p := NewParser(strings.NewReader(log), fakeSymbolizer{})
	it := p.Events()
	var evs []Event
	for it.Next() {
		evs = append(evs, it.Event)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	stack := p.Stacks().Text(evs[0].Stack)
	if stack != "sym:0x2a" {
		t.Errorf("alloc stack = %q, want %q (the 0x200 frame should be dropped, it doesn't match)", stack, "sym:0x2a")
	}
}

type fakeSymbolizer struct{}

func (fakeSymbolizer) Lookup(addr uint64) string {
	return fmt.Sprintf("sym:0x%x", addr)
}

func TestWireRoundTrip(t *testing.T) {
	p := NewParser(strings.NewReader(`00000001: 00000000 |V|X|000|   1 us   0.100 s    < 0:0x100> + 100 10
00000002: 00000000 |V|X|000|   1 us   0.100 s    < 0:0x100> ^ 100 [2a]`), fakeSymbolizer{})
	it := p.Events()
	if !it.Next() {
		t.Fatalf("expected an event: %v", it.Err())
	}
	orig := it.Event
	w := ToWire(orig, p.Stacks())

	data, err := json.Marshal(w)
	if err != nil {
		t.Fatal(err)
	}
	var w2 Wire
	if err := json.Unmarshal(data, &w2); err != nil {
		t.Fatal(err)
	}

	dst := NewStackTable()
	got := FromWire(w2, dst)
	if got.Kind != orig.Kind || got.Address != orig.Address || got.Size != orig.Size ||
		got.OpIndex != orig.OpIndex || got.WallClockUS != orig.WallClockUS {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, orig)
	}
	if dst.Text(got.Stack) != p.Stacks().Text(orig.Stack) {
		t.Errorf("round trip stack mismatch: got %q, want %q", dst.Text(got.Stack), p.Stacks().Text(orig.Stack))
	}
}

func TestPartitionIntoPools(t *testing.T) {
	events := []Event{
		{Kind: EventAlloc, Address: 0x10, Size: 0x10, OpIndex: 0},
		{Kind: EventAlloc, Address: 0x1010, Size: 0x10, OpIndex: 1},
		{Kind: EventFree, Address: 0x10, Size: 0x10, OpIndex: 2},
	}
	pools := []Pool{
		{Name: "a", Start: 0, Size: 0x1000},
		{Name: "b", Start: 0x1000, Size: 0x1000},
	}
	parts, _ := Partition(events, pools)
	if len(parts[pools[0]]) != 2 {
		t.Errorf("pool a has %d events, want 2", len(parts[pools[0]]))
	}
	if len(parts[pools[1]]) != 1 {
		t.Errorf("pool b has %d events, want 1", len(parts[pools[1]]))
	}
	for _, ev := range parts[pools[0]] {
		if ev.OpIndex > 1 {
			t.Errorf("pool a op index %d not densely re-stamped", ev.OpIndex)
		}
	}
}

func TestPoolBoundaryIsHalfOpenOnLowBound(t *testing.T) {
	p := Pool{Start: 0x100, Size: 0x100} // [0x100, 0x200)
	if !p.Contains(0x100, 0x10) {
		t.Error("event starting exactly at pool.Start should be contained")
	}
	if p.Contains(0x1f0, 0x10) {
		t.Error("event ending exactly at pool.End() should not be contained")
	}
}
