// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ranges

import "testing"

func TestFindOverlap(t *testing.T) {
	idx := NewIntervalIndex([]Entry[string]{
		{Lo: 0, Hi: 10, Val: "a"},
		{Lo: 5, Hi: 15, Val: "b"},
		{Lo: 20, Hi: 30, Val: "c"},
	})

	check := func(lo, hi uint64, want ...string) {
		t.Helper()
		got := idx.Find(lo, hi)
		if len(got) != len(want) {
			t.Fatalf("Find(%d,%d) = %v, want %v", lo, hi, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Find(%d,%d) = %v, want %v", lo, hi, got, want)
			}
		}
	}

	check(0, 1, "a")
	check(9, 10, "a", "b") // byte 9 lies inside both "a" [0,10) and "b" [5,15)
	check(9, 11, "a", "b")
	check(15, 16) // half-open: 15 not covered by "b"
	check(20, 21, "c")
	check(100, 200)
}

func TestFindTiesPreserveInsertionOrder(t *testing.T) {
	idx := NewIntervalIndex([]Entry[int]{
		{Lo: 0, Hi: 10, Val: 1},
		{Lo: 0, Hi: 10, Val: 2},
		{Lo: 0, Hi: 10, Val: 3},
	})
	got := idx.Find(0, 10)
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := NewIntervalIndex[int](nil)
	if got := idx.Find(0, 100); got != nil {
		t.Errorf("Find on empty index = %v, want nil", got)
	}
}
