// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usage

import "testing"

func TestBuildBucketsSpecWorkedExample(t *testing.T) {
	samples := []Sample{
		{BytesLive: 10, WallClockUS: 500},
		{BytesLive: 30, WallClockUS: 700},
		{BytesLive: 40, WallClockUS: 2100},
	}
	buckets := BuildBuckets(samples, 1000)
	if len(buckets) != 3 {
		t.Fatalf("got %d buckets, want 3", len(buckets))
	}
	want := []float64{0, 20, 40}
	for i, w := range want {
		if buckets[i].BytesLive != w {
			t.Errorf("bucket %d bytes_live = %v, want %v", i, buckets[i].BytesLive, w)
		}
	}
}

func TestBuildBucketsCarryForwardOnEmptyBucket(t *testing.T) {
	samples := []Sample{
		{BytesLive: 50, WallClockUS: 100, OpIndex: 0},
		{BytesLive: 90, WallClockUS: 3100, OpIndex: 5},
	}
	buckets := BuildBuckets(samples, 1000)
	if len(buckets) != 4 {
		t.Fatalf("got %d buckets, want 4", len(buckets))
	}
	// bucket 0: {100} -> 50. buckets 1,2: empty, carry forward 50.
	if buckets[1].BytesLive != 50 || buckets[2].BytesLive != 50 {
		t.Fatalf("empty buckets did not carry forward: %+v", buckets[1:3])
	}
	if buckets[1].OpIndex != 0 || buckets[2].OpIndex != 0 {
		t.Fatalf("empty buckets did not carry forward op_index: %+v", buckets[1:3])
	}
	if buckets[3].BytesLive != 90 {
		t.Fatalf("bucket 3 bytes_live = %v, want 90", buckets[3].BytesLive)
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		v, interval, want int64
	}{
		{500, 1000, 1000},
		{499, 1000, 0},
		{-500, 1000, -1000},
		{1500, 1000, 2000},
	}
	for _, c := range cases {
		if got := roundHalfAwayFromZero(c.v, c.interval); got != c.want {
			t.Errorf("roundHalfAwayFromZero(%d, %d) = %d, want %d", c.v, c.interval, got, c.want)
		}
	}
}
