// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine is the facade a shell (CLI or HTTP driver) calls
// into: it owns one analysis pipeline per memory pool and answers
// the usage-series, map, history and address queries the rest of the
// system is built to serve. It is the direct analogue of
// cmd/memlat's database type.
package engine

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/arborfield/heapviz/canvas"
	"github.com/arborfield/heapviz/ranges"
	"github.com/arborfield/heapviz/symbolize"
	"github.com/arborfield/heapviz/trace"
	"github.com/arborfield/heapviz/usage"
)

// DefaultBucketIntervalUS is the wall-clock bucket width used unless
// a caller overrides it.
const DefaultBucketIntervalUS = 10_000

// DefaultCacheStride is the SnapshotCache stride spec.md §9's design
// notes suggest as a reasonable default.
const DefaultCacheStride = 1000

// DefaultBlockSize is the canvas cell width spec.md §9's design notes
// suggest as a reasonable default.
const DefaultBlockSize = 512

// Metadata summarizes an opened trace, mirroring cmd/memlat's
// metadataHandler: enough for a shell to render a landing page before
// the first real query.
type Metadata struct {
	TracePath  string
	BinaryPath string
	PoolCount  int
	Pools      []PoolMetadata
}

// PoolMetadata describes one pool's event stream.
type PoolMetadata struct {
	Name             string
	Start, Size      uint64
	EventCount       int
	MinAddr, MaxAddr uint64
	LastOpIndex      uint64
}

// Engine owns one pipeline per pool, built by Open.
type Engine struct {
	Metadata Metadata
	Pools    map[string]*PoolEngine
}

// PoolEngine is a single pool's complete analysis pipeline: the
// parsed event stream, stack table, overlap index, usage statistics,
// time buckets, and snapshot cache.
type PoolEngine struct {
	Pool   trace.Pool
	Events []trace.Event
	Stacks *trace.StackTable

	index *ranges.IntervalIndex[trace.Event]
	stats usage.Stats

	bucketIntervalUS int64
	buckets          []usage.Bucket

	blockSize          uint64
	windowLo, windowHi uint64
	cacheStride        int
	cache              *canvas.SnapshotCache

	mu sync.Mutex // guards cache/blockSize/window on SetBlockSize/SetWindow
}

// Open reads logPath (and, if binaryPath is non-empty, symbolizes
// stack addresses against it), partitions the resulting events by
// pool, and builds a full pipeline for each. Pools are analytically
// independent (spec.md §5), so each pool's pipeline is built on its
// own goroutine.
func Open(logPath, binaryPath string, cacheStride int) (*Engine, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("engine: opening trace %s: %w", logPath, err)
	}
	defer f.Close()

	var sym trace.Symbolizer
	if binaryPath != "" {
		s, err := symbolize.Open(binaryPath)
		if err != nil {
			return nil, fmt.Errorf("engine: opening binary %s: %w", binaryPath, err)
		}
		sym = s
	}

	parser := trace.NewParser(f, sym)
	var events []trace.Event
	it := parser.Events()
	for it.Next() {
		events = append(events, it.Event)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("engine: parsing trace %s: %w", logPath, err)
	}

	if cacheStride <= 0 {
		cacheStride = DefaultCacheStride
	}

	byPool, pools := trace.Partition(events, parser.Pools())
	sort.Slice(pools, func(i, j int) bool { return pools[i].Start < pools[j].Start })

	eng := &Engine{Pools: make(map[string]*PoolEngine, len(pools))}
	peSlice := make([]*PoolEngine, len(pools))

	var wg sync.WaitGroup
	for i, pool := range pools {
		i, pool := i, pool
		wg.Add(1)
		go func() {
			defer wg.Done()
			peSlice[i] = buildPool(pool, byPool[pool], parser.Stacks(), cacheStride)
		}()
	}
	wg.Wait()

	meta := Metadata{TracePath: logPath, BinaryPath: binaryPath, PoolCount: len(pools)}
	for _, pe := range peSlice {
		eng.Pools[pe.Pool.Name] = pe
		pm := PoolMetadata{Name: pe.Pool.Name, Start: pe.Pool.Start, Size: pe.Pool.Size, EventCount: len(pe.Events)}
		if len(pe.Events) > 0 {
			pm.LastOpIndex = pe.Events[len(pe.Events)-1].OpIndex
		}
		pm.MinAddr, pm.MaxAddr = pe.windowLo, pe.windowHi
		meta.Pools = append(meta.Pools, pm)
	}
	eng.Metadata = meta
	return eng, nil
}

func buildPool(pool trace.Pool, events []trace.Event, stacks *trace.StackTable, cacheStride int) *PoolEngine {
	pe := &PoolEngine{
		Pool:             pool,
		Events:           events,
		Stacks:           stacks,
		bucketIntervalUS: DefaultBucketIntervalUS,
		blockSize:        DefaultBlockSize,
		cacheStride:      cacheStride,
	}
	pe.windowLo, pe.windowHi = windowFor(pool, events)
	pe.index = canvas.NewEventIndex(events)
	pe.stats = usage.BuildStats(events)
	pe.buckets = usage.BuildBuckets(pe.stats.Samples, pe.bucketIntervalUS)
	pe.cache = canvas.NewSnapshotCache(pe.index, events, pe.windowLo, pe.windowHi, pe.blockSize, pe.cacheStride)
	return pe
}

// windowFor picks a default display window: the pool's declared
// range if non-empty, otherwise (a pool of Size 0) the span of
// addresses its events touch.
func windowFor(pool trace.Pool, events []trace.Event) (uint64, uint64) {
	if pool.Size > 0 {
		return pool.Start, pool.End()
	}
	if len(events) == 0 {
		return 0, 0
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
	return lo, hi
}

// SeriesMode selects between per-event and time-bucketed series.
type SeriesMode int

const (
	Raw SeriesMode = iota
	TimeBucketed
)

// UsageSeries returns bytes_live as a percentage of the pool's peak
// usage observed during the pass.
func (pe *PoolEngine) UsageSeries(mode SeriesMode) Series {
	xs, ys := pe.rawOrBucketed(mode,
		func(s usage.Sample) float64 { return float64(s.BytesLive) },
		func(b usage.Bucket) float64 { return b.BytesLive })
	return percentSeries(xs, ys, float64(pe.stats.MaxUsage))
}

// DistinctBlocksSeries returns distinct_blocks as a percentage of the
// pool's peak distinct-block count.
func (pe *PoolEngine) DistinctBlocksSeries(mode SeriesMode) Series {
	xs, ys := pe.rawOrBucketed(mode,
		func(s usage.Sample) float64 { return float64(s.DistinctBlocks) },
		func(b usage.Bucket) float64 { return b.DistinctBlocks })
	return percentSeries(xs, ys, float64(pe.stats.MaxDistinctBlocks))
}

// FreeBlocksSeries returns free_gap_count as a percentage of the
// pool's peak free-block count.
func (pe *PoolEngine) FreeBlocksSeries(mode SeriesMode) Series {
	xs, ys := pe.rawOrBucketed(mode,
		func(s usage.Sample) float64 { return float64(s.FreeGapCount) },
		func(b usage.Bucket) float64 { return b.FreeGapCount })
	return percentSeries(xs, ys, float64(pe.stats.MaxFreeBlocks))
}

// LargestFreeBlockSeries returns largest_free_gap in absolute bytes
// (spec.md §6 fixes this series to bytes, not a percentage).
func (pe *PoolEngine) LargestFreeBlockSeries(mode SeriesMode) Series {
	xs, ys := pe.rawOrBucketed(mode,
		func(s usage.Sample) float64 { return float64(s.LargestFreeGap) },
		func(b usage.Bucket) float64 { return float64(b.LargestFreeGap) })
	max := pe.Pool.Size
	if max == 0 {
		max = pe.windowHi - pe.windowLo
	}
	return byteSeries(xs, ys, float64(max))
}

func (pe *PoolEngine) rawOrBucketed(mode SeriesMode, fromSample func(usage.Sample) float64, fromBucket func(usage.Bucket) float64) ([]float64, []float64) {
	if mode == TimeBucketed {
		xs := make([]float64, len(pe.buckets))
		ys := make([]float64, len(pe.buckets))
		for i, b := range pe.buckets {
			xs[i] = float64(i)
			ys[i] = fromBucket(b)
		}
		return xs, ys
	}
	xs := make([]float64, len(pe.stats.Samples))
	ys := make([]float64, len(pe.stats.Samples))
	for i, s := range pe.stats.Samples {
		xs[i] = float64(s.OpIndex)
		ys[i] = fromSample(s)
	}
	return xs, ys
}

// MapAt renders the canvas at op_index n.
func (pe *PoolEngine) MapAt(n uint64) []canvas.BlockStatus {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	return pe.cache.At(n).Cells
}

// MapAtWallClock resolves ts to an op_index via the time buckets and
// renders the canvas there.
func (pe *PoolEngine) MapAtWallClock(ts int64) []canvas.BlockStatus {
	n := usage.OpIndexOfWallClock(pe.buckets, pe.bucketIntervalUS, ts)
	return pe.MapAt(n)
}

// MapAtTruncated renders the canvas at op_index n and run-length
// encodes runs longer than truncateAfter, for capping GUI payload
// size.
func (pe *PoolEngine) MapAtTruncated(n uint64, truncateAfter int) []canvas.Truncated {
	return canvas.CollapseRuns(pe.MapAt(n), truncateAfter)
}

// QueryAddress returns every event whose range covers addr with
// OpIndex <= cutoff.
func (pe *PoolEngine) QueryAddress(addr uint64, cutoff uint64) []trace.Event {
	all := pe.index.Find(addr, addr+1)
	var out []trace.Event
	for _, ev := range all {
		if ev.OpIndex <= cutoff {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpIndex < out[j].OpIndex })
	return out
}

// History returns the most recent windowSize events at or before
// atOpIndex.
func (pe *PoolEngine) History(atOpIndex uint64, windowSize int) []trace.Event {
	end := sort.Search(len(pe.Events), func(i int) bool { return pe.Events[i].OpIndex > atOpIndex })
	start := end - windowSize
	if start < 0 {
		start = 0
	}
	return pe.Events[start:end]
}

// SetBlockSize invalidates and rebuilds the SnapshotCache for this
// pool at a new block size.
func (pe *PoolEngine) SetBlockSize(n uint64) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	if n == 0 {
		log.Panic("engine: SetBlockSize(0)")
	}
	pe.blockSize = n
	pe.cache = canvas.NewSnapshotCache(pe.index, pe.Events, pe.windowLo, pe.windowHi, pe.blockSize, pe.cacheStride)
}

// SetWindow invalidates and rebuilds the SnapshotCache for this pool
// over a new display window.
func (pe *PoolEngine) SetWindow(lo, hi uint64) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	if hi <= lo {
		log.Panic("engine: SetWindow: hi must be > lo")
	}
	pe.windowLo, pe.windowHi = lo, hi
	pe.cache = canvas.NewSnapshotCache(pe.index, pe.Events, pe.windowLo, pe.windowHi, pe.blockSize, pe.cacheStride)
}
