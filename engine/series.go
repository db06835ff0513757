// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"log"

	"github.com/aclements/go-moremath/scale"
	"github.com/aclements/go-moremath/vec"
)

// Point is one (x, y) sample of a graph series.
type Point struct {
	X, Y float64
}

// Series is a graph series plus the tick marks a caller needs to
// draw an axis for it, the same shape cmd/memlat's heatMapHandler
// assembles for its JSON reply (Histograms/MajorTicks/MajorTicksX/
// MinorTicksX).
type Series struct {
	Points                  []Point
	MajorTicks, MajorTicksX []float64
	MinorTicksX             []float64
}

// percentSeries maps ys into a percentage of max (0-100) and computes
// axis ticks over [0, max] the way heatMapHandler computes ticks over
// [0, maxLatency] for its latency histograms.
func percentSeries(xs []float64, ys []float64, max float64) Series {
	if max <= 0 {
		max = 1
	}
	scaler, err := scale.NewLinear(0, max)
	if err != nil {
		log.Panicf("engine: building axis scale: %v", err)
	}
	scaler.Nice(scale.TickOptions{Max: 6})
	major, minor := scaler.Ticks(scale.TickOptions{Max: 6})

	pts := make([]Point, len(xs))
	for i := range xs {
		pts[i] = Point{X: xs[i], Y: ys[i] / max * 100}
	}
	return Series{
		Points:      pts,
		MajorTicks:  major,
		MajorTicksX: vec.Map(scaler.Map, major),
		MinorTicksX: vec.Map(scaler.Map, minor),
	}
}

// byteSeries leaves ys in absolute bytes (spec.md §6: "absolute bytes
// for largest-free-gap", unlike the percentage-scaled series).
func byteSeries(xs []float64, ys []float64, max float64) Series {
	if max <= 0 {
		max = 1
	}
	scaler, err := scale.NewLinear(0, max)
	if err != nil {
		log.Panicf("engine: building axis scale: %v", err)
	}
	scaler.Nice(scale.TickOptions{Max: 6})
	major, minor := scaler.Ticks(scale.TickOptions{Max: 6})

	pts := make([]Point, len(xs))
	for i := range xs {
		pts[i] = Point{X: xs[i], Y: ys[i]}
	}
	return Series{
		Points:      pts,
		MajorTicks:  major,
		MajorTicksX: vec.Map(scaler.Map, major),
		MinorTicksX: vec.Map(scaler.Map, minor),
	}
}
