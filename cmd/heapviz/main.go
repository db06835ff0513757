// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command heapviz is the analysis-engine driver for an embedded
// memory-allocation trace: "summary" prints per-pool usage statistics
// to stdout, and "serve" exposes the same engine over a small JSON
// HTTP API for an interactive visualizer, the way memlat serves
// heat-map data to its own browser frontend.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arborfield/heapviz/engine"
)

func main() {
	var (
		tracePath  string
		binaryPath string
		httpAddr   string
		stride     int
		blockSize  uint64
		window     string
	)

	root := &cobra.Command{
		Use:   "heapviz",
		Short: "Analyze an embedded memory-allocation trace",
	}
	root.PersistentFlags().StringVar(&tracePath, "trace", "", "path to the trace log")
	root.PersistentFlags().StringVar(&binaryPath, "binary", "", "path to the debug binary for symbolization (optional)")
	root.PersistentFlags().IntVar(&stride, "stride", engine.DefaultCacheStride, "SnapshotCache stride, in events")
	root.PersistentFlags().Uint64Var(&blockSize, "blocksize", engine.DefaultBlockSize, "canvas cell width, in bytes")
	root.PersistentFlags().StringVar(&window, "window", "", "display window `lo,hi` in hex (defaults to the pool's own range)")
	root.MarkPersistentFlagRequired("trace")

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Print per-pool usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(tracePath, binaryPath, stride, blockSize, window)
			if err != nil {
				return err
			}
			printSummary(eng)
			return nil
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(tracePath, binaryPath, stride, blockSize, window)
			if err != nil {
				return err
			}
			return serve(eng, httpAddr)
		},
	}
	serveCmd.Flags().StringVar(&httpAddr, "http", "localhost:8001", "serve HTTP on `address`")

	root.AddCommand(summaryCmd, serveCmd)
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func openEngine(tracePath, binaryPath string, stride int, blockSize uint64, window string) (*engine.Engine, error) {
	eng, err := engine.Open(tracePath, binaryPath, stride)
	if err != nil {
		return nil, err
	}
	for _, pe := range eng.Pools {
		pe.SetBlockSize(blockSize)
	}
	if window != "" {
		lo, hi, err := parseWindow(window)
		if err != nil {
			return nil, err
		}
		for _, pe := range eng.Pools {
			pe.SetWindow(lo, hi)
		}
	}
	return eng, nil
}

func parseWindow(s string) (lo, hi uint64, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("heapviz: -window wants `lo,hi`, got %q", s)
	}
	lo, err = strconv.ParseUint(strings.TrimPrefix(parts[0], "0x"), 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("heapviz: parsing window lo: %w", err)
	}
	hi, err = strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("heapviz: parsing window hi: %w", err)
	}
	return lo, hi, nil
}

func printSummary(eng *engine.Engine) {
	for _, pm := range eng.Metadata.Pools {
		fmt.Printf("pool %s: [%#x, %#x) events=%d last_op=%d\n", pm.Name, pm.Start, pm.Start+pm.Size, pm.EventCount, pm.LastOpIndex)
		pe := eng.Pools[pm.Name]
		series := pe.UsageSeries(engine.Raw)
		if len(series.Points) > 0 {
			last := series.Points[len(series.Points)-1]
			fmt.Printf("  final usage: %.1f%% of peak\n", last.Y)
		}
	}
}

func serve(eng *engine.Engine, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metadata", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, eng.Metadata)
	})
	mux.HandleFunc("/map", func(w http.ResponseWriter, r *http.Request) {
		pe, ok := poolFromQuery(eng, r)
		if !ok {
			http.Error(w, "unknown pool", http.StatusBadRequest)
			return
		}
		n, _ := strconv.ParseUint(r.URL.Query().Get("op"), 10, 64)
		writeJSON(w, pe.MapAt(n))
	})
	mux.HandleFunc("/usage", func(w http.ResponseWriter, r *http.Request) {
		pe, ok := poolFromQuery(eng, r)
		if !ok {
			http.Error(w, "unknown pool", http.StatusBadRequest)
			return
		}
		mode := engine.Raw
		if r.URL.Query().Get("mode") == "bucketed" {
			mode = engine.TimeBucketed
		}
		writeJSON(w, pe.UsageSeries(mode))
	})

	fmt.Fprintf(os.Stderr, "serving on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

func poolFromQuery(eng *engine.Engine, r *http.Request) (*engine.PoolEngine, bool) {
	name := r.URL.Query().Get("pool")
	if name == "" {
		for _, pe := range eng.Pools {
			return pe, true
		}
		return nil, false
	}
	pe, ok := eng.Pools[name]
	return pe, ok
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Print(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
