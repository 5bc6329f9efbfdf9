package cliutil

import (
	"log"
	"runtime"
)

// DefaultMemoryPressurePercent is the fraction of total RAM that
// cmd/osm-indexer targets with the chunk store budget when no -budget-gb
// flag is given; the tile store budget is not auto-sized.
const DefaultMemoryPressurePercent = 0.90

// ComputeMemoryLimit returns the maximum bytes a store budget should use
// before the LRU cache starts evicting aggressively. It takes a fraction
// (e.g. 0.90 for 90%) of total system RAM and subtracts the current Go heap
// overhead to give headroom for XML decode buffers and gzip streams.
//
// Returns 0 if RAM detection fails or the computed limit is unreasonably small.
func ComputeMemoryLimit(fraction float64, verbose bool) int64 {
	totalRAM, err := totalSystemRAM()
	if err != nil {
		if verbose {
			log.Printf("cannot detect system RAM: %v; using default store budgets", err)
		}
		return 0
	}

	if verbose {
		log.Printf("system RAM: %.1f GB", float64(totalRAM)/(1024*1024*1024))
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	overhead := m.Sys + 1*1024*1024*1024 // current usage + 1 GB headroom

	limit := int64(float64(totalRAM)*fraction) - int64(overhead)
	if limit < 64*1024*1024 { // minimum 64 MB
		if verbose {
			log.Printf("computed memory limit too small (%.0f MB); using default store budgets",
				float64(limit)/(1024*1024))
		}
		return 0
	}

	if verbose {
		log.Printf("auto-sized store budget: %.1f GB (%.0f%% of RAM minus %.1f GB overhead)",
			float64(limit)/(1024*1024*1024), fraction*100, float64(overhead)/(1024*1024*1024))
	}

	return limit
}
