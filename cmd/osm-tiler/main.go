// Command osm-tiler walks an index built by osm-indexer and adds the tile
// references that drive selection at render time. Nodes and ways are
// tile-referenced here rather than at index time because only the point/
// line/poly class flags (not the mere fact of being indexed) decide whether
// an entity is "selected" for a tile; relations were already tile-referenced
// by osm-indexer, since add_relation has no selected flag to defer.
//
// Usage: osm-tiler [flags] filter.xml prefix
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jeffboody/osmdb/internal/cliutil"
	"github.com/jeffboody/osmdb/internal/geo"
	"github.com/jeffboody/osmdb/internal/index"
	"github.com/jeffboody/osmdb/internal/store"
	"github.com/jeffboody/osmdb/internal/style"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] filter.xml prefix\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	verbose := flag.Bool("v", false, "show a progress bar and statistics on exit")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}

	start := time.Now()
	if err := run(flag.Arg(0), flag.Arg(1), *verbose); err != nil {
		log.Printf("FAILURE dt=%s: %v", time.Since(start), err)
		os.Exit(1)
	}
}

func run(filterPath, prefix string, verbose bool) error {
	adapter, err := style.Load(filterPath)
	if err != nil {
		return err
	}

	ix, err := index.Open(prefix+"-index", index.Options{})
	if err != nil {
		return err
	}
	defer ix.Close()

	var bar *cliutil.ProgressBar
	if verbose {
		bar = cliutil.NewProgressBar("tiling", 0)
		defer bar.Finish()
	}

	for _, kind := range []store.Kind{store.KindNode, store.KindCtrNode} {
		if err := tileNodes(ix, adapter, kind, bar); err != nil {
			return err
		}
	}
	for _, kind := range []store.Kind{store.KindWay, store.KindCtrWay} {
		if err := tileWays(ix, adapter, kind, bar); err != nil {
			return err
		}
	}

	if verbose {
		stats := ix.Stats()
		log.Printf("osm-tiler: chunks hits=%d misses=%d evictions=%d, tiles hits=%d misses=%d evictions=%d",
			stats.Chunks.Hits, stats.Chunks.Misses, stats.Chunks.Evictions,
			stats.Tiles.Hits, stats.Tiles.Misses, stats.Tiles.Evictions)
	}
	return ix.Failed()
}

func tileNodes(ix *index.Index, adapter *style.Adapter, kind store.Kind, bar *cliutil.ProgressBar) error {
	it, err := ix.IterNodes(kind)
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		n, ok := it.Next()
		if !ok {
			break
		}
		info, known := adapter.Lookup(n.Class)
		if known && info.Point {
			var rng geo.BBox
			rng.AddPoint(n.Lat, n.Lon)
			if err := ix.AddTileRef(rng, int(info.MinZoom), index.RefNode, n.ID); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.Increment()
		}
	}
	return it.Err()
}

func tileWays(ix *index.Index, adapter *style.Adapter, kind store.Kind, bar *cliutil.ProgressBar) error {
	it, err := ix.IterWays(kind)
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		w, ok := it.Next()
		if !ok {
			break
		}
		info, known := adapter.Lookup(w.Class)
		if known && (info.Line || info.Poly) {
			if err := ix.AddTileRef(w.BBox, int(info.MinZoom), index.RefWay, w.ID); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.Increment()
		}
	}
	return it.Err()
}
