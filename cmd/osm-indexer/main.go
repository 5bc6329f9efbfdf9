// Command osm-indexer builds (or extends) a tiled index from the bulk
// entity files osm-parser produced, applying the filter/style table to
// decide which classes are kept, at what minimum zoom, and in which form
// (plain or center/centroid). It does not add tile references for nodes or
// ways — that is cmd/osm-tiler's job, run as a second pass over the same
// index; relations are tile-referenced immediately since add_relation has
// no selected flag to defer it with.
//
// Usage: osm-indexer [flags] filter.xml prefix
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jeffboody/osmdb/internal/bulkio"
	"github.com/jeffboody/osmdb/internal/cliutil"
	"github.com/jeffboody/osmdb/internal/index"
	"github.com/jeffboody/osmdb/internal/osm"
	"github.com/jeffboody/osmdb/internal/sqlitestore"
	"github.com/jeffboody/osmdb/internal/style"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] filter.xml prefix\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	backend := flag.String("backend", "xml", "storage backend: xml or sqlite")
	budgetGB := flag.Float64("budget-gb", 0, "chunk store byte budget in GB (0 = default)")
	verbose := flag.Bool("v", false, "show a progress bar and per-store statistics on exit")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}

	start := time.Now()
	if err := run(flag.Arg(0), flag.Arg(1), *backend, *budgetGB, *verbose); err != nil {
		log.Printf("FAILURE dt=%s: %v", time.Since(start), err)
		os.Exit(1)
	}
}

func run(filterPath, prefix, backend string, budgetGB float64, verbose bool) error {
	adapter, err := style.Load(filterPath)
	if err != nil {
		return err
	}

	nodes, ways, rels, err := readBulk(prefix)
	if err != nil {
		return err
	}

	var budget int64
	if budgetGB > 0 {
		budget = int64(budgetGB * 1024 * 1024 * 1024)
	} else {
		budget = cliutil.ComputeMemoryLimit(cliutil.DefaultMemoryPressurePercent, verbose)
	}

	switch backend {
	case "xml":
		return runXML(prefix+"-index", nodes, ways, rels, adapter, budget, verbose)
	case "sqlite":
		return runSQLite(prefix+"-index.sqlite3", nodes, ways, rels, adapter, verbose)
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}
}

// readBulk loads the three entity lists, preferring the split
// prefix-{nodes,ways,relations}.xml.gz layout and falling back to a single
// combined prefix.xml.gz (the form osm-parser emits when pointed at one
// output file).
func readBulk(prefix string) ([]osm.Node, []osm.Way, []osm.Relation, error) {
	nodesPath := prefix + "-nodes.xml.gz"
	if _, err := os.Stat(nodesPath); os.IsNotExist(err) {
		return bulkio.ReadAll(prefix + ".xml.gz")
	}
	nodes, err := bulkio.ReadNodes(nodesPath)
	if err != nil {
		return nil, nil, nil, err
	}
	ways, err := bulkio.ReadWays(prefix + "-ways.xml.gz")
	if err != nil {
		return nil, nil, nil, err
	}
	rels, err := bulkio.ReadRelations(prefix + "-relations.xml.gz")
	if err != nil {
		return nil, nil, nil, err
	}
	return nodes, ways, rels, nil
}

func runXML(base string, nodes []osm.Node, ways []osm.Way, rels []osm.Relation, adapter *style.Adapter, budget int64, verbose bool) error {
	ix, err := index.Open(base, index.Options{ChunkBudget: budget})
	if err != nil {
		return err
	}
	defer ix.Close()

	var bar *cliutil.ProgressBar
	if verbose {
		bar = cliutil.NewProgressBar("indexing", int64(len(nodes)+len(ways)+len(rels)))
		defer bar.Finish()
	}

	for _, n := range nodes {
		info, ok := adapter.Lookup(n.Class)
		if ok && (!info.Named || n.Name != "") {
			if err := ix.AddNode(n, int(info.MinZoom), info.Center, false); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.Increment()
		}
	}
	for _, w := range ways {
		info, ok := adapter.Lookup(w.Class)
		if ok && (!info.Named || w.Name != "") {
			if err := ix.AddWay(w, int(info.MinZoom), info.Center, false); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.Increment()
		}
	}
	for _, r := range rels {
		info, ok := adapter.Lookup(r.Class)
		if ok && (!info.Named || r.Name != "") {
			if err := ix.AddRelation(r, int(info.MinZoom), info.Center); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.Increment()
		}
	}

	if verbose {
		stats := ix.Stats()
		log.Printf("osm-indexer: chunks hits=%d misses=%d evictions=%d, tiles hits=%d misses=%d evictions=%d",
			stats.Chunks.Hits, stats.Chunks.Misses, stats.Chunks.Evictions,
			stats.Tiles.Hits, stats.Tiles.Misses, stats.Tiles.Evictions)
	}
	return ix.Failed()
}

func runSQLite(path string, nodes []osm.Node, ways []osm.Way, rels []osm.Relation, adapter *style.Adapter, verbose bool) error {
	s, err := sqlitestore.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	var bar *cliutil.ProgressBar
	if verbose {
		bar = cliutil.NewProgressBar("indexing (sqlite)", int64(len(nodes)+len(ways)+len(rels)))
		defer bar.Finish()
	}

	for _, n := range nodes {
		info, ok := adapter.Lookup(n.Class)
		if ok && (!info.Named || n.Name != "") {
			if err := s.AddNode(n, info.Center); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.Increment()
		}
	}
	for _, w := range ways {
		info, ok := adapter.Lookup(w.Class)
		if ok && (!info.Named || w.Name != "") {
			if err := s.AddWay(w); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.Increment()
		}
	}
	for _, r := range rels {
		info, ok := adapter.Lookup(r.Class)
		if ok && (!info.Named || r.Name != "") {
			if err := s.AddRelation(r); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.Increment()
		}
	}
	return nil
}
