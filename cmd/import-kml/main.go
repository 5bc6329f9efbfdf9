// Command import-kml ingests a set of KML boundary files (wilderness areas,
// parks, counties, cities — see internal/kml) directly into the SQLite
// backend, bypassing the XML chunk store entirely. -budget-gb is accepted
// for symmetry with cmd/osm-indexer, but its value is not used:
// modernc.org/sqlite manages its own page cache rather than an in-process
// LRU.
//
// Usage: import-kml [flags] style.xml planet.sqlite3 file1.kml [file2.kml…]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jeffboody/osmdb/internal/geo"
	"github.com/jeffboody/osmdb/internal/index"
	"github.com/jeffboody/osmdb/internal/kml"
	"github.com/jeffboody/osmdb/internal/osm"
	"github.com/jeffboody/osmdb/internal/sqlitestore"
	"github.com/jeffboody/osmdb/internal/style"
	"github.com/jeffboody/osmdb/internal/wayalg"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] style.xml planet.sqlite3 file1.kml [file2.kml...]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	_ = flag.Float64("budget-gb", 0, "advisory store size budget in GB (unused by the sqlite backend, kept for CLI symmetry)")
	verbose := flag.Bool("v", false, "log placemark counts per file")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 3 {
		usage()
		os.Exit(2)
	}

	start := time.Now()
	if err := run(flag.Arg(0), flag.Arg(1), flag.Args()[2:], *verbose); err != nil {
		log.Printf("FAILURE dt=%s: %v", time.Since(start), err)
		os.Exit(1)
	}
}

func run(stylePath, dbPath string, kmlPaths []string, verbose bool) error {
	adapter, err := style.Load(stylePath)
	if err != nil {
		return err
	}

	s, err := sqlitestore.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ix := &sqliteKMLIndexer{store: s, adapter: adapter, proj: geo.MercatorProjector{}}
	importer := kml.NewImporter(nil)

	for _, path := range kmlPaths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("import-kml: opening %s: %w", path, err)
		}
		n, err := importer.Import(f, ix, defaultKMLZoom)
		f.Close()
		if err != nil {
			return fmt.Errorf("import-kml: %s: %w", path, err)
		}
		if verbose {
			log.Printf("import-kml: %s: %d placemarks", path, n)
		}
	}
	return nil
}

// defaultKMLZoom is the minimum zoom at which imported boundaries become
// selectable; boundaries are coarse, large-area features meant to appear
// well before street-level detail.
const defaultKMLZoom = 3

// sqliteKMLIndexer adapts *sqlitestore.Store to kml.Indexer: the store's
// Add{Node,Way} calls don't know about zoom or tile selection, so this
// shim does the range aggregation and tile-ref fan-out the XML-backed
// *index.Index does internally. When the style table knows the minted
// class, its min_zoom and center flag override the importer's defaults.
type sqliteKMLIndexer struct {
	store   *sqlitestore.Store
	adapter *style.Adapter
	proj    geo.Projector
}

func (ix *sqliteKMLIndexer) AddNode(n osm.Node, zoom int, center, selected bool) error {
	if info, ok := ix.adapter.Lookup(n.Class); ok {
		zoom, center = int(info.MinZoom), info.Center
	}
	if err := ix.store.AddNode(n, center); err != nil {
		return err
	}
	if !selected {
		return nil
	}
	var rng geo.BBox
	rng.AddPoint(n.Lat, n.Lon)
	return ix.addTileRefs("node", rng, zoom, n.ID)
}

func (ix *sqliteKMLIndexer) AddWay(w osm.Way, zoom int, center, selected bool) error {
	var rng geo.BBox
	for _, nd := range w.Nds {
		if n, ok, err := ix.store.FindNode(nd, false); err == nil && ok {
			rng.AddPoint(n.Lat, n.Lon)
		} else if n, ok, err := ix.store.FindNode(nd, true); err == nil && ok {
			rng.AddPoint(n.Lat, n.Lon)
		}
	}
	if rng.Empty() {
		return nil
	}
	w.BBox = rng
	if info, ok := ix.adapter.Lookup(w.Class); ok {
		zoom = int(info.MinZoom)
	}
	if err := ix.store.AddWay(w); err != nil {
		return err
	}
	if !selected {
		return nil
	}
	return ix.addTileRefs("way", w.BBox, zoom, w.ID)
}

// addTileRefs mirrors index.Index.AddTileRef's overscan-and-ladder walk
// (internal/index/index.go), since sqlitestore's AddTileRef is a bare
// single-tile insert with no ladder logic of its own.
func (ix *sqliteKMLIndexer) addTileRefs(kind string, rng geo.BBox, zoom int, id int64) error {
	if rng.Empty() {
		return nil
	}
	overscanned := rng.Expand(index.Overscan)
	for _, z := range wayalg.ZoomLadder {
		if z > zoom {
			continue
		}
		for _, xy := range geo.TilesOverlapping(ix.proj, overscanned, z) {
			if err := ix.store.AddTileRef(kind, z, xy[0], xy[1], id); err != nil {
				return err
			}
		}
	}
	return nil
}
