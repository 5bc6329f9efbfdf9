// Package index is the single entry point the ingest tools and the tile
// builder both call through: Add/Find per entity kind,
// AddTileRef, the three AddNode/AddWay/AddRelation range-aggregating
// operations, Iter, and MakeTile. It owns one ChunkStore and one TileStore
// and never exposes either directly.
package index

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"

	"github.com/jeffboody/osmdb/internal/geo"
	"github.com/jeffboody/osmdb/internal/osm"
	"github.com/jeffboody/osmdb/internal/store"
	"github.com/jeffboody/osmdb/internal/store/lru"
	"github.com/jeffboody/osmdb/internal/wayalg"
)

// Overscan is the fraction AddTileRef grows a range by on each side before
// finding the tiles it overlaps: 1/16 of the range's own width and height
// (geo.BBox.Expand), not 1/16 of a tile. A single-point range, such as a
// node's, is not grown at all.
const Overscan = 1.0 / 16.0

// Options configures Open.
type Options struct {
	ChunkBudget int64 // <= 0 uses store.DefaultChunkBudget
	TileBudget  int64 // <= 0 uses store.DefaultTileBudget
	ReadOnly    bool  // open the process-wide lock in shared mode (sharded readers)
	HomeLat     float64
	HomeLon     float64
}

// Index owns the chunk store, the tile store, the process-wide exclusivity
// lock, and the zoom-sampler derived from the home coordinate.
type Index struct {
	base    string
	chunks  *store.ChunkStore
	tiles   *store.TileStore
	proj    geo.Projector
	sampler *wayalg.Sampler
	flock   *flock.Flock
}

// Open creates or opens the database rooted at base. A writer-mode Index
// (opts.ReadOnly == false) takes an exclusive lock at <base>/.osmdb.lock for
// its entire process lifetime, enforcing the single-writer model rather
// than merely assuming it; a read-only Index takes a shared lock so many
// sharded tile-production readers can coexist once all writers have
// closed.
func Open(base string, opts Options) (*Index, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("index: creating base dir: %w", err)
	}

	fl := flock.New(base + "/.osmdb.lock")
	if opts.ReadOnly {
		locked, err := fl.TryRLock()
		if err != nil {
			return nil, fmt.Errorf("index: acquiring shared lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("index: database %s is locked by a writer", base)
		}
	} else {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("index: acquiring exclusive lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("index: database %s is locked by another writer", base)
		}
	}

	chunks, err := store.Open(base, opts.ChunkBudget)
	if err != nil {
		fl.Unlock()
		return nil, err
	}
	tiles, err := store.OpenTileStore(base, opts.TileBudget)
	if err != nil {
		fl.Unlock()
		return nil, err
	}

	homeLat, homeLon := opts.HomeLat, opts.HomeLon
	if homeLat == 0 && homeLon == 0 {
		homeLat, homeLon = wayalg.DefaultHomeLat, wayalg.DefaultHomeLon
	}
	proj := geo.MercatorProjector{}
	return &Index{
		base:    base,
		chunks:  chunks,
		tiles:   tiles,
		proj:    proj,
		sampler: wayalg.NewSampler(proj, homeLat, homeLon),
		flock:   fl,
	}, nil
}

// Projector exposes the projection the index was opened with, for callers
// that need to run way algorithms against the same node coordinates (the
// tile-production pipeline, internal/tileproc).
func (ix *Index) Projector() geo.Projector { return ix.proj }

// Sampler exposes the zoom-dependent min_dist sampler this index computed
// from its home coordinate.
func (ix *Index) Sampler() *wayalg.Sampler { return ix.sampler }

// Chunks exposes the underlying chunk store for the tile-production
// pipeline's node/way/relation lookups. The tile store is exposed via
// Tiles for the same reason — both are otherwise unexported.
func (ix *Index) Chunks() *store.ChunkStore { return ix.chunks }

// Tiles exposes the underlying tile store.
func (ix *Index) Tiles() *store.TileStore { return ix.tiles }

// FindNode returns the node at id in the given kind's chunk, or ok=false if
// absent (missing, or cropped upstream — not distinguished from an I/O
// error by the bool; a persistent I/O error instead surfaces through the
// returned error).
func (ix *Index) FindNode(kind store.Kind, id int64) (osm.Node, bool, error) {
	return ix.chunks.FindNode(kind, id)
}

// FindWay returns the way at id in the given kind's chunk.
func (ix *Index) FindWay(kind store.Kind, id int64) (osm.Way, bool, error) {
	return ix.chunks.FindWay(kind, id)
}

// FindRelation returns the relation at id in the given kind's chunk.
func (ix *Index) FindRelation(kind store.Kind, id int64) (osm.Relation, bool, error) {
	return ix.chunks.FindRelation(kind, id)
}

// addNode stores n under kind, deduplicating against an existing entry with
// the same id (first writer wins).
func (ix *Index) addNode(kind store.Kind, n osm.Node) error {
	if _, ok, err := ix.chunks.FindNode(kind, n.ID); err != nil {
		return err
	} else if ok {
		return nil
	}
	return ix.chunks.AddNode(kind, n)
}

// addWay stores w under kind, deduplicating by id.
func (ix *Index) addWay(kind store.Kind, w osm.Way) error {
	if _, ok, err := ix.chunks.FindWay(kind, w.ID); err != nil {
		return err
	} else if ok {
		return nil
	}
	return ix.chunks.AddWay(kind, w)
}

// addRelation stores r under kind, deduplicating by id.
func (ix *Index) addRelation(kind store.Kind, r osm.Relation) error {
	if _, ok, err := ix.chunks.FindRelation(kind, r.ID); err != nil {
		return err
	} else if ok {
		return nil
	}
	return ix.chunks.AddRelation(kind, r)
}

// RefKind selects which of the tile store's three parallel ref sets
// AddTileRef targets.
type RefKind int

const (
	RefNode RefKind = iota
	RefWay
	RefRelation
)

// AddTileRef expands rng (overscanned by Overscan) into every tile at zoom
// that overlaps it, plus every coarser zoom on wayalg.ZoomLadder, calling
// the tile store's set-insertion add for each. zoom need not
// itself be on the ladder; callers pass the target zoom they selected the
// entity for, and every ladder zoom <= zoom also receives the ref so the
// entity remains visible when the map is zoomed further out.
func (ix *Index) AddTileRef(rng geo.BBox, zoom int, rk RefKind, id int64) error {
	if rng.Empty() {
		return nil
	}
	overscanned := rng.Expand(Overscan)
	for _, z := range wayalg.ZoomLadder {
		if z > zoom {
			continue
		}
		for _, xy := range geo.TilesOverlapping(ix.proj, overscanned, z) {
			key := store.TileKey{Zoom: z, X: xy[0], Y: xy[1]}
			var err error
			switch rk {
			case RefNode:
				err = ix.tiles.AddNodeRef(key, id)
			case RefWay:
				err = ix.tiles.AddWayRef(key, id)
			case RefRelation:
				err = ix.tiles.AddRelRef(key, id)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// lookupPoint finds a node's coordinate across both the base NODE kind and
// its CTR_NODE center-form shadow, since a way or relation may reference
// nodes that were selected for either representation.
func (ix *Index) lookupPoint(id int64) (lat, lon float64, ok bool) {
	if n, found, err := ix.chunks.FindNode(store.KindNode, id); err == nil && found {
		return n.Lat, n.Lon, true
	}
	if n, found, err := ix.chunks.FindNode(store.KindCtrNode, id); err == nil && found {
		return n.Lat, n.Lon, true
	}
	return 0, 0, false
}

// AddNode ingests a node: if selected, a degenerate range
// around the point is expanded into tile refs at zoom; the node is then
// stored as NODE or CTR_NODE depending on center.
func (ix *Index) AddNode(n osm.Node, zoom int, center, selected bool) error {
	kind := store.KindNode
	if center {
		kind = store.KindCtrNode
	}
	if selected {
		var rng geo.BBox
		rng.AddPoint(n.Lat, n.Lon)
		if err := ix.AddTileRef(rng, zoom, RefNode, n.ID); err != nil {
			return err
		}
	}
	return ix.addNode(kind, n)
}

// AddWay ingests a way: the way's range is aggregated from
// its nds (consulting both NODE and CTR_NODE), and the way's BBox is set
// from that range. A way whose range has no points (every nd missing) is
// dropped entirely — no store, no tile ref, no ref-set entries. Each
// resolved nd is recorded in the NODE_REF (or, for center ways,
// CTR_NODE_REF) set so the filtering passes can tell geometry-bearing
// nodes from prunable ones. If center, nds are discarded before storing
// (center-style ways carry no geometry). If selected, a tile ref is
// emitted at zoom. Ways are always stored under KindWay; there is no
// CTR_WAY in the tiled form.
func (ix *Index) AddWay(w osm.Way, zoom int, center, selected bool) error {
	var rng geo.BBox
	var resolved []int64
	for _, nd := range w.Nds {
		if lat, lon, ok := ix.lookupPoint(nd); ok {
			rng.AddPoint(lat, lon)
			resolved = append(resolved, nd)
		}
	}
	if rng.Empty() {
		return nil
	}
	w.BBox = rng

	refKind := store.KindNodeRef
	if center {
		refKind = store.KindCtrNodeRef
	}
	for _, nd := range resolved {
		if err := ix.chunks.AddRef(refKind, nd); err != nil {
			return err
		}
	}

	if selected {
		if err := ix.AddTileRef(rng, zoom, RefWay, w.ID); err != nil {
			return err
		}
	}
	if center {
		w.Nds = nil
	}
	return ix.addWay(store.KindWay, w)
}

// AddRelation ingests a relation: the range is aggregated
// from member ways' already-computed BBoxes and, for center relations,
// member nodes directly. A relation whose range has no points is dropped.
// Resolved member ways are recorded in the WAY_REF (or CTR_WAY_REF) set,
// paralleling AddWay's node refs. If center, members are discarded before
// storing. Relations always emit a tile ref at zoom: every relation that
// reaches this call was already class- and zoom-selected by the caller.
func (ix *Index) AddRelation(r osm.Relation, zoom int, center bool) error {
	refKind := store.KindWayRef
	if center {
		refKind = store.KindCtrWayRef
	}
	var rng geo.BBox
	for _, m := range r.Members {
		switch m.Kind {
		case osm.MemberWay:
			if w, ok, err := ix.chunks.FindWay(store.KindWay, m.Ref); err == nil && ok {
				rng.AddBBox(w.BBox)
				if err := ix.chunks.AddRef(refKind, m.Ref); err != nil {
					return err
				}
			}
		case osm.MemberNode:
			if center {
				if lat, lon, ok := ix.lookupPoint(m.Ref); ok {
					rng.AddPoint(lat, lon)
				}
			}
		}
	}
	if rng.Empty() {
		return nil
	}
	r.BBox = rng

	if err := ix.AddTileRef(rng, zoom, RefRelation, r.ID); err != nil {
		return err
	}
	if center {
		r.Members = nil
	}
	return ix.addRelation(store.KindRelation, r)
}

// HasRef reports whether id is present in one of the four *_REF
// reference sets. A non-ref kind is caller misuse and returns an error
// without touching the sticky flag.
func (ix *Index) HasRef(kind store.Kind, id int64) (bool, error) {
	if !kind.IsRef() {
		return false, fmt.Errorf("index: %v is not a ref kind", kind)
	}
	return ix.chunks.HasRef(kind, id)
}

// Failed returns the combined sticky error flag from both underlying
// stores (once set, it persists through Close).
func (ix *Index) Failed() error {
	if err := ix.chunks.Failed(); err != nil {
		return err
	}
	return ix.tiles.Failed()
}

// Stats bundles both stores' accumulated LRU statistics,
// reported by CLI tools on close.
type Stats struct {
	Chunks lru.Stats
	Tiles  lru.Stats
}

// Stats returns a snapshot of both stores' accumulated statistics.
func (ix *Index) Stats() Stats {
	return Stats{Chunks: ix.chunks.Stats(), Tiles: ix.tiles.Stats()}
}

// Close flushes both stores, releases the process-wide lock, and returns
// the combined sticky error flag.
func (ix *Index) Close() error {
	chunkErr := ix.chunks.Close()
	tileErr := ix.tiles.Close()
	ix.flock.Unlock()
	if chunkErr != nil {
		return chunkErr
	}
	return tileErr
}
