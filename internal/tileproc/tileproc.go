// Package tileproc implements the tile-production pipeline: given a tile
// coordinate, gather every entity the tile store references,
// run way joining / zoom sampling / quadrant clipping over the gathered
// ways, and emit a self-contained tile document through the Writer
// collaborator.
package tileproc

import (
	"fmt"
	"sort"

	"github.com/jeffboody/osmdb/internal/geo"
	"github.com/jeffboody/osmdb/internal/osm"
	"github.com/jeffboody/osmdb/internal/store"
	"github.com/jeffboody/osmdb/internal/wayalg"
)

// Writer is the external collaborator tile production emits its document
// through. MakeTile writes the tile's nodes first, then each relation
// together with its member nodes and ways, then the joined/sampled/clipped
// working ways with their nodes, so node, way and relation calls interleave;
// GzipXMLWriter groups them into nodes, then ways, then relations in the
// document. Finalize reports whether the document was completed
// successfully; a false return (with a nil error) models a writer-level
// incompleteness that isn't itself a Go error — e.g. a partial flush the
// writer detected on its own terms — and MakeTile treats it exactly like an
// error: the whole operation fails. Whatever the writer already buffered is
// the writer's own to discard.
type Writer interface {
	WriteNode(n osm.Node) error
	WriteWay(w osm.Way) error
	WriteRelation(r osm.Relation) error
	Finalize() (complete bool, err error)
}

// Producer runs MakeTile against a chunk store and tile store opened by the
// same index.Index the caller constructed it from (internal/index wires
// this up so the façade's own MakeTile just delegates here).
type Producer struct {
	chunks  *store.ChunkStore
	tiles   *store.TileStore
	proj    geo.Projector
	sampler *wayalg.Sampler
}

// NewProducer builds a Producer over the given stores.
func NewProducer(chunks *store.ChunkStore, tiles *store.TileStore, proj geo.Projector, sampler *wayalg.Sampler) *Producer {
	return &Producer{chunks: chunks, tiles: tiles, proj: proj, sampler: sampler}
}

// lookupPoint resolves a node id's coordinate, checking both the plain NODE
// kind and its CTR_NODE center-form shadow (a way may reference a node that
// was selected to be represented as a centroid elsewhere).
func (p *Producer) lookupPoint(id int64) (lat, lon float64, ok bool) {
	if n, found, err := p.chunks.FindNode(store.KindNode, id); err == nil && found {
		return n.Lat, n.Lon, true
	}
	if n, found, err := p.chunks.FindNode(store.KindCtrNode, id); err == nil && found {
		return n.Lat, n.Lon, true
	}
	return 0, 0, false
}

func (p *Producer) findNode(id int64) (osm.Node, bool) {
	if n, found, err := p.chunks.FindNode(store.KindNode, id); err == nil && found {
		return n, true
	}
	if n, found, err := p.chunks.FindNode(store.KindCtrNode, id); err == nil && found {
		return n, true
	}
	return osm.Node{}, false
}

// tileGather holds the per-call mutable state steps 2-9 thread through.
type tileGather struct {
	p *Producer
	w Writer

	emittedNodes     map[int64]bool
	emittedWays      map[int64]bool
	emittedRelations map[int64]bool
	workingWays      map[int64]*osm.Way
	endpoints        map[int64][]int64 // node id -> way ids with a head or tail there
}

func newTileGather(p *Producer, w Writer) *tileGather {
	return &tileGather{
		p:                p,
		w:                w,
		emittedNodes:     make(map[int64]bool),
		emittedWays:      make(map[int64]bool),
		emittedRelations: make(map[int64]bool),
		workingWays:      make(map[int64]*osm.Way),
		endpoints:        make(map[int64][]int64),
	}
}

// emitNode writes id's node at most once per tile document.
func (g *tileGather) emitNode(id int64) error {
	if g.emittedNodes[id] {
		return nil
	}
	n, ok := g.p.findNode(id)
	if !ok {
		return nil // cropped upstream: silently skip
	}
	g.emittedNodes[id] = true
	return g.w.WriteNode(n)
}

func (g *tileGather) registerEndpoints(w *osm.Way) {
	if len(w.Nds) == 0 {
		return
	}
	head, tail := w.Nds[0], w.Nds[len(w.Nds)-1]
	g.endpoints[head] = append(g.endpoints[head], w.ID)
	if tail != head {
		g.endpoints[tail] = append(g.endpoints[tail], w.ID)
	}
}

func (g *tileGather) rebuildEndpoints() {
	g.endpoints = make(map[int64][]int64)
	for _, w := range g.workingWays {
		g.registerEndpoints(w)
	}
}

// join repeatedly scans the endpoint multimap for pairs that satisfy
// wayalg.Join, merging until no endpoint has two or more eligible ways
// left. Each successful join changes the multimap, so the scan restarts
// from scratch rather than trying to patch it in place.
func (g *tileGather) join() {
	lookup := func(id int64) (float64, float64, bool) { return g.p.lookupPoint(id) }
	for {
		joined := false
		var pivots []int64
		for id := range g.endpoints {
			pivots = append(pivots, id)
		}
		sort.Slice(pivots, func(i, j int) bool { return pivots[i] < pivots[j] })

	pivotLoop:
		for _, pivot := range pivots {
			ids := g.endpoints[pivot]
			for i := 0; i < len(ids); i++ {
				a := g.workingWays[ids[i]]
				if a == nil {
					continue
				}
				for j := i + 1; j < len(ids); j++ {
					b := g.workingWays[ids[j]]
					if b == nil || a == b {
						continue
					}
					if wayalg.Join(a, b, pivot, lookup, g.p.proj) {
						delete(g.workingWays, ids[j])
						g.rebuildEndpoints()
						joined = true
						break pivotLoop
					}
				}
			}
		}
		if !joined {
			return
		}
	}
}

// MakeTile runs the full ten-step pipeline for tile (zoom, x, y) and emits
// the result through w. On success the writer has received every gathered
// node, way, and relation; on failure (including a writer-reported
// incomplete document) no partial state is visible to the caller beyond
// whatever w itself already buffered — MakeTile never mutates the chunk or
// tile store.
func (p *Producer) MakeTile(zoom, x, y int, w Writer) error {
	key := store.TileKey{Zoom: zoom, X: x, Y: y}
	tile, err := p.tiles.Lock(key)
	if err != nil {
		return fmt.Errorf("tileproc: locking tile %d/%d/%d: %w", zoom, x, y, err)
	}
	defer p.tiles.Unlock(key)

	g := newTileGather(p, w)

	// Step 3: direct node refs.
	for _, id := range sortedKeys(tile.NodeRefs) {
		if err := g.emitNode(id); err != nil {
			return err
		}
	}

	// Step 4: relations, pulling in their members (nodes directly, ways via
	// the non-join fast path that preserves the relation's exact geometry).
	for _, id := range sortedKeys(tile.RelRefs) {
		r, ok, err := p.chunks.FindRelation(store.KindRelation, id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, m := range r.Members {
			switch m.Kind {
			case osm.MemberNode:
				if err := g.emitNode(m.Ref); err != nil {
					return err
				}
			case osm.MemberWay:
				if g.emittedWays[m.Ref] {
					continue
				}
				mw, ok, err := p.chunks.FindWay(store.KindWay, m.Ref)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				g.emittedWays[m.Ref] = true
				for _, nd := range mw.Nds {
					if err := g.emitNode(nd); err != nil {
						return err
					}
				}
				if err := w.WriteWay(mw); err != nil {
					return err
				}
			}
		}
		g.emittedRelations[id] = true
		if err := w.WriteRelation(r); err != nil {
			return err
		}
	}

	// Step 5: every remaining way ref becomes a join candidate.
	for _, id := range sortedKeys(tile.WayRefs) {
		if g.emittedWays[id] {
			continue
		}
		wy, ok, err := p.chunks.FindWay(store.KindWay, id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		c := wy.Clone()
		g.workingWays[id] = &c
		g.registerEndpoints(&c)
	}

	// Step 6: joining.
	g.join()

	// Step 7: zoom sampling.
	lookup := func(id int64) (float64, float64, bool) { return p.lookupPoint(id) }
	minDist := p.sampler.MinDist(zoom)
	for _, wy := range g.workingWays {
		wy.Nds = wayalg.Sample(wy.Nds, zoom, lookup, p.proj, minDist)
	}

	// Step 8: quadrant clipping against an overscanned tile bbox, expanded
	// by 1/16 of tile size on each side.
	clipBBox := geo.TileBounds(zoom, x, y).Expand(1.0 / 16.0)
	for _, wy := range g.workingWays {
		wy.Nds = wayalg.Clip(wy.Nds, clipBBox, lookup, p.proj)
	}

	// Step 9: emit surviving ways, nds first.
	var wayIDs []int64
	for id := range g.workingWays {
		wayIDs = append(wayIDs, id)
	}
	sort.Slice(wayIDs, func(i, j int) bool { return wayIDs[i] < wayIDs[j] })
	for _, id := range wayIDs {
		wy := g.workingWays[id]
		for _, nd := range wy.Nds {
			if err := g.emitNode(nd); err != nil {
				return err
			}
		}
		if err := w.WriteWay(*wy); err != nil {
			return err
		}
	}

	// Step 10: finalize.
	complete, err := w.Finalize()
	if err != nil {
		return fmt.Errorf("tileproc: finalizing tile %d/%d/%d: %w", zoom, x, y, err)
	}
	if !complete {
		return fmt.Errorf("tileproc: tile %d/%d/%d document incomplete", zoom, x, y)
	}
	return nil
}

func sortedKeys(m map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
