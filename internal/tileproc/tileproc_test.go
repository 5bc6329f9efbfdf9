package tileproc

import (
	"math"
	"testing"

	"github.com/jeffboody/osmdb/internal/geo"
	"github.com/jeffboody/osmdb/internal/osm"
	"github.com/jeffboody/osmdb/internal/store"
	"github.com/jeffboody/osmdb/internal/wayalg"
)

// recordingWriter captures what MakeTile emits, in call order, without any
// serialization — just enough to assert the pipeline's decisions.
type recordingWriter struct {
	nodes []osm.Node
	ways  []osm.Way
	rels  []osm.Relation
}

func (r *recordingWriter) WriteNode(n osm.Node) error { r.nodes = append(r.nodes, n); return nil }
func (r *recordingWriter) WriteWay(w osm.Way) error   { r.ways = append(r.ways, w); return nil }
func (r *recordingWriter) Finalize() (bool, error)    { return true, nil }

func (r *recordingWriter) WriteRelation(rel osm.Relation) error {
	r.rels = append(r.rels, rel)
	return nil
}

func newTestProducer(t *testing.T) (*Producer, *store.ChunkStore, *store.TileStore) {
	t.Helper()
	dir := t.TempDir()
	chunks, err := store.Open(dir, 0)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	tiles, err := store.OpenTileStore(dir, 0)
	if err != nil {
		t.Fatalf("store.OpenTileStore: %v", err)
	}
	proj := geo.MercatorProjector{}
	sampler := wayalg.NewSampler(proj, wayalg.DefaultHomeLat, wayalg.DefaultHomeLon)
	return NewProducer(chunks, tiles, proj, sampler), chunks, tiles
}

// A single closed way (10 nodes around a small loop near the sampler's home
// coordinate) referenced directly by one tile at the finest ladder zoom:
// MakeTile must emit all 10 nodes (in nds order, not drop any at zoom 15)
// followed by the way itself.
func TestMakeTileEmitsClosedLoopWithoutSamplingDrops(t *testing.T) {
	p, chunks, tiles := newTestProducer(t)

	const zoom = 15
	homeLat, homeLon := wayalg.DefaultHomeLat, wayalg.DefaultHomeLon
	x, y := geo.MercatorProjector{}.CoordToTile(homeLat, homeLon, zoom)
	tx, ty := geo.TileXYInt(x, y, zoom)
	bounds := geo.TileBounds(zoom, tx, ty)

	var ids []int64
	n := 10
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n)
		angle := frac * 2 * math.Pi
		lat := bounds.LatB + (bounds.LatT-bounds.LatB)*0.5 + (bounds.LatT-bounds.LatB)*0.3*math.Cos(angle)
		lon := bounds.LonL + (bounds.LonR-bounds.LonL)*0.5 + (bounds.LonR-bounds.LonL)*0.3*math.Sin(angle)
		id := int64(1000 + i)
		if err := chunks.AddNode(store.KindNode, osm.Node{ID: id, Lat: lat, Lon: lon}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
		ids = append(ids, id)
	}
	ids = append(ids, ids[0]) // close the loop

	w := osm.Way{ID: 500, Name: "Loop Trail"}
	for _, id := range ids {
		w.AddNd(id)
	}
	if err := chunks.AddWay(store.KindWay, w); err != nil {
		t.Fatalf("AddWay: %v", err)
	}

	key := store.TileKey{Zoom: zoom, X: tx, Y: ty}
	if err := tiles.AddWayRef(key, 500); err != nil {
		t.Fatalf("AddWayRef: %v", err)
	}

	rw := &recordingWriter{}
	if err := p.MakeTile(zoom, tx, ty, rw); err != nil {
		t.Fatalf("MakeTile: %v", err)
	}

	if len(rw.ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(rw.ways))
	}
	if rw.ways[0].ID != 500 {
		t.Errorf("got way id %d, want 500", rw.ways[0].ID)
	}
	if len(rw.ways[0].Nds) != len(ids) {
		t.Errorf("got %d nds after sample/clip, want %d (no drops expected at the finest ladder zoom)", len(rw.ways[0].Nds), len(ids))
	}
	if len(rw.nodes) != n {
		t.Errorf("got %d emitted nodes, want %d", len(rw.nodes), n)
	}
}

func TestMakeTileRelationMemberWayBypassesJoinAndSample(t *testing.T) {
	p, chunks, tiles := newTestProducer(t)

	const zoom = 15
	homeLat, homeLon := wayalg.DefaultHomeLat, wayalg.DefaultHomeLon
	x, y := geo.MercatorProjector{}.CoordToTile(homeLat, homeLon, zoom)
	tx, ty := geo.TileXYInt(x, y, zoom)

	n1 := osm.Node{ID: 1, Lat: homeLat, Lon: homeLon}
	n2 := osm.Node{ID: 2, Lat: homeLat + 0.001, Lon: homeLon + 0.001}
	if err := chunks.AddNode(store.KindNode, n1); err != nil {
		t.Fatalf("AddNode n1: %v", err)
	}
	if err := chunks.AddNode(store.KindNode, n2); err != nil {
		t.Fatalf("AddNode n2: %v", err)
	}

	w := osm.Way{ID: 50}
	w.AddNd(1)
	w.AddNd(2)
	if err := chunks.AddWay(store.KindWay, w); err != nil {
		t.Fatalf("AddWay: %v", err)
	}

	r := osm.Relation{ID: 900, Class: 1}
	r.AddMember("way", 50, "outer")
	if err := chunks.AddRelation(store.KindRelation, r); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}

	key := store.TileKey{Zoom: zoom, X: tx, Y: ty}
	if err := tiles.AddRelRef(key, 900); err != nil {
		t.Fatalf("AddRelRef: %v", err)
	}

	rw := &recordingWriter{}
	if err := p.MakeTile(zoom, tx, ty, rw); err != nil {
		t.Fatalf("MakeTile: %v", err)
	}

	if len(rw.rels) != 1 || rw.rels[0].ID != 900 {
		t.Fatalf("got rels %+v, want one relation id=900", rw.rels)
	}
	if len(rw.ways) != 1 || rw.ways[0].ID != 50 || len(rw.ways[0].Nds) != 2 {
		t.Fatalf("got ways %+v, want way id=50 with 2 untouched nds", rw.ways)
	}
}
