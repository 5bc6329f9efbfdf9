package index

import (
	"testing"

	"github.com/jeffboody/osmdb/internal/geo"
	"github.com/jeffboody/osmdb/internal/osm"
	"github.com/jeffboody/osmdb/internal/store"
	"github.com/jeffboody/osmdb/internal/wayalg"
)

func TestAddNodeFindNodeRoundTrip(t *testing.T) {
	ix, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	n := osm.Node{ID: 1, Lat: 40.0150, Lon: -105.2705, Name: "Chautauqua"}
	if err := ix.AddNode(n, 15, false, true); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	got, ok, err := ix.FindNode(store.KindNode, 1)
	if err != nil || !ok {
		t.Fatalf("FindNode: ok=%v err=%v", ok, err)
	}
	if got.Name != "Chautauqua" {
		t.Errorf("got name %q, want Chautauqua", got.Name)
	}

	tile, err := ix.Tiles().Get(store.TileKey{Zoom: 15, X: xyAt(15, n.Lat, n.Lon)[0], Y: xyAt(15, n.Lat, n.Lon)[1]})
	if err != nil {
		t.Fatalf("Tiles().Get: %v", err)
	}
	if _, ok := tile.NodeRefs[1]; !ok {
		t.Errorf("node ref missing from its zoom-15 tile")
	}
}

func TestAddTileRefCoarserZoomsOnLadder(t *testing.T) {
	ix, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	var rng geo.BBox
	rng.AddPoint(40.0150, -105.2705)
	rng.AddPoint(40.0200, -105.2600)
	if err := ix.AddTileRef(rng, 15, RefWay, 7); err != nil {
		t.Fatalf("AddTileRef: %v", err)
	}

	for _, z := range wayalg.ZoomLadder {
		xy := xyAt(z, 40.017, -105.265)
		tile, err := ix.Tiles().Get(store.TileKey{Zoom: z, X: xy[0], Y: xy[1]})
		if err != nil {
			t.Fatalf("Tiles().Get z=%d: %v", z, err)
		}
		if _, ok := tile.WayRefs[7]; !ok {
			t.Errorf("zoom %d: expected way ref 7, ladder zoom <= 15 must all carry it", z)
		}
	}
}

func TestAddWayDropsWhenNoNodesResolve(t *testing.T) {
	ix, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	w := osm.Way{ID: 10}
	w.AddNd(999) // never added as a node
	if err := ix.AddWay(w, 15, false, true); err != nil {
		t.Fatalf("AddWay: %v", err)
	}
	_, ok, err := ix.FindWay(store.KindWay, 10)
	if err != nil {
		t.Fatalf("FindWay: %v", err)
	}
	if ok {
		t.Errorf("way with no resolvable nds should have been dropped")
	}
}

func TestAddWayAggregatesRangeAndEmitsTileRef(t *testing.T) {
	ix, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	n1 := osm.Node{ID: 1, Lat: 40.01, Lon: -105.27}
	n2 := osm.Node{ID: 2, Lat: 40.02, Lon: -105.26}
	if err := ix.AddNode(n1, 15, false, false); err != nil {
		t.Fatalf("AddNode n1: %v", err)
	}
	if err := ix.AddNode(n2, 15, false, false); err != nil {
		t.Fatalf("AddNode n2: %v", err)
	}

	w := osm.Way{ID: 100, Name: "Flagstaff Rd"}
	w.AddNd(1)
	w.AddNd(2)
	if err := ix.AddWay(w, 15, false, true); err != nil {
		t.Fatalf("AddWay: %v", err)
	}

	got, ok, err := ix.FindWay(store.KindWay, 100)
	if err != nil || !ok {
		t.Fatalf("FindWay: ok=%v err=%v", ok, err)
	}
	if got.BBox.Empty() {
		t.Errorf("way BBox was not aggregated")
	}
	if got.BBox.LatT != 40.02 || got.BBox.LatB != 40.01 {
		t.Errorf("got BBox %+v, want LatT=40.02 LatB=40.01", got.BBox)
	}
}

func TestAddWayRecordsNodeRefs(t *testing.T) {
	ix, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	n1 := osm.Node{ID: 1, Lat: 40.01, Lon: -105.27}
	if err := ix.AddNode(n1, 15, false, false); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	w := osm.Way{ID: 100}
	w.AddNd(1)
	w.AddNd(999) // unresolvable, must not be recorded
	if err := ix.AddWay(w, 15, false, false); err != nil {
		t.Fatalf("AddWay: %v", err)
	}

	if ok, err := ix.HasRef(store.KindNodeRef, 1); err != nil || !ok {
		t.Errorf("HasRef(NODE_REF, 1) = %v, %v; want true", ok, err)
	}
	if ok, err := ix.HasRef(store.KindNodeRef, 999); err != nil || ok {
		t.Errorf("HasRef(NODE_REF, 999) = %v, %v; want false (unresolved nd)", ok, err)
	}
	if _, err := ix.HasRef(store.KindNode, 1); err == nil {
		t.Error("HasRef with a non-ref kind must fail")
	}
}

func xyAt(zoom int, lat, lon float64) [2]int {
	proj := geo.MercatorProjector{}
	x, y := proj.CoordToTile(lat, lon, zoom)
	tx, ty := geo.TileXYInt(x, y, zoom)
	return [2]int{tx, ty}
}
