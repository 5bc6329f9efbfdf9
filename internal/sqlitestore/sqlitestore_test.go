package sqlitestore

import (
	"path/filepath"
	"testing"

	"github.com/jeffboody/osmdb/internal/osm"
)

func TestAddFindNodeRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "planet.sqlite3"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	n := osm.Node{ID: 1, Lat: 40.0150, Lon: -105.2705, Class: 7, Name: "Chautauqua"}
	if err := s.AddNode(n, false); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	got, ok, err := s.FindNode(1, false)
	if err != nil || !ok {
		t.Fatalf("FindNode: ok=%v err=%v", ok, err)
	}
	if got.Name != "Chautauqua" || got.Class != 7 {
		t.Errorf("got %+v, want name=Chautauqua class=7", got)
	}

	if _, ok, err := s.FindNode(1, true); err != nil || ok {
		t.Errorf("center-table lookup of a plain node should miss: ok=%v err=%v", ok, err)
	}
}

func TestAddFindWayRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "planet.sqlite3"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	w := osm.Way{ID: 100, Class: 3, Name: "Flagstaff Rd"}
	w.AddNd(1)
	w.AddNd(2)
	w.AddNd(3)
	w.BBox.AddPoint(40.01, -105.28)
	w.BBox.AddPoint(40.02, -105.27)
	if err := s.AddWay(w); err != nil {
		t.Fatalf("AddWay: %v", err)
	}

	got, ok, err := s.FindWay(100)
	if err != nil || !ok {
		t.Fatalf("FindWay: ok=%v err=%v", ok, err)
	}
	if len(got.Nds) != 3 || got.Nds[1] != 2 {
		t.Errorf("got nds %v, want [1 2 3]", got.Nds)
	}
	if got.BBox.LatT != 40.02 {
		t.Errorf("got BBox.LatT %v, want 40.02", got.BBox.LatT)
	}
}

func TestAddFindRelationRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "planet.sqlite3"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	r := osm.Relation{ID: 900, Class: 1}
	r.AddMember("way", 50, "outer")
	r.AddMember("node", 7, "admin_centre")
	if err := s.AddRelation(r); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}

	got, ok, err := s.FindRelation(900)
	if err != nil || !ok {
		t.Fatalf("FindRelation: ok=%v err=%v", ok, err)
	}
	if len(got.Members) != 2 {
		t.Fatalf("got %d members, want 2", len(got.Members))
	}
	if got.Members[0].Kind != osm.MemberWay || got.Members[0].Ref != 50 {
		t.Errorf("got first member %+v, want way 50", got.Members[0])
	}
	if got.Members[1].Kind != osm.MemberNode || got.Members[1].Ref != 7 {
		t.Errorf("got second member %+v, want node 7", got.Members[1])
	}
}

func TestAddTileRefDedupesAndListsByTile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "planet.sqlite3"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.AddTileRef("way", 15, 1000, 2000, 42); err != nil {
		t.Fatalf("AddTileRef: %v", err)
	}
	if err := s.AddTileRef("way", 15, 1000, 2000, 42); err != nil {
		t.Fatalf("AddTileRef (dup): %v", err)
	}
	refs, err := s.TileRefs("way", 15, 1000, 2000)
	if err != nil {
		t.Fatalf("TileRefs: %v", err)
	}
	if len(refs) != 1 || refs[0] != 42 {
		t.Errorf("got %v, want [42] (duplicate insert must not double-count)", refs)
	}
}
