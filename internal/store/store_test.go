package store

import (
	"testing"

	"github.com/jeffboody/osmdb/internal/osm"
)

func TestChunkStoreAddFindNodeRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	n := osm.Node{ID: 42, Lat: 40.01, Lon: -105.27, Class: 7, Name: "Chautauqua"}
	if err := s.AddNode(KindNode, n); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	got, ok, err := s.FindNode(KindNode, 42)
	if err != nil || !ok {
		t.Fatalf("FindNode: ok=%v err=%v", ok, err)
	}
	if got.Name != "Chautauqua" || got.Class != 7 {
		t.Errorf("got %+v, want name=Chautauqua class=7", got)
	}
}

func TestChunkStoreFlushReload(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := osm.Way{ID: 100, Class: 3, Name: "Flagstaff Rd"}
	w.AddNd(1)
	w.AddNd(2)
	w.AddNd(3)
	if err := s.AddWay(KindWay, w); err != nil {
		t.Fatalf("AddWay: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok, err := s2.FindWay(KindWay, 100)
	if err != nil || !ok {
		t.Fatalf("FindWay after reload: ok=%v err=%v", ok, err)
	}
	if len(got.Nds) != 3 || got.Nds[1] != 2 {
		t.Errorf("got nds %v, want [1 2 3]", got.Nds)
	}
	if got.Name != "Flagstaff Rd" {
		t.Errorf("got name %q, want Flagstaff Rd", got.Name)
	}
}

func TestChunkStoreEvictionFlushesDirtyChunk(t *testing.T) {
	dir := t.TempDir()
	// A budget below the size of one populated chunk (its bytes plus the
	// tracked per-entry overhead) forces each new bucket to evict the
	// previous one; Trim always keeps the most recent entry.
	s, err := Open(dir, 150)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for id := int64(0); id < 3; id++ {
		n := osm.Node{ID: id * chunkFanoutForTest, Lat: 1, Lon: 1}
		if err := s.AddNode(KindNode, n); err != nil {
			t.Fatalf("AddNode %d: %v", id, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	for id := int64(0); id < 3; id++ {
		nodeID := id * chunkFanoutForTest
		if _, ok, err := s2.FindNode(KindNode, nodeID); err != nil || !ok {
			t.Errorf("node %d not found after eviction+reload: ok=%v err=%v", nodeID, ok, err)
		}
	}
}

// chunkFanoutForTest spaces synthetic ids across distinct id_upper buckets
// so each Insert in TestChunkStoreEvictionFlushesDirtyChunk lands in a
// different chunk file and is forced to evict the last one.
const chunkFanoutForTest = 10_000

func TestTileStoreAddRefRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ts, err := OpenTileStore(dir, 0)
	if err != nil {
		t.Fatalf("OpenTileStore: %v", err)
	}
	key := TileKey{Zoom: 15, X: 13, Y: 47}
	if err := ts.AddNodeRef(key, 1); err != nil {
		t.Fatalf("AddNodeRef: %v", err)
	}
	if err := ts.AddWayRef(key, 2); err != nil {
		t.Fatalf("AddWayRef: %v", err)
	}
	if err := ts.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ts2, err := OpenTileStore(dir, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec, err := ts2.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := rec.NodeRefs[1]; !ok {
		t.Error("expected node ref 1 to survive reload")
	}
	if _, ok := rec.WayRefs[2]; !ok {
		t.Error("expected way ref 2 to survive reload")
	}
}

func TestKindStringRoundTrip(t *testing.T) {
	for k := Kind(0); int(k) < 10; k++ {
		got, ok := KindFromString(k.String())
		if !ok || got != k {
			t.Errorf("KindFromString(%q) = %v, %v; want %v, true", k.String(), got, ok, k)
		}
	}
}
