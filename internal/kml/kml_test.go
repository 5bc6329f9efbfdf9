package kml

import (
	"strings"
	"testing"

	"github.com/jeffboody/osmdb/internal/osm"
)

// fakeIndexer records every Add call without any of the range/tile-ref
// machinery internal/index provides — just enough to assert what the
// importer decided to store.
type fakeIndexer struct {
	nodes []osm.Node
	ways  []osm.Way
}

func (f *fakeIndexer) AddNode(n osm.Node, zoom int, center, selected bool) error {
	f.nodes = append(f.nodes, n)
	return nil
}

func (f *fakeIndexer) AddWay(w osm.Way, zoom int, center, selected bool) error {
	f.ways = append(f.ways, w)
	return nil
}

const testDoc = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Boundaries</name>
    <Folder>
      <name>Wilderness</name>
      <Placemark>
        <name>Indian Peaks Wilderness</name>
        <Polygon>
          <outerBoundaryIs>
            <LinearRing>
              <coordinates>
                -105.64,40.02,0 -105.65,40.05,0 -105.60,40.06,0 -105.64,40.02,0
              </coordinates>
            </LinearRing>
          </outerBoundaryIs>
        </Polygon>
      </Placemark>
    </Folder>
    <Folder>
      <name>Unrecognized</name>
      <Placemark>
        <name>Nothing Matches This</name>
        <Point>
          <coordinates>-105.27,40.01,0</coordinates>
        </Point>
      </Placemark>
    </Folder>
  </Document>
</kml>`

func TestImportPolygonAndSkip(t *testing.T) {
	imp := NewImporter(nil)
	idx := &fakeIndexer{}

	n, err := imp.Import(strings.NewReader(testDoc), idx, 9)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d placemarks imported, want 1 (unrecognized folder must be skipped)", n)
	}
	if len(idx.ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(idx.ways))
	}
	w := idx.ways[0]
	if w.Class != ClassWilderness {
		t.Errorf("got class %d, want %d", w.Class, ClassWilderness)
	}
	if !w.Closed() {
		t.Errorf("ring way is not closed: nds=%v", w.Nds)
	}
	// 4 input coordinates, last duplicates the first, so 3 distinct synthetic
	// nodes plus the repeated closing id.
	if len(w.Nds) != 4 {
		t.Errorf("got %d nds, want 4", len(w.Nds))
	}
	if w.Nds[0] != w.Nds[3] {
		t.Errorf("closing nd %d does not match first nd %d", w.Nds[3], w.Nds[0])
	}
	if len(idx.nodes) != 3 {
		t.Errorf("got %d minted nodes, want 3 (closing vertex reuses the first)", len(idx.nodes))
	}
}

func TestImportPoint(t *testing.T) {
	imp := NewImporter(nil)
	idx := &fakeIndexer{}
	doc := `<kml><Document><Folder><name>County</name>
		<Placemark><name>Boulder County Seat</name>
		<Point><coordinates>-105.27,40.01,1600</coordinates></Point>
		</Placemark></Folder></Document></kml>`

	n, err := imp.Import(strings.NewReader(doc), idx, 5)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 1 || len(idx.nodes) != 1 {
		t.Fatalf("got n=%d nodes=%d, want 1, 1", n, len(idx.nodes))
	}
	got := idx.nodes[0]
	if got.Lat != 40.01 || got.Lon != -105.27 {
		t.Errorf("got lat=%v lon=%v, want 40.01, -105.27", got.Lat, got.Lon)
	}
	if got.Class != ClassCounty {
		t.Errorf("got class %d, want %d", got.Class, ClassCounty)
	}
}

func TestParseCoordinates(t *testing.T) {
	pts, err := parseCoordinates(" -105.27,40.01,1600  -105.28,40.02,1610 ")
	if err != nil {
		t.Fatalf("parseCoordinates: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("got %d points, want 2", len(pts))
	}
	if pts[0][0] != 40.01 || pts[0][1] != -105.27 {
		t.Errorf("got %v, want lat=40.01 lon=-105.27", pts[0])
	}
}
