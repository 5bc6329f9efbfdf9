package wayalg

import (
	"testing"

	"github.com/jeffboody/osmdb/internal/geo"
)

// clipBBox is a 2x2 degree box around the origin; clipCoords places nodes
// well inside, and well outside each side of it.
var clipBBox = func() geo.BBox {
	var b geo.BBox
	b.AddPoint(1, -1)
	b.AddPoint(-1, 1)
	return b
}()

var clipCoords = map[int64][2]float64{
	1: {0.0, -5.0}, // left, far out
	2: {0.1, -4.0}, // left
	3: {0.1, -3.0}, // left
	4: {0.0, -0.5}, // inside
	5: {0.0, 0.5},  // inside
	6: {0.0, 5.0},  // right
	7: {0.0, 6.0},  // right
}

func clipLookup(id int64) (float64, float64, bool) {
	c, ok := clipCoords[id]
	return c[0], c[1], ok
}

func TestClipRemovesRedundantOutsideRun(t *testing.T) {
	out := Clip([]int64{1, 2, 3, 4, 5, 6}, clipBBox, clipLookup, geo.MercatorProjector{})
	// Node 2 sits between two same-quadrant outside neighbors and adds no
	// boundary crossing; node 3 stays because its successor is interior.
	want := []int64{1, 3, 4, 5, 6}
	if !equalIDs(out, want) {
		t.Errorf("got %v, want %v", out, want)
	}
}

func TestClipNeverRemovesInteriorNodes(t *testing.T) {
	out := Clip([]int64{1, 4, 5, 6}, clipBBox, clipLookup, geo.MercatorProjector{})
	for _, id := range []int64{4, 5} {
		found := false
		for _, got := range out {
			if got == id {
				found = true
			}
		}
		if !found {
			t.Errorf("interior node %d was clipped away; out=%v", id, out)
		}
	}
}

func TestClipDropsTrailingSameQuadrantNode(t *testing.T) {
	// Ends with two right-quadrant nodes: the last duplicates its
	// predecessor's exit side and is dropped.
	out := Clip([]int64{4, 5, 6, 7}, clipBBox, clipLookup, geo.MercatorProjector{})
	want := []int64{4, 5, 6}
	if !equalIDs(out, want) {
		t.Errorf("got %v, want %v", out, want)
	}
}

func TestClipCollapsesFullyOutsideWay(t *testing.T) {
	// Every node in the left quadrant: interior run collapses and the tail
	// matches its predecessor's quadrant, leaving only the head.
	out := Clip([]int64{1, 2, 3}, clipBBox, clipLookup, geo.MercatorProjector{})
	want := []int64{1}
	if !equalIDs(out, want) {
		t.Errorf("got %v, want %v", out, want)
	}
}

func TestClipIdempotent(t *testing.T) {
	proj := geo.MercatorProjector{}
	once := Clip([]int64{1, 2, 3, 4, 5, 6, 7}, clipBBox, clipLookup, proj)
	twice := Clip(once, clipBBox, clipLookup, proj)
	if !equalIDs(once, twice) {
		t.Errorf("clipping is not idempotent: %v then %v", once, twice)
	}
}

func TestClipPassesMissingNodesThrough(t *testing.T) {
	out := Clip([]int64{4, 999, 5}, clipBBox, clipLookup, geo.MercatorProjector{})
	want := []int64{4, 999, 5}
	if !equalIDs(out, want) {
		t.Errorf("got %v, want %v (nodes without coordinates are not clip candidates)", out, want)
	}
}
