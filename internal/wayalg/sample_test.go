package wayalg

import (
	"math"
	"testing"

	"github.com/jeffboody/osmdb/internal/geo"
)

// sampleLine builds n collinear nodes along the equator at a fixed
// longitude step, returning the nd list, a lookup over them, and the planar
// spacing between neighbors.
func sampleLine(n int) ([]int64, NodeLookup, float64) {
	const step = 0.001
	coords := make(map[int64][2]float64, n)
	nds := make([]int64, n)
	for i := 0; i < n; i++ {
		id := int64(i + 1)
		coords[id] = [2]float64{0, float64(i) * step}
		nds[i] = id
	}
	lookup := func(id int64) (float64, float64, bool) {
		c, ok := coords[id]
		return c[0], c[1], ok
	}
	proj := geo.MercatorProjector{}
	x0, y0 := proj.CoordToXY(0, 0)
	x1, y1 := proj.CoordToXY(0, step)
	return nds, lookup, math.Hypot(x1-x0, y1-y0)
}

func TestSampleKeepsEveryNthAtCoarseMinDist(t *testing.T) {
	nds, lookup, d := sampleLine(101)
	proj := geo.MercatorProjector{}

	// A threshold between 4d and 5d keeps every 5th node regardless of
	// floating-point rounding in the per-gap distances.
	out := Sample(nds, 9, lookup, proj, 4.5*d)

	want := 21 // first, every 5th interior, last
	if len(out) != want {
		t.Fatalf("got %d nds, want %d", len(out), want)
	}
	if out[0] != nds[0] || out[len(out)-1] != nds[len(nds)-1] {
		t.Errorf("first/last must always survive: got %d..%d", out[0], out[len(out)-1])
	}
}

func TestSampleKeepsAllAtFineMinDist(t *testing.T) {
	nds, lookup, d := sampleLine(101)
	out := Sample(nds, 15, lookup, geo.MercatorProjector{}, d/2)
	if len(out) != len(nds) {
		t.Errorf("got %d nds, want all %d when spacing exceeds min_dist", len(out), len(nds))
	}
}

func TestSampleIdempotent(t *testing.T) {
	nds, lookup, d := sampleLine(101)
	proj := geo.MercatorProjector{}

	once := Sample(nds, 9, lookup, proj, 4.5*d)
	twice := Sample(once, 9, lookup, proj, 4.5*d)
	if !equalIDs(once, twice) {
		t.Errorf("sampling is not idempotent: %v then %v", once, twice)
	}
}

func TestSampleSkipsMissingNodes(t *testing.T) {
	nds, lookup, d := sampleLine(10)
	withMissing := append([]int64(nil), nds[:5]...)
	withMissing = append(withMissing, 999) // no coordinate
	withMissing = append(withMissing, nds[5:]...)

	out := Sample(withMissing, 15, lookup, geo.MercatorProjector{}, d/2)
	for _, id := range out {
		if id == 999 {
			t.Fatal("missing node must be dropped, not emitted")
		}
	}
	if len(out) != len(nds) {
		t.Errorf("got %d nds, want %d (missing node dropped, rest kept)", len(out), len(nds))
	}
}

func TestSampleShortWaysUntouched(t *testing.T) {
	nds, lookup, d := sampleLine(2)
	out := Sample(nds, 9, lookup, geo.MercatorProjector{}, 100*d)
	if !equalIDs(out, nds) {
		t.Errorf("a two-node way must never be decimated: got %v", out)
	}
}

func TestSamplerMinDistShrinksWithZoom(t *testing.T) {
	s := NewSampler(geo.MercatorProjector{}, DefaultHomeLat, DefaultHomeLon)
	prev := math.Inf(1)
	for _, z := range ZoomLadder {
		d := s.MinDist(z)
		if d <= 0 {
			t.Fatalf("MinDist(%d) = %v, want > 0", z, d)
		}
		if d >= prev {
			t.Errorf("MinDist(%d) = %v, want strictly smaller than the coarser zoom's %v", z, d, prev)
		}
		prev = d
	}
}
