// Package wayalg implements the three geometric passes tile production runs
// over working ways: joining compatible fragments head-to-tail, zoom-
// dependent polyline sampling, and quadrant-based tile clipping.
// Join works on osm.Way values and Sample and Clip on nd id slices; all
// three take a geo.Projector and a node lookup, and none of them
// touch the chunk or tile store directly, so they stay unit-testable
// without any disk I/O.
package wayalg

import (
	"math"

	"github.com/jeffboody/osmdb/internal/geo"
	"github.com/jeffboody/osmdb/internal/osm"
)

// NodeLookup resolves a node id to its coordinate, used by Join to fetch the
// pivot's neighbors. Returning ok=false models a cropped/missing reference
// (ways may reference nodes cropped upstream; that is a normal condition).
type NodeLookup func(id int64) (lat, lon float64, ok bool)

// maxJoinAngleCos is cos(30°): the turn-angle rejection threshold for
// join eligibility.
var maxJoinAngleCos = math.Cos(30 * math.Pi / 180)

// Join attempts to merge b into a at their shared endpoint pivot. On
// success, a's Nds are
// extended in place (the duplicated pivot from b is skipped), a's BBox is
// widened to include b's, and Join returns true — the caller is
// responsible for marking b logically consumed.
func Join(a, b *osm.Way, pivot int64, lookup NodeLookup, proj geo.Projector) bool {
	if a == b {
		return false
	}
	if len(a.Nds) < 2 || len(b.Nds) < 2 || a.Closed() || b.Closed() {
		return false
	}

	aHead := a.Nds[0] == pivot
	aTail := a.Nds[len(a.Nds)-1] == pivot
	bHead := b.Nds[0] == pivot
	bTail := b.Nds[len(b.Nds)-1] == pivot
	if aHead == aTail || bHead == bTail {
		return false // pivot must be exactly one terminal of each
	}
	if aHead == bHead {
		return false // head-to-tail only: a and b must meet at opposite terminals
	}

	if !a.SameAttrs(b) || !a.SameName(b) {
		return false
	}

	aNeighbor := neighborOf(a, aHead)
	bNeighbor := neighborOf(b, bHead)
	if !turnAngleOK(aNeighbor, pivot, bNeighbor, lookup, proj) {
		return false
	}

	splice(a, b, aHead, bHead)
	a.BBox.AddBBox(b.BBox)
	return true
}

// neighborOf returns the node adjacent to the pivot terminal: if the pivot
// is the head, that's Nds[1]; if the pivot is the tail, that's the
// second-to-last element.
func neighborOf(w *osm.Way, pivotIsHead bool) int64 {
	if pivotIsHead {
		return w.Nds[1]
	}
	return w.Nds[len(w.Nds)-2]
}

// turnAngleOK reports whether the angle at pivot between (neighborA→pivot)
// and (pivot→neighborB) is at most 30°, per rule 4. Missing coordinates
// fail the check conservatively (no join).
func turnAngleOK(neighborA, pivot, neighborB int64, lookup NodeLookup, proj geo.Projector) bool {
	aLat, aLon, ok := lookup(neighborA)
	if !ok {
		return false
	}
	pLat, pLon, ok := lookup(pivot)
	if !ok {
		return false
	}
	bLat, bLon, ok := lookup(neighborB)
	if !ok {
		return false
	}

	ax, ay := proj.CoordToXY(aLat, aLon)
	px, py := proj.CoordToXY(pLat, pLon)
	bx, by := proj.CoordToXY(bLat, bLon)

	v1x, v1y := px-ax, py-ay // neighborA -> pivot
	v2x, v2y := bx-px, by-py // pivot -> neighborB

	n1 := math.Hypot(v1x, v1y)
	n2 := math.Hypot(v2x, v2y)
	if n1 == 0 || n2 == 0 {
		return false
	}
	cosAngle := (v1x*v2x + v1y*v2y) / (n1 * n2)
	return cosAngle >= maxJoinAngleCos
}

// splice merges b's nds into a according to which terminal the pivot sits
// at in each, producing a single head-to-tail polyline in a.
func splice(a, b *osm.Way, aHeadIsPivot, bHeadIsPivot bool) {
	// Normalize a so the pivot is always at its tail.
	if aHeadIsPivot {
		reverse(a.Nds)
	}
	// Normalize b so the pivot is always at its head.
	bNds := append([]int64(nil), b.Nds...)
	if !bHeadIsPivot {
		reverse(bNds)
	}
	a.Nds = append(a.Nds, bNds[1:]...) // skip the duplicated pivot
}

func reverse(s []int64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
