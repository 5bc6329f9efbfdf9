package wayalg

import (
	"testing"

	"github.com/jeffboody/osmdb/internal/geo"
	"github.com/jeffboody/osmdb/internal/osm"
)

// straight line along a meridian: easy to reason about angles and
// distances in the mercator plane.
var coords = map[int64][2]float64{
	1: {40.00, -105.30},
	2: {40.01, -105.30},
	3: {40.02, -105.30},
	4: {40.03, -105.30}, // collinear continuation of way a
	5: {40.03, -105.10}, // sharp turn east: > 30 degrees from the meridian
}

func lookup(id int64) (lat, lon float64, ok bool) {
	c, ok := coords[id]
	return c[0], c[1], ok
}

func TestJoinStraightContinuation(t *testing.T) {
	a := &osm.Way{ID: 1, Class: 5, Nds: []int64{1, 2, 3}}
	b := &osm.Way{ID: 2, Class: 5, Nds: []int64{3, 4}}

	ok := Join(a, b, 3, lookup, geo.MercatorProjector{})
	if !ok {
		t.Fatal("expected straight-line continuation to join")
	}
	want := []int64{1, 2, 3, 4}
	if !equalIDs(a.Nds, want) {
		t.Errorf("a.Nds = %v, want %v", a.Nds, want)
	}
}

func TestJoinRejectsSharpAngle(t *testing.T) {
	a := &osm.Way{ID: 1, Class: 5, Nds: []int64{1, 2, 3}}
	b := &osm.Way{ID: 2, Class: 5, Nds: []int64{3, 5}}

	if Join(a, b, 3, lookup, geo.MercatorProjector{}) {
		t.Error("expected sharp-angle join to be rejected")
	}
}

func TestJoinRejectsClassMismatch(t *testing.T) {
	a := &osm.Way{ID: 1, Class: 5, Nds: []int64{1, 2, 3}}
	b := &osm.Way{ID: 2, Class: 6, Nds: []int64{3, 4}}

	if Join(a, b, 3, lookup, geo.MercatorProjector{}) {
		t.Error("expected class mismatch to be rejected")
	}
}

func TestJoinRejectsNameMismatch(t *testing.T) {
	a := &osm.Way{ID: 1, Class: 5, Name: "Mesa Trail", Nds: []int64{1, 2, 3}}
	b := &osm.Way{ID: 2, Class: 5, Name: "Bear Canyon Trail", Nds: []int64{3, 4}}

	if Join(a, b, 3, lookup, geo.MercatorProjector{}) {
		t.Error("expected name mismatch to be rejected")
	}
}

func TestJoinRejectsSelfJoin(t *testing.T) {
	a := &osm.Way{ID: 1, Class: 5, Nds: []int64{1, 2, 3}}
	if Join(a, a, 3, lookup, geo.MercatorProjector{}) {
		t.Error("expected self-join to be rejected")
	}
}

func TestJoinRejectsClosedLoop(t *testing.T) {
	a := &osm.Way{ID: 1, Class: 5, Nds: []int64{1, 2, 1}}
	b := &osm.Way{ID: 2, Class: 5, Nds: []int64{1, 4}}
	if Join(a, b, 1, lookup, geo.MercatorProjector{}) {
		t.Error("expected closed loop to be rejected as join eligible")
	}
}

func TestJoinRejectsNonOppositeTerminal(t *testing.T) {
	a := &osm.Way{ID: 1, Class: 5, Nds: []int64{1, 2, 3}}
	// pivot 3 is a's tail and b's head: opposite terminals, should join.
	// Reversing b so the pivot is b's tail too (both terminals agree) must fail.
	bBad := &osm.Way{ID: 3, Class: 5, Nds: []int64{4, 3}}
	if Join(a, bBad, 3, lookup, geo.MercatorProjector{}) {
		t.Error("expected same-terminal pivot to be rejected (not head-to-tail)")
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
