package geo

import "testing"

func TestBBoxAddPointInitializes(t *testing.T) {
	var b BBox
	if !b.Empty() {
		t.Fatal("new bbox should be empty")
	}
	b.AddPoint(40.0, -105.0)
	if b.Empty() {
		t.Fatal("bbox should not be empty after AddPoint")
	}
	if b.LatT != 40.0 || b.LatB != 40.0 || b.LonL != -105.0 || b.LonR != -105.0 {
		t.Errorf("first point should set all four coords, got %+v", b)
	}
}

func TestBBoxAddPointWidens(t *testing.T) {
	var b BBox
	b.AddPoint(0, 0)
	b.AddPoint(1, 2)
	b.AddPoint(-1, -2)
	if b.LatT != 1 || b.LatB != -1 || b.LonL != -2 || b.LonR != 2 {
		t.Errorf("bbox did not widen correctly: %+v", b)
	}
}

func TestBBoxContains(t *testing.T) {
	var b BBox
	b.AddPoint(0, 0)
	b.AddPoint(10, 10)
	if !b.Contains(5, 5) {
		t.Error("expected (5,5) inside bbox")
	}
	if b.Contains(20, 20) {
		t.Error("expected (20,20) outside bbox")
	}
	// Boundary is inclusive.
	if !b.Contains(0, 0) || !b.Contains(10, 10) {
		t.Error("bbox boundary should be inclusive")
	}
}

func TestBBoxAddBBoxEmptyIsNoop(t *testing.T) {
	var b BBox
	b.AddPoint(1, 1)
	var other BBox
	b.AddBBox(other)
	if b.LatT != 1 || b.LonR != 1 {
		t.Errorf("adding empty bbox mutated: %+v", b)
	}
}
