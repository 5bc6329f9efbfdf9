package geo

// BBox is an axis-aligned bounding box in WGS84 degrees.
type BBox struct {
	LatT float64 // top (max lat)
	LonL float64 // left (min lon)
	LatB float64 // bottom (min lat)
	LonR float64 // right (max lon)

	initialized bool
}

// NewBBox returns an empty bbox ready for AddPoint calls.
func NewBBox() BBox {
	return BBox{}
}

// Empty reports whether the bbox has never had a point added.
func (b *BBox) Empty() bool {
	return !b.initialized
}

// AddPoint widens the bbox to include (lat, lon). The first point added
// initializes all four coordinates; subsequent points only ever widen.
func (b *BBox) AddPoint(lat, lon float64) {
	if !b.initialized {
		b.LatT, b.LatB = lat, lat
		b.LonL, b.LonR = lon, lon
		b.initialized = true
		return
	}
	if lat > b.LatT {
		b.LatT = lat
	}
	if lat < b.LatB {
		b.LatB = lat
	}
	if lon < b.LonL {
		b.LonL = lon
	}
	if lon > b.LonR {
		b.LonR = lon
	}
}

// AddBBox widens b to include all of other. A no-op if other is empty.
func (b *BBox) AddBBox(other BBox) {
	if other.Empty() {
		return
	}
	b.AddPoint(other.LatT, other.LonL)
	b.AddPoint(other.LatB, other.LonR)
}

// Contains reports whether (lat, lon) lies within the closed bbox.
func (b *BBox) Contains(lat, lon float64) bool {
	return lat <= b.LatT && lat >= b.LatB && lon >= b.LonL && lon <= b.LonR
}

// Expand returns a copy of b grown by frac of its own width/height on each
// side (used for tile overscan during AddTileRef and clip-bounds expansion).
func (b BBox) Expand(frac float64) BBox {
	dLat := (b.LatT - b.LatB) * frac
	dLon := (b.LonR - b.LonL) * frac
	return BBox{
		LatT:        b.LatT + dLat,
		LatB:        b.LatB - dLat,
		LonL:        b.LonL - dLon,
		LonR:        b.LonR + dLon,
		initialized: b.initialized,
	}
}
