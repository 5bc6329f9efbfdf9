package wayalg

import (
	"math"

	"github.com/jeffboody/osmdb/internal/geo"
)

// quadrant classifies a point outside the clip bbox by which side of the
// tile it exits through. quadNone means the point lies
// inside the bbox.
type quadrant int

const (
	quadNone quadrant = iota
	quadTop
	quadLeft
	quadBottom
	quadRight
)

// classify implements the dot-product test against the clip bbox's
// top-left and top-right corners, from its planar center.
func classify(lat, lon float64, bbox geo.BBox, proj geo.Projector) quadrant {
	if bbox.Contains(lat, lon) {
		return quadNone
	}
	cx, cy := proj.CoordToXY((bbox.LatT+bbox.LatB)/2, (bbox.LonL+bbox.LonR)/2)
	tlx, tly := proj.CoordToXY(bbox.LatT, bbox.LonL)
	trx, try_ := proj.CoordToXY(bbox.LatT, bbox.LonR)
	px, py := proj.CoordToXY(lat, lon)

	tlvx, tlvy := unit(tlx-cx, tly-cy)
	trvx, trvy := unit(trx-cx, try_-cy)
	pvx, pvy := px-cx, py-cy

	dotTL := pvx*tlvx + pvy*tlvy
	dotTR := pvx*trvx + pvy*trvy

	switch {
	case dotTL > 0 && dotTR > 0:
		return quadTop
	case dotTL > 0 && dotTR <= 0:
		return quadLeft
	case dotTL <= 0 && dotTR <= 0:
		return quadBottom
	default:
		return quadRight
	}
}

func unit(x, y float64) (float64, float64) {
	n := math.Hypot(x, y)
	if n == 0 {
		return 0, 0
	}
	return x / n, y / n
}

type nodeInfo struct {
	quad     quadrant
	outside  bool
	hasCoord bool
}

// Clip drops nds that lie strictly outside bbox and are redundant: a
// sliding triple of consecutive outside quadrants that all agree means the
// middle node adds no new boundary crossing. An interior
// (inside-bbox) node resets the tracking — it is never itself removed.
// Missing nodes (lookup returns ok=false) are passed through unchanged and
// never treated as removal candidates.
func Clip(nds []int64, bbox geo.BBox, lookup NodeLookup, proj geo.Projector) []int64 {
	n := len(nds)
	if n == 0 {
		return nds
	}
	closed := n >= 2 && nds[0] == nds[n-1]

	infos := make([]nodeInfo, n)
	for i, id := range nds {
		lat, lon, ok := lookup(id)
		if !ok {
			continue
		}
		q := classify(lat, lon, bbox, proj)
		infos[i] = nodeInfo{quad: q, outside: q != quadNone, hasCoord: true}
	}

	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	for i := 1; i < n-1; i++ {
		if !infos[i].outside {
			continue
		}
		prev := prevOutside(infos, i, 0)
		next := nextOutside(infos, i, n-1)
		if prev != nil && next != nil && *prev == infos[i].quad && infos[i].quad == *next {
			keep[i] = false
		}
	}

	if closed {
		if infos[0].outside {
			prev := prevOutside(infos, n-1, 1) // search n-2..1, skipping the duplicate endpoints
			next := nextOutside(infos, 0, n-2)
			if prev != nil && next != nil && *prev == infos[0].quad && infos[0].quad == *next {
				keep[0] = false
				keep[n-1] = false
			}
		}
	} else if n >= 2 && infos[n-1].outside {
		for j := n - 2; j >= 0; j-- {
			if !infos[j].hasCoord {
				continue
			}
			if infos[j].outside && infos[j].quad == infos[n-1].quad {
				keep[n-1] = false
			}
			break
		}
	}

	out := make([]int64, 0, n)
	for i, id := range nds {
		if keep[i] {
			out = append(out, id)
		}
	}
	return out
}

// prevOutside scans backward from i (exclusive) down to lowerBound
// (inclusive) for the nearest outside node, returning nil if an interior
// (inside-bbox) node is hit first.
func prevOutside(infos []nodeInfo, i, lowerBound int) *quadrant {
	for j := i - 1; j >= lowerBound; j-- {
		if !infos[j].hasCoord {
			continue
		}
		if infos[j].outside {
			q := infos[j].quad
			return &q
		}
		return nil
	}
	return nil
}

// nextOutside scans forward from i (exclusive) up to upperBound
// (inclusive) for the nearest outside node, returning nil if an interior
// node is hit first.
func nextOutside(infos []nodeInfo, i, upperBound int) *quadrant {
	for j := i + 1; j <= upperBound; j++ {
		if !infos[j].hasCoord {
			continue
		}
		if infos[j].outside {
			q := infos[j].quad
			return &q
		}
		return nil
	}
	return nil
}
