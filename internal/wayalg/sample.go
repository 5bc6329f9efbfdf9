package wayalg

import (
	"math"

	"github.com/jeffboody/osmdb/internal/geo"
)

// Sampler precomputes min_dist(z) for the fixed zoom ladder from one
// canonical "home" coordinate. Only the ratio between zoom levels matters
// at these scales, so any representative location works; the default is a
// documented constant.
type Sampler struct {
	proj             geo.Projector
	homeLat, homeLon float64
	minDist          map[int]float64
}

// DefaultHomeLat/DefaultHomeLon are Boulder, CO — the canonical point used
// to seed min_dist(z) when the caller has no better representative location
// for their dataset.
const (
	DefaultHomeLat = 40.0150
	DefaultHomeLon = -105.2705
)

// ZoomLadder is the fixed set of zooms the system indexes at.
var ZoomLadder = []int{3, 5, 7, 9, 11, 13, 15}

// NewSampler precomputes min_dist(z) for every zoom in ZoomLadder.
func NewSampler(proj geo.Projector, homeLat, homeLon float64) *Sampler {
	s := &Sampler{proj: proj, homeLat: homeLat, homeLon: homeLon, minDist: make(map[int]float64, len(ZoomLadder))}
	for _, z := range ZoomLadder {
		s.minDist[z] = s.computeMinDist(z)
	}
	return s
}

// computeMinDist projects the home coordinate's containing tile at zoom z
// and derives the planar gap corresponding to ~1 pixel at that zoom: 1/8 of
// the diagonal tile extent divided by √2·256. The 1/8 factor accounts for
// the ladder serving three zoom levels per stored sample.
func (s *Sampler) computeMinDist(z int) float64 {
	tx, ty := s.proj.CoordToTile(s.homeLat, s.homeLon, z)
	itx, ity := geo.TileXYInt(tx, ty, z)
	b := geo.TileBounds(z, itx, ity)

	x0, y0 := s.proj.CoordToXY(b.LatB, b.LonL)
	x1, y1 := s.proj.CoordToXY(b.LatT, b.LonR)
	diagonal := math.Hypot(x1-x0, y1-y0)

	return (diagonal / 8) / (math.Sqrt2 * 256)
}

// MinDist returns the precomputed minimum planar distance for zoom z. A
// zoom not on the ladder returns 0 (no decimation), which callers should
// treat as a programming error rather than rely on.
func (s *Sampler) MinDist(z int) float64 {
	return s.minDist[z]
}

// Sample decimates nds (node ids, in order) for zoom z: the first and last
// nd are always kept; each subsequent nd is kept only if its planar
// distance from the last *kept* nd is >= min_dist(z). Missing nodes
// (lookup returns ok=false) are skipped silently and never count against
// the distance budget.
func Sample(nds []int64, z int, lookup NodeLookup, proj geo.Projector, minDist float64) []int64 {
	if len(nds) <= 2 {
		return nds
	}

	out := make([]int64, 0, len(nds))
	out = append(out, nds[0])

	lastLat, lastLon, lastOK := lookup(nds[0])

	for i := 1; i < len(nds)-1; i++ {
		lat, lon, ok := lookup(nds[i])
		if !ok {
			continue
		}
		if !lastOK {
			out = append(out, nds[i])
			lastLat, lastLon, lastOK = lat, lon, true
			continue
		}
		x0, y0 := proj.CoordToXY(lastLat, lastLon)
		x1, y1 := proj.CoordToXY(lat, lon)
		if math.Hypot(x1-x0, y1-y0) >= minDist {
			out = append(out, nds[i])
			lastLat, lastLon, lastOK = lat, lon, true
		}
	}

	out = append(out, nds[len(nds)-1])
	return out
}
