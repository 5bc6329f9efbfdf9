package index

import "github.com/jeffboody/osmdb/internal/tileproc"

// MakeTile runs the tile-production pipeline for (zoom, x, y)
// and emits the result through w. See internal/tileproc for the ten-step
// gather/join/sample/clip/emit algorithm; the façade just wires the two
// stores and the projector/sampler this Index was opened with into a
// Producer.
func (ix *Index) MakeTile(zoom, x, y int, w tileproc.Writer) error {
	p := tileproc.NewProducer(ix.chunks, ix.tiles, ix.proj, ix.sampler)
	return p.MakeTile(zoom, x, y, w)
}
