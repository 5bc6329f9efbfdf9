package osm

import (
	"fmt"
	"strconv"

	"github.com/jeffboody/osmdb/internal/geo"
)

// Way is an ordered sequence of node ids plus attributes. Order matters:
// nds describes a polyline (or, when closed, a polygon ring).
type Way struct {
	ID      int64
	Class   int32
	Layer   int8
	Name    string
	Abrev   string
	Oneway  bool
	Bridge  bool
	Tunnel  bool
	Cutting bool
	Nds     []int64
	BBox    geo.BBox
}

// NewWayFromAttrs builds a Way (with empty Nds) from a SAX-style attribute
// map; nds are appended by the caller as <nd> children are parsed.
func NewWayFromAttrs(attrs map[string]string) (Way, error) {
	id, err := strconv.ParseInt(attrs["id"], 10, 64)
	if err != nil {
		return Way{}, fmt.Errorf("way: invalid id %q: %w", attrs["id"], err)
	}
	w := Way{ID: id}
	if v, ok := attrs["class"]; ok {
		w.Class = parseInt32(v)
	}
	if v, ok := attrs["layer"]; ok {
		w.Layer = int8(parseInt32(v))
	}
	w.Name = attrs["name"]
	w.Abrev = attrs["abrev"]
	w.Oneway = attrs["oneway"] == "1"
	w.Bridge = attrs["bridge"] == "1"
	w.Tunnel = attrs["tunnel"] == "1"
	w.Cutting = attrs["cutting"] == "1"
	return w, nil
}

// AddNd appends a referenced node id, preserving order.
func (w *Way) AddNd(ref int64) {
	w.Nds = append(w.Nds, ref)
}

// Closed reports whether the way's first and last nds coincide (a loop).
func (w *Way) Closed() bool {
	return len(w.Nds) >= 2 && w.Nds[0] == w.Nds[len(w.Nds)-1]
}

// SameAttrs reports whether two ways share class, layer, and the four
// boolean road flags exactly; part of the join-eligibility test.
func (w *Way) SameAttrs(o *Way) bool {
	return w.Class == o.Class &&
		w.Layer == o.Layer &&
		w.Oneway == o.Oneway &&
		w.Bridge == o.Bridge &&
		w.Tunnel == o.Tunnel &&
		w.Cutting == o.Cutting
}

// SameName reports whether both names are empty, or both are non-empty and
// equal (join-eligibility rule 6).
func (w *Way) SameName(o *Way) bool {
	if w.Name == "" && o.Name == "" {
		return true
	}
	return w.Name != "" && o.Name != "" && w.Name == o.Name
}

// Clone returns a deep structural copy (Nds is a distinct backing array).
func (w Way) Clone() Way {
	c := w
	c.Nds = append([]int64(nil), w.Nds...)
	return c
}

// SizeOf estimates the in-memory byte footprint used for chunk cache accounting.
func (w Way) SizeOf() int64 {
	const structSize = 96
	return int64(structSize + len(w.Name) + len(w.Abrev) + len(w.Nds)*8)
}
