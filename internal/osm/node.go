// Package osm holds the node/way/relation value types shared by the chunk
// store and the tile-production pipeline. Construction from SAX-style
// attribute maps, structural cloning, and byte-size estimation for cache
// accounting live here; XML serialization lives in the packages that own
// each file format (internal/store, internal/bulkio, internal/tileproc),
// and the streaming XML parser itself is an external collaborator the
// ingest tools own.
package osm

import (
	"fmt"
	"strconv"
)

// Node is a single point entity.
type Node struct {
	ID       int64
	Lat, Lon float64
	Class    int32
	Name     string // "" if absent
	Abrev    string // "" if absent; US-postal-style abbreviation, set at parse time only
	Ele      int32  // elevation in feet, 0 if absent
	St       uint8  // US state code 1..59, 0 if absent
	RefCount int32
}

// NewNodeFromAttrs builds a Node from a SAX-style attribute map, as handed
// over by the XML parser's start-element callback.
func NewNodeFromAttrs(attrs map[string]string) (Node, error) {
	id, err := strconv.ParseInt(attrs["id"], 10, 64)
	if err != nil {
		return Node{}, fmt.Errorf("node: invalid id %q: %w", attrs["id"], err)
	}
	lat, err := strconv.ParseFloat(attrs["lat"], 64)
	if err != nil {
		return Node{}, fmt.Errorf("node %d: invalid lat %q: %w", id, attrs["lat"], err)
	}
	lon, err := strconv.ParseFloat(attrs["lon"], 64)
	if err != nil {
		return Node{}, fmt.Errorf("node %d: invalid lon %q: %w", id, attrs["lon"], err)
	}

	n := Node{ID: id, Lat: lat, Lon: lon}
	if v, ok := attrs["class"]; ok {
		n.Class = parseInt32(v)
	}
	n.Name = attrs["name"]
	n.Abrev = attrs["abrev"]
	if v, ok := attrs["ele"]; ok {
		n.Ele = parseInt32(v)
	}
	if v, ok := attrs["st"]; ok {
		n.St = uint8(parseInt32(v))
	}
	if v, ok := attrs["refcount"]; ok {
		n.RefCount = parseInt32(v)
	}
	return n, nil
}

// Clone returns a structural copy; Node has no reference fields so this is a
// plain value copy, kept as a named method for symmetry with Way/Relation.
func (n Node) Clone() Node { return n }

// SizeOf estimates the in-memory byte footprint used for chunk cache
// accounting: the struct itself plus the two variable-length strings.
func (n Node) SizeOf() int64 {
	const structSize = 64 // id, lat, lon, class, ele, st, refcount, string headers
	return int64(structSize + len(n.Name) + len(n.Abrev))
}

func parseInt32(s string) int32 {
	v, _ := strconv.ParseInt(s, 10, 32)
	return int32(v)
}
