package tileproc

import (
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeffboody/osmdb/internal/osm"
)

// GzipXMLWriter is the gzipped-XML implementation of Writer: it
// accumulates the gathered entities in call order and, on Finalize, encodes
// them as one <osmdb> document and writes it atomically via a temp-file-
// then-rename, matching the chunk/tile store's own write discipline
// (internal/store's ChunkStore.flush).
type GzipXMLWriter struct {
	path string
	doc  docXML
}

// NewGzipXMLWriter creates a writer that will produce path on Finalize.
func NewGzipXMLWriter(path string) *GzipXMLWriter {
	return &GzipXMLWriter{path: path}
}

type docXML struct {
	XMLName   xml.Name      `xml:"osmdb"`
	Nodes     []docNode     `xml:"node"`
	Ways      []docWay      `xml:"way"`
	Relations []docRelation `xml:"relation"`
}

type docNode struct {
	ID       int64   `xml:"id,attr"`
	Lat      float64 `xml:"lat,attr"`
	Lon      float64 `xml:"lon,attr"`
	Class    int32   `xml:"class,attr,omitempty"`
	Name     string  `xml:"name,attr,omitempty"`
	Abrev    string  `xml:"abrev,attr,omitempty"`
	Ele      int32   `xml:"ele,attr,omitempty"`
	St       uint8   `xml:"st,attr,omitempty"`
	RefCount int32   `xml:"refcount,attr,omitempty"`
}

type docNd struct {
	Ref int64 `xml:"ref,attr"`
}

type docWay struct {
	ID      int64   `xml:"id,attr"`
	Class   int32   `xml:"class,attr,omitempty"`
	Layer   int8    `xml:"layer,attr,omitempty"`
	Name    string  `xml:"name,attr,omitempty"`
	Abrev   string  `xml:"abrev,attr,omitempty"`
	Oneway  bool    `xml:"oneway,attr,omitempty"`
	Bridge  bool    `xml:"bridge,attr,omitempty"`
	Tunnel  bool    `xml:"tunnel,attr,omitempty"`
	Cutting bool    `xml:"cutting,attr,omitempty"`
	LatT    float64 `xml:"latT,attr,omitempty"`
	LonL    float64 `xml:"lonL,attr,omitempty"`
	LatB    float64 `xml:"latB,attr,omitempty"`
	LonR    float64 `xml:"lonR,attr,omitempty"`
	Nds     []docNd `xml:"nd"`
}

type docMember struct {
	Kind     string `xml:"type,attr"`
	Ref      int64  `xml:"ref,attr"`
	RoleCode uint8  `xml:"rolecode,attr"`
	RoleStr  string `xml:"rolestr,attr,omitempty"`
}

type docRelation struct {
	ID      int64       `xml:"id,attr"`
	Class   int32       `xml:"class,attr,omitempty"`
	Type    int32       `xml:"type,attr,omitempty"`
	Name    string      `xml:"name,attr,omitempty"`
	Abrev   string      `xml:"abrev,attr,omitempty"`
	LatT    float64     `xml:"latT,attr,omitempty"`
	LonL    float64     `xml:"lonL,attr,omitempty"`
	LatB    float64     `xml:"latB,attr,omitempty"`
	LonR    float64     `xml:"lonR,attr,omitempty"`
	Members []docMember `xml:"member"`
}

// WriteNode implements Writer.
func (g *GzipXMLWriter) WriteNode(n osm.Node) error {
	g.doc.Nodes = append(g.doc.Nodes, docNode{
		ID: n.ID, Lat: n.Lat, Lon: n.Lon, Class: n.Class,
		Name: n.Name, Abrev: n.Abrev, Ele: n.Ele, St: n.St, RefCount: n.RefCount,
	})
	return nil
}

// WriteWay implements Writer.
func (g *GzipXMLWriter) WriteWay(w osm.Way) error {
	dw := docWay{
		ID: w.ID, Class: w.Class, Layer: w.Layer, Name: w.Name, Abrev: w.Abrev,
		Oneway: w.Oneway, Bridge: w.Bridge, Tunnel: w.Tunnel, Cutting: w.Cutting,
	}
	if !w.BBox.Empty() {
		dw.LatT, dw.LonL, dw.LatB, dw.LonR = w.BBox.LatT, w.BBox.LonL, w.BBox.LatB, w.BBox.LonR
	}
	dw.Nds = make([]docNd, len(w.Nds))
	for i, ref := range w.Nds {
		dw.Nds[i] = docNd{Ref: ref}
	}
	g.doc.Ways = append(g.doc.Ways, dw)
	return nil
}

// WriteRelation implements Writer.
func (g *GzipXMLWriter) WriteRelation(r osm.Relation) error {
	dr := docRelation{ID: r.ID, Class: r.Class, Type: r.Type, Name: r.Name, Abrev: r.Abrev}
	if !r.BBox.Empty() {
		dr.LatT, dr.LonL, dr.LatB, dr.LonR = r.BBox.LatT, r.BBox.LonL, r.BBox.LatB, r.BBox.LonR
	}
	dr.Members = make([]docMember, len(r.Members))
	for i, m := range r.Members {
		kind := "node"
		if m.Kind == osm.MemberWay {
			kind = "way"
		}
		dr.Members[i] = docMember{Kind: kind, Ref: m.Ref, RoleCode: uint8(m.Role), RoleStr: m.RoleStr}
	}
	g.doc.Relations = append(g.doc.Relations, dr)
	return nil
}

// Finalize writes the accumulated document to g.path via a temp-file-then-
// rename, reporting complete=true only once the rename has succeeded.
func (g *GzipXMLWriter) Finalize() (bool, error) {
	dir := filepath.Dir(g.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("tileproc: creating tile dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "tiledoc-*.tmp")
	if err != nil {
		return false, fmt.Errorf("tileproc: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	gw := gzip.NewWriter(tmp)
	enc := xml.NewEncoder(gw)
	enc.Indent("", "  ")
	if err := enc.Encode(&g.doc); err != nil {
		gw.Close()
		tmp.Close()
		os.Remove(tmpPath)
		return false, fmt.Errorf("tileproc: encoding tile document: %w", err)
	}
	if err := gw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return false, fmt.Errorf("tileproc: closing gzip stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("tileproc: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, g.path); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("tileproc: renaming tile document: %w", err)
	}
	return true, nil
}
