// Package bulkio is the gzipped-XML format osm-parser writes and
// osm-indexer/osm-tiler read back: a flat document of nodes, ways and
// relations (Writer puts all three kinds in one file), independent of the
// chunked on-disk layout internal/store uses once
// entities are inside the database. The document shape mirrors
// internal/store's own chunk codec (internal/store/xmlcodec.go) since both
// serialize the same entity model; this package keeps its own copy because
// store's types are unexported and bulk files are not chunked by id_upper.
package bulkio

import (
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeffboody/osmdb/internal/osm"
)

type bulkDoc struct {
	XMLName   xml.Name       `xml:"osmdb"`
	Nodes     []bulkNode     `xml:"node"`
	Ways      []bulkWay      `xml:"way"`
	Relations []bulkRelation `xml:"relation"`
}

type bulkNode struct {
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

type bulkNd struct {
	Ref int64 `xml:"ref,attr"`
}

type bulkWay struct {
	ID      int64    `xml:"id,attr"`
	Class   int32    `xml:"class,attr,omitempty"`
	Layer   int8     `xml:"layer,attr,omitempty"`
	Name    string   `xml:"name,attr,omitempty"`
	Abrev   string   `xml:"abrev,attr,omitempty"`
	Oneway  bool     `xml:"oneway,attr,omitempty"`
	Bridge  bool     `xml:"bridge,attr,omitempty"`
	Tunnel  bool     `xml:"tunnel,attr,omitempty"`
	Cutting bool     `xml:"cutting,attr,omitempty"`
	Nds     []bulkNd `xml:"nd"`
}

type bulkMember struct {
	Kind     string `xml:"type,attr"`
	Ref      int64  `xml:"ref,attr"`
	RoleCode uint8  `xml:"rolecode,attr"`
	RoleStr  string `xml:"rolestr,attr,omitempty"`
}

type bulkRelation struct {
	ID      int64        `xml:"id,attr"`
	Class   int32        `xml:"class,attr,omitempty"`
	Type    int32        `xml:"type,attr,omitempty"`
	Name    string       `xml:"name,attr,omitempty"`
	Abrev   string       `xml:"abrev,attr,omitempty"`
	Members []bulkMember `xml:"member"`
}

// Writer accumulates entities in call order and writes them as one gzipped
// XML document on Close, via a temp-file-then-rename.
type Writer struct {
	path string
	doc  bulkDoc
}

// NewWriter creates a Writer that will produce path on Close.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// WriteNode appends a node to the document.
func (w *Writer) WriteNode(n osm.Node) {
	w.doc.Nodes = append(w.doc.Nodes, bulkNode{
		ID: n.ID, Lat: n.Lat, Lon: n.Lon, Class: n.Class,
		Name: n.Name, Abrev: n.Abrev, Ele: n.Ele, St: n.St, RefCount: n.RefCount,
	})
}

// WriteWay appends a way to the document.
func (w *Writer) WriteWay(wy osm.Way) {
	bw := bulkWay{
		ID: wy.ID, Class: wy.Class, Layer: wy.Layer, Name: wy.Name, Abrev: wy.Abrev,
		Oneway: wy.Oneway, Bridge: wy.Bridge, Tunnel: wy.Tunnel, Cutting: wy.Cutting,
	}
	bw.Nds = make([]bulkNd, len(wy.Nds))
	for i, ref := range wy.Nds {
		bw.Nds[i] = bulkNd{Ref: ref}
	}
	w.doc.Ways = append(w.doc.Ways, bw)
}

// WriteRelation appends a relation to the document.
func (w *Writer) WriteRelation(r osm.Relation) {
	br := bulkRelation{ID: r.ID, Class: r.Class, Type: r.Type, Name: r.Name, Abrev: r.Abrev}
	br.Members = make([]bulkMember, len(r.Members))
	for i, m := range r.Members {
		kind := "node"
		if m.Kind == osm.MemberWay {
			kind = "way"
		}
		br.Members[i] = bulkMember{Kind: kind, Ref: m.Ref, RoleCode: uint8(m.Role), RoleStr: m.RoleStr}
	}
	w.doc.Relations = append(w.doc.Relations, br)
}

// Close writes the accumulated document to w.path.
func (w *Writer) Close() error {
	dir := filepath.Dir(w.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("bulkio: creating dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, "bulk-*.tmp")
	if err != nil {
		return fmt.Errorf("bulkio: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	gw := gzip.NewWriter(tmp)
	enc := xml.NewEncoder(gw)
	enc.Indent("", "  ")
	if err := enc.Encode(&w.doc); err != nil {
		gw.Close()
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("bulkio: encoding: %w", err)
	}
	if err := gw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("bulkio: closing gzip stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("bulkio: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("bulkio: renaming: %w", err)
	}
	return nil
}

// ReadNodes reads only the <node> elements of a bulk document at path.
func ReadNodes(path string) ([]osm.Node, error) {
	doc, err := readDoc(path)
	if err != nil {
		return nil, err
	}
	return docNodes(doc), nil
}

// ReadWays reads only the <way> elements of a bulk document at path.
func ReadWays(path string) ([]osm.Way, error) {
	doc, err := readDoc(path)
	if err != nil {
		return nil, err
	}
	return docWays(doc), nil
}

// ReadRelations reads only the <relation> elements of a bulk document at path.
func ReadRelations(path string) ([]osm.Relation, error) {
	doc, err := readDoc(path)
	if err != nil {
		return nil, err
	}
	return docRelations(doc), nil
}

// ReadAll reads every entity of a bulk document at path in one pass, for
// callers consuming a combined (single-file) bulk document.
func ReadAll(path string) ([]osm.Node, []osm.Way, []osm.Relation, error) {
	doc, err := readDoc(path)
	if err != nil {
		return nil, nil, nil, err
	}
	return docNodes(doc), docWays(doc), docRelations(doc), nil
}

func docNodes(doc bulkDoc) []osm.Node {
	out := make([]osm.Node, len(doc.Nodes))
	for i, x := range doc.Nodes {
		out[i] = osm.Node{ID: x.ID, Lat: x.Lat, Lon: x.Lon, Class: x.Class, Name: x.Name, Abrev: x.Abrev, Ele: x.Ele, St: x.St, RefCount: x.RefCount}
	}
	return out
}

func docWays(doc bulkDoc) []osm.Way {
	out := make([]osm.Way, len(doc.Ways))
	for i, x := range doc.Ways {
		w := osm.Way{ID: x.ID, Class: x.Class, Layer: x.Layer, Name: x.Name, Abrev: x.Abrev,
			Oneway: x.Oneway, Bridge: x.Bridge, Tunnel: x.Tunnel, Cutting: x.Cutting}
		for _, nd := range x.Nds {
			w.AddNd(nd.Ref)
		}
		out[i] = w
	}
	return out
}

func docRelations(doc bulkDoc) []osm.Relation {
	out := make([]osm.Relation, len(doc.Relations))
	for i, x := range doc.Relations {
		r := osm.Relation{ID: x.ID, Class: x.Class, Type: x.Type, Name: x.Name, Abrev: x.Abrev}
		for _, m := range x.Members {
			roleAttr := osm.Role(m.RoleCode).String()
			if osm.Role(m.RoleCode) == osm.RoleOther {
				roleAttr = m.RoleStr
			}
			r.AddMember(m.Kind, m.Ref, roleAttr)
		}
		out[i] = r
	}
	return out
}

func readDoc(path string) (bulkDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return bulkDoc{}, fmt.Errorf("bulkio: opening %s: %w", path, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return bulkDoc{}, fmt.Errorf("bulkio: %s: %w", path, err)
	}
	defer gr.Close()

	var doc bulkDoc
	if err := xml.NewDecoder(gr).Decode(&doc); err != nil {
		return bulkDoc{}, fmt.Errorf("bulkio: decoding %s: %w", path, err)
	}
	return doc, nil
}
