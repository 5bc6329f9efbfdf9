package store

import (
	"compress/gzip"
	"encoding/xml"
	"io"

	"github.com/jeffboody/osmdb/internal/osm"
)

// The on-disk shape is a flat <osmdb> document holding one element per
// resident entity, gzip-compressed. Each chunk file holds exactly one kind
// of element (node/way/relation, or a bare ref list for the *_REF kinds);
// tile files hold all three ref lists together.

type xmlNodeDoc struct {
	XMLName xml.Name  `xml:"osmdb"`
	Nodes   []xmlNode `xml:"node"`
}

type xmlNode struct {
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

func nodeToXML(n osm.Node) xmlNode {
	return xmlNode{
		ID: n.ID, Lat: n.Lat, Lon: n.Lon, Class: n.Class,
		Name: n.Name, Abrev: n.Abrev, Ele: n.Ele, St: n.St, RefCount: n.RefCount,
	}
}

func xmlToNode(x xmlNode) osm.Node {
	return osm.Node{
		ID: x.ID, Lat: x.Lat, Lon: x.Lon, Class: x.Class,
		Name: x.Name, Abrev: x.Abrev, Ele: x.Ele, St: x.St, RefCount: x.RefCount,
	}
}

type xmlWayDoc struct {
	XMLName xml.Name `xml:"osmdb"`
	Ways    []xmlWay `xml:"way"`
}

type xmlNd struct {
	Ref int64 `xml:"ref,attr"`
}

type xmlWay struct {
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
	Nds     []xmlNd `xml:"nd"`
}

func wayToXML(w osm.Way) xmlWay {
	x := xmlWay{
		ID: w.ID, Class: w.Class, Layer: w.Layer, Name: w.Name, Abrev: w.Abrev,
		Oneway: w.Oneway, Bridge: w.Bridge, Tunnel: w.Tunnel, Cutting: w.Cutting,
	}
	if !w.BBox.Empty() {
		x.LatT, x.LonL, x.LatB, x.LonR = w.BBox.LatT, w.BBox.LonL, w.BBox.LatB, w.BBox.LonR
	}
	x.Nds = make([]xmlNd, len(w.Nds))
	for i, ref := range w.Nds {
		x.Nds[i] = xmlNd{Ref: ref}
	}
	return x
}

func xmlToWay(x xmlWay) osm.Way {
	w := osm.Way{
		ID: x.ID, Class: x.Class, Layer: x.Layer, Name: x.Name, Abrev: x.Abrev,
		Oneway: x.Oneway, Bridge: x.Bridge, Tunnel: x.Tunnel, Cutting: x.Cutting,
	}
	for _, nd := range x.Nds {
		w.AddNd(nd.Ref)
	}
	if x.LatT != 0 || x.LonL != 0 || x.LatB != 0 || x.LonR != 0 {
		w.BBox.AddPoint(x.LatT, x.LonL)
		w.BBox.AddPoint(x.LatB, x.LonR)
	}
	return w
}

type xmlRelationDoc struct {
	XMLName xml.Name      `xml:"osmdb"`
	Rels    []xmlRelation `xml:"relation"`
}

type xmlMember struct {
	Kind     string `xml:"type,attr"`
	Ref      int64  `xml:"ref,attr"`
	RoleCode uint8  `xml:"rolecode,attr"`
	RoleStr  string `xml:"rolestr,attr,omitempty"`
}

type xmlRelation struct {
	ID      int64       `xml:"id,attr"`
	Class   int32       `xml:"class,attr,omitempty"`
	Type    int32       `xml:"type,attr,omitempty"`
	Name    string      `xml:"name,attr,omitempty"`
	Abrev   string      `xml:"abrev,attr,omitempty"`
	LatT    float64     `xml:"latT,attr,omitempty"`
	LonL    float64     `xml:"lonL,attr,omitempty"`
	LatB    float64     `xml:"latB,attr,omitempty"`
	LonR    float64     `xml:"lonR,attr,omitempty"`
	Members []xmlMember `xml:"member"`
}

func relationToXML(r osm.Relation) xmlRelation {
	x := xmlRelation{ID: r.ID, Class: r.Class, Type: r.Type, Name: r.Name, Abrev: r.Abrev}
	if !r.BBox.Empty() {
		x.LatT, x.LonL, x.LatB, x.LonR = r.BBox.LatT, r.BBox.LonL, r.BBox.LatB, r.BBox.LonR
	}
	x.Members = make([]xmlMember, len(r.Members))
	for i, m := range r.Members {
		kind := "node"
		if m.Kind == osm.MemberWay {
			kind = "way"
		}
		x.Members[i] = xmlMember{Kind: kind, Ref: m.Ref, RoleCode: uint8(m.Role), RoleStr: m.RoleStr}
	}
	return x
}

func xmlToRelation(x xmlRelation) osm.Relation {
	r := osm.Relation{ID: x.ID, Class: x.Class, Type: x.Type, Name: x.Name, Abrev: x.Abrev}
	if x.LatT != 0 || x.LonL != 0 || x.LatB != 0 || x.LonR != 0 {
		r.BBox.AddPoint(x.LatT, x.LonL)
		r.BBox.AddPoint(x.LatB, x.LonR)
	}
	r.Members = make([]osm.Member, len(x.Members))
	for i, m := range x.Members {
		kind := osm.MemberNode
		if m.Kind == "way" {
			kind = osm.MemberWay
		}
		r.Members[i] = osm.Member{Kind: kind, Ref: m.Ref, Role: osm.Role(m.RoleCode), RoleStr: m.RoleStr}
	}
	return r
}

type xmlRefDoc struct {
	XMLName xml.Name `xml:"osmdb"`
	Refs    []xmlRef `xml:"ref"`
}

type xmlRef struct {
	ID int64 `xml:"id,attr"`
}

// writeGzipXML marshals v as an indented XML document and gzip-compresses
// it to w.
func writeGzipXML(w io.Writer, v any) error {
	gw := gzip.NewWriter(w)
	enc := xml.NewEncoder(gw)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

// readGzipXML gunzips r and unmarshals the XML document into v.
func readGzipXML(r io.Reader, v any) error {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gr.Close()
	return xml.NewDecoder(gr).Decode(v)
}

type xmlTileRef struct {
	Ref int64 `xml:"ref,attr"`
}

type xmlTileDoc struct {
	XMLName xml.Name     `xml:"osmdb"`
	Nodes   []xmlTileRef `xml:"n"`
	Ways    []xmlTileRef `xml:"w"`
	Rels    []xmlTileRef `xml:"r"`
}
