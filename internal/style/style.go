// Package style loads the class filter/style table: a flat, read-only map
// from class code to rendering/selection rules, computed once from a
// configuration file and immutable thereafter.
package style

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// ClassInfo is the per-class filter/style record.
type ClassInfo struct {
	MinZoom int32
	Center  bool
	Named   bool
	Point   bool
	Line    bool
	Poly    bool
}

// Adapter is the compiled, immutable filter/style table.
type Adapter struct {
	classes map[int32]ClassInfo
}

// classRule mirrors one <class> element of filter.xml.
type classRule struct {
	Code    int32 `xml:"code,attr"`
	MinZoom int32 `xml:"minzoom,attr"`
	Center  bool  `xml:"center,attr"`
	Named   bool  `xml:"named,attr"`
	Point   bool  `xml:"point,attr"`
	Line    bool  `xml:"line,attr"`
	Poly    bool  `xml:"poly,attr"`
}

type filterDoc struct {
	XMLName xml.Name    `xml:"filter"`
	Classes []classRule `xml:"class"`
}

// Load parses filter.xml from path and compiles it into an Adapter.
func Load(path string) (*Adapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("style: opening %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse compiles an Adapter from an already-open filter.xml stream.
func Parse(r io.Reader) (*Adapter, error) {
	var doc filterDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("style: decoding filter.xml: %w", err)
	}
	a := &Adapter{classes: make(map[int32]ClassInfo, len(doc.Classes))}
	for _, c := range doc.Classes {
		a.classes[c.Code] = ClassInfo{
			MinZoom: c.MinZoom,
			Center:  c.Center,
			Named:   c.Named,
			Point:   c.Point,
			Line:    c.Line,
			Poly:    c.Poly,
		}
	}
	return a, nil
}

// Lookup returns the rules for class, and whether the class is known at
// all. An unknown class should be treated conservatively by the caller
// (typically: reject).
func (a *Adapter) Lookup(class int32) (ClassInfo, bool) {
	c, ok := a.classes[class]
	return c, ok
}

// Len returns the number of distinct classes the adapter knows about.
func (a *Adapter) Len() int { return len(a.classes) }
