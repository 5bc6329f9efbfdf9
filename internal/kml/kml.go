// Package kml ingests KML boundary files (parks, wilderness areas,
// counties, and similar polygons) into the tiled index, supplementing the
// OSM-sourced pipeline with a second input format.
//
// A KML document has no stable integer ids of its own, so every node and
// way this package produces is minted a synthetic negative id via IDMinter.
// Class is assigned by a fixed string-match table over folder and
// placemark names (ClassifyFolder) rather than any configuration file;
// placemarks whose name doesn't match any rule are skipped.
package kml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jeffboody/osmdb/internal/osm"
)

// Indexer is the narrow slice of index.Index's API the importer calls
// through — just enough to store a fabricated node or way and have it
// tile-referenced, without importing internal/index (which would create an
// import cycle through internal/tileproc's eventual cmd wiring) and without
// inventing a shared interface neither package otherwise needs.
type Indexer interface {
	AddNode(n osm.Node, zoom int, center, selected bool) error
	AddWay(w osm.Way, zoom int, center, selected bool) error
}

// Importer parses KML documents and feeds the entities they describe into
// an Indexer, minting synthetic ids as it goes.
type Importer struct {
	Abbrev osm.Abbreviator
	minter *IDMinter
}

// NewImporter builds an Importer. abbrev may be nil, in which case names
// are stored unabbreviated (osm.NoAbbreviator semantics).
func NewImporter(abbrev osm.Abbreviator) *Importer {
	if abbrev == nil {
		abbrev = osm.NoAbbreviator{}
	}
	return &Importer{Abbrev: abbrev, minter: NewIDMinter()}
}

type kmlDoc struct {
	XMLName  xml.Name  `xml:"kml"`
	Document kmlFolder `xml:"Document"`
}

// kmlFolder doubles as the <Document> and <Folder> element shape — both
// carry a name, placemarks, and (rarely) nested folders.
type kmlFolder struct {
	Name       string         `xml:"name"`
	Folders    []kmlFolder    `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name    string      `xml:"name"`
	Point   *kmlPoint   `xml:"Point"`
	Polygon *kmlPolygon `xml:"Polygon"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlLinearRing `xml:"outerBoundaryIs>LinearRing"`
}

type kmlLinearRing struct {
	Coordinates string `xml:"coordinates"`
}

// Import reads a KML document from r and adds every recognized placemark to
// ix at the given zoom (the min_zoom the boundary becomes selectable at;
// KML boundaries are always selected).
func (imp *Importer) Import(r io.Reader, ix Indexer, zoom int) (placemarks int, err error) {
	var doc kmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("kml: decoding document: %w", err)
	}
	return imp.walkFolder(doc.Document, doc.Document.Name, ix, zoom)
}

func (imp *Importer) walkFolder(f kmlFolder, inheritedName string, ix Indexer, zoom int) (int, error) {
	folderName := f.Name
	if folderName == "" {
		folderName = inheritedName
	}
	count := 0
	for _, pm := range f.Placemarks {
		ok, err := imp.importPlacemark(pm, folderName, ix, zoom)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	for _, sub := range f.Folders {
		n, err := imp.walkFolder(sub, folderName, ix, zoom)
		count += n
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

func (imp *Importer) importPlacemark(pm kmlPlacemark, folderName string, ix Indexer, zoom int) (bool, error) {
	class, ok := ClassifyFolder(folderName)
	if !ok {
		class, ok = ClassifyFolder(pm.Name)
	}
	if !ok {
		return false, nil
	}

	name := imp.Abbrev.Abbreviate(pm.Name)
	switch {
	case pm.Point != nil:
		pts, err := parseCoordinates(pm.Point.Coordinates)
		if err != nil || len(pts) == 0 {
			return false, err
		}
		n := osm.Node{ID: imp.minter.Next(), Lat: pts[0][0], Lon: pts[0][1], Class: class, Name: pm.Name, Abrev: name}
		if err := ix.AddNode(n, zoom, true, true); err != nil {
			return false, fmt.Errorf("kml: adding point %q: %w", pm.Name, err)
		}
		return true, nil

	case pm.Polygon != nil:
		pts, err := parseCoordinates(pm.Polygon.Outer.Coordinates)
		if err != nil || len(pts) < 3 {
			return false, err
		}
		w := osm.Way{ID: imp.minter.Next(), Class: class, Name: pm.Name, Abrev: name}
		var firstID int64
		for i, pt := range pts {
			// A KML linear ring repeats its first vertex as its last; reuse the
			// first minted node id there instead of minting a new one so the
			// resulting way satisfies osm.Way.Closed() like every other closed
			// way in the system.
			if i == len(pts)-1 && pt == pts[0] {
				w.AddNd(firstID)
				break
			}
			n := osm.Node{ID: imp.minter.Next(), Lat: pt[0], Lon: pt[1]}
			if i == 0 {
				firstID = n.ID
			}
			if err := ix.AddNode(n, zoom, false, false); err != nil {
				return false, fmt.Errorf("kml: adding ring vertex for %q: %w", pm.Name, err)
			}
			w.AddNd(n.ID)
		}
		if err := ix.AddWay(w, zoom, false, true); err != nil {
			return false, fmt.Errorf("kml: adding polygon %q: %w", pm.Name, err)
		}
		return true, nil
	}
	return false, nil
}

// parseCoordinates parses a KML <coordinates> element's whitespace-separated
// "lon,lat[,alt]" tuples, returning [lat, lon] pairs in input order.
func parseCoordinates(s string) ([][2]float64, error) {
	fields := strings.Fields(s)
	out := make([][2]float64, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) < 2 {
			continue
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("kml: parsing longitude %q: %w", parts[0], err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("kml: parsing latitude %q: %w", parts[1], err)
		}
		out = append(out, [2]float64{lat, lon})
	}
	return out, nil
}
