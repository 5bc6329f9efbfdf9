// Command osm-parser streams a preprocessed OSM XML extract into this
// system's bulk entity format (internal/bulkio). It is the external
// collaborator the storage core assumes: a SAX-style reader that hands node/
// way/relation attribute maps to osm.NewNodeFromAttrs and friends, then
// writes whatever it accumulated to a single gzipped-XML bulk file.
//
// Usage: osm-parser in.osm out.xml.gz
package main

import (
	"compress/gzip"
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jeffboody/osmdb/internal/bulkio"
	"github.com/jeffboody/osmdb/internal/osm"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] in.osm out.xml.gz\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	verbose := flag.Bool("v", false, "log progress")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}
	start := time.Now()
	if err := run(flag.Arg(0), flag.Arg(1), *verbose); err != nil {
		log.Printf("FAILURE dt=%s: %v", time.Since(start), err)
		os.Exit(1)
	}
	if *verbose {
		log.Printf("osm-parser: done in %s", time.Since(start))
	}
}

func run(inPath, outPath string, verbose bool) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inPath, err)
	}
	defer f.Close()

	var r io.Reader = f
	if isGzip(inPath) {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip %s: %w", inPath, err)
		}
		defer gr.Close()
		r = gr
	}

	w := bulkio.NewWriter(outPath)
	dec := xml.NewDecoder(r)

	var nodes, ways, rels int
	var curWay *osm.Way
	var curRel *osm.Relation

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("parsing %s: %w", inPath, err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			attrs := attrMap(el)
			switch el.Name.Local {
			case "node":
				n, err := osm.NewNodeFromAttrs(attrs)
				if err != nil {
					return fmt.Errorf("node: %w", err)
				}
				w.WriteNode(n)
				nodes++
			case "way":
				wy, err := osm.NewWayFromAttrs(attrs)
				if err != nil {
					return fmt.Errorf("way: %w", err)
				}
				curWay = &wy
			case "nd":
				if curWay != nil {
					if ref, err := parseRef(attrs["ref"]); err == nil {
						curWay.AddNd(ref)
					}
				}
			case "relation":
				rel, err := osm.NewRelationFromAttrs(attrs)
				if err != nil {
					return fmt.Errorf("relation: %w", err)
				}
				curRel = &rel
			case "member":
				if curRel != nil {
					ref, _ := parseRef(attrs["ref"])
					curRel.AddMember(attrs["type"], ref, attrs["role"])
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "way":
				if curWay != nil {
					w.WriteWay(*curWay)
					ways++
					curWay = nil
				}
			case "relation":
				if curRel != nil {
					w.WriteRelation(*curRel)
					rels++
					curRel = nil
				}
			}
		}
	}

	if verbose {
		log.Printf("osm-parser: %d nodes, %d ways, %d relations", nodes, ways, rels)
	}
	return w.Close()
}

func attrMap(el xml.StartElement) map[string]string {
	m := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		m[a.Name.Local] = a.Value
	}
	return m
}

func parseRef(s string) (int64, error) {
	var ref int64
	_, err := fmt.Sscanf(s, "%d", &ref)
	return ref, err
}

func isGzip(path string) bool {
	return len(path) > 3 && path[len(path)-3:] == ".gz"
}
