// Command tile-make renders one tile's gzipped-XML document from a finished
// index. It opens the index read-only so many tile-make invocations (or a
// single cmd/tile-shard fan-out) can run against the same prefix
// concurrently.
//
// Usage: tile-make prefix z x y out.xml.gz
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jeffboody/osmdb/internal/index"
	"github.com/jeffboody/osmdb/internal/tileproc"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] prefix z x y out.xml.gz\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 5 {
		usage()
		os.Exit(2)
	}

	prefix := flag.Arg(0)
	z, errZ := strconv.Atoi(flag.Arg(1))
	x, errX := strconv.Atoi(flag.Arg(2))
	y, errY := strconv.Atoi(flag.Arg(3))
	out := flag.Arg(4)
	if errZ != nil || errX != nil || errY != nil {
		usage()
		os.Exit(2)
	}

	start := time.Now()
	if err := run(prefix, z, x, y, out); err != nil {
		log.Printf("FAILURE dt=%s: %v", time.Since(start), err)
		os.Exit(1)
	}
}

func run(prefix string, z, x, y int, out string) error {
	ix, err := index.Open(prefix+"-index", index.Options{ReadOnly: true})
	if err != nil {
		return err
	}
	defer ix.Close()

	w := tileproc.NewGzipXMLWriter(out)
	return ix.MakeTile(z, x, y, w)
}
