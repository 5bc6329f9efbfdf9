// Command tile-shard renders every tile already referenced in an index,
// across a zoom range, in parallel. Each worker owns its own read-only
// *index.Index — neither ChunkStore nor TileStore's LRU caches are
// goroutine-safe, so sharing one Index across workers is not an option; the
// flock each Index takes is a shared (read) lock, so N of them can coexist
// against the same prefix.
//
// Usage: tile-shard [flags] prefix z0 z1 out-dir
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeffboody/osmdb/internal/index"
	"github.com/jeffboody/osmdb/internal/tileproc"
)

type tileJob struct {
	z, x, y int
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] prefix z0 z1 out-dir\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	workers := flag.Int("j", runtime.NumCPU(), "number of parallel workers")
	verbose := flag.Bool("v", false, "log each tile as it is produced")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 4 {
		usage()
		os.Exit(2)
	}

	prefix := flag.Arg(0)
	z0, err0 := strconv.Atoi(flag.Arg(1))
	z1, err1 := strconv.Atoi(flag.Arg(2))
	outDir := flag.Arg(3)
	if err0 != nil || err1 != nil || z0 > z1 {
		usage()
		os.Exit(2)
	}

	start := time.Now()
	if err := run(prefix, z0, z1, outDir, *workers, *verbose); err != nil {
		log.Printf("FAILURE dt=%s: %v", time.Since(start), err)
		os.Exit(1)
	}
	if *verbose {
		log.Printf("tile-shard: done in %s", time.Since(start))
	}
}

func run(prefix string, z0, z1 int, outDir string, workers int, verbose bool) error {
	jobs, err := discoverTiles(filepath.Join(prefix+"-index", "tile"), z0, z1)
	if err != nil {
		return err
	}
	if verbose {
		log.Printf("tile-shard: %d tiles across zooms %d-%d, %d workers", len(jobs), z0, z1, workers)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("tile-shard: creating %s: %w", outDir, err)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			ix, err := index.Open(prefix+"-index", index.Options{ReadOnly: true})
			if err != nil {
				return err
			}
			defer ix.Close()

			outPath := filepath.Join(outDir, strconv.Itoa(j.z), strconv.Itoa(j.x), fmt.Sprintf("%d.xml.gz", j.y))
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return err
			}
			w := tileproc.NewGzipXMLWriter(outPath)
			if err := ix.MakeTile(j.z, j.x, j.y, w); err != nil {
				return fmt.Errorf("tile %d/%d/%d: %w", j.z, j.x, j.y, err)
			}
			if verbose {
				log.Printf("tile-shard: %d/%d/%d -> %s", j.z, j.x, j.y, outPath)
			}
			return nil
		})
	}
	return g.Wait()
}

// discoverTiles walks tileBase/<z>/<x>/<y>.xml.gz and returns every tile key
// present for z0 <= z <= z1. A stored tile's existence (not just its
// directory structure) is what makes it a render candidate: the tile store
// only ever creates these files via AddNodeRef/AddWayRef/AddRelRef.
func discoverTiles(tileBase string, z0, z1 int) ([]tileJob, error) {
	var jobs []tileJob
	for z := z0; z <= z1; z++ {
		zDir := filepath.Join(tileBase, strconv.Itoa(z))
		xEntries, err := os.ReadDir(zDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("tile-shard: reading %s: %w", zDir, err)
		}
		for _, xe := range xEntries {
			if !xe.IsDir() {
				continue
			}
			x, err := strconv.Atoi(xe.Name())
			if err != nil {
				continue
			}
			xDir := filepath.Join(zDir, xe.Name())
			yEntries, err := os.ReadDir(xDir)
			if err != nil {
				return nil, fmt.Errorf("tile-shard: reading %s: %w", xDir, err)
			}
			for _, ye := range yEntries {
				name := ye.Name()
				const suffix = ".xml.gz"
				if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
					continue
				}
				y, err := strconv.Atoi(name[:len(name)-len(suffix)])
				if err != nil {
					continue
				}
				jobs = append(jobs, tileJob{z: z, x: x, y: y})
			}
		}
	}
	return jobs, nil
}
