package index

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jeffboody/osmdb/internal/osm"
	"github.com/jeffboody/osmdb/internal/store"
)

// NodeIter is a lazy, finite, non-restartable sequence of nodes over every
// on-disk chunk of a single Kind. Each chunk is locked through the cache while
// its entities are yielded, so a concurrent Find/AddTileRef call cannot
// cause it to be evicted mid-iteration; the lock is released as soon as
// iteration moves to the next chunk.
type NodeIter struct {
	ix      *Index
	kind    store.Kind
	buckets []int64
	pos     int
	cur     *store.Chunk
	curKey  store.ChunkKey
	curIDs  []int64
	curAt   int
	err     error
}

// IterNodes flushes every dirty resident chunk of kind (so on-disk
// enumeration sees a complete, consistent set of bucket files) and returns
// an iterator over its entities.
func (ix *Index) IterNodes(kind store.Kind) (*NodeIter, error) {
	if err := ix.chunks.Flush(); err != nil {
		return nil, err
	}
	buckets, err := bucketList(ix.base, kind)
	if err != nil {
		return nil, err
	}
	return &NodeIter{ix: ix, kind: kind, buckets: buckets}, nil
}

// Next advances to the following node, returning ok=false once the
// sequence is exhausted or an error has occurred (check Err).
func (it *NodeIter) Next() (osm.Node, bool) {
	for {
		if it.cur != nil && it.curAt < len(it.curIDs) {
			id := it.curIDs[it.curAt]
			it.curAt++
			return it.cur.Nodes[id], true
		}
		if it.cur != nil {
			it.ix.chunks.Unlock(it.curKey)
			it.cur = nil
		}
		if it.pos >= len(it.buckets) {
			return osm.Node{}, false
		}
		key := store.ChunkKey{Kind: it.kind, IDUpper: it.buckets[it.pos]}
		it.pos++
		c, err := it.ix.chunks.Lock(key)
		if err != nil {
			it.err = err
			return osm.Node{}, false
		}
		it.curKey = key
		it.cur = c
		it.curIDs = it.curIDs[:0]
		for id := range c.Nodes {
			it.curIDs = append(it.curIDs, id)
		}
		sort.Slice(it.curIDs, func(i, j int) bool { return it.curIDs[i] < it.curIDs[j] })
		it.curAt = 0
	}
}

// Close releases the lock on whatever chunk is currently pinned, if the
// caller stops iterating before exhaustion.
func (it *NodeIter) Close() {
	if it.cur != nil {
		it.ix.chunks.Unlock(it.curKey)
		it.cur = nil
	}
}

// Err returns the first error Next encountered, if any.
func (it *NodeIter) Err() error { return it.err }

// WayIter mirrors NodeIter for ways.
type WayIter struct {
	ix      *Index
	kind    store.Kind
	buckets []int64
	pos     int
	cur     *store.Chunk
	curKey  store.ChunkKey
	curIDs  []int64
	curAt   int
	err     error
}

// IterWays flushes every dirty resident chunk of kind and returns an
// iterator over its ways.
func (ix *Index) IterWays(kind store.Kind) (*WayIter, error) {
	if err := ix.chunks.Flush(); err != nil {
		return nil, err
	}
	buckets, err := bucketList(ix.base, kind)
	if err != nil {
		return nil, err
	}
	return &WayIter{ix: ix, kind: kind, buckets: buckets}, nil
}

// Next advances to the following way.
func (it *WayIter) Next() (osm.Way, bool) {
	for {
		if it.cur != nil && it.curAt < len(it.curIDs) {
			id := it.curIDs[it.curAt]
			it.curAt++
			return it.cur.Ways[id], true
		}
		if it.cur != nil {
			it.ix.chunks.Unlock(it.curKey)
			it.cur = nil
		}
		if it.pos >= len(it.buckets) {
			return osm.Way{}, false
		}
		key := store.ChunkKey{Kind: it.kind, IDUpper: it.buckets[it.pos]}
		it.pos++
		c, err := it.ix.chunks.Lock(key)
		if err != nil {
			it.err = err
			return osm.Way{}, false
		}
		it.curKey = key
		it.cur = c
		it.curIDs = it.curIDs[:0]
		for id := range c.Ways {
			it.curIDs = append(it.curIDs, id)
		}
		sort.Slice(it.curIDs, func(i, j int) bool { return it.curIDs[i] < it.curIDs[j] })
		it.curAt = 0
	}
}

// Close releases the lock on whatever chunk is currently pinned.
func (it *WayIter) Close() {
	if it.cur != nil {
		it.ix.chunks.Unlock(it.curKey)
		it.cur = nil
	}
}

// Err returns the first error Next encountered, if any.
func (it *WayIter) Err() error { return it.err }

// RelationIter mirrors NodeIter for relations.
type RelationIter struct {
	ix      *Index
	kind    store.Kind
	buckets []int64
	pos     int
	cur     *store.Chunk
	curKey  store.ChunkKey
	curIDs  []int64
	curAt   int
	err     error
}

// IterRelations flushes every dirty resident chunk of kind and returns an
// iterator over its relations.
func (ix *Index) IterRelations(kind store.Kind) (*RelationIter, error) {
	if err := ix.chunks.Flush(); err != nil {
		return nil, err
	}
	buckets, err := bucketList(ix.base, kind)
	if err != nil {
		return nil, err
	}
	return &RelationIter{ix: ix, kind: kind, buckets: buckets}, nil
}

// Next advances to the following relation.
func (it *RelationIter) Next() (osm.Relation, bool) {
	for {
		if it.cur != nil && it.curAt < len(it.curIDs) {
			id := it.curIDs[it.curAt]
			it.curAt++
			return it.cur.Rels[id], true
		}
		if it.cur != nil {
			it.ix.chunks.Unlock(it.curKey)
			it.cur = nil
		}
		if it.pos >= len(it.buckets) {
			return osm.Relation{}, false
		}
		key := store.ChunkKey{Kind: it.kind, IDUpper: it.buckets[it.pos]}
		it.pos++
		c, err := it.ix.chunks.Lock(key)
		if err != nil {
			it.err = err
			return osm.Relation{}, false
		}
		it.curKey = key
		it.cur = c
		it.curIDs = it.curIDs[:0]
		for id := range c.Rels {
			it.curIDs = append(it.curIDs, id)
		}
		sort.Slice(it.curIDs, func(i, j int) bool { return it.curIDs[i] < it.curIDs[j] })
		it.curAt = 0
	}
}

// Close releases the lock on whatever chunk is currently pinned.
func (it *RelationIter) Close() {
	if it.cur != nil {
		it.ix.chunks.Unlock(it.curKey)
		it.cur = nil
	}
}

// Err returns the first error Next encountered, if any.
func (it *RelationIter) Err() error { return it.err }

// bucketList enumerates the id_upper buckets on disk for kind, by reading
// <base>/<kind>/*.xml.gz filenames — the directory enumeration the iterator
// hides from its callers.
func bucketList(base string, kind store.Kind) ([]int64, error) {
	dir := filepath.Join(base, kind.String())
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var buckets []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".xml.gz") {
			continue
		}
		upper, err := strconv.ParseInt(strings.TrimSuffix(name, ".xml.gz"), 10, 64)
		if err != nil {
			continue
		}
		buckets = append(buckets, upper)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	return buckets, nil
}
