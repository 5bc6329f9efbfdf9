// Package store is the gzipped-XML backend for the chunk store and tile
// store. Files are bucketed under <base>/<kind>/<id_upper>.xml.gz and
// <base>/tile/<zoom>/<x>/<y>.xml.gz respectively; both stores sit on the
// byte-budgeted internal/store/lru cache and write through a temp-file-
// then-rename so a crash mid-flush never corrupts an existing file.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeffboody/osmdb/internal/geo"
	"github.com/jeffboody/osmdb/internal/osm"
	"github.com/jeffboody/osmdb/internal/store/lru"
)

// ChunkKey identifies a chunk file: all entities of one Kind whose id
// falls in the same id_upper bucket (geo.ChunkFanout entities per bucket).
type ChunkKey struct {
	Kind    Kind
	IDUpper int64
}

// Chunk is the in-memory resident form of one chunk file. Exactly one of
// Nodes/Ways/Rels/Refs is populated, selected by Kind.
type Chunk struct {
	key   ChunkKey
	store *ChunkStore

	Nodes map[int64]osm.Node
	Ways  map[int64]osm.Way
	Rels  map[int64]osm.Relation
	Refs  map[int64]struct{} // *_REF kinds: naked id set

	dirty    bool
	refcount int // iterators hold a chunk locked via Lock/Unlock
}

func newChunk(key ChunkKey, store *ChunkStore) *Chunk {
	c := &Chunk{key: key, store: store}
	switch entityGroupOf(key.Kind) {
	case groupNode:
		c.Nodes = make(map[int64]osm.Node)
	case groupWay:
		c.Ways = make(map[int64]osm.Way)
	case groupRelation:
		c.Rels = make(map[int64]osm.Relation)
	case groupRef:
		c.Refs = make(map[int64]struct{})
	}
	return c
}

type entityGroup int

const (
	groupNode entityGroup = iota
	groupWay
	groupRelation
	groupRef
)

// entityGroupOf classifies a Kind by the Go type its chunk file holds.
func entityGroupOf(k Kind) entityGroup {
	switch k {
	case KindNode, KindCtrNode:
		return groupNode
	case KindWay, KindCtrWay:
		return groupWay
	case KindRelation, KindCtrRelation:
		return groupRelation
	default:
		return groupRef
	}
}

// SizeBytes implements lru.Entry.
func (c *Chunk) SizeBytes() int64 {
	const overhead = 48
	total := int64(overhead)
	for _, n := range c.Nodes {
		total += n.SizeOf()
	}
	for _, w := range c.Ways {
		total += w.SizeOf()
	}
	for _, r := range c.Rels {
		total += r.SizeOf()
	}
	total += int64(len(c.Refs)) * 16
	return total
}

// Locked implements lru.Entry: a chunk held open by an active iterator
// must never be evicted mid-iteration.
func (c *Chunk) Locked() bool { return c.refcount > 0 }

// FlushIfDirty implements lru.Entry: it is invoked by the cache right
// before eviction, and delegates to the owning store's atomic on-disk
// writer.
func (c *Chunk) FlushIfDirty() error {
	return c.store.flush(c.key, c)
}

// ChunkStore owns the gzipped-XML chunk files under base. It is a single-
// writer, single-goroutine store: no internal locking.
type ChunkStore struct {
	base   string
	budget int64
	cache  *lru.Cache[ChunkKey]
	failed error // sticky error flag, reported on Close
}

// DefaultChunkBudget is the default byte budget for resident chunks: 400 MiB.
const DefaultChunkBudget = 400 * 1024 * 1024

// Open creates a ChunkStore rooted at base, creating the directory tree for
// every Kind if it does not already exist. budget <= 0 uses DefaultChunkBudget.
func Open(base string, budget int64) (*ChunkStore, error) {
	if budget <= 0 {
		budget = DefaultChunkBudget
	}
	for k := Kind(0); int(k) < int(numKinds); k++ {
		if err := os.MkdirAll(filepath.Join(base, k.String()), 0o755); err != nil {
			return nil, fmt.Errorf("store: creating kind dir %s: %w", k, err)
		}
	}
	s := &ChunkStore{base: base, budget: budget}
	s.cache = lru.New[ChunkKey](budget, s.onEvict)
	return s, nil
}

// cacheEntryOverhead approximates the per-entry hash-table and list-node
// cost of one resident chunk, tracked separately from the chunk bytes
// themselves so the budget comparison sees both.
const cacheEntryOverhead = 96

func (s *ChunkStore) onEvict(key ChunkKey, val lru.Entry, flushErr error) {
	s.cache.AdjustOverhead(-cacheEntryOverhead)
	if flushErr != nil && s.failed == nil {
		s.failed = fmt.Errorf("store: flush %v/%d: %w", key.Kind, key.IDUpper, flushErr)
	}
}

// Failed returns the sticky store-wide error, if any write has ever
// failed. Once set it is never cleared; all future calls report it.
func (s *ChunkStore) Failed() error { return s.failed }

func (s *ChunkStore) chunkPath(key ChunkKey) string {
	return filepath.Join(s.base, key.Kind.String(), fmt.Sprintf("%d.xml.gz", key.IDUpper))
}

// get returns the resident chunk for key, loading it from disk (or creating
// an empty one) if it is not already cached.
func (s *ChunkStore) get(key ChunkKey) (*Chunk, error) {
	start := time.Now()
	defer func() { s.cache.RecordGet(time.Since(start)) }()

	if s.failed != nil {
		return nil, s.failed
	}
	if e, ok := s.cache.Touch(key); ok {
		return e.(*Chunk), nil
	}
	loadStart := time.Now()
	c, err := s.load(key)
	s.cache.RecordLoad(time.Since(loadStart))
	if err != nil {
		s.failed = err
		return nil, err
	}
	s.cache.AdjustOverhead(cacheEntryOverhead)
	s.cache.Insert(key, c)
	return c, nil
}

func (s *ChunkStore) load(key ChunkKey) (*Chunk, error) {
	c := newChunk(key, s)
	f, err := os.Open(s.chunkPath(key))
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: opening chunk %v/%d: %w", key.Kind, key.IDUpper, err)
	}
	defer f.Close()

	switch entityGroupOf(key.Kind) {
	case groupNode:
		var doc xmlNodeDoc
		if err := readGzipXML(f, &doc); err != nil {
			return nil, fmt.Errorf("store: decoding chunk %v/%d: %w", key.Kind, key.IDUpper, err)
		}
		for _, x := range doc.Nodes {
			c.Nodes[x.ID] = xmlToNode(x)
		}
	case groupWay:
		var doc xmlWayDoc
		if err := readGzipXML(f, &doc); err != nil {
			return nil, fmt.Errorf("store: decoding chunk %v/%d: %w", key.Kind, key.IDUpper, err)
		}
		for _, x := range doc.Ways {
			c.Ways[x.ID] = xmlToWay(x)
		}
	case groupRelation:
		var doc xmlRelationDoc
		if err := readGzipXML(f, &doc); err != nil {
			return nil, fmt.Errorf("store: decoding chunk %v/%d: %w", key.Kind, key.IDUpper, err)
		}
		for _, x := range doc.Rels {
			c.Rels[x.ID] = xmlToRelation(x)
		}
	case groupRef:
		var doc xmlRefDoc
		if err := readGzipXML(f, &doc); err != nil {
			return nil, fmt.Errorf("store: decoding chunk %v/%d: %w", key.Kind, key.IDUpper, err)
		}
		for _, x := range doc.Refs {
			c.Refs[x.ID] = struct{}{}
		}
	}
	return c, nil
}

// flush writes a dirty chunk to disk via a temp-file-then-rename.
func (s *ChunkStore) flush(key ChunkKey, c *Chunk) error {
	if !c.dirty {
		return nil
	}
	dir := filepath.Join(s.base, key.Kind.String())
	tmp, err := os.CreateTemp(dir, "chunk-*.tmp")
	if err != nil {
		return fmt.Errorf("store: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	var encErr error
	switch entityGroupOf(key.Kind) {
	case groupNode:
		doc := xmlNodeDoc{Nodes: make([]xmlNode, 0, len(c.Nodes))}
		for _, n := range c.Nodes {
			doc.Nodes = append(doc.Nodes, nodeToXML(n))
		}
		encErr = writeGzipXML(tmp, &doc)
	case groupWay:
		doc := xmlWayDoc{Ways: make([]xmlWay, 0, len(c.Ways))}
		for _, w := range c.Ways {
			doc.Ways = append(doc.Ways, wayToXML(w))
		}
		encErr = writeGzipXML(tmp, &doc)
	case groupRelation:
		doc := xmlRelationDoc{Rels: make([]xmlRelation, 0, len(c.Rels))}
		for _, r := range c.Rels {
			doc.Rels = append(doc.Rels, relationToXML(r))
		}
		encErr = writeGzipXML(tmp, &doc)
	case groupRef:
		doc := xmlRefDoc{Refs: make([]xmlRef, 0, len(c.Refs))}
		for id := range c.Refs {
			doc.Refs = append(doc.Refs, xmlRef{ID: id})
		}
		encErr = writeGzipXML(tmp, &doc)
	}
	if encErr != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: encoding chunk %v/%d: %w", key.Kind, key.IDUpper, encErr)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.chunkPath(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: renaming chunk %v/%d: %w", key.Kind, key.IDUpper, err)
	}
	c.dirty = false
	return nil
}

// FindNode reports whether id is resident in the given node kind's chunk.
func (s *ChunkStore) FindNode(kind Kind, id int64) (osm.Node, bool, error) {
	start := time.Now()
	defer func() { s.cache.RecordFind(time.Since(start)) }()
	upper, _ := geo.SplitID(id)
	c, err := s.get(ChunkKey{kind, upper})
	if err != nil {
		return osm.Node{}, false, err
	}
	n, ok := c.Nodes[id]
	return n, ok, nil
}

// AddNode inserts or overwrites a node in the given node kind's chunk.
func (s *ChunkStore) AddNode(kind Kind, n osm.Node) error {
	start := time.Now()
	defer func() { s.cache.RecordAdd(time.Since(start)) }()
	upper, _ := geo.SplitID(n.ID)
	key := ChunkKey{kind, upper}
	c, err := s.get(key)
	if err != nil {
		return err
	}
	delta := n.SizeOf()
	if old, ok := c.Nodes[n.ID]; ok {
		delta -= old.SizeOf()
	}
	c.Nodes[n.ID] = n
	c.dirty = true
	s.cache.Resize(key, delta)
	return nil
}

// FindWay reports whether id is resident in the given way kind's chunk.
func (s *ChunkStore) FindWay(kind Kind, id int64) (osm.Way, bool, error) {
	start := time.Now()
	defer func() { s.cache.RecordFind(time.Since(start)) }()
	upper, _ := geo.SplitID(id)
	c, err := s.get(ChunkKey{kind, upper})
	if err != nil {
		return osm.Way{}, false, err
	}
	w, ok := c.Ways[id]
	return w, ok, nil
}

// AddWay inserts or overwrites a way in the given way kind's chunk.
func (s *ChunkStore) AddWay(kind Kind, w osm.Way) error {
	start := time.Now()
	defer func() { s.cache.RecordAdd(time.Since(start)) }()
	upper, _ := geo.SplitID(w.ID)
	key := ChunkKey{kind, upper}
	c, err := s.get(key)
	if err != nil {
		return err
	}
	delta := w.SizeOf()
	if old, ok := c.Ways[w.ID]; ok {
		delta -= old.SizeOf()
	}
	c.Ways[w.ID] = w
	c.dirty = true
	s.cache.Resize(key, delta)
	return nil
}

// FindRelation reports whether id is resident in the given relation kind's chunk.
func (s *ChunkStore) FindRelation(kind Kind, id int64) (osm.Relation, bool, error) {
	start := time.Now()
	defer func() { s.cache.RecordFind(time.Since(start)) }()
	upper, _ := geo.SplitID(id)
	c, err := s.get(ChunkKey{kind, upper})
	if err != nil {
		return osm.Relation{}, false, err
	}
	r, ok := c.Rels[id]
	return r, ok, nil
}

// AddRelation inserts or overwrites a relation in the given relation kind's chunk.
func (s *ChunkStore) AddRelation(kind Kind, r osm.Relation) error {
	start := time.Now()
	defer func() { s.cache.RecordAdd(time.Since(start)) }()
	upper, _ := geo.SplitID(r.ID)
	key := ChunkKey{kind, upper}
	c, err := s.get(key)
	if err != nil {
		return err
	}
	delta := r.SizeOf()
	if old, ok := c.Rels[r.ID]; ok {
		delta -= old.SizeOf()
	}
	c.Rels[r.ID] = r
	c.dirty = true
	s.cache.Resize(key, delta)
	return nil
}

// HasRef reports whether id is present in the given *_REF kind's set.
func (s *ChunkStore) HasRef(kind Kind, id int64) (bool, error) {
	start := time.Now()
	defer func() { s.cache.RecordFind(time.Since(start)) }()
	upper, _ := geo.SplitID(id)
	c, err := s.get(ChunkKey{kind, upper})
	if err != nil {
		return false, err
	}
	_, ok := c.Refs[id]
	return ok, nil
}

// AddRef inserts id into the given *_REF kind's set.
func (s *ChunkStore) AddRef(kind Kind, id int64) error {
	start := time.Now()
	defer func() { s.cache.RecordAdd(time.Since(start)) }()
	upper, _ := geo.SplitID(id)
	key := ChunkKey{kind, upper}
	c, err := s.get(key)
	if err != nil {
		return err
	}
	if _, ok := c.Refs[id]; ok {
		return nil
	}
	c.Refs[id] = struct{}{}
	c.dirty = true
	s.cache.Resize(key, 16)
	return nil
}

// Lock pins a chunk resident so a long-lived iterator can traverse it
// without risking a mid-iteration eviction. Unlock must be called exactly
// once per Lock.
func (s *ChunkStore) Lock(key ChunkKey) (*Chunk, error) {
	c, err := s.get(key)
	if err != nil {
		return nil, err
	}
	c.refcount++
	return c, nil
}

// Unlock releases a Lock.
func (s *ChunkStore) Unlock(key ChunkKey) {
	if c, ok := s.cache.Touch(key); ok {
		cc := c.(*Chunk)
		if cc.refcount > 0 {
			cc.refcount--
		}
	}
}

// Flush writes every dirty resident chunk to disk without evicting it.
func (s *ChunkStore) Flush() error {
	for _, e := range s.cache.All() {
		c := e.(*Chunk)
		if err := s.flush(c.key, c); err != nil {
			s.failed = err
			return err
		}
	}
	return nil
}

// Close flushes every resident chunk and returns the sticky failure (if
// any occurred during this call or earlier).
func (s *ChunkStore) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.failed
}

// Stats returns the underlying cache's accumulated statistics.
func (s *ChunkStore) Stats() lru.Stats { return s.cache.Stats() }
