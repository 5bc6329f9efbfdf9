package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeffboody/osmdb/internal/store/lru"
)

// TileKey identifies one tile's ref-set file by (zoom, x, y).
type TileKey struct {
	Zoom, X, Y int
}

// TileRecord is the in-memory resident form of one tile file: three
// parallel sets of entity ids referenced by that tile, at that zoom.
type TileRecord struct {
	key   TileKey
	store *TileStore

	NodeRefs map[int64]struct{}
	WayRefs  map[int64]struct{}
	RelRefs  map[int64]struct{}

	dirty    bool
	refcount int
}

func newTileRecord(key TileKey, store *TileStore) *TileRecord {
	return &TileRecord{
		key:      key,
		store:    store,
		NodeRefs: make(map[int64]struct{}),
		WayRefs:  make(map[int64]struct{}),
		RelRefs:  make(map[int64]struct{}),
	}
}

// SizeBytes implements lru.Entry.
func (t *TileRecord) SizeBytes() int64 {
	const overhead = 48
	return int64(overhead) + int64(len(t.NodeRefs)+len(t.WayRefs)+len(t.RelRefs))*16
}

// Locked implements lru.Entry.
func (t *TileRecord) Locked() bool { return t.refcount > 0 }

// FlushIfDirty implements lru.Entry.
func (t *TileRecord) FlushIfDirty() error {
	return t.store.flush(t.key, t)
}

// TileStore owns the gzipped-XML tile files under base/tile. Single-writer,
// single-goroutine, exactly like ChunkStore.
type TileStore struct {
	base   string
	budget int64
	cache  *lru.Cache[TileKey]
	failed error
}

// DefaultTileBudget is the default byte budget for resident tiles: 100 MiB.
const DefaultTileBudget = 100 * 1024 * 1024

// OpenTileStore creates a TileStore rooted at base/tile. budget <= 0 uses
// DefaultTileBudget.
func OpenTileStore(base string, budget int64) (*TileStore, error) {
	if budget <= 0 {
		budget = DefaultTileBudget
	}
	if err := os.MkdirAll(filepath.Join(base, "tile"), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating tile dir: %w", err)
	}
	s := &TileStore{base: base, budget: budget}
	s.cache = lru.New[TileKey](budget, s.onEvict)
	return s, nil
}

func (s *TileStore) onEvict(key TileKey, val lru.Entry, flushErr error) {
	s.cache.AdjustOverhead(-cacheEntryOverhead)
	if flushErr != nil && s.failed == nil {
		s.failed = fmt.Errorf("store: flush tile %d/%d/%d: %w", key.Zoom, key.X, key.Y, flushErr)
	}
}

// Failed returns the sticky store-wide error, if any write has ever failed.
func (s *TileStore) Failed() error { return s.failed }

func (s *TileStore) tilePath(key TileKey) string {
	return filepath.Join(s.base, "tile",
		fmt.Sprintf("%d", key.Zoom), fmt.Sprintf("%d", key.X), fmt.Sprintf("%d.xml.gz", key.Y))
}

func (s *TileStore) get(key TileKey) (*TileRecord, error) {
	start := time.Now()
	defer func() { s.cache.RecordGet(time.Since(start)) }()

	if s.failed != nil {
		return nil, s.failed
	}
	if e, ok := s.cache.Touch(key); ok {
		return e.(*TileRecord), nil
	}
	loadStart := time.Now()
	t, err := s.load(key)
	s.cache.RecordLoad(time.Since(loadStart))
	if err != nil {
		s.failed = err
		return nil, err
	}
	s.cache.AdjustOverhead(cacheEntryOverhead)
	s.cache.Insert(key, t)
	return t, nil
}

func (s *TileStore) load(key TileKey) (*TileRecord, error) {
	t := newTileRecord(key, s)
	f, err := os.Open(s.tilePath(key))
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: opening tile %d/%d/%d: %w", key.Zoom, key.X, key.Y, err)
	}
	defer f.Close()

	var doc xmlTileDoc
	if err := readGzipXML(f, &doc); err != nil {
		return nil, fmt.Errorf("store: decoding tile %d/%d/%d: %w", key.Zoom, key.X, key.Y, err)
	}
	for _, r := range doc.Nodes {
		t.NodeRefs[r.Ref] = struct{}{}
	}
	for _, r := range doc.Ways {
		t.WayRefs[r.Ref] = struct{}{}
	}
	for _, r := range doc.Rels {
		t.RelRefs[r.Ref] = struct{}{}
	}
	return t, nil
}

func (s *TileStore) flush(key TileKey, t *TileRecord) error {
	if !t.dirty {
		return nil
	}
	dir := filepath.Join(s.base, "tile", fmt.Sprintf("%d", key.Zoom), fmt.Sprintf("%d", key.X))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: creating tile dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "tile-*.tmp")
	if err != nil {
		return fmt.Errorf("store: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	doc := xmlTileDoc{
		Nodes: make([]xmlTileRef, 0, len(t.NodeRefs)),
		Ways:  make([]xmlTileRef, 0, len(t.WayRefs)),
		Rels:  make([]xmlTileRef, 0, len(t.RelRefs)),
	}
	for id := range t.NodeRefs {
		doc.Nodes = append(doc.Nodes, xmlTileRef{Ref: id})
	}
	for id := range t.WayRefs {
		doc.Ways = append(doc.Ways, xmlTileRef{Ref: id})
	}
	for id := range t.RelRefs {
		doc.Rels = append(doc.Rels, xmlTileRef{Ref: id})
	}

	if err := writeGzipXML(tmp, &doc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: encoding tile %d/%d/%d: %w", key.Zoom, key.X, key.Y, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.tilePath(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: renaming tile %d/%d/%d: %w", key.Zoom, key.X, key.Y, err)
	}
	t.dirty = false
	return nil
}

// AddNodeRef adds a node id to the tile's node-ref set.
func (s *TileStore) AddNodeRef(key TileKey, id int64) error { return s.addRef(key, id, refKindNode) }

// AddWayRef adds a way id to the tile's way-ref set.
func (s *TileStore) AddWayRef(key TileKey, id int64) error { return s.addRef(key, id, refKindWay) }

// AddRelRef adds a relation id to the tile's relation-ref set.
func (s *TileStore) AddRelRef(key TileKey, id int64) error { return s.addRef(key, id, refKindRel) }

type refKind int

const (
	refKindNode refKind = iota
	refKindWay
	refKindRel
)

func (s *TileStore) addRef(key TileKey, id int64, rk refKind) error {
	start := time.Now()
	defer func() { s.cache.RecordAdd(time.Since(start)) }()
	t, err := s.get(key)
	if err != nil {
		return err
	}
	var m map[int64]struct{}
	switch rk {
	case refKindNode:
		m = t.NodeRefs
	case refKindWay:
		m = t.WayRefs
	case refKindRel:
		m = t.RelRefs
	}
	if _, ok := m[id]; ok {
		return nil
	}
	m[id] = struct{}{}
	t.dirty = true
	s.cache.Resize(key, 16)
	return nil
}

// Get returns the resident tile record for key (e.g. for tile production to
// read back the accumulated ref sets).
func (s *TileStore) Get(key TileKey) (*TileRecord, error) {
	start := time.Now()
	defer func() { s.cache.RecordFind(time.Since(start)) }()
	return s.get(key)
}

// Lock pins a tile resident for the duration of tile production.
func (s *TileStore) Lock(key TileKey) (*TileRecord, error) {
	t, err := s.get(key)
	if err != nil {
		return nil, err
	}
	t.refcount++
	return t, nil
}

// Unlock releases a Lock.
func (s *TileStore) Unlock(key TileKey) {
	if e, ok := s.cache.Touch(key); ok {
		t := e.(*TileRecord)
		if t.refcount > 0 {
			t.refcount--
		}
	}
}

// Flush writes every dirty resident tile to disk without evicting it.
func (s *TileStore) Flush() error {
	for _, e := range s.cache.All() {
		t := e.(*TileRecord)
		if err := s.flush(t.key, t); err != nil {
			s.failed = err
			return err
		}
	}
	return nil
}

// Close flushes every resident tile and returns the sticky failure.
func (s *TileStore) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.failed
}

// Stats returns the underlying cache's accumulated statistics.
func (s *TileStore) Stats() lru.Stats { return s.cache.Stats() }
