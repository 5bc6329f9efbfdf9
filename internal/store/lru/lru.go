// Package lru implements the byte-budgeted recency list shared by the chunk
// store and the tile store.
//
// This is an intrusive doubly-linked list of owned nodes rather than a
// wrapped container/list or a fixed-capacity third-party cache: the
// eviction policy needs a byte-size budget (not an entry-count capacity)
// together with a locked-entry rule no off-the-shelf LRU exposes — locked
// entries are never evicted, and eviction stops entirely at the first
// locked head. Single-threaded; the core has exactly one writer.
package lru

import "time"

// Entry is anything the cache can hold: chunks and tiles both implement it.
type Entry interface {
	// SizeBytes is the current accounted size of the entry's payload.
	SizeBytes() int64
	// Locked reports whether an iterator currently holds this entry; locked
	// entries are never evicted.
	Locked() bool
	// FlushIfDirty writes the entry back to its backing store if it has
	// unwritten changes. Called once, right before the entry is evicted or
	// the cache is closed.
	FlushIfDirty() error
}

type node[K comparable] struct {
	key        K
	val        Entry
	prev, next *node[K]
}

// Stats holds the per-store operation counters reported on close.
type Stats struct {
	Hits, Misses, Evictions int64

	AddCount  int64
	AddTime   time.Duration
	FindCount int64
	FindTime  time.Duration
	GetCount  int64
	GetTime   time.Duration
	LoadCount int64
	LoadTime  time.Duration
	TrimCount int64
	TrimTime  time.Duration
}

// Cache is the budgeted recency list. K is the store's key type: a
// (kind, id_upper) pair for chunks, a (zoom, x, y) triple for tiles.
type Cache[K comparable] struct {
	budget   int64
	used     int64 // sum of resident entries' SizeBytes()
	overhead int64 // tracked hash-table overhead, adjusted by the caller via AdjustOverhead

	index              map[K]*node[K]
	fakeHead, fakeTail *node[K]

	stats Stats

	// onEvict is invoked for every entry the Trim pass removes, after
	// FlushIfDirty has been attempted. flushErr is nil on success.
	onEvict func(key K, val Entry, flushErr error)
}

// New creates a cache with the given byte budget. budget <= 0 disables
// eviction entirely (useful for read-only index instances that never write).
func New[K comparable](budget int64, onEvict func(key K, val Entry, flushErr error)) *Cache[K] {
	head := &node[K]{}
	tail := &node[K]{}
	head.next = tail
	tail.prev = head
	return &Cache[K]{
		budget:   budget,
		index:    make(map[K]*node[K]),
		fakeHead: head,
		fakeTail: tail,
		onEvict:  onEvict,
	}
}

// AdjustOverhead adds delta (positive or negative) to the tracked hash-table
// overhead, sampled by the caller before/after add/remove operations.
func (c *Cache[K]) AdjustOverhead(delta int64) {
	c.overhead += delta
}

func (c *Cache[K]) total() int64 { return c.used + c.overhead }

// Touch looks up key and, if resident, moves it to the tail (most recently
// used) and records a hit. Returns (nil, false) on a miss, recording it.
func (c *Cache[K]) Touch(key K) (Entry, bool) {
	n, ok := c.index[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	c.moveToTail(n)
	return n.val, true
}

// Insert appends a newly loaded/created entry at the tail and trims the
// cache. Inserting over a still-resident key replaces the index entry but
// leaves the old entry linked in the list and counted in the used bytes;
// the stores only Insert after a Touch miss, so they never do this.
func (c *Cache[K]) Insert(key K, val Entry) {
	n := &node[K]{key: key, val: val}
	c.index[key] = n
	c.linkBeforeTail(n)
	c.used += val.SizeBytes()
	c.Trim()
}

// Resize adjusts the tracked used-byte total by delta for an entry that has
// grown or shrunk in place after Insert (chunks and tile records are
// mutated after they're cached, so their SizeBytes() at Insert time quickly
// goes stale without this). Triggers a Trim if the adjustment pushes the
// cache over budget.
func (c *Cache[K]) Resize(key K, delta int64) {
	if delta == 0 {
		return
	}
	c.used += delta
	c.Trim()
}

// Remove unlinks key unconditionally, regardless of budget or lock state.
// It neither flushes the entry nor calls onEvict; the removed entry is
// returned to the caller. Returns false if key was not resident.
func (c *Cache[K]) Remove(key K) (Entry, bool) {
	n, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.detach(n)
	delete(c.index, key)
	c.used -= n.val.SizeBytes()
	return n.val, true
}

// Trim evicts from the head while the cache is over budget, stopping
// entirely at the first locked entry encountered rather than scanning past
// it. The most recently used entry is never evicted, so a single entry
// larger than the whole budget stays resident until something newer
// displaces it.
func (c *Cache[K]) Trim() {
	if c.budget <= 0 {
		return
	}
	start := time.Now()
	defer func() {
		c.stats.TrimCount++
		c.stats.TrimTime += time.Since(start)
	}()

	for c.total() > c.budget {
		head := c.fakeHead.next
		if head == c.fakeTail || head == c.fakeTail.prev {
			return
		}
		if head.val.Locked() {
			return
		}
		err := head.val.FlushIfDirty()
		c.detach(head)
		delete(c.index, head.key)
		c.used -= head.val.SizeBytes()
		c.stats.Evictions++
		if c.onEvict != nil {
			c.onEvict(head.key, head.val, err)
		}
	}
}

// All returns every resident entry, in recency order (oldest first). Used
// by Close to flush everything regardless of budget.
func (c *Cache[K]) All() []Entry {
	out := make([]Entry, 0, len(c.index))
	for n := c.fakeHead.next; n != c.fakeTail; n = n.next {
		out = append(out, n.val)
	}
	return out
}

// Len returns the number of resident entries.
func (c *Cache[K]) Len() int { return len(c.index) }

// Stats returns a snapshot of the accumulated counters.
func (c *Cache[K]) Stats() Stats { return c.stats }

// RecordAdd/RecordFind/RecordGet/RecordLoad let the owning store (which
// knows whether an operation was an add/find/get/load) attribute timing to
// the right counter; Touch/Insert only track hits/misses/evictions directly.
func (c *Cache[K]) RecordAdd(d time.Duration)  { c.stats.AddCount++; c.stats.AddTime += d }
func (c *Cache[K]) RecordFind(d time.Duration) { c.stats.FindCount++; c.stats.FindTime += d }
func (c *Cache[K]) RecordGet(d time.Duration)  { c.stats.GetCount++; c.stats.GetTime += d }
func (c *Cache[K]) RecordLoad(d time.Duration) { c.stats.LoadCount++; c.stats.LoadTime += d }

func (c *Cache[K]) moveToTail(n *node[K]) {
	if n.next == c.fakeTail {
		return
	}
	c.detach(n)
	c.linkBeforeTail(n)
}

func (c *Cache[K]) linkBeforeTail(n *node[K]) {
	prev := c.fakeTail.prev
	prev.next = n
	n.prev = prev
	n.next = c.fakeTail
	c.fakeTail.prev = n
}

func (c *Cache[K]) detach(n *node[K]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}
