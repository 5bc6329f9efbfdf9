package lru

import "testing"

type fakeEntry struct {
	size    int64
	locked  bool
	dirty   bool
	flushed bool
	failing bool
}

func (e *fakeEntry) SizeBytes() int64 { return e.size }
func (e *fakeEntry) Locked() bool     { return e.locked }
func (e *fakeEntry) FlushIfDirty() error {
	if e.dirty {
		e.flushed = true
	}
	if e.failing {
		return errFlush
	}
	return nil
}

var errFlush = flushError("flush failed")

type flushError string

func (e flushError) Error() string { return string(e) }

func newTestCache(budget int64) (*Cache[int], *[]string) {
	evicted := &[]string{}
	c := New[int](budget, func(key int, val Entry, flushErr error) {
		*evicted = append(*evicted, keyLabel(key))
	})
	return c, evicted
}

func keyLabel(k int) string {
	return string(rune('a' + k))
}

func TestInsertAndTouch(t *testing.T) {
	c, _ := newTestCache(1000)
	c.Insert(0, &fakeEntry{size: 10})
	if v, ok := c.Touch(0); !ok || v.(*fakeEntry).size != 10 {
		t.Fatalf("expected to find entry 0")
	}
	if _, ok := c.Touch(1); ok {
		t.Fatalf("expected miss for absent entry")
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", st)
	}
}

func TestTrimEvictsOldestFirst(t *testing.T) {
	c, evicted := newTestCache(10)
	c.Insert(0, &fakeEntry{size: 10}) // "a"
	c.Insert(1, &fakeEntry{size: 10}) // "b" -- over budget, evicts "a"

	if _, ok := c.Touch(0); ok {
		t.Error("expected entry 0 to have been evicted")
	}
	if _, ok := c.Touch(1); !ok {
		t.Error("expected entry 1 to still be resident")
	}
	if got := *evicted; len(got) != 1 || got[0] != "a" {
		t.Errorf("evicted = %v, want [a]", got)
	}
}

func TestTrimSkipsLockedAndStopsAtHead(t *testing.T) {
	c, evicted := newTestCache(10)
	c.Insert(0, &fakeEntry{size: 10, locked: true}) // "a" locked
	c.Insert(1, &fakeEntry{size: 10})               // "b" over budget but blocked by locked head

	if _, ok := c.Touch(0); !ok {
		t.Error("locked entry must never be evicted")
	}
	if _, ok := c.Touch(1); !ok {
		t.Error("entry behind a locked head must stay resident (eviction stops at locked head)")
	}
	if got := *evicted; len(got) != 0 {
		t.Errorf("evicted = %v, want none", got)
	}
}

func TestMoveToTailProtectsRecentlyTouched(t *testing.T) {
	c, evicted := newTestCache(20)
	c.Insert(0, &fakeEntry{size: 10}) // "a"
	c.Insert(1, &fakeEntry{size: 10}) // "b"
	c.Touch(0)                        // "a" becomes most-recently-used
	c.Insert(2, &fakeEntry{size: 10}) // "c" forces an eviction: "b" is now oldest

	if got := *evicted; len(got) != 1 || got[0] != "b" {
		t.Errorf("evicted = %v, want [b]", got)
	}
}

func TestTrimNeverEvictsMostRecentlyUsed(t *testing.T) {
	c, evicted := newTestCache(10)
	c.Insert(0, &fakeEntry{size: 50}) // "a" alone and over budget: stays resident
	if _, ok := c.Touch(0); !ok {
		t.Fatal("an oversized entry must stay resident until something newer displaces it")
	}
	c.Insert(1, &fakeEntry{size: 10}) // "b" displaces "a"
	if got := *evicted; len(got) != 1 || got[0] != "a" {
		t.Errorf("evicted = %v, want [a]", got)
	}
	if _, ok := c.Touch(1); !ok {
		t.Error("the just-inserted entry must survive its own trim")
	}
}

func TestFlushIfDirtyCalledOnEviction(t *testing.T) {
	c, _ := newTestCache(10)
	e := &fakeEntry{size: 10, dirty: true}
	c.Insert(0, e)
	c.Insert(1, &fakeEntry{size: 10})

	if !e.flushed {
		t.Error("expected dirty entry to be flushed on eviction")
	}
}

func TestRemoveForcesEvictionRegardlessOfLock(t *testing.T) {
	c, _ := newTestCache(100)
	c.Insert(0, &fakeEntry{size: 10, locked: true})
	v, ok := c.Remove(0)
	if !ok || v == nil {
		t.Fatal("expected Remove to force-evict even a locked entry")
	}
	if _, ok := c.Touch(0); ok {
		t.Error("entry should no longer be resident after Remove")
	}
}
