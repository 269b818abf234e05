package storage

import (
	"container/list"
	"sync"
	"time"
)

// flushInterval is how often the background flusher wakes to write dirty
// pages, per spec §4.2 ("wakes on an interval ≈10s").
const flushInterval = 10 * time.Second

type cacheEntry struct {
	id    uint32
	mu    sync.RWMutex
	data  []byte
	dirty atomicBool
	elem  *list.Element
}

// Cache is the bounded page cache from spec §4.2: a map from page id to a
// shared page buffer with LRU eviction, a dirty bit per page, and a
// background flusher. Caches at raw-page granularity — one PageSize-byte
// slot per id; the logical multi-page view lives in Page (page.go), which
// reads/writes one raw page at a time through the cache, matching how a
// page helper assembles a primary extent plus an overflow extent out of
// individually-cached pages.
type Cache struct {
	mu       sync.RWMutex // guards the map and the LRU list
	entries  map[uint32]*cacheEntry
	lru      *list.List
	maxPages int
	pageSize uint32
	file     *file

	log onEvict

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	stats CacheStats
}

// CacheStats are the counters spec §8/metrics surface.
type CacheStats struct {
	Hits    atomicInt64
	Misses  atomicInt64
	Reads   atomicInt64
	Writes  atomicInt64
	Flushes atomicInt64
}

// onEvict is called whenever the cache writes a dirty page back to disk,
// used to feed the metrics/logging ambient stack without storage importing
// internal/metrics or internal/logger (avoids an import cycle; kvstore
// wires the callback at Open time).
type onEvict func(id uint32, bytesWritten int)

func newCache(f *file, pageSize uint32, maxPages int) *Cache {
	c := &Cache{
		entries:  make(map[uint32]*cacheEntry),
		lru:      list.New(),
		maxPages: maxPages,
		pageSize: pageSize,
		file:     f,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go c.flushLoop()
	return c
}

// OnEvict installs (or replaces) the dirty-write-back observer.
func (c *Cache) OnEvict(fn onEvict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = fn
}

// Read populates dst (len == pageSize) with the current in-memory image of
// page id, faulting it in from disk on a miss.
func (c *Cache) Read(id uint32, dst []byte) error {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if ok {
		c.lru.MoveToFront(entry.elem)
		c.stats.Hits.add(1)
		c.mu.Unlock()
		entry.mu.RLock()
		copy(dst, entry.data)
		entry.mu.RUnlock()
		return nil
	}
	c.stats.Misses.add(1)
	c.mu.Unlock()

	buf := make([]byte, c.pageSize)
	if err := c.file.readAt(buf, int64(id)*int64(c.pageSize)); err != nil {
		return err
	}
	c.stats.Reads.add(1)
	copy(dst, buf)
	c.insert(id, buf, false)
	return nil
}

// Write updates the in-memory image of page id and marks it dirty,
// evicting the LRU tail first if the cache is full and id is not already
// resident.
func (c *Cache) Write(id uint32, src []byte) error {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if ok {
		c.lru.MoveToFront(entry.elem)
		c.mu.Unlock()
		entry.mu.Lock()
		copy(entry.data, src)
		entry.mu.Unlock()
		entry.dirty.set(true)
		return nil
	}
	c.mu.Unlock()

	buf := make([]byte, c.pageSize)
	copy(buf, src)
	c.insert(id, buf, true)
	return nil
}

// insert adds a freshly-read or freshly-written page to the cache, evicting
// the LRU tail under the map latch if the cache is at capacity.
func (c *Cache) insert(id uint32, buf []byte, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[id]; ok {
		c.lru.MoveToFront(existing.elem)
		existing.mu.Lock()
		copy(existing.data, buf)
		existing.mu.Unlock()
		if dirty {
			existing.dirty.set(true)
		}
		return
	}

	if len(c.entries) >= c.maxPages {
		c.evictLocked()
	}

	entry := &cacheEntry{id: id, data: buf}
	entry.dirty.set(dirty)
	entry.elem = c.lru.PushFront(entry)
	c.entries[id] = entry
}

// evictLocked drops the LRU tail, flushing it first if dirty. Caller holds c.mu.
func (c *Cache) evictLocked() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	if entry.dirty.get() {
		c.writeBack(entry)
	}
	c.lru.Remove(elem)
	delete(c.entries, entry.id)
}

func (c *Cache) writeBack(entry *cacheEntry) {
	entry.mu.RLock()
	buf := make([]byte, len(entry.data))
	copy(buf, entry.data)
	entry.mu.RUnlock()

	if err := c.file.writeAt(buf, int64(entry.id)*int64(c.pageSize)); err != nil {
		// File I/O errors during write-back are fatal to the page's
		// durability but the eviction must still proceed: the caller of
		// Write/FlushAll already returned success for the in-memory
		// mutation. There is no recovery path for the core (spec §7).
		return
	}
	entry.dirty.set(false)
	c.stats.Writes.add(1)
	c.stats.Flushes.add(1)
	if c.log != nil {
		c.log(entry.id, len(buf))
	}
}

// FlushAll writes every dirty page to disk.
func (c *Cache) FlushAll() error {
	c.mu.RLock()
	dirty := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.dirty.get() {
			dirty = append(dirty, e)
		}
	}
	c.mu.RUnlock()

	for _, e := range dirty {
		c.writeBack(e)
	}
	return nil
}

func (c *Cache) flushLoop() {
	defer close(c.doneCh)
	t := time.NewTicker(flushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = c.FlushAll()
		case <-c.stopCh:
			_ = c.FlushAll()
			return
		}
	}
}

// Close stops the background flusher after one final flush.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	<-c.doneCh
}

// Len reports the number of resident pages, used by Stats().
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
