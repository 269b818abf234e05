package storage

// Store ties together positioned file I/O, the page cache and the
// freelist allocator behind the single entry point the btree and kvstore
// packages use to read and write pages (spec §4.1-§4.4). Nothing above
// this package touches *os.File directly.
type Store struct {
	file     *file
	cache    *Cache
	freelist *FreeList
	pageSize uint32
}

// Create opens path for a brand-new database, truncating any existing
// freelist state. reservedPages is the count of low page ids the caller
// (kvstore's meta page) keeps for itself; the freelist's own page is the
// first page after those, and allocation continues from the page after it.
func Create(path string, opt Option, reservedPages uint32) (*Store, error) {
	f, err := openFile(path, true)
	if err != nil {
		return nil, err
	}
	f.sync = opt.Sync

	s := &Store{file: f, pageSize: opt.PageSize}
	s.cache = newCache(f, opt.PageSize, opt.MaxBufferPages)
	s.freelist = newFreeList(s, 0, reservedPages)
	s.freelist.pageID = s.freelist.Alloc(1)
	s.freelist.hdrPages = 1
	return s, nil
}

// Open reopens an existing database, loading the freelist from the page
// id the caller previously recorded in its meta page.
func Open(path string, opt Option, freelistPageID uint32) (*Store, error) {
	f, err := openFile(path, false)
	if err != nil {
		return nil, err
	}
	f.sync = opt.Sync

	s := &Store{file: f, pageSize: opt.PageSize}
	s.cache = newCache(f, opt.PageSize, opt.MaxBufferPages)
	fl, err := loadFreeList(s, freelistPageID)
	if err != nil {
		s.cache.Close()
		_ = f.close()
		return nil, err
	}
	s.freelist = fl
	return s, nil
}

// PageSize is the fixed page size this store was opened/created with.
func (s *Store) PageSize() uint32 { return s.pageSize }

// OnEvict wires a callback invoked whenever the cache writes a dirty page
// back to disk, letting kvstore feed the ambient metrics/logging stack.
func (s *Store) OnEvict(fn func(id uint32, bytesWritten int)) {
	s.cache.OnEvict(fn)
}

// NewPage allocates and writes a fresh logical page holding content.
func (s *Store) NewPage(content []byte) (*Page, error) {
	return newPage(s, content)
}

// OpenPage loads the logical page whose primary extent starts at id.
func (s *Store) OpenPage(id uint32) (*Page, error) {
	return openPage(s, id)
}

// FreePageID returns the page id where the freelist itself is persisted,
// for the caller to remember in its meta page. Save can move the freelist
// when its run grows, so the id is current as of the last Flush.
func (s *Store) FreePageID() uint32 {
	return s.freelist.pageID
}

// RawRead/RawWrite expose single-raw-page access for the caller's own
// fixed-position meta page, which predates the freelist and so cannot be
// allocated through it.
func (s *Store) RawRead(id uint32, buf []byte) error  { return s.cache.Read(id, buf) }
func (s *Store) RawWrite(id uint32, buf []byte) error { return s.cache.Write(id, buf) }

// Flush writes every dirty page (including the freelist itself) to disk.
func (s *Store) Flush() error {
	if err := s.freelist.Save(); err != nil {
		return err
	}
	return s.cache.FlushAll()
}

// Sync flushes and then fsyncs the underlying file, regardless of the
// store's configured sync-on-write option.
func (s *Store) Sync() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.file.syncNow()
}

// Stats reports cache and freelist counters for the public Stats() API.
func (s *Store) Stats() (cachePages int, hits, misses, reads, writes int64, freeExtents int, freeBytes int64, nextPageID uint32) {
	freeExtents, freeBytes = s.freelist.Stats(s.pageSize)
	return s.cache.Len(), s.cache.stats.Hits.load(), s.cache.stats.Misses.load(),
		s.cache.stats.Reads.load(), s.cache.stats.Writes.load(),
		freeExtents, freeBytes, s.freelist.NextPageID()
}

// Close flushes all state and closes the underlying file.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		s.cache.Close()
		_ = s.file.close()
		return err
	}
	s.cache.Close()
	return s.file.close()
}
