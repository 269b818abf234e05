package storage

import (
	"encoding/binary"
	"sort"
	"sync"
)

// extent is a run of free pages, spec §4.4's {pos,len}. The freelist keeps
// these sorted by Pos and merges adjacent runs, mirroring PageAllocator.h's
// Elem and the invariant that the in-memory and on-disk free lists are
// always disjoint and coalesced.
type extent struct {
	Pos uint32
	Len uint32
}

// FreeList is the extent allocator from spec §4.4, grounded directly on
// original_source/src/PageAllocator.{h,cpp}: a sorted, coalesced list of
// free extents plus a "next" cursor marking the first page never yet
// handed out. Alloc first tries to satisfy a request from the free list
// (first-fit over the sorted extents); only once the list is exhausted
// does it grow the file by bumping next.
//
// The allocator persists itself to its own run of pages using the same
// PageHeader framing as every other page, but it must never go through
// the generic Page helper for its own I/O: Page.Write can call back into
// FreeList.Alloc/Realloc, and growing the freelist's own backing storage
// would re-enter Alloc while the lock is already held. The original C++
// solved this with a std::recursive_mutex; Go has none, so Save grows the
// run inline under the same lock acquisition via reallocRawLocked, which
// takes the new pages with allocLocked and folds the displaced old extent
// back in with freeLocked instead of calling Alloc/Free recursively.
type FreeList struct {
	mu    sync.Mutex
	store *Store

	pageID    uint32 // first page of the freelist's run; Save moves it when the run cannot grow in place
	hdrPages  uint32
	extents   []extent // sorted by Pos, pairwise disjoint and non-adjacent
	next      uint32   // first never-allocated page id
	dirty     bool
}

const freelistExtentSize = 8 // Pos, Len as u32

// newFreeList creates an empty freelist starting allocation at `next`
// (typically just past the meta page(s)).
func newFreeList(store *Store, pageID, next uint32) *FreeList {
	return &FreeList{
		store:  store,
		pageID: pageID,
		next:   next,
	}
}

// Alloc reserves n contiguous pages and returns the id of the first one.
func (fl *FreeList) Alloc(n uint32) uint32 {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.allocLocked(n)
}

func (fl *FreeList) allocLocked(n uint32) uint32 {
	for i, e := range fl.extents {
		if e.Len < n {
			continue
		}
		pos := e.Pos
		if e.Len == n {
			fl.extents = append(fl.extents[:i], fl.extents[i+1:]...)
		} else {
			fl.extents[i] = extent{Pos: e.Pos + n, Len: e.Len - n}
		}
		fl.dirty = true
		return pos
	}
	// No free extent is large enough: grow from next directly, without
	// recursing into allocLocked again.
	pos := fl.next
	fl.next += n
	fl.dirty = true
	return pos
}

// Free releases n pages starting at pos back to the free list, merging
// with adjacent extents. If pos+n == fl.next (the released run abuts the
// growth cursor), next retreats instead of keeping a dangling extent —
// this is how deleted trailing pages are reclaimed rather than leaked.
func (fl *FreeList) Free(pos, n uint32) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.freeLocked(pos, n)
}

func (fl *FreeList) freeLocked(pos, n uint32) {
	if n == 0 {
		return
	}
	if pos+n == fl.next {
		fl.next = pos
		fl.dirty = true
		// Releasing this run may have exposed the tail of the preceding
		// extent as adjacent to the new next; fold it in too.
		for len(fl.extents) > 0 {
			last := fl.extents[len(fl.extents)-1]
			if last.Pos+last.Len == fl.next {
				fl.next = last.Pos
				fl.extents = fl.extents[:len(fl.extents)-1]
				continue
			}
			break
		}
		return
	}

	idx := sort.Search(len(fl.extents), func(i int) bool { return fl.extents[i].Pos >= pos })
	merged := extent{Pos: pos, Len: n}

	// Merge with predecessor.
	if idx > 0 {
		prev := fl.extents[idx-1]
		if prev.Pos+prev.Len == merged.Pos {
			merged.Pos = prev.Pos
			merged.Len += prev.Len
			idx--
			fl.extents = append(fl.extents[:idx], fl.extents[idx+1:]...)
		}
	}
	// Merge with successor.
	if idx < len(fl.extents) {
		next := fl.extents[idx]
		if merged.Pos+merged.Len == next.Pos {
			merged.Len += next.Len
			fl.extents = append(fl.extents[:idx], fl.extents[idx+1:]...)
		}
	}

	fl.extents = append(fl.extents, extent{})
	copy(fl.extents[idx+1:], fl.extents[idx:])
	fl.extents[idx] = merged
	fl.dirty = true
}

// Realloc changes an existing n-page extent at pos to an m-page extent,
// reusing it in place when the tail is free to extend into, and
// falling back to free-then-alloc otherwise. Returns the (possibly
// unchanged) position of the resized extent.
func (fl *FreeList) Realloc(pos, n, m uint32) uint32 {
	if m <= n {
		fl.mu.Lock()
		if m < n {
			fl.freeLocked(pos+m, n-m)
		}
		fl.mu.Unlock()
		return pos
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	grow := m - n
	for i, e := range fl.extents {
		if e.Pos == pos+n && e.Len >= grow {
			if e.Len == grow {
				fl.extents = append(fl.extents[:i], fl.extents[i+1:]...)
			} else {
				fl.extents[i] = extent{Pos: e.Pos + grow, Len: e.Len - grow}
			}
			fl.dirty = true
			return pos
		}
	}
	if pos+n == fl.next {
		fl.next += grow
		fl.dirty = true
		return pos
	}

	newPos := fl.allocLocked(m)
	fl.freeLocked(pos, n)
	return newPos
}

// Stats reports the free-extent count and total free bytes, used by
// kvstore's public Stats().
func (fl *FreeList) Stats(pageSize uint32) (extents int, freeBytes int64) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	var total int64
	for _, e := range fl.extents {
		total += int64(e.Len) * int64(pageSize)
	}
	return len(fl.extents), total
}

// NextPageID reports the first never-allocated page, i.e. the current
// logical end of the file.
func (fl *FreeList) NextPageID() uint32 {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.next
}

// Save persists the freelist's extents into its reserved page run,
// growing that run itself via Realloc if it no longer fits.
func (fl *FreeList) Save() error {
	fl.mu.Lock()
	if !fl.dirty {
		fl.mu.Unlock()
		return nil
	}
	need := HeaderSize + len(fl.extents)*freelistExtentSize
	pageSize := int(fl.store.pageSize)
	wantPages := uint32((need + pageSize - 1) / pageSize)
	if wantPages == 0 {
		wantPages = 1
	}
	if wantPages != fl.hdrPages {
		if fl.hdrPages == 0 {
			fl.pageID = fl.allocLocked(wantPages)
		} else {
			fl.pageID = fl.reallocRawLocked(fl.pageID, fl.hdrPages, wantPages)
		}
		fl.hdrPages = wantPages
	}

	buf := make([]byte, int(wantPages)*pageSize)
	hdr := PageHeader{
		HdrPages:  wantPages,
		RealPages: wantPages,
		Bytes:     uint32(need),
		Size:      uint32(len(fl.extents)),
		Next:      fl.next,
	}
	hdr.encodeInto(buf)
	off := HeaderSize
	for _, e := range fl.extents {
		binary.LittleEndian.PutUint32(buf[off:off+4], e.Pos)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], e.Len)
		off += freelistExtentSize
	}
	fl.dirty = false
	pageID := fl.pageID
	fl.mu.Unlock()

	for i := uint32(0); i < wantPages; i++ {
		if err := fl.store.cache.Write(pageID+i, buf[int(i)*pageSize:int(i+1)*pageSize]); err != nil {
			return err
		}
	}
	return nil
}

// reallocRawLocked grows/shrinks the freelist's own backing pages without
// going through Realloc's public path (which would be fine here too, since
// this isn't re-entered from within Alloc/Free — Save is always called
// top-level, never from inside another freelist operation).
func (fl *FreeList) reallocRawLocked(pos, n, m uint32) uint32 {
	if m <= n {
		if m < n {
			fl.freeLocked(pos+m, n-m)
		}
		return pos
	}
	grow := m - n
	for i, e := range fl.extents {
		if e.Pos == pos+n && e.Len >= grow {
			if e.Len == grow {
				fl.extents = append(fl.extents[:i], fl.extents[i+1:]...)
			} else {
				fl.extents[i] = extent{Pos: e.Pos + grow, Len: e.Len - grow}
			}
			return pos
		}
	}
	if pos+n == fl.next {
		fl.next += grow
		return pos
	}
	newPos := fl.allocLocked(m)
	fl.freeLocked(pos, n)
	return newPos
}

// loadFreeList reads a previously-saved freelist back from its page run.
func loadFreeList(store *Store, pageID uint32) (*FreeList, error) {
	pageSize := int(store.pageSize)
	hdrBuf := make([]byte, pageSize)
	if err := store.cache.Read(pageID, hdrBuf); err != nil {
		return nil, err
	}
	hdr := decodeHeader(hdrBuf)

	buf := make([]byte, int(hdr.HdrPages)*pageSize)
	copy(buf, hdrBuf)
	for i := uint32(1); i < hdr.HdrPages; i++ {
		if err := store.cache.Read(pageID+i, buf[int(i)*pageSize:int(i+1)*pageSize]); err != nil {
			return nil, err
		}
	}

	fl := &FreeList{
		store:    store,
		pageID:   pageID,
		hdrPages: hdr.HdrPages,
		next:     hdr.Next,
		extents:  make([]extent, 0, hdr.Size),
	}
	off := HeaderSize
	for i := uint32(0); i < hdr.Size; i++ {
		pos := binary.LittleEndian.Uint32(buf[off : off+4])
		ln := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		fl.extents = append(fl.extents, extent{Pos: pos, Len: ln})
		off += freelistExtentSize
	}
	return fl, nil
}
