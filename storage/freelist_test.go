package storage

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T, reservedPages uint32) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Create(path, Option{PageSize: 256, MaxBufferPages: 16}, reservedPages)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFreeListAllocSequential(t *testing.T) {
	s := newTestStore(t, 1)

	a := s.freelist.Alloc(2)
	b := s.freelist.Alloc(3)
	if a == b {
		t.Fatalf("expected distinct allocations, got %d and %d", a, b)
	}
	if b != a+2 {
		t.Fatalf("expected bump allocation immediately after first extent, got a=%d b=%d", a, b)
	}
}

func TestFreeListFreeThenReuse(t *testing.T) {
	s := newTestStore(t, 1)

	a := s.freelist.Alloc(4)
	s.freelist.Free(a, 4)

	b := s.freelist.Alloc(4)
	if b != a {
		t.Fatalf("expected freed extent to be reused exactly, got a=%d b=%d", a, b)
	}
}

func TestFreeListCoalescesAdjacentExtents(t *testing.T) {
	s := newTestStore(t, 1)

	a := s.freelist.Alloc(2)
	b := s.freelist.Alloc(2)
	c := s.freelist.Alloc(2)

	s.freelist.Free(a, 2)
	s.freelist.Free(c, 2)
	s.freelist.Free(b, 2)

	// All three adjacent extents should now be free, retracting next back
	// to a rather than leaving three separate bookkeeping entries.
	extents, freeBytes := s.freelist.Stats(s.pageSize)
	if extents != 0 {
		t.Fatalf("expected the coalesced run to retract next to 0 free extents, got %d", extents)
	}
	if freeBytes != 0 {
		t.Fatalf("expected 0 free bytes once next retracts past the coalesced run, got %d", freeBytes)
	}
	if s.freelist.NextPageID() != a {
		t.Fatalf("expected next to retract to %d, got %d", a, s.freelist.NextPageID())
	}
}

func TestFreeListReallocGrowsInPlaceWhenPossible(t *testing.T) {
	s := newTestStore(t, 1)

	a := s.freelist.Alloc(2)
	// Nothing allocated after a yet, so growing in place should just bump
	// next rather than moving the extent.
	grown := s.freelist.Realloc(a, 2, 5)
	if grown != a {
		t.Fatalf("expected in-place growth to keep the same starting page, got %d want %d", grown, a)
	}
}

func TestFreeListPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Create(path, Option{PageSize: 256, MaxBufferPages: 16}, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	a := s.freelist.Alloc(3)
	s.freelist.Free(a, 3)
	freePageID := s.FreePageID()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, Option{PageSize: 256, MaxBufferPages: 16}, freePageID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	b := reopened.freelist.Alloc(3)
	if b != a {
		t.Fatalf("expected the freed extent to survive reopen, got a=%d b=%d", a, b)
	}
}
