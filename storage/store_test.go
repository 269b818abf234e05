package storage

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestStoreRawReadWriteBypassesFreelist(t *testing.T) {
	s := newTestStore(t, 1)

	buf := bytes.Repeat([]byte{0x42}, int(s.pageSize))
	if err := s.RawWrite(0, buf); err != nil {
		t.Fatalf("RawWrite: %v", err)
	}

	before := s.freelist.NextPageID()
	got := make([]byte, s.pageSize)
	if err := s.RawRead(0, got); err != nil {
		t.Fatalf("RawRead: %v", err)
	}
	if !bytes.Equal(got, buf) {
		t.Fatalf("raw round trip mismatch")
	}
	if s.freelist.NextPageID() != before {
		t.Fatalf("RawRead/RawWrite must not move the freelist's growth cursor")
	}
}

func TestStoreStatsReflectAllocation(t *testing.T) {
	s := newTestStore(t, 1)

	p, err := s.NewPage([]byte("abc"))
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	_, err = p.ReadContent()
	if err != nil {
		t.Fatalf("ReadContent: %v", err)
	}

	cachePages, _, _, _, _, _, _, nextPageID := s.Stats()
	if cachePages == 0 {
		t.Fatalf("expected at least one resident page after NewPage+ReadContent")
	}
	if nextPageID <= p.ID() {
		t.Fatalf("expected the freelist's growth cursor to have advanced past the new page")
	}
}

func TestStoreCloseAndReopenPreservesPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Create(path, Option{PageSize: 256, MaxBufferPages: 16}, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	p, err := s.NewPage([]byte("persisted"))
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id := p.ID()
	freePageID := s.FreePageID()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, Option{PageSize: 256, MaxBufferPages: 16}, freePageID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	rp, err := reopened.OpenPage(id)
	if err != nil {
		t.Fatalf("OpenPage: %v", err)
	}
	content, err := rp.ReadContent()
	if err != nil {
		t.Fatalf("ReadContent: %v", err)
	}
	if !bytes.Equal(content, []byte("persisted")) {
		t.Fatalf("got %q, want %q", content, "persisted")
	}
}
