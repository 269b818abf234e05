package kvstore

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/intellect4all/bptreekv/common"
)

func testOption() Option {
	opt := DefaultOption()
	opt.PageSize = 512
	opt.MaxBufferPages = 64
	opt.BucketOrder = 4
	return opt
}

func TestCreateBucketAndRoundTripValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := Create(path, testOption())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer db.Close()

	b, err := db.CreateBucket("widgets")
	if err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}

	if err := b.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	val, err := b.Get([]byte("a"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(val) != "1" {
		t.Fatalf("got %q, want %q", val, "1")
	}
}

func TestCreateBucketRejectsDuplicateName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := Create(path, testOption())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer db.Close()

	if _, err := db.CreateBucket("widgets"); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	if _, err := db.CreateBucket("widgets"); !errors.Is(err, common.ErrBucketExists) {
		t.Fatalf("expected ErrBucketExists, got %v", err)
	}
}

func TestBucketNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := Create(path, testOption())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer db.Close()

	if _, err := db.Bucket("nope"); !errors.Is(err, common.ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
}

func TestDeleteBucketRemovesItAndItsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := Create(path, testOption())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer db.Close()

	b, err := db.CreateBucket("widgets")
	if err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		if err := b.Put(key, key); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	if err := db.DeleteBucket("widgets"); err != nil {
		t.Fatalf("DeleteBucket: %v", err)
	}
	if _, err := db.Bucket("widgets"); !errors.Is(err, common.ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound after delete, got %v", err)
	}

	if _, err := db.CreateBucket("widgets"); err != nil {
		t.Fatalf("expected the name to be reusable after delete: %v", err)
	}
}

func TestDatabasePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	opt := testOption()

	db, err := Create(path, opt)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := db.CreateBucket("widgets")
	if err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		if err := b.Put(key, key); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, opt)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	rb, err := reopened.Bucket("widgets")
	if err != nil {
		t.Fatalf("Bucket: %v", err)
	}
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		val, err := rb.Get(key)
		if err != nil {
			t.Fatalf("Get(%s): %v", key, err)
		}
		if !bytes.Equal(val, key) {
			t.Fatalf("Get(%s) = %q", key, val)
		}
	}
}

func TestClosedDatabaseRejectsOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := Create(path, testOption())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := db.CreateBucket("widgets"); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := db.CreateBucket("other"); !errors.Is(err, common.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := db.Bucket("widgets"); !errors.Is(err, common.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestIteratorOverBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := Create(path, testOption())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer db.Close()

	b, err := db.CreateBucket("widgets")
	if err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	keys := []string{"c", "a", "b", "e", "d"}
	for _, k := range keys {
		if err := b.Put([]byte(k), []byte(k)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	it, err := b.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	var got []string
	for !it.Done() {
		got = append(got, string(it.Key()))
		it.Next()
	}
	want := []string{"a", "b", "c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestStatsReflectUsage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := Create(path, testOption())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer db.Close()

	b, err := db.CreateBucket("widgets")
	if err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		if err := b.Put(key, key); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NumPages == 0 {
		t.Fatalf("expected a nonzero page count after inserts")
	}
	if stats.FileSizeBytes == 0 {
		t.Fatalf("expected a nonzero file size after inserts")
	}
}
