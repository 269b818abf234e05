package kvstore

import (
	"github.com/intellect4all/bptreekv/btree"
	"github.com/intellect4all/bptreekv/common"
)

// Bucket is a named, independent B+-tree within a Database — spec §4.7's
// public surface: Get/Put/Update/Del plus forward iteration via
// Begin/At. Grounded on original_source/src/include/bptdb/Bucket.h.
type Bucket struct {
	db   *Database
	name string
	tree *btree.BTree
}

// Name returns the bucket's name.
func (b *Bucket) Name() string { return b.name }

// Get returns the value stored under key, or common.ErrKeyNotFound.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	b.db.met.RecordOp("get")
	val, err := b.tree.Get(key)
	if err != nil {
		b.db.log.Debug("get miss", "bucket", b.name, "err", err)
		return nil, err
	}
	return val, nil
}

// Put inserts key/val, failing with common.ErrKeyRepeat if key exists.
func (b *Bucket) Put(key, val []byte) error {
	b.db.met.RecordOp("put")
	if err := b.tree.Put(key, val); err != nil {
		return err
	}
	b.db.log.Debug("put", "bucket", b.name, "key_len", len(key), "val_len", len(val))
	return nil
}

// Update overwrites an existing key's value, failing with
// common.ErrKeyNotFound if key is absent.
func (b *Bucket) Update(key, val []byte) error {
	b.db.met.RecordOp("update")
	return b.tree.Update(key, val)
}

// Del removes key, failing with common.ErrKeyNotFound if absent.
func (b *Bucket) Del(key []byte) error {
	b.db.met.RecordOp("del")
	return b.tree.Del(key)
}

// Begin returns a cursor at the bucket's first record.
func (b *Bucket) Begin() (common.Iterator, error) {
	return b.tree.Begin()
}

// At returns a cursor at the first record with key >= key.
func (b *Bucket) At(key []byte) (common.Iterator, error) {
	return b.tree.At(key)
}
