package kvstore

import (
	"bytes"

	"github.com/intellect4all/bptreekv/btree"
)

// directoryOrder bounds the bucket directory's own node size. Bucket
// names are short and few buckets are expected per database, so a modest
// fixed order is enough; it is independent of any bucket's own order.
const directoryOrder = 64

// openOrCreateDirectory opens the database's system B+-tree of bucket
// name -> BucketMeta (spec §4.7), creating it fresh when meta.Dir.Root is
// zero (a brand-new database).
func (db *Database) openOrCreateDirectory() error {
	if db.meta.Dir.Root == 0 {
		t, err := btree.Create(db.store, bytes.Compare, directoryOrder, db.onDirMetaChange)
		if err != nil {
			return err
		}
		db.dir = t
		return db.persistFileMeta()
	}
	db.dir = btree.New(db.store, bytes.Compare, db.meta.Dir, db.onDirMetaChange)
	return nil
}

// onDirMetaChange is the directory tree's own onMetaChange: unlike an
// ordinary bucket, whose root lives in a directory entry, the directory's
// root lives directly in the file's meta page. This and
// onBucketMetaChange are the two faces of the original's single
// dual-purpose updateRoot — expressed here as two distinct closures
// rather than a name-sentinel branch, since each already closes over
// exactly the state it needs to update.
func (db *Database) onDirMetaChange(m btree.Meta) error {
	db.metaMu.Lock()
	db.meta.Dir = m
	db.metaMu.Unlock()
	return db.persistFileMeta()
}

// onBucketMetaChange persists an ordinary bucket's updated root/height
// into its directory entry.
func (db *Database) onBucketMetaChange(name string) func(btree.Meta) error {
	return func(m btree.Meta) error {
		bm := BucketMeta{Root: m.Root, FirstLeaf: m.FirstLeaf, Height: m.Height, Order: m.Order}
		return db.dir.Update([]byte(name), encodeBucketMeta(bm))
	}
}

func (db *Database) lookupBucketMeta(name string) (BucketMeta, bool) {
	val, err := db.dir.Get([]byte(name))
	if err != nil {
		return BucketMeta{}, false
	}
	return decodeBucketMeta(val), true
}

func (db *Database) insertBucketMeta(name string, bm BucketMeta) error {
	return db.dir.Put([]byte(name), encodeBucketMeta(bm))
}

func (db *Database) removeBucketMeta(name string) error {
	return db.dir.Del([]byte(name))
}
