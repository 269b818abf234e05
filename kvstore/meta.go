package kvstore

import (
	"encoding/binary"

	"github.com/intellect4all/bptreekv/btree"
)

// metaMagic tags a file as this store's format, guarding against opening
// an unrelated file (spec §6, common.ErrInvalidFile on mismatch).
const metaMagic = 0x62707464 // "bptd"

// metaPageID is the fixed page holding the database's own bookkeeping; it
// predates the freelist, so it is written directly via
// storage.Store.RawWrite (and read straight from the file by Open, before
// the store exists) rather than through a logical Page.
const metaPageID = 0

// fileMeta is the on-disk shape of page 0: format tag, the page size the
// file was created with, where the freelist persists itself, and the
// bucket directory's own tree metadata. Grounded on
// original_source/src/include/bptdb/DB.h's Meta.
type fileMeta struct {
	Magic          uint32
	PageSize       uint32
	FreeListPageID uint32
	Dir            btree.Meta
}

const fileMetaSize = 4 + 4 + 4 + (4 + 4 + 4 + 4) // magic, pagesize, freelistpage, btree.Meta fields

func encodeFileMeta(m fileMeta) []byte {
	buf := make([]byte, fileMetaSize)
	binary.LittleEndian.PutUint32(buf[0:4], m.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], m.PageSize)
	binary.LittleEndian.PutUint32(buf[8:12], m.FreeListPageID)
	binary.LittleEndian.PutUint32(buf[12:16], m.Dir.Root)
	binary.LittleEndian.PutUint32(buf[16:20], m.Dir.FirstLeaf)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(m.Dir.Height))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(m.Dir.Order))
	return buf
}

func decodeFileMeta(buf []byte) fileMeta {
	return fileMeta{
		Magic:          binary.LittleEndian.Uint32(buf[0:4]),
		PageSize:       binary.LittleEndian.Uint32(buf[4:8]),
		FreeListPageID: binary.LittleEndian.Uint32(buf[8:12]),
		Dir: btree.Meta{
			Root:      binary.LittleEndian.Uint32(buf[12:16]),
			FirstLeaf: binary.LittleEndian.Uint32(buf[16:20]),
			Height:    int(binary.LittleEndian.Uint32(buf[20:24])),
			Order:     int(binary.LittleEndian.Uint32(buf[24:28])),
		},
	}
}

// bucketMetaSize is the encoded size of a BucketMeta directory value.
const bucketMetaSize = 4 + 4 + 4 + 4

// BucketMeta is the directory tree's value type: everything needed to
// reopen one bucket's B+-tree. Grounded on original_source/src/include/
// bptdb/Bucket.h's BptreeMeta.
type BucketMeta struct {
	Root      uint32
	FirstLeaf uint32
	Height    int
	Order     int
}

func encodeBucketMeta(m BucketMeta) []byte {
	buf := make([]byte, bucketMetaSize)
	binary.LittleEndian.PutUint32(buf[0:4], m.Root)
	binary.LittleEndian.PutUint32(buf[4:8], m.FirstLeaf)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(m.Height))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(m.Order))
	return buf
}

func decodeBucketMeta(buf []byte) BucketMeta {
	return BucketMeta{
		Root:      binary.LittleEndian.Uint32(buf[0:4]),
		FirstLeaf: binary.LittleEndian.Uint32(buf[4:8]),
		Height:    int(binary.LittleEndian.Uint32(buf[8:12])),
		Order:     int(binary.LittleEndian.Uint32(buf[12:16])),
	}
}
