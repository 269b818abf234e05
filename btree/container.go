package btree

import (
	"encoding/binary"
	"sort"

	"github.com/intellect4all/bptreekv/common"
)

// Leaf and inner records are packed on disk as fixed-width length-prefixed
// fields per spec §3/§6:
//
//	leaf record:  keylen:u32 vallen:u32 key[keylen] val[vallen]
//	inner record: keylen:u32 child:u32  key[keylen]
//
// An inner node additionally stores one extra "head" child pointer ahead
// of its records, the routing target for any key less than the first
// record's key — grounded on original_source/src/InnerNode.h, which keeps
// the same shape (n keys routing to n+1 children).
//
// Containers decode the full record set into memory on every access and
// re-encode on every mutation; nodes are bounded by record count (spec's
// "order"), spilling onto overflow pages when those records exceed one
// page, so this is a small, flat slice, not a
// structure worth maintaining incrementally.

type leafRecord struct {
	Key []byte
	Val []byte
}

type innerRecord struct {
	Key   []byte
	Child uint32
}

func decodeLeaf(buf []byte) []leafRecord {
	var recs []leafRecord
	off := 0
	for off < len(buf) {
		keylen := binary.LittleEndian.Uint32(buf[off : off+4])
		vallen := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		off += 8
		key := buf[off : off+int(keylen)]
		off += int(keylen)
		val := buf[off : off+int(vallen)]
		off += int(vallen)
		recs = append(recs, leafRecord{Key: append([]byte(nil), key...), Val: append([]byte(nil), val...)})
	}
	return recs
}

func encodeLeaf(recs []leafRecord) []byte {
	size := 0
	for _, r := range recs {
		size += 8 + len(r.Key) + len(r.Val)
	}
	buf := make([]byte, size)
	off := 0
	for _, r := range recs {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(r.Key)))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(len(r.Val)))
		off += 8
		off += copy(buf[off:], r.Key)
		off += copy(buf[off:], r.Val)
	}
	return buf
}

func decodeInner(buf []byte) (head uint32, recs []innerRecord) {
	head = binary.LittleEndian.Uint32(buf[0:4])
	off := 4
	for off < len(buf) {
		keylen := binary.LittleEndian.Uint32(buf[off : off+4])
		child := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		off += 8
		key := buf[off : off+int(keylen)]
		off += int(keylen)
		recs = append(recs, innerRecord{Key: append([]byte(nil), key...), Child: child})
	}
	return head, recs
}

func encodeInner(head uint32, recs []innerRecord) []byte {
	size := 4
	for _, r := range recs {
		size += 8 + len(r.Key)
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], head)
	off := 4
	for _, r := range recs {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(r.Key)))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], r.Child)
		off += 8
		off += copy(buf[off:], r.Key)
	}
	return buf
}

// leafContainer is the decoded, mutable form of a leaf node's content.
type leafContainer struct {
	recs []leafRecord
	cmp  common.Comparator
}

func newLeafContainer(buf []byte, cmp common.Comparator) *leafContainer {
	return &leafContainer{recs: decodeLeaf(buf), cmp: cmp}
}

func (c *leafContainer) bytes() []byte { return encodeLeaf(c.recs) }
func (c *leafContainer) size() int     { return len(c.recs) }

// find returns the index of key and true if present, else the insertion
// point and false.
func (c *leafContainer) find(key []byte) (int, bool) {
	idx := sort.Search(len(c.recs), func(i int) bool { return c.cmp(c.recs[i].Key, key) >= 0 })
	if idx < len(c.recs) && c.cmp(c.recs[idx].Key, key) == 0 {
		return idx, true
	}
	return idx, false
}

func (c *leafContainer) get(key []byte) ([]byte, bool) {
	idx, ok := c.find(key)
	if !ok {
		return nil, false
	}
	return c.recs[idx].Val, true
}

// put inserts or overwrites key/val, reporting whether this was a fresh
// insert (false means it overwrote an existing key).
func (c *leafContainer) put(key, val []byte) bool {
	idx, ok := c.find(key)
	if ok {
		c.recs[idx].Val = val
		return false
	}
	c.recs = append(c.recs, leafRecord{})
	copy(c.recs[idx+1:], c.recs[idx:])
	c.recs[idx] = leafRecord{Key: key, Val: val}
	return true
}

func (c *leafContainer) del(key []byte) bool {
	idx, ok := c.find(key)
	if !ok {
		return false
	}
	c.recs = append(c.recs[:idx], c.recs[idx+1:]...)
	return true
}

// splitTo moves the upper half of c's records into a new sibling
// container, returning it and the separator key (the sibling's first
// key), per spec §4.6's leaf split.
func (c *leafContainer) splitTo() (*leafContainer, []byte) {
	mid := len(c.recs) / 2
	sibling := &leafContainer{cmp: c.cmp}
	sibling.recs = append(sibling.recs, c.recs[mid:]...)
	c.recs = c.recs[:mid]
	return sibling, sibling.recs[0].Key
}

// mergeFrom appends a right sibling's records onto c.
func (c *leafContainer) mergeFrom(sibling *leafContainer) {
	c.recs = append(c.recs, sibling.recs...)
}

// borrowFromRight moves the first record of right onto the end of c,
// returning right's new first key (the updated separator).
func (c *leafContainer) borrowFromRight(right *leafContainer) []byte {
	rec := right.recs[0]
	right.recs = right.recs[1:]
	c.recs = append(c.recs, rec)
	return right.recs[0].Key
}

func (c *leafContainer) firstKey() []byte { return c.recs[0].Key }

// innerContainer is the decoded, mutable form of an inner node's content.
type innerContainer struct {
	head uint32
	recs []innerRecord
	cmp  common.Comparator
}

func newInnerContainer(buf []byte, cmp common.Comparator) *innerContainer {
	head, recs := decodeInner(buf)
	return &innerContainer{head: head, recs: recs, cmp: cmp}
}

func (c *innerContainer) bytes() []byte { return encodeInner(c.head, c.recs) }
func (c *innerContainer) size() int     { return len(c.recs) }

// route returns the child page id to descend into for key.
func (c *innerContainer) route(key []byte) uint32 {
	idx := sort.Search(len(c.recs), func(i int) bool { return c.cmp(c.recs[i].Key, key) > 0 })
	if idx == 0 {
		return c.head
	}
	return c.recs[idx-1].Child
}

// slotFor returns the index in recs that routes to key, or -1 for head.
func (c *innerContainer) slotFor(key []byte) int {
	idx := sort.Search(len(c.recs), func(i int) bool { return c.cmp(c.recs[i].Key, key) > 0 })
	return idx - 1
}

// childAt returns the child page id at slot i (-1 means head).
func (c *innerContainer) childAt(i int) uint32 {
	if i < 0 {
		return c.head
	}
	return c.recs[i].Child
}

// insertSeparator adds a new (key, child) routing pair, where child holds
// everything >= key up to the next separator.
func (c *innerContainer) insertSeparator(key []byte, child uint32) {
	idx := sort.Search(len(c.recs), func(i int) bool { return c.cmp(c.recs[i].Key, key) >= 0 })
	c.recs = append(c.recs, innerRecord{})
	copy(c.recs[idx+1:], c.recs[idx:])
	c.recs[idx] = innerRecord{Key: key, Child: child}
}

// deleteAt removes the separator at slot i. i is always >= 0: every caller
// already established that the surviving sibling (never the absorbed one)
// keeps routing through its existing child, so only a real separator ever
// needs removing, never the head.
func (c *innerContainer) deleteAt(i int) {
	c.recs = append(c.recs[:i], c.recs[i+1:]...)
}

func (c *innerContainer) updateKeyAt(i int, key []byte) {
	c.recs[i].Key = key
}

// splitTo moves the upper half of c's separators (and head) into a new
// sibling, returning the sibling and the separator key to push up to the
// parent — the middle key is promoted and does NOT remain in either
// child's container, matching a classic B+-tree inner split.
func (c *innerContainer) splitTo() (*innerContainer, []byte) {
	mid := len(c.recs) / 2
	upKey := c.recs[mid].Key

	sibling := &innerContainer{cmp: c.cmp, head: c.recs[mid].Child}
	sibling.recs = append(sibling.recs, c.recs[mid+1:]...)
	c.recs = c.recs[:mid]
	return sibling, upKey
}

// mergeFrom absorbs a right sibling, given the parent separator key that
// used to route between c and sibling (it becomes a real separator now
// that both halves live in one node).
func (c *innerContainer) mergeFrom(sibling *innerContainer, parentKey []byte) {
	c.recs = append(c.recs, innerRecord{Key: parentKey, Child: sibling.head})
	c.recs = append(c.recs, sibling.recs...)
}

// borrowFromRight moves right's first child across the parent separator.
func (c *innerContainer) borrowFromRight(right *innerContainer, parentKey []byte) []byte {
	newKey := right.recs[0].Key
	firstHead := right.head

	c.recs = append(c.recs, innerRecord{Key: parentKey, Child: firstHead})
	right.head = right.recs[0].Child
	right.recs = right.recs[1:]
	return newKey
}
