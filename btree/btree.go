package btree

import (
	"bytes"
	"sync"

	"github.com/intellect4all/bptreekv/common"
	"github.com/intellect4all/bptreekv/storage"
)

// Meta is the persisted shape of one B+-tree: its root page, the page id
// of the leftmost leaf (an iteration shortcut so Begin doesn't have to
// re-descend the tree), its height in levels (1 means the root is itself
// a leaf), and its order (the maximum record count of any node, the same
// bound applied to both leaf and inner containers). Grounded on
// original_source/src/include/bptdb/Bucket.h's BptreeMeta.
type Meta struct {
	Root      uint32
	FirstLeaf uint32
	Height    int
	Order     int
}

// BTree is one named B+-tree instance: a bucket, or the system directory
// of buckets (spec §4.7) — kvstore tells the two apart only by what keys
// and values mean, not by any code path here.
type BTree struct {
	store *storage.Store
	cmp   common.Comparator
	lm    *latchManager

	metaMu sync.RWMutex
	meta   Meta

	// onMetaChange persists a changed Root/FirstLeaf/Height back to this
	// tree's owner (the database's own meta page for the bucket
	// directory, or a bucket-directory record for an ordinary bucket).
	// See original_source/src/DBImpl.h's dual-purpose updateRoot,
	// discussed in SPEC_FULL.md's supplemented features.
	onMetaChange func(Meta) error
}

// New opens a BTree over an already-created root page.
func New(store *storage.Store, cmp common.Comparator, meta Meta, onMetaChange func(Meta) error) *BTree {
	if cmp == nil {
		cmp = bytes.Compare
	}
	return &BTree{store: store, cmp: cmp, lm: newLatchManager(), meta: meta, onMetaChange: onMetaChange}
}

// Create allocates a fresh, empty single-leaf tree of the given order.
func Create(store *storage.Store, cmp common.Comparator, order int, onMetaChange func(Meta) error) (*BTree, error) {
	if cmp == nil {
		cmp = bytes.Compare
	}
	root, err := newLeafNode(store, cmp)
	if err != nil {
		return nil, err
	}
	if err := root.persist(); err != nil {
		return nil, err
	}
	meta := Meta{Root: root.id(), FirstLeaf: root.id(), Height: 1, Order: order}
	t := &BTree{store: store, cmp: cmp, lm: newLatchManager(), meta: meta, onMetaChange: onMetaChange}
	if onMetaChange != nil {
		if err := onMetaChange(meta); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *BTree) snapshot() Meta {
	t.metaMu.RLock()
	defer t.metaMu.RUnlock()
	return t.meta
}

// MetaSnapshot exposes the tree's current root/height/order, for a caller
// (kvstore) that needs to persist it into its own directory structure
// right after creation.
func (t *BTree) MetaSnapshot() Meta { return t.snapshot() }

// FreeAll walks every node of a tree rooted at root (height levels tall)
// and frees its pages, used when a bucket is deleted outright rather than
// emptied key by key. It takes store+root+height directly rather than a
// *BTree so the caller (kvstore.DeleteBucket) doesn't need to keep a live
// BTree/latchManager around just to tear one down.
func FreeAll(store *storage.Store, root uint32, height int) error {
	return freeSubtree(store, root, height)
}

func freeSubtree(store *storage.Store, pageID uint32, levelsRemaining int) error {
	isLeaf := levelsRemaining <= 1
	n, err := loadNode(store, pageID, isLeaf, bytes.Compare)
	if err != nil {
		return err
	}
	if !isLeaf {
		children := make([]uint32, 0, n.inner.size()+1)
		children = append(children, n.inner.head)
		for _, r := range n.inner.recs {
			children = append(children, r.Child)
		}
		for _, c := range children {
			if err := freeSubtree(store, c, levelsRemaining-1); err != nil {
				return err
			}
		}
	}
	return n.free()
}

func (t *BTree) setMeta(m Meta) error {
	t.metaMu.Lock()
	t.meta = m
	t.metaMu.Unlock()
	if t.onMetaChange != nil {
		return t.onMetaChange(m)
	}
	return nil
}

// Get performs a read-crabbed lookup (spec §4.6's optimistic path): shared
// latches held two levels at a time, dropping the parent as soon as the
// child is located.
func (t *BTree) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, common.ErrKeyEmpty
	}
	meta := t.snapshot()
	g := newGuardStack(t.lm, meta.Height)
	defer g.releaseAll()

	pageID := meta.Root
	for level := 1; ; level++ {
		g.push(pageID, LatchRead)
		isLeaf := level >= meta.Height
		n, err := loadNode(t.store, pageID, isLeaf, t.cmp)
		if err != nil {
			return nil, err
		}
		if isLeaf {
			val, ok := n.leaf.get(key)
			if !ok {
				return nil, common.ErrKeyNotFound
			}
			return append([]byte(nil), val...), nil
		}
		pageID = n.inner.route(key)
		g.releaseParent()
	}
}

// Put inserts key/val, returning common.ErrKeyRepeat if key already exists.
func (t *BTree) Put(key, val []byte) error {
	return t.upsert(key, val, true)
}

// Update overwrites the value of an existing key, returning
// common.ErrKeyNotFound if it does not exist.
func (t *BTree) Update(key, val []byte) error {
	return t.upsert(key, val, false)
}

// upsert implements both Put (insertOnly, fails on an existing key) and
// Update (fails on a missing key) with one pessimistic write-crabbed walk:
// exclusive latches are taken root-to-leaf and held for the whole
// operation. This trades the original's finer-grained "release ancestors
// once a node is known safe" optimization for a simpler, still-correct
// implementation — see the design notes on this deliberate simplification.
func (t *BTree) upsert(key, val []byte, insertOnly bool) error {
	if len(key) == 0 {
		return common.ErrKeyEmpty
	}
	meta := t.snapshot()
	g := newGuardStack(t.lm, meta.Height)
	defer g.releaseAll()

	path := make([]*node, 0, meta.Height)
	pageID := meta.Root
	for level := 1; ; level++ {
		g.push(pageID, LatchWrite)
		isLeaf := level >= meta.Height
		n, err := loadNode(t.store, pageID, isLeaf, t.cmp)
		if err != nil {
			return err
		}
		path = append(path, n)
		if isLeaf {
			break
		}
		pageID = n.inner.route(key)
	}

	leaf := path[len(path)-1]
	_, exists := leaf.leaf.get(key)
	if insertOnly && exists {
		return common.ErrKeyRepeat
	}
	if !insertOnly && !exists {
		return common.ErrKeyNotFound
	}
	leaf.leaf.put(key, val)

	if leaf.size() <= meta.Order {
		return leaf.persist()
	}

	return t.splitUp(path, meta)
}

// splitUp propagates a split from the overfull node at the tail of path
// upward, growing the tree's height if the root itself splits.
func (t *BTree) splitUp(path []*node, meta Meta) error {
	idx := len(path) - 1
	cur := path[idx]

	var promotedKey []byte
	var newChildID uint32

	if cur.isLeaf {
		sibling, sepKey := cur.leaf.splitTo()
		siblingNode, err := newLeafNode(t.store, t.cmp)
		if err != nil {
			return err
		}
		siblingNode.leaf = sibling
		siblingNode.page.SetNext(cur.page.Next())
		cur.page.SetNext(siblingNode.id())
		if err := siblingNode.persist(); err != nil {
			return err
		}
		if err := cur.persist(); err != nil {
			return err
		}
		promotedKey, newChildID = sepKey, siblingNode.id()
	} else {
		sibling, sepKey := cur.inner.splitTo()
		siblingNode, err := newInnerNode(t.store, t.cmp, sibling.head)
		if err != nil {
			return err
		}
		siblingNode.inner = sibling
		if err := siblingNode.persist(); err != nil {
			return err
		}
		if err := cur.persist(); err != nil {
			return err
		}
		promotedKey, newChildID = sepKey, siblingNode.id()
	}

	for idx > 0 {
		idx--
		parent := path[idx]
		parent.inner.insertSeparator(promotedKey, newChildID)
		if parent.size() <= meta.Order {
			return parent.persist()
		}
		sibling, sepKey := parent.inner.splitTo()
		siblingNode, err := newInnerNode(t.store, t.cmp, sibling.head)
		if err != nil {
			return err
		}
		siblingNode.inner = sibling
		if err := siblingNode.persist(); err != nil {
			return err
		}
		if err := parent.persist(); err != nil {
			return err
		}
		promotedKey, newChildID = sepKey, siblingNode.id()
	}

	// The root itself split: grow a new root one level taller.
	newRoot, err := newInnerNode(t.store, t.cmp, meta.Root)
	if err != nil {
		return err
	}
	newRoot.inner.insertSeparator(promotedKey, newChildID)
	if err := newRoot.persist(); err != nil {
		return err
	}
	meta.Root = newRoot.id()
	meta.Height++
	return t.setMeta(meta)
}

// Del removes key, returning common.ErrKeyNotFound if it is absent.
func (t *BTree) Del(key []byte) error {
	if len(key) == 0 {
		return common.ErrKeyEmpty
	}
	meta := t.snapshot()
	g := newGuardStack(t.lm, meta.Height)
	defer g.releaseAll()

	path := make([]*node, 0, meta.Height)
	slots := make([]int, 0, meta.Height) // slot in parent routing to path[i]
	pageID := meta.Root
	for level := 1; ; level++ {
		g.push(pageID, LatchWrite)
		isLeaf := level >= meta.Height
		n, err := loadNode(t.store, pageID, isLeaf, t.cmp)
		if err != nil {
			return err
		}
		path = append(path, n)
		if isLeaf {
			break
		}
		slot := n.inner.slotFor(key)
		slots = append(slots, slot)
		pageID = n.inner.childAt(slot)
	}

	leaf := path[len(path)-1]
	if !leaf.leaf.del(key) {
		return common.ErrKeyNotFound
	}

	if len(path) == 1 {
		// Root is a leaf; no minimum occupancy to maintain.
		return leaf.persist()
	}
	if !leaf.underflows(meta.Order) {
		return leaf.persist()
	}
	if err := leaf.persist(); err != nil {
		return err
	}
	return t.rebalanceUp(path, slots, meta)
}

// rebalanceUp borrows from or merges with the right sibling for every node
// on the path (from the leaf upward) that has dropped below minimum
// occupancy, then collapses the root if it has been left with a single
// child. A node with no right sibling (the rightmost child at its level)
// is left underflowing rather than looked at from the left: grounded on
// original_source/src/LeafNode.h's del(), which goes straight to `goto
// done` when entry.last or the node has no next rather than consulting a
// predecessor, and InnerNode.h's del(), which has the identical
// right-only shape.
func (t *BTree) rebalanceUp(path []*node, slots []int, meta Meta) error {
	for i := len(path) - 1; i > 0; i-- {
		child := path[i]
		if !child.underflows(meta.Order) {
			return nil
		}
		parent := path[i-1]
		slot := slots[i-1]

		rightSlot := slot + 1
		if rightSlot >= parent.inner.size() {
			// Rightmost child at this level: no right sibling to borrow
			// from or merge into, so it stays underflowing.
			continue
		}

		if child.isLeaf {
			rightID := parent.inner.childAt(rightSlot)
			right, err := loadNode(t.store, rightID, true, t.cmp)
			if err != nil {
				return err
			}
			if right.size()-1 >= (meta.Order+1)/2 {
				newSep := child.leaf.borrowFromRight(right.leaf)
				parent.inner.updateKeyAt(rightSlot, newSep)
				if err := right.persist(); err != nil {
					return err
				}
				if err := child.persist(); err != nil {
					return err
				}
				if err := parent.persist(); err != nil {
					return err
				}
				continue
			}
			// Merge right into child: fold right's records in, drop
			// right's routing entry, relink leaves.
			child.leaf.mergeFrom(right.leaf)
			child.page.SetNext(right.page.Next())
			if err := right.free(); err != nil {
				return err
			}
			t.lm.forget(right.id())
			parent.inner.deleteAt(rightSlot)
			if err := child.persist(); err != nil {
				return err
			}
			if err := parent.persist(); err != nil {
				return err
			}
			continue
		}

		// Inner child underflowing: same borrow/merge shape, one level up.
		rightID := parent.inner.childAt(rightSlot)
		right, err := loadNode(t.store, rightID, false, t.cmp)
		if err != nil {
			return err
		}
		if right.size()-1 >= (meta.Order+1)/2 {
			parentKey := parent.inner.recs[rightSlot].Key
			newSep := child.inner.borrowFromRight(right.inner, parentKey)
			parent.inner.updateKeyAt(rightSlot, newSep)
			if err := right.persist(); err != nil {
				return err
			}
			if err := child.persist(); err != nil {
				return err
			}
			if err := parent.persist(); err != nil {
				return err
			}
			continue
		}
		parentKey := parent.inner.recs[rightSlot].Key
		child.inner.mergeFrom(right.inner, parentKey)
		if err := right.free(); err != nil {
			return err
		}
		t.lm.forget(right.id())
		parent.inner.deleteAt(rightSlot)
		if err := child.persist(); err != nil {
			return err
		}
		if err := parent.persist(); err != nil {
			return err
		}
		continue
	}

	// Root collapse: if the root is an inner node left with no
	// separators, its single remaining child (the head) becomes the new
	// root and height drops by one.
	root := path[0]
	if !root.isLeaf && root.inner.size() == 0 && meta.Height > 1 {
		newRootID := root.inner.head
		if err := root.free(); err != nil {
			return err
		}
		t.lm.forget(root.id())
		meta.Root = newRootID
		meta.Height--
		return t.setMeta(meta)
	}
	return nil
}
