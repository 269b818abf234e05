package btree

import "github.com/intellect4all/bptreekv/common"

// Iterator is a forward-only cursor over a tree's leaves, spec §4.6's
// Begin/At/Next/Done/Key/Val. It holds no latches between calls — each
// Next that crosses a leaf boundary takes a fresh read latch on the next
// leaf just long enough to load it, matching original_source/src/
// Bptree.h's Iterator, which walks the leaf chain via next() rather than
// re-descending from the root. A concurrent writer may split or merge
// leaves out from under a live iterator; spec's non-goals exclude
// snapshot isolation, so this is accepted, not guarded against.
type Iterator struct {
	t      *BTree
	pageID uint32
	leaf   *leafContainer
	idx    int
	done   bool
}

var _ common.Iterator = (*Iterator)(nil)

// Begin returns a cursor positioned at the first record of the tree.
func (t *BTree) Begin() (*Iterator, error) {
	meta := t.snapshot()
	return t.cursorFrom(meta.FirstLeaf, 0)
}

// At returns a cursor positioned at the first record with key >= key.
func (t *BTree) At(key []byte) (*Iterator, error) {
	meta := t.snapshot()
	g := newGuardStack(t.lm, meta.Height)
	pageID := meta.Root
	for level := 1; ; level++ {
		g.push(pageID, LatchRead)
		isLeaf := level >= meta.Height
		n, err := loadNode(t.store, pageID, isLeaf, t.cmp)
		if err != nil {
			g.releaseAll()
			return nil, err
		}
		if isLeaf {
			idx, _ := n.leaf.find(key)
			g.releaseAll()
			return t.cursorAt(pageID, n.leaf, idx)
		}
		pageID = n.inner.route(key)
		g.releaseParent()
	}
}

// cursorFrom loads leaf pageID fresh (under its own read latch) and builds
// a cursor starting at idx within it.
func (t *BTree) cursorFrom(pageID uint32, idx int) (*Iterator, error) {
	lat := t.lm.get(pageID)
	lat.Lock(LatchRead)
	n, err := loadNode(t.store, pageID, true, t.cmp)
	lat.Unlock(LatchRead)
	if err != nil {
		return nil, err
	}
	return t.cursorAt(pageID, n.leaf, idx)
}

func (t *BTree) cursorAt(pageID uint32, leaf *leafContainer, idx int) (*Iterator, error) {
	it := &Iterator{t: t, pageID: pageID, leaf: leaf, idx: idx}
	it.advanceToValid()
	return it, nil
}

// advanceToValid crosses leaf boundaries (reloading the next leaf under
// its own read latch) until a record is found or the chain is exhausted.
func (it *Iterator) advanceToValid() {
	for it.idx >= it.leaf.size() {
		p, err := it.t.store.OpenPage(it.pageID)
		if err != nil {
			it.done = true
			return
		}
		next := p.Next()
		if next == 0 {
			it.done = true
			return
		}
		lat := it.t.lm.get(next)
		lat.Lock(LatchRead)
		n, err := loadNode(it.t.store, next, true, it.t.cmp)
		lat.Unlock(LatchRead)
		if err != nil {
			it.done = true
			return
		}
		it.pageID = next
		it.leaf = n.leaf
		it.idx = 0
	}
}

func (it *Iterator) Done() bool { return it.done }

func (it *Iterator) Next() {
	if it.done {
		return
	}
	it.idx++
	it.advanceToValid()
}

func (it *Iterator) Key() []byte { return it.leaf.recs[it.idx].Key }
func (it *Iterator) Val() []byte { return it.leaf.recs[it.idx].Val }
