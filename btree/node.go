package btree

import (
	"github.com/intellect4all/bptreekv/common"
	"github.com/intellect4all/bptreekv/storage"
)

// node is a page loaded and decoded for the duration of one latch-coupled
// step. It is not cached across operations: every Get/Put/Update/Del loads
// the page fresh under its latch and, if it wrote anything, persists the
// container back before releasing the latch. Because the latch already
// serializes all access to a given page id, two concurrent operations can
// never hold diverging in-memory copies of the same node — the registry
// of live wrapper objects the original C++ needs (Node.h's NodeMap) is
// subsumed here by latchManager, which is keyed the same way (by page id)
// but only tracks the lock, not a node instance.
type node struct {
	store  *storage.Store
	page   *storage.Page
	isLeaf bool
	leaf   *leafContainer
	inner  *innerContainer
}

func loadNode(store *storage.Store, pageID uint32, isLeaf bool, cmp common.Comparator) (*node, error) {
	p, err := store.OpenPage(pageID)
	if err != nil {
		return nil, err
	}
	content, err := p.ReadContent()
	if err != nil {
		return nil, err
	}
	n := &node{store: store, page: p, isLeaf: isLeaf}
	if isLeaf {
		n.leaf = newLeafContainer(content, cmp)
	} else {
		n.inner = newInnerContainer(content, cmp)
	}
	return n, nil
}

// newLeafNode allocates a brand-new, empty leaf page.
func newLeafNode(store *storage.Store, cmp common.Comparator) (*node, error) {
	p, err := store.NewPage(nil)
	if err != nil {
		return nil, err
	}
	return &node{store: store, page: p, isLeaf: true, leaf: &leafContainer{cmp: cmp}}, nil
}

// newInnerNode allocates a brand-new inner page with a single head child.
func newInnerNode(store *storage.Store, cmp common.Comparator, head uint32) (*node, error) {
	p, err := store.NewPage(nil)
	if err != nil {
		return nil, err
	}
	return &node{store: store, page: p, isLeaf: false, inner: &innerContainer{cmp: cmp, head: head}}, nil
}

func (n *node) id() uint32 { return n.page.ID() }

func (n *node) size() int {
	if n.isLeaf {
		return n.leaf.size()
	}
	return n.inner.size()
}

// persist re-encodes the container and writes it back to the page.
func (n *node) persist() error {
	var content []byte
	if n.isLeaf {
		content = n.leaf.bytes()
	} else {
		content = n.inner.bytes()
	}
	n.page.SetRecordCount(uint32(n.size()))
	return n.page.Write(content)
}

func (n *node) free() error {
	return n.page.Free()
}

// safeToInsert reports whether this node has room for one more record
// without exceeding order, the "safe" test spec §4.6 uses to decide how
// far up the tree a pessimistic insert must hold latches.
func (n *node) safeToInsert(order int) bool {
	return n.size() < order
}

// safeToDelete reports whether this node would still meet the minimum
// occupancy (order/2, rounded up) after losing one record.
func (n *node) safeToDelete(order int) bool {
	min := (order + 1) / 2
	return n.size()-1 >= min
}

// underflows reports whether the node is currently below minimum
// occupancy and needs a borrow or merge.
func (n *node) underflows(order int) bool {
	min := (order + 1) / 2
	return n.size() < min
}
