package index

import (
	"bytes"
	"sort"

	"hill/internal/pm"
	"hill/internal/pointer"
	"hill/internal/wal"
)

type leafEntry struct {
	key   []byte
	value pointer.PolymorphicPointer
	size  int
}

// splitLeaf carves a new right sibling off left, migrating the upper
// half of left's entries (plus the one that triggered the split) to
// it. left keeps the lower half and its own identity; the new leaf
// gets a fresh PM-backed identity via the allocator, logged under WAL
// op NodeSplit and committed once the sibling is fully built and
// registered — mirroring the source allocating a new LeafNode the same
// way a record is allocated, under the same log-before-touch protocol.
func (t *OLFIT) splitLeaf(tid int, left *LeafNode, key []byte, value pointer.PolymorphicPointer, size int) (*LeafNode, []byte, error) {
	entries := make([]leafEntry, 0, len(left.keys)+1)
	for i, k := range left.keys {
		if k == nil {
			break
		}
		entries = append(entries, leafEntry{key: k, value: left.values[i], size: left.valueSizes[i]})
	}
	entries = append(entries, leafEntry{key: key, value: value, size: size})
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].key, entries[j].key) < 0 })

	idx, err := t.log.MakeLog(tid, pm.Null, wal.OpNodeSplit)
	if err != nil {
		return nil, nil, err
	}
	addr, err := t.alloc.Allocate(tid, leafRecordSize)
	if err != nil {
		return nil, nil, err
	}
	if err := t.log.SetAddress(tid, idx, addr); err != nil {
		return nil, nil, err
	}

	wasRightmost := left.right == nil

	mid := len(entries) / 2
	splitKey := entries[mid-1].key

	right := newLeafNode(addr, len(left.keys))
	if wasRightmost {
		// left had no right-link of its own, so its old highkey was nil
		// (+inf). The new sibling inherits that rightmost position and
		// must carry a concrete highkey equal to its own max — findNext
		// needs every inner node it reaches to bottom out on a non-nil
		// highkey, and that value is seeded from here.
		right.highkey = entries[len(entries)-1].key
	} else {
		right.highkey = left.highkey
	}
	right.parent = left.parent
	right.right = left.right
	for i, e := range entries[mid:] {
		right.keys[i] = e.key
		right.values[i] = e.value
		right.valueSizes[i] = e.size
	}

	for i := range left.keys {
		left.keys[i] = nil
		left.values[i] = pointer.NullPointer
		left.valueSizes[i] = 0
	}
	for i, e := range entries[:mid] {
		left.keys[i] = e.key
		left.values[i] = e.value
		left.valueSizes[i] = e.size
	}
	left.right = right
	left.highkey = splitKey

	t.registerLeaf(right)

	if err := t.log.Commit(tid, idx); err != nil {
		return nil, nil, err
	}
	return right, splitKey, nil
}

// splitInner carves a new right sibling off n, migrating the upper
// half of its keys/children (plus the one that triggered the split) to
// it. Inner nodes are volatile and heap-allocated; no PM identity is
// needed for them.
func (t *OLFIT) splitInner(n *InnerNode, splitKey []byte, child nodePtr) (*InnerNode, []byte, error) {
	keys := make([][]byte, 0, len(n.keys)+1)
	children := make([]nodePtr, 0, len(n.children)+1)

	children = append(children, n.children[0])
	for i, k := range n.keys {
		if k == nil {
			break
		}
		keys = append(keys, k)
		children = append(children, n.children[i+1])
	}

	pos := 0
	for pos < len(keys) && bytes.Compare(keys[pos], splitKey) < 0 {
		pos++
	}
	keys = append(keys, nil)
	copy(keys[pos+1:], keys[pos:len(keys)-1])
	keys[pos] = splitKey

	children = append(children, nodePtr{})
	copy(children[pos+2:], children[pos+1:len(children)-1])
	children[pos+1] = child

	wasRightmost := n.right == nil

	mid := len(keys) / 2
	medianKey := keys[mid]

	right := newInnerNode(len(n.keys), len(n.children))
	right.parent = n.parent
	right.right = n.right
	for i, k := range keys[mid+1:] {
		right.keys[i] = k
	}
	for i, c := range children[mid+1:] {
		right.children[i] = c
		if !c.IsNull() {
			c.SetParent(right)
		}
	}
	if wasRightmost {
		// Same reasoning as splitLeaf: n had no right-link, so its old
		// highkey was nil. The new sibling takes over the rightmost
		// position and needs a concrete highkey, taken from its own
		// rightmost live child.
		right.highkey = right.children[right.lastChildIndex()].Highkey()
	} else {
		right.highkey = n.highkey
	}

	for i := range n.keys {
		n.keys[i] = nil
	}
	for i := range n.children {
		n.children[i] = nodePtr{}
	}
	for i, k := range keys[:mid] {
		n.keys[i] = k
	}
	for i, c := range children[:mid+1] {
		n.children[i] = c
	}
	n.highkey = medianKey
	n.right = right

	return right, medianKey, nil
}

// leafRecordSize is the nominal PM footprint reserved for a leaf
// node's identity; the live struct lives on the Go heap, but this
// reservation keeps the allocator's address space and the WAL's log
// entries consistent with a real record occupying that space.
const leafRecordSize = 256
