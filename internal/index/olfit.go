package index

import (
	"bytes"
	"errors"
	"sync"

	"hill/internal/logger"
	"hill/internal/pm"
	"hill/internal/pointer"
	"hill/internal/wal"
)

// ErrKeyNotFound is returned by Search and Update for an absent key.
var ErrKeyNotFound = errors.New("index: key not found")

// OLFIT is the concurrent B-link tree. A single instance owns one
// node's keyspace; leaves carry pm-backed identities, inner nodes are
// plain heap objects, never persisted. Keys and values are held in Go
// memory; New always starts from a single empty leaf, and no code here
// rebuilds a tree from the allocator's records after a restart.
type OLFIT struct {
	degree     int
	numHighkey int

	alloc *pm.Allocator
	log   *wal.Logger
	agent *pointer.RemoteMemoryAgent
	lg    *logger.Logger

	rootMu sync.RWMutex
	root   nodePtr

	leavesMu sync.Mutex
	leaves   map[pm.Addr]*LeafNode
}

// New creates a tree with a single, empty root leaf, allocated through
// alloc under tid exactly as the source's OLFIT constructor allocates
// its root LeafNode before handing the thread slot back.
func New(tid int, alloc *pm.Allocator, log *wal.Logger, lg *logger.Logger, degree int) (*OLFIT, error) {
	if degree < 2 {
		degree = DefaultDegree
	}
	numHighkey := degree - 1

	// NodeSplit is also the op used for new-root-leaf creation: the log
	// entry is reserved before any PM page is touched, so a crash before
	// Allocate runs leaves nothing to roll forward.
	idx, err := log.MakeLog(tid, pm.Null, wal.OpNodeSplit)
	if err != nil {
		return nil, err
	}
	addr, err := alloc.Allocate(tid, leafRecordSize)
	if err != nil {
		return nil, err
	}
	if err := log.SetAddress(tid, idx, addr); err != nil {
		return nil, err
	}

	root := newLeafNode(addr, numHighkey)

	t := &OLFIT{
		degree:     degree,
		numHighkey: numHighkey,
		alloc:      alloc,
		log:        log,
		lg:         lg,
		leaves:     map[pm.Addr]*LeafNode{addr: root},
	}
	t.root = leafPtr(root)

	if err := log.Commit(tid, idx); err != nil {
		return nil, err
	}
	return t, nil
}

// EnableAgent installs the remote-memory agent used to satisfy
// CallForMemory requests, mirroring OLFIT::enable_agent.
func (t *OLFIT) EnableAgent(agent *pointer.RemoteMemoryAgent) {
	t.agent = agent
}

func (t *OLFIT) getRoot() nodePtr {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	return t.root
}

func (t *OLFIT) setRoot(n nodePtr) {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()
	t.root = n
}

func (t *OLFIT) registerLeaf(l *LeafNode) {
	t.leavesMu.Lock()
	defer t.leavesMu.Unlock()
	t.leaves[l.id] = l
}

// Leaf looks up a leaf by its PM identity. Only leaves created by this
// instance (the root from New and every split sibling) are registered;
// leaves are not reconstructed from the allocator's records.
func (t *OLFIT) Leaf(addr pm.Addr) (*LeafNode, bool) {
	t.leavesMu.Lock()
	defer t.leavesMu.Unlock()
	l, ok := t.leaves[addr]
	return l, ok
}

// Search looks up key without taking any lock: a reader only ever
// reads a leaf's current content and follows right-links if the leaf
// it lands on has since been split out from under it. Unlike traverse's
// inner-node descent, this loop has no version double-read around
// leaf.highkey/leaf.right — it relies on right-link chasing alone,
// which is sound under the single-writer-per-range model (splitLeaf
// installs right before highkey, so a reader never needs to detect a
// split mid-read, only to follow it).
func (t *OLFIT) Search(key []byte) (Status, pointer.PolymorphicPointer, int, error) {
	leaf := t.traverse(key)
	for {
		if idx := leaf.find(key); idx >= 0 {
			return StatusOk, leaf.values[idx], leaf.valueSizes[idx], nil
		}
		if leaf.right == nil || leaf.highkey == nil || bytes.Compare(leaf.highkey, key) >= 0 {
			return StatusFailed, pointer.NullPointer, 0, ErrKeyNotFound
		}
		leaf = leaf.right
	}
}

// Insert stores value under key, logging the write before reserving
// its PM backing — spec's "log before touch" rule. MakeLog reserves an
// uncommitted entry with a null address; Allocate then fills it in via
// SetAddress before the record is written, so a crash at any point up
// to Commit leaves an abandoned, recoverable entry rather than an
// untracked allocation.
func (t *OLFIT) Insert(tid int, key, value []byte) (Status, error) {
	idx, err := t.log.MakeLog(tid, pm.Null, wal.OpInsert)
	if err != nil {
		return StatusFailed, err
	}

	addr, err := t.alloc.Allocate(tid, len(value))
	if err != nil {
		// The entry stays uncommitted with a null address; no page was
		// ever claimed, so there is nothing for recovery to roll forward,
		// only the abandoned entry itself to reclaim on restart.
		return StatusNoMemory, err
	}
	if err := t.log.SetAddress(tid, idx, addr); err != nil {
		return StatusFailed, err
	}
	t.alloc.Write(addr, value)

	leaf := t.traverse(key)
	leaf.lock.Lock()
	leaf = moveRight(leaf, key)

	if leaf.find(key) >= 0 {
		leaf.lock.Unlock()
		t.alloc.Free(tid, addr)
		// The entry's address was committed to nothing durable — the
		// record it named was freed before any leaf ever pointed at it
		// — but the slot itself must still close out, or every later
		// Insert/Update on tid would find its last entry forever
		// uncommitted and refuse to open a new one.
		if err := t.log.Commit(tid, idx); err != nil {
			return StatusFailed, err
		}
		return StatusRepeatInsert, nil
	}

	status := leaf.insertLocal(key, pointer.Local(addr), len(value))
	if status == StatusOk {
		// A leaf's highkey always equals its own largest key (splitLeaf
		// sets it that way for every leaf but the rightmost, which has
		// no right-link to carry a boundary and must instead track its
		// own max directly). Only the rightmost leaf can ever grow past
		// its current highkey — any other leaf only ever receives keys
		// traverse already bounded by its existing highkey — so this
		// only needs to touch leaf.highkey when leaf.right is nil.
		grew := false
		if leaf.right == nil {
			grew = bytes.Equal(leaf.maxKey(), key)
			leaf.highkey = leaf.maxKey()
		}
		leaf.lock.Unlock()
		if err := t.log.Commit(tid, idx); err != nil {
			return StatusFailed, err
		}
		if grew {
			updateHighkeys(leafPtr(leaf))
		}
		return StatusOk, nil
	}

	// status == StatusNeedSplit. The value's own record is already
	// written and named by idx; commit it now, before splitLeaf opens
	// its own WAL record for the new sibling's PM identity — at most
	// one entry may be uncommitted on tid at a time (spec.md §4.2), so
	// one Insert call logs its allocations as a sequence of committed
	// entries rather than nesting a second MakeLog under the first.
	if err := t.log.Commit(tid, idx); err != nil {
		leaf.lock.Unlock()
		return StatusFailed, err
	}

	newLeaf, splitKey, err := t.splitLeaf(tid, leaf, key, pointer.Local(addr), len(value))
	oldParent := leaf.parent
	leaf.lock.Unlock()
	if err != nil {
		return StatusNoMemory, err
	}

	if pushStatus, err := t.pushUp(leaf, newLeaf, oldParent, splitKey); err != nil {
		return pushStatus, err
	}
	updateHighkeys(leafPtr(newLeaf))
	return StatusOk, nil
}

// pushUp inserts (splitKey, newNode) into oldNode's parent, splitting
// that parent (and recursing upward) if it has no room, or creating a
// new root if oldNode had no parent at all.
func (t *OLFIT) pushUp(oldLeaf *LeafNode, newLeaf *LeafNode, parent *InnerNode, splitKey []byte) (Status, error) {
	return t.pushUpNode(leafPtr(oldLeaf), leafPtr(newLeaf), parent, splitKey)
}

func (t *OLFIT) pushUpNode(oldNode, newNode nodePtr, parent *InnerNode, splitKey []byte) (Status, error) {
	if parent == nil {
		t.growRoot(oldNode, newNode, splitKey)
		return StatusOk, nil
	}

	parent.lock.Lock()
	if parent.insertChild(splitKey, newNode) {
		newNode.SetParent(parent)
		parent.lock.Unlock()
		return StatusOk, nil
	}

	newInner, innerSplitKey, err := t.splitInner(parent, splitKey, newNode)
	grandparent := parent.parent
	parent.lock.Unlock()
	if err != nil {
		return StatusNoMemory, err
	}
	return t.pushUpNode(innerPtr(parent), innerPtr(newInner), grandparent, innerSplitKey)
}

// growRoot installs a fresh two-child root above oldNode and newNode.
func (t *OLFIT) growRoot(oldNode, newNode nodePtr, splitKey []byte) {
	newRoot := newInnerNode(t.numHighkey, t.degree)
	newRoot.keys[0] = splitKey
	newRoot.children[0] = oldNode
	newRoot.children[1] = newNode
	newRoot.highkey = newNode.Highkey()

	oldNode.SetParent(newRoot)
	newNode.SetParent(newRoot)

	t.setRoot(innerPtr(newRoot))
}

// Update replaces the value stored for an existing key.
func (t *OLFIT) Update(tid int, key, value []byte) (Status, error) {
	leaf := t.traverse(key)
	leaf.lock.Lock()
	leaf = moveRight(leaf, key)
	defer leaf.lock.Unlock()

	idx := leaf.find(key)
	if idx < 0 {
		return StatusFailed, ErrKeyNotFound
	}

	logIdx, err := t.log.MakeLog(tid, pm.Null, wal.OpUpdate)
	if err != nil {
		return StatusFailed, err
	}

	addr, err := t.alloc.Allocate(tid, len(value))
	if err != nil {
		return StatusNoMemory, err
	}
	if err := t.log.SetAddress(tid, logIdx, addr); err != nil {
		return StatusFailed, err
	}
	t.alloc.Write(addr, value)

	oldAddr := leaf.values[idx]
	leaf.updateLocal(key, pointer.Local(addr), len(value))

	if err := t.log.Commit(tid, logIdx); err != nil {
		return StatusFailed, err
	}
	if oldAddr.IsLocal() && !oldAddr.IsNull() {
		t.alloc.Free(tid, oldAddr.LocalAddr())
	}
	return StatusOk, nil
}
