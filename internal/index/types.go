package index

import (
	"hill/internal/pm"
	"hill/internal/pointer"
)

// DefaultDegree is the tree's fan-out when a caller does not override
// it. Tests use a much smaller degree to exercise splits without
// inserting thousands of keys first.
const DefaultDegree = 64

// Status mirrors Hill::Indexing::Enums::OpStatus.
type Status uint8

const (
	StatusOk Status = iota
	StatusFailed
	StatusRetry
	StatusNoMemory
	StatusNeedSplit
	StatusRepeatInsert
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusFailed:
		return "Failed"
	case StatusRetry:
		return "Retry"
	case StatusNoMemory:
		return "NoMemory"
	case StatusNeedSplit:
		return "NeedSplit"
	case StatusRepeatInsert:
		return "RepeatInsert"
	default:
		return "Unknown"
	}
}

// nodeKind discriminates nodePtr the way PolymorphicNodePointer's
// type tag does in the source — a sum type standing in for its
// template-dispatched get_as<T>.
type nodeKind uint8

const (
	nodeNone nodeKind = iota
	nodeLeaf
	nodeInner
)

// nodePtr is PolymorphicNodePointer: a pointer that is either a
// *LeafNode or an *InnerNode, never both.
type nodePtr struct {
	kind  nodeKind
	leaf  *LeafNode
	inner *InnerNode
}

func leafPtr(l *LeafNode) nodePtr   { return nodePtr{kind: nodeLeaf, leaf: l} }
func innerPtr(n *InnerNode) nodePtr { return nodePtr{kind: nodeInner, inner: n} }

func (p nodePtr) IsLeaf() bool  { return p.kind == nodeLeaf }
func (p nodePtr) IsInner() bool { return p.kind == nodeInner }
func (p nodePtr) IsNull() bool  { return p.kind == nodeNone }

func (p nodePtr) Highkey() []byte {
	if p.IsLeaf() {
		return p.leaf.highkey
	}
	return p.inner.highkey
}

func (p nodePtr) Parent() *InnerNode {
	if p.IsLeaf() {
		return p.leaf.parent
	}
	return p.inner.parent
}

func (p nodePtr) SetParent(parent *InnerNode) {
	if p.IsLeaf() {
		p.leaf.parent = parent
	} else {
		p.inner.parent = parent
	}
}

func (p nodePtr) Lock() {
	if p.IsLeaf() {
		p.leaf.lock.Lock()
	} else {
		p.inner.lock.Lock()
	}
}

func (p nodePtr) Unlock() {
	if p.IsLeaf() {
		p.leaf.lock.Unlock()
	} else {
		p.inner.lock.Unlock()
	}
}

func (p nodePtr) Version() uint64 {
	if p.IsLeaf() {
		return p.leaf.lock.Version()
	}
	return p.inner.lock.Version()
}

// LeafNode is a leaf of the tree. Its identity, id, is a pm.Addr
// reserved through the allocator — the tree's WAL entries log against
// this address, the same way a record's own address would be logged,
// even though the live node itself is an ordinary Go heap object (Go's
// garbage collector cannot safely manage memory living inside a raw PM
// byte arena the way the source's reinterpret_cast placement can).
type LeafNode struct {
	id      pm.Addr
	lock    VersionLock
	parent  *InnerNode
	highkey []byte
	right   *LeafNode

	keys       [][]byte
	values     []pointer.PolymorphicPointer
	valueSizes []int
}

func newLeafNode(id pm.Addr, numHighkey int) *LeafNode {
	return &LeafNode{
		id:         id,
		keys:       make([][]byte, numHighkey),
		values:     make([]pointer.PolymorphicPointer, numHighkey),
		valueSizes: make([]int, numHighkey),
	}
}

func (l *LeafNode) isFull() bool {
	return l.keys[len(l.keys)-1] != nil
}

func (l *LeafNode) liveCount() int {
	n := 0
	for _, k := range l.keys {
		if k != nil {
			n++
		}
	}
	return n
}

// InnerNode is a volatile, heap-resident inner node: spec.md's
// "no durability for the inner tree" non-goal. Neither inner nodes nor
// leaves are reconstructed on recovery.
//
// Layout: keys[i] separates children[i] (left, <=) from children[i+1]
// (right, >); len(children) == degree, len(keys) == degree-1.
type InnerNode struct {
	lock    VersionLock
	parent  *InnerNode
	highkey []byte
	right   *InnerNode

	keys     [][]byte
	children []nodePtr
}

func newInnerNode(numHighkey, degree int) *InnerNode {
	return &InnerNode{
		keys:     make([][]byte, numHighkey),
		children: make([]nodePtr, degree),
	}
}

func (n *InnerNode) isFull() bool {
	return n.keys[len(n.keys)-1] != nil
}

func (n *InnerNode) lastChildIndex() int {
	for i := len(n.children) - 1; i >= 0; i-- {
		if !n.children[i].IsNull() {
			return i
		}
	}
	return 0
}
