package index

import "bytes"

// findNext descends one level from an inner node toward key, following
// the original OLFIT paper: an exact hit on the highkey goes to the
// rightmost child, a key within range goes to the child bounded by the
// first separator that is still >= key (every separator is the maximum
// key reachable through the child to its left, so an exact match on a
// separator still belongs there), and a key past the highkey follows
// the right-link if one exists (or falls back to the rightmost child,
// matching the source's fallback when no right-link has been installed
// yet). A nil highkey means +inf — every key is still within range —
// so it falls through to the separator scan rather than the exact-hit
// case; the rightmost inner/leaf node always carries a concrete
// highkey equal to its largest key (growRoot/splitLeaf/splitInner
// maintain this), so this only ever sees nil transiently before that
// highkey is first set.
func findNext(current *InnerNode, key []byte) nodePtr {
	switch {
	case current.highkey != nil && bytes.Equal(current.highkey, key):
		return current.children[current.lastChildIndex()]
	case current.highkey == nil || bytes.Compare(current.highkey, key) > 0:
		for i, k := range current.keys {
			if k == nil || bytes.Compare(k, key) >= 0 {
				return current.children[i]
			}
		}
		return current.children[len(current.keys)]
	default:
		if current.right != nil {
			return innerPtr(current.right)
		}
		return current.children[current.lastChildIndex()]
	}
}

// traverse walks from the root to the leaf that should hold key,
// re-descending a level if an inner node's version changed between the
// snapshot and the call to findNext — the version bump signals a
// concurrent split that may have moved the boundary being used.
func (t *OLFIT) traverse(key []byte) *LeafNode {
	current := t.getRoot()
	for current.IsInner() {
		inner := current.inner
		version := inner.lock.Version()
		next := findNext(inner, key)
		if inner.lock.Version() == version {
			current = next
		}
	}
	return current.leaf
}

// moveRight chases a leaf's right-links while the right sibling's first
// key is not greater than key, locking the next leaf before unlocking the current one so a
// concurrent splitter never sees the chain go unlocked end to end.
func moveRight(leaf *LeafNode, key []byte) *LeafNode {
	for {
		if leaf.right == nil {
			return leaf
		}
		if bytes.Compare(leaf.right.keys[0], key) > 0 {
			return leaf
		}
		leaf.right.lock.Lock()
		leaf.lock.Unlock()
		leaf = leaf.right
	}
}

// updateHighkeys propagates a leaf's highkey up the ancestor chain as
// long as the leaf (or the inner node standing in for it) is still its
// parent's rightmost live child — once an ancestor's highkey already
// reflects something else, higher ancestors do too, and the walk stops.
func updateHighkeys(node nodePtr) {
	parent := node.Parent()
	if parent == nil {
		return
	}

	current := node
	for parent != nil {
		if parent.children[parent.lastChildIndex()] != current {
			return
		}
		parent.lock.Lock()
		if parent == current.Parent() {
			parent.highkey = current.Highkey()
		}
		parent.lock.Unlock()
		current = innerPtr(parent)
		parent = current.Parent()
	}
}
