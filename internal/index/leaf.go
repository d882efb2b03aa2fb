package index

import (
	"bytes"

	"hill/internal/pointer"
)

// find returns the index of key in the leaf's sorted key slice, or -1.
func (l *LeafNode) find(key []byte) int {
	for i, k := range l.keys {
		if k == nil {
			return -1
		}
		if bytes.Equal(k, key) {
			return i
		}
	}
	return -1
}

// insertionPoint returns the index of the first live key greater than
// key, i.e. where key belongs to keep the slice sorted.
func (l *LeafNode) insertionPoint(key []byte) int {
	for i, k := range l.keys {
		if k == nil || bytes.Compare(k, key) > 0 {
			return i
		}
	}
	return len(l.keys)
}

// insertLocal inserts (key, value) into the leaf's sorted slots,
// shifting later entries right. It reports StatusRepeatInsert for a
// duplicate key and StatusNeedSplit when the leaf has no room — the
// caller is then responsible for splitLeaf and pushUp.
func (l *LeafNode) insertLocal(key []byte, value pointer.PolymorphicPointer, size int) Status {
	if l.find(key) >= 0 {
		return StatusRepeatInsert
	}
	if l.isFull() {
		return StatusNeedSplit
	}

	pos := l.insertionPoint(key)
	n := len(l.keys)
	for i := n - 1; i > pos; i-- {
		l.keys[i] = l.keys[i-1]
		l.values[i] = l.values[i-1]
		l.valueSizes[i] = l.valueSizes[i-1]
	}
	l.keys[pos] = key
	l.values[pos] = value
	l.valueSizes[pos] = size
	return StatusOk
}

// maxKey returns the leaf's current largest live key, or nil if the
// leaf holds none.
func (l *LeafNode) maxKey() []byte {
	n := l.liveCount()
	if n == 0 {
		return nil
	}
	return l.keys[n-1]
}

// updateLocal replaces the value stored for an existing key, returning
// StatusFailed if key is absent.
func (l *LeafNode) updateLocal(key []byte, value pointer.PolymorphicPointer, size int) Status {
	idx := l.find(key)
	if idx < 0 {
		return StatusFailed
	}
	l.values[idx] = value
	l.valueSizes[idx] = size
	return StatusOk
}
