package index

import "bytes"

// insertChild inserts splitKey into the node's sorted keys with child
// taking the slot to splitKey's right, shifting later keys/children
// over. It reports false (StatusNeedSplit, to the caller) when the
// node is already full.
func (n *InnerNode) insertChild(splitKey []byte, child nodePtr) bool {
	if n.isFull() {
		return false
	}

	pos := 0
	for pos < len(n.keys) && n.keys[pos] != nil && bytes.Compare(n.keys[pos], splitKey) < 0 {
		pos++
	}

	for i := len(n.keys) - 1; i > pos; i-- {
		n.keys[i] = n.keys[i-1]
	}
	n.keys[pos] = splitKey

	for i := len(n.children) - 1; i > pos+1; i-- {
		n.children[i] = n.children[i-1]
	}
	n.children[pos+1] = child

	return true
}
