package index

import (
	"bytes"

	"hill/internal/pointer"
)

// KV is one entry returned by Range: a key together with the pointer
// and size stored for it at scan time.
type KV struct {
	Key   []byte
	Value pointer.PolymorphicPointer
	Size  int
}

// Range returns every live key in [start, end] (end == nil means "no
// upper bound"), gathered by walking right-links leaf to leaf. It is
// the single-shot, in-memory snapshot iterator spec.md's streaming
// Range RPC is explicitly out of scope for — each visited leaf is
// locked only long enough to copy its entries, so a split concurrent
// with the scan can make the snapshot miss or duplicate a key that
// crosses the split boundary mid-scan; it never corrupts the tree.
func (t *OLFIT) Range(start, end []byte) ([]KV, error) {
	leaf := t.traverse(start)
	leaf.lock.Lock()
	leaf = moveRight(leaf, start)

	var out []KV
	for leaf != nil {
		stop := false
		for i, k := range leaf.keys {
			if k == nil || bytes.Compare(k, start) < 0 {
				continue
			}
			if end != nil && bytes.Compare(k, end) > 0 {
				stop = true
				break
			}
			out = append(out, KV{
				Key:   append([]byte(nil), k...),
				Value: leaf.values[i],
				Size:  leaf.valueSizes[i],
			})
		}

		next := leaf.right
		doneRange := end != nil && leaf.highkey != nil && bytes.Compare(leaf.highkey, end) >= 0

		if stop || doneRange || next == nil {
			leaf.lock.Unlock()
			break
		}
		next.lock.Lock()
		leaf.lock.Unlock()
		leaf = next
	}
	return out, nil
}
