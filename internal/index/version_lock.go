// Package index implements the OLFIT concurrent B-link tree: leaves
// and inner nodes guarded by version-stamped spinlocks, right-linked so
// a reader can always step past a concurrent split instead of blocking
// on it.
package index

import "sync/atomic"

// VersionLock packs a monotonically increasing version into the high
// bits of a single word and a lock bit into bit 0. A reader snapshots
// the version before descending through a node and compares it again
// after, retrying the descent if a writer's Unlock bumped it in
// between — the node's content may have changed under it.
type VersionLock struct {
	l atomic.Uint64
}

// Lock spins until it can claim the lock bit without the version
// changing under it.
func (vl *VersionLock) Lock() {
	for {
		tmp := vl.l.Load()
		expected := tmp &^ 1
		if vl.l.CompareAndSwap(expected, tmp|1) {
			return
		}
	}
}

// TryLock makes one attempt to claim the lock bit.
func (vl *VersionLock) TryLock() bool {
	tmp := vl.l.Load()
	expected := tmp &^ 1
	return vl.l.CompareAndSwap(expected, tmp|1)
}

// Unlock releases the lock and bumps the version — the read side of
// the protocol.
func (vl *VersionLock) Unlock() {
	vl.l.Add(1)
}

// IsLocked reports whether the lock bit is set.
func (vl *VersionLock) IsLocked() bool {
	return vl.l.Load()&1 != 0
}

// Version returns the current version, ignoring the lock bit.
func (vl *VersionLock) Version() uint64 {
	return vl.l.Load() >> 1
}

// Reset clears the lock to its initial, unlocked, version-zero state.
func (vl *VersionLock) Reset() {
	vl.l.Store(0)
}
