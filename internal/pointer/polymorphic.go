package pointer

import "hill/internal/pm"

// PolymorphicPointer is a pointer that may address either this node's
// own PM (a pm.Addr) or another node's exported remote memory (a
// RemotePointer), discriminated by the same sentinel bits RemotePointer
// uses — the two encodings never collide because a local pm.Addr never
// sets its top 2 bits (arenas are far smaller than 2^62 bytes).
type PolymorphicPointer uint64

// NullPointer is the zero PolymorphicPointer.
const NullPointer PolymorphicPointer = 0

// Local wraps a local PM address as a PolymorphicPointer.
func Local(addr pm.Addr) PolymorphicPointer {
	return PolymorphicPointer(addr)
}

// Remote wraps a RemotePointer as a PolymorphicPointer.
func Remote(rp RemotePointer) PolymorphicPointer {
	return PolymorphicPointer(rp)
}

// IsRemote reports whether p addresses another node's memory.
func (p PolymorphicPointer) IsRemote() bool {
	return IsRemotePointer(uint64(p))
}

// IsLocal reports whether p addresses this node's own PM.
func (p PolymorphicPointer) IsLocal() bool {
	return !p.IsRemote()
}

// IsNull reports whether p is the zero pointer.
func (p PolymorphicPointer) IsNull() bool {
	return p == NullPointer
}

// LocalAddr returns p's local address. The caller must have checked
// IsLocal first.
func (p PolymorphicPointer) LocalAddr() pm.Addr {
	return pm.Addr(p)
}

// RemotePtr returns p's remote encoding. The caller must have checked
// IsRemote first.
func (p PolymorphicPointer) RemotePtr() RemotePointer {
	return RemotePointer(p)
}
