package pointer

import "hill/internal/pm"

// RemoteAllocator is a thread-local bump allocator over one 1 GiB
// remote region. It is not safe for concurrent use — like the original,
// each is meant to be owned by exactly one thread.
//
// Per the exhaustion fix (the source falls through and still returns a
// pointer past the region's end, silently corrupting the next node's
// region): Allocate returns (0, false) and leaves cursor and counter
// untouched when size would not fit.
type RemoteAllocator struct {
	base    RemotePointer
	counter uint32 // live object count
	cursor  uint32 // next free byte offset within the region
}

// SetBase installs the RemotePointer at which this allocator's region
// begins.
func (ra *RemoteAllocator) SetBase(base RemotePointer) {
	ra.base = base
}

// Allocate claims size bytes from the region, returning a RemotePointer
// to them.
func (ra *RemoteAllocator) Allocate(size uint32) (RemotePointer, bool) {
	if uint64(ra.cursor)+uint64(size) >= RemoteRegionSize {
		return 0, false
	}

	addr := ra.base.Decode() + uint64(ra.cursor)
	node := uint64(ra.base.GetNode())

	ra.cursor += size
	ra.counter++

	return MakeRemotePointer(node, addr), true
}

// Free releases one object's worth of accounting. The region's bytes
// are not reclaimed by a bump allocator; this only tracks live count.
func (ra *RemoteAllocator) Free(RemotePointer) {
	if ra.counter > 0 {
		ra.counter--
	}
}

// IsEmpty reports whether no live objects remain.
func (ra *RemoteAllocator) IsEmpty() bool {
	return ra.counter == 0
}

// RemoteMemoryAgent records, for each of this node's T thread slots,
// one RemoteAllocator per exported remote region that this node hands
// out to remote callers via CallForMemory. The RDMA transport that
// backs those regions is an external collaborator.
type RemoteMemoryAgent struct {
	allocators [pm.T][RemoteRegions]RemoteAllocator
}

// NewRemoteMemoryAgent returns an agent for node nodeID with each thread
// slot's regions based at a distinct, non-overlapping offset within the
// node's exported remote address space — region (thread, r) begins at
// (thread*RemoteRegions+r) * RemoteRegionSize.
func NewRemoteMemoryAgent(nodeID uint32) *RemoteMemoryAgent {
	a := &RemoteMemoryAgent{}
	for t := 0; t < pm.T; t++ {
		for r := 0; r < RemoteRegions; r++ {
			offset := uint64(t*RemoteRegions+r) * RemoteRegionSize
			a.allocators[t][r].SetBase(MakeRemotePointer(uint64(nodeID), offset))
		}
	}
	return a
}

// Allocator returns the allocator backing the given thread slot and
// region index.
func (a *RemoteMemoryAgent) Allocator(thread, region int) *RemoteAllocator {
	return &a.allocators[thread][region]
}
