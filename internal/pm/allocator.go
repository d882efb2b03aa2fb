package pm

import (
	"encoding/binary"
	"sync"

	"hill/internal/logger"
)

const allocatorMagic = 0x48494c4c414c4c43 // "HILLALLC"

// AllocatorHeader occupies page 0 of the arena: a magic, the region's
// bookkeeping (base/cursor/freelist) and T-wide per-thread slot arrays.
// Field layout, in bytes from the start of the arena:
//
//	[0:8)    magic
//	[8:16)   total size
//	[16:24)  base (first page of the allocation arena)
//	[24:32)  cursor (next never-used page)
//	[32:40)  freelist head
//	[40:...) T busy[t], T free[t], T pending[t], T to_be_freed[t] (8B each)
//	[...)    T staged-for-free flags (1B each)
const (
	offMagic     = 0
	offTotalSize = 8
	offBase      = 16
	offCursor    = 24
	offFreelist  = 32
	offBusy      = 40
	offFree      = offBusy + T*8
	offPending   = offFree + T*8
	offToBeFreed = offPending + T*8
	offStaged    = offToBeFreed + T*8
	headerBytes  = offStaged + T
)

func init() {
	if headerBytes > PageSize {
		panic("pm: allocator header does not fit in one page")
	}
}

// Allocator is the thread-partitioned, crash-consistent page allocator
// described by spec.md §4.1. Page 0 of its arena holds the
// AllocatorHeader; pages from Base onward are the allocation arena.
type Allocator struct {
	arena *Arena
	mu    sync.Mutex
	log   *logger.Logger
}

// Open recovers or initializes an allocator over arena. A freshly
// zeroed arena is initialized; an arena with a mismatched, non-zero
// magic is reported as corrupted.
func Open(arena *Arena, log *logger.Logger) (*Allocator, error) {
	al := &Allocator{arena: arena, log: log}

	magic := al.getU64(offMagic)
	switch magic {
	case allocatorMagic:
		al.recover()
		log.Infof("recovered allocator, base=%d cursor=%d freelist=%d", al.getBase(), al.getCursor(), al.getFreelist())
	case 0:
		al.initialize()
		log.Infof("initialized fresh allocator over %d bytes", arena.Size())
	default:
		return nil, ErrRecoveryCorrupted
	}
	return al, nil
}

func (al *Allocator) initialize() {
	al.setU64(offMagic, allocatorMagic)
	al.setU64(offTotalSize, uint64(al.arena.Size()))
	base := Addr(PageSize)
	al.setAddr(offBase, base)
	al.setAddr(offCursor, base)
	al.setAddr(offFreelist, Null)
	for t := 0; t < T; t++ {
		al.setBusy(t, Null)
		al.setFree(t, Available)
		al.setPending(t, Null)
		al.setToBeFreed(t, Null)
		al.setStaged(t, false)
	}
	al.arena.Persist(0, headerBytes)
}

// ---- raw header field accessors -----------------------------------

func (al *Allocator) getU64(off int) uint64 {
	return binary.LittleEndian.Uint64(al.arena.data[off : off+8])
}

func (al *Allocator) setU64(off int, v uint64) {
	binary.LittleEndian.PutUint64(al.arena.data[off:off+8], v)
	al.arena.Persist(Addr(off), 8)
}

func (al *Allocator) getAddr(off int) Addr { return Addr(al.getU64(off)) }
func (al *Allocator) setAddr(off int, v Addr) { al.setU64(off, uint64(v)) }

func (al *Allocator) getTotalSize() uint64   { return al.getU64(offTotalSize) }
func (al *Allocator) getBase() Addr          { return al.getAddr(offBase) }
func (al *Allocator) getCursor() Addr        { return al.getAddr(offCursor) }
func (al *Allocator) setCursor(v Addr)       { al.setAddr(offCursor, v) }
func (al *Allocator) getFreelist() Addr      { return al.getAddr(offFreelist) }
func (al *Allocator) setFreelist(v Addr)     { al.setAddr(offFreelist, v) }

func slotOff(base, t int) int { return base + t*8 }

func (al *Allocator) getBusy(t int) Addr   { return al.getAddr(slotOff(offBusy, t)) }
func (al *Allocator) setBusy(t int, v Addr) { al.setAddr(slotOff(offBusy, t), v) }

func (al *Allocator) getFree(t int) Addr   { return al.getAddr(slotOff(offFree, t)) }
func (al *Allocator) setFree(t int, v Addr) { al.setAddr(slotOff(offFree, t), v) }

func (al *Allocator) getPending(t int) Addr   { return al.getAddr(slotOff(offPending, t)) }
func (al *Allocator) setPending(t int, v Addr) { al.setAddr(slotOff(offPending, t), v) }

func (al *Allocator) getToBeFreed(t int) Addr   { return al.getAddr(slotOff(offToBeFreed, t)) }
func (al *Allocator) setToBeFreed(t int, v Addr) { al.setAddr(slotOff(offToBeFreed, t), v) }

func (al *Allocator) getStaged(t int) bool {
	return al.arena.data[offStaged+t] != 0
}

func (al *Allocator) setStaged(t int, v bool) {
	if v {
		al.arena.data[offStaged+t] = 1
	} else {
		al.arena.data[offStaged+t] = 0
	}
	al.arena.Persist(Addr(offStaged+t), 1)
}

// ---- registration ---------------------------------------------------

// RegisterThread claims an unused thread slot. If that slot has a page
// staged in pending[t] from a previous UnregisterThread, the page is
// promoted back to busy[t] rather than discarded.
func (al *Allocator) RegisterThread() (int, error) {
	al.mu.Lock()
	defer al.mu.Unlock()

	for t := 0; t < T; t++ {
		if al.getFree(t) != Available {
			continue
		}
		if pending := al.getPending(t); pending != Null {
			al.setBusy(t, pending)
			al.setPending(t, Null)
		}
		al.setFree(t, Null)
		return t, nil
	}
	return 0, ErrNoFreeSlot
}

// UnregisterThread releases slot t. Its busy page, if any, is staged in
// pending[t] rather than freed immediately, so a later RegisterThread
// on the same slot can resume using it.
func (al *Allocator) UnregisterThread(t int) {
	al.mu.Lock()
	defer al.mu.Unlock()

	busy := al.getBusy(t)
	if busy != Null {
		al.setPending(t, busy)
		al.setBusy(t, Null)
	}
	al.setFree(t, Available)
}

// ---- allocation ------------------------------------------------------

// Allocate hands slot t size bytes of PM, splicing in a free page (from
// the thread's own free list, the global freelist, or a fresh carve off
// the heap, in that order) when the thread's busy page has no room.
func (al *Allocator) Allocate(t int, size int) (Addr, error) {
	if size <= 0 || size > PageSize-HeaderSize {
		return Null, ErrInvalidSize
	}

	if busy := al.getBusy(t); busy != Null {
		if ptr, ok := al.arena.PageAllocate(busy, size); ok {
			return ptr, nil
		}
	}

	al.mu.Lock()
	page, err := al.refill(t)
	if err != nil {
		al.mu.Unlock()
		return Null, err
	}
	al.setBusy(t, page)
	al.setFree(t, al.arena.ReadNext(page))
	al.arena.WriteNext(page, Null)
	al.mu.Unlock()

	ptr, ok := al.arena.PageAllocate(page, size)
	if !ok {
		// size was already validated against PageSize-HeaderSize, and
		// page was just reset, so this can only mean a programming error.
		return Null, ErrNoMemory
	}
	return ptr, nil
}

// refill ensures free[t] has at least one page, pulling from the global
// freelist or carving a fresh run off the heap, and pops the head. Must
// be called with al.mu held.
func (al *Allocator) refill(t int) (Addr, error) {
	if free := al.getFree(t); free != Null && free != Available {
		return free, nil
	}

	if freelist := al.getFreelist(); freelist != Null {
		end := freelist
		for i := 0; i < Prealloc-1 && al.arena.ReadNext(end) != Null; i++ {
			end = al.arena.ReadNext(end)
		}
		rest := al.arena.ReadNext(end)
		al.arena.WriteNext(end, Null)
		al.setFree(t, freelist)
		al.setFreelist(rest)
		return al.getFree(t), nil
	}

	cursor := al.getCursor()
	totalPages := Addr(al.getTotalSize() / PageSize)
	lastPage := al.getBase() + (totalPages-1)*PageSize
	toBeUsed := cursor + Addr(Prealloc+1)*PageSize
	if toBeUsed > lastPage {
		return Null, ErrNoMemory
	}

	p := cursor
	for i := 0; i < Prealloc; i++ {
		al.arena.MakePage(p)
		next := p + PageSize
		al.arena.WriteNext(p, next)
		p = next
	}
	al.arena.MakePage(p)
	al.arena.WriteNext(p, Null)

	al.setFree(t, cursor)
	al.setCursor(cursor + Addr(Prealloc+1)*PageSize)
	return al.getFree(t), nil
}

// Free releases the record at ptr. If its page becomes empty, the page
// itself is returned to the thread's free list.
func (al *Allocator) Free(t int, ptr Addr) {
	if ptr == Null {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	page := PageAddr(ptr)
	al.setToBeFreed(t, page)
	al.setStaged(t, true)

	records := al.arena.PageFree(ptr)
	if records == 0 {
		al.arena.ResetPage(page)
		al.arena.WriteNext(page, al.getFree(t))
		al.setFree(t, page)
	}

	al.setToBeFreed(t, Null)
	al.setStaged(t, false)
}

// ---- record I/O -------------------------------------------------------

// Write copies data into the record at ptr and persists it. The caller
// is responsible for having allocated at least len(data) bytes there.
func (al *Allocator) Write(ptr Addr, data []byte) {
	copy(al.arena.Bytes(ptr, len(data)), data)
	al.arena.Persist(ptr, len(data))
}

// Read returns a view of length bytes starting at ptr. The slice
// aliases the arena directly; callers that need to keep the bytes past
// the next mutation of ptr's record must copy them.
func (al *Allocator) Read(ptr Addr, length int) []byte {
	return al.arena.Bytes(ptr, length)
}

// ---- recovery --------------------------------------------------------

// Recover replays the same staging-field rules Open runs on a crash
// restart, for an operator-triggered pass against a live allocator. Per
// spec.md §8 scenario 6's idempotence invariant, a second call with
// nothing staged is a no-op.
func (al *Allocator) Recover() {
	al.recover()
}

// recover replays the five staging-field rules in the order a fresh
// restart must apply them: pending, global-heap, free-lists, pending
// again (a page recovered by the free-lists pass may itself have been
// mid-unregister), then to-be-freed.
func (al *Allocator) recover() {
	al.recoverPending()
	al.recoverGlobalHeap()
	al.recoverFreeLists()
	al.recoverPending()
	al.recoverToBeFreed()
}

// recoverPending: pending[t] == busy[t] means the crash landed between
// UnregisterThread staging its page and clearing busy[t]; finish the
// splice onto free[t].
func (al *Allocator) recoverPending() {
	for t := 0; t < T; t++ {
		pending := al.getPending(t)
		busy := al.getBusy(t)
		if pending != Null && pending == busy {
			al.arena.WriteNext(busy, al.getFree(t))
			al.setFree(t, busy)
			al.setBusy(t, Null)
			al.setPending(t, Null)
		}
	}
}

// recoverGlobalHeap: free[t] pointing at the current freelist head or
// heap cursor means the crash landed mid-refill, before the source
// (freelist or cursor) was advanced past the run just carved for t.
func (al *Allocator) recoverGlobalHeap() {
	for t := 0; t < T; t++ {
		free := al.getFree(t)
		if free == Null || free == Available {
			continue
		}
		if free == al.getFreelist() {
			end := free
			for i := 0; i < Prealloc-1 && al.arena.ReadNext(end) != Null; i++ {
				end = al.arena.ReadNext(end)
			}
			al.setFreelist(al.arena.ReadNext(end))
			al.arena.WriteNext(end, Null)
		}
		if free == al.getCursor() {
			al.setCursor(al.getCursor() + Addr(Prealloc+1)*PageSize)
		}
	}
}

// recoverFreeLists: busy[t] == free[t] head means the crash landed
// after a page was popped off free[t] into busy[t] but before free[t]
// was advanced past it.
func (al *Allocator) recoverFreeLists() {
	for t := 0; t < T; t++ {
		busy := al.getBusy(t)
		free := al.getFree(t)
		if busy != Null && busy == free {
			al.setFree(t, al.arena.ReadNext(free))
			al.arena.WriteNext(busy, Null)
		}
	}
}

// recoverToBeFreed: a staged-for-free flag left set means the crash
// landed inside Free, between staging the page and splicing it onto
// free[t]; finish the splice.
func (al *Allocator) recoverToBeFreed() {
	for t := 0; t < T; t++ {
		if !al.getStaged(t) {
			continue
		}
		page := al.getToBeFreed(t)
		if page != Null {
			al.arena.WriteNext(page, al.getFree(t))
			al.setFree(t, page)
		}
		al.setToBeFreed(t, Null)
		al.setStaged(t, false)
	}
}
