package pm_test

import (
	"io"
	"testing"

	"hill/internal/logger"
	"hill/internal/pm"
)

func newTestAllocator(t *testing.T, size int) *pm.Allocator {
	t.Helper()
	arena := pm.NewArena(size)
	al, err := pm.Open(arena, logger.New(io.Discard, logger.ERROR))
	if err != nil {
		t.Fatalf("pm.Open: %v", err)
	}
	return al
}

func TestRegisterThreadAssignsDistinctSlots(t *testing.T) {
	al := newTestAllocator(t, 2<<20)

	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		slot, err := al.RegisterThread()
		if err != nil {
			t.Fatalf("RegisterThread: %v", err)
		}
		if seen[slot] {
			t.Fatalf("slot %d handed out twice", slot)
		}
		seen[slot] = true
	}
}

func TestRegisterThreadExhaustion(t *testing.T) {
	al := newTestAllocator(t, 2<<20)

	for i := 0; i < pm.T; i++ {
		if _, err := al.RegisterThread(); err != nil {
			t.Fatalf("RegisterThread #%d: %v", i, err)
		}
	}
	if _, err := al.RegisterThread(); err != pm.ErrNoFreeSlot {
		t.Fatalf("expected ErrNoFreeSlot, got %v", err)
	}
}

func TestAllocateRejectsInvalidSize(t *testing.T) {
	al := newTestAllocator(t, 2<<20)
	slot, _ := al.RegisterThread()

	if _, err := al.Allocate(slot, 0); err != pm.ErrInvalidSize {
		t.Fatalf("size 0: expected ErrInvalidSize, got %v", err)
	}
	if _, err := al.Allocate(slot, pm.PageSize); err != pm.ErrInvalidSize {
		t.Fatalf("size == PageSize: expected ErrInvalidSize, got %v", err)
	}
}

func TestAllocateAtContentBoundarySucceeds(t *testing.T) {
	al := newTestAllocator(t, 4<<20)
	slot, _ := al.RegisterThread()

	max := pm.PageSize - pm.HeaderSize
	ptr, err := al.Allocate(slot, max)
	if err != nil {
		t.Fatalf("Allocate at max content size: %v", err)
	}
	if ptr == pm.Null {
		t.Fatal("expected non-null address")
	}
}

func TestAllocateFillsPageThenRefills(t *testing.T) {
	al := newTestAllocator(t, 8<<20)
	slot, _ := al.RegisterThread()

	recordSize := 64
	perPage := (pm.PageSize - pm.HeaderSize) / recordSize

	var addrs []pm.Addr
	for i := 0; i < perPage+1; i++ {
		ptr, err := al.Allocate(slot, recordSize)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		addrs = append(addrs, ptr)
	}

	if pm.PageAddr(addrs[0]) == pm.PageAddr(addrs[perPage]) {
		t.Fatal("expected the overflow record to land on a fresh page")
	}
}

func TestFreeReturnsEmptyPageToFreeList(t *testing.T) {
	al := newTestAllocator(t, 8<<20)
	slot, _ := al.RegisterThread()

	ptr, err := al.Allocate(slot, 32)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	al.Free(slot, ptr)

	// the page should be reusable: a fresh allocation should be able to
	// land at the start of its content area again.
	ptr2, err := al.Allocate(slot, 32)
	if err != nil {
		t.Fatalf("Allocate after Free: %v", err)
	}
	if pm.PageAddr(ptr) != pm.PageAddr(ptr2) {
		t.Fatalf("expected reused page, got %d vs %d", ptr, ptr2)
	}
}

func TestUnregisterThenRegisterResumesPendingPage(t *testing.T) {
	al := newTestAllocator(t, 8<<20)
	slot, _ := al.RegisterThread()

	ptr, err := al.Allocate(slot, 32)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	page := pm.PageAddr(ptr)

	al.UnregisterThread(slot)
	slot2, err := al.RegisterThread()
	if err != nil {
		t.Fatalf("RegisterThread: %v", err)
	}

	ptr2, err := al.Allocate(slot2, 32)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if pm.PageAddr(ptr2) != page {
		t.Fatalf("expected the pending busy page to be resumed, got a different page")
	}
}

func TestAllocateExhaustsArena(t *testing.T) {
	al := newTestAllocator(t, pm.PageSize*(pm.Prealloc+2))
	slot, _ := al.RegisterThread()

	// the tiny arena holds only one refill's worth of pages
	// (Prealloc+1 of them); keep allocating whole pages until it
	// reports NoMemory.
	var lastErr error
	for i := 0; i < pm.Prealloc+5; i++ {
		_, err := al.Allocate(slot, pm.PageSize-pm.HeaderSize)
		if err != nil {
			lastErr = err
			break
		}
	}
	if lastErr != pm.ErrNoMemory {
		t.Fatalf("expected ErrNoMemory, got %v", lastErr)
	}
}

func TestRecoverAfterReopenPreservesLiveAllocations(t *testing.T) {
	arena := pm.NewArena(4 << 20)
	log := logger.New(io.Discard, logger.ERROR)

	al1, err := pm.Open(arena, log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	slot, _ := al1.RegisterThread()
	ptr, err := al1.Allocate(slot, 48)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	// simulate a restart against the same backing bytes, without a
	// clean unregister/shutdown path.
	al2, err := pm.Open(arena, log)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	slot2, err := al2.RegisterThread()
	if err != nil {
		t.Fatalf("RegisterThread after recovery: %v", err)
	}
	if _, err := al2.Allocate(slot2, 16); err != nil {
		t.Fatalf("Allocate after recovery: %v", err)
	}
	if records, _ := arena.ReadHeader(pm.PageAddr(ptr)); records != 1 {
		t.Fatalf("live page records after recovery: got %d, want 1", records)
	}
}

