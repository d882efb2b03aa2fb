package pm

import (
	"encoding/binary"
	"io"
	"testing"

	"hill/internal/logger"
)

func TestOpenRejectsCorruptedMagic(t *testing.T) {
	arena := NewArena(2 << 20)
	log := logger.New(io.Discard, logger.ERROR)

	binary.LittleEndian.PutUint64(arena.data[offMagic:offMagic+8], allocatorMagic^0xff)

	if _, err := Open(arena, log); err != ErrRecoveryCorrupted {
		t.Fatalf("expected ErrRecoveryCorrupted, got %v", err)
	}
}

func TestRecoverPendingSplicesBusyOntoFree(t *testing.T) {
	arena := NewArena(2 << 20)
	log := logger.New(io.Discard, logger.ERROR)

	al, err := Open(arena, log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	page := al.getBase()
	al.arena.MakePage(page)
	al.setBusy(3, page)
	al.setPending(3, page) // crash landed mid-unregister, before busy[t] was cleared

	al.recoverPending()

	if al.getBusy(3) != Null {
		t.Fatalf("expected busy[3] cleared, got %d", al.getBusy(3))
	}
	if al.getFree(3) != page {
		t.Fatalf("expected free[3] == %d, got %d", page, al.getFree(3))
	}
}

func TestRecoverFreeListsAdvancesPastClaimedPage(t *testing.T) {
	arena := NewArena(2 << 20)
	log := logger.New(io.Discard, logger.ERROR)

	al, err := Open(arena, log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	page := al.getBase()
	next := page + PageSize
	al.arena.MakePage(page)
	al.arena.MakePage(next)
	al.arena.WriteNext(page, next)

	al.setFree(5, page) // crash landed after the pop but before free[t] advanced
	al.setBusy(5, page)

	al.recoverFreeLists()

	if al.getFree(5) != next {
		t.Fatalf("expected free[5] advanced to %d, got %d", next, al.getFree(5))
	}
}

// TestRecoverGlobalHeapAdvancesCursorByAFullRefillBatch covers a crash
// mid-refill, after free[t] was pointed at the cursor's carved run but
// before cursor itself advanced past it: recovery must advance cursor
// by the same Prealloc+1 pages a live refill would have carved.
func TestRecoverGlobalHeapAdvancesCursorByAFullRefillBatch(t *testing.T) {
	arena := NewArena(2 << 20)
	log := logger.New(io.Discard, logger.ERROR)

	al, err := Open(arena, log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	cursor := al.getCursor()
	al.setFree(9, cursor) // crash landed after free[t] was set but before cursor advanced

	al.recoverGlobalHeap()

	want := cursor + Addr(Prealloc+1)*PageSize
	if got := al.getCursor(); got != want {
		t.Fatalf("cursor after recovery: got %d, want %d", got, want)
	}
}

func TestRecoverToBeFreedFinishesStagedFree(t *testing.T) {
	arena := NewArena(2 << 20)
	log := logger.New(io.Discard, logger.ERROR)

	al, err := Open(arena, log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	page := al.getBase()
	al.arena.MakePage(page)
	al.setToBeFreed(7, page)
	al.setStaged(7, true) // crash landed inside Free, before the splice completed

	al.recoverToBeFreed()

	if al.getStaged(7) {
		t.Fatal("expected staged flag cleared")
	}
	if al.getFree(7) != page {
		t.Fatalf("expected free[7] == %d, got %d", page, al.getFree(7))
	}
}
