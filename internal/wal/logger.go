package wal

import (
	"encoding/binary"
	"sync"

	"hill/internal/logger"
	"hill/internal/pm"
)

const logMagic = 0x1357246813572468

const (
	magicOffset   = 0
	regionsOffset = 8
)

// RequiredSize is the number of bytes a WAL arena must provide.
const RequiredSize = int(regionsOffset) + RegionNum*regionBytes

// Logger owns RegionNum per-thread log regions over a PM arena, mirroring
// Hill::WAL::Logger: registration is in-memory bookkeeping (in_use), the
// regions themselves live in PM and survive a restart.
type Logger struct {
	arena *pm.Arena
	log   *logger.Logger

	mu    sync.Mutex
	inUse [RegionNum]bool
}

// Open lays out (or recovers) the log regions over arena. If the arena
// already carries the log magic, every region's uncheckpointed entries
// are replayed through action before the regions are reset for reuse —
// mirroring LogRegions::recover_regions, which always re-initializes the
// regions after recovery regardless of whether the magic matched.
func Open(arena *pm.Arena, log *logger.Logger, action Action) (*Logger, error) {
	l := &Logger{arena: arena, log: log}

	magic := binary.LittleEndian.Uint64(arena.Bytes(magicOffset, 8))
	if magic == logMagic {
		for t := 0; t < RegionNum; t++ {
			l.regionAt(t).recover(action)
		}
		log.Infof("recovered %d log regions", RegionNum)
	} else {
		log.Infof("initializing %d fresh log regions", RegionNum)
	}

	for t := 0; t < RegionNum; t++ {
		l.regionAt(t).reset()
	}
	binary.LittleEndian.PutUint64(arena.Bytes(magicOffset, 8), logMagic)
	arena.Persist(magicOffset, 8)

	return l, nil
}

func (l *Logger) regionAt(t int) region {
	return region{arena: l.arena, base: regionsOffset + pm.Addr(t)*regionBytes}
}

// RegisterThread claims an unused log region, returning its slot index.
// Callers conventionally pass the same index to internal/pm's
// RegisterThread, so a thread's log region and its page-free-list slot
// share an identity.
func (l *Logger) RegisterThread() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for t := 0; t < RegionNum; t++ {
		if !l.inUse[t] {
			l.inUse[t] = true
			return t, nil
		}
	}
	return 0, ErrNoFreeSlot
}

// UnregisterThread releases slot t.
func (l *Logger) UnregisterThread(t int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inUse[t] = false
}

// MakeLog appends a new uncommitted entry to slot t's region, returning
// its index for a later Commit call. It fails if the slot already has
// an uncommitted entry, or if the region has no room left.
func (l *Logger) MakeLog(t int, addr pm.Addr, op Op) (int, error) {
	r := l.regionAt(t)
	cursor := r.cursor()

	if cursor > 0 {
		if last := r.entry(int(cursor) - 1); last.Status == StatusUncommitted {
			return 0, ErrUncommittedEntry
		}
	}
	if int(cursor) >= EntriesPerRegion {
		return 0, ErrRegionFull
	}

	r.setEntry(int(cursor), LogEntry{Address: addr, Op: op, Status: StatusUncommitted})
	r.setCursor(cursor + 1)
	return int(cursor), nil
}

// SetAddress fills in the address of slot t's entry at index, for the
// log-before-allocate protocol: MakeLog reserves the uncommitted entry
// with a null address before the PM address it will name is known, and
// SetAddress records that address once Allocate returns it, still
// ahead of Commit. A crash between MakeLog and SetAddress leaves a
// null-addressed uncommitted entry recovery can discard outright; a
// crash between SetAddress and Commit leaves one recovery must still
// treat as abandoned, since Status never advanced past Uncommitted.
func (l *Logger) SetAddress(t int, index int, addr pm.Addr) error {
	r := l.regionAt(t)
	e := r.entry(index)
	if e.Status != StatusUncommitted {
		return ErrNotUncommitted
	}
	e.Address = addr
	r.setEntry(index, e)
	return nil
}

// Commit marks slot t's entry at index as committed.
func (l *Logger) Commit(t int, index int) error {
	r := l.regionAt(t)
	e := r.entry(index)
	if e.Status != StatusUncommitted {
		return ErrNotUncommitted
	}
	e.Status = StatusCommitted
	r.setEntry(index, e)
	return nil
}

// Checkpoint advances slot t's checkpoint watermark to its current
// cursor, so a later recovery skips every entry below it. It does not
// rewind the cursor and so frees no room in the region.
func (l *Logger) Checkpoint(t int) {
	r := l.regionAt(t)
	r.setCheckpointed(r.cursor())
}

// Entry returns slot t's entry at index, for callers that need to
// inspect a log record without going through recovery.
func (l *Logger) Entry(t int, index int) LogEntry {
	return l.regionAt(t).entry(index)
}
