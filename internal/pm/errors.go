package pm

import "errors"

var (
	// ErrInvalidSize is returned for an Allocate size of zero or larger
	// than a single page can ever hold.
	ErrInvalidSize = errors.New("pm: invalid allocation size")
	// ErrNoMemory is returned when the arena has no room left to carve
	// a fresh run of pages.
	ErrNoMemory = errors.New("pm: out of memory")
	// ErrNoFreeSlot is returned by RegisterThread when all T slots are busy.
	ErrNoFreeSlot = errors.New("pm: no free thread slot")
	// ErrRecoveryCorrupted means the arena's header magic did not match
	// and the bytes are not a freshly zeroed region either; the caller
	// should abort node startup rather than silently reinitializing.
	ErrRecoveryCorrupted = errors.New("pm: allocator header corrupted")
)
