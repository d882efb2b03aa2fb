package wal

import "errors"

var (
	// ErrNoFreeSlot is returned by RegisterThread when every region is
	// already claimed.
	ErrNoFreeSlot = errors.New("wal: no free log region")
	// ErrUncommittedEntry is returned by MakeLog when the slot already
	// has an uncommitted entry outstanding — at most one is allowed.
	ErrUncommittedEntry = errors.New("wal: slot has an uncommitted entry")
	// ErrRegionFull is returned by MakeLog once a region's cursor has
	// reached EntriesPerRegion. Checkpoint does not rewind the cursor, so
	// the region stays full until the log is reopened.
	ErrRegionFull = errors.New("wal: log region full")
	// ErrNotUncommitted is returned by Commit when the named entry is
	// not the slot's outstanding uncommitted entry.
	ErrNotUncommitted = errors.New("wal: entry is not uncommitted")
)
