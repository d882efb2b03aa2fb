// Package wal implements the per-thread write-ahead log that shares
// its slot indices with internal/pm's allocator: each registered
// thread logs the address it is about to mutate before touching it, so
// a crash between the log write and the mutation can be rolled forward
// or rolled back at recovery time.
package wal

import (
	"encoding/binary"

	"hill/internal/pm"
)

// Op names the kind of mutation a LogEntry recorded.
type Op uint8

const (
	OpUnknown Op = iota
	OpInsert
	OpUpdate
	OpDelete
	OpNodeSplit
)

// Status is a LogEntry's commit state.
type Status uint8

const (
	StatusNone Status = iota
	StatusUncommitted
	StatusCommitted
)

// LogEntry records one pending or completed mutation: the PM address
// touched, the kind of mutation, and whether it committed.
type LogEntry struct {
	Address pm.Addr
	Op      Op
	Status  Status
}

// entryBytes is the on-PM layout of a LogEntry: 8-byte address, 1-byte
// op, 1-byte status, padded to a round word.
const entryBytes = 16

func readEntry(raw []byte) LogEntry {
	return LogEntry{
		Address: pm.Addr(binary.LittleEndian.Uint64(raw[0:8])),
		Op:      Op(raw[8]),
		Status:  Status(raw[9]),
	}
}

func writeEntry(raw []byte, e LogEntry) {
	binary.LittleEndian.PutUint64(raw[0:8], uint64(e.Address))
	raw[8] = byte(e.Op)
	raw[9] = byte(e.Status)
}

// Action is the recovery callback: given a committed or uncommitted
// entry, it decides what to do with the address it names (roll the
// mutation forward, undo it, or ignore it) and reports whether the
// entry's page should be considered reclaimed.
type Action func(LogEntry) bool
