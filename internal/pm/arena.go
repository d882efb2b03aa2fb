// Package pm implements the crash-consistent, thread-partitioned page
// allocator that manages a region of persistent memory (PM).
package pm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Addr is a byte offset into an Arena. It plays the role of a raw PM
// pointer in the original C++: address 0 is reserved (it falls inside
// the allocator header page) and is used as the nil sentinel.
type Addr uint64

// Null is the nil Addr.
const Null Addr = 0

// Available marks a thread slot as eligible for re-registration. It is
// distinguished from Null because Null also means "no pages staged yet".
const Available Addr = ^Addr(0)

// PageMask clears the low bits of an address, rounding down to the
// containing page's base address.
const PageMask = ^Addr(PageSize - 1)

// PageAddr returns the address of the page containing addr.
func PageAddr(addr Addr) Addr {
	return addr & PageMask
}

// Arena is a contiguous, PageSize-aligned byte span backing one PM
// region. It is either a plain in-process byte slice (for tests and for
// a store opened without file paths) or a file-backed mmap (for the durable
// allocator arena and log regions), mirroring the PMEM/no-PMEM split in
// the original source.
type Arena struct {
	data []byte
	file *os.File
}

// NewArena allocates a volatile, zeroed arena of the given size (rounded
// up to a page boundary). Persist is a no-op on a volatile arena.
func NewArena(size int) *Arena {
	size = roundUpPage(size)
	return &Arena{data: make([]byte, size)}
}

// OpenArena opens (creating if necessary) a file-backed arena of the
// given size and maps it MAP_SHARED so that writes are visible to a
// process that reopens the file after a crash.
func OpenArena(path string, size int) (*Arena, error) {
	size = roundUpPage(size)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("pm: open arena %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pm: stat arena %s: %w", path, err)
	}

	if info.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("pm: grow arena %s: %w", path, err)
		}
	} else {
		size = int(info.Size())
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pm: mmap arena %s: %w", path, err)
	}

	return &Arena{data: data, file: f}, nil
}

func roundUpPage(size int) int {
	if size <= 0 {
		size = PageSize
	}
	return (size + PageSize - 1) &^ (PageSize - 1)
}

// Size returns the arena's total byte length.
func (a *Arena) Size() int {
	return len(a.data)
}

// Persist is the region's persist barrier: on a file-backed arena it
// flushes [addr, addr+length) to the backing file (the Go stand-in for
// pmem_persist); on a volatile arena it is a no-op, since there is
// nothing below it to flush to.
func (a *Arena) Persist(addr Addr, length int) {
	if a.file == nil {
		return
	}
	start := int(addr) &^ (unixPageSize - 1)
	end := int(addr) + length
	if end > len(a.data) {
		end = len(a.data)
	}
	_ = unix.Msync(a.data[start:end], unix.MS_SYNC)
}

const unixPageSize = 4096

// Bytes returns a direct view into the arena's backing storage, for
// callers (outside this package) that need to lay out their own typed
// records over a span of it, the way pm itself lays out pages. Writes
// through the returned slice are not persisted; call Persist afterward.
func (a *Arena) Bytes(off Addr, length int) []byte {
	return a.data[off : off+Addr(length)]
}

// Close unmaps and closes the backing file, if any.
func (a *Arena) Close() error {
	if a.file == nil {
		return nil
	}
	_ = unix.Msync(a.data, unix.MS_SYNC)
	err := unix.Munmap(a.data)
	if cerr := a.file.Close(); err == nil {
		err = cerr
	}
	return err
}
