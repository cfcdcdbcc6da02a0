// Package storage provides the fixed-size memory-mapped file the
// snapshot codec writes into. It is a thin collaborator: a writable
// byte region plus a durability barrier, nothing more — the graph core
// only ever borrows it for the duration of a single Save call.
package storage

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a fixed-size region of a regular file, mapped into memory for
// direct byte access.
type File struct {
	f    *os.File
	data []byte
}

// Open creates the file at path if it does not exist (an existing
// file's contents are kept), sets its length to size bytes, and maps it
// read/write. size is a caller-chosen upper
// bound for the largest snapshot this file will ever hold.
func Open(path string, size int64) (*File, error) {
	if size <= 0 {
		return nil, fmt.Errorf("storage: size must be positive, got %d", size)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: truncate %s to %d: %w", path, size, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: mmap %s: %w", path, err)
	}

	return &File{f: f, data: data}, nil
}

// Bytes returns the mapped region. Writes to it are visible to Flush
// and to any later reopen of the same file.
func (s *File) Bytes() []byte {
	return s.data
}

// Flush issues a durability barrier, forcing dirty pages of the mapping
// out to the backing file.
func (s *File) Flush() error {
	if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("storage: msync: %w", err)
	}
	return nil
}

// Close unmaps the region and closes the backing file. The File must
// not be used afterward.
func (s *File) Close() error {
	if err := unix.Munmap(s.data); err != nil {
		s.f.Close()
		return fmt.Errorf("storage: munmap: %w", err)
	}
	return s.f.Close()
}
