package mmap

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

// Hint tells the kernel how a region will be read.
type Hint int

const (
	Normal Hint = iota
	// Sequential suits full-archive decodes.
	Sequential
	// Random suits ranged reads such as frame headers.
	Random
)

var (
	ErrClosed      = errors.New("mmap: region is closed")
	ErrTooLarge    = errors.New("mmap: file does not fit in the address space")
	ErrOutOfBounds = errors.New("mmap: range out of bounds")
)

// Region is a read-only view of a whole file.
type Region struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Map maps the file at path and applies hint. Empty files yield an empty region.
func Map(path string, hint Hint) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Region{}, nil
	}
	if int64(int(size)) != size {
		return nil, ErrTooLarge
	}

	data, unmap, err := mapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	r := &Region{data: data, unmap: unmap}
	if hint != Normal {
		// Advice failures leave the mapping usable.
		_ = advise(data, hint)
	}
	return r, nil
}

// Len returns the region size in bytes.
func (r *Region) Len() int { return len(r.data) }

// Bytes returns the whole region, or nil after Close.
func (r *Region) Bytes() []byte {
	if r.closed.Load() {
		return nil
	}
	return r.data
}

// Slice returns length bytes starting at off without copying.
func (r *Region) Slice(off, length int64) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if off < 0 || length < 0 || off+length > int64(len(r.data)) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfBounds, off, off+length, len(r.data))
	}
	return r.data[off : off+length], nil
}

// Close unmaps the region. Repeated calls are no-ops.
func (r *Region) Close() error {
	if r.closed.Swap(true) || r.unmap == nil || r.data == nil {
		return nil
	}
	return r.unmap(r.data)
}
