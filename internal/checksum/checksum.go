// Package checksum computes the three CRC32 layers that guard an archive.
//
// All layers use the IEEE polynomial. CRC32 detects accidental corruption only;
// it offers no protection against deliberate tampering.
package checksum

import (
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// Size is the serialized size of one checksum.
const Size = 4

// Table is the IEEE polynomial table.
var Table = crc32.MakeTable(crc32.IEEE)

// ErrMismatch is the sentinel wrapped by every MismatchError.
var ErrMismatch = errors.New("checksum mismatch")

// Layer identifies which region of an archive a checksum covers.
type Layer uint8

const (
	// LayerReferenceFrame covers the serialized reference frame.
	LayerReferenceFrame Layer = iota + 1
	// LayerPayload covers the delta payload.
	LayerPayload
	// LayerStructure covers every byte preceding the structure checksum.
	LayerStructure
)

func (l Layer) String() string {
	switch l {
	case LayerReferenceFrame:
		return "reference-frame"
	case LayerPayload:
		return "payload"
	case LayerStructure:
		return "structure"
	default:
		return fmt.Sprintf("layer(%d)", uint8(l))
	}
}

// Compute returns the CRC32 of data.
func Compute(data []byte) uint32 {
	return crc32.Checksum(data, Table)
}

// Verify recomputes the checksum of data and compares it against expected.
func Verify(layer Layer, data []byte, expected uint32) error {
	if actual := Compute(data); actual != expected {
		return &MismatchError{Layer: layer, Expected: expected, Actual: actual}
	}
	return nil
}

// MismatchError is returned when a stored checksum does not match the data.
type MismatchError struct {
	Layer    Layer
	Expected uint32
	Actual   uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s checksum mismatch: expected 0x%08x, got 0x%08x", e.Layer, e.Expected, e.Actual)
}

// Unwrap allows errors.Is(err, ErrMismatch).
func (e *MismatchError) Unwrap() error { return ErrMismatch }

// Writer wraps an io.Writer and keeps a running CRC32 of everything written.
type Writer struct {
	w    io.Writer
	hash hash.Hash32
}

// NewWriter creates a checksumming writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, hash: crc32.New(Table)}
}

// Write implements io.Writer.
func (cw *Writer) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		_, _ = cw.hash.Write(p[:n])
	}
	return n, err
}

// Sum returns the checksum of the bytes written so far.
func (cw *Writer) Sum() uint32 { return cw.hash.Sum32() }
