package vault

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/tickpack/internal/checksum"
	"github.com/hupe1980/tickpack/internal/compress"
)

// Blob frame layout:
//
//	[Magic "TPKV"] [Version u8] [Codec u8]
//	[Block: UncompressedSize u32 | StoredSize u32 | Body]
//	[CRC32 of Block u32]
//
// Block sizes and the CRC are little-endian.
const (
	frameMagic      = "TPKV"
	frameVersion    = 1
	framePrefixSize = len(frameMagic) + 2
	frameOverhead   = framePrefixSize + compress.HeaderSize + checksum.Size
)

// ErrCorruptBlob is returned when a stored blob is not a valid frame.
var ErrCorruptBlob = errors.New("vault: corrupt blob")

type frame struct {
	codec        compress.Codec
	block        []byte
	archiveSize  int
	storedSize   int
	compressed   bool
	checksum     uint32
	totalBlobLen int
}

// writeFrame writes block, produced by compress.EncodeBlock with c, as a frame.
func writeFrame(w io.Writer, block []byte, c compress.Codec) error {
	prefix := make([]byte, 0, framePrefixSize)
	prefix = append(prefix, frameMagic...)
	prefix = append(prefix, frameVersion, byte(c))
	if _, err := w.Write(prefix); err != nil {
		return err
	}

	cw := checksum.NewWriter(w)
	if _, err := cw.Write(block); err != nil {
		return err
	}

	var trailer [checksum.Size]byte
	binary.LittleEndian.PutUint32(trailer[:], cw.Sum())
	_, err := w.Write(trailer[:])
	return err
}

// encodeFrame compresses archive with c and returns the framed blob.
func encodeFrame(archive []byte, c compress.Codec) ([]byte, error) {
	block, err := compress.EncodeBlock(archive, c)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(framePrefixSize + len(block) + checksum.Size)
	if err := writeFrame(&buf, block, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseFrame validates the frame envelope and its checksum.
func parseFrame(data []byte) (*frame, error) {
	if len(data) < frameOverhead {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the frame overhead", ErrCorruptBlob, len(data))
	}
	if string(data[:len(frameMagic)]) != frameMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptBlob, data[:len(frameMagic)])
	}
	if v := data[len(frameMagic)]; v != frameVersion {
		return nil, fmt.Errorf("%w: unsupported frame version %d", ErrCorruptBlob, v)
	}
	c := compress.Codec(data[len(frameMagic)+1])
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrCorruptBlob, compress.ErrUnknownCodec)
	}

	block := data[framePrefixSize : len(data)-checksum.Size]
	want := binary.LittleEndian.Uint32(data[len(data)-checksum.Size:])
	if got := checksum.Compute(block); got != want {
		return nil, fmt.Errorf("%w: %w: stored %08x, computed %08x", ErrCorruptBlob, checksum.ErrMismatch, want, got)
	}

	size, stored, err := compress.BlockSizes(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptBlob, err)
	}

	return &frame{
		codec:        c,
		block:        block,
		archiveSize:  size,
		storedSize:   len(block) - compress.HeaderSize,
		compressed:   stored != 0,
		checksum:     want,
		totalBlobLen: len(data),
	}, nil
}

// archive decompresses the frame body.
func (f *frame) archive() ([]byte, error) {
	out, err := compress.DecodeBlock(f.block, f.codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptBlob, err)
	}
	return out, nil
}
