// Package compress applies optional block compression to finished archives before
// they are stored. The archive format itself never depends on it.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a block compression algorithm.
type Codec uint8

const (
	// None stores blocks as-is.
	None Codec = 0
	// LZ4 is fast with a modest ratio.
	LZ4 Codec = 1
	// Zstd gives the best ratio, good for cold data.
	Zstd Codec = 2
	// S2 is a Snappy-compatible codec tuned for throughput.
	S2 Codec = 3
)

var (
	// ErrUnknownCodec is returned for codec ids or names that are not supported.
	ErrUnknownCodec = errors.New("unknown compression codec")
	// ErrCorruptBlock is returned when a block header or body is inconsistent.
	ErrCorruptBlock = errors.New("corrupt compressed block")
)

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case S2:
		return "s2"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// Valid reports whether c is a supported codec.
func (c Codec) Valid() bool { return c <= S2 }

// ParseCodec resolves a codec by name. The empty string selects None.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "s2":
		return S2, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// ZSTD encoder/decoder pools
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("compress: new zstd encoder: %w", err)
	}
	return enc, nil
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("compress: new zstd decoder: %w", err)
	}
	return dec, nil
}

// HeaderSize is the size of a block header:
// [UncompressedSize uint32][StoredSize uint32], little-endian.
// A StoredSize of 0 means the body is stored uncompressed.
const HeaderSize = 8

// minSavings is the ratio above which compression is not worth it.
const minSavings = 0.9

// EncodeBlock compresses data with c and prefixes the block header. When
// compression does not save at least a tenth of the input the data is stored raw.
func EncodeBlock(data []byte, c Codec) ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, c)
	}

	var body []byte
	switch c {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		body = buf[:n] // n == 0 means incompressible
	case Zstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		body = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case S2:
		body = s2.Encode(nil, data)
	}

	stored := len(body)
	if c == None || stored == 0 || float64(stored) > float64(len(data))*minSavings {
		body, stored = data, 0
	}

	out := make([]byte, HeaderSize, HeaderSize+len(body))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(stored))
	return append(out, body...), nil
}

// BlockSizes returns the uncompressed and stored body sizes from a block header.
// A stored size of 0 means the body is raw.
func BlockSizes(block []byte) (uncompressed, stored int, err error) {
	if len(block) < HeaderSize {
		return 0, 0, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptBlock, len(block))
	}
	return int(binary.LittleEndian.Uint32(block[0:])), int(binary.LittleEndian.Uint32(block[4:])), nil
}

// DecodeBlock reverses EncodeBlock. c must be the codec the block was written with.
func DecodeBlock(block []byte, c Codec) ([]byte, error) {
	size, stored, err := BlockSizes(block)
	if err != nil {
		return nil, err
	}
	body := block[HeaderSize:]

	if stored == 0 {
		if len(body) != size {
			return nil, fmt.Errorf("%w: raw body is %d bytes, header says %d", ErrCorruptBlock, len(body), size)
		}
		return body, nil
	}
	if len(body) != stored {
		return nil, fmt.Errorf("%w: body is %d bytes, header says %d", ErrCorruptBlock, len(body), stored)
	}

	var out []byte
	switch c {
	case LZ4:
		out = make([]byte, size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}
		out = out[:n]
	case Zstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		out, err = dec.DecodeAll(body, make([]byte, 0, size))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}
	case S2:
		if n, err := s2.DecodedLen(body); err != nil || n != size {
			return nil, fmt.Errorf("%w: s2 body decodes to %d bytes, header says %d", ErrCorruptBlock, n, size)
		}
		out, err = s2.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s cannot hold a compressed body", ErrUnknownCodec, c)
	}

	if len(out) != size {
		return nil, fmt.Errorf("%w: decompressed %d bytes, header says %d", ErrCorruptBlock, len(out), size)
	}
	return out, nil
}
