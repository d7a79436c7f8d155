package tickpack

import (
	"fmt"

	"github.com/hupe1980/tickpack/fixedpoint"
	"github.com/hupe1980/tickpack/internal/bitstream"
	"github.com/hupe1980/tickpack/internal/checksum"
	"github.com/hupe1980/tickpack/internal/delta"
)

const (
	magic uint32 = 0x54504B31 // "TPK1"

	// FormatVersion is the archive layout version written by Encode.
	FormatVersion uint8 = 1

	flagTimestamps uint8 = 1 << 0
	knownFlags           = flagTimestamps

	// MaxSymbolNameLen is the longest symbol name an archive can hold.
	MaxSymbolNameLen = 255

	trailerSize = 3 * checksum.Size
)

type header struct {
	version       uint8
	flags         uint8
	scale         uint8
	thresholds    delta.Thresholds
	tickCount     uint32
	baseTimestamp int64
	symbols       []string
}

func (h *header) hasTimestamps() bool { return h.flags&flagTimestamps != 0 }

func (h *header) writeTo(w *bitstream.Writer) {
	w.WriteUint32(magic)
	w.WriteUint8(h.version)
	w.WriteUint8(h.flags)
	w.WriteUint8(h.scale)
	w.WriteUint8(h.thresholds.Small)
	w.WriteUint8(h.thresholds.Medium)
	w.WriteUint32(uint32(len(h.symbols)))
	w.WriteUint32(h.tickCount)
	if h.hasTimestamps() {
		w.WriteUint64(uint64(h.baseTimestamp))
	}
	for _, name := range h.symbols {
		w.WriteUint8(uint8(len(name)))
		w.WriteBytes([]byte(name))
	}
}

// readHeader parses and validates the header. Structural fields are checked before
// any variable-length data is read.
func readHeader(r *bitstream.Reader) (*header, error) {
	m, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrMalformedHeader, m)
	}

	h := &header{}
	var fixed [5]uint8
	for i := range fixed {
		if fixed[i], err = r.ReadUint8(); err != nil {
			return nil, err
		}
	}
	h.version, h.flags, h.scale = fixed[0], fixed[1], fixed[2]
	h.thresholds = delta.Thresholds{Small: fixed[3], Medium: fixed[4]}

	symbolCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if h.tickCount, err = r.ReadUint32(); err != nil {
		return nil, err
	}

	switch {
	case h.version != FormatVersion:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedHeader, h.version)
	case h.flags&^knownFlags != 0:
		return nil, fmt.Errorf("%w: unknown flags 0x%02x", ErrMalformedHeader, h.flags)
	case h.scale > fixedpoint.MaxScale:
		return nil, fmt.Errorf("%w: scale %d exceeds %d", ErrMalformedHeader, h.scale, fixedpoint.MaxScale)
	case symbolCount == 0:
		return nil, fmt.Errorf("%w: symbol count is zero", ErrMalformedHeader)
	case h.tickCount == 0:
		return nil, fmt.Errorf("%w: tick count is zero", ErrMalformedHeader)
	}
	if err := h.thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}

	if h.hasTimestamps() {
		ts, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		h.baseTimestamp = int64(ts)
	}

	// Every name takes at least two bytes; cap the allocation by what is left.
	h.symbols = make([]string, 0, min(uint64(symbolCount), r.Remaining()/16))
	seen := make(map[string]struct{}, cap(h.symbols))
	for i := range symbolCount {
		n, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: symbol %d has an empty name", ErrMalformedHeader, i)
		}
		name, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[string(name)]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %q", ErrMalformedHeader, name)
		}
		seen[string(name)] = struct{}{}
		h.symbols = append(h.symbols, string(name))
	}

	return h, nil
}
