package tickpack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/tickpack/fixedpoint"
	"github.com/hupe1980/tickpack/internal/bitstream"
	"github.com/hupe1980/tickpack/internal/changemap"
	"github.com/hupe1980/tickpack/internal/checksum"
	"github.com/hupe1980/tickpack/internal/delta"
	"github.com/hupe1980/tickpack/internal/frame"
)

// Encode compresses ticks for the given symbols into an archive.
//
// Every row of ticks must hold one price per symbol and at least one tick is
// required.
func Encode(symbols []string, ticks [][]float64, opts ...Option) ([]byte, error) {
	return EncodeSeries(&Series{Symbols: symbols, Ticks: ticks}, opts...)
}

// EncodeSeries compresses a series, including its timestamps when present.
func EncodeSeries(s *Series, opts ...Option) ([]byte, error) {
	o := applyOptions(opts)
	start := time.Now()

	data, err := encodeSeries(s, &o)

	var symbols, ticks int
	if s != nil {
		symbols, ticks = len(s.Symbols), len(s.Ticks)
	}
	o.metricsCollector.RecordEncode(ticks, len(data), time.Since(start), err)
	o.logger.LogEncode(context.Background(), symbols, ticks, len(data), err)

	return data, err
}

func encodeSeries(s *Series, o *options) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil series", ErrInvalidInput)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	rows := make([][]int64, len(s.Ticks))
	for t, prices := range s.Ticks {
		row := make([]int64, len(prices))
		for i, p := range prices {
			v, err := fixedpoint.ToFixed(p, o.scale)
			if err != nil {
				return nil, fmt.Errorf("tick %d symbol %q: %w", t, s.Symbols[i], err)
			}
			row[i] = v
		}
		rows[t] = row
	}

	h := &header{
		version:    FormatVersion,
		scale:      o.scale,
		thresholds: o.thresholds,
		tickCount:  uint32(len(rows)),
		symbols:    s.Symbols,
	}
	if s.Timestamps != nil {
		h.flags |= flagTimestamps
		h.baseTimestamp = s.Timestamps[0]
	}

	data, err := encodeFixed(h, rows, s.Timestamps)
	if err != nil {
		return nil, translateError(err)
	}
	return data, nil
}

// encodeFixed writes a complete archive from fixed-point rows.
func encodeFixed(h *header, rows [][]int64, timestamps []int64) ([]byte, error) {
	w := bitstream.NewWriter(estimateSize(h, len(rows)))

	h.writeTo(w)
	frameStart := w.Len()

	ref, err := frame.Capture(rows[0])
	if err != nil {
		return nil, fmt.Errorf("tick 0: %w", err)
	}
	ref.WriteTo(w)
	frameEnd := w.Len()

	enc := delta.NewEncoder(h.thresholds)
	for t := 1; t < len(rows); t++ {
		if h.hasTimestamps() {
			w.WriteUint32(uint32(timestamps[t] - h.baseTimestamp))
		}

		changed := changemap.Build(rows[t-1], rows[t])
		w.WriteBytes(changed.Bytes())
		if err := enc.EncodeTick(w, rows[t-1], rows[t], changed); err != nil {
			return nil, fmt.Errorf("tick %d: %w", t, err)
		}
		w.Align()
	}
	buf := w.Flush()
	refCRC := checksum.Compute(buf[frameStart:frameEnd])
	payloadCRC := checksum.Compute(buf[frameEnd:])

	w.WriteUint32(refCRC)
	w.WriteUint32(payloadCRC)
	w.WriteUint32(checksum.Compute(w.Flush()))

	return w.Flush(), nil
}

func estimateSize(h *header, ticks int) int {
	s := len(h.symbols)
	size := 32 + s*(frame.FieldBits/8+1) + trailerSize
	for _, name := range h.symbols {
		size += len(name)
	}
	// Assume a third of the symbols move by a small delta each tick.
	size += (ticks - 1) * (changemap.SizeOf(s) + s/3 + 1)
	return size
}

// Decode verifies and decompresses an archive.
//
// The header is validated first, then the reference-frame, payload and structure
// checksums in that order. No tick is reconstructed unless all three match, and
// on any error the returned series is nil.
func Decode(data []byte, opts ...Option) (*Series, error) {
	s, report := DecodeWithReport(data, opts...)
	if report.Err != nil {
		return nil, report.Err
	}
	return s, nil
}

// DecodeWithReport is like Decode but also returns a report describing the outcome.
// The report is never nil. On failure the series is nil and the report carries the
// error kind and, where known, the byte offset and tick index.
func DecodeWithReport(data []byte, opts ...Option) (*Series, *Report) {
	o := applyOptions(opts)
	start := time.Now()

	res, err := decode(data)

	report := newReport(data, res, err, time.Since(start))
	o.metricsCollector.RecordDecode(report.Ticks, len(data), report.Duration, err)
	o.logger.LogDecode(context.Background(), len(data), report.Ticks, err)

	if err != nil {
		return nil, report
	}
	return res.series, report
}

// Verify checks the header and all three checksums without reconstructing ticks.
func Verify(data []byte) error {
	l, err := parseLayout(data)
	if err != nil {
		return err
	}
	return l.verify(data)
}

// layout locates the regions of an archive.
type layout struct {
	header       *header
	frameStart   int
	frameEnd     int
	trailerStart int
	refCRC       uint32
	payloadCRC   uint32
	structureCRC uint32
}

func parseLayout(data []byte) (*layout, error) {
	r := bitstream.NewReader(data)

	h, err := readHeader(r)
	if err != nil {
		return nil, newDecodeError(err, r.Offset(), -1)
	}

	l := &layout{header: h, frameStart: r.Offset()}
	frameSize := uint64(frame.SizeOf(1)) * uint64(len(h.symbols))
	if uint64(len(data)) < uint64(l.frameStart)+frameSize+trailerSize {
		err := fmt.Errorf("%w: %d bytes cannot hold a %d-symbol frame and trailer",
			ErrTruncatedStream, len(data), len(h.symbols))
		return nil, newDecodeError(err, len(data), -1)
	}
	l.frameEnd = l.frameStart + int(frameSize)
	l.trailerStart = len(data) - trailerSize

	tr := bitstream.NewReader(data[l.trailerStart:])
	l.refCRC, _ = tr.ReadUint32()
	l.payloadCRC, _ = tr.ReadUint32()
	l.structureCRC, _ = tr.ReadUint32()

	return l, nil
}

// verify checks the checksum layers in order and stops at the first mismatch.
func (l *layout) verify(data []byte) error {
	if err := checksum.Verify(checksum.LayerReferenceFrame, data[l.frameStart:l.frameEnd], l.refCRC); err != nil {
		return newDecodeError(err, l.frameStart, -1)
	}
	if err := checksum.Verify(checksum.LayerPayload, data[l.frameEnd:l.trailerStart], l.payloadCRC); err != nil {
		return newDecodeError(err, l.frameEnd, -1)
	}
	if err := checksum.Verify(checksum.LayerStructure, data[:len(data)-checksum.Size], l.structureCRC); err != nil {
		return newDecodeError(err, 0, -1)
	}
	return nil
}

type decodeResult struct {
	layout  *layout
	series  *Series
	changes []int
	tiers   delta.Stats
}

func decode(data []byte) (*decodeResult, error) {
	l, err := parseLayout(data)
	if err != nil {
		return nil, err
	}
	if err := l.verify(data); err != nil {
		return &decodeResult{layout: l}, err
	}

	h := l.header
	ref, err := frame.Parse(data[l.frameStart:l.frameEnd], len(h.symbols))
	if err != nil {
		return &decodeResult{layout: l}, newDecodeError(err, l.frameStart, 0)
	}

	td := newTickDecoder(h)
	rows, timestamps, err := td.decode(ref.Values(), data[l.frameEnd:l.trailerStart], l.frameEnd)
	if err != nil {
		return &decodeResult{layout: l}, err
	}

	series := &Series{
		Symbols:    append([]string(nil), h.symbols...),
		Timestamps: timestamps,
		Ticks:      make([][]float64, len(rows)),
	}
	for t, row := range rows {
		prices := make([]float64, len(row))
		for i, v := range row {
			prices[i] = fixedpoint.FromFixed(v, h.scale)
		}
		series.Ticks[t] = prices
	}

	return &decodeResult{
		layout:  l,
		series:  series,
		changes: td.changes,
		tiers:   td.dec.Stats(),
	}, nil
}

// tickDecoder rebuilds fixed-point rows from a verified payload.
type tickDecoder struct {
	h       *header
	dec     *delta.Decoder
	changes []int
}

func newTickDecoder(h *header) *tickDecoder {
	return &tickDecoder{
		h:       h,
		dec:     delta.NewDecoder(h.thresholds),
		changes: make([]int, len(h.symbols)),
	}
}

// decode reads every tick record after the reference frame. base is the payload's
// offset within the archive, used for error positions.
func (td *tickDecoder) decode(first []int64, payload []byte, base int) ([][]int64, []int64, error) {
	h := td.h
	symbols := len(h.symbols)
	ticks := int(h.tickCount)

	minRecord := changemap.SizeOf(symbols)
	if h.hasTimestamps() {
		minRecord += 4
	}
	rows := make([][]int64, 0, min(ticks, len(payload)/minRecord+1))
	rows = append(rows, first)

	var timestamps []int64
	if h.hasTimestamps() {
		timestamps = make([]int64, 0, cap(rows))
		timestamps = append(timestamps, h.baseTimestamp)
	}

	r := bitstream.NewReader(payload)
	for t := 1; t < ticks; t++ {
		fail := func(err error) error {
			return newDecodeError(fmt.Errorf("tick %d: %w", t, err), base+r.Offset(), t)
		}

		if h.hasTimestamps() {
			off, err := r.ReadUint32()
			if err != nil {
				return nil, nil, fail(err)
			}
			timestamps = append(timestamps, h.baseTimestamp+int64(off))
		}

		changed, err := changemap.Read(r, symbols)
		if err != nil {
			return nil, nil, fail(err)
		}

		row, err := td.dec.DecodeTick(r, rows[t-1], changed)
		if err != nil {
			return nil, nil, fail(err)
		}
		if err := checkPadding(r); err != nil {
			return nil, nil, fail(err)
		}

		changed.ForEach(func(s int) { td.changes[s]++ })
		rows = append(rows, row)
	}

	if rest := r.Remaining() / 8; rest != 0 {
		err := fmt.Errorf("%w: %d bytes follow the last of %d ticks", ErrMalformedHeader, rest, ticks)
		return nil, nil, newDecodeError(err, base+r.Offset(), -1)
	}
	return rows, timestamps, nil
}

// checkPadding consumes the bits up to the next byte boundary, which must be zero.
func checkPadding(r *bitstream.Reader) error {
	pad := uint((8 - r.BitOffset()%8) % 8)
	if pad == 0 {
		return nil
	}
	v, err := r.ReadBits(pad)
	if err != nil {
		return err
	}
	if v != 0 {
		return fmt.Errorf("%w: non-zero record padding", ErrDeltaRangeViolation)
	}
	return nil
}

// Inspect reads the header and checksums of an archive without verifying or
// decoding the payload.
func Inspect(data []byte) (*Metadata, error) {
	l, err := parseLayout(data)
	if err != nil {
		return nil, err
	}
	h := l.header

	m := &Metadata{
		Version:            h.version,
		Scale:              h.scale,
		SmallTier:          h.thresholds.Small,
		MediumTier:         h.thresholds.Medium,
		Symbols:            append([]string(nil), h.symbols...),
		TickCount:          int(h.tickCount),
		HasTimestamps:      h.hasTimestamps(),
		Size:               len(data),
		HeaderSize:         l.frameStart,
		ReferenceFrameSize: l.frameEnd - l.frameStart,
		PayloadSize:        l.trailerStart - l.frameEnd,
		ReferenceFrameCRC:  l.refCRC,
		PayloadCRC:         l.payloadCRC,
		StructureCRC:       l.structureCRC,
	}
	if h.hasTimestamps() {
		m.BaseTimestamp = h.baseTimestamp
	}
	return m, nil
}

// Metadata describes an archive's header and checksums.
type Metadata struct {
	Version            uint8    `json:"version"`
	Scale              uint8    `json:"scale"`
	SmallTier          uint8    `json:"small_tier"`
	MediumTier         uint8    `json:"medium_tier"`
	Symbols            []string `json:"symbols"`
	TickCount          int      `json:"tick_count"`
	HasTimestamps      bool     `json:"has_timestamps"`
	BaseTimestamp      int64    `json:"base_timestamp,omitempty"`
	Size               int      `json:"size"`
	HeaderSize         int      `json:"header_size"`
	ReferenceFrameSize int      `json:"reference_frame_size"`
	PayloadSize        int      `json:"payload_size"`
	ReferenceFrameCRC  uint32   `json:"reference_frame_crc"`
	PayloadCRC         uint32   `json:"payload_crc"`
	StructureCRC       uint32   `json:"structure_crc"`
}

// Options returns the encode options that reproduce this archive's configuration.
func (m *Metadata) Options() []Option {
	return []Option{
		WithScale(m.Scale),
		WithTierThresholds(m.SmallTier, m.MediumTier),
	}
}

// errorPosition extracts the offset and tick recorded in a DecodeError.
func errorPosition(err error) (offset, tick int) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Offset, de.Tick
	}
	return -1, -1
}
