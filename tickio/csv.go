package tickio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hupe1980/tickpack"
	"github.com/hupe1980/tickpack/fixedpoint"
)

// TimestampColumn is the optional first CSV column holding tick timestamps.
const TimestampColumn = "timestamp"

// ErrFormat is returned for input that does not have the expected shape.
var ErrFormat = errors.New("tickio: malformed input")

// CSVOptions configures CSV reading and writing.
type CSVOptions struct {
	// Scale is the number of decimal places kept. Prices are rounded half to
	// even at this scale on read and printed with exactly this many digits on write.
	Scale uint8
	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

// DefaultCSVOptions returns options matching tickpack's default scale.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Scale: tickpack.DefaultScale, Comma: ','}
}

func (o CSVOptions) comma() rune {
	if o.Comma == 0 {
		return ','
	}
	return o.Comma
}

// ReadCSV reads a wide CSV table: a header row naming the symbols, optionally
// preceded by a "timestamp" column, then one row per tick.
func ReadCSV(r io.Reader, opts CSVOptions) (*tickpack.Series, error) {
	cr := csv.NewReader(r)
	cr.Comma = opts.comma()
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrFormat)
		}
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	withTS := len(head) > 0 && strings.EqualFold(strings.TrimSpace(head[0]), TimestampColumn)
	first := 0
	if withTS {
		first = 1
	}
	if len(head) <= first {
		return nil, fmt.Errorf("%w: header has no symbol columns", ErrFormat)
	}

	s := &tickpack.Series{Symbols: make([]string, 0, len(head)-first)}
	for _, name := range head[first:] {
		s.Symbols = append(s.Symbols, strings.TrimSpace(name))
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		line, _ := cr.FieldPos(0)

		if withTS {
			ts, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: timestamp: %w", ErrFormat, line, err)
			}
			s.Timestamps = append(s.Timestamps, ts)
		}

		row := make([]float64, len(s.Symbols))
		for i, field := range rec[first:] {
			d, err := decimal.NewFromString(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %w", ErrFormat, line, s.Symbols[i], err)
			}
			v, err := fixedpoint.ToFixedDecimal(d, opts.Scale)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, s.Symbols[i], err)
			}
			row[i] = fixedpoint.FromFixed(v, opts.Scale)
		}
		s.Ticks = append(s.Ticks, row)
	}

	if len(s.Ticks) == 0 {
		return nil, fmt.Errorf("%w: no tick rows", ErrFormat)
	}
	return s, nil
}

// WriteCSV writes s in the layout ReadCSV accepts.
func WriteCSV(w io.Writer, s *tickpack.Series, opts CSVOptions) error {
	if err := s.Validate(); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = opts.comma()

	withTS := len(s.Timestamps) > 0
	rec := make([]string, 0, len(s.Symbols)+1)
	if withTS {
		rec = append(rec, TimestampColumn)
	}
	rec = append(rec, s.Symbols...)
	if err := cw.Write(rec); err != nil {
		return err
	}

	places := int32(opts.Scale)
	for t, row := range s.Ticks {
		rec = rec[:0]
		if withTS {
			rec = append(rec, strconv.FormatInt(s.Timestamps[t], 10))
		}
		for i, p := range row {
			v, err := fixedpoint.ToFixed(p, opts.Scale)
			if err != nil {
				return fmt.Errorf("tick %d: %s: %w", t, s.Symbols[i], err)
			}
			rec = append(rec, fixedpoint.FromFixedDecimal(v, opts.Scale).StringFixed(places))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
