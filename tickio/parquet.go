package tickio

import (
	"fmt"
	"io"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/hupe1980/tickpack"
)

// parquetRow is the long layout: one row per tick and symbol.
type parquetRow struct {
	Tick      int64   `parquet:"name=tick, type=INT64"`
	Timestamp *int64  `parquet:"name=timestamp, type=INT64, repetitiontype=OPTIONAL"`
	Symbol    string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Price     float64 `parquet:"name=price, type=DOUBLE"`
}

// ParquetOptions configures Parquet export.
type ParquetOptions struct {
	// Compression is "snappy", "gzip" or "none". Empty means snappy.
	Compression string
	// Parallelism is the number of goroutines the writer uses. Zero means 1.
	Parallelism int64
}

func (o ParquetOptions) codec() (parquet.CompressionCodec, error) {
	switch strings.ToLower(o.Compression) {
	case "", "snappy":
		return parquet.CompressionCodec_SNAPPY, nil
	case "gzip":
		return parquet.CompressionCodec_GZIP, nil
	case "none", "uncompressed":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("tickio: unknown parquet compression %q", o.Compression)
	}
}

func (o ParquetOptions) parallelism() int64 {
	if o.Parallelism <= 0 {
		return 1
	}
	return o.Parallelism
}

// streamFile adapts an io.Writer to the write-only subset of source.ParquetFile
// that the parquet writer uses.
type streamFile struct {
	w io.Writer
	n int64
}

func (f *streamFile) Create(string) (source.ParquetFile, error) { return f, nil }
func (f *streamFile) Open(string) (source.ParquetFile, error)   { return f, nil }
func (f *streamFile) Seek(int64, int) (int64, error)            { return f.n, nil }
func (f *streamFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("tickio: read not supported") }
func (f *streamFile) Close() error                              { return nil }

func (f *streamFile) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	f.n += int64(n)
	return n, err
}

// WriteParquet writes s to w in the long layout.
func WriteParquet(w io.Writer, s *tickpack.Series, opts ParquetOptions) error {
	return writeParquet(&streamFile{w: w}, s, opts)
}

// ExportParquet writes s to a Parquet file at path.
func ExportParquet(path string, s *tickpack.Series, opts ParquetOptions) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	if err := writeParquet(fw, s, opts); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func writeParquet(pf source.ParquetFile, s *tickpack.Series, opts ParquetOptions) error {
	if err := s.Validate(); err != nil {
		return err
	}
	codec, err := opts.codec()
	if err != nil {
		return err
	}

	pw, err := writer.NewParquetWriter(pf, new(parquetRow), opts.parallelism())
	if err != nil {
		return fmt.Errorf("tickio: new parquet writer: %w", err)
	}
	pw.CompressionType = codec

	withTS := len(s.Timestamps) > 0
	for t, row := range s.Ticks {
		var ts *int64
		if withTS {
			v := s.Timestamps[t]
			ts = &v
		}
		for i, price := range row {
			rec := parquetRow{
				Tick:      int64(t),
				Timestamp: ts,
				Symbol:    s.Symbols[i],
				Price:     price,
			}
			if err := pw.Write(rec); err != nil {
				_ = pw.WriteStop()
				return fmt.Errorf("tickio: write parquet row: %w", err)
			}
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("tickio: finalize parquet: %w", err)
	}
	return nil
}

// ImportParquet reads a file written by ExportParquet back into a Series.
// Symbols keep their order of first appearance.
func ImportParquet(path string) (*tickpack.Series, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	if err != nil {
		return nil, fmt.Errorf("tickio: new parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]parquetRow, int(pr.GetNumRows()))
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("tickio: read parquet rows: %w", err)
	}
	return pivot(rows)
}

// pivot turns long rows, ordered by tick, into a wide Series.
func pivot(rows []parquetRow) (*tickpack.Series, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrFormat)
	}

	s := &tickpack.Series{}
	index := make(map[string]int)
	for _, r := range rows {
		if r.Tick != 0 {
			break
		}
		if _, dup := index[r.Symbol]; dup {
			return nil, fmt.Errorf("%w: symbol %q repeated in tick 0", ErrFormat, r.Symbol)
		}
		index[r.Symbol] = len(s.Symbols)
		s.Symbols = append(s.Symbols, r.Symbol)
	}

	width := len(s.Symbols)
	if width == 0 || len(rows)%width != 0 {
		return nil, fmt.Errorf("%w: %d rows do not form ticks of %d symbols", ErrFormat, len(rows), width)
	}

	withTS := rows[0].Timestamp != nil
	for base := 0; base < len(rows); base += width {
		tick := int64(base / width)
		row := make([]float64, width)
		seen := make([]bool, width)
		for _, r := range rows[base : base+width] {
			i, ok := index[r.Symbol]
			if !ok || r.Tick != tick || seen[i] {
				return nil, fmt.Errorf("%w: unexpected row tick=%d symbol=%q at tick %d", ErrFormat, r.Tick, r.Symbol, tick)
			}
			row[i] = r.Price
			seen[i] = true
		}
		if withTS {
			ts := rows[base].Timestamp
			if ts == nil {
				return nil, fmt.Errorf("%w: tick %d has no timestamp", ErrFormat, tick)
			}
			s.Timestamps = append(s.Timestamps, *ts)
		}
		s.Ticks = append(s.Ticks, row)
	}
	return s, nil
}
