package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/tickpack"
	"github.com/hupe1980/tickpack/tickio"
	"github.com/hupe1980/tickpack/vault"
)

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("tickpack "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func isParquet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".parquet")
}

func (a *app) csvOptions() tickio.CSVOptions {
	return tickio.CSVOptions{Scale: *a.cfg.Archive.Scale}
}

func (a *app) readSeries(path string) (*tickpack.Series, error) {
	if isParquet(path) {
		return tickio.ImportParquet(path)
	}
	if path == "-" {
		return tickio.ReadCSV(a.stdin, a.csvOptions())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tickio.ReadCSV(f, a.csvOptions())
}

// archiveName derives a vault name from an input path.
func archiveName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + vault.Ext
}

func runEncode(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "encode")
	name := fs.String("name", "", "archive name (single input only; default derived from the file name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one input file is required")
	}
	if *name != "" && fs.NArg() > 1 {
		return errors.New("-name needs exactly one input file")
	}

	items := make([]vault.Item, 0, fs.NArg())
	for _, path := range fs.Args() {
		s, err := a.readSeries(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		item := vault.Item{Series: s}
		switch {
		case *name != "":
			item.Name = *name
		case path != "-":
			item.Name = archiveName(path)
		}
		items = append(items, item)
	}

	names, err := a.vault.SaveBatch(ctx, items)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(a.stdout, n)
	}
	return nil
}

func runDecode(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "decode")
	out := fs.String("out", "-", "output file; .parquet writes Parquet, anything else CSV, - is stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one archive name is required")
	}

	name := fs.Arg(0)
	info, err := a.vault.Stat(ctx, name)
	if err != nil {
		return err
	}
	s, err := a.vault.LoadSeries(ctx, name)
	if err != nil {
		return err
	}

	// CSV output keeps the archive's scale.
	opts := tickio.CSVOptions{Scale: info.Archive.Scale}

	switch {
	case isParquet(*out):
		return tickio.ExportParquet(*out, s, tickio.ParquetOptions{})
	case *out == "-" || *out == "":
		return tickio.WriteCSV(a.stdout, s, opts)
	default:
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		if err := tickio.WriteCSV(f, s, opts); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}
}

func runInspect(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one archive name is required")
	}

	for _, name := range fs.Args() {
		info, err := a.vault.Stat(ctx, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := a.emit(info); err != nil {
			return err
		}
	}
	return nil
}

type verifyResult struct {
	Name string `json:"name"`
	*tickpack.Report
}

func runVerify(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "verify")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one archive name is required")
	}

	failed := false
	for _, name := range fs.Args() {
		report, err := a.vault.Verify(ctx, name)
		if err != nil {
			// Frame and storage failures have no archive report.
			report = &tickpack.Report{
				Kind:    tickpack.KindOf(err),
				Err:     err,
				Message: err.Error(),
				Offset:  -1,
				Tick:    -1,
			}
		}
		if !report.OK {
			failed = true
			a.logger.WithArchive(name).WarnContext(ctx, "verification failed",
				"kind", report.Kind.String(),
				"error", report.Message,
			)
		}
		if err := a.emit(verifyResult{Name: name, Report: report}); err != nil {
			return err
		}
	}

	if failed {
		return errVerifyFailed
	}
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return errors.New("at most one prefix is allowed")
	}

	names, err := a.vault.List(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(a.stdout, n)
	}
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one archive name is required")
	}

	for _, name := range fs.Args() {
		if err := a.vault.Delete(ctx, name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// demoSeries builds a drifting multi-symbol series with a slow sinusoidal wobble.
func demoSeries(symbols, ticks int) *tickpack.Series {
	names := []string{"AAPL", "GOOGL", "MSFT", "AMZN", "NVDA", "META", "TSLA", "NFLX"}
	bases := []float64{150, 2800, 300, 180, 480, 330, 240, 440}

	s := &tickpack.Series{
		Symbols:    make([]string, symbols),
		Timestamps: make([]int64, ticks),
		Ticks:      make([][]float64, ticks),
	}
	for i := range symbols {
		s.Symbols[i] = names[i%len(names)]
		if i >= len(names) {
			s.Symbols[i] = fmt.Sprintf("%s%d", names[i%len(names)], i/len(names))
		}
	}

	for t := range ticks {
		wobble := math.Sin(float64(t)/100) * 0.5
		row := make([]float64, symbols)
		for i := range row {
			scale := float64(i%3 + 1)
			row[i] = bases[i%len(bases)] + wobble*scale*scale + float64(t)*0.01*scale
		}
		s.Timestamps[t] = 1_700_000_000 + int64(t)
		s.Ticks[t] = row
	}
	return s
}

func runDemo(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "demo")
	ticks := fs.Int("ticks", 1000, "number of ticks")
	symbols := fs.Int("symbols", 3, "number of symbols")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ticks < 1 || *symbols < 1 {
		return errors.New("-ticks and -symbols must be >= 1")
	}

	s := demoSeries(*symbols, *ticks)
	opts := archiveOptions(a.cfg.Archive)
	w := a.stdout

	raw := tickpack.RawSize(s)
	fmt.Fprintf(w, "Original data:\n  Symbols: %d\n  Ticks: %d\n  Raw size: %d bytes\n\n", *symbols, *ticks, raw)

	start := time.Now()
	archive, err := tickpack.EncodeSeries(s, opts...)
	if err != nil {
		return err
	}
	encodeTime := time.Since(start)

	meta, err := tickpack.Inspect(archive)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Archive:\n  Size: %d bytes\n  Space saved: %.2f%%\n  Encode time: %v\n",
		len(archive), tickpack.CompressionRatio(raw, len(archive))*100, encodeTime)
	fmt.Fprintf(w, "  Reference checksum: 0x%08X\n  Payload checksum: 0x%08X\n  Structure checksum: 0x%08X\n\n",
		meta.ReferenceFrameCRC, meta.PayloadCRC, meta.StructureCRC)

	start = time.Now()
	decoded, report := tickpack.DecodeWithReport(archive, tickpack.WithLogger(a.logger))
	if !report.OK {
		return report.Err
	}
	decodeTime := time.Since(start)

	fmt.Fprintf(w, "Decoded:\n  Ticks restored: %d\n  Decode time: %v\n  Tiers: 4-bit %d, 8-bit %d, absolute %d\n\n",
		decoded.Len(), decodeTime, report.Tiers.Small, report.Tiers.Medium, report.Tiers.Absolute)

	fmt.Fprintf(w, "Accuracy:\n  Maximum relative error: %.6f%%\n", maxRelativeError(s, decoded)*100)
	return nil
}

func maxRelativeError(want, got *tickpack.Series) float64 {
	var worst float64
	for t, row := range want.Ticks {
		for i, p := range row {
			if p == 0 {
				continue
			}
			worst = max(worst, math.Abs(p-got.Ticks[t][i])/math.Abs(p))
		}
	}
	return worst
}
