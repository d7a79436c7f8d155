// Package tickpack encodes synchronized multi-symbol price series into a compact,
// checksummed byte stream and decodes them back at a declared fixed-point precision.
//
// # Quick Start
//
//	data, err := tickpack.Encode(
//	    []string{"AAPL", "MSFT"},
//	    [][]float64{
//	        {189.25, 402.10},
//	        {189.26, 402.10},
//	        {189.30, 402.55},
//	    },
//	)
//
//	series, err := tickpack.Decode(data)
//	fmt.Println(series.Ticks[2]) // [189.3 402.55]
//
// # Precision
//
// Prices are scaled by 10^scale and rounded half-to-even into integers (scale 2 by
// default, so 100.01 becomes 10001). Decoding reproduces the scaled integers exactly;
// the float results are the nearest float64 to those integers divided by 10^scale.
// Every scaled value must fit in 32 bits, otherwise Encode fails with
// ErrPrecisionOverflow.
//
//	data, _ := tickpack.Encode(symbols, ticks, tickpack.WithScale(4))
//
// # Layout
//
// An archive is laid out as:
//
//	header | reference frame | tick records | refFrameCRC | payloadCRC | structureCRC
//
// The reference frame stores every symbol's first value as a 32-bit field. Each later
// tick stores a change bitmap followed by one tiered field per changed symbol: a 2-bit
// selector and then a 4-bit delta, an 8-bit delta, or the 32-bit absolute value,
// whichever is smallest. Unchanged symbols cost one bitmap bit.
//
// # Integrity
//
// Decode validates the header, then verifies the reference-frame, payload and
// structure checksums in that order before reconstructing any value. A failed check
// aborts the call; partially decoded data is never returned.
//
//	_, err := tickpack.Decode(corrupted)
//	var mm *tickpack.ChecksumMismatchError
//	if errors.As(err, &mm) {
//	    fmt.Println(mm.Layer) // payload
//	}
//
// # Storage
//
// The codec itself performs no I/O. The vault package stores archives in any
// blobstore.BlobStore (memory, local disk, S3, MinIO) with optional block compression.
package tickpack
