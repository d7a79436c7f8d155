// Package bitstream packs and unpacks fixed-width bit fields into a contiguous byte buffer.
//
// Fields are written MSB-first and packed back to back across byte boundaries; nothing is
// padded until Align or Flush is called. The package has no knowledge of what the fields mean.
//
//	w := bitstream.NewWriter(64)
//	w.WriteBits(0b10, 2)
//	w.WriteBits(0x5, 4)
//	buf := w.Flush() // 0b10010100
//
//	r := bitstream.NewReader(buf)
//	sel, _ := r.ReadBits(2)
//	v, _ := r.ReadBits(4)
package bitstream
