// Package tickio moves tick series in and out of common tabular formats.
//
// CSV uses the wide layout, one column per symbol and an optional leading
// timestamp column:
//
//	timestamp,EURUSD,GBPUSD
//	1700000000,1.0851,1.2712
//	1700000001,1.0852,1.2712
//
// Parquet uses the long layout, one row per tick and symbol, which most query
// engines prefer.
package tickio
