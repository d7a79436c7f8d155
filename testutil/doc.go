// Package testutil provides testing utilities for tickpack.
//
// This package is intended for use in tests and benchmarks only.
// It provides deterministic generators for symbol lists, timestamps and
// fixed-point price walks.
//
// # Random Series Generation
//
//	rng := testutil.NewRNG(seed)
//	rows := rng.RandomWalk(8, 100, testutil.WalkConfig{Start: 10_000})
//	prices := testutil.Prices(rows, 2) // 100.00, 100.01, ...
//	symbols := testutil.Symbols(8)
package testutil
