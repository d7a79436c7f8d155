// Package mmap maps stored archive files read-only so the local blob store can
// hand out their bytes without copying.
//
//	r, err := mmap.Map("ticks/2024-01-02.tpk", mmap.Sequential)
//	if err != nil { ... }
//	defer r.Close()
//	frame, err := r.Slice(0, 6)
//
// On Unix the file is mapped with mmap(2) and the hint goes to madvise(2). Other
// platforms read the file into memory and ignore the hint.
//
// A Region is safe for concurrent reads. Slices returned by Bytes and Slice must
// not be used after Close.
package mmap
