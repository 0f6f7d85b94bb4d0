package wasm

import "fmt"

// The guest ABI passes variable-length data as a single u64 packing a
// pointer into guest linear memory in the high 32 bits and a byte length in
// the low 32 bits.

// packPtrLen packs a pointer and length into a single uint64. Panics if ptr
// is 0 with a non-zero length, which indicates a corrupted allocation.
func packPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("wasm: invalid pack - null pointer with non-zero length (%d)", length))
	}
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtrLen unpacks a uint64 into its pointer and length halves.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	return uint32(packed >> 32), uint32(packed)
}
