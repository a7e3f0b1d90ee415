//go:build !mctpdebug

package mctpqueue

// debugEnabled is false in ordinary builds: Pool.Get/Put skip the slab
// checksum bookkeeping entirely and murmur3 is never linked in.
const debugEnabled = false

func checksum(b []byte) uint64 { return 0 }
