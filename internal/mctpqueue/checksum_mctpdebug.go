//go:build mctpdebug

package mctpqueue

import "github.com/twmb/murmur3"

// debugEnabled gates the slab-integrity checks in pool.go. Only a
// -tags mctpdebug build pays for the murmur3 hashing and the bookkeeping
// map Put/Get need to use it.
const debugEnabled = true

// checksum hashes a slab's current bytes so Get can tell whether anything
// wrote to an element while it sat idle in a pool's free list — a
// classic use-after-release symptom that's otherwise silent until the
// corrupted slab is handed back out and decoded.
func checksum(b []byte) uint64 {
	return murmur3.Sum64(b)
}
