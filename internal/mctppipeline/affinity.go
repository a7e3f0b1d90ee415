package mctppipeline

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCPU locks the calling goroutine to its OS thread and, if cpu is
// non-negative, restricts that thread to a single CPU. Stage goroutines
// that process packets back-to-back benefit from a stable cache working
// set the way go-ublk pins its io_uring poller threads.
func pinToCPU(cpu int) {
	if cpu < 0 {
		return
	}
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	_ = unix.SchedSetaffinity(0, &set)
}

// stageCPU returns the CPU affinity's entry at idx, or -1 if unset,
// letting Config.CPUAffinity be shorter than the number of stages.
func stageCPU(affinity []int, idx int) int {
	if idx < 0 || idx >= len(affinity) {
		return -1
	}
	return affinity[idx]
}
