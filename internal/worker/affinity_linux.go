//go:build linux

package worker

import "golang.org/x/sys/unix"

// pin attempts to restrict the calling OS thread to a single CPU core.
// Errors are intentionally ignored — affinity is a scheduling hint, not a
// correctness requirement, and a failed pin (e.g. insufficient
// permissions in a container) must never prevent the worker from running.
func pin(core int) {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	_ = unix.SchedSetaffinity(0, &set)
}
