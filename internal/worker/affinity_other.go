//go:build !linux

package worker

// pin is a no-op on platforms without a CPU-affinity syscall exposed
// through golang.org/x/sys/unix.
func pin(core int) {}
