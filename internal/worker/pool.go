// Package worker implements the fixed-size goroutine pool the scheduler
// dispatches ready-to-run transactions onto, pinned to a CPU subset
// disjoint from the scheduler goroutine's own core.
package worker

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
)

// DefaultSize mirrors the reference implementation's seven-worker pool,
// sized to leave the scheduler's own pinned core free on an eight-core
// machine; callers on smaller machines should pass an explicit size.
const DefaultSize = 7

// Pool runs a fixed number of long-lived goroutines, each pinned (best
// effort) to its own CPU core, pulling work off a shared channel.
//
// Thread Safety:
// Submit is safe for concurrent use. Stats are tracked with atomics so
// Completed and Panics never block a submitting goroutine.
type Pool struct {
	jobs      chan func()
	wg        sync.WaitGroup
	completed atomic.Int64
	panics    atomic.Int64
}

// New starts a pool of size workers, each pinned to cores[i] if cores is
// long enough and the platform supports affinity (Linux); elsewhere
// pinning is a no-op and the pool still runs correctly, just without the
// scheduling guarantee.
func New(size int, cores []int) *Pool {
	if size <= 0 {
		size = Sizes()
	}
	p := &Pool{jobs: make(chan func(), size*4)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		core := -1
		if i < len(cores) {
			core = cores[i]
		}
		go p.run(core)
	}
	return p
}

func (p *Pool) run(core int) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if core >= 0 {
		pin(core)
	}
	for job := range p.jobs {
		p.execute(job)
	}
}

func (p *Pool) execute(job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
		}
	}()
	job()
	p.completed.Add(1)
}

// Submit enqueues job to run on some worker goroutine. It blocks if every
// worker is currently busy and the internal buffer is full, providing
// natural backpressure on the scheduler's dispatch loop.
func (p *Pool) Submit(job func()) {
	p.jobs <- job
}

// Close stops accepting new work and waits for in-flight jobs to finish.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// Completed returns the number of jobs that returned without panicking.
func (p *Pool) Completed() int64 { return p.completed.Load() }

// Panics returns the number of jobs that panicked; the pool recovers and
// keeps running, but a non-zero count indicates a Txn.Run implementation
// is misbehaving.
func (p *Pool) Panics() int64 { return p.panics.Load() }

// Pin locks the calling goroutine to its current OS thread and attempts
// to pin that thread to core. Intended for use by a long-lived goroutine
// outside the pool (the scheduler goroutine) that needs the same
// affinity treatment worker goroutines get.
func Pin(core int) {
	runtime.LockOSThread()
	if core >= 0 {
		pin(core)
	}
}

// Sizes returns a worker-pool size derived from the machine's logical
// core count, reserving one core for the scheduler goroutine itself,
// with a floor of 1.
func Sizes() int {
	n := cpuid.CPU.LogicalCores - 1
	if n < 1 {
		n = 1
	}
	return n
}
