// Package queue wraps code.hybscloud.com/lfq's bounded MPSC queue with the
// unbounded-producer, blocking-consumer semantics the transaction
// processor's three queues need: any number of goroutines enqueue
// (NewTxnRequest callers, worker goroutines finishing a transaction), and
// exactly one scheduler goroutine consumes.
package queue

import (
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// MPSC is a multi-producer single-consumer queue of *T, backed by an
// lfq ring buffer. Enqueue retries with backoff until the ring has room,
// so callers never observe backpressure directly — the same tradeoff the
// reference implementation makes by using an unbounded deque protected by
// a mutex, traded here for a bounded lock-free ring plus a bounded
// spin-and-retry loop.
type MPSC[T any] struct {
	q lfq.Queue[T]
}

// NewMPSC creates an MPSC queue with the given capacity (rounded up to
// the next power of two by lfq).
func NewMPSC[T any](capacity int) *MPSC[T] {
	return &MPSC[T]{q: lfq.NewMPSC[T](capacity)}
}

// Push enqueues v, retrying with exponential backoff if the ring is
// momentarily full.
func (m *MPSC[T]) Push(v *T) {
	backoff := iox.Backoff{}
	for {
		if err := m.q.Enqueue(v); err == nil {
			return
		}
		backoff.Wait()
	}
}

// TryPop attempts to dequeue a value without blocking, returning ok=false
// if the queue is currently empty.
func (m *MPSC[T]) TryPop() (v *T, ok bool) {
	item, err := m.q.Dequeue()
	if err != nil {
		return nil, false
	}
	return item, true
}

// Pop blocks, spinning with backoff, until a value is available.
func (m *MPSC[T]) Pop() *T {
	backoff := iox.Backoff{}
	for {
		if v, ok := m.TryPop(); ok {
			return v
		}
		backoff.Wait()
	}
}

// PopTimeout is like Pop but gives up after timeout, returning ok=false.
func (m *MPSC[T]) PopTimeout(timeout time.Duration) (v *T, ok bool) {
	deadline := time.Now().Add(timeout)
	backoff := iox.Backoff{}
	for {
		if v, ok := m.TryPop(); ok {
			return v, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		backoff.Wait()
	}
}
