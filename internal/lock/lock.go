// Package lock implements the two two-phase lock managers the locking
// schedulers and Strife's residual queue admit transactions through: an
// exclusive-only manager for 2PL-X, and a shared-plus-exclusive manager
// for 2PL-SX and Strife residuals.
//
// Both managers keep one FIFO wait queue per key. A request that cannot
// be granted immediately is appended to the queue and given a channel
// that is closed the moment it becomes grantable; callers either wait on
// it (the common case for a transaction touching exactly one key) or
// cancel it via Release before it is ever granted (a transaction touching
// several keys that failed to acquire one of them releases everything it
// holds, including any requests still queued, and retries later with a
// fresh unique ID).
package lock

import "sync"

// Key identifies the resource a lock request targets.
type Key uint64

// Mode distinguishes a shared (read) request from an exclusive (write)
// one. The exclusive-only manager only ever sees Exclusive requests.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// request is one entry in a key's wait queue.
type request struct {
	txnID   uint64
	mode    Mode
	granted bool
	wait    chan struct{}
}

func newRequest(txnID uint64, mode Mode) *request {
	return &request{txnID: txnID, mode: mode, wait: make(chan struct{})}
}

// waitFor returns a channel that is ready to receive once the request has
// been granted. If the request was granted synchronously by the call that
// created it, the returned channel is already closed.
func waitFor(r *request) <-chan struct{} {
	if r.granted {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.wait
}

func grant(r *request) {
	r.granted = true
	close(r.wait)
}

// queue is one key's FIFO of requests, a mix of currently-granted owners
// at the front and waiters behind them.
type queue struct {
	mu   sync.Mutex
	reqs []*request
}
