package lock

import "sync"

// ManagerB is the shared-plus-exclusive lock manager backing 2PL-SX and
// Strife's residual queue. Multiple readers may hold a key at once, but a
// new reader only joins an in-progress read group when the queue holds
// nothing but already-granted shared owners — if a writer is already
// waiting its turn, later readers queue up behind it rather than jumping
// ahead, which is what keeps a steady stream of readers from starving a
// waiting writer.
//
// Release of the last owner in a granted group promotes the next run at
// the front of the queue: a single waiting writer, or every contiguous
// waiting reader up to the next writer.
type ManagerB struct {
	mu     sync.Mutex
	queues map[Key]*queue
}

// NewManagerB returns an empty shared/exclusive lock manager.
func NewManagerB() *ManagerB {
	return &ManagerB{queues: make(map[Key]*queue)}
}

func (m *ManagerB) queueFor(key Key) *queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[key]
	if !ok {
		q = &queue{}
		m.queues[key] = q
	}
	return q
}

// ReadLock requests a shared hold on key for txnID. See WriteLock for the
// meaning of the return values.
func (m *ManagerB) ReadLock(key Key, txnID uint64) (granted bool, wait <-chan struct{}) {
	return m.request(key, txnID, Shared)
}

// WriteLock requests an exclusive hold on key for txnID. granted is true
// if the request was satisfied synchronously; wait is ready to receive
// once the request is eventually granted, and reads immediately if
// granted is already true.
func (m *ManagerB) WriteLock(key Key, txnID uint64) (granted bool, wait <-chan struct{}) {
	return m.request(key, txnID, Exclusive)
}

func (m *ManagerB) request(key Key, txnID uint64, mode Mode) (bool, <-chan struct{}) {
	q := m.queueFor(key)
	q.mu.Lock()
	defer q.mu.Unlock()

	r := newRequest(txnID, mode)
	if canJoin(q.reqs, mode) {
		grant(r)
	}
	q.reqs = append(q.reqs, r)
	return r.granted, waitFor(r)
}

// canJoin reports whether a new request of the given mode can be granted
// immediately against the current queue state.
func canJoin(reqs []*request, mode Mode) bool {
	if len(reqs) == 0 {
		return true
	}
	if mode == Exclusive {
		return false
	}
	for _, r := range reqs {
		if !r.granted || r.mode != Shared {
			return false
		}
	}
	return true
}

// Release removes txnID's request for key, whether granted or still
// queued, promoting the next grantable run at the front of the queue if
// the released request emptied the current owner group.
func (m *ManagerB) Release(key Key, txnID uint64) {
	q := m.queueFor(key)
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := -1
	for i, r := range q.reqs {
		if r.txnID == txnID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	wasGranted := q.reqs[idx].granted
	q.reqs = append(q.reqs[:idx], q.reqs[idx+1:]...)
	if !wasGranted {
		// Cancelling a still-queued request never needs to promote
		// anything: today every caller only ever cancels its own request
		// while it sits at the tail of the queue (admitLocked releases a
		// denied request before any later request could have queued
		// behind it), so a cancelled request can never have been blocking
		// a waiter. If admission ever changes to queue a request and
		// cancel it out of turn, a cancelled EXCLUSIVE sitting in front of
		// waiting SHAREDs would need this path to promote them.
		return
	}
	if len(q.reqs) > 0 && q.reqs[0].granted {
		// Other shared owners still hold the key; nothing to promote.
		return
	}
	promote(q.reqs)
}

func promote(reqs []*request) {
	if len(reqs) == 0 || reqs[0].granted {
		return
	}
	if reqs[0].mode == Exclusive {
		grant(reqs[0])
		return
	}
	for _, r := range reqs {
		if r.mode != Shared {
			break
		}
		grant(r)
	}
}
