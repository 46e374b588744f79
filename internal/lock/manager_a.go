package lock

import "sync"

// ManagerA is the exclusive-only lock manager backing 2PL-X: every grant
// is exclusive, so at most one transaction ever holds a given key at a
// time and the wait queue is a plain FIFO.
type ManagerA struct {
	mu     sync.Mutex
	queues map[Key]*queue
}

// NewManagerA returns an empty exclusive-only lock manager.
func NewManagerA() *ManagerA {
	return &ManagerA{queues: make(map[Key]*queue)}
}

func (m *ManagerA) queueFor(key Key) *queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[key]
	if !ok {
		q = &queue{}
		m.queues[key] = q
	}
	return q
}

// WriteLock requests exclusive access to key on behalf of txnID. It
// returns immediately: granted is true if the lock was acquired
// synchronously (the queue was empty), and wait is ready to receive once
// the request is eventually granted — reading from wait when granted is
// already true returns immediately.
func (m *ManagerA) WriteLock(key Key, txnID uint64) (granted bool, wait <-chan struct{}) {
	q := m.queueFor(key)
	q.mu.Lock()
	defer q.mu.Unlock()

	r := newRequest(txnID, Exclusive)
	if len(q.reqs) == 0 {
		grant(r)
	}
	q.reqs = append(q.reqs, r)
	return r.granted, waitFor(r)
}

// ReadLock is an alias for WriteLock: the exclusive-only manager makes no
// distinction between reads and writes, so 2PL-X's readset acquisitions
// go through the same exclusive queue as its writeset acquisitions.
func (m *ManagerA) ReadLock(key Key, txnID uint64) (granted bool, wait <-chan struct{}) {
	return m.WriteLock(key, txnID)
}

// Release removes txnID's request for key, whether it currently holds the
// lock or is still queued behind another holder, and grants the next
// waiter if the released request was the current owner.
func (m *ManagerA) Release(key Key, txnID uint64) {
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
	wasOwner := idx == 0 && q.reqs[0].granted
	q.reqs = append(q.reqs[:idx], q.reqs[idx+1:]...)

	if wasOwner && len(q.reqs) > 0 && !q.reqs[0].granted {
		grant(q.reqs[0])
	}
}

// Owner reports the txnID currently holding key, if any.
func (m *ManagerA) Owner(key Key) (uint64, bool) {
	q := m.queueFor(key)
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.reqs) == 0 || !q.reqs[0].granted {
		return 0, false
	}
	return q.reqs[0].txnID, true
}
