package txn

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/strife/internal/lock"
)

// lockManager is satisfied by both internal/lock managers; the locking
// scheduler is written once against this interface and behaves as 2PL-X
// or 2PL-SX purely depending on which concrete manager the processor
// constructed for its Mode.
type lockManager interface {
	ReadLock(key lock.Key, txnID uint64) (granted bool, wait <-chan struct{})
	WriteLock(key lock.Key, txnID uint64) (granted bool, wait <-chan struct{})
	Release(key lock.Key, txnID uint64)
}

func (p *TxnProcessor) locker() lockManager {
	if p.lockA != nil {
		return p.lockA
	}
	return p.lockB
}

// runLocking drives both 2PL-X and 2PL-SX: pop a request, attempt to
// acquire every lock its read/write sets need; on full admission dispatch
// it to the worker pool, on denial release whatever was granted and
// retry later (or, for a single-key transaction, leave it parked in its
// one lock's wait queue instead of restarting). Meanwhile drain completed
// attempts, apply or discard them, release their locks, and publish
// results.
func (p *TxnProcessor) runLocking() {
	for {
		select {
		case <-p.done:
			return
		default:
		}

		for {
			tx, ok := p.completed.TryPop()
			if !ok {
				break
			}
			p.lockingFinish(tx)
		}

		if tx, ok := p.requests.TryPop(); ok {
			p.admitLocked(tx)
		}
	}
}

// admitLocked attempts to acquire every lock tx needs, in readset-then-
// writeset order (matching admission order, so two transactions racing on
// the same keys always request them in the same relative order and
// therefore never deadlock). On success it dispatches tx to the pool. On
// failure for a multi-key transaction it releases everything acquired so
// far (including the just-denied request still sitting in its queue) and
// restarts tx with a fresh unique ID; a single-key transaction is instead
// left to wait in place and a goroutine parks on its grant channel so the
// scheduler loop itself never blocks.
func (p *TxnProcessor) admitLocked(tx *Tx) {
	locker := p.locker()
	degenerate := len(tx.ReadSet)+len(tx.WriteSet) == 1

	var acquired []lock.Key
	denied := false
	var deniedWait <-chan struct{}
	var deniedKey lock.Key

	for _, k := range tx.ReadSet {
		if slices.Contains(tx.WriteSet, k) {
			// The write lock taken below covers this read; requesting both
			// would queue tx behind its own read lock.
			continue
		}
		lk := lock.Key(k)
		granted, wait := locker.ReadLock(lk, tx.UniqueID)
		if !granted {
			denied, deniedWait, deniedKey = true, wait, lk
			break
		}
		acquired = append(acquired, lk)
	}
	if !denied {
		for _, k := range tx.WriteSet {
			lk := lock.Key(k)
			granted, wait := locker.WriteLock(lk, tx.UniqueID)
			if !granted {
				denied, deniedWait, deniedKey = true, wait, lk
				break
			}
			acquired = append(acquired, lk)
		}
	}

	if !denied {
		p.pool.Submit(func() { p.execute(tx) })
		return
	}

	if degenerate {
		go func() {
			<-deniedWait
			p.pool.Submit(func() { p.execute(tx) })
		}()
		return
	}

	for _, k := range acquired {
		locker.Release(k, tx.UniqueID)
	}
	locker.Release(deniedKey, tx.UniqueID)
	p.restart(tx)
}

// lockingFinish applies or discards a completed attempt, releases every
// lock it held (read locks before write locks, matching the reference
// implementation's release order), and publishes the final result.
func (p *TxnProcessor) lockingFinish(tx *Tx) {
	locker := p.locker()
	if tx.Status == StatusCompletedCommit {
		p.apply(tx)
		tx.Status = StatusCommitted
		p.stats.Commit()
	} else {
		tx.Status = StatusAborted
		p.stats.Abort()
	}
	for _, k := range tx.ReadSet {
		locker.Release(lock.Key(k), tx.UniqueID)
	}
	for _, k := range tx.WriteSet {
		locker.Release(lock.Key(k), tx.UniqueID)
	}
	p.results.Push(tx)
}
