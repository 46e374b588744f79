package txn

import "github.com/dreamware/strife/internal/activeset"

// runParallelOCC drives P-OCC: like OCC, transactions execute with no
// coordination, but validation itself runs in parallel across worker
// goroutines instead of one at a time on the scheduler. Each validator
// additionally checks its own read/write sets against every other
// transaction that was mid-validation when it started — a snapshot taken
// and inserted into the active set under one lock, so no two concurrent
// validators can each believe the other absent.
func (p *TxnProcessor) runParallelOCC() {
	for {
		select {
		case <-p.done:
			return
		default:
		}
		if tx, ok := p.requests.TryPop(); ok {
			p.pool.Submit(func() { p.execute(tx) })
		}
		if tx, ok := p.completed.TryPop(); ok {
			p.pool.Submit(func() { p.validateParallelOCC(tx) })
		}
	}
}

func (p *TxnProcessor) validateParallelOCC(tx *Tx) {
	if tx.Status != StatusCompletedCommit {
		tx.Status = StatusAborted
		p.stats.Abort()
		p.results.Push(tx)
		return
	}

	self := &activeset.Member{
		UniqueID: tx.UniqueID,
		ReadSet:  toUint64(tx.ReadSet),
		WriteSet: toUint64(tx.WriteSet),
	}
	peers := p.active.SnapshotAndInsert(self)

	ok := p.occValid(tx) && disjointFromPeers(self, peers)

	if !ok {
		p.active.Remove(tx.UniqueID)
		p.restart(tx)
		return
	}

	p.apply(tx)
	p.active.Remove(tx.UniqueID)
	tx.Status = StatusCommitted
	p.stats.Commit()
	p.results.Push(tx)
}

// disjointFromPeers reports whether self's writeset shares no key with
// any snapshotted peer's writeset or readset, and self's readset shares
// no key with any peer's writeset — the parallel-validation analogue of
// OCC's "nobody wrote what I read" check, extended to in-flight peers
// whose writes haven't reached storage yet.
func disjointFromPeers(self *activeset.Member, peers []*activeset.Member) bool {
	for _, peer := range peers {
		if intersects(self.WriteSet, peer.WriteSet) ||
			intersects(self.WriteSet, peer.ReadSet) ||
			intersects(self.ReadSet, peer.WriteSet) {
			return false
		}
	}
	return true
}

func intersects(a, b []uint64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[uint64]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func toUint64[T ~uint64](keys []T) []uint64 {
	out := make([]uint64, len(keys))
	for i, k := range keys {
		out[i] = uint64(k)
	}
	return out
}
