package txn

// runSerial is the baseline scheduler: one transaction executes
// start-to-finish before the next begins, so no protocol is needed to
// reconcile concurrent access at all.
func (p *TxnProcessor) runSerial() {
	for {
		select {
		case <-p.done:
			return
		default:
		}
		tx, ok := p.requests.TryPop()
		if !ok {
			continue
		}
		p.runOnce(tx)
		p.finish(tx)
	}
}

// finish applies a completed transaction's writes if it ran to commit, or
// discards them if Run chose to abort, then publishes the final result.
func (p *TxnProcessor) finish(tx *Tx) {
	if tx.Status == StatusCompletedCommit {
		p.apply(tx)
		tx.Status = StatusCommitted
		p.stats.Commit()
	} else {
		tx.Status = StatusAborted
		p.stats.Abort()
	}
	p.results.Push(tx)
}
