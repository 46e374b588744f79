package txn

// runOCC drives single-validator optimistic concurrency control:
// transactions execute against storage with no coordination at all, then
// validate one at a time, in the order they complete, against every key
// in their read and write sets. A transaction validates if no key it
// touched has been written since OCCStartTime.
func (p *TxnProcessor) runOCC() {
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
			p.validateOCC(tx)
		}
	}
}

func (p *TxnProcessor) validateOCC(tx *Tx) {
	if tx.Status != StatusCompletedCommit || !p.occValid(tx) {
		if tx.Status == StatusCompletedCommit {
			p.restart(tx)
			return
		}
		tx.Status = StatusAborted
		p.stats.Abort()
		p.results.Push(tx)
		return
	}
	p.apply(tx)
	tx.Status = StatusCommitted
	p.stats.Commit()
	p.results.Push(tx)
}

// occValid reports whether every key tx read or wrote is still unwritten
// since tx.OCCStartTime: true iff no concurrent writer has committed a
// new value for the key after tx began its read phase. tx.UniqueID is an
// admission order, not a commit order, so validation compares against
// the wall-clock start time captured when the transaction's read phase
// began, not against the ID itself.
func (p *TxnProcessor) occValid(tx *Tx) bool {
	for _, k := range tx.keys() {
		if p.storage.Timestamp(k).After(tx.OCCStartTime) {
			return false
		}
	}
	return true
}
