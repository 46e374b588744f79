package txn

import "github.com/dreamware/strife/internal/storage"

// runMVCC drives multi-version timestamp ordering: each transaction's
// unique ID doubles as its timestamp. The read phase locks each key it
// touches just long enough to read the visible version (bumping that
// version's high-water mark), runs the transaction's logic, then locks
// every writeset key again to check that no later reader has already
// observed the version it is about to overwrite before applying writes.
func (p *TxnProcessor) runMVCC() {
	for {
		select {
		case <-p.done:
			return
		default:
		}
		if tx, ok := p.requests.TryPop(); ok {
			p.pool.Submit(func() { p.executeMVCC(tx) })
		}
	}
}

func (p *TxnProcessor) executeMVCC(tx *Tx) {
	tx.Reads = make(map[storage.Key]storage.Value, len(tx.ReadSet)+len(tx.WriteSet))
	tx.Writes = make(map[storage.Key]storage.Value, len(tx.WriteSet))

	for _, k := range tx.keys() {
		p.storage.Lock(k)
		v, _ := p.storage.Read(k, tx.UniqueID)
		p.storage.Unlock(k)
		tx.Reads[k] = v
	}

	tx.Status = tx.Logic.Run(tx)
	if tx.Status != StatusCompletedCommit {
		tx.Status = StatusAborted
		p.stats.Abort()
		p.results.Push(tx)
		return
	}

	for _, k := range tx.WriteSet {
		p.storage.Lock(k)
	}

	ok := true
	for _, k := range tx.WriteSet {
		if !p.storage.CheckWrite(k, tx.UniqueID) {
			ok = false
			break
		}
	}
	if ok {
		p.apply(tx)
	}
	for _, k := range tx.WriteSet {
		p.storage.Unlock(k)
	}

	if !ok {
		p.restart(tx)
		return
	}
	tx.Status = StatusCommitted
	p.stats.Commit()
	p.results.Push(tx)
}
