// Package metrics tracks engine-wide transaction outcome counters:
// how many transactions have committed, aborted, or been restarted due to
// a conflict, independent of which protocol produced them.
package metrics

import "sync/atomic"

// Counters holds atomic outcome counts for one TxnProcessor. All methods
// are safe for concurrent use from any number of scheduler and worker
// goroutines.
type Counters struct {
	committed atomic.Int64
	aborted   atomic.Int64
	restarted atomic.Int64
}

// Snapshot is a point-in-time copy of a Counters' values.
type Snapshot struct {
	Committed int64
	Aborted   int64
	Restarted int64
}

// Commit records one committed transaction.
func (c *Counters) Commit() { c.committed.Add(1) }

// Abort records one aborted transaction.
func (c *Counters) Abort() { c.aborted.Add(1) }

// Restart records one conflict-driven restart. A single logical request
// may be restarted many times before it finally commits or aborts; each
// attempt increments this counter once.
func (c *Counters) Restart() { c.restarted.Add(1) }

// Snapshot returns the current counter values. Because the three counters
// are read independently, a snapshot taken concurrently with updates may
// not reflect a single consistent instant — acceptable for monitoring,
// not intended for exact accounting.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Committed: c.committed.Load(),
		Aborted:   c.aborted.Load(),
		Restarted: c.restarted.Load(),
	}
}
