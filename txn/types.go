package txn

import (
	"time"

	"github.com/dreamware/strife/internal/storage"
)

// Noop commits immediately without touching any key. Useful as a
// baseline for measuring pure scheduling overhead.
type Noop struct{}

func (Noop) ReadSet() []storage.Key  { return nil }
func (Noop) WriteSet() []storage.Key { return nil }
func (Noop) Run(tx *Tx) Status        { return StatusCompletedCommit }

// Put writes every pair in Values and commits unconditionally.
type Put struct {
	Values map[storage.Key]storage.Value
}

func (p Put) ReadSet() []storage.Key { return nil }

func (p Put) WriteSet() []storage.Key {
	keys := make([]storage.Key, 0, len(p.Values))
	for k := range p.Values {
		keys = append(keys, k)
	}
	return keys
}

func (p Put) Run(tx *Tx) Status {
	for k, v := range p.Values {
		tx.Writes[k] = v
	}
	return StatusCompletedCommit
}

// Expect reads every key in Values and aborts if any read doesn't match
// the expected value; otherwise it commits having made no writes.
type Expect struct {
	Values map[storage.Key]storage.Value
}

func (e Expect) ReadSet() []storage.Key {
	keys := make([]storage.Key, 0, len(e.Values))
	for k := range e.Values {
		keys = append(keys, k)
	}
	return keys
}

func (e Expect) WriteSet() []storage.Key { return nil }

func (e Expect) Run(tx *Tx) Status {
	for k, want := range e.Values {
		if tx.Reads[k] != want {
			return StatusCompletedAbort
		}
	}
	return StatusCompletedCommit
}

// RMW reads and increments every key in Keys by Delta. BusyWork, if
// non-zero, is spun through (pure CPU work, not a sleep) before the
// increments are applied, simulating a transaction with nontrivial user
// logic duration for latency/restart-rate experiments.
type RMW struct {
	Keys      []storage.Key
	Delta     storage.Value
	BusyWork  time.Duration
}

// WithBusyWork returns a copy of r with BusyWork set to d.
func (r RMW) WithBusyWork(d time.Duration) RMW {
	r.BusyWork = d
	return r
}

func (r RMW) ReadSet() []storage.Key  { return r.Keys }
func (r RMW) WriteSet() []storage.Key { return r.Keys }

func (r RMW) Run(tx *Tx) Status {
	if r.BusyWork > 0 {
		spin(r.BusyWork)
	}
	for _, k := range r.Keys {
		tx.Writes[k] = tx.Reads[k] + r.Delta
	}
	return StatusCompletedCommit
}

// spin busies the calling goroutine for roughly d, used by RMW.BusyWork
// to simulate CPU-bound user logic without yielding to the scheduler the
// way time.Sleep would.
func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
