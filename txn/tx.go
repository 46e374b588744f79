// Package txn is the library's external surface: construct a
// TxnProcessor for one of seven concurrency-control protocols, submit
// transaction logic through NewTxnRequest, and collect finished
// transactions through GetTxnResult.
package txn

import (
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/strife/internal/storage"
)

// Status is a transaction's place in its lifecycle.
type Status int32

const (
	// StatusIncomplete is the status of a transaction that has not yet
	// finished running its logic.
	StatusIncomplete Status = iota
	// StatusCompletedCommit means Run returned normally and the
	// scheduler has not yet validated/applied the result.
	StatusCompletedCommit
	// StatusCompletedAbort means Run itself chose to abort (e.g. Expect
	// observed a mismatched read).
	StatusCompletedAbort
	// StatusCommitted is terminal: the transaction's writes are visible.
	StatusCommitted
	// StatusAborted is terminal: the transaction's writes never applied.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusIncomplete:
		return "incomplete"
	case StatusCompletedCommit:
		return "completed_commit"
	case StatusCompletedAbort:
		return "completed_abort"
	case StatusCommitted:
		return "committed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Logic is the user-supplied body of a transaction. ReadSet and WriteSet
// declare, up front, every key the transaction will touch; Run executes
// against the buffered values the scheduler has already populated into
// Tx.Reads for every key in ReadSet()∪WriteSet(), and reports the
// transaction's outcome by writing into Tx.Writes and returning a status.
//
// Run may be called more than once for the same logical request: a
// transaction that loses an optimistic validation race, a lock conflict,
// or an MVCC write-check is restarted with a fresh UniqueID and a clean
// Reads/Writes map, and Run is invoked again from scratch. Logic
// implementations must therefore be side-effect free outside of the Tx
// they're given.
type Logic interface {
	ReadSet() []storage.Key
	WriteSet() []storage.Key
	Run(tx *Tx) Status
}

// Tx is one transaction's descriptor: the identity and buffered state a
// scheduler threads through admission, execution and validation. The same
// Tx is reused across restarts — only UniqueID, Reads, Writes, Status and
// OCCStartTime are reset; Logic and the original read/write sets persist.
type Tx struct {
	Logic Logic

	// UniqueID is this attempt's logical timestamp, assigned by the
	// processor when the transaction is (re)admitted to the request
	// queue. It orders MVCC versions and identifies the attempt's lock
	// requests and P-OCC active-set entry; OCC-family validation compares
	// against OCCStartTime, not against this ID.
	UniqueID uint64

	// ReadSet and WriteSet are cached from Logic at construction time so
	// the scheduler never calls into user code more than once per
	// attempt to learn which keys are involved.
	ReadSet  []storage.Key
	WriteSet []storage.Key

	Reads  map[storage.Key]storage.Value
	Writes map[storage.Key]storage.Value

	Status       Status
	OCCStartTime time.Time
	Restarts     int
}

// newTx wraps logic in a fresh descriptor, caching its read/write sets.
// Logic implementations like Put and Expect build their sets from a map,
// whose iteration order Go deliberately randomizes, so the sets are
// sorted here: the locking protocols rely on every transaction acquiring
// a contested key's lock in the same relative order to avoid deadlock,
// and that only holds if the order is canonical to begin with.
func newTx(logic Logic) *Tx {
	readSet := append([]storage.Key(nil), logic.ReadSet()...)
	writeSet := append([]storage.Key(nil), logic.WriteSet()...)
	slices.Sort(readSet)
	slices.Sort(writeSet)
	return &Tx{
		Logic:    logic,
		ReadSet:  readSet,
		WriteSet: writeSet,
	}
}

// reset clears an attempt's buffered state ahead of a restart, leaving
// Logic and the cached read/write sets untouched.
func (t *Tx) reset() {
	t.Reads = nil
	t.Writes = nil
	t.Status = StatusIncomplete
	t.OCCStartTime = time.Time{}
	t.Restarts++
}

// keys returns the union of ReadSet and WriteSet, the set of keys every
// protocol reads into Tx.Reads before calling Run.
func (t *Tx) keys() []storage.Key {
	seen := make(map[storage.Key]struct{}, len(t.ReadSet)+len(t.WriteSet))
	out := make([]storage.Key, 0, len(t.ReadSet)+len(t.WriteSet))
	for _, k := range t.ReadSet {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for _, k := range t.WriteSet {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
