package txn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/strife/internal/storage"
)

// waitResult polls GetTxnResult on a goroutine so a processor bug that
// never produces a result fails the test instead of hanging it forever.
func waitResult(t *testing.T, p *TxnProcessor, timeout time.Duration) *Tx {
	t.Helper()
	ch := make(chan *Tx, 1)
	go func() { ch <- p.GetTxnResult() }()
	select {
	case tx := <-ch:
		return tx
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a transaction result")
		return nil
	}
}

func newTestProcessor(t *testing.T, mode Mode, opts ...Option) *TxnProcessor {
	t.Helper()
	opts = append([]Option{WithPinning(false), WithWorkers(4)}, opts...)
	p, err := NewTxnProcessor(mode, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func runModes(t *testing.T) []Mode {
	return []Mode{Serial, LockingExclusiveOnly, Locking, OCC, ParallelOCC, MVCC}
}

// TestPutThenExpectAcrossModes writes a value and then reads it back
// through Expect, for every non-Strife protocol. Strife is exercised
// separately since it batches rather than executing one request at a time.
func TestPutThenExpectAcrossModes(t *testing.T) {
	for _, mode := range runModes(t) {
		mode := mode
		t.Run(mode.String(), func(t *testing.T) {
			p := newTestProcessor(t, mode)

			require.NoError(t, p.NewTxnRequest(Put{Values: map[storage.Key]storage.Value{1: 42}}))
			put := waitResult(t, p, time.Second)
			require.Equal(t, StatusCommitted, put.Status)

			require.NoError(t, p.NewTxnRequest(Expect{Values: map[storage.Key]storage.Value{1: 42}}))
			exp := waitResult(t, p, time.Second)
			require.Equal(t, StatusCommitted, exp.Status)
		})
	}
}

// TestExpectMismatchAborts checks that a failed Expect never reaches
// StatusCommitted for any protocol; Serial and the 2PL protocols never
// restart a logic-level abort, so it should surface as Aborted directly.
func TestExpectMismatchAborts(t *testing.T) {
	for _, mode := range []Mode{Serial, LockingExclusiveOnly, Locking} {
		mode := mode
		t.Run(mode.String(), func(t *testing.T) {
			p := newTestProcessor(t, mode)

			require.NoError(t, p.NewTxnRequest(Expect{Values: map[storage.Key]storage.Value{7: 99}}))
			tx := waitResult(t, p, time.Second)
			require.Equal(t, StatusAborted, tx.Status)
		})
	}
}

// TestLockingSerializesConflictingWrites submits two RMW transactions over
// the same key under 2PL-X and checks both eventually commit with the
// increments applied in some serial order (final value is deterministic
// regardless of order since RMW reads-then-adds).
func TestLockingSerializesConflictingWrites(t *testing.T) {
	p := newTestProcessor(t, LockingExclusiveOnly)

	require.NoError(t, p.NewTxnRequest(RMW{Keys: []storage.Key{1}, Delta: 1}))
	require.NoError(t, p.NewTxnRequest(RMW{Keys: []storage.Key{1}, Delta: 1}))

	first := waitResult(t, p, time.Second)
	second := waitResult(t, p, time.Second)
	require.Equal(t, StatusCommitted, first.Status)
	require.Equal(t, StatusCommitted, second.Status)

	require.NoError(t, p.NewTxnRequest(Expect{Values: map[storage.Key]storage.Value{1: 2}}))
	exp := waitResult(t, p, time.Second)
	require.Equal(t, StatusCommitted, exp.Status)
}

// TestMVCCReadSeesCommittedValue checks that under MVCC a reader admitted
// after a committed write sees that write's version.
func TestMVCCReadSeesCommittedValue(t *testing.T) {
	p := newTestProcessor(t, MVCC)

	require.NoError(t, p.NewTxnRequest(Put{Values: map[storage.Key]storage.Value{1: 10}}))
	first := waitResult(t, p, time.Second)
	require.Equal(t, StatusCommitted, first.Status)

	require.NoError(t, p.NewTxnRequest(Expect{Values: map[storage.Key]storage.Value{1: 10}}))
	exp := waitResult(t, p, time.Second)
	require.Equal(t, StatusCommitted, exp.Status)
}

// TestParallelOCCDisjointWritesBothCommit checks that two transactions
// touching disjoint keys both commit without forcing either to restart,
// the headline benefit of validating in parallel against an active set.
func TestParallelOCCDisjointWritesBothCommit(t *testing.T) {
	p := newTestProcessor(t, ParallelOCC, WithWorkers(2))

	require.NoError(t, p.NewTxnRequest(Put{Values: map[storage.Key]storage.Value{1: 1}}))
	require.NoError(t, p.NewTxnRequest(Put{Values: map[storage.Key]storage.Value{2: 2}}))

	a := waitResult(t, p, time.Second)
	b := waitResult(t, p, time.Second)
	require.Equal(t, StatusCommitted, a.Status)
	require.Equal(t, StatusCommitted, b.Status)
	require.Equal(t, int64(0), p.Stats().Restarted)
}

// TestStrifeBatchCommits exercises the full clustering pipeline end to end
// with a short batch window: disjoint single-key puts should all commit,
// whether they land in a conflict-free cluster or the residual queue.
func TestStrifeBatchCommits(t *testing.T) {
	p := newTestProcessor(t, Strife, WithBatchWindow(2*time.Millisecond), WithK(4))

	const n = 8
	for i := storage.Key(0); i < n; i++ {
		require.NoError(t, p.NewTxnRequest(Put{Values: map[storage.Key]storage.Value{i: storage.Value(i)}}))
	}

	seen := 0
	for seen < n {
		tx := waitResult(t, p, 2*time.Second)
		require.Equal(t, StatusCommitted, tx.Status)
		seen++
	}
}

// TestRestartClearsPriorAttemptState checks Tx.reset's contract directly:
// Reads/Writes clear, Status returns to Incomplete, Restarts increments,
// UniqueID is left for the processor to reassign, and the cached key sets
// survive untouched.
func TestRestartClearsPriorAttemptState(t *testing.T) {
	logic := Put{Values: map[storage.Key]storage.Value{1: 1}}
	tx := newTx(logic)
	tx.UniqueID = 5
	tx.Reads = map[storage.Key]storage.Value{1: 1}
	tx.Writes = map[storage.Key]storage.Value{1: 1}
	tx.Status = StatusCompletedAbort

	tx.reset()

	require.Nil(t, tx.Reads)
	require.Nil(t, tx.Writes)
	require.Equal(t, StatusIncomplete, tx.Status)
	require.Equal(t, 1, tx.Restarts)
	require.Equal(t, uint64(5), tx.UniqueID) // reset itself doesn't reassign; the processor does
	require.Equal(t, []storage.Key{1}, tx.WriteSet)
}

func TestTxKeysDedupesReadAndWriteSets(t *testing.T) {
	tx := newTx(RMW{Keys: []storage.Key{1, 2}, Delta: 1})
	require.ElementsMatch(t, []storage.Key{1, 2}, tx.keys())
}

func TestStatsCountsCommitsAndAborts(t *testing.T) {
	p := newTestProcessor(t, Serial)

	require.NoError(t, p.NewTxnRequest(Put{Values: map[storage.Key]storage.Value{1: 1}}))
	waitResult(t, p, time.Second)

	require.NoError(t, p.NewTxnRequest(Expect{Values: map[storage.Key]storage.Value{1: 99}}))
	waitResult(t, p, time.Second)

	snap := p.Stats()
	require.Equal(t, int64(1), snap.Committed)
	require.Equal(t, int64(1), snap.Aborted)
}

func TestNewTxnProcessorRejectsInvalidMode(t *testing.T) {
	_, err := NewTxnProcessor(Mode(99))
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestNewTxnRequestAfterCloseFails(t *testing.T) {
	p := newTestProcessor(t, Serial)
	p.Close()
	err := p.NewTxnRequest(Noop{})
	require.ErrorIs(t, err, ErrClosed)
}
