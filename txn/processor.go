package txn

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/strife/internal/activeset"
	"github.com/dreamware/strife/internal/lock"
	"github.com/dreamware/strife/internal/metrics"
	"github.com/dreamware/strife/internal/queue"
	"github.com/dreamware/strife/internal/storage"
	"github.com/dreamware/strife/internal/worker"
)

// TxnProcessor is the engine's single external entry point: construct one
// with NewTxnProcessor for a given protocol, submit work with
// NewTxnRequest, and collect finished transactions with GetTxnResult.
//
// A TxnProcessor owns one background scheduler goroutine running the
// protocol's admission/execution/validation loop, and a worker pool the
// scheduler dispatches ready transactions onto. Both are torn down by
// Close.
type TxnProcessor struct {
	mode Mode
	cfg  config
	log  zerolog.Logger

	storage     storage.Storage
	strifeStore *storage.Strife
	lockA       *lock.ManagerA
	lockB       *lock.ManagerB
	active      *activeset.Set
	pool        *worker.Pool
	stats       metrics.Counters

	requests  *queue.MPSC[Tx]
	completed *queue.MPSC[Tx]
	results   *queue.MPSC[Tx]

	nextID     atomic.Uint64
	closed     atomic.Bool
	done       chan struct{}
	fuseCounts *pairCounts
}

// NewTxnProcessor constructs and starts a processor running mode's
// protocol. It returns ErrInvalidMode for any value outside the seven
// Mode constants.
func NewTxnProcessor(mode Mode, opts ...Option) (*TxnProcessor, error) {
	if !mode.valid() {
		return nil, ErrInvalidMode
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &TxnProcessor{
		mode:      mode,
		cfg:       cfg,
		log:       newLogger(mode),
		requests:  queue.NewMPSC[Tx](4096),
		completed: queue.NewMPSC[Tx](4096),
		results:   queue.NewMPSC[Tx](4096),
		done:      make(chan struct{}),
	}

	switch mode {
	case Serial, OCC, ParallelOCC:
		p.storage = storage.NewSingleVersion(cfg.storageSize)
	case LockingExclusiveOnly:
		p.storage = storage.NewSingleVersion(cfg.storageSize)
		p.lockA = lock.NewManagerA()
	case Locking:
		p.storage = storage.NewSingleVersion(cfg.storageSize)
		p.lockB = lock.NewManagerB()
	case MVCC:
		p.storage = storage.NewMVCC(cfg.storageSize)
	case Strife:
		strifeStore := storage.NewStrife(cfg.storageSize)
		p.storage = strifeStore
		p.strifeStore = strifeStore
		p.lockB = lock.NewManagerB() // residual queue runs 2PL-SX
	}
	if mode == ParallelOCC {
		p.active = activeset.New()
	}

	workers := cfg.workers
	if workers <= 0 {
		workers = worker.Sizes()
	}
	var cores []int
	if cfg.pinCores {
		for i := 1; i <= workers; i++ { // core 0 reserved for the scheduler goroutine
			cores = append(cores, i)
		}
	}
	p.pool = worker.New(workers, cores)

	p.log.Info().Int("workers", workers).Msg("txn processor starting")
	go p.runScheduler()
	return p, nil
}

// NewTxnRequest submits logic for execution under the processor's
// protocol. It does not block on completion; call GetTxnResult to
// retrieve finished transactions (not necessarily in submission order —
// the protocols reorder, retry and batch work internally).
func (p *TxnProcessor) NewTxnRequest(logic Logic) error {
	if p.closed.Load() {
		return ErrClosed
	}
	tx := newTx(logic)
	tx.UniqueID = p.nextID.Add(1)
	p.requests.Push(tx)
	return nil
}

// GetTxnResult blocks until a transaction finishes and returns it. Its
// Status is always StatusCommitted or StatusAborted.
func (p *TxnProcessor) GetTxnResult() *Tx {
	return p.results.Pop()
}

// Stats returns a point-in-time snapshot of how many transactions this
// processor has committed, aborted, and restarted due to conflicts.
func (p *TxnProcessor) Stats() metrics.Snapshot {
	return p.stats.Snapshot()
}

// Close stops the scheduler goroutine and worker pool. In-flight
// transactions are allowed to finish; queued-but-unadmitted requests are
// dropped.
func (p *TxnProcessor) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.done)
	p.pool.Close()
}

// restart clears tx's buffered attempt state, assigns it a fresh unique
// ID, and re-admits it to the request queue.
func (p *TxnProcessor) restart(tx *Tx) {
	tx.reset()
	tx.UniqueID = p.nextID.Add(1)
	p.stats.Restart()
	p.requests.Push(tx)
}

// runOnce reads every key in tx.keys() into tx.Reads and calls Logic.Run,
// leaving tx.Status as whatever Run returned. It does not publish tx
// anywhere — callers either hand it to the shared completed queue
// (execute) or finish it directly on the same goroutine (Strife's
// conflict-free execution, where no other goroutine will ever touch this
// tx's keys).
func (p *TxnProcessor) runOnce(tx *Tx) {
	tx.OCCStartTime = time.Now()
	tx.Reads = make(map[storage.Key]storage.Value, len(tx.ReadSet)+len(tx.WriteSet))
	tx.Writes = make(map[storage.Key]storage.Value, len(tx.WriteSet))
	for _, k := range tx.keys() {
		v, _ := p.storage.Read(k, tx.UniqueID)
		tx.Reads[k] = v
	}
	tx.Status = tx.Logic.Run(tx)
}

// execute is runOnce followed by publishing the attempt onto the shared
// completed queue, for a scheduler goroutine to validate/apply later.
// completed has exactly one consumer (the scheduler goroutine for this
// processor's mode); only execute, never Strife's direct path, may push
// to it, since lfq's MPSC queue supports multiple producers but only a
// single consumer.
func (p *TxnProcessor) execute(tx *Tx) {
	p.runOnce(tx)
	p.completed.Push(tx)
}

// apply writes every buffered write into storage under tx's unique ID.
func (p *TxnProcessor) apply(tx *Tx) {
	for k, v := range tx.Writes {
		p.storage.Write(k, v, tx.UniqueID)
	}
}

func (p *TxnProcessor) runScheduler() {
	if p.cfg.pinCores {
		worker.Pin(0)
	}
	switch p.mode {
	case Serial:
		p.runSerial()
	case LockingExclusiveOnly, Locking:
		p.runLocking()
	case OCC:
		p.runOCC()
	case ParallelOCC:
		p.runParallelOCC()
	case MVCC:
		p.runMVCC()
	case Strife:
		p.runStrife()
	}
}
