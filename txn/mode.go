package txn

import "time"

// Mode selects which concurrency-control protocol a TxnProcessor runs.
type Mode int

const (
	Serial Mode = iota
	LockingExclusiveOnly
	Locking
	OCC
	ParallelOCC
	MVCC
	Strife
)

func (m Mode) String() string {
	switch m {
	case Serial:
		return "serial"
	case LockingExclusiveOnly:
		return "locking_exclusive_only"
	case Locking:
		return "locking"
	case OCC:
		return "occ"
	case ParallelOCC:
		return "parallel_occ"
	case MVCC:
		return "mvcc"
	case Strife:
		return "strife"
	default:
		return "unknown"
	}
}

func (m Mode) valid() bool {
	return m >= Serial && m <= Strife
}

// config holds every tunable NewTxnProcessor accepts, defaulted to the
// values the reference implementation uses and adjustable via Option.
type config struct {
	workers     int
	pinCores    bool
	storageSize int

	// Strife-only tunables.
	k           int
	alpha       float64
	batchWindow time.Duration
}

func defaultConfig() config {
	return config{
		workers:     0, // 0 means worker.Sizes()
		pinCores:    true,
		storageSize: 1 << 20,
		k:           32,
		alpha:       0.3,
		batchWindow: 10 * time.Millisecond,
	}
}

// Option configures a TxnProcessor at construction time.
type Option func(*config)

// WithWorkers overrides the worker-pool size; by default it is sized from
// the host's logical core count.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithPinning controls whether the scheduler and worker goroutines
// attempt CPU-affinity pinning. Defaults to true; disable it on platforms
// or sandboxes where SchedSetaffinity is unavailable or undesirable.
func WithPinning(enabled bool) Option {
	return func(c *config) { c.pinCores = enabled }
}

// WithStorageSize hints the initial capacity of the backing storage map.
func WithStorageSize(n int) Option {
	return func(c *config) { c.storageSize = n }
}

// WithK sets Strife's spot-sample size k (reference range 23-50).
func WithK(k int) Option {
	return func(c *config) { c.k = k }
}

// WithAlpha sets Strife's merge threshold α (reference range 0.2-0.5).
func WithAlpha(alpha float64) Option {
	return func(c *config) { c.alpha = alpha }
}

// WithBatchWindow sets how long Strife accumulates incoming requests
// before clustering and executing a batch.
func WithBatchWindow(d time.Duration) Option {
	return func(c *config) { c.batchWindow = d }
}
