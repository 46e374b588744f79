package txn

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/dreamware/strife/internal/cluster"
	"github.com/dreamware/strife/internal/storage"
)

// runStrife accumulates incoming requests for cfg.batchWindow, then
// clusters and executes the whole batch before accumulating the next one.
func (p *TxnProcessor) runStrife() {
	var batch []*Tx
	windowStart := time.Now()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		if tx, ok := p.requests.TryPop(); ok {
			batch = append(batch, tx)
		}

		if len(batch) > 0 && time.Since(windowStart) >= p.cfg.batchWindow {
			p.executeBatch(batch)
			batch = nil
			windowStart = time.Now()
		}
	}
}

// executeBatch runs the full seven-phase Strife pipeline: prepare, spot,
// fuse, merge, allocate, conflict-free cluster execution, and residual
// handling for whatever didn't resolve to a single cluster.
func (p *TxnProcessor) executeBatch(batch []*Tx) {
	s := p.strifeStore

	p.strifePrepare(batch)
	// special must be read after strifePrepare has touched every key the
	// batch will use (Node creates a key's cluster node on first touch and
	// raises the address ceiling as it goes) — reading it any earlier
	// leaves every natural root address above the stale ceiling, so spot
	// and fuse would misclassify every natural cluster as already special.
	special := s.Special()
	specials := p.strifeSpot(batch, special)
	p.strifeFuse(batch, special, specials)
	p.strifeMerge(special, specials)
	worklist, residuals := p.strifeAllocate(batch)
	p.strifeConflictFree(worklist)
	p.strifeResidual(residuals)
}

// forEachChunk splits items across up to worker.DefaultSize goroutines
// and blocks until every chunk's fn has returned.
func forEachChunk[T any](items []T, fn func(T)) {
	if len(items) == 0 {
		return
	}
	chunks := 7
	if chunks > len(items) {
		chunks = len(items)
	}
	size := (len(items) + chunks - 1) / chunks

	var wg sync.WaitGroup
	for c := 0; c < chunks; c++ {
		start := c * size
		if start >= len(items) {
			break
		}
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		wg.Add(1)
		go func(slice []T) {
			defer wg.Done()
			for _, item := range slice {
				fn(item)
			}
		}(items[start:end])
	}
	wg.Wait()
}

// strifePrepare resets every key's cluster node that any transaction in
// the batch will touch, undoing the previous batch's clustering.
func (p *TxnProcessor) strifePrepare(batch []*Tx) {
	forEachChunk(batch, func(tx *Tx) {
		for _, k := range tx.keys() {
			p.strifeStore.Node(k).Reset()
		}
	})
}

// strifeSpot samples up to cfg.k transactions and, for each one whose
// writeset touches no cluster already promoted to special, synthesizes a
// fresh special representative and unions the transaction's natural
// writeset clusters into it. This seeds the special clusters that fuse
// and merge will grow.
func (p *TxnProcessor) strifeSpot(batch []*Tx, special uint64) []*cluster.Node {
	k := p.cfg.k
	if k > len(batch) {
		k = len(batch)
	}
	sample := rand.Perm(len(batch))[:k]

	var specials []*cluster.Node
	nextID := 0
	for _, idx := range sample {
		tx := batch[idx]
		roots := rootsOf(p.strifeStore, tx.WriteSet)

		hasSpecial := false
		var natural []*cluster.Node
		for _, r := range roots {
			if r.Address() > special {
				hasSpecial = true
				break
			}
			natural = append(natural, r)
		}
		if hasSpecial || len(natural) == 0 {
			continue
		}

		rep := cluster.NewNode(p.strifeStore.NextAddress(), 0)
		for _, r := range natural {
			cluster.Union(r, rep, special)
		}
		root := cluster.Find(rep)
		root.AddCount(1)
		root.SetID(nextID)
		nextID++
		specials = append(specials, root)
	}
	return specials
}

// strifeFuse runs over every transaction in the batch (not just the
// sampled ones): a transaction whose writeset touches at most one special
// cluster is unioned straight into it (or into one of its natural
// clusters, if it touches none yet); a transaction touching two or more
// special clusters instead records, for every ordered pair, that those
// two clusters were both wanted by the same transaction — fodder for the
// merge step's decision.
func (p *TxnProcessor) strifeFuse(batch []*Tx, special uint64, specials []*cluster.Node) {
	counts := newPairCounts(len(specials))

	forEachChunk(batch, func(tx *Tx) {
		roots := rootsOf(p.strifeStore, tx.WriteSet)
		var s, c []*cluster.Node
		for _, r := range roots {
			if r.Address() > special {
				s = append(s, r)
			} else {
				c = append(c, r)
			}
		}

		switch {
		case len(s) <= 1:
			var rep *cluster.Node
			if len(s) == 1 {
				rep = s[0]
			} else if len(c) > 0 {
				rep = c[0]
			} else {
				return
			}
			for _, r := range c {
				cluster.Union(r, rep, special)
			}
			if len(s) == 1 {
				rep.AddCount(1)
			}
		default:
			for _, c1 := range s {
				for _, c2 := range s {
					if c1 != c2 {
						counts.add(c1.ID(), c2.ID(), 1)
					}
				}
			}
		}
	})

	p.fuseCounts = counts
}

// strifeMerge joins pairs of special clusters whose shared-transaction
// count crosses the α threshold relative to their combined load,
// consolidating clusters that enough transactions want together anyway.
func (p *TxnProcessor) strifeMerge(special uint64, specials []*cluster.Node) {
	if p.fuseCounts == nil {
		return
	}
	for i, c1 := range specials {
		for j, c2 := range specials {
			if i == j {
				continue
			}
			n1 := p.fuseCounts.get(c1.ID(), c2.ID())
			n2 := c1.Count() + c2.Count() + n1
			if n2 > 0 && float64(n1) >= p.cfg.alpha*float64(n2) {
				// Union leaves two special roots apart when given the real
				// ceiling; merge is the one step that joins them, so it
				// passes a ceiling no address can exceed.
				cluster.Union(c1, c2, math.MaxUint64)
			}
		}
	}
	p.fuseCounts = nil
}

// strifeAllocate buckets every transaction by the single cluster its
// whole read/write set resolved to; a transaction whose keys span more
// than one cluster after merge is a residual, handled separately under
// 2PL-SX instead of running lock-free.
func (p *TxnProcessor) strifeAllocate(batch []*Tx) (map[*cluster.Node][]*Tx, []*Tx) {
	var mu sync.Mutex
	worklist := make(map[*cluster.Node][]*Tx)
	var residuals []*Tx

	forEachChunk(batch, func(tx *Tx) {
		roots := rootsOf(p.strifeStore, tx.keys())
		unique := uniqueNodes(roots)

		mu.Lock()
		defer mu.Unlock()
		if len(unique) == 1 {
			worklist[unique[0]] = append(worklist[unique[0]], tx)
		} else {
			residuals = append(residuals, tx)
		}
	})
	return worklist, residuals
}

// strifeConflictFree runs each cluster's worklist sequentially on its own
// goroutine — different clusters never share a key by construction, so
// they may run fully in parallel with each other.
func (p *TxnProcessor) strifeConflictFree(worklist map[*cluster.Node][]*Tx) {
	var wg sync.WaitGroup
	for _, txs := range worklist {
		wg.Add(1)
		go func(txs []*Tx) {
			defer wg.Done()
			for _, tx := range txs {
				p.runOnce(tx)
				p.finish(tx)
			}
		}(txs)
	}
	wg.Wait()
}

// strifeResidual runs every transaction the clustering pass couldn't
// resolve to one cluster through 2PL-SX admission until all of them have
// committed or aborted.
func (p *TxnProcessor) strifeResidual(residuals []*Tx) {
	if len(residuals) == 0 {
		return
	}
	remaining := len(residuals)
	pending := make(map[*Tx]struct{}, len(residuals))
	for _, tx := range residuals {
		pending[tx] = struct{}{}
		p.requests.Push(tx)
	}
	// Requests that arrive while residuals drain belong to the next batch:
	// they are set aside and re-queued afterwards, so only residuals are
	// admitted and counted here.
	var deferred []*Tx
	for remaining > 0 {
		if tx, ok := p.completed.TryPop(); ok {
			p.lockingFinish(tx)
			remaining--
			continue
		}
		if tx, ok := p.requests.TryPop(); ok {
			if _, ok := pending[tx]; ok {
				p.admitLocked(tx)
			} else {
				deferred = append(deferred, tx)
			}
		}
	}
	for _, tx := range deferred {
		p.requests.Push(tx)
	}
}

func rootsOf(s *storage.Strife, keys []storage.Key) []*cluster.Node {
	roots := make([]*cluster.Node, len(keys))
	for i, k := range keys {
		roots[i] = cluster.FindCompress(s.Node(k))
	}
	return roots
}

func uniqueNodes(nodes []*cluster.Node) []*cluster.Node {
	seen := make(map[*cluster.Node]struct{}, len(nodes))
	var out []*cluster.Node
	for _, n := range nodes {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// pairCounts is a mutex-protected, sparse id×id counter grid used by the
// fuse step to record how many transactions wanted a given pair of
// special clusters joined, and by merge to read those counts back.
type pairCounts struct {
	mu     sync.Mutex
	counts map[[2]int]int64
}

func newPairCounts(n int) *pairCounts {
	return &pairCounts{counts: make(map[[2]int]int64, n)}
}

func (p *pairCounts) add(i, j int, delta int64) {
	p.mu.Lock()
	p.counts[[2]int{i, j}] += delta
	p.mu.Unlock()
}

func (p *pairCounts) get(i, j int) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[[2]int{i, j}]
}
