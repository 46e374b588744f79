package storage

import (
	"sync"
	"time"

	"github.com/dreamware/strife/internal/cluster"
)

// Strife is the union-find-clustered backend Strife batches execute
// against. Each key owns exactly one cluster.Node; Read and Write talk
// directly to that node's value, holding only that node's own lock for
// the access, since by the time a batch reaches execution every
// transaction's keys have already been grouped into conflict-free
// clusters.
type Strife struct {
	mu       sync.RWMutex
	nodes    map[Key]*cluster.Node
	next     uint64
	special  uint64 // address ceiling separating natural nodes from spot-promoted ones
}

// NewStrife creates an empty clustered store. size is a capacity hint;
// node addresses are assigned sequentially as keys are first touched, so
// Special() only becomes meaningful once the expected key population has
// been materialized (the batch pipeline's prepare step touches every key
// of a batch before it reads Special for exactly this reason).
func NewStrife(size int) *Strife {
	return &Strife{nodes: make(map[Key]*cluster.Node, size)}
}

// Node returns key's cluster node, creating it (self-parented, address
// assigned from the shared sequential counter) on first touch.
func (s *Strife) Node(key Key) *cluster.Node {
	s.mu.RLock()
	n, ok := s.nodes[key]
	s.mu.RUnlock()
	if ok {
		return n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok = s.nodes[key]; ok {
		return n
	}
	s.next++
	n = cluster.NewNode(s.next, 0)
	s.nodes[key] = n
	if s.next > s.special {
		s.special = s.next
	}
	return n
}

// Special returns the address ceiling below which every node is a
// natural, key-backed node and above which every node was synthesized by
// the spot step. Callers must finish touching every key they will ever
// touch (via Node) before calling Special, since it tracks the running
// maximum of naturally assigned addresses.
func (s *Strife) Special() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.special
}

// NextAddress hands out the next address above the special ceiling, for
// the spot step to assign to a freshly synthesized representative node.
func (s *Strife) NextAddress() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.special + s.next
}

// Read returns the value held on key's own node directly — by
// execution time the cluster has already been resolved to a single
// conflict-free owner, so no traversal is needed here; callers resolve
// via cluster.Find themselves when clustering, not when executing.
func (s *Strife) Read(key Key, _ uint64) (Value, bool) {
	n := s.Node(key)
	n.Lock()
	defer n.Unlock()
	return Value(n.Value()), true
}

// Write stores value directly on key's node.
func (s *Strife) Write(key Key, value Value, _ uint64) {
	n := s.Node(key)
	n.Lock()
	defer n.Unlock()
	n.SetValue(int64(value))
}

// Lock is a no-op; Strife's conflict-freedom is established before
// execution by clustering, not by per-operation locking.
func (s *Strife) Lock(Key) {}

// Unlock is a no-op, mirroring Lock.
func (s *Strife) Unlock(Key) {}

// CheckWrite always returns true; Strife never retries a transaction due
// to a storage-level conflict, only residuals (handled by 2PL-SX) can.
func (s *Strife) CheckWrite(Key, uint64) bool { return true }

// Timestamp is unused by the Strife scheduler; it returns the zero
// time.Time.
func (s *Strife) Timestamp(Key) time.Time { return time.Time{} }
