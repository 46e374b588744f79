// Package activeset tracks the set of transaction IDs currently mid-flight
// under parallel optimistic validation (P-OCC), giving each validating
// transaction a consistent snapshot of its concurrent peers.
package activeset

import "sync"

// Set is a registry of in-flight transaction unique IDs, protected for
// concurrent access by many worker goroutines at once.
//
// The parallel-OCC validation discipline requires each transaction to take
// a snapshot of every other transaction currently validating, then add
// itself to the set, all without another transaction observing a
// half-updated view. Snapshot and insert must therefore happen under the
// same critical section.
//
// Thread Safety:
// All methods are safe for concurrent use. Snapshot returns a copy; the
// live map is never exposed to callers.
type Set struct {
	mu  sync.Mutex
	ids map[uint64]*Member
}

// Member describes one active transaction's writeset and readset, the two
// pieces of state a concurrent validator needs to check disjointness
// against.
type Member struct {
	UniqueID uint64
	ReadSet  []uint64
	WriteSet []uint64
}

// New returns an empty active-set registry.
func New() *Set {
	return &Set{ids: make(map[uint64]*Member)}
}

// SnapshotAndInsert atomically captures every member currently in the set
// and then inserts self, returning the pre-insertion snapshot. Callers
// validate against the returned slice, never against the live set, so
// that two transactions entering concurrently each see the other absent
// at most once and never see themselves in their own snapshot.
func (s *Set) SnapshotAndInsert(self *Member) []*Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]*Member, 0, len(s.ids))
	for _, m := range s.ids {
		snapshot = append(snapshot, m)
	}
	s.ids[self.UniqueID] = self
	return snapshot
}

// Remove deletes a transaction from the active set once it has committed
// or is about to restart. Removing an ID not present is a no-op.
func (s *Set) Remove(uniqueID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, uniqueID)
}

// Len reports the number of currently active members, mostly useful for
// tests and diagnostics.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
