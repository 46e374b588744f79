// Package cluster implements the lock-coupled, address-ordered union-find
// structure Strife uses to group conflicting transactions before batch
// execution.
//
// Every key in storage owns exactly one Cluster node, initially its own
// parent. As a batch is processed, clusters whose transactions touch the
// same keys are unioned together; by the time a batch reaches execution,
// each connected component can run free of cross-transaction conflicts
// because no two components share a key.
package cluster

import "sync/atomic"

// Node is one element of the union-find forest. Each key in storage is
// backed by exactly one Node, created once at storage initialization and
// never replaced.
//
// Address is a total order over nodes assigned at construction time; it
// stands in for the pointer-value ordering the reference implementation
// uses to avoid union cycles (always attaching the lower-addressed root
// under the higher-addressed one). Nodes promoted to "special" status
// during the spot step get addresses above every naturally assigned
// address, which is what lets the merge step tell natural roots and
// synthetic ones apart with a single comparison.
type Node struct {
	mu      chan struct{} // 1-buffered binary lock; see Lock/Unlock
	parent  atomic.Pointer[Node]
	value   int64
	address uint64
	count   atomic.Int64
	id      int // slot assigned during the spot step; -1 until then
}

// NewNode creates a self-parented node at the given address holding value.
func NewNode(address uint64, value int64) *Node {
	n := &Node{
		mu:      make(chan struct{}, 1),
		value:   value,
		address: address,
		id:      -1,
	}
	n.mu <- struct{}{}
	n.parent.Store(n)
	return n
}

// Lock acquires the node's own mutex. Union holds the higher-addressed
// root's lock while linking the two roots; path compression repoints
// parents by compare-and-swap without taking any node's lock.
func (n *Node) Lock() { <-n.mu }

// Unlock releases the node's own mutex.
func (n *Node) Unlock() { n.mu <- struct{}{} }

// Reset returns the node to a fresh, self-parented state with its
// conflict counter and spot-step slot cleared. Called at the start of
// every batch, before clustering, to undo whatever union the previous
// batch performed.
func (n *Node) Reset() {
	n.Lock()
	n.parent.Store(n)
	n.count.Store(0)
	n.id = -1
	n.Unlock()
}

// Value returns the node's current value under no additional locking;
// callers needing a consistent value must hold the owning cluster's lock
// externally (storage does this).
func (n *Node) Value() int64 { return n.value }

// SetValue overwrites the node's value.
func (n *Node) SetValue(v int64) { n.value = v }

// Address returns the node's total-order address.
func (n *Node) Address() uint64 { return n.address }

// SetAddress reassigns the node's address. The spot step does not call it:
// its representatives get their above-ceiling address from NewNode.
func (n *Node) SetAddress(a uint64) { n.address = a }

// Count returns the node's conflict counter, incremented during the fuse
// and spot steps and consulted by merge's threshold check.
func (n *Node) Count() int64 { return n.count.Load() }

// AddCount atomically adds delta to the node's conflict counter.
func (n *Node) AddCount(delta int64) { n.count.Add(delta) }

// ID returns the node's spot-step slot, or -1 if it was never selected as
// a special representative.
func (n *Node) ID() int { return n.id }

// SetID assigns the node's spot-step slot.
func (n *Node) SetID(id int) { n.id = id }

// compress rewrites every node on the path from rec to root to point
// directly at root, but only where doing so doesn't violate address
// ordering: a node is only repointed if its current parent has a lower
// address than root, which keeps every node always pointing at something
// no lower in address than its current parent.
func compress(rec, root *Node) {
	for rec != root {
		parent := rec.parent.Load()
		if parent.address < root.address {
			rec.parent.CompareAndSwap(parent, root)
		}
		rec = parent
	}
}

// Find returns the representative of r's connected component by walking
// parent links; it does not compress the path (see FindCompress).
func Find(r *Node) *Node {
	for {
		parent := r.parent.Load()
		if parent == r {
			return r
		}
		r = parent
	}
}

// FindCompress is Find followed by path compression back from the
// original node. Callers that will immediately discard r should use Find;
// callers that will look r up again soon should use FindCompress.
func FindCompress(r *Node) *Node {
	root := Find(r)
	compress(r, root)
	return root
}

// Union merges the connected components containing r1 and r2, always
// attaching the lower-addressed root under the higher-addressed one so
// the forest never forms a cycle regardless of union order. Two nodes
// whose roots are both already above special (address greater than
// special) are left untouched — special clusters merge only through the
// merge step's explicit pairwise decision, never incidentally through a
// transaction that happens to touch both.
func Union(r1, r2 *Node, special uint64) {
	for {
		root1 := FindCompress(r1)
		root2 := FindCompress(r2)
		if root1 == root2 {
			return
		}
		if root1.address > special && root2.address > special {
			return
		}

		lo, hi := root1, root2
		if lo.address > hi.address {
			lo, hi = hi, lo
		}

		hi.Lock()
		if lo.parent.Load() == lo && hi.parent.Load() == hi {
			lo.parent.Store(hi)
			hi.Unlock()
			return
		}
		hi.Unlock()
		// Someone else changed one of the roots concurrently; retry.
	}
}
