// pkg/coarsetree/tree.go
// Package coarsetree implements the single-mutex ordered-set baseline:
// a plain unbalanced binary search tree guarded by one sync.Mutex.
//
// It exists as a deadlock-free correctness oracle for the fine-grained
// and lock-free trees, not as a performance target — see
// _examples/other_examples/9a63252b_rohandhamapurkar-stock-simulator__exchange-concurrent_bst.go.go
// for the RWMutex-guarded-BST idiom this generalizes (dropping its AVL
// rebalancing, since adversarial key orders producing linear depth is
// intentional here).
package coarsetree

import (
	"sync"
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

type node[K constraints.Ordered] struct {
	key         K
	left, right *node[K]
}

// Tree is a single-mutex unbalanced binary search tree.
type Tree[K constraints.Ordered] struct {
	mu   sync.Mutex
	root *node[K]
	size int64 // atomic
}

// New creates an empty coarse-grained tree.
func New[K constraints.Ordered]() *Tree[K] {
	return &Tree[K]{}
}

// SetThreadCount is a no-op: the coarse tree has no per-thread state.
func (t *Tree[K]) SetThreadCount(int) {}

// RegisterThread is a no-op: the coarse tree has no per-thread state.
func (t *Tree[K]) RegisterThread(int) {}

// Insert adds k if absent. tid is ignored.
func (t *Tree[K]) Insert(_ int, k K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	inserted := false
	t.root, inserted = insertNode(t.root, k)
	if inserted {
		atomic.AddInt64(&t.size, 1)
	}
	return inserted
}

func insertNode[K constraints.Ordered](n *node[K], k K) (*node[K], bool) {
	if n == nil {
		return &node[K]{key: k}, true
	}
	switch {
	case k < n.key:
		var ok bool
		n.left, ok = insertNode(n.left, k)
		return n, ok
	case k > n.key:
		var ok bool
		n.right, ok = insertNode(n.right, k)
		return n, ok
	default:
		return n, false
	}
}

// Find reports whether k is present. tid is ignored.
func (t *Tree[K]) Find(_ int, k K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.root
	for n != nil {
		switch {
		case k < n.key:
			n = n.left
		case k > n.key:
			n = n.right
		default:
			return true
		}
	}
	return false
}

// Erase removes k if present. tid is ignored. No-op if absent.
func (t *Tree[K]) Erase(_ int, k K) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed bool
	t.root, removed = eraseNode(t.root, k)
	if removed {
		atomic.AddInt64(&t.size, -1)
	}
}

// eraseNode removes k: a node with two children takes the largest key in
// its left subtree (its in-order predecessor), which is then removed from
// that subtree; a node with at most one child is replaced by that child.
func eraseNode[K constraints.Ordered](n *node[K], k K) (*node[K], bool) {
	if n == nil {
		return nil, false
	}
	switch {
	case k < n.key:
		var ok bool
		n.left, ok = eraseNode(n.left, k)
		return n, ok
	case k > n.key:
		var ok bool
		n.right, ok = eraseNode(n.right, k)
		return n, ok
	default:
		switch {
		case n.left == nil:
			return n.right, true
		case n.right == nil:
			return n.left, true
		default:
			pred := maxNode(n.left)
			n.key = pred.key
			n.left, _ = eraseNode(n.left, pred.key)
			return n, true
		}
	}
}

func maxNode[K constraints.Ordered](n *node[K]) *node[K] {
	for n.right != nil {
		n = n.right
	}
	return n
}

// Size returns the cached key count.
func (t *Tree[K]) Size() int {
	return int(atomic.LoadInt64(&t.size))
}

// Clear restores the empty state. Not safe to run concurrently with any
// other operation on this tree.
func (t *Tree[K]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = nil
	atomic.StoreInt64(&t.size, 0)
}
