// pkg/finetree/node.go
package finetree

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/exp/constraints"
)

type direction int

const (
	left  direction = 0
	right direction = 1
)

func (d direction) opposite() direction { return 1 - d }

// color marks whether a node is still reachable from the live root
// (white) or has been logically removed and left only reachable via its
// back link (blue).
type color int32

const (
	white color = 0
	blue  color = 1
)

// node is a fine-grained tree node. Every node (including the permanent
// sentinel root) carries its own mutex; children and the back link are
// accessed atomically so readers never need to hold a lock to traverse —
// they lock only for the single validation step described in
// find_helper.
type node[K constraints.Ordered] struct {
	mu sync.Mutex

	key      K
	sentinel bool // true only for the permanent dummy root

	children [2]unsafe.Pointer // *node[K], atomic
	back     unsafe.Pointer    // *node[K], atomic
	col      int32             // color, atomic
}

func newNode[K constraints.Ordered](key K) *node[K] {
	return &node[K]{key: key}
}

func newSentinel[K constraints.Ordered]() *node[K] {
	return &node[K]{sentinel: true}
}

// goLeft reports whether a descent for k should choose n's left child.
// The sentinel root always routes left: it carries no real key so it is
// treated as strictly greater than every K value, resolving spec.md's
// open question about root-sentinel equality without needing a K value
// that compares as "infinite".
func goLeft[K constraints.Ordered](n *node[K], k K) bool {
	if n.sentinel {
		return true
	}
	return k < n.key
}

func (n *node[K]) childAt(d direction) *node[K] {
	p := atomic.LoadPointer(&n.children[d])
	if p == nil {
		return nil
	}
	return (*node[K])(p)
}

func (n *node[K]) setChild(d direction, child *node[K]) {
	atomic.StorePointer(&n.children[d], unsafe.Pointer(child))
}

func (n *node[K]) backPtr() *node[K] {
	p := atomic.LoadPointer(&n.back)
	if p == nil {
		return nil
	}
	return (*node[K])(p)
}

func (n *node[K]) setBack(b *node[K]) {
	atomic.StorePointer(&n.back, unsafe.Pointer(b))
}

func (n *node[K]) isBlue() bool {
	return atomic.LoadInt32(&n.col) == int32(blue)
}

func (n *node[K]) setBlue() {
	atomic.StoreInt32(&n.col, int32(blue))
}
