// pkg/lockfreetree/node.go
package lockfreetree

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// tier orders a node's key above or alongside real K values. tier 0 is a
// real key ordered by value; tiers 1-3 are the permanent INF0/INF1/INF2
// sentinels, always greater than any real key and strictly ordered among
// themselves. This is the generic-key stand-in for the "key strictly
// above any user key" sentinels spec.md assumes come for free.
type tier int8

const (
	tierReal tier = 0
	tierInf0 tier = 1
	tierInf1 tier = 2
	tierInf2 tier = 3
)

// skey is a tagged key: a real K value, or one of the three sentinels.
type skey[K constraints.Ordered] struct {
	tier  tier
	value K
}

func realKey[K constraints.Ordered](k K) skey[K] { return skey[K]{tier: tierReal, value: k} }

func (a skey[K]) less(b skey[K]) bool {
	if a.tier != b.tier {
		return a.tier < b.tier
	}
	if a.tier == tierReal {
		return a.value < b.value
	}
	return false
}

func (a skey[K]) equal(b skey[K]) bool {
	if a.tier != b.tier {
		return false
	}
	if a.tier == tierReal {
		return a.value == b.value
	}
	return true
}

type direction int

const (
	left  direction = 0
	right direction = 1
)

func (d direction) opposite() direction { return 1 - d }

// edge is the immutable value carried by a child slot: the child node
// plus the flag bit ("this leaf is being deleted") and the tag bit
// ("this edge is frozen as a helper's sibling"). spec.md packs these
// into the low bits of a raw child pointer; Go's GC forbids treating a
// bare uintptr as a live reference, so the module takes the pointer-
// tagging fallback spec.md itself sanctions for languages that can't do
// that: a small immutable struct behind one atomic.Pointer, which is
// still a single-word CAS at the hardware level.
type edge[K constraints.Ordered] struct {
	node *lfNode[K]
	flag bool
	tag  bool
}

// lfNode is a node of the external BST: internal nodes route on key and
// carry two child edges; leaves carry only a key.
type lfNode[K constraints.Ordered] struct {
	isLeaf bool
	key    skey[K]

	left  atomic.Pointer[edge[K]]
	right atomic.Pointer[edge[K]]
}

func newLeaf[K constraints.Ordered](k skey[K]) *lfNode[K] {
	return &lfNode[K]{isLeaf: true, key: k}
}

func newInternal[K constraints.Ordered](routeKey skey[K], loNode, hiNode *lfNode[K]) *lfNode[K] {
	n := &lfNode[K]{key: routeKey}
	n.left.Store(&edge[K]{node: loNode})
	n.right.Store(&edge[K]{node: hiNode})
	return n
}

func (n *lfNode[K]) slot(d direction) *atomic.Pointer[edge[K]] {
	if d == left {
		return &n.left
	}
	return &n.right
}

// directionFor reports which child a search for k should follow from an
// internal node n.
func (n *lfNode[K]) directionFor(k skey[K]) direction {
	if k.less(n.key) {
		return left
	}
	return right
}
