// pkg/lockfreetree/tree.go
// Package lockfreetree implements the lock-free external-BST ordered
// set: keys live only in leaves, internal nodes carry routing keys and
// CAS'able child edges, and deletion is a two-phase flag-then-cleanup
// protocol in which any writer that runs into a flagged or tagged edge
// helps finish that deletion before retrying its own operation — the
// property that gives the tree system-wide (lock-free) progress.
//
// Grounded on _examples/mjm918-tur/pkg/cowbtree/cowbtree.go's atomic
// root CAS and pkg/cowbtree/node.go's atomic child-pointer fields,
// generalized from a single whole-root CAS to per-edge CAS carrying
// flag/tag state.
package lockfreetree

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"

	"cst/pkg/reclaim"
)

// Tree is the lock-free external-BST ordered set.
type Tree[K constraints.Ordered] struct {
	root *lfNode[K] // permanent sentinel, key INF1
	rec  *reclaim.Service
	size int64 // atomic
}

// New creates an empty lock-free tree, seeded with the three permanent
// sentinel leaves (INF0, INF1, INF2) spec.md requires so seek always
// finds a real ancestor and successor. rec must not be nil.
func New[K constraints.Ordered](rec *reclaim.Service) *Tree[K] {
	return &Tree[K]{root: newSentinelShape[K](), rec: rec}
}

func newSentinelShape[K constraints.Ordered]() *lfNode[K] {
	inf0 := skey[K]{tier: tierInf0}
	inf1 := skey[K]{tier: tierInf1}
	inf2 := skey[K]{tier: tierInf2}

	s := newInternal(inf0, newLeaf[K](inf0), newLeaf[K](inf1))
	return newInternal(inf1, s, newLeaf[K](inf2))
}

// SetThreadCount fixes the number of threads that may register.
func (t *Tree[K]) SetThreadCount(n int) { t.rec.SetThreadCount(n) }

// RegisterThread binds tid for use in Insert/Erase/Find.
func (t *Tree[K]) RegisterThread(tid int) { t.rec.RegisterThread(tid) }

// seekRecord is the bookkeeping seek hands back: the last "ancestor,
// successor" pair whose connecting edge was untagged when observed
// (used by cleanup to reattach a subtree), and the final parent/leaf
// pair (used by insert/erase to CAS the edge immediately above the
// target leaf). The *Edge fields are the exact immutable values loaded
// during the walk, so a CAS's old-value argument is the very pointer
// that was read, not a freshly-constructed equal value.
type seekRecord[K constraints.Ordered] struct {
	ancestor     *lfNode[K]
	ancestorDir  direction
	ancestorEdge *edge[K]

	parent     *lfNode[K]
	parentDir  direction
	parentEdge *edge[K]

	leaf *lfNode[K]
}

// seek walks from the root toward k, tracking the last untagged
// ancestor/successor pair alongside the immediate parent/leaf pair.
//
// At the top of each step, parent/parentEdge/leaf already describe the
// edge just traversed to reach the current position. If that edge was
// not tagged when loaded, it becomes the new (ancestor, successor)
// candidate; the walk then always advances parent to leaf and leaf to
// the child chosen by comparing k against leaf's routing key.
func (t *Tree[K]) seek(k skey[K]) seekRecord[K] {
	parentDir := t.root.directionFor(k)
	parentEdge := t.root.slot(parentDir).Load()
	parent := t.root
	leaf := parentEdge.node

	ancestor := t.root
	ancestorDir := parentDir
	ancestorEdge := parentEdge

	for !leaf.isLeaf {
		if !parentEdge.tag {
			ancestor = parent
			ancestorDir = parentDir
			ancestorEdge = parentEdge
		}
		dir := leaf.directionFor(k)
		e := leaf.slot(dir).Load()
		parent = leaf
		parentDir = dir
		parentEdge = e
		leaf = e.node
	}

	return seekRecord[K]{
		ancestor: ancestor, ancestorDir: ancestorDir, ancestorEdge: ancestorEdge,
		parent: parent, parentDir: parentDir, parentEdge: parentEdge,
		leaf: leaf,
	}
}

// helpIfObstructed checks whether the edge a failed CAS just observed
// belongs to an in-progress deletion of rec.leaf, and if so, helps
// finish it via cleanup before the caller retries its own operation.
// This is what gives the tree lock-freedom: no writer can be starved
// forever by another writer's half-finished delete. g is the caller's
// own already-open reclamation guard; cleanup retires through it rather
// than opening a nested guard, which would deadlock against the very
// round it could trigger (the caller's own in-flight slot would never
// look quiescent to itself).
func (t *Tree[K]) helpIfObstructed(g *reclaim.Guard, rec seekRecord[K]) {
	cur := rec.parent.slot(rec.parentDir).Load()
	if cur != nil && cur.node == rec.leaf && (cur.flag || cur.tag) {
		t.cleanup(g, rec)
	}
}

// Insert adds k if absent.
func (t *Tree[K]) Insert(tid int, k K) bool {
	g := t.rec.Enter(tid)
	defer g.Exit()

	target := realKey(k)
	for {
		rec := t.seek(target)
		if rec.leaf.key.equal(target) {
			return false
		}

		newLeaf := newLeaf[K](target)
		var lo, hi *lfNode[K]
		var routeKey skey[K]
		if rec.leaf.key.less(target) {
			lo, hi = rec.leaf, newLeaf
			routeKey = target
		} else {
			lo, hi = newLeaf, rec.leaf
			routeKey = rec.leaf.key
		}
		newInner := newInternal(routeKey, lo, hi)

		slot := rec.parent.slot(rec.parentDir)
		if slot.CompareAndSwap(rec.parentEdge, &edge[K]{node: newInner}) {
			atomic.AddInt64(&t.size, 1)
			return true
		}
		t.helpIfObstructed(g, rec)
	}
}

// Find reports whether k is present. find never helps a concurrent
// deletion along the way — it observes a linearizable snapshot of the
// path and doesn't need to.
func (t *Tree[K]) Find(tid int, k K) bool {
	g := t.rec.Enter(tid)
	defer g.Exit()

	target := realKey(k)
	rec := t.seek(target)
	return rec.leaf.key.equal(target)
}

// Erase removes k if present, via the injection-then-cleanup protocol:
// injection flags the parent->leaf edge so concurrent helpers recognize
// the deletion in progress; cleanup unlinks the flagged leaf and its
// parent by reattaching the parent's sibling subtree directly under the
// nearest untagged ancestor.
func (t *Tree[K]) Erase(tid int, k K) {
	g := t.rec.Enter(tid)
	defer g.Exit()

	target := realKey(k)
	const (
		modeInjection = iota
		modeCleanup
	)
	mode := modeInjection
	var injected *lfNode[K]

	for {
		rec := t.seek(target)

		if mode == modeInjection {
			if !rec.leaf.key.equal(target) {
				return
			}
			slot := rec.parent.slot(rec.parentDir)
			flagged := &edge[K]{node: rec.leaf, flag: true, tag: rec.parentEdge.tag}
			if slot.CompareAndSwap(rec.parentEdge, flagged) {
				injected = rec.leaf
				mode = modeCleanup
				if t.cleanup(g, rec) {
					return
				}
				continue
			}
			t.helpIfObstructed(g, rec)
			continue
		}

		// modeCleanup: if the seek no longer lands on the leaf we
		// flagged, someone else already finished unlinking it for us.
		if rec.leaf != injected {
			return
		}
		if t.cleanup(g, rec) {
			return
		}
	}
}

// cleanup performs the second phase of a deletion: it tags the sibling
// of the flagged leaf's parent slot, then CASes the tagged sibling
// directly into the nearest ancestor's edge, bypassing both the flagged
// leaf and its parent. Returns true on success (caller may stop
// retrying); false means another thread changed something underneath
// and the caller should re-seek and retry.
func (t *Tree[K]) cleanup(g *reclaim.Guard, rec seekRecord[K]) bool {
	siblingDir := rec.parentDir.opposite()
	siblingSlot := rec.parent.slot(siblingDir)
	childSlot := rec.parent.slot(rec.parentDir)

	useSlot := siblingSlot
	useEdge := siblingSlot.Load()
	if childEdge := childSlot.Load(); childEdge == nil || !childEdge.flag {
		// The child this cleanup call expected to find flagged isn't —
		// this call doesn't own the deletion it thinks it does. Retarget
		// onto the child slot instead of returning early: the CAS below
		// will simply fail against this path's stale state.
		useSlot = childSlot
		useEdge = childEdge
	}
	if useEdge == nil {
		return false
	}

	tagged := &edge[K]{node: useEdge.node, flag: useEdge.flag, tag: true}
	if !useSlot.CompareAndSwap(useEdge, tagged) {
		reloaded := useSlot.Load()
		if reloaded == nil || !reloaded.tag {
			return false
		}
		tagged = reloaded
	}

	replacement := &edge[K]{node: tagged.node, flag: tagged.flag, tag: false}
	ancestorSlot := rec.ancestor.slot(rec.ancestorDir)
	if ancestorSlot.CompareAndSwap(rec.ancestorEdge, replacement) {
		g.Retire(rec.parent)
		g.Retire(rec.leaf)
		atomic.AddInt64(&t.size, -1)
		return true
	}
	return false
}

// Size returns the cached key count.
func (t *Tree[K]) Size() int {
	return int(atomic.LoadInt64(&t.size))
}

// Clear restores the empty three-sentinel state. Not safe to run
// concurrently with any other operation on this tree — spec.md leaves
// concurrent clear undefined and this tree inherits that.
func (t *Tree[K]) Clear() {
	t.root = newSentinelShape[K]()
	atomic.StoreInt64(&t.size, 0)
}
