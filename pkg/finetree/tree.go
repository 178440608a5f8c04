// pkg/finetree/tree.go
// Package finetree implements the fine-grained, per-node-lock ordered
// set: a permanent sentinel root, locate-and-latch traversal with
// lock-then-validate, and deletion-by-rotation (DBR) reducing arbitrary
// removals to the no-left-child case via repeated copy-on-rotate.
//
// Writers always lock top-down (a node, then only freshly allocated
// replacement nodes it creates) and never hold more than the
// current lock-chain at once, which is what makes the tree deadlock-free
// without a wait-for-graph detector — see
// _examples/mjm918-tur/pkg/mvcc/deadlock.go for the kind of detector
// this discipline makes unnecessary.
package finetree

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"

	"cst/pkg/reclaim"
)

// Tree is the fine-grained ordered set.
type Tree[K constraints.Ordered] struct {
	root *node[K] // permanent sentinel; its one child subtree holds all real keys
	rec  *reclaim.Service
	size int64 // atomic
}

// New creates an empty fine-grained tree using rec for reclamation. rec
// must not be nil.
func New[K constraints.Ordered](rec *reclaim.Service) *Tree[K] {
	return &Tree[K]{root: newSentinel[K](), rec: rec}
}

// SetThreadCount fixes the number of threads that may register.
func (t *Tree[K]) SetThreadCount(n int) { t.rec.SetThreadCount(n) }

// RegisterThread binds tid for use in Insert/Erase/Find.
func (t *Tree[K]) RegisterThread(tid int) { t.rec.RegisterThread(tid) }

// locateResult is what locate-and-latch hands back: the locked node f and
// the direction d such that f.childAt(d) is either nil or the node whose
// key equals the search key.
type locateResult[K constraints.Ordered] struct {
	f *node[K]
	d direction
}

// locateAndLatch implements find_helper: descend choosing left/right by
// comparison, then lock the node whose chosen child is nil or matches k,
// and validate — if the node went blue, restart from its back link; if
// the chosen child changed since the unlocked read, restart from the
// same node. Returns with f locked.
//
// cur is checked for blueness at the top of every descent step, not just
// at the lock-candidate step: a node can go blue (and pick up a
// self-loop on one child, per dbr's base case) while a reader is
// unlocked and already sitting on it, and that self-loop would otherwise
// make the loop re-read the very same node forever.
func (t *Tree[K]) locateAndLatch(k K) locateResult[K] {
	cur := t.root
	for {
		if cur.isBlue() {
			cur = cur.backPtr()
			continue
		}
		d := left
		if !goLeft(cur, k) {
			d = right
		}
		observed := cur.childAt(d)
		if observed == nil || (!observed.sentinel && observed.key == k) {
			cur.mu.Lock()
			if cur.isBlue() {
				cur.mu.Unlock()
				cur = cur.backPtr()
				continue
			}
			if cur.childAt(d) != observed {
				cur.mu.Unlock()
				continue
			}
			return locateResult[K]{f: cur, d: d}
		}
		cur = observed
	}
}

// Insert adds k if absent. Every operation briefly blocks on the
// reclamation gate at entry (spec.md §5), which is what makes it safe
// for a concurrent reclamation round to free a blue node: nothing can
// be mid-traversal over it without being counted in-flight.
func (t *Tree[K]) Insert(tid int, k K) bool {
	g := t.rec.Enter(tid)
	defer g.Exit()

	loc := t.locateAndLatch(k)
	defer loc.f.mu.Unlock()

	if loc.f.childAt(loc.d) != nil {
		return false
	}
	loc.f.setChild(loc.d, newNode(k))
	atomic.AddInt64(&t.size, 1)
	return true
}

// Find reports whether k is present.
func (t *Tree[K]) Find(tid int, k K) bool {
	g := t.rec.Enter(tid)
	defer g.Exit()

	loc := t.locateAndLatch(k)
	s := loc.f.childAt(loc.d)
	loc.f.mu.Unlock()
	return s != nil
}

// Erase removes k if present.
func (t *Tree[K]) Erase(tid int, k K) {
	g := t.rec.Enter(tid)
	defer g.Exit()

	loc := t.locateAndLatch(k)
	s := loc.f.childAt(loc.d)
	if s == nil {
		loc.f.mu.Unlock()
		return
	}
	s.mu.Lock()
	t.dbr(g, loc.f, loc.d)
	atomic.AddInt64(&t.size, -1)
}

// dbr is deletion-by-rotation: f and f.childAt(d) are locked on entry. g
// is the caller's own open reclamation guard; dbr retires through it
// rather than opening a nested guard, which would deadlock against the
// very round it could trigger.
func (t *Tree[K]) dbr(g *reclaim.Guard, f *node[K], d direction) {
	s := f.childAt(d)

	if s.childAt(left) == nil {
		sr := s.childAt(right)
		f.setChild(d, sr)
		s.setChild(right, s) // self-loop marker
		s.setBack(f)
		s.setBlue()
		f.mu.Unlock()
		s.mu.Unlock()
		g.Retire(s)
		return
	}

	gNode, h := t.rotate(g, f, d, left)

	gNode.mu.Lock()
	h.mu.Lock()

	if h.childAt(left) == nil {
		// h (the pushed-down victim) reduces to the base case on the very
		// next descent, which already unlinks it — there is no shape to
		// restore at this level.
		t.dbr(g, gNode, right)
		return
	}

	t.dbr(g, gNode, right) // first descend

	// Shape restoration: if gNode is still f's child on d and f hasn't
	// itself gone blue underneath us, rotate back so the subtree rooted
	// at f keeps the same shape it would have had without the helper
	// rotation above — only the logically-deleted key is actually gone.
	f.mu.Lock()
	if f.childAt(d) != gNode || f.isBlue() {
		f.mu.Unlock()
		return
	}
	gNode.mu.Lock()
	// rotate unlocks f and gNode (the locked inputs) together with the
	// child of gNode it locks itself; the two nodes it returns are freshly
	// allocated and were never locked.
	t.rotate(g, f, d, right)
}

// rotate performs the copy-on-rotate step used by dbr: a and
// a.childAt(dir1) (=b) must already be locked by the caller. rotate locks
// c = b.childAt(dir2) itself, builds two fresh replacement nodes,
// publishes the new parent with a single child write on a, marks b and c
// blue (b's back link to a, c's to the new parent), unlocks a/b/c
// (including releasing the caller's locks on a and b), and retires b and c.
//
// Returns the two fresh nodes (newParent, newVictim), unlocked:
// newParent takes b's old place at a.childAt(dir1) and holds c's key;
// newVictim holds b's key and sits at newParent.childAt(dir2.opposite()).
func (t *Tree[K]) rotate(g *reclaim.Guard, a *node[K], dir1, dir2 direction) (newParent, newVictim *node[K]) {
	b := a.childAt(dir1)
	c := b.childAt(dir2)
	c.mu.Lock()

	cFar := c.childAt(dir2.opposite())
	cNear := c.childAt(dir2)
	bFar := b.childAt(dir2.opposite())

	newParent = newNode(c.key)
	newVictim = newNode(b.key)

	newVictim.setChild(dir2, cFar)
	newVictim.setChild(dir2.opposite(), bFar)

	newParent.setChild(dir2, cNear)
	newParent.setChild(dir2.opposite(), newVictim)

	a.setChild(dir1, newParent)

	b.setBack(a)
	b.setBlue()
	c.setBack(newParent)
	c.setBlue()

	a.mu.Unlock()
	b.mu.Unlock()
	c.mu.Unlock()

	g.Retire(b)
	g.Retire(c)

	return newParent, newVictim
}

// Size returns the cached key count.
func (t *Tree[K]) Size() int {
	return int(atomic.LoadInt64(&t.size))
}

// Clear restores the empty state. Not safe to run concurrently with any
// other operation on this tree — spec.md leaves concurrent clear
// undefined and this tree inherits that.
func (t *Tree[K]) Clear() {
	t.root.setChild(left, nil)
	t.root.setChild(right, nil)
	atomic.StoreInt64(&t.size, 0)
}
