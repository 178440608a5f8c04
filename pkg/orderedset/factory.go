// pkg/orderedset/factory.go
package orderedset

import (
	"cst/pkg/coarsetree"
	"cst/pkg/finetree"
	"cst/pkg/lockfreetree"
	"cst/pkg/reclaim"
)

// Algorithm selects which tree implementation a Factory builds.
type Algorithm int

const (
	// Coarse is the single-mutex baseline/oracle tree.
	Coarse Algorithm = iota
	// FineGrained is the per-node-lock, rotation-based-deletion tree.
	FineGrained
	// LockFree is the external-BST, flag/tag CAS tree.
	LockFree
)

// String renders the algorithm name, matching the -a flag values used by
// cmd/cbench (0=coarse, 1=fine-grained, 2=lock-free).
func (a Algorithm) String() string {
	switch a {
	case Coarse:
		return "coarse"
	case FineGrained:
		return "fine-grained"
	case LockFree:
		return "lock-free"
	default:
		return "unknown"
	}
}

// Factory constructs Set[K] instances of a configured algorithm, sharing
// one reclamation service across trees that need one (fine-grained and
// lock-free). Coarse-grained ignores the reclamation service entirely —
// its single mutex makes reclamation unnecessary.
type Factory[K Ordered] struct {
	algo Algorithm
	rec  *reclaim.Service
}

// NewFactory creates a factory for the given algorithm. rec may be nil
// when algo is Coarse.
func NewFactory[K Ordered](algo Algorithm, rec *reclaim.Service) *Factory[K] {
	return &Factory[K]{algo: algo, rec: rec}
}

// New constructs a new, empty Set[K] of the factory's configured algorithm.
func (f *Factory[K]) New() Set[K] {
	return New[K](f.algo, f.rec)
}

// Algorithm returns the factory's configured algorithm.
func (f *Factory[K]) Algorithm() Algorithm {
	return f.algo
}

// New constructs a Set[K] directly, without a Factory. rec is required
// (non-nil) for FineGrained and LockFree, and ignored for Coarse.
func New[K Ordered](algo Algorithm, rec *reclaim.Service) Set[K] {
	switch algo {
	case FineGrained:
		return finetree.New[K](rec)
	case LockFree:
		return lockfreetree.New[K](rec)
	default:
		return coarsetree.New[K]()
	}
}
