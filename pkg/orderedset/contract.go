// pkg/orderedset/contract.go
// Package orderedset defines the polymorphic ordered-set surface shared
// by the coarse-grained, fine-grained, and lock-free trees, and a factory
// for constructing whichever variant is wanted.
package orderedset

import "golang.org/x/exp/constraints"

// Ordered is the key constraint shared by every tree in this module.
type Ordered = constraints.Ordered

// Set is the contract every tree implementation satisfies. Insert, Erase,
// and Find take an explicit tid — the value passed to RegisterThread —
// standing in for the thread-local identity the original design assumes;
// Go has no safe equivalent of thread-local storage across goroutines, so
// the identity is threaded explicitly instead.
//
// Each successful Insert/Erase/Find linearizes at its tree's committing
// step (mutex region for coarse, locked edge write for fine-grained, edge
// CAS for lock-free). Size is updated after that point and is therefore
// an eventually-consistent, advisory count under concurrency.
type Set[K Ordered] interface {
	// Insert adds k if absent. Returns true iff it was absent (and is now
	// present).
	Insert(tid int, k K) bool

	// Erase removes k if present. No-op if absent.
	Erase(tid int, k K)

	// Find reports whether k is currently present.
	Find(tid int, k K) bool

	// Size returns a cached, advisory count of present keys.
	Size() int

	// Clear restores the empty state. Not safe to run concurrently with
	// any other operation on the same Set.
	Clear()

	// SetThreadCount fixes the number of threads that may register. Must
	// be called before any RegisterThread or concurrent use.
	SetThreadCount(n int)

	// RegisterThread binds tid for use as the first argument to
	// Insert/Erase/Find. Must be called once per thread before that
	// thread's first operation.
	RegisterThread(tid int)
}
