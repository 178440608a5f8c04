// pkg/orderedset/contract_test.go
package orderedset

import (
	"fmt"
	"sync"
	"testing"

	"cst/pkg/reclaim"
)

// implementations runs every Set[int]-conformance test against all three
// algorithms so scenarios and properties from spec.md are verified
// identically across the coarse, fine-grained, and lock-free trees.
func implementations(t *testing.T, threads int) map[Algorithm]Set[int] {
	t.Helper()
	rec := reclaim.NewService(reclaim.DefaultConfig())
	impls := map[Algorithm]Set[int]{
		Coarse:      New[int](Coarse, nil),
		FineGrained: New[int](FineGrained, rec),
		LockFree:    New[int](LockFree, rec),
	}
	for _, s := range impls {
		s.SetThreadCount(threads)
		for tid := 0; tid < threads; tid++ {
			s.RegisterThread(tid)
		}
	}
	return impls
}

// TestScenarioS1 is spec.md's S1: insert a run of keys, verify presence
// and absence, erase one, re-verify.
func TestScenarioS1(t *testing.T) {
	for algo, s := range implementations(t, 1) {
		t.Run(algo.String(), func(t *testing.T) {
			for _, k := range []int{0, 1, 2, 3, 4} {
				if !s.Insert(0, k) {
					t.Fatalf("Insert(%d) = false, want true", k)
				}
			}
			for _, k := range []int{0, 1, 2, 3, 4} {
				if !s.Find(0, k) {
					t.Errorf("Find(%d) = false, want true", k)
				}
			}
			if s.Find(0, 5) {
				t.Errorf("Find(5) = true, want false")
			}
			if got := s.Size(); got != 5 {
				t.Fatalf("Size() = %d, want 5", got)
			}
			s.Erase(0, 2)
			if s.Find(0, 2) {
				t.Errorf("Find(2) after Erase(2) = true, want false")
			}
			if got := s.Size(); got != 4 {
				t.Fatalf("Size() = %d, want 4", got)
			}
		})
	}
}

// TestScenarioS2 is spec.md's S2: a two-child-node deletion that must
// preserve in-order structure.
func TestScenarioS2(t *testing.T) {
	for algo, s := range implementations(t, 1) {
		t.Run(algo.String(), func(t *testing.T) {
			for _, k := range []int{5, 3, 7, 1, 4, 6, 8} {
				s.Insert(0, k)
			}
			s.Erase(0, 3)

			want := []int{1, 4, 5, 6, 7, 8}
			for _, k := range want {
				if !s.Find(0, k) {
					t.Errorf("Find(%d) = false, want true", k)
				}
			}
			if s.Find(0, 3) {
				t.Errorf("Find(3) after erase = true, want false")
			}
		})
	}
}

// TestScenarioS3 is spec.md's S3: duplicate insert returns false and
// leaves size unchanged.
func TestScenarioS3(t *testing.T) {
	for algo, s := range implementations(t, 1) {
		t.Run(algo.String(), func(t *testing.T) {
			if !s.Insert(0, 42) {
				t.Fatal("first Insert(42) = false")
			}
			if s.Insert(0, 42) {
				t.Fatal("second Insert(42) = true, want false")
			}
			if got := s.Size(); got != 1 {
				t.Fatalf("Size() = %d, want 1", got)
			}
		})
	}
}

// TestScenarioS4 is spec.md's S4: erase of an absent key is a silent
// no-op.
func TestScenarioS4(t *testing.T) {
	for algo, s := range implementations(t, 1) {
		t.Run(algo.String(), func(t *testing.T) {
			s.Insert(0, 1)
			s.Erase(0, 99)
			if got := s.Size(); got != 1 {
				t.Fatalf("Size() = %d, want 1", got)
			}
			s.Erase(0, 1)
			s.Erase(0, 1)
			if got := s.Size(); got != 0 {
				t.Fatalf("Size() = %d, want 0", got)
			}
		})
	}
}

// TestScenarioS5 is spec.md's S5: property 5, N threads insert/erase
// disjoint key ranges concurrently and the set ends empty. Property 5 is
// stated for N = 2..128, so this checks a spread across that range
// rather than a single fixed thread count.
func TestScenarioS5(t *testing.T) {
	const perThread = 200

	for _, threads := range []int{2, 8, 32, 128} {
		for algo, s := range implementations(t, threads) {
			t.Run(fmt.Sprintf("%s/threads=%d", algo, threads), func(t *testing.T) {
				var wg sync.WaitGroup
				for tid := 0; tid < threads; tid++ {
					wg.Add(1)
					go func(tid int) {
						defer wg.Done()
						base := tid * perThread
						for i := 0; i < perThread; i++ {
							s.Insert(tid, base+i)
						}
						for i := 0; i < perThread; i++ {
							s.Erase(tid, base+i)
						}
					}(tid)
				}
				wg.Wait()

				if got := s.Size(); got != 0 {
					t.Fatalf("Size() = %d, want 0", got)
				}
			})
		}
	}
}

// TestClear covers spec.md's clear() operation.
func TestClear(t *testing.T) {
	for algo, s := range implementations(t, 1) {
		t.Run(algo.String(), func(t *testing.T) {
			for i := 0; i < 10; i++ {
				s.Insert(0, i)
			}
			s.Clear()
			if got := s.Size(); got != 0 {
				t.Fatalf("Size() after Clear() = %d, want 0", got)
			}
			if s.Find(0, 5) {
				t.Error("Find(5) after Clear() = true, want false")
			}
		})
	}
}

// TestProperty4OverlappingKeys covers property 4: concurrent inserts and
// erases of overlapping keys never corrupt the structure, across the
// same N = 2..128 spread property 5 is checked at.
func TestProperty4OverlappingKeys(t *testing.T) {
	const keys = 150

	for _, threads := range []int{2, 8, 32, 128} {
		for algo, s := range implementations(t, threads) {
			t.Run(fmt.Sprintf("%s/threads=%d", algo, threads), func(t *testing.T) {
				var wg sync.WaitGroup
				for tid := 0; tid < threads; tid++ {
					wg.Add(1)
					go func(tid int) {
						defer wg.Done()
						for round := 0; round < 40; round++ {
							k := (tid*37 + round) % keys
							if round%2 == 0 {
								s.Insert(tid, k)
							} else {
								s.Erase(tid, k)
							}
						}
					}(tid)
				}
				wg.Wait()

				count := 0
				for k := 0; k < keys; k++ {
					if s.Find(0, k) {
						count++
					}
				}
				if got := s.Size(); got != count {
					t.Fatalf("Size() = %d, but Find() found %d present keys", got, count)
				}
			})
		}
	}
}
