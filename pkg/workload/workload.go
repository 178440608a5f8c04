// pkg/workload/workload.go
// Package workload generates the load-test patterns named in cmd/cbench's
// flag table and runs them across N goroutines, one per registered
// thread id. Grounded on _examples/mjm918-tur/tests/benchmark_test.go's
// one-function-per-pattern style, generalized from single-threaded
// testing.B loops to concurrent goroutine fan-out via
// golang.org/x/sync/errgroup.
package workload

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"cst/pkg/orderedset"
)

// Pattern selects a load-test pattern. Values match cmd/cbench's -p flag.
type Pattern int

const (
	PatternInsert        Pattern = iota // 0: insert-only
	PatternErase                        // 1: erase-only (of pre-inserted keys)
	PatternFind                         // 2: find-only (of pre-inserted keys)
	PatternContention                   // 3: 3-way split of insert/erase/find on a shared hot range
	PatternWriteDominant                // 4: 50/50 insert/erase
	PatternMixed                        // 5: 20/20/60 insert/erase/find
	PatternReadDominant                 // 6: 10/90 write/find
)

// String renders the pattern name, matching §6's table wording.
func (p Pattern) String() string {
	switch p {
	case PatternInsert:
		return "insert"
	case PatternErase:
		return "erase"
	case PatternFind:
		return "find"
	case PatternContention:
		return "contention"
	case PatternWriteDominant:
		return "write-dominant"
	case PatternMixed:
		return "mixed"
	case PatternReadDominant:
		return "read-dominant"
	default:
		return "unknown"
	}
}

// ErrUnknownPattern is returned for a Pattern value outside 0..6.
var ErrUnknownPattern = fmt.Errorf("workload: pattern out of range (want 0-6)")

// Config configures one load-test run.
type Config struct {
	Pattern Pattern
	Threads int // -n: number of goroutines/threads
	Size    int // -d: operations per thread
	Seed    int64
}

// Result summarizes a completed run.
type Result struct {
	Pattern    Pattern
	Threads    int
	TotalOps   int
	FinalSize  int
	InsertedOK int // successful Insert calls, summed across threads
	ErasedHit  int // Erase calls that found a key present (best-effort, non-linearized)
}

// Run executes cfg against s, launching cfg.Threads goroutines via
// errgroup (already a real dependency of the ethereum-go-verkle and
// hanwen-go-fuse example repos). Run waits for every goroutine and returns
// the first error a worker reported. Workers do not consult ctx, so
// cancelling it does not stop a run, and a panicking worker is not
// recovered.
func Run(ctx context.Context, s orderedset.Set[int], cfg Config) (Result, error) {
	if cfg.Pattern < PatternInsert || cfg.Pattern > PatternReadDominant {
		return Result{}, ErrUnknownPattern
	}

	s.SetThreadCount(cfg.Threads)
	for tid := 0; tid < cfg.Threads; tid++ {
		s.RegisterThread(tid)
	}

	if cfg.Pattern == PatternErase || cfg.Pattern == PatternFind {
		for i := 0; i < cfg.Threads*cfg.Size; i++ {
			s.Insert(0, i)
		}
	}

	g, _ := errgroup.WithContext(ctx)
	inserted := make([]int, cfg.Threads)
	erasedHit := make([]int, cfg.Threads)

	for tid := 0; tid < cfg.Threads; tid++ {
		tid := tid
		g.Go(func() error {
			rng := rand.New(rand.NewSource(cfg.Seed + int64(tid)))
			ins, hits, err := runPattern(s, cfg, tid, rng)
			if err != nil {
				return err
			}
			inserted[tid] = ins
			erasedHit[tid] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Pattern: cfg.Pattern, Threads: cfg.Threads, TotalOps: cfg.Threads * cfg.Size, FinalSize: s.Size()}
	for tid := 0; tid < cfg.Threads; tid++ {
		res.InsertedOK += inserted[tid]
		res.ErasedHit += erasedHit[tid]
	}
	return res, nil
}

func runPattern(s orderedset.Set[int], cfg Config, tid int, rng *rand.Rand) (inserted, erasedHit int, err error) {
	base := tid * cfg.Size
	switch cfg.Pattern {
	case PatternInsert:
		// Each thread owns a disjoint key range in this pattern, so a key
		// it just inserted can never be erased by another thread — an
		// immediate Find miss is a genuine structural violation, not a
		// race with a concurrent writer.
		for i := 0; i < cfg.Size; i++ {
			k := base + i
			if s.Insert(tid, k) {
				inserted++
				if !s.Find(tid, k) {
					return inserted, erasedHit, fmt.Errorf("workload: Find(%d) = false immediately after successful Insert(%d)", k, k)
				}
			}
		}
	case PatternErase:
		for i := 0; i < cfg.Size; i++ {
			before := s.Find(tid, base+i)
			s.Erase(tid, base+i)
			if before {
				erasedHit++
			}
		}
	case PatternFind:
		for i := 0; i < cfg.Size; i++ {
			s.Find(tid, base+i)
		}
	case PatternContention:
		const hotRange = 64
		for i := 0; i < cfg.Size; i++ {
			k := rng.Intn(hotRange)
			switch i % 3 {
			case 0:
				if s.Insert(tid, k) {
					inserted++
				}
			case 1:
				if s.Find(tid, k) {
					erasedHit++
				}
				s.Erase(tid, k)
			case 2:
				s.Find(tid, k)
			}
		}
	case PatternWriteDominant:
		for i := 0; i < cfg.Size; i++ {
			k := base + rng.Intn(cfg.Size)
			if rng.Intn(2) == 0 {
				if s.Insert(tid, k) {
					inserted++
				}
			} else {
				s.Erase(tid, k)
			}
		}
	case PatternMixed:
		for i := 0; i < cfg.Size; i++ {
			k := base + rng.Intn(cfg.Size)
			switch pct := rng.Intn(100); {
			case pct < 20:
				if s.Insert(tid, k) {
					inserted++
				}
			case pct < 40:
				s.Erase(tid, k)
			default:
				s.Find(tid, k)
			}
		}
	case PatternReadDominant:
		for i := 0; i < cfg.Size; i++ {
			k := base + rng.Intn(cfg.Size)
			if rng.Intn(10) == 0 {
				if s.Insert(tid, k) {
					inserted++
				}
			} else {
				s.Find(tid, k)
			}
		}
	}
	return inserted, erasedHit, nil
}
