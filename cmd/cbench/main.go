// cmd/cbench/main.go
//
// cbench - load-test harness for the three ordered-set implementations.
//
// Usage:
//
//	cbench -a {0,1,2} [-t] -p {0..6} -n N -d D
//
// -a selects the algorithm (0=coarse, 1=fine-grained, 2=lock-free), -t
// runs a correctness self-test instead of a timed load, -p selects the
// workload pattern, -n is the thread count, -d is the per-thread
// workload size.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cst/pkg/orderedset"
	"cst/pkg/reclaim"
	"cst/pkg/workload"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("cbench", flag.ContinueOnError)
	fs.SetOutput(stderr)

	algoFlag := fs.Int("a", 0, "algorithm: 0=coarse, 1=fine-grained, 2=lock-free")
	selfTest := fs.Bool("t", false, "run correctness self-test instead of a load test")
	patternFlag := fs.Int("p", 0, "load-test pattern: 0=insert 1=erase 2=find 3=contention 4=write-dominant 5=mixed 6=read-dominant")
	threads := fs.Int("n", 4, "thread count")
	size := fs.Int("d", 10000, "workload size (operations per thread)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	algo, err := parseAlgorithm(*algoFlag)
	if err != nil {
		fmt.Fprintf(stderr, "cbench: %v\n", err)
		return 2
	}

	if *selfTest {
		if err := selfTestAlgorithm(algo); err != nil {
			fmt.Fprintf(stderr, "cbench: self-test failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "self-test OK: %s\n", algo)
		return 0
	}

	s := newSet(algo)
	cfg := workload.Config{
		Pattern: workload.Pattern(*patternFlag),
		Threads: *threads,
		Size:    *size,
		Seed:    1,
	}

	start := time.Now()
	res, err := workload.Run(context.Background(), s, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "cbench: %v\n", err)
		return 2
	}
	elapsed := time.Since(start)

	fmt.Fprintf(stdout, "algorithm=%s pattern=%s threads=%d size=%d total_ops=%d elapsed=%s final_size=%d inserted_ok=%d erased_hit=%d\n",
		algo, res.Pattern, res.Threads, cfg.Size, res.TotalOps, elapsed, res.FinalSize, res.InsertedOK, res.ErasedHit)
	return 0
}

func parseAlgorithm(a int) (orderedset.Algorithm, error) {
	switch a {
	case 0:
		return orderedset.Coarse, nil
	case 1:
		return orderedset.FineGrained, nil
	case 2:
		return orderedset.LockFree, nil
	default:
		return 0, fmt.Errorf("unknown -a value %d (want 0, 1, or 2)", a)
	}
}

func newSet(algo orderedset.Algorithm) orderedset.Set[int] {
	if algo == orderedset.Coarse {
		return orderedset.New[int](algo, nil)
	}
	return orderedset.New[int](algo, reclaim.NewService(reclaim.DefaultConfig()))
}

// selfTestAlgorithm exercises spec.md's S1/S2 scenarios plus a small
// concurrent run (write-dominant, disjoint per-thread key ranges) against
// the chosen algorithm and reports the first inconsistency found.
func selfTestAlgorithm(algo orderedset.Algorithm) error {
	s := newSet(algo)
	s.SetThreadCount(1)
	s.RegisterThread(0)

	for _, k := range []int{0, 1, 2, 3, 4} {
		if !s.Insert(0, k) {
			return fmt.Errorf("Insert(%d) = false, want true", k)
		}
	}
	for _, k := range []int{0, 1, 2, 3, 4} {
		if !s.Find(0, k) {
			return fmt.Errorf("Find(%d) = false, want true", k)
		}
	}
	if s.Find(0, 5) {
		return fmt.Errorf("Find(5) = true, want false")
	}
	s.Erase(0, 2)
	if s.Find(0, 2) {
		return fmt.Errorf("Find(2) after Erase(2) = true, want false")
	}
	if got := s.Size(); got != 4 {
		return fmt.Errorf("Size() = %d, want 4", got)
	}

	s2 := newSet(algo)
	s2.SetThreadCount(1)
	s2.RegisterThread(0)
	for _, k := range []int{5, 3, 7, 1, 4, 6, 8} {
		s2.Insert(0, k)
	}
	s2.Erase(0, 3)
	for _, k := range []int{1, 4, 5, 6, 7, 8} {
		if !s2.Find(0, k) {
			return fmt.Errorf("S2: Find(%d) = false, want true", k)
		}
	}
	if s2.Find(0, 3) {
		return fmt.Errorf("S2: Find(3) after Erase(3) = true, want false")
	}

	ctx := context.Background()
	concurrent := newSet(algo)
	res, err := workload.Run(ctx, concurrent, workload.Config{
		Pattern: workload.PatternWriteDominant, Threads: 8, Size: 2000, Seed: 7,
	})
	if err != nil {
		return err
	}
	if res.FinalSize < 0 {
		return fmt.Errorf("FinalSize = %d, want >= 0", res.FinalSize)
	}
	return nil
}
