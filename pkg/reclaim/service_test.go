// pkg/reclaim/service_test.go
package reclaim

import (
	"sync"
	"testing"
)

func TestServiceRetireUnderThreshold(t *testing.T) {
	svc := NewService(Config{Threshold: 4})
	svc.SetThreadCount(1)
	svc.RegisterThread(0)

	g := svc.Enter(0)
	for i := 0; i < 3; i++ {
		g.Retire(i)
	}
	g.Exit()

	if got := svc.PendingCount(); got != 3 {
		t.Fatalf("PendingCount() = %d, want 3", got)
	}
}

func TestServiceReclaimRoundDrainsList(t *testing.T) {
	svc := NewService(Config{Threshold: 2})
	svc.SetThreadCount(1)
	svc.RegisterThread(0)

	// The third retire pushes the list to 3 > 2 and the round empties it;
	// the fourth and fifth retires leave 2 pending (2 is not over the cap).
	g := svc.Enter(0)
	for i := 0; i < 5; i++ {
		g.Retire(i)
	}
	g.Exit()

	if got := svc.PendingCount(); got != 2 {
		t.Fatalf("PendingCount() = %d, want 2 after a round triggered by threshold overflow", got)
	}
}

func TestServiceRoundWaitsForOtherInFlightOps(t *testing.T) {
	svc := NewService(Config{Threshold: 1})
	svc.SetThreadCount(2)
	svc.RegisterThread(0)
	svc.RegisterThread(1)

	blocker := svc.Enter(1)

	done := make(chan struct{})
	go func() {
		g := svc.Enter(0)
		g.Retire("a")
		g.Retire("b") // exceeds threshold, triggers a round
		g.Exit()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("reclamation round completed while another operation was still in flight")
	default:
	}

	blocker.Exit()
	<-done
}

func TestServiceConcurrentRetire(t *testing.T) {
	svc := NewService(Config{Threshold: 8})
	const threads = 16
	svc.SetThreadCount(threads)
	for i := 0; i < threads; i++ {
		svc.RegisterThread(i)
	}

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g := svc.Enter(tid)
				g.Retire(j)
				g.Exit()
			}
		}(i)
	}
	wg.Wait()
}

func TestRegisterThreadBeforeSetThreadCountPanics(t *testing.T) {
	svc := NewService(DefaultConfig())
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for RegisterThread before SetThreadCount")
		}
	}()
	svc.RegisterThread(0)
}

func TestRegisterThreadOutOfRangePanics(t *testing.T) {
	svc := NewService(DefaultConfig())
	svc.SetThreadCount(2)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range tid")
		}
	}()
	svc.RegisterThread(5)
}
