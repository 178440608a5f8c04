// pkg/reclaim/service.go
// Package reclaim implements the quiescence-based memory reclamation
// scheme shared by the fine-grained and lock-free trees: per-thread
// retire lists drained by a global mutex+counter barrier once a list
// grows past a soft cap.
package reclaim

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrThreadCountNotSet is the value RegisterThread panics with when called
// before SetThreadCount has established the registry's size.
var ErrThreadCountNotSet = errors.New("reclaim: SetThreadCount must be called before RegisterThread")

// ErrUnregisteredThread is the value RegisterThread and Retire panic with
// when given a tid outside the range fixed by SetThreadCount. A tid inside
// that range is accepted whether or not it was passed to RegisterThread.
var ErrUnregisteredThread = errors.New("reclaim: thread id not registered")

// DefaultThreshold is the soft cap on a retire list's length before a
// reclamation round is triggered for that thread.
const DefaultThreshold = 100

// Config holds reclamation service configuration.
type Config struct {
	// Threshold is the retire-list soft cap R.
	Threshold int
}

// DefaultConfig returns the default reclamation configuration.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold}
}

// Service is the reclamation service: a thread registry, one retire list
// per registered thread, and a global quiescence gate.
type Service struct {
	threshold int

	gateMu   sync.Mutex
	inFlight int64 // atomic

	mu    sync.Mutex
	lists []*retireList
}

type retireList struct {
	mu    sync.Mutex
	items []any
}

// NewService creates a reclamation service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Service{threshold: cfg.Threshold}
}

// SetThreadCount fixes the size of the thread registry. Must be called
// once, before any RegisterThread or tree operation.
func (s *Service) SetThreadCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lists := make([]*retireList, n)
	for i := range lists {
		lists[i] = &retireList{}
	}
	s.lists = lists
}

// RegisterThread binds tid to a retire list slot. Must be called once per
// thread, after SetThreadCount and before that thread's first operation.
func (s *Service) RegisterThread(tid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lists == nil {
		panic(ErrThreadCountNotSet)
	}
	if tid < 0 || tid >= len(s.lists) {
		panic(ErrUnregisteredThread)
	}
	if s.lists[tid] == nil {
		s.lists[tid] = &retireList{}
	}
}

// Guard represents one in-flight operation's participation in the
// quiescence gate. Callers must call Exit exactly once.
type Guard struct {
	svc *Service
	tid int
}

// Enter begins an operation: it briefly takes and releases the global
// gate (blocking while a reclamation round is collecting) and then marks
// itself in-flight so a concurrent round will wait for it to finish.
func (s *Service) Enter(tid int) *Guard {
	s.gateMu.Lock()
	s.gateMu.Unlock()
	atomic.AddInt64(&s.inFlight, 1)
	return &Guard{svc: s, tid: tid}
}

// Exit ends the operation's participation in the quiescence gate.
func (g *Guard) Exit() {
	atomic.AddInt64(&g.svc.inFlight, -1)
}

// Retire appends node to the calling thread's retire list, triggering a
// reclamation round if the list has grown past the configured threshold.
func (g *Guard) Retire(node any) {
	g.svc.retire(g.tid, node)
}

func (s *Service) retire(tid int, node any) {
	l := s.list(tid)
	l.mu.Lock()
	l.items = append(l.items, node)
	over := len(l.items) > s.threshold
	l.mu.Unlock()
	if over {
		s.reclaimRound(tid)
	}
}

func (s *Service) list(tid int) *retireList {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tid < 0 || tid >= len(s.lists) || s.lists[tid] == nil {
		panic(ErrUnregisteredThread)
	}
	return s.lists[tid]
}

// reclaimRound drains the calling thread's retire list once every
// in-flight operation other than this one has drained. The caller's own
// in-flight contribution is temporarily withdrawn for the duration of the
// round — by the time a round is triggered the caller has already retired
// the nodes being freed and holds no further references to them, so it is
// safe to treat it as quiescent for the round's duration.
func (s *Service) reclaimRound(tid int) {
	atomic.AddInt64(&s.inFlight, -1)
	defer atomic.AddInt64(&s.inFlight, 1)

	s.gateMu.Lock()
	defer s.gateMu.Unlock()

	for atomic.LoadInt64(&s.inFlight) != 0 {
		runtime.Gosched()
	}

	l := s.list(tid)
	l.mu.Lock()
	l.items = l.items[:0]
	l.mu.Unlock()
}

// PendingCount returns the number of nodes currently retired but not yet
// reclaimed, across all registered threads. Intended for tests/diagnostics.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	lists := append([]*retireList(nil), s.lists...)
	s.mu.Unlock()

	count := 0
	for _, l := range lists {
		if l == nil {
			continue
		}
		l.mu.Lock()
		count += len(l.items)
		l.mu.Unlock()
	}
	return count
}
