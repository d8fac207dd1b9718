package timer

import (
	"container/heap"
	"sync"
)

// Simulated is a deterministic Clock for tests and internal/sim: time only
// advances when Advance is called, and scheduled callbacks fire
// synchronously within that call, in tick order. Mirrors the injectable
// function-pointer style of the reference test doubles in this codebase's
// networking layer, applied to a scheduler instead of a connection.
type Simulated struct {
	mu          sync.Mutex
	hf          int64
	hfPerSecond int64
	lfPerSecond int64
	pending     pendingHeap
	byID        map[string]*pendingCallback
}

type pendingCallback struct {
	id    string
	when  int64
	cb    func()
	index int
}

type pendingHeap []*pendingCallback

func (h pendingHeap) Len() int            { return len(h) }
func (h pendingHeap) Less(i, j int) bool  { return h[i].when < h[j].when }
func (h pendingHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *pendingHeap) Push(x interface{}) {
	pc := x.(*pendingCallback)
	pc.index = len(*h)
	*h = append(*h, pc)
}
func (h *pendingHeap) Pop() interface{} {
	old := *h
	n := len(old)
	pc := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return pc
}

// NewSimulated returns a Simulated clock starting at tick 0.
func NewSimulated(hfPerSecond, lfPerSecond int64) *Simulated {
	return &Simulated{
		hfPerSecond: hfPerSecond,
		lfPerSecond: lfPerSecond,
		byID:        make(map[string]*pendingCallback),
	}
}

// NowHF implements Clock.
func (s *Simulated) NowHF() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hf
}

// NowLF implements Clock.
func (s *Simulated) NowLF() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hfToLF(s.hf)
}

// Now implements Clock.
func (s *Simulated) Now() (hf, lf int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hf, s.hfToLF(s.hf)
}

func (s *Simulated) hfToLF(hf int64) int64 {
	return hf * s.lfPerSecond / s.hfPerSecond
}

// Schedule implements Clock.
func (s *Simulated) Schedule(id string, when int64, cb func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[id]; ok {
		heap.Remove(&s.pending, old.index)
		delete(s.byID, id)
	}
	pc := &pendingCallback{id: id, when: when, cb: cb}
	heap.Push(&s.pending, pc)
	s.byID[id] = pc
}

// Stop implements Clock.
func (s *Simulated) Stop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[id]; ok {
		heap.Remove(&s.pending, old.index)
		delete(s.byID, id)
	}
}

// DisableUpdate implements Clock. Simulated is already serialized by its
// own mutex, so there is nothing further to bracket.
func (s *Simulated) DisableUpdate() {}

// EnableUpdate implements Clock.
func (s *Simulated) EnableUpdate() {}

// Advance moves the clock forward by delta ticks, firing every callback
// whose deadline falls at or before the new time, in deadline order. A
// callback that reschedules itself for a time still within [old, new] is
// run again within the same Advance call.
func (s *Simulated) Advance(delta int64) {
	target := s.NowHF() + delta

	for {
		s.mu.Lock()
		if s.pending.Len() == 0 || s.pending[0].when > target {
			s.hf = target
			s.mu.Unlock()
			return
		}
		pc := heap.Pop(&s.pending).(*pendingCallback)
		delete(s.byID, pc.id)
		s.hf = pc.when
		cb := pc.cb
		s.mu.Unlock()

		cb()
	}
}
