package timer

import (
	"sync"
	"time"
)

// Real is a Clock backed by the process's monotonic clock, scaled into
// the two tick rates a Glossy deployment is configured with. On Linux,
// rawMonotonicNS reads CLOCK_MONOTONIC directly (clock_linux.go); on other
// platforms it falls back to time.Since a fixed start instant, which
// time.Now already guarantees is monotonic.
type Real struct {
	startNS     int64
	hfPerSecond int64
	lfPerSecond int64

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewReal returns a Real clock ticking at hfPerSecond and lfPerSecond.
func NewReal(hfPerSecond, lfPerSecond int64) *Real {
	return &Real{
		startNS:     rawMonotonicNS(),
		hfPerSecond: hfPerSecond,
		lfPerSecond: lfPerSecond,
		timers:      make(map[string]*time.Timer),
	}
}

func (r *Real) elapsedNS() int64 {
	return rawMonotonicNS() - r.startNS
}

// NowHF implements Clock.
func (r *Real) NowHF() int64 {
	return r.elapsedNS() * r.hfPerSecond / 1_000_000_000
}

// NowLF implements Clock.
func (r *Real) NowLF() int64 {
	return r.elapsedNS() * r.lfPerSecond / 1_000_000_000
}

// Now implements Clock.
func (r *Real) Now() (hf, lf int64) {
	ns := r.elapsedNS()
	return ns * r.hfPerSecond / 1_000_000_000, ns * r.lfPerSecond / 1_000_000_000
}

// Schedule implements Clock.
func (r *Real) Schedule(id string, when int64, cb func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[id]; ok {
		t.Stop()
	}
	nowHF := r.NowHF()
	deltaTicks := when - nowHF
	if deltaTicks < 0 {
		deltaTicks = 0
	}
	d := time.Duration(deltaTicks) * time.Second / time.Duration(r.hfPerSecond)
	r.timers[id] = time.AfterFunc(d, cb)
}

// Stop implements Clock.
func (r *Real) Stop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
}

// DisableUpdate implements Clock. CLOCK_MONOTONIC is never stepped, so
// there is nothing to bracket.
func (r *Real) DisableUpdate() {}

// EnableUpdate implements Clock.
func (r *Real) EnableUpdate() {}
