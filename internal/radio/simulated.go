package radio

import (
	"context"
	"fmt"
	"sync"

	"github.com/ystepanoff/glossy/internal/timer"
)

// Medium is a shared broadcast channel connecting a set of Simulated
// drivers, standing in for the physical layer's constructive interference
// behavior: every node attached to a Medium hears every other node's
// transmission, with a per-attempt injectable Corrupt hook standing in for
// capture-effect and multipath loss. Grounded on this codebase's
// injectable-function test double, applied to a broadcast medium instead
// of a point-to-point connection.
type Medium struct {
	clock timer.Clock

	mu    sync.Mutex
	nodes map[*Simulated]struct{}

	// Corrupt, when non-nil, is called once per receiver for every frame
	// in flight and returns true if that receiver should fail to decode
	// it (CRC failure). Defaults to never corrupting.
	Corrupt func(from, to *Simulated, frame []byte) bool
}

// NewMedium returns an empty Medium driven by clock.
func NewMedium(clock timer.Clock) *Medium {
	return &Medium{clock: clock, nodes: make(map[*Simulated]struct{})}
}

func (m *Medium) attach(s *Simulated) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[s] = struct{}{}
}

func (m *Medium) detach(s *Simulated) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, s)
}

// broadcast delivers frame from sender to every other attached node
// currently listening, using the Medium's clock so delivery is ordered
// deterministically relative to scheduled timeouts.
func (m *Medium) broadcast(sender *Simulated, header, payload []byte) {
	m.mu.Lock()
	peers := make([]*Simulated, 0, len(m.nodes))
	for n := range m.nodes {
		if n != sender {
			peers = append(peers, n)
		}
	}
	m.mu.Unlock()

	frame := append(append([]byte{}, header...), payload...)
	for _, p := range peers {
		corrupt := m.Corrupt != nil && m.Corrupt(sender, p, frame)
		p.deliver(header, payload, !corrupt)
	}
}

// Simulated is an in-memory Driver: no real radio, just a Medium and a
// Callbacks sink. Timing is driven entirely by the shared timer.Clock, so
// tests can advance a Simulated clock and observe deterministic callback
// order across every node on the Medium.
type Simulated struct {
	medium *Medium
	clock  timer.Clock
	cb     Callbacks

	mu          sync.Mutex
	busy        bool
	listening   bool
	headerLenRX int
	rssi        int8
	lastRSSI    int8
	txSeq       uint64
}

// NewSimulated attaches a new Simulated driver to medium.
func NewSimulated(medium *Medium, clock timer.Clock) *Simulated {
	s := &Simulated{medium: medium, clock: clock, rssi: -90}
	medium.attach(s)
	return s
}

// Detach removes s from its Medium; s delivers no further frames after
// this call.
func (s *Simulated) Detach() {
	s.medium.detach(s)
}

func (s *Simulated) SetCallbacks(cb Callbacks) { s.cb = cb }

func (s *Simulated) GoToIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy, s.listening = false, false
}

func (s *Simulated) GoToSleep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy, s.listening = false, false
}

func (s *Simulated) StartTX() {
	s.mu.Lock()
	s.busy = true
	s.mu.Unlock()
}

func (s *Simulated) StartRX() {
	s.mu.Lock()
	s.busy = false
	s.listening = true
	s.mu.Unlock()
}

// WriteToTXFIFO defers the actual transmission to the next clock tick
// rather than delivering it inline: Controller invokes this while holding
// its own mutex, so calling back into Callbacks synchronously here would
// deadlock. Scheduling through the shared clock also makes delivery order
// well-defined across nodes regardless of which node called Start first.
func (s *Simulated) WriteToTXFIFO(header, payload []byte) error {
	hdr := append([]byte(nil), header...)
	pl := append([]byte(nil), payload...)

	s.mu.Lock()
	s.txSeq++
	id := fmt.Sprintf("radio-tx-%p-%d", s, s.txSeq)
	s.mu.Unlock()

	when := s.clock.NowHF() + 1
	s.clock.Schedule(id, when, func() {
		t := s.clock.NowHF()
		if s.cb != nil {
			s.cb.TXStarted(t)
		}
		s.medium.broadcast(s, hdr, pl)
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		if s.cb != nil {
			s.cb.TXEnded(s.clock.NowHF())
		}
	})
	return nil
}

func (s *Simulated) FlushRXFIFO() {}
func (s *Simulated) FlushTXFIFO() {}

func (s *Simulated) SetRXOffMode(OffMode)              {}
func (s *Simulated) SetTXOffMode(OffMode)              {}
func (s *Simulated) SetCalibrationMode(CalibrationMode) {}
func (s *Simulated) ManualCalibration()                {}
func (s *Simulated) ReconfigAfterSleep()               {}

func (s *Simulated) SetHeaderLenRX(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headerLenRX = n
}

func (s *Simulated) IsBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Simulated) GetRSSI() int8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rssi
}

func (s *Simulated) GetLastPacketRSSI() int8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRSSI
}

func (s *Simulated) ClearPendingInterrupts() {}

func (s *Simulated) WaitReady(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

func (s *Simulated) WaitRSSIValid(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

// deliver is invoked by the owning Medium for every frame in flight.
// crcOK carries the outcome of the Medium's Corrupt hook.
func (s *Simulated) deliver(header, payload []byte, crcOK bool) {
	s.mu.Lock()
	listening := s.listening
	s.lastRSSI = -60
	s.mu.Unlock()
	if !listening || s.cb == nil {
		return
	}

	t := s.clock.NowHF()
	s.cb.RXStarted(t)
	if !crcOK {
		s.cb.RXFailed()
		return
	}
	s.cb.HeaderReceived(header, true)
	s.cb.RXEnded(s.clock.NowHF(), payload, true)
}
