package glossy

// Stats accumulates lifetime and per-flood counters (spec Section 4.5).
// All fields are only mutated while the owning Controller's mutex is held;
// Snapshot returns a copy safe to read concurrently.
type Stats struct {
	// per-flood, latched at Stop except where noted
	lastRelayCnt        uint8
	lastNoiseFloor      int8
	lastFloodRSSISum    int32 // sum of per-packet RSSI this flood
	lastFloodNRxStarted uint8 // # preamble+sync detections this flood
	lastFloodNRxFail    uint8 // # header or CRC failures this flood
	lastFloodDuration   int64 // holds the flood's start tick until Stop, which overwrites it with the duration
	tToFirstRX          int64

	// alreadyCountedFail guards lastFloodNRxFail against being incremented
	// twice for the same bad reception (HeaderReceived and RXEnded/RXFailed
	// can both observe it). Reset at every RXStarted.
	alreadyCountedFail bool

	// lifetime
	pktCnt      uint32 // receptions started (preamble+sync detected)
	pktCntCRCOK uint32 // of those, that passed CRC
	errCnt      uint32 // unexpected radio errors, distinct from n_rx_fail

	floodCnt        uint32 // floods this node observed as a non-initiator
	floodCntSuccess uint32 // of those, with at least one successful RX
}

// Snapshot is an immutable copy of Stats for external consumption
// (spec Section 4.5, and internal/metrics collector).
type Snapshot struct {
	RelayCnt      uint8
	SNR           int8
	RSSI          int8
	NoiseFloor    int8
	FloodDuration int64
	TToFirstRX    int64

	NRxStarted uint8
	NRxFail    uint8

	PktCnt      uint32
	PktCntCRCOK uint32
	ErrCnt      uint32

	FloodCnt        uint32
	FloodCntSuccess uint32

	// PER is the packet error rate in parts per 10000: 10000 - PktCntCRCOK*10000/PktCnt.
	PER uint32
	// FSR is the flood success rate in parts per 10000.
	FSR uint32
}

// reset clears every counter, lifetime and per-flood. Called only from
// Controller.ResetStats, never automatically: Start clears just the
// per-flood fields it is about to refill, so a caller can inspect the
// previous flood's numbers right up until the next Start.
func (s *Stats) reset() {
	*s = Stats{}
}

// snapshot computes derived rates and returns an immutable copy. nRx is the
// number of successful receptions this flood (Controller.nRx); SNR and RSSI
// are averaged over it from the running RSSI sum rather than stored
// per-packet, matching the reference's glossy_get_snr / glossy_get_rssi:
// both read as zero until at least one packet has been received and its
// RSSI sum is nonzero.
func (s *Stats) snapshot(nRx int) Snapshot {
	snap := Snapshot{
		RelayCnt:        s.lastRelayCnt,
		NoiseFloor:      s.lastNoiseFloor,
		FloodDuration:   s.lastFloodDuration,
		TToFirstRX:      s.tToFirstRX,
		NRxStarted:      s.lastFloodNRxStarted,
		NRxFail:         s.lastFloodNRxFail,
		PktCnt:          s.pktCnt,
		PktCntCRCOK:     s.pktCntCRCOK,
		ErrCnt:          s.errCnt,
		FloodCnt:        s.floodCnt,
		FloodCntSuccess: s.floodCntSuccess,
	}
	if nRx > 0 && s.lastFloodRSSISum != 0 {
		avg := int8(s.lastFloodRSSISum / int32(nRx))
		snap.RSSI = avg
		if s.lastNoiseFloor != 0 {
			snap.SNR = avg - s.lastNoiseFloor
		}
	}
	if s.pktCnt == 0 {
		snap.PER = 0
	} else {
		snap.PER = 10000 - s.pktCntCRCOK*10000/s.pktCnt
	}
	if s.floodCnt == 0 {
		// A node that has not yet observed a single flood is considered
		// fully successful rather than fully failed: matches the
		// reference firmware, which seeds this ratio at 100% so a fresh
		// deployment doesn't report a spurious 0% success rate before its
		// first flood.
		snap.FSR = 10000
	} else {
		snap.FSR = s.floodCntSuccess * 10000 / s.floodCnt
	}
	return snap
}
