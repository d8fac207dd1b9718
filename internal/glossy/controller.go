package glossy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ystepanoff/glossy/internal/radio"
	"github.com/ystepanoff/glossy/internal/timer"
)

const (
	rfReadyTimeout    = 500 * time.Microsecond
	rssiSampleTimeout = 500 * time.Microsecond
)

// FloodParams configures a single call to Start. Fields not meaningful to
// a receiver (Payload, NTxMax) are ignored unless IsInitiator is set;
// PayloadLen is the one field a receiver may leave nil, since unlike
// WithSync it does not need to be known before RX starts to size the
// header, only before the payload is copied out.
type FloodParams struct {
	// IsInitiator selects whether this node originates the flood
	// (transmits first) or only relays what it receives.
	IsInitiator bool

	// InitiatorID identifies the flood's origin for logging and metrics;
	// it is not carried on the wire.
	InitiatorID uint16

	// Payload is the data to flood. Only read when IsInitiator.
	Payload []byte

	// PayloadLen is the payload length in bytes. Required when
	// IsInitiator (there is no wire signal to learn it from). A receiver
	// may leave this nil to learn the length from the first successfully
	// received frame.
	PayloadLen *int

	// NTxMax bounds the number of times this node retransmits. Zero means
	// unbounded: keep relaying every successfully received frame until
	// Stop is called. Only read when IsInitiator; receivers learn it from
	// the header.
	NTxMax uint8

	// WithSync selects whether this flood also distributes a time
	// reference (and, per Params.AlwaysRelayCnt, whether relay_cnt is
	// carried on the wire). This must agree across every node
	// participating in the flood, so unlike PayloadLen it cannot be left
	// to be learned: the header length the radio is configured for
	// depends on it before the first byte arrives.
	WithSync bool

	// WithRFCal runs a manual radio calibration before this flood.
	WithRFCal bool
}

// Controller drives at most one flood at a time over a radio.Driver, using
// a timer.Clock for all timing decisions. The zero value is not usable;
// construct with NewController.
type Controller struct {
	params Params
	radio  radio.Driver
	timer  timer.Clock
	log    *slog.Logger

	mu sync.Mutex
	state
	stats Stats
}

// NewController wires a Controller to its radio and clock, registering
// itself as the driver's callback sink.
func NewController(params Params, driver radio.Driver, clock timer.Clock, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		params: params,
		radio:  driver,
		timer:  clock,
		log:    log,
	}
	driver.SetCallbacks(c)
	return c
}

// ResetStats clears the lifetime packet and flood counters. Safe to call
// whether or not a flood is active.
func (c *Controller) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.reset()
}

// Stats returns a snapshot of lifetime and last-flood statistics.
func (c *Controller) Stats() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.snapshot(c.nRx)
}

// IsActive reports whether a flood is currently in progress.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// GetRxCnt reports the number of times a frame was successfully received
// during the current or most recently completed flood.
func (c *Controller) GetRxCnt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nRx
}

// GetTxCnt reports the number of times this node transmitted during the
// current or most recently completed flood.
func (c *Controller) GetTxCnt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nTx
}

// GetPayloadLen reports the flood's payload length: as configured for an
// initiator, or as learned from the wire for a receiver (zero until the
// first successful reception).
func (c *Controller) GetPayloadLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payloadLen
}

// Payload returns a copy of the flood's payload buffer.
func (c *Controller) Payload() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, c.payloadLen)
	copy(out, c.payload[:c.payloadLen])
	return out
}

// IsTRefUpdated reports whether a time reference was captured this flood.
func (c *Controller) IsTRefUpdated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tRefUpdated
}

// GetTRef returns the flood's time reference in high-frequency ticks,
// back-projected to the initiator's original transmission instant. Valid
// only after Stop and when IsTRefUpdated is true.
func (c *Controller) GetTRef() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tRef
}

// GetHeader returns the header of the current or most recently processed
// flood.
func (c *Controller) GetHeader() Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header
}

// Start begins a flood: an immediate first transmission for an initiator,
// or listening for a receiver. It returns before the flood completes;
// call Stop once the caller's slot budget for this flood has elapsed.
func (c *Controller) Start(fp FloodParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return ErrAlreadyActive
	}
	if fp.IsInitiator && fp.PayloadLen == nil {
		return ErrInitiatorNeedsPayloadLen
	}

	c.state.reset()
	c.active = true
	c.isInitiator = fp.IsInitiator
	c.initiatorID = fp.InitiatorID

	withRelayCnt := c.params.withRelayCnt(fp.WithSync)
	c.header = Header{
		Tag:      c.params.HeaderTag,
		WithSync: fp.WithSync,
		RelayCnt: 0,
	}
	if fp.IsInitiator {
		c.header.NTxMax = fp.NTxMax
	}
	c.headerLen = c.header.Len(withRelayCnt)

	// Doubles as the flood's start timestamp until stopLocked overwrites it
	// with the actual duration, matching the reference's reuse of
	// last_flood_duration for the same purpose: RXStarted needs a start
	// instant to compute TToFirstRX from, and this is the only per-flood
	// scratch slot that is guaranteed to be set before the first RX can
	// possibly begin.
	hf0, _ := c.timer.Now()
	c.stats.lastFloodDuration = hf0
	c.stats.lastFloodNRxStarted = 0
	c.stats.lastFloodNRxFail = 0
	c.stats.lastFloodRSSISum = 0
	c.stats.tToFirstRX = 0
	c.stats.alreadyCountedFail = false

	if fp.IsInitiator {
		c.payloadLen = *fp.PayloadLen
		if c.headerLen+c.payloadLen > c.params.MaxPacketLen() {
			c.active = false
			return ErrOversizedFrame
		}
		c.payload = make([]byte, c.payloadLen)
		copy(c.payload, fp.Payload)
		// The initiator already knows its frame length, so its slot estimate
		// (and with it the retransmission timeout) does not wait for a
		// reception that may never come.
		c.tSlotEstimated = c.params.EstimateTSlot(c.headerLen + c.payloadLen)
	} else if fp.PayloadLen != nil {
		c.payloadLen = *fp.PayloadLen
		c.payload = make([]byte, c.payloadLen)
	} else {
		c.payload = make([]byte, c.params.MaxPacketLen()-c.headerLen)
	}

	c.radio.GoToIdle()
	c.radio.SetRXOffMode(radio.OffModeTX)
	c.radio.SetTXOffMode(radio.OffModeRX)
	c.radio.SetCalibrationMode(radio.CalibrationManual)
	c.radio.ReconfigAfterSleep()
	if fp.WithRFCal {
		c.radio.ManualCalibration()
	}
	c.radio.SetHeaderLenRX(c.headerLen)

	if fp.IsInitiator {
		if c.params.SetupTimeWithSync > 0 && fp.WithSync {
			time.Sleep(c.params.SetupTimeWithSync)
		}
		hf, _ := c.timer.Now()
		c.tTimeout = hf + c.params.TimeoutExtraTicks
		c.timeoutPending = false
		c.radio.StartTX()
		c.transmitCurrent()
		c.relayCntTimeout = 0
	} else {
		c.radio.StartRX()
		if c.params.CollectStats && (c.params.AlwaysSampleNoise || fp.WithSync) {
			ctx, cancel := context.WithTimeout(context.Background(), rssiSampleTimeout)
			if c.radio.WaitRSSIValid(ctx) {
				c.stats.lastNoiseFloor = c.radio.GetRSSI()
			}
			cancel()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), rfReadyTimeout)
	c.radio.WaitReady(ctx)
	cancel()

	return nil
}

// transmitCurrent encodes the header and payload into the TX FIFO. Must be
// called with c.mu held and the radio already in TX mode.
func (c *Controller) transmitCurrent() {
	buf := make([]byte, c.headerLen)
	n := c.header.Encode(buf, c.params.withRelayCnt(c.header.WithSync))
	_ = c.radio.WriteToTXFIFO(buf[:n], c.payload[:c.payloadLen])
}

// relayReceived encodes the current header and retransmits payload
// directly, rather than whatever is in c.payload. A relay must forward the
// bytes it just received, not the (possibly still-empty, possibly
// differently-sized) application buffer; only the receiver's first
// reception ever copies into that buffer, and only after the relay has
// already gone out. Must be called with c.mu held and the radio already in
// TX mode.
func (c *Controller) relayReceived(payload []byte) {
	buf := make([]byte, c.headerLen)
	n := c.header.Encode(buf, c.params.withRelayCnt(c.header.WithSync))
	_ = c.radio.WriteToTXFIFO(buf[:n], payload)
}

// Stop ends the current flood, if any, and returns the number of times a
// frame was successfully received. Calling Stop when no flood is active
// is a no-op that returns the previous flood's count.
func (c *Controller) Stop() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() int {
	if !c.active {
		return c.nRx
	}

	c.timer.Stop(timeoutTimerID)
	c.timeoutPending = false
	c.radio.FlushRXFIFO()
	c.radio.FlushTXFIFO()
	c.radio.GoToSleep()
	c.radio.ClearPendingInterrupts()
	c.active = false

	if c.tRefUpdated {
		c.backProjectTRef()
	}

	hf, _ := c.timer.Now()
	start := c.tRxStart
	if c.tTxStart != 0 && (start == 0 || c.tTxStart < start) {
		start = c.tTxStart
	}
	if start != 0 {
		c.stats.lastFloodDuration = hf - start
	}

	if !c.isInitiator {
		if c.sawRXStart {
			c.stats.floodCnt++
		}
		if c.nRx > 0 {
			c.stats.floodCntSuccess++
		}
	}
	c.stats.lastRelayCnt = c.relayCntLastRX

	return c.nRx
}

// RXStarted implements radio.Callbacks.
func (c *Controller) RXStarted(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.tRxStart = t
	c.sawRXStart = true

	c.stats.alreadyCountedFail = false
	c.stats.pktCnt++
	if c.stats.lastFloodNRxStarted == 0 {
		c.stats.tToFirstRX = t - c.stats.lastFloodDuration
	}
	c.stats.lastFloodNRxStarted++

	if c.params.RetransmissionTimeout && c.isInitiator {
		// Only the initiator ever has a timeout scheduled (TXEnded arms it
		// only for an initiator that has not yet heard anything back), so
		// only the initiator needs to cancel one here.
		c.timer.Stop(timeoutTimerID)
		c.timeoutPending = false
	}
}

// TXStarted implements radio.Callbacks. Only the timestamp is latched here;
// n_tx, relay_cnt bookkeeping, t_ref capture and slot measurement all
// happen once the transmission actually completes, in TXEnded.
func (c *Controller) TXStarted(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.tTxStart = t
}

// HeaderReceived implements radio.Callbacks. It runs the two-phase header
// validation of process_glossy_header with crc_ok=false: only the parts of
// the header that do not depend on the frame's integrity are checked, so a
// corrupt frame can be rejected before its payload has even arrived.
func (c *Controller) HeaderReceived(raw []byte, crcOK bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}

	withRelayCnt := c.params.withRelayCnt(c.header.WithSync)
	h, err := DecodeHeader(raw, withRelayCnt)
	if err != nil {
		c.headerOK = false
		c.countRXFail()
		return
	}
	if h.Tag != c.params.HeaderTag {
		c.headerOK = false
		c.countRXFail()
		return
	}
	// with_sync is supplied at Start by every node, initiator and receiver
	// alike, so it is never unknown: any mismatch here means this frame
	// belongs to a different flood, not one still being learned.
	if h.WithSync != c.header.WithSync {
		c.headerOK = false
		c.countRXFail()
		return
	}
	// n_tx_max, unlike with_sync, starts out unknown (0) on a receiver
	// until its first accepted header: only reject a mismatch once a real
	// value has actually been learned.
	if c.header.NTxMax != 0 && c.header.NTxMax != h.NTxMax {
		c.headerOK = false
		c.countRXFail()
		return
	}
	if !c.isInitiator && c.nRx == 0 {
		c.header.NTxMax = h.NTxMax
	}
	// relay_cnt is copied from the wire on every accepted header, not just
	// the first: unlike with_sync/n_tx_max it changes on every single
	// frame, and RXEnded relies on this being the value that was actually
	// received, not this node's own last-transmitted count.
	c.header.RelayCnt = h.RelayCnt
	c.headerOK = true
}

// RXEnded implements radio.Callbacks: a full frame has been received.
// This mirrors process_glossy_header with crc_ok=true, plus the relay/stop
// decision that follows it in the reference implementation.
func (c *Controller) RXEnded(t int64, payload []byte, crcOK bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}

	c.tRxStop = t

	if !crcOK || !c.headerOK {
		c.countRXFail()
		return
	}
	c.stats.pktCntCRCOK++
	// Re-checked here, not only in HeaderReceived: pkt_len is only
	// trustworthy once the frame's CRC has validated, so a length that
	// looked fine speculatively must be re-validated before it is used to
	// size a copy.
	if len(payload) > c.params.MaxPacketLen()-c.headerLen {
		c.countRXFail()
		return
	}
	// payloadLen, like n_tx_max, starts out unknown (0) on a receiver that
	// was not told what to expect: only reject a length mismatch once a
	// real value is known, either from FloodParams.PayloadLen or a prior
	// reception this flood.
	if c.payloadLen != 0 && c.payloadLen != len(payload) {
		c.countRXFail()
		return
	}
	// Reprogrammed on every accepted header, not memoized to the first,
	// as the original re-issues this call unconditionally. headerLen itself
	// is fixed at Start from FloodParams.WithSync.
	c.radio.SetHeaderLenRX(c.headerLen)

	// relayCnt is this frame's relay count before it is bumped for our own
	// retransmission, kept for the t_ref/slot bookkeeping below.
	relayCnt := c.header.RelayCnt
	c.header.RelayCnt++

	// payloadLen (and the buffer's capacity) are updated unconditionally on
	// every validated reception, before the retransmit-or-stop decision:
	// a relay must forward exactly what just arrived, never a stale or
	// still-empty application buffer.
	c.payloadLen = len(payload)
	if len(c.payload) < c.payloadLen {
		c.payload = make([]byte, c.payloadLen)
	}

	unbounded := c.header.NTxMax == 0
	if unbounded || c.nTx < int(c.header.NTxMax) {
		c.radio.StartTX()
		c.relayReceived(payload)
	} else {
		c.stopLocked()
		return
	}

	c.stats.lastFloodRSSISum += int32(c.radio.GetLastPacketRSSI())

	c.nRx++
	if !c.isInitiator && c.nRx == 1 {
		copy(c.payload, payload)
	}

	if c.header.WithSync {
		c.relayCntLastRX = relayCnt

		if !c.tRefUpdated {
			tau1 := c.params.nsToHF(c.params.TAU1NS)
			c.updateTRef(c.tRxStart-tau1, relayCnt)
			c.tSlotEstimated = c.params.EstimateTSlot(c.headerLen + len(payload))
		}
		if c.relayCntLastRX == c.relayCntLastTX+1 && c.nTx > 0 {
			tau1 := c.params.nsToHF(c.params.TAU1NS)
			measured := (c.tRxStart - c.tTxStart) - tau1
			c.addTSlotMeasurement(measured)
		}
	}
}

// TXEnded implements radio.Callbacks: a transmission has physically
// completed. This is where n_tx, relay_cnt_last_tx and t_ref bookkeeping
// happen, after TXStarted, matching the reference firmware's
// glossy_tx_ended (not glossy_tx_started).
func (c *Controller) TXEnded(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.tTxStop = t

	if c.header.WithSync {
		c.relayCntLastTX = c.header.RelayCnt

		if !c.tRefUpdated {
			c.updateTRef(c.tTxStart, c.header.RelayCnt)
		}
		if c.relayCntLastTX == c.relayCntLastRX+1 && c.nRx > 0 {
			tau1 := c.params.nsToHF(c.params.TAU1NS)
			measured := (c.tTxStart - c.tRxStart) + tau1
			c.addTSlotMeasurement(measured)
		}
	}

	c.nTx++

	unbounded := c.header.NTxMax == 0
	if c.nTx == int(c.header.NTxMax) && (!unbounded || !c.isInitiator) {
		c.stopLocked()
		return
	}
	if c.params.RetransmissionTimeout && c.isInitiator && c.nRx == 0 {
		// Still the only node that has said anything: keep re-announcing
		// the flood in case every receiver missed the first attempt.
		c.scheduleTimeout()
	}
}

// RXFailed implements radio.Callbacks: a frame began arriving but could
// not be completed (bad CRC or a malformed header discovered too late to
// reject in HeaderReceived).
func (c *Controller) RXFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.countRXFail()
	c.headerOK = false
}

// countRXFail increments the per-flood rx-fail counter at most once per
// packet: HeaderReceived and RXEnded may both observe the same bad
// reception, and the reference guards this the same way with
// already_counted, reset every RXStarted.
func (c *Controller) countRXFail() {
	if c.stats.alreadyCountedFail {
		return
	}
	c.stats.lastFloodNRxFail++
	c.stats.alreadyCountedFail = true
}

// RXTXError implements radio.Callbacks: a driver-level error unrelated to
// frame contents (distinct from RXFailed: this is the reference's
// error_cnt, not n_rx_fail).
func (c *Controller) RXTXError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.stats.errCnt++
}
