package glossy

// scheduleTimeout arms the retransmission-timeout fallback (spec
// Section 4.4). The wait is always slotTimeoutSlots slots regardless of
// hop count: the original firmware carries a commented-out call that would
// randomize this between SLOT_TIMEOUT_MIN and SLOT_TIMEOUT_MAX for
// collision avoidance, but ships with it fixed at the minimum. Whether
// that randomization was ever meant to be enabled is not recoverable from
// the source alone, so this keeps the shipped, fixed behavior rather than
// guessing at the commented-out one.
func (c *Controller) scheduleTimeout() {
	if !c.params.RetransmissionTimeout {
		return
	}
	if c.params.withRelayCnt(c.header.WithSync) {
		c.relayCntTimeout = c.header.RelayCnt + slotTimeoutSlots
	}
	c.tTimeout += slotTimeoutSlots * c.tSlotEstimated
	c.timeoutPending = true
	c.timer.Schedule(timeoutTimerID, c.tTimeout, c.onTimeoutExpired)
}

// onTimeoutExpired fires when no packet has been seen for slotTimeoutSlots
// slots. If the radio is idle it retransmits the last known-good frame
// with an incremented relay count, standing in for a hop that appears to
// have gone silent. If the radio is mid-reception, a real packet may still
// land, so it only extends the deadline by one more slot rather than
// aborting the reception. After retransmitting it does not re-arm the
// timer itself: the retransmission it just started only re-arms, via
// TXEnded, once that transmission actually completes.
func (c *Controller) onTimeoutExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || !c.timeoutPending {
		return
	}

	if c.radio.IsBusy() {
		c.relayCntTimeout++
		c.tTimeout += c.tSlotEstimated
		c.timer.Schedule(timeoutTimerID, c.tTimeout, c.onTimeoutExpired)
		return
	}

	c.header.RelayCnt = c.relayCntTimeout
	c.radio.StartTX()
	buf := make([]byte, c.headerLen+c.payloadLen)
	n := c.header.Encode(buf, c.params.withRelayCnt(c.header.WithSync))
	copy(buf[n:], c.payload[:c.payloadLen])
	_ = c.radio.WriteToTXFIFO(buf[:n], buf[n:n+c.payloadLen])
	c.tTimeout, _ = c.timer.Now()
}

const timeoutTimerID = "glossy-timeout"
