package glossy

// addTSlotMeasurement records a newly observed inter-transmission interval,
// accepting it into the running average only if it falls strictly within
// SlotTolerance ticks of the current estimate (spec Section 4.3). The
// bounds are exclusive, matching the reference implementation: a
// measurement exactly on the boundary is rejected.
func (c *Controller) addTSlotMeasurement(measured int64) {
	lo := c.tSlotEstimated - c.params.SlotTolerance
	hi := c.tSlotEstimated + c.params.SlotTolerance
	if measured <= lo || measured >= hi {
		return
	}
	c.tSlotSum += measured
	c.nTSlot++
}

// updateTRef latches the flood's time reference the first time it is
// called during a given flood; subsequent calls are no-ops. t is the local
// high-frequency timestamp of the reception or transmission that produced
// the reference, and relayCnt is this node's own relay count at that
// instant (before it was incremented for the next hop), so Stop can later
// back-project to the initiator's original transmission instant.
func (c *Controller) updateTRef(t int64, relayCnt uint8) {
	if c.tRefUpdated {
		return
	}
	c.tRef = t
	c.relayCntTRef = relayCnt
	c.tRefUpdated = true
}

// backProjectTRef removes the accumulated per-hop slot delay from tRef so
// that it points at the initiator's original transmission instant rather
// than the instant this node observed the reference packet. Only called
// from Stop, and only when tRefUpdated.
func (c *Controller) backProjectTRef() {
	if c.relayCntTRef == 0 {
		return
	}
	if c.nTSlot > 0 {
		avg := c.tSlotSum / c.nTSlot
		c.tRef -= int64(c.relayCntTRef) * avg
		return
	}
	c.tRef -= int64(c.relayCntTRef) * c.tSlotEstimated
}
