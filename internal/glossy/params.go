package glossy

import "time"

// Default timing constants, carried over from the reference cc430/rf1a
// configuration (spec Section 6, original_source/arch/cpu/cc430/glossy.c).
// All *_ constants ending in "NS" are nanoseconds; ticks are high-frequency
// timer ticks as returned by timer.Clock.NowHF.
const (
	// DefaultSlotTolerance is T_SLOT_TOLERANCE: the maximum deviation (in
	// high-frequency ticks) between a measured and the theoretical T_slot
	// for the measurement to be accepted.
	DefaultSlotTolerance = 10

	// DefaultTimeoutExtraTicks is TIMEOUT_EXTRA_TICKS: extra ticks given to
	// the initiator's first t_timeout so the timeout callback has enough
	// lead time to keep transmissions bit-synchronous.
	DefaultTimeoutExtraTicks = 70

	// slotTimeoutSlots is SLOT_TIMEOUT_MIN/MAX collapsed to a single value.
	//
	// The original firmware hardcodes this to 2 despite a commented-out
	// "random(SLOT_TIMEOUT_MIN, SLOT_TIMEOUT_MAX)" call; whether
	// randomization for collision avoidance was ever intended is unclear.
	// This implementation preserves the fixed value rather than guessing.
	slotTimeoutSlots = 2
)

// Params holds the compile-time configuration of spec Section 6, made
// runtime-tunable since Go has no macro preprocessor. A Params value is
// immutable once handed to NewController.
type Params struct {
	// PayloadLen is the maximum payload length in bytes (the receiver's
	// payload buffer must have at least this capacity).
	PayloadLen int

	// HeaderTag is the deployment-wide 3-bit common-header tag (0-7).
	HeaderTag uint8

	// SetupTimeWithSync is the busy-wait before the initiator's first TX
	// when with_sync is set, used to align floods to a slot boundary.
	SetupTimeWithSync time.Duration

	// AlwaysRelayCnt sends relay_cnt even when with_sync is false.
	AlwaysRelayCnt bool

	// RetransmissionTimeout enables the timeout fallback of spec Section 4.4.
	RetransmissionTimeout bool

	// CollectStats enables RSSI noise-floor sampling at Start (see
	// AlwaysSampleNoise). The statistics counters are updated whether or
	// not it is set.
	CollectStats bool

	// AlwaysSampleNoise samples the RSSI noise floor on every flood, not
	// only when with_sync is set.
	AlwaysSampleNoise bool

	// TAU1NS, T2RNS, TTxByteNS and TTxOffsetNS are the radio-timing
	// constants used to estimate T_slot (spec Section 4.3):
	//
	//	T_slot ~= T_TX_BYTE*(pkt_len+3) + T_TX_OFFSET + T2R - TAU1
	TAU1NS      int64
	T2RNS       int64
	TTxByteNS   int64
	TTxOffsetNS int64

	// SlotTolerance is T_SLOT_TOLERANCE in high-frequency ticks.
	SlotTolerance int64

	// TimeoutExtraTicks is TIMEOUT_EXTRA_TICKS in high-frequency ticks.
	TimeoutExtraTicks int64

	// HFTicksPerSecond and LFTicksPerSecond convert timing constants
	// (nanoseconds, durations) to ticks in the two timebases exposed by
	// internal/timer.Clock.
	HFTicksPerSecond int64
	LFTicksPerSecond int64
}

// DefaultParams returns Params seeded with the reference cc430/rf1a timing
// constants and a 64-byte payload, suitable for tests and simulation.
func DefaultParams() Params {
	return Params{
		PayloadLen:            64,
		HeaderTag:             0x2,
		SetupTimeWithSync:     0,
		AlwaysRelayCnt:        false,
		RetransmissionTimeout: true,
		CollectStats:          true,
		AlwaysSampleNoise:     false,
		TAU1NS:                800,
		T2RNS:                 500,
		TTxByteNS:             416,
		TTxOffsetNS:           1200,
		SlotTolerance:         DefaultSlotTolerance,
		TimeoutExtraTicks:     DefaultTimeoutExtraTicks,
		HFTicksPerSecond:      3_250_000,
		LFTicksPerSecond:      32_768,
	}
}

// MaxPacketLen is the maximum wire frame size: MaxHeaderLen + PayloadLen.
func (p Params) MaxPacketLen() int {
	return MaxHeaderLen + p.PayloadLen
}

// withRelayCnt reports whether relay_cnt is sent for a flood configured
// with the given with_sync value.
func (p Params) withRelayCnt(withSync bool) bool {
	return withSync || p.AlwaysRelayCnt
}

// nsToHF converts a nanosecond duration to high-frequency ticks.
func (p Params) nsToHF(ns int64) int64 {
	return ns * p.HFTicksPerSecond / 1_000_000_000
}

// EstimateTSlot computes T_slot_estimated for a packet of the given wire
// length (header + payload), per spec Section 4.3.
func (p Params) EstimateTSlot(pktLen int) int64 {
	tTxEstimNS := p.TTxByteNS*(int64(pktLen)+3) + p.TTxOffsetNS
	return p.nsToHF(tTxEstimNS + p.T2RNS - p.TAU1NS)
}
