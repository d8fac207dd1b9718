package glossy

// state holds every field that gets reset at the start of a flood
// (spec Section 5, Data Model table). It is embedded in Controller and
// touched only while the Controller's mutex is held.
type state struct {
	active bool

	isInitiator bool
	initiatorID uint16

	header    Header
	headerLen int
	headerOK  bool

	payload    []byte
	payloadLen int

	nTx int
	nRx int

	tTxStart int64
	tTxStop  int64
	tRxStart int64
	tRxStop  int64

	tRef        int64
	tRefUpdated bool

	relayCntTRef    uint8
	relayCntLastRX  uint8
	relayCntLastTX  uint8
	relayCntTimeout uint8

	tSlotEstimated int64
	tSlotSum       int64
	nTSlot         int64

	tTimeout       int64
	timeoutPending bool

	sawRXStart bool
}

// reset zeroes every per-flood field. Called at the top of every Start.
func (s *state) reset() {
	*s = state{}
}
