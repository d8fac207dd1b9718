package glossy_test

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/ystepanoff/glossy/internal/glossy"
	"github.com/ystepanoff/glossy/internal/radio"
	"github.com/ystepanoff/glossy/internal/timer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestPair(t *testing.T, params glossy.Params) (*glossy.Controller, *glossy.Controller, *timer.Simulated) {
	t.Helper()

	clock := timer.NewSimulated(params.HFTicksPerSecond, params.LFTicksPerSecond)
	medium := radio.NewMedium(clock)

	initDriver := radio.NewSimulated(medium, clock)
	rxDriver := radio.NewSimulated(medium, clock)

	initCtrl := glossy.NewController(params, initDriver, clock, nil)
	rxCtrl := glossy.NewController(params, rxDriver, clock, nil)

	return initCtrl, rxCtrl, clock
}

func TestInitiatorReceiverBasicFlood(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	params.PayloadLen = 8

	initCtrl, rxCtrl, clock := newTestPair(t, params)

	payload := []byte("hi-there")
	payloadLen := len(payload)

	if err := initCtrl.Start(glossy.FloodParams{
		IsInitiator: true,
		InitiatorID: 1,
		Payload:     payload,
		PayloadLen:  &payloadLen,
		WithSync:    true,
		NTxMax:      2,
	}); err != nil {
		t.Fatalf("initiator Start() error: %v", err)
	}

	if err := rxCtrl.Start(glossy.FloodParams{
		IsInitiator: false,
		WithSync:    true,
	}); err != nil {
		t.Fatalf("receiver Start() error: %v", err)
	}

	clock.Advance(20)

	rxCnt := rxCtrl.Stop()
	initCtrl.Stop()

	if rxCnt == 0 {
		t.Fatal("receiver never got a frame")
	}
	if rxCtrl.GetPayloadLen() != payloadLen {
		t.Errorf("receiver payload len = %d, want %d", rxCtrl.GetPayloadLen(), payloadLen)
	}
	if string(rxCtrl.Payload()) != string(payload) {
		t.Errorf("receiver payload = %q, want %q", rxCtrl.Payload(), payload)
	}
	if !rxCtrl.IsTRefUpdated() {
		t.Error("receiver never captured a time reference")
	}
}

func TestReceiverLearnsNTxMaxFromWire(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	params.PayloadLen = 4
	params.AlwaysRelayCnt = false

	initCtrl, rxCtrl, clock := newTestPair(t, params)

	payload := []byte("ping")
	payloadLen := len(payload)

	if err := initCtrl.Start(glossy.FloodParams{
		IsInitiator: true,
		Payload:     payload,
		PayloadLen:  &payloadLen,
		WithSync:    false,
		NTxMax:      1,
	}); err != nil {
		t.Fatalf("initiator Start() error: %v", err)
	}
	if err := rxCtrl.Start(glossy.FloodParams{WithSync: false}); err != nil {
		t.Fatalf("receiver Start() error: %v", err)
	}

	clock.Advance(20)

	rxCnt := rxCtrl.Stop()
	initCtrl.Stop()

	if rxCnt == 0 {
		t.Fatal("receiver never got a frame")
	}
	if rxCtrl.GetHeader().NTxMax != 1 {
		t.Errorf("receiver learned NTxMax = %d, want 1", rxCtrl.GetHeader().NTxMax)
	}
}

func TestRelayCntIncrementsAcrossHops(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	params.PayloadLen = 4
	params.AlwaysRelayCnt = true

	initCtrl, hop1Ctrl, clock := newTestPair(t, params)

	payload := []byte("ping")
	payloadLen := len(payload)

	if err := initCtrl.Start(glossy.FloodParams{
		IsInitiator: true,
		Payload:     payload,
		PayloadLen:  &payloadLen,
		WithSync:    true,
		NTxMax:      4,
	}); err != nil {
		t.Fatalf("initiator Start() error: %v", err)
	}
	if err := hop1Ctrl.Start(glossy.FloodParams{
		WithSync: true,
		NTxMax:   4,
	}); err != nil {
		t.Fatalf("hop1 Start() error: %v", err)
	}

	clock.Advance(4)

	// The initiator sent relay_cnt=0; a receiver that has relayed it once
	// carries the count it will send on its own next transmission, i.e.
	// receivedCnt+1.
	if got := hop1Ctrl.GetHeader().RelayCnt; got != 1 {
		t.Fatalf("hop1 RelayCnt = %d, want 1 after receiving from the initiator", got)
	}

	hop1Ctrl.Stop()
	initCtrl.Stop()

	// Feed hop1's outgoing frame (relay_cnt=1) into a fresh second-hop
	// receiver directly, standing in for a third node that only ever hears
	// hop1's relay, never the initiator itself.
	medium2 := radio.NewMedium(clock)
	hop2Driver := radio.NewSimulated(medium2, clock)
	hop2Ctrl := glossy.NewController(params, hop2Driver, clock, nil)
	if err := hop2Ctrl.Start(glossy.FloodParams{
		WithSync: true,
		NTxMax:   4,
	}); err != nil {
		t.Fatalf("hop2 Start() error: %v", err)
	}

	relayed := glossy.Header{
		Tag:      params.HeaderTag,
		WithSync: true,
		NTxMax:   4,
		RelayCnt: 1,
	}
	buf := make([]byte, relayed.Len(true))
	n := relayed.Encode(buf, true)

	hop2Ctrl.RXStarted(0)
	hop2Ctrl.HeaderReceived(buf[:n], true)
	hop2Ctrl.RXEnded(1, payload, true)

	if got := hop2Ctrl.GetHeader().RelayCnt; got != 2 {
		t.Errorf("hop2 RelayCnt = %d, want 2 after relaying a frame received with relay_cnt=1", got)
	}

	hop2Ctrl.Stop()
}

func TestHeaderReceivedRejectsNTxMaxMismatch(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	params.PayloadLen = 4

	_, rxCtrl, _ := newTestPair(t, params)

	if err := rxCtrl.Start(glossy.FloodParams{WithSync: true, NTxMax: 0}); err != nil {
		t.Fatalf("receiver Start() error: %v", err)
	}

	good := glossy.Header{Tag: params.HeaderTag, WithSync: true, NTxMax: 3, RelayCnt: 0}
	buf := make([]byte, good.Len(true))
	n := good.Encode(buf, true)

	rxCtrl.RXStarted(0)
	rxCtrl.HeaderReceived(buf[:n], true)
	rxCtrl.RXEnded(1, make([]byte, 4), true)

	if got := rxCtrl.GetHeader().NTxMax; got != 3 {
		t.Fatalf("receiver learned NTxMax = %d, want 3", got)
	}

	mismatched := glossy.Header{Tag: params.HeaderTag, WithSync: true, NTxMax: 5, RelayCnt: 1}
	buf2 := make([]byte, mismatched.Len(true))
	n2 := mismatched.Encode(buf2, true)

	rxCtrl.RXStarted(2)
	rxCtrl.HeaderReceived(buf2[:n2], true)
	rxCtrl.RXEnded(3, make([]byte, 4), true)

	snap := rxCtrl.Stats()
	if snap.NRxFail == 0 {
		t.Error("NRxFail = 0, want > 0 after an n_tx_max-mismatched header")
	}
	if got := rxCtrl.GetHeader().NTxMax; got != 3 {
		t.Errorf("receiver NTxMax = %d, want unchanged 3 after rejecting the mismatch", got)
	}

	rxCtrl.Stop()
}

func TestStartRejectsOversizedFrame(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	params.PayloadLen = 4

	clock := timer.NewSimulated(params.HFTicksPerSecond, params.LFTicksPerSecond)
	medium := radio.NewMedium(clock)
	driver := radio.NewSimulated(medium, clock)
	ctrl := glossy.NewController(params, driver, clock, nil)

	tooBig := params.MaxPacketLen()
	err := ctrl.Start(glossy.FloodParams{
		IsInitiator: true,
		Payload:     make([]byte, tooBig),
		PayloadLen:  &tooBig,
	})
	if err == nil {
		t.Fatal("Start() with oversized payload returned nil error")
	}
}

func TestStartInitiatorRequiresPayloadLen(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	clock := timer.NewSimulated(params.HFTicksPerSecond, params.LFTicksPerSecond)
	medium := radio.NewMedium(clock)
	driver := radio.NewSimulated(medium, clock)
	ctrl := glossy.NewController(params, driver, clock, nil)

	err := ctrl.Start(glossy.FloodParams{IsInitiator: true})
	if err == nil {
		t.Fatal("Start() without PayloadLen returned nil error")
	}
}

func TestStartTwiceReturnsErrAlreadyActive(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	clock := timer.NewSimulated(params.HFTicksPerSecond, params.LFTicksPerSecond)
	medium := radio.NewMedium(clock)
	driver := radio.NewSimulated(medium, clock)
	ctrl := glossy.NewController(params, driver, clock, nil)

	if err := ctrl.Start(glossy.FloodParams{}); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	if err := ctrl.Start(glossy.FloodParams{}); err == nil {
		t.Fatal("second Start() returned nil error, want ErrAlreadyActive")
	}
	ctrl.Stop()
}

func TestTimeoutFallbackRetransmits(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	params.PayloadLen = 4
	params.RetransmissionTimeout = true

	clock := timer.NewSimulated(params.HFTicksPerSecond, params.LFTicksPerSecond)
	medium := radio.NewMedium(clock)
	driver := radio.NewSimulated(medium, clock)
	ctrl := glossy.NewController(params, driver, clock, nil)

	payload := []byte("solo")
	payloadLen := len(payload)

	if err := ctrl.Start(glossy.FloodParams{
		IsInitiator: true,
		Payload:     payload,
		PayloadLen:  &payloadLen,
		WithSync:    true,
	}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// No receiver ever exists on this Medium, so the only way TxCnt grows
	// past the initial transmission is the retransmission-timeout fallback
	// firing repeatedly as the clock advances with nothing else happening.
	clock.Advance(500)

	txCnt := ctrl.GetTxCnt()
	ctrl.Stop()

	if txCnt < 2 {
		t.Errorf("GetTxCnt() = %d, want >= 2 (timeout fallback should have retransmitted)", txCnt)
	}
}

func TestReceiverIgnoresCorruptedFrame(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	params.PayloadLen = 4

	clock := timer.NewSimulated(params.HFTicksPerSecond, params.LFTicksPerSecond)
	medium := radio.NewMedium(clock)
	medium.Corrupt = func(from, to *radio.Simulated, frame []byte) bool {
		return true // every frame fails CRC
	}

	initDriver := radio.NewSimulated(medium, clock)
	rxDriver := radio.NewSimulated(medium, clock)
	initCtrl := glossy.NewController(params, initDriver, clock, nil)
	rxCtrl := glossy.NewController(params, rxDriver, clock, nil)

	payload := []byte("bad!")
	payloadLen := len(payload)

	if err := initCtrl.Start(glossy.FloodParams{
		IsInitiator: true,
		Payload:     payload,
		PayloadLen:  &payloadLen,
		WithSync:    true,
	}); err != nil {
		t.Fatalf("initiator Start() error: %v", err)
	}
	if err := rxCtrl.Start(glossy.FloodParams{WithSync: true}); err != nil {
		t.Fatalf("receiver Start() error: %v", err)
	}

	clock.Advance(20)

	rxCnt := rxCtrl.Stop()
	initCtrl.Stop()

	if rxCnt != 0 {
		t.Errorf("GetRxCnt() = %d, want 0 (every frame corrupted)", rxCnt)
	}
	snap := rxCtrl.Stats()
	if snap.NRxFail == 0 {
		t.Error("NRxFail = 0, want > 0 after corrupted frames")
	}
	if snap.ErrCnt != 0 {
		t.Errorf("ErrCnt = %d, want 0 (corrupted frames are n_rx_fail, not error_cnt)", snap.ErrCnt)
	}
	if snap.PktCntCRCOK != 0 {
		t.Errorf("PktCntCRCOK = %d, want 0", snap.PktCntCRCOK)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	clock := timer.NewSimulated(params.HFTicksPerSecond, params.LFTicksPerSecond)
	medium := radio.NewMedium(clock)
	driver := radio.NewSimulated(medium, clock)
	ctrl := glossy.NewController(params, driver, clock, nil)

	if err := ctrl.Start(glossy.FloodParams{}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	first := ctrl.Stop()
	second := ctrl.Stop()
	if first != second {
		t.Errorf("Stop() twice gave %d then %d, want equal", first, second)
	}
	if ctrl.IsActive() {
		t.Error("controller still active after Stop()")
	}
}
