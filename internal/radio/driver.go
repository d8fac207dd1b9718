// Package radio abstracts the sub-GHz transceiver a glossy.Controller
// drives: manual calibration, RX/TX FIFO access and the interrupt-style
// callbacks the reference cc430/rf1a driver delivers from its own ISR
// context. Concrete implementations live in this package (a deterministic
// in-memory Medium for tests and internal/sim) or are provided by the host
// binary for real hardware.
package radio

import "context"

// OffMode selects what the transceiver does immediately after a TX or RX
// operation completes, mirroring the cc430 RF1A off-mode settings.
type OffMode int

const (
	OffModeIdle OffMode = iota
	OffModeSleep
	OffModeRX
	OffModeTX
)

// CalibrationMode selects whether the radio calibrates itself on every
// mode transition or only when ManualCalibration is called explicitly.
// Glossy always uses manual calibration to keep flood timing predictable.
type CalibrationMode int

const (
	CalibrationAutomatic CalibrationMode = iota
	CalibrationManual
)

// Driver is the hardware-facing surface a glossy.Controller drives. All
// methods must return promptly: Glossy's timing budget is microseconds,
// so a Driver implementation may never block on I/O beyond the bounded
// waits expressed through the passed Context.
type Driver interface {
	// GoToIdle switches the radio to its idle state, aborting any RX/TX
	// in progress.
	GoToIdle()

	// GoToSleep puts the radio in its lowest-power state.
	GoToSleep()

	// StartTX begins transmitting; the caller must follow with
	// WriteToTXFIFO before the FIFO underruns.
	StartTX()

	// StartRX begins listening.
	StartRX()

	// WriteToTXFIFO enqueues header and payload for transmission. Returns
	// an error if the FIFO cannot accept the frame (e.g. still draining a
	// previous transmission).
	WriteToTXFIFO(header, payload []byte) error

	// FlushRXFIFO and FlushTXFIFO discard any buffered bytes.
	FlushRXFIFO()
	FlushTXFIFO()

	// SetRXOffMode and SetTXOffMode configure the automatic state
	// transition after a completed RX or TX.
	SetRXOffMode(m OffMode)
	SetTXOffMode(m OffMode)

	// SetCalibrationMode selects automatic or manual calibration.
	SetCalibrationMode(m CalibrationMode)

	// ManualCalibration runs a calibration cycle; must be called before
	// the first StartTX/StartRX when CalibrationManual is set.
	ManualCalibration()

	// SetHeaderLenRX configures how many header bytes the radio delivers
	// to Callbacks.HeaderReceived before the rest of the frame arrives.
	SetHeaderLenRX(n int)

	// ReconfigAfterSleep restores radio registers lost while sleeping.
	ReconfigAfterSleep()

	// IsBusy reports whether the radio is mid-RX or mid-TX.
	IsBusy() bool

	// GetRSSI samples the current received signal strength, valid only
	// while listening and once WaitRSSIValid has returned true.
	GetRSSI() int8

	// GetLastPacketRSSI reports the RSSI measured during reception of the
	// most recently completed packet.
	GetLastPacketRSSI() int8

	// ClearPendingInterrupts drops any queued-but-undelivered callback the
	// radio recorded before the caller was ready to receive it.
	ClearPendingInterrupts()

	// WaitReady blocks until the radio signals it has completed its
	// current mode transition, or ctx is done. Returns false on timeout.
	WaitReady(ctx context.Context) bool

	// WaitRSSIValid blocks until GetRSSI would return a valid sample, or
	// ctx is done. Returns false on timeout.
	WaitRSSIValid(ctx context.Context) bool

	// SetCallbacks registers the receiver of the driver's interrupt-style
	// events. Called once, before the first Start.
	SetCallbacks(cb Callbacks)
}

// Callbacks receives the interrupt-style events a Driver delivers.
// Implemented by glossy.Controller; all methods are invoked with the
// controller's mutex NOT held by the driver, so the controller is free to
// take its own lock inside each one.
type Callbacks interface {
	// RXStarted fires when the radio detects the start of an incoming
	// frame (sync word match), at local high-frequency timestamp t.
	RXStarted(t int64)

	// TXStarted fires when the radio begins transmitting, at local
	// high-frequency timestamp t.
	TXStarted(t int64)

	// HeaderReceived fires once SetHeaderLenRX bytes have arrived for the
	// frame currently being received.
	HeaderReceived(header []byte, crcOK bool)

	// RXEnded fires when a full frame has been received, at local
	// high-frequency timestamp t. payload is only the bytes after the
	// header; crcOK reports whether the frame passed the radio's CRC.
	RXEnded(t int64, payload []byte, crcOK bool)

	// TXEnded fires when a full frame has finished transmitting, at local
	// high-frequency timestamp t.
	TXEnded(t int64)

	// RXFailed fires when a frame that started reception could not be
	// completed (e.g. address mismatch or a corrupted header length).
	RXFailed()

	// RXTXError fires on a driver-detected error unrelated to the packet
	// contents (e.g. a FIFO overflow/underflow).
	RXTXError()
}
