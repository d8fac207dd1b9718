package glossy

import "errors"

// Sentinel errors. Start returns ErrOversizedFrame,
// ErrInitiatorNeedsPayloadLen or ErrAlreadyActive when the caller-supplied
// configuration is invalid; DecodeHeader wraps ErrShortPacket. No radio
// callback ever returns an error to the caller
// (spec Section 7): a flood is a best-effort one-shot primitive and the
// caller inspects GetRxCnt/IsTRefUpdated after Stop.
var (
	// ErrOversizedFrame indicates the initiator's header+payload would
	// exceed the deployment's MaxPacketLen.
	ErrOversizedFrame = errors.New("glossy: header + payload exceeds max packet length")

	// ErrInitiatorNeedsPayloadLen indicates the initiator started a flood
	// without specifying a payload length; only receivers may leave it
	// unknown to be learned from the first reception.
	ErrInitiatorNeedsPayloadLen = errors.New("glossy: initiator must know payload length")

	// ErrShortPacket indicates a frame shorter than the minimum header size
	// reached the header decoder.
	ErrShortPacket = errors.New("glossy: packet shorter than header")

	// ErrAlreadyActive indicates Start was called while a flood is still
	// in progress.
	ErrAlreadyActive = errors.New("glossy: flood already active")
)
