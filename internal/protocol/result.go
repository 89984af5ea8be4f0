package protocol

import (
	"fmt"
	"math"
)

// Result is the outcome delivered with every transaction callback. Exactly
// one Result accompanies each callback invocation; every Result other than
// Success carries NaN in place of a reading.
type Result int

const (
	// Success means a validated response was received for the transaction.
	Success Result = iota
	// InvalidArgument means the read request itself was malformed (negative timeout).
	InvalidArgument
	// Aborted means the connection was torn down while the transaction was queued or pending.
	Aborted
	// NoTransactionAvailable means the scheduled-transaction FIFO was full.
	NoTransactionAvailable
	// NotConnected means no connection was open at enqueue time.
	NotConnected
	// DisconnectedByPeer means the remote side closed the connection.
	DisconnectedByPeer
	// SendFailed means writing the request frame to the connection failed.
	SendFailed
	// ReceiveFailed means reading from the connection failed.
	ReceiveFailed
	// Timeout means no matching response arrived before the transaction deadline.
	Timeout
	// ChecksumMismatch means a response for the transaction arrived with a bad CRC.
	ChecksumMismatch
)

// String returns the canonical name of the result.
func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case InvalidArgument:
		return "InvalidArgument"
	case Aborted:
		return "Aborted"
	case NoTransactionAvailable:
		return "NoTransactionAvailable"
	case NotConnected:
		return "NotConnected"
	case DisconnectedByPeer:
		return "DisconnectedByPeer"
	case SendFailed:
		return "SendFailed"
	case ReceiveFailed:
		return "ReceiveFailed"
	case Timeout:
		return "Timeout"
	case ChecksumMismatch:
		return "ChecksumMismatch"
	default:
		return fmt.Sprintf("Result(%d)", r)
	}
}

// NoValue is the sentinel carried by every non-Success callback.
func NoValue() float32 {
	return float32(math.NaN())
}
