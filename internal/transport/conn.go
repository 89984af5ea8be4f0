package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Conn.ReceiveByte.
var (
	// ErrWouldBlock reports that no byte is currently available; the caller
	// should retry on its next scheduling slot. It is not a failure.
	ErrWouldBlock = errors.New("transport: receive would block")

	// ErrClosedByPeer reports that the remote end closed the connection in
	// an orderly fashion.
	ErrClosedByPeer = errors.New("transport: connection closed by peer")
)

// Reason classifies why a connection is being torn down. It travels with the
// disconnect signal so the owner can distinguish transport failures from an
// intentional shutdown.
type Reason int

const (
	// ReasonSendFailed means a write on the connection failed.
	ReasonSendFailed Reason = iota
	// ReasonReceiveFailed means a read on the connection failed hard.
	ReasonReceiveFailed
	// ReasonPeerClosed means the remote end hung up.
	ReasonPeerClosed
	// ReasonRequested means the local owner asked for the teardown.
	ReasonRequested
)

// String returns the canonical name of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonSendFailed:
		return "send failed"
	case ReasonReceiveFailed:
		return "receive failed"
	case ReasonPeerClosed:
		return "disconnected by peer"
	case ReasonRequested:
		return "requested"
	default:
		return fmt.Sprintf("Reason(%d)", r)
	}
}

// DisconnectFunc observes a connection teardown. It is invoked at most once,
// on the goroutine that triggered the disconnect.
type DisconnectFunc func(reason Reason, err error)

// Conn is the byte-oriented duplex connection the protocol engine drives.
//
// Send and ReceiveByte never block: ReceiveByte returns ErrWouldBlock when
// nothing is buffered and ErrClosedByPeer once the remote end has hung up.
// Disconnect closes the connection and delivers the registered disconnect
// callback exactly once; Close tears down quietly without the callback.
type Conn interface {
	Connected() bool
	Send(p []byte) error
	ReceiveByte() (byte, error)
	Disconnect(reason Reason, err error)
	OnDisconnect(fn DisconnectFunc)
	Close() error
}
