package protocol

import "time"

// Wire framing bytes. Every frame travels behind a leading start marker, and
// any payload occurrence of either marker is prefixed with the escape byte so
// a bare start marker always means "frame boundary".
const (
	StartByte  = '+' // 0x2B
	EscapeByte = '-' // 0x2D
)

// Request frame layout (unescaped, 8 bytes):
// [0]=command [1]=payload length [2..5]=register id BE [6..7]=CRC BE
const (
	CmdRead           = 1
	RequestPayloadLen = 4
	RequestFrameSize  = 8
)

// Response frame layout (unescaped, 12 bytes):
// [0]=command [1]=payload length [2..5]=register id BE
// [6..9]=IEEE-754 value, byte-reversed [10..11]=CRC BE
const (
	CmdReadResponse    = 5
	ResponsePayloadLen = 8
	ResponseFrameSize  = 12
)

// CRC-16-CCITT configuration (shared by requests and responses)
const (
	crcInitial    = 0xFFFF
	crcPolynomial = 0x1021
)

// MaxScheduledTransactions bounds the FIFO of reads waiting for the pending
// slot. Enqueueing beyond this fails with NoTransactionAvailable.
const MaxScheduledTransactions = 8

// receiveBudget caps how long a single Receive call may spend draining bytes
// before handing control back to the scheduler.
const receiveBudget = 10 * time.Millisecond

// bootloaderMagic is the 4-byte signature the device emits on the stream once
// its firmware-update bootloader has taken over.
const bootloaderMagic = 0x50F705AB
