// Package protocol implements the RCT Power wire protocol and the
// single-outstanding-request engine that drives it.
//
// # Wire Format
//
// Requests and responses are fixed-shape frames protected by a CRC-16-CCITT
// checksum and byte-stuffed for transport. A read request is 8 bytes:
//
//	[0]    command (1 = read)
//	[1]    payload length (4)
//	[2..5] register id, big-endian
//	[6..7] CRC over bytes 0..5, big-endian
//
// A read response is 12 bytes:
//
//	[0]     command (5)
//	[1]     payload length (8)
//	[2..5]  register id, big-endian
//	[6..9]  IEEE-754 single-precision value, bytes reversed
//	[10..11] CRC over bytes 0..9, big-endian
//
// On the wire each frame is preceded by a start marker '+', and every
// occurrence of '+' or '-' inside the frame is prefixed with the escape
// byte '-'. A bare '+' therefore always marks a frame boundary, which is
// what allows the receiver to resynchronize after garbage.
//
// # Engine
//
// Client holds a bounded FIFO of scheduled reads and exactly one in-flight
// ("pending") transaction. The connection owner drives it through three
// entry points, always from a single goroutine:
//
//   - Tick: time out an overdue pending transaction, then dequeue and send
//     the next request.
//   - Receive: pull bytes through the receive state machine under a short
//     wall-clock budget.
//   - ConnectionClosed: reset everything and abort every transaction.
//
// Each transaction resolves exactly once through its callback with one of
// the closed set of Result values. Checksum mismatches and timeouts are
// per-request failures and leave the connection up; send and receive errors
// escalate to the transport's disconnect signal.
//
// The engine has no internal locking and never blocks: sends and receives
// are non-blocking, and the receive loop limits itself by wall clock rather
// than by waiting for a full frame.
package protocol
