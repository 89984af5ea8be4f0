// Package transport provides the byte-oriented connections the protocol
// engine runs over.
//
// The engine's contract is deliberately narrow: non-blocking single-byte
// receive, non-blocking send, and a disconnect signal that fires exactly
// once with a reason. Two implementations are provided:
//
//   - TCPConn: a plain TCP connection to the inverter's listener (port 8899
//     by default). Non-blocking reads are implemented with an immediately
//     expiring read deadline over an internal refill buffer.
//   - WSConn: a serial-over-WebSocket bridge carrying the same byte stream
//     in binary frames, with a pump goroutine feeding a buffered channel.
//
// Receiving belongs to the one goroutine that drives the engine (see the
// poller package). Connected, Disconnect and Close are safe from any
// goroutine, since a shutdown request can arrive while the engine goroutine
// is still mid-loop. The read pump inside WSConn is the only internal
// goroutine, and it touches the shared state only through its channels.
package transport
