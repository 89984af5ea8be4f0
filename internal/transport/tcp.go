package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/helvik/rctpower/internal/logging"
)

const (
	// DefaultPort is the TCP port RCT Power inverters listen on.
	DefaultPort = 8899

	// DefaultDialTimeout bounds connection establishment.
	DefaultDialTimeout = 5 * time.Second

	// sendTimeout bounds a single write so Send never blocks the engine for
	// long on a congested connection.
	sendTimeout = 1 * time.Second
)

// TCPConn adapts a net.Conn to the engine's non-blocking byte interface.
// Reads go through an internal buffer refilled with an already-expired read
// deadline, so a refill returns immediately with whatever the kernel has
// buffered, or a timeout that maps to ErrWouldBlock.
//
// ReceiveByte and its buffer belong to the single goroutine that drives the
// protocol engine. Connected, Disconnect and Close may be called from any
// goroutine; a shutdown path (poller.Stop) tears the connection down while
// the engine goroutine is still mid-loop.
type TCPConn struct {
	conn   net.Conn
	log    *zap.Logger
	closed atomic.Bool

	buf    [256]byte
	bufPos int
	bufLen int

	onDisconnect DisconnectFunc
}

// DialTCP connects to an inverter at addr (host:port).
func DialTCP(addr string, timeout time.Duration) (*TCPConn, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	logging.Debug("tcp connection established", zap.String("addr", addr))
	return NewTCPConn(conn), nil
}

// NewTCPConn wraps an established net.Conn. Ownership of conn transfers to
// the returned TCPConn.
func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{
		conn: conn,
		log:  logging.GetLogger(),
	}
}

// OnDisconnect registers the teardown observer. Must be set before the
// connection is handed to the engine.
func (t *TCPConn) OnDisconnect(fn DisconnectFunc) {
	t.onDisconnect = fn
}

// Connected reports whether the connection is still open.
func (t *TCPConn) Connected() bool {
	return !t.closed.Load()
}

// Send writes p to the connection. A short write deadline keeps the engine
// from stalling behind a congested peer.
func (t *TCPConn) Send(p []byte) error {
	if t.closed.Load() {
		return net.ErrClosed
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		return err
	}

	if _, err := t.conn.Write(p); err != nil {
		return err
	}
	return nil
}

// ReceiveByte returns the next buffered byte, refilling from the socket
// without blocking when the buffer is empty.
func (t *TCPConn) ReceiveByte() (byte, error) {
	if t.closed.Load() {
		return 0, ErrClosedByPeer
	}

	if t.bufPos >= t.bufLen {
		if err := t.fill(); err != nil {
			return 0, err
		}
	}

	b := t.buf[t.bufPos]
	t.bufPos++
	return b, nil
}

// fill performs one immediate read. The deadline is already in the past, so
// the read returns instantly: with data if the kernel had any buffered,
// otherwise with a timeout that maps to ErrWouldBlock.
func (t *TCPConn) fill() error {
	if err := t.conn.SetReadDeadline(time.Now()); err != nil {
		return err
	}

	n, err := t.conn.Read(t.buf[:])
	if n > 0 {
		t.bufPos, t.bufLen = 0, n
		return nil
	}

	if err == nil {
		return ErrWouldBlock
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrWouldBlock
	}
	if errors.Is(err, io.EOF) {
		return ErrClosedByPeer
	}
	return err
}

// Disconnect closes the connection and notifies the registered observer.
// Safe to call more than once; only the first call has any effect.
func (t *TCPConn) Disconnect(reason Reason, err error) {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	_ = t.conn.Close()

	t.log.Info("tcp connection closed",
		zap.String("reason", reason.String()),
		zap.Error(err),
	)

	if t.onDisconnect != nil {
		t.onDisconnect(reason, err)
	}
}

// Close tears the connection down without invoking the disconnect observer.
func (t *TCPConn) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.conn.Close()
}
