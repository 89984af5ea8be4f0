package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/helvik/rctpower/internal/logging"
)

// wsRead is one pump delivery: a binary message, or the error that ended the
// pump. err is only ever set on the final delivery.
type wsRead struct {
	data []byte
	err  error
}

// WSConn adapts a WebSocket connection carrying binary frames to the
// engine's non-blocking byte interface. Useful when an inverter sits behind
// a serial-over-WebSocket bridge rather than on a plain TCP port.
//
// A pump goroutine owns all reads on the underlying connection and hands
// messages over through a buffered channel, so ReceiveByte never blocks.
// ReceiveByte and the message buffer belong to the engine goroutine;
// Connected, Disconnect and Close may be called from any goroutine.
type WSConn struct {
	conn   *websocket.Conn
	log    *zap.Logger
	closed atomic.Bool

	incoming chan wsRead
	done     chan struct{} // closed on Disconnect/Close so the pump can exit
	pumpDone chan struct{} // closed when the pump returns
	buf      []byte
	bufPos   int

	onDisconnect DisconnectFunc
}

// DialWS connects to a WebSocket bridge at wsURL (ws:// or wss://).
func DialWS(wsURL string, timeout time.Duration, skipTLSVerify bool) (*WSConn, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", wsURL, err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	switch u.Scheme {
	case "ws":
	case "wss":
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipTLSVerify}
	default:
		return nil, fmt.Errorf("unsupported url scheme %q (use ws:// or wss://)", u.Scheme)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s (HTTP %d): %w", wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", wsURL, err)
	}

	logging.Debug("websocket connection established", zap.String("url", wsURL))
	return NewWSConn(conn), nil
}

// NewWSConn wraps an established WebSocket connection and starts its read
// pump. Ownership of conn transfers to the returned WSConn.
func NewWSConn(conn *websocket.Conn) *WSConn {
	w := &WSConn{
		conn:     conn,
		log:      logging.GetLogger(),
		incoming: make(chan wsRead, 32),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	go w.pump()
	return w
}

// pump moves binary messages from the WebSocket into the incoming channel
// until the connection dies, then delivers the terminating error and exits.
// Every channel send also watches done, so a teardown with undrained
// messages still releases the pump.
func (w *WSConn) pump() {
	defer close(w.pumpDone)

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case w.incoming <- wsRead{err: mapWSError(err)}:
				close(w.incoming)
			case <-w.done:
			}
			return
		}

		// Only binary frames carry protocol bytes.
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		select {
		case w.incoming <- wsRead{data: data}:
		case <-w.done:
			return
		}
	}
}

func mapWSError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrClosedByPeer
	}
	if _, ok := err.(*websocket.CloseError); ok {
		return ErrClosedByPeer
	}
	return err
}

// OnDisconnect registers the teardown observer. Must be set before the
// connection is handed to the engine.
func (w *WSConn) OnDisconnect(fn DisconnectFunc) {
	w.onDisconnect = fn
}

// Connected reports whether the connection is still open.
func (w *WSConn) Connected() bool {
	return !w.closed.Load()
}

// Send writes p as one binary WebSocket message.
func (w *WSConn) Send(p []byte) error {
	if w.closed.Load() {
		return net.ErrClosed
	}

	if err := w.conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, p)
}

// ReceiveByte returns the next byte of the current message, pulling the next
// message from the pump without blocking when the current one is drained.
func (w *WSConn) ReceiveByte() (byte, error) {
	if w.closed.Load() {
		return 0, ErrClosedByPeer
	}

	for w.bufPos >= len(w.buf) {
		select {
		case r, ok := <-w.incoming:
			if !ok {
				return 0, ErrClosedByPeer
			}
			if r.err != nil {
				return 0, r.err
			}
			w.buf, w.bufPos = r.data, 0
		default:
			return 0, ErrWouldBlock
		}
	}

	b := w.buf[w.bufPos]
	w.bufPos++
	return b, nil
}

// Disconnect closes the connection and notifies the registered observer.
// Safe to call more than once; only the first call has any effect.
func (w *WSConn) Disconnect(reason Reason, err error) {
	if !w.closed.CompareAndSwap(false, true) {
		return
	}
	close(w.done)
	_ = w.conn.Close()

	w.log.Info("websocket connection closed",
		zap.String("reason", reason.String()),
		zap.Error(err),
	)

	if w.onDisconnect != nil {
		w.onDisconnect(reason, err)
	}
}

// Close tears the connection down without invoking the disconnect observer.
func (w *WSConn) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(w.done)
	return w.conn.Close()
}
