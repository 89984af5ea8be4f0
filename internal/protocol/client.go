package protocol

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/helvik/rctpower/internal/logging"
	"github.com/helvik/rctpower/internal/transport"
)

// TransactionCallback receives the outcome of one read transaction. It is
// invoked exactly once per transaction; value is NaN for every result other
// than Success. The callback runs on the goroutine driving the engine and may
// safely call Read to schedule another transaction.
type TransactionCallback func(result Result, value float32)

// transaction is one outstanding "read register by id" request. Owned by the
// scheduled FIFO until Tick moves it into the pending slot; at most one
// transaction is ever pending.
type transaction struct {
	id       uint32
	timeout  time.Duration
	callback TransactionCallback
}

// Client is the protocol engine for one device connection. It frames and
// sends read requests, assembles and validates responses, and resolves each
// transaction through its callback.
//
// The engine is single-threaded by contract: Read, Tick, Receive and
// ConnectionClosed must all be called from the one goroutine that owns the
// connection (see the poller package). The engine itself never blocks.
type Client struct {
	conn transport.Conn
	log  *zap.Logger

	scheduled []*transaction
	pending   *transaction
	deadline  time.Time

	parser *Parser

	bootWindow       uint32
	bootLastDetected time.Time

	// now is the engine's clock; replaced in tests to drive deadlines.
	now func() time.Time
}

// NewClient creates a protocol engine on top of conn.
func NewClient(conn transport.Conn) *Client {
	return &Client{
		conn:   conn,
		log:    logging.GetLogger(),
		parser: NewParser(),
		now:    time.Now,
	}
}

// Read schedules one register read. The callback fires exactly once, either
// synchronously here (invalid argument, not connected, FIFO full) or later
// from Tick/Receive once the transaction resolves. A nil callback drops the
// request silently. No frame is sent until a Tick dequeues the transaction.
func (c *Client) Read(id uint32, timeout time.Duration, callback TransactionCallback) {
	if callback == nil {
		c.log.Debug("read request dropped: no callback", zap.Uint32("id", id))
		return
	}

	if timeout < 0 {
		callback(InvalidArgument, NoValue())
		return
	}

	if c.conn == nil || !c.conn.Connected() {
		callback(NotConnected, NoValue())
		return
	}

	if len(c.scheduled) >= MaxScheduledTransactions {
		callback(NoTransactionAvailable, NoValue())
		return
	}

	c.scheduled = append(c.scheduled, &transaction{
		id:       id,
		timeout:  timeout,
		callback: callback,
	})
}

// Tick resolves an overdue pending transaction with Timeout, then, if the
// pending slot is free, moves the head of the FIFO into it and sends the
// request frame. The connection owner calls this every scheduler period.
func (c *Client) Tick() {
	c.checkPendingTimeout()

	if c.pending != nil || len(c.scheduled) == 0 {
		return
	}

	c.pending = c.scheduled[0]
	c.scheduled[0] = nil
	c.scheduled = c.scheduled[1:]
	c.deadline = c.now().Add(c.pending.timeout)

	request := EncodeReadRequest(c.pending.id)

	if err := c.conn.Send(request); err != nil {
		c.log.Warn("request send failed",
			zap.Uint32("id", c.pending.id),
			zap.Error(err),
		)
		c.finishPending(SendFailed, NoValue())
		c.conn.Disconnect(transport.ReasonSendFailed, err)
		return
	}

	logging.LogFrame("sent", request)
	c.log.Debug("request sent",
		zap.Uint32("id", c.pending.id),
		zap.Duration("timeout", c.pending.timeout),
	)
}

// Receive drains bytes from the connection through the receive parser. It
// stops when a complete response has been handled, when the read would
// block, or when a 10 ms budget elapses, and reports whether it should be
// called again soon (more work likely remains).
func (c *Client) Receive() bool {
	budget := c.now().Add(receiveBudget)

	for c.now().Before(budget) {
		b, err := c.conn.ReceiveByte()
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrWouldBlock):
				// Nothing buffered; the scheduler will call again when
				// more data arrives.
			case errors.Is(err, transport.ErrClosedByPeer):
				c.conn.Disconnect(transport.ReasonPeerClosed, err)
			default:
				c.conn.Disconnect(transport.ReasonReceiveFailed, err)
			}
			return false
		}

		c.observeBootloaderWindow(b)

		if c.parser.Feed(b) {
			c.handleResponse(c.parser.Frame())
			return true
		}
	}

	return true
}

// ConnectionClosed resets all receive-side state and fails every pending and
// scheduled transaction with Aborted, in enqueue order. The connection owner
// must call it once the transport signals a disconnect, before suppressing
// the other hooks.
func (c *Client) ConnectionClosed() {
	c.parser.ResetStream()
	c.bootWindow = 0
	c.bootLastDetected = time.Time{}
	c.abortAll(Aborted)
}

// LastBootloaderDetected reports when the firmware-update bootloader
// signature was last observed on the byte stream, or the zero time if never.
// The engine only records the observation; reacting to it is the connection
// owner's decision.
func (c *Client) LastBootloaderDetected() time.Time {
	return c.bootLastDetected
}

// ScheduledCount returns the number of transactions waiting in the FIFO.
func (c *Client) ScheduledCount() int {
	return len(c.scheduled)
}

// HasPending reports whether a transaction is currently awaiting a response.
func (c *Client) HasPending() bool {
	return c.pending != nil
}

// handleResponse validates a fully assembled response frame and resolves the
// pending transaction. The parser is reset before any callback runs, so a
// callback can schedule a new read immediately.
func (c *Client) handleResponse(frame []byte) {
	logging.LogFrame("received", frame)

	id := ResponseID(frame)

	if c.pending == nil || c.pending.id != id {
		// A response for a transaction this engine no longer tracks, e.g.
		// one that already timed out. Not a fault; keep listening.
		c.log.Debug("discarding response for untracked id", zap.Uint32("id", id))
		c.parser.Reset()
		return
	}

	if !VerifyResponse(frame) {
		c.log.Warn("response checksum mismatch",
			zap.Uint32("id", id),
			zap.String("frame", logging.HexDump(frame)),
		)
		c.parser.Reset()
		c.finishPending(ChecksumMismatch, NoValue())
		return
	}

	c.parser.Reset()
	c.finishPending(Success, ResponseValue(frame))
}

// finishPending detaches the pending transaction, clears the slot and the
// deadline, and only then fires the callback. Detaching first makes the
// callback reentrant-safe: it observes a fully consistent engine.
func (c *Client) finishPending(result Result, value float32) {
	if c.pending == nil {
		return
	}

	id := c.pending.id
	callback := c.pending.callback
	c.pending = nil
	c.deadline = time.Time{}

	logging.LogTransaction(id, result.String(), value)
	callback(result, value)
}

// abortAll finishes the pending transaction and then drains the FIFO in
// order, resolving every transaction with the same result.
func (c *Client) abortAll(result Result) {
	c.finishPending(result, NoValue())

	scheduled := c.scheduled
	c.scheduled = nil

	for _, t := range scheduled {
		t.callback(result, NoValue())
	}
}

func (c *Client) checkPendingTimeout() {
	if c.pending != nil && !c.now().Before(c.deadline) {
		c.log.Debug("pending transaction timed out", zap.Uint32("id", c.pending.id))
		c.finishPending(Timeout, NoValue())
	}
}

// observeBootloaderWindow slides every received byte through a 32-bit window
// and records when the window matches the bootloader signature.
func (c *Client) observeBootloaderWindow(b byte) {
	c.bootWindow = c.bootWindow<<8 | uint32(b)
	if c.bootWindow == bootloaderMagic {
		c.bootLastDetected = c.now()
		c.log.Warn("bootloader signature detected on stream")
	}
}
