package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helvik/rctpower/internal/logging"
	"github.com/helvik/rctpower/internal/protocol"
	"github.com/helvik/rctpower/internal/transport"
)

// pollPeriod is how often the loop ticks the engine and drains the
// connection when idle.
const pollPeriod = 5 * time.Millisecond

// ErrStopped is returned for requests made after the poller has shut down.
var ErrStopped = errors.New("poller: stopped")

// ReadError wraps a non-success transaction result as an error.
type ReadError struct {
	Result protocol.Result
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read failed: %s", e.Result)
}

// disconnect carries the teardown signal from the transport observer into
// the run loop.
type disconnect struct {
	reason transport.Reason
	err    error
}

// Poller owns one connection and the protocol engine on top of it. All
// engine calls happen on its single run goroutine, which is what makes the
// engine's no-locking design safe; other goroutines talk to the poller
// through Schedule and ReadValue.
type Poller struct {
	client *protocol.Client
	conn   transport.Conn
	log    *zap.Logger

	requests     chan func()
	disconnected chan disconnect
	done         chan struct{}

	mu   sync.Mutex
	err  error
	stop bool
}

// New wraps conn in a protocol engine and starts the run loop. The poller
// takes over the connection's disconnect observer; it must be the only owner.
func New(conn transport.Conn) *Poller {
	p := &Poller{
		client:       protocol.NewClient(conn),
		conn:         conn,
		log:          logging.GetLogger(),
		requests:     make(chan func(), 16),
		disconnected: make(chan disconnect, 1),
		done:         make(chan struct{}),
	}

	conn.OnDisconnect(func(reason transport.Reason, err error) {
		select {
		case p.disconnected <- disconnect{reason: reason, err: err}:
		default:
		}
	})

	go p.run()
	return p
}

// run is the only goroutine that touches the engine.
func (p *Poller) run() {
	ticker := time.NewTicker(pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case fn := <-p.requests:
			fn()

		case d := <-p.disconnected:
			p.log.Info("connection lost, stopping poller",
				zap.String("reason", d.reason.String()),
				zap.Error(d.err),
			)
			p.client.ConnectionClosed()
			p.finish(d)
			return

		case <-ticker.C:
			p.client.Tick()
			for p.client.Receive() {
			}
		}
	}
}

// finish records the terminal error and wakes everyone waiting on Done.
func (p *Poller) finish(d disconnect) {
	p.mu.Lock()
	p.stop = true
	if d.reason != transport.ReasonRequested {
		if d.err != nil {
			p.err = d.err
		} else {
			p.err = fmt.Errorf("connection %s", d.reason)
		}
	}
	p.mu.Unlock()

	close(p.done)
}

// Schedule enqueues one register read on the engine. The callback runs on the
// poller goroutine; it must not block.
func (p *Poller) Schedule(id uint32, timeout time.Duration, callback protocol.TransactionCallback) error {
	select {
	case <-p.done:
		return ErrStopped
	default:
	}

	select {
	case p.requests <- func() { p.client.Read(id, timeout, callback) }:
		return nil
	case <-p.done:
		return ErrStopped
	}
}

// ReadValue performs one register read and waits for its outcome.
func (p *Poller) ReadValue(ctx context.Context, id uint32, timeout time.Duration) (float32, error) {
	type outcome struct {
		result protocol.Result
		value  float32
	}
	resultCh := make(chan outcome, 1)

	err := p.Schedule(id, timeout, func(result protocol.Result, value float32) {
		resultCh <- outcome{result: result, value: value}
	})
	if err != nil {
		return protocol.NoValue(), err
	}

	select {
	case out := <-resultCh:
		if out.result != protocol.Success {
			return protocol.NoValue(), &ReadError{Result: out.result}
		}
		return out.value, nil
	case <-ctx.Done():
		return protocol.NoValue(), ctx.Err()
	case <-p.done:
		// The abort path delivers Aborted callbacks before done closes, so
		// prefer a queued outcome over the shutdown signal.
		select {
		case out := <-resultCh:
			if out.result != protocol.Success {
				return protocol.NoValue(), &ReadError{Result: out.result}
			}
			return out.value, nil
		default:
			return protocol.NoValue(), ErrStopped
		}
	}
}

// Stop tears the connection down and waits for the run loop to exit. Safe to
// call more than once.
func (p *Poller) Stop() {
	p.conn.Disconnect(transport.ReasonRequested, nil)
	<-p.done
}

// Done is closed once the run loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Err reports why the poller stopped; nil for a requested shutdown or while
// still running.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
