// Package poller runs the protocol engine for one inverter connection.
//
// The engine in the protocol package is deliberately single-threaded and
// non-blocking; the poller gives it the goroutine it needs. One run loop per
// connection ticks the scheduler, drains received bytes, and executes
// requests posted from other goroutines, so the engine never sees concurrent
// calls.
//
// Callers use Schedule for callback-style reads or ReadValue for a blocking
// one-shot read. When the transport signals a disconnect the poller aborts
// all outstanding transactions, closes Done, and exits; a poller is not
// reusable across reconnects.
package poller
