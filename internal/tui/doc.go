// Package tui implements the interactive terminal dashboard for watching an
// inverter's live values.
//
// The dashboard shows one row per published register and refreshes the whole
// table on a fixed interval through the connection's poller. Reads run as
// Bubble Tea commands off the UI goroutine, so the screen stays responsive
// while transactions are in flight; a disconnect freezes the readout and
// shows the reason.
//
// # Usage Example
//
//	conn, err := transport.Dial(endpoint, 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p := poller.New(conn)
//	defer p.Stop()
//
//	if err := tui.Run(endpoint, p, 2*time.Second, time.Second); err != nil {
//	    log.Fatal(err)
//	}
package tui
