// Package sim implements a fake RCT Power inverter for development and
// testing.
//
// The simulator listens on plain TCP (default port 8899, same as the real
// device), decodes escaped read-request frames, and answers from an in-memory
// register table seeded with plausible household energy values. Its behavior
// mirrors the quirks that matter to client code:
//
//   - Reads of ids the simulator does not serve are simply never answered,
//     so client timeout handling can be exercised end to end.
//   - CorruptNextResponse flips a payload byte after the checksum has been
//     computed, producing exactly the kind of damaged frame a client's CRC
//     validation must reject.
//
// # Usage Example
//
//	srv := sim.New(&sim.Config{Host: "127.0.0.1", Port: 8899})
//	if err := srv.Listen(); err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Serve()
//	defer srv.Shutdown(context.Background())
//
// # Thread Safety
//
// The simulator handles any number of concurrent clients, each in its own
// goroutine. Register mutators are safe to call while serving.
package sim
