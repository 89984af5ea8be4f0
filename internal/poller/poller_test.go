package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/helvik/rctpower/internal/protocol"
	"github.com/helvik/rctpower/internal/registers"
	"github.com/helvik/rctpower/internal/sim"
	"github.com/helvik/rctpower/internal/transport"
)

// startPoller brings up a simulator and a poller connected to it.
func startPoller(t *testing.T) (*Poller, *sim.Server) {
	t.Helper()

	srv := sim.New(&sim.Config{Host: "127.0.0.1", Port: 0})
	if err := srv.Listen(); err != nil {
		t.Fatalf("sim listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := transport.DialTCP(srv.Addr(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	p := New(conn)
	t.Cleanup(p.Stop)
	return p, srv
}

func TestReadValue(t *testing.T) {
	p, _ := startPoller(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	value, err := p.ReadValue(ctx, registers.BatterySOC, time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if value != 0.76 {
		t.Errorf("value = %v, want 0.76", value)
	}
}

func TestReadValueReflectsRegisterUpdates(t *testing.T) {
	p, srv := startPoller(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv.SetRegister(registers.GridPower, -4321)
	value, err := p.ReadValue(ctx, registers.GridPower, time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if value != -4321 {
		t.Errorf("value = %v, want -4321", value)
	}
}

func TestReadValueTimeout(t *testing.T) {
	p, _ := startPoller(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// The simulator never answers unknown ids, so the transaction must run
	// into its own deadline.
	_, err := p.ReadValue(ctx, 0x01020304, 200*time.Millisecond)

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("err = %v, want a ReadError", err)
	}
	if readErr.Result != protocol.Timeout {
		t.Errorf("result = %v, want Timeout", readErr.Result)
	}
}

func TestReadValueChecksumMismatch(t *testing.T) {
	p, srv := startPoller(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv.CorruptNextResponse()
	_, err := p.ReadValue(ctx, registers.HouseholdLoad, time.Second)

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("err = %v, want a ReadError", err)
	}
	if readErr.Result != protocol.ChecksumMismatch {
		t.Errorf("result = %v, want ChecksumMismatch", readErr.Result)
	}

	// The connection survives a damaged frame.
	value, err := p.ReadValue(ctx, registers.HouseholdLoad, time.Second)
	if err != nil {
		t.Fatalf("follow-up read: %v", err)
	}
	if value != 2920 {
		t.Errorf("follow-up value = %v, want 2920", value)
	}
}

func TestScheduleCallbacksRunInOrder(t *testing.T) {
	p, _ := startPoller(t)

	ids := []uint32{registers.SolarGenAPower, registers.SolarGenBPower, registers.InverterACPower}

	var mu sync.Mutex
	var order []uint32
	done := make(chan struct{})

	for _, id := range ids {
		id := id
		err := p.Schedule(id, time.Second, func(result protocol.Result, _ float32) {
			mu.Lock()
			defer mu.Unlock()
			if result != protocol.Success {
				t.Errorf("id 0x%08X: result = %v, want Success", id, result)
			}
			order = append(order, id)
			if len(order) == len(ids) {
				close(done)
			}
		})
		if err != nil {
			t.Fatalf("schedule 0x%08X: %v", id, err)
		}
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("callbacks did not all fire")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, id := range ids {
		if order[i] != id {
			t.Errorf("order[%d] = 0x%08X, want 0x%08X", i, order[i], id)
		}
	}
}

func TestStop(t *testing.T) {
	p, _ := startPoller(t)

	p.Stop()

	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if err := p.Err(); err != nil {
		t.Errorf("Err after requested stop = %v, want nil", err)
	}

	if err := p.Schedule(registers.BatterySOC, time.Second, func(protocol.Result, float32) {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Schedule after stop = %v, want ErrStopped", err)
	}

	ctx := context.Background()
	if _, err := p.ReadValue(ctx, registers.BatterySOC, time.Second); !errors.Is(err, ErrStopped) {
		t.Errorf("ReadValue after stop = %v, want ErrStopped", err)
	}
}

func TestPeerShutdownStopsPoller(t *testing.T) {
	p, srv := startPoller(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Prime the connection so the simulator has accepted it.
	if _, err := p.ReadValue(ctx, registers.BatterySOC, time.Second); err != nil {
		t.Fatalf("priming read: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	select {
	case <-p.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("poller did not stop after the peer went away")
	}
	if p.Err() == nil {
		t.Error("Err should be non-nil after a peer-initiated teardown")
	}
}

func TestStopDuringActiveReads(t *testing.T) {
	p, _ := startPoller(t)

	// A reader goroutine hammers the poller while Stop arrives from another
	// goroutine, the shape a dashboard shutdown takes in practice.
	readsDone := make(chan struct{})
	go func() {
		defer close(readsDone)
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_, err := p.ReadValue(ctx, registers.BatterySOC, 500*time.Millisecond)
			cancel()
			if err != nil {
				return
			}
		}
	}()

	// Let a few reads complete before tearing down mid-flight.
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	select {
	case <-readsDone:
	case <-time.After(3 * time.Second):
		t.Fatal("reader never observed the stop")
	}

	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if err := p.Err(); err != nil {
		t.Errorf("Err after requested stop = %v, want nil", err)
	}
}
