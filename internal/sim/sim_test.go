package sim

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/helvik/rctpower/internal/protocol"
	"github.com/helvik/rctpower/internal/registers"
)

func startSim(t *testing.T) *Server {
	t.Helper()

	srv := New(&Config{Host: "127.0.0.1", Port: 0})
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func dialSim(t *testing.T, srv *Server) net.Conn {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readResponse assembles one response frame off the raw connection.
func readResponse(t *testing.T, conn net.Conn) []byte {
	t.Helper()

	parser := protocol.NewParser()
	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		for i := 0; i < n; i++ {
			if parser.Feed(buf[i]) {
				return parser.Frame()
			}
		}
	}
}

func TestServesSeededRegister(t *testing.T) {
	srv := startSim(t)
	conn := dialSim(t, srv)

	if _, err := conn.Write(protocol.EncodeReadRequest(registers.BatterySOC)); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readResponse(t, conn)
	if !protocol.VerifyResponse(frame) {
		t.Fatal("response failed checksum verification")
	}
	if got := protocol.ResponseID(frame); got != registers.BatterySOC {
		t.Errorf("response id = 0x%08X, want 0x%08X", got, uint32(registers.BatterySOC))
	}
	if got := protocol.ResponseValue(frame); got != 0.76 {
		t.Errorf("response value = %v, want 0.76", got)
	}
}

func TestSetRegisterOverridesValue(t *testing.T) {
	srv := startSim(t)
	srv.SetRegister(registers.GridPower, -2500)
	conn := dialSim(t, srv)

	if _, err := conn.Write(protocol.EncodeReadRequest(registers.GridPower)); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readResponse(t, conn)
	if got := protocol.ResponseValue(frame); got != -2500 {
		t.Errorf("response value = %v, want -2500", got)
	}
}

func TestUnknownRegisterStaysSilent(t *testing.T) {
	srv := startSim(t)
	conn := dialSim(t, srv)

	if _, err := conn.Write(protocol.EncodeReadRequest(0x01020304)); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	buf := make([]byte, 1)
	if n, err := conn.Read(buf); err == nil {
		t.Errorf("got %d unexpected reply bytes for an unknown register", n)
	}
}

func TestCorruptNextResponse(t *testing.T) {
	srv := startSim(t)
	srv.CorruptNextResponse()
	conn := dialSim(t, srv)

	if _, err := conn.Write(protocol.EncodeReadRequest(registers.HouseholdLoad)); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readResponse(t, conn)
	if protocol.VerifyResponse(frame) {
		t.Error("corrupted response unexpectedly passed checksum verification")
	}

	// Only the next response is damaged; afterwards service is clean again.
	if _, err := conn.Write(protocol.EncodeReadRequest(registers.HouseholdLoad)); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame = readResponse(t, conn)
	if !protocol.VerifyResponse(frame) {
		t.Error("follow-up response failed checksum verification")
	}
}

func TestBackToBackRequests(t *testing.T) {
	srv := startSim(t)
	conn := dialSim(t, srv)

	ids := []uint32{registers.SolarGenAPower, registers.SolarGenBPower, registers.InverterACPower}
	for _, id := range ids {
		if _, err := conn.Write(protocol.EncodeReadRequest(id)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	for _, id := range ids {
		frame := readResponse(t, conn)
		if got := protocol.ResponseID(frame); got != id {
			t.Errorf("response id = 0x%08X, want 0x%08X", got, id)
		}
	}
}

func TestRequestWithBadChecksumIgnored(t *testing.T) {
	srv := startSim(t)
	conn := dialSim(t, srv)

	request := protocol.BuildReadRequest(registers.BatterySOC)
	request[2] ^= 0xFF // damage the id; the CRC no longer matches
	if _, err := conn.Write(protocol.Escape(request)); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	buf := make([]byte, 1)
	if n, err := conn.Read(buf); err == nil {
		t.Errorf("got %d unexpected reply bytes for a damaged request", n)
	}
}
