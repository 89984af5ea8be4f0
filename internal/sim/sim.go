package sim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helvik/rctpower/internal/logging"
	"github.com/helvik/rctpower/internal/protocol"
	"github.com/helvik/rctpower/internal/registers"
)

// Config holds the simulator configuration.
type Config struct {
	Host string
	Port int
}

// Server is a fake RCT Power inverter speaking the read protocol over plain
// TCP. It serves a register table seeded with plausible values; reads of
// unknown ids go unanswered, exactly like the real device, so client timeout
// paths can be exercised against it.
type Server struct {
	config *Config
	log    *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup

	mu          sync.Mutex
	regs        map[uint32]float32
	corruptNext bool
	activeConns map[string]net.Conn
}

// New creates a simulator with the published register table pre-seeded.
func New(config *Config) *Server {
	s := &Server{
		config:      config,
		log:         logging.GetLogger(),
		regs:        make(map[uint32]float32),
		activeConns: make(map[string]net.Conn),
	}

	s.regs[registers.SolarGenAPower] = 2350
	s.regs[registers.SolarGenBPower] = 1890
	s.regs[registers.InverterACPower] = 4120
	s.regs[registers.GridPower] = -1200
	s.regs[registers.HouseholdLoad] = 2920
	s.regs[registers.BatteryPower] = -850
	s.regs[registers.BatterySOC] = 0.76

	return s
}

// SetRegister installs or overwrites a register value.
func (s *Server) SetRegister(id uint32, value float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[id] = value
}

// Register returns the current value of a register.
func (s *Server) Register(id uint32) (float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.regs[id]
	return v, ok
}

// CorruptNextResponse flips a payload byte in the next response after its
// checksum is computed, for exercising client-side CRC handling.
func (s *Server) CorruptNextResponse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corruptNext = true
}

// Listen binds the simulator's TCP listener without accepting yet. Addr is
// valid after Listen returns.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = listener

	s.log.Info("simulator listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection services one client until it hangs up.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	s.mu.Lock()
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		s.log.Debug("client disconnected", zap.String("remote_addr", remoteAddr))
	}()

	s.log.Debug("client connected", zap.String("remote_addr", remoteAddr))

	parser := protocol.NewRequestParser()
	buf := make([]byte, 256)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}

		for _, b := range buf[:n] {
			if !parser.Feed(b) {
				continue
			}
			reply := s.handleRequest(parser.Frame(), remoteAddr)
			parser.Reset()

			if reply == nil {
				continue
			}
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}
}

// handleRequest maps one assembled request frame to its wire reply, or nil
// when the device would stay silent.
func (s *Server) handleRequest(frame []byte, remoteAddr string) []byte {
	if !protocol.VerifyRequest(frame) {
		s.log.Warn("request checksum mismatch",
			zap.String("remote_addr", remoteAddr),
			zap.String("frame", logging.HexDump(frame)),
		)
		return nil
	}

	id := protocol.RequestID(frame)

	s.mu.Lock()
	value, ok := s.regs[id]
	corrupt := s.corruptNext
	if ok {
		s.corruptNext = false
	}
	s.mu.Unlock()

	if !ok {
		// Real inverters simply do not answer reads of ids they do not
		// serve; the client's timeout covers this.
		s.log.Debug("unknown register, staying silent", zap.Uint32("id", id))
		return nil
	}

	response := protocol.BuildReadResponse(id, value)
	if corrupt {
		response[6] ^= 0x01
		s.log.Debug("corrupting response", zap.Uint32("id", id))
	}

	s.log.Debug("serving read",
		zap.Uint32("id", id),
		zap.Float32("value", value),
	)
	return protocol.Escape(response)
}

// Shutdown stops accepting, closes all active connections, and waits for the
// connection goroutines to drain or the context to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.mu.Lock()
	for _, conn := range s.activeConns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return errors.New("shutdown timed out")
	}
}

// ActiveConnections returns the number of clients currently connected.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
