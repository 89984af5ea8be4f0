package transport

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsServer runs a test WebSocket endpoint; handler gets the upgraded
// connection. Returns a WSConn dialed against it.
func wsServer(t *testing.T, handler func(*websocket.Conn)) *WSConn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := DialWS(wsURL, 2*time.Second, false)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSConnReceiveAcrossMessages(t *testing.T) {
	conn := wsServer(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.BinaryMessage, []byte{'+', 0x05})
		c.WriteMessage(websocket.TextMessage, []byte("status: ok")) // must be skipped
		c.WriteMessage(websocket.BinaryMessage, []byte{0x08, 0xFF})
		select {} // hold the connection open
	})

	got := drainBytes(t, conn, 4)
	want := []byte{'+', 0x05, 0x08, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("received % 02X, want % 02X", got, want)
	}

	if _, err := conn.ReceiveByte(); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("drained receive error = %v, want ErrWouldBlock", err)
	}
}

func TestWSConnSend(t *testing.T) {
	received := make(chan []byte, 1)
	conn := wsServer(t, func(c *websocket.Conn) {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		received <- data
		select {}
	})

	frame := []byte{'+', 0x01, 0x04, 0x00, 0x00, 0x00, 0x01, 0xD2, 0x97}
	if err := conn.Send(frame); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-received:
		if !bytes.Equal(got, frame) {
			t.Errorf("server received % 02X, want % 02X", got, frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestWSConnPeerClose(t *testing.T) {
	conn := wsServer(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.Close()
	})

	if err := waitReceiveErr(t, conn); !errors.Is(err, ErrClosedByPeer) {
		t.Errorf("receive error after peer close = %v, want ErrClosedByPeer", err)
	}
}

func TestWSConnDisconnectObserver(t *testing.T) {
	conn := wsServer(t, func(c *websocket.Conn) {
		select {}
	})

	var calls int
	conn.OnDisconnect(func(reason Reason, err error) {
		calls++
		if reason != ReasonRequested {
			t.Errorf("reason = %v, want %v", reason, ReasonRequested)
		}
	})

	conn.Disconnect(ReasonRequested, nil)
	conn.Disconnect(ReasonPeerClosed, nil)

	if calls != 1 {
		t.Fatalf("observer called %d times, want 1", calls)
	}
	if conn.Connected() {
		t.Error("Connected() should be false after Disconnect")
	}
}

func TestDialWSRejectsBadScheme(t *testing.T) {
	if _, err := DialWS("ftp://example.com/bridge", time.Second, false); err == nil {
		t.Error("expected an error for a non-websocket scheme")
	}
}

func TestMapWSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"normal closure", &websocket.CloseError{Code: websocket.CloseNormalClosure}, ErrClosedByPeer},
		{"going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, ErrClosedByPeer},
		{"abnormal closure", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, ErrClosedByPeer},
		{"plain error", errors.New("read tcp: reset"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapWSError(tt.err)
			if tt.want != nil {
				if !errors.Is(got, tt.want) {
					t.Errorf("mapWSError(%v) = %v, want %v", tt.err, got, tt.want)
				}
				return
			}
			if got != tt.err {
				t.Errorf("mapWSError(%v) = %v, want the error unchanged", tt.err, got)
			}
		})
	}
}

func TestWSConnDisconnectReleasesPump(t *testing.T) {
	release := make(chan struct{})
	conn := wsServer(t, func(c *websocket.Conn) {
		// Flood well past the incoming channel's capacity so the pump ends
		// up blocked on an undrained delivery.
		for i := 0; i < 64; i++ {
			if err := c.WriteMessage(websocket.BinaryMessage, []byte{byte(i)}); err != nil {
				return
			}
		}
		<-release
	})
	defer close(release)

	deadline := time.Now().Add(2 * time.Second)
	for len(conn.incoming) < cap(conn.incoming) {
		if time.Now().After(deadline) {
			t.Fatal("pump never filled the incoming channel")
		}
		time.Sleep(time.Millisecond)
	}

	conn.Disconnect(ReasonRequested, nil)

	select {
	case <-conn.pumpDone:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not exit after Disconnect")
	}
}
