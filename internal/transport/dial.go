package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Dial opens a connection to an inverter endpoint.
//
// Endpoints of the form ws://... or wss://... go through the WebSocket
// bridge transport; anything else is treated as a TCP host or host:port,
// with the port defaulting to 8899.
func Dial(endpoint string, timeout time.Duration) (Conn, error) {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return DialWS(endpoint, timeout, false)
	}
	return DialTCP(withDefaultPort(endpoint), timeout)
}

// withDefaultPort appends the RCT port to a bare host.
func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
}

// Endpoint formats a host and port as a dialable TCP endpoint.
func Endpoint(host string, port int) string {
	if port <= 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}
