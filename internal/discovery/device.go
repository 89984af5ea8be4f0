package discovery

import (
	"fmt"
	"time"

	"github.com/helvik/rctpower/internal/transport"
)

// Device is an RCT Power inverter found on the network.
type Device struct {
	// Serial is the inverter serial number (e.g., "2204E9920")
	Serial string

	// Hostname is the mDNS hostname (e.g., "RCT2204E9920.local")
	Hostname string

	// IP is the address to dial (IPv4 preferred)
	IP string

	// Port is the protocol port (typically 8899)
	Port int

	// Metadata holds the mDNS TXT record data, e.g. "model=PS 6.0"
	Metadata map[string]string

	// DiscoveredAt is when the advertisement was seen
	DiscoveredAt time.Time
}

// String returns a human-readable description of the device.
func (d *Device) String() string {
	return fmt.Sprintf("RCT inverter %s (%s) at %s:%d", d.Serial, d.Hostname, d.IP, d.Port)
}

// Endpoint returns the dialable address of the device's protocol port.
func (d *Device) Endpoint() string {
	return transport.Endpoint(d.IP, d.Port)
}

// GetMetadata retrieves a TXT record value by key, or "" if absent.
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
