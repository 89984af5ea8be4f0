// Package discovery provides mDNS-based discovery of RCT Power inverters.
//
// Inverters advertise a "_rctpower._tcp" service on the local network with a
// hostname of the form "RCT<serial>.local". Discovery broadcasts mDNS
// queries, collects matching advertisements until the timeout elapses, and
// returns the devices found with their dialable endpoints.
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(10 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, device := range devices {
//	    fmt.Printf("found %s at %s\n", device.Serial, device.Endpoint())
//	}
//
// # Network Requirements
//
//   - Multicast support on the network interface
//   - Inverter on the same local network segment
//   - Firewall allowing mDNS (UDP port 5353)
//
// # Thread Safety
//
// This package is safe for concurrent use. Multiple discovery sessions can
// run simultaneously without interference.
package discovery
