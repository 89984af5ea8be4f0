package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		wantNil    bool
		wantSerial string
		wantIP     string
		wantPort   int
	}{
		{
			name: "inverter with IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "RCT2204E9920.local.",
				Port:     8899,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.74")},
				Text:     []string{"model=PS 6.0"},
			},
			wantSerial: "2204E9920",
			wantIP:     "192.168.1.74",
			wantPort:   8899,
		},
		{
			name: "hostname without trailing dot",
			entry: &zeroconf.ServiceEntry{
				HostName: "RCT123456789.local",
				Port:     8899,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantSerial: "123456789",
			wantIP:     "10.0.0.5",
			wantPort:   8899,
		},
		{
			name: "missing port defaults to 8899",
			entry: &zeroconf.ServiceEntry{
				HostName: "RCT111111111.local",
				Port:     0,
				AddrIPv4: []net.IP{net.ParseIP("172.16.0.1")},
			},
			wantSerial: "111111111",
			wantIP:     "172.16.0.1",
			wantPort:   8899,
		},
		{
			name: "foreign hostname pattern",
			entry: &zeroconf.ServiceEntry{
				HostName: "someotherdevice.local",
				Port:     8899,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name: "empty hostname",
			entry: &zeroconf.ServiceEntry{
				HostName: "",
				Port:     8899,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name: "no address at all",
			entry: &zeroconf.ServiceEntry{
				HostName: "RCT2204E9920.local",
				Port:     8899,
			},
			wantNil: true,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				HostName: "RCT222222222.local",
				Port:     8899,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantSerial: "222222222",
			wantIP:     "fe80::1",
			wantPort:   8899,
		},
		{
			name: "IPv4 preferred over IPv6",
			entry: &zeroconf.ServiceEntry{
				HostName: "RCT333333333.local",
				Port:     8899,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6: []net.IP{net.ParseIP("fe80::2")},
			},
			wantSerial: "333333333",
			wantIP:     "192.168.1.50",
			wantPort:   8899,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if device != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", device)
				}
				return
			}
			if device == nil {
				t.Fatal("parseServiceEntry() = nil, want device")
			}

			if device.Serial != tt.wantSerial {
				t.Errorf("device.Serial = %v, want %v", device.Serial, tt.wantSerial)
			}
			if device.IP != tt.wantIP {
				t.Errorf("device.IP = %v, want %v", device.IP, tt.wantIP)
			}
			if device.Port != tt.wantPort {
				t.Errorf("device.Port = %v, want %v", device.Port, tt.wantPort)
			}
			if device.Hostname != tt.entry.HostName {
				t.Errorf("device.Hostname = %v, want %v", device.Hostname, tt.entry.HostName)
			}
			if time.Since(device.DiscoveredAt) > time.Second {
				t.Errorf("device.DiscoveredAt is not recent: %v", device.DiscoveredAt)
			}
		})
	}
}

func TestScanner_parseServiceEntry_Metadata(t *testing.T) {
	scanner := NewScanner()

	entry := &zeroconf.ServiceEntry{
		HostName: "RCT2204E9920.local",
		Port:     8899,
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.74")},
		Text:     []string{"model=PS 6.0", "firmware=4772", "flag"},
	}

	device := scanner.parseServiceEntry(entry)
	if device == nil {
		t.Fatal("parseServiceEntry() = nil, want device")
	}

	expected := map[string]string{
		"model":    "PS 6.0",
		"firmware": "4772",
		"flag":     "",
	}

	if len(device.Metadata) != len(expected) {
		t.Errorf("device.Metadata has %d entries, want %d", len(device.Metadata), len(expected))
	}
	for key, want := range expected {
		if got, ok := device.Metadata[key]; !ok {
			t.Errorf("device.Metadata missing key %q", key)
		} else if got != want {
			t.Errorf("device.Metadata[%q] = %q, want %q", key, got, want)
		}
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

func TestSerialPattern(t *testing.T) {
	tests := []struct {
		hostname    string
		shouldMatch bool
		serial      string
	}{
		{"RCT2204E9920.local", true, "2204E9920"},
		{"RCT2204E9920.local.", true, "2204E9920"},
		{"RCT1.local", true, "1"},
		{"rct2204E9920.local", false, ""}, // wrong case
		{"RCT.local", false, ""},          // no serial
		{"somedevice.local", false, ""},   // wrong prefix
		{"RCT2204E9920", false, ""},       // missing .local
		{"", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			matches := serialPattern.FindStringSubmatch(tt.hostname)

			if tt.shouldMatch {
				if len(matches) < 2 {
					t.Fatalf("serialPattern did not match %q", tt.hostname)
				}
				if matches[1] != tt.serial {
					t.Errorf("serial = %q, want %q", matches[1], tt.serial)
				}
				return
			}
			if matches != nil {
				t.Errorf("serialPattern matched %q, want no match", tt.hostname)
			}
		})
	}
}
