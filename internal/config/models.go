package config

import "time"

// Registry represents the entire user configuration file.
// This stores user-defined metadata for inverters and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by user-chosen device name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents one known RCT Power inverter.
// This is keyed by a user-chosen name in the Registry.
type Device struct {
	Endpoint string        `yaml:"endpoint"`            // "host", "host:port", or "ws(s)://..." bridge URL
	Timeout  time.Duration `yaml:"timeout,omitempty"`   // Per-read response timeout (0 = default)
	Notes    string        `yaml:"notes,omitempty"`     // Free-form user notes
	LastSeen time.Time     `yaml:"last_seen,omitempty"` // Last successful connection or discovery
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultDevice   string        `yaml:"default_device,omitempty"` // Device used when --device is omitted
	ReadTimeout     time.Duration `yaml:"read_timeout"`             // Default per-read response timeout
	WatchInterval   time.Duration `yaml:"watch_interval"`           // Polling interval for the watch command
	DiscoverTimeout int           `yaml:"discover_timeout"`         // mDNS discovery timeout in seconds
}

// Default preference values.
const (
	DefaultReadTimeout     = 2 * time.Second
	DefaultWatchInterval   = 5 * time.Second
	DefaultDiscoverTimeout = 10
)

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			ReadTimeout:     DefaultReadTimeout,
			WatchInterval:   DefaultWatchInterval,
			DiscoverTimeout: DefaultDiscoverTimeout,
		},
	}
}

// GetDevice retrieves a device by name.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(name string) *Device {
	if r.Devices == nil {
		return nil
	}
	return r.Devices[name]
}

// SetDevice adds or replaces a device entry.
func (r *Registry) SetDevice(name string, device *Device) {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	r.Devices[name] = device
}

// RemoveDevice deletes a device entry. Returns true if it existed.
func (r *Registry) RemoveDevice(name string) bool {
	if r.Devices == nil {
		return false
	}
	if _, ok := r.Devices[name]; !ok {
		return false
	}
	delete(r.Devices, name)
	if r.Preferences != nil && r.Preferences.DefaultDevice == name {
		r.Preferences.DefaultDevice = ""
	}
	return true
}
