// Package config provides user configuration management for the rctpower tools.
//
// This package manages a YAML-based configuration file that stores known
// inverters (name, endpoint, per-read timeout) and application preferences
// (default device, polling interval, discovery timeout). The protocol engine
// itself carries no configuration; everything here belongs to the CLI layer.
//
// # File Location
//
// The configuration follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/rctpower/config.yaml or ~/.config/rctpower/config.yaml
//   - macOS: ~/.config/rctpower/config.yaml
//   - Windows: %LOCALAPPDATA%\rctpower\config.yaml
//
// # Usage
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//	device := registry.GetDevice("garage")
//	if device != nil {
//	    conn, err := transport.Dial(device.Endpoint, 0)
//	    ...
//	}
//
// Saves are atomic (write to temp file, then rename) so an interrupted save
// never corrupts the existing file.
package config
