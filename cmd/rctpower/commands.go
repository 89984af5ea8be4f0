package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/helvik/rctpower/internal/config"
	"github.com/helvik/rctpower/internal/discovery"
	"github.com/helvik/rctpower/internal/poller"
	"github.com/helvik/rctpower/internal/registers"
	"github.com/helvik/rctpower/internal/sim"
	"github.com/helvik/rctpower/internal/transport"
	"github.com/helvik/rctpower/internal/tui"
)

// Command flags
var (
	deviceRef    string
	readTimeout  time.Duration
	outputFormat string

	watchInterval time.Duration
	watchPlain    bool

	scanTimeout int

	simHost string
	simPort int

	addEndpoint string
	addNotes    string
	addTimeout  time.Duration
	addDefault  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceRef, "device", "", "Device name from the registry, or a host[:port] / ws:// endpoint")
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "timeout", 0, "Per-read response timeout (default from config)")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(devicesCmd)
}

// readReading is the JSON shape of one read result.
type readReading struct {
	Register string  `json:"register"`
	ID       string  `json:"id"`
	Value    float32 `json:"value"`
	Display  string  `json:"display"`
}

// readCmd reads one or more registers once and prints them.
var readCmd = &cobra.Command{
	Use:   "read [register...]",
	Short: "Read register values from an inverter",
	Long: `Read one or more registers from an inverter and print their values.

Registers can be referenced by name (see 'rctpower read --help' output
below) or by numeric id like 0x959930BF. Without arguments, all published
registers are read.`,
	Example: `  # Read everything from a registered device
  rctpower read --device home

  # Read specific registers from a direct endpoint
  rctpower read battery-soc grid-power --device 192.168.1.74

  # Read an arbitrary register id, JSON output
  rctpower read 0x959930BF --device home --format json`,
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format (table, json)")
}

func runRead(cmd *cobra.Command, args []string) error {
	regs, err := resolveRegisters(args)
	if err != nil {
		return err
	}

	endpoint, timeout, err := resolveDevice()
	if err != nil {
		return err
	}

	p, err := connect(endpoint)
	if err != nil {
		return err
	}
	defer p.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(len(regs))*(timeout+time.Second))
	defer cancel()

	var readings []readReading
	for _, r := range regs {
		value, err := p.ReadValue(ctx, r.ID, timeout)
		if err != nil {
			return fmt.Errorf("read %s: %w", r.Name, err)
		}
		readings = append(readings, readReading{
			Register: r.Name,
			ID:       fmt.Sprintf("0x%08X", r.ID),
			Value:    value,
			Display:  r.FormatValue(value),
		})
	}

	touchDevice(endpoint)

	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(readings, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	default:
		for i, r := range readings {
			reg := regs[i]
			desc := ""
			if reg.Description != "" {
				desc = "  " + reg.Description
			}
			fmt.Printf("%-16s %14s%s\n", r.Register, r.Display, desc)
		}
	}

	return nil
}

// watchCmd polls all registers on an interval.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch live inverter values",
	Long: `Continuously read all published registers and display them.

On a terminal this launches an interactive dashboard; use --plain for
line-oriented output suitable for pipes and logs.`,
	Example: `  # Live dashboard
  rctpower watch --device home

  # Plain output every 10 seconds
  rctpower watch --device home --interval 10s --plain`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Refresh interval (default from config)")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Line-oriented output instead of the dashboard")
}

func runWatch(cmd *cobra.Command, args []string) error {
	endpoint, timeout, err := resolveDevice()
	if err != nil {
		return err
	}

	interval := watchInterval
	if interval <= 0 {
		interval = config.DefaultWatchInterval
		if registry, err := config.LoadRegistry(); err == nil && registry.Preferences != nil && registry.Preferences.WatchInterval > 0 {
			interval = registry.Preferences.WatchInterval
		}
	}

	p, err := connect(endpoint)
	if err != nil {
		return err
	}
	defer p.Stop()

	touchDevice(endpoint)

	if !watchPlain && term.IsTerminal(int(os.Stdout.Fd())) {
		return tui.Run(endpoint, p, interval, timeout)
	}
	return watchLines(p, interval, timeout)
}

// watchLines is the non-interactive watch loop: one line per register per
// round, until interrupted or the connection dies.
func watchLines(p *poller.Poller, interval, timeout time.Duration) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	regs := registers.All()
	round := func() {
		now := time.Now().Format(time.RFC3339)
		for _, r := range regs {
			ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
			value, err := p.ReadValue(ctx, r.ID, timeout)
			cancel()
			if err != nil {
				fmt.Printf("%s %-16s error: %v\n", now, r.Name, err)
				continue
			}
			fmt.Printf("%s %-16s %s\n", now, r.Name, r.FormatValue(value))
		}
	}

	round()
	for {
		select {
		case <-ticker.C:
			round()
		case <-sigChan:
			return nil
		case <-p.Done():
			if err := p.Err(); err != nil {
				return fmt.Errorf("connection lost: %w", err)
			}
			return nil
		}
	}
}

// scanCmd discovers inverters on the network.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for RCT Power inverters on the network",
	Long: `Scan for inverters using mDNS/DNS-SD discovery.

Listens for mDNS advertisements and displays all discovered inverters with
their serial numbers and endpoints.`,
	Example: `  # Scan with the default timeout
  rctpower scan

  # Quick 3-second scan
  rctpower scan --timeout 3`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default from config)")
}

func runScan(cmd *cobra.Command, args []string) error {
	timeout := scanTimeout
	if timeout <= 0 {
		timeout = config.DefaultDiscoverTimeout
		if registry, err := config.LoadRegistry(); err == nil && registry.Preferences != nil && registry.Preferences.DiscoverTimeout > 0 {
			timeout = registry.Preferences.DiscoverTimeout
		}
	}

	fmt.Printf("Scanning for RCT Power inverters (timeout: %ds)...\n\n", timeout)

	devices, err := discovery.ScanForDevices(time.Duration(timeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No inverters found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the inverter is powered on and on the same network")
		fmt.Println("  - Check that your firewall allows mDNS (UDP port 5353)")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --device with the inverter's IP if discovery fails")
		return nil
	}

	fmt.Printf("Found %d inverter(s):\n\n", len(devices))
	for i, device := range devices {
		fmt.Printf("%d. %s\n", i+1, device.Hostname)
		fmt.Printf("   Serial:   %s\n", device.Serial)
		fmt.Printf("   Endpoint: %s\n", device.Endpoint())
		if len(device.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", device.Metadata)
		}
		fmt.Println()
	}

	fmt.Println("Use 'rctpower devices add <name> --endpoint <endpoint>' to register one")
	fmt.Println("Use 'rctpower read --device <endpoint>' to read values directly")

	return nil
}

// simulateCmd runs the protocol simulator.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a fake inverter for development",
	Long: `Run a protocol simulator that answers register reads like a real
inverter, seeded with plausible household energy values.

Useful for developing against the protocol without hardware:

    rctpower simulate &
    rctpower read --device 127.0.0.1`,
	Example: `  # Default port 8899 on all interfaces
  rctpower simulate

  # Custom bind address
  rctpower simulate --host 127.0.0.1 --port 9000`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simHost, "host", "", "Bind address (default all interfaces)")
	simulateCmd.Flags().IntVar(&simPort, "port", transport.DefaultPort, "Listen port")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	srv := sim.New(&sim.Config{Host: simHost, Port: simPort})
	if err := srv.Listen(); err != nil {
		return err
	}

	fmt.Printf("Simulator listening on %s\n", srv.Addr())
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve()
	}()

	select {
	case <-sigChan:
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

// devicesCmd manages the named-device registry.
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage registered inverters",
	Long: `Manage the named-device registry stored in the user config file.

Registered devices can be referenced by name everywhere --device is
accepted, and one of them can be marked as the default.`,
	RunE: runDevicesList,
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered inverters",
	RunE:  runDevicesList,
}

var devicesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register an inverter under a name",
	Example: `  rctpower devices add home --endpoint 192.168.1.74
  rctpower devices add garage --endpoint ws://bridge.local:8080/rct --default`,
	Args: cobra.ExactArgs(1),
	RunE: runDevicesAdd,
}

var devicesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registered inverter",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesRemove,
}

var devicesDefaultCmd = &cobra.Command{
	Use:   "default <name>",
	Short: "Mark a registered inverter as the default",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesDefault,
}

func init() {
	devicesAddCmd.Flags().StringVar(&addEndpoint, "endpoint", "", "host[:port] or ws(s):// bridge URL (required)")
	devicesAddCmd.Flags().StringVar(&addNotes, "notes", "", "Free-form notes")
	devicesAddCmd.Flags().DurationVar(&addTimeout, "timeout", 0, "Per-read timeout override for this device")
	devicesAddCmd.Flags().BoolVar(&addDefault, "default", false, "Make this the default device")
	_ = devicesAddCmd.MarkFlagRequired("endpoint")

	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesAddCmd)
	devicesCmd.AddCommand(devicesRemoveCmd)
	devicesCmd.AddCommand(devicesDefaultCmd)
}

func runDevicesList(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	if len(registry.Devices) == 0 {
		fmt.Println("No devices registered.")
		fmt.Println("Use 'rctpower devices add <name> --endpoint <endpoint>' to add one.")
		return nil
	}

	defaultName := ""
	if registry.Preferences != nil {
		defaultName = registry.Preferences.DefaultDevice
	}

	for name, device := range registry.Devices {
		marker := " "
		if name == defaultName {
			marker = "*"
		}
		fmt.Printf("%s %-16s %s", marker, name, device.Endpoint)
		if !device.LastSeen.IsZero() {
			fmt.Printf("  (last seen %s)", device.LastSeen.Format("2006-01-02 15:04"))
		}
		fmt.Println()
		if device.Notes != "" {
			fmt.Printf("    %s\n", device.Notes)
		}
	}

	return nil
}

func runDevicesAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	registry.SetDevice(name, &config.Device{
		Endpoint: addEndpoint,
		Timeout:  addTimeout,
		Notes:    addNotes,
	})
	if addDefault {
		registry.Preferences.DefaultDevice = name
	}

	if err := registry.Save(); err != nil {
		return err
	}

	fmt.Printf("Registered %q -> %s\n", name, addEndpoint)
	return nil
}

func runDevicesRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	if !registry.RemoveDevice(name) {
		return fmt.Errorf("no device named %q", name)
	}
	if err := registry.Save(); err != nil {
		return err
	}

	fmt.Printf("Removed %q\n", name)
	return nil
}

func runDevicesDefault(cmd *cobra.Command, args []string) error {
	name := args[0]

	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	if registry.GetDevice(name) == nil {
		return fmt.Errorf("no device named %q", name)
	}
	registry.Preferences.DefaultDevice = name
	if err := registry.Save(); err != nil {
		return err
	}

	fmt.Printf("Default device is now %q\n", name)
	return nil
}

// resolveRegisters maps command arguments to registers; no arguments means
// all published registers.
func resolveRegisters(args []string) ([]registers.Register, error) {
	if len(args) == 0 {
		return registers.All(), nil
	}

	regs := make([]registers.Register, 0, len(args))
	for _, arg := range args {
		r, err := registers.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("%w\nKnown registers: %v", err, registers.Names())
		}
		regs = append(regs, r)
	}
	return regs, nil
}

// resolveDevice turns the --device flag (or the configured default) into an
// endpoint and per-read timeout.
func resolveDevice() (endpoint string, timeout time.Duration, err error) {
	timeout = readTimeout

	registry, regErr := config.LoadRegistry()

	ref := deviceRef
	if ref == "" {
		if regErr == nil && registry.Preferences != nil && registry.Preferences.DefaultDevice != "" {
			ref = registry.Preferences.DefaultDevice
		} else {
			return "", 0, fmt.Errorf("no device specified. Use --device, or register a default with 'rctpower devices add'")
		}
	}

	// A registry name wins over a literal endpoint.
	if regErr == nil {
		if device := registry.GetDevice(ref); device != nil {
			endpoint = device.Endpoint
			if timeout <= 0 && device.Timeout > 0 {
				timeout = device.Timeout
			}
		}
	}
	if endpoint == "" {
		endpoint = ref
	}

	if timeout <= 0 {
		timeout = config.DefaultReadTimeout
		if regErr == nil && registry.Preferences != nil && registry.Preferences.ReadTimeout > 0 {
			timeout = registry.Preferences.ReadTimeout
		}
	}

	return endpoint, timeout, nil
}

// connect dials an endpoint and wraps it in a poller.
func connect(endpoint string) (*poller.Poller, error) {
	conn, err := transport.Dial(endpoint, transport.DefaultDialTimeout)
	if err != nil {
		return nil, err
	}
	return poller.New(conn), nil
}

// touchDevice records a successful connection on the matching registry
// entry, if any. Best effort; failures are ignored.
func touchDevice(endpoint string) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return
	}

	updated := false
	for _, device := range registry.Devices {
		if device.Endpoint == endpoint {
			device.LastSeen = time.Now()
			updated = true
		}
	}
	if updated {
		_ = registry.Save()
	}
}
