// Rctpower is a command-line client for RCT Power solar inverters.
//
// It reads live values (solar generation, grid flow, battery state) from an
// inverter over its TCP register protocol, provides a live watch dashboard,
// mDNS discovery, a named-device registry, and a protocol simulator for
// development without hardware.
//
// Usage:
//
//	rctpower [command] [flags]
//
// See 'rctpower --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helvik/rctpower/internal/logging"
	"github.com/helvik/rctpower/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rctpower",
	Short: "RCT Power inverter client",
	Long: `A command-line client for RCT Power solar inverters.

Reads live values (solar generation, grid flow, battery state) over the
inverter's TCP register protocol. Supports named devices, mDNS discovery,
a live watch dashboard, and a built-in device simulator.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rctpower %s\n", version.Full())
	},
}
