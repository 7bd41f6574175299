// Dchwatch is a monitoring and configuration utility for D-Link DCH-S150
// motion and DCH-S160 water-leak sensors.
//
// It speaks the sensors' local HNAP protocol directly, with no vendor cloud
// involvement: it can poll detection events, push detector and clock
// settings, reboot a sensor, and join a factory-fresh sensor to a Wi-Fi
// network.
//
// Usage:
//
//	dchwatch [command] [flags]
//
// See 'dchwatch --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wrenhall/dchwatch/internal/logging"
	"github.com/wrenhall/dchwatch/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.Sync()
}

var rootCmd = &cobra.Command{
	Use:   "dchwatch",
	Short: "D-Link DCH Sensor Utility",
	Long: `A standalone utility for D-Link DCH-S150/DCH-S160 sensors.

Polls detection events, pushes detector and clock settings, reboots
sensors, and provisions factory-fresh sensors onto a Wi-Fi network -
all over the local HNAP protocol, without the discontinued vendor cloud.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless DCHWATCH_LOG_LEVEL is set
		return logging.InitializeFromEnv()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dchwatch %s (commit: %s)\n", version.Version, version.Commit)
	},
}
