// Psuctl talks to FNIRSI DPS-150 and Alientek DP100 bench power supplies.
//
// It encodes and decodes frames offline, reads and writes single fields
// on a connected supply, shows a live view of the output, and manages the
// connection profiles stored in the psulink configuration file.
//
// Usage:
//
//	psuctl [command] [flags]
//
// See 'psuctl --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/psulink/internal/logging"
	"github.com/muurk/psulink/internal/protocol"
	"github.com/muurk/psulink/internal/ui"
	"github.com/muurk/psulink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err, ui.IsTerminal()))
		os.Exit(1)
	}
}

// errorText formats a failed command. Frame errors from the codecs get
// the boxed failure view on a terminal; everything else is plain lines.
func errorText(err error, styled bool) string {
	var fe *protocol.FrameError
	if styled && errors.As(err, &fe) {
		return ui.RenderFailure("Device command failed", err)
	}
	if hint := protocol.Hint(err); hint != "" {
		return fmt.Sprintf("Error: %v\nHint: %s", err, hint)
	}
	return fmt.Sprintf("Error: %v", err)
}

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "psuctl",
	Short: "Bench power supply control utility",
	Long: `Control FNIRSI DPS-150 (serial) and Alientek DP100 (USB HID) power supplies.

Offline commands (encode, decode, fields) work without a device attached.
Device commands pick the port from a profile in the configuration file, or
from --port and --protocol.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("psuctl %s\n", version.Full())
	},
}
