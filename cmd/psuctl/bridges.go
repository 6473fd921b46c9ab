package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/psulink/internal/discovery"
	"github.com/muurk/psulink/internal/ui"
)

var (
	scanTimeout int
	waitFor     string
)

func init() {
	bridgesCmd.Flags().IntVar(&scanTimeout, "timeout", 5, "Scan timeout in seconds")
	bridgesCmd.Flags().StringVar(&waitFor, "wait", "", "Wait for the named instance and print only its URL")
	rootCmd.AddCommand(bridgesCmd)
}

var bridgesCmd = &cobra.Command{
	Use:   "bridges",
	Short: "Find psu-bridge instances on the local network",
	Long: `Browse mDNS for psu-bridge servers (_psulink._tcp) and list their
WebSocket URLs.`,
	Example: `  psuctl bridges
  psuctl bridges --timeout 10

  # Script-friendly: block until a bridge appears
  psuctl bridges --wait lab-pi-dps150 --timeout 30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if waitFor != "" {
			scanner := discovery.NewScanner()
			scanner.Timeout = time.Duration(scanTimeout) * time.Second
			b, err := scanner.WaitForBridge(cmd.Context(), waitFor)
			if err != nil {
				return err
			}
			fmt.Println(b.URL())
			return nil
		}

		fmt.Printf("Scanning for bridges (timeout: %ds)...\n\n", scanTimeout)

		found, err := discovery.ScanForBridges(time.Duration(scanTimeout) * time.Second)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if len(found) == 0 {
			fmt.Println("No bridges found.")
			fmt.Println("\nTroubleshooting:")
			fmt.Println("  - Check that psu-bridge is running with advertise enabled")
			fmt.Println("  - mDNS does not cross routers; scan from the same subnet")
			fmt.Println("  - Try increasing --timeout")
			return nil
		}

		table := &ui.Table{Headers: []string{"INSTANCE", "PROTOCOL", "URL", "VERSION"}}
		for _, b := range found {
			protocol := b.Protocol
			if protocol == "" {
				protocol = "unknown"
			}
			table.AddRow(b.Instance, protocol, b.URL(), b.GetMetadata("version"))
		}
		fmt.Println(table.Render())
		return nil
	},
}
