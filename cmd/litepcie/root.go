package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "litepcie",
	Short: "LitePCIe DMA simulation and verification tool",
	Long: `The litepcie tool simulates a PCIe scatter-gather DMA loopback ` +
		`platform and verifies that the data written back to host memory ` +
		`matches the data read out of it.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
