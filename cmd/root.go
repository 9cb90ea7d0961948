package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "offramp",
	Short: "A CLI for settling stablecoins into fiat bank accounts",
	Long: `offramp is a command-line tool for selling stablecoins into a fiat
bank account. It quotes the rate, enforces identity verification, builds and
broadcasts the on-chain transfer and tracks the settlement order until the
money lands.

Examples:
  offramp sell 100 USDC to NGN --chain base --account-number 0123456789
  offramp bridge 50 USDC
  offramp status <order-id> --watch
  offramp kyc status
  offramp webhook`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
