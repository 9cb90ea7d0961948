package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"offramp/config"
	"offramp/pkg/compliance"
	"offramp/pkg/types"
)

var kycCmd = &cobra.Command{
	Use:   "kyc",
	Short: "Identity verification operations",
	Long: `Manage the identity verification required before selling.

Examples:
  offramp kyc status
  offramp kyc check
  offramp kyc start`,
}

var kycStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current verification status",
	Run: func(cmd *cobra.Command, args []string) {
		runKYC(cmd, func(ctx context.Context, gate *compliance.Gate) (types.ComplianceStatus, error) {
			return gate.Status(ctx)
		})
	},
}

var kycCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Force a fresh verification check with the provider",
	Run: func(cmd *cobra.Command, args []string) {
		runKYC(cmd, func(ctx context.Context, gate *compliance.Gate) (types.ComplianceStatus, error) {
			return gate.Refresh(ctx)
		})
	},
}

var kycStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new verification session",
	Run:   runKYCStart,
}

func init() {
	rootCmd.AddCommand(kycCmd)
	kycCmd.AddCommand(kycStatusCmd)
	kycCmd.AddCommand(kycCheckCmd)
	kycCmd.AddCommand(kycStartCmd)
}

func newGate() *compliance.Gate {
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return compliance.NewGate(compliance.NewClient(cfg.BaseURL, cfg.APIToken), cfg.ComplianceMaxAge)
}

func runKYC(cmd *cobra.Command, fetch func(context.Context, *compliance.Gate) (types.ComplianceStatus, error)) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	gate := newGate()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking verification status..."
		s.Start()
	}

	status, err := fetch(context.Background(), gate)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(map[string]string{"status": string(status)}, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayComplianceStatus(status)
}

func runKYCStart(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	gate := newGate()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Starting verification session..."
		s.Start()
	}

	session, err := gate.BeginVerification(context.Background())
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(session, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	printSuccess("Verification session created.")
	fmt.Println("Complete verification at:")
	color.Cyan("  %s\n", session.URL)
	fmt.Println("\nThen check the result with:")
	color.Cyan("  offramp kyc check\n")
}

func displayComplianceStatus(status types.ComplianceStatus) {
	fmt.Printf("\nVerification status: ")
	switch status {
	case types.ComplianceApproved:
		color.Green("%s", status)
		fmt.Println("\nYou are cleared to sell.")
	case types.CompliancePending:
		color.Yellow("%s", status)
		fmt.Println("\nVerification is being reviewed. Check back later with:")
		color.Cyan("  offramp kyc check\n")
	case types.ComplianceRejected, types.ComplianceRetryRequired:
		color.Red("%s", status)
		fmt.Println("\nStart a new verification session with:")
		color.Cyan("  offramp kyc start\n")
	default:
		color.Yellow("%s", status)
		fmt.Println("\nStart verification with:")
		color.Cyan("  offramp kyc start\n")
	}
	fmt.Println()
}
