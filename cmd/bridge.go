package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"offramp/config"
	"offramp/pkg/bridge"
	"offramp/pkg/wallet"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge <amount> <token>",
	Short: "Bridge funds from Solana to the settlement chain",
	Long: `Move funds from a Solana wallet to the settlement chain through the
bridge relay. The relay builds the transaction; it is re-sequenced against a
fresh blockhash, signed locally and confirmed on the source chain.

Examples:
  offramp bridge 50 USDC
  offramp bridge 12.5 USDC --json`,
	Args: cobra.ExactArgs(2),
	Run:  runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, args []string) {
	amount, err := decimal.NewFromString(args[0])
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		printError(fmt.Errorf("invalid amount: %s", args[0]))
		os.Exit(1)
	}
	token := strings.ToUpper(args[1])

	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	signer, err := wallet.NewSolanaSigner(cfg.Solana)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	relay := bridge.NewRelayClient(cfg.Bridge.RelayURL)
	flow := bridge.NewFlow(relay, signer, signer, cfg.Bridge)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = fmt.Sprintf(" Bridging %s %s to %s...", amount, token, cfg.Bridge.SettlementChain)
		s.Start()
	}

	result, err := flow.Run(context.Background(), token, amount)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		var flowErr *bridge.FlowError
		if errors.As(err, &flowErr) {
			printError(errors.New(flowErr.UserMessage()))
		} else {
			printError(err)
		}
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"token":       result.Token,
			"amount":      result.Amount.String(),
			"destination": result.DestinationAddress,
			"relay_id":    result.RelayID,
			"signature":   result.Signature.String(),
			"confirmed":   result.SourceConfirmed,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	color.Green("\n✓ Bridge transfer sent!")
	fmt.Printf("  Destination: %s\n", color.CyanString(result.DestinationAddress))
	fmt.Printf("  Signature:   %s\n", color.HiBlackString(result.Signature.String()))
	if !result.SourceConfirmed {
		color.Yellow("\nConfirmation is still in progress on Solana. The funds will")
		color.Yellow("arrive on %s once it lands.\n", cfg.Bridge.SettlementChain)
	}
}
