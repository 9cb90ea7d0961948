package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"offramp/config"
	"offramp/pkg/auth"
	"offramp/pkg/compliance"
	"offramp/pkg/orders"
	"offramp/pkg/parser"
	"offramp/pkg/quote"
	"offramp/pkg/saga"
	"offramp/pkg/txbuilder"
	"offramp/pkg/types"
	"offramp/pkg/wallet"
)

var (
	sellChain       string
	bankName        string
	accountNumber   string
	holderName      string
	noConfirm       bool
	manualTransfer  bool
	watchSettlement bool
)

var sellCmd = &cobra.Command{
	Use:   "sell <amount> <token> to <fiat>",
	Short: "Sell stablecoins into a fiat bank account",
	Long: `Sell stablecoins and receive the proceeds in a fiat bank account.

IMPORTANT:
  - You MUST specify --account-number (the payout destination)
  - The wallet key for --chain must be configured (OFFRAMP_EVM_<CHAIN>_PRIVATE_KEY)

Examples:
  # Sell 100 USDC on Base into a Nigerian bank account
  offramp sell 100 USDC to NGN --chain base --account-number 0123456789 --bank-name GTBank --holder-name "Ada Obi"

  # Send the on-chain transfer yourself
  offramp sell 100 USDC to NGN --chain base --account-number 0123456789 --manual-transfer

  # Skip the confirmation prompt
  offramp sell 100 USDC to NGN --chain base --account-number 0123456789 --yes

  # Keep watching the order until the money lands
  offramp sell 100 USDC to NGN --chain base --account-number 0123456789 --watch`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSell,
}

func init() {
	rootCmd.AddCommand(sellCmd)

	sellCmd.Flags().StringVar(&sellChain, "chain", "base", "Source blockchain the funds sit on")
	sellCmd.Flags().StringVar(&bankName, "bank-name", "", "Destination bank name")
	sellCmd.Flags().StringVar(&accountNumber, "account-number", "", "Bank account number (REQUIRED)")
	sellCmd.Flags().StringVar(&holderName, "holder-name", "", "Bank account holder name")
	sellCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	sellCmd.Flags().BoolVar(&manualTransfer, "manual-transfer", false, "Create the order but send the on-chain transfer yourself")
	sellCmd.Flags().BoolVarP(&watchSettlement, "watch", "w", false, "Watch the order until it settles")
	sellCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
	sellCmd.Flags().IntVar(&watchAttempts, "max-polls", 360, "Maximum polls before giving up (when watching)")
}

func runSell(cmd *cobra.Command, args []string) {
	// Parse the command
	commandStr := strings.Join(args, " ")
	req, err := parser.ParseSellCommand(commandStr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	req.SourceChain = strings.ToLower(sellChain)
	req.BankAccount = types.BankAccount{
		BankName:      bankName,
		AccountNumber: accountNumber,
		HolderName:    holderName,
	}

	if err := parser.ValidateSettlementRequest(req); err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Get quote with spinner
	quoter := quote.NewQuoter(cfg.BaseURL, cfg.APIToken)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	q, err := quoter.GetQuote(ctx, req.Token, req.Amount, req.FiatCurrency, req.SourceChain)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		if errors.Is(err, quote.ErrQuoteUnavailable) {
			printError(fmt.Errorf("no rate available for %s to %s right now", req.Token, req.FiatCurrency))
		} else {
			printError(err)
		}
		os.Exit(1)
	}

	if verbose {
		fmt.Printf("\nQuote received:\n")
		quoteJSON, _ := json.MarshalIndent(q, "", "  ")
		fmt.Println(string(quoteJSON))
	}

	if !jsonOutput {
		displaySellQuote(q, req)
	}

	// Ask for confirmation
	if !noConfirm && !jsonOutput {
		if !confirmSell() {
			fmt.Println("\nSell cancelled.")
			os.Exit(0)
		}
	}

	// Wire the saga
	network, ok := cfg.EVMNetworks[req.SourceChain]
	if !ok {
		printError(fmt.Errorf("no wallet configured for chain: %s", req.SourceChain))
		os.Exit(1)
	}

	signer, err := wallet.NewEVMSigner(network)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer signer.Close()

	gate := compliance.NewGate(compliance.NewClient(cfg.BaseURL, cfg.APIToken), cfg.ComplianceMaxAge)
	orderClient := orders.NewClient(cfg.BaseURL, cfg.APIToken)
	builder := txbuilder.NewBuilder(signer.RPC())
	wallets := wallet.NewStaticProvider(map[string]wallet.Signer{req.SourceChain: signer})

	opts := []saga.Option{saga.WithQuoteMaxAge(cfg.QuoteMaxAge)}
	if manualTransfer {
		opts = append(opts, saga.WithManualTransfer())
	}
	controller := saga.NewController(gate, auth.None{}, wallets, orderClient, builder, opts...)

	if !jsonOutput {
		s.Suffix = " Settling..."
		s.Start()
	}
	outcome := controller.Run(ctx, *req, q)
	if !jsonOutput {
		s.Stop()
	}

	if jsonOutput {
		displaySellOutcomeJSON(outcome)
	} else {
		displaySellOutcome(outcome, req)
	}

	switch outcome.Kind {
	case saga.OutcomeFailed:
		os.Exit(1)
	case saga.OutcomeSuccess:
		if watchSettlement {
			watchOrder(ctx, orderClient, outcome.Order.OrderID, cfg)
		}
	}
}

func displaySellQuote(q *types.Quote, req *types.SettlementRequest) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SELL QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Selling:           %s %s on %s\n", q.Amount, color.YellowString(req.Token), req.SourceChain)
	fmt.Printf("  Rate:              %s %s per %s\n", q.Rate, req.FiatCurrency, req.Token)
	fmt.Printf("  You receive:       ~%s %s\n", color.GreenString(q.EstimatedFiat.String()), req.FiatCurrency)
	fmt.Printf("  Bank Account:      %s\n", req.BankAccount.AccountNumber)
	if req.BankAccount.BankName != "" {
		fmt.Printf("  Bank:              %s\n", req.BankAccount.BankName)
	}
	for _, fee := range q.Fees {
		fmt.Printf("  Fee (%s): %s\n", fee.Name, fee.Amount)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displaySellOutcome(outcome saga.Outcome, req *types.SettlementRequest) {
	switch outcome.Kind {
	case saga.OutcomeSuccess:
		color.Green("\n✓ Transfer broadcast, settlement in progress!")
		fmt.Printf("  Order ID:  %s\n", color.CyanString(outcome.Order.OrderID))
		fmt.Printf("  Tx Hash:   %s\n", color.HiBlackString(outcome.TxHash))
		approx := ""
		if outcome.FiatIsEstimate {
			approx = " (estimate, quote was stale)"
		}
		fmt.Printf("  Payout:    ~%s %s%s\n", outcome.FiatAmount, req.FiatCurrency, approx)
		fmt.Println("\nYou can monitor the settlement using:")
		color.Cyan("  offramp status %s\n", outcome.Order.OrderID)

	case saga.OutcomeAwaitingTransfer:
		displayManualInstructions(outcome, req)

	case saga.OutcomeBlocked:
		color.Yellow("\nIdentity verification required before selling.")
		fmt.Printf("  Status: %s\n", outcome.ComplianceStatus)
		if outcome.ComplianceStatus.NeedsNewSession() {
			fmt.Println("\nStart a new verification session with:")
		} else {
			fmt.Println("\nCheck progress or start verification with:")
		}
		color.Cyan("  offramp kyc start\n")

	case saga.OutcomeFailed:
		if outcome.FundsInFlight {
			color.Yellow("\nTransfer was broadcast but a later step failed: %v", outcome.Err)
			fmt.Println("Your funds are in flight; check the order status before retrying.")
		} else {
			printError(outcome.Err)
			fmt.Println("No funds have moved. It is safe to retry.")
		}
	}
}

func displayManualInstructions(outcome saga.Outcome, req *types.SettlementRequest) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Yellow("                 TRANSFER INSTRUCTIONS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nTo complete the sale, send %s %s on %s to:\n\n", req.Amount, req.Token, req.SourceChain)
	color.Cyan("  %s\n", outcome.Order.ReceiveAddress)
	fmt.Printf("\nOrder ID: %s\n", outcome.Order.OrderID)
	fmt.Println("\nThis address belongs to this order only. Never reuse it.")
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displaySellOutcomeJSON(outcome saga.Outcome) {
	output := map[string]interface{}{
		"outcome": string(outcome.Kind),
	}
	if outcome.Order != nil {
		output["order_id"] = outcome.Order.OrderID
		output["receive_address"] = outcome.Order.ReceiveAddress
	}
	if outcome.TxHash != "" {
		output["tx_hash"] = outcome.TxHash
	}
	if outcome.Kind == saga.OutcomeSuccess || outcome.Kind == saga.OutcomeAwaitingTransfer {
		output["fiat_amount"] = outcome.FiatAmount.String()
		output["fiat_is_estimate"] = outcome.FiatIsEstimate
	}
	if outcome.ComplianceStatus != "" {
		output["compliance_status"] = string(outcome.ComplianceStatus)
	}
	if outcome.Err != nil {
		output["error"] = outcome.Err.Error()
		output["funds_in_flight"] = outcome.FundsInFlight
	}
	jsonData, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(jsonData))
}

func confirmSell() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with sale? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
