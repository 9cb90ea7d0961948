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
	"github.com/spf13/cobra"

	"offramp/config"
	"offramp/pkg/orders"
	"offramp/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
	watchAttempts int
)

var statusCmd = &cobra.Command{
	Use:   "status <order-id>",
	Short: "Check the status of a settlement order",
	Long: `Check the settlement status of an order by its id.

Examples:
  offramp status ord-1234
  offramp status ord-1234 --watch
  offramp status ord-1234 --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
	statusCmd.Flags().IntVar(&watchAttempts, "max-polls", 360, "Maximum polls before giving up (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	orderID := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	client := orders.NewClient(cfg.BaseURL, cfg.APIToken)
	ctx := context.Background()

	if watchStatus {
		if jsonOutput {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}
		fmt.Printf("\nWatching order %s\n", color.CyanString(orderID))
		fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n", watchInterval)
		watchOrder(ctx, client, orderID, cfg)
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking order status..."
		s.Start()
	}

	order, err := client.GetOrder(ctx, orderID)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(order, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayOrder(order)
	}
}

func watchOrder(ctx context.Context, client *orders.Client, orderID string, cfg *config.Config) {
	store := orders.NewStore()
	sync := orders.NewSynchronizer(client, store, time.Duration(watchInterval)*time.Second, watchAttempts)

	final, err := sync.Watch(ctx, orderID, func(order *types.SettlementOrder) {
		fmt.Printf("  [%s] %s\n", time.Now().Format("15:04:05"), coloredOrderStatus(order.Status))
	})
	if err != nil {
		if errors.Is(err, orders.ErrNoStatusObserved) {
			printError(fmt.Errorf("could not reach the order service; check your connection and try again"))
		} else {
			printError(err)
		}
		os.Exit(1)
	}

	displayOrder(final)
	if !final.Status.Terminal() {
		color.Yellow("Order has not settled yet. Check again later with:")
		color.Cyan("  offramp status %s\n", orderID)
	}
}

func displayOrder(order *types.SettlementOrder) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      SETTLEMENT STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Order ID:        %s\n", color.CyanString(order.OrderID))
	fmt.Printf("  Status:          %s\n", coloredOrderStatus(order.Status))
	if order.ReceiveAddress != "" {
		fmt.Printf("  Receive Address: %s\n", order.ReceiveAddress)
	}
	if order.TxHash != "" {
		fmt.Printf("  Transfer Tx:     %s\n", color.HiBlackString(order.TxHash))
	}
	if order.FailureReason != "" {
		fmt.Printf("  Reason:          %s\n", color.RedString(order.FailureReason))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredOrderStatus(status types.OrderStatus) string {
	switch status {
	case types.OrderCompleted:
		return color.GreenString(string(status))
	case types.OrderPending, types.OrderProcessing:
		return color.YellowString(string(status))
	case types.OrderFailed, types.OrderCancelled:
		return color.RedString(string(status))
	default:
		return string(status)
	}
}
