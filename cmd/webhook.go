package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"offramp/config"
	"offramp/pkg/orders"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Run the settlement webhook listener",
	Long: `Run an HTTP listener for settlement lifecycle events pushed by the
counterparty. Events are authenticated with an HMAC signature and applied to
the local order store with one-way status progression.

Examples:
  offramp webhook
  offramp webhook --port 9000`,
	Run: runWebhook,
}

var webhookPort int

func init() {
	rootCmd.AddCommand(webhookCmd)

	webhookCmd.Flags().IntVar(&webhookPort, "port", 0, "Listen port (defaults to OFFRAMP_WEBHOOK_PORT)")
}

func runWebhook(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	port := cfg.WebhookPort
	if webhookPort != 0 {
		port = webhookPort
	}

	if cfg.WebhookSecret == "" && cfg.Production() {
		printError(fmt.Errorf("OFFRAMP_WEBHOOK_SECRET is required in production"))
		os.Exit(1)
	}

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	store := orders.NewStore()
	handler := orders.NewWebhookHandler(cfg.WebhookSecret, cfg.Production(), store)

	router := gin.New()
	router.Use(gin.Recovery())
	handler.Register(router)

	color.Green("Webhook listener running on port %d", port)
	if !cfg.Production() {
		color.Yellow("Non-production mode: unsigned deliveries are accepted.")
	}

	if err := router.Run(fmt.Sprintf(":%d", port)); err != nil {
		printError(err)
		os.Exit(1)
	}
}
