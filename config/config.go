package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// EVMNetwork holds the connection details for one EVM chain.
type EVMNetwork struct {
	RPCUrl     string
	PrivateKey string
	ChainID    int64
}

// SolanaConfig holds the connection details for the bridge source chain.
type SolanaConfig struct {
	RPCUrl     string
	PrivateKey string
	Commitment string
}

// BridgeConfig tunes the bridge confirmation loop.
type BridgeConfig struct {
	RelayURL         string
	PollInterval     time.Duration
	MaxPollAttempts  int
	CompletionDelay  time.Duration
	SettlementChain  string // chain the settlement counterparty accepts
	SettlementWallet string // destination-chain wallet funds are bridged to
}

// Config holds the application configuration
type Config struct {
	BaseURL     string // backend proxy for counterparty + compliance calls
	APIToken    string
	Environment string

	WebhookSecret string
	WebhookPort   int

	EVMNetworks map[string]EVMNetwork
	Solana      SolanaConfig
	Bridge      BridgeConfig

	ComplianceMaxAge time.Duration
	QuoteMaxAge      time.Duration
}

// Production reports whether the client runs against the production backend.
// Webhook signature enforcement is tied to this flag.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".offramp")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("base_url", "https://api.offramp.example.com")
	viper.SetDefault("environment", "staging")
	viper.SetDefault("webhook_port", 8099)
	viper.SetDefault("bridge.poll_interval", "1s")
	viper.SetDefault("bridge.max_poll_attempts", 60)
	viper.SetDefault("bridge.completion_delay", "10s")
	viper.SetDefault("bridge.settlement_chain", "base")
	viper.SetDefault("compliance_max_age", "5m")
	viper.SetDefault("quote_max_age", "2m")
	viper.SetDefault("solana.commitment", "confirmed")

	// Read from environment variables
	viper.SetEnvPrefix("OFFRAMP")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		BaseURL:       viper.GetString("base_url"),
		APIToken:      viper.GetString("api_token"),
		Environment:   viper.GetString("environment"),
		WebhookSecret: viper.GetString("webhook_secret"),
		WebhookPort:   viper.GetInt("webhook_port"),
		Solana: SolanaConfig{
			RPCUrl:     viper.GetString("solana.rpc_url"),
			PrivateKey: viper.GetString("solana.private_key"),
			Commitment: viper.GetString("solana.commitment"),
		},
		Bridge: BridgeConfig{
			RelayURL:         viper.GetString("bridge.relay_url"),
			PollInterval:     viper.GetDuration("bridge.poll_interval"),
			MaxPollAttempts:  viper.GetInt("bridge.max_poll_attempts"),
			CompletionDelay:  viper.GetDuration("bridge.completion_delay"),
			SettlementChain:  viper.GetString("bridge.settlement_chain"),
			SettlementWallet: viper.GetString("bridge.settlement_wallet"),
		},
		ComplianceMaxAge: viper.GetDuration("compliance_max_age"),
		QuoteMaxAge:      viper.GetDuration("quote_max_age"),
	}

	cfg.EVMNetworks = loadEVMNetworks()

	// Validate API token
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("API token not found. Please set OFFRAMP_API_TOKEN environment variable or create a .offramp.yaml config file")
	}

	globalConfig = cfg
	return cfg, nil
}

// loadEVMNetworks reads the per-chain EVM settings. Networks are declared
// under the "evm" key in the config file, e.g. evm.base.rpc_url.
func loadEVMNetworks() map[string]EVMNetwork {
	networks := make(map[string]EVMNetwork)

	raw := viper.GetStringMap("evm")
	for name := range raw {
		prefix := "evm." + name
		networks[name] = EVMNetwork{
			RPCUrl:     viper.GetString(prefix + ".rpc_url"),
			PrivateKey: viper.GetString(prefix + ".private_key"),
			ChainID:    viper.GetInt64(prefix + ".chain_id"),
		}
	}

	return networks
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
