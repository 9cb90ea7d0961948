package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"offramp/pkg/types"
)

// ParseSellCommand parses a natural language sell command
// Examples:
//   - "sell 100 USDC to NGN"
//   - "250.50 USDT to EUR"
func ParseSellCommand(command string) (*types.SettlementRequest, error) {
	// Normalize the command
	command = strings.TrimSpace(strings.ToUpper(command))

	// Remove the word "SELL" if present at the beginning
	command = strings.TrimPrefix(command, "SELL ")

	// Pattern: <amount> <token> TO <fiat_currency>
	// Matches: "100 USDC TO NGN", "250.50 USDT TO EUR"
	pattern := regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+TO\s+([A-Z]{3})$`)

	matches := pattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid sell command format. Expected: 'sell <amount> <token> to <fiat>' (e.g., 'sell 100 USDC to NGN')")
	}

	amount, err := decimal.NewFromString(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", matches[1], err)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &types.SettlementRequest{
		Amount:       amount,
		Token:        NormalizeTokenSymbol(matches[2]),
		FiatCurrency: matches[3],
	}, nil
}

// ValidateSettlementRequest validates that a sell request has all required fields
func ValidateSettlementRequest(req *types.SettlementRequest) error {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be greater than zero")
	}
	if req.Token == "" {
		return fmt.Errorf("token is required")
	}
	if req.FiatCurrency == "" {
		return fmt.Errorf("fiat currency is required")
	}
	if req.SourceChain == "" {
		return fmt.Errorf("source chain is required")
	}
	if req.BankAccount.AccountNumber == "" {
		return fmt.Errorf("bank account number is required")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Handle common aliases
	aliases := map[string]string{
		"USDC.E": "USDC",
		"USDBC":  "USDC",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
