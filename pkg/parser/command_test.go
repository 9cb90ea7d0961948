package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offramp/pkg/types"
)

func TestParseSellCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		amount  string
		token   string
		fiat    string
		wantErr bool
	}{
		{name: "basic", command: "sell 100 USDC to NGN", amount: "100", token: "USDC", fiat: "NGN"},
		{name: "without sell prefix", command: "250.50 USDT to EUR", amount: "250.50", token: "USDT", fiat: "EUR"},
		{name: "lowercase", command: "sell 1.5 usdc to ngn", amount: "1.5", token: "USDC", fiat: "NGN"},
		{name: "alias normalized", command: "sell 10 USDbC to NGN", amount: "10", token: "USDC", fiat: "NGN"},
		{name: "missing fiat", command: "sell 100 USDC", wantErr: true},
		{name: "zero amount", command: "sell 0 USDC to NGN", wantErr: true},
		{name: "garbage", command: "please give me money", wantErr: true},
		{name: "empty", command: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseSellCommand(tt.command)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, req.Amount.Equal(decimal.RequireFromString(tt.amount)))
			assert.Equal(t, tt.token, req.Token)
			assert.Equal(t, tt.fiat, req.FiatCurrency)
		})
	}
}

func TestValidateSettlementRequest(t *testing.T) {
	valid := &types.SettlementRequest{
		Amount:       decimal.RequireFromString("100"),
		Token:        "USDC",
		FiatCurrency: "NGN",
		SourceChain:  "base",
		BankAccount:  types.BankAccount{AccountNumber: "0123456789"},
	}
	assert.NoError(t, ValidateSettlementRequest(valid))

	missingChain := *valid
	missingChain.SourceChain = ""
	assert.Error(t, ValidateSettlementRequest(&missingChain))

	missingBank := *valid
	missingBank.BankAccount = types.BankAccount{}
	assert.Error(t, ValidateSettlementRequest(&missingBank))
}
