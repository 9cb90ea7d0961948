package txbuilder

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedAsset is returned when a token is not listed for a chain.
var ErrUnsupportedAsset = errors.New("unsupported asset")

// TokenInfo is one registry entry: the token's contract address and fixed
// decimal count on a specific chain.
type TokenInfo struct {
	Contract string
	Decimals int32
}

// chainIDs maps supported chain names to their EVM chain IDs.
var chainIDs = map[string]int64{
	"ethereum": 1,
	"base":     8453,
	"polygon":  137,
}

// tokens is the static per-chain registry of supported stablecoins.
var tokens = map[string]map[string]TokenInfo{
	"ethereum": {
		"USDC": {Contract: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
		"USDT": {Contract: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
	},
	"base": {
		"USDC": {Contract: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	},
	"polygon": {
		"USDC": {Contract: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: 6},
		"USDT": {Contract: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", Decimals: 6},
	},
}

// LookupToken resolves a token's contract address and decimals for a chain.
func LookupToken(chain, symbol string) (TokenInfo, error) {
	chain = strings.ToLower(chain)
	symbol = strings.ToUpper(symbol)

	chainTokens, ok := tokens[chain]
	if !ok {
		return TokenInfo{}, fmt.Errorf("%w: chain %s not supported", ErrUnsupportedAsset, chain)
	}

	info, ok := chainTokens[symbol]
	if !ok {
		return TokenInfo{}, fmt.Errorf("%w: %s on %s", ErrUnsupportedAsset, symbol, chain)
	}

	return info, nil
}

// ChainID resolves the EVM chain ID for a supported chain name.
func ChainID(chain string) (int64, error) {
	id, ok := chainIDs[strings.ToLower(chain)]
	if !ok {
		return 0, fmt.Errorf("%w: chain %s not supported", ErrUnsupportedAsset, chain)
	}
	return id, nil
}

// SupportedChains lists the chains present in the registry.
func SupportedChains() []string {
	chains := make([]string, 0, len(tokens))
	for chain := range tokens {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// SupportedTokens lists the token symbols available on a chain.
func SupportedTokens(chain string) []string {
	symbols := make([]string, 0)
	for symbol := range tokens[strings.ToLower(chain)] {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
