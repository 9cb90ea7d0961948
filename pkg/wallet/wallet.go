package wallet

import (
	"context"
	"errors"

	"offramp/pkg/types"
)

// ErrNoWalletAvailable is returned when no wallet session exists for the
// requested chain.
var ErrNoWalletAvailable = errors.New("no wallet available")

// ErrTransactionFailed marks a transaction the chain itself reported as
// failed. Unlike an RPC error it is definitive and must not be retried as
// if the status were merely unknown.
var ErrTransactionFailed = errors.New("transaction failed on-chain")

// Signer is the narrow capability the saga needs from the wallet
// provider: an address to send from and a way to sign and broadcast.
type Signer interface {
	Address() string
	SignAndSend(ctx context.Context, transfer *types.OnChainTransfer) (string, error)
}

// Provider resolves the active signer for a chain.
type Provider interface {
	Resolve(chain string) (Signer, error)
}

// StaticProvider serves pre-built signers keyed by chain name.
type StaticProvider struct {
	signers map[string]Signer
}

// NewStaticProvider creates a provider over the given signers.
func NewStaticProvider(signers map[string]Signer) *StaticProvider {
	return &StaticProvider{signers: signers}
}

// Resolve returns the signer for a chain, or ErrNoWalletAvailable.
func (p *StaticProvider) Resolve(chain string) (Signer, error) {
	signer, ok := p.signers[chain]
	if !ok || signer == nil {
		return nil, ErrNoWalletAvailable
	}
	return signer, nil
}
