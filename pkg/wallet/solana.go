package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"offramp/config"
)

// SolanaSigner signs and broadcasts bridge-leg transactions on Solana and
// exposes the sequencing primitives the bridge flow polls.
type SolanaSigner struct {
	config     config.SolanaConfig
	client     *rpc.Client
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewSolanaSigner creates a signer over the configured Solana RPC.
func NewSolanaSigner(cfg config.SolanaConfig) (*SolanaSigner, error) {
	if cfg.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for Solana")
	}
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured for Solana")
	}

	client := rpc.New(cfg.RPCUrl)

	privateKey, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &SolanaSigner{
		config:     cfg,
		client:     client,
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// Address returns the bridge source wallet address.
func (s *SolanaSigner) Address() solana.PublicKey {
	return s.publicKey
}

// LatestBlockhash fetches a fresh blockhash from the source chain. The
// bridge flow patches it into the relay-built transaction before signing;
// the relay-provided one may already be stale.
func (s *SolanaSigner) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	recent, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	return recent.Value.Blockhash, nil
}

// SignAndSend signs the transaction with the wallet key and broadcasts it.
func (s *SolanaSigner) SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	opts := rpc.TransactionOpts{
		PreflightCommitment: s.getCommitment(),
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	return sig, nil
}

// SignatureConfirmed reports whether the signature has reached at least
// confirmed commitment on the source chain. A transaction the chain
// itself reports as failed returns ErrTransactionFailed.
func (s *SolanaSigner) SignatureConfirmed(ctx context.Context, sig solana.Signature) (bool, error) {
	out, err := s.client.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return false, fmt.Errorf("failed to get signature status: %w", err)
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil
	}

	status := out.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
	}

	return status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized, nil
}

// getCommitment returns the commitment level from config
func (s *SolanaSigner) getCommitment() rpc.CommitmentType {
	switch strings.ToLower(s.config.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
