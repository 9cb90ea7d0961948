package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"offramp/config"
	"offramp/pkg/types"
)

// EVMSigner signs and broadcasts transfers on one EVM chain with a locally
// held key. It stands in for the embedded-wallet provider's custody.
type EVMSigner struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int64
}

// NewEVMSigner creates a signer for a configured EVM network.
func NewEVMSigner(network config.EVMNetwork) (*EVMSigner, error) {
	if network.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}
	if network.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured")
	}

	client, err := ethclient.Dial(network.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(network.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key")
	}

	return &EVMSigner{
		client:     client,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
		chainID:    network.ChainID,
	}, nil
}

// Address returns the signer's sending address.
func (s *EVMSigner) Address() string {
	return s.address.Hex()
}

// SignAndSend signs the assembled transfer and broadcasts it. Once this
// returns a hash, funds are in flight.
func (s *EVMSigner) SignAndSend(ctx context.Context, transfer *types.OnChainTransfer) (string, error) {
	if transfer.ChainID != s.chainID {
		return "", fmt.Errorf("transfer is for chain %d, signer is on chain %d", transfer.ChainID, s.chainID)
	}

	tokenContract := common.HexToAddress(transfer.TokenContract)
	tx := etypes.NewTx(&etypes.DynamicFeeTx{
		ChainID:   big.NewInt(transfer.ChainID),
		Nonce:     transfer.Nonce,
		GasTipCap: transfer.MaxPriorityFeePerGas,
		GasFeeCap: transfer.MaxFeePerGas,
		Gas:       transfer.GasLimit,
		To:        &tokenContract,
		Value:     big.NewInt(0), // no native value on an ERC20 transfer
		Data:      transfer.Data,
	})

	signedTx, err := etypes.SignTx(tx, etypes.LatestSignerForChainID(big.NewInt(transfer.ChainID)), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx.Hash().Hex(), nil
}

// RPC exposes the underlying client for the transaction builder.
func (s *EVMSigner) RPC() *ethclient.Client {
	return s.client
}

// Close closes the client connection
func (s *EVMSigner) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
