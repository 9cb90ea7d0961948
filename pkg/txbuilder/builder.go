package txbuilder

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"offramp/pkg/types"
)

// ErrGasEstimationFailed is returned when the node rejects the simulated
// transfer call, commonly on insufficient balance or a reverting
// destination.
var ErrGasEstimationFailed = errors.New("gas estimation failed")

// ERC20 transfer function ABI
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// Fallback fee parameters used when the node returns no fee data.
var (
	defaultPriorityFee = big.NewInt(2_000_000_000)  // 2 gwei
	defaultBaseFee     = big.NewInt(20_000_000_000) // 20 gwei
)

// ChainRPC is the slice of the chain RPC surface the builder needs.
// *ethclient.Client satisfies it.
type ChainRPC interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*etypes.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Builder assembles unsigned ERC-20 transfers for the settlement flow.
type Builder struct {
	rpc ChainRPC
	log *logrus.Entry
}

// NewBuilder creates a transaction builder over the given chain RPC.
func NewBuilder(rpc ChainRPC) *Builder {
	return &Builder{
		rpc: rpc,
		log: logrus.WithField("component", "txbuilder"),
	}
}

// ToBaseUnits converts a decimal token amount to base units using integer
// arithmetic only. An amount with more fractional digits than the token
// supports is an error, never silently truncated.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0")
	}

	scaled := amount.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	return scaled.BigInt(), nil
}

// BuildTransfer produces an unsigned ERC-20 transfer of the request's
// amount to the order's receive address. The nonce is fetched last, from
// the pending count, so a concurrent in-flight transaction from the same
// sender is accounted for.
func (b *Builder) BuildTransfer(ctx context.Context, req types.SettlementRequest, fromAddress, receiveAddress string) (*types.OnChainTransfer, error) {
	if !common.IsHexAddress(receiveAddress) {
		return nil, fmt.Errorf("invalid receive address: %s", receiveAddress)
	}
	if !common.IsHexAddress(fromAddress) {
		return nil, fmt.Errorf("invalid sender address: %s", fromAddress)
	}

	token, err := LookupToken(req.SourceChain, req.Token)
	if err != nil {
		return nil, err
	}
	chainID, err := ChainID(req.SourceChain)
	if err != nil {
		return nil, err
	}

	amountBaseUnits, err := ToBaseUnits(req.Amount, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	data, err := parsedABI.Pack("transfer", common.HexToAddress(receiveAddress), amountBaseUnits)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer data: %w", err)
	}

	from := common.HexToAddress(fromAddress)
	tokenContract := common.HexToAddress(token.Contract)

	gasLimit, err := b.estimateGas(ctx, from, tokenContract, data)
	if err != nil {
		return nil, err
	}

	maxFee, priorityFee := b.feeData(ctx)

	// Fetched last so a transfer built moments earlier by the same sender
	// is already reflected in the pending count.
	nonce, err := b.rpc.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	b.log.WithFields(logrus.Fields{
		"token":      req.Token,
		"chain":      req.SourceChain,
		"base_units": amountBaseUnits.String(),
		"gas_limit":  gasLimit,
		"nonce":      nonce,
	}).Debug("transfer assembled")

	return &types.OnChainTransfer{
		FromAddress:          fromAddress,
		ToAddress:            receiveAddress,
		TokenContract:        token.Contract,
		AmountBaseUnits:      amountBaseUnits,
		Data:                 data,
		Nonce:                nonce,
		GasLimit:             gasLimit,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: priorityFee,
		ChainID:              chainID,
	}, nil
}

// estimateGas simulates the transfer from the sender and applies a 1.5x
// margin to absorb estimation variance.
func (b *Builder) estimateGas(ctx context.Context, from, tokenContract common.Address, data []byte) (uint64, error) {
	msg := ethereum.CallMsg{
		From: from,
		To:   &tokenContract,
		Data: data,
	}

	estimated, err := b.rpc.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGasEstimationFailed, err)
	}

	return estimated * 3 / 2, nil
}

// feeData reads the EIP-1559 fee parameters, falling back to conservative
// defaults when the node returns none. Fee trouble is not fatal here; a
// broadcast with defaults either lands or fails at the node with a
// specific error.
func (b *Builder) feeData(ctx context.Context) (maxFee, priorityFee *big.Int) {
	priorityFee, err := b.rpc.SuggestGasTipCap(ctx)
	if err != nil || priorityFee == nil || priorityFee.Sign() == 0 {
		b.log.WithError(err).Warn("no tip suggestion from node, using default")
		priorityFee = new(big.Int).Set(defaultPriorityFee)
	}

	baseFee := new(big.Int).Set(defaultBaseFee)
	header, err := b.rpc.HeaderByNumber(ctx, nil)
	if err != nil || header == nil || header.BaseFee == nil {
		b.log.WithError(err).Warn("no base fee from node, using default")
	} else {
		baseFee = header.BaseFee
	}

	// maxFee = 2*baseFee + tip leaves headroom for base-fee growth across
	// a few blocks.
	maxFee = new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFee.Add(maxFee, priorityFee)

	return maxFee, priorityFee
}
