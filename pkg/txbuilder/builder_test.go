package txbuilder

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"offramp/pkg/types"
)

type fakeRPC struct {
	gas     uint64
	gasErr  error
	tip     *big.Int
	tipErr  error
	baseFee *big.Int
	nonce   uint64

	lastCallMsg ethereum.CallMsg
}

func (f *fakeRPC) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.lastCallMsg = msg
	return f.gas, f.gasErr
}

func (f *fakeRPC) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	return f.tip, f.tipErr
}

func (f *fakeRPC) HeaderByNumber(_ context.Context, _ *big.Int) (*etypes.Header, error) {
	if f.baseFee == nil {
		return nil, errors.New("no header")
	}
	return &etypes.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeRPC) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	return f.nonce, nil
}

func newTestRequest(amount string) types.SettlementRequest {
	return types.SettlementRequest{
		Token:        "USDC",
		SourceChain:  "base",
		Amount:       decimal.RequireFromString(amount),
		FiatCurrency: "NGN",
	}
}

const (
	testFrom    = "0x1111111111111111111111111111111111111111"
	testReceive = "0x2222222222222222222222222222222222222222"
)

func TestToBaseUnitsIntegerExact(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int32
		want     string
	}{
		{"12.345678", 6, "12345678"},
		{"100", 6, "100000000"},
		{"0.000001", 6, "1"},
		{"999999999999.999999", 6, "999999999999999999"},
		{"1.5", 18, "1500000000000000000"},
	}

	for _, tc := range cases {
		got, err := ToBaseUnits(decimal.RequireFromString(tc.amount), tc.decimals)
		require.NoError(t, err, "amount %s", tc.amount)

		want, ok := new(big.Int).SetString(tc.want, 10)
		require.True(t, ok)
		require.Zero(t, got.Cmp(want), "amount %s: got %s, want %s", tc.amount, got, want)
	}
}

func TestToBaseUnitsRejectsExcessPrecision(t *testing.T) {
	_, err := ToBaseUnits(decimal.RequireFromString("1.0000001"), 6)
	require.Error(t, err)

	_, err = ToBaseUnits(decimal.Zero, 6)
	require.Error(t, err)
}

func TestBuildTransferEncodesERC20Call(t *testing.T) {
	rpc := &fakeRPC{gas: 60000, tip: big.NewInt(1_000_000_000), baseFee: big.NewInt(10_000_000_000), nonce: 7}
	builder := NewBuilder(rpc)

	tx, err := builder.BuildTransfer(context.Background(), newTestRequest("12.345678"), testFrom, testReceive)
	require.NoError(t, err)

	// transfer(address,uint256) selector + two 32-byte words.
	require.Len(t, tx.Data, 68)
	require.Equal(t, "a9059cbb", hex.EncodeToString(tx.Data[:4]))

	encodedAmount := new(big.Int).SetBytes(tx.Data[36:])
	require.Zero(t, encodedAmount.Cmp(big.NewInt(12345678)))
	require.Zero(t, tx.AmountBaseUnits.Cmp(big.NewInt(12345678)))

	require.Equal(t, testReceive, tx.ToAddress)
	require.Equal(t, uint64(7), tx.Nonce)
	require.Equal(t, int64(8453), tx.ChainID)
	require.Empty(t, tx.TxHash)
}

func TestBuildTransferAppliesGasMargin(t *testing.T) {
	rpc := &fakeRPC{gas: 60000, tip: big.NewInt(1), baseFee: big.NewInt(1)}
	builder := NewBuilder(rpc)

	tx, err := builder.BuildTransfer(context.Background(), newTestRequest("1"), testFrom, testReceive)
	require.NoError(t, err)
	require.Equal(t, uint64(90000), tx.GasLimit)

	// The simulation runs from the actual sender, so balance checks apply.
	require.Equal(t, common.HexToAddress(testFrom), rpc.lastCallMsg.From)
}

func TestBuildTransferGasEstimationFailure(t *testing.T) {
	rpc := &fakeRPC{gasErr: errors.New("execution reverted")}
	builder := NewBuilder(rpc)

	_, err := builder.BuildTransfer(context.Background(), newTestRequest("1"), testFrom, testReceive)
	require.ErrorIs(t, err, ErrGasEstimationFailed)
	require.Contains(t, err.Error(), "execution reverted")
}

func TestBuildTransferFeeFallbacks(t *testing.T) {
	rpc := &fakeRPC{gas: 50000, tipErr: errors.New("method not found")}
	builder := NewBuilder(rpc)

	tx, err := builder.BuildTransfer(context.Background(), newTestRequest("1"), testFrom, testReceive)
	require.NoError(t, err)

	require.Zero(t, tx.MaxPriorityFeePerGas.Cmp(defaultPriorityFee))
	wantMax := new(big.Int).Mul(defaultBaseFee, big.NewInt(2))
	wantMax.Add(wantMax, defaultPriorityFee)
	require.Zero(t, tx.MaxFeePerGas.Cmp(wantMax))
}

func TestBuildTransferNonceMonotonic(t *testing.T) {
	rpc := &fakeRPC{gas: 50000, tip: big.NewInt(1), baseFee: big.NewInt(1), nonce: 3}
	builder := NewBuilder(rpc)

	first, err := builder.BuildTransfer(context.Background(), newTestRequest("1"), testFrom, testReceive)
	require.NoError(t, err)

	// A prior transfer is now in flight; the pending count has advanced.
	rpc.nonce = 4
	second, err := builder.BuildTransfer(context.Background(), newTestRequest("1"), testFrom, testReceive)
	require.NoError(t, err)

	require.NotEqual(t, first.Nonce, second.Nonce)
	require.Greater(t, second.Nonce, first.Nonce)
}

func TestBuildTransferUnsupportedAsset(t *testing.T) {
	builder := NewBuilder(&fakeRPC{})

	req := newTestRequest("1")
	req.Token = "DOGE"
	_, err := builder.BuildTransfer(context.Background(), req, testFrom, testReceive)
	require.ErrorIs(t, err, ErrUnsupportedAsset)

	req = newTestRequest("1")
	req.SourceChain = "solana"
	_, err = builder.BuildTransfer(context.Background(), req, testFrom, testReceive)
	require.ErrorIs(t, err, ErrUnsupportedAsset)
}
