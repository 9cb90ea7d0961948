package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"offramp/config"
	"offramp/pkg/types"
	"offramp/pkg/wallet"
)

type fakeRelay struct {
	quoteErr error
	buildErr error
	serTx    string

	destAddress string
	buildCalls  int
}

func (f *fakeRelay) Quote(_ context.Context, token string, amount decimal.Decimal) (*types.BridgeQuote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &types.BridgeQuote{
		Token:              token,
		Amount:             amount,
		EstimatedReceive:   amount.Sub(decimal.RequireFromString("0.1")),
		RelayFee:           decimal.RequireFromString("0.1"),
		DestinationAddress: f.destAddress,
		FetchedAt:          time.Now(),
	}, nil
}

func (f *fakeRelay) Build(_ context.Context, _, _, _ string, _ decimal.Decimal) (*types.BridgeTransaction, error) {
	f.buildCalls++
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &types.BridgeTransaction{SerializedTx: f.serTx, RelayID: "relay-123"}, nil
}

type fakeChain struct {
	freshHash    solana.Hash
	confirmAfter int // confirm on the Nth status call; 0 means never
	statusErr    error
	statusCalls  int
	onStatus     func()
}

func (f *fakeChain) LatestBlockhash(_ context.Context) (solana.Hash, error) {
	return f.freshHash, nil
}

func (f *fakeChain) SignatureConfirmed(_ context.Context, _ solana.Signature) (bool, error) {
	f.statusCalls++
	if f.onStatus != nil {
		f.onStatus()
	}
	if f.statusErr != nil {
		return false, f.statusErr
	}
	return f.confirmAfter > 0 && f.statusCalls >= f.confirmAfter, nil
}

type fakeWallet struct {
	key     solana.PrivateKey
	sendErr error

	signedBlockhash solana.Hash
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{key: solana.NewWallet().PrivateKey}
}

func (f *fakeWallet) Address() solana.PublicKey {
	return f.key.PublicKey()
}

func (f *fakeWallet) SignAndSend(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.signedBlockhash = tx.Message.RecentBlockhash
	return solana.Signature{1, 2, 3}, nil
}

func relayTxBase64(t *testing.T, payer solana.PublicKey, blockhash solana.Hash) string {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1, payer, solana.SystemProgramID).Build(),
		},
		blockhash,
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)

	b64, err := tx.ToBase64()
	require.NoError(t, err)
	return b64
}

func testBridgeConfig() config.BridgeConfig {
	return config.BridgeConfig{
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 5,
		CompletionDelay: time.Millisecond,
	}
}

func TestFlowRefreshesBlockhashBeforeSigning(t *testing.T) {
	wallet := newFakeWallet()

	staleHash := solana.Hash{0xaa}
	freshHash := solana.Hash{0xbb}

	relay := &fakeRelay{
		serTx:       relayTxBase64(t, wallet.Address(), staleHash),
		destAddress: "0x3333333333333333333333333333333333333333",
	}
	chain := &fakeChain{freshHash: freshHash, confirmAfter: 1}

	flow := NewFlow(relay, chain, wallet, testBridgeConfig())
	result, err := flow.Run(context.Background(), "USDC", decimal.RequireFromString("25"))
	require.NoError(t, err)

	// The relay's stale blockhash must never be signed.
	require.Equal(t, freshHash, wallet.signedBlockhash)

	require.Equal(t, StateComplete, flow.State())
	require.Equal(t, "relay-123", result.RelayID)
	require.Equal(t, relay.destAddress, result.DestinationAddress)
	require.True(t, result.SourceConfirmed)
	require.True(t, result.Amount.Equal(decimal.RequireFromString("24.9")))
}

func TestFlowPollBoundThenGracePath(t *testing.T) {
	wallet := newFakeWallet()
	relay := &fakeRelay{
		serTx:       relayTxBase64(t, wallet.Address(), solana.Hash{0xaa}),
		destAddress: "0x3333333333333333333333333333333333333333",
	}
	chain := &fakeChain{freshHash: solana.Hash{0xbb}} // never confirms

	cfg := testBridgeConfig()
	flow := NewFlow(relay, chain, wallet, cfg)

	result, err := flow.Run(context.Background(), "USDC", decimal.RequireFromString("25"))
	require.NoError(t, err)

	// The loop stops after exactly the configured attempts, then takes
	// the grace-delay path instead of failing.
	require.Equal(t, cfg.MaxPollAttempts, chain.statusCalls)
	require.False(t, result.SourceConfirmed)
	require.Equal(t, StateComplete, flow.State())
}

func TestFlowAbortsOnObservedFailure(t *testing.T) {
	w := newFakeWallet()
	relay := &fakeRelay{
		serTx:       relayTxBase64(t, w.Address(), solana.Hash{0xaa}),
		destAddress: "0x3333333333333333333333333333333333333333",
	}
	chain := &fakeChain{
		freshHash: solana.Hash{0xbb},
		statusErr: fmt.Errorf("%w: InstructionError(0, custom 1)", wallet.ErrTransactionFailed),
	}

	flow := NewFlow(relay, chain, w, testBridgeConfig())
	result, err := flow.Run(context.Background(), "USDC", decimal.RequireFromString("25"))

	// An on-chain failure is definitive; it must never reach the
	// grace-delay path that covers confirmation timeouts.
	require.Nil(t, result)
	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	require.ErrorIs(t, err, wallet.ErrTransactionFailed)
	require.Equal(t, StateError, flow.State())
	require.Equal(t, 1, chain.statusCalls)
}

func TestFlowConfirmsEarly(t *testing.T) {
	wallet := newFakeWallet()
	relay := &fakeRelay{
		serTx:       relayTxBase64(t, wallet.Address(), solana.Hash{0xaa}),
		destAddress: "0x3333333333333333333333333333333333333333",
	}
	chain := &fakeChain{freshHash: solana.Hash{0xbb}, confirmAfter: 2}

	flow := NewFlow(relay, chain, wallet, testBridgeConfig())
	result, err := flow.Run(context.Background(), "USDC", decimal.RequireFromString("25"))
	require.NoError(t, err)

	require.Equal(t, 2, chain.statusCalls)
	require.True(t, result.SourceConfirmed)
}

func TestFlowClassifiesRelayFailure(t *testing.T) {
	relay := &fakeRelay{quoteErr: errors.New("upstream 502: relay pod evicted")}
	flow := NewFlow(relay, &fakeChain{}, newFakeWallet(), testBridgeConfig())

	_, err := flow.Run(context.Background(), "USDC", decimal.RequireFromString("25"))
	require.Error(t, err)

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, CauseRelay, flowErr.Cause)
	require.Equal(t, StateError, flow.State())

	// Raw provider text must not leak into the user message.
	require.NotContains(t, flowErr.UserMessage(), "pod evicted")
}

func TestFlowClassifiesInsufficientGas(t *testing.T) {
	wallet := newFakeWallet()
	wallet.sendErr = errors.New("Transaction simulation failed: insufficient lamports 1000, need 5000")

	relay := &fakeRelay{
		serTx:       relayTxBase64(t, wallet.Address(), solana.Hash{0xaa}),
		destAddress: "0x3333333333333333333333333333333333333333",
	}

	flow := NewFlow(relay, &fakeChain{freshHash: solana.Hash{0xbb}}, wallet, testBridgeConfig())
	_, err := flow.Run(context.Background(), "USDC", decimal.RequireFromString("25"))

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, CauseInsufficientGas, flowErr.Cause)
}

func TestFlowCancelledDuringPolling(t *testing.T) {
	wallet := newFakeWallet()
	relay := &fakeRelay{
		serTx:       relayTxBase64(t, wallet.Address(), solana.Hash{0xaa}),
		destAddress: "0x3333333333333333333333333333333333333333",
	}

	ctx, cancel := context.WithCancel(context.Background())
	chain := &fakeChain{freshHash: solana.Hash{0xbb}, onStatus: cancel}

	flow := NewFlow(relay, chain, wallet, testBridgeConfig())
	_, err := flow.Run(ctx, "USDC", decimal.RequireFromString("25"))

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, CauseCancelled, flowErr.Cause)
	require.Equal(t, StateError, flow.State())
}

func TestFlowWithoutWallet(t *testing.T) {
	flow := NewFlow(&fakeRelay{}, &fakeChain{}, nil, testBridgeConfig())
	_, err := flow.Run(context.Background(), "USDC", decimal.RequireFromString("25"))

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, CauseWalletUnavailable, flowErr.Cause)
}
