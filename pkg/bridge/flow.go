package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"offramp/config"
	"offramp/pkg/types"
	"offramp/pkg/wallet"
)

// State is the bridge sub-flow's position.
type State string

const (
	StateQuote    State = "quote"
	StateSigning  State = "signing"
	StateBridging State = "bridging"
	StateComplete State = "complete"
	StateError    State = "error"
)

// Relay is the bridge relay backend surface the flow consumes.
type Relay interface {
	Quote(ctx context.Context, token string, amount decimal.Decimal) (*types.BridgeQuote, error)
	Build(ctx context.Context, from, to, token string, amount decimal.Decimal) (*types.BridgeTransaction, error)
}

// SourceChain exposes the sequencing primitives of the chain the funds
// leave from.
type SourceChain interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SignatureConfirmed(ctx context.Context, sig solana.Signature) (bool, error)
}

// Wallet signs and broadcasts the bridge-leg transaction.
type Wallet interface {
	Address() solana.PublicKey
	SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Result is what the flow hands back to the saga on completion: where the
// bridged funds now sit, so settlement can proceed from there.
type Result struct {
	DestinationAddress string
	Token              string
	Amount             decimal.Decimal
	RelayID            string
	Signature          solana.Signature

	// SourceConfirmed is false when the confirmation poll timed out and
	// the flow proceeded on the grace-delay assumption instead.
	SourceConfirmed bool
}

// Flow drives one bridge of funds to the settlement chain:
// quote -> signing -> bridging -> complete | error.
type Flow struct {
	relay  Relay
	chain  SourceChain
	wallet Wallet

	pollInterval    time.Duration
	maxPollAttempts int
	completionDelay time.Duration

	log *logrus.Entry

	mu    sync.Mutex
	state State
}

// NewFlow creates a bridge flow with the configured polling bounds.
func NewFlow(relay Relay, chain SourceChain, wallet Wallet, cfg config.BridgeConfig) *Flow {
	return &Flow{
		relay:           relay,
		chain:           chain,
		wallet:          wallet,
		pollInterval:    cfg.PollInterval,
		maxPollAttempts: cfg.MaxPollAttempts,
		completionDelay: cfg.CompletionDelay,
		log:             logrus.WithField("component", "bridge"),
		state:           StateQuote,
	}
}

// State returns the flow's current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	f.log.WithField("state", s).Debug("bridge state changed")
}

func (f *Flow) fail(cause Cause, err error) (*Result, error) {
	f.setState(StateError)
	return nil, newFlowError(cause, err)
}

// Run bridges the given amount to the settlement chain and returns where
// the funds now live. No counterparty order exists at any point in this
// flow, so every failure is safe to retry from scratch.
func (f *Flow) Run(ctx context.Context, token string, amount decimal.Decimal) (*Result, error) {
	if f.wallet == nil {
		return f.fail(CauseWalletUnavailable, fmt.Errorf("no bridge source wallet"))
	}

	f.setState(StateQuote)
	quote, err := f.relay.Quote(ctx, token, amount)
	if err != nil {
		return f.fail(CauseRelay, err)
	}
	if quote.EstimatedReceive.Sign() <= 0 || quote.DestinationAddress == "" {
		return f.fail(CauseRelay, fmt.Errorf("relay returned an unusable quote"))
	}

	f.setState(StateSigning)
	built, err := f.relay.Build(ctx, f.wallet.Address().String(), quote.DestinationAddress, token, amount)
	if err != nil {
		return f.fail(CauseRelay, err)
	}

	tx, err := solana.TransactionFromBase64(built.SerializedTx)
	if err != nil {
		return f.fail(CauseRelay, fmt.Errorf("failed to deserialize relay transaction: %w", err))
	}

	// The relay-embedded blockhash may be stale by the time the user
	// approves; signing it verbatim risks rejection. Refresh from the
	// source chain directly and patch before signing.
	fresh, err := f.chain.LatestBlockhash(ctx)
	if err != nil {
		f.setState(StateError)
		return nil, classify(fmt.Errorf("failed to refresh blockhash: %w", err))
	}
	tx.Message.RecentBlockhash = fresh

	sig, err := f.wallet.SignAndSend(ctx, tx)
	if err != nil {
		f.setState(StateError)
		return nil, classify(err)
	}

	f.log.WithFields(logrus.Fields{
		"signature": sig.String(),
		"relay_id":  built.RelayID,
	}).Info("bridge transaction broadcast")

	f.setState(StateBridging)
	confirmed, pollErr := f.pollConfirmation(ctx, sig)
	if ctx.Err() != nil {
		return f.fail(CauseCancelled, ctx.Err())
	}
	if pollErr != nil {
		// The chain reported the transaction failed. Unlike a poll
		// timeout this is definitive; the grace path does not apply.
		f.setState(StateError)
		return nil, classify(pollErr)
	}

	if !confirmed {
		// A poll timeout does not mean the transaction failed; a slow
		// relay still lands it more often than not. Proceed to the
		// destination-side wait instead of hard-failing.
		f.log.WithField("signature", sig.String()).
			Warn("confirmation polling exhausted, proceeding on grace delay")
	}

	// Destination-chain completion has no proof here, only a timed
	// assumption. See DESIGN.md before tightening this.
	select {
	case <-time.After(f.completionDelay):
	case <-ctx.Done():
		return f.fail(CauseCancelled, ctx.Err())
	}

	f.setState(StateComplete)
	return &Result{
		DestinationAddress: quote.DestinationAddress,
		Token:              token,
		Amount:             quote.EstimatedReceive,
		RelayID:            built.RelayID,
		Signature:          sig,
		SourceConfirmed:    confirmed,
	}, nil
}

// pollConfirmation polls the source chain for finality on a fixed
// interval, up to the configured attempt bound. It never loops
// indefinitely. A non-nil error means the chain reported the transaction
// as failed, not that the status is unknown.
func (f *Flow) pollConfirmation(ctx context.Context, sig solana.Signature) (bool, error) {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < f.maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
			confirmed, err := f.chain.SignatureConfirmed(ctx, sig)
			if err != nil {
				if errors.Is(err, wallet.ErrTransactionFailed) {
					return false, err
				}
				// Transient RPC trouble; the attempt still counts.
				f.log.WithError(err).Debug("signature status check failed")
				continue
			}
			if confirmed {
				return true, nil
			}
		}
	}

	return false, nil
}
