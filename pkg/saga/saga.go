package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"offramp/pkg/auth"
	"offramp/pkg/orders"
	"offramp/pkg/types"
	"offramp/pkg/wallet"
)

// ErrAlreadyConfirmed is returned when a saga instance receives a second
// confirmation trigger. The guard lives here, at the controller boundary,
// not at the counterparty.
var ErrAlreadyConfirmed = errors.New("settlement already confirmed")

// ComplianceGate is the slice of the compliance gate the saga consumes.
type ComplianceGate interface {
	Status(ctx context.Context) (types.ComplianceStatus, error)
}

// OrderService is the settlement counterparty surface the saga consumes.
type OrderService interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (*types.SettlementOrder, error)
	AttachTxHash(ctx context.Context, orderID, txHash string) error
	LogTransfer(ctx context.Context, entry orders.LedgerEntry) error
}

// TransferBuilder assembles the unsigned on-chain transfer.
type TransferBuilder interface {
	BuildTransfer(ctx context.Context, req types.SettlementRequest, fromAddress, receiveAddress string) (*types.OnChainTransfer, error)
}

// Tracker starts live status tracking for a submitted order. Best-effort.
type Tracker interface {
	Start(orderID, txHash string) error
}

// Controller drives one settlement attempt end to end. One controller
// instance serves one user confirmation; a retry needs a new instance
// (and with it a fresh order and receive address).
type Controller struct {
	gate    ComplianceGate
	authn   auth.Authenticator
	wallets wallet.Provider
	orders  OrderService
	builder TransferBuilder
	tracker Tracker

	quoteMaxAge time.Duration
	manual      bool

	id        string
	log       *logrus.Entry
	confirmed atomic.Bool

	mu    sync.Mutex
	state State
}

// Option configures a Controller.
type Option func(*Controller)

// WithManualTransfer makes the saga stop at awaiting_transfer and leave
// the on-chain send to the user.
func WithManualTransfer() Option {
	return func(c *Controller) { c.manual = true }
}

// WithTracker attaches a live-status tracker.
func WithTracker(t Tracker) Option {
	return func(c *Controller) { c.tracker = t }
}

// WithQuoteMaxAge sets the staleness window past which the quoted fiat
// amount is downgraded to an estimate.
func WithQuoteMaxAge(d time.Duration) Option {
	return func(c *Controller) { c.quoteMaxAge = d }
}

// NewController creates a saga controller for a single settlement attempt.
func NewController(gate ComplianceGate, authn auth.Authenticator, wallets wallet.Provider, orderSvc OrderService, builder TransferBuilder, opts ...Option) *Controller {
	c := &Controller{
		gate:        gate,
		authn:       authn,
		wallets:     wallets,
		orders:      orderSvc,
		builder:     builder,
		quoteMaxAge: 2 * time.Minute,
		id:          uuid.NewString(),
		state:       StateConfirm,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logrus.WithFields(logrus.Fields{
		"component": "saga",
		"saga_id":   c.id,
	})
	return c
}

// State returns the saga's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.log.WithField("state", s).Debug("saga state changed")
}

func (c *Controller) failed(err error) Outcome {
	c.setState(StateFailed)
	c.log.WithError(err).Warn("saga failed before broadcast")
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// Run executes the settlement saga for one user confirmation. Everything
// up to the broadcast is uncommitted: a failure there means no funds have
// moved and the caller may retry with a new controller. Once the wallet
// provider has broadcast the transfer, funds are in flight and no later
// step may turn the outcome into a failure.
func (c *Controller) Run(ctx context.Context, req types.SettlementRequest, quote *types.Quote) Outcome {
	if !c.confirmed.CompareAndSwap(false, true) {
		return Outcome{Kind: OutcomeFailed, Err: ErrAlreadyConfirmed}
	}

	if quote == nil {
		return c.failed(fmt.Errorf("no quote for settlement request"))
	}

	// Compliance first, before the auth prompt or any state-changing
	// call, so a blocked user sees the verification route and not a
	// half-started flow.
	status, err := c.gate.Status(ctx)
	if err != nil {
		return c.failed(fmt.Errorf("compliance check failed: %w", err))
	}
	if status != types.ComplianceApproved {
		c.setState(StateFailed)
		c.log.WithField("compliance_status", status).Info("saga blocked by compliance")
		return Outcome{Kind: OutcomeBlocked, ComplianceStatus: status}
	}

	if err := auth.Require(ctx, c.authn, "Confirm withdrawal to bank account"); err != nil {
		return c.failed(err)
	}

	c.setState(StateProcessing)

	signer, err := c.wallets.Resolve(req.SourceChain)
	if err != nil {
		return c.failed(fmt.Errorf("%w for chain %s", wallet.ErrNoWalletAvailable, req.SourceChain))
	}
	fromAddress := signer.Address()

	// The sender address doubles as the refund destination. A failure
	// here is pre-flight: no funds have moved and retrying is safe.
	order, err := c.orders.CreateOrder(ctx, orders.CreateOrderRequest{
		Amount:         req.Amount,
		Token:          req.Token,
		Chain:          req.SourceChain,
		BankAccount:    req.BankAccount,
		ReturnAddress:  fromAddress,
		IdempotencyKey: c.id,
	})
	if err != nil {
		return c.failed(fmt.Errorf("order creation failed: %w", err))
	}
	c.log.WithFields(logrus.Fields{
		"order_id":        order.OrderID,
		"receive_address": order.ReceiveAddress,
	}).Info("settlement order created")

	fiat := quote.EstimatedFiat
	estimate := quote.Stale(c.quoteMaxAge)

	if c.manual {
		c.setState(StateAwaitingTransfer)
		return Outcome{
			Kind:           OutcomeAwaitingTransfer,
			Order:          order,
			FiatAmount:     fiat,
			FiatIsEstimate: estimate,
		}
	}

	transfer, err := c.builder.BuildTransfer(ctx, req, fromAddress, order.ReceiveAddress)
	if err != nil {
		c.setState(StateFailed)
		c.log.WithError(err).Warn("transaction build failed")
		return Outcome{Kind: OutcomeFailed, Order: order, Err: err}
	}

	txHash, err := signer.SignAndSend(ctx, transfer)
	if err != nil {
		c.setState(StateFailed)
		c.log.WithError(err).Warn("broadcast failed")
		return Outcome{Kind: OutcomeFailed, Order: order, Err: fmt.Errorf("broadcast failed: %w", err)}
	}
	transfer.TxHash = txHash

	// Committed boundary. Everything below is best-effort bookkeeping and
	// must never demote the outcome.
	c.log.WithField("tx_hash", txHash).Info("transfer broadcast, funds in flight")
	c.sideCalls(ctx, req, order, txHash)

	c.setState(StateSuccess)
	return Outcome{
		Kind:           OutcomeSuccess,
		Order:          order,
		TxHash:         txHash,
		FiatAmount:     fiat,
		FiatIsEstimate: estimate,
		FundsInFlight:  true,
	}
}

// sideCalls runs the non-load-bearing post-broadcast work: ledger log,
// attaching the hash to the order, starting live tracking. Failures are
// logged and swallowed.
func (c *Controller) sideCalls(ctx context.Context, req types.SettlementRequest, order *types.SettlementOrder, txHash string) {
	if err := c.orders.LogTransfer(ctx, orders.LedgerEntry{
		OrderID: order.OrderID,
		TxHash:  txHash,
		Token:   req.Token,
		Chain:   req.SourceChain,
		Amount:  req.Amount,
	}); err != nil {
		c.log.WithError(err).Warn("ledger log failed, continuing")
	}

	if err := c.orders.AttachTxHash(ctx, order.OrderID, txHash); err != nil {
		c.log.WithError(err).Warn("failed to attach tx hash to order, continuing")
	}

	if c.tracker != nil {
		if err := c.tracker.Start(order.OrderID, txHash); err != nil {
			c.log.WithError(err).Warn("failed to start status tracking, continuing")
		}
	}
}
