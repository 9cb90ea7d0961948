package types

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// BankAccount identifies the fiat payout destination.
type BankAccount struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
}

// SettlementRequest is the user's offramp intent. It is immutable once
// handed to the saga controller.
type SettlementRequest struct {
	Token        string          `json:"token"`         // stablecoin symbol (e.g. "USDC")
	SourceChain  string          `json:"source_chain"`  // chain the funds sit on
	Amount       decimal.Decimal `json:"amount"`        // decimal amount, scaled at encoding time only
	FiatCurrency string          `json:"fiat_currency"` // destination currency (e.g. "NGN")
	BankAccount  BankAccount     `json:"bank_account"`
}

// FeeComponent is one itemized fee on a quote.
type FeeComponent struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Quote is an advisory fiat exchange quote. The settled amount is decided
// by the counterparty at settlement time, never by this quote.
type Quote struct {
	Token         string          `json:"token"`
	Amount        decimal.Decimal `json:"amount"`
	Rate          decimal.Decimal `json:"rate"`
	EstimatedFiat decimal.Decimal `json:"estimated_fiat"`
	Fees          []FeeComponent  `json:"fees,omitempty"`
	FetchedAt     time.Time       `json:"fetched_at"`
}

// Stale reports whether the quote is older than maxAge. A stale quote may
// still be displayed, but only as an estimate.
func (q *Quote) Stale(maxAge time.Duration) bool {
	return time.Since(q.FetchedAt) > maxAge
}

// ComplianceStatus is the identity-verification state. Only the remote
// provider moves it; the client caches and never self-promotes.
type ComplianceStatus string

const (
	ComplianceNotStarted    ComplianceStatus = "not_started"
	CompliancePending       ComplianceStatus = "pending"
	ComplianceApproved      ComplianceStatus = "approved"
	ComplianceRejected      ComplianceStatus = "rejected"
	ComplianceRetryRequired ComplianceStatus = "retry_required"
)

// NeedsNewSession reports whether the user has to start a fresh
// verification session. Rejected and retry_required differ only in the
// message shown, not in enforcement.
func (s ComplianceStatus) NeedsNewSession() bool {
	return s == ComplianceRejected || s == ComplianceRetryRequired
}

// OrderStatus is the counterparty-owned lifecycle of a settlement order.
// Progression is one-way: PENDING -> PROCESSING -> COMPLETED, or
// PENDING/PROCESSING -> FAILED/CANCELLED. Terminal states never reopen.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderFailed     OrderStatus = "FAILED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// Terminal reports whether the status is final.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed || s == OrderCancelled
}

// rank orders statuses along the one-way progression. Terminal states share
// the highest rank so no terminal state can replace another.
func (s OrderStatus) rank() int {
	switch s {
	case OrderPending:
		return 0
	case OrderProcessing:
		return 1
	case OrderCompleted, OrderFailed, OrderCancelled:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next respects the
// one-way progression.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank() || (s == next)
}

// SettlementOrder is created by the counterparty per saga attempt. The
// receive address is chosen per order and must never be reused.
type SettlementOrder struct {
	OrderID        string      `json:"order_id"`
	CounterpartyID string      `json:"counterparty_id"`
	ReceiveAddress string      `json:"receive_address"`
	Status         OrderStatus `json:"status"`
	TxHash         string      `json:"tx_hash,omitempty"`
	FailureReason  string      `json:"failure_reason,omitempty"`
}

// OnChainTransfer is an unsigned ERC-20 transfer produced by the
// transaction builder. AmountBaseUnits is computed with integer
// arithmetic only.
type OnChainTransfer struct {
	FromAddress          string
	ToAddress            string // counterparty receive address
	TokenContract        string
	AmountBaseUnits      *big.Int
	Data                 []byte // ABI-encoded transfer(address,uint256) call
	Nonce                uint64
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	ChainID              int64

	// TxHash is set once the wallet provider has broadcast the transfer.
	TxHash string
}

// BridgeQuote prices a cross-chain relay of funds to the settlement chain.
type BridgeQuote struct {
	Token              string          `json:"token"`
	Amount             decimal.Decimal `json:"amount"`
	EstimatedReceive   decimal.Decimal `json:"estimated_receive"`
	RelayFee           decimal.Decimal `json:"relay_fee"`
	GasFee             decimal.Decimal `json:"gas_fee"`
	EstimatedSeconds   int             `json:"estimated_seconds"`
	DestinationAddress string          `json:"destination_address"`
	FetchedAt          time.Time       `json:"fetched_at"`
}

// BridgeTransaction is the relay-built unsigned transaction. The embedded
// sequencing metadata (recent blockhash) may be stale by signing time and
// must be refreshed from the source chain first.
type BridgeTransaction struct {
	SerializedTx string `json:"serialized_tx"` // base64
	RelayID      string `json:"relay_id"`
}
