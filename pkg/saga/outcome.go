package saga

import (
	"github.com/shopspring/decimal"

	"offramp/pkg/types"
)

// State is the saga's position. awaiting_transfer only occurs in the
// manual-transfer variant, where the user sends the on-chain funds
// themselves.
type State string

const (
	StateConfirm          State = "confirm"
	StateProcessing       State = "processing"
	StateAwaitingTransfer State = "awaiting_transfer"
	StateSuccess          State = "success"
	StateFailed           State = "failed"
)

// OutcomeKind is the saga's terminal classification. Blocked is not a
// failure: it routes the user to re-verification, never to a transient
// error screen.
type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "success"
	OutcomeFailed           OutcomeKind = "failed"
	OutcomeBlocked          OutcomeKind = "blocked"
	OutcomeAwaitingTransfer OutcomeKind = "awaiting_transfer"
)

// Outcome is what one saga run reports back to the caller.
type Outcome struct {
	Kind OutcomeKind

	// ComplianceStatus is set when Kind is OutcomeBlocked, so the caller
	// can distinguish rejected from retry_required for messaging.
	ComplianceStatus types.ComplianceStatus

	// Order is set once a settlement order exists. A failed saga must not
	// reuse it; a retry needs a fresh order and receive address.
	Order *types.SettlementOrder

	// TxHash is set once the transfer is broadcast.
	TxHash string

	// FiatAmount is the quoted payout. FiatIsEstimate marks a quote that
	// went stale (e.g. across a bridge step) and is advisory only.
	FiatAmount     decimal.Decimal
	FiatIsEstimate bool

	// FundsInFlight is the committed/uncommitted boundary: true from the
	// moment the transfer was broadcast, regardless of what later steps
	// did. A failed outcome with FundsInFlight false means nothing moved
	// and the whole saga is safe to retry.
	FundsInFlight bool

	// Err carries the specific failure for OutcomeFailed. It is reported
	// verbatim, never collapsed into a generic message.
	Err error
}
