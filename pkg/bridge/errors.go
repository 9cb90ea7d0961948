package bridge

import (
	"context"
	"errors"
	"strings"
)

// Cause classifies a bridge failure for message selection. Raw provider
// error text is never shown to the user.
type Cause string

const (
	CauseInsufficientGas   Cause = "insufficient_gas"
	CauseNetwork           Cause = "network"
	CauseCancelled         Cause = "cancelled"
	CauseRelay             Cause = "relay"
	CauseWalletUnavailable Cause = "wallet_unavailable"
)

// FlowError wraps a bridge failure with its classified cause.
type FlowError struct {
	Cause Cause
	err   error
}

func (e *FlowError) Error() string {
	return string(e.Cause) + ": " + e.err.Error()
}

func (e *FlowError) Unwrap() error {
	return e.err
}

// UserMessage returns the sanitized text for this failure class.
func (e *FlowError) UserMessage() string {
	switch e.Cause {
	case CauseInsufficientGas:
		return "Not enough SOL to cover network fees. Top up your wallet and try again."
	case CauseCancelled:
		return "Transfer cancelled."
	case CauseRelay:
		return "The bridge service could not process this transfer. Please try again shortly."
	case CauseWalletUnavailable:
		return "No wallet is available for this transfer."
	default:
		return "A network problem interrupted the transfer. Check your connection and try again."
	}
}

func newFlowError(cause Cause, err error) *FlowError {
	return &FlowError{Cause: cause, err: err}
}

// classify buckets sign/broadcast errors by cause. No funds have reached
// the counterparty at any bridge stage, so every cause is safe to retry.
func classify(err error) *FlowError {
	switch {
	case errors.Is(err, context.Canceled):
		return newFlowError(CauseCancelled, err)
	case isInsufficientFunds(err):
		return newFlowError(CauseInsufficientGas, err)
	default:
		return newFlowError(CauseNetwork, err)
	}
}

func isInsufficientFunds(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient funds") ||
		strings.Contains(msg, "insufficient lamports") ||
		strings.Contains(msg, "insufficient balance")
}
