// Package transactions owns the purchase lifecycle: pending -> completed | failed, plus the
// independent seller payout sub-state. Both machines are terminal after one step.
package transactions

import (
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
)

var statusTransitions = map[enums.TransactionStatus][]enums.TransactionStatus{
	enums.TransactionStatusPending: {enums.TransactionStatusCompleted, enums.TransactionStatusFailed},
}

var payoutTransitions = map[enums.SellerPayoutStatus][]enums.SellerPayoutStatus{
	enums.SellerPayoutStatusPending: {enums.SellerPayoutStatusCompleted, enums.SellerPayoutStatusFailed},
}

// CanTransition reports whether a transaction may move from -> to.
func CanTransition(from, to enums.TransactionStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPayout reports whether seller_payout_status may move from -> to.
func CanTransitionPayout(from, to enums.SellerPayoutStatus) bool {
	for _, next := range payoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns a STATE_CONFLICT error for disallowed moves.
func EnsureTransition(from, to enums.TransactionStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "transaction cannot move from %s to %s", from, to).
		WithDetails(map[string]string{"from": string(from), "to": string(to)})
}

// EnsurePayoutTransition is EnsureTransition for the payout sub-state.
func EnsurePayoutTransition(from, to enums.SellerPayoutStatus) error {
	if CanTransitionPayout(from, to) {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "seller payout cannot move from %s to %s", from, to).
		WithDetails(map[string]string{"from": string(from), "to": string(to)})
}
