package enums

import "fmt"

// PayoutAction is the admin decision applied to a payout batch.
type PayoutAction string

const (
	PayoutActionApprove PayoutAction = "approve"
	PayoutActionReject  PayoutAction = "reject"
)

var validPayoutActions = []PayoutAction{
	PayoutActionApprove,
	PayoutActionReject,
}

// String implements fmt.Stringer.
func (p PayoutAction) String() string {
	return string(p)
}

// IsValid reports whether the value matches the canonical payout action enum.
func (p PayoutAction) IsValid() bool {
	for _, candidate := range validPayoutActions {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutAction converts raw input into PayoutAction.
func ParsePayoutAction(value string) (PayoutAction, error) {
	for _, candidate := range validPayoutActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout action %q", value)
}

// TargetStatus is the payout status written for the action.
func (p PayoutAction) TargetStatus() PayoutStatus {
	if p == PayoutActionApprove {
		return PayoutStatusCompleted
	}
	return PayoutStatusFailed
}

// SellerPayoutStatus is the status mirrored onto the owning transaction.
func (p PayoutAction) SellerPayoutStatus() SellerPayoutStatus {
	if p == PayoutActionApprove {
		return SellerPayoutStatusCompleted
	}
	return SellerPayoutStatusFailed
}

// AuditAction is the audit log action recorded per payout.
func (p PayoutAction) AuditAction() AuditAction {
	if p == PayoutActionApprove {
		return AuditActionPayoutApprove
	}
	return AuditActionPayoutReject
}
