package enums

import "fmt"

// AuditAction names an admin action written to the audit log.
type AuditAction string

const (
	AuditActionPayoutApprove AuditAction = "PAYOUT_APPROVE"
	AuditActionPayoutReject  AuditAction = "PAYOUT_REJECT"
)

var validAuditActions = []AuditAction{
	AuditActionPayoutApprove,
	AuditActionPayoutReject,
}

// IsValid reports whether the value matches the canonical audit_action enum.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
