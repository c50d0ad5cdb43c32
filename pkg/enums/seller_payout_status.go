package enums

import "fmt"

// SellerPayoutStatus mirrors the admin payout decision onto a transaction.
type SellerPayoutStatus string

const (
	SellerPayoutStatusPending   SellerPayoutStatus = "pending"
	SellerPayoutStatusCompleted SellerPayoutStatus = "completed"
	SellerPayoutStatusFailed    SellerPayoutStatus = "failed"
)

var validSellerPayoutStatuses = []SellerPayoutStatus{
	SellerPayoutStatusPending,
	SellerPayoutStatusCompleted,
	SellerPayoutStatusFailed,
}

// String implements fmt.Stringer.
func (s SellerPayoutStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical seller_payout_status enum.
func (s SellerPayoutStatus) IsValid() bool {
	for _, candidate := range validSellerPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSellerPayoutStatus converts raw input into SellerPayoutStatus.
func ParseSellerPayoutStatus(value string) (SellerPayoutStatus, error) {
	for _, candidate := range validSellerPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid seller payout status %q", value)
}
