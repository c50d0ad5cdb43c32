package enums

// PaymentMethod is how a buyer settles a transaction. Card payments go through
// Stripe; revolut_manual orders wait for an off-platform transfer.
type PaymentMethod string

const (
	PaymentMethodStripe        PaymentMethod = "stripe"
	PaymentMethodRevolutManual PaymentMethod = "revolut_manual"
)

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentMethodStripe, PaymentMethodRevolutManual:
		return true
	}
	return false
}

// Manual reports whether settlement happens outside the payment gateway.
func (p PaymentMethod) Manual() bool { return p == PaymentMethodRevolutManual }
