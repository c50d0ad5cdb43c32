// Package pricing validates purchases and computes the buyer-side price breakdown.
package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
)

const (
	MsgListingNotFound    = "Listing not found"
	MsgCannotBuyOwnItem   = "Cannot buy your own item"
	MsgListingUnavailable = "Listing is no longer available"
)

var hundred = decimal.NewFromInt(100)

// FeePolicy is the buyer protection fee: Percent of the subtotal plus a Fixed amount.
type FeePolicy struct {
	Percent decimal.Decimal
	Fixed   decimal.Decimal
}

// DefaultFeePolicy charges 5% + 1.00.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		Percent: decimal.NewFromInt(5),
		Fixed:   decimal.NewFromInt(1),
	}
}

// Breakdown is what the buyer pays and what the seller receives.
type Breakdown struct {
	ItemPrice     decimal.Decimal
	ShippingCost  decimal.Decimal
	Subtotal      decimal.Decimal
	BuyerFee      decimal.Decimal
	FeePercentage decimal.Decimal
	Total         decimal.Decimal
	TotalCents    int64
	SellerPayout  decimal.Decimal
}

// Validate checks a purchase in order: listing exists, buyer is not the seller, listing is active.
func Validate(listing *models.Listing, buyerID uuid.UUID) error {
	if listing == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, MsgListingNotFound)
	}
	if buyerID == listing.SellerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, MsgCannotBuyOwnItem)
	}
	if listing.Status != enums.ListingStatusActive {
		return pkgerrors.New(pkgerrors.CodeConflict, MsgListingUnavailable)
	}
	return nil
}

// Compute prices a purchase. Money stays in decimal until the gateway boundary, where the
// total is rounded half away from zero to integer cents.
func Compute(itemPrice, shippingCost decimal.Decimal, policy FeePolicy) (Breakdown, error) {
	if itemPrice.IsNegative() {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "item price must not be negative")
	}
	if shippingCost.IsNegative() {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping cost must not be negative")
	}
	if policy.Percent.IsNegative() || policy.Fixed.IsNegative() {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "fee policy must not be negative")
	}

	subtotal := itemPrice.Add(shippingCost)
	fee := subtotal.Mul(policy.Percent).Div(hundred).Add(policy.Fixed).Round(2)
	total := subtotal.Add(fee)

	return Breakdown{
		ItemPrice:     itemPrice,
		ShippingCost:  shippingCost,
		Subtotal:      subtotal,
		BuyerFee:      fee,
		FeePercentage: policy.Percent,
		Total:         total,
		TotalCents:    ToCents(total),
		SellerPayout:  subtotal,
	}, nil
}

// ForListing prices a listing after it passes Validate.
func ForListing(listing *models.Listing, buyerID uuid.UUID, policy FeePolicy) (Breakdown, error) {
	if err := Validate(listing, buyerID); err != nil {
		return Breakdown{}, err
	}
	return Compute(listing.Price, listing.ShippingCost, policy)
}

// ToCents converts a major-unit amount to integer minor units.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
