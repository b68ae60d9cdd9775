package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

// DiscountRejection is a stable, machine readable reason for refusing a discount code.
type DiscountRejection string

const (
	DiscountRejectionNone           DiscountRejection = ""
	DiscountRejectionUnknown        DiscountRejection = "unknown_code"
	DiscountRejectionInactive       DiscountRejection = "inactive"
	DiscountRejectionOutsideWindow  DiscountRejection = "outside_validity_window"
	DiscountRejectionBelowMinimum   DiscountRejection = "below_minimum_amount"
	DiscountRejectionUsageExhausted DiscountRejection = "usage_limit_reached"
)

var discountRejectionMessages = map[DiscountRejection]string{
	DiscountRejectionUnknown:        "discount code does not exist",
	DiscountRejectionInactive:       "discount code is not active",
	DiscountRejectionOutsideWindow:  "discount code is not valid at this time",
	DiscountRejectionBelowMinimum:   "order amount is below the minimum required for this code",
	DiscountRejectionUsageExhausted: "discount code has reached its usage limit",
}

// Message returns a customer displayable explanation.
func (r DiscountRejection) Message() string {
	if msg, ok := discountRejectionMessages[r]; ok {
		return msg
	}
	return "discount code rejected"
}

var hundred = decimal.NewFromInt(100)

// NormalizeDiscountCode folds full-width characters and upper-cases the code so lookups are
// case-insensitive.
func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(width.Fold.String(strings.TrimSpace(code)))
}

// Evaluate checks the code against an order amount at the given instant and returns the
// discount it grants. The code's existence is the caller's concern.
func (d DiscountCode) Evaluate(orderAmount decimal.Decimal, now time.Time) (decimal.Decimal, DiscountRejection) {
	if rejection := d.Redeemable(now); rejection != DiscountRejectionNone {
		return decimal.Zero, rejection
	}
	if d.MinOrderAmount != nil && orderAmount.LessThan(*d.MinOrderAmount) {
		return decimal.Zero, DiscountRejectionBelowMinimum
	}
	if d.Exhausted() {
		return decimal.Zero, DiscountRejectionUsageExhausted
	}
	return d.Amount(orderAmount), DiscountRejectionNone
}

// Redeemable checks the active flag and the validity window only.
func (d DiscountCode) Redeemable(now time.Time) DiscountRejection {
	if !d.Active {
		return DiscountRejectionInactive
	}
	if now.Before(d.StartsAt) || now.After(d.EndsAt) {
		return DiscountRejectionOutsideWindow
	}
	return DiscountRejectionNone
}

// Exhausted reports whether the usage limit, when set, has been reached.
func (d DiscountCode) Exhausted() bool {
	return d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit
}

// Amount computes the discount for the order amount. Percentage discounts are capped by
// MaxDiscountAmount; a discount never exceeds the order amount.
func (d DiscountCode) Amount(orderAmount decimal.Decimal) decimal.Decimal {
	if !orderAmount.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch d.Kind {
	case DiscountKindPercentage:
		amount = orderAmount.Mul(d.Value).Div(hundred).Round(2)
		if d.MaxDiscountAmount != nil && amount.GreaterThan(*d.MaxDiscountAmount) {
			amount = *d.MaxDiscountAmount
		}
	case DiscountKindFixed:
		amount = d.Value
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, orderAmount)
}
