package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// MoneyScale is the number of fractional digits an amount may carry.
	MoneyScale = 2
	// maxMoneyExponent keeps the decimal exponent small enough that formatting stays cheap.
	maxMoneyExponent = 6
	minMoneyExponent = -20
)

// ErrInvalidAmount reports a monetary amount outside the accepted range or precision.
var ErrInvalidAmount = errors.New("domain: invalid amount")

// MaxAmount bounds every client supplied monetary amount.
var MaxAmount = decimal.NewFromInt(1_000_000)

// ValidateAmount accepts non-negative amounts of at most MaxAmount with no more than two
// fractional digits. The exponent is checked before any arithmetic so hostile values such as
// 1e300000000 are rejected without being expanded.
func ValidateAmount(amount decimal.Decimal) error {
	exp := amount.Exponent()
	if exp > maxMoneyExponent || exp < minMoneyExponent {
		return fmt.Errorf("%w: amount is out of range", ErrInvalidAmount)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidAmount)
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: amount must not exceed %s", ErrInvalidAmount, MaxAmount)
	}
	if exp < -MoneyScale && !amount.Equal(amount.Truncate(MoneyScale)) {
		return fmt.Errorf("%w: amount must have at most %d decimal places", ErrInvalidAmount, MoneyScale)
	}
	return nil
}
