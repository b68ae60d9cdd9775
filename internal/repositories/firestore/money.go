package firestore

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are stored as decimal strings so values such as 0.1 survive the round trip exactly.

func formatMoney(value decimal.Decimal) string {
	return value.String()
}

func formatMoneyPtr(value *decimal.Decimal) *string {
	if value == nil {
		return nil
	}
	s := value.String()
	return &s
}

func parseMoney(field, value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode %s %q: %w", field, value, err)
	}
	return parsed, nil
}

func parseMoneyPtr(field string, value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := parseMoney(field, *value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
