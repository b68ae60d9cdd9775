package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{name: "zero", input: "0", ok: true},
		{name: "two decimals", input: "385.50", ok: true},
		{name: "trailing zeros beyond scale", input: "12.5000", ok: true},
		{name: "exponent form within range", input: "1e6", ok: true},
		{name: "maximum", input: "1000000", ok: true},
		{name: "above maximum", input: "1000000.01"},
		{name: "negative", input: "-1"},
		{name: "three decimals", input: "0.001"},
		{name: "huge exponent", input: "1e300000000"},
		{name: "zero with huge exponent", input: "0e300000000"},
		{name: "tiny exponent", input: "1e-300000000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tc.input)
			require.NoError(t, err)

			err = ValidateAmount(amount)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestCustomOrderStatusMachineRejectsUnboundedFinalPrice(t *testing.T) {
	order := CustomOrder{Status: CustomOrderStatusConfirmed, EstimatedPrice: decimal.NewFromInt(100)}
	huge := decimal.RequireFromString("1e300000000")

	_, err := CustomOrderStatusMachine{}.UpdateStatus(order, CustomOrderUpdate{Status: CustomOrderStatusReady, FinalPrice: &huge}, TransitionMeta{At: transitionAt})
	assert.ErrorIs(t, err, ErrInvalidFinalPrice)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
