package memory

import (
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
)

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	o.StatusHistory = append([]domain.StatusChange(nil), o.StatusHistory...)
	return o
}

func cloneCustomOrder(o domain.CustomOrder) domain.CustomOrder {
	o.FinalPrice = cloneDecimal(o.FinalPrice)
	o.StatusHistory = append([]domain.StatusChange(nil), o.StatusHistory...)
	return o
}

func cloneOccasion(o domain.Occasion) domain.Occasion {
	o.SizePrices = append([]domain.OccasionSizePrice(nil), o.SizePrices...)
	return o
}

func cloneDiscount(d domain.DiscountCode) domain.DiscountCode {
	d.MinOrderAmount = cloneDecimal(d.MinOrderAmount)
	d.MaxDiscountAmount = cloneDecimal(d.MaxDiscountAmount)
	if d.UsageLimit != nil {
		limit := *d.UsageLimit
		d.UsageLimit = &limit
	}
	return d
}

func cloneDecimal(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
