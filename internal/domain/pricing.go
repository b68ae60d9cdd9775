package domain

import "github.com/shopspring/decimal"

// ResolvePrice computes a custom cake price: the occasion's override for the size when one
// exists, otherwise the size's default price, plus the flavor's additional price.
// It performs no I/O and always returns the same result for the same inputs.
func ResolvePrice(occasion Occasion, size Size, flavor Flavor) decimal.Decimal {
	base := size.DefaultPrice
	if override, ok := occasion.PriceFor(size.ID); ok {
		base = override
	}
	return base.Add(flavor.AdditionalPrice)
}

// PriceFor returns the occasion-specific price for the size, if configured.
func (o Occasion) PriceFor(sizeID string) (decimal.Decimal, bool) {
	for _, entry := range o.SizePrices {
		if entry.SizeID == sizeID {
			return entry.Price, true
		}
	}
	return decimal.Decimal{}, false
}
