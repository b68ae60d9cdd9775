package memory

import (
	"context"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
)

type shippingFeeRepository struct{ r *Registry }

func (repo shippingFeeRepository) FindByGovernorate(_ context.Context, governorate string) (domain.ShippingFee, error) {
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	fee, ok := repo.r.fees[normalizeKey(governorate)]
	if !ok {
		return domain.ShippingFee{}, notFound("shipping_fees.get")
	}
	return fee, nil
}

func (repo shippingFeeRepository) List(_ context.Context, activeOnly bool) ([]domain.ShippingFee, error) {
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	out := make([]domain.ShippingFee, 0, len(repo.r.fees))
	for _, fee := range repo.r.fees {
		if activeOnly && !fee.Active {
			continue
		}
		out = append(out, fee)
	}
	return out, nil
}
