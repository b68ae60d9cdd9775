package memory

import (
	"context"
	"fmt"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

type discountRepository struct{ r *Registry }

func (repo discountRepository) FindByCode(_ context.Context, code string) (domain.DiscountCode, error) {
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	discount, ok := repo.r.discounts[domain.NormalizeDiscountCode(code)]
	if !ok {
		return domain.DiscountCode{}, notFound("discounts.get")
	}
	return cloneDiscount(discount), nil
}

// IncrementUsage performs the limit check and the increment under the registry lock.
func (repo discountRepository) IncrementUsage(ctx context.Context, code string) (domain.DiscountCode, error) {
	r := repo.r
	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.NormalizeDiscountCode(code)
	current, ok := r.discounts[key]
	if !ok {
		return domain.DiscountCode{}, notFound("discounts.increment")
	}
	if current.Exhausted() {
		return domain.DiscountCode{}, repositories.NewCounterError(repositories.CounterErrorExhausted,
			fmt.Sprintf("discount %s reached its usage limit of %d", key, *current.UsageLimit), nil)
	}

	updated := cloneDiscount(current)
	updated.UsageCount++
	updated.UpdatedAt = r.clock().UTC()
	r.discounts[key] = updated
	record(ctx, func() { r.discounts[key] = current })
	return cloneDiscount(updated), nil
}
