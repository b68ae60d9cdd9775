package memory

import (
	"context"
	"slices"
	"sort"
	"strings"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

type customOrderRepository struct{ r *Registry }

func (repo customOrderRepository) Insert(ctx context.Context, order domain.CustomOrder) error {
	r := repo.r
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.customOrders[order.ID]; exists {
		return conflict("custom_orders.insert")
	}
	r.customOrders[order.ID] = cloneCustomOrder(order)
	record(ctx, func() { delete(r.customOrders, order.ID) })
	return nil
}

func (repo customOrderRepository) Update(ctx context.Context, order domain.CustomOrder, expectedVersion int64) (domain.CustomOrder, error) {
	r := repo.r
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.customOrders[order.ID]
	if !ok {
		return domain.CustomOrder{}, notFound("custom_orders.update")
	}
	if current.Version != expectedVersion {
		return domain.CustomOrder{}, conflict("custom_orders.update")
	}
	order.Version = expectedVersion + 1
	r.customOrders[order.ID] = cloneCustomOrder(order)
	record(ctx, func() { r.customOrders[current.ID] = current })
	return cloneCustomOrder(order), nil
}

func (repo customOrderRepository) FindByID(_ context.Context, orderID string) (domain.CustomOrder, error) {
	r := repo.r
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.customOrders[strings.TrimSpace(orderID)]
	if !ok {
		return domain.CustomOrder{}, notFound("custom_orders.get")
	}
	return cloneCustomOrder(order), nil
}

func (repo customOrderRepository) List(_ context.Context, filter repositories.CustomOrderListFilter) (domain.Page[domain.CustomOrder], error) {
	r := repo.r
	r.mu.Lock()
	matched := make([]domain.CustomOrder, 0, len(r.customOrders))
	for _, order := range r.customOrders {
		if len(filter.Status) > 0 && !slices.Contains(filter.Status, order.Status) {
			continue
		}
		matched = append(matched, cloneCustomOrder(order))
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, filter.PageNumber, filter.PageSize), nil
}

func (repo customOrderRepository) Delete(ctx context.Context, orderID string) error {
	r := repo.r
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.customOrders[orderID]
	if !ok {
		return notFound("custom_orders.delete")
	}
	delete(r.customOrders, orderID)
	record(ctx, func() { r.customOrders[orderID] = current })
	return nil
}
