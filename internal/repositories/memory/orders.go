package memory

import (
	"context"
	"slices"
	"sort"
	"strings"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

type orderRepository struct{ r *Registry }

func (repo orderRepository) Insert(ctx context.Context, order domain.Order) error {
	r := repo.r
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return conflict("orders.insert")
	}
	r.orders[order.ID] = cloneOrder(order)
	record(ctx, func() { delete(r.orders, order.ID) })
	return nil
}

func (repo orderRepository) Update(ctx context.Context, order domain.Order, expectedVersion int64) (domain.Order, error) {
	r := repo.r
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.orders[order.ID]
	if !ok {
		return domain.Order{}, notFound("orders.update")
	}
	if current.Version != expectedVersion {
		return domain.Order{}, conflict("orders.update")
	}
	order.Version = expectedVersion + 1
	r.orders[order.ID] = cloneOrder(order)
	record(ctx, func() { r.orders[current.ID] = current })
	return cloneOrder(order), nil
}

func (repo orderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r := repo.r
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[strings.TrimSpace(orderID)]
	if !ok {
		return domain.Order{}, notFound("orders.get")
	}
	return cloneOrder(order), nil
}

func (repo orderRepository) List(_ context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	r := repo.r
	r.mu.Lock()
	matched := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		if len(filter.Status) > 0 && !slices.Contains(filter.Status, order.Status) {
			continue
		}
		matched = append(matched, cloneOrder(order))
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

func (repo orderRepository) Delete(ctx context.Context, orderID string) error {
	r := repo.r
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.orders[orderID]
	if !ok {
		return notFound("orders.delete")
	}
	delete(r.orders, orderID)
	record(ctx, func() { r.orders[orderID] = current })
	return nil
}

func paginate[T any](items []T, pageNumber, pageSize int) domain.Page[T] {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	total := len(items)
	start := total
	// compare in page units; (pageNumber-1)*pageSize can overflow
	if pageNumber <= pageCount(total, pageSize) {
		start = (pageNumber - 1) * pageSize
	}
	end := total
	if total-start > pageSize {
		end = start + pageSize
	}
	return domain.NewPage(items[start:end], total, pageNumber, pageSize)
}

func pageCount(total, pageSize int) int {
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	return pages
}
