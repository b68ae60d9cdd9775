package memory

import (
	"context"
	"strings"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
)

type productRepository struct{ r *Registry }

func (repo productRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	product, ok := repo.r.products[strings.TrimSpace(productID)]
	if !ok {
		return domain.Product{}, notFound("products.get")
	}
	return product, nil
}
