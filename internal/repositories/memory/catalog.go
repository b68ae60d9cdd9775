package memory

import (
	"context"
	"strings"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
)

type catalogRepository struct{ r *Registry }

func (repo catalogRepository) GetOccasion(_ context.Context, occasionID string) (domain.Occasion, error) {
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	occasion, ok := repo.r.occasions[strings.TrimSpace(occasionID)]
	if !ok {
		return domain.Occasion{}, notFound("occasions.get")
	}
	return cloneOccasion(occasion), nil
}

func (repo catalogRepository) GetSize(_ context.Context, sizeID string) (domain.Size, error) {
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	size, ok := repo.r.sizes[strings.TrimSpace(sizeID)]
	if !ok {
		return domain.Size{}, notFound("sizes.get")
	}
	return size, nil
}

func (repo catalogRepository) GetFlavor(_ context.Context, flavorID string) (domain.Flavor, error) {
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	flavor, ok := repo.r.flavors[strings.TrimSpace(flavorID)]
	if !ok {
		return domain.Flavor{}, notFound("flavors.get")
	}
	return flavor, nil
}

func (repo catalogRepository) ListOccasions(_ context.Context, activeOnly bool) ([]domain.Occasion, error) {
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	out := make([]domain.Occasion, 0, len(repo.r.occasions))
	for _, o := range repo.r.occasions {
		if activeOnly && !o.Active {
			continue
		}
		out = append(out, cloneOccasion(o))
	}
	return out, nil
}

func (repo catalogRepository) ListSizes(_ context.Context, activeOnly bool) ([]domain.Size, error) {
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	out := make([]domain.Size, 0, len(repo.r.sizes))
	for _, s := range repo.r.sizes {
		if activeOnly && !s.Active {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (repo catalogRepository) ListFlavors(_ context.Context, activeOnly bool) ([]domain.Flavor, error) {
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	out := make([]domain.Flavor, 0, len(repo.r.flavors))
	for _, f := range repo.r.flavors {
		if activeOnly && !f.Active {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
