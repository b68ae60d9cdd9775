package services

import (
	"context"
	"errors"
	"sort"

	"github.com/crumbhouse/bakery-api/internal/repositories"
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Catalog repositories.CatalogRepository
}

type catalogService struct {
	repo repositories.CatalogRepository
	errs repositoryErrorMapping
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}
	return &catalogService{repo: deps.Catalog, errs: repositoryErrorMapping{notFound: ErrUnknownEntity}}, nil
}

func (s *catalogService) Configuration(ctx context.Context) (CakeConfiguration, error) {
	occasions, err := s.repo.ListOccasions(ctx, true)
	if err != nil {
		return CakeConfiguration{}, s.errs.mapError(err)
	}
	sizes, err := s.repo.ListSizes(ctx, true)
	if err != nil {
		return CakeConfiguration{}, s.errs.mapError(err)
	}
	flavors, err := s.repo.ListFlavors(ctx, true)
	if err != nil {
		return CakeConfiguration{}, s.errs.mapError(err)
	}

	sort.SliceStable(occasions, func(i, j int) bool { return occasions[i].DisplayOrder < occasions[j].DisplayOrder })
	sort.SliceStable(sizes, func(i, j int) bool { return sizes[i].DisplayOrder < sizes[j].DisplayOrder })
	sort.SliceStable(flavors, func(i, j int) bool { return flavors[i].DisplayOrder < flavors[j].DisplayOrder })

	return CakeConfiguration{Occasions: occasions, Sizes: sizes, Flavors: flavors}, nil
}
