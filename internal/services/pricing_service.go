package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

// PricingServiceDeps bundles constructor inputs for the pricing service.
type PricingServiceDeps struct {
	Catalog repositories.CatalogRepository
}

type pricingService struct {
	catalog repositories.CatalogRepository
	errs    repositoryErrorMapping
}

// NewPricingService constructs a PricingService. Prices are never cached: every call reads the
// catalogue so administrative price changes apply immediately.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing service: catalog repository is required")
	}
	return &pricingService{
		catalog: deps.Catalog,
		errs:    repositoryErrorMapping{notFound: ErrUnknownEntity},
	}, nil
}

// Resolve prices a combination the wizard can still order. Retired occasions, sizes and
// flavors are reported as unknown so no price is shown for a cake that cannot be submitted.
func (s *pricingService) Resolve(ctx context.Context, occasionID, sizeID, flavorID string) (decimal.Decimal, error) {
	occasion, size, flavor, err := s.load(ctx, occasionID, sizeID, flavorID)
	if err != nil {
		return decimal.Zero, err
	}
	if !occasion.Active || !size.Active || !flavor.Active {
		return decimal.Zero, fmt.Errorf("%w: selected cake options are no longer offered", ErrUnknownEntity)
	}
	return domain.ResolvePrice(occasion, size, flavor), nil
}

// load fetches the three catalogue records referenced by a price request.
func (s *pricingService) load(ctx context.Context, occasionID, sizeID, flavorID string) (Occasion, Size, Flavor, error) {
	occasionID = strings.TrimSpace(occasionID)
	sizeID = strings.TrimSpace(sizeID)
	flavorID = strings.TrimSpace(flavorID)
	if occasionID == "" || sizeID == "" || flavorID == "" {
		return Occasion{}, Size{}, Flavor{}, fmt.Errorf("%w: occasion, size and flavor are required", ErrUnknownEntity)
	}

	occasion, err := s.catalog.GetOccasion(ctx, occasionID)
	if err != nil {
		return Occasion{}, Size{}, Flavor{}, fmt.Errorf("occasion %s: %w", occasionID, s.errs.mapError(err))
	}
	size, err := s.catalog.GetSize(ctx, sizeID)
	if err != nil {
		return Occasion{}, Size{}, Flavor{}, fmt.Errorf("size %s: %w", sizeID, s.errs.mapError(err))
	}
	flavor, err := s.catalog.GetFlavor(ctx, flavorID)
	if err != nil {
		return Occasion{}, Size{}, Flavor{}, fmt.Errorf("flavor %s: %w", flavorID, s.errs.mapError(err))
	}
	return occasion, size, flavor, nil
}
