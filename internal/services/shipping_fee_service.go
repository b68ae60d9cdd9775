package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/crumbhouse/bakery-api/internal/repositories"
)

// ShippingFeeServiceDeps bundles constructor inputs for the shipping fee service.
type ShippingFeeServiceDeps struct {
	ShippingFees repositories.ShippingFeeRepository
}

type shippingFeeService struct {
	repo repositories.ShippingFeeRepository
	errs repositoryErrorMapping
}

// NewShippingFeeService constructs a ShippingFeeService.
func NewShippingFeeService(deps ShippingFeeServiceDeps) (ShippingFeeService, error) {
	if deps.ShippingFees == nil {
		return nil, errors.New("shipping fee service: repository is required")
	}
	return &shippingFeeService{
		repo: deps.ShippingFees,
		errs: repositoryErrorMapping{notFound: ErrUnknownEntity},
	}, nil
}

func (s *shippingFeeService) ListActive(ctx context.Context) ([]ShippingFee, error) {
	fees, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, s.errs.mapError(err)
	}
	sort.SliceStable(fees, func(i, j int) bool { return fees[i].Name < fees[j].Name })
	return fees, nil
}

// Lookup returns the fee for an active governorate. Inactive zones are reported as unknown.
func (s *shippingFeeService) Lookup(ctx context.Context, governorate string) (ShippingFee, error) {
	governorate = normalizeGovernorate(governorate)
	if governorate == "" {
		return ShippingFee{}, fmt.Errorf("%w: governorate is required", ErrUnknownEntity)
	}
	fee, err := s.repo.FindByGovernorate(ctx, governorate)
	if err != nil {
		return ShippingFee{}, s.errs.mapError(err)
	}
	if !fee.Active {
		return ShippingFee{}, fmt.Errorf("%w: shipping to %s is not offered", ErrUnknownEntity, governorate)
	}
	return fee, nil
}

func normalizeGovernorate(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
