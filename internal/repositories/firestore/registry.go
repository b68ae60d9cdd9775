// Package firestore implements the repository contracts on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

// Registry implements repositories.Registry on one shared Firestore provider.
type Registry struct {
	provider *pfirestore.Provider
	uow      *pfirestore.UnitOfWork

	orders       *OrderRepository
	customOrders *CustomOrderRepository
	catalog      *CatalogRepository
	products     *ProductRepository
	discounts    *DiscountRepository
	fees         *ShippingFeeRepository
	counters     *CounterRepository
	health       repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

type registryConfig struct {
	clock  func() time.Time
	checks []repositories.DependencyCheck
}

// RegistryOption customises the registry.
type RegistryOption func(*registryConfig)

// WithClock overrides the clock used for UpdatedAt stamps written by the repositories.
func WithClock(clock func() time.Time) RegistryOption {
	return func(cfg *registryConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithDependencyChecks adds checks reported by Health next to the Firestore ping.
func WithDependencyChecks(checks ...repositories.DependencyCheck) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.checks = append(cfg.checks, checks...)
	}
}

// NewRegistry builds every repository on top of provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	cfg := registryConfig{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	reg := &Registry{provider: provider, uow: pfirestore.NewUnitOfWork(provider)}
	var err error
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, err
	}
	if reg.customOrders, err = NewCustomOrderRepository(provider); err != nil {
		return nil, err
	}
	if reg.catalog, err = NewCatalogRepository(provider); err != nil {
		return nil, err
	}
	if reg.products, err = NewProductRepository(provider); err != nil {
		return nil, err
	}
	if reg.discounts, err = NewDiscountRepository(provider, cfg.clock); err != nil {
		return nil, err
	}
	if reg.fees, err = NewShippingFeeRepository(provider); err != nil {
		return nil, err
	}
	if reg.counters, err = NewCounterRepository(provider, cfg.clock); err != nil {
		return nil, err
	}

	checks := append([]repositories.DependencyCheck{{
		Name:     "firestore",
		Critical: true,
		Check:    provider.Ping,
	}}, cfg.checks...)
	reg.health, err = repositories.NewDependencyHealthRepository(checks, repositories.WithDependencyClock(cfg.clock))
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Orders() repositories.OrderRepository             { return r.orders }
func (r *Registry) CustomOrders() repositories.CustomOrderRepository { return r.customOrders }
func (r *Registry) Catalog() repositories.CatalogRepository          { return r.catalog }
func (r *Registry) Products() repositories.ProductRepository         { return r.products }
func (r *Registry) Discounts() repositories.DiscountRepository       { return r.discounts }
func (r *Registry) ShippingFees() repositories.ShippingFeeRepository { return r.fees }
func (r *Registry) Counters() repositories.CounterRepository         { return r.counters }
func (r *Registry) Health() repositories.HealthRepository            { return r.health }

// RunInTx runs fn in a Firestore transaction. All reads inside fn must precede the first write.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.uow.RunInTx(ctx, fn)
}

// Seed overwrites the reference collections with data. Documents absent from data are kept.
func (r *Registry) Seed(ctx context.Context, data repositories.ReferenceData) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	writer := client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	set := func(collection, id string, value any) error {
		job, err := writer.Set(client.Collection(collection).Doc(id), value)
		if err != nil {
			return fmt.Errorf("seed %s/%s: %w", collection, id, err)
		}
		jobs = append(jobs, job)
		return nil
	}

	for _, o := range data.Occasions {
		if err := set(occasionsCollection, o.ID, encodeOccasion(o)); err != nil {
			return err
		}
	}
	for _, s := range data.Sizes {
		if err := set(sizesCollection, s.ID, encodeSize(s)); err != nil {
			return err
		}
	}
	for _, f := range data.Flavors {
		if err := set(flavorsCollection, f.ID, encodeFlavor(f)); err != nil {
			return err
		}
	}
	for _, p := range data.Products {
		if err := set(productsCollection, p.ID, encodeProduct(p)); err != nil {
			return err
		}
	}
	for _, d := range data.Discounts {
		if err := set(discountCodesCollection, domain.NormalizeDiscountCode(d.Code), encodeDiscount(d)); err != nil {
			return err
		}
	}
	for _, fee := range data.ShippingFees {
		if err := set(shippingFeesCollection, governorateKey(fee.Governorate), encodeShippingFee(fee)); err != nil {
			return err
		}
	}
	writer.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return pfirestore.WrapError("seed", err)
		}
	}
	return nil
}
