package repositories

import (
	"context"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	CustomOrders() CustomOrderRepository
	Catalog() CatalogRepository
	Products() ProductRepository
	Discounts() DiscountRepository
	ShippingFees() ShippingFeeRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Repositories invoked with the context passed to fn take part in the same transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists merchandise orders.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	// Update stores the order when the persisted version equals expectedVersion and returns the
	// saved order with its version incremented. A version mismatch is reported as a conflict.
	Update(ctx context.Context, order domain.Order, expectedVersion int64) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
	Delete(ctx context.Context, orderID string) error
}

// CustomOrderRepository persists custom cake orders.
type CustomOrderRepository interface {
	Insert(ctx context.Context, order domain.CustomOrder) error
	Update(ctx context.Context, order domain.CustomOrder, expectedVersion int64) (domain.CustomOrder, error)
	FindByID(ctx context.Context, orderID string) (domain.CustomOrder, error)
	List(ctx context.Context, filter CustomOrderListFilter) (domain.Page[domain.CustomOrder], error)
	Delete(ctx context.Context, orderID string) error
}

// CatalogRepository reads the custom cake catalogue.
type CatalogRepository interface {
	GetOccasion(ctx context.Context, occasionID string) (domain.Occasion, error)
	GetSize(ctx context.Context, sizeID string) (domain.Size, error)
	GetFlavor(ctx context.Context, flavorID string) (domain.Flavor, error)
	ListOccasions(ctx context.Context, activeOnly bool) ([]domain.Occasion, error)
	ListSizes(ctx context.Context, activeOnly bool) ([]domain.Size, error)
	ListFlavors(ctx context.Context, activeOnly bool) ([]domain.Flavor, error)
}

// ProductRepository reads merchandise products priced at checkout.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}

// DiscountRepository stores discount codes and their usage counters.
type DiscountRepository interface {
	FindByCode(ctx context.Context, code string) (domain.DiscountCode, error)
	// IncrementUsage atomically adds one use while the counter is below the usage limit. A code
	// at its limit yields a *CounterError with CounterErrorExhausted and is left unchanged.
	IncrementUsage(ctx context.Context, code string) (domain.DiscountCode, error)
}

// ShippingFeeRepository reads per-governorate delivery fees.
type ShippingFeeRepository interface {
	FindByGovernorate(ctx context.Context, governorate string) (domain.ShippingFee, error)
	List(ctx context.Context, activeOnly bool) ([]domain.ShippingFee, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository checks the external dependencies the API relies on.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderListFilter narrows order listings. Results are ordered by creation time, newest first.
type OrderListFilter struct {
	CustomerID string
	Status     []domain.OrderStatus
	PageNumber int
	PageSize   int
}

// CustomOrderListFilter narrows custom order listings.
type CustomOrderListFilter struct {
	Status     []domain.CustomOrderStatus
	PageNumber int
	PageSize   int
}

// ReferenceData is the catalogue, discount and shipping data a store is seeded with.
type ReferenceData struct {
	Occasions    []domain.Occasion
	Sizes        []domain.Size
	Flavors      []domain.Flavor
	Products     []domain.Product
	Discounts    []domain.DiscountCode
	ShippingFees []domain.ShippingFee
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
