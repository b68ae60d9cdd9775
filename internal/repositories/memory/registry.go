// Package memory provides process-local repositories used by tests and by the "memory"
// repository driver for local development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

// Error implements repositories.RepositoryError for the in-memory store.
type Error struct {
	Op       string
	notFound bool
	conflict bool
}

func (e *Error) Error() string {
	switch {
	case e.notFound:
		return fmt.Sprintf("memory: %s: not found", e.Op)
	case e.conflict:
		return fmt.Sprintf("memory: %s: conflict", e.Op)
	default:
		return fmt.Sprintf("memory: %s: failed", e.Op)
	}
}

func (e *Error) IsNotFound() bool    { return e.notFound }
func (e *Error) IsConflict() bool    { return e.conflict }
func (e *Error) IsUnavailable() bool { return false }

func notFound(op string) error { return &Error{Op: op, notFound: true} }
func conflict(op string) error { return &Error{Op: op, conflict: true} }

// Seed holds reference data loaded into a new registry.
type Seed = repositories.ReferenceData

// Registry implements repositories.Registry on top of maps guarded by a single mutex.
type Registry struct {
	mu sync.Mutex
	tx sync.Mutex

	orders       map[string]domain.Order
	customOrders map[string]domain.CustomOrder
	occasions    map[string]domain.Occasion
	sizes        map[string]domain.Size
	flavors      map[string]domain.Flavor
	products     map[string]domain.Product
	discounts    map[string]domain.DiscountCode
	fees         map[string]domain.ShippingFee
	counters     map[string]*counterState

	clock func() time.Time
}

var _ repositories.Registry = (*Registry)(nil)

// Option customises the registry.
type Option func(*Registry)

// WithClock overrides the clock used for UpdatedAt stamps written by the repositories.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRegistry builds an empty registry loaded with seed.
func NewRegistry(seed Seed, opts ...Option) *Registry {
	r := &Registry{
		orders:       make(map[string]domain.Order),
		customOrders: make(map[string]domain.CustomOrder),
		occasions:    make(map[string]domain.Occasion),
		sizes:        make(map[string]domain.Size),
		flavors:      make(map[string]domain.Flavor),
		products:     make(map[string]domain.Product),
		discounts:    make(map[string]domain.DiscountCode),
		fees:         make(map[string]domain.ShippingFee),
		counters:     make(map[string]*counterState),
		clock:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	for _, o := range seed.Occasions {
		r.occasions[o.ID] = cloneOccasion(o)
	}
	for _, s := range seed.Sizes {
		r.sizes[s.ID] = s
	}
	for _, f := range seed.Flavors {
		r.flavors[f.ID] = f
	}
	for _, p := range seed.Products {
		r.products[p.ID] = p
	}
	for _, d := range seed.Discounts {
		d.Code = domain.NormalizeDiscountCode(d.Code)
		r.discounts[d.Code] = cloneDiscount(d)
	}
	for _, fee := range seed.ShippingFees {
		fee.Governorate = normalizeKey(fee.Governorate)
		r.fees[fee.Governorate] = fee
	}
	return r
}

func (r *Registry) Close(context.Context) error { return nil }

func (r *Registry) Orders() repositories.OrderRepository             { return orderRepository{r} }
func (r *Registry) CustomOrders() repositories.CustomOrderRepository { return customOrderRepository{r} }
func (r *Registry) Catalog() repositories.CatalogRepository          { return catalogRepository{r} }
func (r *Registry) Products() repositories.ProductRepository         { return productRepository{r} }
func (r *Registry) Discounts() repositories.DiscountRepository       { return discountRepository{r} }
func (r *Registry) ShippingFees() repositories.ShippingFeeRepository { return shippingFeeRepository{r} }
func (r *Registry) Counters() repositories.CounterRepository         { return counterRepository{r} }

func (r *Registry) Health() repositories.HealthRepository {
	return healthRepository{clock: r.clock}
}

type journalKey struct{}

// journal collects undo actions for writes performed inside RunInTx.
type journal struct {
	undo []func()
}

// RunInTx serialises units of work and reverts their writes when fn fails. Nested calls join
// the outer unit.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	r.tx.Lock()
	defer r.tx.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		r.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		r.mu.Unlock()
		return err
	}
	return nil
}

// record registers an undo action. Callers hold r.mu.
func record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

type healthRepository struct {
	clock func() time.Time
}

func (h healthRepository) Collect(context.Context) (domain.HealthReport, error) {
	now := h.clock().UTC()
	return domain.HealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.HealthCheck{
			"memory": {Status: domain.HealthStatusOK, Detail: "ok", CheckedAt: now},
		},
		GeneratedAt: now,
	}, nil
}
