package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories/memory"
)

var fixtureNow = time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func decPtr(value string) *decimal.Decimal {
	d := dec(value)
	return &d
}

func int64Ptr(v int64) *int64 { return &v }

func fixtureSeed() memory.Seed {
	return memory.Seed{
		Occasions: []domain.Occasion{
			{ID: "birthday", Name: "Birthday", DisplayOrder: 2, Active: true, SizePrices: []domain.OccasionSizePrice{{SizeID: "medium", Price: dec("250")}}},
			{ID: "wedding", Name: "Wedding", DisplayOrder: 1, Active: true},
			{ID: "retired", Name: "Retired", DisplayOrder: 3, Active: false},
		},
		Sizes: []domain.Size{
			{ID: "small", Name: "Small", DefaultPrice: dec("150"), DisplayOrder: 1, Active: true},
			{ID: "medium", Name: "Medium", DefaultPrice: dec("200"), DisplayOrder: 2, Active: true},
			{ID: "tiered", Name: "Tiered", DefaultPrice: dec("600"), DisplayOrder: 3, Active: false},
		},
		Flavors: []domain.Flavor{
			{ID: "chocolate", Name: "Chocolate", AdditionalPrice: dec("20"), DisplayOrder: 1, Active: true},
			{ID: "vanilla", Name: "Vanilla", AdditionalPrice: decimal.Zero, DisplayOrder: 0, Active: true},
			{ID: "pistachio", Name: "Pistachio", AdditionalPrice: dec("35"), DisplayOrder: 2, Active: false},
		},
		Products: []domain.Product{
			{ID: "mug", Name: "Mug", Price: dec("100"), Active: true},
			{ID: "bag", Name: "Tote", Price: dec("50"), Active: true},
			{ID: "kettle", Name: "Kettle", Price: dec("80"), Active: false},
		},
		Discounts: []domain.DiscountCode{
			{
				Code: "SPRING10", Kind: domain.DiscountKindPercentage, Value: dec("10"),
				MaxDiscountAmount: decPtr("100"), UsageLimit: int64Ptr(3),
				StartsAt: fixtureNow.Add(-24 * time.Hour), EndsAt: fixtureNow.Add(24 * time.Hour), Active: true,
			},
			{
				Code: "FLAT50", Kind: domain.DiscountKindFixed, Value: dec("50"), MinOrderAmount: decPtr("200"),
				StartsAt: fixtureNow.Add(-24 * time.Hour), EndsAt: fixtureNow.Add(24 * time.Hour), Active: true,
			},
			{
				Code: "PAUSED", Kind: domain.DiscountKindFixed, Value: dec("10"),
				StartsAt: fixtureNow.Add(-24 * time.Hour), EndsAt: fixtureNow.Add(24 * time.Hour), Active: false,
			},
			{
				Code: "EXPIRED", Kind: domain.DiscountKindFixed, Value: dec("10"),
				StartsAt: fixtureNow.Add(-48 * time.Hour), EndsAt: fixtureNow.Add(-time.Hour), Active: true,
			},
		},
		ShippingFees: []domain.ShippingFee{
			{Governorate: "cairo", Name: "Cairo", Fee: dec("50"), EstimatedDelivery: "1-2 days", Active: true},
			{Governorate: "giza", Name: "Giza", Fee: dec("60"), EstimatedDelivery: "2-3 days", Active: true},
			{Governorate: "aswan", Name: "Aswan", Fee: dec("120"), Active: false},
		},
	}
}

type captureOrderEvents struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

type captureCustomOrderEvents struct {
	events []CustomOrderEvent
	err    error
}

func (c *captureCustomOrderEvents) PublishCustomOrderEvent(_ context.Context, event CustomOrderEvent) error {
	c.events = append(c.events, event)
	return c.err
}

type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *captureLogger) log(_ context.Context, event string, _ map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, event)
}

func sequentialIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("TEST%04d", n)
	}
}

type orderFixture struct {
	svc      OrderService
	registry *memory.Registry
	events   *captureOrderEvents
	logger   *captureLogger
}

func newOrderFixture(t *testing.T) orderFixture {
	t.Helper()
	reg := memory.NewRegistry(fixtureSeed(), memory.WithClock(func() time.Time { return fixtureNow }))
	ledger, err := NewDiscountLedger(DiscountLedgerDeps{
		Discounts: reg.Discounts(),
		Clock:     func() time.Time { return fixtureNow },
	})
	if err != nil {
		t.Fatalf("NewDiscountLedger: %v", err)
	}
	fees, err := NewShippingFeeService(ShippingFeeServiceDeps{ShippingFees: reg.ShippingFees()})
	if err != nil {
		t.Fatalf("NewShippingFeeService: %v", err)
	}
	events := &captureOrderEvents{}
	logger := &captureLogger{}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:       reg.Orders(),
		Counters:     reg.Counters(),
		Products:     reg.Products(),
		Discounts:    ledger,
		ShippingFees: fees,
		UnitOfWork:   reg,
		Clock:        func() time.Time { return fixtureNow },
		IDGenerator:  sequentialIDs(),
		Events:       events,
		Logger:       logger.log,
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return orderFixture{svc: svc, registry: reg, events: events, logger: logger}
}

// unavailableError mimics a repository failure caused by the backing store being unreachable.
type unavailableError struct{}

func (unavailableError) Error() string       { return "backend down" }
func (unavailableError) IsNotFound() bool    { return false }
func (unavailableError) IsConflict() bool    { return false }
func (unavailableError) IsUnavailable() bool { return true }

var errBoom = errors.New("boom")
