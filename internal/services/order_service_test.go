package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

func checkoutCommand(code string) CheckoutCommand {
	return CheckoutCommand{
		CustomerID: "cust-1",
		Items: []CheckoutItem{
			{ProductID: "mug", Quantity: 2, UnitPrice: decPtr("100")},
			{ProductID: "bag", Quantity: 1, Color: " red "},
		},
		DiscountCode:  code,
		Governorate:   " Cairo ",
		PaymentMethod: "cash_on_delivery",
	}
}

func TestOrderServiceCheckoutAppliesDiscount(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	order, err := fx.svc.Checkout(ctx, checkoutCommand("spring10"))
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if order.ID != "ord_TEST0001" {
		t.Fatalf("unexpected id %s", order.ID)
	}
	if order.OrderNumber != "BK-2025-000001" {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if !order.Subtotal.Equal(dec("250")) || !order.DiscountAmount.Equal(dec("25")) || !order.Total.Equal(dec("225")) {
		t.Fatalf("unexpected money subtotal=%s discount=%s total=%s", order.Subtotal, order.DiscountAmount, order.Total)
	}
	if order.DiscountCode != "SPRING10" {
		t.Fatalf("expected normalised code, got %q", order.DiscountCode)
	}
	if order.Governorate != "cairo" || !order.ShippingFee.Equal(dec("50")) {
		t.Fatalf("unexpected shipping %s %s", order.Governorate, order.ShippingFee)
	}
	if order.Status != domain.OrderStatusUnderReview || order.Version != 1 {
		t.Fatalf("unexpected status %s version %d", order.Status, order.Version)
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].Reason != "checkout" {
		t.Fatalf("unexpected history %+v", order.StatusHistory)
	}
	if order.Items[1].Color != "red" {
		t.Fatalf("expected trimmed color, got %q", order.Items[1].Color)
	}

	stored, err := fx.registry.Orders().FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !stored.Total.Equal(order.Total) {
		t.Fatalf("stored total mismatch %s", stored.Total)
	}
	code, err := fx.registry.Discounts().FindByCode(ctx, "SPRING10")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if code.UsageCount != 1 {
		t.Fatalf("expected usage count 1, got %d", code.UsageCount)
	}

	if len(fx.events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(fx.events.events))
	}
	event := fx.events.events[0]
	if event.Type != orderEventCreated || event.Total != "225.00" || event.Metadata["discountCode"] != "SPRING10" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestOrderServiceCheckoutCapturesCataloguePrice(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	order, err := fx.svc.Checkout(ctx, checkoutCommand(""))
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if !order.Items[1].UnitPrice.Equal(dec("50")) || order.Items[1].ProductName != "Tote" {
		t.Fatalf("expected catalogue price and name, got %+v", order.Items[1])
	}

	cmd := checkoutCommand("")
	cmd.Items[0].UnitPrice = decPtr("0")
	if _, err := fx.svc.Checkout(ctx, cmd); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected tampered price to be rejected, got %v", err)
	}
	page, err := fx.registry.Orders().List(ctx, repositories.OrderListFilter{PageNumber: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalItems != 1 {
		t.Fatalf("expected only the honest order to persist, got %d", page.TotalItems)
	}
}

func TestOrderServiceCheckoutWithoutDiscount(t *testing.T) {
	fx := newOrderFixture(t)

	order, err := fx.svc.Checkout(context.Background(), checkoutCommand(""))
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if !order.Total.Equal(dec("250")) || !order.DiscountAmount.IsZero() || order.DiscountCode != "" {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestOrderServiceCheckoutRejectedDiscountPersistsNothing(t *testing.T) {
	cases := []struct {
		name   string
		code   string
		reason domain.DiscountRejection
	}{
		{name: "unknown", code: "NOPE", reason: domain.DiscountRejectionUnknown},
		{name: "inactive", code: "paused", reason: domain.DiscountRejectionInactive},
		{name: "expired", code: "EXPIRED", reason: domain.DiscountRejectionOutsideWindow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newOrderFixture(t)
			ctx := context.Background()

			_, err := fx.svc.Checkout(ctx, checkoutCommand(tc.code))
			if !errors.Is(err, ErrDiscountRejected) {
				t.Fatalf("expected discount rejection, got %v", err)
			}
			var rejected *DiscountRejectedError
			if !errors.As(err, &rejected) || rejected.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %v", tc.reason, err)
			}

			page, err := fx.registry.Orders().List(ctx, repositories.OrderListFilter{PageNumber: 1, PageSize: 10})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if page.TotalItems != 0 {
				t.Fatalf("expected no persisted orders, got %d", page.TotalItems)
			}
			if len(fx.events.events) != 0 {
				t.Fatalf("expected no events")
			}
		})
	}
}

func TestOrderServiceCheckoutBelowMinimum(t *testing.T) {
	fx := newOrderFixture(t)
	cmd := checkoutCommand("FLAT50")
	cmd.Items = cmd.Items[1:]

	_, err := fx.svc.Checkout(context.Background(), cmd)
	var rejected *DiscountRejectedError
	if !errors.As(err, &rejected) || rejected.Reason != domain.DiscountRejectionBelowMinimum {
		t.Fatalf("expected below minimum rejection, got %v", err)
	}
}

func TestOrderServiceConcurrentCheckoutHonoursUsageLimit(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	const attempts = 12
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		exhausted atomic.Int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Checkout(ctx, checkoutCommand("SPRING10"))
			var rejected *DiscountRejectedError
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.As(err, &rejected) && rejected.Reason == domain.DiscountRejectionUsageExhausted:
				exhausted.Add(1)
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != 3 || exhausted.Load() != attempts-3 {
		t.Fatalf("expected 3 successes, got %d successes and %d exhausted", succeeded.Load(), exhausted.Load())
	}
	code, err := fx.registry.Discounts().FindByCode(ctx, "SPRING10")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if code.UsageCount != 3 {
		t.Fatalf("expected usage count to stop at the limit, got %d", code.UsageCount)
	}
	page, err := fx.registry.Orders().List(ctx, repositories.OrderListFilter{PageNumber: 1, PageSize: 50})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalItems != 3 {
		t.Fatalf("expected 3 orders, got %d", page.TotalItems)
	}
}

func TestOrderServiceCheckoutValidation(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CheckoutCommand)
		want   error
	}{
		{name: "missing customer", mutate: func(c *CheckoutCommand) { c.CustomerID = " " }, want: ErrOrderInvalidInput},
		{name: "no items", mutate: func(c *CheckoutCommand) { c.Items = nil }, want: ErrOrderInvalidInput},
		{name: "zero quantity", mutate: func(c *CheckoutCommand) { c.Items[0].Quantity = 0 }, want: ErrOrderInvalidInput},
		{name: "negative price", mutate: func(c *CheckoutCommand) { c.Items[0].UnitPrice = decPtr("-1") }, want: ErrOrderInvalidInput},
		{name: "huge exponent price", mutate: func(c *CheckoutCommand) { c.Items[0].UnitPrice = decPtr("1e300000000") }, want: ErrOrderInvalidInput},
		{name: "price above maximum", mutate: func(c *CheckoutCommand) { c.Items[0].UnitPrice = decPtr("1000000.01") }, want: ErrOrderInvalidInput},
		{name: "price with three decimals", mutate: func(c *CheckoutCommand) { c.Items[0].UnitPrice = decPtr("99.999") }, want: ErrOrderInvalidInput},
		{name: "stale price", mutate: func(c *CheckoutCommand) { c.Items[0].UnitPrice = decPtr("1") }, want: ErrOrderInvalidInput},
		{name: "unknown product", mutate: func(c *CheckoutCommand) { c.Items[0].ProductID = "teapot" }, want: ErrUnknownEntity},
		{name: "retired product", mutate: func(c *CheckoutCommand) { c.Items[1].ProductID = "kettle" }, want: ErrUnknownEntity},
		{name: "missing product", mutate: func(c *CheckoutCommand) { c.Items[1].ProductID = "" }, want: ErrOrderInvalidInput},
		{name: "payment method", mutate: func(c *CheckoutCommand) { c.PaymentMethod = "barter" }, want: ErrOrderInvalidInput},
		{name: "unknown governorate", mutate: func(c *CheckoutCommand) { c.Governorate = "atlantis" }, want: ErrUnknownEntity},
		{name: "inactive governorate", mutate: func(c *CheckoutCommand) { c.Governorate = "Aswan" }, want: ErrUnknownEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := checkoutCommand("")
			tc.mutate(&cmd)
			if _, err := fx.svc.Checkout(ctx, cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOrderServiceAdvanceAndRollback(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	order, err := fx.svc.Checkout(ctx, checkoutCommand(""))
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	confirmed, err := fx.svc.AdvanceStatus(ctx, AdvanceOrderStatusCommand{
		OrderID:         order.ID,
		TargetStatus:    "Confirmed",
		ExpectedVersion: int64Ptr(1),
		ActorID:         "staff-1",
		Reason:          "paid",
	})
	if err != nil {
		t.Fatalf("AdvanceStatus: %v", err)
	}
	if confirmed.Status != domain.OrderStatusConfirmed || confirmed.Version != 2 {
		t.Fatalf("unexpected order after advance %s v%d", confirmed.Status, confirmed.Version)
	}
	last := confirmed.StatusHistory[len(confirmed.StatusHistory)-1]
	if last.From != "under_review" || last.To != "confirmed" || last.ActorID != "staff-1" {
		t.Fatalf("unexpected history entry %+v", last)
	}

	rolled, err := fx.svc.RollbackStatus(ctx, RollbackOrderStatusCommand{OrderID: order.ID, ActorID: "staff-1"})
	if err != nil {
		t.Fatalf("RollbackStatus: %v", err)
	}
	if rolled.Status != domain.OrderStatusUnderReview || rolled.Version != 3 {
		t.Fatalf("unexpected order after rollback %s v%d", rolled.Status, rolled.Version)
	}

	_, err = fx.svc.RollbackStatus(ctx, RollbackOrderStatusCommand{OrderID: order.ID})
	if !errors.Is(err, domain.ErrNoPreviousStatus) {
		t.Fatalf("expected ErrNoPreviousStatus, got %v", err)
	}

	_, err = fx.svc.AdvanceStatus(ctx, AdvanceOrderStatusCommand{OrderID: order.ID, TargetStatus: "delivered"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	cancelled, err := fx.svc.AdvanceStatus(ctx, AdvanceOrderStatusCommand{OrderID: order.ID, TargetStatus: "cancelled"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	reopened, err := fx.svc.RollbackStatus(ctx, RollbackOrderStatusCommand{OrderID: order.ID})
	if err != nil {
		t.Fatalf("rollback from cancelled: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled || reopened.Status != domain.OrderStatusUnderReview {
		t.Fatalf("unexpected cancel/reopen %s/%s", cancelled.Status, reopened.Status)
	}

	var changes int
	for _, event := range fx.events.events {
		if event.Type == orderEventStatusChanged {
			changes++
		}
	}
	if changes != 4 {
		t.Fatalf("expected 4 status change events, got %d", changes)
	}
	if fx.events.events[1].PreviousStatus != "under_review" || fx.events.events[1].Metadata["reason"] != "paid" {
		t.Fatalf("unexpected status event %+v", fx.events.events[1])
	}
}

func TestOrderServiceAdvanceVersionConflict(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	order, err := fx.svc.Checkout(ctx, checkoutCommand(""))
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	_, err = fx.svc.AdvanceStatus(ctx, AdvanceOrderStatusCommand{OrderID: order.ID, TargetStatus: "confirmed", ExpectedVersion: int64Ptr(7)})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, err := fx.svc.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if stored.Status != domain.OrderStatusUnderReview || stored.Version != 1 {
		t.Fatalf("order must be unchanged, got %s v%d", stored.Status, stored.Version)
	}
}

func TestOrderServiceAdvanceRejectsUnknownStatus(t *testing.T) {
	fx := newOrderFixture(t)

	_, err := fx.svc.AdvanceStatus(context.Background(), AdvanceOrderStatusCommand{OrderID: "ord_x", TargetStatus: "baked"})
	if !errors.Is(err, ErrOrderInvalidInput) || !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected invalid status input error, got %v", err)
	}
	_, err = fx.svc.AdvanceStatus(context.Background(), AdvanceOrderStatusCommand{OrderID: "ord_missing", TargetStatus: "confirmed"})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderServiceListOrders(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := fx.svc.Checkout(ctx, checkoutCommand("")); err != nil {
			t.Fatalf("Checkout: %v", err)
		}
	}
	other := checkoutCommand("")
	other.CustomerID = "cust-2"
	if _, err := fx.svc.Checkout(ctx, other); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	page, err := fx.svc.ListOrders(ctx, OrderListFilter{CustomerID: "cust-1", PageSize: 2})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if page.TotalItems != 3 || page.TotalPages != 2 || len(page.Items) != 2 || page.PageNumber != 1 {
		t.Fatalf("unexpected page %+v", page)
	}

	_, err = fx.svc.ListOrders(ctx, OrderListFilter{Status: []domain.OrderStatus{"baked"}})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestOrderServiceDeleteOrder(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	paid := checkoutCommand("")
	paid.PaymentMethod = "card"
	paid.PaymentTransactionID = "txn_123"
	referenced, err := fx.svc.Checkout(ctx, paid)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if err := fx.svc.DeleteOrder(ctx, referenced.ID); !errors.Is(err, ErrOrderReferenced) {
		t.Fatalf("expected referenced error, got %v", err)
	}

	plain, err := fx.svc.Checkout(ctx, checkoutCommand(""))
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if err := fx.svc.DeleteOrder(ctx, plain.ID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if _, err := fx.svc.GetOrder(ctx, plain.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if last := fx.events.events[len(fx.events.events)-1]; last.Type != orderEventDeleted {
		t.Fatalf("expected delete event, got %s", last.Type)
	}
}

func TestOrderServicePublishFailureIsLogged(t *testing.T) {
	fx := newOrderFixture(t)
	fx.events.err = errBoom

	if _, err := fx.svc.Checkout(context.Background(), checkoutCommand("")); err != nil {
		t.Fatalf("publish failures must not fail checkout: %v", err)
	}
	if len(fx.logger.entries) != 1 || fx.logger.entries[0] != "order.event.publish_failed" {
		t.Fatalf("expected publish failure log, got %v", fx.logger.entries)
	}
}

func TestOrderServiceMapsUnavailableRepository(t *testing.T) {
	fx := newOrderFixture(t)
	svc := fx.svc.(*orderService)
	svc.orders = failingOrderRepo{err: unavailableError{}}

	if _, err := fx.svc.GetOrder(context.Background(), "ord_1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewOrderServiceRequiresDependencies(t *testing.T) {
	if _, err := NewOrderService(OrderServiceDeps{}); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}

type failingOrderRepo struct {
	repositories.OrderRepository
	err error
}

func (f failingOrderRepo) FindByID(context.Context, string) (domain.Order, error) {
	return domain.Order{}, f.err
}
