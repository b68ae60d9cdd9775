package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status_changed"
	orderEventDeleted       = "order.deleted"

	orderIDPrefix    = "ord_"
	orderCounterID   = "orders"
	defaultPageSize  = 20
	maxOrderItems    = 100
	maxOrderQuantity = 1000
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Counters     repositories.CounterRepository
	Products     ProductPriceLookup
	Discounts    DiscountLedger
	ShippingFees ShippingFeeService
	UnitOfWork   repositories.UnitOfWork
	Clock        func() time.Time
	IDGenerator  func() string
	Events       OrderEventPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	counters   repositories.CounterRepository
	products   ProductPriceLookup
	discounts  DiscountLedger
	shipping   ShippingFeeService
	unitOfWork repositories.UnitOfWork
	machine    domain.OrderStatusMachine
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
	errs       repositoryErrorMapping
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product lookup is required")
	}
	if deps.ShippingFees == nil {
		return nil, errors.New("order service: shipping fee service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		counters:   deps.Counters,
		products:   deps.Products,
		discounts:  deps.Discounts,
		shipping:   deps.ShippingFees,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
		errs:   repositoryErrorMapping{notFound: ErrOrderNotFound, conflict: ErrOrderConflict},
	}, nil
}

// Checkout places an order. Discount validation, usage recording and the order insert share one
// unit of work so a rejected or exhausted code leaves nothing behind.
func (s *orderService) Checkout(ctx context.Context, cmd CheckoutCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	items, err := s.priceItems(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}
	method, err := domain.ParseOrderPaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %w", ErrOrderInvalidInput, err)
	}
	fee, err := s.shipping.Lookup(ctx, cmd.Governorate)
	if err != nil {
		return Order{}, err
	}

	code := domain.NormalizeDiscountCode(cmd.DiscountCode)
	if code != "" && s.discounts == nil {
		return Order{}, newDiscountRejected(code, domain.DiscountRejectionUnknown)
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	now := s.now()
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	draft := Order{
		ID:                   s.nextOrderID(),
		OrderNumber:          number,
		CustomerID:           customerID,
		Items:                items,
		Subtotal:             subtotal,
		Governorate:          fee.Governorate,
		ShippingFee:          fee.Fee,
		PaymentMethod:        method,
		PaymentTransactionID: strings.TrimSpace(cmd.PaymentTransactionID),
		Status:               domain.OrderStatusUnderReview,
		StatusHistory: []domain.StatusChange{{
			To:      string(domain.OrderStatusUnderReview),
			ActorID: customerID,
			Reason:  "checkout",
			At:      now,
		}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var created Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		order := draft
		order.DiscountAmount = decimal.Zero
		if code != "" {
			quote, err := s.discounts.Validate(txCtx, code, subtotal, now)
			if err != nil {
				return err
			}
			if _, err := s.discounts.RecordUsage(txCtx, code); err != nil {
				return err
			}
			order.DiscountCode = quote.Code
			order.DiscountAmount = quote.Amount
		}
		order.Total = subtotal.Sub(order.DiscountAmount)

		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.errs.mapError(err)
		}
		created = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       created.ID,
		OrderNumber:   created.OrderNumber,
		CustomerID:    created.CustomerID,
		CurrentStatus: string(created.Status),
		Total:         created.Total.StringFixed(2),
		ActorID:       customerID,
		OccurredAt:    now,
		Metadata:      discountMetadata(created),
	})

	return created, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.errs.mapError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error) {
	filter.CustomerID = strings.TrimSpace(filter.CustomerID)
	for _, status := range filter.Status {
		if !status.Valid() {
			return domain.Page[Order]{}, fmt.Errorf("%w: %w: %q", ErrOrderInvalidInput, domain.ErrInvalidStatus, string(status))
		}
	}
	filter.PageNumber, filter.PageSize = normalizePage(filter.PageNumber, filter.PageSize)

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.Page[Order]{}, s.errs.mapError(err)
	}
	return page, nil
}

// AdvanceStatus moves the order forward one step or cancels it.
func (s *orderService) AdvanceStatus(ctx context.Context, cmd AdvanceOrderStatusCommand) (Order, error) {
	target, err := domain.ParseOrderStatus(cmd.TargetStatus)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %w", ErrOrderInvalidInput, err)
	}
	return s.transition(ctx, cmd.OrderID, cmd.ExpectedVersion, cmd.ActorID, cmd.Reason,
		func(order Order, meta domain.TransitionMeta) (Order, error) {
			return s.machine.Advance(order, target, meta)
		})
}

// RollbackStatus returns the order to the previous step of the lifecycle.
func (s *orderService) RollbackStatus(ctx context.Context, cmd RollbackOrderStatusCommand) (Order, error) {
	return s.transition(ctx, cmd.OrderID, cmd.ExpectedVersion, cmd.ActorID, cmd.Reason, s.machine.Rollback)
}

func (s *orderService) transition(
	ctx context.Context,
	orderID string,
	expectedVersion *int64,
	actorID string,
	reason string,
	apply func(Order, domain.TransitionMeta) (Order, error),
) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	actor := strings.TrimSpace(actorID)
	var previous, saved Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.errs.mapError(err)
		}
		if expectedVersion != nil && *expectedVersion != order.Version {
			return fmt.Errorf("%w: expected version %d but was %d", ErrOrderConflict, *expectedVersion, order.Version)
		}

		updated, err := apply(order, domain.TransitionMeta{At: now, ActorID: actor, Reason: reason})
		if err != nil {
			return err
		}
		stored, err := s.orders.Update(txCtx, updated, order.Version)
		if err != nil {
			return s.errs.mapError(err)
		}
		previous, saved = order, stored
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	var metadata map[string]any
	if reason = strings.TrimSpace(reason); reason != "" {
		metadata = map[string]any{"reason": reason}
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        saved.ID,
		OrderNumber:    saved.OrderNumber,
		CustomerID:     saved.CustomerID,
		PreviousStatus: string(previous.Status),
		CurrentStatus:  string(saved.Status),
		ActorID:        actor,
		OccurredAt:     now,
		Metadata:       metadata,
	})
	return saved, nil
}

// DeleteOrder removes an order unless payment records still point at it. Discount usage consumed
// by the order is not given back.
func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentTransactionID != "" {
		return fmt.Errorf("%w: payment transaction %s", ErrOrderReferenced, order.PaymentTransactionID)
	}
	if err := s.orders.Delete(ctx, order.ID); err != nil {
		return s.errs.mapError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventDeleted,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		CurrentStatus: string(order.Status),
		OccurredAt:    s.now(),
	})
	return nil
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderCounterID, 1)
	if err != nil {
		return "", fmt.Errorf("order: allocate order number: %w", s.errs.mapError(err))
	}
	return fmt.Sprintf("BK-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish_failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"status": event.CurrentStatus,
			"error":  err,
		})
	}
}

// priceItems validates the requested lines and captures each unit price from the product
// catalogue. A client price that differs from the catalogue is rejected so a stale cart is
// never charged silently.
func (s *orderService) priceItems(ctx context.Context, items []CheckoutItem) ([]OrderItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	if len(items) > maxOrderItems {
		return nil, fmt.Errorf("%w: at most %d items are allowed", ErrOrderInvalidInput, maxOrderItems)
	}
	productErrs := repositoryErrorMapping{notFound: ErrUnknownEntity}
	out := make([]OrderItem, 0, len(items))
	for i, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: item %d: product id is required", ErrOrderInvalidInput, i)
		}
		if item.Quantity < 1 || item.Quantity > maxOrderQuantity {
			return nil, fmt.Errorf("%w: item %d: quantity must be between 1 and %d", ErrOrderInvalidInput, i, maxOrderQuantity)
		}
		if item.UnitPrice != nil {
			if err := domain.ValidateAmount(*item.UnitPrice); err != nil {
				return nil, fmt.Errorf("%w: item %d: unit price: %w", ErrOrderInvalidInput, i, err)
			}
		}

		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", productID, productErrs.mapError(err))
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: product %s is not offered", ErrUnknownEntity, productID)
		}
		if item.UnitPrice != nil && !item.UnitPrice.Equal(product.Price) {
			return nil, fmt.Errorf("%w: item %d: price of %s changed to %s", ErrOrderInvalidInput, i, productID, product.Price.StringFixed(2))
		}

		out = append(out, OrderItem{
			ProductID:   productID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			Size:        strings.TrimSpace(item.Size),
			Color:       strings.TrimSpace(item.Color),
		})
	}
	return out, nil
}

func discountMetadata(order Order) map[string]any {
	if order.DiscountCode == "" {
		return nil
	}
	return map[string]any{
		"discountCode":   order.DiscountCode,
		"discountAmount": order.DiscountAmount.StringFixed(2),
	}
}

func normalizePage(pageNumber, pageSize int) (int, int) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return pageNumber, pageSize
}
