package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/platform/textutil"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

const (
	customOrderEventCreated       = "custom_order.created"
	customOrderEventStatusChanged = "custom_order.status_changed"

	customOrderIDPrefix  = "cko_"
	customOrderCounterID = "custom_orders"

	defaultMinLeadTime = 48 * time.Hour

	maxCustomerNameLength  = 100
	maxCustomizationLength = 1000
	maxNotesLength         = 2000
	maxDesignRefLength     = 512
	minPhoneDigits         = 7
	maxPhoneDigits         = 15
)

// CustomOrderServiceDeps bundles collaborators required to construct the custom order service.
type CustomOrderServiceDeps struct {
	CustomOrders repositories.CustomOrderRepository
	Counters     repositories.CounterRepository
	Pricing      PricingService
	UnitOfWork   repositories.UnitOfWork
	MinLeadTime  time.Duration
	Clock        func() time.Time
	IDGenerator  func() string
	Events       CustomOrderEventPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type customOrderService struct {
	orders      repositories.CustomOrderRepository
	counters    repositories.CounterRepository
	pricing     PricingService
	unitOfWork  repositories.UnitOfWork
	machine     domain.CustomOrderStatusMachine
	minLeadTime time.Duration
	clock       func() time.Time
	newID       func() string
	events      CustomOrderEventPublisher
	logger      func(context.Context, string, map[string]any)
	errs        repositoryErrorMapping
}

// NewCustomOrderService wires dependencies into a CustomOrderService.
func NewCustomOrderService(deps CustomOrderServiceDeps) (CustomOrderService, error) {
	switch {
	case deps.CustomOrders == nil:
		return nil, errors.New("custom order service: custom order repository is required")
	case deps.Counters == nil:
		return nil, errors.New("custom order service: counter repository is required")
	case deps.Pricing == nil:
		return nil, errors.New("custom order service: pricing service is required")
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
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	leadTime := deps.MinLeadTime
	if leadTime <= 0 {
		leadTime = defaultMinLeadTime
	}

	return &customOrderService{
		orders:      deps.CustomOrders,
		counters:    deps.Counters,
		pricing:     deps.Pricing,
		unitOfWork:  unit,
		minLeadTime: leadTime,
		clock:       func() time.Time { return clock().UTC() },
		newID:       idGen,
		events:      deps.Events,
		logger:      logger,
		errs:        repositoryErrorMapping{notFound: ErrCustomOrderNotFound, conflict: ErrCustomOrderConflict},
	}, nil
}

func (s *customOrderService) Create(ctx context.Context, cmd CreateCustomOrderCommand) (CustomOrder, error) {
	now := s.clock()

	name := textutil.PlainText(cmd.CustomerName, maxCustomerNameLength)
	if name == "" {
		return CustomOrder{}, fmt.Errorf("%w: customer name is required", ErrCustomOrderInvalidInput)
	}
	phone, err := normalizePhone(cmd.CustomerPhone)
	if err != nil {
		return CustomOrder{}, err
	}
	method, err := domain.ParseCustomOrderPaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return CustomOrder{}, fmt.Errorf("%w: %w", ErrCustomOrderInvalidInput, err)
	}
	if cmd.PickupAt.IsZero() {
		return CustomOrder{}, fmt.Errorf("%w: pickup time is required", ErrCustomOrderInvalidInput)
	}
	pickupAt := cmd.PickupAt.UTC()
	if pickupAt.Sub(now) < s.minLeadTime {
		return CustomOrder{}, fmt.Errorf("%w: pickup must be at least %s after submission", ErrCustomOrderInvalidInput, s.minLeadTime)
	}

	occasionID, sizeID, flavorID := strings.TrimSpace(cmd.OccasionID), strings.TrimSpace(cmd.SizeID), strings.TrimSpace(cmd.FlavorID)
	estimate, err := s.pricing.Resolve(ctx, occasionID, sizeID, flavorID)
	if err != nil {
		return CustomOrder{}, err
	}

	seq, err := s.counters.Next(ctx, customOrderCounterID, 1)
	if err != nil {
		return CustomOrder{}, fmt.Errorf("custom order: allocate order number: %w", s.errs.mapError(err))
	}

	order := CustomOrder{
		ID:             customOrderIDPrefix + s.newID(),
		OrderNumber:    fmt.Sprintf("CK-%04d-%06d", now.Year(), seq),
		CustomerID:     strings.TrimSpace(cmd.CustomerID),
		CustomerName:   name,
		CustomerPhone:  phone,
		OccasionID:     occasionID,
		SizeID:         sizeID,
		FlavorID:       flavorID,
		Customization:  textutil.PlainText(cmd.Customization, maxCustomizationLength),
		DesignImageRef: textutil.PlainText(cmd.DesignImageRef, maxDesignRefLength),
		PickupAt:       pickupAt,
		CustomerNotes:  textutil.PlainText(cmd.CustomerNotes, maxNotesLength),
		PaymentMethod:  method,
		Status:         domain.CustomOrderStatusPending,
		EstimatedPrice: estimate,
		StatusHistory: []domain.StatusChange{{
			To: string(domain.CustomOrderStatusPending),
			At: now,
		}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return CustomOrder{}, s.errs.mapError(err)
	}

	s.publishEvent(ctx, CustomOrderEvent{
		Type:          customOrderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerPhone: order.CustomerPhone,
		CurrentStatus: string(order.Status),
		Price:         order.EffectivePrice().StringFixed(2),
		OccurredAt:    now,
	})
	return order, nil
}

func (s *customOrderService) Get(ctx context.Context, orderID string) (CustomOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return CustomOrder{}, fmt.Errorf("%w: order id is required", ErrCustomOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return CustomOrder{}, s.errs.mapError(err)
	}
	return order, nil
}

func (s *customOrderService) List(ctx context.Context, filter CustomOrderListFilter) (domain.Page[CustomOrder], error) {
	for _, status := range filter.Status {
		if !status.Valid() {
			return domain.Page[CustomOrder]{}, fmt.Errorf("%w: %w: %q", ErrCustomOrderInvalidInput, domain.ErrInvalidStatus, string(status))
		}
	}
	filter.PageNumber, filter.PageSize = normalizePage(filter.PageNumber, filter.PageSize)
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.Page[CustomOrder]{}, s.errs.mapError(err)
	}
	return page, nil
}

// UpdateStatus re-targets a custom order and optionally records the final price and admin
// notes. Every input is validated before anything is written.
func (s *customOrderService) UpdateStatus(ctx context.Context, cmd UpdateCustomOrderStatusCommand) (CustomOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return CustomOrder{}, fmt.Errorf("%w: order id is required", ErrCustomOrderInvalidInput)
	}
	target, err := domain.ParseCustomOrderStatus(cmd.TargetStatus)
	if err != nil {
		return CustomOrder{}, fmt.Errorf("%w: %w", ErrCustomOrderInvalidInput, err)
	}
	if cmd.FinalPrice != nil {
		if err := domain.ValidateAmount(*cmd.FinalPrice); err != nil {
			return CustomOrder{}, fmt.Errorf("%w: %w: %w", ErrCustomOrderInvalidInput, domain.ErrInvalidFinalPrice, err)
		}
	}
	update := domain.CustomOrderUpdate{Status: target, FinalPrice: cmd.FinalPrice}
	if cmd.AdminNotes != nil {
		notes := textutil.PlainText(*cmd.AdminNotes, maxNotesLength)
		update.AdminNotes = &notes
	}

	now := s.clock()
	actor := strings.TrimSpace(cmd.ActorID)
	var previous, saved CustomOrder
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.errs.mapError(err)
		}
		if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != order.Version {
			return fmt.Errorf("%w: expected version %d but was %d", ErrCustomOrderConflict, *cmd.ExpectedVersion, order.Version)
		}
		updated, err := s.machine.UpdateStatus(order, update, domain.TransitionMeta{At: now, ActorID: actor})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCustomOrderInvalidInput, err)
		}
		stored, err := s.orders.Update(txCtx, updated, order.Version)
		if err != nil {
			return s.errs.mapError(err)
		}
		previous, saved = order, stored
		return nil
	})
	if err != nil {
		return CustomOrder{}, err
	}

	s.publishEvent(ctx, CustomOrderEvent{
		Type:           customOrderEventStatusChanged,
		OrderID:        saved.ID,
		OrderNumber:    saved.OrderNumber,
		CustomerPhone:  saved.CustomerPhone,
		PreviousStatus: string(previous.Status),
		CurrentStatus:  string(saved.Status),
		Price:          saved.EffectivePrice().StringFixed(2),
		ActorID:        actor,
		OccurredAt:     now,
	})
	return saved, nil
}

func (s *customOrderService) Delete(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrCustomOrderInvalidInput)
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return s.errs.mapError(err)
	}
	return nil
}

func (s *customOrderService) publishEvent(ctx context.Context, event CustomOrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCustomOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "custom_order.event.publish_failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"status": event.CurrentStatus,
			"error":  err,
		})
	}
}

// normalizePhone keeps a leading plus and the digits, dropping common separators.
func normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	digits := 0
	for i, r := range raw {
		switch {
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("%w: phone number contains invalid characters", ErrCustomOrderInvalidInput)
		}
	}
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return "", fmt.Errorf("%w: phone number must have %d to %d digits", ErrCustomOrderInvalidInput, minPhoneDigits, maxPhoneDigits)
	}
	return b.String(), nil
}
