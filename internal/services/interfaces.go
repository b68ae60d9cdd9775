package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order             = domain.Order
	OrderItem         = domain.OrderItem
	OrderStatus       = domain.OrderStatus
	CustomOrder       = domain.CustomOrder
	CustomOrderStatus = domain.CustomOrderStatus
	Occasion          = domain.Occasion
	Size              = domain.Size
	Flavor            = domain.Flavor
	DiscountCode      = domain.DiscountCode
	ShippingFee       = domain.ShippingFee
	HealthReport      = domain.HealthReport
)

// OrderService runs the merchandise order lifecycle from checkout to delivery.
type OrderService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error)
	AdvanceStatus(ctx context.Context, cmd AdvanceOrderStatusCommand) (Order, error)
	RollbackStatus(ctx context.Context, cmd RollbackOrderStatusCommand) (Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// CustomOrderService manages custom cake requests raised through the cake wizard.
type CustomOrderService interface {
	Create(ctx context.Context, cmd CreateCustomOrderCommand) (CustomOrder, error)
	Get(ctx context.Context, orderID string) (CustomOrder, error)
	List(ctx context.Context, filter CustomOrderListFilter) (domain.Page[CustomOrder], error)
	UpdateStatus(ctx context.Context, cmd UpdateCustomOrderStatusCommand) (CustomOrder, error)
	Delete(ctx context.Context, orderID string) error
}

// PricingService resolves custom cake prices from the live catalogue.
type PricingService interface {
	Resolve(ctx context.Context, occasionID, sizeID, flavorID string) (decimal.Decimal, error)
}

// DiscountLedger validates discount codes and records their redemptions.
type DiscountLedger interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal, now time.Time) (DiscountQuote, error)
	RecordUsage(ctx context.Context, code string) (DiscountCode, error)
}

// ProductPriceLookup resolves the current price and name of a merchandise product. Checkout
// captures the unit price from it rather than from the request.
type ProductPriceLookup interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}

// ShippingFeeService exposes per-governorate delivery fees.
type ShippingFeeService interface {
	ListActive(ctx context.Context) ([]ShippingFee, error)
	Lookup(ctx context.Context, governorate string) (ShippingFee, error)
}

// CatalogService serves the custom cake wizard options.
type CatalogService interface {
	Configuration(ctx context.Context) (CakeConfiguration, error)
}

// SystemService reports service health.
type SystemService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// CustomOrderEventPublisher publishes custom order domain events.
type CustomOrderEventPublisher interface {
	PublishCustomOrderEvent(ctx context.Context, event CustomOrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	OrderNumber    string         `json:"orderNumber"`
	CustomerID     string         `json:"customerId,omitempty"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	CurrentStatus  string         `json:"currentStatus,omitempty"`
	Total          string         `json:"total,omitempty"`
	ActorID        string         `json:"actorId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// CustomOrderEvent captures metadata for emitted custom order domain events.
type CustomOrderEvent struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	CustomerPhone  string    `json:"customerPhone,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	CurrentStatus  string    `json:"currentStatus,omitempty"`
	Price          string    `json:"price,omitempty"`
	ActorID        string    `json:"actorId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// DiscountQuote is the outcome of a successful discount validation.
type DiscountQuote struct {
	Code   string
	Amount decimal.Decimal
}

// CakeConfiguration lists the active wizard options in display order.
type CakeConfiguration struct {
	Occasions []Occasion
	Sizes     []Size
	Flavors   []Flavor
}

type OrderListFilter = repositories.OrderListFilter

type CustomOrderListFilter = repositories.CustomOrderListFilter

type CheckoutCommand struct {
	CustomerID           string
	Items                []CheckoutItem
	DiscountCode         string
	Governorate          string
	PaymentMethod        string
	PaymentTransactionID string
}

// CheckoutItem is one requested line. UnitPrice, when set, is the price the customer saw and
// must match the catalogue.
type CheckoutItem struct {
	ProductID string
	Quantity  int
	UnitPrice *decimal.Decimal
	Size      string
	Color     string
}

type AdvanceOrderStatusCommand struct {
	OrderID         string
	TargetStatus    string
	ExpectedVersion *int64
	ActorID         string
	Reason          string
}

type RollbackOrderStatusCommand struct {
	OrderID         string
	ExpectedVersion *int64
	ActorID         string
	Reason          string
}

type CreateCustomOrderCommand struct {
	CustomerID     string
	CustomerName   string
	CustomerPhone  string
	OccasionID     string
	SizeID         string
	FlavorID       string
	Customization  string
	DesignImageRef string
	PickupAt       time.Time
	CustomerNotes  string
	PaymentMethod  string
}

type UpdateCustomOrderStatusCommand struct {
	OrderID         string
	TargetStatus    string
	FinalPrice      *decimal.Decimal
	AdminNotes      *string
	ExpectedVersion *int64
	ActorID         string
}
