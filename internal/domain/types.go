package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Page is a page-number based listing result.
type Page[T any] struct {
	Items      []T
	TotalItems int
	PageNumber int
	PageSize   int
	TotalPages int
}

// NewPage assembles a Page and derives the total page count.
func NewPage[T any](items []T, totalItems, pageNumber, pageSize int) Page[T] {
	totalPages := 0
	if pageSize > 0 && totalItems > 0 {
		totalPages = (totalItems + pageSize - 1) / pageSize
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		TotalItems: totalItems,
		PageNumber: pageNumber,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// Order is a placed merchandise order.
type Order struct {
	ID                   string
	OrderNumber          string
	CustomerID           string
	Items                []OrderItem
	Subtotal             decimal.Decimal
	DiscountCode         string
	DiscountAmount       decimal.Decimal
	Total                decimal.Decimal
	Governorate          string
	ShippingFee          decimal.Decimal
	PaymentMethod        OrderPaymentMethod
	PaymentTransactionID string
	Status               OrderStatus
	StatusHistory        []StatusChange
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Product is the read model of a merchandise product. Its CRUD lives in the catalogue admin;
// checkout only reads the current price and name.
type Product struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Active bool
}

// OrderItem captures a purchased product line. UnitPrice is frozen at checkout.
type OrderItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Size        string
	Color       string
}

// LineTotal returns UnitPrice × Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StatusChange records a single applied transition for audit purposes.
type StatusChange struct {
	From    string
	To      string
	ActorID string
	Reason  string
	At      time.Time
}

// CustomOrder is a bespoke cake order assembled from catalog choices.
type CustomOrder struct {
	ID             string
	OrderNumber    string
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
	PaymentMethod  CustomOrderPaymentMethod
	Status         CustomOrderStatus
	EstimatedPrice decimal.Decimal
	FinalPrice     *decimal.Decimal
	AdminNotes     string
	StatusHistory  []StatusChange
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectivePrice is the price shown to the customer: the final price once an administrator set
// one, otherwise the estimate captured at submission.
func (o CustomOrder) EffectivePrice() decimal.Decimal {
	if o.FinalPrice != nil {
		return *o.FinalPrice
	}
	return o.EstimatedPrice
}

// Occasion is a cake category that may override per-size prices.
type Occasion struct {
	ID           string
	Name         string
	Icon         string
	DisplayOrder int
	Active       bool
	SizePrices   []OccasionSizePrice
}

// OccasionSizePrice overrides a master size's default price for one occasion.
type OccasionSizePrice struct {
	SizeID string
	Price  decimal.Decimal
}

// Size is a catalog-wide size tier.
type Size struct {
	ID           string
	Name         string
	Description  string
	DefaultPrice decimal.Decimal
	DisplayOrder int
	Active       bool
}

// Flavor adds AdditionalPrice on top of the resolved size price.
type Flavor struct {
	ID              string
	Name            string
	Color           string
	AdditionalPrice decimal.Decimal
	DisplayOrder    int
	Active          bool
}

// DiscountKind distinguishes percentage and fixed-amount codes.
type DiscountKind string

const (
	DiscountKindPercentage DiscountKind = "percentage"
	DiscountKindFixed      DiscountKind = "fixed"
)

// DiscountCode is a redeemable checkout code. UsageCount only ever grows.
type DiscountCode struct {
	Code              string
	Kind              DiscountKind
	Value             decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        *int64
	UsageCount        int64
	StartsAt          time.Time
	EndsAt            time.Time
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ShippingFee is the delivery fee charged for one governorate.
type ShippingFee struct {
	Governorate       string
	Name              string
	Fee               decimal.Decimal
	EstimatedDelivery string
	Active            bool
}
