package domain

import (
	"fmt"
	"strings"
)

// OrderStatus enumerates the lifecycle states of a merchandise order. The string value is the
// wire encoding shared by the REST API, persisted documents, and published notification events.
type OrderStatus string

const (
	// OrderStatusUnderReview is the initial state of every placed order.
	OrderStatusUnderReview OrderStatus = "under_review"
	// OrderStatusConfirmed indicates the shop accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped indicates the order left the shop.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered is terminal; the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is reachable from any state before delivery.
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusUnderReview,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// OrderStatuses returns every valid order status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// ParseOrderStatus converts a wire value into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	candidate := OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidStatus, value)
}

// Valid reports whether the status belongs to the closed set.
func (s OrderStatus) Valid() bool {
	for _, candidate := range orderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string { return string(s) }

// MarshalText implements encoding.TextMarshaler.
func (s OrderStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrInvalidStatus, string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OrderStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CustomOrderStatus enumerates the lifecycle states of a custom cake order.
type CustomOrderStatus string

const (
	CustomOrderStatusPending    CustomOrderStatus = "pending"
	CustomOrderStatusConfirmed  CustomOrderStatus = "confirmed"
	CustomOrderStatusInProgress CustomOrderStatus = "in_progress"
	CustomOrderStatusReady      CustomOrderStatus = "ready"
	CustomOrderStatusCompleted  CustomOrderStatus = "completed"
	CustomOrderStatusCancelled  CustomOrderStatus = "cancelled"
)

var customOrderStatuses = []CustomOrderStatus{
	CustomOrderStatusPending,
	CustomOrderStatusConfirmed,
	CustomOrderStatusInProgress,
	CustomOrderStatusReady,
	CustomOrderStatusCompleted,
	CustomOrderStatusCancelled,
}

// CustomOrderStatuses returns every valid custom order status in lifecycle order.
func CustomOrderStatuses() []CustomOrderStatus {
	out := make([]CustomOrderStatus, len(customOrderStatuses))
	copy(out, customOrderStatuses)
	return out
}

// ParseCustomOrderStatus converts a wire value into a CustomOrderStatus.
func ParseCustomOrderStatus(value string) (CustomOrderStatus, error) {
	candidate := CustomOrderStatus(strings.ToLower(strings.TrimSpace(value)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: unknown custom order status %q", ErrInvalidStatus, value)
}

// Valid reports whether the status belongs to the closed set.
func (s CustomOrderStatus) Valid() bool {
	for _, candidate := range customOrderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func (s CustomOrderStatus) String() string { return string(s) }

// MarshalText implements encoding.TextMarshaler.
func (s CustomOrderStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: unknown custom order status %q", ErrInvalidStatus, string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *CustomOrderStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseCustomOrderStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// OrderPaymentMethod lists the payment options offered at merchandise checkout.
type OrderPaymentMethod string

const (
	OrderPaymentCashOnDelivery OrderPaymentMethod = "cash_on_delivery"
	OrderPaymentCard           OrderPaymentMethod = "card"
	OrderPaymentOnline         OrderPaymentMethod = "online_payment"
)

// ParseOrderPaymentMethod validates a merchandise payment method.
func ParseOrderPaymentMethod(value string) (OrderPaymentMethod, error) {
	switch method := OrderPaymentMethod(strings.ToLower(strings.TrimSpace(value))); method {
	case OrderPaymentCashOnDelivery, OrderPaymentCard, OrderPaymentOnline:
		return method, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrInvalidPaymentMethod, value)
}

// CustomOrderPaymentMethod lists the payment options accepted for custom cakes.
type CustomOrderPaymentMethod string

const (
	CustomOrderPaymentCash            CustomOrderPaymentMethod = "cash"
	CustomOrderPaymentMobileWallet    CustomOrderPaymentMethod = "mobile_wallet_transfer"
	CustomOrderPaymentBankTransferApp CustomOrderPaymentMethod = "bank_transfer_app"
)

// ParseCustomOrderPaymentMethod validates a custom order payment method.
func ParseCustomOrderPaymentMethod(value string) (CustomOrderPaymentMethod, error) {
	switch method := CustomOrderPaymentMethod(strings.ToLower(strings.TrimSpace(value))); method {
	case CustomOrderPaymentCash, CustomOrderPaymentMobileWallet, CustomOrderPaymentBankTransferApp:
		return method, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrInvalidPaymentMethod, value)
}
