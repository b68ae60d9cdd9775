package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidStatus reports a value outside the closed status sets.
	ErrInvalidStatus = errors.New("domain: invalid status")
	// ErrInvalidPaymentMethod reports a value outside the closed payment method sets.
	ErrInvalidPaymentMethod = errors.New("domain: invalid payment method")
	// ErrInvalidTransition reports a status change the order lifecycle does not allow.
	ErrInvalidTransition = errors.New("domain: invalid status transition")
	// ErrNoPreviousStatus is returned when rolling back an order that is already in its initial state.
	ErrNoPreviousStatus = errors.New("domain: no previous status")
	// ErrInvalidFinalPrice reports a final price rejected by ValidateAmount.
	ErrInvalidFinalPrice = errors.New("domain: invalid final price")
)

// TransitionError identifies the rejected transition.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// Unwrap allows errors.Is(err, ErrInvalidTransition).
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// TransitionMeta describes who applied a status change and when.
type TransitionMeta struct {
	At      time.Time
	ActorID string
	Reason  string
}

// OrderStatusMachine owns the merchandise order lifecycle:
//
//	under_review -> confirmed -> shipped -> delivered
//
// with cancellation allowed from every state before delivery.
type OrderStatusMachine struct{}

var orderSuccessor = map[OrderStatus]OrderStatus{
	OrderStatusUnderReview: OrderStatusConfirmed,
	OrderStatusConfirmed:   OrderStatusShipped,
	OrderStatusShipped:     OrderStatusDelivered,
}

// Cancelled rolls back to under_review because the pre-cancellation state is not tracked.
var orderPredecessor = map[OrderStatus]OrderStatus{
	OrderStatusConfirmed: OrderStatusUnderReview,
	OrderStatusShipped:   OrderStatusConfirmed,
	OrderStatusDelivered: OrderStatusShipped,
	OrderStatusCancelled: OrderStatusUnderReview,
}

// CanAdvance reports whether target is reachable from current in one step.
func (OrderStatusMachine) CanAdvance(current, target OrderStatus) bool {
	if target == OrderStatusCancelled {
		return current.Valid() && current != OrderStatusDelivered && current != OrderStatusCancelled
	}
	next, ok := orderSuccessor[current]
	return ok && next == target
}

// Advance moves the order to target. The returned order carries the new status, an appended
// history entry and the updated timestamp; the input is never modified.
func (m OrderStatusMachine) Advance(order Order, target OrderStatus, meta TransitionMeta) (Order, error) {
	if !m.CanAdvance(order.Status, target) {
		return Order{}, &TransitionError{From: order.Status, To: target}
	}
	return applyOrderStatus(order, target, meta), nil
}

// Previous returns the predecessor of current in the forward sequence.
func (OrderStatusMachine) Previous(current OrderStatus) (OrderStatus, bool) {
	prev, ok := orderPredecessor[current]
	return prev, ok
}

// Rollback reverts the order to its immediate predecessor.
func (m OrderStatusMachine) Rollback(order Order, meta TransitionMeta) (Order, error) {
	prev, ok := m.Previous(order.Status)
	if !ok {
		if order.Status == OrderStatusUnderReview {
			return Order{}, ErrNoPreviousStatus
		}
		return Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, string(order.Status))
	}
	return applyOrderStatus(order, prev, meta), nil
}

func applyOrderStatus(order Order, target OrderStatus, meta TransitionMeta) Order {
	at := meta.At.UTC()
	updated := order
	updated.Items = append([]OrderItem(nil), order.Items...)
	updated.StatusHistory = append(append([]StatusChange(nil), order.StatusHistory...), StatusChange{
		From:    string(order.Status),
		To:      string(target),
		ActorID: strings.TrimSpace(meta.ActorID),
		Reason:  strings.TrimSpace(meta.Reason),
		At:      at,
	})
	updated.Status = target
	updated.UpdatedAt = at
	return updated
}

// CustomOrderUpdate carries an administrative change to a custom order. Nil fields are left
// untouched; a non-nil AdminNotes replaces the previous notes entirely.
type CustomOrderUpdate struct {
	Status     CustomOrderStatus
	FinalPrice *decimal.Decimal
	AdminNotes *string
}

// CustomOrderStatusMachine governs custom cake orders. Any status in the closed set may be
// targeted from any other since production of a bespoke cake is not strictly linear.
type CustomOrderStatusMachine struct{}

// UpdateStatus validates the update as a whole and applies it, or returns an error and leaves
// the order untouched.
func (CustomOrderStatusMachine) UpdateStatus(order CustomOrder, update CustomOrderUpdate, meta TransitionMeta) (CustomOrder, error) {
	if !update.Status.Valid() {
		return CustomOrder{}, fmt.Errorf("%w: unknown custom order status %q", ErrInvalidStatus, string(update.Status))
	}
	if update.FinalPrice != nil {
		if err := ValidateAmount(*update.FinalPrice); err != nil {
			return CustomOrder{}, fmt.Errorf("%w: %w", ErrInvalidFinalPrice, err)
		}
	}

	at := meta.At.UTC()
	updated := order
	updated.StatusHistory = append([]StatusChange(nil), order.StatusHistory...)
	if update.Status != order.Status {
		updated.StatusHistory = append(updated.StatusHistory, StatusChange{
			From:    string(order.Status),
			To:      string(update.Status),
			ActorID: strings.TrimSpace(meta.ActorID),
			Reason:  strings.TrimSpace(meta.Reason),
			At:      at,
		})
	}
	updated.Status = update.Status
	if update.FinalPrice != nil {
		price := *update.FinalPrice
		updated.FinalPrice = &price
	}
	if update.AdminNotes != nil {
		updated.AdminNotes = *update.AdminNotes
	}
	updated.UpdatedAt = at
	return updated, nil
}
