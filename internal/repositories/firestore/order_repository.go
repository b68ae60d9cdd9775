package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

const ordersCollection = "orders"

type orderDocument struct {
	OrderNumber          string                 `firestore:"orderNumber"`
	CustomerID           string                 `firestore:"customerId"`
	Items                []orderItemDocument    `firestore:"items"`
	Subtotal             string                 `firestore:"subtotal"`
	DiscountCode         string                 `firestore:"discountCode,omitempty"`
	DiscountAmount       string                 `firestore:"discountAmount"`
	Total                string                 `firestore:"total"`
	Governorate          string                 `firestore:"governorate"`
	ShippingFee          string                 `firestore:"shippingFee"`
	PaymentMethod        string                 `firestore:"paymentMethod"`
	PaymentTransactionID string                 `firestore:"paymentTransactionId,omitempty"`
	Status               string                 `firestore:"status"`
	StatusHistory        []statusChangeDocument `firestore:"statusHistory,omitempty"`
	Version              int64                  `firestore:"version"`
	CreatedAt            time.Time              `firestore:"createdAt"`
	UpdatedAt            time.Time              `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID   string `firestore:"productId"`
	ProductName string `firestore:"productName"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   string `firestore:"unitPrice"`
	Size        string `firestore:"size,omitempty"`
	Color       string `firestore:"color,omitempty"`
}

type statusChangeDocument struct {
	From    string    `firestore:"from"`
	To      string    `firestore:"to"`
	ActorID string    `firestore:"actorId,omitempty"`
	Reason  string    `firestore:"reason,omitempty"`
	At      time.Time `firestore:"at"`
}

// OrderRepository implements repositories.OrderRepository on Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs the order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
	}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	return r.orders.Create(ctx, order.ID, encodeOrder(order))
}

// Update compares versions and writes inside one transaction so a concurrent writer surfaces as a conflict.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedVersion int64) (domain.Order, error) {
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	order.Version = expectedVersion + 1
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		current, err := r.orders.Get(ctx, order.ID)
		if err != nil {
			return err
		}
		if current.Data.Version != expectedVersion {
			return pfirestore.ConflictError("orders.update",
				fmt.Errorf("order %s is at version %d, expected %d", order.ID, current.Data.Version, expectedVersion))
		}
		return r.orders.Set(ctx, order.ID, encodeOrder(order))
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data)
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	build := func(q firestore.Query) firestore.Query {
		if filter.CustomerID != "" {
			q = q.Where("customerId", "==", filter.CustomerID)
		}
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			q = q.Where("status", "in", statuses)
		}
		return q.OrderBy("createdAt", firestore.Desc)
	}
	docs, total, err := r.orders.Page(ctx, build, filter.PageNumber, filter.PageSize)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := decodeOrder(doc.ID, doc.Data)
		if err != nil {
			return domain.Page[domain.Order]{}, err
		}
		items = append(items, order)
	}
	return domain.NewPage(items, total, filter.PageNumber, filter.PageSize), nil
}

func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	return r.orders.Delete(ctx, strings.TrimSpace(orderID))
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   formatMoney(item.UnitPrice),
			Size:        item.Size,
			Color:       item.Color,
		})
	}
	return orderDocument{
		OrderNumber:          order.OrderNumber,
		CustomerID:           order.CustomerID,
		Items:                items,
		Subtotal:             formatMoney(order.Subtotal),
		DiscountCode:         order.DiscountCode,
		DiscountAmount:       formatMoney(order.DiscountAmount),
		Total:                formatMoney(order.Total),
		Governorate:          order.Governorate,
		ShippingFee:          formatMoney(order.ShippingFee),
		PaymentMethod:        string(order.PaymentMethod),
		PaymentTransactionID: order.PaymentTransactionID,
		Status:               string(order.Status),
		StatusHistory:        encodeStatusHistory(order.StatusHistory),
		Version:              order.Version,
		CreatedAt:            order.CreatedAt.UTC(),
		UpdatedAt:            order.UpdatedAt.UTC(),
	}
}

func decodeOrder(id string, doc orderDocument) (domain.Order, error) {
	order := domain.Order{
		ID:                   id,
		OrderNumber:          doc.OrderNumber,
		CustomerID:           doc.CustomerID,
		DiscountCode:         doc.DiscountCode,
		Governorate:          doc.Governorate,
		PaymentMethod:        domain.OrderPaymentMethod(doc.PaymentMethod),
		PaymentTransactionID: doc.PaymentTransactionID,
		Status:               domain.OrderStatus(doc.Status),
		StatusHistory:        decodeStatusHistory(doc.StatusHistory),
		Version:              doc.Version,
		CreatedAt:            doc.CreatedAt.UTC(),
		UpdatedAt:            doc.UpdatedAt.UTC(),
	}
	var err error
	if order.Subtotal, err = parseMoney("subtotal", doc.Subtotal); err != nil {
		return domain.Order{}, err
	}
	if order.DiscountAmount, err = parseMoney("discountAmount", doc.DiscountAmount); err != nil {
		return domain.Order{}, err
	}
	if order.Total, err = parseMoney("total", doc.Total); err != nil {
		return domain.Order{}, err
	}
	if order.ShippingFee, err = parseMoney("shippingFee", doc.ShippingFee); err != nil {
		return domain.Order{}, err
	}
	order.Items = make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		price, err := parseMoney("unitPrice", item.UnitPrice)
		if err != nil {
			return domain.Order{}, err
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   price,
			Size:        item.Size,
			Color:       item.Color,
		})
	}
	return order, nil
}

func encodeStatusHistory(history []domain.StatusChange) []statusChangeDocument {
	if len(history) == 0 {
		return nil
	}
	out := make([]statusChangeDocument, 0, len(history))
	for _, change := range history {
		out = append(out, statusChangeDocument{
			From:    change.From,
			To:      change.To,
			ActorID: change.ActorID,
			Reason:  change.Reason,
			At:      change.At.UTC(),
		})
	}
	return out
}

func decodeStatusHistory(docs []statusChangeDocument) []domain.StatusChange {
	if len(docs) == 0 {
		return nil
	}
	out := make([]domain.StatusChange, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.StatusChange{
			From:    doc.From,
			To:      doc.To,
			ActorID: doc.ActorID,
			Reason:  doc.Reason,
			At:      doc.At.UTC(),
		})
	}
	return out
}
