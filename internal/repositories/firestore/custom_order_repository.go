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

const customOrdersCollection = "customOrders"

type customOrderDocument struct {
	OrderNumber    string                 `firestore:"orderNumber"`
	CustomerID     string                 `firestore:"customerId,omitempty"`
	CustomerName   string                 `firestore:"customerName"`
	CustomerPhone  string                 `firestore:"customerPhone"`
	OccasionID     string                 `firestore:"occasionId"`
	SizeID         string                 `firestore:"sizeId"`
	FlavorID       string                 `firestore:"flavorId"`
	Customization  string                 `firestore:"customization,omitempty"`
	DesignImageRef string                 `firestore:"designImageRef,omitempty"`
	PickupAt       time.Time              `firestore:"pickupAt"`
	CustomerNotes  string                 `firestore:"customerNotes,omitempty"`
	PaymentMethod  string                 `firestore:"paymentMethod"`
	Status         string                 `firestore:"status"`
	EstimatedPrice string                 `firestore:"estimatedPrice"`
	FinalPrice     *string                `firestore:"finalPrice,omitempty"`
	AdminNotes     string                 `firestore:"adminNotes,omitempty"`
	StatusHistory  []statusChangeDocument `firestore:"statusHistory,omitempty"`
	Version        int64                  `firestore:"version"`
	CreatedAt      time.Time              `firestore:"createdAt"`
	UpdatedAt      time.Time              `firestore:"updatedAt"`
}

// CustomOrderRepository implements repositories.CustomOrderRepository on Firestore.
type CustomOrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[customOrderDocument]
}

// NewCustomOrderRepository constructs the custom order repository.
func NewCustomOrderRepository(provider *pfirestore.Provider) (*CustomOrderRepository, error) {
	if provider == nil {
		return nil, errors.New("custom order repository requires firestore provider")
	}
	return &CustomOrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[customOrderDocument](provider, customOrdersCollection),
	}, nil
}

func (r *CustomOrderRepository) Insert(ctx context.Context, order domain.CustomOrder) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("custom order repository: order id is required")
	}
	return r.orders.Create(ctx, order.ID, encodeCustomOrder(order))
}

func (r *CustomOrderRepository) Update(ctx context.Context, order domain.CustomOrder, expectedVersion int64) (domain.CustomOrder, error) {
	if strings.TrimSpace(order.ID) == "" {
		return domain.CustomOrder{}, errors.New("custom order repository: order id is required")
	}
	order.Version = expectedVersion + 1
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		current, err := r.orders.Get(ctx, order.ID)
		if err != nil {
			return err
		}
		if current.Data.Version != expectedVersion {
			return pfirestore.ConflictError("custom_orders.update",
				fmt.Errorf("custom order %s is at version %d, expected %d", order.ID, current.Data.Version, expectedVersion))
		}
		return r.orders.Set(ctx, order.ID, encodeCustomOrder(order))
	})
	if err != nil {
		return domain.CustomOrder{}, err
	}
	return order, nil
}

func (r *CustomOrderRepository) FindByID(ctx context.Context, orderID string) (domain.CustomOrder, error) {
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.CustomOrder{}, err
	}
	return decodeCustomOrder(doc.ID, doc.Data)
}

func (r *CustomOrderRepository) List(ctx context.Context, filter repositories.CustomOrderListFilter) (domain.Page[domain.CustomOrder], error) {
	build := func(q firestore.Query) firestore.Query {
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
		return domain.Page[domain.CustomOrder]{}, err
	}
	items := make([]domain.CustomOrder, 0, len(docs))
	for _, doc := range docs {
		order, err := decodeCustomOrder(doc.ID, doc.Data)
		if err != nil {
			return domain.Page[domain.CustomOrder]{}, err
		}
		items = append(items, order)
	}
	return domain.NewPage(items, total, filter.PageNumber, filter.PageSize), nil
}

func (r *CustomOrderRepository) Delete(ctx context.Context, orderID string) error {
	return r.orders.Delete(ctx, strings.TrimSpace(orderID))
}

func encodeCustomOrder(order domain.CustomOrder) customOrderDocument {
	return customOrderDocument{
		OrderNumber:    order.OrderNumber,
		CustomerID:     order.CustomerID,
		CustomerName:   order.CustomerName,
		CustomerPhone:  order.CustomerPhone,
		OccasionID:     order.OccasionID,
		SizeID:         order.SizeID,
		FlavorID:       order.FlavorID,
		Customization:  order.Customization,
		DesignImageRef: order.DesignImageRef,
		PickupAt:       order.PickupAt.UTC(),
		CustomerNotes:  order.CustomerNotes,
		PaymentMethod:  string(order.PaymentMethod),
		Status:         string(order.Status),
		EstimatedPrice: formatMoney(order.EstimatedPrice),
		FinalPrice:     formatMoneyPtr(order.FinalPrice),
		AdminNotes:     order.AdminNotes,
		StatusHistory:  encodeStatusHistory(order.StatusHistory),
		Version:        order.Version,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
}

func decodeCustomOrder(id string, doc customOrderDocument) (domain.CustomOrder, error) {
	estimate, err := parseMoney("estimatedPrice", doc.EstimatedPrice)
	if err != nil {
		return domain.CustomOrder{}, err
	}
	final, err := parseMoneyPtr("finalPrice", doc.FinalPrice)
	if err != nil {
		return domain.CustomOrder{}, err
	}
	return domain.CustomOrder{
		ID:             id,
		OrderNumber:    doc.OrderNumber,
		CustomerID:     doc.CustomerID,
		CustomerName:   doc.CustomerName,
		CustomerPhone:  doc.CustomerPhone,
		OccasionID:     doc.OccasionID,
		SizeID:         doc.SizeID,
		FlavorID:       doc.FlavorID,
		Customization:  doc.Customization,
		DesignImageRef: doc.DesignImageRef,
		PickupAt:       doc.PickupAt.UTC(),
		CustomerNotes:  doc.CustomerNotes,
		PaymentMethod:  domain.CustomOrderPaymentMethod(doc.PaymentMethod),
		Status:         domain.CustomOrderStatus(doc.Status),
		EstimatedPrice: estimate,
		FinalPrice:     final,
		AdminNotes:     doc.AdminNotes,
		StatusHistory:  decodeStatusHistory(doc.StatusHistory),
		Version:        doc.Version,
		CreatedAt:      doc.CreatedAt.UTC(),
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}, nil
}
