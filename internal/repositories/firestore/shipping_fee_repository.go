package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
)

const shippingFeesCollection = "shippingFees"

// Documents are keyed by the lower-cased governorate name.
type shippingFeeDocument struct {
	Name              string `firestore:"name"`
	Fee               string `firestore:"fee"`
	EstimatedDelivery string `firestore:"estimatedDelivery,omitempty"`
	Active            bool   `firestore:"active"`
}

// ShippingFeeRepository implements repositories.ShippingFeeRepository on Firestore.
type ShippingFeeRepository struct {
	fees *pfirestore.BaseRepository[shippingFeeDocument]
}

// NewShippingFeeRepository constructs the shipping fee repository.
func NewShippingFeeRepository(provider *pfirestore.Provider) (*ShippingFeeRepository, error) {
	if provider == nil {
		return nil, errors.New("shipping fee repository requires firestore provider")
	}
	return &ShippingFeeRepository{
		fees: pfirestore.NewBaseRepository[shippingFeeDocument](provider, shippingFeesCollection),
	}, nil
}

func (r *ShippingFeeRepository) FindByGovernorate(ctx context.Context, governorate string) (domain.ShippingFee, error) {
	doc, err := r.fees.Get(ctx, governorateKey(governorate))
	if err != nil {
		return domain.ShippingFee{}, err
	}
	return decodeShippingFee(doc.ID, doc.Data)
}

func (r *ShippingFeeRepository) List(ctx context.Context, activeOnly bool) ([]domain.ShippingFee, error) {
	docs, err := r.fees.Query(ctx, func(q firestore.Query) firestore.Query {
		if activeOnly {
			q = q.Where("active", "==", true)
		}
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.ShippingFee, 0, len(docs))
	for _, doc := range docs {
		fee, err := decodeShippingFee(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, fee)
	}
	return out, nil
}

func governorateKey(governorate string) string {
	return strings.ToLower(strings.TrimSpace(governorate))
}

func encodeShippingFee(fee domain.ShippingFee) shippingFeeDocument {
	return shippingFeeDocument{
		Name:              fee.Name,
		Fee:               formatMoney(fee.Fee),
		EstimatedDelivery: fee.EstimatedDelivery,
		Active:            fee.Active,
	}
}

func decodeShippingFee(id string, doc shippingFeeDocument) (domain.ShippingFee, error) {
	amount, err := parseMoney("fee", doc.Fee)
	if err != nil {
		return domain.ShippingFee{}, err
	}
	return domain.ShippingFee{
		Governorate:       id,
		Name:              doc.Name,
		Fee:               amount,
		EstimatedDelivery: doc.EstimatedDelivery,
		Active:            doc.Active,
	}, nil
}
