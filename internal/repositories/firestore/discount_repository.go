package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

const discountCodesCollection = "discountCodes"

// Documents are keyed by the normalised (upper-case) code.
type discountDocument struct {
	Kind              string    `firestore:"kind"`
	Value             string    `firestore:"value"`
	MinOrderAmount    *string   `firestore:"minOrderAmount,omitempty"`
	MaxDiscountAmount *string   `firestore:"maxDiscountAmount,omitempty"`
	UsageLimit        *int64    `firestore:"usageLimit,omitempty"`
	UsageCount        int64     `firestore:"usageCount"`
	StartsAt          time.Time `firestore:"startsAt"`
	EndsAt            time.Time `firestore:"endsAt"`
	Active            bool      `firestore:"active"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

// DiscountRepository implements repositories.DiscountRepository on Firestore.
type DiscountRepository struct {
	provider  *pfirestore.Provider
	discounts *pfirestore.BaseRepository[discountDocument]
	clock     func() time.Time
}

// NewDiscountRepository constructs the discount repository.
func NewDiscountRepository(provider *pfirestore.Provider, clock func() time.Time) (*DiscountRepository, error) {
	if provider == nil {
		return nil, errors.New("discount repository requires firestore provider")
	}
	if clock == nil {
		clock = time.Now
	}
	return &DiscountRepository{
		provider:  provider,
		discounts: pfirestore.NewBaseRepository[discountDocument](provider, discountCodesCollection),
		clock:     clock,
	}, nil
}

func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	doc, err := r.discounts.Get(ctx, domain.NormalizeDiscountCode(code))
	if err != nil {
		return domain.DiscountCode{}, err
	}
	return decodeDiscount(doc.ID, doc.Data)
}

// IncrementUsage reads the counter and writes the increment in one transaction, so two
// redemptions racing for the last use cannot both succeed.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, code string) (domain.DiscountCode, error) {
	key := domain.NormalizeDiscountCode(code)
	now := r.clock().UTC()

	var updated domain.DiscountCode
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		doc, err := r.discounts.Get(ctx, key)
		if err != nil {
			return err
		}
		current, err := decodeDiscount(doc.ID, doc.Data)
		if err != nil {
			return err
		}
		if current.Exhausted() {
			return repositories.NewCounterError(repositories.CounterErrorExhausted,
				fmt.Sprintf("discount %s reached its usage limit of %d", key, *current.UsageLimit), nil)
		}
		current.UsageCount++
		current.UpdatedAt = now
		if err := r.discounts.Set(ctx, key, encodeDiscount(current)); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) {
			return domain.DiscountCode{}, counterErr
		}
		return domain.DiscountCode{}, err
	}
	return updated, nil
}

func encodeDiscount(discount domain.DiscountCode) discountDocument {
	return discountDocument{
		Kind:              string(discount.Kind),
		Value:             formatMoney(discount.Value),
		MinOrderAmount:    formatMoneyPtr(discount.MinOrderAmount),
		MaxDiscountAmount: formatMoneyPtr(discount.MaxDiscountAmount),
		UsageLimit:        discount.UsageLimit,
		UsageCount:        discount.UsageCount,
		StartsAt:          discount.StartsAt.UTC(),
		EndsAt:            discount.EndsAt.UTC(),
		Active:            discount.Active,
		CreatedAt:         discount.CreatedAt.UTC(),
		UpdatedAt:         discount.UpdatedAt.UTC(),
	}
}

func decodeDiscount(id string, doc discountDocument) (domain.DiscountCode, error) {
	value, err := parseMoney("value", doc.Value)
	if err != nil {
		return domain.DiscountCode{}, err
	}
	minAmount, err := parseMoneyPtr("minOrderAmount", doc.MinOrderAmount)
	if err != nil {
		return domain.DiscountCode{}, err
	}
	maxAmount, err := parseMoneyPtr("maxDiscountAmount", doc.MaxDiscountAmount)
	if err != nil {
		return domain.DiscountCode{}, err
	}
	return domain.DiscountCode{
		Code:              id,
		Kind:              domain.DiscountKind(doc.Kind),
		Value:             value,
		MinOrderAmount:    minAmount,
		MaxDiscountAmount: maxAmount,
		UsageLimit:        doc.UsageLimit,
		UsageCount:        doc.UsageCount,
		StartsAt:          doc.StartsAt.UTC(),
		EndsAt:            doc.EndsAt.UTC(),
		Active:            doc.Active,
		CreatedAt:         doc.CreatedAt.UTC(),
		UpdatedAt:         doc.UpdatedAt.UTC(),
	}, nil
}
