package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

const discountMeterName = "github.com/crumbhouse/bakery-api/internal/services"

// DiscountLedgerDeps bundles constructor inputs for the discount ledger.
type DiscountLedgerDeps struct {
	Discounts repositories.DiscountRepository
	Meter     metric.Meter
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type discountLedger struct {
	repo        repositories.DiscountRepository
	redemptions metric.Int64Counter
	clock       func() time.Time
	logger      func(context.Context, string, map[string]any)
}

// NewDiscountLedger constructs a DiscountLedger.
func NewDiscountLedger(deps DiscountLedgerDeps) (DiscountLedger, error) {
	if deps.Discounts == nil {
		return nil, errors.New("discount ledger: discount repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(discountMeterName)
	}
	redemptions, err := meter.Int64Counter("bakery.discount.redemptions",
		metric.WithDescription("Number of discount code usages recorded at checkout"),
	)
	if err != nil {
		return nil, err
	}
	return &discountLedger{repo: deps.Discounts, redemptions: redemptions, clock: clock, logger: logger}, nil
}

// Validate checks code in a fixed order: existence, active flag, validity window, minimum order
// amount and finally remaining uses. The first failed check is reported.
func (l *discountLedger) Validate(ctx context.Context, code string, orderAmount decimal.Decimal, now time.Time) (DiscountQuote, error) {
	normalized := domain.NormalizeDiscountCode(code)
	if normalized == "" {
		return DiscountQuote{}, newDiscountRejected(normalized, domain.DiscountRejectionUnknown)
	}

	discount, err := l.repo.FindByCode(ctx, normalized)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return DiscountQuote{}, newDiscountRejected(normalized, domain.DiscountRejectionUnknown)
		}
		return DiscountQuote{}, repositoryErrorMapping{}.mapError(err)
	}

	amount, rejection := discount.Evaluate(orderAmount, now)
	if rejection != domain.DiscountRejectionNone {
		return DiscountQuote{}, newDiscountRejected(normalized, rejection)
	}
	return DiscountQuote{Code: discount.Code, Amount: amount}, nil
}

// RecordUsage consumes one use of the code. An inactive or out-of-window code is refused before
// anything is written. The increment itself is conditional on the code being below its limit,
// so concurrent redemptions never overshoot it.
func (l *discountLedger) RecordUsage(ctx context.Context, code string) (DiscountCode, error) {
	normalized := domain.NormalizeDiscountCode(code)
	if normalized == "" {
		return DiscountCode{}, newDiscountRejected(normalized, domain.DiscountRejectionUnknown)
	}

	current, err := l.repo.FindByCode(ctx, normalized)
	if err != nil {
		return DiscountCode{}, l.usageError(normalized, err)
	}
	if rejection := current.Redeemable(l.clock()); rejection != domain.DiscountRejectionNone {
		return DiscountCode{}, newDiscountRejected(normalized, rejection)
	}

	updated, err := l.repo.IncrementUsage(ctx, normalized)
	if err != nil {
		return DiscountCode{}, l.usageError(normalized, err)
	}

	l.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("code", updated.Code)))
	l.logger(ctx, "discount.usage.recorded", map[string]any{
		"code":       updated.Code,
		"usageCount": updated.UsageCount,
	})
	return updated, nil
}

func (l *discountLedger) usageError(code string, err error) error {
	if repositories.IsCounterExhausted(err) {
		return newDiscountRejected(code, domain.DiscountRejectionUsageExhausted)
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return newDiscountRejected(code, domain.DiscountRejectionUnknown)
	}
	return repositoryErrorMapping{}.mapError(err)
}
