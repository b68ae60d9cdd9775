package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates the order changed since it was read.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderReferenced indicates the order is still referenced by payment records.
	ErrOrderReferenced = errors.New("order: referenced by payment records")

	ErrCustomOrderInvalidInput = errors.New("custom order: invalid input")
	ErrCustomOrderNotFound     = errors.New("custom order: not found")
	ErrCustomOrderConflict     = errors.New("custom order: conflict")

	// ErrUnknownEntity indicates a referenced catalogue record or shipping zone does not exist
	// or is not offered.
	ErrUnknownEntity = errors.New("catalog: unknown entity")

	// ErrDiscountRejected is matched by every *DiscountRejectedError.
	ErrDiscountRejected = errors.New("discount: code rejected")

	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("service unavailable")
)

// DiscountRejectedError explains why a discount code could not be applied.
type DiscountRejectedError struct {
	Code   string
	Reason domain.DiscountRejection
}

func (e *DiscountRejectedError) Error() string {
	return fmt.Sprintf("discount code %q rejected: %s", e.Code, e.Reason.Message())
}

// Is reports a match against ErrDiscountRejected.
func (e *DiscountRejectedError) Is(target error) bool {
	return target == ErrDiscountRejected
}

func newDiscountRejected(code string, reason domain.DiscountRejection) error {
	return &DiscountRejectedError{Code: code, Reason: reason}
}

// repositoryErrorMapping lists the sentinel errors a service reports for each repository
// failure category.
type repositoryErrorMapping struct {
	notFound error
	conflict error
}

func (m repositoryErrorMapping) mapError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound() && m.notFound != nil:
			return fmt.Errorf("%w: %v", m.notFound, err)
		case repoErr.IsConflict() && m.conflict != nil:
			return fmt.Errorf("%w: %v", m.conflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
