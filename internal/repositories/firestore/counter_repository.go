package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

const countersCollection = "counters"

type counterDocument struct {
	Value     int64     `firestore:"currentValue"`
	Step      int64     `firestore:"step"`
	Max       *int64    `firestore:"maxValue,omitempty"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CounterRepository hands out order and custom order sequence numbers. Numbers are drawn in their
// own transaction, so a checkout that fails afterwards leaves a gap.
type CounterRepository struct {
	provider *pfirestore.Provider
	docs     *pfirestore.BaseRepository[counterDocument]
	clock    func() time.Time
}

func NewCounterRepository(provider *pfirestore.Provider, clock func() time.Time) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	if clock == nil {
		clock = time.Now
	}
	return &CounterRepository{
		provider: provider,
		docs:     pfirestore.NewBaseRepository[counterDocument](provider, countersCollection),
		clock:    clock,
	}, nil
}

func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id, err := r.counterID(counterID)
	if err != nil {
		return 0, err
	}

	var issued int64
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.docs.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		var doc counterDocument
		snapshot, err := tx.Get(ref)
		if status.Code(err) == codes.OK {
			if err := snapshot.DataTo(&doc); err != nil {
				return fmt.Errorf("decode counter %s: %w", id, err)
			}
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		next, err := repositories.AdvanceCounter(id, doc.Value, doc.Step, step, doc.Max)
		if err != nil {
			return err
		}
		doc.Value = next
		doc.UpdatedAt = r.clock().UTC()
		if doc.Step == 0 {
			doc.Step = max(step, 1)
		}
		issued = next
		return tx.Set(ref, doc)
	})
	switch {
	case err == nil:
		return issued, nil
	case errors.As(err, new(*repositories.CounterError)):
		return 0, err
	default:
		return 0, pfirestore.WrapError("counters.next", err)
	}
}

// Configure merges step, bound and starting value into a counter, creating it when missing.
func (r *CounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	id, err := r.counterID(counterID)
	if err != nil {
		return err
	}
	if cfg.Step < 0 {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", cfg.Step), nil)
	}

	updates := map[string]any{"updatedAt": r.clock().UTC()}
	if cfg.Step > 0 {
		updates["step"] = cfg.Step
	}
	if cfg.MaxValue != nil {
		updates["maxValue"] = *cfg.MaxValue
	}
	if cfg.InitialValue != nil {
		updates["currentValue"] = *cfg.InitialValue
	}

	ref, err := r.docs.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, updates, firestore.MergeAll)
	return pfirestore.WrapError("counters.configure", err)
}

func (r *CounterRepository) counterID(raw string) (string, error) {
	if r == nil || r.provider == nil {
		return "", errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	return id, nil
}
