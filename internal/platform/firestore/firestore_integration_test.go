//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"

	pconfig "github.com/crumbhouse/bakery-api/internal/platform/config"
	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
)

type tray struct {
	Label  string `firestore:"label"`
	Loaves int    `firestore:"loaves"`
}

type classified interface {
	IsNotFound() bool
	IsConflict() bool
}

// Run against a local emulator, e.g.
// gcloud emulators firestore start --host-port=127.0.0.1:8681 and FIRESTORE_EMULATOR_HOST=127.0.0.1:8681.
func emulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "bakery-it", EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := provider.Ping(ctx); err != nil {
		t.Fatalf("ping emulator: %v", err)
	}
	return provider
}

func TestBaseRepositoryAgainstEmulator(t *testing.T) {
	provider := emulatorProvider(t)
	trays := pfirestore.NewBaseRepository[tray](provider, "trays_"+ulid.Make().String())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := trays.Create(ctx, "tray-1", tray{Label: "sourdough", Loaves: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	var cls classified
	if err := trays.Create(ctx, "tray-1", tray{Label: "duplicate"}); !errors.As(err, &cls) || !cls.IsConflict() {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}
	if _, err := trays.Get(ctx, "tray-404"); !errors.As(err, &cls) || !cls.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}

	doc, err := trays.Get(ctx, "tray-1")
	if err != nil || doc.Data.Label != "sourdough" || doc.UpdateTime.IsZero() {
		t.Fatalf("unexpected document %#v (%v)", doc, err)
	}

	for i := 2; i <= 4; i++ {
		if err := trays.Set(ctx, fmt.Sprintf("tray-%d", i), tray{Label: "rye", Loaves: i}); err != nil {
			t.Fatalf("set tray-%d: %v", i, err)
		}
	}
	page, total, err := trays.Page(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("loaves", firestore.Desc)
	}, 2, 3)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if total != 4 || len(page) != 1 || page[0].ID != "tray-1" {
		t.Fatalf("unexpected second page total=%d docs=%v", total, page)
	}
}

func TestUnitOfWorkAgainstEmulator(t *testing.T) {
	provider := emulatorProvider(t)
	trays := pfirestore.NewBaseRepository[tray](provider, "trays_"+ulid.Make().String())
	uow := pfirestore.NewUnitOfWork(provider)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, id := range []string{"a", "b"} {
		if err := trays.Set(ctx, id, tray{Label: id, Loaves: 1}); err != nil {
			t.Fatalf("set %s: %v", id, err)
		}
	}

	err := uow.RunInTx(ctx, func(ctx context.Context) error {
		current, err := trays.Get(ctx, "a")
		if err != nil {
			return err
		}
		current.Data.Loaves += 10
		if err := trays.Set(ctx, "a", current.Data); err != nil {
			return err
		}
		return trays.Delete(ctx, "b")
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if doc, err := trays.Get(ctx, "a"); err != nil || doc.Data.Loaves != 11 {
		t.Fatalf("expected 11 loaves after commit, got %#v (%v)", doc, err)
	}
	if n, err := trays.Count(ctx, nil); err != nil || n != 1 {
		t.Fatalf("expected 1 tray after delete, got %d (%v)", n, err)
	}

	errBurnt := errors.New("burnt")
	err = uow.RunInTx(ctx, func(ctx context.Context) error {
		if err := trays.Delete(ctx, "a"); err != nil {
			return err
		}
		return errBurnt
	})
	if !errors.Is(err, errBurnt) {
		t.Fatalf("expected callback error back, got %v", err)
	}
	if _, err := trays.Get(ctx, "a"); err != nil {
		t.Fatalf("expected rolled back delete, got %v", err)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	err = provider.RunTransaction(cancelled, func(context.Context, *firestore.Transaction) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
