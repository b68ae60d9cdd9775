//go:build integration

package firestore

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crumbhouse/bakery-api/internal/repositories"
)

func TestCounterRepositoryIssuesUniqueNumbersUnderContention(t *testing.T) {
	repo, err := NewCounterRepository(newEmulatorProvider(t, "bakery-counters"), nil)
	if err != nil {
		t.Fatalf("new counter repository: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	const checkouts = 12
	issued := make(chan int64, checkouts)
	var group errgroup.Group
	for i := 0; i < checkouts; i++ {
		group.Go(func() error {
			value, err := repo.Next(ctx, "orders:2025", 1)
			issued <- value
			return err
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("next: %v", err)
	}
	close(issued)

	seen := make(map[int64]bool, checkouts)
	for value := range issued {
		if value < 1 || value > checkouts || seen[value] {
			t.Fatalf("unexpected or duplicate sequence number %d", value)
		}
		seen[value] = true
	}
}

func TestCounterRepositoryStopsAtMaxValue(t *testing.T) {
	repo, err := NewCounterRepository(newEmulatorProvider(t, "bakery-counter-bounds"), nil)
	if err != nil {
		t.Fatalf("new counter repository: %v", err)
	}
	ctx := context.Background()

	start, limit := int64(999998), int64(999999)
	if err := repo.Configure(ctx, "custom_orders:2025", repositories.CounterConfig{InitialValue: &start, MaxValue: &limit}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if value, err := repo.Next(ctx, "custom_orders:2025", 0); err != nil || value != limit {
		t.Fatalf("expected %d, got %d (%v)", limit, value, err)
	}
	if _, err := repo.Next(ctx, "custom_orders:2025", 0); !repositories.IsCounterExhausted(err) {
		t.Fatalf("expected exhausted counter, got %v", err)
	}
}
