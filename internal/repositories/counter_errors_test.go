package repositories

import (
	"errors"
	"fmt"
	"testing"
)

func TestAdvanceCounter(t *testing.T) {
	limit := int64(10)
	tests := []struct {
		name       string
		current    int64
		configured int64
		requested  int64
		max        *int64
		want       int64
		code       CounterErrorCode
	}{
		{name: "fresh counter moves by one", want: 1},
		{name: "requested step wins", current: 4, configured: 3, requested: 2, want: 6},
		{name: "configured step used when none requested", current: 4, configured: 3, want: 7},
		{name: "reaching the bound is allowed", current: 9, requested: 1, max: &limit, want: 10},
		{name: "passing the bound is exhausted", current: 10, requested: 1, max: &limit, code: CounterErrorExhausted},
		{name: "negative step rejected", requested: -1, code: CounterErrorInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AdvanceCounter("orders:2025", tc.current, tc.configured, tc.requested, tc.max)
			if tc.code != "" {
				var counterErr *CounterError
				if !errors.As(err, &counterErr) || counterErr.Code != tc.code {
					t.Fatalf("expected %s, got %v", tc.code, err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("expected %d, got %d (%v)", tc.want, got, err)
			}
		})
	}
}

func TestIsCounterExhaustedSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("allocate order number: %w", NewCounterError(CounterErrorExhausted, "", nil))
	if !IsCounterExhausted(err) {
		t.Fatalf("expected wrapped exhausted error to match")
	}
	if IsCounterExhausted(NewCounterError(CounterErrorInvalidInput, "", nil)) {
		t.Fatalf("invalid input must not read as exhausted")
	}
	if got := NewCounterError(CounterErrorExhausted, "", nil).Error(); got != "counter_exhausted" {
		t.Fatalf("expected message to default to the code, got %q", got)
	}
}
