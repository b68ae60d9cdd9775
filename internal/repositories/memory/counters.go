package memory

import (
	"context"
	"strings"

	"github.com/crumbhouse/bakery-api/internal/repositories"
)

type counterState struct {
	value    int64
	step     int64
	maxValue *int64
}

type counterRepository struct{ r *Registry }

// Next increments the counter by step (or its configured step) and returns the new value.
// Counters are not journalled: a failed unit of work still consumes the number.
func (repo counterRepository) Next(_ context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}

	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	state, ok := repo.r.counters[id]
	if !ok {
		state = &counterState{}
		repo.r.counters[id] = state
	}
	next, err := repositories.AdvanceCounter(id, state.value, state.step, step, state.maxValue)
	if err != nil {
		return 0, err
	}
	state.value = next
	return next, nil
}

func (repo counterRepository) Configure(_ context.Context, counterID string, cfg repositories.CounterConfig) error {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	repo.r.mu.Lock()
	defer repo.r.mu.Unlock()
	state, ok := repo.r.counters[id]
	if !ok {
		state = &counterState{}
		repo.r.counters[id] = state
	}
	if cfg.Step > 0 {
		state.step = cfg.Step
	}
	if cfg.MaxValue != nil {
		limit := *cfg.MaxValue
		state.maxValue = &limit
	}
	if cfg.InitialValue != nil {
		state.value = *cfg.InitialValue
	}
	return nil
}
