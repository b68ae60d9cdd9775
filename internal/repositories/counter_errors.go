package repositories

import (
	"errors"
	"fmt"
)

// CounterErrorCode classifies failures of bounded counters: the order number sequences and the
// per-code discount usage counts.
type CounterErrorCode string

const (
	CounterErrorInvalidInput CounterErrorCode = "counter_invalid_input"
	// CounterErrorExhausted means the increment would pass the configured maximum. The stored
	// value is left unchanged.
	CounterErrorExhausted CounterErrorCode = "counter_exhausted"
)

// ErrCounterExhausted matches every *CounterError carrying CounterErrorExhausted.
var ErrCounterExhausted = errors.New("counter exhausted")

// CounterError is returned by CounterRepository and DiscountRepository.IncrementUsage.
type CounterError struct {
	Code    CounterErrorCode
	Message string
	Err     error
}

func (e *CounterError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CounterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, ErrCounterExhausted) see through wrapping.
func (e *CounterError) Is(target error) bool {
	return e != nil && target == ErrCounterExhausted && e.Code == CounterErrorExhausted
}

// NewCounterError constructs a typed counter error. An empty message falls back to the code.
func NewCounterError(code CounterErrorCode, message string, err error) *CounterError {
	if message == "" {
		message = string(code)
	}
	return &CounterError{Code: code, Message: message, Err: err}
}

// IsCounterExhausted reports whether err is a counter that reached its configured maximum.
func IsCounterExhausted(err error) bool {
	return errors.Is(err, ErrCounterExhausted)
}

// AdvanceCounter computes the next value of a counter currently at current. A zero requested
// step falls back to the counter's configured step, and a counter without one moves by 1.
func AdvanceCounter(counterID string, current, configuredStep, requestedStep int64, maxValue *int64) (int64, error) {
	if requestedStep < 0 {
		return 0, NewCounterError(CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", requestedStep), nil)
	}
	step := requestedStep
	if step == 0 {
		step = max(configuredStep, 1)
	}
	next := current + step
	if maxValue != nil && next > *maxValue {
		return 0, NewCounterError(CounterErrorExhausted, fmt.Sprintf("counter %s exceeded max value %d", counterID, *maxValue), nil)
	}
	return next, nil
}
