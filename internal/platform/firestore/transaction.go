package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
)

type txContextKey struct{}

// TxFunc is executed within a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts overrides the retry attempts for a transaction.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout sets a timeout for the transaction context.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithTx stores tx on the context so repositories called inside fn join the transaction.
func WithTx(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext returns the ambient transaction, if any.
func TxFromContext(ctx context.Context) (*firestore.Transaction, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok && tx != nil
}

// RunTransaction executes fn within a transaction on the provided client. When ctx already
// carries a transaction, fn joins it instead of starting a nested one.
// Firestore may invoke fn several times; fn must not have side effects outside the transaction.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}
	if tx, ok := TxFromContext(ctx); ok {
		return fn(ctx, tx)
	}
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}

	cfg := txConfig{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	txnCtx := ctx
	if cfg.timeout > 0 {
		deadline, hasDeadline := ctx.Deadline()
		if !hasDeadline || time.Until(deadline) > cfg.timeout {
			var cancel context.CancelFunc
			txnCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
			defer cancel()
		}
	}

	var fnErr error
	err := client.RunTransaction(txnCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		fnErr = fn(WithTx(ctx, tx), tx)
		return fnErr
	}, firestore.MaxAttempts(cfg.attempts))
	if err != nil && fnErr != nil && errors.Is(err, fnErr) {
		// errors raised by fn already carry their own semantics
		return fnErr
	}

	return WrapError("transaction", err)
}

// UnitOfWork implements repositories.UnitOfWork on top of Firestore transactions.
// All reads performed inside fn must happen before the first write.
type UnitOfWork struct {
	provider *Provider
	opts     []TxOption
}

// NewUnitOfWork constructs a transactional unit of work.
func NewUnitOfWork(provider *Provider, opts ...TxOption) *UnitOfWork {
	return &UnitOfWork{provider: provider, opts: opts}
}

// RunInTx runs fn inside a Firestore transaction.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if u == nil || u.provider == nil {
		return errors.New("firestore: unit of work not initialised")
	}
	return u.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	}, u.opts...)
}
