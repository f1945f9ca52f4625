package sqlstore

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/goliatone/go-bookswap/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
)

const (
	defaultTxMaxAttempts  = 6
	defaultTxBaseDelay    = 10 * time.Millisecond
	defaultTxJitterFactor = 0.3
)

// Transactor implements core.Transactor on bun. Contended attempts are rolled
// back and replayed from scratch with exponential backoff.
type Transactor struct {
	factory      *RepositoryFactory
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	logger       glog.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

type TransactorOption func(*Transactor)

func WithMaxAttempts(attempts int) TransactorOption {
	return func(t *Transactor) {
		if attempts > 0 {
			t.maxAttempts = attempts
		}
	}
}

func WithBaseDelay(delay time.Duration) TransactorOption {
	return func(t *Transactor) {
		if delay >= 0 {
			t.baseDelay = delay
		}
	}
}

func WithJitterFactor(factor float64) TransactorOption {
	return func(t *Transactor) {
		if factor >= 0 && factor <= 1 {
			t.jitterFactor = factor
		}
	}
}

func WithTxLogger(logger glog.Logger) TransactorOption {
	return func(t *Transactor) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func newTransactor(factory *RepositoryFactory, opts ...TransactorOption) *Transactor {
	t := &Transactor{
		factory:      factory,
		maxAttempts:  defaultTxMaxAttempts,
		baseDelay:    defaultTxBaseDelay,
		jitterFactor: defaultTxJitterFactor,
		logger:       glog.Nop(),
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context, stores core.Stores) error) error {
	if t == nil || t.factory == nil || t.factory.db == nil {
		return fmt.Errorf("sqlstore: transactor is not configured")
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: transaction function is required")
	}

	var lastErr error
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := t.sleep(ctx, t.backoff(attempt)); err != nil {
				return err
			}
		}

		lastErr = t.factory.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, t.factory.storesFor(tx))
		})
		if lastErr == nil {
			return nil
		}
		if !isRetryableTxError(lastErr) {
			return lastErr
		}
		t.logger.Info("transaction contended, retrying",
			"attempt", attempt+1, "max_attempts", t.maxAttempts, "error_type", txErrorType(lastErr))
	}
	return fmt.Errorf("sqlstore: transaction retries exhausted after %d attempts: %w", t.maxAttempts, lastErr)
}

// backoff returns baseDelay * 2^(attempt-1) plus up to jitterFactor of jitter.
func (t *Transactor) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := t.baseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * t.jitterFactor //nolint:gosec
	return delay + time.Duration(jitter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
