package payment

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryManager runs an operation with bounded exponential backoff and jitter.
type RetryManager struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func NewRetryManager(maxAttempts int, baseDelay time.Duration) *RetryManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryManager{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    baseDelay * 16,
	}
}

// ShouldRetry reports whether another attempt is allowed after attempt
// (1-based) failed with err, and how long to wait first.
func (r *RetryManager) ShouldRetry(attempt int, err error) (bool, time.Duration) {
	if attempt >= r.maxAttempts {
		return false, 0
	}
	if !isRetryable(err) {
		return false, 0
	}
	return true, r.calculateBackoff(attempt)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeclined) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// calculateBackoff returns base * 2^(attempt-1) with +-25% jitter, capped at maxDelay.
func (r *RetryManager) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 || r.baseDelay <= 0 {
		return r.baseDelay
	}

	backoff := r.baseDelay * time.Duration(1<<(attempt-1))

	if quarter := int64(backoff / 4); quarter > 0 {
		jitter := time.Duration(rand.Int63n(2*quarter+1) - quarter)
		backoff += jitter
	}

	if backoff > r.maxDelay {
		backoff = r.maxDelay
	}
	return backoff
}

// Do calls fn until it succeeds, fails permanently, attempts run out or ctx ends.
func (r *RetryManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		retry, delay := r.ShouldRetry(attempt, err)
		if !retry {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

type retryingProcessor struct {
	next  Processor
	retry *RetryManager
	log   *zap.Logger
}

// WithRetry wraps p so every call is retried under rm with the caller's key.
func WithRetry(p Processor, rm *RetryManager, log *zap.Logger) Processor {
	return &retryingProcessor{
		next:  p,
		retry: rm,
		log:   log.With(zap.String("component", "payment_retry")),
	}
}

func (p *retryingProcessor) Authorize(ctx context.Context, in AuthorizeInput) (string, error) {
	var ref string
	attempt := 0
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		var err error
		ref, err = p.next.Authorize(ctx, in)
		p.logAttempt("authorize", in.IdempotencyKey, attempt, err)
		return err
	})
	return ref, err
}

func (p *retryingProcessor) Capture(ctx context.Context, ref, key string) (Result, error) {
	var res Result
	attempt := 0
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		var err error
		res, err = p.next.Capture(ctx, ref, key)
		p.logAttempt("capture", key, attempt, err)
		return err
	})
	return res, err
}

func (p *retryingProcessor) Refund(ctx context.Context, ref string, amount int64, key string) (Result, error) {
	var res Result
	attempt := 0
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		var err error
		res, err = p.next.Refund(ctx, ref, amount, key)
		p.logAttempt("refund", key, attempt, err)
		return err
	})
	return res, err
}

func (p *retryingProcessor) Void(ctx context.Context, key string) error {
	attempt := 0
	return p.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		err := p.next.Void(ctx, key)
		p.logAttempt("void", key, attempt, err)
		return err
	})
}

func (p *retryingProcessor) logAttempt(op, key string, attempt int, err error) {
	if err == nil {
		return
	}
	p.log.Warn("Payment attempt failed",
		zap.String("operation", op),
		zap.String("idempotency_key", key),
		zap.Int("attempt", attempt),
		zap.Error(err),
	)
}
