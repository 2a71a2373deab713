package payment

import (
	"context"
	"errors"
)

var (
	// ErrDeclined is a definitive refusal. It is never retried.
	ErrDeclined = errors.New("payment declined")
	// ErrUnavailable covers timeouts and processor outages. Safe to retry with the same key.
	ErrUnavailable = errors.New("payment processor unavailable")
)

type AuthorizeInput struct {
	Amount         int64
	PaymentMethod  string
	IdempotencyKey string
	Description    string
}

type Result struct {
	Ref    string
	Amount int64
}

// Processor is a two-phase payment gateway. Every call carries an
// idempotency key so a retry after an unobserved response is harmless.
type Processor interface {
	Authorize(ctx context.Context, in AuthorizeInput) (string, error)
	Capture(ctx context.Context, ref, idempotencyKey string) (Result, error)
	Refund(ctx context.Context, ref string, amount int64, idempotencyKey string) (Result, error)
	// Void releases any uncaptured hold placed under the authorization key.
	// It returns nil when no hold exists.
	Void(ctx context.Context, idempotencyKey string) error
}
