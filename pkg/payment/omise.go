package payment

import (
	"context"
	"fmt"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyMeta   = "idempotency_key"
)

// OmiseProcessor authorizes with an uncaptured charge, captures it on
// delivery and refunds against the same charge.
//
// Every write carries the key both as the Idempotency-Key header and in
// metadata. Before creating anything the adapter looks for an object that
// already carries the key, so a retry after a lost reply finds the first
// result instead of creating a second one.
type OmiseProcessor struct {
	client   *omise.Client
	currency string
}

func NewOmiseProcessor(publicKey, secretKey, currency string) (*OmiseProcessor, error) {
	client, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("create omise client: %w", err)
	}
	client.SetDebug(false)

	return &OmiseProcessor{client: client, currency: currency}, nil
}

// with returns a per-call copy of the client. Headers and context live on
// the client, so the shared one is never mutated.
func (p *OmiseProcessor) with(ctx context.Context, key string) *omise.Client {
	c := *p.client
	c.WithContext(ctx)
	if key != "" {
		c.WithCustomHeaders(map[string]string{idempotencyHeader: key})
	}
	return &c
}

func hasKey(metadata map[string]any, key string) bool {
	v, ok := metadata[idempotencyMeta].(string)
	return ok && v == key
}

// findCharge returns the charge created under key, or nil.
func (p *OmiseProcessor) findCharge(ctx context.Context, key string) (*omise.Charge, error) {
	result := &omise.ChargeSearchResult{}
	search := &operations.Search{
		Scope: omise.ChargeScope,
		Query: key,
	}
	if err := p.with(ctx, "").Do(result, search); err != nil {
		return nil, fmt.Errorf("%w: search charge %s: %v", ErrUnavailable, key, err)
	}
	for _, ch := range result.Data {
		if ch != nil && hasKey(ch.Metadata, key) {
			return ch, nil
		}
	}
	return nil, nil
}

func (p *OmiseProcessor) Authorize(ctx context.Context, in AuthorizeInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	existing, err := p.findCharge(ctx, in.IdempotencyKey)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if err := chargeFailure(existing); err != nil {
			return "", err
		}
		if existing.Reversed {
			return "", fmt.Errorf("%w: authorization %s was reversed", ErrDeclined, existing.ID)
		}
		return existing.ID, nil
	}

	ch := &omise.Charge{}
	req := &operations.CreateCharge{
		Amount:      in.Amount,
		Currency:    p.currency,
		Card:        in.PaymentMethod,
		Description: in.Description,
		DontCapture: true,
		Metadata:    map[string]any{idempotencyMeta: in.IdempotencyKey},
	}

	if err := p.with(ctx, in.IdempotencyKey).Do(ch, req); err != nil {
		return "", fmt.Errorf("%w: create charge: %v", ErrUnavailable, err)
	}
	if err := chargeFailure(ch); err != nil {
		return "", err
	}

	return ch.ID, nil
}

// Void reverses the uncaptured hold created under key, if there is one.
func (p *OmiseProcessor) Void(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := p.findCharge(ctx, key)
	if err != nil {
		return err
	}
	if ch == nil || ch.Reversed || ch.Paid || ch.Status == omise.ChargeFailed {
		return nil
	}

	reversed := &omise.Charge{}
	if err := p.with(ctx, key+":void").Do(reversed, &operations.ReverseCharge{ChargeID: ch.ID}); err != nil {
		return fmt.Errorf("%w: reverse charge %s (%s): %v", ErrUnavailable, ch.ID, key, err)
	}
	return nil
}

func (p *OmiseProcessor) Capture(ctx context.Context, ref, key string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// A previous attempt may have succeeded without us seeing the reply.
	current := &omise.Charge{}
	if err := p.with(ctx, "").Do(current, &operations.RetrieveCharge{ChargeID: ref}); err != nil {
		return Result{}, fmt.Errorf("%w: retrieve charge: %v", ErrUnavailable, err)
	}
	if current.Paid {
		return Result{Ref: current.ID, Amount: current.Amount}, nil
	}

	ch := &omise.Charge{}
	if err := p.with(ctx, key).Do(ch, &operations.CaptureCharge{ChargeID: ref}); err != nil {
		return Result{}, fmt.Errorf("%w: capture charge %s (%s): %v", ErrUnavailable, ref, key, err)
	}
	if err := chargeFailure(ch); err != nil {
		return Result{}, err
	}

	return Result{Ref: ch.ID, Amount: ch.Amount}, nil
}

// Refund reverses a hold that was never captured, otherwise refunds the
// captured charge once per key.
func (p *OmiseProcessor) Refund(ctx context.Context, ref string, amount int64, key string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	current := &omise.Charge{}
	if err := p.with(ctx, "").Do(current, &operations.RetrieveCharge{ChargeID: ref}); err != nil {
		return Result{}, fmt.Errorf("%w: retrieve charge: %v", ErrUnavailable, err)
	}

	if !current.Paid {
		if current.Reversed {
			return Result{Ref: current.ID, Amount: current.Amount}, nil
		}
		reversed := &omise.Charge{}
		if err := p.with(ctx, key).Do(reversed, &operations.ReverseCharge{ChargeID: ref}); err != nil {
			return Result{}, fmt.Errorf("%w: reverse charge %s (%s): %v", ErrUnavailable, ref, key, err)
		}
		return Result{Ref: reversed.ID, Amount: reversed.Amount}, nil
	}

	if prior := findRefund(current, key); prior != nil {
		return Result{Ref: prior.ID, Amount: prior.Amount}, nil
	}
	if current.Refunded+amount > current.Amount {
		return Result{}, fmt.Errorf("%w: refund of %d exceeds remaining %d on %s",
			ErrDeclined, amount, current.Amount-current.Refunded, ref)
	}

	refund := &omise.Refund{}
	req := &operations.CreateRefund{
		ChargeID: ref,
		Amount:   amount,
		Metadata: map[string]any{idempotencyMeta: key},
	}

	if err := p.with(ctx, key).Do(refund, req); err != nil {
		return Result{}, fmt.Errorf("%w: create refund for %s: %v", ErrUnavailable, ref, err)
	}

	return Result{Ref: refund.ID, Amount: refund.Amount}, nil
}

func findRefund(ch *omise.Charge, key string) *omise.Refund {
	if ch.Refunds == nil {
		return nil
	}
	for _, r := range ch.Refunds.Data {
		if r != nil && hasKey(r.Metadata, key) {
			return r
		}
	}
	return nil
}

func chargeFailure(ch *omise.Charge) error {
	if ch.Status != omise.ChargeFailed {
		return nil
	}

	var code, msg string
	if ch.FailureCode != nil {
		code = *ch.FailureCode
	}
	if ch.FailureMessage != nil {
		msg = *ch.FailureMessage
	}
	return fmt.Errorf("%w: %s %s", ErrDeclined, code, msg)
}
