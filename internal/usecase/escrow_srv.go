package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/pkg/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EscrowService holds the guest's funds between match and delivery.
type EscrowService interface {
	Authorize(ctx context.Context, booking *entity.Booking, paymentMethod string) error
	// Capture is safe to repeat: an already captured escrow returns its amount.
	Capture(ctx context.Context, booking *entity.Booking) (int64, error)
	// Refund returns up to amount of what is still held or captured and
	// reports what was refunded and the key used.
	Refund(ctx context.Context, booking *entity.Booking, amount int64) (int64, string, error)
	Get(ctx context.Context, bookingID uuid.UUID) (*entity.EscrowTransaction, error)
}

const voidTimeout = 30 * time.Second

type escrowService struct {
	escrow    repository.EscrowRepository
	bookings  repository.BookingRepository
	processor payment.Processor
	events    EventPublisher
	now       func() time.Time
	log       *zap.Logger
}

func NewEscrowService(repo *repository.Repository, processor payment.Processor, events EventPublisher, now func() time.Time, log *zap.Logger) EscrowService {
	return &escrowService{
		escrow:    repo.Escrow,
		bookings:  repo.Booking,
		processor: processor,
		events:    events,
		now:       now,
		log:       log.With(zap.String("service", "escrow")),
	}
}

func (s *escrowService) Get(ctx context.Context, bookingID uuid.UUID) (*entity.EscrowTransaction, error) {
	return s.escrow.FindByBookingID(ctx, bookingID)
}

func (s *escrowService) Authorize(ctx context.Context, b *entity.Booking, paymentMethod string) error {
	key := entity.IdempotencyKey(b.ID, entity.EscrowAuthorize)

	ref, err := s.processor.Authorize(ctx, payment.AuthorizeInput{
		Amount:         b.TotalAmount,
		PaymentMethod:  paymentMethod,
		IdempotencyKey: key,
		Description:    "Photo shoot " + b.Code,
	})
	if err != nil {
		s.log.Warn("Authorization failed",
			zap.String("booking_id", b.ID.String()),
			zap.Int64("amount", b.TotalAmount),
			zap.Error(err),
		)
		if errors.Is(err, payment.ErrUnavailable) {
			s.voidUnknownHold(ctx, b, key)
		}
		if recErr := s.escrow.RecordFailure(ctx, b.ID, entity.EscrowAuthorize, key, err.Error(), s.now()); recErr != nil {
			s.log.Error("Failed to record authorization failure", zap.Error(recErr))
		}
		return fmt.Errorf("%w: %v", ErrPaymentAuthorizationFailed, err)
	}

	if err := s.escrow.MarkAuthorized(ctx, b.ID, ref, s.now()); err != nil {
		return err
	}

	s.log.Info("Payment authorized",
		zap.String("booking_id", b.ID.String()),
		zap.Int64("amount", b.TotalAmount),
	)
	return nil
}

// voidUnknownHold releases a hold the processor may have placed even though
// no reply arrived. The match is being reverted so nothing may stay held.
func (s *escrowService) voidUnknownHold(ctx context.Context, b *entity.Booking, key string) {
	voidCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), voidTimeout)
	defer cancel()

	if err := s.processor.Void(voidCtx, key); err != nil {
		s.log.Error("Failed to void unconfirmed authorization",
			zap.String("booking_id", b.ID.String()),
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		reportIntegrity(voidCtx, s.events, s.log, "authorization outcome unknown, hold may be orphaned", &b.ID, &b.RequestID, s.now())
		return
	}
	s.log.Info("Unconfirmed authorization voided", zap.String("booking_id", b.ID.String()))
}

func (s *escrowService) Capture(ctx context.Context, b *entity.Booking) (int64, error) {
	e, err := s.escrow.FindByBookingID(ctx, b.ID)
	if err != nil {
		return 0, err
	}
	if e == nil || !e.IsAuthorized() {
		return 0, fmt.Errorf("%w: booking %s has no authorization", ErrInvalidStateTransition, b.ID)
	}
	if e.IsCaptured() {
		return e.CapturedAmount, nil
	}

	key := entity.IdempotencyKey(b.ID, entity.EscrowCapture)
	res, err := s.processor.Capture(ctx, *e.AuthorizationRef, key)
	if err != nil {
		now := s.now()
		s.log.Error("Capture failed after retries",
			zap.String("booking_id", b.ID.String()),
			zap.Error(err),
		)
		if recErr := s.escrow.RecordFailure(ctx, b.ID, entity.EscrowCapture, key, err.Error(), now); recErr != nil {
			s.log.Error("Failed to record capture failure", zap.Error(recErr))
		}
		if upErr := s.bookings.UpdatePaymentStatus(ctx, b.ID, entity.PaymentStatusFailed, now); upErr != nil {
			s.log.Error("Failed to flag booking payment", zap.Error(upErr))
		}
		publishEvent(ctx, s.events, s.log, DomainEvent{
			Event:      "payment.capture_failed",
			OccurredAt: now,
			BookingID:  &b.ID,
			RequestID:  &b.RequestID,
			Data:       map[string]any{"amount": b.TotalAmount, "error": err.Error()},
		})
		return 0, fmt.Errorf("%w: %v", ErrPaymentCaptureFailed, err)
	}

	amount := res.Amount
	if amount == 0 {
		amount = e.AuthorizedAmount
	}
	return amount, nil
}

func (s *escrowService) Refund(ctx context.Context, b *entity.Booking, amount int64) (int64, string, error) {
	e, err := s.escrow.FindByBookingID(ctx, b.ID)
	if err != nil {
		return 0, "", err
	}
	if e == nil || !e.IsAuthorized() {
		return 0, "", nil
	}

	refundable := e.AuthorizedAmount - e.RefundedAmount
	if amount <= 0 || amount > refundable {
		amount = refundable
	}
	if amount <= 0 {
		return 0, "", nil
	}

	key := entity.IdempotencyKey(b.ID, entity.EscrowRefund)
	if _, err := s.processor.Refund(ctx, *e.AuthorizationRef, amount, key); err != nil {
		s.log.Error("Refund failed after retries",
			zap.String("booking_id", b.ID.String()),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		if recErr := s.escrow.RecordFailure(ctx, b.ID, entity.EscrowRefund, key, err.Error(), s.now()); recErr != nil {
			s.log.Error("Failed to record refund failure", zap.Error(recErr))
		}
		return 0, key, fmt.Errorf("%w: refund: %v", ErrExternalServiceUnavailable, err)
	}

	s.log.Info("Refund issued",
		zap.String("booking_id", b.ID.String()),
		zap.Int64("amount", amount),
	)
	return amount, key, nil
}
