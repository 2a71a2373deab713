package usecase

import (
	"context"
	"fmt"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/internal/dto/request"
	"photo-dispatch/internal/dto/response"

	"go.uber.org/zap"
)

const (
	DecisionRefundFull    = "refund_full"
	DecisionRefundPartial = "refund_partial"
	DecisionRelease       = "release"
)

// DisputeService is the admin hook: read access to booking and escrow, and
// a resolution that moves money one way or the other.
type DisputeService interface {
	GetBookingDetail(ctx context.Context, bookingID string) (*response.AdminBookingResponse, error)
	ResolveDispute(ctx context.Context, admin Actor, bookingID string, req *request.ResolveDisputeRequest) (*response.AdminBookingResponse, error)
}

type disputeService struct {
	repo   *repository.Repository
	escrow EscrowService
	settle *settlement
	events EventPublisher
	now    func() time.Time
	log    *zap.Logger
}

func NewDisputeService(
	repo *repository.Repository,
	escrow EscrowService,
	notifier NotificationService,
	events EventPublisher,
	now func() time.Time,
	log *zap.Logger,
) DisputeService {
	log = log.With(zap.String("service", "dispute"))
	return &disputeService{
		repo:   repo,
		escrow: escrow,
		settle: newSettlement(repo, escrow, notifier, events, now, log),
		events: events,
		now:    now,
		log:    log,
	}
}

func (s *disputeService) GetBookingDetail(ctx context.Context, bookingID string) (*response.AdminBookingResponse, error) {
	b, err := loadBooking(ctx, s.repo.Booking, Actor{Role: entity.ActorAdmin}, bookingID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, b)
}

func (s *disputeService) detail(ctx context.Context, b *entity.Booking) (*response.AdminBookingResponse, error) {
	e, err := s.escrow.Get(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return &response.AdminBookingResponse{
		Booking: response.BookingToResponse(b),
		Escrow:  response.EscrowToResponse(e),
	}, nil
}

func (s *disputeService) ResolveDispute(ctx context.Context, admin Actor, bookingID string, req *request.ResolveDisputeRequest) (*response.AdminBookingResponse, error) {
	if admin.Role != entity.ActorAdmin {
		return nil, ErrForbidden
	}

	b, err := loadBooking(ctx, s.repo.Booking, admin, bookingID)
	if err != nil {
		return nil, err
	}

	switch req.Decision {
	case DecisionRefundFull:
		err = s.refund(ctx, b, 0, entity.PaymentStatusRefunded, req.Note)
	case DecisionRefundPartial:
		err = s.refundPartial(ctx, b, req)
	case DecisionRelease:
		err = s.settle.complete(ctx, b, nil)
	default:
		return nil, NewValidationError(map[string]string{"decision": "Must be one of: refund_full, refund_partial, release"})
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Dispute resolved",
		zap.String("booking_id", b.ID.String()),
		zap.String("decision", req.Decision),
		zap.String("admin_id", admin.ID.String()),
	)
	publishEvent(ctx, s.events, s.log, DomainEvent{
		Event:      "dispute.resolved",
		OccurredAt: s.now(),
		BookingID:  &b.ID,
		RequestID:  &b.RequestID,
		Data:       map[string]any{"decision": req.Decision, "amount": req.Amount, "note": req.Note},
	})

	return s.detail(ctx, b)
}

func (s *disputeService) refundPartial(ctx context.Context, b *entity.Booking, req *request.ResolveDisputeRequest) error {
	e, err := s.escrow.Get(ctx, b.ID)
	if err != nil {
		return err
	}
	// An uncaptured hold can only be voided as a whole.
	if e == nil || !e.IsCaptured() {
		return fmt.Errorf("partial refund needs a captured payment: %w", ErrInvalidStateTransition)
	}
	refundable := e.CapturedAmount - e.RefundedAmount
	if req.Amount <= 0 || req.Amount >= refundable {
		return NewValidationError(map[string]string{
			"amount": fmt.Sprintf("Must be between 1 and %d", refundable-1),
		})
	}
	return s.refund(ctx, b, req.Amount, entity.PaymentStatusPartiallyRefunded, req.Note)
}

func (s *disputeService) refund(ctx context.Context, b *entity.Booking, amount int64, status entity.PaymentStatus, note string) error {
	if b.Status == entity.BookingStatusCancelled {
		return fmt.Errorf("booking already cancelled: %w", ErrInvalidStateTransition)
	}
	return s.settle.cancel(ctx, b, cancelOrder{
		by:     entity.ActorAdmin,
		reason: note,
		from: []entity.BookingStatus{
			entity.BookingStatusMatched,
			entity.BookingStatusInProgress,
			entity.BookingStatusCompleted,
		},
		refund: amount,
		status: status,
	})
}
