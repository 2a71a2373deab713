package usecase

import (
	"context"
	"fmt"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/internal/dto/request"
	"photo-dispatch/internal/dto/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Actor is the authenticated caller of a booking operation.
type Actor struct {
	ID   uuid.UUID
	Role entity.ActorRole
}

type BookingService interface {
	GetBooking(ctx context.Context, actor Actor, bookingID string) (*response.BookingResponse, error)
	ListPhotographerBookings(ctx context.Context, photographerID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	StartBooking(ctx context.Context, actor Actor, bookingID string) (*response.BookingResponse, error)
	ConfirmDelivery(ctx context.Context, actor Actor, bookingID string, req *request.ConfirmDeliveryRequest) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, actor Actor, bookingID string, req *request.CancelRequest) (*response.BookingResponse, error)
}

type bookingService struct {
	repo     *repository.Repository
	settle   *settlement
	notifier NotificationService
	now      func() time.Time
	log      *zap.Logger
}

func NewBookingService(
	repo *repository.Repository,
	escrow EscrowService,
	notifier NotificationService,
	events EventPublisher,
	now func() time.Time,
	log *zap.Logger,
) BookingService {
	log = log.With(zap.String("service", "booking"))
	return &bookingService{
		repo:     repo,
		settle:   newSettlement(repo, escrow, notifier, events, now, log),
		notifier: notifier,
		now:      now,
		log:      log,
	}
}

// load fetches a booking the actor may see.
func (s *bookingService) load(ctx context.Context, actor Actor, bookingID string) (*entity.Booking, error) {
	return loadBooking(ctx, s.repo.Booking, actor, bookingID)
}

func loadBooking(ctx context.Context, bookings repository.BookingRepository, actor Actor, bookingID string) (*entity.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, NewValidationError(map[string]string{"id": "Must be a valid UUID"})
	}

	b, err := bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
	}
	if actor.Role != entity.ActorAdmin && !b.IsParticipant(actor.ID) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *bookingService) GetBooking(ctx context.Context, actor Actor, bookingID string) (*response.BookingResponse, error) {
	b, err := s.load(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	out := response.BookingToResponse(b)
	return &out, nil
}

func (s *bookingService) ListPhotographerBookings(ctx context.Context, photographerID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	limit := req.Limit()
	offset := req.Offset()

	bookings, err := s.repo.Booking.FindByPhotographerID(ctx, photographerID, limit, offset)
	if err != nil {
		s.log.Error("Failed to get photographer bookings",
			zap.Error(err),
			zap.String("photographer_id", photographerID.String()),
			zap.Int("page", req.Page),
			zap.Int("per_page", req.PerPage),
		)
		return nil, fmt.Errorf("get photographer bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByPhotographerID(ctx, photographerID)
	if err != nil {
		s.log.Error("Failed to count photographer bookings", zap.Error(err))
		return nil, fmt.Errorf("count photographer bookings: %w", err)
	}

	data := make([]response.BookingResponse, len(bookings))
	for i, b := range bookings {
		data[i] = response.BookingToResponse(b)
	}

	return response.NewPaginatedResponse(data, req.Page, req.PerPage, total), nil
}

func (s *bookingService) StartBooking(ctx context.Context, actor Actor, bookingID string) (*response.BookingResponse, error) {
	b, err := s.load(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PhotographerID != actor.ID {
		return nil, ErrForbidden
	}
	if b.Status != entity.BookingStatusMatched {
		return nil, fmt.Errorf("start from %s: %w", b.Status, ErrInvalidStateTransition)
	}

	now := s.now()
	ok, err := s.repo.Booking.Start(ctx, b.ID, actor.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("booking changed state: %w", ErrInvalidStateTransition)
	}

	b.Status = entity.BookingStatusInProgress
	b.StartedAt = &now
	s.log.Info("Booking started", zap.String("booking_id", b.ID.String()))

	out := response.BookingToResponse(b)
	return &out, nil
}

func (s *bookingService) ConfirmDelivery(ctx context.Context, actor Actor, bookingID string, req *request.ConfirmDeliveryRequest) (*response.BookingResponse, error) {
	if req == nil {
		req = &request.ConfirmDeliveryRequest{}
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return nil, NewValidationError(map[string]string{"rating": "Must be between 1 and 5"})
	}

	b, err := s.load(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GuestID != actor.ID {
		return nil, ErrForbidden
	}

	if err := s.settle.complete(ctx, b, req.Rating); err != nil {
		return nil, err
	}
	out := response.BookingToResponse(b)
	return &out, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, actor Actor, bookingID string, req *request.CancelRequest) (*response.BookingResponse, error) {
	if req == nil {
		req = &request.CancelRequest{}
	}

	b, err := s.load(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanCancel() {
		return nil, fmt.Errorf("cancel from %s: %w", b.Status, ErrInvalidStateTransition)
	}

	err = s.settle.cancel(ctx, b, cancelOrder{
		by:     actor.Role,
		reason: req.Reason,
		from:   []entity.BookingStatus{entity.BookingStatusMatched, entity.BookingStatusInProgress},
		status: entity.PaymentStatusRefunded,
	})
	if err != nil {
		return nil, err
	}
	out := response.BookingToResponse(b)
	return &out, nil
}

// settlement performs the money-moving booking transitions shared by the
// participants and the dispute desk.
type settlement struct {
	repo     *repository.Repository
	escrow   EscrowService
	notifier NotificationService
	events   EventPublisher
	now      func() time.Time
	log      *zap.Logger
}

func newSettlement(repo *repository.Repository, escrow EscrowService, notifier NotificationService, events EventPublisher, now func() time.Time, log *zap.Logger) *settlement {
	return &settlement{repo: repo, escrow: escrow, notifier: notifier, events: events, now: now, log: log}
}

// complete captures the hold and closes an in_progress booking. b is updated
// in place. Completed and paid bookings are left untouched.
func (s *settlement) complete(ctx context.Context, b *entity.Booking, rating *int) error {
	if b.Status == entity.BookingStatusCompleted && b.PaymentStatus == entity.PaymentStatusPaid {
		return nil
	}
	if b.Status != entity.BookingStatusInProgress {
		return fmt.Errorf("complete from %s: %w", b.Status, ErrInvalidStateTransition)
	}

	captured, err := s.escrow.Capture(ctx, b)
	if err != nil {
		return err
	}

	now := s.now()
	ok, err := s.repo.Match.Complete(ctx, repository.CompleteParams{
		BookingID:      b.ID,
		PhotographerID: b.PhotographerID,
		CapturedAmount: captured,
		CaptureKey:     entity.IdempotencyKey(b.ID, entity.EscrowCapture),
		Rating:         rating,
		Now:            now,
	})
	if err != nil {
		return err
	}
	if !ok {
		// A concurrent confirm got there first.
		current, err := s.repo.Booking.FindByID(ctx, b.ID)
		if err != nil {
			return err
		}
		if current != nil && current.Status == entity.BookingStatusCompleted {
			*b = *current
			return nil
		}
		reportIntegrity(ctx, s.events, s.log, "payment captured but booking left in_progress", &b.ID, &b.RequestID, now)
		return ErrIntegrityViolation
	}

	b.Status = entity.BookingStatusCompleted
	b.PaymentStatus = entity.PaymentStatusPaid
	b.CompletedAt = &now

	s.log.Info("Booking completed",
		zap.String("booking_id", b.ID.String()),
		zap.Int64("captured", captured),
	)

	s.notifier.Notify(ctx, eventFor(b.PhotographerID, entity.EventPaymentReceived, &b.RequestID, &b.ID, map[string]any{
		"earnings": b.PhotographerEarnings,
	}))
	for _, user := range []uuid.UUID{b.GuestID, b.PhotographerID} {
		s.notifier.Notify(ctx, eventFor(user, entity.EventBookingCompleted, &b.RequestID, &b.ID, map[string]any{
			"booking_code": b.Code,
		}))
	}
	publishEvent(ctx, s.events, s.log, DomainEvent{
		Event:      "booking.completed",
		OccurredAt: now,
		BookingID:  &b.ID,
		RequestID:  &b.RequestID,
		Data:       map[string]any{"captured_amount": captured, "photographer_earnings": b.PhotographerEarnings},
	})
	return nil
}

type cancelOrder struct {
	by     entity.ActorRole
	reason string
	from   []entity.BookingStatus
	// refund is the amount to return; zero means everything refundable.
	refund int64
	// status is the payment status set when money went back.
	status entity.PaymentStatus
}

// cancel refunds what the order asks for and moves b to cancelled.
func (s *settlement) cancel(ctx context.Context, b *entity.Booking, o cancelOrder) error {
	refunded, key, err := s.escrow.Refund(ctx, b, o.refund)
	if err != nil {
		return err
	}

	paymentStatus := b.PaymentStatus
	if refunded > 0 {
		paymentStatus = o.status
	}

	now := s.now()
	ok, err := s.repo.Match.Cancel(ctx, repository.CancelParams{
		BookingID:      b.ID,
		PhotographerID: b.PhotographerID,
		From:           o.from,
		By:             o.by,
		Reason:         o.reason,
		PaymentStatus:  paymentStatus,
		RefundedAmount: refunded,
		RefundKey:      key,
		Now:            now,
	})
	if err != nil {
		return err
	}
	if !ok {
		if refunded > 0 {
			reportIntegrity(ctx, s.events, s.log, "refund issued but booking was not cancelled", &b.ID, &b.RequestID, now)
		}
		return fmt.Errorf("booking changed state: %w", ErrInvalidStateTransition)
	}

	by := o.by
	b.Status = entity.BookingStatusCancelled
	b.PaymentStatus = paymentStatus
	b.CancelledBy = &by
	b.CancelledAt = &now
	if o.reason != "" {
		reason := o.reason
		b.CancelReason = &reason
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", b.ID.String()),
		zap.String("by", string(by)),
		zap.Int64("refunded", refunded),
	)

	for _, user := range []uuid.UUID{b.GuestID, b.PhotographerID} {
		s.notifier.Notify(ctx, eventFor(user, entity.EventBookingCancelled, &b.RequestID, &b.ID, map[string]any{
			"cancelled_by": by,
			"refunded":     refunded,
		}))
	}
	publishEvent(ctx, s.events, s.log, DomainEvent{
		Event:      "booking.cancelled",
		OccurredAt: now,
		BookingID:  &b.ID,
		RequestID:  &b.RequestID,
		Data:       map[string]any{"cancelled_by": by, "refunded_amount": refunded},
	})
	return nil
}
